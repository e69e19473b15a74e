package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lensworks/lumen/domain/dedupe"
	"github.com/lensworks/lumen/domain/image"
)

// DuplicateFinder identifies exact and near-duplicate images under a root
// directory.
type DuplicateFinder struct {
	identifier    Identifier
	workers       int
	nearThreshold int
	logger        *slog.Logger
}

// NewDuplicateFinder creates a DuplicateFinder with the given identify
// parallelism. nearThreshold is the configured Hamming distance used when a
// caller does not name one; non-positive values fall back to the built-in
// default.
func NewDuplicateFinder(identifier Identifier, workers, nearThreshold int, logger *slog.Logger) *DuplicateFinder {
	if workers <= 0 {
		workers = 1
	}
	if nearThreshold <= 0 {
		nearThreshold = dedupe.DefaultNearThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplicateFinder{
		identifier:    identifier,
		workers:       workers,
		nearThreshold: nearThreshold,
		logger:        logger,
	}
}

// FindExactDuplicates groups files under root that share identical bytes,
// keyed by content hash. Only hashes with two or more paths are reported.
func (f *DuplicateFinder) FindExactDuplicates(ctx context.Context, root string) (map[string][]string, error) {
	identities, err := f.identify(ctx, root)
	if err != nil {
		return nil, err
	}
	return dedupe.GroupExact(identities), nil
}

// FindNearDuplicates clusters files under root whose perceptual hashes lie
// within threshold Hamming distance of a cluster seed. Threshold zero
// clusters only identical fingerprints; a negative threshold uses the
// finder's configured default.
func (f *DuplicateFinder) FindNearDuplicates(ctx context.Context, root string, threshold int) ([][]string, error) {
	if threshold < 0 {
		threshold = f.nearThreshold
	}
	identities, err := f.identify(ctx, root)
	if err != nil {
		return nil, err
	}
	return dedupe.GroupNear(identities, threshold), nil
}

// identify computes identities for every image under root with bounded
// parallelism. Files that cannot be read or decoded are logged and skipped
// so one corrupt file never aborts the whole report.
func (f *DuplicateFinder) identify(ctx context.Context, root string) ([]image.ContentIdentity, error) {
	paths, err := collectImagePaths(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	var (
		mu         sync.Mutex
		identities []image.ContentIdentity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			identity, err := f.identifier.Identify(path)
			if err != nil {
				f.logger.Warn("skipping unreadable file",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			identities = append(identities, identity)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return identities, nil
}
