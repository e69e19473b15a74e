// Package service provides application layer services that orchestrate domain
// operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lensworks/lumen/domain/image"
	"github.com/lensworks/lumen/infrastructure/provider"
	"github.com/lensworks/lumen/infrastructure/watcher"
	"github.com/lensworks/lumen/internal/config"
)

// ErrAlreadyWatching indicates StartWatch was called while a watch is active.
var ErrAlreadyWatching = errors.New("already watching")

// Identifier computes content identities and image metadata for files.
type Identifier interface {
	Identify(path string) (image.ContentIdentity, error)
	Probe(path string) (width, height int, format string, err error)
}

// EmbeddingCache stores embedding vectors keyed by content hash.
type EmbeddingCache interface {
	Get(ctx context.Context, contentHash string) ([]float64, bool, error)
	Set(ctx context.Context, contentHash string, embedding []float64) error
}

// RecordStore writes index records to the vector store.
type RecordStore interface {
	UpsertOne(ctx context.Context, record image.IndexRecord) error
	UpsertBatch(ctx context.Context, records []image.IndexRecord, batchSize int) (successCount, failureCount int)
	DeleteByPath(ctx context.Context, path string) error
}

// ScanReport summarises one full-corpus scan.
type ScanReport struct {
	scanned int
	indexed int
	failed  int
}

// Scanned returns the number of image files found under the root.
func (r ScanReport) Scanned() int { return r.scanned }

// Indexed returns the number of records written to the store.
func (r ScanReport) Indexed() int { return r.indexed }

// Failed returns the number of files that could not be indexed.
func (r ScanReport) Failed() int { return r.failed }

// Indexer drives the incremental indexing pipeline: identity, embedding with
// a content-addressed cache, optional captioning, and vector store upserts.
type Indexer struct {
	identifier Identifier
	cache      EmbeddingCache
	store      RecordStore
	embedder   provider.Embedder
	captioner  provider.Captioner
	watchCfg   config.WatchConfig
	batchSize  int
	logger     *slog.Logger

	mu      sync.Mutex
	watcher *watcher.Watcher
}

// NewIndexer creates an Indexer. The captioner may be nil, in which case
// records carry no caption.
func NewIndexer(
	identifier Identifier,
	cache EmbeddingCache,
	store RecordStore,
	embedder provider.Embedder,
	captioner provider.Captioner,
	watchCfg config.WatchConfig,
	batchSize int,
	logger *slog.Logger,
) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = config.DefaultStoreBatchSize
	}
	return &Indexer{
		identifier: identifier,
		cache:      cache,
		store:      store,
		embedder:   embedder,
		captioner:  captioner,
		watchCfg:   watchCfg,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// HandleEvent processes one debounced filesystem event. A deleted path is
// removed from the store; created and modified paths are re-indexed. Errors
// for a single path never affect other paths.
func (s *Indexer) HandleEvent(ctx context.Context, event image.PendingEvent) error {
	switch event.Kind() {
	case image.EventDeleted:
		if err := s.store.DeleteByPath(ctx, event.Path()); err != nil {
			return fmt.Errorf("remove %s: %w", event.Path(), err)
		}
		s.logger.Info("removed from index", slog.String("path", event.Path()))
		return nil
	case image.EventCreated, image.EventModified:
		record, err := s.buildRecord(ctx, event.Path())
		if err != nil {
			return err
		}
		if err := s.store.UpsertOne(ctx, record); err != nil {
			return fmt.Errorf("upsert %s: %w", event.Path(), err)
		}
		s.logger.Info("indexed",
			slog.String("path", event.Path()),
			slog.String("kind", event.Kind().String()),
		)
		return nil
	default:
		return fmt.Errorf("unknown event kind %d for %s", event.Kind(), event.Path())
	}
}

// StartWatch begins watching root for changes. Only one watch can be active
// per Indexer.
func (s *Indexer) StartWatch(ctx context.Context, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return ErrAlreadyWatching
	}

	w, err := watcher.New(root, s.watchCfg.Debounce(), func(event image.PendingEvent) {
		if err := s.HandleEvent(context.Background(), event); err != nil {
			s.logger.Warn("event handling failed",
				slog.String("path", event.Path()),
				slog.String("error", err.Error()),
			)
		}
	}, s.logger)
	if err != nil {
		return fmt.Errorf("start watch %s: %w", root, err)
	}

	w.Start(ctx)
	s.watcher = w
	return nil
}

// StopWatch stops an active watch and flushes pending events. Stopping when
// no watch is active is a no-op.
func (s *Indexer) StopWatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

// Watching reports whether a watch is active.
func (s *Indexer) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher != nil
}

// ScanAndIndex walks root, builds records for every image file with bounded
// parallelism, and writes them to the store in batches. Files that fail to
// identify or embed are counted and skipped.
func (s *Indexer) ScanAndIndex(ctx context.Context, root string) (ScanReport, error) {
	paths, err := collectImagePaths(root)
	if err != nil {
		return ScanReport{}, fmt.Errorf("scan %s: %w", root, err)
	}

	s.logger.Info("scan started",
		slog.String("root", root),
		slog.Int("files", len(paths)),
	)

	var (
		mu      sync.Mutex
		records []image.IndexRecord
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.watchCfg.Workers())
	for _, path := range paths {
		path := path
		g.Go(func() error {
			record, err := s.buildRecord(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.logger.Warn("skipping file",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				return nil
			}
			records = append(records, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanReport{}, err
	}

	successCount, failureCount := s.store.UpsertBatch(ctx, records, s.batchSize)

	report := ScanReport{
		scanned: len(paths),
		indexed: successCount,
		failed:  failed + failureCount,
	}
	s.logger.Info("scan finished",
		slog.Int("scanned", report.scanned),
		slog.Int("indexed", report.indexed),
		slog.Int("failed", report.failed),
	)
	return report, nil
}

// buildRecord produces the index record for one file: identity, embedding
// (cache first), optional caption, and payload metadata.
func (s *Indexer) buildRecord(ctx context.Context, path string) (image.IndexRecord, error) {
	identity, err := s.identifier.Identify(path)
	if err != nil {
		return image.IndexRecord{}, err
	}

	vector, err := s.embeddingFor(ctx, identity)
	if err != nil {
		return image.IndexRecord{}, err
	}

	payload := image.NewPayload(path)
	if width, height, format, err := s.identifier.Probe(path); err == nil {
		payload.Width = width
		payload.Height = height
		payload.Format = format
	}
	if info, err := os.Stat(path); err == nil {
		payload.Size = info.Size()
	}
	payload.Extra = map[string]string{
		"content_hash":    identity.ContentHash(),
		"perceptual_hash": fmt.Sprintf("%016x", identity.PerceptualHash()),
	}

	if s.captioner != nil {
		if caption, err := s.captionFor(ctx, path); err == nil {
			payload.Caption = caption
		} else if !errors.Is(err, provider.ErrNotConfigured) {
			// Captions are decorative; a failed caption never blocks indexing.
			s.logger.Warn("caption failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}

	return image.NewIndexRecord(vector, payload), nil
}

// embeddingFor returns the embedding for an identity, consulting the
// content-addressed cache first. Identical bytes under any path never hit
// the embedding endpoint twice.
func (s *Indexer) embeddingFor(ctx context.Context, identity image.ContentIdentity) ([]float64, error) {
	cached, found, err := s.cache.Get(ctx, identity.ContentHash())
	if err != nil {
		return nil, fmt.Errorf("cache lookup %s: %w", identity.Path(), err)
	}
	if found {
		return cached, nil
	}

	data, err := os.ReadFile(identity.Path())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", identity.Path(), err)
	}

	vector, err := s.embedder.Embed(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", identity.Path(), err)
	}

	if err := s.cache.Set(ctx, identity.ContentHash(), vector); err != nil {
		// The embedding is still usable; only future lookups lose the hit.
		s.logger.Warn("cache write failed",
			slog.String("content_hash", identity.ContentHash()),
			slog.String("error", err.Error()),
		)
	}
	return vector, nil
}

func (s *Indexer) captionFor(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return s.captioner.Caption(ctx, data)
}

// collectImagePaths walks root and returns all image file paths in sorted
// order. Hidden directories are skipped.
func collectImagePaths(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if watcher.IsImagePath(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
