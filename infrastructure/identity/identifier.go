// Package identity computes content and perceptual hashes for image files.
package identity

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	// Register decoders for the supported image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	domain "github.com/lensworks/lumen/domain/image"
)

// hashChunkSize is the read buffer size used when streaming file bytes into
// the content hash.
const hashChunkSize = 64 * 1024

// Identifier computes ContentIdentity values for files on disk.
type Identifier struct {
	logger *slog.Logger
}

// NewIdentifier creates an Identifier.
func NewIdentifier(logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Identifier{logger: logger}
}

// Identify computes the content hash and perceptual hash for the file at
// path. An unreadable or undecodable file returns an error; callers are
// expected to skip the file and continue.
func (i *Identifier) Identify(path string) (domain.ContentIdentity, error) {
	contentHash, err := i.contentHash(path)
	if err != nil {
		return domain.ContentIdentity{}, fmt.Errorf("content hash %s: %w", path, err)
	}

	img, err := decode(path)
	if err != nil {
		return domain.ContentIdentity{}, fmt.Errorf("decode %s: %w", path, err)
	}

	phash := PerceptualHash(img)

	i.logger.Debug("identified file",
		slog.String("path", path),
		slog.String("content_hash", contentHash[:12]),
	)

	return domain.NewContentIdentity(path, contentHash, phash), nil
}

// Probe decodes the image at path and returns its dimensions and format
// name, for payload metadata.
func (i *Identifier) Probe(path string) (width, height int, format string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// contentHash streams the file through SHA-256 in fixed-size chunks and
// returns the hex digest.
func (i *Identifier) contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	return img, nil
}
