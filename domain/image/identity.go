// Package image defines the value types shared by the indexing pipeline.
package image

// ContentIdentity is the identity of a file derived purely from its bytes:
// a strong content hash for exact identity and a 64-bit perceptual
// fingerprint for visual similarity. Immutable for a given byte sequence.
type ContentIdentity struct {
	path           string
	contentHash    string
	perceptualHash uint64
}

// NewContentIdentity creates a ContentIdentity.
func NewContentIdentity(path, contentHash string, perceptualHash uint64) ContentIdentity {
	return ContentIdentity{
		path:           path,
		contentHash:    contentHash,
		perceptualHash: perceptualHash,
	}
}

// Path returns the file path the identity was computed for.
func (c ContentIdentity) Path() string { return c.path }

// ContentHash returns the hex-encoded SHA-256 of the raw file bytes.
func (c ContentIdentity) ContentHash() string { return c.contentHash }

// PerceptualHash returns the 64-bit perceptual fingerprint.
func (c ContentIdentity) PerceptualHash() uint64 { return c.perceptualHash }
