package image

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Payload is the metadata stored alongside an embedding in the vector store.
// Core fields are typed; Extra carries arbitrary additional metadata.
type Payload struct {
	Path     string            `json:"path"`
	Filename string            `json:"filename"`
	Caption  string            `json:"caption,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Width    int               `json:"width,omitempty"`
	Height   int               `json:"height,omitempty"`
	Format   string            `json:"format,omitempty"`
	Size     int64             `json:"size,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// NewPayload creates a Payload for a file path with the filename derived
// from it.
func NewPayload(path string) Payload {
	return Payload{
		Path:     path,
		Filename: filepath.Base(path),
	}
}

// IndexRecord is one point to be written to the vector store.
type IndexRecord struct {
	id      string
	vector  []float64
	payload Payload
}

// NewIndexRecord creates an IndexRecord with the identifier derived from the
// payload path.
func NewIndexRecord(vector []float64, payload Payload) IndexRecord {
	vec := make([]float64, len(vector))
	copy(vec, vector)
	return IndexRecord{
		id:      RecordID(payload.Path),
		vector:  vec,
		payload: payload,
	}
}

// ID returns the deterministic record identifier.
func (r IndexRecord) ID() string { return r.id }

// Vector returns the embedding vector (copy).
func (r IndexRecord) Vector() []float64 {
	vec := make([]float64, len(r.vector))
	copy(vec, r.vector)
	return vec
}

// Payload returns the record payload.
func (r IndexRecord) Payload() Payload { return r.payload }

// RecordID derives a stable store identifier from a file path, formatted as
// a UUID so stores with strict point ID requirements accept it. Re-indexing
// the same path always maps to the same record.
func RecordID(path string) string {
	sum := sha256.Sum256([]byte(path))
	hexed := hex.EncodeToString(sum[:16])
	return hexed[0:8] + "-" + hexed[8:12] + "-" + hexed[12:16] + "-" + hexed[16:20] + "-" + hexed[20:32]
}
