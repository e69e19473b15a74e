// Package search defines search results, metadata filters, and rank fusion.
package search

// Hit is one search result: a record identifier, the indexed path from its
// payload, and a similarity score.
type Hit struct {
	id    string
	path  string
	score float64
}

// NewHit creates a Hit.
func NewHit(id, path string, score float64) Hit {
	return Hit{id: id, path: path, score: score}
}

// ID returns the record identifier.
func (h Hit) ID() string { return h.id }

// Path returns the indexed file path.
func (h Hit) Path() string { return h.path }

// Score returns the similarity score.
func (h Hit) Score() float64 { return h.score }
