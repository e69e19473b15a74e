package vectorstore

import "github.com/lensworks/lumen/domain/search"

// Wire types for the Qdrant-compatible REST API.

type collectionCreateRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type searchRequest struct {
	Vector      []float64   `json:"vector"`
	Limit       int         `json:"limit"`
	WithPayload bool        `json:"with_payload"`
	Filter      *wireFilter `json:"filter,omitempty"`
}

type searchResponse struct {
	Result []scoredPoint `json:"result"`
}

type scoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type deleteRequest struct {
	Filter *wireFilter `json:"filter"`
}

// wireFilter is the store's boolean filter: all must conditions AND at
// least one should condition (when present) have to match.
type wireFilter struct {
	Must   []fieldMatch `json:"must,omitempty"`
	Should []fieldMatch `json:"should,omitempty"`
}

type fieldMatch struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type matchValue struct {
	Value string `json:"value"`
}

// filterToWire converts a domain filter into the store's wire shape.
// Returns nil for an empty filter.
func filterToWire(f search.Filter) *wireFilter {
	if f.IsEmpty() {
		return nil
	}
	wf := &wireFilter{}
	for _, c := range f.All() {
		wf.Must = append(wf.Must, fieldMatch{Key: c.Field(), Match: matchValue{Value: c.Value()}})
	}
	for _, c := range f.Any() {
		wf.Should = append(wf.Should, fieldMatch{Key: c.Field(), Match: matchValue{Value: c.Value()}})
	}
	return wf
}

// pathFilter builds the delete-by-path filter.
func pathFilter(path string) *wireFilter {
	return &wireFilter{
		Must: []fieldMatch{{Key: "path", Match: matchValue{Value: path}}},
	}
}
