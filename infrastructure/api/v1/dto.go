package v1

import "github.com/lensworks/lumen/domain/search"

// RootRequest carries the directory root for watch, scan, and duplicate
// operations.
type RootRequest struct {
	Root string `json:"root"`
}

// StatusResponse reports the watch state.
type StatusResponse struct {
	Watching bool `json:"watching"`
}

// ScanResponse reports the outcome of a full scan.
type ScanResponse struct {
	Scanned int `json:"scanned"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// ExactDuplicatesResponse maps content hashes to the paths sharing them.
type ExactDuplicatesResponse struct {
	Groups map[string][]string `json:"groups"`
}

// NearDuplicatesRequest asks for near-duplicate clusters under a root. An
// omitted threshold uses the server default; an explicit zero clusters only
// identical fingerprints.
type NearDuplicatesRequest struct {
	Root      string `json:"root"`
	Threshold *int   `json:"threshold,omitempty"`
}

// NearDuplicatesResponse lists clusters of visually similar paths.
type NearDuplicatesResponse struct {
	Clusters [][]string `json:"clusters"`
}

// SearchRequest is a raw-vector query with an optional metadata filter.
type SearchRequest struct {
	Vector []float64         `json:"vector"`
	TopK   int               `json:"top_k,omitempty"`
	All    map[string]string `json:"all,omitempty"`
	Any    map[string]string `json:"any,omitempty"`
}

func (r SearchRequest) filter() search.Filter {
	f := search.NewFilter()
	for field, value := range r.All {
		f = f.WithAll(search.NewCondition(field, value))
	}
	for field, value := range r.Any {
		f = f.WithAny(search.NewCondition(field, value))
	}
	return f
}

// SearchHit is one search result.
type SearchHit struct {
	ID    string  `json:"id"`
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// SearchResponse lists search results ordered by descending score.
type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}
