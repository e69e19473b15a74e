package search

import "sort"

// rrfK is the standard reciprocal rank fusion constant.
const rrfK = 60.0

// Candidate is one entry of a ranked candidate list fed into fusion.
type Candidate struct {
	id    string
	score float64
}

// NewCandidate creates a Candidate.
func NewCandidate(id string, score float64) Candidate {
	return Candidate{id: id, score: score}
}

// ID returns the candidate identifier.
func (c Candidate) ID() string { return c.id }

// Score returns the candidate's score.
func (c Candidate) Score() float64 { return c.score }

// Fuse merges ranked candidate lists with reciprocal rank fusion. Each input
// list must be sorted by score descending. A candidate's fused score is the
// sum of 1/(60+rank) over the lists it appears in; ranks are 0-based. The
// result is sorted by fused score descending.
func Fuse(lists ...[]Candidate) []Candidate {
	if len(lists) == 0 {
		return []Candidate{}
	}

	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, c := range list {
			scores[c.id] += 1.0 / (rrfK + float64(rank))
		}
	}

	fused := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Candidate{id: id, score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		// Equal fused scores: stable output order by ID.
		return fused[i].id < fused[j].id
	})

	return fused
}

// FuseTopK merges ranked candidate lists and returns at most topK fused
// candidates.
func FuseTopK(topK int, lists ...[]Candidate) []Candidate {
	fused := Fuse(lists...)
	if topK <= 0 || topK >= len(fused) {
		return fused
	}
	return fused[:topK]
}
