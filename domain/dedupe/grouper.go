// Package dedupe groups files into exact-duplicate groups and near-duplicate
// clusters from their content identities.
package dedupe

import (
	"math/bits"
	"sort"

	"github.com/lensworks/lumen/domain/image"
)

// DefaultNearThreshold is the Hamming distance within which two perceptual
// hashes are considered near-duplicates.
const DefaultNearThreshold = 5

// Hamming returns the number of differing bits between two 64-bit
// perceptual hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// GroupExact partitions identities by content hash. Every bucket with more
// than one member is an exact-duplicate group; singletons are omitted.
func GroupExact(identities []image.ContentIdentity) map[string][]string {
	buckets := make(map[string][]string)
	for _, id := range identities {
		buckets[id.ContentHash()] = append(buckets[id.ContentHash()], id.Path())
	}

	groups := make(map[string][]string)
	for hash, paths := range buckets {
		if len(paths) > 1 {
			sort.Strings(paths)
			groups[hash] = paths
		}
	}
	return groups
}

// GroupNear clusters identities whose perceptual hashes fall within threshold
// Hamming distance of a cluster's seed.
//
// The clustering is greedy single-link: identities are visited in stable
// (path) order; each unclustered identity seeds a new cluster and absorbs
// every later unclustered identity within threshold of the seed — not of
// every member already absorbed. Two images can therefore land in one cluster
// through the seed while being further than threshold from each other.
// Clusters of size 1 are discarded. Threshold 0 clusters only identical
// fingerprints.
func GroupNear(identities []image.ContentIdentity, threshold int) [][]string {
	if threshold < 0 {
		threshold = DefaultNearThreshold
	}

	ordered := make([]image.ContentIdentity, len(identities))
	copy(ordered, identities)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Path() < ordered[j].Path()
	})

	clustered := make([]bool, len(ordered))
	var clusters [][]string

	for i, seed := range ordered {
		if clustered[i] {
			continue
		}
		clustered[i] = true
		members := []string{seed.Path()}

		for j := i + 1; j < len(ordered); j++ {
			if clustered[j] {
				continue
			}
			if Hamming(seed.PerceptualHash(), ordered[j].PerceptualHash()) <= threshold {
				clustered[j] = true
				members = append(members, ordered[j].Path())
			}
		}

		if len(members) > 1 {
			clusters = append(clusters, members)
		}
	}

	return clusters
}
