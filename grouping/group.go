// Package grouping clusters fingerprinted images and picks one image per cluster.
package grouping

import (
	"github.com/OiAnthony/image-deduplicate/types"
)

// Group clusters records in a single greedy pass.
//
// Each record joins the first existing group, in creation order, whose
// representative fingerprint is within threshold bits of its own; otherwise
// it founds a new group. Members are not re-checked against each other, so
// two members of one group may be further apart than threshold.
//
// Records whose fingerprint length differs from a group's representative
// never join that group.
func Group(records []types.ImageRecord, threshold int) []types.SimilarityGroup {
	groups := make([]types.SimilarityGroup, 0)

	for _, rec := range records {
		joined := false
		for gi := range groups {
			d, err := rec.Fingerprint.Distance(groups[gi].Representative)
			if err != nil || d > threshold {
				continue
			}
			groups[gi].Members = append(groups[gi].Members, rec)
			joined = true
			break
		}

		if !joined {
			groups = append(groups, types.SimilarityGroup{
				Representative: rec.Fingerprint,
				Members:        []types.ImageRecord{rec},
			})
		}
	}

	return groups
}

// DistanceFromRepresentative returns the member's Hamming distance to the group representative
func DistanceFromRepresentative(g types.SimilarityGroup, member types.ImageRecord) int {
	d, err := member.Fingerprint.Distance(g.Representative)
	if err != nil {
		return -1
	}
	return d
}
