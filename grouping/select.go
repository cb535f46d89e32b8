package grouping

import (
	"fmt"

	"github.com/OiAnthony/image-deduplicate/types"
)

// Policy decides which member of a group is kept
type Policy string

const (
	// PolicyFirst keeps the founding member
	PolicyFirst   Policy = "first"
	PolicyLargest Policy = "largest"
	PolicyOldest  Policy = "oldest"
	PolicyNewest  Policy = "newest"
)

// Policies lists every supported selection policy
var Policies = []Policy{PolicyFirst, PolicyLargest, PolicyOldest, PolicyNewest}

// ParsePolicy validates a policy name. The empty string selects PolicyFirst.
func ParsePolicy(name string) (Policy, error) {
	if name == "" {
		return PolicyFirst, nil
	}
	for _, p := range Policies {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown selection policy %q", name)
}

// SelectRepresentative picks the member to keep. Ties go to the earliest member.
func SelectRepresentative(g types.SimilarityGroup, policy Policy) types.ImageRecord {
	best := g.Members[0]
	for _, m := range g.Members[1:] {
		switch policy {
		case PolicyLargest:
			if m.Size > best.Size {
				best = m
			}
		case PolicyOldest:
			if m.ModTime.Before(best.ModTime) {
				best = m
			}
		case PolicyNewest:
			if m.ModTime.After(best.ModTime) {
				best = m
			}
		}
	}
	return best
}

// SelectAll returns one representative per group, in group order
func SelectAll(groups []types.SimilarityGroup, policy Policy) []types.ImageRecord {
	reps := make([]types.ImageRecord, 0, len(groups))
	for _, g := range groups {
		reps = append(reps, SelectRepresentative(g, policy))
	}
	return reps
}
