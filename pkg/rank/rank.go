// Package rank orders profiles within a leg by how strongly they match
// the search subject's pivots.
package rank

import (
	"sort"

	"github.com/sp1nlock/legwork/internal/utils"
	"github.com/sp1nlock/legwork/pkg/cluster"
	"github.com/sp1nlock/legwork/pkg/profile"
)

// Score is an additive, unnormalized similarity between a profile and the
// subject. Absent pivots contribute nothing.
func Score(p profile.Resolved, subject cluster.Subject) int {
	score := 0
	if subject.Username != "" {
		if utils.ContainsFold(p.DisplayName, subject.Username) {
			score += 3
		}
		if utils.ContainsFold(p.Bio, subject.Username) {
			score += 2
		}
		if utils.ContainsFold(p.URL, subject.Username) {
			score += 2
		}
	}
	if subject.Email != "" {
		if utils.ContainsFold(p.DisplayName, subject.Email) {
			score += 3
		}
		if utils.ContainsFold(p.Bio, subject.Email) {
			score += 3
		}
		if utils.ContainsFold(p.URL, subject.Email) {
			score += 2
		}
	}
	return score
}

// SortLeg orders a leg's profiles by descending score. Ties keep their
// input order.
func SortLeg(leg *cluster.Leg, subject cluster.Subject) {
	sort.SliceStable(leg.Profiles, func(i, j int) bool {
		return Score(leg.Profiles[i], subject) > Score(leg.Profiles[j], subject)
	})
}

// SortLegs ranks every leg in place.
func SortLegs(legs []cluster.Leg, subject cluster.Subject) {
	for i := range legs {
		SortLeg(&legs[i], subject)
	}
}
