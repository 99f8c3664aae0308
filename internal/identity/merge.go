package identity

import (
	"fmt"
	"sort"

	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// Consolidation is the complete set of writes needed to merge several clusters into the one of
// the oldest primary. It is applied as a single batch.
type Consolidation struct {
	Survivor model.Contact
	// Demoted are the former primaries that become secondaries of the survivor.
	Demoted []int64
	// Reparented are the secondaries of demoted primaries that must link to the survivor.
	Reparented []int64
}

// PlanConsolidation decides how to merge the clusters of the given primaries. The oldest primary
// survives. linked holds the contacts currently linked to any of the primaries; those linked to a
// demoted primary are re-parented so that no secondary ever points at another secondary.
func PlanConsolidation(primaries []model.Contact, linked []model.Contact) (Consolidation, error) {
	if len(primaries) < 2 {
		return Consolidation{}, fmt.Errorf("consolidation needs at least two primaries, got %d", len(primaries))
	}
	ordered := make([]model.Contact, len(primaries))
	copy(ordered, primaries)
	seen := make(map[int64]struct{}, len(ordered))
	for _, p := range ordered {
		if !p.IsPrimary() {
			return Consolidation{}, fmt.Errorf("%w: contact %d is not a primary", ErrInconsistent, p.Id)
		}
		if _, ok := seen[p.Id]; ok {
			return Consolidation{}, fmt.Errorf("%w: primary %d listed twice", ErrInconsistent, p.Id)
		}
		seen[p.Id] = struct{}{}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Before(ordered[j])
	})

	plan := Consolidation{Survivor: ordered[0]}
	demoted := make(map[int64]struct{}, len(ordered)-1)
	for _, p := range ordered[1:] {
		plan.Demoted = append(plan.Demoted, p.Id)
		demoted[p.Id] = struct{}{}
	}
	for _, c := range linked {
		if c.IsPrimary() || c.LinkedId == nil {
			continue
		}
		if _, ok := demoted[*c.LinkedId]; ok {
			plan.Reparented = append(plan.Reparented, c.Id)
		}
	}
	sort.Slice(plan.Reparented, func(i, j int) bool {
		return plan.Reparented[i] < plan.Reparented[j]
	})
	return plan, nil
}
