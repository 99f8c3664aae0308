package identity

import (
	"fmt"
	"sort"

	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// PrimaryIDs returns the distinct ids of the primaries that own the given contacts, in order of
// first appearance. A primary owns itself; a secondary is owned by the contact it links to.
func PrimaryIDs(contacts []model.Contact) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]struct{}, len(contacts))
	for _, c := range contacts {
		owner, err := ownerOf(c)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		ids = append(ids, owner)
	}
	return ids, nil
}

// PrimaryID determines the single primary owning a set of matched contacts. A matched primary is
// used directly; otherwise the primary is derived from the secondaries' links. Matches spanning
// several primaries must be consolidated before calling this.
func PrimaryID(matches []model.Contact) (int64, error) {
	ids, err := PrimaryIDs(matches)
	if err != nil {
		return 0, err
	}
	switch len(ids) {
	case 0:
		return 0, fmt.Errorf("%w: no primary for an empty match set", ErrInconsistent)
	case 1:
		return ids[0], nil
	default:
		return 0, fmt.Errorf("%w: matches belong to %d primaries %v", ErrInconsistent, len(ids), ids)
	}
}

func ownerOf(c model.Contact) (int64, error) {
	if c.IsPrimary() {
		return c.Id, nil
	}
	if c.LinkPrecedence != model.Secondary || c.LinkedId == nil {
		return 0, fmt.Errorf("%w: contact %d has precedence %q and no link", ErrInconsistent, c.Id, c.LinkPrecedence)
	}
	return *c.LinkedId, nil
}

// Cluster is a primary contact together with all of its secondaries, ordered by creation.
type Cluster struct {
	Primary     model.Contact
	Secondaries []model.Contact
}

// NewCluster builds the cluster of the given primary from the fetched members. The members must
// contain the primary itself and nothing but its direct secondaries.
func NewCluster(primaryID int64, members []model.Contact) (Cluster, error) {
	var cluster Cluster
	found := false
	for _, c := range members {
		switch {
		case c.Id == primaryID:
			if !c.IsPrimary() {
				return Cluster{}, fmt.Errorf("%w: contact %d is referenced as primary but has precedence %q",
					ErrInconsistent, c.Id, c.LinkPrecedence)
			}
			cluster.Primary = c
			found = true
		case c.LinkPrecedence == model.Secondary && c.LinkedId != nil && *c.LinkedId == primaryID:
			cluster.Secondaries = append(cluster.Secondaries, c)
		default:
			return Cluster{}, fmt.Errorf("%w: contact %d does not belong to the cluster of %d",
				ErrInconsistent, c.Id, primaryID)
		}
	}
	if !found {
		return Cluster{}, fmt.Errorf("%w: primary %d not found", ErrInconsistent, primaryID)
	}
	sort.SliceStable(cluster.Secondaries, func(i, j int) bool {
		return cluster.Secondaries[i].Before(cluster.Secondaries[j])
	})
	return cluster, nil
}

// Members returns the primary followed by its secondaries.
func (c Cluster) Members() []model.Contact {
	members := make([]model.Contact, 0, len(c.Secondaries)+1)
	members = append(members, c.Primary)
	return append(members, c.Secondaries...)
}
