package framegraph

import (
	"cmp"
	"slices"
)

// Slot is one physical backing allocation shared by logical resources whose
// lifetimes never overlap. Capacity is the largest Size among its residents.
type Slot struct {
	Index     int
	Kind      ResourceKind
	Format    string
	Capacity  uint64
	Residents []ResourceID
}

type slotState struct {
	Slot
	busyUntil int
	last      ResourceID
}

// allocateSlots colors the interval graph greedily: resources are visited by
// start position; each takes the smallest compatible free slot that already
// fits, else the largest compatible free slot (grown to fit), else a new slot.
// A slot is free for a resource when its current occupant's lifetime ended
// strictly before the resource's starts.
func allocateSlots(lives []Lifetime, resources *ResourceTable, users map[ResourceID][]passUse, reach []bitset, orderedOnly bool) ([]Slot, map[ResourceID]int) {
	sorted := slices.Clone(lives)
	slices.SortFunc(sorted, func(a, b Lifetime) int {
		return cmp.Or(
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(a.Resource.Kind, b.Resource.Kind),
			cmp.Compare(a.Resource.Index, b.Resource.Index),
		)
	})

	var slots []*slotState
	assignment := make(map[ResourceID]int, len(sorted))

	for _, lt := range sorted {
		desc, _ := resources.Lookup(lt.Resource)

		var fit, grow *slotState
		for _, s := range slots {
			if s.Kind != desc.ID.Kind || s.Format != desc.Format || s.busyUntil >= lt.Start {
				continue
			}
			if orderedOnly && !happensBefore(users[s.last], users[lt.Resource], reach) {
				continue
			}
			if s.Capacity >= desc.Size {
				if fit == nil || s.Capacity < fit.Capacity {
					fit = s
				}
			} else if grow == nil || s.Capacity > grow.Capacity {
				grow = s
			}
		}

		chosen := fit
		if chosen == nil {
			chosen = grow
		}
		if chosen == nil {
			chosen = &slotState{Slot: Slot{Index: len(slots), Kind: desc.ID.Kind, Format: desc.Format}}
			slots = append(slots, chosen)
		}
		chosen.Capacity = max(chosen.Capacity, desc.Size)
		chosen.Residents = append(chosen.Residents, lt.Resource)
		chosen.busyUntil = lt.End
		chosen.last = lt.Resource
		assignment[lt.Resource] = chosen.Index
	}

	out := make([]Slot, len(slots))
	for i, s := range slots {
		out[i] = s.Slot
	}
	return out, assignment
}

// happensBefore reports whether every pass in prev precedes every pass in next.
func happensBefore(prev, next []passUse, reach []bitset) bool {
	for _, p := range prev {
		for _, q := range next {
			if !reach[p.pass].has(q.pass) {
				return false
			}
		}
	}
	return true
}
