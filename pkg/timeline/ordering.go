package timeline

import "sort"

// SortStable returns a sorted copy of items. Equal elements keep their input
// order, so the result is deterministic for any less function.
func SortStable[T any](items []T, less func(a, b T) bool) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

// SortEventsByID orders events by ascending id
func SortEventsByID(events []*Event) []*Event {
	return SortStable(events, func(a, b *Event) bool {
		return a.ID() < b.ID()
	})
}

// SortEventsByOnset orders events by onset, then end, then id
func SortEventsByOnset(events []*Event) []*Event {
	return SortStable(events, func(a, b *Event) bool {
		if a.Onset() != b.Onset() {
			return a.Onset() < b.Onset()
		}
		if a.End() != b.End() {
			return a.End() < b.End()
		}
		return a.ID() < b.ID()
	})
}

func sortConditionsByID(conds []*Condition) []*Condition {
	return SortStable(conds, func(a, b *Condition) bool {
		return a.ID() < b.ID()
	})
}
