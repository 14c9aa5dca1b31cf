package timeline

import "fmt"

// AssociateEvents tags every given event with every given condition. Unknown
// ids are dropped with warnings. Fails with OverlapConflict, changing nothing,
// if the new associations make events of non-overlapping conditions overlap.
func (t *Timeline) AssociateEvents(eventIDs, conditionIDs []int) (Warnings, error) {
	const op = "Timeline.AssociateEvents"
	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		evs := n.knownEvents(op, eventIDs, &ws)
		conds := n.knownConditions(op, conditionIDs, &ws)
		for _, cid := range conds {
			for _, id := range evs {
				n.conditionEvents[cid][id] = struct{}{}
			}
		}
		return n.checkOverlapConflicts(op)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// DissociateEvents removes the tags set by AssociateEvents. Removing
// associations cannot create overlaps, so nothing is re-validated.
func (t *Timeline) DissociateEvents(eventIDs, conditionIDs []int) Warnings {
	const op = "Timeline.DissociateEvents"
	var ws Warnings
	evs := t.knownEvents(op, eventIDs, &ws)
	conds := t.knownConditions(op, conditionIDs, &ws)
	for _, cid := range conds {
		for _, id := range evs {
			delete(t.conditionEvents[cid], id)
		}
	}
	return ws
}

// AllowOverlap adds pairs to the overlap permissions. Pairs naming an unknown
// condition are dropped with warnings.
func (t *Timeline) AllowOverlap(pairs ...ConditionPair) (Warnings, error) {
	const op = "Timeline.AllowOverlap"
	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		for _, p := range n.knownPairs(op, pairs, &ws) {
			n.permissions[p] = struct{}{}
		}
		return n.checkOverlapConflicts(op)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// ForbidOverlap removes pairs from the overlap permissions. Fails with
// OverlapConflict, leaving the permissions unchanged, if events under a
// forbidden pair overlap.
func (t *Timeline) ForbidOverlap(pairs ...ConditionPair) (Warnings, error) {
	const op = "Timeline.ForbidOverlap"
	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		for _, p := range n.knownPairs(op, pairs, &ws) {
			delete(n.permissions, p)
		}
		return n.checkOverlapConflicts(op)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// SetOverlapPermissions replaces the whole set of overlap permissions
func (t *Timeline) SetOverlapPermissions(pairs ...ConditionPair) (Warnings, error) {
	const op = "Timeline.SetOverlapPermissions"
	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		n.permissions = make(map[ConditionPair]struct{}, len(pairs))
		for _, p := range n.knownPairs(op, pairs, &ws) {
			n.permissions[p] = struct{}{}
		}
		return n.checkOverlapConflicts(op)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Conflict describes two overlapping events under conditions that may not overlap
type Conflict struct {
	Pair   ConditionPair `json:"pair" yaml:"pair"`
	EventA int           `json:"eventA" yaml:"eventA"`
	EventB int           `json:"eventB" yaml:"eventB"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("conditions %d and %d have overlapping events %d and %d", c.Pair.A, c.Pair.B, c.EventA, c.EventB)
}

// Conflicts lists every violation of the overlap rules. It is empty for any
// timeline reachable through the public mutators.
func (t *Timeline) Conflicts() []Conflict {
	return t.findConflicts(false)
}

func (t *Timeline) checkOverlapConflicts(op string) error {
	if cs := t.findConflicts(true); len(cs) > 0 {
		return newError(KindOverlapConflict, op, "%s; resolve the conflict or allow overlap", cs[0])
	}
	return nil
}

// findConflicts checks every unordered pair of conditions, self-pairs
// included, that is not permitted to overlap. Within a self-pair an event is
// not compared with itself; an event shared by two distinct conditions is.
func (t *Timeline) findConflicts(first bool) []Conflict {
	var out []Conflict
	ids := t.ConditionIDs()
	for i, a := range ids {
		for _, b := range ids[i:] {
			pair := NewConditionPair(a, b)
			if _, ok := t.permissions[pair]; ok {
				continue
			}
			evA := sortedKeys(t.conditionEvents[a])
			evB := sortedKeys(t.conditionEvents[b])
			for _, x := range evA {
				for _, y := range evB {
					if a == b && y <= x {
						continue
					}
					overlap, err := t.events[x].HasOverlap(t.events[y])
					if err != nil || !overlap {
						continue
					}
					out = append(out, Conflict{Pair: pair, EventA: x, EventB: y})
					if first {
						return out
					}
				}
			}
		}
	}
	return out
}

func (t *Timeline) knownEvents(op string, ids []int, ws *Warnings) []int {
	out := make([]int, 0, len(ids))
	for _, id := range dedupeInts(ids) {
		if _, ok := t.events[id]; !ok {
			ws.Add(KindUnknownReference, op, id, true, "event %d not found", id)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (t *Timeline) knownConditions(op string, ids []int, ws *Warnings) []int {
	out := make([]int, 0, len(ids))
	for _, id := range dedupeInts(ids) {
		if _, ok := t.conditions[id]; !ok {
			ws.Add(KindUnknownReference, op, id, true, "condition %d not found", id)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (t *Timeline) knownPairs(op string, pairs []ConditionPair, ws *Warnings) []ConditionPair {
	out := make([]ConditionPair, 0, len(pairs))
	for _, p := range pairs {
		p = NewConditionPair(p.A, p.B)
		missing := false
		for _, id := range []int{p.A, p.B} {
			if _, ok := t.conditions[id]; !ok {
				ws.Add(KindUnknownReference, op, id, true, "pair (%d, %d) names unknown condition %d", p.A, p.B, id)
				missing = true
				break
			}
		}
		if !missing {
			out = append(out, p)
		}
	}
	return out
}
