package timeline

// AddEvents admits copies of the given events.
//
// An event whose id repeats an earlier argument or an event already in the
// timeline is dropped with a DuplicateReference warning. Events outside the
// addressable range are cropped or dropped with Trimmed warnings. A nil event
// or one whose unit kind differs from the timeline's fails the whole call.
func (t *Timeline) AddEvents(events ...*Event) (Warnings, error) {
	const op = "Timeline.AddEvents"
	kind := t.unit.Kind()
	for i, ev := range events {
		if ev == nil {
			return nil, newError(KindTypeMismatch, op, "event %d is nil", i)
		}
		if ev.unit.Kind() != kind {
			return nil, newError(KindInvalidValue, op,
				"event %d is in %s but the timeline is in %s", ev.id, ev.unit.Name(), t.unit.Name())
		}
	}

	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		added := make(map[int]struct{}, len(events))
		for _, ev := range events {
			if _, ok := added[ev.id]; ok {
				ws.Add(KindDuplicateReference, op, ev.id, true, "event %d given more than once", ev.id)
				continue
			}
			if _, ok := n.events[ev.id]; ok {
				ws.Add(KindDuplicateReference, op, ev.id, true, "event %d already in timeline", ev.id)
				continue
			}
			added[ev.id] = struct{}{}
			n.events[ev.id] = ev.Clone()
		}
		n.trimEvents().warn(op, &ws, added)
		return nil
	})
	return ws, err
}

// AddConditions admits copies of the given conditions, each with an empty
// set of events. Duplicate ids are dropped with warnings. A tag already used
// by another condition is reported but the condition is kept.
func (t *Timeline) AddConditions(conds ...*Condition) (Warnings, error) {
	const op = "Timeline.AddConditions"
	for i, c := range conds {
		if c == nil {
			return nil, newError(KindTypeMismatch, op, "condition %d is nil", i)
		}
	}

	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		tags := make(map[string]int, len(n.conditions))
		for _, id := range sortedKeys(n.conditions) {
			if _, ok := tags[n.conditions[id].tag]; !ok {
				tags[n.conditions[id].tag] = id
			}
		}
		added := make(map[int]struct{}, len(conds))
		for _, c := range conds {
			if _, ok := added[c.id]; ok {
				ws.Add(KindDuplicateReference, op, c.id, true, "condition %d given more than once", c.id)
				continue
			}
			if _, ok := n.conditions[c.id]; ok {
				ws.Add(KindDuplicateReference, op, c.id, true, "condition %d already in timeline", c.id)
				continue
			}
			if other, ok := tags[c.tag]; ok {
				ws.Add(KindDuplicateReference, op, c.id, false, "tag %q of condition %d is already used by condition %d", c.tag, c.id, other)
			} else {
				tags[c.tag] = c.id
			}
			added[c.id] = struct{}{}
			n.conditions[c.id] = c.Clone()
			n.conditionEvents[c.id] = make(map[int]struct{})
		}
		return nil
	})
	return ws, err
}

// RemoveEvents deletes events and their associations
func (t *Timeline) RemoveEvents(ids ...int) Warnings {
	var ws Warnings
	for _, id := range dedupeInts(ids) {
		if _, ok := t.events[id]; !ok {
			ws.Add(KindUnknownReference, "Timeline.RemoveEvents", id, true, "event %d not found", id)
			continue
		}
		t.dropEvent(id)
	}
	return ws
}

// RemoveConditions deletes conditions, their associations and every overlap
// permission mentioning them
func (t *Timeline) RemoveConditions(ids ...int) Warnings {
	var ws Warnings
	for _, id := range dedupeInts(ids) {
		if _, ok := t.conditions[id]; !ok {
			ws.Add(KindUnknownReference, "Timeline.RemoveConditions", id, true, "condition %d not found", id)
			continue
		}
		delete(t.conditions, id)
		delete(t.conditionEvents, id)
		for p := range t.permissions {
			if p.has(id) {
				delete(t.permissions, p)
			}
		}
	}
	return ws
}

// ClearEvents removes every event. Conditions stay, with no events.
func (t *Timeline) ClearEvents() {
	t.events = make(map[int]*Event)
	for cid := range t.conditionEvents {
		t.conditionEvents[cid] = make(map[int]struct{})
	}
}

// ClearConditions removes every condition and every overlap permission
func (t *Timeline) ClearConditions() {
	t.conditions = make(map[int]*Condition)
	t.conditionEvents = make(map[int]map[int]struct{})
	t.permissions = make(map[ConditionPair]struct{})
}

// SetEvents replaces the event with ids[i] by a copy of events[i], which may
// carry a different id. Associations follow the new id. Unknown ids and ids
// that would collide with another event are skipped with warnings. The call
// fails if the replacements break the overlap rules.
func (t *Timeline) SetEvents(ids []int, events []*Event) (Warnings, error) {
	const op = "Timeline.SetEvents"
	if len(ids) != len(events) {
		return nil, newError(KindInvalidValue, op, "got %d ids for %d events", len(ids), len(events))
	}
	kind := t.unit.Kind()
	for i, ev := range events {
		if ev == nil {
			return nil, newError(KindTypeMismatch, op, "event %d is nil", i)
		}
		if ev.unit.Kind() != kind {
			return nil, newError(KindInvalidValue, op,
				"event %d is in %s but the timeline is in %s", ev.id, ev.unit.Name(), t.unit.Name())
		}
	}

	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		for i, id := range ids {
			ev := events[i]
			if _, ok := n.events[id]; !ok {
				ws.Add(KindUnknownReference, op, id, true, "event %d not found", id)
				continue
			}
			if _, ok := n.events[ev.id]; ok && ev.id != id {
				ws.Add(KindDuplicateReference, op, ev.id, true, "new id %d already used by another event", ev.id)
				continue
			}
			delete(n.events, id)
			n.events[ev.id] = ev.Clone()
			if ev.id != id {
				for _, evs := range n.conditionEvents {
					if _, ok := evs[id]; ok {
						delete(evs, id)
						evs[ev.id] = struct{}{}
					}
				}
			}
		}
		n.trimEvents()
		return n.checkOverlapConflicts(op)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// SetConditions replaces the condition with ids[i] by a copy of conds[i].
// When the id changes, associations and overlap permissions are moved to the
// new id. Unknown ids and colliding new ids are skipped with warnings.
func (t *Timeline) SetConditions(ids []int, conds []*Condition) (Warnings, error) {
	const op = "Timeline.SetConditions"
	if len(ids) != len(conds) {
		return nil, newError(KindInvalidValue, op, "got %d ids for %d conditions", len(ids), len(conds))
	}
	for i, c := range conds {
		if c == nil {
			return nil, newError(KindTypeMismatch, op, "condition %d is nil", i)
		}
	}

	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		for i, id := range ids {
			c := conds[i]
			if _, ok := n.conditions[id]; !ok {
				ws.Add(KindUnknownReference, op, id, true, "condition %d not found", id)
				continue
			}
			if _, ok := n.conditions[c.id]; ok && c.id != id {
				ws.Add(KindDuplicateReference, op, c.id, true, "new id %d already used by another condition", c.id)
				continue
			}
			delete(n.conditions, id)
			n.conditions[c.id] = c.Clone()
			if c.id == id {
				continue
			}
			n.conditionEvents[c.id] = n.conditionEvents[id]
			delete(n.conditionEvents, id)
			for p := range n.permissions {
				if !p.has(id) {
					continue
				}
				delete(n.permissions, p)
				a, b := p.A, p.B
				if a == id {
					a = c.id
				}
				if b == id {
					b = c.id
				}
				n.permissions[NewConditionPair(a, b)] = struct{}{}
			}
		}
		return nil
	})
	return ws, err
}
