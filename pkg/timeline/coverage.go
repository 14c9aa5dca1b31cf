package timeline

import "math"

// Interval is a closed span [Start, End] in timeline units
type Interval struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Duration returns End - Start
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// ConditionIntervals merges the intervals of the events associated with a
// condition. Touching intervals are merged, matching the closed-interval
// overlap rule. Values are in timeline units.
func (t *Timeline) ConditionIntervals(conditionID int) ([]Interval, error) {
	evs, ok := t.conditionEvents[conditionID]
	if !ok {
		return nil, newError(KindUnknownReference, "Timeline.ConditionIntervals", "condition %d not found", conditionID)
	}
	spans := make([]Interval, 0, len(evs))
	for id := range evs {
		ev := t.events[id]
		f := t.toTimelineScale(ev)
		spans = append(spans, Interval{Start: ev.onset * f, End: ev.End() * f})
	}
	return mergeIntervals(spans), nil
}

// ConditionCoverage is the total time spanned by a condition's events, with
// overlapping events counted once
func (t *Timeline) ConditionCoverage(conditionID int) (float64, error) {
	spans, err := t.ConditionIntervals(conditionID)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, s := range spans {
		total += s.Duration()
	}
	return total, nil
}

func mergeIntervals(spans []Interval) []Interval {
	if len(spans) == 0 {
		return []Interval{}
	}
	sorted := SortStable(spans, func(a, b Interval) bool {
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})
	merged := []Interval{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			last.End = math.Max(last.End, s.End)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
