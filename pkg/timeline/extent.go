package timeline

import (
	"math"
	"sort"
)

// SetEnd moves the last timestamp to v.
//
// On a uniform timeline the timestamps are regenerated from Init() to v and
// the sampling rate recomputed, keeping the length. On a non-uniform timeline
// only the timestamps that would reach past v are pulled back, one ulp apart,
// and the last timestamp is pushed out to v when v grows the timeline. Init()
// never moves; an end too close to it to fit the pulled-back timestamps is
// rejected.
// Events are trimmed afterwards.
func (t *Timeline) SetEnd(v float64) error {
	const op = "Timeline.SetEnd"
	if !finite(v) {
		return newError(KindInvalidValue, op, "end must be finite, got %v", v)
	}
	return t.mutate(func(n *Timeline) error {
		length := len(n.timestamps)
		if length == 1 {
			return newError(KindInvalidValue, op, "a single-timestamp timeline has no end distinct from its init")
		}
		floor := n.timestamps[0] + epsilon*float64(length)
		if v < floor {
			return newError(KindInvalidValue, op, "end %v must be at least %v", v, floor)
		}
		if n.IsUniform() {
			init := n.timestamps[0]
			n.timestamps = linspace(init, v, length)
			n.samplingRate = float64(length-1) / ((v - init) * math.Pow(10, n.timeMultiplier))
		} else {
			if v > n.timestamps[length-1] {
				n.timestamps[length-1] = v
			}
			latest := v
			for i := length - 1; i >= 0; i-- {
				if n.timestamps[i] > latest {
					if i == 0 {
						return newError(KindInvalidValue, op,
							"end %v leaves no room for %d timestamps after init %v", v, length-1, n.timestamps[0])
					}
					n.timestamps[i] = latest
				}
				latest = math.Nextafter(latest, math.Inf(-1))
			}
		}
		if err := n.checkTimestamps(op); err != nil {
			return err
		}
		n.trimEvents()
		return nil
	})
}

// SetInit shifts every timestamp and every event onset by v - Init().
// Events pushed below the addressable range are cropped or removed.
func (t *Timeline) SetInit(v float64) error {
	const op = "Timeline.SetInit"
	if !finite(v) || v < 0 {
		return newError(KindInvalidValue, op, "init must be a finite value >= 0, got %v", v)
	}
	return t.mutate(func(n *Timeline) error {
		shift := v - n.timestamps[0]
		for i := range n.timestamps {
			n.timestamps[i] += shift
		}
		n.timestamps[0] = v
		if err := n.checkTimestamps(op); err != nil {
			return err
		}
		n.shiftEvents(shift)
		n.trimEvents()
		return nil
	})
}

// SetLength truncates or extends the timestamps to n points. New points
// continue at the sampling period on uniform timelines and at the mean
// spacing of the existing points otherwise.
func (t *Timeline) SetLength(length int) error {
	const op = "Timeline.SetLength"
	if length <= 0 {
		return newError(KindInvalidValue, op, "length must be > 0, got %d", length)
	}
	return t.mutate(func(n *Timeline) error {
		cur := len(n.timestamps)
		switch {
		case length < cur:
			n.timestamps = n.timestamps[:length:length]
		case length > cur:
			step := n.growthStep()
			last := n.timestamps[cur-1]
			for i := 1; i <= length-cur; i++ {
				n.timestamps = append(n.timestamps, last+step*float64(i))
			}
		}
		if err := n.checkTimestamps(op); err != nil {
			return err
		}
		n.trimEvents()
		return nil
	})
}

func (t *Timeline) growthStep() float64 {
	if t.IsUniform() {
		return 1 / (t.samplingRate * math.Pow(10, t.timeMultiplier))
	}
	if len(t.timestamps) < 2 {
		return 1 / math.Pow(10, t.timeMultiplier)
	}
	return meanSpacing(t.timestamps)
}

// SetSamplingRate with r > 0 regenerates the timestamps from Init() at period
// 1/(r * 10^TimeMultiplier()), keeping the length. With r < 0 the timeline is
// marked non-uniform and the timestamps are left alone.
func (t *Timeline) SetSamplingRate(r float64) error {
	const op = "Timeline.SetSamplingRate"
	if !finite(r) || r == 0 {
		return newError(KindInvalidValue, op, "sampling rate must be finite and non-zero, got %v", r)
	}
	return t.mutate(func(n *Timeline) error {
		if r < 0 {
			n.samplingRate = NonUniform
			return nil
		}
		init := n.timestamps[0]
		length := len(n.timestamps)
		end := init + float64(length-1)/(r*math.Pow(10, n.timeMultiplier))
		n.samplingRate = r
		n.timestamps = linspace(init, end, length)
		if err := n.checkTimestamps(op); err != nil {
			return err
		}
		n.trimEvents()
		return nil
	})
}

// SetTimeMultiplier rescales the timestamps to seconds * 10^m. On a Second
// timeline the unit multiplier follows.
func (t *Timeline) SetTimeMultiplier(m float64) error {
	const op = "Timeline.SetTimeMultiplier"
	if !finite(m) {
		return newError(KindInvalidValue, op, "time multiplier must be finite, got %v", m)
	}
	return t.mutate(func(n *Timeline) error {
		factor := math.Pow(10, m-n.timeMultiplier)
		for i := range n.timestamps {
			n.timestamps[i] /= factor
		}
		n.timeMultiplier = m
		if n.unit.Kind() == Second {
			n.unit = SecondUnit(m)
		}
		if err := n.checkTimestamps(op); err != nil {
			return err
		}
		n.trimEvents()
		return nil
	})
}

// SetTimestamps replaces the time axis. Values are sorted and deduplicated.
// The timeline is uniform when every gap is below 1.5 times the mean gap,
// with the sampling rate estimated from the mean; otherwise it is marked
// non-uniform. A single timestamp keeps the current sampling rate.
func (t *Timeline) SetTimestamps(ts []float64) error {
	const op = "Timeline.SetTimestamps"
	if len(ts) == 0 {
		return newError(KindInvalidValue, op, "at least one timestamp is required")
	}
	clean := make([]float64, 0, len(ts))
	for i, v := range ts {
		if !finite(v) || v < 0 {
			return newError(KindInvalidValue, op, "timestamp %d is %v, must be finite and >= 0", i, v)
		}
		clean = append(clean, v)
	}
	sort.Float64s(clean)
	uniq := clean[:1]
	for _, v := range clean[1:] {
		if v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	return t.mutate(func(n *Timeline) error {
		n.timestamps = uniq
		if len(uniq) > 1 {
			mean := meanSpacing(uniq)
			n.samplingRate = 1 / (mean * math.Pow(10, n.timeMultiplier))
			for i := 1; i < len(uniq); i++ {
				if uniq[i]-uniq[i-1] >= 1.5*mean {
					n.samplingRate = NonUniform
					break
				}
			}
		}
		n.trimEvents()
		return nil
	})
}

func meanSpacing(ts []float64) float64 {
	return (ts[len(ts)-1] - ts[0]) / float64(len(ts)-1)
}

// epsilon is the spacing of float64 values at 1
const epsilon = 2.220446049250313e-16

// addressableRange is [0, length] for Sample timelines and [init, end] for
// Second timelines, in timeline units.
func (t *Timeline) addressableRange() (lo, hi float64) {
	if t.unit.Kind() == Second {
		return t.Init(), t.End()
	}
	return 0, float64(len(t.timestamps))
}

// toTimelineScale is the factor bringing values of ev into timeline units
func (t *Timeline) toTimelineScale(ev *Event) float64 {
	if t.unit.Kind() == Second && ev.IsInSeconds() {
		return math.Pow(10, ev.unit.Multiplier()-t.timeMultiplier)
	}
	return 1
}

// placeEvent writes onset and end, given in timeline units, back into ev
func (t *Timeline) placeEvent(ev *Event, onset, end, f float64) {
	ev.onset = ev.quantize(onset / f)
	ev.duration = math.Max(0, ev.quantize(end/f)-ev.onset)
}

// trimResult lists the events touched by a trim
type trimResult struct {
	removed []int
	cropped []int
}

// warn reports the trimmed events as KindTrimmed warnings. A nil keep
// reports every event.
func (r trimResult) warn(op string, ws *Warnings, keep map[int]struct{}) {
	for _, id := range r.removed {
		if _, ok := keep[id]; ok || keep == nil {
			ws.Add(KindTrimmed, op, id, true, "event %d lies outside the timeline range and was removed", id)
		}
	}
	for _, id := range r.cropped {
		if _, ok := keep[id]; ok || keep == nil {
			ws.Add(KindTrimmed, op, id, false, "event %d was cropped to the timeline range", id)
		}
	}
}

// trimEvents removes events entirely outside the addressable range and crops
// those partially outside it
func (t *Timeline) trimEvents() trimResult {
	var res trimResult
	lo, hi := t.addressableRange()
	for _, id := range sortedKeys(t.events) {
		ev := t.events[id]
		f := t.toTimelineScale(ev)
		onset, end := ev.onset*f, ev.End()*f
		if onset > hi || end < lo {
			t.dropEvent(id)
			res.removed = append(res.removed, id)
			continue
		}
		if end <= hi && onset >= lo {
			continue
		}
		t.placeEvent(ev, math.Max(onset, lo), math.Min(end, hi), f)
		res.cropped = append(res.cropped, id)
	}
	return res
}

// shiftEvents moves every event by shift timeline units. Events ending below
// zero are removed; events starting below zero are cropped.
func (t *Timeline) shiftEvents(shift float64) {
	for _, id := range sortedKeys(t.events) {
		ev := t.events[id]
		f := t.toTimelineScale(ev)
		onset, end := ev.onset*f+shift, ev.End()*f+shift
		if end < 0 {
			t.dropEvent(id)
			continue
		}
		t.placeEvent(ev, math.Max(onset, 0), end, f)
	}
}

func (t *Timeline) dropEvent(id int) {
	delete(t.events, id)
	for _, evs := range t.conditionEvents {
		delete(evs, id)
	}
}
