package timeline

import (
	"fmt"
	"math"
	"reflect"
)

// Event is an interval on a timeline: an onset and a duration expressed in a
// MeasurementUnit (samples, or seconds with a multiplier), plus an optional payload.
// The end is always derived as onset + duration.
//
// Invariants:
//   - onset >= 0 and duration >= 0
//   - in samples, onset and duration are whole numbers
type Event struct {
	identity
	onset    float64
	duration float64
	unit     MeasurementUnit
	payload  interface{}
}

var _ Identifiable = (*Event)(nil)

type eventConfig struct {
	onset, duration, end *float64
	unit                 TimeUnit
	multiplier           float64
	payload              interface{}
	id                   *int
	registry             *IDRegistry
}

// EventOption configures NewEvent
type EventOption func(*eventConfig)

// WithOnset sets where the event starts
func WithOnset(v float64) EventOption { return func(c *eventConfig) { c.onset = &v } }

// WithDuration sets how long the event lasts
func WithDuration(v float64) EventOption { return func(c *eventConfig) { c.duration = &v } }

// WithEventEnd sets where the event stops. Any two of onset, duration and end
// determine the third.
func WithEventEnd(v float64) EventOption { return func(c *eventConfig) { c.end = &v } }

// InSamples expresses the event in samples (the default)
func InSamples() EventOption {
	return func(c *eventConfig) {
		c.unit = Sample
		c.multiplier = 0
	}
}

// InSeconds expresses the event in seconds scaled by 10^multiplier
func InSeconds(multiplier float64) EventOption {
	return func(c *eventConfig) {
		c.unit = Second
		c.multiplier = multiplier
	}
}

// InUnit selects the unit kind by value
func InUnit(u TimeUnit, multiplier float64) EventOption {
	return func(c *eventConfig) {
		c.unit = u
		c.multiplier = multiplier
	}
}

func WithPayload(p interface{}) EventOption { return func(c *eventConfig) { c.payload = p } }

// WithEventID fixes the id instead of drawing one from a registry
func WithEventID(id int) EventOption { return func(c *eventConfig) { c.id = &id } }

// WithEventRegistry draws the id from reg instead of the process-wide registry
func WithEventRegistry(reg *IDRegistry) EventOption {
	return func(c *eventConfig) { c.registry = reg }
}

// NewEvent creates an event. Any subset of onset, duration and end may be given;
// the missing ones are solved from onset + duration = end. With none of them the
// event is instantaneous at 0.
func NewEvent(opts ...EventOption) (*Event, error) {
	cfg := eventConfig{unit: Sample}
	for _, opt := range opts {
		opt(&cfg)
	}
	const op = "NewEvent"
	if !cfg.unit.valid() {
		return nil, newError(KindInvalidValue, op, "unit must be %q or %q, got %q", Sample, Second, cfg.unit)
	}
	if !finite(cfg.multiplier) {
		return nil, newError(KindInvalidValue, op, "unit multiplier must be finite")
	}

	onset, duration := 0.0, 0.0
	switch {
	case cfg.onset != nil && cfg.duration != nil && cfg.end != nil:
		onset, duration = *cfg.onset, *cfg.duration
		if !approxEqual(onset+duration, *cfg.end) {
			return nil, newError(KindInvalidValue, op, "onset %g + duration %g must equal end %g", onset, duration, *cfg.end)
		}
	case cfg.onset != nil && cfg.end != nil:
		onset, duration = *cfg.onset, *cfg.end-*cfg.onset
	case cfg.duration != nil && cfg.end != nil:
		onset, duration = *cfg.end-*cfg.duration, *cfg.duration
	case cfg.onset != nil:
		onset = *cfg.onset
		if cfg.duration != nil {
			duration = *cfg.duration
		}
	case cfg.duration != nil:
		duration = *cfg.duration
	case cfg.end != nil:
		onset = *cfg.end
	}

	ev := &Event{payload: cfg.payload}
	if cfg.unit == Second {
		ev.unit = SecondUnit(cfg.multiplier)
	} else {
		ev.unit = SampleUnit()
	}
	if err := ev.SetOnset(onset); err != nil {
		return nil, err
	}
	if err := ev.SetDuration(duration); err != nil {
		return nil, err
	}

	switch {
	case cfg.id != nil:
		ev.id = *cfg.id
	case cfg.registry != nil:
		ev.id = cfg.registry.Next(KindEvent)
	default:
		ev.id = NextID(KindEvent)
	}
	return ev, nil
}

// MustNewEvent is NewEvent that panics on error. Intended for tests and literals.
func MustNewEvent(opts ...EventOption) *Event {
	ev, err := NewEvent(opts...)
	if err != nil {
		panic(err)
	}
	return ev
}

func (e *Event) Onset() float64    { return e.onset }
func (e *Event) Duration() float64 { return e.duration }
func (e *Event) End() float64      { return e.onset + e.duration }

// Unit returns the unit the event is expressed in. There is no setter; use
// ToSamples or ToSeconds.
func (e *Event) Unit() MeasurementUnit { return e.unit }

func (e *Event) IsInSamples() bool { return e.unit.Kind() == Sample }
func (e *Event) IsInSeconds() bool { return e.unit.Kind() == Second }

// Payload returns the information attached to the event
func (e *Event) Payload() interface{} { return e.payload }

// SetPayload attaches arbitrary information; no checks are made
func (e *Event) SetPayload(p interface{}) { e.payload = p }

// SetOnset moves the event start. Rounded to the closest sample in samples.
func (e *Event) SetOnset(v float64) error {
	if !finite(v) || v < 0 {
		return newError(KindInvalidValue, "Event.SetOnset", "onset must be a finite value >= 0, got %v", v)
	}
	e.onset = e.quantize(v)
	return nil
}

// SetDuration changes the event length, and so its end
func (e *Event) SetDuration(v float64) error {
	if !finite(v) || v < 0 {
		return newError(KindInvalidValue, "Event.SetDuration", "duration must be a finite value >= 0, got %v", v)
	}
	e.duration = e.quantize(v)
	return nil
}

// SetEnd rewrites the duration so that onset + duration = v
func (e *Event) SetEnd(v float64) error {
	if !finite(v) {
		return newError(KindInvalidValue, "Event.SetEnd", "end must be finite, got %v", v)
	}
	v = e.quantize(v)
	if v < e.onset {
		return newError(KindInvalidValue, "Event.SetEnd", "end %g precedes onset %g", v, e.onset)
	}
	e.duration = v - e.onset
	return nil
}

func (e *Event) quantize(v float64) float64 {
	if e.IsInSamples() {
		return math.Round(v)
	}
	return v
}

// ToSamples re-expresses onset and duration in samples:
// round(value * 10^multiplier * samplingRate). No-op if already in samples.
func (e *Event) ToSamples(samplingRate float64) error {
	if !finite(samplingRate) || samplingRate <= 0 {
		return newError(KindInvalidValue, "Event.ToSamples", "sampling rate must be > 0, got %v", samplingRate)
	}
	if e.IsInSamples() {
		return nil
	}
	scale := e.unit.Scale() * samplingRate
	onset := math.Round(e.onset * scale)
	duration := math.Round(e.duration * scale)
	e.unit = SampleUnit()
	e.onset, e.duration = onset, duration
	return nil
}

// ToSeconds re-expresses onset and duration in seconds scaled by 10^newMultiplier.
// No-op if already in seconds.
func (e *Event) ToSeconds(samplingRate, newMultiplier float64) error {
	if !finite(samplingRate) || samplingRate <= 0 {
		return newError(KindInvalidValue, "Event.ToSeconds", "sampling rate must be > 0, got %v", samplingRate)
	}
	if !finite(newMultiplier) {
		return newError(KindInvalidValue, "Event.ToSeconds", "multiplier must be finite, got %v", newMultiplier)
	}
	if e.IsInSeconds() {
		return nil
	}
	unit := SecondUnit(newMultiplier)
	e.onset = e.onset / samplingRate / unit.Scale()
	e.duration = e.duration / samplingRate / unit.Scale()
	e.unit = unit
	return nil
}

// HasOverlap reports whether the closed intervals [onset, end] of both events
// intersect. Touching boundaries count as overlap, so an instantaneous event at
// another's end overlaps it. Both events must share the unit name.
func (e *Event) HasOverlap(other *Event) (bool, error) {
	if other == nil {
		return false, newError(KindTypeMismatch, "Event.HasOverlap", "event is nil")
	}
	if e.unit.Kind() == "" || other.unit.Kind() == "" {
		return false, newError(KindInvalidValue, "Event.HasOverlap", "events must be in %q or %q", Sample, Second)
	}
	if e.unit.Name() != other.unit.Name() {
		return false, newError(KindInvalidValue, "Event.HasOverlap",
			"events %d and %d do not share a unit (%s vs %s)", e.id, other.id, e.unit.Name(), other.unit.Name())
	}
	a0, a1 := e.onset*e.unit.Scale(), e.End()*e.unit.Scale()
	b0, b1 := other.onset*other.unit.Scale(), other.End()*other.unit.Scale()
	return math.Max(a0, b0) <= math.Min(a1, b1), nil
}

// EqualValue compares id, onset, duration, unit and payload.
// Two distinct pointers may be equal in value.
func (e *Event) EqualValue(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.id == other.id &&
		e.onset == other.onset &&
		e.duration == other.duration &&
		e.unit.Equal(other.unit) &&
		reflect.DeepEqual(e.payload, other.payload)
}

// Clone copies the event, id included. The payload is shared.
func (e *Event) Clone() *Event {
	c := *e
	return &c
}

func (e *Event) String() string {
	return fmt.Sprintf("Event{id=%d onset=%g duration=%g end=%g unit=%s}", e.id, e.onset, e.duration, e.End(), e.unit)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func approxEqual(a, b float64) bool {
	const eps = 1e-9
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
