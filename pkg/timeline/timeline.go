package timeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// NonUniform is the sampling rate of a timeline whose timestamps follow no fixed spacing
const NonUniform = -1.0

// Construction fallbacks used when a quantity is neither given nor solvable
const (
	DefaultLength         = 100
	DefaultSamplingRate   = 1.0
	DefaultSpan           = 99.0
	DefaultTimeMultiplier = 0.0
)

// ConditionPair is an unordered pair of condition ids, stored with A <= B.
// A == B is the self-pair of a condition.
type ConditionPair struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
}

// NewConditionPair normalizes the order of a and b
func NewConditionPair(a, b int) ConditionPair {
	if a > b {
		a, b = b, a
	}
	return ConditionPair{A: a, B: b}
}

func (p ConditionPair) has(id int) bool { return p.A == id || p.B == id }

// Timeline is the aggregate holding a sampled time axis, the events placed on
// it, the conditions labelling them and the rules for which conditions may
// overlap in time.
//
// Invariants after every public mutation:
//  1. timestamps are strictly increasing and >= 0
//  2. init, end, duration and length derive from timestamps
//  3. when uniform, samplingRate ~ (length-1) / (duration * 10^timeMultiplier)
//  4. event ids and condition ids are unique
//  5. every event lies within the addressable range
//  6. events under two conditions whose pair is not permitted never overlap
//  7. every condition has an entry in the condition/event map
//
// A Timeline is not safe for concurrent use; give it a single writer.
type Timeline struct {
	identity
	startTime       time.Time
	unit            MeasurementUnit
	samplingRate    float64
	timeMultiplier  float64
	timestamps      []float64
	events          map[int]*Event
	conditions      map[int]*Condition
	conditionEvents map[int]map[int]struct{}
	permissions     map[ConditionPair]struct{}
}

var _ Identifiable = (*Timeline)(nil)

type timelineConfig struct {
	startTime      *time.Time
	unit           TimeUnit
	length         *int
	samplingRate   *float64
	init           *float64
	end            *float64
	timeMultiplier *float64
	id             *int
	registry       *IDRegistry
}

// Option configures New
type Option func(*timelineConfig)

// WithStartTime anchors the timeline to an absolute time. Defaults to time.Now().
func WithStartTime(t time.Time) Option { return func(c *timelineConfig) { c.startTime = &t } }

// WithUnit selects the unit events are expressed in. Defaults to Sample.
func WithUnit(u TimeUnit) Option { return func(c *timelineConfig) { c.unit = u } }

// WithLength sets the number of samples
func WithLength(n int) Option { return func(c *timelineConfig) { c.length = &n } }

// WithSamplingRate sets samples per second, before the time multiplier
func WithSamplingRate(r float64) Option { return func(c *timelineConfig) { c.samplingRate = &r } }

// WithInit sets the time of the first sample
func WithInit(v float64) Option { return func(c *timelineConfig) { c.init = &v } }

// WithEnd sets the time of the last sample
func WithEnd(v float64) Option { return func(c *timelineConfig) { c.end = &v } }

// WithTimeMultiplier scales seconds by 10^m
func WithTimeMultiplier(m float64) Option { return func(c *timelineConfig) { c.timeMultiplier = &m } }

// WithTimelineID requests a specific id instead of the next free one
func WithTimelineID(id int) Option { return func(c *timelineConfig) { c.id = &id } }

// WithTimelineRegistry allocates the timeline id from reg rather than the default registry
func WithTimelineRegistry(reg *IDRegistry) Option {
	return func(c *timelineConfig) { c.registry = reg }
}

// New creates a uniformly sampled timeline with no events or conditions.
//
// Any of length, sampling rate, end and time multiplier may be omitted; the
// missing ones are solved from
//
//	samplingRate = (length-1) / ((end-init) * 10^timeMultiplier)
//
// falling back to length=100, samplingRate=1, end=init+99 and timeMultiplier=0.
// Init is never solved; it defaults to 0.
func New(opts ...Option) (*Timeline, error) {
	cfg := timelineConfig{unit: Sample}
	for _, opt := range opts {
		opt(&cfg)
	}
	const op = "New"

	unit, err := ParseTimeUnit(string(cfg.unit))
	if err != nil {
		return nil, err
	}
	ext, err := resolveExtent(cfg)
	if err != nil {
		return nil, err
	}

	t := &Timeline{
		samplingRate:    ext.samplingRate,
		timeMultiplier:  ext.timeMultiplier,
		timestamps:      linspace(ext.init, ext.end, ext.length),
		events:          make(map[int]*Event),
		conditions:      make(map[int]*Condition),
		conditionEvents: make(map[int]map[int]struct{}),
		permissions:     make(map[ConditionPair]struct{}),
	}
	if unit == Second {
		t.unit = SecondUnit(ext.timeMultiplier)
	} else {
		t.unit = SampleUnit()
	}
	if cfg.startTime != nil {
		t.startTime = *cfg.startTime
	} else {
		t.startTime = time.Now()
	}
	switch {
	case cfg.id != nil:
		t.id = *cfg.id
	case cfg.registry != nil:
		t.id = cfg.registry.Next(KindTimeline)
	default:
		t.id = NextID(KindTimeline)
	}
	if err := t.checkTimestamps(op); err != nil {
		return nil, err
	}
	return t, nil
}

type extent struct {
	length         int
	samplingRate   float64
	init           float64
	end            float64
	timeMultiplier float64
}

func resolveExtent(cfg timelineConfig) (extent, error) {
	const op = "New"
	ext := extent{
		length:         DefaultLength,
		samplingRate:   DefaultSamplingRate,
		timeMultiplier: DefaultTimeMultiplier,
	}
	if cfg.init != nil {
		ext.init = *cfg.init
	}
	if !finite(ext.init) || ext.init < 0 {
		return ext, newError(KindInvalidValue, op, "init must be a finite value >= 0, got %v", ext.init)
	}
	ext.end = ext.init + DefaultSpan

	hasL, hasS, hasE, hasM := cfg.length != nil, cfg.samplingRate != nil, cfg.end != nil, cfg.timeMultiplier != nil
	if hasL {
		if *cfg.length <= 0 {
			return ext, newError(KindInvalidValue, op, "length must be > 0, got %d", *cfg.length)
		}
		ext.length = *cfg.length
	}
	if hasS {
		if !finite(*cfg.samplingRate) || *cfg.samplingRate <= 0 {
			return ext, newError(KindInvalidValue, op, "sampling rate must be > 0 at construction, got %v", *cfg.samplingRate)
		}
		ext.samplingRate = *cfg.samplingRate
	}
	if hasE {
		if !finite(*cfg.end) {
			return ext, newError(KindInvalidValue, op, "end must be finite, got %v", *cfg.end)
		}
		ext.end = *cfg.end
	}
	if hasM {
		if !finite(*cfg.timeMultiplier) {
			return ext, newError(KindInvalidValue, op, "time multiplier must be finite, got %v", *cfg.timeMultiplier)
		}
		ext.timeMultiplier = *cfg.timeMultiplier
	}

	span := ext.end - ext.init
	scale := math.Pow(10, ext.timeMultiplier)
	solveEnd := func() { ext.end = ext.init + float64(ext.length-1)/(ext.samplingRate*scale) }
	solveRate := func() { ext.samplingRate = float64(ext.length-1) / (span * scale) }
	solveLength := func() { ext.length = int(math.Floor(1 + span*ext.samplingRate*scale + 1e-9)) }

	switch {
	case hasL && hasS && hasE && hasM:
		// fully specified, validate only
	case hasL && hasS && hasE:
		ext.timeMultiplier = math.Log10(float64(ext.length-1) / (span * ext.samplingRate))
	case hasL && !hasE:
		solveEnd()
	case hasL:
		solveRate()
	case hasE:
		solveLength()
	case hasS && hasM:
		solveEnd()
	case hasS:
		solveLength()
	case hasM:
		solveRate()
	}

	if err := ext.check(); err != nil {
		return ext, err
	}
	return ext, nil
}

func (ext extent) check() error {
	const op = "New"
	if !finite(ext.samplingRate) || ext.samplingRate <= 0 {
		return newError(KindConstructionInconsistency, op,
			"sampling rate must be strictly positive during construction, got %v", ext.samplingRate)
	}
	if !finite(ext.timeMultiplier) || !finite(ext.end) {
		return newError(KindConstructionInconsistency, op,
			"no finite end/time multiplier satisfies length=%d samplingRate=%g", ext.length, ext.samplingRate)
	}
	if ext.length < 1 {
		return newError(KindConstructionInconsistency, op, "solved length %d is below 1", ext.length)
	}
	expected := float64(ext.length-1) / (ext.samplingRate * math.Pow(10, ext.timeMultiplier))
	tolerance := 1 / (2 * ext.samplingRate)
	if math.Abs((ext.end-ext.init)-expected) > tolerance+1e-9 {
		return newError(KindConstructionInconsistency, op,
			"length=%d samplingRate=%g init=%g end=%g timeMultiplier=%g are not related by samplingRate = (length-1) / ((end-init) * 10^timeMultiplier)",
			ext.length, ext.samplingRate, ext.init, ext.end, ext.timeMultiplier)
	}
	return nil
}

// linspace returns n evenly spaced values from a to b inclusive
func linspace(a, b float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = a
		return out
	}
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + step*float64(i)
	}
	out[n-1] = b
	return out
}

func (t *Timeline) checkTimestamps(op string) error {
	if len(t.timestamps) == 0 {
		return newError(KindInvalidValue, op, "a timeline needs at least one timestamp")
	}
	for i, ts := range t.timestamps {
		if !finite(ts) || ts < 0 {
			return newError(KindInvalidValue, op, "timestamp %d is %v, must be finite and >= 0", i, ts)
		}
		if i > 0 && ts <= t.timestamps[i-1] {
			return newError(KindInvalidValue, op, "timestamps must be strictly increasing (index %d)", i)
		}
	}
	return nil
}

// mutate applies fn to a copy and commits it only when fn succeeds, so a
// failed call leaves t untouched.
func (t *Timeline) mutate(fn func(n *Timeline) error) error {
	n := t.Clone()
	if err := fn(n); err != nil {
		return err
	}
	*t = *n
	return nil
}

// Accessors

func (t *Timeline) StartTime() time.Time      { return t.startTime }
func (t *Timeline) SetStartTime(st time.Time) { t.startTime = st }
func (t *Timeline) Unit() MeasurementUnit     { return t.unit }
func (t *Timeline) SamplingRate() float64     { return t.samplingRate }
func (t *Timeline) TimeMultiplier() float64   { return t.timeMultiplier }
func (t *Timeline) Length() int               { return len(t.timestamps) }
func (t *Timeline) Init() float64             { return t.timestamps[0] }
func (t *Timeline) End() float64              { return t.timestamps[len(t.timestamps)-1] }

// Duration is End() - Init(), in seconds * 10^TimeMultiplier()
func (t *Timeline) Duration() float64 { return t.End() - t.Init() }

// IsUniform reports whether timestamps are evenly spaced at SamplingRate()
func (t *Timeline) IsUniform() bool { return t.samplingRate > 0 }

// Timestamps returns a copy of the time axis
func (t *Timeline) Timestamps() []float64 {
	out := make([]float64, len(t.timestamps))
	copy(out, t.timestamps)
	return out
}

// Events returns copies of all events ordered by id
func (t *Timeline) Events() []*Event {
	out := make([]*Event, 0, len(t.events))
	for _, ev := range t.events {
		out = append(out, ev.Clone())
	}
	return SortEventsByID(out)
}

// Conditions returns copies of all conditions ordered by id
func (t *Timeline) Conditions() []*Condition {
	out := make([]*Condition, 0, len(t.conditions))
	for _, c := range t.conditions {
		out = append(out, c.Clone())
	}
	return sortConditionsByID(out)
}

// EventIDs returns the event ids in ascending order
func (t *Timeline) EventIDs() []int { return sortedKeys(t.events) }

// ConditionIDs returns the condition ids in ascending order
func (t *Timeline) ConditionIDs() []int { return sortedKeys(t.conditions) }

// OverlapPermissions returns the condition pairs allowed to overlap
func (t *Timeline) OverlapPermissions() []ConditionPair {
	out := make([]ConditionPair, 0, len(t.permissions))
	for p := range t.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// IsOverlapAllowed reports whether events of conditions a and b may overlap
func (t *Timeline) IsOverlapAllowed(a, b int) bool {
	_, ok := t.permissions[NewConditionPair(a, b)]
	return ok
}

// ConditionEventMap returns, per condition id, the sorted ids of its events
func (t *Timeline) ConditionEventMap() map[int][]int {
	out := make(map[int][]int, len(t.conditionEvents))
	for cid, evs := range t.conditionEvents {
		out[cid] = sortedKeys(evs)
	}
	return out
}

// GetEvents returns copies of the events with the given ids, or of all
// events when no id is given. Unknown ids are reported as warnings.
func (t *Timeline) GetEvents(ids ...int) ([]*Event, Warnings) {
	if len(ids) == 0 {
		return t.Events(), nil
	}
	var ws Warnings
	var out []*Event
	for _, id := range dedupeInts(ids) {
		ev, ok := t.events[id]
		if !ok {
			ws.Add(KindUnknownReference, "Timeline.GetEvents", id, true, "event %d not found", id)
			continue
		}
		out = append(out, ev.Clone())
	}
	return SortEventsByID(out), ws
}

// GetConditions returns copies of the conditions with the given ids, or of
// all conditions when no id is given
func (t *Timeline) GetConditions(ids ...int) ([]*Condition, Warnings) {
	if len(ids) == 0 {
		return t.Conditions(), nil
	}
	var ws Warnings
	var out []*Condition
	for _, id := range dedupeInts(ids) {
		c, ok := t.conditions[id]
		if !ok {
			ws.Add(KindUnknownReference, "Timeline.GetConditions", id, true, "condition %d not found", id)
			continue
		}
		out = append(out, c.Clone())
	}
	return sortConditionsByID(out), ws
}

// ConditionEvents returns copies of the events associated with any of the
// given conditions, or with any condition when none is given
func (t *Timeline) ConditionEvents(conditionIDs ...int) ([]*Event, Warnings) {
	if len(conditionIDs) == 0 {
		conditionIDs = t.ConditionIDs()
	}
	var ws Warnings
	ids := make(map[int]struct{})
	for _, cid := range conditionIDs {
		evs, ok := t.conditionEvents[cid]
		if !ok {
			ws.Add(KindUnknownReference, "Timeline.ConditionEvents", cid, true, "condition %d not found", cid)
			continue
		}
		for id := range evs {
			ids[id] = struct{}{}
		}
	}
	out := make([]*Event, 0, len(ids))
	for id := range ids {
		out = append(out, t.events[id].Clone())
	}
	return SortEventsByID(out), ws
}

// EqualValue compares every field, events and conditions by value
func (t *Timeline) EqualValue(other *Timeline) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.id != other.id ||
		!t.startTime.Equal(other.startTime) ||
		!t.unit.Equal(other.unit) ||
		t.samplingRate != other.samplingRate ||
		t.timeMultiplier != other.timeMultiplier ||
		len(t.timestamps) != len(other.timestamps) ||
		len(t.events) != len(other.events) ||
		len(t.conditions) != len(other.conditions) ||
		len(t.permissions) != len(other.permissions) {
		return false
	}
	for i := range t.timestamps {
		if t.timestamps[i] != other.timestamps[i] {
			return false
		}
	}
	for id, ev := range t.events {
		if !ev.EqualValue(other.events[id]) {
			return false
		}
	}
	for id, c := range t.conditions {
		if !c.EqualValue(other.conditions[id]) {
			return false
		}
	}
	for p := range t.permissions {
		if _, ok := other.permissions[p]; !ok {
			return false
		}
	}
	for cid, evs := range t.conditionEvents {
		oevs, ok := other.conditionEvents[cid]
		if !ok || len(oevs) != len(evs) {
			return false
		}
		for id := range evs {
			if _, ok := oevs[id]; !ok {
				return false
			}
		}
	}
	return true
}

// Clone deep-copies the timeline, ids included
func (t *Timeline) Clone() *Timeline {
	n := &Timeline{
		identity:        t.identity,
		startTime:       t.startTime,
		unit:            t.unit,
		samplingRate:    t.samplingRate,
		timeMultiplier:  t.timeMultiplier,
		timestamps:      t.Timestamps(),
		events:          make(map[int]*Event, len(t.events)),
		conditions:      make(map[int]*Condition, len(t.conditions)),
		conditionEvents: make(map[int]map[int]struct{}, len(t.conditionEvents)),
		permissions:     make(map[ConditionPair]struct{}, len(t.permissions)),
	}
	for id, ev := range t.events {
		n.events[id] = ev.Clone()
	}
	for id, c := range t.conditions {
		n.conditions[id] = c.Clone()
	}
	for cid, evs := range t.conditionEvents {
		set := make(map[int]struct{}, len(evs))
		for id := range evs {
			set[id] = struct{}{}
		}
		n.conditionEvents[cid] = set
	}
	for p := range t.permissions {
		n.permissions[p] = struct{}{}
	}
	return n
}

func (t *Timeline) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timeline{id=%d unit=%s start=%s\n", t.id, t.unit, t.startTime.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "  init=%g end=%g length=%d samplingRate=%g timeMultiplier=%g\n",
		t.Init(), t.End(), t.Length(), t.samplingRate, t.timeMultiplier)
	for _, c := range t.Conditions() {
		fmt.Fprintf(&b, "  %s events=%v\n", c, sortedKeys(t.conditionEvents[c.ID()]))
	}
	for _, ev := range SortEventsByOnset(t.Events()) {
		fmt.Fprintf(&b, "  %s\n", ev)
	}
	if len(t.permissions) > 0 {
		fmt.Fprintf(&b, "  overlap=%v\n", t.OverlapPermissions())
	}
	b.WriteString("}")
	return b.String()
}

func sortedKeys[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func dedupeInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
