package hcl

import (
	"fmt"
	"time"

	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

// Index maps the names used in a definition to the ids they were given
type Index struct {
	Timeline   int            `json:"timeline" yaml:"timeline"`
	Conditions map[string]int `json:"conditions" yaml:"conditions"`
	Events     map[string]int `json:"events" yaml:"events"`
}

// ConditionID resolves a condition name
func (ix *Index) ConditionID(name string) (int, bool) {
	id, ok := ix.Conditions[name]
	return id, ok
}

// EventID resolves an event name
func (ix *Index) EventID(name string) (int, bool) {
	id, ok := ix.Events[name]
	return id, ok
}

// BuildOption tunes Build
type BuildOption func(*buildConfig)

type buildConfig struct {
	registry  *timeline.IDRegistry
	startTime *time.Time
}

// WithRegistry draws every id from reg instead of the process-wide registry
func WithRegistry(reg *timeline.IDRegistry) BuildOption {
	return func(c *buildConfig) { c.registry = reg }
}

// WithDefaultStartTime is used when the definition has no start_time.
// Workflows pass their deterministic clock here.
func WithDefaultStartTime(t time.Time) BuildOption {
	return func(c *buildConfig) { c.startTime = &t }
}

// BuildWith is Build with ids drawn from reg
func (d *Definition) BuildWith(reg *timeline.IDRegistry, opts ...BuildOption) (*timeline.Timeline, *Index, timeline.Warnings, error) {
	return d.Build(append(opts, WithRegistry(reg))...)
}

// Build constructs the timeline: extent first, then conditions, events,
// overlap permissions and finally the event/condition associations. Names
// that repeat or do not resolve are dropped with warnings; a construction
// error or an overlap conflict fails the whole build.
func (d *Definition) Build(opts ...BuildOption) (*timeline.Timeline, *Index, timeline.Warnings, error) {
	const op = "hcl.Build"
	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var ws timeline.Warnings

	tl, err := d.newTimeline(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	ix := &Index{
		Timeline:   tl.ID(),
		Conditions: make(map[string]int, len(d.Conditions)),
		Events:     make(map[string]int, len(d.Events)),
	}

	conds := make([]*timeline.Condition, 0, len(d.Conditions))
	condIDs := make(map[int]string)
	for _, cb := range d.Conditions {
		if id, ok := ix.Conditions[cb.Name]; ok {
			ws.Add(timeline.KindDuplicateReference, op, id, true, "condition %q is declared more than once", cb.Name)
			continue
		}
		var copts []timeline.ConditionOption
		switch {
		case cb.ID != nil:
			copts = append(copts, timeline.WithConditionID(*cb.ID))
		case cfg.registry != nil:
			copts = append(copts, timeline.WithConditionRegistry(cfg.registry))
		}
		desc := ""
		if cb.Description != nil {
			desc = *cb.Description
		}
		c := timeline.NewCondition(cb.Name, desc, copts...)
		if other, ok := condIDs[c.ID()]; ok {
			ws.Add(timeline.KindDuplicateReference, op, c.ID(), true, "condition %q reuses the id of %q", cb.Name, other)
			continue
		}
		condIDs[c.ID()] = cb.Name
		ix.Conditions[cb.Name] = c.ID()
		conds = append(conds, c)
	}
	cws, err := tl.AddConditions(conds...)
	if err != nil {
		return nil, nil, nil, err
	}
	ws = append(ws, cws...)

	evs := make([]*timeline.Event, 0, len(d.Events))
	evIDs := make(map[int]string)
	for _, eb := range d.Events {
		if id, ok := ix.Events[eb.Name]; ok {
			ws.Add(timeline.KindDuplicateReference, op, id, true, "event %q is declared more than once", eb.Name)
			continue
		}
		ev, err := d.newEvent(tl, eb, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("event %q: %w", eb.Name, err)
		}
		if other, ok := evIDs[ev.ID()]; ok {
			ws.Add(timeline.KindDuplicateReference, op, ev.ID(), true, "event %q reuses the id of %q", eb.Name, other)
			continue
		}
		evIDs[ev.ID()] = eb.Name
		ix.Events[eb.Name] = ev.ID()
		evs = append(evs, ev)
	}
	ews, err := tl.AddEvents(evs...)
	if err != nil {
		return nil, nil, nil, err
	}
	ws = append(ws, ews...)
	// trimming may have removed events that fell outside the axis
	kept := make(map[int]struct{})
	for _, id := range tl.EventIDs() {
		kept[id] = struct{}{}
	}
	for name, id := range ix.Events {
		if _, ok := kept[id]; !ok {
			delete(ix.Events, name)
		}
	}

	var pairs []timeline.ConditionPair
	for _, ob := range d.Overlaps {
		ids := ix.resolveConditions(op, ob.Conditions, &ws)
		if len(ob.Conditions) == 1 && len(ids) == 1 {
			pairs = append(pairs, timeline.NewConditionPair(ids[0], ids[0]))
			continue
		}
		for i := range ids {
			for _, b := range ids[i+1:] {
				pairs = append(pairs, timeline.NewConditionPair(ids[i], b))
			}
		}
	}
	if len(pairs) > 0 {
		pws, err := tl.AllowOverlap(pairs...)
		if err != nil {
			return nil, nil, nil, err
		}
		ws = append(ws, pws...)
	}

	for _, eb := range d.Events {
		id, ok := ix.Events[eb.Name]
		if !ok || len(eb.Conditions) == 0 {
			continue
		}
		cids := ix.resolveConditions(op, eb.Conditions, &ws)
		aws, err := tl.AssociateEvents([]int{id}, cids)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("event %q: %w", eb.Name, err)
		}
		ws = append(ws, aws...)
	}
	return tl, ix, ws, nil
}

func (ix *Index) resolveConditions(op string, names []string, ws *timeline.Warnings) []int {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, ok := ix.Conditions[name]
		if !ok {
			ws.Add(timeline.KindUnknownReference, op, 0, true, "condition %q is not declared", name)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (d *Definition) newTimeline(cfg buildConfig) (*timeline.Timeline, error) {
	const op = "hcl.Build"
	var opts []timeline.Option
	if cfg.registry != nil {
		opts = append(opts, timeline.WithTimelineRegistry(cfg.registry))
	}
	if cfg.startTime != nil {
		opts = append(opts, timeline.WithStartTime(*cfg.startTime))
	}

	tb := d.Timeline
	if tb == nil {
		return timeline.New(opts...)
	}
	if tb.Unit != nil {
		u, err := timeline.ParseTimeUnit(*tb.Unit)
		if err != nil {
			return nil, err
		}
		opts = append(opts, timeline.WithUnit(u))
	}
	if tb.StartTime != nil {
		st, err := time.Parse(time.RFC3339, *tb.StartTime)
		if err != nil {
			return nil, timeline.NewInvalidValue(op, "start_time must be RFC3339, got %q", *tb.StartTime)
		}
		opts = append(opts, timeline.WithStartTime(st))
	}
	if tb.Length != nil {
		opts = append(opts, timeline.WithLength(*tb.Length))
	}
	if tb.SamplingRate != nil {
		opts = append(opts, timeline.WithSamplingRate(*tb.SamplingRate))
	}
	if tb.Init != nil {
		opts = append(opts, timeline.WithInit(*tb.Init))
	}
	if tb.End != nil {
		opts = append(opts, timeline.WithEnd(*tb.End))
	}
	if tb.TimeMultiplier != nil {
		opts = append(opts, timeline.WithTimeMultiplier(*tb.TimeMultiplier))
	}

	tl, err := timeline.New(opts...)
	if err != nil {
		return nil, err
	}
	if len(tb.Timestamps) > 0 {
		if err := tl.SetTimestamps(tb.Timestamps); err != nil {
			return nil, err
		}
	}
	return tl, nil
}

// newEvent defaults the event unit to the timeline's unit and multiplier
func (d *Definition) newEvent(tl *timeline.Timeline, eb EventBlock, cfg buildConfig) (*timeline.Event, error) {
	kind := tl.Unit().Kind()
	if eb.Unit != nil {
		u, err := timeline.ParseTimeUnit(*eb.Unit)
		if err != nil {
			return nil, err
		}
		kind = u
	}
	multiplier := 0.0
	if kind == timeline.Second {
		multiplier = tl.TimeMultiplier()
	}
	if eb.Multiplier != nil {
		multiplier = *eb.Multiplier
	}

	opts := []timeline.EventOption{timeline.InUnit(kind, multiplier)}
	if eb.Onset != nil {
		opts = append(opts, timeline.WithOnset(*eb.Onset))
	}
	if eb.Duration != nil {
		opts = append(opts, timeline.WithDuration(*eb.Duration))
	}
	if eb.End != nil {
		opts = append(opts, timeline.WithEventEnd(*eb.End))
	}
	switch {
	case eb.ID != nil:
		opts = append(opts, timeline.WithEventID(*eb.ID))
	case cfg.registry != nil:
		opts = append(opts, timeline.WithEventRegistry(cfg.registry))
	}
	if eb.Payload != nil {
		val, diags := eb.Payload.Expr.Value(d.evalCtx)
		if diags.HasErrors() {
			return nil, timeline.NewTypeMismatch("hcl.Build", "failed to evaluate payload: %s", diags.Error())
		}
		opts = append(opts, timeline.WithPayload(hclValueToInterface(val)))
	}
	return timeline.NewEvent(opts...)
}
