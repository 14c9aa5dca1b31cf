package temporal

import (
	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

// ApplyCommand runs one command against a clone of tl and returns the
// timeline to keep: the edited clone on success, tl itself on failure.
// New events and conditions draw their ids from reg.
func ApplyCommand(tl *timeline.Timeline, reg *timeline.IDRegistry, cmd Command) (*timeline.Timeline, CommandOutcome) {
	outcome := CommandOutcome{CommandID: cmd.ID, Type: cmd.Type}
	next := tl.Clone()
	ws, created, err := applyTo(next, reg, cmd)
	if err != nil {
		outcome.Error = err.Error()
		if kind, ok := timeline.KindOf(err); ok {
			outcome.ErrorKind = kind.String()
		}
		return tl, outcome
	}
	outcome.Applied = true
	outcome.Warnings = ws
	outcome.CreatedIDs = created
	return next, outcome
}

func applyTo(tl *timeline.Timeline, reg *timeline.IDRegistry, cmd Command) (timeline.Warnings, []int, error) {
	switch cmd.Type {
	case AddEvents:
		evs, err := buildEvents(tl, reg, cmd.Events, nil)
		if err != nil {
			return nil, nil, err
		}
		before := tl.EventIDs()
		ws, err := tl.AddEvents(evs...)
		if err != nil {
			return nil, nil, err
		}
		return ws, newIDs(before, tl.EventIDs()), nil

	case RemoveEvents:
		return tl.RemoveEvents(cmd.EventIDs...), nil, nil

	case SetEvents:
		evs, err := buildEvents(tl, reg, cmd.Events, cmd.EventIDs)
		if err != nil {
			return nil, nil, err
		}
		ws, err := tl.SetEvents(cmd.EventIDs, evs)
		return ws, nil, err

	case ClearEvents:
		tl.ClearEvents()
		return nil, nil, nil

	case AddConditions:
		conds := buildConditions(reg, cmd.Conditions, nil)
		before := tl.ConditionIDs()
		ws, err := tl.AddConditions(conds...)
		if err != nil {
			return nil, nil, err
		}
		return ws, newIDs(before, tl.ConditionIDs()), nil

	case RemoveConditions:
		return tl.RemoveConditions(cmd.ConditionIDs...), nil, nil

	case SetConditions:
		conds := buildConditions(reg, cmd.Conditions, cmd.ConditionIDs)
		ws, err := tl.SetConditions(cmd.ConditionIDs, conds)
		return ws, nil, err

	case ClearConditions:
		tl.ClearConditions()
		return nil, nil, nil

	case AssociateEvents:
		ws, err := tl.AssociateEvents(cmd.EventIDs, cmd.ConditionIDs)
		return ws, nil, err

	case DissociateEvents:
		return tl.DissociateEvents(cmd.EventIDs, cmd.ConditionIDs), nil, nil

	case AllowOverlap:
		ws, err := tl.AllowOverlap(cmd.Pairs...)
		return ws, nil, err

	case ForbidOverlap:
		ws, err := tl.ForbidOverlap(cmd.Pairs...)
		return ws, nil, err

	case SetOverlapPermissions:
		ws, err := tl.SetOverlapPermissions(cmd.Pairs...)
		return ws, nil, err

	case ChangeExtent:
		if cmd.Extent == nil {
			return nil, nil, timeline.NewInvalidValue("ApplyCommand", "change_extent needs an extent")
		}
		return nil, nil, applyExtent(tl, *cmd.Extent)

	case ConvertToSeconds:
		ws, err := tl.ToSeconds()
		return ws, nil, err

	case ConvertToSamples:
		ws, err := tl.ToSamples()
		return ws, nil, err

	case Close:
		return nil, nil, nil

	default:
		return nil, nil, timeline.NewInvalidValue("ApplyCommand", "unknown command type %q", cmd.Type)
	}
}

func applyExtent(tl *timeline.Timeline, x ExtentChange) error {
	if x.StartTime != nil {
		tl.SetStartTime(*x.StartTime)
	}
	if len(x.Timestamps) > 0 {
		if err := tl.SetTimestamps(x.Timestamps); err != nil {
			return err
		}
	}
	if x.TimeMultiplier != nil {
		if err := tl.SetTimeMultiplier(*x.TimeMultiplier); err != nil {
			return err
		}
	}
	if x.SamplingRate != nil {
		if err := tl.SetSamplingRate(*x.SamplingRate); err != nil {
			return err
		}
	}
	if x.Init != nil {
		if err := tl.SetInit(*x.Init); err != nil {
			return err
		}
	}
	if x.Length != nil {
		if err := tl.SetLength(*x.Length); err != nil {
			return err
		}
	}
	if x.End != nil {
		if err := tl.SetEnd(*x.End); err != nil {
			return err
		}
	}
	return nil
}

// buildEvents turns specs into events. When replacing (ids != nil) a spec
// without an id keeps the id it replaces.
func buildEvents(tl *timeline.Timeline, reg *timeline.IDRegistry, specs []EventSpec, ids []int) ([]*timeline.Event, error) {
	evs := make([]*timeline.Event, 0, len(specs))
	for i, spec := range specs {
		kind := tl.Unit().Kind()
		if spec.Unit != "" {
			u, err := timeline.ParseTimeUnit(spec.Unit)
			if err != nil {
				return nil, err
			}
			kind = u
		}
		multiplier := 0.0
		if kind == timeline.Second {
			multiplier = tl.TimeMultiplier()
		}
		if spec.Multiplier != nil {
			multiplier = *spec.Multiplier
		}

		opts := []timeline.EventOption{timeline.InUnit(kind, multiplier), timeline.WithPayload(spec.Payload)}
		if spec.Onset != nil {
			opts = append(opts, timeline.WithOnset(*spec.Onset))
		}
		if spec.Duration != nil {
			opts = append(opts, timeline.WithDuration(*spec.Duration))
		}
		if spec.End != nil {
			opts = append(opts, timeline.WithEventEnd(*spec.End))
		}
		switch {
		case spec.ID != nil:
			opts = append(opts, timeline.WithEventID(*spec.ID))
		case i < len(ids):
			opts = append(opts, timeline.WithEventID(ids[i]))
		default:
			opts = append(opts, timeline.WithEventRegistry(reg))
		}

		ev, err := timeline.NewEvent(opts...)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

func buildConditions(reg *timeline.IDRegistry, specs []ConditionSpec, ids []int) []*timeline.Condition {
	conds := make([]*timeline.Condition, 0, len(specs))
	for i, spec := range specs {
		var opt timeline.ConditionOption
		switch {
		case spec.ID != nil:
			opt = timeline.WithConditionID(*spec.ID)
		case i < len(ids):
			opt = timeline.WithConditionID(ids[i])
		default:
			opt = timeline.WithConditionRegistry(reg)
		}
		conds = append(conds, timeline.NewCondition(spec.Tag, spec.Description, opt))
	}
	return conds
}

// newIDs lists the ids in after that are not in before. Both are sorted.
func newIDs(before, after []int) []int {
	var out []int
	i := 0
	for _, id := range after {
		for i < len(before) && before[i] < id {
			i++
		}
		if i < len(before) && before[i] == id {
			continue
		}
		out = append(out, id)
	}
	return out
}
