package timeline

import "time"

// Snapshot is a detached, serializable view of a timeline for collaborators
// such as query handlers and CLIs. It is not a persistence format; there is
// no way back from a Snapshot to a Timeline.
type Snapshot struct {
	ID                 int             `json:"id" yaml:"id"`
	Version            string          `json:"version" yaml:"version"`
	StartTime          time.Time       `json:"startTime" yaml:"startTime"`
	Unit               UnitSnapshot    `json:"unit" yaml:"unit"`
	SamplingRate       float64         `json:"samplingRate" yaml:"samplingRate"`
	Uniform            bool            `json:"uniform" yaml:"uniform"`
	TimeMultiplier     float64         `json:"timeMultiplier" yaml:"timeMultiplier"`
	Init               float64         `json:"init" yaml:"init"`
	End                float64         `json:"end" yaml:"end"`
	Length             int             `json:"length" yaml:"length"`
	Timestamps         []float64       `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
	Events             []EventView     `json:"events" yaml:"events"`
	Conditions         []ConditionView `json:"conditions" yaml:"conditions"`
	OverlapPermissions []ConditionPair `json:"overlapPermissions" yaml:"overlapPermissions"`
}

type UnitSnapshot struct {
	Name       string  `json:"name" yaml:"name"`
	Acronym    string  `json:"acronym" yaml:"acronym"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	IsStandard bool    `json:"isStandard" yaml:"isStandard"`
}

type EventView struct {
	ID       int          `json:"id" yaml:"id"`
	Onset    float64      `json:"onset" yaml:"onset"`
	Duration float64      `json:"duration" yaml:"duration"`
	End      float64      `json:"end" yaml:"end"`
	Unit     UnitSnapshot `json:"unit" yaml:"unit"`
	Payload  interface{}  `json:"payload,omitempty" yaml:"payload,omitempty"`
}

type ConditionView struct {
	ID          int    `json:"id" yaml:"id"`
	Tag         string `json:"tag" yaml:"tag"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Events      []int  `json:"events" yaml:"events"`
}

// SnapshotOption tunes Snapshot
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	timestamps bool
}

// WithTimestamps includes the full time axis, which can be long
func WithTimestamps() SnapshotOption {
	return func(c *snapshotConfig) { c.timestamps = true }
}

func unitSnapshot(u MeasurementUnit) UnitSnapshot {
	return UnitSnapshot{Name: u.name, Acronym: u.acronym, Multiplier: u.multiplier, IsStandard: u.isStandard}
}

// Snapshot renders the timeline. Events are ordered by onset, conditions by id.
func (t *Timeline) Snapshot(opts ...SnapshotOption) Snapshot {
	var cfg snapshotConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	s := Snapshot{
		ID:                 t.id,
		Version:            t.Version(),
		StartTime:          t.startTime,
		Unit:               unitSnapshot(t.unit),
		SamplingRate:       t.samplingRate,
		Uniform:            t.IsUniform(),
		TimeMultiplier:     t.timeMultiplier,
		Init:               t.Init(),
		End:                t.End(),
		Length:             t.Length(),
		Events:             make([]EventView, 0, len(t.events)),
		Conditions:         make([]ConditionView, 0, len(t.conditions)),
		OverlapPermissions: t.OverlapPermissions(),
	}
	if cfg.timestamps {
		s.Timestamps = t.Timestamps()
	}
	for _, ev := range SortEventsByOnset(t.Events()) {
		s.Events = append(s.Events, EventView{
			ID:       ev.id,
			Onset:    ev.onset,
			Duration: ev.duration,
			End:      ev.End(),
			Unit:     unitSnapshot(ev.unit),
			Payload:  ev.payload,
		})
	}
	for _, c := range t.Conditions() {
		s.Conditions = append(s.Conditions, ConditionView{
			ID:          c.id,
			Tag:         c.tag,
			Description: c.description,
			Events:      sortedKeys(t.conditionEvents[c.id]),
		})
	}
	return s
}
