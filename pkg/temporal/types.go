package temporal

import (
	"time"

	"github.com/leowmjw/go-timeline-annotations/pkg/hcl"
	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

// CommandType names an operation on a hosted timeline (enum-style)
type CommandType string

// Command types
const (
	AddEvents             CommandType = "add_events"
	RemoveEvents          CommandType = "remove_events"
	SetEvents             CommandType = "set_events"
	ClearEvents           CommandType = "clear_events"
	AddConditions         CommandType = "add_conditions"
	RemoveConditions      CommandType = "remove_conditions"
	SetConditions         CommandType = "set_conditions"
	ClearConditions       CommandType = "clear_conditions"
	AssociateEvents       CommandType = "associate_events"
	DissociateEvents      CommandType = "dissociate_events"
	AllowOverlap          CommandType = "allow_overlap"
	ForbidOverlap         CommandType = "forbid_overlap"
	SetOverlapPermissions CommandType = "set_overlap_permissions"
	ChangeExtent          CommandType = "change_extent"
	ConvertToSeconds      CommandType = "to_seconds"
	ConvertToSamples      CommandType = "to_samples"
	Close                 CommandType = "close"
)

// Command is one edit of a hosted timeline. Which fields are read depends on Type:
//   - add_events, set_events: Events (set_events pairs them with EventIDs)
//   - add_conditions, set_conditions: Conditions (set_conditions pairs them with ConditionIDs)
//   - remove_*, associate_events, dissociate_events: EventIDs and/or ConditionIDs
//   - allow_overlap, forbid_overlap, set_overlap_permissions: Pairs
//   - change_extent: Extent
type Command struct {
	ID           string                   `json:"id,omitempty"`
	Type         CommandType              `json:"type"`
	Events       []EventSpec              `json:"events,omitempty"`
	Conditions   []ConditionSpec          `json:"conditions,omitempty"`
	EventIDs     []int                    `json:"eventIds,omitempty"`
	ConditionIDs []int                    `json:"conditionIds,omitempty"`
	Pairs        []timeline.ConditionPair `json:"pairs,omitempty"`
	Extent       *ExtentChange            `json:"extent,omitempty"`
}

// EventSpec describes an event to create. Any subset of onset, duration and
// end may be given. Unit and multiplier default to the timeline's.
type EventSpec struct {
	ID         *int        `json:"id,omitempty"`
	Onset      *float64    `json:"onset,omitempty"`
	Duration   *float64    `json:"duration,omitempty"`
	End        *float64    `json:"end,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	Multiplier *float64    `json:"multiplier,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
}

// ConditionSpec describes a condition to create
type ConditionSpec struct {
	ID          *int   `json:"id,omitempty"`
	Tag         string `json:"tag"`
	Description string `json:"description,omitempty"`
}

// ExtentChange edits the time axis. Fields are applied in declaration order
// and the change is all-or-nothing.
type ExtentChange struct {
	StartTime      *time.Time `json:"startTime,omitempty"`
	Timestamps     []float64  `json:"timestamps,omitempty"`
	TimeMultiplier *float64   `json:"timeMultiplier,omitempty"`
	SamplingRate   *float64   `json:"samplingRate,omitempty"`
	Init           *float64   `json:"init,omitempty"`
	Length         *int       `json:"length,omitempty"`
	End            *float64   `json:"end,omitempty"`
}

// CommandSignal carries a batch of commands, applied in order
type CommandSignal struct {
	Commands []Command `json:"commands"`
}

// CommandOutcome is the journal entry for one command
type CommandOutcome struct {
	Seq        int               `json:"seq"`
	CommandID  string            `json:"commandId,omitempty"`
	Type       CommandType       `json:"type"`
	Applied    bool              `json:"applied"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  string            `json:"errorKind,omitempty"`
	Warnings   timeline.Warnings `json:"warnings,omitempty"`
	CreatedIDs []int             `json:"createdIds,omitempty"`
	At         time.Time         `json:"at"`
}

// DefinitionDocument is a timeline definition in HCL or HCL JSON
type DefinitionDocument struct {
	Content string `json:"content"`
	Format  string `json:"format,omitempty"` // hcl.ContentTypeHCL or hcl.ContentTypeJSON; sniffed if empty
}

// AnnotationRequest starts an annotation workflow. The timeline is built from
// Definition, or from the stored definition DefinitionName, or with defaults
// when neither is given.
type AnnotationRequest struct {
	TimelineID     string              `json:"timelineId"`
	Definition     *DefinitionDocument `json:"definition,omitempty"`
	DefinitionName string              `json:"definitionName,omitempty"`
	JournalLimit   int                 `json:"journalLimit,omitempty"`
	IdleTimeout    time.Duration       `json:"idleTimeout,omitempty"` // close after this long without commands; 0 waits forever
}

// AnnotationResult is returned when the workflow closes
type AnnotationResult struct {
	TimelineID string            `json:"timelineId"`
	Snapshot   timeline.Snapshot `json:"snapshot"`
	Index      *hcl.Index        `json:"index,omitempty"`
	Applied    int               `json:"applied"`
	Failed     int               `json:"failed"`
	ClosedBy   string            `json:"closedBy"`
}
