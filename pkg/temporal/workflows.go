package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/leowmjw/go-timeline-annotations/pkg/hcl"
	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

const (
	// Workflow IDs
	AnnotationWorkflowIDPrefix = "annotations-"

	// Signal names
	CommandSignalName = "timeline-commands"

	// Query names
	SnapshotQueryName = "snapshot"
	JournalQueryName  = "journal"
	IndexQueryName    = "index"

	// Activity names
	LoadDefinitionActivityName = "load-definition"

	// Default values
	DefaultTaskQueue    = "timeline-annotations"
	DefaultJournalLimit = 256 // outcomes kept for the journal query

	// Reasons the workflow closed
	ClosedByCommand = "command"
	ClosedByIdle    = "idle"
)

// annotationState is everything the workflow owns. Commands run one at a
// time on the workflow goroutine, so the timeline has a single writer.
type annotationState struct {
	timelineID string
	tl         *timeline.Timeline
	registry   *timeline.IDRegistry
	index      *hcl.Index
	journal    []CommandOutcome
	limit      int
	seq        int
	applied    int
	failed     int
	closedBy   string
}

// AnnotationWorkflow hosts one timeline. It builds the timeline from the
// request's definition and then applies commands received on the
// CommandSignalName signal until a close command arrives or the idle timeout
// elapses. The current snapshot and the journal of command outcomes are
// served through query handlers.
func AnnotationWorkflow(ctx workflow.Context, request AnnotationRequest) (*AnnotationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting annotation workflow", "timelineID", request.TimelineID)

	doc := request.Definition
	if doc == nil && request.DefinitionName != "" {
		ao := workflow.ActivityOptions{
			ScheduleToCloseTimeout: 30 * time.Second,
			RetryPolicy: &temporal.RetryPolicy{
				MaximumAttempts: 3,
			},
		}
		actCtx := workflow.WithActivityOptions(ctx, ao)

		var loaded DefinitionDocument
		err := workflow.ExecuteActivity(actCtx, LoadDefinitionActivityName, request.DefinitionName).Get(ctx, &loaded)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition %s: %w", request.DefinitionName, err)
		}
		doc = &loaded
	}

	state := &annotationState{
		timelineID: request.TimelineID,
		registry:   timeline.NewIDRegistry(),
		limit:      request.JournalLimit,
	}
	if state.limit <= 0 {
		state.limit = DefaultJournalLimit
	}

	if err := state.build(ctx, doc); err != nil {
		logger.Error("Failed to build timeline", "timelineID", request.TimelineID, "error", err)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidDefinition", err)
	}

	err := workflow.SetQueryHandler(ctx, SnapshotQueryName, func() (timeline.Snapshot, error) {
		return state.tl.Snapshot(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register snapshot query: %w", err)
	}
	err = workflow.SetQueryHandler(ctx, JournalQueryName, func() ([]CommandOutcome, error) {
		return append([]CommandOutcome(nil), state.journal...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register journal query: %w", err)
	}
	err = workflow.SetQueryHandler(ctx, IndexQueryName, func() (*hcl.Index, error) {
		return state.index, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register index query: %w", err)
	}

	signalChan := workflow.GetSignalChannel(ctx, CommandSignalName)
	for state.closedBy == "" {
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(signalChan, func(c workflow.ReceiveChannel, more bool) {
			var signal CommandSignal
			c.Receive(ctx, &signal)
			state.applySignal(ctx, signal)
		})

		var cancelTimer workflow.CancelFunc
		if request.IdleTimeout > 0 {
			var timerCtx workflow.Context
			timerCtx, cancelTimer = workflow.WithCancel(ctx)
			selector.AddFuture(workflow.NewTimer(timerCtx, request.IdleTimeout), func(f workflow.Future) {
				if err := f.Get(timerCtx, nil); err == nil {
					logger.Info("Closing idle annotation workflow", "timelineID", request.TimelineID)
					state.closedBy = ClosedByIdle
				}
			})
		}

		selector.Select(ctx)
		if cancelTimer != nil {
			cancelTimer()
		}
	}

	// Commands that raced with the close are dropped
	var late CommandSignal
	for signalChan.ReceiveAsync(&late) {
		logger.Warn("Dropping commands received after close", "timelineID", request.TimelineID, "count", len(late.Commands))
	}

	logger.Info("Annotation workflow completed", "timelineID", request.TimelineID, "applied", state.applied, "failed", state.failed)
	return &AnnotationResult{
		TimelineID: request.TimelineID,
		Snapshot:   state.tl.Snapshot(),
		Index:      state.index,
		Applied:    state.applied,
		Failed:     state.failed,
		ClosedBy:   state.closedBy,
	}, nil
}

func (s *annotationState) build(ctx workflow.Context, doc *DefinitionDocument) error {
	logger := workflow.GetLogger(ctx)
	if doc == nil {
		tl, err := timeline.New(timeline.WithTimelineRegistry(s.registry), timeline.WithStartTime(workflow.Now(ctx)))
		if err != nil {
			return err
		}
		s.tl = tl
		return nil
	}

	def, err := hcl.ParseDefinitionDocument([]byte(doc.Content), doc.Format)
	if err != nil {
		return err
	}
	tl, ix, ws, err := def.BuildWith(s.registry, hcl.WithDefaultStartTime(workflow.Now(ctx)))
	if err != nil {
		return err
	}
	for _, w := range ws {
		logger.Warn("Definition warning", "timelineID", s.timelineID, "warning", w.String())
	}
	s.tl, s.index = tl, ix
	return nil
}

func (s *annotationState) applySignal(ctx workflow.Context, signal CommandSignal) {
	logger := workflow.GetLogger(ctx)
	for _, cmd := range signal.Commands {
		s.seq++
		var outcome CommandOutcome
		if s.closedBy != "" {
			outcome = CommandOutcome{CommandID: cmd.ID, Type: cmd.Type, Error: "timeline is closed"}
		} else {
			s.tl, outcome = ApplyCommand(s.tl, s.registry, cmd)
		}
		outcome.Seq = s.seq
		outcome.At = workflow.Now(ctx)

		if outcome.Applied {
			s.applied++
			if cmd.Type == Close {
				s.closedBy = ClosedByCommand
			}
		} else {
			s.failed++
			logger.Warn("Command failed", "timelineID", s.timelineID, "type", cmd.Type, "error", outcome.Error)
		}
		s.record(outcome)
	}
}

// record appends to the journal, keeping only the newest limit outcomes
func (s *annotationState) record(outcome CommandOutcome) {
	s.journal = append(s.journal, outcome)
	if over := len(s.journal) - s.limit; over > 0 {
		s.journal = append([]CommandOutcome(nil), s.journal[over:]...)
	}
}

// GenerateAnnotationWorkflowID creates the workflow ID hosting a timeline
func GenerateAnnotationWorkflowID(timelineID string) string {
	return AnnotationWorkflowIDPrefix + timelineID
}
