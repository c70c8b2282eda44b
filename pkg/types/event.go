package types

import "time"

// RunEventType defines the type of event emitted by the coordinator.
type RunEventType string

const (
	EventTypeRunStarted    RunEventType = "run_started"    // EventTypeRunStarted indicates a run entered the running state.
	EventTypeStepStarted   RunEventType = "step_started"   // EventTypeStepStarted indicates a step is about to execute.
	EventTypeStepCompleted RunEventType = "step_completed" // EventTypeStepCompleted indicates a step's trace entry was recorded.
	EventTypeRunFinished   RunEventType = "run_finished"   // EventTypeRunFinished indicates the run loop exited.
	EventTypePickerResult  RunEventType = "picker_result"  // EventTypePickerResult carries a selector picked on the page.
)

// RunEvent represents an event emitted while runs execute.
type RunEvent struct {
	// Type indicates the kind of event.
	Type RunEventType `json:"type"`

	// RunID identifies the run that produced the event.
	RunID string `json:"runId,omitempty"`

	// Step is the planned step (step_started) or its trace entry (step_completed).
	Step *TraceEntry `json:"step,omitempty"`

	// Snapshot is the run state for run_started and run_finished events.
	Snapshot *RunSnapshot `json:"snapshot,omitempty"`

	// Selector is the picked selector for picker events; nil when cancelled.
	Selector *string `json:"selector,omitempty"`

	Time time.Time `json:"time"`
}

// NewRunStartedEvent creates a run started event.
func NewRunStartedEvent(snapshot RunSnapshot) *RunEvent {
	return &RunEvent{
		Type:     EventTypeRunStarted,
		RunID:    snapshot.RunID,
		Snapshot: &snapshot,
		Time:     time.Now(),
	}
}

// NewStepStartedEvent creates a step started event.
func NewStepStartedEvent(runID string, step PlannedStep) *RunEvent {
	return &RunEvent{
		Type:  EventTypeStepStarted,
		RunID: runID,
		Step: &TraceEntry{
			Index:    step.Index,
			Thought:  step.Thought,
			ToolCall: step.ToolCall.Clone(),
		},
		Time: time.Now(),
	}
}

// NewStepCompletedEvent creates a step completed event.
func NewStepCompletedEvent(runID string, entry TraceEntry) *RunEvent {
	return &RunEvent{
		Type:  EventTypeStepCompleted,
		RunID: runID,
		Step:  &entry,
		Time:  time.Now(),
	}
}

// NewRunFinishedEvent creates a run finished event.
func NewRunFinishedEvent(snapshot RunSnapshot) *RunEvent {
	return &RunEvent{
		Type:     EventTypeRunFinished,
		RunID:    snapshot.RunID,
		Snapshot: &snapshot,
		Time:     time.Now(),
	}
}

// NewPickerResultEvent creates a picker result event.
func NewPickerResultEvent(selector *string) *RunEvent {
	return &RunEvent{
		Type:     EventTypePickerResult,
		Selector: selector,
		Time:     time.Now(),
	}
}
