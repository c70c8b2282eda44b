package types

import "time"

// RunOutcome describes where a run is in its lifecycle.
type RunOutcome string

const (
	OutcomeIdle      RunOutcome = "idle"
	OutcomeRunning   RunOutcome = "running"
	OutcomeCompleted RunOutcome = "completed"
	OutcomeStopped   RunOutcome = "stopped"
	OutcomeFailed    RunOutcome = "failed"
)

// RunSnapshot is a copy of the coordinator's run state at one instant.
type RunSnapshot struct {
	RunID       string       `json:"runId,omitempty"`
	Running     bool         `json:"running"`
	CurrentStep int          `json:"currentStep"`
	TotalSteps  int          `json:"totalSteps"`
	Goal        string       `json:"goal"`
	DryRun      bool         `json:"dryRun"`
	Outcome     RunOutcome   `json:"outcome"`
	Trace       []TraceEntry `json:"trace"`
	StartedAt   time.Time    `json:"startedAt,omitempty"`
	FinishedAt  time.Time    `json:"finishedAt,omitempty"`
}

// Status is the AGENT_STATUS projection of a snapshot.
type Status struct {
	Running     bool   `json:"running"`
	CurrentStep int    `json:"currentStep"`
	TotalSteps  int    `json:"totalSteps"`
	Goal        string `json:"goal"`
	DryRun      bool   `json:"dryRun"`
}

// Status projects the snapshot onto the status fields.
func (s RunSnapshot) Status() Status {
	return Status{
		Running:     s.Running,
		CurrentStep: s.CurrentStep,
		TotalSteps:  s.TotalSteps,
		Goal:        s.Goal,
		DryRun:      s.DryRun,
	}
}
