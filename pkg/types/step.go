package types

import (
	"encoding/json"
	"time"
)

// ToolCall names a tool and its arguments.
type ToolCall struct {
	Name string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ArgsJSON renders the arguments the way they appear in observations.
func (c ToolCall) ArgsJSON() string {
	if len(c.Args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(c.Args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// Clone returns a deep copy so the call can cross a process boundary by value.
func (c ToolCall) Clone() ToolCall {
	out := ToolCall{Name: c.Name}
	if c.Args == nil {
		return out
	}
	raw, err := json.Marshal(c.Args)
	if err != nil {
		out.Args = make(map[string]any, len(c.Args))
		for k, v := range c.Args {
			out.Args[k] = v
		}
		return out
	}
	_ = json.Unmarshal(raw, &out.Args)
	return out
}

// PlannedStep is one step produced by the planner before a run begins.
type PlannedStep struct {
	// Index is 1-based.
	Index    int      `json:"step"`
	Thought  string   `json:"thought"`
	ToolCall ToolCall `json:"action"`

	// Diagnostic marks the single no-op step the planner emits when it could
	// not understand the goal.
	Diagnostic bool `json:"diagnostic,omitempty"`
}

// TraceEntry records one executed or simulated step.
type TraceEntry struct {
	Index       int           `json:"step"`
	Thought     string        `json:"thought"`
	ToolCall    ToolCall      `json:"action"`
	Observation string        `json:"observation"`
	Success     bool          `json:"success"`
	DryRun      bool          `json:"dryRun,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
}
