package types

import (
	"encoding/json"
	"fmt"
)

// CommandType tags a control or page message.
type CommandType string

const (
	CommandExecuteTool      CommandType = "EXECUTE_TOOL"
	CommandStartAgent       CommandType = "START_AGENT"
	CommandStopAgent        CommandType = "STOP_AGENT"
	CommandAgentStatus      CommandType = "AGENT_STATUS"
	CommandTogglePicker     CommandType = "TOGGLE_PICKER"
	CommandPickerResult     CommandType = "PICKER_RESULT"
	CommandValidateSelector CommandType = "VALIDATE_SELECTOR"
	CommandGetTrace         CommandType = "GET_TRACE"
	CommandClearTraces      CommandType = "CLEAR_TRACES"
)

// Command is a tagged request sent to the coordinator by a UI caller.
type Command struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewCommand builds a command with an encoded payload.
func NewCommand(t CommandType, payload any) (Command, error) {
	cmd := Command{Type: t}
	if payload == nil {
		return cmd, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	cmd.Payload = raw
	return cmd, nil
}

// DecodePayload decodes the payload into v. An absent payload leaves v untouched.
func (c Command) DecodePayload(v any) error {
	if len(c.Payload) == 0 || string(c.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", c.Type, err)
	}
	return nil
}

// Response answers a Command. It has the same shape as ToolResult.
type Response = ToolResult

// ExecuteToolPayload is the EXECUTE_TOOL request body, both from UI callers
// and on the coordinator→executor wire.
type ExecuteToolPayload struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Timeout int            `json:"timeout,omitempty"`
}

// StartAgentPayload is the START_AGENT request body.
type StartAgentPayload struct {
	Goal     string `json:"goal"`
	MaxSteps int    `json:"maxSteps,omitempty"`
	DryRun   bool   `json:"dryRun,omitempty"`
}

// TogglePickerPayload is the TOGGLE_PICKER request body.
type TogglePickerPayload struct {
	Enabled bool `json:"enabled"`
}

// ValidateSelectorPayload is the VALIDATE_SELECTOR request body.
type ValidateSelectorPayload struct {
	Selector string `json:"selector"`
}

// PickerResultPayload reports the picked selector; nil means cancelled.
type PickerResultPayload struct {
	Selector *string `json:"selector"`
}
