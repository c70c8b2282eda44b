package types

import (
	"encoding/json"
	"fmt"
)

// ToolResult is the canonical outcome of any tool invocation. It is returned
// by the executor for every tool and by the coordinator's dispatcher.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok returns a successful result carrying data.
func Ok(data any) ToolResult {
	return ToolResult{Success: true, Data: data}
}

// Failf returns a failed result with a formatted error message.
func Failf(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Normalize guarantees that a failed result always carries an error message.
func (r ToolResult) Normalize() ToolResult {
	if !r.Success && r.Error == "" {
		r.Error = "tool failed without reporting an error"
	}
	return r
}

// Envelope is the wire-level response of the page executor. For tool calls the
// executor wraps its ToolResult once more: {success:true, data:<ToolResult>}.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewEnvelope wraps a payload into a successful envelope.
func NewEnvelope(payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Success: true}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode envelope payload: %w", err)
	}
	return Envelope{Success: true, Data: raw}, nil
}

// FailedEnvelope builds an envelope for a fault at the executor's listener.
func FailedEnvelope(format string, args ...any) Envelope {
	return Envelope{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Unwrap reaches the ToolResult carried inside the envelope.
//
// A failed envelope becomes a failed ToolResult with the envelope error. A
// successful envelope without a body is treated as {success:true}.
func (e Envelope) Unwrap() ToolResult {
	if !e.Success {
		return ToolResult{Success: false, Error: e.Error}.Normalize()
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return ToolResult{Success: true}
	}

	var inner struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(e.Data, &inner); err != nil || inner.Success == nil {
		// Not a ToolResult; hand the body back as opaque data.
		var data any
		_ = json.Unmarshal(e.Data, &data)
		return ToolResult{Success: true, Data: data}
	}

	result := ToolResult{Success: *inner.Success, Error: inner.Error}
	if len(inner.Data) > 0 {
		var data any
		if err := json.Unmarshal(inner.Data, &data); err == nil {
			result.Data = data
		}
	}
	return result.Normalize()
}

// Decode decodes the envelope body into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope has no data")
	}
	return json.Unmarshal(e.Data, v)
}
