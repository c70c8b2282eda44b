// Package transport carries request/response messages between the
// coordinator and page executors. A send either resolves with the
// executor's envelope, fails because nothing is listening on the target, or
// times out. It never resolves twice.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/entrhq/lumina/pkg/types"
)

// DefaultTimeout applies when Send is called with a zero timeout.
const DefaultTimeout = 30 * time.Second

const (
	reasonNoReceiver = "Could not establish connection. Receiving end does not exist."
	reasonPortClosed = "The message port closed before a response was received."
)

// ErrTimeout is returned when no response arrives within the send timeout.
var ErrTimeout = errors.New("Message timeout")

// Handle identifies a page (tab) that an executor may be attached to.
type Handle string

// Message is one request on the wire.
type Message struct {
	Type    types.CommandType `json:"type"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// NewMessage encodes payload into a Message of type t. A nil payload is
// left empty.
func NewMessage(t types.CommandType, payload any) (Message, error) {
	cmd, err := types.NewCommand(t, payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: cmd.Type, Payload: cmd.Payload}, nil
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	return types.Command{Type: m.Type, Payload: m.Payload}.DecodePayload(v)
}

// Handler answers a message. It runs on its own goroutine per message.
type Handler func(ctx context.Context, msg Message) types.Envelope

// Transport is the coordinator's view of the bus.
type Transport interface {
	// Send delivers msg to target and waits up to timeout for the envelope.
	Send(ctx context.Context, target Handle, msg Message, timeout time.Duration) (*types.Envelope, error)

	// AwaitReady blocks until an executor on target has announced itself or
	// within elapses. It reports whether the target is ready.
	AwaitReady(ctx context.Context, target Handle, within time.Duration) bool
}

// UnreachableError means no executor received or answered the message.
type UnreachableError struct {
	Target Handle
	Reason string
}

func (e *UnreachableError) Error() string {
	return e.Reason
}

// IsUnreachable reports whether err is an *UnreachableError.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// Result folds a Send outcome into a ToolResult. Transport failures become
// failed results carrying the error text; the envelope body is kept as-is.
func Result(env *types.Envelope, err error) types.ToolResult {
	if err != nil {
		return types.ToolResult{Success: false, Error: err.Error()}
	}
	if env == nil {
		return types.ToolResult{Success: true}
	}
	res := types.ToolResult{Success: env.Success, Error: env.Error}
	if len(env.Data) > 0 {
		var data any
		if jerr := json.Unmarshal(env.Data, &data); jerr == nil {
			res.Data = data
		}
	}
	return res.Normalize()
}
