// Package executor runs tools against a page. It is the receiving end of the
// transport: the coordinator sends EXECUTE_TOOL, VALIDATE_SELECTOR and
// TOGGLE_PICKER messages and the executor answers each with an envelope.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/entrhq/lumina/pkg/logging"
	"github.com/entrhq/lumina/pkg/page"
	"github.com/entrhq/lumina/pkg/tools"
	"github.com/entrhq/lumina/pkg/transport"
	"github.com/entrhq/lumina/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("executor")
	if err != nil {
		debugLog.Warnf("Failed to initialize executor logger, using stderr fallback: %v", err)
	}
}

// Options holds the executor's fixed waits.
type Options struct {
	ClickSettle  time.Duration
	TypeSettle   time.Duration
	ScrollSettle time.Duration
	PollInterval time.Duration
	HighlightFor time.Duration
}

// DefaultOptions returns the waits a live page needs.
func DefaultOptions() Options {
	return Options{
		ClickSettle:  300 * time.Millisecond,
		TypeSettle:   200 * time.Millisecond,
		ScrollSettle: 500 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
		HighlightFor: 3000 * time.Millisecond,
	}
}

// Executor answers messages for one page.
type Executor struct {
	page   page.Page
	opts   Options
	picker *Picker
}

// New returns an executor for p. picker may be nil, in which case
// TOGGLE_PICKER is rejected.
func New(p page.Page, opts Options, picker *Picker) *Executor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	return &Executor{page: p, opts: opts, picker: picker}
}

// Picker returns the executor's picker session, if any.
func (e *Executor) Picker() *Picker {
	return e.picker
}

// Handle is a transport.Handler. Tool results are wrapped twice: the
// envelope says the message was handled, its data is the ToolResult.
func (e *Executor) Handle(ctx context.Context, msg transport.Message) types.Envelope {
	switch msg.Type {
	case types.CommandExecuteTool:
		var p types.ExecuteToolPayload
		if err := msg.Decode(&p); err != nil {
			return types.FailedEnvelope("%v", err)
		}
		res := e.Execute(ctx, p.Tool, p.Args)
		env, err := types.NewEnvelope(res)
		if err != nil {
			return types.FailedEnvelope("%v", err)
		}
		return env

	case types.CommandValidateSelector:
		var p types.ValidateSelectorPayload
		if err := msg.Decode(&p); err != nil {
			return types.FailedEnvelope("%v", err)
		}
		return flatten(e.validateSelector(p.Selector))

	case types.CommandTogglePicker:
		var p types.TogglePickerPayload
		if err := msg.Decode(&p); err != nil {
			return types.FailedEnvelope("%v", err)
		}
		if e.picker == nil {
			return types.FailedEnvelope("selector picker is not available on this page")
		}
		return flatten(e.picker.Toggle(p.Enabled))
	}
	return types.FailedEnvelope("Unknown message type: %s", msg.Type)
}

// flatten sends a ToolResult as the envelope itself, without the second
// wrap used for EXECUTE_TOOL.
func flatten(res types.ToolResult) types.Envelope {
	env := types.Envelope{Success: res.Success, Error: res.Error}
	if res.Data != nil {
		raw, err := json.Marshal(res.Data)
		if err != nil {
			return types.FailedEnvelope("failed to encode result: %v", err)
		}
		env.Data = raw
	}
	return env
}

// Execute runs one tool by name.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (res types.ToolResult) {
	call, err := tools.Parse(name, args)
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			return types.Failf("Unknown tool: %s", name)
		}
		return types.Failf("%v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			debugLog.Errorf("%s panicked: %v", name, r)
			res = types.Failf("%s failed: %v", name, r)
		}
	}()

	debugLog.Debugf("executing %s", name)
	return e.run(ctx, call).Normalize()
}

func (e *Executor) run(ctx context.Context, call tools.Call) types.ToolResult {
	switch c := call.(type) {
	case tools.NavigateArgs:
		return types.Failf("navigate is performed by the coordinator, not the page")
	case tools.ClickArgs:
		return e.click(ctx, c)
	case tools.TypeArgs:
		return e.typeText(ctx, c)
	case tools.ExtractArgs:
		return e.extract(c)
	case tools.WaitForArgs:
		return e.waitFor(ctx, c)
	case tools.ScrollToArgs:
		return e.scrollTo(ctx, c)
	case tools.ValidateSelectorArgs:
		return e.validateSelector(c.Selector)
	case tools.PageQuery:
		return e.mine(c.K)
	}
	return types.Failf("Unknown tool: %s", call.Kind())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
