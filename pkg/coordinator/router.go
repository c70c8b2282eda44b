package coordinator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/entrhq/lumina/pkg/tools"
	"github.com/entrhq/lumina/pkg/types"
)

// DefaultPickerTimeout bounds TOGGLE_PICKER round trips.
const DefaultPickerTimeout = 5 * time.Second

// Router answers control commands from UI callers.
type Router struct {
	runner        *Runner
	dispatcher    *Dispatcher
	pickerTimeout atomic.Int64
}

// NewRouter returns a router over runner and dispatcher.
func NewRouter(runner *Runner, dispatcher *Dispatcher, pickerTimeout time.Duration) *Router {
	rt := &Router{runner: runner, dispatcher: dispatcher}
	rt.SetPickerTimeout(pickerTimeout)
	return rt
}

// SetPickerTimeout changes the TOGGLE_PICKER bound. Zero restores the default.
func (rt *Router) SetPickerTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultPickerTimeout
	}
	rt.pickerTimeout.Store(int64(d))
}

// Handle answers cmd. It never panics.
func (rt *Router) Handle(ctx context.Context, cmd types.Command) (resp types.Response) {
	defer func() {
		if r := recover(); r != nil {
			debugLog.Errorf("%s handler panicked: %v", cmd.Type, r)
			resp = types.Failf("%s failed: %v", cmd.Type, r)
		}
	}()

	switch cmd.Type {
	case types.CommandExecuteTool:
		var p types.ExecuteToolPayload
		if err := cmd.DecodePayload(&p); err != nil {
			return types.Failf("%v", err)
		}
		return rt.dispatcher.ExecuteTool(ctx, p.Tool, p.Args, time.Duration(p.Timeout)*time.Millisecond)

	case types.CommandStartAgent:
		var p types.StartAgentPayload
		if err := cmd.DecodePayload(&p); err != nil {
			return types.Failf("%v", err)
		}
		snap, err := rt.runner.Start(p.Goal, p.MaxSteps, p.DryRun)
		if err != nil {
			return types.Failf("%v", err)
		}
		return types.Ok(map[string]any{"state": snap})

	case types.CommandStopAgent:
		snap, err := rt.runner.Stop(ctx)
		if err != nil {
			return types.Failf("%v", err)
		}
		return types.Ok(map[string]any{"state": snap})

	case types.CommandAgentStatus:
		return types.Ok(rt.runner.Status())

	case types.CommandTogglePicker:
		var p types.TogglePickerPayload
		if err := cmd.DecodePayload(&p); err != nil {
			return types.Failf("%v", err)
		}
		return rt.dispatcher.TogglePicker(ctx, p.Enabled, time.Duration(rt.pickerTimeout.Load()))

	case types.CommandValidateSelector:
		var p types.ValidateSelectorPayload
		if err := cmd.DecodePayload(&p); err != nil {
			return types.Failf("%v", err)
		}
		return rt.dispatcher.ExecuteTool(ctx, string(tools.KindValidateSelector), map[string]any{"selector": p.Selector}, 0)

	case types.CommandGetTrace:
		return types.Ok(map[string]any{"trace": rt.runner.Trace()})

	case types.CommandClearTraces:
		if err := rt.runner.ClearTrace(); err != nil {
			return types.Failf("%v", err)
		}
		return types.Ok(map[string]any{"cleared": true})
	}
	return types.Failf("Unknown message type: %s", cmd.Type)
}
