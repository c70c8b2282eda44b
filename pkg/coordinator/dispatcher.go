// Package coordinator owns tool dispatch and the run state machine. It
// resolves the active page, performs navigation itself, delegates every
// other tool to the page executor over the transport, and drives planned
// steps one at a time.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/lumina/pkg/logging"
	"github.com/entrhq/lumina/pkg/tools"
	"github.com/entrhq/lumina/pkg/transport"
	"github.com/entrhq/lumina/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("coordinator")
	if err != nil {
		debugLog.Warnf("Failed to initialize coordinator logger, using stderr fallback: %v", err)
	}
}

const exhaustedMessage = "Tool execution failed after %d attempts. The page executor may not be loaded on this page. Try reloading the page and waiting a few seconds before retrying."

// TargetResolver finds the page tools run against.
type TargetResolver interface {
	ActiveTarget(ctx context.Context) (transport.Handle, bool)
}

// Navigator drives a page to a URL through the privileged browser API. It
// returns once the page has loaded or timeout has passed, whichever is
// first; only a failed navigation is an error.
type Navigator interface {
	Navigate(ctx context.Context, target transport.Handle, url string, timeout time.Duration) error
}

// Guard vets a tool call before it is dispatched.
type Guard interface {
	Check(call tools.Call) error
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	DefaultTimeout time.Duration
	AttachSettle   time.Duration
	Retry          RetryPolicy
	Clock          Clock
}

// DefaultDispatcherOptions returns the standard timings.
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		DefaultTimeout: transport.DefaultTimeout,
		AttachSettle:   500 * time.Millisecond,
		Retry:          DefaultRetryPolicy(),
		Clock:          RealClock(),
	}
}

// Dispatcher executes single tool calls against the active page.
type Dispatcher struct {
	transport transport.Transport
	targets   TargetResolver
	navigator Navigator
	opts      DispatcherOptions

	mu    sync.Mutex
	guard Guard
	locks map[transport.Handle]*sync.Mutex
}

// NewDispatcher wires a dispatcher. Zero option fields take their defaults.
func NewDispatcher(t transport.Transport, targets TargetResolver, nav Navigator, opts DispatcherOptions) *Dispatcher {
	opts = opts.withDefaults()
	debugLog.Debugf("dispatcher: %s", opts)
	return &Dispatcher{
		transport: t,
		targets:   targets,
		navigator: nav,
		opts:      opts,
		locks:     make(map[transport.Handle]*sync.Mutex),
	}
}

func (o DispatcherOptions) withDefaults() DispatcherOptions {
	def := DefaultDispatcherOptions()
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = def.DefaultTimeout
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = def.Retry
	}
	if o.Clock == nil {
		o.Clock = def.Clock
	}
	return o
}

// Configure replaces the options used by calls that start afterwards. A nil
// Clock keeps the current one.
func (d *Dispatcher) Configure(opts DispatcherOptions) {
	d.mu.Lock()
	if opts.Clock == nil {
		opts.Clock = d.opts.Clock
	}
	opts = opts.withDefaults()
	d.opts = opts
	d.mu.Unlock()
	debugLog.Infof("dispatcher reconfigured: %s", opts)
}

// SetGuard installs a guard consulted before every call. nil removes it.
func (d *Dispatcher) SetGuard(g Guard) {
	d.mu.Lock()
	d.guard = g
	d.mu.Unlock()
}

// lockTarget serialises calls to one page.
func (d *Dispatcher) lockTarget(target transport.Handle) func() {
	d.mu.Lock()
	l, ok := d.locks[target]
	if !ok {
		l = &sync.Mutex{}
		d.locks[target] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ExecuteTool runs one tool and returns its own result. It never panics:
// faults become failed results. A zero timeout uses the default.
func (d *Dispatcher) ExecuteTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (res types.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			debugLog.Errorf("executeTool %s panicked: %v", name, r)
			res = types.Failf("Tool execution failed: %v", r)
		}
	}()

	target, ok := d.targets.ActiveTarget(ctx)
	if !ok {
		return types.Failf("No active tab found")
	}

	call, err := tools.Parse(name, args)
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			return types.Failf("Unknown tool: %s", name)
		}
		return types.Failf("%v", err)
	}

	d.mu.Lock()
	guard := d.guard
	opts := d.opts
	d.mu.Unlock()
	if guard != nil {
		if err := guard.Check(call); err != nil {
			debugLog.Warnf("%s rejected: %v", name, err)
			return types.Failf("%v", err)
		}
	}

	if timeout <= 0 {
		timeout = opts.DefaultTimeout
	}

	unlock := d.lockTarget(target)
	defer unlock()

	if call.Kind().Coordinated() {
		return d.navigate(ctx, target, call.(tools.NavigateArgs).URL, timeout)
	}

	if !d.transport.AwaitReady(ctx, target, opts.AttachSettle) {
		debugLog.Debugf("executor on %s not announced after %s, sending anyway", target, opts.AttachSettle)
	}

	msg, err := transport.NewMessage(types.CommandExecuteTool, types.ExecuteToolPayload{
		Tool:    name,
		Args:    types.ToolCall{Name: name, Args: args}.Clone().Args,
		Timeout: int(timeout / time.Millisecond),
	})
	if err != nil {
		return types.Failf("Tool execution failed: %v", err)
	}

	var env *types.Envelope
	attempts, err := retry(ctx, opts.Clock, opts.Retry, func(ctx context.Context) error {
		var sendErr error
		env, sendErr = d.transport.Send(ctx, target, msg, timeout)
		return sendErr
	}, func(attempt int, err error, next time.Duration) {
		debugLog.Warnf("%s attempt %d failed: %v (retrying in %s)", name, attempt, err, next)
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Failf("Tool execution failed: %v", ctxErr)
		}
		debugLog.Errorf("%s failed after %d attempts: %v", name, attempts, err)
		return types.Failf(exhaustedMessage, attempts)
	}
	return env.Unwrap()
}

func (d *Dispatcher) navigate(ctx context.Context, target transport.Handle, url string, timeout time.Duration) types.ToolResult {
	if d.navigator == nil {
		return types.Failf("Navigation failed: no navigator configured")
	}
	debugLog.Infof("navigating %s to %s", target, url)
	if err := d.navigator.Navigate(ctx, target, url, timeout); err != nil {
		return types.Failf("Navigation failed: %v", err)
	}
	return types.Ok(map[string]any{"url": url, "navigated": true})
}

// TogglePicker forwards TOGGLE_PICKER to the active page and returns its
// acknowledgement. It is sent once, without retries.
func (d *Dispatcher) TogglePicker(ctx context.Context, enabled bool, timeout time.Duration) (res types.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			res = types.Failf("Picker toggle failed: %v", r)
		}
	}()

	target, ok := d.targets.ActiveTarget(ctx)
	if !ok {
		return types.Failf("No active tab found")
	}

	msg, err := transport.NewMessage(types.CommandTogglePicker, types.TogglePickerPayload{Enabled: enabled})
	if err != nil {
		return types.Failf("Picker toggle failed: %v", err)
	}

	unlock := d.lockTarget(target)
	defer unlock()

	env, err := d.transport.Send(ctx, target, msg, timeout)
	if err != nil {
		return types.Failf("Picker toggle failed: %v", err)
	}
	return transport.Result(env, nil)
}

func (o DispatcherOptions) String() string {
	return fmt.Sprintf("timeout=%s settle=%s attempts=%d base=%s factor=%g",
		o.DefaultTimeout, o.AttachSettle, o.Retry.MaxAttempts, o.Retry.BaseDelay, o.Retry.Factor)
}
