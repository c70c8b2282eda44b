package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/lumina/pkg/transport"
	"github.com/entrhq/lumina/pkg/types"
)

// Options bundles the coordinator's settings.
type Options struct {
	Dispatcher    DispatcherOptions
	Runner        RunnerOptions
	PickerTimeout time.Duration
}

// Coordinator wires a Dispatcher, a Runner and a Router together and fans
// their events out to subscribers.
type Coordinator struct {
	Dispatcher *Dispatcher
	Runner     *Runner
	Router     *Router

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(*types.RunEvent)
}

// New builds a coordinator. ctx bounds every run loop it starts.
func New(ctx context.Context, t transport.Transport, targets TargetResolver, nav Navigator, planner Planner, opts Options) *Coordinator {
	c := &Coordinator{subs: make(map[int]func(*types.RunEvent))}
	c.Dispatcher = NewDispatcher(t, targets, nav, opts.Dispatcher)
	c.Runner = NewRunner(ctx, planner, c.Dispatcher, opts.Runner, c.publish)
	c.Router = NewRouter(c.Runner, c.Dispatcher, opts.PickerTimeout)
	return c
}

// Configure applies new options. Runs and tool calls already in progress
// finish with the options they started with.
func (c *Coordinator) Configure(opts Options) {
	c.Dispatcher.Configure(opts.Dispatcher)
	c.Runner.Configure(opts.Runner)
	c.Router.SetPickerTimeout(opts.PickerTimeout)
}

// Handle answers a control command.
func (c *Coordinator) Handle(ctx context.Context, cmd types.Command) types.Response {
	return c.Router.Handle(ctx, cmd)
}

// Subscribe registers fn for every run and picker event. The returned func
// unsubscribes. fn must not block.
func (c *Coordinator) Subscribe(fn func(*types.RunEvent)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) publish(ev *types.RunEvent) {
	c.mu.RLock()
	subs := make([]func(*types.RunEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// HandleReport receives executor reports from the transport and turns
// picker results into events.
func (c *Coordinator) HandleReport(from transport.Handle, msg transport.Message) {
	if msg.Type != types.CommandPickerResult {
		debugLog.Warnf("ignoring %s report from %s", msg.Type, from)
		return
	}
	var p types.PickerResultPayload
	if err := msg.Decode(&p); err != nil {
		debugLog.Warnf("bad picker result from %s: %v", from, err)
		return
	}
	if p.Selector != nil {
		debugLog.Infof("picked %q on %s", *p.Selector, from)
	} else {
		debugLog.Infof("picker cancelled on %s", from)
	}
	c.publish(types.NewPickerResultEvent(p.Selector))
}
