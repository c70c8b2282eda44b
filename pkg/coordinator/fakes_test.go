package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/lumina/pkg/transport"
	"github.com/entrhq/lumina/pkg/types"
)

// fakeClock advances simulated time on every Sleep and never blocks.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// fakeTransport answers sends from a script of replies.
type fakeTransport struct {
	mu       sync.Mutex
	replies  []func(msg transport.Message) (*types.Envelope, error)
	fallback func(msg transport.Message) (*types.Envelope, error)
	sent     []transport.Message
	targets  []transport.Handle
	timeouts []time.Duration
	settles  []time.Duration
	inFlight int
	maxSeen  int
	hold     time.Duration
}

func (f *fakeTransport) Send(ctx context.Context, target transport.Handle, msg transport.Message, timeout time.Duration) (*types.Envelope, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.targets = append(f.targets, target)
	f.timeouts = append(f.timeouts, timeout)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	var reply func(transport.Message) (*types.Envelope, error)
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	} else {
		reply = f.fallback
	}
	hold := f.hold
	f.mu.Unlock()

	if hold > 0 {
		time.Sleep(hold)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if reply == nil {
		return nil, transport.ErrTimeout
	}
	return reply(msg)
}

func (f *fakeTransport) AwaitReady(ctx context.Context, target transport.Handle, within time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settles = append(f.settles, within)
	return true
}

func (f *fakeTransport) Sent() []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Message(nil), f.sent...)
}

func failWith(err error) func(transport.Message) (*types.Envelope, error) {
	return func(transport.Message) (*types.Envelope, error) { return nil, err }
}

func replyWith(res types.ToolResult) func(transport.Message) (*types.Envelope, error) {
	return func(transport.Message) (*types.Envelope, error) {
		env, err := types.NewEnvelope(res)
		return &env, err
	}
}

type staticTargets struct {
	handle transport.Handle
}

func (s staticTargets) ActiveTarget(context.Context) (transport.Handle, bool) {
	return s.handle, s.handle != ""
}

type fakeNavigator struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (n *fakeNavigator) Navigate(ctx context.Context, target transport.Handle, url string, timeout time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return n.err
}

// planOf returns n extract steps.
type planOf int

func (n planOf) Expand(goal string) []types.PlannedStep {
	steps := make([]types.PlannedStep, 0, int(n))
	for i := 1; i <= int(n); i++ {
		steps = append(steps, types.PlannedStep{
			Index:    i,
			Thought:  fmt.Sprintf("step %d of %s", i, goal),
			ToolCall: types.ToolCall{Name: "extract", Args: map[string]any{"selector": fmt.Sprintf("#s%d", i)}},
		})
	}
	return steps
}

// recordingExecutor counts tool calls and can block a given call.
type recordingExecutor struct {
	mu      sync.Mutex
	calls   []types.ToolCall
	results map[int]types.ToolResult
	blockAt int
	entered chan struct{}
	release chan struct{}
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{
		results: map[int]types.ToolResult{},
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (e *recordingExecutor) ExecuteTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) types.ToolResult {
	e.mu.Lock()
	e.calls = append(e.calls, types.ToolCall{Name: name, Args: args})
	n := len(e.calls)
	res, ok := e.results[n]
	blockAt := e.blockAt
	e.mu.Unlock()

	select {
	case e.entered <- struct{}{}:
	default:
	}
	if n == blockAt {
		<-e.release
	}
	if !ok {
		res = types.Ok(map[string]any{"call": n})
	}
	return res
}

func (e *recordingExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// eventLog collects published events.
type eventLog struct {
	mu     sync.Mutex
	events []*types.RunEvent
}

func (l *eventLog) publish(ev *types.RunEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) Types() []types.RunEventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.RunEventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) ofType(typ types.RunEventType) []*types.RunEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*types.RunEvent
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
