package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/lumina/pkg/logging"
	"github.com/entrhq/lumina/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("transport")
	if err != nil {
		debugLog.Warnf("Failed to initialize transport logger, using stderr fallback: %v", err)
	}
}

// ReportFunc receives unsolicited messages pushed by executors, such as
// PICKER_RESULT.
type ReportFunc func(from Handle, msg Message)

type listener struct {
	handler Handler
	gone    chan struct{}
}

// Bus is an in-process Transport. Every hop is a JSON encode/decode so that
// neither side shares memory with the other.
type Bus struct {
	mu        sync.Mutex
	listeners map[Handle]*listener
	ready     map[Handle]chan struct{}
	announced map[Handle]bool
	active    Handle
	reporters []ReportFunc
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[Handle]*listener),
		ready:     make(map[Handle]chan struct{}),
		announced: make(map[Handle]bool),
	}
}

// Listen attaches handler to target, replacing any earlier listener. The
// returned func detaches it; sends in flight to a detached listener fail
// with an UnreachableError.
func (b *Bus) Listen(target Handle, handler Handler) (detach func()) {
	l := &listener{handler: handler, gone: make(chan struct{})}

	b.mu.Lock()
	if prev, ok := b.listeners[target]; ok {
		close(prev.gone)
	}
	b.listeners[target] = l
	b.resetReadyLocked(target)
	b.mu.Unlock()

	debugLog.Debugf("listener attached to %s", target)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.listeners[target] != l {
				return
			}
			delete(b.listeners, target)
			close(l.gone)
			b.resetReadyLocked(target)
			debugLog.Debugf("listener detached from %s", target)
		})
	}
}

// Announce marks target as ready to receive. Waiters in AwaitReady wake up.
func (b *Bus) Announce(target Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[target]; !ok || b.announced[target] {
		return
	}
	b.announced[target] = true
	close(b.readyChanLocked(target))
}

func (b *Bus) readyChanLocked(target Handle) chan struct{} {
	ch, ok := b.ready[target]
	if !ok {
		ch = make(chan struct{})
		b.ready[target] = ch
	}
	return ch
}

func (b *Bus) resetReadyLocked(target Handle) {
	if b.announced[target] {
		delete(b.ready, target)
		delete(b.announced, target)
	}
}

// AwaitReady implements Transport.
func (b *Bus) AwaitReady(ctx context.Context, target Handle, within time.Duration) bool {
	b.mu.Lock()
	ch := b.readyChanLocked(target)
	b.mu.Unlock()

	select {
	case <-ch:
		return true
	default:
	}
	if within <= 0 {
		return false
	}

	timer := time.NewTimer(within)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Activate makes target the focused page.
func (b *Bus) Activate(target Handle) {
	b.mu.Lock()
	b.active = target
	b.mu.Unlock()
}

// Deactivate clears the focused page if it is target.
func (b *Bus) Deactivate(target Handle) {
	b.mu.Lock()
	if b.active == target {
		b.active = ""
	}
	b.mu.Unlock()
}

// ActiveTarget returns the focused page, if any.
func (b *Bus) ActiveTarget(ctx context.Context) (Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, b.active != ""
}

// Send implements Transport.
func (b *Bus) Send(ctx context.Context, target Handle, msg Message, timeout time.Duration) (*types.Envelope, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	b.mu.Lock()
	l := b.listeners[target]
	b.mu.Unlock()
	if l == nil {
		return nil, &UnreachableError{Target: target, Reason: reasonNoReceiver}
	}

	wire, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	replies := make(chan []byte, 1)
	go b.deliver(ctx, target, l, wire, replies)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case raw := <-replies:
		var env types.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("malformed response: %w", err)
		}
		return &env, nil
	case <-l.gone:
		return nil, &UnreachableError{Target: target, Reason: reasonPortClosed}
	case <-timer.C:
		debugLog.Warnf("%s to %s timed out after %s", msg.Type, target, timeout)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bus) deliver(ctx context.Context, target Handle, l *listener, wire []byte, replies chan<- []byte) {
	var env types.Envelope
	defer func() {
		if r := recover(); r != nil {
			debugLog.Errorf("executor on %s panicked: %v", target, r)
			env = types.FailedEnvelope("executor fault: %v", r)
		}
		raw, err := json.Marshal(env)
		if err != nil {
			raw, _ = json.Marshal(types.FailedEnvelope("failed to encode response: %v", err))
		}
		replies <- raw
	}()

	var msg Message
	if err := json.Unmarshal(wire, &msg); err != nil {
		env = types.FailedEnvelope("malformed message: %v", err)
		return
	}
	env = l.handler(ctx, msg)
}

// OnReport subscribes fn to executor reports.
func (b *Bus) OnReport(fn ReportFunc) {
	b.mu.Lock()
	b.reporters = append(b.reporters, fn)
	b.mu.Unlock()
}

// Report pushes an unsolicited message from an executor to the coordinator
// side. Subscribers receive their own decoded copy.
func (b *Bus) Report(from Handle, msg Message) error {
	wire, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	b.mu.Lock()
	reporters := append([]ReportFunc(nil), b.reporters...)
	b.mu.Unlock()

	for _, fn := range reporters {
		var copyMsg Message
		if err := json.Unmarshal(wire, &copyMsg); err != nil {
			return fmt.Errorf("failed to decode report: %w", err)
		}
		fn(from, copyMsg)
	}
	return nil
}

// Reporter binds the bus to one page so an executor can push reports
// without knowing its handle.
func (b *Bus) Reporter(from Handle) Reporter {
	return boundReporter{bus: b, from: from}
}

// Reporter pushes unsolicited messages toward the coordinator.
type Reporter interface {
	Report(msg Message) error
}

type boundReporter struct {
	bus  *Bus
	from Handle
}

func (r boundReporter) Report(msg Message) error {
	return r.bus.Report(r.from, msg)
}

var _ Transport = (*Bus)(nil)
