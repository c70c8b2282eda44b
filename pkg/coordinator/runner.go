package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/lumina/pkg/types"
)

var (
	ErrAlreadyRunning = errors.New("Agent is already running")
	ErrNotRunning     = errors.New("Agent is not running")
	ErrNoGoal         = errors.New("No goal provided")
	ErrNoSteps        = errors.New("Goal produced no steps to run")
	ErrRunActive      = errors.New("Cannot clear the trace while a run is active")
)

// DefaultMaxSteps caps a run when the caller gives no limit.
const DefaultMaxSteps = 20

// Planner expands a goal into steps. It must not fail; unplannable goals
// come back as a single diagnostic step.
type Planner interface {
	Expand(goal string) []types.PlannedStep
}

// ToolExecutor runs one tool call to completion.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) types.ToolResult
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	DefaultMaxSteps int
	StepDelay       time.Duration
	StopGrace       time.Duration
	Clock           Clock
}

// DefaultRunnerOptions returns the standard pacing.
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{
		DefaultMaxSteps: DefaultMaxSteps,
		StepDelay:       500 * time.Millisecond,
		StopGrace:       100 * time.Millisecond,
		Clock:           RealClock(),
	}
}

// run is the loop-side view of one started run.
type run struct {
	id            string
	steps         []types.PlannedStep
	opts          RunnerOptions
	stopRequested bool
	finished      bool
}

// Runner owns the run state. Only its loop and its control methods write
// it; readers get copies.
type Runner struct {
	planner Planner
	exec    ToolExecutor
	opts    RunnerOptions
	publish func(*types.RunEvent)

	ctx context.Context
	wg  sync.WaitGroup

	mu      sync.Mutex
	state   types.RunSnapshot
	current *run
}

// NewRunner returns an idle runner. Loops started by it stop waiting when
// ctx is done. publish may be nil.
func NewRunner(ctx context.Context, planner Planner, exec ToolExecutor, opts RunnerOptions, publish func(*types.RunEvent)) *Runner {
	opts = opts.withDefaults()
	if publish == nil {
		publish = func(*types.RunEvent) {}
	}
	return &Runner{
		planner: planner,
		exec:    exec,
		opts:    opts,
		publish: publish,
		ctx:     ctx,
		state:   types.RunSnapshot{Outcome: types.OutcomeIdle, Trace: []types.TraceEntry{}},
	}
}

func (o RunnerOptions) withDefaults() RunnerOptions {
	def := DefaultRunnerOptions()
	if o.DefaultMaxSteps <= 0 {
		o.DefaultMaxSteps = def.DefaultMaxSteps
	}
	if o.Clock == nil {
		o.Clock = def.Clock
	}
	return o
}

// Configure replaces the options. A run already in progress keeps the
// options it started with. A nil Clock keeps the current one.
func (r *Runner) Configure(opts RunnerOptions) {
	r.mu.Lock()
	if opts.Clock == nil {
		opts.Clock = r.opts.Clock
	}
	r.opts = opts.withDefaults()
	r.mu.Unlock()
}

// Start plans goal and begins executing it in the background. It returns
// the initial snapshot without waiting for any step.
func (r *Runner) Start(goal string, maxSteps int, dryRun bool) (types.RunSnapshot, error) {
	r.mu.Lock()
	if r.state.Running {
		r.mu.Unlock()
		return types.RunSnapshot{}, ErrAlreadyRunning
	}
	opts := r.opts
	r.mu.Unlock()

	goal = strings.TrimSpace(goal)
	if goal == "" {
		return types.RunSnapshot{}, ErrNoGoal
	}
	if maxSteps <= 0 {
		maxSteps = opts.DefaultMaxSteps
	}

	steps := r.planner.Expand(goal)
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	if len(steps) == 0 {
		return types.RunSnapshot{}, ErrNoSteps
	}

	r.mu.Lock()
	if r.state.Running {
		r.mu.Unlock()
		return types.RunSnapshot{}, ErrAlreadyRunning
	}
	rn := &run{id: uuid.New().String(), steps: steps, opts: opts}
	r.current = rn
	r.state = types.RunSnapshot{
		RunID:      rn.id,
		Running:    true,
		TotalSteps: len(steps),
		Goal:       goal,
		DryRun:     dryRun,
		Outcome:    types.OutcomeRunning,
		Trace:      []types.TraceEntry{},
		StartedAt:  opts.Clock.Now(),
	}
	snap := r.snapshotLocked()
	r.wg.Add(1)
	r.mu.Unlock()

	debugLog.Infof("run %s started: %q (%d steps, dryRun=%t)", rn.id, goal, len(steps), dryRun)
	r.publish(types.NewRunStartedEvent(snap))

	go r.loop(rn, dryRun)
	return snap, nil
}

func (r *Runner) loop(rn *run, dryRun bool) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			debugLog.Errorf("run %s loop panicked: %v", rn.id, p)
			r.finish(rn, types.OutcomeFailed)
		}
	}()

	for i, step := range rn.steps {
		r.mu.Lock()
		if r.current != rn {
			r.mu.Unlock()
			return
		}
		if rn.stopRequested {
			r.mu.Unlock()
			debugLog.Infof("run %s: stop requested, halting before step %d", rn.id, i+1)
			r.finish(rn, types.OutcomeStopped)
			return
		}
		r.state.CurrentStep = i + 1
		r.mu.Unlock()

		r.publish(types.NewStepStartedEvent(rn.id, step))
		entry := r.execute(rn, step, dryRun)

		r.mu.Lock()
		if r.current != rn {
			r.mu.Unlock()
			return
		}
		r.state.Trace = append(r.state.Trace, entry)
		r.mu.Unlock()
		r.publish(types.NewStepCompletedEvent(rn.id, entry))

		if err := rn.opts.Clock.Sleep(r.ctx, rn.opts.StepDelay); err != nil {
			r.finish(rn, types.OutcomeFailed)
			return
		}
	}
	r.finish(rn, types.OutcomeCompleted)
}

// execute runs or simulates one step. Tool failures are recorded, never
// returned.
func (r *Runner) execute(rn *run, step types.PlannedStep, dryRun bool) types.TraceEntry {
	clock := rn.opts.Clock
	call := step.ToolCall.Clone()
	entry := types.TraceEntry{
		Index:     step.Index,
		Thought:   step.Thought,
		ToolCall:  call,
		DryRun:    dryRun,
		StartedAt: clock.Now(),
	}

	if dryRun {
		entry.Observation = fmt.Sprintf("[DRY RUN] Would execute %s with args: %s", call.Name, call.ArgsJSON())
		entry.Success = true
		return entry
	}

	res := r.exec.ExecuteTool(r.ctx, call.Name, call.Args, 0).Normalize()
	entry.Success = res.Success
	entry.Observation = Observe(res)
	entry.Duration = clock.Now().Sub(entry.StartedAt)
	if !res.Success {
		debugLog.Warnf("step %d (%s) failed: %s", step.Index, call.Name, res.Error)
	}
	return entry
}

// Observe renders a tool result as a trace observation.
func Observe(res types.ToolResult) string {
	if !res.Success {
		return "Error: " + res.Error
	}
	raw, err := json.Marshal(res.Data)
	if err != nil {
		return fmt.Sprintf("Success: %v", res.Data)
	}
	return "Success: " + string(raw)
}

func (r *Runner) finish(rn *run, outcome types.RunOutcome) {
	r.mu.Lock()
	if r.current != rn || rn.finished {
		r.mu.Unlock()
		return
	}
	rn.finished = true
	if rn.stopRequested && outcome == types.OutcomeCompleted {
		outcome = types.OutcomeStopped
	}
	r.state.Running = false
	r.state.Outcome = outcome
	r.state.FinishedAt = rn.opts.Clock.Now()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	debugLog.Infof("run %s finished: %s after %d steps", rn.id, outcome, len(snap.Trace))
	r.publish(types.NewRunFinishedEvent(snap))
}

// Stop asks the current run to halt at its next step boundary, waits the
// grace period, then marks the run as no longer running. A tool call in
// flight is not interrupted; its entry is still recorded.
func (r *Runner) Stop(ctx context.Context) (types.RunSnapshot, error) {
	r.mu.Lock()
	if !r.state.Running || r.current == nil {
		r.mu.Unlock()
		return types.RunSnapshot{}, ErrNotRunning
	}
	rn := r.current
	rn.stopRequested = true
	r.mu.Unlock()

	debugLog.Infof("run %s: stop requested", rn.id)
	_ = rn.opts.Clock.Sleep(ctx, rn.opts.StopGrace)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == rn && r.state.Running {
		r.state.Running = false
		r.state.Outcome = types.OutcomeStopped
	}
	return r.snapshotLocked(), nil
}

// Snapshot returns a copy of the run state.
func (r *Runner) Snapshot() types.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Status returns the AGENT_STATUS view.
func (r *Runner) Status() types.Status {
	return r.Snapshot().Status()
}

// Trace returns a copy of the recorded entries.
func (r *Runner) Trace() []types.TraceEntry {
	return r.Snapshot().Trace
}

// ClearTrace empties the trace between runs.
func (r *Runner) ClearTrace() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Running {
		return ErrRunActive
	}
	r.state.Trace = []types.TraceEntry{}
	r.state.CurrentStep = 0
	return nil
}

// Wait blocks until every started loop has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) snapshotLocked() types.RunSnapshot {
	snap := r.state
	snap.Trace = make([]types.TraceEntry, len(r.state.Trace))
	for i, e := range r.state.Trace {
		e.ToolCall = e.ToolCall.Clone()
		snap.Trace[i] = e
	}
	return snap
}
