// Package orchestrator owns the agent task state machine: it turns a single
// natural-language goal into a multi-step, self-correcting sequence of shell
// commands, closing the loop by observing captured terminal output. It holds
// no transport and renders nothing; the consuming UI supplies the dispatch
// callback and reads task/message state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shellpilot/internal/detector"
	"shellpilot/internal/dialogue"
	"shellpilot/internal/gateway"
	"shellpilot/internal/logging"
	"shellpilot/internal/policy"
	"shellpilot/internal/types"
)

// Guard sentinels. CommandCompleted is a guarded no-op in these cases; the
// task state is left untouched.
var (
	ErrNoTask       = errors.New("no current task")
	ErrPaused       = errors.New("task is paused")
	ErrAutoDisabled = errors.New("auto-execute is disabled")
	ErrStale        = errors.New("result from a superseded task discarded")
)

// DispatchFunc sends a command to the terminal for execution. The UI layer
// supplies it; the orchestrator invokes it only when the risk policy permits
// automatic dispatch.
type DispatchFunc func(ctx context.Context, command string) error

// Orchestrator drives one task at a time through the planning/execution/
// analysis loop. All mutation happens under mu; network calls, dispatch, and
// detector polling run unlocked and re-validate the generation stamp before
// touching state, so results that outlive a Reset or a new goal are
// discarded rather than applied.
type Orchestrator struct {
	mu sync.Mutex

	gw       gateway.Client
	source   types.OutputSource
	dialogue *dialogue.Context
	det      *detector.Detector
	dispatch DispatchFunc
	recorder Recorder

	settings policy.Settings

	task       *types.Task
	generation uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder installs a transcript recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithSettings sets the initial execution settings.
func WithSettings(s policy.Settings) Option {
	return func(o *Orchestrator) { o.settings = s }
}

// New creates an orchestrator with injected collaborators: the LLM gateway,
// the read-only terminal output history, the completion detector over that
// history, and the UI's dispatch callback.
func New(gw gateway.Client, source types.OutputSource, dc *dialogue.Context, det *detector.Detector, dispatch DispatchFunc, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:       gw,
		source:   source,
		dialogue: dc,
		det:      det,
		dispatch: dispatch,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SubmitGoal starts a fresh task for the goal. The previous task's message,
// if any, is retired as completed. The first planning call runs in the
// caller's goroutine; subsequent loop steps chain through the detector
// asynchronously when auto-execution is permitted.
func (o *Orchestrator) SubmitGoal(ctx context.Context, goal string) error {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return fmt.Errorf("empty goal")
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation

	if o.task != nil && o.task.Message != nil && !o.task.State.Terminal() {
		o.task.Message.Status = types.StatusCompleted
	}

	now := time.Now()
	msg := &types.Message{Status: types.StatusWaiting, UserInput: goal}
	o.task = &types.Task{
		ID:          uuid.NewString(),
		Goal:        goal,
		State:       types.TaskPlanning,
		AutoExecute: o.settings.AutoRun,
		Message:     msg,
		CreatedAt:   now,
		StartedAt:   now,
	}
	logging.Session("task %s created: %q (auto=%v)", o.task.ID, goal, o.task.AutoExecute)
	o.record(func(r Recorder) error { return r.TaskStarted(o.task) })
	o.mu.Unlock()

	turn := o.dialogue.FormatTurn(goal, o.source, true)
	o.dialogue.AppendTurn(turn, true)

	return o.plan(ctx, gen)
}

// CommandCompleted feeds captured command output back into the loop. It is
// the EXECUTING -> ANALYZING edge, driven externally by the completion
// detector or the skip path. Guarded: a missing task, a paused task, or
// disabled auto-execute makes it a no-op so stray or late calls cannot
// corrupt state.
func (o *Orchestrator) CommandCompleted(ctx context.Context, output string) error {
	o.mu.Lock()
	gen := o.generation
	o.mu.Unlock()
	return o.commandCompletedGen(ctx, gen, output)
}

// commandCompletedGen is CommandCompleted with a generation stamp. The stamp
// is validated inside the same critical section that mutates the message and
// the dialogue, so a capture resolved for a superseded task can never land on
// its replacement.
func (o *Orchestrator) commandCompletedGen(ctx context.Context, gen uint64, output string) error {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		logging.Session("stale capture discarded (gen %d != %d)", gen, o.generation)
		return ErrStale
	}
	if o.task == nil {
		o.mu.Unlock()
		return ErrNoTask
	}
	if o.task.Paused {
		o.mu.Unlock()
		return ErrPaused
	}
	if !o.task.AutoExecute {
		o.mu.Unlock()
		return ErrAutoDisabled
	}
	task := o.task

	// The whole block executed as a batch: no partial execution within a block.
	if blk := task.Message.LastCommandBlock(); blk != nil {
		for i := range blk.Commands {
			blk.Commands[i].Executed = true
		}
	}

	o.appendBlockLocked(task, types.ContentBlock{
		Kind:      types.ContentOutput,
		Text:      output,
		Timestamp: time.Now(),
	})
	task.Message.Status = types.StatusAnalyzing
	task.State = types.TaskAnalyzing
	logging.Session("task %s analyzing captured output (%d bytes)", task.ID, len(output))

	turn := o.dialogue.FormatTurn(output, o.source, false)
	o.dialogue.AppendTurn(turn, false)
	o.mu.Unlock()

	return o.plan(ctx, gen)
}

// Skip bypasses execution of the pending command block and feeds the fixed
// skip literal through the normal completion path.
func (o *Orchestrator) Skip(ctx context.Context) error {
	return o.CommandCompleted(ctx, o.det.Skip())
}

// DispatchPending sends the held command block on user confirmation - the
// manual counterpart of the auto-dispatch gate. It is a no-op when nothing
// is pending or the block already ran.
func (o *Orchestrator) DispatchPending(ctx context.Context) error {
	o.mu.Lock()
	if o.task == nil {
		o.mu.Unlock()
		return ErrNoTask
	}
	task := o.task
	blk := task.Message.LastCommandBlock()
	if task.State != types.TaskExecuting || blk == nil || len(blk.Commands) == 0 || blk.Commands[0].Executed {
		o.mu.Unlock()
		return nil
	}
	gen := o.generation
	start := o.det.Mark()
	texts := make([]string, len(blk.Commands))
	for i, c := range blk.Commands {
		texts[i] = c.Text
	}
	o.mu.Unlock()

	go o.runCommands(ctx, gen, start, texts)
	return nil
}

// plan runs one planning step: render the dialogue, call the gateway, parse
// the response, and apply the resulting transition. gen is the generation
// stamped when the step was scheduled; a mismatch on return means the task
// was reset or replaced mid-flight and the result is discarded.
func (o *Orchestrator) plan(ctx context.Context, gen uint64) error {
	entries := o.dialogue.Entries()
	raw, err := o.gw.Complete(ctx, entries)

	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation || o.task == nil {
		logging.Session("stale planning result discarded (gen %d != %d)", gen, o.generation)
		return ErrStale
	}
	task := o.task

	if err != nil {
		o.failLocked(task, fmt.Sprintf("gateway call failed: %v", err))
		return err
	}
	if strings.TrimSpace(raw) == "" {
		o.failLocked(task, "empty response from gateway")
		return fmt.Errorf("empty response from gateway")
	}

	plan, perr := types.ParsePlan(raw)
	if perr != nil {
		// Raw text is never discarded silently; keep it for diagnosis.
		o.failLocked(task, raw)
		return fmt.Errorf("plan parse failed: %w", perr)
	}

	cmds := plan.CommandsOf()
	if len(cmds) == 0 || plan.Completed {
		summary := plan.Analysis
		if summary == "" {
			summary = raw
		}
		o.appendBlockLocked(task, types.ContentBlock{
			Kind:      types.ContentResult,
			Text:      summary,
			Timestamp: time.Now(),
		})
		task.Message.Status = types.StatusCompleted
		task.State = types.TaskCompleted
		task.CompletedAt = time.Now()
		logging.Session("task %s completed after %ds", task.ID, task.ElapsedSeconds(time.Now()))
		o.record(func(r Recorder) error { return r.TaskFinished(task) })
		return nil
	}

	o.appendBlockLocked(task, types.ContentBlock{
		Kind:      types.ContentCommand,
		Text:      plan.Analysis,
		Commands:  cmds,
		Timestamp: time.Now(),
	})
	task.State = types.TaskExecuting
	task.Message.Status = types.StatusWaiting

	risk := policy.MaxRisk(cmds)
	gate := policy.Settings{AutoRun: task.AutoExecute, MaxAutoRisk: o.settings.MaxAutoRisk}
	if !policy.CanAutoExecute(gate, risk) {
		logging.Policy("task %s holding %d command(s) at risk %s for manual dispatch", task.ID, len(cmds), risk)
		return nil
	}

	logging.Policy("task %s auto-dispatching %d command(s) at risk %s", task.ID, len(cmds), risk)
	start := o.det.Mark()
	texts := make([]string, len(cmds))
	for i, c := range cmds {
		texts[i] = c.Text
	}
	go o.runCommands(ctx, gen, start, texts)
	return nil
}

// runCommands dispatches a command batch and waits for completion detection.
// Runs unlocked; every state touch goes back through generation-checked
// paths.
func (o *Orchestrator) runCommands(ctx context.Context, gen uint64, start int, commands []string) {
	for _, cmd := range commands {
		if err := o.dispatch(ctx, cmd); err != nil {
			o.mu.Lock()
			if gen == o.generation && o.task != nil {
				o.failLocked(o.task, fmt.Sprintf("dispatch failed: %v", err))
			}
			o.mu.Unlock()
			return
		}
	}

	output, err := o.det.Wait(ctx, start)
	if err != nil {
		// Context cancelled; nothing to apply.
		logging.Session("detector wait aborted: %v", err)
		return
	}

	if err := o.commandCompletedGen(ctx, gen, output); err != nil && !errors.Is(err, ErrStale) &&
		!errors.Is(err, ErrPaused) && !errors.Is(err, ErrAutoDisabled) && !errors.Is(err, ErrNoTask) {
		logging.Session("continuation step failed: %v", err)
	}
}

// failLocked moves the task to the terminal error state, preserving text in
// an error block. Caller holds mu.
func (o *Orchestrator) failLocked(task *types.Task, text string) {
	o.appendBlockLocked(task, types.ContentBlock{
		Kind:      types.ContentError,
		Text:      text,
		Timestamp: time.Now(),
	})
	task.Message.Status = types.StatusError
	task.State = types.TaskError
	task.CompletedAt = time.Now()
	logging.Session("task %s errored", task.ID)
	o.record(func(r Recorder) error { return r.TaskFinished(task) })
}

// appendBlockLocked appends a block and mirrors it to the recorder. Caller
// holds mu.
func (o *Orchestrator) appendBlockLocked(task *types.Task, b types.ContentBlock) {
	task.Message.Append(b)
	o.record(func(r Recorder) error { return r.BlockAppended(task.ID, b) })
}

// record runs a recorder call, logging failures; persistence problems never
// interrupt the loop.
func (o *Orchestrator) record(fn func(Recorder) error) {
	if err := fn(o.recorder); err != nil {
		logging.Store("transcript write failed: %v", err)
	}
}

// ToggleAutoExecute flips the current task's auto-execute flag and returns
// the new value. No state transition happens; the flag is consulted at the
// top of the next CommandCompleted and at the next dispatch gate.
func (o *Orchestrator) ToggleAutoExecute() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.task == nil {
		return false
	}
	o.task.AutoExecute = !o.task.AutoExecute
	return o.task.AutoExecute
}

// TogglePause flips the current task's paused flag and returns the new
// value.
func (o *Orchestrator) TogglePause() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.task == nil {
		return false
	}
	o.task.Paused = !o.task.Paused
	return o.task.Paused
}

// UpdateSettings applies new execution settings (config hot-reload). They
// affect the dispatch gate immediately and seed the auto-execute flag of
// future tasks; the current task's flag is left alone.
func (o *Orchestrator) UpdateSettings(s policy.Settings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings = s
}

// Reset clears the current task and the dialogue back to the system entry.
// The generation bump makes any in-flight gateway call or detector poll
// resolve into a discard instead of a state mutation.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.generation++
	o.task = nil
	o.mu.Unlock()
	o.dialogue.Reset()
	logging.Session("orchestrator reset")
}

// Snapshot returns a copy of the current task for rendering, or nil when no
// task exists. Blocks and commands are copied so the UI never races the
// loop.
func (o *Orchestrator) Snapshot() *types.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.task == nil {
		return nil
	}
	t := *o.task
	if o.task.Message != nil {
		m := *o.task.Message
		m.Blocks = make([]types.ContentBlock, len(o.task.Message.Blocks))
		copy(m.Blocks, o.task.Message.Blocks)
		for i := range m.Blocks {
			if len(m.Blocks[i].Commands) > 0 {
				cmds := make([]types.Command, len(m.Blocks[i].Commands))
				copy(cmds, m.Blocks[i].Commands)
				m.Blocks[i].Commands = cmds
			}
		}
		t.Message = &m
	}
	return &t
}

// State returns the current task state, or TaskIdle when no task exists.
func (o *Orchestrator) State() types.TaskState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.task == nil {
		return types.TaskIdle
	}
	return o.task.State
}
