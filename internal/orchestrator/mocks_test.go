package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shellpilot/internal/types"
)

// mockGateway serves scripted responses in call order. A non-nil gate makes
// Complete block until the gate closes, so tests can interleave a Reset with
// an in-flight planning call.
type mockGateway struct {
	mu      sync.Mutex
	scripts []planScript
	calls   [][]types.DialogueEntry
	gate    chan struct{}
}

type planScript struct {
	text string
	err  error
}

func (g *mockGateway) Complete(ctx context.Context, entries []types.DialogueEntry) (string, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	snapshot := make([]types.DialogueEntry, len(entries))
	copy(snapshot, entries)
	g.calls = append(g.calls, snapshot)

	n := len(g.calls) - 1
	if n >= len(g.scripts) {
		return "", fmt.Errorf("unscripted gateway call %d", n)
	}
	return g.scripts[n].text, g.scripts[n].err
}

func (g *mockGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// historyStub is an appendable OutputSource standing in for the terminal.
type historyStub struct {
	mu      sync.Mutex
	records []types.OutputRecord
}

func (h *historyStub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func (h *historyStub) Slice(from int) []types.OutputRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if from < 0 || from >= len(h.records) {
		return nil
	}
	out := make([]types.OutputRecord, len(h.records)-from)
	copy(out, h.records[from:])
	return out
}

func (h *historyStub) append(command, output string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, types.OutputRecord{
		Command:   command,
		Output:    output,
		Timestamp: time.Now(),
	})
}

// dispatchSpy records dispatched commands and echoes each into the history
// ending at a prompt, so the completion detector fires on the next poll.
type dispatchSpy struct {
	mu       sync.Mutex
	commands []string
	history  *historyStub
	failWith error
}

func (d *dispatchSpy) dispatch(_ context.Context, command string) error {
	d.mu.Lock()
	d.commands = append(d.commands, command)
	fail := d.failWith
	d.mu.Unlock()
	if fail != nil {
		return fail
	}
	if d.history != nil {
		d.history.append(command, "ran: "+command+"\nuser@host:~$ ")
	}
	return nil
}

func (d *dispatchSpy) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

// recorderSpy captures transcript events.
type recorderSpy struct {
	mu       sync.Mutex
	started  []string
	finished []string
	blocks   []types.ContentBlock
}

func (r *recorderSpy) TaskStarted(t *types.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, t.ID)
	return nil
}

func (r *recorderSpy) BlockAppended(taskID string, b types.ContentBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, b)
	return nil
}

func (r *recorderSpy) TaskFinished(t *types.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, t.ID)
	return nil
}

func (r *recorderSpy) counts() (started, finished, blocks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started), len(r.finished), len(r.blocks)
}
