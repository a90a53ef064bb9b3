package shell

import (
	"context"
	"os/exec"
	"time"

	"shellpilot/internal/logging"
	"shellpilot/internal/types"
)

// DefaultPrompt terminates each captured output so the completion detector's
// prompt matcher closes the loop exactly as it would against a live
// terminal.
const DefaultPrompt = "shellpilot$ "

// Runner executes commands locally and appends their captured output to a
// History. Dispatch returns as soon as the command is queued; a single worker
// goroutine runs commands one at a time, so batch outputs land in the history
// in dispatch order the way a terminal serializes typed commands.
type Runner struct {
	history *History
	workdir string
	timeout time.Duration
	prompt  string
	jobs    chan job
}

type job struct {
	ctx     context.Context
	command string
}

// NewRunner creates a runner writing into history and starts its worker.
// workdir empty means the process working directory.
func NewRunner(history *History, workdir string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := &Runner{
		history: history,
		workdir: workdir,
		timeout: timeout,
		prompt:  DefaultPrompt,
		jobs:    make(chan job, 16),
	}
	go r.worker()
	return r
}

// Dispatch queues command for execution. Execution failures are part of the
// captured output, not dispatch errors - the model is expected to read stderr
// and react, the same way a human watching the terminal would.
func (r *Runner) Dispatch(ctx context.Context, command string) error {
	logging.Shell("dispatch: %s", command)
	select {
	case r.jobs <- job{ctx: ctx, command: command}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after it drains the queue. Dispatch must not be
// called after Close.
func (r *Runner) Close() {
	close(r.jobs)
}

func (r *Runner) worker() {
	for j := range r.jobs {
		r.run(j.ctx, j.command)
	}
}

func (r *Runner) run(ctx context.Context, command string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.workdir

	output, err := cmd.CombinedOutput()
	text := string(output)
	if err != nil {
		text += "\n" + err.Error()
	}
	text += "\n" + r.prompt

	r.history.Append(types.OutputRecord{
		Command:   command,
		Output:    text,
		Timestamp: time.Now(),
	})
}
