// Package detector infers that a dispatched command has finished by watching
// the terminal's append-only output history for a shell prompt, with a
// bounded poll count as the timeout fallback. The terminal gives no explicit
// "command finished" signal; this heuristic is the only completion source.
package detector

import (
	"context"
	"strings"
	"time"

	"shellpilot/internal/logging"
	"shellpilot/internal/types"
)

// SkippedOutput is the synthetic output used when the user skips a proposed
// command instead of running it.
const SkippedOutput = "Command skipped"

// Defaults for the poll loop. 100 polls at 100ms gives a ten second ceiling
// before the detector forces progress with whatever output accumulated.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxPolls     = 100
)

// PromptMatcher decides whether a chunk of terminal output ends at a shell
// prompt. It is a replaceable strategy so tests (and exotic shells) can
// substitute a deterministic matcher.
type PromptMatcher func(output string) bool

// Detector polls an output history for command completion. It holds no locks
// and reads the history through the read-only OutputSource view; it never
// mutates terminal state.
type Detector struct {
	source   types.OutputSource
	matcher  PromptMatcher
	interval time.Duration
	maxPolls int
}

// Option configures a Detector.
type Option func(*Detector)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(det *Detector) { det.interval = d }
}

// WithMaxPolls overrides the poll ceiling.
func WithMaxPolls(n int) Option {
	return func(det *Detector) { det.maxPolls = n }
}

// WithMatcher overrides the prompt matching strategy.
func WithMatcher(m PromptMatcher) Option {
	return func(det *Detector) { det.matcher = m }
}

// New creates a detector over the given output history.
func New(source types.OutputSource, opts ...Option) *Detector {
	d := &Detector{
		source:   source,
		matcher:  MatchShellPrompt,
		interval: DefaultPollInterval,
		maxPolls: DefaultMaxPolls,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mark captures the history length at dispatch time. Output appended after
// this index belongs to the command being watched.
func (d *Detector) Mark() int {
	return d.source.Len()
}

// Wait polls the history until the newest entry ends at a shell prompt, the
// poll ceiling is reached, or ctx is cancelled. On prompt match or ceiling it
// returns the concatenated output of every record appended since startLength;
// the ceiling path is deliberately non-fatal so progress is never blocked by
// a prompt the matcher fails to recognize.
func (d *Detector) Wait(ctx context.Context, startLength int) (string, error) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			polls++
			n := d.source.Len()
			if n > startLength {
				records := d.source.Slice(startLength)
				if len(records) > 0 && d.matcher(records[len(records)-1].Output) {
					logging.Detector("prompt detected after %d polls (%d records)", polls, len(records))
					return capture(records), nil
				}
			}
			if polls >= d.maxPolls {
				logging.Detector("poll ceiling %d reached, forcing progress with %d records", d.maxPolls, n-startLength)
				return capture(d.source.Slice(startLength)), nil
			}
		}
	}
}

// Skip bypasses polling entirely and returns the fixed skip literal.
func (d *Detector) Skip() string {
	return SkippedOutput
}

// capture concatenates the output text of the given records in order.
func capture(records []types.OutputRecord) string {
	if len(records) == 0 {
		return ""
	}
	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, r.Output)
	}
	return strings.Join(parts, "\n")
}
