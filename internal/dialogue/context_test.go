package dialogue

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"shellpilot/internal/types"
)

type stubSource struct {
	records []types.OutputRecord
}

func (s *stubSource) Len() int { return len(s.records) }

func (s *stubSource) Slice(from int) []types.OutputRecord {
	if from < 0 || from >= len(s.records) {
		return nil
	}
	return s.records[from:]
}

func TestContext_SystemEntryFirst(t *testing.T) {
	c := NewContext("you are a shell agent", DefaultLimits())
	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("fresh context should hold only the system entry, got %d", len(entries))
	}
	if entries[0].Role != types.RoleSystem || entries[0].Content != "you are a shell agent" {
		t.Errorf("unexpected system entry: %+v", entries[0])
	}
}

func TestContext_BoundedHistory(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxHistoryLength = 3
	c := NewContext("sys", limits)

	for i := 0; i < 10; i++ {
		c.AppendTurn(fmt.Sprintf("goal %d", i), true)
		if got := c.Len(); got > limits.MaxHistoryLength+1 {
			t.Fatalf("after %d turns log holds %d entries, cap is %d", i+1, got, limits.MaxHistoryLength+1)
		}
	}

	entries := c.Entries()
	want := []types.DialogueEntry{
		{Role: types.RoleSystem, Content: "sys"},
		{Role: types.RoleUser, Content: "goal 7"},
		{Role: types.RoleUser, Content: "goal 8"},
		{Role: types.RoleUser, Content: "goal 9"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch after eviction (-want +got):\n%s", diff)
	}
}

func TestContext_ContinuationAccumulates(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	c.AppendTurn("list the files", true)
	c.AppendTurn("step one result", false)
	c.AppendTurn("step two result", false)

	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("continuations must not add entries, got %d", len(entries))
	}
	want := "list the files\n\nstep one result\n\nstep two result"
	if entries[1].Content != want {
		t.Errorf("accumulated entry = %q, want %q", entries[1].Content, want)
	}
}

func TestContext_ContinuationBeforeAnyGoal(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	c.AppendTurn("orphan output", false)
	entries := c.Entries()
	if len(entries) != 2 || entries[1].Content != "orphan output" {
		t.Fatalf("continuation with no prior user entry should start one, got %+v", entries)
	}
}

func TestContext_Reset(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	c.AppendTurn("goal", true)
	c.AppendTurn("more", false)
	c.Reset()

	entries := c.Entries()
	if len(entries) != 1 || entries[0].Role != types.RoleSystem {
		t.Fatalf("reset should leave only the system entry, got %+v", entries)
	}
}

func TestFormatTurn_NewQueryVerbatim(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	in := "  deploy the staging build  "
	if got := c.FormatTurn(in, nil, true); got != in {
		t.Errorf("new query must pass through verbatim, got %q", got)
	}
}

func TestFormatTurn_Continuation(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	src := &stubSource{records: []types.OutputRecord{
		{Command: "ls /tmp", Output: "a\nb", Timestamp: time.Now()},
	}}

	got := c.FormatTurn("a\nb\n", src, false)
	if !strings.HasPrefix(got, "The previous command has finished.\n") {
		t.Errorf("missing preamble: %q", got)
	}
	if !strings.Contains(got, "Command: ls /tmp\n") {
		t.Errorf("missing command line: %q", got)
	}
	if !strings.Contains(got, "Output:\na\nb\n") {
		t.Errorf("missing output section: %q", got)
	}
	if !strings.HasSuffix(got, "Decide the next step toward the goal, or report completion.") {
		t.Errorf("missing instruction suffix: %q", got)
	}
}

func TestFormatTurn_ContinuationNoHistory(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	got := c.FormatTurn("done", &stubSource{}, false)
	if strings.Contains(got, "Command:") {
		t.Errorf("empty history should omit the command line: %q", got)
	}
}

func TestCompactOutput_PassThrough(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	in := "line one\nline two"
	if got := c.CompactOutput(in); got != in {
		t.Errorf("short output should pass through unchanged, got %q", got)
	}
	if got := c.CompactOutput(in); got != c.CompactOutput(got) {
		t.Error("compaction should be idempotent on already-compacted output")
	}
}

func TestCompactOutput_DropsBlankLines(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	got := c.CompactOutput("a\n\n   \nb\n")
	if got != "a\nb" {
		t.Errorf("got %q, want blank lines dropped", got)
	}
}

func TestCompactOutput_LineCap(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxOutputLines = 3
	c := NewContext("sys", limits)

	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	got := c.CompactOutput(b.String())
	want := "[... 7 earlier lines omitted ...]\nline 8\nline 9\nline 10"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCompactOutput_CharCap(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxOutputLength = 10
	c := NewContext("sys", limits)

	long := strings.Repeat("x", 15) + "TAIL-CHARS"
	got := c.CompactOutput(long)
	if !strings.HasPrefix(got, "[... 15 chars omitted ...]") {
		t.Errorf("missing char-cap marker: %q", got)
	}
	if !strings.HasSuffix(got, "TAIL-CHARS") {
		t.Errorf("char cap must keep the line tail: %q", got)
	}
}

func TestCompactOutput_CharCapKeepsValidUTF8(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxOutputLength = 10
	c := NewContext("sys", limits)

	// Three bytes per rune; a byte-count cut would land mid-rune.
	got := c.CompactOutput(strings.Repeat("日", 10))
	if !utf8.ValidString(got) {
		t.Fatalf("tail cap produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "日日日") {
		t.Errorf("tail should be whole runes: %q", got)
	}
}

func TestCompactOutput_StripsANSI(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	got := c.CompactOutput("\x1b[32mgreen\x1b[0m text")
	if got != "green text" {
		t.Errorf("got %q, want ANSI codes removed", got)
	}
}

func TestCompactOutput_Empty(t *testing.T) {
	c := NewContext("sys", DefaultLimits())
	if got := c.CompactOutput("\x1b[0m \n\t"); got != "" {
		t.Errorf("whitespace-and-escape-only output should compact to empty, got %q", got)
	}
}

func TestStripANSI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"\x1b[1;31mred\x1b[0m", "red"},
		{"\x1b[2J\x1b[Hcleared", "cleared"},
		{"\x1b]0;title\x07body", "body"},
		{"cursor\x1b[10;20Hmoved", "cursormoved"},
	}
	for _, tt := range tests {
		if got := StripANSI(tt.in); got != tt.want {
			t.Errorf("StripANSI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
