package types

import (
	"strings"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "bare object",
			input: `{"commands":[]}`,
			want:  `{"commands":[]}`,
			ok:    true,
		},
		{
			name:  "prose before and after",
			input: "Sure, here is the plan: {\"analysis\":\"done\"} hope that helps!",
			want:  `{"analysis":"done"}`,
			ok:    true,
		},
		{
			name:  "markdown fence",
			input: "```json\n{\"commands\":[{\"command\":\"ls\"}]}\n```",
			want:  `{"commands":[{"command":"ls"}]}`,
			ok:    true,
		},
		{
			name:  "nested objects",
			input: `{"a":{"b":{"c":1}}}`,
			want:  `{"a":{"b":{"c":1}}}`,
			ok:    true,
		},
		{
			name:  "braces inside string values",
			input: `{"command":"awk '{print $1}'"}`,
			want:  `{"command":"awk '{print $1}'"}`,
			ok:    true,
		},
		{
			name:  "escaped quote inside string",
			input: `{"analysis":"he said \"hi\" {not a brace}"}`,
			want:  `{"analysis":"he said \"hi\" {not a brace}"}`,
			ok:    true,
		},
		{
			name:  "no object at all",
			input: "I'm not sure what you mean",
			ok:    false,
		},
		{
			name:  "unbalanced",
			input: `{"analysis": "trailing`,
			ok:    false,
		},
		{
			name: "empty input",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.input)
			if ok != tt.ok {
				t.Fatalf("ExtractJSONObject(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ExtractJSONObject(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParsePlan(t *testing.T) {
	raw := `Here is what I'll do next.
{"commands":[{"command":"ls -la","description":"list","risk":"low"}],"analysis":"checking files"}`

	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if len(plan.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(plan.Commands))
	}
	if plan.Commands[0].Command != "ls -la" {
		t.Errorf("command = %q", plan.Commands[0].Command)
	}
	if plan.Commands[0].Risk != RiskLow {
		t.Errorf("risk = %v, want low", plan.Commands[0].Risk)
	}
	if plan.Analysis != "checking files" {
		t.Errorf("analysis = %q", plan.Analysis)
	}
	if plan.Completed {
		t.Error("completed should default to false")
	}
}

func TestParsePlan_NoJSON(t *testing.T) {
	_, err := ParsePlan("I'm not sure what you mean")
	if err == nil {
		t.Fatal("expected error for prose-only response")
	}
	if !strings.Contains(err.Error(), "no JSON object") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParsePlan_Malformed(t *testing.T) {
	_, err := ParsePlan(`{"commands": "not an array"}`)
	if err == nil {
		t.Fatal("expected error for malformed plan")
	}
	if !strings.Contains(err.Error(), "malformed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCommandsOf(t *testing.T) {
	plan := &PlanResponse{
		Commands: []PlanCommand{
			{Command: "df -h", Description: "disk usage", Risk: RiskLow},
			{Command: "rm -rf /tmp/x", Description: "cleanup", Risk: RiskHigh},
		},
	}
	cmds := plan.CommandsOf()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	for _, c := range cmds {
		if c.Executed {
			t.Errorf("command %q should start not-executed", c.Text)
		}
	}
	if cmds[1].Risk != RiskHigh {
		t.Errorf("risk = %v, want high", cmds[1].Risk)
	}

	if (&PlanResponse{}).CommandsOf() != nil {
		t.Error("empty plan should yield nil commands")
	}
}
