package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// PLAN EXTRACTION UTILITIES
// =============================================================================
//
// The LLM gateway returns free text that is expected to *contain* a JSON
// object of the form:
//
//	{"commands":[{"command":"ls","description":"list","risk":"low"}],
//	 "analysis":"...", "completed":false}
//
// Models wrap this in markdown fences, prefix it with prose, or append
// commentary after the closing brace. These helpers pull the first
// brace-balanced object out of the noise; the raw text is always kept by the
// caller so a failed parse is diagnosable.

// PlanCommand is one proposed command as it appears on the wire.
type PlanCommand struct {
	Command     string    `json:"command"`
	Description string    `json:"description"`
	Risk        RiskLevel `json:"risk"`
}

// PlanResponse is the parsed planner payload. Commands empty means the
// planner considers the task finished; Completed lets it say so explicitly
// even alongside text.
type PlanResponse struct {
	Commands  []PlanCommand `json:"commands"`
	Analysis  string        `json:"analysis"`
	Completed bool          `json:"completed"`
}

// ExtractJSONObject returns the first brace-balanced {...} substring of s,
// tracking string literals and escapes so braces inside quoted values do not
// unbalance the scan. Returns ("", false) when s contains no complete object.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
			// Braces inside string values don't count.
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParsePlan extracts and decodes a PlanResponse from raw gateway text.
// The error distinguishes "no JSON object found" from "object found but
// malformed"; in both cases the caller is expected to preserve raw verbatim
// in the transcript.
func ParsePlan(raw string) (*PlanResponse, error) {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var plan PlanResponse
	if err := json.Unmarshal([]byte(obj), &plan); err != nil {
		return nil, fmt.Errorf("malformed plan object: %w", err)
	}
	return &plan, nil
}

// CommandsOf converts wire commands into transcript Commands, all marked
// not-yet-executed.
func (p *PlanResponse) CommandsOf() []Command {
	if len(p.Commands) == 0 {
		return nil
	}
	cmds := make([]Command, 0, len(p.Commands))
	for _, pc := range p.Commands {
		cmds = append(cmds, Command{
			Text:        pc.Command,
			Description: pc.Description,
			Risk:        pc.Risk,
		})
	}
	return cmds
}
