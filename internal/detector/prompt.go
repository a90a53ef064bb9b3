package detector

import (
	"regexp"
	"strings"
)

// promptPattern matches a shell prompt at the end of a line: a trailing $, #,
// or > optionally preceded by a user@host or bracketed segment, optionally
// followed by trailing whitespace. Examples it should accept:
//
//	user@host:~$
//	[root@x]#
//	prompt>
//
// It must not fire on $, #, or > appearing mid-line (shell variables,
// comments, redirects).
var promptPattern = regexp.MustCompile(`(\[[^\[\]]*\]|[\w.@~/:-]+)?\s*[$#>][ \t]*$`)

// MatchShellPrompt is the default PromptMatcher. It inspects the last
// non-blank line of output and reports whether it ends at a prompt. The
// heuristic is inherently approximate; callers needing exact detection
// substitute their own matcher.
func MatchShellPrompt(output string) bool {
	line := lastNonBlankLine(output)
	if line == "" {
		return false
	}
	return promptPattern.MatchString(line)
}

// lastNonBlankLine returns the last line of s containing non-whitespace.
func lastNonBlankLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}
