package dialogue

import "regexp"

// ansiPattern matches CSI sequences (colors, cursor movement) and OSC title
// sequences, the two families terminals actually emit in command output.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
