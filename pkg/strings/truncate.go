// Package strings holds small text helpers for CLI and log output.
package strings

import (
	"strings"
)

// DefaultReasonMaxLen is how much of a status reason fits in a table cell.
const DefaultReasonMaxLen = 60

// minTruncateLen leaves room for one character plus "...".
const minTruncateLen = 4

// SingleLine collapses all whitespace runs (including newlines) to single
// spaces and cuts the result to maxLen runes, ending in "..." when cut.
// Provider error descriptions are often multi-line, which breaks tables.
func SingleLine(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
