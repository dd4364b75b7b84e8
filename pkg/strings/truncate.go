// Package strings holds small text helpers shared by the CLI output and the
// HTML error pages.
package strings

import (
	"strings"
)

// DefaultValueMaxLen is the widest value printed in a table cell.
const DefaultValueMaxLen = 100

// DefaultDetailMaxLen caps text taken from a provider redirect before it is
// shown to a visitor.
const DefaultDetailMaxLen = 200

// MinTruncateLen leaves room for one character plus "...".
const MinTruncateLen = 4

// Truncate collapses all whitespace runs (including newlines) to single
// spaces and cuts the result to at most maxLen runes, ending it with "..."
// when something was removed. maxLen is raised to MinTruncateLen if smaller.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
