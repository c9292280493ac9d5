// Package scorer rates query complexity and turns issues and index
// recommendations into a ranked suggestion list.
package scorer

import (
	"regexp"
	"strings"
)

var (
	joinPattern    = regexp.MustCompile(`(?i)\bJOIN\b`)
	applyPattern   = regexp.MustCompile(`(?i)\b(?:CROSS|OUTER)\s+APPLY\b`)
	// Statement-leading WITH or a named CTE body; bare WITH also appears
	// in table hints like WITH (NOLOCK), which are not CTEs.
	ctePattern     = regexp.MustCompile(`(?i)(?:^\s*WITH\b|;\s*WITH\b|\bWITH\s+\[?\w+\]?\s+AS\s*\()`)
	unionPattern   = regexp.MustCompile(`(?i)\bUNION\b`)
	groupByPattern = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
)

// Complexity rates a query from 1 (trivial) to 10 (very complex) based on
// its length, detected issue count and structural keywords.
func Complexity(query string, issueCount int) int {
	score := 1

	length := len(strings.TrimSpace(query))
	score += min(3, length/1000)
	score += min(4, issueCount/2)

	if joinPattern.MatchString(query) {
		score++
	}
	if applyPattern.MatchString(query) {
		score += 2
	}
	if ctePattern.MatchString(query) {
		score++
	}
	if unionPattern.MatchString(query) {
		score++
	}
	if groupByPattern.MatchString(query) {
		score++
	}

	return min(10, score)
}
