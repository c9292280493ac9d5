package analyzer

import (
	"regexp"
	"strings"

	"github.com/ppiankov/mssqlspectre/internal/models"
)

// Rewrite rules are deliberately bounded to safe, context-free textual
// substitutions. Anything that needs schema knowledge, like expanding
// SELECT * into a column list, is never attempted.
var rewriteRules = []struct {
	issue models.IssueType
	apply func(string) string
}{
	{models.IssueUnnecessaryDistinct, removeDistinct},
	{models.IssueNoLockHint, removeNoLock},
}

var (
	distinctKeywordPattern = regexp.MustCompile(`(?i)\b(SELECT)\s+DISTINCT\b`)
	noLockHintPattern      = regexp.MustCompile(`(?i)\s*WITH\s*\(\s*NOLOCK\s*\)`)
)

// Rewrite applies every rewrite rule whose issue was detected and returns
// the resulting text. When no rule applies the input is returned unchanged.
func Rewrite(query string, issues []models.Issue) string {
	detected := make(map[models.IssueType]bool, len(issues))
	for _, issue := range issues {
		detected[issue.Type] = true
	}

	rewritten := query
	for _, rule := range rewriteRules {
		if detected[rule.issue] {
			rewritten = rule.apply(rewritten)
		}
	}
	return strings.TrimSpace(rewritten)
}

func removeDistinct(query string) string {
	return distinctKeywordPattern.ReplaceAllString(query, "$1")
}

func removeNoLock(query string) string {
	return noLockHintPattern.ReplaceAllString(query, "")
}
