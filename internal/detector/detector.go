// Package detector scans query text for T-SQL anti-patterns.
//
// Detection is deliberately text-based: the rules run ordered regular
// expressions over a normalized copy of the query, not a parse tree.
package detector

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/ppiankov/mssqlspectre/internal/models"
)

// rule is a single anti-pattern check. A rule yields at most one issue.
type rule struct {
	name  models.IssueType
	check func(normalized string) *models.Issue
}

// defaultRules run in a fixed order; output preserves this order, not
// severity order.
var defaultRules = []rule{
	{models.IssueSelectStar, checkSelectStar},
	{models.IssueNoLockHint, checkNoLockHint},
	{models.IssueImplicitConversion, checkImplicitConversion},
	{models.IssueNonSargablePredicate, checkNonSargable},
	{models.IssueUnnecessaryDistinct, checkDistinct},
	{models.IssueCartesianJoin, checkCartesianJoin},
	{models.IssueScalarFunction, checkScalarFunction},
}

// Detector runs the anti-pattern rules over query text.
type Detector struct {
	rules []rule
}

// Checks returns the name of every default rule, in evaluation order.
func Checks() []models.IssueType {
	names := make([]models.IssueType, 0, len(defaultRules))
	for _, r := range defaultRules {
		names = append(names, r.name)
	}
	return names
}

// New creates a detector. Rules named in excluded are skipped; unknown names
// are ignored. Pattern expansion happens at the config layer; names here
// are exact.
func New(excluded ...string) *Detector {
	if len(excluded) == 0 {
		return &Detector{rules: defaultRules}
	}
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[strings.ToLower(strings.TrimSpace(name))] = true
	}
	var kept []rule
	for _, r := range defaultRules {
		if !skip[string(r.name)] {
			kept = append(kept, r)
		}
	}
	return &Detector{rules: kept}
}

// Detect normalizes the query text and evaluates every rule against it.
// Running twice on identical text yields an identical, order-stable list.
func (d *Detector) Detect(query string) ([]models.Issue, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "query text is empty")
	}

	normalized := Normalize(query)

	issues := make([]models.Issue, 0, len(d.rules))
	for _, r := range d.rules {
		if issue := r.check(normalized); issue != nil {
			issues = append(issues, *issue)
		}
	}
	return issues, nil
}

var (
	lineCommentPattern  = regexp.MustCompile(`--[^\r\n]*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// Normalize strips comments and collapses whitespace. Comment-like sequences
// inside string literals are not protected and may be mis-stripped; this is a
// documented limitation of text-based detection.
func Normalize(query string) string {
	s := blockCommentPattern.ReplaceAllString(query, " ")
	s = lineCommentPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
