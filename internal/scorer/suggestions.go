package scorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/mssqlspectre/internal/models"
)

// Fixed per-issue suggestion templates. Impact values drive ranking and are
// deliberately coarse.
var issueTitles = map[models.IssueType]string{
	models.IssueSelectStar:           "Replace SELECT * with an explicit column list",
	models.IssueNoLockHint:           "Remove the NOLOCK hint",
	models.IssueImplicitConversion:   "Match literal types to column types",
	models.IssueNonSargablePredicate: "Rewrite the predicate to be index-friendly",
	models.IssueUnnecessaryDistinct:  "Remove DISTINCT unless duplicates are expected",
	models.IssueCartesianJoin:        "Replace the comma join with an explicit JOIN",
	models.IssueScalarFunction:       "Move the scalar function out of the projection",
}

var issueImpacts = map[models.IssueType]float64{
	models.IssueSelectStar:           40,
	models.IssueNoLockHint:           55,
	models.IssueImplicitConversion:   60,
	models.IssueNonSargablePredicate: 70,
	models.IssueUnnecessaryDistinct:  30,
	models.IssueCartesianJoin:        90,
	models.IssueScalarFunction:       35,
}

// BuildSuggestions maps every issue and index recommendation to a
// Suggestion and ranks the combined list by estimated impact descending.
// Entries with equal impact keep their original relative order.
func BuildSuggestions(issues []models.Issue, recs []models.IndexRecommendation) []models.Suggestion {
	suggestions := make([]models.Suggestion, 0, len(issues)+len(recs))

	for _, issue := range issues {
		title, ok := issueTitles[issue.Type]
		if !ok {
			title = fmt.Sprintf("Review %s", issue.Type)
		}
		impact := issueImpacts[issue.Type]
		suggestions = append(suggestions, models.Suggestion{
			Title:            title,
			Description:      issue.Description,
			OriginalFragment: issue.Fragment,
			Priority:         priorityFor(impact),
			EstimatedImpact:  impact,
		})
	}

	for _, rec := range recs {
		suggestions = append(suggestions, models.Suggestion{
			Title:             fmt.Sprintf("Create an index on [%s].[%s]", rec.Schema, rec.Table),
			Description:       fmt.Sprintf("The engine reported a missing index covering %s.", keyColumnList(rec)),
			SuggestedFragment: rec.DDL,
			Priority:          priorityFor(rec.EstimatedImpact),
			EstimatedImpact:   rec.EstimatedImpact,
		})
	}

	Rank(suggestions)
	return suggestions
}

// Rank orders suggestions by estimated impact descending, keeping the
// original relative order of equal-impact entries.
func Rank(suggestions []models.Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].EstimatedImpact > suggestions[j].EstimatedImpact
	})
}

func priorityFor(impact float64) string {
	switch {
	case impact >= 70:
		return "high"
	case impact >= 40:
		return "medium"
	default:
		return "low"
	}
}

func keyColumnList(rec models.IndexRecommendation) string {
	names := make([]string, 0, len(rec.KeyColumns))
	for _, col := range rec.KeyColumns {
		names = append(names, col.Name)
	}
	return strings.Join(names, ", ")
}
