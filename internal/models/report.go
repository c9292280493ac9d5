package models

import "time"

// Report is the complete output structure
type Report struct {
	Tool      string           `json:"tool"`
	Version   string           `json:"version"`
	Timestamp string           `json:"timestamp"`
	Metadata  Metadata         `json:"metadata"`
	Results   []AnalysisResult `json:"results"`
	Summary   Summary          `json:"summary"`
}

// Metadata contains report generation info
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	ServerHost       string    `json:"server_host"`
	ServerVersion    string    `json:"server_version"`
	QueriesAnalyzed  int       `json:"queries_analyzed"`
	AnalysisDuration string    `json:"analysis_duration"`
	Version          string    `json:"version"`
}

// Summary counts findings across all analyzed queries.
type Summary struct {
	TotalIssues          int `json:"total_issues"`
	TotalSuggestions     int `json:"total_suggestions"`
	TotalIndexes         int `json:"total_index_recommendations"`
	TotalRedundant       int `json:"total_redundant_indexes"`
	HighImpact           int `json:"high_impact"`
	MediumImpact         int `json:"medium_impact"`
	LowImpact            int `json:"low_impact"`
	QueriesWithFindings  int `json:"queries_with_findings"`
	QueriesWithoutIssues int `json:"queries_without_issues"`
}

// BuildSummary tallies the summary block from per-query results.
func BuildSummary(results []AnalysisResult) Summary {
	var s Summary
	for _, r := range results {
		s.TotalIssues += len(r.Issues)
		s.TotalSuggestions += len(r.Suggestions)
		s.TotalIndexes += len(r.Recommendations)
		s.TotalRedundant += len(r.RedundantIndexes)
		for _, sg := range r.Suggestions {
			switch {
			case sg.EstimatedImpact >= 70:
				s.HighImpact++
			case sg.EstimatedImpact >= 40:
				s.MediumImpact++
			default:
				s.LowImpact++
			}
		}
		if len(r.Suggestions) > 0 {
			s.QueriesWithFindings++
		}
		if len(r.Issues) == 0 {
			s.QueriesWithoutIssues++
		}
	}
	return s
}
