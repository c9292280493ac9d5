package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/pkg/config"
)

const (
	textANSIReset = "\x1b[0m"
	textANSIBold  = "\x1b[1m"

	textQueryPreviewLen = 100
)

// WriteText writes a human-readable text report to report.txt and stdout.
func WriteText(report *models.Report, cfg *config.Config) error {
	return writeText(report, cfg, os.Stdout)
}

func writeText(report *models.Report, cfg *config.Config, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if out == nil {
		return fmt.Errorf("writer is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := renderTextReport(report, supportsANSI(out))
	outputPath := filepath.Join(cfg.OutputDir, "report.txt")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report.txt: %w", err)
	}

	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("failed to write text report to output: %w", err)
	}

	return nil
}

func renderTextReport(report *models.Report, useANSI bool) string {
	var b strings.Builder

	generatedAt := strings.TrimSpace(report.Timestamp)
	if generatedAt == "" {
		if !report.Metadata.GeneratedAt.IsZero() {
			generatedAt = report.Metadata.GeneratedAt.UTC().Format(time.RFC3339)
		} else {
			generatedAt = "unknown"
		}
	}

	host := strings.TrimSpace(report.Metadata.ServerHost)
	if host == "" {
		host = "unknown"
	}
	version := strings.TrimSpace(report.Metadata.ServerVersion)
	if version == "" {
		version = "Unknown"
	}

	writeTextSectionHeader(&b, "MssqlSpectre Query Advisory Report", useANSI)
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt)
	fmt.Fprintf(&b, "Server host: %s\n", host)
	fmt.Fprintf(&b, "Server version: %s\n", version)
	fmt.Fprintf(&b, "Queries analyzed: %d\n", report.Metadata.QueriesAnalyzed)
	b.WriteString("\n")

	writeTextSectionHeader(&b, "Summary", useANSI)
	fmt.Fprintf(&b, "Issues: %d\n", report.Summary.TotalIssues)
	fmt.Fprintf(&b, "Index recommendations: %d\n", report.Summary.TotalIndexes)
	fmt.Fprintf(&b, "Redundant indexes: %d\n", report.Summary.TotalRedundant)
	fmt.Fprintf(&b, "Suggestions: %d\n", report.Summary.TotalSuggestions)
	b.WriteString("Suggestion impact distribution:\n")
	fmt.Fprintf(&b, "  high (>=70):   %d\n", report.Summary.HighImpact)
	fmt.Fprintf(&b, "  medium (>=40): %d\n", report.Summary.MediumImpact)
	fmt.Fprintf(&b, "  low:           %d\n", report.Summary.LowImpact)
	b.WriteString("\n")

	for i, result := range report.Results {
		writeTextSectionHeader(&b, fmt.Sprintf("Query %d", i+1), useANSI)
		fmt.Fprintf(&b, "%s\n", truncateTextValue(collapseWhitespace(result.Query), textQueryPreviewLen))
		fmt.Fprintf(&b, "Complexity: %d/10\n", result.Complexity)

		if len(result.Issues) == 0 {
			b.WriteString("No anti-patterns detected.\n")
		} else {
			b.WriteString("Issues:\n")
			for _, issue := range result.Issues {
				fmt.Fprintf(&b, "  - [%s] %s: %s\n", issue.Severity, issue.Type, issue.Description)
			}
		}

		if len(result.Recommendations) > 0 {
			b.WriteString("Index recommendations:\n")
			for _, rec := range result.Recommendations {
				fmt.Fprintf(&b, "  - impact %.0f%%: %s\n", rec.EstimatedImpact, rec.DDL)
			}
		}

		if len(result.RedundantIndexes) > 0 {
			b.WriteString("Redundant indexes:\n")
			for _, redundant := range result.RedundantIndexes {
				fmt.Fprintf(&b, "  - [%s].[%s].[%s]: %s\n", redundant.Schema, redundant.Table, redundant.Index, redundant.Reason)
				fmt.Fprintf(&b, "    %s\n", redundant.DropDDL)
			}
		}

		if result.Metrics != nil {
			b.WriteString("Metrics (mean per run):\n")
			fmt.Fprintf(&b, "  execution time: %.2f ms\n", result.Metrics.ExecutionTimeMs)
			fmt.Fprintf(&b, "  cpu time:       %.2f ms\n", result.Metrics.CPUTimeMs)
			fmt.Fprintf(&b, "  logical reads:  %.0f\n", result.Metrics.LogicalReads)
			fmt.Fprintf(&b, "  rows returned:  %.0f\n", result.Metrics.RowsReturned)
			if result.Metrics.PlanCost > 0 {
				fmt.Fprintf(&b, "  plan cost:      %.4f\n", result.Metrics.PlanCost)
			}
		}

		if result.RewrittenQuery != "" {
			fmt.Fprintf(&b, "Rewritten query: %s\n", truncateTextValue(collapseWhitespace(result.RewrittenQuery), textQueryPreviewLen))
			if result.RewriteMetrics != nil {
				fmt.Fprintf(&b, "Improvement: %.1f%%\n", result.ImprovementPercent)
			}
		}

		if len(result.Suggestions) > 0 {
			b.WriteString("Suggestions (by impact):\n")
			for _, suggestion := range result.Suggestions {
				fmt.Fprintf(&b, "  - [%s, %.0f%%] %s\n", suggestion.Priority, suggestion.EstimatedImpact, suggestion.Title)
			}
		}

		b.WriteString("\n")
	}

	return b.String()
}

func writeTextSectionHeader(b *strings.Builder, title string, useANSI bool) {
	header := title
	if useANSI {
		header = textANSIBold + title + textANSIReset
	}
	fmt.Fprintf(b, "%s\n", header)
	fmt.Fprintf(b, "%s\n", strings.Repeat("-", len(title)))
}

func supportsANSI(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

func collapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func truncateTextValue(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
