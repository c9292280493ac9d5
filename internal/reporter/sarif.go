package reporter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/pkg/config"
)

const (
	ruleAntiPattern    = "mssqlspectre/ANTI_PATTERN"
	ruleMissingIndex   = "mssqlspectre/MISSING_INDEX"
	ruleRedundantIndex = "mssqlspectre/REDUNDANT_INDEX"

	ruleIndexAntiPattern    = 0
	ruleIndexMissingIndex   = 1
	ruleIndexRedundantIndex = 2

	sarifFallbackLocationURI = "README.md"
	sarifSchemaURI           = "https://docs.oasis-open.org/sarif/sarif/v2.1.0/cs01/schemas/sarif-schema-2.1.0.json"
)

var semanticVersionPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool               `json:"tool"`
	Results           []sarifResult           `json:"results"`
	AutomationDetails *sarifAutomationDetails `json:"automationDetails,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifAutomationDetails struct {
	ID string `json:"id"`
}

type sarifDriver struct {
	Name            string       `json:"name"`
	Version         string       `json:"version,omitempty"`
	InformationURI  string       `json:"informationUri,omitempty"`
	ShortDesc       sarifMessage `json:"shortDescription"`
	FullDesc        sarifMessage `json:"fullDescription"`
	Rules           []sarifRule  `json:"rules"`
	DownloadURI     string       `json:"downloadUri,omitempty"`
	SemanticVersion string       `json:"semanticVersion,omitempty"`
}

type sarifRule struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ShortDesc     sarifMessage `json:"shortDescription"`
	FullDesc      sarifMessage `json:"fullDescription"`
	DefaultConfig sarifConfig  `json:"defaultConfiguration"`
	HelpURI       string       `json:"helpUri,omitempty"`
	Help          sarifMessage `json:"help,omitempty"`
	Properties    any          `json:"properties,omitempty"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           *int              `json:"ruleIndex,omitempty"`
	Level               string            `json:"level,omitempty"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation  `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

type sarifLogicalLocation struct {
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// WriteSARIF writes SARIF 2.1.0 output to report.sarif.
func WriteSARIF(report *models.Report, cfg *config.Config) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	reportVersion := report.Version
	if reportVersion == "" {
		reportVersion = report.Metadata.Version
	}

	output := sarifLog{
		Version: "2.1.0",
		Schema:  sarifSchemaURI,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:            "mssqlspectre",
						Version:         reportVersion,
						SemanticVersion: normalizeSemanticVersion(reportVersion),
						InformationURI:  "https://github.com/ppiankov/mssqlspectre",
						DownloadURI:     "https://github.com/ppiankov/mssqlspectre/releases/latest",
						ShortDesc: sarifMessage{
							Text: "SQL Server query advisor",
						},
						FullDesc: sarifMessage{
							Text: "Detects anti-patterns, missing indexes and redundant indexes for SQL Server queries.",
						},
						Rules: []sarifRule{
							{
								ID:        ruleAntiPattern,
								Name:      "ANTI_PATTERN",
								ShortDesc: sarifMessage{Text: "Query contains an anti-pattern"},
								FullDesc:  sarifMessage{Text: "The query text matched a known anti-pattern signature and should be reviewed."},
								DefaultConfig: sarifConfig{
									Level: "warning",
								},
							},
							{
								ID:        ruleMissingIndex,
								Name:      "MISSING_INDEX",
								ShortDesc: sarifMessage{Text: "The engine reported a missing index"},
								FullDesc:  sarifMessage{Text: "The execution plan carries a missing-index advisory; creating the index should reduce query cost."},
								DefaultConfig: sarifConfig{
									Level: "warning",
								},
							},
							{
								ID:        ruleRedundantIndex,
								Name:      "REDUNDANT_INDEX",
								ShortDesc: sarifMessage{Text: "An index duplicates another index"},
								FullDesc:  sarifMessage{Text: "Two indexes on the same table share the same ordered column list; the duplicate can usually be dropped."},
								DefaultConfig: sarifConfig{
									Level: "note",
								},
							},
						},
					},
				},
				Results: buildSARIFResults(report),
				AutomationDetails: &sarifAutomationDetails{
					ID: "mssqlspectre/analyze",
				},
			},
		},
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal SARIF: %w", err)
	}

	outputPath := filepath.Join(cfg.OutputDir, "report.sarif")
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report.sarif: %w", err)
	}

	return nil
}

func buildSARIFResults(report *models.Report) []sarifResult {
	results := make([]sarifResult, 0)
	if report == nil {
		return results
	}

	for queryIndex, analysis := range report.Results {
		queryLabel := fmt.Sprintf("query-%d", queryIndex+1)

		for _, issue := range analysis.Issues {
			message := issue.Description
			if message == "" {
				message = fmt.Sprintf("Query matched the %s anti-pattern.", issue.Type)
			}
			fingerprint := hashFinding("issue", string(issue.Type), issue.Fragment, analysis.Query)
			results = append(results, sarifResult{
				RuleID:    ruleAntiPattern,
				RuleIndex: ruleIndexPtr(ruleIndexAntiPattern),
				Level:     mapSeverityToSARIFLevel(issue.Severity),
				Message:   sarifMessage{Text: message},
				Locations: queryLocation(queryLabel, string(issue.Type)),
				PartialFingerprints: map[string]string{
					"mssqlspectre/findingHash": fingerprint,
				},
				Properties: map[string]any{
					"category": "anti_pattern",
					"type":     string(issue.Type),
					"severity": issue.Severity,
					"fragment": issue.Fragment,
				},
			})
		}

		for _, rec := range analysis.Recommendations {
			tableName := buildTableName(rec.Schema, rec.Table)
			fingerprint := hashFinding("recommendation", rec.Database, rec.DDL)
			results = append(results, sarifResult{
				RuleID:    ruleMissingIndex,
				RuleIndex: ruleIndexPtr(ruleIndexMissingIndex),
				Level:     "warning",
				Message:   sarifMessage{Text: fmt.Sprintf("Missing index on %q (estimated impact %.0f%%): %s", tableName, rec.EstimatedImpact, rec.DDL)},
				Locations: tableLocation(tableName),
				PartialFingerprints: map[string]string{
					"mssqlspectre/findingHash": fingerprint,
				},
				Properties: map[string]any{
					"category": "missing_index",
					"table":    tableName,
					"database": rec.Database,
					"impact":   rec.EstimatedImpact,
					"ddl":      rec.DDL,
				},
			})
		}

		for _, redundant := range analysis.RedundantIndexes {
			tableName := buildTableName(redundant.Schema, redundant.Table)
			fingerprint := hashFinding("redundant_index", redundant.Schema, redundant.Table, redundant.Index)
			results = append(results, sarifResult{
				RuleID:    ruleRedundantIndex,
				RuleIndex: ruleIndexPtr(ruleIndexRedundantIndex),
				Level:     "note",
				Message:   sarifMessage{Text: fmt.Sprintf("Index %q on %q is redundant: %s", redundant.Index, tableName, redundant.Reason)},
				Locations: tableLocation(tableName),
				PartialFingerprints: map[string]string{
					"mssqlspectre/findingHash": fingerprint,
				},
				Properties: map[string]any{
					"category": "redundant_index",
					"table":    tableName,
					"index":    redundant.Index,
					"drop_ddl": redundant.DropDDL,
				},
			})
		}
	}

	return results
}

func buildTableName(schema string, name string) string {
	s := strings.TrimSpace(schema)
	table := strings.TrimSpace(name)
	switch {
	case s == "" && table == "":
		return "unknown_table"
	case s == "":
		return table
	case table == "":
		return s
	default:
		return s + "." + table
	}
}

func tableLocation(tableName string) []sarifLocation {
	normalized := strings.TrimSpace(tableName)
	if normalized == "" {
		normalized = "unknown_table"
	}

	name := normalized
	if strings.Contains(normalized, ".") {
		parts := strings.SplitN(normalized, ".", 2)
		name = parts[1]
	}

	return []sarifLocation{
		{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: sarifFallbackLocationURI},
				Region: &sarifRegion{
					StartLine: 1,
				},
			},
			LogicalLocations: []sarifLogicalLocation{
				{
					Name:               name,
					FullyQualifiedName: normalized,
					Kind:               "table",
				},
			},
		},
	}
}

func queryLocation(queryLabel string, issueType string) []sarifLocation {
	return []sarifLocation{
		{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: sarifFallbackLocationURI},
				Region: &sarifRegion{
					StartLine: 1,
				},
			},
			LogicalLocations: []sarifLogicalLocation{
				{
					Name:               issueType,
					FullyQualifiedName: queryLabel + "/" + issueType,
					Kind:               "query",
				},
			},
		},
	}
}

func mapSeverityToSARIFLevel(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case models.SeverityCritical:
		return "error"
	case models.SeverityInfo:
		return "note"
	default:
		return "warning"
	}
}

func normalizeSemanticVersion(version string) string {
	normalized := strings.TrimSpace(strings.TrimPrefix(version, "v"))
	if semanticVersionPattern.MatchString(normalized) {
		return normalized
	}
	return ""
}

func hashFinding(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func ruleIndexPtr(index int) *int {
	value := index
	return &value
}
