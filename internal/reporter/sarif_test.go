package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/pkg/config"
)

func TestWriteSARIFProducesExpectedShape(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	report := sampleReport()
	if err := WriteSARIF(report, cfg); err != nil {
		t.Fatalf("WriteSARIF failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "report.sarif"))
	if err != nil {
		t.Fatalf("failed to read report.sarif: %v", err)
	}

	var decoded sarifLog
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to decode SARIF output: %v", err)
	}

	if decoded.Version != "2.1.0" {
		t.Fatalf("expected SARIF version 2.1.0, got %q", decoded.Version)
	}
	if decoded.Schema != sarifSchemaURI {
		t.Fatalf("unexpected SARIF schema: %q", decoded.Schema)
	}
	if len(decoded.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(decoded.Runs))
	}

	run := decoded.Runs[0]
	if run.Tool.Driver.Name != "mssqlspectre" {
		t.Fatalf("expected driver name mssqlspectre, got %q", run.Tool.Driver.Name)
	}
	if run.Tool.Driver.SemanticVersion != "1.2.3" {
		t.Fatalf("expected semanticVersion 1.2.3, got %q", run.Tool.Driver.SemanticVersion)
	}
	if run.AutomationDetails == nil || run.AutomationDetails.ID != "mssqlspectre/analyze" {
		t.Fatalf("expected automationDetails.id to be mssqlspectre/analyze, got %#v", run.AutomationDetails)
	}

	if len(run.Tool.Driver.Rules) != 3 {
		t.Fatalf("expected 3 SARIF rules, got %d", len(run.Tool.Driver.Rules))
	}

	if len(run.Results) != 4 {
		t.Fatalf("expected 4 SARIF results, got %d", len(run.Results))
	}

	ruleSeen := map[string]bool{}
	for _, result := range run.Results {
		ruleSeen[result.RuleID] = true

		if len(result.Locations) == 0 {
			t.Fatalf("result %q is missing locations", result.RuleID)
		}
		location := result.Locations[0]
		if location.PhysicalLocation.ArtifactLocation.URI != sarifFallbackLocationURI {
			t.Fatalf("result %q expected location URI %q, got %q", result.RuleID, sarifFallbackLocationURI, location.PhysicalLocation.ArtifactLocation.URI)
		}
		if location.PhysicalLocation.Region == nil || location.PhysicalLocation.Region.StartLine != 1 {
			t.Fatalf("result %q expected region.startLine=1, got %#v", result.RuleID, location.PhysicalLocation.Region)
		}

		fingerprint := result.PartialFingerprints["mssqlspectre/findingHash"]
		if fingerprint == "" {
			t.Fatalf("result %q is missing partial fingerprint", result.RuleID)
		}
	}

	for _, want := range []string{ruleAntiPattern, ruleMissingIndex, ruleRedundantIndex} {
		if !ruleSeen[want] {
			t.Fatalf("expected rule %q in results", want)
		}
	}

	missingIndexResult := findResultByCategory(run.Results, "missing_index")
	if missingIndexResult == nil {
		t.Fatalf("expected missing_index result to be present")
	}
	if missingIndexResult.Level != "warning" {
		t.Fatalf("expected missing_index level warning, got %q", missingIndexResult.Level)
	}
	if table, _ := missingIndexResult.Properties["table"].(string); table != "dbo.Orders" {
		t.Fatalf("expected missing_index table dbo.Orders, got %q", table)
	}

	redundantResult := findResultByCategory(run.Results, "redundant_index")
	if redundantResult == nil {
		t.Fatalf("expected redundant_index result to be present")
	}
	if redundantResult.Level != "note" {
		t.Fatalf("expected redundant_index level note, got %q", redundantResult.Level)
	}
}

func TestReporterGenerateSARIFFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Format = "sarif"

	rep := New(cfg)
	if err := rep.Generate(&models.Report{}); err != nil {
		t.Fatalf("Generate failed for sarif format: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "report.sarif")); err != nil {
		t.Fatalf("expected report.sarif output: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "report.json")); !os.IsNotExist(err) {
		t.Fatalf("expected report.json to be absent for sarif format, got err=%v", err)
	}
}

func TestWriteSARIFNilReport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	err := WriteSARIF(nil, cfg)
	if err == nil || !strings.Contains(err.Error(), "report is nil") {
		t.Fatalf("expected nil report error, got %v", err)
	}
}

func TestWriteSARIFNilConfig(t *testing.T) {
	err := WriteSARIF(&models.Report{}, nil)
	if err == nil || !strings.Contains(err.Error(), "config is nil") {
		t.Fatalf("expected nil config error, got %v", err)
	}
}

func TestNormalizeSemanticVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		expects string
	}{
		{name: "v-prefix semver", input: "v1.2.3", expects: "1.2.3"},
		{name: "prerelease semver", input: "1.2.3-beta.1", expects: "1.2.3-beta.1"},
		{name: "build metadata semver", input: "1.2.3+build.4", expects: "1.2.3+build.4"},
		{name: "invalid version", input: "main-abcdef", expects: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeSemanticVersion(tt.input); got != tt.expects {
				t.Fatalf("normalizeSemanticVersion(%q): got %q want %q", tt.input, got, tt.expects)
			}
		})
	}
}

func TestMapSeverityToSARIFLevel(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{severity: "critical", want: "error"},
		{severity: "warning", want: "warning"},
		{severity: "info", want: "note"},
		{severity: "unknown", want: "warning"},
	}

	for _, tt := range tests {
		if got := mapSeverityToSARIFLevel(tt.severity); got != tt.want {
			t.Fatalf("mapSeverityToSARIFLevel(%q): got %q want %q", tt.severity, got, tt.want)
		}
	}
}

func findResultByCategory(results []sarifResult, category string) *sarifResult {
	for i := range results {
		value, ok := results[i].Properties["category"].(string)
		if ok && value == category {
			return &results[i]
		}
	}
	return nil
}
