package baseline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/mssqlspectre/internal/models"
)

func TestCollectFingerprintsDeterministic(t *testing.T) {
	resultA := &models.AnalysisResult{
		Query: "SELECT * FROM Orders WITH (NOLOCK)",
		Issues: []models.Issue{
			{Type: models.IssueSelectStar, Fragment: "SELECT * FROM", Severity: models.SeverityWarning},
			{Type: models.IssueNoLockHint, Fragment: "WITH (NOLOCK)", Severity: models.SeverityWarning},
		},
		Recommendations: []models.IndexRecommendation{
			{Database: "Shop", DDL: "CREATE NONCLUSTERED INDEX [IX_Orders_Cus] ON [Shop].[dbo].[Orders] (CustomerId ASC)", EstimatedImpact: 65},
		},
		RedundantIndexes: []models.RedundantIndexInfo{
			{Schema: "dbo", Table: "Orders", Index: "IX_Orders_Dup", SizeKB: 2048},
		},
	}

	// same findings with different whitespace, metrics and counters
	resultB := &models.AnalysisResult{
		Query: "select  *  from Orders with (nolock)",
		Issues: []models.Issue{
			{Type: models.IssueNoLockHint, Fragment: "WITH (NOLOCK)", Severity: models.SeverityCritical},
			{Type: models.IssueSelectStar, Fragment: "SELECT * FROM", Severity: models.SeverityInfo},
		},
		Recommendations: []models.IndexRecommendation{
			{Database: "Shop", DDL: "CREATE NONCLUSTERED INDEX [IX_Orders_Cus] ON [Shop].[dbo].[Orders] (CustomerId ASC)", EstimatedImpact: 12},
		},
		RedundantIndexes: []models.RedundantIndexInfo{
			{Schema: "dbo", Table: "Orders", Index: "IX_Orders_Dup", SizeKB: 9999},
		},
	}

	fingerprintsA := CollectFingerprints(resultA)
	fingerprintsB := CollectFingerprints(resultB)
	if !reflect.DeepEqual(fingerprintsA, fingerprintsB) {
		t.Fatalf("expected deterministic fingerprints, got %v vs %v", fingerprintsA, fingerprintsB)
	}
}

func TestSuppressKnownFiltersFindings(t *testing.T) {
	result := &models.AnalysisResult{
		Query: "SELECT * FROM Orders, Customers",
		Issues: []models.Issue{
			{Type: models.IssueSelectStar, Fragment: "SELECT * FROM"},
			{Type: models.IssueCartesianJoin, Fragment: "FROM Orders,"},
		},
		Recommendations: []models.IndexRecommendation{
			{Database: "Shop", DDL: "CREATE NONCLUSTERED INDEX [IX_Orders_Cus] ON [Shop].[dbo].[Orders] (CustomerId ASC)"},
			{Database: "Shop", DDL: "CREATE NONCLUSTERED INDEX [IX_Customers_Nam] ON [Shop].[dbo].[Customers] (Name ASC)"},
		},
		RedundantIndexes: []models.RedundantIndexInfo{
			{Schema: "dbo", Table: "Orders", Index: "IX_Orders_Dup"},
		},
	}

	known := Set{}
	AddAll(known, []string{
		FingerprintIssue(result.Query, models.Issue{Type: models.IssueSelectStar, Fragment: "SELECT * FROM"}),
		FingerprintRecommendation(result.Recommendations[0]),
	})

	suppressed, remaining := SuppressKnown(result, known)
	if suppressed != 2 {
		t.Fatalf("expected 2 suppressed findings, got %d", suppressed)
	}
	if remaining != 3 {
		t.Fatalf("expected 3 remaining findings, got %d", remaining)
	}

	if len(result.Issues) != 1 || result.Issues[0].Type != models.IssueCartesianJoin {
		t.Fatalf("unexpected issues after suppression: %+v", result.Issues)
	}
	if len(result.Recommendations) != 1 || !strings.Contains(result.Recommendations[0].DDL, "Customers") {
		t.Fatalf("unexpected recommendations after suppression: %+v", result.Recommendations)
	}
	if len(result.RedundantIndexes) != 1 {
		t.Fatalf("expected redundant index finding to remain, got %+v", result.RedundantIndexes)
	}
}

func TestFingerprintIssueIgnoresWhitespaceAndCase(t *testing.T) {
	issue := models.Issue{Type: models.IssueSelectStar, Fragment: "SELECT * FROM"}
	a := FingerprintIssue("SELECT *   FROM Orders", issue)
	b := FingerprintIssue("select * from Orders", issue)
	if a != b {
		t.Fatalf("expected whitespace and case differences to fingerprint identically")
	}

	c := FingerprintIssue("SELECT * FROM Customers", issue)
	if a == c {
		t.Fatalf("expected different queries to fingerprint differently")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "baseline.json")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("expected missing baseline file to be allowed, got %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty set for missing baseline, got %d", len(loaded))
	}

	set := Set{
		"b": {},
		"a": {},
	}
	if err := Save(path, set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(loaded))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read baseline file: %v", err)
	}
	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("failed to unmarshal baseline file: %v", err)
	}
	if file.Version != fileVersion {
		t.Fatalf("expected version %d, got %d", fileVersion, file.Version)
	}
	if !reflect.DeepEqual(file.Fingerprints, []string{"a", "b"}) {
		t.Fatalf("expected sorted fingerprints [a b], got %+v", file.Fingerprints)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	payload := `{"version":999,"fingerprints":[]}`
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatalf("failed to write baseline file: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported baseline version") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}
