// Package baseline suppresses findings a previous run already reported, so
// repeated analyses only surface what changed.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/mssqlspectre/internal/models"
)

const (
	// DefaultPath is used when --update-baseline is enabled without an explicit --baseline path.
	DefaultPath = ".mssqlspectre-baseline.json"
	fileVersion = 1
)

// Set stores baseline fingerprints.
type Set map[string]struct{}

// File is the persisted baseline JSON payload.
type File struct {
	Version      int      `json:"version"`
	Fingerprints []string `json:"fingerprints"`
}

// Load reads a baseline file. Missing files return an empty set.
func Load(path string) (Set, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("baseline path is empty")
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse baseline file: %w", err)
	}
	if file.Version != 0 && file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported baseline version: %d", file.Version)
	}

	set := Set{}
	for _, fingerprint := range file.Fingerprints {
		if fingerprint == "" {
			continue
		}
		set[fingerprint] = struct{}{}
	}

	return set, nil
}

// Save writes a baseline file with sorted, unique fingerprints.
func Save(path string, set Set) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return errors.New("baseline path is empty")
	}

	dir := filepath.Dir(trimmed)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create baseline directory: %w", err)
		}
	}

	payload := File{
		Version:      fileVersion,
		Fingerprints: Sorted(set),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline file: %w", err)
	}

	if err := os.WriteFile(trimmed, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}

	return nil
}

// AddAll inserts fingerprints into the target set.
func AddAll(target Set, fingerprints []string) {
	for _, fingerprint := range fingerprints {
		if fingerprint == "" {
			continue
		}
		target[fingerprint] = struct{}{}
	}
}

// Sorted returns sorted fingerprints from a set.
func Sorted(set Set) []string {
	fingerprints := make([]string, 0, len(set))
	for fingerprint := range set {
		fingerprints = append(fingerprints, fingerprint)
	}
	sort.Strings(fingerprints)
	return fingerprints
}

// CountFindings returns the number of result items treated as findings.
func CountFindings(result *models.AnalysisResult) int {
	if result == nil {
		return 0
	}
	return len(result.Issues) + len(result.Recommendations) + len(result.RedundantIndexes)
}

// CollectFingerprints extracts fingerprints for all current findings.
func CollectFingerprints(result *models.AnalysisResult) []string {
	set := Set{}
	if result == nil {
		return []string{}
	}

	for _, issue := range result.Issues {
		set[FingerprintIssue(result.Query, issue)] = struct{}{}
	}
	for _, rec := range result.Recommendations {
		set[FingerprintRecommendation(rec)] = struct{}{}
	}
	for _, redundant := range result.RedundantIndexes {
		set[FingerprintRedundantIndex(redundant)] = struct{}{}
	}

	return Sorted(set)
}

// SuppressKnown removes findings already present in the baseline set.
func SuppressKnown(result *models.AnalysisResult, known Set) (suppressed int, remaining int) {
	if result == nil || len(known) == 0 {
		return 0, CountFindings(result)
	}

	issues := make([]models.Issue, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if _, exists := known[FingerprintIssue(result.Query, issue)]; exists {
			suppressed++
			continue
		}
		issues = append(issues, issue)
	}
	result.Issues = issues

	recs := make([]models.IndexRecommendation, 0, len(result.Recommendations))
	for _, rec := range result.Recommendations {
		if _, exists := known[FingerprintRecommendation(rec)]; exists {
			suppressed++
			continue
		}
		recs = append(recs, rec)
	}
	result.Recommendations = recs

	redundant := make([]models.RedundantIndexInfo, 0, len(result.RedundantIndexes))
	for _, info := range result.RedundantIndexes {
		if _, exists := known[FingerprintRedundantIndex(info)]; exists {
			suppressed++
			continue
		}
		redundant = append(redundant, info)
	}
	result.RedundantIndexes = redundant

	return suppressed, CountFindings(result)
}

// FingerprintIssue returns a stable fingerprint for a detected issue. The
// query text is normalized so whitespace-only edits do not resurface a
// suppressed finding.
func FingerprintIssue(query string, issue models.Issue) string {
	return hash("issue", string(issue.Type), issue.Fragment, normalizeQuery(query))
}

// FingerprintRecommendation returns a stable fingerprint for an index
// recommendation. The DDL already encodes table, columns and options.
func FingerprintRecommendation(rec models.IndexRecommendation) string {
	return hash("recommendation", rec.Database, rec.DDL)
}

// FingerprintRedundantIndex returns a stable fingerprint for a redundant
// index finding.
func FingerprintRedundantIndex(info models.RedundantIndexInfo) string {
	return hash("redundant_index", info.Schema, info.Table, info.Index)
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func hash(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
