// Package advisor builds concrete index recommendations from plan advisories
// and finds redundant indexes through the engine's catalog views.
package advisor

import (
	"fmt"
	"strings"

	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/internal/plan"
)

const (
	impactBase            = 25.0
	impactPerKeyColumn    = 5.0
	impactKeyColumnCap    = 25.0
	impactPerIncludeCol   = 3.0
	impactIncludeColCap   = 15.0
	impactOverallCap      = 90.0
	suggestedNamePrefixCX = "CIX"
	suggestedNamePrefix   = "IX"
)

// FromAdvisories converts every missing-index advisory into an
// IndexRecommendation, preserving document order.
func FromAdvisories(advisories []plan.MissingIndexAdvisory) []models.IndexRecommendation {
	recs := make([]models.IndexRecommendation, 0, len(advisories))
	for _, advisory := range advisories {
		recs = append(recs, fromAdvisory(advisory))
	}
	return recs
}

func fromAdvisory(advisory plan.MissingIndexAdvisory) models.IndexRecommendation {
	// Equality columns precede inequality columns. The two groups are
	// concatenated without deduplication: a column the engine reports in
	// both groups appears twice in the key list.
	keys := make([]models.IndexColumn, 0, len(advisory.EqualityColumns)+len(advisory.InequalityColumns))
	for _, name := range advisory.EqualityColumns {
		keys = append(keys, models.IndexColumn{Name: name})
	}
	for _, name := range advisory.InequalityColumns {
		keys = append(keys, models.IndexColumn{Name: name})
	}

	rec := models.IndexRecommendation{
		Database:        advisory.Database,
		Schema:          advisory.Schema,
		Table:           advisory.Table,
		KeyColumns:      keys,
		IncludedColumns: advisory.IncludedColumns,
		Unique:          false,
		Clustered:       false,
	}

	if advisory.Impact > 0 {
		rec.EstimatedImpact = advisory.Impact
	} else {
		rec.EstimatedImpact = heuristicImpact(len(keys), len(advisory.IncludedColumns))
	}

	rec.DDL = BuildDDL(rec)
	return rec
}

func heuristicImpact(keyCount, includeCount int) float64 {
	keyPart := float64(keyCount) * impactPerKeyColumn
	if keyPart > impactKeyColumnCap {
		keyPart = impactKeyColumnCap
	}
	includePart := float64(includeCount) * impactPerIncludeCol
	if includePart > impactIncludeColCap {
		includePart = impactIncludeColCap
	}
	impact := impactBase + keyPart + includePart
	if impact > impactOverallCap {
		impact = impactOverallCap
	}
	return impact
}

// SuggestName derives the index name from its table and key columns:
// the first three characters of each key column joined by underscores.
func SuggestName(rec models.IndexRecommendation) string {
	prefix := suggestedNamePrefix
	if rec.Clustered {
		prefix = suggestedNamePrefixCX
	}
	parts := []string{prefix, rec.Table}
	for _, col := range rec.KeyColumns {
		name := col.Name
		if len(name) > 3 {
			name = name[:3]
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "_")
}

// BuildDDL renders the CREATE INDEX statement for a recommendation.
func BuildDDL(rec models.IndexRecommendation) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if rec.Unique {
		b.WriteString("UNIQUE ")
	}
	if rec.Clustered {
		b.WriteString("CLUSTERED ")
	} else {
		b.WriteString("NONCLUSTERED ")
	}
	fmt.Fprintf(&b, "INDEX [%s] ON [%s].[%s].[%s] (", SuggestName(rec), rec.Database, rec.Schema, rec.Table)

	for i, col := range rec.KeyColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		direction := "ASC"
		if col.Descending {
			direction = "DESC"
		}
		fmt.Fprintf(&b, "%s %s", col.Name, direction)
	}
	b.WriteString(")")

	if len(rec.IncludedColumns) > 0 {
		fmt.Fprintf(&b, " INCLUDE (%s)", strings.Join(rec.IncludedColumns, ", "))
	}
	if rec.Filter != "" {
		fmt.Fprintf(&b, " WHERE %s", rec.Filter)
	}
	return b.String()
}
