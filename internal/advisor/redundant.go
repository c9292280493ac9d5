package advisor

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/internal/plan"
)

// Catalog is the schema and index-catalog collaborator. Implementations
// query the engine's catalog and usage-statistics views.
type Catalog interface {
	// IndexColumns returns every (index, column) row for a table, ordered
	// by index then key ordinal. Unknown tables yield no rows.
	IndexColumns(ctx context.Context, schema, table string) ([]models.IndexCatalogColumn, error)
	// IndexUsage returns usage counters and size for one index.
	IndexUsage(ctx context.Context, schema, table, index string) (models.IndexUsageStats, error)
}

var tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+(\[?\w+\]?(?:\s*\.\s*\[?\w+\]?)*)`)

// ExtractTables finds table identifiers following FROM and JOIN keywords,
// in first-seen order without duplicates. This is a token match, not a
// parse; aliases and derived-table names can slip through, and the catalog
// simply returns no rows for them.
func ExtractTables(query string) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, match := range tableRefPattern.FindAllStringSubmatch(query, -1) {
		ref := normalizeTableRef(match[1])
		if ref == "" || seen[strings.ToLower(ref)] {
			continue
		}
		seen[strings.ToLower(ref)] = true
		tables = append(tables, ref)
	}
	return tables
}

func normalizeTableRef(ref string) string {
	parts := strings.Split(ref, ".")
	for i, part := range parts {
		parts[i] = plan.TrimIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// splitTableRef separates a possibly qualified reference into schema and
// table, defaulting the schema to dbo. Database qualifiers are dropped.
func splitTableRef(ref string) (schema, table string) {
	parts := strings.Split(ref, ".")
	switch len(parts) {
	case 1:
		return "dbo", parts[0]
	case 2:
		return parts[0], parts[1]
	default:
		return parts[len(parts)-2], parts[len(parts)-1]
	}
}

// FindRedundantIndexes inspects every table referenced by the query for
// pairs of distinct indexes with an identical ordered column list (same
// column, key position, included/key role, and sort direction). The
// higher-identifier index of each pair is reported as removable, citing the
// lower-identifier index. Usage enrichment is best-effort: missing
// statistics leave counters at zero.
func FindRedundantIndexes(ctx context.Context, catalog Catalog, query string) ([]models.RedundantIndexInfo, error) {
	var findings []models.RedundantIndexInfo

	for _, ref := range ExtractTables(query) {
		schema, table := splitTableRef(ref)

		rows, err := catalog.IndexColumns(ctx, schema, table)
		if err != nil {
			return nil, errors.Wrapf(err, "reading index catalog for %s.%s", schema, table)
		}

		for _, pair := range duplicatePairs(rows) {
			info := models.RedundantIndexInfo{
				Schema:         schema,
				Table:          table,
				Index:          pair.duplicate,
				Reason:         fmt.Sprintf("duplicates index [%s] on the same column list", pair.original),
				Recommendation: fmt.Sprintf("Drop [%s] after confirming no query hints reference it; [%s] serves the same seeks", pair.duplicate, pair.original),
				DropDDL:        fmt.Sprintf("DROP INDEX [%s] ON [%s].[%s]", pair.duplicate, schema, table),
			}

			usage, err := catalog.IndexUsage(ctx, schema, table, pair.duplicate)
			if err != nil {
				logrus.WithError(err).WithField("index", pair.duplicate).
					Debug("usage statistics unavailable for redundant index")
			} else {
				info.UsageCount = usage.Seeks + usage.Scans + usage.Lookups
				info.SizeKB = usage.SizeKB
				info.LastUsed = usage.LastUsed
			}

			findings = append(findings, info)
		}
	}
	return findings, nil
}

type redundantPair struct {
	original  string // lower index id
	duplicate string // higher index id
}

type indexShape struct {
	id        int
	name      string
	signature string
}

// duplicatePairs groups the catalog rows per index, renders each index's
// ordered column list as a signature, and pairs indexes whose signatures
// match exactly.
func duplicatePairs(rows []models.IndexCatalogColumn) []redundantPair {
	byIndex := make(map[int]*indexShape)
	var order []int

	grouped := make(map[int][]models.IndexCatalogColumn)
	for _, row := range rows {
		if _, ok := grouped[row.IndexID]; !ok {
			order = append(order, row.IndexID)
		}
		grouped[row.IndexID] = append(grouped[row.IndexID], row)
	}

	for _, id := range order {
		cols := grouped[id]
		sort.SliceStable(cols, func(i, j int) bool {
			if cols[i].IsIncluded != cols[j].IsIncluded {
				return !cols[i].IsIncluded
			}
			return cols[i].KeyOrdinal < cols[j].KeyOrdinal
		})
		var sig strings.Builder
		for _, col := range cols {
			fmt.Fprintf(&sig, "%d:%s:%t:%t;", col.KeyOrdinal, strings.ToLower(col.ColumnName), col.IsIncluded, col.Descending)
		}
		byIndex[id] = &indexShape{id: id, name: cols[0].IndexName, signature: sig.String()}
	}

	shapes := make([]*indexShape, 0, len(byIndex))
	for _, shape := range byIndex {
		shapes = append(shapes, shape)
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i].id < shapes[j].id })

	var pairs []redundantPair
	for i := 0; i < len(shapes); i++ {
		for j := i + 1; j < len(shapes); j++ {
			if shapes[i].signature == shapes[j].signature {
				pairs = append(pairs, redundantPair{original: shapes[i].name, duplicate: shapes[j].name})
			}
		}
	}
	return pairs
}
