package models

import "time"

// IssueType identifies an anti-pattern category detected in query text.
type IssueType string

const (
	IssueSelectStar           IssueType = "select_star"
	IssueNoLockHint           IssueType = "nolock_hint"
	IssueImplicitConversion   IssueType = "implicit_conversion"
	IssueNonSargablePredicate IssueType = "non_sargable_predicate"
	IssueUnnecessaryDistinct  IssueType = "unnecessary_distinct"
	IssueCartesianJoin        IssueType = "cartesian_join"
	IssueScalarFunction       IssueType = "scalar_function_in_select"
)

// Severity levels for detected issues.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Issue is a single anti-pattern hit produced by the pattern detector.
type Issue struct {
	Type        IssueType `json:"type"`
	Description string    `json:"description"`
	Fragment    string    `json:"fragment,omitempty"`
	Severity    string    `json:"severity"`
}

// IndexColumn is one key column of an index recommendation, with sort order.
type IndexColumn struct {
	Name       string `json:"name"`
	Descending bool   `json:"descending,omitempty"`
}

// IndexRecommendation describes a concrete index the engine reported as missing.
type IndexRecommendation struct {
	Database        string        `json:"database"`
	Schema          string        `json:"schema"`
	Table           string        `json:"table"`
	KeyColumns      []IndexColumn `json:"key_columns"`
	IncludedColumns []string      `json:"included_columns,omitempty"`
	Unique          bool          `json:"unique"`
	Clustered       bool          `json:"clustered"`
	Filter          string        `json:"filter,omitempty"`
	DDL             string        `json:"ddl"`
	EstimatedImpact float64       `json:"estimated_impact"` // 0-100
}

// RedundantIndexInfo describes an index whose column list duplicates another
// index on the same table.
type RedundantIndexInfo struct {
	Schema         string    `json:"schema"`
	Table          string    `json:"table"`
	Index          string    `json:"index"`
	Reason         string    `json:"reason"`
	Recommendation string    `json:"recommendation"`
	DropDDL        string    `json:"drop_ddl"`
	SizeKB         int64     `json:"size_kb,omitempty"`
	UsageCount     int64     `json:"usage_count,omitempty"`
	LastUsed       time.Time `json:"last_used,omitzero"`
}

// PerformanceMetrics holds measurements from one benchmark run, or the
// arithmetic mean across runs after aggregation. Non-numeric fields carry
// the first run's values through aggregation.
type PerformanceMetrics struct {
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	CPUTimeMs       float64 `json:"cpu_time_ms"`
	LogicalReads    float64 `json:"logical_reads"`
	PhysicalReads   float64 `json:"physical_reads"`
	RowsReturned    float64 `json:"rows_returned"`
	RowsScanned     float64 `json:"rows_scanned"`
	PlanText        string  `json:"plan_text,omitempty"`
	PlanCost        float64 `json:"plan_cost"`
	CacheInfo       string  `json:"cache_info,omitempty"`
}

// Suggestion is an actionable, ranked recommendation derived from an Issue
// or an IndexRecommendation.
type Suggestion struct {
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	OriginalFragment  string  `json:"original_fragment,omitempty"`
	SuggestedFragment string  `json:"suggested_fragment,omitempty"`
	Priority          string  `json:"priority"`
	EstimatedImpact   float64 `json:"estimated_impact"`
}

// AnalysisResult is the aggregate outcome of one analysis call.
type AnalysisResult struct {
	Query              string                `json:"query"`
	RewrittenQuery     string                `json:"rewritten_query,omitempty"`
	ServerVersion      string                `json:"server_version"`
	Issues             []Issue               `json:"issues"`
	Recommendations    []IndexRecommendation `json:"index_recommendations,omitempty"`
	RedundantIndexes   []RedundantIndexInfo  `json:"redundant_indexes,omitempty"`
	Metrics            *PerformanceMetrics   `json:"metrics,omitempty"`
	RewriteMetrics     *PerformanceMetrics   `json:"rewrite_metrics,omitempty"`
	Suggestions        []Suggestion          `json:"suggestions"`
	Complexity         int                   `json:"complexity"` // 1-10
	ImprovementPercent float64               `json:"improvement_percent,omitempty"`
}

// IndexCatalogColumn is one row of the engine's index catalog for a table:
// a (index, column) pair with its position and role.
type IndexCatalogColumn struct {
	IndexID    int
	IndexName  string
	ColumnName string
	KeyOrdinal int
	IsIncluded bool
	Descending bool
}

// IndexUsageStats holds usage counters and size for one index, from the
// engine's usage-statistics views. Zero values mean no statistics recorded.
type IndexUsageStats struct {
	Seeks    int64
	Scans    int64
	Lookups  int64
	SizeKB   int64
	LastUsed time.Time
}

// EngineStats holds engine-side aggregate statistics for a cached query.
type EngineStats struct {
	AvgLogicalReads  float64
	AvgPhysicalReads float64
	AvgCPUTimeMs     float64
	AvgRows          float64
	ExecutionCount   int64
	CacheObjectType  string
}
