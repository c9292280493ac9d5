// Package analyzer orchestrates the analysis pipeline: pattern detection,
// plan interpretation, index advice, benchmarking and suggestion ranking.
package analyzer

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/mssqlspectre/internal/advisor"
	"github.com/ppiankov/mssqlspectre/internal/detector"
	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/internal/plan"
	"github.com/ppiankov/mssqlspectre/internal/scorer"
	"github.com/ppiankov/mssqlspectre/pkg/config"
)

// Client is the database surface the orchestrator consumes.
type Client interface {
	advisor.Catalog
	EngineVersion(ctx context.Context) (string, error)
	EstimatedPlan(ctx context.Context, query string) (string, error)
}

// Benchmarker runs a query repeatedly and aggregates its metrics.
type Benchmarker interface {
	Run(ctx context.Context, query string, iterations, warmup int) (*models.PerformanceMetrics, error)
}

// Analyzer runs the full advisory pipeline for one query at a time.
// Separate Analyze calls share no mutable state and may run concurrently.
type Analyzer struct {
	config   *config.Config
	client   Client
	bench    Benchmarker
	detector *detector.Detector
}

// New creates an analyzer instance.
func New(cfg *config.Config, client Client, bench Benchmarker) *Analyzer {
	return &Analyzer{
		config:   cfg,
		client:   client,
		bench:    bench,
		detector: detector.New(excludedChecks(cfg)...),
	}
}

// excludedChecks expands the configured exclusion patterns, globs included,
// against the known check names.
func excludedChecks(cfg *config.Config) []string {
	var excluded []string
	for _, check := range detector.Checks() {
		if cfg.IsCheckExcluded(string(check)) {
			excluded = append(excluded, string(check))
		}
	}
	return excluded
}

// Analyze runs every configured stage for one query, strictly in order.
// Best-effort sub-steps degrade to defaults; a failure in a mandatory stage
// aborts the call, so the caller receives either a fully-populated result
// or an error naming the failed stage.
func (a *Analyzer) Analyze(ctx context.Context, query string) (*models.AnalysisResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "query text is empty")
	}

	result := &models.AnalysisResult{
		Query:  query,
		Issues: []models.Issue{},
	}

	result.ServerVersion = a.engineVersion(ctx)

	if a.config.AnalyzeSyntax {
		issues, err := a.detector.Detect(query)
		if err != nil {
			return nil, errors.Wrap(err, "pattern detection")
		}
		result.Issues = issues
	}

	if a.config.CollectMetrics {
		metrics, err := a.benchmarkQuery(ctx, query)
		if err != nil {
			return nil, errors.Wrap(err, "benchmarking query")
		}
		result.Metrics = metrics
	}

	if a.config.AnalyzePlan {
		recs, err := a.missingIndexes(ctx, query)
		if err != nil {
			return nil, errors.Wrap(err, "plan analysis")
		}
		result.Recommendations = recs
	}

	if a.config.AnalyzeIndexes {
		redundant, err := advisor.FindRedundantIndexes(ctx, a.client, query)
		if err != nil {
			return nil, errors.Wrap(err, "redundant index analysis")
		}
		result.RedundantIndexes = redundant
	}

	if a.config.AttemptRewrite {
		if err := a.rewriteAndCompare(ctx, result); err != nil {
			return nil, err
		}
	}

	if a.config.MaxRecommendations > 0 && len(result.Recommendations) > a.config.MaxRecommendations {
		result.Recommendations = result.Recommendations[:a.config.MaxRecommendations]
	}

	result.Complexity = scorer.Complexity(query, len(result.Issues))
	result.Suggestions = scorer.BuildSuggestions(result.Issues, result.Recommendations)

	return result, nil
}

// engineVersion is a best-effort lookup; any failure degrades to a
// placeholder.
func (a *Analyzer) engineVersion(ctx context.Context) string {
	version, err := a.client.EngineVersion(ctx)
	if err != nil || strings.TrimSpace(version) == "" {
		logrus.WithError(err).Debug("engine version lookup failed")
		return "Unknown"
	}
	return version
}

// missingIndexes retrieves the estimated plan and turns its advisories into
// recommendations. Plan retrieval is mandatory; interpreting a malformed
// plan degrades to an empty extraction.
func (a *Analyzer) missingIndexes(ctx context.Context, query string) ([]models.IndexRecommendation, error) {
	planText, err := a.client.EstimatedPlan(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "retrieving estimated plan")
	}
	extract := plan.Parse(planText, plan.ModeEstimated)
	return advisor.FromAdvisories(extract.MissingIndexes), nil
}

// benchmarkQuery runs one benchmark pass, bounded by the configured
// execution-time budget.
func (a *Analyzer) benchmarkQuery(ctx context.Context, query string) (*models.PerformanceMetrics, error) {
	if a.config.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.MaxExecutionTime)
		defer cancel()
	}
	return a.bench.Run(ctx, query, a.config.Iterations, a.config.Warmup)
}

// rewriteAndCompare applies the bounded rewrite table and, when the text
// changed and metrics were requested, benchmarks the rewritten form and
// records the relative time improvement.
func (a *Analyzer) rewriteAndCompare(ctx context.Context, result *models.AnalysisResult) error {
	rewritten := Rewrite(result.Query, result.Issues)
	if rewritten == result.Query {
		return nil
	}
	result.RewrittenQuery = rewritten

	if !a.config.CollectMetrics || result.Metrics == nil {
		return nil
	}

	rewriteMetrics, err := a.benchmarkQuery(ctx, rewritten)
	if err != nil {
		return errors.Wrap(err, "benchmarking rewritten query")
	}
	result.RewriteMetrics = rewriteMetrics

	if result.Metrics.ExecutionTimeMs > 0 {
		result.ImprovementPercent = (result.Metrics.ExecutionTimeMs - rewriteMetrics.ExecutionTimeMs) /
			result.Metrics.ExecutionTimeMs * 100
	}
	return nil
}
