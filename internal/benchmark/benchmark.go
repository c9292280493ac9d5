// Package benchmark executes a query repeatedly against a live server and
// aggregates per-run performance measurements.
package benchmark

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/internal/plan"
)

// Executor is the query-execution collaborator consumed by the runner.
type Executor interface {
	// ActualPlan executes the statement with post-execution plan capture
	// enabled and returns the plan artifact.
	ActualPlan(ctx context.Context, query string) (string, error)
	// ExecuteCount runs the query, reading every result row, and returns
	// the row count.
	ExecuteCount(ctx context.Context, query string) (int64, error)
	// QueryStats looks up engine-side aggregate statistics for matching
	// query text.
	QueryStats(ctx context.Context, query string) (models.EngineStats, error)
}

// Runner benchmarks queries through an Executor.
type Runner struct {
	executor Executor
	limiter  *rate.Limiter
}

// Option customizes a Runner.
type Option func(*Runner)

// WithRateLimit paces measured runs at most rps per second, so benchmarking
// a shared server does not monopolize it.
func WithRateLimit(rps float64) Option {
	return func(r *Runner) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// New creates a benchmark runner.
func New(executor Executor, opts ...Option) *Runner {
	r := &Runner{executor: executor}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes warmup discard runs followed by iterations measured runs and
// returns the arithmetic mean of every numeric metric across the measured
// runs. Warmup errors are recorded but never raised; a measured run that
// fails aborts the whole benchmark. Statistics lookups are best-effort and
// degrade to zero values.
func (r *Runner) Run(ctx context.Context, query string, iterations, warmup int) (*models.PerformanceMetrics, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "query text is empty")
	}
	if iterations < 1 {
		return nil, errors.Wrapf(models.ErrInvalidInput, "iteration count must be positive, got %d", iterations)
	}

	prepared := SubstituteParameters(query)

	for i := 0; i < warmup; i++ {
		if err := r.pace(ctx); err != nil {
			return nil, err
		}
		if _, err := r.executor.ExecuteCount(ctx, prepared); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logrus.WithError(err).WithField("run", i+1).Debug("warmup run failed")
		}
	}

	runs := make([]models.PerformanceMetrics, 0, iterations)
	for i := 0; i < iterations; i++ {
		if err := r.pace(ctx); err != nil {
			return nil, err
		}

		run, err := r.measure(ctx, prepared)
		if err != nil {
			return nil, errors.Wrapf(err, "measured run %d of %d", i+1, iterations)
		}
		runs = append(runs, run)
	}

	return Aggregate(runs), nil
}

func (r *Runner) pace(ctx context.Context) error {
	if r.limiter != nil {
		return r.limiter.Wait(ctx)
	}
	return ctx.Err()
}

func (r *Runner) measure(ctx context.Context, query string) (models.PerformanceMetrics, error) {
	planText, err := r.executor.ActualPlan(ctx, query)
	if err != nil {
		return models.PerformanceMetrics{}, errors.Wrap(err, "retrieving actual plan")
	}
	extract := plan.Parse(planText, plan.ModeActual)

	start := time.Now()
	rows, err := r.executor.ExecuteCount(ctx, query)
	if err != nil {
		return models.PerformanceMetrics{}, errors.Wrap(err, "executing query")
	}
	elapsed := time.Since(start)

	run := models.PerformanceMetrics{
		ExecutionTimeMs: float64(elapsed) / float64(time.Millisecond),
		RowsReturned:    float64(rows),
		PlanText:        planText,
		PlanCost:        extract.Cost,
	}

	stats, err := r.executor.QueryStats(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return models.PerformanceMetrics{}, ctx.Err()
		}
		logrus.WithError(err).Debug("engine statistics unavailable for benchmark run")
		return run, nil
	}
	run.CPUTimeMs = stats.AvgCPUTimeMs
	run.LogicalReads = stats.AvgLogicalReads
	run.PhysicalReads = stats.AvgPhysicalReads
	run.RowsScanned = stats.AvgRows
	run.CacheInfo = stats.CacheObjectType
	return run, nil
}

// Aggregate averages every numeric field across runs; descriptive fields
// (plan text, cache info) are copied from the first run.
func Aggregate(runs []models.PerformanceMetrics) *models.PerformanceMetrics {
	if len(runs) == 0 {
		return &models.PerformanceMetrics{}
	}

	agg := models.PerformanceMetrics{
		PlanText:  runs[0].PlanText,
		CacheInfo: runs[0].CacheInfo,
	}
	for _, run := range runs {
		agg.ExecutionTimeMs += run.ExecutionTimeMs
		agg.CPUTimeMs += run.CPUTimeMs
		agg.LogicalReads += run.LogicalReads
		agg.PhysicalReads += run.PhysicalReads
		agg.RowsReturned += run.RowsReturned
		agg.RowsScanned += run.RowsScanned
		agg.PlanCost += run.PlanCost
	}
	n := float64(len(runs))
	agg.ExecutionTimeMs /= n
	agg.CPUTimeMs /= n
	agg.LogicalReads /= n
	agg.PhysicalReads /= n
	agg.RowsReturned /= n
	agg.RowsScanned /= n
	agg.PlanCost /= n
	return &agg
}
