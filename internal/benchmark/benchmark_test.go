package benchmark

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/mssqlspectre/internal/models"
)

type fakeExecutor struct {
	planText  string
	planErr   error
	rows      int64
	execErr   error
	stats     models.EngineStats
	statsErr  error
	execCalls int
	planCalls int

	// when set, fires after this many ExecuteCount calls
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeExecutor) ActualPlan(ctx context.Context, query string) (string, error) {
	f.planCalls++
	if f.planErr != nil {
		return "", f.planErr
	}
	return f.planText, nil
}

func (f *fakeExecutor) ExecuteCount(ctx context.Context, query string) (int64, error) {
	f.execCalls++
	if f.cancel != nil && f.execCalls >= f.cancelAfter {
		f.cancel()
	}
	if f.execErr != nil {
		return 0, f.execErr
	}
	return f.rows, nil
}

func (f *fakeExecutor) QueryStats(ctx context.Context, query string) (models.EngineStats, error) {
	if f.statsErr != nil {
		return models.EngineStats{}, f.statsErr
	}
	return f.stats, nil
}

func TestRunValidatesInput(t *testing.T) {
	r := New(&fakeExecutor{})

	_, err := r.Run(context.Background(), "   ", 3, 1)
	assert.True(t, models.IsInvalidInput(err))

	_, err = r.Run(context.Background(), "SELECT 1", 0, 1)
	assert.True(t, models.IsInvalidInput(err))

	_, err = r.Run(context.Background(), "SELECT 1", -2, 0)
	assert.True(t, models.IsInvalidInput(err))
}

func TestRunExecutesWarmupAndMeasuredRuns(t *testing.T) {
	exec := &fakeExecutor{
		planText: "<ShowPlanXML></ShowPlanXML>",
		rows:     42,
		stats: models.EngineStats{
			AvgLogicalReads: 120,
			AvgCPUTimeMs:    3.5,
			CacheObjectType: "Compiled Plan",
		},
	}
	r := New(exec)

	metrics, err := r.Run(context.Background(), "SELECT * FROM Orders", 3, 2)
	require.NoError(t, err)

	// 2 warmup + 3 measured
	assert.Equal(t, 5, exec.execCalls)
	// plans captured only for measured runs
	assert.Equal(t, 3, exec.planCalls)
	assert.Equal(t, float64(42), metrics.RowsReturned)
	assert.Equal(t, float64(120), metrics.LogicalReads)
	assert.Equal(t, 3.5, metrics.CPUTimeMs)
	assert.Equal(t, "Compiled Plan", metrics.CacheInfo)
	assert.Equal(t, exec.planText, metrics.PlanText)
}

func TestRunToleratesWarmupFailures(t *testing.T) {
	exec := &fakeExecutor{planText: "<x/>", execErr: errors.New("deadlock victim")}
	r := New(exec)

	// warmup failures are swallowed; the measured run then fails and aborts
	_, err := r.Run(context.Background(), "SELECT 1", 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "measured run 1 of 1")
	assert.Equal(t, 3, exec.execCalls)
}

func TestRunAbortsWhenPlanRetrievalFails(t *testing.T) {
	exec := &fakeExecutor{planErr: errors.New("showplan permission denied")}
	r := New(exec)

	_, err := r.Run(context.Background(), "SELECT 1", 2, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieving actual plan")
	assert.Equal(t, 1, exec.planCalls)
	assert.Equal(t, 0, exec.execCalls)
}

func TestRunDegradesWhenStatsUnavailable(t *testing.T) {
	exec := &fakeExecutor{
		planText: "<x/>",
		rows:     7,
		statsErr: errors.New("no cached entry"),
	}
	r := New(exec)

	metrics, err := r.Run(context.Background(), "SELECT 1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(7), metrics.RowsReturned)
	assert.Zero(t, metrics.LogicalReads)
	assert.Zero(t, metrics.CPUTimeMs)
	assert.Empty(t, metrics.CacheInfo)
}

func TestRunStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &fakeExecutor{planText: "<x/>", cancelAfter: 2, cancel: cancel}
	r := New(exec)

	_, err := r.Run(ctx, "SELECT 1", 10, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, exec.execCalls, 10)
}

func TestAggregateMeansNumericFields(t *testing.T) {
	runs := []models.PerformanceMetrics{
		{ExecutionTimeMs: 10, LogicalReads: 100, PlanCost: 1.5, PlanText: "first", CacheInfo: "Compiled Plan"},
		{ExecutionTimeMs: 20, LogicalReads: 200, PlanCost: 2.5, PlanText: "second"},
		{ExecutionTimeMs: 30, LogicalReads: 300, PlanCost: 3.5, PlanText: "third"},
	}

	agg := Aggregate(runs)
	assert.Equal(t, float64(20), agg.ExecutionTimeMs)
	assert.Equal(t, float64(200), agg.LogicalReads)
	assert.Equal(t, 2.5, agg.PlanCost)
	assert.Equal(t, "first", agg.PlanText)
	assert.Equal(t, "Compiled Plan", agg.CacheInfo)
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil)
	assert.Zero(t, agg.ExecutionTimeMs)
	assert.Empty(t, agg.PlanText)
}
