package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/mssqlspectre/internal/models"
)

// AnalyzeFunc runs one full analysis for a single query.
type AnalyzeFunc func(ctx context.Context, query string) (*models.AnalysisResult, error)

// Outcome pairs a query with its analysis result or failure.
type Outcome struct {
	Query  string
	Result *models.AnalysisResult
	Err    error
}

// WorkerPool fans independent query analyses out over a fixed number of
// workers. Analyses share no mutable state, so they are safe to run
// concurrently; each owns its own database round trips.
type WorkerPool struct {
	workers int
	analyze AnalyzeFunc
}

// NewWorkerPool creates a pool running at most workers analyses at once.
func NewWorkerPool(workers int, analyze AnalyzeFunc) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{workers: workers, analyze: analyze}
}

// Run analyzes every query and returns outcomes in input order. A
// cancelled context marks the remaining queries as failed rather than
// blocking on them.
func (p *WorkerPool) Run(ctx context.Context, queries []string) []Outcome {
	outcomes := make([]Outcome, len(queries))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"worker_id": id,
						"panic":     fmt.Sprint(r),
					}).Error("worker panic recovered")
				}
				wg.Done()
			}()

			for idx := range jobs {
				query := queries[idx]
				if err := ctx.Err(); err != nil {
					outcomes[idx] = Outcome{Query: query, Err: err}
					continue
				}
				result, err := p.analyze(ctx, query)
				outcomes[idx] = Outcome{Query: query, Result: result, Err: err}
			}
		}(w)
	}

	for idx := range queries {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// FirstError returns the first failed outcome's error, if any.
func FirstError(outcomes []Outcome) error {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			return errors.Wrapf(outcome.Err, "analyzing %q", truncateQuery(outcome.Query))
		}
	}
	return nil
}

func truncateQuery(query string) string {
	const max = 60
	if len(query) <= max {
		return query
	}
	return query[:max] + "..."
}
