// Package worker holds the concurrency primitives of the ingest cycle: a
// bounded pool with a shared deadline for LLM fan-out, and a periodic loop
// for scheduled cycles.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one unit of pool work. Jobs handle their own errors; the pool only
// schedules.
type Job func(ctx context.Context)

// RunPool executes jobs with at most concurrency in flight. Before each job
// is handed out it checks the shared deadline minus margin; once the budget
// is exhausted the remaining jobs are skipped, never started. In-flight jobs
// are allowed to finish. Returns how many jobs were skipped.
func RunPool(ctx context.Context, concurrency int, deadline time.Time, margin time.Duration, jobs []Job) int {
	if concurrency < 1 {
		concurrency = 1
	}

	jobCh := make(chan Job)

	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for job := range jobCh {
				job(ctx)
			}
		}()
	}

	skipped := 0

	for i, job := range jobs {
		if ctx.Err() != nil || !BudgetLeft(deadline, margin) {
			skipped = len(jobs) - i

			break
		}

		jobCh <- job
	}

	close(jobCh)
	wg.Wait()

	return skipped
}

// BudgetLeft reports whether there is still at least margin left before the
// deadline. A zero deadline means no budget at all is enforced.
func BudgetLeft(deadline time.Time, margin time.Duration) bool {
	if deadline.IsZero() {
		return true
	}

	return time.Until(deadline) > margin
}

// Wait blocks until d elapses or ctx is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Loop runs fn immediately and then every interval until ctx is canceled.
// Errors from fn are logged and the loop continues.
func Loop(ctx context.Context, name string, interval time.Duration, logger *zerolog.Logger, fn func(ctx context.Context) error) error {
	logger.Info().Str("worker", name).Dur("interval", interval).Msg("starting worker loop")

	defer logger.Info().Str("worker", name).Msg("worker loop stopped")

	for {
		if err := fn(ctx); err != nil {
			logger.Error().Err(err).Str("worker", name).Msg("worker iteration failed")
		}

		if err := Wait(ctx, interval); err != nil {
			return err
		}
	}
}
