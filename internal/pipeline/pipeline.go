// Package pipeline coordinates one ingest cycle: fetch, store, normalize,
// cluster, sweep, rescore. The coordinator itself is single-threaded; only
// normalization fans out to a bounded pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/companion-radar/internal/clusterer"
	"github.com/lueurxax/companion-radar/internal/connectors"
	"github.com/lueurxax/companion-radar/internal/core/domain"
	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
	"github.com/lueurxax/companion-radar/internal/normalize"
	"github.com/lueurxax/companion-radar/internal/platform/observability"
	"github.com/lueurxax/companion-radar/internal/platform/worker"
	"github.com/lueurxax/companion-radar/internal/ranker"
	"github.com/lueurxax/companion-radar/internal/storage"
	"github.com/lueurxax/companion-radar/internal/textutil"
)

const (
	normalizeMargin = 10 * time.Second
	clusterMargin   = 5 * time.Second

	finishTimeout = 10 * time.Second
)

// Error kinds recorded into the run's error array.
const (
	kindFetchError     = "FETCH_ERROR"
	kindNotImplemented = "NOT_IMPLEMENTED"
	kindValidation     = "VALIDATION"
	kindBudgetExceeded = "BUDGET_EXCEEDED"
	kindPipelineError  = "PIPELINE_ERROR"
)

type Config struct {
	// MaxItems caps the total items taken from one cycle's fetches.
	MaxItems int
	// Timeout is the cycle's wall-clock budget.
	Timeout time.Duration
	// LLMConcurrency bounds in-flight normalization tasks.
	LLMConcurrency int
}

// Result summarizes one finished cycle for callers.
type Result struct {
	RunID           string
	Status          domain.RunStatus
	SignalsFetched  int
	SignalsAccepted int
	SignalsRejected int
	ErrorCount      int
	Duration        time.Duration
}

type Runner struct {
	db         *storage.DB
	registry   *connectors.Registry
	sources    []connectors.SourceConfig
	normalizer *normalize.Normalizer
	clusterer  *clusterer.Clusterer
	ranker     *ranker.Ranker
	cfg        Config
	logger     *zerolog.Logger

	// One cycle at a time. A second trigger waits rather than interleaving.
	runMu sync.Mutex
}

func NewRunner(
	db *storage.DB,
	registry *connectors.Registry,
	sources []connectors.SourceConfig,
	normalizer *normalize.Normalizer,
	cl *clusterer.Clusterer,
	rk *ranker.Ranker,
	cfg Config,
	logger *zerolog.Logger,
) *Runner {
	return &Runner{
		db:         db,
		registry:   registry,
		sources:    sources,
		normalizer: normalizer,
		clusterer:  cl,
		ranker:     rk,
		cfg:        cfg,
		logger:     logger,
	}
}

// fetchedItem pairs an item with the source it came from.
type fetchedItem struct {
	source connectors.SourceConfig
	item   connectors.Item
}

// cycleState accumulates counters and errors across the cycle's stages.
// Normalization jobs update it concurrently.
type cycleState struct {
	mu       sync.Mutex
	fetched  int
	accepted int
	rejected int
	errors   []domain.RunError
}

func (s *cycleState) addError(kind, source, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errors = append(s.errors, domain.RunError{Kind: kind, Source: source, Message: msg})
}

// RunCycle executes one full ingest cycle and always finishes the audit row.
// Per-item and per-source failures are captured and the cycle continues; only
// a coordinator failure flips the run to FAILED.
func (r *Runner) RunCycle(ctx context.Context) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	start := time.Now()
	deadline := start.Add(r.cfg.Timeout)

	runID, err := r.db.CreateIngestRun(ctx)
	if err != nil {
		return nil, err
	}

	state := &cycleState{}

	run := &domain.IngestRun{ID: runID, Status: domain.RunCompleted}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("run_id", runID).Msg("ingest cycle panicked")

			state.addError(kindPipelineError, "", fmt.Sprint(rec))

			run.Status = domain.RunFailed
			r.finish(run, state)

			panic(rec)
		}
	}()

	if err := r.cycle(ctx, deadline, state); err != nil {
		state.addError(kindPipelineError, "", err.Error())

		run.Status = domain.RunFailed
	}

	r.finish(run, state)

	duration := time.Since(start)

	observability.IngestCycleDuration.Observe(duration.Seconds())
	observability.IngestCycles.WithLabelValues(string(run.Status)).Inc()

	r.logger.Info().
		Str("run_id", runID).
		Str("status", string(run.Status)).
		Int("fetched", state.fetched).
		Int("accepted", state.accepted).
		Int("rejected", state.rejected).
		Int("errors", len(state.errors)).
		Dur("duration", duration).
		Msg("ingest cycle finished")

	return &Result{
		RunID:           runID,
		Status:          run.Status,
		SignalsFetched:  state.fetched,
		SignalsAccepted: state.accepted,
		SignalsRejected: state.rejected,
		ErrorCount:      len(state.errors),
		Duration:        duration,
	}, nil
}

func (r *Runner) finish(run *domain.IngestRun, state *cycleState) {
	run.SignalsFetched = state.fetched
	run.SignalsAccepted = state.accepted
	run.SignalsRejected = state.rejected
	run.Errors = state.errors

	for _, e := range state.errors {
		observability.IngestErrors.WithLabelValues(e.Kind).Inc()
	}

	// The audit row must close even when the cycle context is gone.
	finishCtx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	if err := r.db.FinishIngestRun(finishCtx, run); err != nil {
		r.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to finish ingest run")
	}
}

func (r *Runner) cycle(ctx context.Context, deadline time.Time, state *cycleState) error {
	carryover := r.pendingTasks(ctx, state)

	items := r.fetchAll(ctx, state)

	tasks := append(carryover, r.storeAll(ctx, items, state)...)

	r.normalizeAll(ctx, deadline, state, tasks)

	r.clusterAll(ctx, deadline, state)

	swept, err := r.clusterer.SweepStale(ctx)
	if err != nil {
		return fmt.Errorf("sweep stale: %w", err)
	}

	observability.ClustersSweptStale.Add(float64(swept))

	if err := r.ranker.RecomputeAll(ctx); err != nil {
		return fmt.Errorf("recompute rankings: %w", err)
	}

	return nil
}

// fetchAll pulls from every enabled source and caps the concatenated result
// at MaxItems, in feed order. Later sources can starve under the cap; dedup
// lets following cycles pick their items up.
func (r *Runner) fetchAll(ctx context.Context, state *cycleState) []fetchedItem {
	var items []fetchedItem

	for _, src := range r.sources {
		if !src.Enabled {
			continue
		}

		result, err := r.registry.Fetch(ctx, src)
		if err != nil {
			kind := kindFetchError
			if errors.Is(err, coreerrors.ErrNotImplemented) {
				kind = kindNotImplemented
			}

			state.addError(kind, src.Name, err.Error())

			continue
		}

		for _, ferr := range result.Errors {
			state.addError(kindFetchError, src.Name, ferr.Error())
		}

		observability.SignalsFetched.WithLabelValues(src.Name).Add(float64(len(result.Items)))

		for _, item := range result.Items {
			items = append(items, fetchedItem{source: src, item: item})
		}
	}

	state.fetched = len(items)

	if len(items) > r.cfg.MaxItems {
		items = items[:r.cfg.MaxItems]
	}

	return items
}

// pendingTasks picks up signals a previous cycle left PENDING, before this
// cycle stores anything new. They run ahead of the fresh batch so deferred
// work cannot starve forever.
func (r *Runner) pendingTasks(ctx context.Context, state *cycleState) []normalize.Task {
	pending, err := r.db.PendingSignals(ctx, r.cfg.MaxItems)
	if err != nil {
		state.addError(kindPipelineError, "", fmt.Sprintf("list pending signals: %v", err))

		return nil
	}

	tasks := make([]normalize.Task, 0, len(pending))
	for _, ps := range pending {
		tasks = append(tasks, normalize.Task{
			SignalID:    ps.ID,
			Title:       ps.Title,
			SourceName:  ps.SourceName,
			URL:         ps.CanonicalURL,
			PublishedAt: ps.PublishedAt,
			RawText:     ps.RawText,
		})
	}

	return tasks
}

// storeAll persists each item and returns the normalization tasks for the
// freshly stored signals. Duplicates are counted, not errors.
func (r *Runner) storeAll(ctx context.Context, items []fetchedItem, state *cycleState) []normalize.Task {
	tasks := make([]normalize.Task, 0, len(items))

	for _, fi := range items {
		raw, seed := buildRawSignal(fi)

		signalID, err := r.db.StoreRawSignal(ctx, raw, seed)
		if err != nil {
			if errors.Is(err, coreerrors.ErrDuplicate) {
				observability.SignalsStored.WithLabelValues("duplicate").Inc()

				continue
			}

			observability.SignalsStored.WithLabelValues("error").Inc()
			state.addError(kindPipelineError, fi.source.Name, err.Error())

			continue
		}

		observability.SignalsStored.WithLabelValues("stored").Inc()

		tasks = append(tasks, normalize.Task{
			SignalID:    signalID,
			Title:       fi.item.Title,
			SourceName:  fi.source.Name,
			URL:         fi.item.SourceURL,
			PublishedAt: fi.item.PublishedAt,
			RawText:     fi.item.Text,
		})
	}

	return tasks
}

func buildRawSignal(fi fetchedItem) (*domain.RawSignal, *domain.Signal) {
	item := fi.item

	raw := &domain.RawSignal{
		SourceType:   fi.source.Type,
		SourceName:   fi.source.Name,
		SourceURL:    item.SourceURL,
		SourceDomain: textutil.ExtractDomain(item.SourceURL),
		ExternalID:   item.ExternalID,
		FetchedAt:    time.Now().UTC(),
		ContentType:  item.ContentType,
		Payload:      item.Payload,
		RawText:      item.Text,
		ContentHash:  textutil.ContentHash(item.SourceURL, item.ExternalID, item.Title, item.PublishedAt),
	}

	seed := &domain.Signal{
		CanonicalURL: textutil.NormalizeURL(item.SourceURL),
		Title:        textutil.Truncate(item.Title, domain.MaxTitleLen),
		Author:       item.Author,
		PublishedAt:  item.PublishedAt,
	}

	return raw, seed
}

// normalizeAll fans the tasks out to the worker pool under the shared
// deadline. Skipped tasks stay PENDING and are retried next cycle.
func (r *Runner) normalizeAll(ctx context.Context, deadline time.Time, state *cycleState, tasks []normalize.Task) {
	jobs := make([]worker.Job, 0, len(tasks))

	for _, task := range tasks {
		task := task

		jobs = append(jobs, func(ctx context.Context) {
			status, err := r.normalizer.Normalize(ctx, task)
			if err != nil {
				state.addError(kindPipelineError, task.SourceName, err.Error())

				return
			}

			observability.SignalsNormalized.WithLabelValues(string(status)).Inc()

			switch status {
			case domain.StatusAccepted:
				state.mu.Lock()
				state.accepted++
				state.mu.Unlock()
			case domain.StatusRejected:
				state.mu.Lock()
				state.rejected++
				state.mu.Unlock()
			case domain.StatusFailed:
				state.addError(kindValidation, task.SourceName, "normalization failed for signal "+task.SignalID)
			case domain.StatusPending:
			}
		})
	}

	skipped := worker.RunPool(ctx, r.cfg.LLMConcurrency, deadline, normalizeMargin, jobs)
	if skipped > 0 {
		state.addError(kindBudgetExceeded, "", fmt.Sprintf("normalization budget exhausted, %d tasks deferred", skipped))
	}
}

// clusterAll assigns every accepted-but-unclustered signal sequentially and
// rescores its cluster right after assignment. The list comes from the
// database rather than this cycle's counters so signals deferred by an
// earlier cycle's budget get picked up too. Serialized on purpose: it avoids
// advisory lock contention and keeps each signal's candidate snapshot
// consistent.
func (r *Runner) clusterAll(ctx context.Context, deadline time.Time, state *cycleState) {
	// Fresh batch plus carryover.
	accepted, err := r.db.UnclusteredAcceptedIDs(ctx, 2*r.cfg.MaxItems)
	if err != nil {
		state.addError(kindPipelineError, "", fmt.Sprintf("list unclustered signals: %v", err))

		return
	}

	for i, id := range accepted {
		if !worker.BudgetLeft(deadline, clusterMargin) {
			state.addError(kindBudgetExceeded, "", fmt.Sprintf("clustering budget exhausted, %d signals deferred", len(accepted)-i))

			return
		}

		sig, err := r.db.GetSignal(ctx, id)
		if err != nil {
			state.addError(kindPipelineError, "", err.Error())

			continue
		}

		clusterID, err := r.clusterer.Assign(ctx, sig)
		if err != nil {
			state.addError(kindPipelineError, "", fmt.Sprintf("cluster signal %s: %v", id, err))

			continue
		}

		if err := r.ranker.Rescore(ctx, clusterID); err != nil {
			r.logger.Warn().Err(err).Str("cluster_id", clusterID).Msg("rescore after assignment failed")
		}
	}
}
