// Package collector drives the incremental fetcher across the whole
// tracked universe through a bounded worker pool.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wyeliu/stockradar/internal/fetch"
	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/pkg/logger"
)

// UniverseStore lists the tracked instrument pool.
type UniverseStore interface {
	ListTracked(ctx context.Context) ([]market.Instrument, error)
}

// SeriesFetcher runs one incremental sync.
type SeriesFetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

// Config holds collector tuning. The worker count is fixed and
// independent of universe size to respect upstream rate limits.
type Config struct {
	Workers      int
	Periods      []market.Period
	FetchTimeout time.Duration
}

// SyncResult is the outcome of one (instrument, period) sync task.
type SyncResult struct {
	Code     string
	Period   market.Period
	BarCount int
	Degraded bool
	Error    error
}

// Collector orchestrates universe-wide synchronization.
type Collector struct {
	universe UniverseStore
	fetcher  SeriesFetcher
	logger   *logger.Logger
}

// New creates a collector
func New(universe UniverseStore, fetcher SeriesFetcher, log *logger.Logger) *Collector {
	return &Collector{
		universe: universe,
		fetcher:  fetcher,
		logger:   log.WithField("module", "collector"),
	}
}

type task struct {
	code   string
	period market.Period
}

// SyncAll enqueues one sync task per (instrument, period) onto the
// worker pool and waits for completion. Per-task failures are isolated
// in the results; only a failed universe listing aborts the cycle.
func (c *Collector) SyncAll(ctx context.Context, cfg Config) ([]SyncResult, error) {
	instruments, err := c.universe.ListTracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked instruments: %w", err)
	}

	periods := cfg.Periods
	if len(periods) == 0 {
		periods = []market.Period{market.PeriodDaily}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	tasks := make([]task, 0, len(instruments)*len(periods))
	for _, inst := range instruments {
		for _, p := range periods {
			tasks = append(tasks, task{code: inst.Code, period: p})
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"instruments": len(instruments),
		"periods":     len(periods),
		"workers":     workers,
	}).Info("Starting universe sync")

	taskCh := make(chan task, len(tasks))
	resultCh := make(chan SyncResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, cfg.FetchTimeout, taskCh, resultCh)
		}(i)
	}

	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]SyncResult, 0, len(tasks))
	successCount := 0
	degradedCount := 0
	failCount := 0
	for result := range resultCh {
		results = append(results, result)
		switch {
		case result.Error != nil:
			failCount++
		case result.Degraded:
			degradedCount++
		default:
			successCount++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"success":  successCount,
		"degraded": degradedCount,
		"failed":   failCount,
		"total":    len(results),
	}).Info("Universe sync completed")

	return results, nil
}

// worker drains the task queue. Each task gets its own deadline so a
// stuck upstream call for one instrument never blocks the rest of the
// cycle.
func (c *Collector) worker(ctx context.Context, workerID int, timeout time.Duration, taskCh <-chan task, resultCh chan<- SyncResult) {
	for t := range taskCh {
		select {
		case <-ctx.Done():
			resultCh <- SyncResult{Code: t.code, Period: t.period, Error: ctx.Err()}
			return
		default:
		}

		taskCtx := ctx
		cancel := func() {}
		if timeout > 0 {
			taskCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		res, err := c.fetcher.Fetch(taskCtx, fetch.Request{Code: t.code, Period: t.period})
		cancel()

		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"code":   t.code,
				"period": string(t.period),
			}).Error("Sync task failed")
			resultCh <- SyncResult{Code: t.code, Period: t.period, Error: err}
			continue
		}

		c.logger.WithFields(map[string]interface{}{
			"worker":   workerID,
			"code":     t.code,
			"period":   string(t.period),
			"bars":     len(res.Bars),
			"degraded": res.Degraded,
		}).Debug("Sync task completed")

		resultCh <- SyncResult{
			Code:     t.code,
			Period:   t.period,
			BarCount: len(res.Bars),
			Degraded: res.Degraded,
		}
	}
}
