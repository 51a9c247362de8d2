package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wyeliu/stockradar/internal/collector"
	"github.com/wyeliu/stockradar/pkg/logger"
)

// SyncJob periodically drives the collector across the tracked
// universe. Duplicate work against request-driven fetches is prevented
// by the fetcher's per-(instrument, period) guard, not here.
type SyncJob struct {
	collector *collector.Collector
	cfg       collector.Config
	interval  time.Duration
	logger    *logger.Logger
}

// NewSyncJob creates the universe sync job
func NewSyncJob(c *collector.Collector, cfg collector.Config, interval time.Duration, log *logger.Logger) *SyncJob {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SyncJob{
		collector: c,
		cfg:       cfg,
		interval:  interval,
		logger:    log.WithField("job", "universe_sync"),
	}
}

// Name implements scheduler.Job
func (j *SyncJob) Name() string { return "universe_sync" }

// Schedule implements scheduler.Job
func (j *SyncJob) Schedule() string {
	return fmt.Sprintf("@every %s", j.interval)
}

// Run implements scheduler.Job. A store outage aborts this cycle only;
// the next interval starts fresh.
func (j *SyncJob) Run(ctx context.Context) error {
	results, err := j.collector.SyncAll(ctx, j.cfg)
	if err != nil {
		return fmt.Errorf("universe sync cycle: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	if failed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"failed": failed,
			"total":  len(results),
		}).Warn("Sync cycle finished with failures")
	}

	return nil
}
