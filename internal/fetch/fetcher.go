// Package fetch implements the incremental synchronization engine: it
// reconciles stored coverage against upstream availability, fetches
// only the missing window, and merges without duplication.
package fetch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/upstream"
	"github.com/wyeliu/stockradar/pkg/logger"
	"github.com/wyeliu/stockradar/pkg/retry"
)

// BarStore is the slice of the series store the fetcher needs.
type BarStore interface {
	LatestDate(ctx context.Context, code string, period market.Period) (time.Time, error)
	EarliestDate(ctx context.Context, code string, period market.Period) (time.Time, error)
	GetAll(ctx context.Context, code string, period market.Period) (market.Series, error)
	GetRange(ctx context.Context, code string, period market.Period, from, to time.Time) (market.Series, error)
	UpsertBatch(ctx context.Context, bars market.Series) error
}

// SourceResolver routes an instrument code to its upstream backend.
type SourceResolver interface {
	ForInstrument(code string) upstream.Source
}

// Request describes one sync operation.
type Request struct {
	Code   string
	Period market.Period

	// From and To optionally restrict the window. Zero means open:
	// sync from stored coverage (or bounded history) through now.
	From time.Time
	To   time.Time

	// SkipPersist returns the merged series without writing it
	SkipPersist bool
}

// Result is the outcome of a sync. Degraded means the upstream could
// not be reached within the retry ceiling and Bars is served from
// stored history only.
type Result struct {
	Bars     market.Series
	Degraded bool
}

// Fetcher is the incremental sync engine. Safe for concurrent use;
// concurrent requests for the same (code, period) collapse into one
// upstream call and share its result.
type Fetcher struct {
	store   BarStore
	sources SourceResolver
	logger  *logger.Logger
	policy  retry.Policy

	// historyDays bounds the cold-start full history window
	historyDays int

	group singleflight.Group
	now   func() time.Time
}

// Config holds fetcher tuning.
type Config struct {
	HistoryDays int
	MaxAttempts int
	BackoffBase time.Duration
}

// New creates a fetcher.
func New(store BarStore, sources SourceResolver, cfg Config, log *logger.Logger) *Fetcher {
	policy := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BackoffBase > 0 {
		policy.BaseDelay = cfg.BackoffBase
	}

	historyDays := cfg.HistoryDays
	if historyDays <= 0 {
		historyDays = 1095
	}

	return &Fetcher{
		store:       store,
		sources:     sources,
		logger:      log.WithField("module", "fetcher"),
		policy:      policy,
		historyDays: historyDays,
		now:         time.Now,
	}
}

// Fetch runs one incremental sync for (code, period). The per-key
// guard is created lazily by the singleflight group and reclaimed as
// soon as the flight lands; unrelated instruments never serialize.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	if !req.Period.Valid() {
		return Result{}, fmt.Errorf("fetch %s: invalid period %q", req.Code, req.Period)
	}

	key := guardKey(req)
	v, err, shared := f.group.Do(key, func() (interface{}, error) {
		res, err := f.fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}

	res := v.(Result)
	if shared {
		f.logger.WithFields(map[string]interface{}{
			"code":   req.Code,
			"period": string(req.Period),
		}).Debug("Joined in-flight fetch")
	}
	return res, nil
}

// guardKey keys the in-flight guard. Open-ended syncs for one
// (code, period) always dedupe; explicit windows only dedupe against
// an identical window.
func guardKey(req Request) string {
	key := req.Code + "|" + string(req.Period)
	if !req.From.IsZero() || !req.To.IsZero() {
		key += "|" + req.From.Format("20060102150405") + "-" + req.To.Format("20060102150405")
	}
	if req.SkipPersist {
		key += "|nopersist"
	}
	return key
}

func (f *Fetcher) fetch(ctx context.Context, req Request) (Result, error) {
	latest, err := f.store.LatestDate(ctx, req.Code, req.Period)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s/%s: %w", req.Code, req.Period, err)
	}

	now := f.now().UTC()

	// Explicit windows fully inside stored coverage never touch the
	// upstream.
	if !req.From.IsZero() && !req.To.IsZero() && !latest.IsZero() {
		earliest, err := f.store.EarliestDate(ctx, req.Code, req.Period)
		if err != nil {
			return Result{}, fmt.Errorf("fetch %s/%s: %w", req.Code, req.Period, err)
		}
		if !earliest.IsZero() && !req.From.Before(earliest) && !req.To.After(latest) {
			bars, err := f.store.GetRange(ctx, req.Code, req.Period, req.From, req.To)
			if err != nil {
				return Result{}, fmt.Errorf("fetch %s/%s: %w", req.Code, req.Period, err)
			}
			return Result{Bars: bars.Dedupe()}, nil
		}
	}

	fetchFrom, fetchTo := f.window(req, latest, now)

	var fetched market.Series
	degraded := false

	if !fetchFrom.After(fetchTo) {
		source := f.sources.ForInstrument(req.Code)
		err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
			bars, err := source.FetchBars(ctx, req.Code, req.Period, fetchFrom, fetchTo)
			if err != nil {
				return err
			}
			// An empty upstream response is a successful no-op
			fetched = bars
			return nil
		})
		if err != nil {
			// Retry ceiling reached: fall back to stored history
			// instead of failing the caller.
			degraded = true
			f.logger.WithError(err).WithFields(map[string]interface{}{
				"code":   req.Code,
				"period": string(req.Period),
				"from":   fetchFrom.Format("2006-01-02"),
				"to":     fetchTo.Format("2006-01-02"),
			}).Warn("Upstream fetch failed, serving stored series")
			fetched = nil
		}
	}

	if len(fetched) > 0 && !req.SkipPersist {
		// One transaction per cycle: all newly fetched bars commit
		// together or not at all.
		if err := f.store.UpsertBatch(ctx, fetched); err != nil {
			return Result{}, fmt.Errorf("fetch %s/%s: persist: %w", req.Code, req.Period, err)
		}
	}

	stored, err := f.readBack(ctx, req, now)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s/%s: %w", req.Code, req.Period, err)
	}

	merged := stored
	if req.SkipPersist && len(fetched) > 0 {
		merged = market.Merge(stored, f.clip(fetched, req))
	}

	return Result{Bars: merged.Dedupe(), Degraded: degraded}, nil
}

// window computes the upstream fetch window for the request.
func (f *Fetcher) window(req Request, latest, now time.Time) (time.Time, time.Time) {
	to := now
	if !req.To.IsZero() && req.To.Before(to) {
		to = req.To
	}

	var from time.Time
	if latest.IsZero() {
		// Cold instrument: bounded full history
		from = now.AddDate(0, 0, -f.historyDays)
	} else {
		// Strictly after the newest stored bar
		from = nextBarDate(latest, req.Period)
	}
	if !req.From.IsZero() && req.From.After(from) {
		from = req.From
	}

	return from, to
}

// nextBarDate advances one period step past the stored coverage.
func nextBarDate(latest time.Time, period market.Period) time.Time {
	switch period {
	case market.PeriodHourly:
		return latest.Add(time.Hour)
	case market.PeriodWeekly:
		return latest.AddDate(0, 0, 7)
	case market.PeriodMonthly:
		return latest.AddDate(0, 1, 0)
	default:
		return latest.AddDate(0, 0, 1)
	}
}

// readBack loads the series visible after the sync, restricted to the
// request window when one was given.
func (f *Fetcher) readBack(ctx context.Context, req Request, now time.Time) (market.Series, error) {
	if !req.From.IsZero() || !req.To.IsZero() {
		from := req.From
		if from.IsZero() {
			from = now.AddDate(0, 0, -f.historyDays)
		}
		to := req.To
		if to.IsZero() {
			to = now
		}
		return f.store.GetRange(ctx, req.Code, req.Period, from, to)
	}
	return f.store.GetAll(ctx, req.Code, req.Period)
}

// clip restricts fetched bars to the request window for the
// skip-persist merge path.
func (f *Fetcher) clip(bars market.Series, req Request) market.Series {
	if req.From.IsZero() && req.To.IsZero() {
		return bars
	}
	out := make(market.Series, 0, len(bars))
	for _, b := range bars {
		if !req.From.IsZero() && b.Date.Before(req.From) {
			continue
		}
		if !req.To.IsZero() && b.Date.After(req.To) {
			continue
		}
		out = append(out, b)
	}
	return out
}
