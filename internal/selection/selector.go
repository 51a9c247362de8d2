package selection

import (
	"context"
	"errors"
	"sort"

	"github.com/wyeliu/stockradar/internal/fetch"
	"github.com/wyeliu/stockradar/internal/indicator"
	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/score"
	"github.com/wyeliu/stockradar/internal/strategy"
	"github.com/wyeliu/stockradar/pkg/logger"
)

// ErrExcluded marks an instrument rejected by exclusion rules. A flag,
// not a failure.
var ErrExcluded = errors.New("instrument excluded")

// UniverseStore lists the tracked instrument pool.
type UniverseStore interface {
	ListTracked(ctx context.Context) ([]market.Instrument, error)
}

// SeriesFetcher runs an incremental sync and returns the series.
type SeriesFetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

// Pick is one ranked selection entry.
type Pick struct {
	Instrument market.Instrument `json:"instrument"`
	Score      score.Score       `json:"score"`
	LatestBar  market.Bar        `json:"latest_bar"`
	Degraded   bool              `json:"degraded"`
}

// Selector filters and ranks the universe by composite score.
type Selector struct {
	universe UniverseStore
	fetcher  SeriesFetcher
	scorer   *score.Scorer
	params   indicator.Params
	cfg      strategy.Selection
	logger   *logger.Logger
}

// New creates a selector
func New(universe UniverseStore, fetcher SeriesFetcher, scorer *score.Scorer, params indicator.Params, cfg strategy.Selection, log *logger.Logger) *Selector {
	return &Selector{
		universe: universe,
		fetcher:  fetcher,
		scorer:   scorer,
		params:   params,
		cfg:      cfg,
		logger:   log.WithField("module", "selector"),
	}
}

// Select ranks the universe with the configured threshold and count.
func (s *Selector) Select(ctx context.Context) ([]Pick, error) {
	return s.SelectWith(ctx, s.cfg.ScoreThreshold, s.cfg.MaxCount)
}

// SelectWith ranks the universe: sufficient history is ensured via the
// fetcher, flagged and excluded instruments are dropped, survivors are
// kept at score >= threshold, sorted score descending with ties broken
// by ascending code, truncated to maxCount. Per-instrument failures
// are logged and skipped, never aborting the batch.
func (s *Selector) SelectWith(ctx context.Context, threshold float64, maxCount int) ([]Pick, error) {
	instruments, err := s.universe.ListTracked(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(s.cfg.ExcludedCodes))
	for _, code := range s.cfg.ExcludedCodes {
		excluded[code] = true
	}

	picks := make([]Pick, 0, len(instruments))
	filtered := make(map[string]int) // reason -> count

	for _, inst := range instruments {
		pick, reason, err := s.evaluate(ctx, inst, excluded)
		if err != nil {
			s.logger.WithError(err).WithField("code", inst.Code).Warn("Skipping instrument")
			filtered["error"]++
			continue
		}
		if reason != "" {
			filtered[reason]++
			continue
		}
		if pick.Score.Value < threshold {
			filtered["threshold"]++
			continue
		}
		picks = append(picks, *pick)
	}

	sort.Slice(picks, func(i, j int) bool {
		if picks[i].Score.Value != picks[j].Score.Value {
			return picks[i].Score.Value > picks[j].Score.Value
		}
		return picks[i].Instrument.Code < picks[j].Instrument.Code
	})

	if maxCount > 0 && len(picks) > maxCount {
		picks = picks[:maxCount]
	}

	s.logger.WithFields(map[string]interface{}{
		"universe": len(instruments),
		"selected": len(picks),
		"filters":  filtered,
	}).Info("Selection completed")

	return picks, nil
}

// evaluate scores one instrument. A non-empty reason means it was
// filtered, not failed.
func (s *Selector) evaluate(ctx context.Context, inst market.Instrument, excluded map[string]bool) (*Pick, string, error) {
	if excluded[inst.Code] {
		return nil, "excluded", nil
	}
	if inst.SpecialTreatment() {
		return nil, "special_treatment", nil
	}
	if inst.Suspended {
		return nil, "suspended", nil
	}

	res, err := s.fetcher.Fetch(ctx, fetch.Request{
		Code:   inst.Code,
		Period: market.PeriodDaily,
	})
	if err != nil {
		return nil, "", err
	}
	if len(res.Bars) == 0 {
		return nil, "no_data", nil
	}

	set, err := indicator.Compute(res.Bars, s.params)
	if errors.Is(err, indicator.ErrInsufficientHistory) {
		return nil, "insufficient_history", nil
	}
	if err != nil {
		return nil, "", err
	}

	sc, err := s.scorer.Score(res.Bars, set)
	if err != nil {
		return nil, "", err
	}

	return &Pick{
		Instrument: inst,
		Score:      *sc,
		LatestBar:  res.Bars[len(res.Bars)-1],
		Degraded:   res.Degraded,
	}, "", nil
}
