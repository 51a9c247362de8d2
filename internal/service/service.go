// Package service is the facade consumed by the gateway, notification
// and trading layers. It exposes series, indicator, score, selection
// and quote operations over the core engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyeliu/stockradar/internal/fetch"
	"github.com/wyeliu/stockradar/internal/indicator"
	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/quote"
	"github.com/wyeliu/stockradar/internal/score"
	"github.com/wyeliu/stockradar/internal/selection"
	"github.com/wyeliu/stockradar/internal/upstream"
	"github.com/wyeliu/stockradar/pkg/logger"
)

// Freshness tells the caller how to read a series response. The three
// states are distinguishable so nobody mistakes stale-but-available
// data for live data, or emptiness for an error.
type Freshness string

const (
	FreshnessFresh    Freshness = "fresh"
	FreshnessDegraded Freshness = "degraded"
	FreshnessEmpty    Freshness = "empty"
)

// SeriesResponse is an ordered bar series plus its freshness.
type SeriesResponse struct {
	Bars      market.Series `json:"bars"`
	Freshness Freshness     `json:"freshness"`
}

// SeriesFetcher runs one incremental sync.
type SeriesFetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

// InstrumentStore reads and seeds the tracked universe.
type InstrumentStore interface {
	ListTracked(ctx context.Context) ([]market.Instrument, error)
	Get(ctx context.Context, code string) (*market.Instrument, error)
	Upsert(ctx context.Context, inst market.Instrument) error
	SeedCodes(ctx context.Context, codes []string) error
}

// Service wires the core components behind one surface.
type Service struct {
	fetcher     SeriesFetcher
	instruments InstrumentStore
	sources     fetch.SourceResolver
	selector    *selection.Selector
	scorer      *score.Scorer
	quotes      *quote.Cache
	params      indicator.Params
	logger      *logger.Logger
}

// New creates the service facade
func New(
	fetcher SeriesFetcher,
	instruments InstrumentStore,
	sources fetch.SourceResolver,
	selector *selection.Selector,
	scorer *score.Scorer,
	quotes *quote.Cache,
	params indicator.Params,
	log *logger.Logger,
) *Service {
	return &Service{
		fetcher:     fetcher,
		instruments: instruments,
		sources:     sources,
		selector:    selector,
		scorer:      scorer,
		quotes:      quotes,
		params:      params,
		logger:      log.WithField("module", "service"),
	}
}

// GetSeries returns ordered bars for (code, period), triggering an
// incremental sync as needed. from/to may be zero for an open window.
func (s *Service) GetSeries(ctx context.Context, code string, period market.Period, from, to time.Time) (*SeriesResponse, error) {
	res, err := s.fetcher.Fetch(ctx, fetch.Request{
		Code:   code,
		Period: period,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, err
	}

	freshness := FreshnessFresh
	switch {
	case len(res.Bars) == 0:
		freshness = FreshnessEmpty
	case res.Degraded:
		freshness = FreshnessDegraded
	}

	return &SeriesResponse{Bars: res.Bars, Freshness: freshness}, nil
}

// GetIndicators derives the indicator set from the current series
// snapshot. Insufficient history surfaces as
// indicator.ErrInsufficientHistory, never as zeroed values.
func (s *Service) GetIndicators(ctx context.Context, code string, period market.Period) (*indicator.Set, error) {
	res, err := s.fetcher.Fetch(ctx, fetch.Request{Code: code, Period: period})
	if err != nil {
		return nil, err
	}
	return indicator.Compute(res.Bars, s.params)
}

// Score computes the composite score with factor breakdown for one
// instrument on its daily series.
func (s *Service) Score(ctx context.Context, code string) (*score.Score, error) {
	res, err := s.fetcher.Fetch(ctx, fetch.Request{Code: code, Period: market.PeriodDaily})
	if err != nil {
		return nil, err
	}

	set, err := indicator.Compute(res.Bars, s.params)
	if err != nil {
		return nil, err
	}

	return s.scorer.Score(res.Bars, set)
}

// Select ranks the tracked universe by score.
func (s *Service) Select(ctx context.Context, threshold float64, maxCount int) ([]selection.Pick, error) {
	return s.selector.SelectWith(ctx, threshold, maxCount)
}

// Quote returns a real-time snapshot, served from the cache when
// fresh and refreshed from the instrument's backend otherwise.
func (s *Service) Quote(ctx context.Context, code string) (*market.Quote, error) {
	if cached, fresh := s.quotes.Get(ctx, code); fresh {
		return cached, nil
	}

	q, err := s.sources.ForInstrument(code).FetchQuote(ctx, code)
	if err != nil {
		// A stale snapshot beats a hard failure
		if cached, _ := s.quotes.Get(ctx, code); cached != nil {
			s.logger.WithError(err).WithField("code", code).Warn("Quote refresh failed, serving stale snapshot")
			return cached, nil
		}
		return nil, err
	}

	s.quotes.Update(ctx, q)
	return q, nil
}

// SeedUniverse ensures the configured codes are tracked.
func (s *Service) SeedUniverse(ctx context.Context, codes []string) error {
	return s.instruments.SeedCodes(ctx, codes)
}

// RefreshProfiles updates names and trading flags for the tracked
// universe from backends that expose profiles. Per-instrument failures
// are logged and skipped.
func (s *Service) RefreshProfiles(ctx context.Context) error {
	instruments, err := s.instruments.ListTracked(ctx)
	if err != nil {
		return fmt.Errorf("refresh profiles: %w", err)
	}

	for _, inst := range instruments {
		src := s.sources.ForInstrument(inst.Code)
		profiles, ok := src.(upstream.ProfileSource)
		if !ok {
			continue
		}

		profile, err := profiles.FetchProfile(ctx, inst.Code)
		if err != nil {
			s.logger.WithError(err).WithField("code", inst.Code).Warn("Profile refresh failed")
			continue
		}

		if err := s.instruments.Upsert(ctx, *profile); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.WithError(err).WithField("code", inst.Code).Warn("Profile upsert failed")
		}
	}

	return nil
}
