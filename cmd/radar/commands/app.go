package commands

import (
	"context"
	"fmt"

	"github.com/wyeliu/stockradar/internal/collector"
	"github.com/wyeliu/stockradar/internal/fetch"
	"github.com/wyeliu/stockradar/internal/indicator"
	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/quote"
	"github.com/wyeliu/stockradar/internal/score"
	"github.com/wyeliu/stockradar/internal/selection"
	"github.com/wyeliu/stockradar/internal/service"
	"github.com/wyeliu/stockradar/internal/store"
	"github.com/wyeliu/stockradar/internal/strategy"
	"github.com/wyeliu/stockradar/internal/upstream"
	"github.com/wyeliu/stockradar/internal/upstream/eastmoney"
	"github.com/wyeliu/stockradar/internal/upstream/tencent"
	"github.com/wyeliu/stockradar/pkg/config"
	"github.com/wyeliu/stockradar/pkg/database"
	"github.com/wyeliu/stockradar/pkg/httputil"
	"github.com/wyeliu/stockradar/pkg/logger"
	"github.com/wyeliu/stockradar/pkg/redis"
)

// app holds the wired dependency graph shared by the commands.
type app struct {
	cfg      *config.Config
	strat    *strategy.Config
	log      *logger.Logger
	db       *database.DB
	rdb      *redis.Client
	bars     *store.BarRepository
	insts    *store.InstrumentRepository
	fetcher  *fetch.Fetcher
	coll     *collector.Collector
	collCfg  collector.Config
	svc      *service.Service
	selector *selection.Selector
}

// newApp builds the full graph from config. Every constructor lives in
// its own package; this is the only place the graph is assembled.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	stratPath := cfg.StrategyPath
	if strategyFile != "" {
		stratPath = strategyFile
	}
	strat, err := strategy.LoadOrDefault(stratPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := store.EnsureSchema(ctx, db.Pool); err != nil {
		db.Close()
		return nil, err
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	limiter := redis.NewRateLimiter(rdb, "stockradar")

	// Transport retries are off: the fetcher retries whole operations
	// through pkg/retry.
	emHTTP := httputil.New(cfg, log).
		DisableRetry().
		WithRateLimiter(limiter, redis.EastmoneyRateLimit).
		WithHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36").
		WithHeader("Referer", "https://quote.eastmoney.com/")
	txHTTP := httputil.New(cfg, log).
		DisableRetry().
		WithRateLimiter(limiter, redis.TencentRateLimit)

	registry := upstream.NewRegistry(
		eastmoney.NewClient(emHTTP, log, cfg.Upstream.EastmoneyBaseURL, cfg.Upstream.RatePerSecond),
		tencent.NewClient(txHTTP, log, cfg.Upstream.TencentBaseURL, cfg.Upstream.RatePerSecond),
	)

	bars := store.NewBarRepository(db.Pool)
	insts := store.NewInstrumentRepository(db.Pool)

	fetcher := fetch.New(bars, registry, fetch.Config{
		HistoryDays: cfg.Sync.HistoryDays,
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffBase: cfg.Sync.BackoffBase,
	}, log)

	params := indicator.Params{
		MAWindows:  strat.Indicators.MAWindows,
		RSIPeriod:  strat.Indicators.RSIPeriod,
		KDJPeriod:  strat.Indicators.KDJPeriod,
		BollWindow: strat.Indicators.BollWindow,
		BollK:      2.0,
		MinBars:    strat.Indicators.MinBars,
	}

	scorer := score.NewScorer(strat.Scoring, log)
	selector := selection.New(insts, fetcher, scorer, params, strat.Selection, log)
	quotes := quote.NewCache(redis.TTLQuote, redis.NewCache(rdb, "stockradar"), log)

	svc := service.New(fetcher, insts, registry, selector, scorer, quotes, params, log)

	periods := make([]market.Period, 0, len(strat.Universe.Periods))
	for _, p := range strat.Universe.Periods {
		periods = append(periods, market.Period(p))
	}

	coll := collector.New(insts, fetcher, log)
	collCfg := collector.Config{
		Workers:      cfg.Sync.Workers,
		Periods:      periods,
		FetchTimeout: cfg.Sync.FetchTimeout,
	}

	// The strategy file seeds the tracked universe
	if err := insts.SeedCodes(ctx, strat.Universe.Codes); err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		strat:    strat,
		log:      log,
		db:       db,
		rdb:      rdb,
		bars:     bars,
		insts:    insts,
		fetcher:  fetcher,
		coll:     coll,
		collCfg:  collCfg,
		svc:      svc,
		selector: selector,
	}, nil
}

// close releases the app's connections
func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
