package strategy

import "fmt"

// Config is the full selection strategy configuration, loaded from a
// YAML file. Runtime tunables that are strategy decisions rather than
// deployment concerns live here, not in the environment.
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Universe   Universe   `yaml:"universe" json:"universe"`
	Indicators Indicators `yaml:"indicators" json:"indicators"`
	Scoring    Scoring    `yaml:"scoring" json:"scoring"`
	Selection  Selection  `yaml:"selection" json:"selection"`
}

// Meta identifies the strategy revision
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Universe defines the tracked instrument pool
type Universe struct {
	// Codes seeds the tracked universe; the instruments table is the
	// runtime source of truth and is upserted from this list.
	Codes   []string `yaml:"codes" json:"codes"`
	Periods []string `yaml:"periods" json:"periods"`
}

// Indicators holds per-indicator minimum-history requirements
type Indicators struct {
	MAWindows  []int `yaml:"ma_windows" json:"ma_windows"`
	RSIPeriod  int   `yaml:"rsi_period" json:"rsi_period"`
	KDJPeriod  int   `yaml:"kdj_period" json:"kdj_period"`
	BollWindow int   `yaml:"boll_window" json:"boll_window"`
	// MinBars is the hard floor: Compute refuses shorter series rather
	// than emitting zero-filled values.
	MinBars int `yaml:"min_bars" json:"min_bars"`
}

// Scoring is the fixed factor weight table. Weights must sum to ~1.
type Scoring struct {
	Trend    float64 `yaml:"trend" json:"trend"`
	MACD     float64 `yaml:"macd" json:"macd"`
	RSI      float64 `yaml:"rsi" json:"rsi"`
	Volume   float64 `yaml:"volume" json:"volume"`
	Momentum float64 `yaml:"momentum" json:"momentum"`
}

// Sum returns the total weight
func (s Scoring) Sum() float64 {
	return s.Trend + s.MACD + s.RSI + s.Volume + s.Momentum
}

// Selection defines ranking cut rules
type Selection struct {
	ScoreThreshold float64  `yaml:"score_threshold" json:"score_threshold"`
	MaxCount       int      `yaml:"max_count" json:"max_count"`
	ExcludedCodes  []string `yaml:"excluded_codes" json:"excluded_codes"`
}

// Validate checks config invariants
func Validate(cfg *Config) error {
	if cfg.Meta.StrategyID == "" {
		return fmt.Errorf("meta.strategy_id is required")
	}

	if len(cfg.Universe.Codes) == 0 {
		return fmt.Errorf("universe.codes must not be empty")
	}

	for _, p := range cfg.Universe.Periods {
		switch p {
		case "daily", "weekly", "monthly", "hourly":
		default:
			return fmt.Errorf("universe.periods: unknown period %q", p)
		}
	}

	sum := cfg.Scoring.Sum()
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}

	if cfg.Selection.MaxCount <= 0 {
		return fmt.Errorf("selection.max_count must be positive")
	}

	if cfg.Selection.ScoreThreshold < 0 || cfg.Selection.ScoreThreshold > 100 {
		return fmt.Errorf("selection.score_threshold must be within [0,100]")
	}

	if cfg.Indicators.MinBars <= 0 {
		return fmt.Errorf("indicators.min_bars must be positive")
	}

	return nil
}

// Default returns the built-in strategy used when no file is supplied.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "cn_equity_default",
			Version:    "1",
		},
		Universe: Universe{
			Codes:   []string{"600519", "000001", "000858", "601318", "300750"},
			Periods: []string{"daily"},
		},
		Indicators: Indicators{
			MAWindows:  []int{5, 10, 20, 60},
			RSIPeriod:  14,
			KDJPeriod:  9,
			BollWindow: 20,
			MinBars:    60,
		},
		Scoring: Scoring{
			Trend:    0.30,
			MACD:     0.20,
			RSI:      0.20,
			Volume:   0.15,
			Momentum: 0.15,
		},
		Selection: Selection{
			ScoreThreshold: 60,
			MaxCount:       20,
			ExcludedCodes:  nil,
		},
	}
}
