package score

import (
	"fmt"
	"math"
	"time"

	"github.com/wyeliu/stockradar/internal/indicator"
	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/strategy"
	"github.com/wyeliu/stockradar/pkg/logger"
)

// Factors is the per-factor breakdown behind a composite score. Each
// factor is independently normalized and clamped to [0,100].
type Factors struct {
	Trend    float64 `json:"trend"`
	MACD     float64 `json:"macd"`
	RSI      float64 `json:"rsi"`
	Volume   float64 `json:"volume"`
	Momentum float64 `json:"momentum"`
}

// Score is an ephemeral composite rating, a pure function of the
// series and indicator set it was derived from. ComputedAt is metadata
// only; the value never depends on the clock.
type Score struct {
	Code       string    `json:"code"`
	Value      float64   `json:"value"`
	Factors    Factors   `json:"factors"`
	ComputedAt time.Time `json:"computed_at"`
}

// Scorer combines factor sub-scores through a fixed weight table.
type Scorer struct {
	weights strategy.Scoring
	logger  *logger.Logger
}

// NewScorer creates a scorer with the given weight table
func NewScorer(weights strategy.Scoring, log *logger.Logger) *Scorer {
	return &Scorer{
		weights: weights,
		logger:  log.WithField("module", "scorer"),
	}
}

// volumeWindow is the trailing window for the relative volume factor
const volumeWindow = 5

// Score rates the instrument from its series and indicator set.
func (s *Scorer) Score(bars market.Series, set *indicator.Set) (*Score, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("score: need at least 2 bars, got %d", len(bars))
	}
	if set == nil {
		return nil, fmt.Errorf("score: indicator set is nil")
	}

	last := bars[len(bars)-1]

	factors := Factors{
		Trend:    trendScore(last.Close, set.MA),
		MACD:     macdScore(set.MACD),
		RSI:      rsiScore(set.RSI),
		Volume:   volumeScore(bars),
		Momentum: momentumScore(bars),
	}

	value := factors.Trend*s.weights.Trend +
		factors.MACD*s.weights.MACD +
		factors.RSI*s.weights.RSI +
		factors.Volume*s.weights.Volume +
		factors.Momentum*s.weights.Momentum

	result := &Score{
		Code:       last.Code,
		Value:      clamp(value),
		Factors:    factors,
		ComputedAt: time.Now().UTC(),
	}

	s.logger.WithFields(map[string]interface{}{
		"code":  last.Code,
		"value": result.Value,
	}).Debug("Computed score")

	return result, nil
}

// trendScore rewards the close sitting above the moving average
// ladder: an equal share per window that the price clears.
func trendScore(closePrice float64, mas map[int]float64) float64 {
	if len(mas) == 0 {
		return 50.0
	}

	above := 0
	counted := 0
	for _, ma := range mas {
		if math.IsNaN(ma) {
			continue
		}
		counted++
		if closePrice > ma {
			above++
		}
	}
	if counted == 0 {
		return 50.0
	}
	return clamp(float64(above) / float64(counted) * 100.0)
}

// macdScore maps the crossover state: a fresh golden cross is max, a
// positive histogram without a cross is constructive, negative is
// weak, a death cross is min.
func macdScore(m indicator.MACDState) float64 {
	switch m.Cross {
	case indicator.CrossGolden:
		return 100.0
	case indicator.CrossDeath:
		return 0.0
	}
	if m.Hist > 0 {
		return 70.0
	}
	return 30.0
}

// rsiScore peaks around RSI 55 and decays toward the overbought and
// oversold extremes.
func rsiScore(rsi float64) float64 {
	if math.IsNaN(rsi) {
		return 50.0
	}
	return clamp(100.0 - math.Abs(rsi-55.0)*2.0)
}

// volumeScore compares the last bar's volume to the trailing mean:
// ratio 1.0 is neutral 50, twice the average saturates at 100.
func volumeScore(bars market.Series) float64 {
	if len(bars) < volumeWindow+1 {
		return 50.0
	}

	var sum float64
	for _, b := range bars[len(bars)-volumeWindow-1 : len(bars)-1] {
		sum += float64(b.Volume)
	}
	mean := sum / float64(volumeWindow)
	if mean <= 0 {
		return 50.0
	}

	ratio := float64(bars[len(bars)-1].Volume) / mean
	return clamp(ratio * 50.0)
}

// momentumScore maps the last bar's return: flat is 50, +10% saturates
// at 100, -10% at 0.
func momentumScore(bars market.Series) float64 {
	prev := bars[len(bars)-2].Close
	if prev <= 0 {
		return 50.0
	}
	ret := (bars[len(bars)-1].Close - prev) / prev
	return clamp(50.0 + ret*500.0)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
