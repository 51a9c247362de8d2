package score

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyeliu/stockradar/internal/indicator"
	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/strategy"
	"github.com/wyeliu/stockradar/pkg/logger"
)

func testScorer() *Scorer {
	return NewScorer(strategy.Scoring{
		Trend:    0.30,
		MACD:     0.20,
		RSI:      0.20,
		Volume:   0.15,
		Momentum: 0.15,
	}, logger.NewNop())
}

func seriesWithVolumes(closes []float64, volumes []int64) market.Series {
	bars := make(market.Series, len(closes))
	base := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	for i := range closes {
		bars[i] = market.Bar{
			Code:   "000001",
			Period: market.PeriodDaily,
			Date:   base.AddDate(0, 0, i),
			Close:  closes[i],
			High:   closes[i],
			Low:    closes[i],
			Volume: volumes[i],
		}
	}
	return bars
}

func flatSeries(n int) market.Series {
	closes := make([]float64, n)
	volumes := make([]int64, n)
	for i := range closes {
		closes[i] = 10.0
		volumes[i] = 1000
	}
	return seriesWithVolumes(closes, volumes)
}

func neutralSet() *indicator.Set {
	return &indicator.Set{
		MA:   map[int]float64{5: 10, 10: 10, 20: 10, 60: 10},
		MACD: indicator.MACDState{Hist: 0.1},
		RSI:  55,
		KDJ:  indicator.Stochastic{K: 50, D: 50, J: 50},
		Boll: indicator.Bands{Upper: 11, Mid: 10, Lower: 9},
	}
}

func TestScorer_Deterministic(t *testing.T) {
	s := testScorer()
	bars := flatSeries(10)
	set := neutralSet()

	a, err := s.Score(bars, set)
	require.NoError(t, err)
	b, err := s.Score(bars, set)
	require.NoError(t, err)

	assert.Equal(t, a.Value, b.Value, "value never depends on the clock")
	assert.Equal(t, a.Factors, b.Factors)
}

func TestScorer_ValueInRange(t *testing.T) {
	s := testScorer()

	tests := []struct {
		name string
		set  *indicator.Set
	}{
		{"golden cross", &indicator.Set{
			MA:   map[int]float64{5: 1, 10: 1},
			MACD: indicator.MACDState{Cross: indicator.CrossGolden, Hist: 1},
			RSI:  55,
		}},
		{"death cross", &indicator.Set{
			MA:   map[int]float64{5: 100, 10: 100},
			MACD: indicator.MACDState{Cross: indicator.CrossDeath, Hist: -1},
			RSI:  90,
		}},
		{"nan mas", &indicator.Set{
			MA:  map[int]float64{5: math.NaN(), 60: math.NaN()},
			RSI: math.NaN(),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Score(flatSeries(10), tt.set)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.Value, 0.0)
			assert.LessOrEqual(t, got.Value, 100.0)
		})
	}
}

func TestScorer_TooFewBars(t *testing.T) {
	s := testScorer()
	_, err := s.Score(flatSeries(1), neutralSet())
	assert.Error(t, err)

	_, err = s.Score(flatSeries(10), nil)
	assert.Error(t, err)
}

func TestTrendScore(t *testing.T) {
	// Close above every MA scores full, above half scores half.
	assert.InDelta(t, 100.0, trendScore(20, map[int]float64{5: 10, 10: 15}), 1e-9)
	assert.InDelta(t, 50.0, trendScore(12, map[int]float64{5: 10, 10: 15}), 1e-9)
	assert.InDelta(t, 0.0, trendScore(5, map[int]float64{5: 10, 10: 15}), 1e-9)

	// NaN windows are ignored, not counted as misses.
	assert.InDelta(t, 100.0, trendScore(20, map[int]float64{5: 10, 60: math.NaN()}), 1e-9)
	assert.InDelta(t, 50.0, trendScore(20, map[int]float64{60: math.NaN()}), 1e-9)
	assert.InDelta(t, 50.0, trendScore(20, nil), 1e-9)
}

func TestMACDScore(t *testing.T) {
	assert.Equal(t, 100.0, macdScore(indicator.MACDState{Cross: indicator.CrossGolden}))
	assert.Equal(t, 0.0, macdScore(indicator.MACDState{Cross: indicator.CrossDeath}))
	assert.Equal(t, 70.0, macdScore(indicator.MACDState{Hist: 0.5}))
	assert.Equal(t, 30.0, macdScore(indicator.MACDState{Hist: -0.5}))
}

func TestRSIScore(t *testing.T) {
	assert.InDelta(t, 100.0, rsiScore(55), 1e-9, "peaks at 55")
	assert.InDelta(t, 90.0, rsiScore(50), 1e-9)
	assert.InDelta(t, 90.0, rsiScore(60), 1e-9)
	assert.InDelta(t, 10.0, rsiScore(100), 1e-9)
	assert.InDelta(t, 0.0, rsiScore(5), 1e-9, "clamped at the oversold extreme")
	assert.InDelta(t, 50.0, rsiScore(math.NaN()), 1e-9)
}

func TestVolumeScore(t *testing.T) {
	closes := []float64{1, 1, 1, 1, 1, 1, 1}
	volumes := []int64{100, 100, 100, 100, 100, 100, 100}
	assert.InDelta(t, 50.0, volumeScore(seriesWithVolumes(closes, volumes)), 1e-9, "average volume is neutral")

	volumes[6] = 200
	assert.InDelta(t, 100.0, volumeScore(seriesWithVolumes(closes, volumes)), 1e-9, "twice the average saturates")

	volumes[6] = 0
	assert.InDelta(t, 0.0, volumeScore(seriesWithVolumes(closes, volumes)), 1e-9)

	assert.InDelta(t, 50.0, volumeScore(flatSeries(3)), 1e-9, "short series is neutral")
}

func TestMomentumScore(t *testing.T) {
	closes := []float64{100, 100}
	volumes := []int64{1, 1}
	assert.InDelta(t, 50.0, momentumScore(seriesWithVolumes(closes, volumes)), 1e-9)

	closes[1] = 110 // +10% saturates
	assert.InDelta(t, 100.0, momentumScore(seriesWithVolumes(closes, volumes)), 1e-9)

	closes[1] = 90 // -10% floors
	assert.InDelta(t, 0.0, momentumScore(seriesWithVolumes(closes, volumes)), 1e-9)

	closes[1] = 102
	assert.InDelta(t, 60.0, momentumScore(seriesWithVolumes(closes, volumes)), 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-5))
	assert.Equal(t, 100.0, clamp(150))
	assert.Equal(t, 42.5, clamp(42.5))
}
