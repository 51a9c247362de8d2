// Package indicator computes technical indicators over an ordered bar
// series. Every function here is a pure, deterministic transform:
// identical input always yields identical output, and positions with
// insufficient trailing history are NaN rather than zero.
package indicator

import (
	"errors"
	"math"

	"github.com/wyeliu/stockradar/internal/market"
)

// ErrInsufficientHistory is a logical condition, not a failure: the
// series is shorter than the strategy's minimum bar requirement.
var ErrInsufficientHistory = errors.New("insufficient history")

// Params holds per-indicator window configuration.
type Params struct {
	MAWindows  []int
	RSIPeriod  int
	KDJPeriod  int
	BollWindow int
	BollK      float64
	MinBars    int
}

// DefaultParams returns the conventional windows: MA 5/10/20/60,
// RSI(14), KDJ(9), Bollinger(20, 2).
func DefaultParams() Params {
	return Params{
		MAWindows:  []int{5, 10, 20, 60},
		RSIPeriod:  14,
		KDJPeriod:  9,
		BollWindow: 20,
		BollK:      2.0,
		MinBars:    60,
	}
}

// required is the minimum series length Compute accepts for p.
func (p Params) required() int {
	req := p.MinBars
	for _, n := range p.MAWindows {
		if n > req {
			req = n
		}
	}
	if p.BollWindow > req {
		req = p.BollWindow
	}
	if p.RSIPeriod+1 > req {
		req = p.RSIPeriod + 1
	}
	// MACD needs the slow EMA plus the signal window to settle
	if macdSlow+macdSignal > req {
		req = macdSlow + macdSignal
	}
	return req
}

// MACD windows per convention
const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Cross describes the MACD line vs signal line state at the last bar.
type Cross int

const (
	CrossNone Cross = iota
	CrossGolden
	CrossDeath
)

// MACDState is the MACD reading at the last bar.
type MACDState struct {
	DIF   float64 `json:"dif"`
	DEA   float64 `json:"dea"`
	Hist  float64 `json:"hist"`
	Cross Cross   `json:"cross"`
}

// Bands is the Bollinger reading at the last bar.
type Bands struct {
	Upper float64 `json:"upper"`
	Mid   float64 `json:"mid"`
	Lower float64 `json:"lower"`
}

// Stochastic is the KDJ reading at the last bar.
type Stochastic struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
	J float64 `json:"j"`
}

// Set is the full indicator snapshot derived from one series. It is
// recomputed on every request and never persisted.
type Set struct {
	MA   map[int]float64 `json:"ma"`
	MACD MACDState       `json:"macd"`
	RSI  float64         `json:"rsi"`
	KDJ  Stochastic      `json:"kdj"`
	Boll Bands           `json:"boll"`
}

// Compute derives the indicator set from the last position of the
// series. Series shorter than the configured minimum return
// ErrInsufficientHistory, never a zero-filled set.
func Compute(bars market.Series, p Params) (*Set, error) {
	if len(bars) < p.required() {
		return nil, ErrInsufficientHistory
	}

	closes := bars.Closes()
	last := len(closes) - 1

	set := &Set{MA: make(map[int]float64, len(p.MAWindows))}

	for _, n := range p.MAWindows {
		ma := MA(closes, n)
		set.MA[n] = ma[last]
	}

	dif, dea, hist := MACD(closes)
	set.MACD = MACDState{
		DIF:   dif[last],
		DEA:   dea[last],
		Hist:  hist[last],
		Cross: crossState(hist),
	}

	rsi := RSI(closes, p.RSIPeriod)
	set.RSI = rsi[last]

	k, d, j := KDJ(bars, p.KDJPeriod)
	set.KDJ = Stochastic{K: k[last], D: d[last], J: j[last]}

	upper, mid, lower := Bollinger(closes, p.BollWindow, p.BollK)
	set.Boll = Bands{Upper: upper[last], Mid: mid[last], Lower: lower[last]}

	return set, nil
}

// crossState inspects the last two histogram values for a sign flip.
func crossState(hist []float64) Cross {
	if len(hist) < 2 {
		return CrossNone
	}
	prev, cur := hist[len(hist)-2], hist[len(hist)-1]
	if math.IsNaN(prev) || math.IsNaN(cur) {
		return CrossNone
	}
	switch {
	case prev <= 0 && cur > 0:
		return CrossGolden
	case prev >= 0 && cur < 0:
		return CrossDeath
	}
	return CrossNone
}

// MA returns the trailing-n arithmetic mean of closes. Positions with
// fewer than n closes behind them are NaN.
func MA(closes []float64, n int) []float64 {
	out := nanSlice(len(closes))
	if n <= 0 || len(closes) < n {
		return out
	}

	var sum float64
	for i, c := range closes {
		sum += c
		if i >= n {
			sum -= closes[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the exponential moving average seeded with the first
// close: EMA[0] = close[0], EMA[t] = close[t]*k + EMA[t-1]*(1-k),
// k = 2/(period+1).
func EMA(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}

	k := 2.0 / (float64(period) + 1.0)
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

// MACD returns the DIF (fast EMA minus slow EMA), DEA (signal EMA of
// DIF) and histogram (DIF minus DEA) series.
func MACD(closes []float64) (dif, dea, hist []float64) {
	fast := EMA(closes, macdFast)
	slow := EMA(closes, macdSlow)

	dif = make([]float64, len(closes))
	for i := range closes {
		dif[i] = fast[i] - slow[i]
	}

	dea = EMA(dif, macdSignal)

	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = dif[i] - dea[i]
	}
	return dif, dea, hist
}

// RSI returns the Wilder-smoothed relative strength index: the first
// average gain/loss is a simple mean over n changes, every later one
// is (prev*(n-1) + current) / n. Positions before n changes are NaN.
// When the average loss is zero the RSI is 100.
func RSI(closes []float64, n int) []float64 {
	out := nanSlice(len(closes))
	if n <= 0 || len(closes) < n+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = rsiValue(avgGain, avgLoss)

	for i := n + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(n-1) + gain) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// KDJ returns the stochastic K, D and J series over an n-period
// high/low range. K and D are smoothed with factor 1/3 from neutral 50
// starts; J = 3*D - 2*K. Positions before the first full range are NaN.
func KDJ(bars market.Series, n int) (k, d, j []float64) {
	k = nanSlice(len(bars))
	d = nanSlice(len(bars))
	j = nanSlice(len(bars))
	if n <= 0 || len(bars) < n {
		return k, d, j
	}

	prevK, prevD := 50.0, 50.0
	for i := n - 1; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		for t := i - n + 1; t <= i; t++ {
			if bars[t].High > high {
				high = bars[t].High
			}
			if bars[t].Low < low {
				low = bars[t].Low
			}
		}

		rsv := 50.0
		if high > low {
			rsv = (bars[i].Close - low) / (high - low) * 100.0
		}

		curK := prevK*2.0/3.0 + rsv/3.0
		curD := prevD*2.0/3.0 + curK/3.0

		k[i] = curK
		d[i] = curD
		j[i] = 3.0*curD - 2.0*curK

		prevK, prevD = curK, curD
	}
	return k, d, j
}

// Bollinger returns the upper, middle and lower bands: the middle is
// MA(n), the outer bands sit k population standard deviations away.
func Bollinger(closes []float64, n int, k float64) (upper, mid, lower []float64) {
	mid = MA(closes, n)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))
	if n <= 0 || len(closes) < n {
		return upper, mid, lower
	}

	for i := n - 1; i < len(closes); i++ {
		var sumSq float64
		for t := i - n + 1; t <= i; t++ {
			diff := closes[t] - mid[i]
			sumSq += diff * diff
		}
		std := math.Sqrt(sumSq / float64(n))
		upper[i] = mid[i] + k*std
		lower[i] = mid[i] - k*std
	}
	return upper, mid, lower
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
