package market

import (
	"sort"
	"strings"
	"time"
)

// Period identifies the bar aggregation interval.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodHourly  Period = "hourly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodHourly:
		return true
	}
	return false
}

// Bar is one OHLCV record for an instrument at a given period and date.
// A bar is unique per (Code, Period, Date).
type Bar struct {
	Code   string    `json:"code"`
	Period Period    `json:"period"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	Amount float64   `json:"amount"`
}

// Series is an ordered bar sequence for one (instrument, period),
// strictly ascending by date.
type Series []Bar

// SortAscending orders the series by date, oldest first.
func (s Series) SortAscending() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].Date.Before(s[j].Date)
	})
}

// Dedupe removes duplicate dates keeping the later occurrence, so a
// re-fetched bar overwrites the previously held one. The result is
// ascending.
func (s Series) Dedupe() Series {
	if len(s) == 0 {
		return s
	}

	byDate := make(map[int64]Bar, len(s))
	order := make([]int64, 0, len(s))
	for _, b := range s {
		key := b.Date.UnixNano()
		if _, exists := byDate[key]; !exists {
			order = append(order, key)
		}
		byDate[key] = b
	}

	out := make(Series, 0, len(order))
	for _, key := range order {
		out = append(out, byDate[key])
	}

	out.SortAscending()
	return out
}

// Merge combines stored and freshly fetched bars, with fetched bars
// winning on date conflicts. The result is ascending and de-duplicated.
func Merge(stored, fetched Series) Series {
	merged := make(Series, 0, len(stored)+len(fetched))
	merged = append(merged, stored...)
	merged = append(merged, fetched...)
	return merged.Dedupe()
}

// LastDate returns the date of the newest bar, or the zero time when
// the series is empty.
func (s Series) LastDate() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}

// Closes extracts the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Quote is an ephemeral real-time snapshot. It lives in the quote
// cache only, never in the durable series.
type Quote struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Volume    int64     `json:"volume"`
	At        time.Time `json:"at"`
}

// Instrument is one tracked universe entry.
type Instrument struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Suspended bool   `json:"suspended"`
}

// SpecialTreatment reports whether the instrument carries an exchange
// risk-warning designation (ST / *ST prefix in the listed name).
func (i Instrument) SpecialTreatment() bool {
	name := strings.TrimSpace(i.Name)
	return strings.HasPrefix(name, "ST") || strings.HasPrefix(name, "*ST")
}

// Namespace identifies which upstream backend serves an instrument.
type Namespace string

const (
	NamespaceMainland    Namespace = "mainland"     // Shanghai / Shenzhen A-shares
	NamespaceCrossBorder Namespace = "cross-border" // HK and US listings
)

// NamespaceOf routes an instrument code to its backend by static
// lookup on the code shape: 6-digit numeric codes are mainland, the
// hk/us prefixes are cross-border.
func NamespaceOf(code string) Namespace {
	lower := strings.ToLower(code)
	if strings.HasPrefix(lower, "hk") || strings.HasPrefix(lower, "us") {
		return NamespaceCrossBorder
	}
	return NamespaceMainland
}
