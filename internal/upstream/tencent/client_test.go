package tencent

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/upstream"
)

func TestSymbol(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"hk00700", "hk00700"},
		{"HK00700", "hk00700"},
		{"us.AAPL", "usaapl"},
		{"usTSLA", "ustsla"},
	}

	for _, tt := range tests {
		if got := symbol(tt.code); got != tt.want {
			t.Errorf("symbol(%s) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestParseKlineBody_AdjustedKey(t *testing.T) {
	body := []byte(`{"code":0,"data":{"hk00700":{"qfqday":[
		["2026-01-15","320.00","325.50","328.00","318.00","21000000"],
		["2026-01-16","325.50","330.00","331.00","324.00","18500000"]
	]}}}`)

	bars, err := parseKlineBody(body, "hk00700", "qfqday", "hk00700", market.PeriodDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}

	b := bars[0]
	if b.Open != 320.00 || b.Close != 325.50 || b.High != 328.00 || b.Low != 318.00 {
		t.Errorf("OHLC mapping wrong: %+v", b)
	}
	if b.Volume != 21000000 {
		t.Errorf("volume = %d, want 21000000", b.Volume)
	}
	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !b.Date.Equal(want) {
		t.Errorf("date = %v, want %v", b.Date, want)
	}
}

func TestParseKlineBody_PlainKeyFallback(t *testing.T) {
	// Instruments without adjustment data answer under "day".
	body := []byte(`{"code":0,"data":{"usaapl":{"day":[
		["2026-01-15","230.00","232.10","233.00","229.50","41000000"]
	]}}}`)

	bars, err := parseKlineBody(body, "usaapl", "qfqday", "us.AAPL", market.PeriodDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("got %d bars, want 1", len(bars))
	}
	if bars[0].Code != "us.AAPL" {
		t.Errorf("code = %s, want the caller's code form", bars[0].Code)
	}
}

func TestParseKlineBody_UnknownSymbolIsEmpty(t *testing.T) {
	body := []byte(`{"code":0,"data":{}}`)
	bars, err := parseKlineBody(body, "hk99999", "qfqday", "hk99999", market.PeriodDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("got %d bars, want 0", len(bars))
	}
}

func TestParseKlineBody_HourlyDates(t *testing.T) {
	body := []byte(`{"code":0,"data":{"hk00700":{"m60":[
		["202601151030","320.00","321.00","322.00","319.00","900000"],
		["202601151130","321.00","322.50","323.00","320.50","800000"]
	]}}}`)

	bars, err := parseKlineBody(body, "hk00700", "m60", "hk00700", market.PeriodHourly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	if !bars[0].Date.Equal(want) {
		t.Errorf("date = %v, want %v", bars[0].Date, want)
	}
}

func TestParseKlineBody_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `v_hk00700="...";`},
		{"short row", `{"data":{"hk00700":{"qfqday":[["2026-01-15","320.00"]]}}}`},
		{"bad date", `{"data":{"hk00700":{"qfqday":[["Jan 15","1","1","1","1","1"]]}}}`},
		{"numeric date column", `{"data":{"hk00700":{"qfqday":[[20260115,"1","1","1","1","1"]]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseKlineBody([]byte(tt.body), "hk00700", "qfqday", "hk00700", market.PeriodDaily)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, upstream.ErrMalformed) {
				t.Errorf("error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseQuoteBody(t *testing.T) {
	fields := make([]string, 50)
	for i := range fields {
		fields[i] = "0"
	}
	fields[1] = "TENCENT"
	fields[3] = "325.40"
	fields[32] = "1.25"
	fields[36] = "21000000"
	body := `v_hk00700="` + strings.Join(fields, "~") + `";`

	q, err := parseQuoteBody(body, "hk00700")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Name != "TENCENT" {
		t.Errorf("name = %s", q.Name)
	}
	if q.Price != 325.40 {
		t.Errorf("price = %f", q.Price)
	}
	if q.ChangePct != 1.25 {
		t.Errorf("change = %f", q.ChangePct)
	}
	if q.Volume != 21000000 {
		t.Errorf("volume = %d", q.Volume)
	}
}

func TestParseQuoteBody_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no quotes", `v_hk00700=;`},
		{"too few fields", `v_hk00700="a~b~c";`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseQuoteBody(tt.body, "hk00700")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, upstream.ErrMalformed) {
				t.Errorf("error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseKlineDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-15", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"202601151030", time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := parseKlineDate(tt.in)
		if err != nil {
			t.Errorf("parseKlineDate(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseKlineDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
