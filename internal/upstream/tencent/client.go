package tencent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/upstream"
	"github.com/wyeliu/stockradar/pkg/httputil"
	"github.com/wyeliu/stockradar/pkg/logger"
)

// Client fetches cross-border (HK, US) instrument data from the
// Tencent gtimg endpoints.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates a new Tencent client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string, ratePerSecond int) *Client {
	if baseURL == "" {
		baseURL = "https://web.ifzq.gtimg.cn"
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("source", "tencent"),
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
	}
}

// Name implements upstream.Source
func (c *Client) Name() string { return "tencent" }

// symbol converts our instrument code to the gtimg symbol form:
// "hk00700" stays as-is, "us.AAPL" becomes "usAAPL".
func symbol(code string) string {
	return strings.ReplaceAll(strings.ToLower(code), ".", "")
}

// FetchBars implements upstream.Source
func (c *Client) FetchBars(ctx context.Context, code string, period market.Period, from, to time.Time) (market.Series, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate wait: %v", upstream.ErrUnavailable, err)
	}

	sym := symbol(code)

	var fullURL, seriesKey string
	switch period {
	case market.PeriodDaily, market.PeriodWeekly, market.PeriodMonthly:
		kperiod := map[market.Period]string{
			market.PeriodDaily:   "day",
			market.PeriodWeekly:  "week",
			market.PeriodMonthly: "month",
		}[period]
		fullURL = fmt.Sprintf(
			"%s/appstock/app/fqkline/get?param=%s,%s,%s,%s,640,qfq",
			c.baseURL, sym, kperiod,
			from.Format("2006-01-02"), to.Format("2006-01-02"),
		)
		// adjusted series key, with plain fallback
		seriesKey = "qfq" + kperiod
	case market.PeriodHourly:
		fullURL = fmt.Sprintf(
			"%s/appstock/app/kline/mkline?param=%s,m60,,640",
			c.baseURL, sym,
		)
		seriesKey = "m60"
	default:
		return nil, fmt.Errorf("%w: unknown period %q", upstream.ErrMalformed, period)
	}

	body, err := c.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	bars, err := parseKlineBody(body, sym, seriesKey, code, period)
	if err != nil {
		return nil, err
	}

	// gtimg returns the trailing window for intraday; trim to the
	// requested range
	trimmed := make(market.Series, 0, len(bars))
	for _, b := range bars {
		if b.Date.Before(from) || b.Date.After(to.Add(24*time.Hour)) {
			continue
		}
		trimmed = append(trimmed, b)
	}

	c.logger.WithFields(map[string]interface{}{
		"code":   code,
		"period": string(period),
		"count":  len(trimmed),
	}).Debug("Fetched bars")
	return trimmed, nil
}

// parseKlineBody digs the kline rows out of the nested gtimg payload:
// {"data":{"<sym>":{"<seriesKey>":[[date,open,close,high,low,volume],...]}}}
func parseKlineBody(body []byte, sym, seriesKey, code string, period market.Period) (market.Series, error) {
	var outer struct {
		Data map[string]map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("%w: decode kline response: %v", upstream.ErrMalformed, err)
	}

	bySymbol, ok := outer.Data[sym]
	if !ok {
		// Unknown instrument or empty window
		return nil, nil
	}

	raw, ok := bySymbol[seriesKey]
	if !ok {
		// Non-adjusted instruments answer under the plain key
		plain := strings.TrimPrefix(seriesKey, "qfq")
		if raw, ok = bySymbol[plain]; !ok {
			return nil, nil
		}
	}

	var rows [][]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode kline rows: %v", upstream.ErrMalformed, err)
	}

	var bars market.Series
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: kline row has %d columns", upstream.ErrMalformed, len(row))
		}

		dateStr, ok := row[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: kline date column", upstream.ErrMalformed)
		}
		date, err := parseKlineDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("%w: kline date %q", upstream.ErrMalformed, dateStr)
		}

		open := toFloat(row[1])
		closePrice := toFloat(row[2])
		high := toFloat(row[3])
		low := toFloat(row[4])
		volume := int64(toFloat(row[5]))

		bars = append(bars, market.Bar{
			Code:   code,
			Period: period,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
			Amount: closePrice * float64(volume),
		})
	}

	bars.SortAscending()
	return bars, nil
}

// parseKlineDate accepts "2006-01-02" and the intraday "200601021504"
// forms gtimg uses.
func parseKlineDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("200601021504", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}

// FetchQuote implements upstream.Source. The qt.gtimg.cn quote answer
// is plain text: v_<sym>="field0~name~code~price~...";
func (c *Client) FetchQuote(ctx context.Context, code string) (*market.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate wait: %v", upstream.ErrUnavailable, err)
	}

	fullURL := fmt.Sprintf("https://qt.gtimg.cn/q=%s", symbol(code))

	body, err := c.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	return parseQuoteBody(string(body), code)
}

// parseQuoteBody extracts name (1), price (3), percent change (32) and
// volume (36) from the tilde-separated quote line.
func parseQuoteBody(body, code string) (*market.Quote, error) {
	start := strings.Index(body, `"`)
	end := strings.LastIndex(body, `"`)
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: quote response not quoted", upstream.ErrMalformed)
	}

	fields := strings.Split(body[start+1:end], "~")
	if len(fields) < 37 {
		return nil, fmt.Errorf("%w: quote has %d fields", upstream.ErrMalformed, len(fields))
	}

	price, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: quote price %q", upstream.ErrMalformed, fields[3])
	}
	changePct, err := strconv.ParseFloat(fields[32], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: quote change %q", upstream.ErrMalformed, fields[32])
	}
	volume, _ := strconv.ParseInt(fields[36], 10, 64)

	return &market.Quote{
		Code:      code,
		Name:      fields[1],
		Price:     price,
		ChangePct: changePct,
		Volume:    volume,
		At:        time.Now().UTC(),
	}, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", upstream.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", upstream.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", upstream.ErrUnavailable, err)
	}
	return body, nil
}
