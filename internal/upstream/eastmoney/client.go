package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/internal/upstream"
	"github.com/wyeliu/stockradar/pkg/httputil"
	"github.com/wyeliu/stockradar/pkg/logger"
)

// Client fetches mainland A-share data from the Eastmoney kline and
// quote endpoints.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates a new Eastmoney client. ratePerSecond bounds the
// local request rate regardless of how many workers share the client.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string, ratePerSecond int) *Client {
	if baseURL == "" {
		baseURL = "https://push2his.eastmoney.com"
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("source", "eastmoney"),
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
	}
}

// Name implements upstream.Source
func (c *Client) Name() string { return "eastmoney" }

// klt codes for the kline endpoint
var kltByPeriod = map[market.Period]string{
	market.PeriodDaily:   "101",
	market.PeriodWeekly:  "102",
	market.PeriodMonthly: "103",
	market.PeriodHourly:  "60",
}

// secID builds the Eastmoney security id: market prefix 1 for Shanghai
// (codes starting with 5, 6 or 9), 0 for Shenzhen.
func secID(code string) string {
	switch {
	case strings.HasPrefix(code, "6"), strings.HasPrefix(code, "5"), strings.HasPrefix(code, "9"):
		return "1." + code
	default:
		return "0." + code
	}
}

type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// FetchBars implements upstream.Source
func (c *Client) FetchBars(ctx context.Context, code string, period market.Period, from, to time.Time) (market.Series, error) {
	klt, ok := kltByPeriod[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown period %q", upstream.ErrMalformed, period)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate wait: %v", upstream.ErrUnavailable, err)
	}

	fullURL := fmt.Sprintf(
		"%s/api/qt/stock/kline/get?secid=%s&klt=%s&fqt=1&beg=%s&end=%s&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56,f57",
		c.baseURL, secID(code), klt,
		from.Format("20060102"), to.Format("20060102"),
	)

	body, err := c.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	var parsed klineResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode kline response: %v", upstream.ErrMalformed, err)
	}
	if parsed.Data == nil {
		// Unknown instrument or no data in the window
		return nil, nil
	}

	bars, err := parseKlines(code, period, parsed.Data.Klines)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"code":   code,
		"period": string(period),
		"count":  len(bars),
	}).Debug("Fetched bars")
	return bars, nil
}

// parseKlines parses the comma-joined kline rows. Column order is
// date, open, close, high, low, volume, amount.
func parseKlines(code string, period market.Period, klines []string) (market.Series, error) {
	var bars market.Series
	for _, line := range klines {
		fields := strings.Split(line, ",")
		if len(fields) < 7 {
			return nil, fmt.Errorf("%w: kline row has %d fields", upstream.ErrMalformed, len(fields))
		}

		date, err := parseKlineDate(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: kline date %q", upstream.ErrMalformed, fields[0])
		}

		open, err1 := strconv.ParseFloat(fields[1], 64)
		closePrice, err2 := strconv.ParseFloat(fields[2], 64)
		high, err3 := strconv.ParseFloat(fields[3], 64)
		low, err4 := strconv.ParseFloat(fields[4], 64)
		volume, err5 := strconv.ParseInt(fields[5], 10, 64)
		amount, err6 := strconv.ParseFloat(fields[6], 64)
		for _, err := range []error{err1, err2, err3, err4, err5, err6} {
			if err != nil {
				return nil, fmt.Errorf("%w: kline row %q", upstream.ErrMalformed, line)
			}
		}

		bars = append(bars, market.Bar{
			Code:   code,
			Period: period,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
			Amount: amount,
		})
	}

	bars.SortAscending()
	return bars, nil
}

// parseKlineDate accepts daily ("2024-01-15") and intraday
// ("2024-01-15 10:30") date formats.
func parseKlineDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

type quoteResponse struct {
	Data *struct {
		Name      string  `json:"f58"`
		Price     float64 `json:"f43"`
		ChangePct float64 `json:"f170"`
		Volume    int64   `json:"f47"`
	} `json:"data"`
}

// FetchQuote implements upstream.Source. Eastmoney quotes carry price
// and percent change scaled by 100.
func (c *Client) FetchQuote(ctx context.Context, code string) (*market.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate wait: %v", upstream.ErrUnavailable, err)
	}

	fullURL := fmt.Sprintf(
		"https://push2.eastmoney.com/api/qt/stock/get?secid=%s&fields=f43,f47,f58,f170",
		secID(code),
	)

	body, err := c.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode quote response: %v", upstream.ErrMalformed, err)
	}
	if parsed.Data == nil {
		return nil, fmt.Errorf("%w: quote response has no data", upstream.ErrMalformed)
	}

	return &market.Quote{
		Code:      code,
		Name:      parsed.Data.Name,
		Price:     parsed.Data.Price / 100,
		ChangePct: parsed.Data.ChangePct / 100,
		Volume:    parsed.Data.Volume,
		At:        time.Now().UTC(),
	}, nil
}

// FetchProfile implements upstream.ProfileSource by scraping the
// instrument page title for the listed name and trading status.
func (c *Client) FetchProfile(ctx context.Context, code string) (*market.Instrument, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate wait: %v", upstream.ErrUnavailable, err)
	}

	prefix := "sz"
	if strings.HasPrefix(secID(code), "1.") {
		prefix = "sh"
	}
	fullURL := fmt.Sprintf("https://quote.eastmoney.com/%s%s.html", prefix, code)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", upstream.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", upstream.ErrUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse profile page: %v", upstream.ErrMalformed, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	name := title
	if idx := strings.IndexAny(title, "(（"); idx > 0 {
		name = strings.TrimSpace(title[:idx])
	}
	if name == "" {
		return nil, fmt.Errorf("%w: profile title empty", upstream.ErrMalformed)
	}

	return &market.Instrument{
		Code:      code,
		Name:      name,
		Suspended: strings.Contains(title, "停牌"),
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
