package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyeliu/stockradar/internal/fetch"
	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/pkg/logger"
)

type fakeUniverse struct {
	instruments []market.Instrument
	err         error
}

func (f fakeUniverse) ListTracked(context.Context) ([]market.Instrument, error) {
	return f.instruments, f.err
}

type fakeFetcher struct {
	mu       sync.Mutex
	requests []fetch.Request

	errs     map[string]error
	degraded map[string]bool
	delay    time.Duration

	active    int64
	maxActive int64
}

func (f *fakeFetcher) Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error) {
	cur := atomic.AddInt64(&f.active, 1)
	for {
		max := atomic.LoadInt64(&f.maxActive)
		if cur <= max || atomic.CompareAndSwapInt64(&f.maxActive, max, cur) {
			break
		}
	}
	defer atomic.AddInt64(&f.active, -1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return fetch.Result{}, ctx.Err()
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := f.errs[req.Code]; err != nil {
		return fetch.Result{}, err
	}
	return fetch.Result{
		Bars:     market.Series{{Code: req.Code, Period: req.Period, Close: 1}},
		Degraded: f.degraded[req.Code],
	}, nil
}

func instruments(codes ...string) []market.Instrument {
	out := make([]market.Instrument, len(codes))
	for i, c := range codes {
		out[i] = market.Instrument{Code: c, Name: "Test Co"}
	}
	return out
}

func TestSyncAll_OneTaskPerInstrumentPeriod(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := New(fakeUniverse{instruments: instruments("600519", "000001")}, fetcher, logger.NewNop())

	results, err := c.SyncAll(context.Background(), Config{
		Workers: 2,
		Periods: []market.Period{market.PeriodDaily, market.PeriodWeekly},
	})
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Len(t, fetcher.requests, 4)

	seen := make(map[string]bool)
	for _, r := range results {
		seen[r.Code+"|"+string(r.Period)] = true
		assert.NoError(t, r.Error)
		assert.Equal(t, 1, r.BarCount)
	}
	assert.Len(t, seen, 4, "every pair synced exactly once")
}

func TestSyncAll_DefaultsToDaily(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := New(fakeUniverse{instruments: instruments("600519")}, fetcher, logger.NewNop())

	results, err := c.SyncAll(context.Background(), Config{Workers: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, market.PeriodDaily, results[0].Period)
}

func TestSyncAll_WorkerCountIsBounded(t *testing.T) {
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	c := New(fakeUniverse{instruments: instruments("a", "b", "c", "d", "e", "f", "g", "h")}, fetcher, logger.NewNop())

	_, err := c.SyncAll(context.Background(), Config{Workers: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, fetcher.maxActive, int64(2), "concurrency stays at the configured pool size")
}

func TestSyncAll_PerTaskFailureIsIsolated(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"000001": errors.New("boom")}}
	c := New(fakeUniverse{instruments: instruments("600519", "000001", "000858")}, fetcher, logger.NewNop())

	results, err := c.SyncAll(context.Background(), Config{Workers: 2})
	require.NoError(t, err, "task failures never abort the cycle")
	require.Len(t, results, 3)

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			assert.Equal(t, "000001", r.Code)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestSyncAll_DegradedCounted(t *testing.T) {
	fetcher := &fakeFetcher{degraded: map[string]bool{"600519": true}}
	c := New(fakeUniverse{instruments: instruments("600519", "000001")}, fetcher, logger.NewNop())

	results, err := c.SyncAll(context.Background(), Config{Workers: 2})
	require.NoError(t, err)

	byCode := make(map[string]SyncResult)
	for _, r := range results {
		byCode[r.Code] = r
	}
	assert.True(t, byCode["600519"].Degraded)
	assert.False(t, byCode["000001"].Degraded)
}

func TestSyncAll_UniverseListingFailureAborts(t *testing.T) {
	c := New(fakeUniverse{err: errors.New("db down")}, &fakeFetcher{}, logger.NewNop())
	_, err := c.SyncAll(context.Background(), Config{})
	assert.Error(t, err)
}

func TestSyncAll_PerTaskTimeout(t *testing.T) {
	fetcher := &fakeFetcher{delay: time.Second}
	c := New(fakeUniverse{instruments: instruments("600519")}, fetcher, logger.NewNop())

	results, err := c.SyncAll(context.Background(), Config{
		Workers:      1,
		FetchTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, context.DeadlineExceeded, "a stuck upstream cannot hold the cycle hostage")
}

func TestSyncAll_EmptyUniverse(t *testing.T) {
	c := New(fakeUniverse{}, &fakeFetcher{}, logger.NewNop())
	results, err := c.SyncAll(context.Background(), Config{Workers: 2})
	require.NoError(t, err)
	assert.Empty(t, results)
}
