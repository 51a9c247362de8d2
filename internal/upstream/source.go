package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/wyeliu/stockradar/internal/market"
)

// ErrUnavailable marks network failures, timeouts and non-2xx upstream
// responses. Retryable.
var ErrUnavailable = errors.New("upstream unavailable")

// ErrMalformed marks an upstream payload that does not match the
// expected schema. Retryable; the payload is possibly truncated.
var ErrMalformed = errors.New("upstream data malformed")

// Source is the capability interface every market data backend
// implements. Given (instrument, period, range) it returns bars; it
// may legitimately return fewer bars than the range covers, or none.
type Source interface {
	// Name identifies the backend for logging and rate limiting
	Name() string

	// FetchBars returns bars for [from, to], ascending by date. An
	// empty result is success, not failure.
	FetchBars(ctx context.Context, code string, period market.Period, from, to time.Time) (market.Series, error)

	// FetchQuote returns an ephemeral real-time snapshot
	FetchQuote(ctx context.Context, code string) (*market.Quote, error)
}

// ProfileSource is implemented by backends that can resolve an
// instrument's listed name and trading status.
type ProfileSource interface {
	FetchProfile(ctx context.Context, code string) (*market.Instrument, error)
}

// Registry routes instruments to backends by namespace. The lookup is
// static: the code shape decides the backend, nothing is inspected at
// runtime beyond that.
type Registry struct {
	mainland    Source
	crossBorder Source
}

// NewRegistry creates a registry with one backend per namespace
func NewRegistry(mainland, crossBorder Source) *Registry {
	return &Registry{
		mainland:    mainland,
		crossBorder: crossBorder,
	}
}

// ForInstrument returns the backend serving the given code
func (r *Registry) ForInstrument(code string) Source {
	if market.NamespaceOf(code) == market.NamespaceCrossBorder {
		return r.crossBorder
	}
	return r.mainland
}
