package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wyeliu/stockradar/internal/market"
)

type namedSource struct{ name string }

func (s namedSource) Name() string { return s.name }

func (s namedSource) FetchBars(context.Context, string, market.Period, time.Time, time.Time) (market.Series, error) {
	return nil, nil
}

func (s namedSource) FetchQuote(context.Context, string) (*market.Quote, error) {
	return nil, nil
}

func TestRegistry_ForInstrument(t *testing.T) {
	r := NewRegistry(namedSource{"mainland"}, namedSource{"crossborder"})

	tests := []struct {
		code string
		want string
	}{
		{"600519", "mainland"},
		{"000001", "mainland"},
		{"hk00700", "crossborder"},
		{"us.AAPL", "crossborder"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, r.ForInstrument(tt.code).Name(), "code=%s", tt.code)
	}
}
