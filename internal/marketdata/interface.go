package marketdata

import (
	"context"
	"time"

	"github.com/newthinker/analog/internal/core"
)

// PriceSeriesProvider returns daily closes starting at start for the given
// number of trading days, oldest first.
type PriceSeriesProvider interface {
	GetPriceSeries(ctx context.Context, ticker string, start time.Time, tradingDays int) ([]core.PricePoint, error)
}

// VolatilityProvider returns the current annualized implied volatility as a fraction.
type VolatilityProvider interface {
	GetImpliedVolatility(ctx context.Context, ticker string) (float64, error)
}

// OptionChainProvider lists contracts expiring between from and to inclusive.
// An empty result means the chain was read and nothing expires in the window;
// an error means the chain could not be read.
type OptionChainProvider interface {
	GetChain(ctx context.Context, ticker string, from, to time.Time) ([]core.OptionContract, error)
}

// SpotProvider returns the latest traded price.
type SpotProvider interface {
	GetSpot(ctx context.Context, ticker string) (float64, error)
}

// Provider is the full market data surface a single vendor adapter offers.
type Provider interface {
	PriceSeriesProvider
	VolatilityProvider
	OptionChainProvider
	SpotProvider
	Name() string
}
