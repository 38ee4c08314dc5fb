// Package mock provides an in-memory market data provider for tests and
// offline runs.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
)

// Operation names used for failure injection and call counting.
const (
	OpSeries     = "series"
	OpSpot       = "spot"
	OpVolatility = "volatility"
	OpChain      = "chain"
)

// Provider serves canned market data. The zero value is usable and empty.
type Provider struct {
	mu      sync.Mutex
	series  map[string][]core.PricePoint
	spots   map[string]float64
	vols    map[string]float64
	chains  map[string][]core.OptionContract
	errs    map[string]error
	failN   map[string]int
	calls   map[string]int
	latency time.Duration
}

// New creates an empty provider.
func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string {
	return "mock"
}

func (p *Provider) init() {
	if p.series == nil {
		p.series = make(map[string][]core.PricePoint)
		p.spots = make(map[string]float64)
		p.vols = make(map[string]float64)
		p.chains = make(map[string][]core.OptionContract)
		p.errs = make(map[string]error)
		p.failN = make(map[string]int)
		p.calls = make(map[string]int)
	}
}

// SetSeries stores daily closes for a ticker. Points are sorted by date.
func (p *Provider) SetSeries(ticker string, points []core.PricePoint) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	sorted := append([]core.PricePoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	p.series[ticker] = sorted
	return p
}

// SetSpot stores the latest price for a ticker.
func (p *Provider) SetSpot(ticker string, price float64) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	p.spots[ticker] = price
	return p
}

// SetVolatility stores the implied volatility for a ticker.
func (p *Provider) SetVolatility(ticker string, iv float64) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	p.vols[ticker] = iv
	return p
}

// SetChain stores the option chain for a ticker.
func (p *Provider) SetChain(ticker string, contracts []core.OptionContract) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	p.chains[ticker] = contracts
	return p
}

// Fail makes every call to op return err.
func (p *Provider) Fail(op string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	p.errs[op] = err
	return p
}

// FailTimes makes the next n calls to op fail before succeeding.
func (p *Provider) FailTimes(op string, n int) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	p.failN[op] = n
	return p
}

// WithLatency delays every call, honouring context cancellation.
func (p *Provider) WithLatency(d time.Duration) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
	return p
}

// Calls returns how many times op was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *Provider) enter(ctx context.Context, op string) error {
	p.mu.Lock()
	p.init()
	p.calls[op]++
	latency := p.latency
	err := p.errs[op]
	if err == nil && p.failN[op] > 0 {
		p.failN[op]--
		err = fmt.Errorf("mock %s: transient failure", op)
	}
	p.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return err
}

// GetPriceSeries returns up to tradingDays closes on or after start.
func (p *Provider) GetPriceSeries(ctx context.Context, ticker string, start time.Time, tradingDays int) ([]core.PricePoint, error) {
	if err := p.enter(ctx, OpSeries); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	from := core.Day(start)
	var out []core.PricePoint
	for _, pt := range p.series[ticker] {
		if pt.Date.Before(from) {
			continue
		}
		if tradingDays > 0 && len(out) >= tradingDays {
			break
		}
		out = append(out, pt)
	}
	if len(out) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no series for %s from %s", ticker, from.Format("2006-01-02")))
	}
	return out, nil
}

// GetSpot returns the stored spot price.
func (p *Provider) GetSpot(ctx context.Context, ticker string) (float64, error) {
	if err := p.enter(ctx, OpSpot); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.spots[ticker]
	if !ok {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no spot for %s", ticker))
	}
	return v, nil
}

// GetImpliedVolatility returns the stored implied volatility.
func (p *Provider) GetImpliedVolatility(ctx context.Context, ticker string) (float64, error) {
	if err := p.enter(ctx, OpVolatility); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.vols[ticker]
	if !ok {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no volatility for %s", ticker))
	}
	return v, nil
}

// GetChain returns stored contracts expiring within [from, to].
func (p *Provider) GetChain(ctx context.Context, ticker string, from, to time.Time) ([]core.OptionContract, error) {
	if err := p.enter(ctx, OpChain); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	lo, hi := core.Day(from), core.Day(to)
	var out []core.OptionContract
	for _, c := range p.chains[ticker] {
		e := core.Day(c.Expiry)
		if e.Before(lo) || e.After(hi) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

var _ marketdata.Provider = (*Provider)(nil)
