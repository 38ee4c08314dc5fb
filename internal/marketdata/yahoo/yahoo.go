// Package yahoo implements marketdata.Provider on Yahoo Finance's public
// chart and options endpoints.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
)

const (
	defaultChartURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultOptionsURL = "https://query2.finance.yahoo.com/v7/finance/options"
)

// validSymbol matches tickers like SPY, BRK.B, BTC-USD and ^VIX.
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9]{1,10}([.\-=][A-Za-z0-9]{1,4})?$`)

func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Config holds endpoint and throttling settings.
type Config struct {
	ChartURL          string        `mapstructure:"chart_url"`
	OptionsURL        string        `mapstructure:"options_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	UserAgent         string        `mapstructure:"user_agent"`
	// HistoricalVolFallback reports 30-day realized volatility when no
	// option chain carries an implied volatility.
	HistoricalVolFallback bool `mapstructure:"historical_vol_fallback"`
}

// Yahoo implements marketdata.Provider.
type Yahoo struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

var _ marketdata.Provider = (*Yahoo)(nil)

// New creates a Yahoo provider.
func New(cfg Config, logger *zap.Logger) *Yahoo {
	if cfg.ChartURL == "" {
		cfg.ChartURL = defaultChartURL
	}
	if cfg.OptionsURL == "" {
		cfg.OptionsURL = defaultOptionsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; analog/1.0)"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Yahoo{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:     cfg,
		logger:  logger,
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// GetPriceSeries fetches daily closes from start onwards.
func (y *Yahoo) GetPriceSeries(ctx context.Context, ticker string, start time.Time, tradingDays int) ([]core.PricePoint, error) {
	if tradingDays < 1 {
		return nil, fmt.Errorf("trading days must be positive, got %d", tradingDays)
	}
	from := core.Day(start)
	// A few spare days cover data gaps the calendar does not know about.
	to := core.AddTradingDays(from, tradingDays+3).AddDate(0, 0, 1)

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(to.Unix()))

	res, err := y.chart(ctx, ticker, q)
	if err != nil {
		return nil, err
	}
	if len(res.Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no quotes for %s", ticker))
	}

	closes := res.Indicators.Quote[0].Close
	points := make([]core.PricePoint, 0, tradingDays)
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		d := core.Day(time.Unix(ts, 0))
		if d.Before(from) {
			continue
		}
		points = append(points, core.PricePoint{Date: d, Close: *closes[i]})
		if len(points) == tradingDays {
			break
		}
	}
	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no closes for %s from %s", ticker, from.Format("2006-01-02")))
	}
	return points, nil
}

// GetSpot returns the regular market price.
func (y *Yahoo) GetSpot(ctx context.Context, ticker string) (float64, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("range", "1d")
	res, err := y.chart(ctx, ticker, q)
	if err != nil {
		return 0, err
	}
	if res.Meta.RegularMarketPrice <= 0 {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no market price for %s", ticker))
	}
	return res.Meta.RegularMarketPrice, nil
}

// GetChain lists calls and puts for every expiry in [from, to]. A ticker
// with listed expiries but none in the window yields an empty chain, not an
// error.
func (y *Yahoo) GetChain(ctx context.Context, ticker string, from, to time.Time) ([]core.OptionContract, error) {
	first, err := y.options(ctx, ticker, 0)
	if err != nil {
		return nil, err
	}
	if len(first.ExpirationDates) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no listed options for %s", ticker))
	}

	lo, hi := core.Day(from), core.Day(to)
	out := []core.OptionContract{}
	for _, exp := range first.ExpirationDates {
		d := core.Day(time.Unix(exp, 0))
		if d.Before(lo) || d.After(hi) {
			continue
		}
		res := first
		if len(first.Options) == 0 || first.Options[0].ExpirationDate != exp {
			if res, err = y.options(ctx, ticker, exp); err != nil {
				return nil, err
			}
		}
		out = append(out, contracts(ticker, res)...)
	}
	if len(out) == 0 {
		y.logger.Debug("no expiries in window", zap.String("ticker", ticker),
			zap.Time("from", lo), zap.Time("to", hi))
		return out, nil
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Expiry.Equal(out[j].Expiry) {
			return out[i].Expiry.Before(out[j].Expiry)
		}
		return out[i].Strike < out[j].Strike
	})
	return out, nil
}

// GetImpliedVolatility averages the call and put implied volatility at the
// strike nearest spot on the front expiry.
func (y *Yahoo) GetImpliedVolatility(ctx context.Context, ticker string) (float64, error) {
	res, err := y.options(ctx, ticker, 0)
	if err == nil {
		if iv, ok := atmIV(res); ok {
			return iv, nil
		}
		err = core.WrapError(core.ErrNoData, fmt.Errorf("no implied volatility quoted for %s", ticker))
	}
	if !y.cfg.HistoricalVolFallback {
		return 0, err
	}

	y.logger.Debug("implied volatility unavailable, using realized", zap.String("ticker", ticker), zap.Error(err))
	series, serr := y.GetPriceSeries(ctx, ticker, core.AddTradingDays(time.Now(), -31), 31)
	if serr != nil {
		return 0, err
	}
	vol, ok := marketdata.AnnualizedVolatility(series)
	if !ok {
		return 0, err
	}
	return vol, nil
}

func (y *Yahoo) chart(ctx context.Context, ticker string, q url.Values) (*chartResult, error) {
	if err := validateSymbol(ticker); err != nil {
		return nil, err
	}
	var resp chartResponse
	if err := y.get(ctx, y.cfg.ChartURL+"/"+url.PathEscape(ticker)+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("yahoo error: %s", resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", ticker))
	}
	return &resp.Chart.Result[0], nil
}

func (y *Yahoo) options(ctx context.Context, ticker string, expiry int64) (*optionResult, error) {
	if err := validateSymbol(ticker); err != nil {
		return nil, err
	}
	u := y.cfg.OptionsURL + "/" + url.PathEscape(ticker)
	if expiry > 0 {
		u += "?date=" + fmt.Sprint(expiry)
	}
	var resp optionResponse
	if err := y.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.OptionChain.Error != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("yahoo error: %s", resp.OptionChain.Error.Description))
	}
	if len(resp.OptionChain.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no option chain for %s", ticker))
	}
	return &resp.OptionChain.Result[0], nil
}

func (y *Yahoo) get(ctx context.Context, u string, out any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", y.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return core.WrapError(core.ErrNoData, fmt.Errorf("%s: not found", req.URL.Path))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func contracts(ticker string, res *optionResult) []core.OptionContract {
	var out []core.OptionContract
	for _, set := range res.Options {
		for _, q := range set.Calls {
			out = append(out, q.contract(ticker, core.OptionCall))
		}
		for _, q := range set.Puts {
			out = append(out, q.contract(ticker, core.OptionPut))
		}
	}
	return out
}

func atmIV(res *optionResult) (float64, bool) {
	if len(res.Options) == 0 {
		return 0, false
	}
	spot := res.Quote.RegularMarketPrice
	pick := func(qs []optionQuote) (float64, bool) {
		best, bestDist, found := 0.0, math.Inf(1), false
		for _, q := range qs {
			if q.ImpliedVolatility <= 0 {
				continue
			}
			if d := math.Abs(q.Strike - spot); d < bestDist {
				best, bestDist, found = q.ImpliedVolatility, d, true
			}
		}
		return best, found
	}
	c, okC := pick(res.Options[0].Calls)
	p, okP := pick(res.Options[0].Puts)
	switch {
	case okC && okP:
		return (c + p) / 2, true
	case okC:
		return c, true
	case okP:
		return p, true
	}
	return 0, false
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type optionResponse struct {
	OptionChain struct {
		Result []optionResult `json:"result"`
		Error  *apiError      `json:"error"`
	} `json:"optionChain"`
}

type optionResult struct {
	UnderlyingSymbol string  `json:"underlyingSymbol"`
	ExpirationDates  []int64 `json:"expirationDates"`
	Quote            struct {
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"quote"`
	Options []struct {
		ExpirationDate int64         `json:"expirationDate"`
		Calls          []optionQuote `json:"calls"`
		Puts           []optionQuote `json:"puts"`
	} `json:"options"`
}

type optionQuote struct {
	Strike            float64 `json:"strike"`
	Expiration        int64   `json:"expiration"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
}

func (q optionQuote) contract(ticker string, ot core.OptionType) core.OptionContract {
	return core.OptionContract{
		Ticker:            strings.ToUpper(ticker),
		Expiry:            core.Day(time.Unix(q.Expiration, 0)),
		Strike:            q.Strike,
		Type:              ot,
		ImpliedVolatility: q.ImpliedVolatility,
	}
}
