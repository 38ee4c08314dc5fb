package marketdata

import (
	"math"
	"strings"

	"github.com/newthinker/analog/internal/core"
)

// TradingDaysPerYear is used to annualize daily statistics.
const TradingDaysPerYear = 252

// ChangePct returns the percent change from the first to the last close.
func ChangePct(series []core.PricePoint) float64 {
	if len(series) < 2 || series[0].Close <= 0 {
		return 0
	}
	return (series[len(series)-1].Close/series[0].Close - 1) * 100
}

// MaxDrawdownPct returns the largest peak-to-trough decline in percent.
// The result is zero or negative.
func MaxDrawdownPct(series []core.PricePoint) float64 {
	var peak, maxDD float64
	for _, p := range series {
		if p.Close > peak {
			peak = p.Close
		}
		if peak > 0 {
			if dd := (p.Close - peak) / peak * 100; dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// MaxGainPct returns the highest close relative to the first close in percent.
func MaxGainPct(series []core.PricePoint) float64 {
	if len(series) == 0 || series[0].Close <= 0 {
		return 0
	}
	best := series[0].Close
	for _, p := range series[1:] {
		if p.Close > best {
			best = p.Close
		}
	}
	return (best/series[0].Close - 1) * 100
}

// Measure summarizes a series as a realized move.
func Measure(series []core.PricePoint) core.RealizedMove {
	return core.RealizedMove{
		Series:         series,
		ChangePct:      ChangePct(series),
		MaxDrawdownPct: MaxDrawdownPct(series),
	}
}

// AnnualizedVolatility computes the annualized standard deviation of daily
// returns. The second value is false when fewer than three closes are given.
func AnnualizedVolatility(series []core.PricePoint) (float64, bool) {
	if len(series) < 3 {
		return 0, false
	}

	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1].Close > 0 {
			returns = append(returns, (series[i].Close-series[i-1].Close)/series[i-1].Close)
		}
	}
	if len(returns) < 2 {
		return 0, false
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear), true
}

var cryptoAliases = map[string]string{
	"BTC":       "BTC-USD",
	"BTCUSD":    "BTC-USD",
	"BITCOIN":   "BTC-USD",
	"ETH":       "ETH-USD",
	"ETHUSD":    "ETH-USD",
	"ETHEREUM":  "ETH-USD",
	"ADA":       "ADA-USD",
	"CARDANO":   "ADA-USD",
	"DOGE":      "DOGE-USD",
	"DOGECOIN":  "DOGE-USD",
	"XRP":       "XRP-USD",
	"RIPPLE":    "XRP-USD",
	"SOL":       "SOL-USD",
	"SOLANA":    "SOL-USD",
	"DOT":       "DOT-USD",
	"POLKADOT":  "DOT-USD",
	"LTC":       "LTC-USD",
	"LITECOIN":  "LTC-USD",
	"LINK":      "LINK-USD",
	"CHAINLINK": "LINK-USD",
}

// StandardizeTicker upper-cases a ticker and maps bare crypto symbols to USD pairs.
func StandardizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if alias, ok := cryptoAliases[t]; ok {
		return alias
	}
	return t
}
