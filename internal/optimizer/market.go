package optimizer

import (
	"context"
	"sort"

	"github.com/varayield/varayield/internal/analyzer"
	"github.com/varayield/varayield/internal/types"
)

// PriceHistorySource provides hourly price history by CoinGecko ID or symbol.
type PriceHistorySource interface {
	FetchHourlyPrices(ctx context.Context, coin string, days int) ([]types.PriceData, error)
}

// AttachVolatility sets TokenA/TokenB volatility on each pool from hourly history.
// Stablecoins are treated as zero volatility without a fetch. Pools with a token whose
// history cannot be fetched are dropped, so an unknown risk never scores as no risk.
// Each coin is fetched at most once.
func AttachVolatility(ctx context.Context, src PriceHistorySource, pools []types.Pool, days int) []types.Pool {
	coins := make(map[string]struct{})
	for _, p := range pools {
		for _, t := range []types.Token{p.TokenA, p.TokenB} {
			if !types.IsStablecoin(t.Symbol) && t.CoinGeckoID != "" {
				coins[t.CoinGeckoID] = struct{}{}
			}
		}
	}
	ids := make([]string, 0, len(coins))
	for id := range coins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	volatility := make(map[string]float64, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		history, err := src.FetchHourlyPrices(ctx, id, days)
		if err != nil {
			optimizerLogger.Warn().Err(err).Str("coin", id).Msg("No price history, pools with this token are dropped")
			continue
		}
		vol, err := analyzer.CalculateVolatility(history, analyzer.HOURLY_PERIODS_PER_YEAR)
		if err != nil {
			optimizerLogger.Warn().Err(err).Str("coin", id).Msg("Volatility unavailable")
			continue
		}
		volatility[id] = vol
	}

	lookup := func(t types.Token) (float64, bool) {
		if types.IsStablecoin(t.Symbol) {
			return 0, true
		}
		v, ok := volatility[t.CoinGeckoID]
		return v, ok
	}

	out := make([]types.Pool, 0, len(pools))
	for _, p := range pools {
		va, okA := lookup(p.TokenA)
		vb, okB := lookup(p.TokenB)
		if !okA || !okB {
			continue
		}
		p.TokenA.Volatility = va
		p.TokenB.Volatility = vb
		out = append(out, p)
	}
	return out
}
