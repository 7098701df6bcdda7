/*

This file contains the portfolio risk metrics computed from a price history.

Returns are simple period returns. Ratios are annualized with the periods-per-year of the
sampling frequency; VaR and CVaR are historical and expressed as a positive loss fraction
per period.

*/

package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/types"
)

var analysisLogger = logger.GetForComponent("market_analysis")

const (
	VAR_CONFIDENCE      = 0.95
	MIN_RISK_DATAPOINTS = 30
)

// CalculateReturns returns the simple returns between consecutive prices.
// Pairs with a non-positive base price are skipped.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// CalculateSharpeRatio returns the annualized excess return per unit of volatility.
// riskFreeRate is annual. A zero-volatility series yields 0.
func CalculateSharpeRatio(returns []float64, riskFreeRate, periodsPerYear float64) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: sharpe ratio needs 2 returns, got %d", ErrInsufficientData, len(returns))
	}
	if periodsPerYear <= 0 {
		return 0, fmt.Errorf("periodsPerYear must be positive, got %v", periodsPerYear)
	}

	mean, std := meanStd(returns)
	if std == 0 {
		return 0, nil
	}
	excess := mean - riskFreeRate/periodsPerYear
	return excess / std * math.Sqrt(periodsPerYear), nil
}

// CalculateSortinoRatio is CalculateSharpeRatio with only downside deviation in the denominator.
// A series with no returns below the per-period risk-free rate yields 0.
func CalculateSortinoRatio(returns []float64, riskFreeRate, periodsPerYear float64) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: sortino ratio needs 2 returns, got %d", ErrInsufficientData, len(returns))
	}
	if periodsPerYear <= 0 {
		return 0, fmt.Errorf("periodsPerYear must be positive, got %v", periodsPerYear)
	}

	target := riskFreeRate / periodsPerYear
	mean, _ := meanStd(returns)

	var downsideSq float64
	for _, r := range returns {
		if r < target {
			downsideSq += (r - target) * (r - target)
		}
	}
	downside := math.Sqrt(downsideSq / float64(len(returns)))
	if downside == 0 {
		return 0, nil
	}
	return (mean - target) / downside * math.Sqrt(periodsPerYear), nil
}

// CalculateMaxDrawdown returns the largest peak-to-trough decline as a fraction of the peak.
func CalculateMaxDrawdown(prices []float64) float64 {
	var peak, maxDD float64
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := (peak - p) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// CalculateValueAtRisk returns the historical VaR at confidence as a positive loss fraction.
// A return distribution whose tail is still a gain yields 0.
func CalculateValueAtRisk(returns []float64, confidence float64) (float64, error) {
	tail, err := lowerTail(returns, confidence)
	if err != nil {
		return 0, err
	}
	return math.Max(0, -tail[len(tail)-1]), nil
}

// CalculateCVaR returns the mean loss of the returns at or beyond the VaR quantile.
func CalculateCVaR(returns []float64, confidence float64) (float64, error) {
	tail, err := lowerTail(returns, confidence)
	if err != nil {
		return 0, err
	}
	mean, _ := meanStd(tail)
	return math.Max(0, -mean), nil
}

// lowerTail returns the worst (1-confidence) share of returns, ascending, at least one element.
func lowerTail(returns []float64, confidence float64) ([]float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("confidence must be in (0, 1), got %v", confidence)
	}
	if len(returns) == 0 {
		return nil, fmt.Errorf("%w: no returns", ErrInsufficientData)
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	n := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if n < 1 {
		n = 1
	}
	return sorted[:n], nil
}

// BuildRiskMetrics computes every risk metric for an hourly price history.
func BuildRiskMetrics(coin string, history []types.PriceData, riskFreeRate float64) (types.RiskMetrics, error) {
	if len(history) < MIN_RISK_DATAPOINTS {
		return types.RiskMetrics{}, fmt.Errorf("%w: risk metrics need %d prices, got %d", ErrInsufficientData, MIN_RISK_DATAPOINTS, len(history))
	}

	prices := sortedPrices(history)
	returns := CalculateReturns(prices)

	volatility, err := CalculateVolatility(history, HOURLY_PERIODS_PER_YEAR)
	if err != nil {
		return types.RiskMetrics{}, err
	}
	sharpe, err := CalculateSharpeRatio(returns, riskFreeRate, HOURLY_PERIODS_PER_YEAR)
	if err != nil {
		return types.RiskMetrics{}, err
	}
	sortino, err := CalculateSortinoRatio(returns, riskFreeRate, HOURLY_PERIODS_PER_YEAR)
	if err != nil {
		return types.RiskMetrics{}, err
	}
	valueAtRisk, err := CalculateValueAtRisk(returns, VAR_CONFIDENCE)
	if err != nil {
		return types.RiskMetrics{}, err
	}
	cvar, err := CalculateCVaR(returns, VAR_CONFIDENCE)
	if err != nil {
		return types.RiskMetrics{}, err
	}

	mean, _ := meanStd(returns)
	metrics := types.RiskMetrics{
		Coin:                 coin,
		AnnualizedVolatility: volatility,
		AnnualizedReturn:     mean * HOURLY_PERIODS_PER_YEAR,
		SharpeRatio:          sharpe,
		SortinoRatio:         sortino,
		MaxDrawdown:          CalculateMaxDrawdown(prices),
		ValueAtRisk95:        valueAtRisk,
		ConditionalVaR95:     cvar,
		DataPoints:           len(prices),
		AsOf:                 latestTimestamp(history),
	}

	for name, v := range map[string]float64{
		"volatility": metrics.AnnualizedVolatility,
		"return":     metrics.AnnualizedReturn,
		"sharpe":     metrics.SharpeRatio,
		"sortino":    metrics.SortinoRatio,
	} {
		if !isFinite(v) {
			return types.RiskMetrics{}, fmt.Errorf("%s for %s is not finite", name, coin)
		}
	}

	analysisLogger.Debug().
		Str("coin", coin).
		Float64("volatility", metrics.AnnualizedVolatility).
		Float64("sharpe", metrics.SharpeRatio).
		Float64("maxDrawdown", metrics.MaxDrawdown).
		Float64("var95", metrics.ValueAtRisk95).
		Msg("Risk metrics built")

	return metrics, nil
}
