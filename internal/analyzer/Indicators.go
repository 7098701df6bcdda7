/*

This file contains the technical indicators shown on the market dashboard.

All functions take prices oldest first and never modify their input.

*/

package analyzer

import (
	"fmt"
	"math"

	"github.com/varayield/varayield/internal/types"
)

const (
	RSI_PERIOD          = 14
	RSI_OVERBOUGHT      = 70.0
	RSI_OVERSOLD        = 30.0
	MACD_FAST_PERIOD    = 12
	MACD_SLOW_PERIOD    = 26
	MACD_SIGNAL_PERIOD  = 9
	BOLLINGER_PERIOD    = 20
	BOLLINGER_STDDEV    = 2.0
	MIN_INDICATOR_INPUT = MACD_SLOW_PERIOD + MACD_SIGNAL_PERIOD - 1
)

// CalculateEMA returns the exponential moving average series of values.
// The first output is the simple average of the first period values, so the result has
// len(values)-period+1 entries.
func CalculateEMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("EMA period must be positive, got %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("%w: EMA(%d) needs %d values, got %d", ErrInsufficientData, period, period, len(values))
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)

	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	prev := seed / float64(period)
	out = append(out, prev)

	for _, v := range values[period:] {
		prev = (v-prev)*k + prev
		out = append(out, prev)
	}
	return out, nil
}

// CalculateRSI returns the relative strength index of the last price using Wilder smoothing.
func CalculateRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("RSI period must be positive, got %d", period)
	}
	if len(prices) <= period {
		return 0, fmt.Errorf("%w: RSI(%d) needs %d prices, got %d", ErrInsufficientData, period, period+1, len(prices))
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		g, l := 0.0, 0.0
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50, nil
	case avgLoss == 0:
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// CalculateMACD returns the latest MACD line, signal line and histogram.
func CalculateMACD(prices []float64, fast, slow, signal int) (types.MACD, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return types.MACD{}, fmt.Errorf("invalid MACD periods %d/%d/%d", fast, slow, signal)
	}
	if need := slow + signal - 1; len(prices) < need {
		return types.MACD{}, fmt.Errorf("%w: MACD needs %d prices, got %d", ErrInsufficientData, need, len(prices))
	}

	fastEMA, err := CalculateEMA(prices, fast)
	if err != nil {
		return types.MACD{}, err
	}
	slowEMA, err := CalculateEMA(prices, slow)
	if err != nil {
		return types.MACD{}, err
	}

	// Align the fast series to the slow one; both end at the last price.
	offset := len(fastEMA) - len(slowEMA)
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalEMA, err := CalculateEMA(line, signal)
	if err != nil {
		return types.MACD{}, err
	}

	last := line[len(line)-1]
	sig := signalEMA[len(signalEMA)-1]
	return types.MACD{Line: last, Signal: sig, Histogram: last - sig}, nil
}

// CalculateBollingerBands returns the bands over the last period prices.
func CalculateBollingerBands(prices []float64, period int, stdDevs float64) (types.BollingerBands, error) {
	if period <= 1 {
		return types.BollingerBands{}, fmt.Errorf("bollinger period must be greater than 1, got %d", period)
	}
	if len(prices) < period {
		return types.BollingerBands{}, fmt.Errorf("%w: Bollinger(%d) needs %d prices, got %d", ErrInsufficientData, period, period, len(prices))
	}

	window := prices[len(prices)-period:]
	mean, std := meanStd(window)
	bands := types.BollingerBands{
		Upper:  mean + stdDevs*std,
		Middle: mean,
		Lower:  mean - stdDevs*std,
	}

	width := bands.Upper - bands.Lower
	if width == 0 {
		bands.PercentB = 0.5
	} else {
		bands.PercentB = (window[len(window)-1] - bands.Lower) / width
	}
	if mean != 0 {
		bands.Bandwidth = width / mean
	}
	return bands, nil
}

// ClassifySignal reduces an RSI reading and MACD histogram to a single signal.
// RSI extremes take precedence over MACD direction.
func ClassifySignal(rsi float64, macd types.MACD) types.Signal {
	switch {
	case rsi >= RSI_OVERBOUGHT:
		return types.SignalOverbought
	case rsi <= RSI_OVERSOLD:
		return types.SignalOversold
	case macd.Histogram > 0:
		return types.SignalBullish
	case macd.Histogram < 0:
		return types.SignalBearish
	default:
		return types.SignalNeutral
	}
}

// BuildIndicatorSnapshot computes every indicator over the price history of coin.
func BuildIndicatorSnapshot(coin string, history []types.PriceData) (types.IndicatorSnapshot, error) {
	if len(history) < MIN_INDICATOR_INPUT {
		return types.IndicatorSnapshot{}, fmt.Errorf("%w: indicators need %d prices, got %d", ErrInsufficientData, MIN_INDICATOR_INPUT, len(history))
	}
	prices := sortedPrices(history)
	for i, p := range prices {
		if !isFinite(p) || p <= 0 {
			return types.IndicatorSnapshot{}, fmt.Errorf("price %d of %s is invalid: %v", i, coin, p)
		}
	}

	rsi, err := CalculateRSI(prices, RSI_PERIOD)
	if err != nil {
		return types.IndicatorSnapshot{}, err
	}
	macd, err := CalculateMACD(prices, MACD_FAST_PERIOD, MACD_SLOW_PERIOD, MACD_SIGNAL_PERIOD)
	if err != nil {
		return types.IndicatorSnapshot{}, err
	}
	bands, err := CalculateBollingerBands(prices, BOLLINGER_PERIOD, BOLLINGER_STDDEV)
	if err != nil {
		return types.IndicatorSnapshot{}, err
	}

	snapshot := types.IndicatorSnapshot{
		Coin:       coin,
		Price:      prices[len(prices)-1],
		RSI:        round(rsi, 4),
		MACD:       macd,
		Bollinger:  bands,
		Signal:     ClassifySignal(rsi, macd),
		DataPoints: len(prices),
		AsOf:       latestTimestamp(history),
	}

	analysisLogger.Debug().
		Str("coin", coin).
		Float64("rsi", snapshot.RSI).
		Float64("macdHistogram", macd.Histogram).
		Float64("percentB", bands.PercentB).
		Str("signal", string(snapshot.Signal)).
		Msg("Indicator snapshot built")

	return snapshot, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
