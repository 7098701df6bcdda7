package analyzer

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/varayield/varayield/internal/types"
)

// ErrInsufficientData indicates that not enough data points were provided for a calculation.
var ErrInsufficientData = errors.New("insufficient data points")

const (
	HOURLY_PERIODS_PER_YEAR = 24 * 365
	DAILY_PERIODS_PER_YEAR  = 365
)

// CalculateVolatility returns the annualized standard deviation of log returns.
// periodsPerYear must match the sampling frequency (HOURLY_PERIODS_PER_YEAR for hourly data).
// The input is not modified; points are read in chronological order.
func CalculateVolatility(prices []types.PriceData, periodsPerYear float64) (float64, error) {
	if len(prices) < 2 {
		return 0, ErrInsufficientData
	}
	if periodsPerYear <= 0 || math.IsNaN(periodsPerYear) || math.IsInf(periodsPerYear, 0) {
		return 0, errors.New("periodsPerYear must be positive and finite")
	}

	values := sortedPrices(prices)
	logReturns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 || values[i] <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(values[i]/values[i-1]))
	}
	if len(logReturns) == 0 {
		return 0, ErrInsufficientData
	}

	_, std := meanStd(logReturns)
	return std * math.Sqrt(periodsPerYear), nil
}

// sortedPrices returns the price values of data in chronological order.
func sortedPrices(data []types.PriceData) []float64 {
	sorted := make([]types.PriceData, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	values := make([]float64, len(sorted))
	for i, p := range sorted {
		values[i] = p.Price
	}
	return values
}

func latestTimestamp(data []types.PriceData) time.Time {
	var latest time.Time
	for _, p := range data {
		if p.Timestamp.After(latest) {
			latest = p.Timestamp
		}
	}
	return latest
}

// meanStd returns the mean and population standard deviation of xs.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sumSq float64
	for _, x := range xs {
		sumSq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sumSq / float64(len(xs)))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
