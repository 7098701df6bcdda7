package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateReturns(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.1, -0.1}, CalculateReturns([]float64{100, 110, 99}), 1e-12)
	assert.Nil(t, CalculateReturns([]float64{1}))
	assert.Equal(t, []float64{1}, CalculateReturns([]float64{0, 5, 10}))
}

func TestCalculateSharpeRatio(t *testing.T) {
	sharpe, err := CalculateSharpeRatio([]float64{0.01, 0.03}, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2, sharpe, 1e-9)

	annual, err := CalculateSharpeRatio([]float64{0.01, 0.03}, 0, 4)
	require.NoError(t, err)
	assert.InDelta(t, 4, annual, 1e-9)

	flat, err := CalculateSharpeRatio([]float64{0.01, 0.01, 0.01}, 0, 365)
	require.NoError(t, err)
	assert.Zero(t, flat)

	_, err = CalculateSharpeRatio([]float64{0.01}, 0, 365)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCalculateSortinoRatio(t *testing.T) {
	sortino, err := CalculateSortinoRatio([]float64{0.02, -0.01, 0.04, -0.03}, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.005/math.Sqrt(0.00025), sortino, 1e-9)

	noDownside, err := CalculateSortinoRatio([]float64{0.01, 0.02}, 0, 1)
	require.NoError(t, err)
	assert.Zero(t, noDownside)
}

func TestCalculateMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.5, CalculateMaxDrawdown([]float64{100, 120, 90, 130, 65}), 1e-12)
	assert.Zero(t, CalculateMaxDrawdown([]float64{1, 2, 3}))
	assert.Zero(t, CalculateMaxDrawdown(nil))
}

func TestValueAtRiskAndCVaR(t *testing.T) {
	returns := make([]float64, 0, 40)
	returns = append(returns, -0.10, -0.05)
	for i := 0; i < 38; i++ {
		returns = append(returns, 0.01)
	}

	v, err := CalculateValueAtRisk(returns, VAR_CONFIDENCE)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, v, 1e-12)

	cvar, err := CalculateCVaR(returns, VAR_CONFIDENCE)
	require.NoError(t, err)
	assert.InDelta(t, 0.075, cvar, 1e-12)
	assert.GreaterOrEqual(t, cvar, v)

	gains, err := CalculateValueAtRisk([]float64{0.01, 0.02}, VAR_CONFIDENCE)
	require.NoError(t, err)
	assert.Zero(t, gains)

	_, err = CalculateValueAtRisk(nil, VAR_CONFIDENCE)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = CalculateCVaR(returns, 1)
	assert.Error(t, err)
}

func TestBuildRiskMetrics(t *testing.T) {
	prices := make([]float64, 48)
	for i := range prices {
		prices[i] = 100
		if i%2 == 1 {
			prices[i] = 104
		}
	}
	history := hourly(prices...)

	m, err := BuildRiskMetrics("JUP", history, 0.04)
	require.NoError(t, err)
	assert.Equal(t, "JUP", m.Coin)
	assert.Equal(t, 48, m.DataPoints)
	assert.Greater(t, m.AnnualizedVolatility, 0.0)
	assert.InDelta(t, 4.0/104, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, 4.0/104, m.ValueAtRisk95, 1e-12)
	assert.Equal(t, history[47].Timestamp, m.AsOf)

	_, err = BuildRiskMetrics("JUP", history[:MIN_RISK_DATAPOINTS-1], 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
