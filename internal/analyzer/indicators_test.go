package analyzer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varayield/varayield/internal/types"
)

func hourly(prices ...float64) []types.PriceData {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.PriceData, len(prices))
	for i, p := range prices {
		out[i] = types.PriceData{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestCalculateVolatility(t *testing.T) {
	vol, err := CalculateVolatility(hourly(100, 110, 100, 110, 100), HOURLY_PERIODS_PER_YEAR)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.1)*math.Sqrt(HOURLY_PERIODS_PER_YEAR), vol, 1e-9)

	flat, err := CalculateVolatility(hourly(5, 5, 5), HOURLY_PERIODS_PER_YEAR)
	require.NoError(t, err)
	assert.Zero(t, flat)

	_, err = CalculateVolatility(hourly(1), HOURLY_PERIODS_PER_YEAR)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = CalculateVolatility(hourly(1, 2), 0)
	assert.Error(t, err)
}

func TestCalculateVolatilityDoesNotReorderInput(t *testing.T) {
	data := hourly(100, 110, 120)
	data[0], data[2] = data[2], data[0]

	_, err := CalculateVolatility(data, DAILY_PERIODS_PER_YEAR)
	require.NoError(t, err)
	assert.Equal(t, 120.0, data[0].Price)
}

func TestCalculateEMA(t *testing.T) {
	ema, err := CalculateEMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, ema, 1e-12)

	_, err = CalculateEMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = CalculateEMA([]float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestCalculateRSI(t *testing.T) {
	rsi, err := CalculateRSI([]float64{1, 2, 1}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 50, rsi, 1e-9)

	rsi, err = CalculateRSI([]float64{1, 2, 1, 2}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 75, rsi, 1e-9)

	rsi, err = CalculateRSI(linear(30, 10, 1), RSI_PERIOD)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)

	rsi, err = CalculateRSI(linear(30, 10, 0), RSI_PERIOD)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rsi)

	rsi, err = CalculateRSI(linear(30, 100, -1), RSI_PERIOD)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rsi)

	_, err = CalculateRSI(linear(RSI_PERIOD, 1, 1), RSI_PERIOD)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCalculateMACD(t *testing.T) {
	// For a linear series each EMA lags by (period-1)/2 steps, so the line is (26-12)/2 * slope.
	macd, err := CalculateMACD(linear(40, 100, 2), MACD_FAST_PERIOD, MACD_SLOW_PERIOD, MACD_SIGNAL_PERIOD)
	require.NoError(t, err)
	assert.InDelta(t, 14, macd.Line, 1e-9)
	assert.InDelta(t, 14, macd.Signal, 1e-9)
	assert.InDelta(t, 0, macd.Histogram, 1e-9)

	flat, err := CalculateMACD(linear(40, 100, 0), 12, 26, 9)
	require.NoError(t, err)
	assert.Equal(t, types.MACD{}, flat)

	_, err = CalculateMACD(linear(33, 1, 1), 12, 26, 9)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = CalculateMACD(linear(40, 1, 1), 26, 12, 9)
	assert.Error(t, err)
}

func TestCalculateMACDTurnsPositiveOnBreakout(t *testing.T) {
	prices := append(linear(40, 100, 0), 110, 120, 130)
	macd, err := CalculateMACD(prices, 12, 26, 9)
	require.NoError(t, err)
	assert.Greater(t, macd.Line, 0.0)
	assert.Greater(t, macd.Histogram, 0.0)
}

func TestCalculateBollingerBands(t *testing.T) {
	bands, err := CalculateBollingerBands([]float64{99, 1, 2, 3, 4, 5}, 5, 2)
	require.NoError(t, err)

	width := 4 * math.Sqrt2
	assert.InDelta(t, 3, bands.Middle, 1e-12)
	assert.InDelta(t, 3+2*math.Sqrt2, bands.Upper, 1e-12)
	assert.InDelta(t, 3-2*math.Sqrt2, bands.Lower, 1e-12)
	assert.InDelta(t, (5-bands.Lower)/width, bands.PercentB, 1e-12)
	assert.InDelta(t, width/3, bands.Bandwidth, 1e-12)

	flat, err := CalculateBollingerBands(linear(20, 7, 0), BOLLINGER_PERIOD, BOLLINGER_STDDEV)
	require.NoError(t, err)
	assert.Equal(t, 0.5, flat.PercentB)
	assert.Zero(t, flat.Bandwidth)

	_, err = CalculateBollingerBands(linear(3, 1, 1), 5, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestClassifySignal(t *testing.T) {
	tests := []struct {
		rsi       float64
		histogram float64
		want      types.Signal
	}{
		{70, -1, types.SignalOverbought},
		{85, 0, types.SignalOverbought},
		{30, 1, types.SignalOversold},
		{50, 0.2, types.SignalBullish},
		{50, -0.2, types.SignalBearish},
		{50, 0, types.SignalNeutral},
	}
	for _, tt := range tests {
		got := ClassifySignal(tt.rsi, types.MACD{Histogram: tt.histogram})
		assert.Equal(t, tt.want, got, "rsi=%v histogram=%v", tt.rsi, tt.histogram)
	}
}

func TestBuildIndicatorSnapshot(t *testing.T) {
	history := hourly(linear(60, 100, 1)...)

	snap, err := BuildIndicatorSnapshot("SOL", history)
	require.NoError(t, err)
	assert.Equal(t, "SOL", snap.Coin)
	assert.Equal(t, 159.0, snap.Price)
	assert.Equal(t, 100.0, snap.RSI)
	assert.Equal(t, types.SignalOverbought, snap.Signal)
	assert.Equal(t, 60, snap.DataPoints)
	assert.Equal(t, history[59].Timestamp, snap.AsOf)

	_, err = BuildIndicatorSnapshot("SOL", history[:MIN_INDICATOR_INPUT-1])
	assert.ErrorIs(t, err, ErrInsufficientData)

	history[10].Price = math.NaN()
	_, err = BuildIndicatorSnapshot("SOL", history)
	assert.Error(t, err)
}
