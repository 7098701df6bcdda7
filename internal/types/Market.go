/*

This file contains the types produced by the technical indicator and risk metric calculations.

*/

package types

import "time"

type MACD struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

type BollingerBands struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	PercentB  float64 `json:"percent_b"` // position of the last price inside the bands
	Bandwidth float64 `json:"bandwidth"` // (upper-lower)/middle
}

// Signal is a coarse reading of the indicators.
type Signal string

const (
	SignalOverbought Signal = "OVERBOUGHT"
	SignalOversold   Signal = "OVERSOLD"
	SignalBullish    Signal = "BULLISH"
	SignalBearish    Signal = "BEARISH"
	SignalNeutral    Signal = "NEUTRAL"
)

type IndicatorSnapshot struct {
	Coin       string         `json:"coin"`
	Price      float64        `json:"price"`
	RSI        float64        `json:"rsi"`
	MACD       MACD           `json:"macd"`
	Bollinger  BollingerBands `json:"bollinger"`
	Signal     Signal         `json:"signal"`
	DataPoints int            `json:"data_points"`
	AsOf       time.Time      `json:"as_of"`
}

type RiskMetrics struct {
	Coin                 string    `json:"coin"`
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	AnnualizedReturn     float64   `json:"annualized_return"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	SortinoRatio         float64   `json:"sortino_ratio"`
	MaxDrawdown          float64   `json:"max_drawdown"` // fraction, 0..1
	ValueAtRisk95        float64   `json:"var_95"`       // loss fraction per period
	ConditionalVaR95     float64   `json:"cvar_95"`
	DataPoints           int       `json:"data_points"`
	AsOf                 time.Time `json:"as_of"`
}
