/*

This is a custom type for SPL tokens which contains the state needed for valuing holdings and scoring pools.

*/

package types

import "time"

type Token struct {
	Symbol      string      `json:"symbol"`       // e.g., "SOL"
	Mint        string      `json:"mint"`         // SPL mint address
	Decimals    int         `json:"decimals"`     // e.g., 9 for SOL, 6 for USDC
	CoinGeckoID string      `json:"coingecko_id"` // e.g., "solana"
	PriceUSD    float64     `json:"price_usd"`
	PriceData   []PriceData `json:"price_data,omitempty"` // historical hourly prices
	Volatility  float64     `json:"volatility"`           // annualized, from PriceData
}

// PriceData holds historical price info
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
