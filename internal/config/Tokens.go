/*
CoinGecko is used for historical price data and Jupiter for spot prices by mint.

This file maps well-known SPL tokens to their mint, decimals and CoinGecko ID.
Symbols missing here are looked up on CoinGecko by their lowercased symbol, which works
for most large caps but not for wrapped or bridged assets, so keep this list current.
*/

package config

import "strings"

// KnownToken is static metadata for a token the dashboard can price.
type KnownToken struct {
	Symbol      string
	Mint        string
	Decimals    int
	CoinGeckoID string
}

const (
	NATIVE_SOL_MINT = "So11111111111111111111111111111111111111112"
	USDC_MINT       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var KnownTokens = []KnownToken{
	{Symbol: "SOL", Mint: NATIVE_SOL_MINT, Decimals: 9, CoinGeckoID: "solana"},
	{Symbol: "USDC", Mint: USDC_MINT, Decimals: 6, CoinGeckoID: "usd-coin"},
	{Symbol: "USDT", Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6, CoinGeckoID: "tether"},
	{Symbol: "JUP", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6, CoinGeckoID: "jupiter-exchange-solana"},
	{Symbol: "RAY", Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Decimals: 6, CoinGeckoID: "raydium"},
	{Symbol: "BONK", Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5, CoinGeckoID: "bonk"},
	{Symbol: "JTO", Mint: "jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL", Decimals: 9, CoinGeckoID: "jito-governance-token"},
	{Symbol: "mSOL", Mint: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", Decimals: 9, CoinGeckoID: "msol"},
	{Symbol: "jitoSOL", Mint: "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn", Decimals: 9, CoinGeckoID: "jito-staked-sol"},
	{Symbol: "WBTC", Mint: "3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh", Decimals: 8, CoinGeckoID: "wrapped-bitcoin"},
	{Symbol: "WETH", Mint: "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs", Decimals: 8, CoinGeckoID: "ethereum"},
}

// TokenByMint returns the known token with the given mint.
func TokenByMint(mint string) (KnownToken, bool) {
	for _, t := range KnownTokens {
		if t.Mint == mint {
			return t, true
		}
	}
	return KnownToken{}, false
}

// CoinGeckoID resolves a symbol or CoinGecko ID to a CoinGecko ID.
// Unknown values are returned lowercased.
func CoinGeckoID(coin string) string {
	for _, t := range KnownTokens {
		if strings.EqualFold(t.Symbol, coin) || t.CoinGeckoID == strings.ToLower(coin) {
			return t.CoinGeckoID
		}
	}
	return strings.ToLower(coin)
}
