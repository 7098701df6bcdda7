/*

This is a custom type for Solana AMM pools which contains all the state needed for scoring pools

*/

package types

type PoolID string

// PoolType distinguishes constant-product pools from concentrated liquidity pools.
type PoolType string

const (
	PoolTypeStandard     PoolType = "Standard"
	PoolTypeConcentrated PoolType = "Concentrated"
)

type Pool struct {
	ID           PoolID   `json:"id"` // pool account address
	Type         PoolType `json:"type"`
	TokenA       Token    `json:"token_a"`
	TokenB       Token    `json:"token_b"`
	TvlUSD       float64  `json:"tvl_usd"`
	Volume24hUSD float64  `json:"volume_24h_usd"`
	Volume7dUSD  float64  `json:"volume_7d_usd"`
	FeeAPR       float64  `json:"fee_apr"`    // trading fee component, percent
	RewardAPR    float64  `json:"reward_apr"` // farm reward component, percent
	FeeRate      float64  `json:"fee_rate"`   // swap fee, fraction (0.0025 = 0.25%)
	AgeInDays    int      `json:"age_in_days"`

	Score PoolScoreResult `json:"score"`

	// Internal state for tracking the portfolio's position
	HasCurrentPosition     bool    `json:"-"`
	CurrentPositionAgeDays int     `json:"-"`
	EstimatedPositionValue float64 `json:"-"`
}

// Name returns the pair label, e.g. "SOL-USDC".
func (p Pool) Name() string {
	return p.TokenA.Symbol + "-" + p.TokenB.Symbol
}

// IsStablePair reports whether both sides are USD stablecoins.
func (p Pool) IsStablePair() bool {
	return IsStablecoin(p.TokenA.Symbol) && IsStablecoin(p.TokenB.Symbol)
}

var stablecoins = map[string]bool{
	"USDC":  true,
	"USDT":  true,
	"PYUSD": true,
	"USDS":  true,
}

// IsStablecoin reports whether symbol is a USD stablecoin.
func IsStablecoin(symbol string) bool {
	return stablecoins[symbol]
}
