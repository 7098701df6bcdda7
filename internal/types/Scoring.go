/*

This file contains the types for scoring pools, and other configurable parameters for the optimizer.

*/

package types

// ScoringParameters holds the tunable weights, coefficients, and thresholds
// used for scoring pools and planning allocations.
type ScoringParameters struct {
	// --- General Strategy Parameters ---
	MaxPools                  int     `json:"max_pools"`                    // Maximum number of pools to allocate into.
	MinAllocation             float64 `json:"min_allocation"`               // Minimum fraction of portfolio value per selected pool.
	MaxAllocation             float64 `json:"max_allocation"`               // Maximum fraction of portfolio value per selected pool.
	RebalanceThresholdPercent float64 `json:"rebalance_threshold_percent"`  // Minimum allocation drift (percentage points) that triggers an action.
	MaxRebalancePercentPerRun float64 `json:"max_rebalance_percent_per_run"` // Cap on withdrawals per run, percent of portfolio value.

	// --- Reward Score Components ---
	AprCoefficient           float64 `json:"apr_coefficient"`
	TradingVolumeCoefficient float64 `json:"trading_volume_coefficient"` // applied to log10 of 7d volume
	FeeAprWeight             float64 `json:"fee_apr_weight"`
	RewardAprWeight          float64 `json:"reward_apr_weight"`

	// --- Risk Score Components ---
	IlRiskCoefficient     float64 `json:"il_risk_coefficient"`    // typically negative
	VolatilityCoefficient float64 `json:"volatility_coefficient"` // typically negative
	NewPoolCoefficient    float64 `json:"new_pool_coefficient"`   // typically negative
	PoolMaturityDays      int     `json:"pool_maturity_days"`

	// IL Risk Specifics
	IlHoldingPeriodYears     float64 `json:"il_holding_period_years"`
	IlConfidenceFactor       float64 `json:"il_confidence_factor"`
	ConcentratedILMultiplier float64 `json:"concentrated_il_multiplier"` // extra IL exposure of concentrated pools

	// --- Liquidity Score Components ---
	TvlCoefficient  float64 `json:"tvl_coefficient"`   // applied to log10 of TVL
	MinTVLThreshold float64 `json:"min_tvl_threshold"` // pools below this TVL are not eligible

	// --- Bonus Score Components ---
	StablePairBonus        float64 `json:"stable_pair_bonus"`
	ContinuityCoefficient  float64 `json:"continuity_coefficient"`
	ContinuityLookbackDays int     `json:"continuity_lookback_days"`
}

type ScoreComponents struct {
	WeightedAPR          float64 `json:"weighted_apr"`
	ILRisk               float64 `json:"il_risk"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	RewardScoreComponent float64 `json:"reward_score_component"`
	RiskScoreComponent   float64 `json:"risk_score_component"`
	TvlScoreComponent    float64 `json:"tvl_score_component"`
	BonusScoreComponent  float64 `json:"bonus_score_component"`
}

type PoolScoreResult struct {
	PoolID     PoolID          `json:"pool_id"`
	Score      float64         `json:"final_score"`
	Components ScoreComponents `json:"components"`
}
