/*

This file contains the default parameters for the portfolio optimizer.

The values favour established, liquid pools over headline APR: a wallet-sized portfolio
pays for every rebalance in fees and slippage, so drift thresholds are wide and new pools
are penalised until they have some history.

*/

package config

import (
	"github.com/varayield/varayield/internal/types"
)

// DefaultScoringParameters is used when a request does not override parameters.
var DefaultScoringParameters = types.ScoringParameters{
	// --- General Strategy Parameters ---
	MaxPools:      4,    // Spread across at most 4 pools.
	MinAllocation: 0.10, // A position under 10% is not worth its rebalance cost.
	MaxAllocation: 0.40, // Cap exposure to any single pool at 40%.

	RebalanceThresholdPercent: 5.0,  // Act only on drift above 5 percentage points.
	MaxRebalancePercentPerRun: 25.0, // Withdraw at most 25% of the portfolio per run.

	// --- APR Weights ---
	FeeAprWeight:    1.2, // Trading fees are paid in the pool's own tokens and track real usage.
	RewardAprWeight: 0.7, // Farm rewards are emissions in a volatile token.

	// --- Scoring Coefficients ---
	AprCoefficient:           0.8,
	TradingVolumeCoefficient: 0.5,
	IlRiskCoefficient:        -1.2,
	VolatilityCoefficient:    -1.0,
	NewPoolCoefficient:       -6.0,
	TvlCoefficient:           0.6,

	// --- IL Risk Calculation Parameters ---
	IlConfidenceFactor:       2.0,
	IlHoldingPeriodYears:     30.0 / 365.0,
	ConcentratedILMultiplier: 1.5, // Concentrated ranges amplify divergence loss.

	// --- Other Configuration ---
	MinTVLThreshold:  100000, // Ignore pools under $100k TVL.
	PoolMaturityDays: 14,

	StablePairBonus:        1.5,
	ContinuityCoefficient:  1.0,
	ContinuityLookbackDays: 30,
}
