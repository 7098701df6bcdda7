/*

This file contains the main function for calculating the score for a pool.

score = reward + risk + liquidity + bonus

  - reward:    AprCoefficient * weighted APR (percent) + TradingVolumeCoefficient * log10(7d volume)
  - risk:      IlRiskCoefficient * IL estimate + VolatilityCoefficient * pair volatility + age penalty
  - liquidity: TvlCoefficient * log10(TVL)
  - bonus:     stable pair bonus + continuity bonus for an existing position

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/types"
)

var ErrInvalidPoolData = errors.New("invalid pool data")
var ErrInvalidScoringParameters = errors.New("invalid scoring parameters")
var ErrPoolIneligible = errors.New("pool is not eligible for allocation")
var scoreLogger = logger.GetForComponent("pool_scorer")

// CalculatePoolScore scores a single pool. The pool must carry token volatilities and,
// for continuity, its current position state.
func CalculatePoolScore(pool types.Pool, params types.ScoringParameters) (types.PoolScoreResult, error) {
	if err := ValidatePoolData(pool); err != nil {
		return types.PoolScoreResult{}, errors.Join(ErrInvalidPoolData, err)
	}
	if err := ValidateScoringParameters(params); err != nil {
		return types.PoolScoreResult{}, errors.Join(ErrInvalidScoringParameters, err)
	}
	if pool.TvlUSD < params.MinTVLThreshold {
		return types.PoolScoreResult{}, fmt.Errorf("%w: TVL %.0f below minimum %.0f", ErrPoolIneligible, pool.TvlUSD, params.MinTVLThreshold)
	}

	volatility := PairVolatility(pool)
	result := types.PoolScoreResult{
		PoolID: pool.ID,
		Components: types.ScoreComponents{
			AnnualizedVolatility: volatility,
		},
	}

	weightedAPR, err := CalculateWeightedAPR(pool, params)
	if err != nil {
		return types.PoolScoreResult{}, errors.Join(errors.New("weighted APR calculation failed"), err)
	}
	result.Components.WeightedAPR = weightedAPR

	reward, err := CalculateRewardScore(weightedAPR, pool, params)
	if err != nil {
		return types.PoolScoreResult{}, errors.Join(errors.New("reward score calculation failed"), err)
	}
	result.Components.RewardScoreComponent = reward

	ilRisk, err := CalculateILRisk(volatility, pool.Type, params)
	if err != nil {
		return types.PoolScoreResult{}, errors.Join(errors.New("IL risk calculation failed"), err)
	}
	result.Components.ILRisk = ilRisk

	agePenalty := CalculateAgePenalty(pool, params)
	risk := params.IlRiskCoefficient*ilRisk + params.VolatilityCoefficient*volatility + agePenalty
	result.Components.RiskScoreComponent = risk

	liquidity := CalculateLiquidityScore(pool, params)
	result.Components.TvlScoreComponent = liquidity

	bonus := CalculateStablePairBonus(pool, params) + CalculateContinuityBonus(pool, params)
	result.Components.BonusScoreComponent = bonus

	result.Score = reward + risk + liquidity + bonus

	for _, c := range []struct {
		name  string
		value float64
	}{
		{"reward component", reward},
		{"risk component", risk},
		{"liquidity component", liquidity},
		{"bonus component", bonus},
		{"final score", result.Score},
	} {
		if !isFinite(c.value) {
			scoreLogger.Error().
				Str("poolID", string(pool.ID)).
				Str("componentName", c.name).
				Float64("componentValue", c.value).
				Msg("Score component calculation resulted in invalid value")
			return types.PoolScoreResult{}, fmt.Errorf("%s calculation resulted in NaN or Inf", c.name)
		}
	}

	scoreLogger.Debug().
		Str("poolID", string(pool.ID)).
		Str("pair", pool.Name()).
		Float64("finalScore", result.Score).
		Float64("rewardComponent", reward).
		Float64("riskComponent", risk).
		Float64("liquidityComponent", liquidity).
		Float64("bonusComponent", bonus).
		Msg("Pool score calculated")

	return result, nil
}

// PairVolatility is the higher annualized volatility of the two tokens.
func PairVolatility(pool types.Pool) float64 {
	return math.Max(pool.TokenA.Volatility, pool.TokenB.Volatility)
}

// CalculateWeightedAPR returns the weight-averaged fee and reward APR, in percent.
func CalculateWeightedAPR(pool types.Pool, params types.ScoringParameters) (float64, error) {
	totalWeight := params.FeeAprWeight + params.RewardAprWeight
	if totalWeight <= 0 {
		return 0, errors.New("total APR weight is non-positive, cannot calculate weighted average")
	}
	weighted := (pool.FeeAPR*params.FeeAprWeight + pool.RewardAPR*params.RewardAprWeight) / totalWeight
	if !isFinite(weighted) {
		return 0, errors.New("weighted APR calculation resulted in non-finite value")
	}
	return weighted, nil
}

// CalculateRewardScore combines the weighted APR with log-scaled 7 day volume.
// A pool without volume gets no volume contribution.
func CalculateRewardScore(weightedAPR float64, pool types.Pool, params types.ScoringParameters) (float64, error) {
	if !isFinite(weightedAPR) {
		return 0, errors.New("weighted APR is not finite")
	}
	if pool.Volume7dUSD < 0 {
		return 0, errors.New("volume cannot be negative")
	}

	score := params.AprCoefficient * weightedAPR
	if pool.Volume7dUSD > 0 {
		score += params.TradingVolumeCoefficient * math.Log10(pool.Volume7dUSD)
	}
	return score, nil
}

// CalculateILRisk estimates impermanent loss exposure as confidence * vol^2 * holding period.
// Concentrated pools are scaled by ConcentratedILMultiplier.
func CalculateILRisk(annualizedVolatility float64, poolType types.PoolType, params types.ScoringParameters) (float64, error) {
	if !isFinite(annualizedVolatility) || annualizedVolatility < 0 {
		return 0, fmt.Errorf("annualized volatility must be finite and non-negative, got %v", annualizedVolatility)
	}
	if annualizedVolatility == 0 {
		return 0, nil
	}

	risk := params.IlConfidenceFactor * annualizedVolatility * annualizedVolatility * params.IlHoldingPeriodYears
	if poolType == types.PoolTypeConcentrated && params.ConcentratedILMultiplier > 0 {
		risk *= params.ConcentratedILMultiplier
	}
	if !isFinite(risk) {
		return 0, errors.New("IL risk calculation resulted in non-finite value")
	}
	return risk, nil
}

// CalculateAgePenalty scales NewPoolCoefficient linearly from full at day 0 to zero at maturity.
func CalculateAgePenalty(pool types.Pool, params types.ScoringParameters) float64 {
	if params.PoolMaturityDays <= 0 || pool.AgeInDays >= params.PoolMaturityDays {
		return 0
	}
	remaining := 1 - float64(pool.AgeInDays)/float64(params.PoolMaturityDays)
	return params.NewPoolCoefficient * remaining
}

// CalculateLiquidityScore is TvlCoefficient * log10 of the TVL, floored at MinTVLThreshold.
func CalculateLiquidityScore(pool types.Pool, params types.ScoringParameters) float64 {
	tvl := math.Max(pool.TvlUSD, params.MinTVLThreshold)
	if tvl <= 1 {
		return 0
	}
	return params.TvlCoefficient * math.Log10(tvl)
}

func CalculateStablePairBonus(pool types.Pool, params types.ScoringParameters) float64 {
	if pool.IsStablePair() {
		return params.StablePairBonus
	}
	return 0
}

// CalculateContinuityBonus rewards keeping an existing position, growing with its age
// up to ContinuityLookbackDays.
func CalculateContinuityBonus(pool types.Pool, params types.ScoringParameters) float64 {
	if !pool.HasCurrentPosition || params.ContinuityLookbackDays <= 0 {
		return 0
	}
	scale := math.Min(1, float64(pool.CurrentPositionAgeDays)/float64(params.ContinuityLookbackDays))
	return params.ContinuityCoefficient * scale
}

// ValidatePoolData checks the fields the scorer reads.
func ValidatePoolData(pool types.Pool) error {
	if pool.ID == "" {
		return errors.New("pool ID cannot be empty")
	}
	if pool.TokenA.Symbol == "" || pool.TokenB.Symbol == "" {
		return errors.New("token symbols cannot be empty")
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"TVL", pool.TvlUSD},
		{"7-day volume", pool.Volume7dUSD},
		{"fee APR", pool.FeeAPR},
		{"reward APR", pool.RewardAPR},
		{"TokenA volatility", pool.TokenA.Volatility},
		{"TokenB volatility", pool.TokenB.Volatility},
	} {
		if !isFinite(f.value) {
			return fmt.Errorf("%s must be finite", f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%s cannot be negative", f.name)
		}
	}
	if pool.AgeInDays < 0 {
		return errors.New("pool age cannot be negative")
	}
	if pool.HasCurrentPosition && pool.CurrentPositionAgeDays < 0 {
		return errors.New("current position age cannot be negative when position exists")
	}
	return nil
}

// ValidateScoringParameters checks that the parameters describe a usable strategy.
func ValidateScoringParameters(params types.ScoringParameters) error {
	if params.FeeAprWeight < 0 || params.RewardAprWeight < 0 {
		return errors.New("APR weights cannot be negative")
	}
	if params.FeeAprWeight+params.RewardAprWeight <= 0 {
		return errors.New("total APR weights must be positive")
	}

	for _, c := range []struct {
		name  string
		value float64
	}{
		{"AprCoefficient", params.AprCoefficient},
		{"TradingVolumeCoefficient", params.TradingVolumeCoefficient},
		{"IlRiskCoefficient", params.IlRiskCoefficient},
		{"VolatilityCoefficient", params.VolatilityCoefficient},
		{"NewPoolCoefficient", params.NewPoolCoefficient},
		{"TvlCoefficient", params.TvlCoefficient},
		{"StablePairBonus", params.StablePairBonus},
		{"ContinuityCoefficient", params.ContinuityCoefficient},
		{"ConcentratedILMultiplier", params.ConcentratedILMultiplier},
		{"MinTVLThreshold", params.MinTVLThreshold},
	} {
		if !isFinite(c.value) {
			return errors.New(c.name + " must be finite")
		}
	}

	if params.MinTVLThreshold < 0 {
		return errors.New("MinTVLThreshold cannot be negative")
	}
	if params.PoolMaturityDays < 0 {
		return errors.New("PoolMaturityDays cannot be negative")
	}
	if params.ContinuityLookbackDays < 0 {
		return errors.New("ContinuityLookbackDays cannot be negative")
	}
	if params.IlHoldingPeriodYears <= 0 || !isFinite(params.IlHoldingPeriodYears) {
		return errors.New("IlHoldingPeriodYears must be positive")
	}
	if params.IlConfidenceFactor <= 0 || !isFinite(params.IlConfidenceFactor) {
		return errors.New("IlConfidenceFactor must be positive")
	}
	if params.MaxPools <= 0 {
		return errors.New("MaxPools must be positive")
	}
	if params.MinAllocation < 0 || params.MaxAllocation <= 0 || params.MinAllocation > params.MaxAllocation || params.MaxAllocation > 1 {
		return fmt.Errorf("allocation bounds [%.4f, %.4f] are invalid", params.MinAllocation, params.MaxAllocation)
	}
	if params.RebalanceThresholdPercent < 0 || params.MaxRebalancePercentPerRun < 0 {
		return errors.New("rebalance percentages cannot be negative")
	}
	return nil
}

// CalculatePoolScores scores every pool. Invalid and ineligible pools are skipped with a
// warning; an error is returned only when nothing could be scored.
func CalculatePoolScores(pools []types.Pool, params types.ScoringParameters) ([]types.PoolScoreResult, error) {
	if len(pools) == 0 {
		return nil, errors.New("no pools provided for scoring")
	}
	if err := ValidateScoringParameters(params); err != nil {
		return nil, errors.Join(ErrInvalidScoringParameters, err)
	}

	results := make([]types.PoolScoreResult, 0, len(pools))
	skipped := 0
	for _, pool := range pools {
		result, err := CalculatePoolScore(pool, params)
		if err != nil {
			skipped++
			scoreLogger.Warn().
				Err(err).
				Str("poolID", string(pool.ID)).
				Str("pair", pool.Name()).
				Msg("Skipping pool")
			continue
		}
		results = append(results, result)
	}

	scoreLogger.Info().
		Int("poolCount", len(pools)).
		Int("scored", len(results)).
		Int("skipped", skipped).
		Msg("Batch pool scoring completed")

	if len(results) == 0 {
		return nil, ErrNoValidPools
	}
	return results, nil
}
