/*
Package optimizer turns scored pools and a portfolio into a rebalancing plan.

The plan is advisory: nothing here signs or sends transactions. A run is deterministic
for a given input apart from its ID and timestamp.
*/

package optimizer

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/varayield/varayield/internal/analyzer"
	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/types"
)

var optimizerLogger = logger.GetForComponent("optimizer")

var (
	ErrInvalidPortfolioValue = errors.New("portfolio value must be positive")
	ErrInvalidPosition       = errors.New("position is invalid")
	ErrNoCandidatePools      = errors.New("no candidate pools")
)

// MIN_ACTION_USD drops dust actions left over after limits are applied.
const MIN_ACTION_USD = 1.0

// amountTolerance absorbs float error when comparing USD totals against limits.
const amountTolerance = 1e-6

// Input is everything one optimization run needs.
type Input struct {
	// Positions is capital currently in pools.
	Positions []types.Position
	// IdleUSD is portfolio value not placed in any pool.
	IdleUSD float64
	// Pools are the candidates, with token volatilities attached.
	Pools  []types.Pool
	Params types.ScoringParameters
}

// Optimizer produces OptimizationResults.
type Optimizer struct {
	clock clock.Clock
	newID func() string
}

// New returns an Optimizer. A nil clock uses the wall clock.
func New(clk clock.Clock) *Optimizer {
	if clk == nil {
		clk = clock.New()
	}
	return &Optimizer{clock: clk, newID: uuid.NewString}
}

// Optimize scores the candidate pools, derives target allocations and plans the deposits
// and withdrawals that move the portfolio toward them.
func (o *Optimizer) Optimize(in Input) (types.OptimizationResult, error) {
	total, err := portfolioValue(in)
	if err != nil {
		return types.OptimizationResult{}, err
	}
	if len(in.Pools) == 0 {
		return types.OptimizationResult{}, ErrNoCandidatePools
	}

	runID := o.newID()
	runLogger := optimizerLogger.With().Str("runID", runID).Logger()
	runLogger.Info().
		Float64("totalValueUSD", total).
		Int("positions", len(in.Positions)).
		Int("candidatePools", len(in.Pools)).
		Msg("Starting optimization run")

	pools := markPositions(in.Pools, in.Positions)
	scored, err := analyzer.CalculatePoolScores(pools, in.Params)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("scoring pools: %w", err)
	}
	selected, err := analyzer.SelectTopPools(scored, in.Params)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("selecting pools: %w", err)
	}
	scoreMap := make(map[types.PoolID]types.PoolScoreResult, len(scored))
	for _, s := range scored {
		scoreMap[s.PoolID] = s
	}
	targets, err := analyzer.DetermineTargetAllocations(selected, scoreMap, in.Params)
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("allocating: %w", err)
	}

	current := currentAllocations(in.Positions, total)
	poolByID := make(map[types.PoolID]types.Pool, len(pools))
	for _, p := range pools {
		poolByID[p.ID] = p
	}

	actions := planActions(current, targets, total, poolByID, in.Params)
	actions, skipped := applyRebalanceLimits(actions, in.IdleUSD, total, in.Params)

	result := types.OptimizationResult{
		ID:                 runID,
		CreatedAt:          o.clock.Now().UTC(),
		TotalValueUSD:      total,
		CurrentAllocations: current,
		TargetAllocations:  targets,
		Actions:            actions,
		ExpectedAPRBefore:  ExpectedAPR(current, poolByID),
		ExpectedAPRAfter:   ExpectedAPR(targets, poolByID),
		Skipped:            skipped,
	}

	runLogger.Info().
		Int("selectedPools", len(selected)).
		Int("actions", len(actions)).
		Int("limited", len(skipped)).
		Float64("expectedAPRBefore", result.ExpectedAPRBefore).
		Float64("expectedAPRAfter", result.ExpectedAPRAfter).
		Msg("Optimization run completed")

	return result, nil
}

func portfolioValue(in Input) (float64, error) {
	if !isFiniteNonNegative(in.IdleUSD) {
		return 0, fmt.Errorf("%w: idle value %v", ErrInvalidPortfolioValue, in.IdleUSD)
	}
	total := in.IdleUSD
	seen := make(map[types.PoolID]bool, len(in.Positions))
	for i, p := range in.Positions {
		if p.PoolID == "" {
			return 0, fmt.Errorf("%w: position %d has no pool ID", ErrInvalidPosition, i)
		}
		if seen[p.PoolID] {
			return 0, fmt.Errorf("%w: duplicate position in pool %s", ErrInvalidPosition, p.PoolID)
		}
		seen[p.PoolID] = true
		if !isFiniteNonNegative(p.ValueUSD) || p.AgeDays < 0 {
			return 0, fmt.Errorf("%w: pool %s value %v age %d", ErrInvalidPosition, p.PoolID, p.ValueUSD, p.AgeDays)
		}
		total += p.ValueUSD
	}
	if total <= 0 {
		return 0, ErrInvalidPortfolioValue
	}
	return total, nil
}

// markPositions copies pools with the continuity state of existing positions set.
func markPositions(pools []types.Pool, positions []types.Position) []types.Pool {
	byPool := make(map[types.PoolID]types.Position, len(positions))
	for _, p := range positions {
		byPool[p.PoolID] = p
	}
	out := make([]types.Pool, len(pools))
	for i, pool := range pools {
		if pos, ok := byPool[pool.ID]; ok && pos.ValueUSD > 0 {
			pool.HasCurrentPosition = true
			pool.CurrentPositionAgeDays = pos.AgeDays
			pool.EstimatedPositionValue = pos.ValueUSD
		}
		out[i] = pool
	}
	return out
}

func currentAllocations(positions []types.Position, total float64) map[types.PoolID]float64 {
	out := make(map[types.PoolID]float64, len(positions))
	for _, p := range positions {
		if p.ValueUSD > 0 {
			out[p.PoolID] = p.ValueUSD / total
		}
	}
	return out
}

// planActions emits one action per pool whose allocation drifts more than the threshold.
// Actions are ordered withdrawals first, then by pool ID.
func planActions(
	current, targets map[types.PoolID]float64,
	total float64,
	pools map[types.PoolID]types.Pool,
	params types.ScoringParameters,
) []types.RebalanceAction {
	ids := make(map[types.PoolID]struct{}, len(current)+len(targets))
	for id := range current {
		ids[id] = struct{}{}
	}
	for id := range targets {
		ids[id] = struct{}{}
	}

	actions := make([]types.RebalanceAction, 0, len(ids))
	for id := range ids {
		driftPoints := (targets[id] - current[id]) * 100
		if math.Abs(driftPoints) <= params.RebalanceThresholdPercent {
			continue
		}

		currentUSD := current[id] * total
		targetUSD := targets[id] * total
		action := types.RebalanceAction{
			Type:       types.ActionDeposit,
			PoolID:     id,
			PoolName:   poolName(id, pools),
			CurrentUSD: currentUSD,
			TargetUSD:  targetUSD,
			AmountUSD:  math.Abs(targetUSD - currentUSD),
		}
		if driftPoints < 0 {
			action.Type = types.ActionWithdraw
		}
		actions = append(actions, action)
	}

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].Type != actions[j].Type {
			return actions[i].Type == types.ActionWithdraw
		}
		return actions[i].PoolID < actions[j].PoolID
	})
	return actions
}

// applyRebalanceLimits caps total withdrawals at MaxRebalancePercentPerRun of the portfolio
// and deposits at the cash available (idle value plus withdrawals). Both are scaled
// proportionally. Pools whose action was reduced are returned as limited.
func applyRebalanceLimits(
	actions []types.RebalanceAction,
	idleUSD, total float64,
	params types.ScoringParameters,
) ([]types.RebalanceAction, []types.PoolID) {
	var withdrawTotal, depositTotal float64
	for _, a := range actions {
		if a.Type == types.ActionWithdraw {
			withdrawTotal += a.AmountUSD
		} else {
			depositTotal += a.AmountUSD
		}
	}

	withdrawScale := 1.0
	if limit := total * params.MaxRebalancePercentPerRun / 100; withdrawTotal > limit+amountTolerance {
		withdrawScale = limit / withdrawTotal
		optimizerLogger.Warn().
			Float64("withdrawalUSD", withdrawTotal).
			Float64("limitUSD", limit).
			Msg("Withdrawals exceed per-run limit, scaling down")
	}

	depositScale := 1.0
	if available := idleUSD + withdrawTotal*withdrawScale; depositTotal > available+amountTolerance {
		depositScale = available / depositTotal
		optimizerLogger.Info().
			Float64("depositUSD", depositTotal).
			Float64("availableUSD", available).
			Msg("Deposits exceed available cash, scaling down")
	}

	out := make([]types.RebalanceAction, 0, len(actions))
	var limited []types.PoolID
	for _, a := range actions {
		scale := depositScale
		if a.Type == types.ActionWithdraw {
			scale = withdrawScale
		}
		if scale < 1 {
			limited = append(limited, a.PoolID)
			a.AmountUSD *= scale
			if a.Type == types.ActionWithdraw {
				a.TargetUSD = a.CurrentUSD - a.AmountUSD
			} else {
				a.TargetUSD = a.CurrentUSD + a.AmountUSD
			}
		}
		if a.AmountUSD < MIN_ACTION_USD {
			continue
		}
		out = append(out, a)
	}
	return out, limited
}

// ExpectedAPR is the allocation-weighted total APR (fee plus reward, percent).
// Unallocated value and unknown pools earn nothing.
func ExpectedAPR(allocations map[types.PoolID]float64, pools map[types.PoolID]types.Pool) float64 {
	var apr float64
	for id, w := range allocations {
		if p, ok := pools[id]; ok {
			apr += w * (p.FeeAPR + p.RewardAPR)
		}
	}
	return apr
}

func poolName(id types.PoolID, pools map[types.PoolID]types.Pool) string {
	if p, ok := pools[id]; ok {
		return p.Name()
	}
	return string(id)
}

func isFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
