/*

This file contains the function for selecting the top pools based on the score from CalculatePoolScore,
and for turning their scores into target allocations.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/types"
)

var poolSelectorLogger = logger.GetForComponent("pool_selector")
var ErrNoValidPools = errors.New("no pools with valid scores found")
var ErrAllocationImpossible = errors.New("allocation constraints cannot be satisfied")

const (
	maxAllocationIterations = 20
	allocationTolerance     = 1e-6
)

// SelectTopPools returns up to MaxPools pool IDs with the highest positive scores.
// Ties are broken by pool ID so the selection is deterministic.
func SelectTopPools(scoredPools []types.PoolScoreResult, params types.ScoringParameters) ([]types.PoolID, error) {
	if params.MaxPools <= 0 {
		return nil, errors.New("MaxPools parameter must be positive")
	}

	candidates := make([]types.PoolScoreResult, 0, len(scoredPools))
	for _, s := range scoredPools {
		if !isFinite(s.Score) || s.Score <= 0 {
			poolSelectorLogger.Debug().
				Str("poolID", string(s.PoolID)).
				Float64("score", s.Score).
				Msg("Pool not selectable")
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return nil, ErrNoValidPools
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].PoolID < candidates[j].PoolID
	})

	n := params.MaxPools
	if n > len(candidates) {
		n = len(candidates)
	}
	// Never select more pools than MinAllocation allows.
	if params.MinAllocation > 0 {
		if limit := int(math.Floor(1/params.MinAllocation + allocationTolerance)); n > limit {
			n = limit
		}
	}

	selected := make([]types.PoolID, n)
	for i := 0; i < n; i++ {
		selected[i] = candidates[i].PoolID
		poolSelectorLogger.Debug().
			Int("rank", i+1).
			Str("poolID", string(candidates[i].PoolID)).
			Float64("score", candidates[i].Score).
			Msg("Selected pool")
	}
	return selected, nil
}

// DetermineTargetAllocations splits the portfolio across the selected pools in proportion
// to score, clamped to [MinAllocation, MaxAllocation]. When the selected pools cannot absorb
// the whole portfolio at MaxAllocation each, every pool gets MaxAllocation and the
// remainder stays unallocated.
func DetermineTargetAllocations(
	selectedPoolIDs []types.PoolID,
	scoredPoolsMap map[types.PoolID]types.PoolScoreResult,
	params types.ScoringParameters,
) (map[types.PoolID]float64, error) {
	n := len(selectedPoolIDs)
	if n == 0 {
		return map[types.PoolID]float64{}, nil
	}
	if params.MinAllocation < 0 || params.MaxAllocation <= 0 || params.MinAllocation > params.MaxAllocation {
		return nil, fmt.Errorf("%w: bounds [%.4f, %.4f]", ErrAllocationImpossible, params.MinAllocation, params.MaxAllocation)
	}
	if float64(n)*params.MinAllocation > 1+allocationTolerance {
		return nil, fmt.Errorf("%w: %d pools at %.4f minimum exceed the portfolio", ErrAllocationImpossible, n, params.MinAllocation)
	}

	scores := make(map[types.PoolID]float64, n)
	for _, id := range selectedPoolIDs {
		s, ok := scoredPoolsMap[id]
		if !ok {
			return nil, fmt.Errorf("score result not found for selected pool %s", id)
		}
		if !isFinite(s.Score) || s.Score <= 0 {
			return nil, fmt.Errorf("pool %s has non-positive score %f", id, s.Score)
		}
		scores[id] = s.Score
	}

	targets := make(map[types.PoolID]float64, n)
	if float64(n)*params.MaxAllocation <= 1+allocationTolerance {
		for _, id := range selectedPoolIDs {
			targets[id] = params.MaxAllocation
		}
		poolSelectorLogger.Info().
			Int("pools", n).
			Float64("allocatedPercent", float64(n)*params.MaxAllocation*100).
			Msg("Selected pools capped at MaxAllocation")
		return targets, nil
	}

	locked := make(map[types.PoolID]float64, n)
enforce:
	for iteration := 0; iteration < maxAllocationIterations && len(locked) < n; iteration++ {
		remaining := 1.0
		unlockedScore := 0.0
		for _, id := range selectedPoolIDs {
			if v, ok := locked[id]; ok {
				remaining -= v
			} else {
				unlockedScore += scores[id]
			}
		}
		remaining = math.Max(remaining, 0)

		var over, under []types.PoolID
		for _, id := range selectedPoolIDs {
			if _, ok := locked[id]; ok {
				continue
			}
			share := scores[id] / unlockedScore * remaining
			targets[id] = share
			switch {
			case share > params.MaxAllocation+allocationTolerance:
				over = append(over, id)
			case share < params.MinAllocation-allocationTolerance:
				under = append(under, id)
			}
		}

		// Resolve caps first; lifting the floor only shrinks everyone else.
		switch {
		case len(over) > 0:
			for _, id := range over {
				locked[id] = params.MaxAllocation
			}
		case len(under) > 0:
			for _, id := range under {
				locked[id] = params.MinAllocation
			}
		default:
			break enforce
		}
	}
	for id, v := range locked {
		targets[id] = v
	}

	sum := 0.0
	for _, v := range targets {
		sum += v
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: allocation sum is zero", ErrAllocationImpossible)
	}
	if math.Abs(sum-1) > allocationTolerance {
		for id := range targets {
			targets[id] /= sum
		}
	}
	for id, v := range targets {
		if v < params.MinAllocation-1e-4 || v > params.MaxAllocation+1e-4 {
			return nil, fmt.Errorf("%w: pool %s allocation %.6f outside [%.4f, %.4f]",
				ErrAllocationImpossible, id, v, params.MinAllocation, params.MaxAllocation)
		}
	}

	for _, id := range selectedPoolIDs {
		poolSelectorLogger.Info().
			Str("poolID", string(id)).
			Float64("allocationPercent", targets[id]*100).
			Msg("Pool allocation percentage")
	}
	return targets, nil
}
