package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varayield/varayield/internal/analyzer"
	"github.com/varayield/varayield/internal/types"
)

func testParams() types.ScoringParameters {
	return types.ScoringParameters{
		MaxPools:                  2,
		MinAllocation:             0.1,
		MaxAllocation:             0.6,
		RebalanceThresholdPercent: 5,
		MaxRebalancePercentPerRun: 100,
		AprCoefficient:            1,
		TradingVolumeCoefficient:  1,
		FeeAprWeight:              1,
		RewardAprWeight:           1,
		IlRiskCoefficient:         -1,
		VolatilityCoefficient:     -1,
		NewPoolCoefficient:        -2,
		PoolMaturityDays:          10,
		IlHoldingPeriodYears:      1,
		IlConfidenceFactor:        2,
		TvlCoefficient:            1,
		MinTVLThreshold:           100000,
		ContinuityLookbackDays:    30,
	}
}

func pool(id string, feeAPR, tvl float64) types.Pool {
	return types.Pool{
		ID:          types.PoolID(id),
		Type:        types.PoolTypeStandard,
		TokenA:      types.Token{Symbol: "SOL", CoinGeckoID: "solana"},
		TokenB:      types.Token{Symbol: "USDC", CoinGeckoID: "usd-coin"},
		TvlUSD:      tvl,
		Volume7dUSD: 1e7,
		FeeAPR:      feeAPR,
		AgeInDays:   100,
	}
}

func newTestOptimizer() (*Optimizer, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	o := New(mock)
	o.newID = func() string { return "run-1" }
	return o, mock
}

func TestOptimize(t *testing.T) {
	o, mock := newTestOptimizer()

	result, err := o.Optimize(Input{
		Positions: []types.Position{{PoolID: "bad", ValueUSD: 1000, AgeDays: 3}},
		IdleUSD:   1000,
		Pools: []types.Pool{
			pool("good", 40, 1e7),
			pool("ok", 20, 1e7),
			pool("bad", 100, 5e4), // below MinTVLThreshold
		},
		Params: testParams(),
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.ID)
	assert.Equal(t, mock.Now().UTC(), result.CreatedAt)
	assert.Equal(t, 2000.0, result.TotalValueUSD)
	assert.Equal(t, map[types.PoolID]float64{"bad": 0.5}, result.CurrentAllocations)

	// Scores: good = 20 + 7 + 7 = 34, ok = 10 + 7 + 7 = 24.
	require.Len(t, result.TargetAllocations, 2)
	assert.InDelta(t, 34.0/58, result.TargetAllocations["good"], 1e-9)
	assert.InDelta(t, 24.0/58, result.TargetAllocations["ok"], 1e-9)

	require.Len(t, result.Actions, 3)
	assert.Equal(t, types.ActionWithdraw, result.Actions[0].Type)
	assert.Equal(t, types.PoolID("bad"), result.Actions[0].PoolID)
	assert.InDelta(t, 1000, result.Actions[0].AmountUSD, 1e-9)
	assert.Equal(t, "SOL-USDC", result.Actions[0].PoolName)
	assert.Equal(t, types.PoolID("good"), result.Actions[1].PoolID)
	assert.InDelta(t, 2000*34.0/58, result.Actions[1].AmountUSD, 1e-6)
	assert.Equal(t, types.PoolID("ok"), result.Actions[2].PoolID)

	assert.InDelta(t, 50, result.ExpectedAPRBefore, 1e-9)
	assert.InDelta(t, (34.0*40+24.0*20)/58, result.ExpectedAPRAfter, 1e-9)
	assert.Empty(t, result.Skipped)
}

func TestOptimizeErrors(t *testing.T) {
	o, _ := newTestOptimizer()
	pools := []types.Pool{pool("good", 40, 1e7)}

	_, err := o.Optimize(Input{Pools: pools, Params: testParams()})
	assert.ErrorIs(t, err, ErrInvalidPortfolioValue)

	_, err = o.Optimize(Input{
		Positions: []types.Position{{PoolID: "a", ValueUSD: 1}, {PoolID: "a", ValueUSD: 2}},
		Pools:     pools,
		Params:    testParams(),
	})
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = o.Optimize(Input{IdleUSD: -5, Pools: pools, Params: testParams()})
	assert.ErrorIs(t, err, ErrInvalidPortfolioValue)

	_, err = o.Optimize(Input{IdleUSD: 100, Params: testParams()})
	assert.ErrorIs(t, err, ErrNoCandidatePools)

	_, err = o.Optimize(Input{IdleUSD: 100, Pools: []types.Pool{pool("tiny", 40, 10)}, Params: testParams()})
	assert.ErrorIs(t, err, analyzer.ErrNoValidPools)
}

func TestPlanActionsRespectsThreshold(t *testing.T) {
	current := map[types.PoolID]float64{"a": 0.5, "b": 0.5}
	targets := map[types.PoolID]float64{"b": 0.47, "c": 0.53}

	actions := planActions(current, targets, 1000, nil, testParams())
	require.Len(t, actions, 2)

	assert.Equal(t, types.RebalanceAction{
		Type: types.ActionWithdraw, PoolID: "a", PoolName: "a",
		CurrentUSD: 500, TargetUSD: 0, AmountUSD: 500,
	}, actions[0])
	assert.Equal(t, types.ActionDeposit, actions[1].Type)
	assert.Equal(t, types.PoolID("c"), actions[1].PoolID)
	assert.InDelta(t, 530, actions[1].AmountUSD, 1e-9)
}

func TestApplyRebalanceLimits(t *testing.T) {
	actions := []types.RebalanceAction{
		{Type: types.ActionWithdraw, PoolID: "a", CurrentUSD: 500, TargetUSD: 0, AmountUSD: 500},
		{Type: types.ActionDeposit, PoolID: "c", CurrentUSD: 0, TargetUSD: 550, AmountUSD: 550},
	}
	params := testParams()
	params.MaxRebalancePercentPerRun = 25

	limited, skipped := applyRebalanceLimits(actions, 0, 1000, params)
	require.Len(t, limited, 2)
	assert.InDelta(t, 250, limited[0].AmountUSD, 1e-9)
	assert.InDelta(t, 250, limited[0].TargetUSD, 1e-9)
	assert.InDelta(t, 250, limited[1].AmountUSD, 1e-9)
	assert.InDelta(t, 250, limited[1].TargetUSD, 1e-9)
	assert.Equal(t, []types.PoolID{"a", "c"}, skipped)
	assert.Equal(t, 500.0, actions[0].AmountUSD, "input is not modified")

	params.MaxRebalancePercentPerRun = 100
	unlimited, skipped := applyRebalanceLimits(actions, 50, 1000, params)
	assert.Equal(t, actions, unlimited)
	assert.Empty(t, skipped)

	dust := []types.RebalanceAction{{Type: types.ActionDeposit, PoolID: "d", AmountUSD: 0.5}}
	out, _ := applyRebalanceLimits(dust, 100, 1000, params)
	assert.Empty(t, out)
}

func TestExpectedAPR(t *testing.T) {
	pools := map[types.PoolID]types.Pool{
		"a": {FeeAPR: 10, RewardAPR: 5},
		"b": {FeeAPR: 30},
	}
	apr := ExpectedAPR(map[types.PoolID]float64{"a": 0.5, "b": 0.25, "unknown": 0.25}, pools)
	assert.InDelta(t, 15, apr, 1e-12)
}

type fakeHistory struct {
	calls  []string
	series map[string][]types.PriceData
}

func (f *fakeHistory) FetchHourlyPrices(_ context.Context, coin string, _ int) ([]types.PriceData, error) {
	f.calls = append(f.calls, coin)
	s, ok := f.series[coin]
	if !ok {
		return nil, errors.New("unknown coin")
	}
	return s, nil
}

func TestAttachVolatility(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeHistory{series: map[string][]types.PriceData{
		"solana": {
			{Timestamp: start, Price: 100},
			{Timestamp: start.Add(time.Hour), Price: 110},
			{Timestamp: start.Add(2 * time.Hour), Price: 100},
		},
	}}

	solUSDC := pool("sol-usdc", 10, 1e7)
	jupSOL := pool("jup-sol", 10, 1e7)
	jupSOL.TokenA = types.Token{Symbol: "JUP", CoinGeckoID: "jupiter-exchange-solana"}
	stable := pool("usdc-usdt", 5, 1e7)
	stable.TokenA = types.Token{Symbol: "USDT", CoinGeckoID: "tether"}

	out := AttachVolatility(context.Background(), src, []types.Pool{solUSDC, jupSOL, stable}, 30)

	require.Len(t, out, 2)
	assert.Equal(t, types.PoolID("sol-usdc"), out[0].ID)
	assert.Greater(t, out[0].TokenA.Volatility, 0.0)
	assert.Zero(t, out[0].TokenB.Volatility)
	assert.Equal(t, types.PoolID("usdc-usdt"), out[1].ID)
	assert.Equal(t, []string{"jupiter-exchange-solana", "solana"}, src.calls)
}
