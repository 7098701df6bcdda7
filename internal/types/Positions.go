/*

This file contains the types for wallet holdings and portfolio optimization results.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// TokenHolding is a wallet balance of one token, raw and in display units.
type TokenHolding struct {
	Mint     string      `json:"mint"`
	Symbol   string      `json:"symbol,omitempty"`
	Account  string      `json:"account,omitempty"` // token account address; empty for native SOL
	Amount   sdkmath.Int `json:"amount"`            // base units (lamports for SOL)
	Decimals int         `json:"decimals"`
	UIAmount float64     `json:"ui_amount"`
	PriceUSD float64     `json:"price_usd,omitempty"`
	ValueUSD float64     `json:"value_usd,omitempty"`
	Weight   float64     `json:"weight,omitempty"` // share of portfolio value, 0..1
}

// WalletBalance is the native SOL balance of an address.
type WalletBalance struct {
	Owner    string  `json:"owner"`
	Lamports uint64  `json:"lamports"`
	SOL      float64 `json:"sol"`
}

// Portfolio is a valued snapshot of a wallet.
type Portfolio struct {
	Owner         string         `json:"owner"`
	Holdings      []TokenHolding `json:"holdings"`
	TotalValueUSD float64        `json:"total_value_usd"`
	UnpricedMints []string       `json:"unpriced_mints,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Position is capital currently placed in a pool.
type Position struct {
	PoolID   PoolID  `json:"pool_id"`
	ValueUSD float64 `json:"value_usd"`
	AgeDays  int     `json:"age_days"`
}

// ActionType is the kind of rebalance step.
type ActionType string

const (
	ActionDeposit  ActionType = "DEPOSIT"
	ActionWithdraw ActionType = "WITHDRAW"
)

// RebalanceAction moves AmountUSD into or out of a pool.
type RebalanceAction struct {
	Type       ActionType `json:"type"`
	PoolID     PoolID     `json:"pool_id"`
	PoolName   string     `json:"pool_name"`
	CurrentUSD float64    `json:"current_usd"`
	TargetUSD  float64    `json:"target_usd"`
	AmountUSD  float64    `json:"amount_usd"`
}

// OptimizationResult is the outcome of one optimization run.
type OptimizationResult struct {
	ID                 string             `json:"id"`
	CreatedAt          time.Time          `json:"created_at"`
	TotalValueUSD      float64            `json:"total_value_usd"`
	CurrentAllocations map[PoolID]float64 `json:"current_allocations"`
	TargetAllocations  map[PoolID]float64 `json:"target_allocations"`
	Actions            []RebalanceAction  `json:"actions"`
	ExpectedAPRBefore  float64            `json:"expected_apr_before"`
	ExpectedAPRAfter   float64            `json:"expected_apr_after"`
	Skipped            []PoolID           `json:"skipped,omitempty"` // pools whose action was reduced by a per-run limit
}
