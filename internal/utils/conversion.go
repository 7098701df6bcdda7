/*
This file contains conversions between raw on-chain integer amounts (lamports, SPL base units)
and display floats, done through SDK decimals to avoid float rounding on large balances.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"
)

const (
	// SOL_DECIMALS is the number of decimals of native SOL (1 SOL = 1e9 lamports).
	SOL_DECIMALS = 9
	// MAX_DECIMALS bounds token decimals accepted by the conversions.
	MAX_DECIMALS = 18
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals  = errors.New("decimals are invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrAmountMalformed  = errors.New("amount is not a base-10 integer")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

func validateDecimals(decimals int) error {
	if decimals < 0 || decimals > MAX_DECIMALS {
		return fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidDecimals, decimals, MAX_DECIMALS)
	}
	return nil
}

// ParseRawAmount parses a raw base-unit amount such as the "amount" field of a token account.
func ParseRawAmount(raw string) (sdkmath.Int, error) {
	raw = strings.TrimSpace(raw)
	if !isBase10Integer(raw) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrAmountMalformed, raw)
	}
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrAmountMalformed, raw)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return amount, nil
}

func isBase10Integer(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RawAmountToFloat64 converts a base-unit amount to its UI value for the given decimals.
func RawAmountToFloat64(amount sdkmath.Int, decimals int) (float64, error) {
	if err := validateDecimals(decimals); err != nil {
		return 0, err
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	factor := sdkmath.LegacyNewDec(10).Power(uint64(decimals))
	result := sdkmath.LegacyNewDecFromInt(amount).Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// Float64ToRawAmount converts a UI value to base units, truncating below the last decimal.
func Float64ToRawAmount(amount float64, decimals int) (sdkmath.Int, error) {
	if err := validateDecimals(decimals); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}

	// Use string conversion to avoid floating point precision issues
	amountStr := fmt.Sprintf("%.*f", decimals, amount)
	decAmount, err := sdkmath.LegacyNewDecFromStr(amountStr)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	factor := sdkmath.LegacyNewDec(10).Power(uint64(decimals))
	return decAmount.Mul(factor).TruncateInt(), nil
}

// LamportsToSOL converts a lamport balance to SOL.
func LamportsToSOL(lamports uint64) (float64, error) {
	return RawAmountToFloat64(sdkmath.NewIntFromUint64(lamports), SOL_DECIMALS)
}
