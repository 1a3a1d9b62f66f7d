package signer

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrWireConversion = errors.New("fixed-point wire conversion failed")
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// WireDecimals is the fixed decimal scale of the settlement contracts. It
// must match the deployed contracts exactly: a mismatch produces a validly
// signed trade of the wrong magnitude.
const WireDecimals = 18

// DecimalToWireInt converts a decimal value to the signed 1e18 fixed-point
// integer representation used in trade encoding.
func DecimalToWireInt(d decimal.Decimal) (*big.Int, error) {
	dec, err := sdkmath.LegacyNewDecFromStr(d.Truncate(WireDecimals).String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWireConversion, d.String(), err)
	}
	// LegacyDec stores the value scaled by 1e18 already.
	return dec.BigInt(), nil
}

// DecimalToWireUint converts a non-negative decimal value to the unsigned
// 1e18 fixed-point integer representation.
func DecimalToWireUint(d decimal.Decimal) (*big.Int, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, d.String())
	}
	return DecimalToWireInt(d)
}
