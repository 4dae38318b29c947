package units

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MaxDecimals is the largest precision whose unit (10^decimals) fits in 256 bits.
const MaxDecimals = 77

var (
	ErrNegative     = errors.New("units: amount must not be negative")
	ErrTooPrecise   = errors.New("units: amount has more fractional digits than the token supports")
	ErrOutOfRange   = errors.New("units: amount does not fit in 256 bits")
	ErrBadPrecision = fmt.Errorf("units: decimals must be at most %d", MaxDecimals)
)

// Format renders a base-unit amount as a human readable decimal string,
// e.g. 1500000 with 6 decimals becomes "1.5".
func Format(amount *uint256.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals)).String()
}

// Parse converts a human readable decimal string into base units.
func Parse(s string, decimals uint8) (*uint256.Int, error) {
	if decimals > MaxDecimals {
		return nil, ErrBadPrecision
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("units: parse %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, ErrNegative
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, ErrTooPrecise
	}
	z, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, ErrOutOfRange
	}
	return z, nil
}

// One returns 10^decimals, the base-unit size of a single whole token.
func One(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}

// Float approximates amount as a float64 for gauges and counters. It is
// never used for accounting.
func Float(amount *uint256.Int) float64 {
	if amount == nil {
		return 0
	}
	return decimal.NewFromBigInt(amount.ToBig(), 0).InexactFloat64()
}
