package math

import (
	"fmt"
	"math/big"
)

// BasisPoints is a fraction in units of 1/100 of a percent.
type BasisPoints uint16

// MaxBasisPoints is 100%.
const MaxBasisPoints BasisPoints = 10000

var bpsDenominator = big.NewInt(int64(MaxBasisPoints))

// Validate checks bps is within [0, 10000].
func (bps BasisPoints) Validate() error {
	if bps > MaxBasisPoints {
		return fmt.Errorf("%w: %d", ErrInvalidBasisPoints, bps)
	}
	return nil
}

// Percent renders bps as a percentage, e.g. 50 -> "0.5%".
func (bps BasisPoints) Percent() string {
	return FromBaseUnits(int64(bps), 2).Format(2) + "%"
}

// ParseBasisPointsPercent reads a percentage such as "0.5" into 50 bps.
func ParseBasisPointsPercent(text string) (BasisPoints, error) {
	a, err := ParseNonNegative(text, 2)
	if err != nil {
		return 0, err
	}
	if a.Cmp(FromWhole(100, 2)) > 0 {
		return 0, fmt.Errorf("%w: %s%%", ErrInvalidBasisPoints, text)
	}
	return BasisPoints(a.m().Int64()), nil
}

// ApplySlippage returns the minimum acceptable amount for an expected amount:
// expected * (10000 - bps) / 10000, truncated at expected's scale.
func ApplySlippage(expected Amount, bps BasisPoints) (Amount, error) {
	if err := bps.Validate(); err != nil {
		return Amount{}, err
	}
	if expected.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %s", ErrNegativeAmount, expected.String())
	}

	m := new(big.Int).Mul(expected.m(), big.NewInt(int64(MaxBasisPoints-bps)))
	m.Quo(m, bpsDenominator)
	return Amount{mantissa: m, decimals: expected.decimals}, nil
}

// InvertSlippage returns the maximum amount for "max in" contexts:
// expected * 10000 / (10000 - bps), truncated at expected's scale.
func InvertSlippage(expected Amount, bps BasisPoints) (Amount, error) {
	if err := bps.Validate(); err != nil {
		return Amount{}, err
	}
	if bps == MaxBasisPoints {
		return Amount{}, fmt.Errorf("%w: slippage of %s", ErrDivisionByZero, bps.Percent())
	}
	if expected.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %s", ErrNegativeAmount, expected.String())
	}

	m := new(big.Int).Mul(expected.m(), bpsDenominator)
	m.Quo(m, big.NewInt(int64(MaxBasisPoints-bps)))
	return Amount{mantissa: m, decimals: expected.decimals}, nil
}
