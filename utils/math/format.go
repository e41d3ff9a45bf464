package math

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// String returns the exact value with all of a's fractional digits, e.g. "1.500000".
func (a Amount) String() string {
	return a.text(a.decimals, false)
}

// Format returns the canonical plain form truncated to fractionDigits:
// no grouping, trailing fractional zeros trimmed, "0" never signed.
func (a Amount) Format(fractionDigits uint8) string {
	return a.text(fractionDigits, true)
}

// DisplayString is Format with thousands grouping of the integer part.
// It is for presentation only; nothing should parse its output.
func (a Amount) DisplayString(fractionDigits uint8) string {
	s := a.Format(fractionDigits)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func (a Amount) text(fractionDigits uint8, trim bool) string {
	v := a
	if fractionDigits < a.decimals {
		v = a.Rescale(fractionDigits)
	}

	abs := new(big.Int).Abs(v.m()).String()
	d := int(v.decimals)
	if len(abs) <= d {
		abs = strings.Repeat("0", d-len(abs)+1) + abs
	}
	whole, frac := abs[:len(abs)-d], abs[len(abs)-d:]
	if trim {
		frac = strings.TrimRight(frac, "0")
	}

	s := whole
	if frac != "" {
		s += "." + frac
	}
	if v.IsNegative() {
		s = "-" + s
	}
	return s
}

// ToDecimal converts a to a shopspring decimal without loss.
func (a Amount) ToDecimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.m(), -int32(a.decimals))
}

// FromDecimal converts d to an Amount at the given scale. Values that need
// more fractional digits than decimals fail with ErrPrecisionLoss.
func FromDecimal(d decimal.Decimal, decimals uint8) (Amount, error) {
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %s at %d decimals", ErrPrecisionLoss, d.String(), decimals)
	}
	return Amount{mantissa: shifted.BigInt(), decimals: decimals}, nil
}

// ToUint256 returns the mantissa as an on-chain uint256.
func (a Amount) ToUint256() (*uint256.Int, error) {
	if a.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrOutOfRange, a.String())
	}
	v, overflow := uint256.FromBig(a.m())
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows uint256", ErrOutOfRange, a.String())
	}
	return v, nil
}

// FromUint256 wraps an on-chain integer read at the given token scale.
func FromUint256(v *uint256.Int, decimals uint8) Amount {
	if v == nil {
		return Zero(decimals)
	}
	return Amount{mantissa: v.ToBig(), decimals: decimals}
}
