package math

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

var (
	ErrParse              = errors.New("invalid decimal amount")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrPrecisionLoss      = errors.New("value exceeds target precision")
	ErrOutOfRange         = errors.New("value out of range")
	ErrNegativeAmount     = errors.New("negative amount")
	ErrInvalidBasisPoints = errors.New("basis points out of range")
)

// RoundingMode selects how digits are dropped when precision is reduced.
type RoundingMode int

const (
	// RoundTowardZero truncates. It is the default everywhere a mode is not passed.
	RoundTowardZero RoundingMode = iota
	// RoundHalfUp rounds to nearest, ties away from zero.
	RoundHalfUp
	// RoundAwayFromZero rounds any discarded remainder up in magnitude.
	RoundAwayFromZero
)

func (m RoundingMode) String() string {
	switch m {
	case RoundTowardZero:
		return "toward-zero"
	case RoundHalfUp:
		return "half-up"
	case RoundAwayFromZero:
		return "away-from-zero"
	default:
		return fmt.Sprintf("RoundingMode(%d)", int(m))
	}
}

// Amount is an exact fixed-point quantity: mantissa / 10^decimals.
//
// Amounts are immutable. Every operation returns a new value and the
// mantissa is copied on the way in and out, so callers can never alias it.
// The zero value is 0 at 0 decimals.
type Amount struct {
	mantissa *big.Int
	decimals uint8
}

var (
	pow10Mu    sync.RWMutex
	pow10Cache = map[uint]*big.Int{}
)

// pow10 returns 10^n. The returned value is shared and must not be mutated.
func pow10(n uint) *big.Int {
	pow10Mu.RLock()
	p, ok := pow10Cache[n]
	pow10Mu.RUnlock()
	if ok {
		return p
	}

	p = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	pow10Mu.Lock()
	pow10Cache[n] = p
	pow10Mu.Unlock()
	return p
}

// NewAmount creates an Amount from a raw mantissa. A nil mantissa is zero.
func NewAmount(mantissa *big.Int, decimals uint8) Amount {
	if mantissa == nil {
		return Zero(decimals)
	}
	return Amount{mantissa: new(big.Int).Set(mantissa), decimals: decimals}
}

// FromBaseUnits creates an Amount whose mantissa is units, e.g. 1500000 at 6 decimals is 1.5.
func FromBaseUnits(units int64, decimals uint8) Amount {
	return Amount{mantissa: big.NewInt(units), decimals: decimals}
}

// FromWhole creates an Amount equal to the integer n.
func FromWhole(n int64, decimals uint8) Amount {
	m := new(big.Int).Mul(big.NewInt(n), pow10(uint(decimals)))
	return Amount{mantissa: m, decimals: decimals}
}

// Zero returns 0 at the given scale.
func Zero(decimals uint8) Amount {
	return Amount{mantissa: new(big.Int), decimals: decimals}
}

// Parse reads a decimal literal such as "-12.5" at the given scale.
//
// Literals with more fractional digits than decimals are rejected rather
// than rounded. Exponents, whitespace and digit separators are not accepted.
func Parse(text string, decimals uint8) (Amount, error) {
	s := text
	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Amount{}, fmt.Errorf("%w: %q", ErrParse, text)
	}
	// isDigits also rejects a second '.'
	if !isDigits(whole) || !isDigits(frac) {
		return Amount{}, fmt.Errorf("%w: %q", ErrParse, text)
	}
	if len(frac) > int(decimals) {
		return Amount{}, fmt.Errorf("%w: %q has %d fractional digits, at most %d allowed",
			ErrParse, text, len(frac), decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	m, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrParse, text)
	}
	if negative {
		m.Neg(m)
	}
	return Amount{mantissa: m, decimals: decimals}, nil
}

// ParseNonNegative is Parse for fields that only accept amounts >= 0.
func ParseNonNegative(text string, decimals uint8) (Amount, error) {
	a, err := Parse(text, decimals)
	if err != nil {
		return Amount{}, err
	}
	if a.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %q is negative", ErrParse, text)
	}
	return a, nil
}

// MustParse is Parse for constants and fixtures. It panics on error.
func MustParse(text string, decimals uint8) Amount {
	a, err := Parse(text, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (a Amount) m() *big.Int {
	if a.mantissa == nil {
		return new(big.Int)
	}
	return a.mantissa
}

// Mantissa returns a copy of the raw integer value.
func (a Amount) Mantissa() *big.Int {
	return new(big.Int).Set(a.m())
}

// Decimals returns the implied scale.
func (a Amount) Decimals() uint8 {
	return a.decimals
}

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int {
	return a.m().Sign()
}

func (a Amount) IsZero() bool     { return a.Sign() == 0 }
func (a Amount) IsNegative() bool { return a.Sign() < 0 }
func (a Amount) IsPositive() bool { return a.Sign() > 0 }

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{mantissa: new(big.Int).Neg(a.m()), decimals: a.decimals}
}

// Abs returns |a|.
func (a Amount) Abs() Amount {
	return Amount{mantissa: new(big.Int).Abs(a.m()), decimals: a.decimals}
}

// Rescale converts a to newDecimals, truncating toward zero when precision drops.
func (a Amount) Rescale(newDecimals uint8) Amount {
	return a.RescaleRound(newDecimals, RoundTowardZero)
}

// RescaleRound converts a to newDecimals using mode when precision drops.
// Increasing precision is always exact.
func (a Amount) RescaleRound(newDecimals uint8, mode RoundingMode) Amount {
	switch {
	case newDecimals == a.decimals:
		return NewAmount(a.m(), a.decimals)
	case newDecimals > a.decimals:
		m := new(big.Int).Mul(a.m(), pow10(uint(newDecimals-a.decimals)))
		return Amount{mantissa: m, decimals: newDecimals}
	default:
		m := quoRound(a.m(), pow10(uint(a.decimals-newDecimals)), mode)
		return Amount{mantissa: m, decimals: newDecimals}
	}
}

// quoRound returns x/y rounded by mode. y must be non-zero.
func quoRound(x, y *big.Int, mode RoundingMode) *big.Int {
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	if r.Sign() == 0 {
		return q
	}

	// sign of the true quotient
	sign := x.Sign() * y.Sign()
	bump := false
	switch mode {
	case RoundAwayFromZero:
		bump = true
	case RoundHalfUp:
		twice := new(big.Int).Abs(r)
		twice.Lsh(twice, 1)
		bump = twice.Cmp(new(big.Int).Abs(y)) >= 0
	}
	if bump {
		q.Add(q, big.NewInt(int64(sign)))
	}
	return q
}

func maxDecimals(a, b Amount) uint8 {
	if a.decimals > b.decimals {
		return a.decimals
	}
	return b.decimals
}

// Add returns a + b at the larger of the two scales.
func (a Amount) Add(b Amount) Amount {
	d := maxDecimals(a, b)
	m := new(big.Int).Add(a.Rescale(d).m(), b.Rescale(d).m())
	return Amount{mantissa: m, decimals: d}
}

// Sub returns a - b at the larger of the two scales.
func (a Amount) Sub(b Amount) Amount {
	d := maxDecimals(a, b)
	m := new(big.Int).Sub(a.Rescale(d).m(), b.Rescale(d).m())
	return Amount{mantissa: m, decimals: d}
}

// Mul returns a * b at resultDecimals, truncating toward zero.
func (a Amount) Mul(b Amount, resultDecimals uint8) Amount {
	return a.MulRound(b, resultDecimals, RoundTowardZero)
}

// MulRound returns a * b at resultDecimals using mode.
func (a Amount) MulRound(b Amount, resultDecimals uint8, mode RoundingMode) Amount {
	// the exact product carries a.decimals+b.decimals, which can exceed uint8
	exact := uint(a.decimals) + uint(b.decimals)
	m := new(big.Int).Mul(a.m(), b.m())
	target := uint(resultDecimals)
	if target >= exact {
		m.Mul(m, pow10(target-exact))
	} else {
		m = quoRound(m, pow10(exact-target), mode)
	}
	return Amount{mantissa: m, decimals: resultDecimals}
}

// Div returns a / b at resultDecimals, truncating toward zero.
func (a Amount) Div(b Amount, resultDecimals uint8) (Amount, error) {
	return a.DivRound(b, resultDecimals, RoundTowardZero)
}

// DivRound returns a / b at resultDecimals using mode.
func (a Amount) DivRound(b Amount, resultDecimals uint8, mode RoundingMode) (Amount, error) {
	if b.IsZero() {
		return Amount{}, ErrDivisionByZero
	}

	// a.m/10^da / (b.m/10^db) * 10^rd = a.m * 10^(rd+db-da) / b.m
	num := new(big.Int).Set(a.m())
	den := new(big.Int).Set(b.m())
	shift := int(resultDecimals) + int(b.decimals) - int(a.decimals)
	if shift >= 0 {
		num.Mul(num, pow10(uint(shift)))
	} else {
		den.Mul(den, pow10(uint(-shift)))
	}
	return Amount{mantissa: quoRound(num, den, mode), decimals: resultDecimals}, nil
}

// MulFrac returns a * num / den at a's scale, truncating toward zero.
func (a Amount) MulFrac(num, den int64) (Amount, error) {
	if den == 0 {
		return Amount{}, ErrDivisionByZero
	}
	m := new(big.Int).Mul(a.m(), big.NewInt(num))
	m.Quo(m, big.NewInt(den))
	return Amount{mantissa: m, decimals: a.decimals}, nil
}

// Cmp compares a and b after lifting both to the larger scale.
func (a Amount) Cmp(b Amount) int {
	d := maxDecimals(a, b)
	return a.Rescale(d).m().Cmp(b.Rescale(d).m())
}

// Cmp compares two amounts, see Amount.Cmp.
func Cmp(a, b Amount) int {
	return a.Cmp(b)
}

// Equal reports whether a and b are the same value, regardless of scale.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

func (a Amount) LessThan(b Amount) bool    { return a.Cmp(b) < 0 }
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return NewAmount(a.m(), a.decimals)
	}
	return NewAmount(b.m(), b.decimals)
}

// Max returns the larger of a and b.
func (a Amount) Max(b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return NewAmount(a.m(), a.decimals)
	}
	return NewAmount(b.m(), b.decimals)
}
