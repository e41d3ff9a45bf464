package math

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"TestParse", testParse},
		{"TestParseRejects", testParseRejects},
		{"TestParseNonNegative", testParseNonNegative},
		{"TestRoundTrip", testRoundTrip},
		{"TestRescale", testRescale},
		{"TestRescaleRound", testRescaleRound},
		{"TestAddSub", testAddSub},
		{"TestMul", testMul},
		{"TestDiv", testDiv},
		{"TestCmp", testCmp},
		{"TestImmutable", testImmutable},
		{"TestDisplayString", testDisplayString},
		{"TestDecimalInterop", testDecimalInterop},
		{"TestUint256", testUint256},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.fn)
	}
}

func testParse(t *testing.T) {
	tests := []struct {
		text     string
		decimals uint8
		mantissa string
	}{
		{"1", 6, "1000000"},
		{"1.5", 6, "1500000"},
		{"0.000001", 6, "1"},
		{".5", 2, "50"},
		{"1.", 2, "100"},
		{"-2.25", 2, "-225"},
		{"+3", 0, "3"},
		{"123456789012345678901234567890.123456789012345678", 18, "123456789012345678901234567890123456789012345678"},
	}

	for _, tt := range tests {
		a, err := Parse(tt.text, tt.decimals)
		require.NoError(t, err, tt.text)
		assert.Equal(t, tt.mantissa, a.Mantissa().String(), tt.text)
		assert.Equal(t, tt.decimals, a.Decimals())
	}
}

func testParseRejects(t *testing.T) {
	for _, text := range []string{"", ".", "-", "+", "1.2.3", "1e18", " 1", "1,000", "abc", "--1", "0x10"} {
		_, err := Parse(text, 18)
		assert.ErrorIs(t, err, ErrParse, "%q", text)
	}

	// over-precise input is rejected, not rounded
	_, err := Parse("1.0000001", 6)
	assert.ErrorIs(t, err, ErrParse)
	_, err = Parse("0.5", 0)
	assert.ErrorIs(t, err, ErrParse)
}

func testParseNonNegative(t *testing.T) {
	_, err := ParseNonNegative("-1", 6)
	assert.ErrorIs(t, err, ErrParse)

	a, err := ParseNonNegative("0", 6)
	require.NoError(t, err)
	assert.True(t, a.IsZero())
}

func testRoundTrip(t *testing.T) {
	tests := []struct {
		text      string
		decimals  uint8
		canonical string
	}{
		{"1.500000", 6, "1.5"},
		{"007.50", 6, "7.5"},
		{"-0.0", 6, "0"},
		{"+12", 0, "12"},
		{".25", 2, "0.25"},
		{"100", 18, "100"},
		{"0.000000000000000001", 18, "0.000000000000000001"},
		{"-42.1", 3, "-42.1"},
	}

	for _, tt := range tests {
		a, err := Parse(tt.text, tt.decimals)
		require.NoError(t, err)
		assert.Equal(t, tt.canonical, a.Format(tt.decimals), tt.text)
	}
}

func testRescale(t *testing.T) {
	x := MustParse("1.234567", 6)

	up := x.Rescale(18)
	assert.Equal(t, "1234567000000000000", up.Mantissa().String())
	assert.True(t, up.Rescale(6).Equal(x))

	// 6 -> 18 -> 6 is lossless
	assert.Equal(t, x.String(), x.Rescale(18).Rescale(6).String())

	// down then up keeps the truncation
	down := x.Rescale(2)
	assert.Equal(t, "1.23", down.String())
	assert.Equal(t, "1.230000", down.Rescale(6).String())
	assert.False(t, down.Rescale(6).Equal(x))

	// truncation is toward zero for negatives
	assert.Equal(t, "-1.23", x.Neg().Rescale(2).String())
}

func testRescaleRound(t *testing.T) {
	tests := []struct {
		text string
		mode RoundingMode
		want string
	}{
		{"1.235", RoundTowardZero, "1.23"},
		{"1.235", RoundHalfUp, "1.24"},
		{"1.234", RoundHalfUp, "1.23"},
		{"1.231", RoundAwayFromZero, "1.24"},
		{"1.230", RoundAwayFromZero, "1.23"},
		{"-1.235", RoundHalfUp, "-1.24"},
		{"-1.231", RoundAwayFromZero, "-1.24"},
		{"-1.239", RoundTowardZero, "-1.23"},
	}

	for _, tt := range tests {
		got := MustParse(tt.text, 3).RescaleRound(2, tt.mode)
		assert.Equal(t, tt.want, got.String(), "%s %s", tt.text, tt.mode)
	}
}

func testAddSub(t *testing.T) {
	usdc := MustParse("1.5", 6)
	weth := MustParse("0.25", 18)

	sum := usdc.Add(weth)
	assert.Equal(t, uint8(18), sum.Decimals())
	assert.Equal(t, "1.75", sum.Format(18))

	diff := weth.Sub(usdc)
	assert.Equal(t, uint8(18), diff.Decimals())
	assert.Equal(t, "-1.25", diff.Format(18))
}

func testMul(t *testing.T) {
	amount := MustParse("2.5", 6)
	price := MustParse("1800.123456789", 18)

	// 2.5 * 1800.123456789 = 4500.3086419725
	got := amount.Mul(price, 6)
	assert.Equal(t, "4500.308641", got.String())

	got = amount.MulRound(price, 6, RoundHalfUp)
	assert.Equal(t, "4500.308642", got.String())

	// widening result scale is exact
	got = amount.Mul(price, 30)
	assert.Equal(t, "4500.3086419725", got.Format(30))

	// the exact product scale exceeds uint8
	big1 := MustParse("1", 200)
	assert.Equal(t, "1", big1.Mul(big1, 18).Format(18))
}

func testDiv(t *testing.T) {
	a := MustParse("10", 18)
	b := MustParse("3", 6)

	q, err := a.Div(b, 6)
	require.NoError(t, err)
	assert.Equal(t, "3.333333", q.String())

	q, err = a.DivRound(MustParse("6", 0), 2, RoundHalfUp)
	require.NoError(t, err)
	assert.Equal(t, "1.67", q.String())

	q, err = a.Neg().Div(b, 2)
	require.NoError(t, err)
	assert.Equal(t, "-3.33", q.String())

	// result scale smaller than the dividend's
	q, err = MustParse("1", 18).Div(MustParse("4", 0), 1)
	require.NoError(t, err)
	assert.Equal(t, "0.2", q.String())

	_, err = a.Div(Zero(6), 6)
	assert.True(t, errors.Is(err, ErrDivisionByZero))
}

func testCmp(t *testing.T) {
	tests := []struct {
		x    Amount
		y    Amount
		want int
	}{
		{MustParse("1", 6), MustParse("1", 18), 0},
		{MustParse("1.000001", 6), MustParse("1.000000999999999999", 18), 1},
		{MustParse("-1", 6), MustParse("0", 18), -1},
		{Amount{}, Zero(18), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Cmp(tt.x, tt.y), "%s vs %s", tt.x, tt.y)
	}

	assert.Equal(t, "1", MustParse("1", 6).Min(MustParse("2", 0)).Format(6))
	assert.Equal(t, "2", MustParse("1", 6).Max(MustParse("2", 0)).Format(6))
}

func testImmutable(t *testing.T) {
	m := big.NewInt(100)
	a := NewAmount(m, 2)
	m.SetInt64(5)
	assert.Equal(t, "1.00", a.String())

	out := a.Mantissa()
	out.SetInt64(7)
	assert.Equal(t, "1.00", a.String())

	b := a.Add(FromWhole(1, 2))
	assert.Equal(t, "1.00", a.String())
	assert.Equal(t, "2.00", b.String())
}

func testDisplayString(t *testing.T) {
	tests := []struct {
		text   string
		digits uint8
		want   string
	}{
		{"1234567.891", 2, "1,234,567.89"},
		{"-1000", 2, "-1,000"},
		{"999.5", 0, "999"},
		{"0.1", 4, "0.1"},
		{"123456", 0, "123,456"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MustParse(tt.text, 6).DisplayString(tt.digits), tt.text)
	}
}

func testDecimalInterop(t *testing.T) {
	a := MustParse("1234.5678", 8)
	d := a.ToDecimal()
	assert.True(t, d.Equal(decimal.RequireFromString("1234.5678")))

	back, err := FromDecimal(d, 8)
	require.NoError(t, err)
	assert.True(t, back.Equal(a))

	_, err = FromDecimal(decimal.RequireFromString("0.001"), 2)
	assert.ErrorIs(t, err, ErrPrecisionLoss)
}

func testUint256(t *testing.T) {
	a := MustParse("1.5", 18)
	v, err := a.ToUint256()
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.ToBig().String())
	assert.True(t, FromUint256(v, 18).Equal(a))

	_, err = a.Neg().ToUint256()
	assert.ErrorIs(t, err, ErrOutOfRange)

	huge := NewAmount(new(big.Int).Lsh(big.NewInt(1), 256), 0)
	_, err = huge.ToUint256()
	assert.ErrorIs(t, err, ErrOutOfRange)
}
