// Package rebalance solves for the trade that moves a leveraged position to
// a target assets-to-liabilities (AL) ratio.
//
// Assets and liabilities are both valued in collateral units. Prices are
// debt token per collateral token: DexPrice is what a swap executes at,
// OraclePrice is what the lending market values positions at. All
// intermediate math runs at InternalDecimals and truncates toward zero.
package rebalance

import (
	"errors"
	"fmt"

	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
)

// InternalDecimals is the scale used for ratios and intermediate values.
const InternalDecimals = 18

var (
	ErrInvalidRebalanceParam = errors.New("invalid rebalance parameter")
	ErrUnsolvableTarget      = errors.New("rebalance target is unsolvable")
)

// Direction says which way a rebalance moves the AL ratio.
type Direction int

const (
	// Down adds debt and collateral, lowering the AL ratio.
	Down Direction = iota
	// Up sells collateral to repay debt, raising the AL ratio.
	Up
)

func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// AssetLiabilityState is a position valued in collateral units.
type AssetLiabilityState struct {
	Assets      math.Amount
	Liabilities math.Amount
}

// Ratio returns assets / liabilities at InternalDecimals.
func (s AssetLiabilityState) Ratio() (math.Amount, error) {
	return s.Assets.Div(s.Liabilities, InternalDecimals)
}

// Params are the inputs to a solve. Amounts and prices may carry any
// number of decimals up to InternalDecimals; finer values are rejected
// with ErrInvalidRebalanceParam unless the extra digits are zero.
type Params struct {
	State       AssetLiabilityState
	TargetAL    math.Amount
	DexPrice    math.Amount
	OraclePrice math.Amount
	Slippage    math.BasisPoints
	Collateral  types.Token
	Debt        types.Token
}

// Plan is a solved rebalance. Supply and Withdraw are in collateral
// decimals, Borrow and Repay in debt decimals. Only the pair matching
// Direction is set; the other two are zero.
type Plan struct {
	Direction      Direction
	SupplyAmount   math.Amount
	BorrowAmount   math.Amount
	WithdrawAmount math.Amount
	RepayAmount    math.Amount
	// CurrentAL is zero when the position has no liabilities.
	CurrentAL   math.Amount
	TargetAL    math.Amount
	ProjectedAL math.Amount
}

type normalized struct {
	assets, liabilities math.Amount
	target              math.Amount
	dex, oracle         math.Amount
	current             math.Amount
}

var one = math.FromWhole(1, InternalDecimals)

// internal rescales a to InternalDecimals, refusing to drop nonzero digits.
func internal(name string, a math.Amount) (math.Amount, error) {
	r := a.Rescale(InternalDecimals)
	if !r.Equal(a) {
		return r, fmt.Errorf("%w: %s %s has more than %d significant decimals",
			ErrInvalidRebalanceParam, name, a, InternalDecimals)
	}
	return r, nil
}

func normalize(p Params) (normalized, error) {
	var n normalized
	for _, f := range []struct {
		name string
		in   math.Amount
		out  *math.Amount
	}{
		{"assets", p.State.Assets, &n.assets},
		{"liabilities", p.State.Liabilities, &n.liabilities},
		{"target AL", p.TargetAL, &n.target},
		{"dex price", p.DexPrice, &n.dex},
		{"oracle price", p.OraclePrice, &n.oracle},
	} {
		v, err := internal(f.name, f.in)
		if err != nil {
			return n, err
		}
		*f.out = v
	}

	if n.assets.IsNegative() || n.liabilities.IsNegative() {
		return n, fmt.Errorf("%w: negative position", ErrInvalidRebalanceParam)
	}
	if err := p.Slippage.Validate(); err != nil {
		return n, fmt.Errorf("%w: %w", ErrInvalidRebalanceParam, err)
	}
	if n.target.Cmp(one) <= 0 {
		return n, fmt.Errorf("%w: target AL %s must be above 1", ErrInvalidRebalanceParam, p.TargetAL)
	}
	if n.dex.Sign() <= 0 {
		return n, fmt.Errorf("%w: dex price %s must be positive", ErrInvalidRebalanceParam, p.DexPrice)
	}
	if n.oracle.IsZero() {
		return n, fmt.Errorf("%w: oracle price", math.ErrDivisionByZero)
	}
	if n.oracle.IsNegative() {
		return n, fmt.Errorf("%w: oracle price %s must be positive", ErrInvalidRebalanceParam, p.OraclePrice)
	}

	if !n.liabilities.IsZero() {
		current, err := n.assets.Div(n.liabilities, InternalDecimals)
		if err != nil {
			return n, err
		}
		n.current = current
	}
	return n, nil
}

// SolveDown computes how much collateral to supply, and debt to borrow for
// it, so the position lands on TargetAL. It requires 1 < TargetAL < current
// AL; a position without liabilities has an unbounded current ratio.
//
// With net = assets - target*liabilities and
// scaled = target * dex / oracle * 10000 / (10000 - slippage), the supply is
// net / (scaled - 1). The borrow buys that supply at the dex price, less
// slippage, so the swap under-delivers rather than over-commits debt.
func SolveDown(p Params) (Plan, error) {
	n, err := normalize(p)
	if err != nil {
		return Plan{}, err
	}
	if !n.liabilities.IsZero() && n.target.Cmp(n.current) >= 0 {
		return Plan{}, fmt.Errorf("%w: target AL %s must be below current AL %s",
			ErrInvalidRebalanceParam, n.target.Format(InternalDecimals), n.current.Format(InternalDecimals))
	}

	net := n.assets.Sub(n.target.Mul(n.liabilities, InternalDecimals))
	if net.Sign() <= 0 {
		return Plan{}, fmt.Errorf("%w: no net assets above target", ErrUnsolvableTarget)
	}

	// keep the full product scale before dividing by the oracle price
	scaled, err := n.target.Mul(n.dex, 2*InternalDecimals).Div(n.oracle, InternalDecimals)
	if err != nil {
		return Plan{}, err
	}
	scaled, err = math.InvertSlippage(scaled, p.Slippage)
	if err != nil {
		return Plan{}, err
	}

	denom := scaled.Sub(one)
	if denom.Sign() <= 0 {
		return Plan{}, fmt.Errorf("%w: price-scaled target %s is not above 1",
			ErrUnsolvableTarget, scaled.Format(InternalDecimals))
	}
	supply, err := net.Div(denom, InternalDecimals)
	if err != nil {
		return Plan{}, err
	}

	borrow, err := math.ApplySlippage(supply.Mul(n.dex, InternalDecimals), p.Slippage)
	if err != nil {
		return Plan{}, err
	}

	// debt added to liabilities, valued at the oracle
	added, err := supply.Mul(n.dex, 2*InternalDecimals).Div(n.oracle, InternalDecimals)
	if err != nil {
		return Plan{}, err
	}
	projected, err := n.assets.Add(supply).Div(n.liabilities.Add(added), InternalDecimals)
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		Direction:      Down,
		SupplyAmount:   supply.Rescale(p.Collateral.Decimals),
		BorrowAmount:   borrow.Rescale(p.Debt.Decimals),
		WithdrawAmount: math.Zero(p.Collateral.Decimals),
		RepayAmount:    math.Zero(p.Debt.Decimals),
		CurrentAL:      n.current,
		TargetAL:       n.target,
		ProjectedAL:    projected,
	}, nil
}

// SolveUp computes how much collateral to withdraw and sell, and debt to
// repay with the proceeds, so the position lands on TargetAL. It requires
// 1 < current AL < TargetAL.
//
// With k = dex * (10000 - slippage) / 10000 / oracle, the withdrawal is
// (target*liabilities - assets) / (target*k - 1).
func SolveUp(p Params) (Plan, error) {
	n, err := normalize(p)
	if err != nil {
		return Plan{}, err
	}
	if n.liabilities.IsZero() {
		return Plan{}, fmt.Errorf("%w: no liabilities to repay", ErrInvalidRebalanceParam)
	}
	if n.current.Cmp(one) <= 0 {
		return Plan{}, fmt.Errorf("%w: current AL %s is not above 1",
			ErrInvalidRebalanceParam, n.current.Format(InternalDecimals))
	}
	if n.target.Cmp(n.current) <= 0 {
		return Plan{}, fmt.Errorf("%w: target AL %s must be above current AL %s",
			ErrInvalidRebalanceParam, n.target.Format(InternalDecimals), n.current.Format(InternalDecimals))
	}

	dexNet, err := math.ApplySlippage(n.dex, p.Slippage)
	if err != nil {
		return Plan{}, err
	}
	k, err := dexNet.Div(n.oracle, InternalDecimals)
	if err != nil {
		return Plan{}, err
	}

	denom := n.target.Mul(k, InternalDecimals).Sub(one)
	if denom.Sign() <= 0 {
		return Plan{}, fmt.Errorf("%w: sale proceeds cannot raise AL to %s",
			ErrUnsolvableTarget, n.target.Format(InternalDecimals))
	}
	shortfall := n.target.Mul(n.liabilities, InternalDecimals).Sub(n.assets)
	withdraw, err := shortfall.Div(denom, InternalDecimals)
	if err != nil {
		return Plan{}, err
	}
	if withdraw.GreaterThan(n.assets) {
		return Plan{}, fmt.Errorf("%w: withdrawal %s exceeds assets %s",
			ErrUnsolvableTarget, withdraw.Format(InternalDecimals), n.assets.Format(InternalDecimals))
	}

	repay, err := math.ApplySlippage(withdraw.Mul(n.dex, InternalDecimals), p.Slippage)
	if err != nil {
		return Plan{}, err
	}

	remaining := n.liabilities.Sub(withdraw.Mul(k, InternalDecimals))
	projected := math.Zero(InternalDecimals)
	if remaining.Sign() > 0 {
		projected, err = n.assets.Sub(withdraw).Div(remaining, InternalDecimals)
		if err != nil {
			return Plan{}, err
		}
	}

	return Plan{
		Direction:      Up,
		SupplyAmount:   math.Zero(p.Collateral.Decimals),
		BorrowAmount:   math.Zero(p.Debt.Decimals),
		WithdrawAmount: withdraw.Rescale(p.Collateral.Decimals),
		RepayAmount:    repay.Rescale(p.Debt.Decimals),
		CurrentAL:      n.current,
		TargetAL:       n.target,
		ProjectedAL:    projected,
	}, nil
}
