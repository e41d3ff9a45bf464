package rebalance

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/levquote/utils/math"
	"github.com/michaelpento.lv/levquote/utils/metrics"
	"github.com/michaelpento.lv/levquote/utils/testutils"
)

func params(t *testing.T, assets, liabilities, target, dex, oracle string, bps math.BasisPoints) Params {
	return Params{
		State: AssetLiabilityState{
			Assets:      testutils.Amount(t, assets, InternalDecimals),
			Liabilities: testutils.Amount(t, liabilities, InternalDecimals),
		},
		TargetAL:    testutils.Amount(t, target, InternalDecimals),
		DexPrice:    testutils.Amount(t, dex, InternalDecimals),
		OraclePrice: testutils.Amount(t, oracle, InternalDecimals),
		Slippage:    bps,
		Collateral:  testutils.WETH,
		Debt:        testutils.USDC,
	}
}

func requireNear(t *testing.T, want string, got math.Amount) {
	t.Helper()
	tolerance := testutils.Amount(t, "0.000000000001", InternalDecimals)
	diff := testutils.Amount(t, want, InternalDecimals).Sub(got).Abs()
	require.True(t, diff.LessThan(tolerance), "want ~%s, got %s", want, got)
}

func TestRatio(t *testing.T) {
	s := AssetLiabilityState{
		Assets:      testutils.Amount(t, "120", 18),
		Liabilities: testutils.Amount(t, "100", 18),
	}
	r, err := s.Ratio()
	require.NoError(t, err)
	testutils.RequireAmount(t, "1.2", r)

	s.Liabilities = math.Zero(18)
	_, err = s.Ratio()
	assert.ErrorIs(t, err, math.ErrDivisionByZero)
}

func TestSolveDown(t *testing.T) {
	t.Run("equal prices no slippage", func(t *testing.T) {
		plan, err := SolveDown(params(t, "120", "100", "1.1", "1", "1", 0))
		require.NoError(t, err)

		assert.Equal(t, Down, plan.Direction)
		testutils.RequireAmount(t, "100", plan.SupplyAmount)
		testutils.RequireAmount(t, "100", plan.BorrowAmount)
		assert.Equal(t, uint8(18), plan.SupplyAmount.Decimals())
		assert.Equal(t, uint8(6), plan.BorrowAmount.Decimals())
		assert.True(t, plan.WithdrawAmount.IsZero())
		assert.True(t, plan.RepayAmount.IsZero())
		testutils.RequireAmount(t, "1.2", plan.CurrentAL)
		testutils.RequireAmount(t, "1.1", plan.ProjectedAL)

		// re-simulate the position with the solved supply
		a := testutils.Amount(t, "120", 18).Add(plan.SupplyAmount)
		l := testutils.Amount(t, "100", 18).Add(plan.SupplyAmount)
		ratio, err := a.Div(l, 18)
		require.NoError(t, err)
		requireNear(t, "1.1", ratio)
	})

	t.Run("token decimals", func(t *testing.T) {
		plan, err := SolveDown(params(t, "120", "100", "1.1", "2000", "2000", 0))
		require.NoError(t, err)
		testutils.RequireAmount(t, "100", plan.SupplyAmount)
		testutils.RequireAmount(t, "200000", plan.BorrowAmount)
	})

	t.Run("dex premium", func(t *testing.T) {
		plan, err := SolveDown(params(t, "120", "100", "1.1", "1.01", "1", 0))
		require.NoError(t, err)
		assert.Equal(t, "90.090090090090090090", plan.SupplyAmount.String())
		requireNear(t, "1.1", plan.ProjectedAL)
	})

	t.Run("slippage is conservative", func(t *testing.T) {
		plan, err := SolveDown(params(t, "120", "100", "1.1", "1", "1", 50))
		require.NoError(t, err)

		assert.True(t, plan.SupplyAmount.LessThan(testutils.Amount(t, "100", 18)))
		assert.True(t, plan.ProjectedAL.GreaterThan(testutils.Amount(t, "1.1", 18)))

		// borrow is the supply's dex value less slippage
		maxBorrow := plan.SupplyAmount.Rescale(6)
		assert.True(t, plan.BorrowAmount.LessThan(maxBorrow))
	})

	t.Run("no liabilities", func(t *testing.T) {
		plan, err := SolveDown(params(t, "100", "0", "2", "1", "1", 0))
		require.NoError(t, err)
		testutils.RequireAmount(t, "100", plan.SupplyAmount)
		testutils.RequireAmount(t, "2", plan.ProjectedAL)
		assert.True(t, plan.CurrentAL.IsZero())
	})
}

func TestSolveDownRejects(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		err  error
	}{
		{"target at one", params(t, "150", "100", "1.0", "1", "1", 0), ErrInvalidRebalanceParam},
		{"target below one", params(t, "150", "100", "0.9", "1", "1", 0), ErrInvalidRebalanceParam},
		{"target above current", params(t, "130", "100", "1.5", "1", "1", 0), ErrInvalidRebalanceParam},
		{"target equals current", params(t, "130", "100", "1.3", "1", "1", 0), ErrInvalidRebalanceParam},
		{"negative assets", params(t, "-1", "100", "1.1", "1", "1", 0), ErrInvalidRebalanceParam},
		{"zero dex price", params(t, "120", "100", "1.1", "0", "1", 0), ErrInvalidRebalanceParam},
		{"bad slippage", params(t, "120", "100", "1.1", "1", "1", 10001), math.ErrInvalidBasisPoints},
		{"zero oracle price", params(t, "120", "100", "1.1", "1", "0", 0), math.ErrDivisionByZero},
		{"full slippage", params(t, "120", "100", "1.1", "1", "1", 10000), math.ErrDivisionByZero},
		{"dex far below oracle", params(t, "120", "100", "1.1", "0.5", "1", 0), ErrUnsolvableTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SolveDown(tt.p)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSolveRejectsExcessPrecision(t *testing.T) {
	fine := params(t, "120", "100", "1.1", "1", "1", 0)
	fine.DexPrice = testutils.Amount(t, "1.0000000000000000001", 24)
	_, err := SolveDown(fine)
	assert.ErrorIs(t, err, ErrInvalidRebalanceParam)
	assert.ErrorContains(t, err, "dex price")

	fine = params(t, "110", "100", "1.2", "1", "1", 0)
	fine.State.Assets = testutils.Amount(t, "110.0000000000000000001", 24)
	_, err = SolveUp(fine)
	assert.ErrorIs(t, err, ErrInvalidRebalanceParam)

	// trailing zeros beyond the internal scale are accepted
	exact := params(t, "120", "100", "1.1", "1", "1", 0)
	exact.TargetAL = testutils.Amount(t, "1.1", 24)
	plan, err := SolveDown(exact)
	require.NoError(t, err)
	testutils.RequireAmount(t, "100", plan.SupplyAmount)
}

func TestSolveUp(t *testing.T) {
	plan, err := SolveUp(params(t, "110", "100", "1.2", "1", "1", 0))
	require.NoError(t, err)

	assert.Equal(t, Up, plan.Direction)
	testutils.RequireAmount(t, "50", plan.WithdrawAmount)
	testutils.RequireAmount(t, "50", plan.RepayAmount)
	assert.True(t, plan.SupplyAmount.IsZero())
	assert.True(t, plan.BorrowAmount.IsZero())
	testutils.RequireAmount(t, "1.1", plan.CurrentAL)
	testutils.RequireAmount(t, "1.2", plan.ProjectedAL)

	plan, err = SolveUp(params(t, "110", "100", "1.2", "1", "1", 100))
	require.NoError(t, err)
	// selling under slippage needs a larger withdrawal
	assert.True(t, plan.WithdrawAmount.GreaterThan(testutils.Amount(t, "50", 18)))
	requireNear(t, "1.2", plan.ProjectedAL)
}

func TestSolveUpRejects(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		err  error
	}{
		{"target below current", params(t, "130", "100", "1.2", "1", "1", 0), ErrInvalidRebalanceParam},
		{"no liabilities", params(t, "100", "0", "1.2", "1", "1", 0), ErrInvalidRebalanceParam},
		{"underwater", params(t, "90", "100", "1.2", "1", "1", 0), ErrInvalidRebalanceParam},
		{"proceeds too small", params(t, "110", "100", "1.2", "1", "1", 5000), ErrUnsolvableTarget},
		{"withdrawal exceeds assets", params(t, "110", "100", "1.2", "1", "1", 1000), ErrUnsolvableTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SolveUp(tt.p)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSolver(t *testing.T) {
	m := metrics.NewRebalanceMetrics(metrics.NewRegistry(), "test")
	s := NewSolver(zaptest.NewLogger(t), m)

	_, err := s.Solve(Down, params(t, "120", "100", "1.1", "1", "1", 0))
	require.NoError(t, err)
	_, err = s.Solve(Up, params(t, "110", "100", "1.2", "1", "1", 0))
	require.NoError(t, err)
	_, err = s.Solve(Down, params(t, "120", "100", "1.1", "0.5", "1", 0))
	assert.ErrorIs(t, err, ErrUnsolvableTarget)
	_, err = s.Solve(Direction(7), params(t, "120", "100", "1.1", "1", "1", 0))
	assert.ErrorIs(t, err, ErrInvalidRebalanceParam)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Solves.WithLabelValues("down")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Solves.WithLabelValues("up")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures.WithLabelValues("unsolvable")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures.WithLabelValues("invalid_param")))
}
