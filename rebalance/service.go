package rebalance

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/levquote/utils/math"
	"github.com/michaelpento.lv/levquote/utils/metrics"
)

// Solver runs SolveDown and SolveUp with logging and metrics.
type Solver struct {
	logger  *zap.Logger
	metrics *metrics.RebalanceMetrics
}

// NewSolver creates a solver. A nil logger or metrics set disables that output.
func NewSolver(logger *zap.Logger, m *metrics.RebalanceMetrics) *Solver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRebalanceMetrics(nil, metrics.DefaultNamespace)
	}
	return &Solver{logger: logger, metrics: m}
}

// Solve dispatches on dir.
func (s *Solver) Solve(dir Direction, p Params) (Plan, error) {
	var (
		plan Plan
		err  error
	)
	switch dir {
	case Down:
		plan, err = SolveDown(p)
	case Up:
		plan, err = SolveUp(p)
	default:
		err = fmt.Errorf("%w: direction %s", ErrInvalidRebalanceParam, dir)
	}

	if err != nil {
		reason := failureReason(err)
		s.metrics.Failures.WithLabelValues(reason).Inc()
		s.logger.Warn("Rebalance solve failed",
			zap.Stringer("direction", dir),
			zap.String("collateral", p.Collateral.Symbol),
			zap.String("debt", p.Debt.Symbol),
			zap.Stringer("targetAL", p.TargetAL),
			zap.String("reason", reason),
			zap.Error(err))
		return Plan{}, err
	}

	s.metrics.Solves.WithLabelValues(dir.String()).Inc()
	s.logger.Info("Solved rebalance",
		zap.Stringer("direction", dir),
		zap.String("collateral", p.Collateral.Symbol),
		zap.String("debt", p.Debt.Symbol),
		zap.String("currentAL", plan.CurrentAL.Format(6)),
		zap.String("targetAL", plan.TargetAL.Format(6)),
		zap.String("projectedAL", plan.ProjectedAL.Format(6)),
		zap.Stringer("supply", plan.SupplyAmount),
		zap.Stringer("borrow", plan.BorrowAmount),
		zap.Stringer("withdraw", plan.WithdrawAmount),
		zap.Stringer("repay", plan.RepayAmount))
	return plan, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRebalanceParam):
		return "invalid_param"
	case errors.Is(err, ErrUnsolvableTarget):
		return "unsolvable"
	case errors.Is(err, math.ErrDivisionByZero):
		return "division_by_zero"
	default:
		return "other"
	}
}
