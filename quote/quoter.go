package quote

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
	"github.com/michaelpento.lv/levquote/utils/metrics"
)

// Quoter builds quotes under configured slippage limits, logging and
// counting each result.
type Quoter struct {
	logger          *zap.Logger
	metrics         *metrics.QuoteMetrics
	defaultSlippage math.BasisPoints
	maxSlippage     math.BasisPoints
}

// NewQuoter creates a quoter. A nil logger or metrics set disables that output.
func NewQuoter(logger *zap.Logger, m *metrics.QuoteMetrics, defaultSlippage, maxSlippage math.BasisPoints) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewQuoteMetrics(nil, metrics.DefaultNamespace)
	}
	return &Quoter{
		logger:          logger,
		metrics:         m,
		defaultSlippage: defaultSlippage,
		maxSlippage:     maxSlippage,
	}
}

// DefaultSlippage is the tolerance used when a caller does not pick one.
func (q *Quoter) DefaultSlippage() math.BasisPoints {
	return q.defaultSlippage
}

func (q *Quoter) checkSlippage(bps math.BasisPoints) error {
	if bps > q.maxSlippage {
		return fmt.Errorf("%w: %s > %s", ErrSlippageTooHigh, bps.Percent(), q.maxSlippage.Percent())
	}
	return nil
}

// Quote builds an exact-input quote for req.
func (q *Quoter) Quote(req Request) (PriceQuote, error) {
	if err := q.checkSlippage(req.Slippage); err != nil {
		return PriceQuote{}, q.reject(req.Direction, err)
	}

	pq, err := Build(req)
	if err != nil {
		return PriceQuote{}, q.reject(req.Direction, err)
	}

	q.metrics.Quotes.WithLabelValues(pq.Direction.String()).Inc()
	q.logger.Debug("Built quote",
		zap.String("id", pq.ID.String()),
		zap.Stringer("direction", pq.Direction),
		zap.String("in", describe(req.In)),
		zap.String("out", describe(req.Out)),
		zap.Stringer("amountIn", pq.AmountIn),
		zap.Stringer("expected", pq.ExpectedAmount),
		zap.Stringer("min", pq.MinAmount),
		zap.String("slippage", pq.Slippage.Percent()))
	return pq, nil
}

// MaxIn builds an exact-output quote.
func (q *Quoter) MaxIn(amountOut math.Amount, in, out types.Asset, price math.Amount, bps math.BasisPoints) (MaxInQuote, error) {
	if err := q.checkSlippage(bps); err != nil {
		return MaxInQuote{}, q.reject(Swap, err)
	}
	mq, err := QuoteMaxIn(amountOut, in, out, price, bps)
	if err != nil {
		return MaxInQuote{}, q.reject(Swap, err)
	}

	q.metrics.Quotes.WithLabelValues("max_in").Inc()
	q.logger.Debug("Built max-in quote",
		zap.String("id", mq.ID.String()),
		zap.Stringer("amountOut", mq.AmountOut),
		zap.Stringer("expectedIn", mq.ExpectedIn),
		zap.Stringer("maxIn", mq.MaxIn),
		zap.String("slippage", mq.Slippage.Percent()))
	return mq, nil
}

func (q *Quoter) reject(dir Direction, err error) error {
	reason := rejectionReason(err)
	q.metrics.Rejections.WithLabelValues(reason).Inc()
	q.logger.Info("Rejected quote request",
		zap.Stringer("direction", dir),
		zap.String("reason", reason),
		zap.Error(err))
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrSlippageTooHigh), errors.Is(err, math.ErrInvalidBasisPoints):
		return "slippage"
	case errors.Is(err, ErrDecimalsMismatch):
		return "decimals"
	case errors.Is(err, ErrInvalidPrice), errors.Is(err, math.ErrDivisionByZero):
		return "price"
	case errors.Is(err, math.ErrNegativeAmount):
		return "negative_amount"
	case errors.Is(err, types.ErrUnknownAsset):
		return "asset"
	case errors.Is(err, ErrUnknownDirection):
		return "direction"
	default:
		return "other"
	}
}

func describe(a types.Asset) string {
	s, err := types.Describe(a)
	if err != nil {
		return "unknown"
	}
	return s
}
