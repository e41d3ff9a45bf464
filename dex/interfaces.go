package dex

import (
	"context"
	"errors"

	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
)

// PriceDecimals is the scale every PriceSource reports prices at.
const PriceDecimals = 18

var (
	ErrInsufficientLiquidity   = errors.New("insufficient liquidity")
	ErrInsufficientInputAmount = errors.New("insufficient input amount")
	ErrUnsupportedPair         = errors.New("unsupported token pair")
)

// PriceSource supplies reference prices to quote and rebalance callers.
type PriceSource interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Price returns units of quote per unit of base at PriceDecimals.
	Price(ctx context.Context, base, quote types.Token) (math.Amount, error)
}

// Reserves are a pair's balances, each at its own token's decimals.
type Reserves struct {
	Reserve0       math.Amount
	Reserve1       math.Amount
	BlockTimestamp uint32
}
