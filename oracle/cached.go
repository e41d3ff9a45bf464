package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/levquote/dex"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
	"github.com/michaelpento.lv/levquote/utils/memo"
)

// Registry routes price requests to the feed serving the pair, in either
// direction.
type Registry struct {
	feeds map[types.PairKey]dex.PriceSource
}

func NewRegistry() *Registry {
	return &Registry{feeds: make(map[types.PairKey]dex.PriceSource)}
}

// Add serves the base/quote pair from source.
func (r *Registry) Add(base, quote types.Token, source dex.PriceSource) {
	r.feeds[types.NewPairKey(base, quote)] = source
}

func (r *Registry) Len() int {
	return len(r.feeds)
}

func (r *Registry) Name() string {
	return "registry"
}

func (r *Registry) Price(ctx context.Context, base, quote types.Token) (math.Amount, error) {
	if s, ok := r.feeds[types.NewPairKey(base, quote)]; ok {
		return s.Price(ctx, base, quote)
	}
	if s, ok := r.feeds[types.NewPairKey(quote, base)]; ok {
		return s.Price(ctx, base, quote)
	}
	return math.Amount{}, fmt.Errorf("%w: no feed for %s/%s", dex.ErrUnsupportedPair, base.Symbol, quote.Symbol)
}

type pairRequest struct {
	base  types.Token
	quote types.Token
}

// CachedSource memoizes another source's prices per pair and throttles the
// loads that reach it. Prices stay cached until Refresh.
//
// Loads run detached from the caller's context, so a caller that gives up
// returns at once while the throttled load still waits its turn and fills
// the cache.
type CachedSource struct {
	source  dex.PriceSource
	limiter *rate.Limiter
	prices  *memo.Map[pairRequest, math.Amount]
	logger  *zap.Logger
}

// NewCachedSource wraps source. A nil limiter does not throttle.
func NewCachedSource(source dex.PriceSource, limiter *rate.Limiter, logger *zap.Logger, opts ...memo.Option) (*CachedSource, error) {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &CachedSource{source: source, limiter: limiter, logger: logger}
	opts = append([]memo.Option{memo.WithLogger(logger), memo.WithName("prices")}, opts...)
	prices, err := memo.NewMap(
		func(r pairRequest) string { return types.NewPairKey(r.base, r.quote).String() },
		c.load,
		opts...,
	)
	if err != nil {
		return nil, err
	}
	c.prices = prices
	return c, nil
}

func (c *CachedSource) load(ctx context.Context, r pairRequest) (math.Amount, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return math.Amount{}, fmt.Errorf("rate limiter: %w", err)
	}
	c.logger.Debug("Fetching price",
		zap.String("source", c.source.Name()),
		zap.String("base", r.base.Symbol),
		zap.String("quote", r.quote.Symbol))
	return c.source.Price(ctx, r.base, r.quote)
}

func (c *CachedSource) Name() string {
	return "cached-" + c.source.Name()
}

// Price returns the cached price of base in quote units, loading it once
// for all concurrent callers.
func (c *CachedSource) Price(ctx context.Context, base, quote types.Token) (math.Amount, error) {
	return c.prices.Get(ctx, pairRequest{base: base, quote: quote})
}

// State reports the cache state of the pair.
func (c *CachedSource) State(base, quote types.Token) memo.State {
	return c.prices.State(pairRequest{base: base, quote: quote})
}

// Refresh drops every cached price so the next request reloads it.
func (c *CachedSource) Refresh() {
	c.prices.Clear()
	c.logger.Info("Refreshed cached prices", zap.String("source", c.source.Name()))
}
