package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/levquote/config"
	"github.com/michaelpento.lv/levquote/dex"
	"github.com/michaelpento.lv/levquote/dex/sushiswap"
	"github.com/michaelpento.lv/levquote/dex/uniswap"
	"github.com/michaelpento.lv/levquote/oracle"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
	"github.com/michaelpento.lv/levquote/utils/memo"
	"github.com/michaelpento.lv/levquote/utils/metrics"
)

const mainnetChainID = 1

// priceSources holds the oracle and AMM sources described by a config. All
// of them share one RPC rate limiter.
type priceSources struct {
	oracle *oracle.CachedSource
	amms   []dex.PriceSource
}

func newPriceSources(cfg *config.Config, caller bind.ContractCaller, logger *zap.Logger, reg prometheus.Registerer) (*priceSources, error) {
	feeds := oracle.NewRegistry()
	for _, f := range cfg.Feeds {
		base, err := cfg.Token(f.Base)
		if err != nil {
			return nil, err
		}
		quoteToken, err := cfg.Token(f.Quote)
		if err != nil {
			return nil, err
		}
		feed, err := oracle.NewChainlinkFeed(f.Address, caller, base, quoteToken, f.MaxAge, logger)
		if err != nil {
			return nil, err
		}
		feeds.Add(base, quoteToken, feed)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RPCRateLimit.RequestsPerSecond), cfg.RPCRateLimit.BurstSize)
	opts := []memo.Option{
		memo.WithName("oracle_cache"),
		memo.WithMetrics(metrics.NewCacheMetrics(reg, metrics.DefaultNamespace, "oracle_cache")),
	}
	if cfg.Cache.Capacity > 0 {
		opts = append(opts, memo.WithCapacity(cfg.Cache.Capacity))
	}
	cachedFeeds, err := oracle.NewCachedSource(feeds, limiter, logger, opts...)
	if err != nil {
		return nil, err
	}

	s := &priceSources{oracle: cachedFeeds}
	// the factory constants are mainnet deployments
	if cfg.ChainID == mainnetChainID {
		dial := uniswap.ContractDialer(caller)
		for _, amm := range []dex.PriceSource{
			uniswap.NewMainnetV2(dial, logger),
			sushiswap.NewMainnetV2(dial, logger),
		} {
			cached, err := oracle.NewCachedSource(amm, limiter, logger)
			if err != nil {
				return nil, err
			}
			s.amms = append(s.amms, cached)
		}
	}
	return s, nil
}

// named returns the sources selected by name. "all" selects every source.
func (s *priceSources) named(name string) ([]dex.PriceSource, error) {
	all := append([]dex.PriceSource{s.oracle}, s.amms...)
	switch strings.ToLower(name) {
	case "", "all":
		return all, nil
	case "oracle":
		return []dex.PriceSource{s.oracle}, nil
	}
	for _, src := range all {
		if strings.EqualFold(strings.TrimPrefix(src.Name(), "cached-"), name) {
			return []dex.PriceSource{src}, nil
		}
	}
	return nil, fmt.Errorf("unknown price source %q", name)
}

func (o *options) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.CallTimeout > 0 {
		return context.WithTimeout(parent, o.cfg.CallTimeout)
	}
	return context.WithCancel(parent)
}

// withSources dials the node and runs fn with the configured price sources.
func (o *options) withSources(ctx context.Context, fn func(*priceSources) error) error {
	caller, closeFn, err := o.dial(ctx, o.cfg.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", o.cfg.RPCEndpoint, err)
	}
	defer closeFn()

	sources, err := newPriceSources(o.cfg, caller, o.logger, o.registry)
	if err != nil {
		return err
	}
	return fn(sources)
}

func erc20(asset types.Asset) (types.Token, error) {
	token, ok := asset.(types.ERC20)
	if !ok {
		return types.Token{}, fmt.Errorf("%w: %s has no price feed, use its wrapped token", dex.ErrUnsupportedPair, asset.Metadata().Symbol)
	}
	return token.Token, nil
}

func newPriceCmd(o *options) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "price BASE QUOTE",
		Short: "Show the price of BASE in QUOTE units from oracle feeds and AMM pools",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := o.cfg.Token(args[0])
			if err != nil {
				return err
			}
			quoteToken, err := o.cfg.Token(args[1])
			if err != nil {
				return err
			}

			ctx, cancel := o.callContext(cmd.Context())
			defer cancel()

			return o.withSources(ctx, func(s *priceSources) error {
				selected, err := s.named(source)
				if err != nil {
					return err
				}

				var failures []error
				for _, src := range selected {
					price, err := src.Price(ctx, base, quoteToken)
					if err != nil {
						o.logger.Warn("Price source failed",
							zap.String("source", src.Name()),
							zap.Error(err))
						failures = append(failures, fmt.Errorf("%s: %w", src.Name(), err))
						fmt.Fprintf(cmd.OutOrStdout(), "%-20s error: %v\n", src.Name(), err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s/%s %s\n", src.Name(), base.Symbol, quoteToken.Symbol, price.Format(price.Decimals()))
				}
				if len(failures) == len(selected) {
					return errors.Join(failures...)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "all", "price source: all, oracle, uniswap-v2 or sushiswap")
	return cmd
}

// livePrice reads the oracle price of out per unit of in.
func (o *options) livePrice(ctx context.Context, in, out types.Asset) (math.Amount, error) {
	inToken, err := erc20(in)
	if err != nil {
		return math.Amount{}, err
	}
	outToken, err := erc20(out)
	if err != nil {
		return math.Amount{}, err
	}

	var price math.Amount
	err = o.withSources(ctx, func(s *priceSources) error {
		price, err = s.oracle.Price(ctx, inToken, outToken)
		return err
	})
	return price, err
}
