package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/levquote/dex"
	"github.com/michaelpento.lv/levquote/dex/uniswap"
	"github.com/michaelpento.lv/levquote/quote"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
	"github.com/michaelpento.lv/levquote/utils/metrics"
)

func newQuoteCmd(o *options) *cobra.Command {
	var (
		amount   string
		in, out  string
		price    string
		slippage string
		exactOut bool
		calldata bool
		to       string
		deadline time.Duration
	)

	cmd := &cobra.Command{
		Use:   "quote invest|exit|swap",
		Short: "Quote a vault deposit, redemption or swap with a slippage bound",
		Long: `Quote prices an operation at a given price and applies the slippage
tolerance to the expected amount.

For invest and exit --price is the vault share price in underlying units.
For swap it is the price of --in in --out units; without --price the oracle
price is read from the configured feeds. With --exact-out a swap quotes the
maximum input for an exact --amount of output.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"invest", "exit", "swap"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := quote.ParseDirection(args[0])
			if err != nil {
				return err
			}
			if exactOut && direction != quote.Swap {
				return fmt.Errorf("--exact-out only applies to swap quotes")
			}
			if calldata && direction != quote.Swap {
				return fmt.Errorf("--calldata only applies to swap quotes")
			}
			if calldata && !common.IsHexAddress(to) {
				return fmt.Errorf("--calldata needs a --to address, got %q", to)
			}

			inAsset, err := resolveAsset(o.cfg, in)
			if err != nil {
				return err
			}
			outAsset, err := resolveAsset(o.cfg, out)
			if err != nil {
				return err
			}
			bps, err := parseSlippage(slippage, o.cfg.Slippage.DefaultBps)
			if err != nil {
				return err
			}

			var p math.Amount
			switch {
			case price != "":
				if p, err = math.ParseNonNegative(price, dex.PriceDecimals); err != nil {
					return fmt.Errorf("invalid --price: %w", err)
				}
			case direction == quote.Swap:
				ctx, cancel := o.callContext(cmd.Context())
				defer cancel()
				if p, err = o.livePrice(ctx, inAsset, outAsset); err != nil {
					return err
				}
			default:
				return fmt.Errorf("--price is required for %s quotes", direction)
			}

			quoter := quote.NewQuoter(o.logger, metrics.NewQuoteMetrics(o.registry, metrics.DefaultNamespace),
				o.cfg.Slippage.DefaultBps, o.cfg.Slippage.MaxBps)

			if exactOut {
				amountOut, err := parseAmount("amount", amount, outAsset)
				if err != nil {
					return err
				}
				mq, err := quoter.MaxIn(amountOut, inAsset, outAsset, p, bps)
				if err != nil {
					return err
				}
				printMaxInQuote(cmd.OutOrStdout(), mq, inAsset, outAsset)
				if !calldata {
					return nil
				}
				return writeCalldata(cmd.OutOrStdout(), inAsset, outAsset, func(r *uniswap.Router, inToken, outToken types.Token) ([]byte, error) {
					return r.EncodeExactOut(mq, inToken, outToken, common.HexToAddress(to), time.Now().Add(deadline))
				})
			}

			amountIn, err := parseAmount("amount", amount, inAsset)
			if err != nil {
				return err
			}
			pq, err := quoter.Quote(quote.Request{
				Direction: direction,
				AmountIn:  amountIn,
				In:        inAsset,
				Out:       outAsset,
				Price:     p,
				Slippage:  bps,
			})
			if err != nil {
				return err
			}
			printQuote(cmd.OutOrStdout(), pq, inAsset, outAsset)
			if !calldata {
				return nil
			}
			return writeCalldata(cmd.OutOrStdout(), inAsset, outAsset, func(r *uniswap.Router, inToken, outToken types.Token) ([]byte, error) {
				return r.EncodeExactIn(pq, inToken, outToken, common.HexToAddress(to), time.Now().Add(deadline))
			})
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount of --in to spend, or of --out to receive with --exact-out")
	cmd.Flags().StringVar(&in, "in", "", "symbol of the asset paid in")
	cmd.Flags().StringVar(&out, "out", "", "symbol of the asset received")
	cmd.Flags().StringVar(&price, "price", "", "price to quote at")
	cmd.Flags().StringVar(&slippage, "slippage", "", "slippage tolerance in percent (default from config)")
	cmd.Flags().BoolVar(&exactOut, "exact-out", false, "quote the maximum input for an exact output")
	cmd.Flags().BoolVar(&calldata, "calldata", false, "also print Uniswap V2 router calldata for a swap")
	cmd.Flags().StringVar(&to, "to", "", "recipient of the swap output, for --calldata")
	cmd.Flags().DurationVar(&deadline, "deadline", 20*time.Minute, "swap deadline from now, for --calldata")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func printQuote(w io.Writer, pq quote.PriceQuote, in, out types.Asset) {
	fmt.Fprintf(w, "quote      %s\n", pq.ID)
	fmt.Fprintf(w, "direction  %s\n", pq.Direction)
	fmt.Fprintf(w, "amount in  %s\n", formatAmount(pq.AmountIn, in))
	fmt.Fprintf(w, "expected   %s\n", formatAmount(pq.ExpectedAmount, out))
	fmt.Fprintf(w, "minimum    %s\n", formatAmount(pq.MinAmount, out))
	fmt.Fprintf(w, "slippage   %s\n", pq.Slippage.Percent())
}

func printMaxInQuote(w io.Writer, mq quote.MaxInQuote, in, out types.Asset) {
	fmt.Fprintf(w, "quote       %s\n", mq.ID)
	fmt.Fprintf(w, "amount out  %s\n", formatAmount(mq.AmountOut, out))
	fmt.Fprintf(w, "expected in %s\n", formatAmount(mq.ExpectedIn, in))
	fmt.Fprintf(w, "maximum in  %s\n", formatAmount(mq.MaxIn, in))
	fmt.Fprintf(w, "slippage    %s\n", mq.Slippage.Percent())
}

func writeCalldata(w io.Writer, in, out types.Asset, encode func(*uniswap.Router, types.Token, types.Token) ([]byte, error)) error {
	inToken, err := erc20(in)
	if err != nil {
		return err
	}
	outToken, err := erc20(out)
	if err != nil {
		return err
	}
	router, err := uniswap.NewRouter(uniswap.MainnetRouter)
	if err != nil {
		return err
	}
	data, err := encode(router, inToken, outToken)
	if err != nil {
		return fmt.Errorf("failed to encode swap: %w", err)
	}
	fmt.Fprintf(w, "router     %s\n", router.Address().Hex())
	fmt.Fprintf(w, "calldata   %s\n", hexutil.Encode(data))
	return nil
}
