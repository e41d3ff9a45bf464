package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/levquote/rebalance"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
	"github.com/michaelpento.lv/levquote/utils/metrics"
)

func parseRebalanceDirection(s string) (rebalance.Direction, error) {
	switch strings.ToLower(s) {
	case "down":
		return rebalance.Down, nil
	case "up":
		return rebalance.Up, nil
	default:
		return 0, fmt.Errorf("%w: direction %q", rebalance.ErrInvalidRebalanceParam, s)
	}
}

func parseInternal(flag, text string) (math.Amount, error) {
	a, err := math.Parse(text, rebalance.InternalDecimals)
	if err != nil {
		return math.Amount{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return a, nil
}

func newRebalanceCmd(o *options) *cobra.Command {
	var (
		assets, liabilities string
		target              string
		dexPrice            string
		oraclePrice         string
		collateral, debt    string
		slippage            string
	)

	cmd := &cobra.Command{
		Use:   "rebalance down|up",
		Short: "Solve the trades that move a leveraged position to a target asset/liability ratio",
		Long: `Rebalance solves a leverage adjustment. Down lowers the asset/liability
ratio by borrowing debt and supplying the collateral it buys. Up raises it by
withdrawing collateral and repaying debt with the sale proceeds.

Assets and liabilities are valued in debt units. Prices are collateral in
debt units; without --oracle-price the configured feed is read and without
--dex-price the Uniswap V2 pool is read.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"down", "up"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseRebalanceDirection(args[0])
			if err != nil {
				return err
			}
			collateralToken, err := o.cfg.Token(collateral)
			if err != nil {
				return err
			}
			debtToken, err := o.cfg.Token(debt)
			if err != nil {
				return err
			}
			bps, err := parseSlippage(slippage, o.cfg.Slippage.DefaultBps)
			if err != nil {
				return err
			}

			p := rebalance.Params{
				Slippage:   bps,
				Collateral: collateralToken,
				Debt:       debtToken,
			}
			if p.State.Assets, err = parseInternal("assets", assets); err != nil {
				return err
			}
			if p.State.Liabilities, err = parseInternal("liabilities", liabilities); err != nil {
				return err
			}
			if p.TargetAL, err = parseInternal("target", target); err != nil {
				return err
			}
			if dexPrice != "" {
				if p.DexPrice, err = parseInternal("dex-price", dexPrice); err != nil {
					return err
				}
			}
			if oraclePrice != "" {
				if p.OraclePrice, err = parseInternal("oracle-price", oraclePrice); err != nil {
					return err
				}
			}

			if dexPrice == "" || oraclePrice == "" {
				ctx, cancel := o.callContext(cmd.Context())
				defer cancel()
				if err := o.livePrices(ctx, &p, dexPrice == "", oraclePrice == ""); err != nil {
					return err
				}
			}

			solver := rebalance.NewSolver(o.logger, metrics.NewRebalanceMetrics(o.registry, metrics.DefaultNamespace))
			plan, err := solver.Solve(dir, p)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan, collateralToken, debtToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&assets, "assets", "", "current asset value")
	cmd.Flags().StringVar(&liabilities, "liabilities", "", "current liability value")
	cmd.Flags().StringVar(&target, "target", "", "target asset/liability ratio, above 1")
	cmd.Flags().StringVar(&dexPrice, "dex-price", "", "swap price of collateral in debt units")
	cmd.Flags().StringVar(&oraclePrice, "oracle-price", "", "oracle price of collateral in debt units")
	cmd.Flags().StringVar(&collateral, "collateral", "WETH", "collateral token symbol")
	cmd.Flags().StringVar(&debt, "debt", "USDC", "debt token symbol")
	cmd.Flags().StringVar(&slippage, "slippage", "", "slippage tolerance in percent (default from config)")
	_ = cmd.MarkFlagRequired("assets")
	_ = cmd.MarkFlagRequired("liabilities")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// livePrices fills the missing prices of p from the configured sources.
func (o *options) livePrices(ctx context.Context, p *rebalance.Params, needDex, needOracle bool) error {
	return o.withSources(ctx, func(s *priceSources) error {
		if needOracle {
			price, err := s.oracle.Price(ctx, p.Collateral, p.Debt)
			if err != nil {
				return fmt.Errorf("failed to read oracle price: %w", err)
			}
			p.OraclePrice = price
		}
		if needDex {
			if len(s.amms) == 0 {
				return fmt.Errorf("no AMM configured for chain %d, pass --dex-price", o.cfg.ChainID)
			}
			price, err := s.amms[0].Price(ctx, p.Collateral, p.Debt)
			if err != nil {
				return fmt.Errorf("failed to read %s price: %w", s.amms[0].Name(), err)
			}
			p.DexPrice = price
		}
		return nil
	})
}

func printPlan(w io.Writer, plan rebalance.Plan, collateral, debt types.Token) {
	c, d := types.ERC20{Token: collateral}, types.ERC20{Token: debt}
	fmt.Fprintf(w, "direction     %s\n", plan.Direction)
	if plan.CurrentAL.IsZero() {
		fmt.Fprintf(w, "current AL    unlevered\n")
	} else {
		fmt.Fprintf(w, "current AL    %s\n", plan.CurrentAL.Format(6))
	}
	fmt.Fprintf(w, "target AL     %s\n", plan.TargetAL.Format(6))
	fmt.Fprintf(w, "projected AL  %s\n", plan.ProjectedAL.Format(6))
	switch plan.Direction {
	case rebalance.Down:
		fmt.Fprintf(w, "supply        %s\n", formatAmount(plan.SupplyAmount, c))
		fmt.Fprintf(w, "borrow        %s\n", formatAmount(plan.BorrowAmount, d))
	case rebalance.Up:
		fmt.Fprintf(w, "withdraw      %s\n", formatAmount(plan.WithdrawAmount, c))
		fmt.Fprintf(w, "repay         %s\n", formatAmount(plan.RepayAmount, d))
	}
}
