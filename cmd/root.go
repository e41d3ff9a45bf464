package cmd

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/levquote/config"
	"github.com/michaelpento.lv/levquote/utils"
	"github.com/michaelpento.lv/levquote/utils/metrics"
)

// Dialer connects to a node and returns a contract caller with its close func.
type Dialer func(ctx context.Context, url string) (bind.ContractCaller, func(), error)

func dialEthClient(ctx context.Context, url string) (bind.ContractCaller, func(), error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

type options struct {
	cfgFile     string
	envFile     string
	debug       bool
	showMetrics bool

	dial Dialer

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{dial: dialEthClient})
}

func newRootCmd(o *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "levquote",
		Short: "Quotes and leverage rebalance plans for vault positions",
		Long: `levquote prices vault invest, exit and swap operations with slippage
bounds, and solves the supply/borrow or withdraw/repay amounts that move a
leveraged position to a target asset/liability ratio.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			defer utils.CleanupLogger()
			if o.showMetrics {
				return writeMetrics(cmd.ErrOrStderr(), o.registry)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file, JSON or YAML (default is $HOME/.levquote.json)")
	rootCmd.PersistentFlags().StringVar(&o.envFile, "env-file", ".env", "dotenv file read before the config")
	rootCmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&o.showMetrics, "metrics", false, "print collected metrics to stderr on exit")

	rootCmd.AddCommand(
		newQuoteCmd(o),
		newRebalanceCmd(o),
		newPriceCmd(o),
		newConfigCmd(o),
	)
	return rootCmd
}

func (o *options) setup() error {
	o.logger = utils.InitLogger(o.debug)
	if err := config.LoadEnv(o.envFile); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(o.cfgFile)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.registry = metrics.NewRegistry()

	o.logger.Debug("Loaded configuration",
		zap.Uint64("chainID", cfg.ChainID),
		zap.Int("tokens", len(cfg.Tokens)),
		zap.Int("feeds", len(cfg.Feeds)))
	return nil
}

func Execute() error {
	return NewRootCmd().Execute()
}

func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
