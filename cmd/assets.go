package cmd

import (
	"fmt"
	"strings"

	"github.com/michaelpento.lv/levquote/config"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
)

const nativeSymbol = "ETH"

// resolveAsset maps a symbol to the chain's native currency or a registry token.
func resolveAsset(cfg *config.Config, symbol string) (types.Asset, error) {
	if strings.EqualFold(symbol, nativeSymbol) {
		return types.Native{ChainID: cfg.ChainID, Symbol: nativeSymbol}, nil
	}
	token, err := cfg.Token(symbol)
	if err != nil {
		return nil, err
	}
	return types.ERC20{Token: token}, nil
}

func parseAmount(flag, text string, asset types.Asset) (math.Amount, error) {
	a, err := math.ParseNonNegative(text, asset.Metadata().Decimals)
	if err != nil {
		return math.Amount{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return a, nil
}

func parseSlippage(text string, fallback math.BasisPoints) (math.BasisPoints, error) {
	if text == "" {
		return fallback, nil
	}
	bps, err := math.ParseBasisPointsPercent(text)
	if err != nil {
		return 0, fmt.Errorf("invalid --slippage: %w", err)
	}
	return bps, nil
}

// formatAmount prints a at its full scale without trailing zeros.
func formatAmount(a math.Amount, asset types.Asset) string {
	return a.Format(a.Decimals()) + " " + asset.Metadata().Symbol
}
