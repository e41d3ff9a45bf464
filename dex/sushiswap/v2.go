package sushiswap

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/levquote/dex/uniswap"
)

// Mainnet deployment. Sushiswap pairs are V2 forks with their own factory
// and pair bytecode.
var (
	MainnetFactory      = common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac")
	MainnetInitCodeHash = common.HexToHash("0xe18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303")
)

// NewMainnetV2 creates a price source for Sushiswap on mainnet.
func NewMainnetV2(dial uniswap.PairDialer, logger *zap.Logger) *uniswap.V2 {
	return uniswap.NewV2("sushiswap", MainnetFactory, MainnetInitCodeHash, dial, logger)
}
