package testutils

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
)

// Mainnet token fixtures shared by package tests.
var (
	USDC = types.Token{
		Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		ChainID:  1,
		Symbol:   "USDC",
		Decimals: 6,
	}
	WETH = types.Token{
		Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		ChainID:  1,
		Symbol:   "WETH",
		Decimals: 18,
	}
	// VaultShares is an 18-decimal vault share token.
	VaultShares = types.Token{
		Address:  common.HexToAddress("0x1234567890123456789012345678901234567890"),
		ChainID:  1,
		Symbol:   "lvUSDC",
		Decimals: 18,
	}
)

// Amount parses text at decimals and fails the test on error.
func Amount(t *testing.T, text string, decimals uint8) math.Amount {
	t.Helper()
	a, err := math.Parse(text, decimals)
	require.NoError(t, err)
	return a
}

// AmountOf parses text at the token's decimals.
func AmountOf(t *testing.T, text string, token types.Token) math.Amount {
	t.Helper()
	return Amount(t, text, token.Decimals)
}

// RequireAmount asserts want == got by value and prints both on mismatch.
func RequireAmount(t *testing.T, want string, got math.Amount) {
	t.Helper()
	w := Amount(t, want, got.Decimals())
	require.True(t, w.Equal(got), "want %s, got %s", w, got)
}
