package uniswap

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/levquote/quote"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/testutils"
)

var recipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestRouterExactIn(t *testing.T) {
	router, err := NewRouter(MainnetRouter)
	require.NoError(t, err)
	assert.Equal(t, MainnetRouter, router.Address())

	q, err := quote.Build(quote.Request{
		Direction: quote.Swap,
		AmountIn:  testutils.AmountOf(t, "1000", testutils.USDC),
		In:        types.ERC20{Token: testutils.USDC},
		Out:       types.ERC20{Token: testutils.WETH},
		Price:     testutils.Amount(t, "0.0005", 18),
		Slippage:  50,
	})
	require.NoError(t, err)

	deadline := time.Unix(1700000600, 0)
	data, err := router.EncodeExactIn(q, testutils.USDC, testutils.WETH, recipient, deadline)
	require.NoError(t, err)
	assert.Equal(t, "0x38ed1739", hexutil.Encode(data[:4]))

	call, err := router.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, MethodExactIn, call.Method)
	assert.Equal(t, "1000000000", call.AmountIn.String())
	assert.Equal(t, "497500000000000000", call.AmountOut.String())
	assert.Equal(t, []common.Address{testutils.USDC.Address, testutils.WETH.Address}, call.Path)
	assert.Equal(t, recipient, call.To)
	assert.Equal(t, int64(1700000600), call.Deadline.Int64())
}

func TestRouterExactOut(t *testing.T) {
	router, err := NewRouter(MainnetRouter)
	require.NoError(t, err)

	q, err := quote.QuoteMaxIn(
		testutils.AmountOf(t, "0.5", testutils.WETH),
		types.ERC20{Token: testutils.USDC},
		types.ERC20{Token: testutils.WETH},
		testutils.Amount(t, "0.0005", 18),
		300,
	)
	require.NoError(t, err)

	data, err := router.EncodeExactOut(q, testutils.USDC, testutils.WETH, recipient, time.Unix(1700000600, 0))
	require.NoError(t, err)
	assert.Equal(t, "0x8803dbee", hexutil.Encode(data[:4]))

	call, err := router.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, MethodExactOut, call.Method)
	assert.Equal(t, "500000000000000000", call.AmountOut.String())
	assert.Equal(t, "1030927835", call.AmountIn.String())
}

func TestRouterDecodeRejects(t *testing.T) {
	router, err := NewRouter(MainnetRouter)
	require.NoError(t, err)

	_, err = router.Decode([]byte{0x01})
	assert.ErrorIs(t, err, ErrNotRouterSwap)

	// getReserves selector
	_, err = router.Decode(hexutil.MustDecode("0x0902f1ac"))
	assert.ErrorIs(t, err, ErrNotRouterSwap)
}
