package uniswap

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/levquote/quote"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
)

const (
	MethodExactIn  = "swapExactTokensForTokens"
	MethodExactOut = "swapTokensForExactTokens"
)

var MainnetRouter = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")

var ErrNotRouterSwap = errors.New("calldata is not a router swap")

const RouterABI = `[{
	"inputs": [
		{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
		{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
		{"internalType": "address[]", "name": "path", "type": "address[]"},
		{"internalType": "address", "name": "to", "type": "address"},
		{"internalType": "uint256", "name": "deadline", "type": "uint256"}
	],
	"name": "swapExactTokensForTokens",
	"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
	"stateMutability": "nonpayable",
	"type": "function"
}, {
	"inputs": [
		{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
		{"internalType": "uint256", "name": "amountInMax", "type": "uint256"},
		{"internalType": "address[]", "name": "path", "type": "address[]"},
		{"internalType": "address", "name": "to", "type": "address"},
		{"internalType": "uint256", "name": "deadline", "type": "uint256"}
	],
	"name": "swapTokensForExactTokens",
	"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// SwapCall holds the arguments of a router swap. For exact-input swaps
// AmountIn is exact and AmountOut is the minimum; for exact-output swaps
// AmountOut is exact and AmountIn is the maximum.
type SwapCall struct {
	Method    string
	AmountIn  *big.Int
	AmountOut *big.Int
	Path      []common.Address
	To        common.Address
	Deadline  *big.Int
}

// Router encodes quotes as V2 router calldata. It only builds bytes; signing
// and sending are left to the wallet.
type Router struct {
	abi     abi.ABI
	address common.Address
}

func NewRouter(address common.Address) (*Router, error) {
	parsed, err := abi.JSON(strings.NewReader(RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}
	return &Router{abi: parsed, address: address}, nil
}

func (r *Router) Address() common.Address {
	return r.address
}

func onChain(a math.Amount) (*big.Int, error) {
	v, err := a.ToUint256()
	if err != nil {
		return nil, err
	}
	return v.ToBig(), nil
}

// EncodeExactIn encodes q as a swap of exactly q.AmountIn of in for at least
// q.MinAmount of out.
func (r *Router) EncodeExactIn(q quote.PriceQuote, in, out types.Token, to common.Address, deadline time.Time) ([]byte, error) {
	amountIn, err := onChain(q.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("amount in: %w", err)
	}
	minOut, err := onChain(q.MinAmount)
	if err != nil {
		return nil, fmt.Errorf("minimum out: %w", err)
	}
	return r.abi.Pack(MethodExactIn, amountIn, minOut, []common.Address{in.Address, out.Address}, to, big.NewInt(deadline.Unix()))
}

// EncodeExactOut encodes q as a swap for exactly q.AmountOut of out paying
// at most q.MaxIn of in.
func (r *Router) EncodeExactOut(q quote.MaxInQuote, in, out types.Token, to common.Address, deadline time.Time) ([]byte, error) {
	amountOut, err := onChain(q.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("amount out: %w", err)
	}
	maxIn, err := onChain(q.MaxIn)
	if err != nil {
		return nil, fmt.Errorf("maximum in: %w", err)
	}
	return r.abi.Pack(MethodExactOut, amountOut, maxIn, []common.Address{in.Address, out.Address}, to, big.NewInt(deadline.Unix()))
}

// Decode reads router calldata back into a SwapCall.
func (r *Router) Decode(data []byte) (SwapCall, error) {
	if len(data) < 4 {
		return SwapCall{}, fmt.Errorf("%w: %d bytes", ErrNotRouterSwap, len(data))
	}
	method, err := r.abi.MethodById(data[:4])
	if err != nil {
		return SwapCall{}, fmt.Errorf("%w: %v", ErrNotRouterSwap, err)
	}

	params := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(params, data[4:]); err != nil {
		return SwapCall{}, fmt.Errorf("failed to decode parameters: %w", err)
	}

	inKey, outKey := "amountIn", "amountOutMin"
	if method.Name == MethodExactOut {
		inKey, outKey = "amountInMax", "amountOut"
	}

	path, ok := params["path"].([]common.Address)
	if !ok || len(path) < 2 {
		return SwapCall{}, fmt.Errorf("invalid path")
	}
	amountIn, ok := params[inKey].(*big.Int)
	if !ok {
		return SwapCall{}, fmt.Errorf("invalid %s", inKey)
	}
	amountOut, ok := params[outKey].(*big.Int)
	if !ok {
		return SwapCall{}, fmt.Errorf("invalid %s", outKey)
	}
	to, ok := params["to"].(common.Address)
	if !ok {
		return SwapCall{}, fmt.Errorf("invalid to address")
	}
	deadline, ok := params["deadline"].(*big.Int)
	if !ok {
		return SwapCall{}, fmt.Errorf("invalid deadline")
	}

	return SwapCall{
		Method:    method.Name,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Path:      path,
		To:        to,
		Deadline:  deadline,
	}, nil
}
