package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// PairABI is the read-only subset of the V2 pair contract.
const PairABI = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token0",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token1",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

// RawReserves are getReserves outputs in base units.
type RawReserves struct {
	Reserve0       *big.Int
	Reserve1       *big.Int
	BlockTimestamp uint32
}

// Pair is a read-only binding to a deployed V2 pair.
type Pair struct {
	contract *bind.BoundContract
	address  common.Address
}

// NewPair binds the pair at address for calls through caller.
func NewPair(address common.Address, caller bind.ContractCaller) (*Pair, error) {
	parsedABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}

	return &Pair{
		contract: bind.NewBoundContract(address, parsedABI, caller, nil, nil),
		address:  address,
	}, nil
}

// Address returns the pair contract address.
func (p *Pair) Address() common.Address {
	return p.address
}

// GetReserves returns the current reserves of the pair.
func (p *Pair) GetReserves(ctx context.Context) (RawReserves, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves"); err != nil {
		return RawReserves{}, fmt.Errorf("failed to get reserves of %s: %w", p.address.Hex(), err)
	}
	if len(out) != 3 {
		return RawReserves{}, fmt.Errorf("unexpected getReserves output length %d", len(out))
	}

	reserve0, ok := out[0].(*big.Int)
	if !ok {
		return RawReserves{}, fmt.Errorf("failed to parse reserve0")
	}
	reserve1, ok := out[1].(*big.Int)
	if !ok {
		return RawReserves{}, fmt.Errorf("failed to parse reserve1")
	}
	ts, ok := out[2].(uint32)
	if !ok {
		return RawReserves{}, fmt.Errorf("failed to parse blockTimestampLast")
	}

	return RawReserves{Reserve0: reserve0, Reserve1: reserve1, BlockTimestamp: ts}, nil
}

// Token0 returns the address of token0.
func (p *Pair) Token0(ctx context.Context) (common.Address, error) {
	return p.token(ctx, "token0")
}

// Token1 returns the address of token1.
func (p *Pair) Token1(ctx context.Context) (common.Address, error) {
	return p.token(ctx, "token1")
}

func (p *Pair) token(ctx context.Context, method string) (common.Address, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return common.Address{}, fmt.Errorf("failed to get %s: %w", method, err)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("empty %s output", method)
	}

	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse %s address", method)
	}
	return addr, nil
}
