package uniswap

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ReserveReader is the part of a pair binding V2 needs. *Pair implements it.
type ReserveReader interface {
	GetReserves(ctx context.Context) (RawReserves, error)
}

// PairDialer opens a reader for the pair at address.
type PairDialer func(address common.Address) (ReserveReader, error)

// ContractDialer dials pairs as on-chain bindings through caller.
func ContractDialer(caller bind.ContractCaller) PairDialer {
	return func(address common.Address) (ReserveReader, error) {
		pair, err := NewPair(address, caller)
		if err != nil {
			return nil, err
		}
		return pair, nil
	}
}
