package uniswap

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/levquote/dex"
	"github.com/michaelpento.lv/levquote/quote"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
)

// Mainnet deployment
var (
	MainnetFactory      = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	MainnetInitCodeHash = common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
)

// SortTokens orders two addresses the way V2 factories do.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// PairFor derives the CREATE2 address of the a/b pair without an RPC call.
func PairFor(factory common.Address, initCodeHash common.Hash, a, b common.Address) common.Address {
	token0, token1 := SortTokens(a, b)
	salt := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(crypto.Keccak256(
		[]byte{0xff},
		factory.Bytes(),
		salt,
		initCodeHash.Bytes(),
	)[12:])
}

// V2 is a PriceSource backed by constant-product pair reserves.
type V2 struct {
	name         string
	factory      common.Address
	initCodeHash common.Hash
	dial         PairDialer
	logger       *zap.Logger

	mu    sync.Mutex
	pairs map[common.Address]ReserveReader
}

// NewV2 creates a source for the factory deployment described by factory
// and initCodeHash.
func NewV2(name string, factory common.Address, initCodeHash common.Hash, dial PairDialer, logger *zap.Logger) *V2 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &V2{
		name:         name,
		factory:      factory,
		initCodeHash: initCodeHash,
		dial:         dial,
		logger:       logger,
		pairs:        make(map[common.Address]ReserveReader),
	}
}

// NewMainnetV2 creates a source for the canonical Uniswap V2 deployment.
func NewMainnetV2(dial PairDialer, logger *zap.Logger) *V2 {
	return NewV2("uniswap-v2", MainnetFactory, MainnetInitCodeHash, dial, logger)
}

// Name returns the exchange name
func (u *V2) Name() string {
	return u.name
}

// PairAddress returns the pair address for a and b on this deployment.
func (u *V2) PairAddress(a, b types.Token) common.Address {
	return PairFor(u.factory, u.initCodeHash, a.Address, b.Address)
}

func (u *V2) pair(a, b types.Token) (ReserveReader, error) {
	addr := u.PairAddress(a, b)

	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.pairs[addr]; ok {
		return p, nil
	}

	p, err := u.dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create pair contract: %w", err)
	}
	u.pairs[addr] = p
	u.logger.Debug("Opened pair",
		zap.String("exchange", u.name),
		zap.String("pair", addr.Hex()),
		zap.String("token0", a.Symbol),
		zap.String("token1", b.Symbol))
	return p, nil
}

// Reserves returns the a/b pair's reserves ordered as (a, b), each at its
// token's decimals.
func (u *V2) Reserves(ctx context.Context, a, b types.Token) (dex.Reserves, error) {
	if a.ChainID != b.ChainID || a.Address == b.Address {
		return dex.Reserves{}, fmt.Errorf("%w: %s/%s", dex.ErrUnsupportedPair, a, b)
	}

	p, err := u.pair(a, b)
	if err != nil {
		return dex.Reserves{}, err
	}
	raw, err := p.GetReserves(ctx)
	if err != nil {
		return dex.Reserves{}, err
	}

	r0, r1 := raw.Reserve0, raw.Reserve1
	if token0, _ := SortTokens(a.Address, b.Address); token0 != a.Address {
		r0, r1 = r1, r0
	}
	return dex.Reserves{
		Reserve0:       math.NewAmount(r0, a.Decimals),
		Reserve1:       math.NewAmount(r1, b.Decimals),
		BlockTimestamp: raw.BlockTimestamp,
	}, nil
}

// Price returns the pool's spot price of base in quote units.
func (u *V2) Price(ctx context.Context, base, quoteToken types.Token) (math.Amount, error) {
	r, err := u.Reserves(ctx, base, quoteToken)
	if err != nil {
		return math.Amount{}, err
	}
	if r.Reserve0.Sign() <= 0 || r.Reserve1.Sign() <= 0 {
		return math.Amount{}, fmt.Errorf("%w: %s/%s", dex.ErrInsufficientLiquidity, base.Symbol, quoteToken.Symbol)
	}
	return quote.PoolPrice(r.Reserve0, r.Reserve1, dex.PriceDecimals)
}

// AmountOut returns what swapping amountIn of in for out yields right now.
func (u *V2) AmountOut(ctx context.Context, amountIn math.Amount, in, out types.Token) (math.Amount, error) {
	r, err := u.Reserves(ctx, in, out)
	if err != nil {
		return math.Amount{}, err
	}
	return GetAmountOut(amountIn, r.Reserve0, r.Reserve1)
}

// AmountIn returns what must be paid in to receive amountOut of out.
func (u *V2) AmountIn(ctx context.Context, amountOut math.Amount, in, out types.Token) (math.Amount, error) {
	r, err := u.Reserves(ctx, in, out)
	if err != nil {
		return math.Amount{}, err
	}
	return GetAmountIn(amountOut, r.Reserve0, r.Reserve1)
}
