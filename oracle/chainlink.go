package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/levquote/dex"
	"github.com/michaelpento.lv/levquote/quote"
	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
	"github.com/michaelpento.lv/levquote/utils/memo"
)

var (
	ErrInvalidAnswer = errors.New("oracle answer is not positive")
	ErrStaleAnswer   = errors.New("oracle answer is stale")
)

// AggregatorABI is the read-only subset of a Chainlink aggregator proxy.
const AggregatorABI = `[{
	"inputs": [],
	"name": "decimals",
	"outputs": [{"name": "", "type": "uint8"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"inputs": [],
	"name": "description",
	"outputs": [{"name": "", "type": "string"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"inputs": [],
	"name": "latestRoundData",
	"outputs": [
		{"name": "roundId", "type": "uint80"},
		{"name": "answer", "type": "int256"},
		{"name": "startedAt", "type": "uint256"},
		{"name": "updatedAt", "type": "uint256"},
		{"name": "answeredInRound", "type": "uint80"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

// Round is one aggregator answer.
type Round struct {
	ID        *big.Int
	Answer    math.Amount
	UpdatedAt time.Time
}

// ChainlinkFeed reads the price of Base in Quote units from an aggregator.
type ChainlinkFeed struct {
	contract *bind.BoundContract
	address  common.Address
	base     types.Token
	quote    types.Token
	maxAge   time.Duration
	now      func() time.Time
	decimals *memo.Value[uint8]
	logger   *zap.Logger
}

// NewChainlinkFeed binds the aggregator at address. A zero maxAge accepts
// answers of any age.
func NewChainlinkFeed(address common.Address, caller bind.ContractCaller, base, quoteToken types.Token, maxAge time.Duration, logger *zap.Logger) (*ChainlinkFeed, error) {
	parsedABI, err := abi.JSON(strings.NewReader(AggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator ABI: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &ChainlinkFeed{
		contract: bind.NewBoundContract(address, parsedABI, caller, nil, nil),
		address:  address,
		base:     base,
		quote:    quoteToken,
		maxAge:   maxAge,
		now:      time.Now,
		logger:   logger,
	}
	// decimals never change for a deployed aggregator
	f.decimals = memo.NewValue(f.readDecimals, memo.WithLogger(logger), memo.WithName("chainlink_decimals"))
	return f, nil
}

func (f *ChainlinkFeed) Name() string {
	return "chainlink"
}

func (f *ChainlinkFeed) Address() common.Address {
	return f.address
}

// Pair returns the key of the price this feed reports.
func (f *ChainlinkFeed) Pair() types.PairKey {
	return types.NewPairKey(f.base, f.quote)
}

func (f *ChainlinkFeed) readDecimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("failed to get decimals of %s: %w", f.address.Hex(), err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("empty decimals output")
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("failed to parse decimals")
	}
	return d, nil
}

// Decimals returns the scale of the feed's answers.
func (f *ChainlinkFeed) Decimals(ctx context.Context) (uint8, error) {
	return f.decimals.Get(ctx)
}

// Description returns the aggregator's label, e.g. "ETH / USD".
func (f *ChainlinkFeed) Description(ctx context.Context) (string, error) {
	var out []interface{}
	if err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "description"); err != nil {
		return "", fmt.Errorf("failed to get description: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("empty description output")
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("failed to parse description")
	}
	return s, nil
}

// LatestRound returns the newest answer. Non-positive answers fail with
// ErrInvalidAnswer and answers older than maxAge with ErrStaleAnswer.
func (f *ChainlinkFeed) LatestRound(ctx context.Context) (Round, error) {
	decimals, err := f.Decimals(ctx)
	if err != nil {
		return Round{}, err
	}

	var out []interface{}
	if err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "latestRoundData"); err != nil {
		return Round{}, fmt.Errorf("failed to get latest round of %s: %w", f.address.Hex(), err)
	}
	if len(out) != 5 {
		return Round{}, fmt.Errorf("unexpected latestRoundData output length %d", len(out))
	}

	roundID, ok := out[0].(*big.Int)
	if !ok {
		return Round{}, fmt.Errorf("failed to parse roundId")
	}
	answer, ok := out[1].(*big.Int)
	if !ok {
		return Round{}, fmt.Errorf("failed to parse answer")
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return Round{}, fmt.Errorf("failed to parse updatedAt")
	}

	if answer.Sign() <= 0 {
		return Round{}, fmt.Errorf("%w: %s from %s", ErrInvalidAnswer, answer, f.address.Hex())
	}
	updated := time.Unix(updatedAt.Int64(), 0)
	if f.maxAge > 0 && f.now().Sub(updated) > f.maxAge {
		return Round{}, fmt.Errorf("%w: updated %s ago", ErrStaleAnswer, f.now().Sub(updated).Round(time.Second))
	}

	return Round{
		ID:        roundID,
		Answer:    math.NewAmount(answer, decimals),
		UpdatedAt: updated,
	}, nil
}

// Price returns the feed's answer at dex.PriceDecimals. Asking for the
// reversed pair returns the inverse.
func (f *ChainlinkFeed) Price(ctx context.Context, base, quoteToken types.Token) (math.Amount, error) {
	want := types.NewPairKey(base, quoteToken)
	inverse := types.NewPairKey(quoteToken, base) == f.Pair()
	if want != f.Pair() && !inverse {
		return math.Amount{}, fmt.Errorf("%w: feed %s serves %s, not %s", dex.ErrUnsupportedPair, f.address.Hex(), f.Pair(), want)
	}

	round, err := f.LatestRound(ctx)
	if err != nil {
		return math.Amount{}, err
	}
	f.logger.Debug("Read oracle round",
		zap.String("feed", f.address.Hex()),
		zap.String("round", round.ID.String()),
		zap.Stringer("answer", round.Answer),
		zap.Time("updatedAt", round.UpdatedAt))

	if inverse {
		return quote.InversePrice(round.Answer, dex.PriceDecimals)
	}
	return round.Answer.Rescale(dex.PriceDecimals), nil
}
