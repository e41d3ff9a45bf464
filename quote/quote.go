package quote

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
)

var (
	ErrDecimalsMismatch = errors.New("amount decimals do not match asset")
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrSlippageTooHigh  = errors.New("slippage above configured maximum")
	ErrUnknownDirection = errors.New("unknown quote direction")
)

// Direction is the kind of flow a quote is built for.
type Direction int

const (
	// Invest deposits an underlying asset into a vault for shares.
	Invest Direction = iota
	// Exit redeems vault shares for the underlying asset.
	Exit
	// Swap trades one asset for another at a pool or oracle price.
	Swap
)

func (d Direction) String() string {
	switch d {
	case Invest:
		return "invest"
	case Exit:
		return "exit"
	case Swap:
		return "swap"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection reads the lowercase name of a direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "invest":
		return Invest, nil
	case "exit":
		return Exit, nil
	case "swap":
		return Swap, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
}

// PriceQuote is the result of one quote request. It is never mutated
// after Build returns it.
type PriceQuote struct {
	// ID only correlates log lines; it has no on-chain meaning.
	ID             uuid.UUID
	Direction      Direction
	AmountIn       math.Amount
	ExpectedAmount math.Amount
	MinAmount      math.Amount
	Slippage       math.BasisPoints
}

// Request describes an exact-input quote. For Swap, Price is units of Out
// per unit of In. For Invest and Exit, Price is the share price in units of
// the underlying per share, whichever side the shares are on.
type Request struct {
	Direction Direction
	AmountIn  math.Amount
	In        types.Asset
	Out       types.Asset
	Price     math.Amount
	Slippage  math.BasisPoints
}

func checkAmount(amount math.Amount, asset types.Asset) (types.Token, error) {
	if asset == nil {
		return types.Token{}, fmt.Errorf("%w: nil asset", types.ErrUnknownAsset)
	}
	token := asset.Metadata()
	if amount.Decimals() != token.Decimals {
		return types.Token{}, fmt.Errorf("%w: %s has %d decimals, amount has %d",
			ErrDecimalsMismatch, token.Symbol, token.Decimals, amount.Decimals())
	}
	if amount.IsNegative() {
		return types.Token{}, fmt.Errorf("%w: %s", math.ErrNegativeAmount, amount)
	}
	return token, nil
}

func checkPrice(price math.Amount) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	return nil
}

func checkOut(asset types.Asset) (types.Token, error) {
	if asset == nil {
		return types.Token{}, fmt.Errorf("%w: nil asset", types.ErrUnknownAsset)
	}
	return asset.Metadata(), nil
}

// Build computes the quote for req according to its Direction. Swap and
// Exit multiply AmountIn by Price; Invest divides AmountIn by the share
// price. Expected amounts are at the output asset's decimals, truncated, and
// MinAmount = ApplySlippage(expected, Slippage).
func Build(req Request) (PriceQuote, error) {
	switch req.Direction {
	case Invest:
		return InvestQuote(req.AmountIn, req.In, req.Out, req.Price, req.Slippage)
	case Exit, Swap:
		return multiply(req)
	default:
		return PriceQuote{}, fmt.Errorf("%w: %s", ErrUnknownDirection, req.Direction)
	}
}

func multiply(req Request) (PriceQuote, error) {
	if _, err := checkAmount(req.AmountIn, req.In); err != nil {
		return PriceQuote{}, err
	}
	out, err := checkOut(req.Out)
	if err != nil {
		return PriceQuote{}, err
	}
	if err := checkPrice(req.Price); err != nil {
		return PriceQuote{}, err
	}

	expected := req.AmountIn.Mul(req.Price, out.Decimals)
	return finish(req.Direction, req.AmountIn, expected, req.Slippage)
}

func finish(dir Direction, amountIn, expected math.Amount, bps math.BasisPoints) (PriceQuote, error) {
	minOut, err := math.ApplySlippage(expected, bps)
	if err != nil {
		return PriceQuote{}, err
	}
	return PriceQuote{
		ID:             uuid.New(),
		Direction:      dir,
		AmountIn:       amountIn,
		ExpectedAmount: expected,
		MinAmount:      minOut,
		Slippage:       bps,
	}, nil
}

// InvestQuote quotes a vault deposit. sharePrice is underlying per share,
// so the expected share count is amountIn / sharePrice.
func InvestQuote(amountIn math.Amount, underlying, shares types.Asset, sharePrice math.Amount, bps math.BasisPoints) (PriceQuote, error) {
	if _, err := checkAmount(amountIn, underlying); err != nil {
		return PriceQuote{}, err
	}
	out, err := checkOut(shares)
	if err != nil {
		return PriceQuote{}, err
	}
	if err := checkPrice(sharePrice); err != nil {
		return PriceQuote{}, err
	}

	expected, err := amountIn.Div(sharePrice, out.Decimals)
	if err != nil {
		return PriceQuote{}, err
	}
	return finish(Invest, amountIn, expected, bps)
}

// ExitQuote quotes a vault redemption of shareAmount at sharePrice
// (underlying per share).
func ExitQuote(shareAmount math.Amount, shares, underlying types.Asset, sharePrice math.Amount, bps math.BasisPoints) (PriceQuote, error) {
	return multiply(Request{
		Direction: Exit,
		AmountIn:  shareAmount,
		In:        shares,
		Out:       underlying,
		Price:     sharePrice,
		Slippage:  bps,
	})
}

// MaxInQuote is the exact-output counterpart of PriceQuote.
type MaxInQuote struct {
	ID         uuid.UUID
	AmountOut  math.Amount
	ExpectedIn math.Amount
	MaxIn      math.Amount
	Slippage   math.BasisPoints
}

// QuoteMaxIn computes the input needed to receive amountOut of out at price
// (out per in) and the most the caller should be willing to spend. The
// required input rounds up so the trade never under-funds the output.
func QuoteMaxIn(amountOut math.Amount, in, out types.Asset, price math.Amount, bps math.BasisPoints) (MaxInQuote, error) {
	if _, err := checkAmount(amountOut, out); err != nil {
		return MaxInQuote{}, err
	}
	inToken, err := checkOut(in)
	if err != nil {
		return MaxInQuote{}, err
	}
	if err := checkPrice(price); err != nil {
		return MaxInQuote{}, err
	}

	required, err := amountOut.DivRound(price, inToken.Decimals, math.RoundAwayFromZero)
	if err != nil {
		return MaxInQuote{}, err
	}
	maxIn, err := math.InvertSlippage(required, bps)
	if err != nil {
		return MaxInQuote{}, err
	}
	return MaxInQuote{
		ID:         uuid.New(),
		AmountOut:  amountOut,
		ExpectedIn: required,
		MaxIn:      maxIn,
		Slippage:   bps,
	}, nil
}

// InversePrice returns 1 / price at the given decimals.
func InversePrice(price math.Amount, decimals uint8) (math.Amount, error) {
	if err := checkPrice(price); err != nil {
		return math.Amount{}, err
	}
	return math.FromWhole(1, 0).Div(price, decimals)
}

// PoolPrice is the spot price implied by a constant-product pool: units of
// the out token per unit of the in token.
func PoolPrice(reserveIn, reserveOut math.Amount, decimals uint8) (math.Amount, error) {
	if reserveIn.Sign() <= 0 {
		return math.Amount{}, fmt.Errorf("%w: empty input reserve", math.ErrDivisionByZero)
	}
	if reserveOut.IsNegative() {
		return math.Amount{}, fmt.Errorf("%w: %s", math.ErrNegativeAmount, reserveOut)
	}
	return reserveOut.Div(reserveIn, decimals)
}
