package uniswap

import (
	"fmt"
	"math/big"

	"github.com/michaelpento.lv/levquote/dex"
	"github.com/michaelpento.lv/levquote/utils/math"
)

var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
	bpsDenominator = big.NewInt(int64(math.MaxBasisPoints))
)

func checkReserves(reserveIn, reserveOut math.Amount) error {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return dex.ErrInsufficientLiquidity
	}
	return nil
}

func checkScale(amount, reserve math.Amount) error {
	if amount.Decimals() != reserve.Decimals() {
		return fmt.Errorf("amount has %d decimals, reserve has %d", amount.Decimals(), reserve.Decimals())
	}
	return nil
}

// GetAmountOut returns the output of swapping amountIn against the pair's
// reserves after the 0.3% fee. amountIn must share reserveIn's decimals;
// the result has reserveOut's.
func GetAmountOut(amountIn, reserveIn, reserveOut math.Amount) (math.Amount, error) {
	if amountIn.Sign() <= 0 {
		return math.Amount{}, dex.ErrInsufficientInputAmount
	}
	if err := checkReserves(reserveIn, reserveOut); err != nil {
		return math.Amount{}, err
	}
	if err := checkScale(amountIn, reserveIn); err != nil {
		return math.Amount{}, err
	}

	amountInWithFee := new(big.Int).Mul(amountIn.Mantissa(), feeNumerator)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut.Mantissa())
	denominator := new(big.Int).Mul(reserveIn.Mantissa(), feeDenominator)
	denominator.Add(denominator, amountInWithFee)

	return math.NewAmount(numerator.Quo(numerator, denominator), reserveOut.Decimals()), nil
}

// GetAmountIn returns the input needed to receive amountOut, rounded up by
// one base unit as the pair contract does.
func GetAmountIn(amountOut, reserveIn, reserveOut math.Amount) (math.Amount, error) {
	if amountOut.Sign() <= 0 {
		return math.Amount{}, dex.ErrInsufficientInputAmount
	}
	if err := checkReserves(reserveIn, reserveOut); err != nil {
		return math.Amount{}, err
	}
	if err := checkScale(amountOut, reserveOut); err != nil {
		return math.Amount{}, err
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return math.Amount{}, fmt.Errorf("%w: output %s exceeds reserve %s", dex.ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	numerator := new(big.Int).Mul(reserveIn.Mantissa(), amountOut.Mantissa())
	numerator.Mul(numerator, feeDenominator)
	denominator := new(big.Int).Sub(reserveOut.Mantissa(), amountOut.Mantissa())
	denominator.Mul(denominator, feeNumerator)

	amountIn := numerator.Quo(numerator, denominator)
	amountIn.Add(amountIn, big.NewInt(1))
	return math.NewAmount(amountIn, reserveIn.Decimals()), nil
}

// Quote returns the amount of B worth amountA at the pool's current ratio,
// ignoring fees. Used for proportional liquidity deposits.
func Quote(amountA, reserveA, reserveB math.Amount) (math.Amount, error) {
	if amountA.Sign() <= 0 {
		return math.Amount{}, dex.ErrInsufficientInputAmount
	}
	if err := checkReserves(reserveA, reserveB); err != nil {
		return math.Amount{}, err
	}
	if err := checkScale(amountA, reserveA); err != nil {
		return math.Amount{}, err
	}

	m := new(big.Int).Mul(amountA.Mantissa(), reserveB.Mantissa())
	m.Quo(m, reserveA.Mantissa())
	return math.NewAmount(m, reserveB.Decimals()), nil
}

// PriceImpactBps is how far the execution price of amountIn falls below
// the pool's spot price, fee included. It rounds up.
func PriceImpactBps(amountIn, reserveIn, reserveOut math.Amount) (math.BasisPoints, error) {
	amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return 0, err
	}

	// execution/spot = (out/in) / (reserveOut/reserveIn); the decimals cancel
	num := new(big.Int).Mul(amountOut.Mantissa(), reserveIn.Mantissa())
	num.Mul(num, bpsDenominator)
	den := new(big.Int).Mul(amountIn.Mantissa(), reserveOut.Mantissa())
	ratio := num.Quo(num, den)

	if ratio.Cmp(bpsDenominator) >= 0 {
		return 0, nil
	}
	return math.MaxBasisPoints - math.BasisPoints(ratio.Int64()), nil
}
