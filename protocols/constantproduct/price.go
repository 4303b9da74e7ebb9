package constantproduct

import (
	"math/big"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/shopspring/decimal"
)

// displayPrecision is the number of decimal places kept by SpotPrice and PriceImpact.
const displayPrecision = 18

func dec(x uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
}

// SpotPrice returns the marginal price of the input asset in units of the output asset,
// ignoring the fee.
func SpotPrice(reserveIn, reserveOut uint64) (decimal.Decimal, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return decimal.Zero, dexerr.ErrInsufficientLiquidity
	}
	return dec(reserveOut).DivRound(dec(reserveIn), displayPrecision), nil
}

// ExecutionPrice returns amountOut per unit of amountIn.
func ExecutionPrice(amountIn, amountOut uint64) (decimal.Decimal, error) {
	if amountIn == 0 {
		return decimal.Zero, dexerr.ErrInsufficientInput
	}
	return dec(amountOut).DivRound(dec(amountIn), displayPrecision), nil
}

// PriceImpact returns the fraction by which the execution price of a trade falls short of
// the spot price before the trade. The fee is included in the impact.
func PriceImpact(amountIn, amountOut, reserveIn, reserveOut uint64) (decimal.Decimal, error) {
	spot, err := SpotPrice(reserveIn, reserveOut)
	if err != nil {
		return decimal.Zero, err
	}
	execution, err := ExecutionPrice(amountIn, amountOut)
	if err != nil {
		return decimal.Zero, err
	}
	return Impact(execution, spot), nil
}

// Impact returns 1 - execution/spot. Routed quotes pass the spot price compounded over
// every hop. A zero spot price has no impact.
func Impact(execution, spot decimal.Decimal) decimal.Decimal {
	if spot.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Sub(execution.DivRound(spot, displayPrecision))
}
