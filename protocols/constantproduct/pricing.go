// Package constantproduct implements constant-product pricing with a 0.25% swap fee.
//
// All functions are pure. Products are computed in 256-bit integers and narrowed back to
// 64 bits; a result that does not fit fails with dexerr.ErrAmountOverflow.
package constantproduct

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/holiman/uint256"
)

const (
	// FeeNumerator / FeeDenominator is the share of an input amount that reaches the curve.
	FeeNumerator   = 9975
	FeeDenominator = 10000
)

var (
	feeNumerator   = uint256.NewInt(FeeNumerator)
	feeDenominator = uint256.NewInt(FeeDenominator)
)

func u256(x uint64) *uint256.Int {
	return uint256.NewInt(x)
}

func narrow(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, fmt.Errorf("%s: %w", x.Dec(), dexerr.ErrAmountOverflow)
	}
	return x.Uint64(), nil
}

// QuoteExactInput returns the output paid for amountIn against the given reserves.
//
//	amountOut = floor(amountIn*9975*reserveOut / (reserveIn*10000 + amountIn*9975))
func QuoteExactInput(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, dexerr.ErrInsufficientInput
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, dexerr.ErrInsufficientLiquidity
	}
	amountInWithFee := new(uint256.Int).Mul(u256(amountIn), feeNumerator)
	numerator := new(uint256.Int).Mul(amountInWithFee, u256(reserveOut))
	denominator := new(uint256.Int).Mul(u256(reserveIn), feeDenominator)
	denominator.Add(denominator, amountInWithFee)
	return narrow(numerator.Div(numerator, denominator))
}

// QuoteExactOutput returns the input required to receive amountOut. The result is rounded
// up by one so the pool is never underpaid.
//
//	amountIn = floor(reserveIn*amountOut*10000 / ((reserveOut-amountOut)*9975)) + 1
func QuoteExactOutput(amountOut, reserveIn, reserveOut uint64) (uint64, error) {
	if amountOut == 0 {
		return 0, dexerr.ErrInsufficientOutput
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, dexerr.ErrInsufficientLiquidity
	}
	if amountOut >= reserveOut {
		return 0, fmt.Errorf("output %d against reserve %d: %w", amountOut, reserveOut, dexerr.ErrInsufficientLiquidity)
	}
	numerator := new(uint256.Int).Mul(u256(reserveIn), u256(amountOut))
	numerator.Mul(numerator, feeDenominator)
	denominator := new(uint256.Int).Mul(u256(reserveOut-amountOut), feeNumerator)
	amountIn := numerator.Div(numerator, denominator)
	amountIn.AddUint64(amountIn, 1)
	return narrow(amountIn)
}

// QuoteProportional returns the amount of Y worth amountX at the current reserve ratio,
// without a fee. It sizes balanced liquidity deposits.
func QuoteProportional(amountX, reserveX, reserveY uint64) (uint64, error) {
	if amountX == 0 {
		return 0, dexerr.ErrInsufficientAmount
	}
	if reserveX == 0 || reserveY == 0 {
		return 0, dexerr.ErrInsufficientLiquidity
	}
	return MulDiv(amountX, reserveY, reserveX)
}

// MulDiv returns floor(a*b/c).
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, dexerr.ErrInsufficientLiquidity
	}
	product := new(uint256.Int).Mul(u256(a), u256(b))
	return narrow(product.Div(product, u256(c)))
}

// Sqrt returns floor(sqrt(a*b)). The result always fits in 64 bits.
func Sqrt(a, b uint64) uint64 {
	product := new(uint256.Int).Mul(u256(a), u256(b))
	return product.Sqrt(product).Uint64()
}

// CheckInvariant verifies that a swap paying amountOut for amountIn does not decrease the
// fee-adjusted constant product:
//
//	(reserveIn*10000 + amountIn*9975) * (reserveOut - amountOut) >= reserveIn*reserveOut*10000
func CheckInvariant(amountIn, amountOut, reserveIn, reserveOut uint64) error {
	if amountOut >= reserveOut {
		return fmt.Errorf("output %d against reserve %d: %w", amountOut, reserveOut, dexerr.ErrInsufficientLiquidity)
	}
	adjustedIn := new(uint256.Int).Mul(u256(reserveIn), feeDenominator)
	adjustedIn.Add(adjustedIn, new(uint256.Int).Mul(u256(amountIn), feeNumerator))
	after := adjustedIn.Mul(adjustedIn, u256(reserveOut-amountOut))

	before := new(uint256.Int).Mul(u256(reserveIn), u256(reserveOut))
	before.Mul(before, feeDenominator)

	if after.Lt(before) {
		return fmt.Errorf("in %d out %d against %d/%d: %w", amountIn, amountOut, reserveIn, reserveOut, dexerr.ErrInvariantViolated)
	}
	return nil
}
