package poolregistry

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/constantproduct"
)

// MinimumLiquidity is the number of shares locked forever by the first deposit into a pool,
// so that the share price can never be driven to zero.
const MinimumLiquidity = 1000

// Reserves is the mutable state of one pool in canonical (x, y) orientation.
// Methods never modify the receiver; they return the next state.
type Reserves struct {
	X           uint64 `json:"x"`
	Y           uint64 `json:"y"`
	TotalSupply uint64 `json:"totalSupply"`
}

// IsEmpty reports whether the pool has never received liquidity or has been fully drained.
func (r Reserves) IsEmpty() bool {
	return r.TotalSupply == 0
}

func add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, dexerr.ErrAmountOverflow
	}
	return sum, nil
}

// Mint deposits amountX and amountY and returns the shares issued to the depositor.
//
// The first deposit issues sqrt(amountX*amountY) - MinimumLiquidity shares and adds the full
// square root to the total supply; the caller must credit MinimumLiquidity shares to an
// account that can never spend them. Later deposits issue
// min(amountX*T/X, amountY*T/Y).
func (r Reserves) Mint(amountX, amountY uint64) (uint64, Reserves, error) {
	if amountX == 0 || amountY == 0 {
		return 0, r, dexerr.ErrInsufficientAmount
	}
	next := r
	var (
		liquidity uint64
		minted    uint64
		err       error
	)
	if r.IsEmpty() {
		root := constantproduct.Sqrt(amountX, amountY)
		if root <= MinimumLiquidity {
			return 0, r, fmt.Errorf("initial deposit %d/%d: %w", amountX, amountY, dexerr.ErrInsufficientLiquidityMinted)
		}
		liquidity, minted = root-MinimumLiquidity, root
	} else {
		fromX, err := constantproduct.MulDiv(amountX, r.TotalSupply, r.X)
		if err != nil {
			return 0, r, err
		}
		fromY, err := constantproduct.MulDiv(amountY, r.TotalSupply, r.Y)
		if err != nil {
			return 0, r, err
		}
		liquidity = min(fromX, fromY)
		if liquidity == 0 {
			return 0, r, dexerr.ErrInsufficientLiquidityMinted
		}
		minted = liquidity
	}

	if next.X, err = add(r.X, amountX); err != nil {
		return 0, r, err
	}
	if next.Y, err = add(r.Y, amountY); err != nil {
		return 0, r, err
	}
	if next.TotalSupply, err = add(r.TotalSupply, minted); err != nil {
		return 0, r, err
	}
	return liquidity, next, nil
}

// Burn redeems liquidity shares for liquidity*X/T of x and liquidity*Y/T of y.
func (r Reserves) Burn(liquidity uint64) (amountX, amountY uint64, next Reserves, err error) {
	if liquidity == 0 || liquidity > r.TotalSupply {
		return 0, 0, r, fmt.Errorf("burn %d of %d: %w", liquidity, r.TotalSupply, dexerr.ErrInsufficientLiquidityBurned)
	}
	if amountX, err = constantproduct.MulDiv(liquidity, r.X, r.TotalSupply); err != nil {
		return 0, 0, r, err
	}
	if amountY, err = constantproduct.MulDiv(liquidity, r.Y, r.TotalSupply); err != nil {
		return 0, 0, r, err
	}
	if amountX == 0 || amountY == 0 {
		return 0, 0, r, fmt.Errorf("burn %d of %d: %w", liquidity, r.TotalSupply, dexerr.ErrInsufficientLiquidityBurned)
	}
	next = Reserves{
		X:           r.X - amountX,
		Y:           r.Y - amountY,
		TotalSupply: r.TotalSupply - liquidity,
	}
	return amountX, amountY, next, nil
}

// Swap applies a trade paying amountIn into one side and amountOut out of the other.
// xIn selects the side that receives amountIn. The trade must not decrease the
// fee-adjusted constant product.
func (r Reserves) Swap(xIn bool, amountIn, amountOut uint64) (Reserves, error) {
	reserveIn, reserveOut := r.X, r.Y
	if !xIn {
		reserveIn, reserveOut = r.Y, r.X
	}
	if amountIn == 0 {
		return r, dexerr.ErrInsufficientInput
	}
	if amountOut == 0 {
		return r, dexerr.ErrInsufficientOutput
	}
	if err := constantproduct.CheckInvariant(amountIn, amountOut, reserveIn, reserveOut); err != nil {
		return r, err
	}
	newIn, err := add(reserveIn, amountIn)
	if err != nil {
		return r, err
	}
	newOut := reserveOut - amountOut

	next := r
	if xIn {
		next.X, next.Y = newIn, newOut
	} else {
		next.X, next.Y = newOut, newIn
	}
	return next, nil
}

// OptimalAmounts sizes a deposit so that it matches the pool's current ratio.
//
// An empty pool accepts the desired amounts as they are. Otherwise the desired amount of A
// is matched first; if the matching amount of B exceeds desiredB, desiredB is matched
// instead. The deposit fails if the matched side falls below its minimum.
func OptimalAmounts(desiredA, desiredB, minA, minB, reserveA, reserveB uint64) (amountA, amountB uint64, err error) {
	if desiredA == 0 || desiredB == 0 {
		return 0, 0, dexerr.ErrInsufficientAmount
	}
	if reserveA == 0 && reserveB == 0 {
		return desiredA, desiredB, nil
	}

	optimalB, err := constantproduct.QuoteProportional(desiredA, reserveA, reserveB)
	if err != nil {
		return 0, 0, err
	}
	if optimalB <= desiredB {
		if optimalB < minB {
			return 0, 0, fmt.Errorf("optimal %d below minimum %d: %w", optimalB, minB, dexerr.ErrInsufficientBAmount)
		}
		return desiredA, optimalB, nil
	}

	optimalA, err := constantproduct.QuoteProportional(desiredB, reserveB, reserveA)
	if err != nil {
		return 0, 0, err
	}
	if optimalA > desiredA || optimalA < minA {
		return 0, 0, fmt.Errorf("optimal %d outside [%d, %d]: %w", optimalA, minA, desiredA, dexerr.ErrInsufficientAAmount)
	}
	return optimalA, desiredB, nil
}
