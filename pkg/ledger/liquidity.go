package ledger

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
)

// LockedLiquidityOwner holds the shares locked by the first deposit into every pool.
var LockedLiquidityOwner = common.Address{}

// LiquidityDeposit is the outcome of AddLiquidity.
type LiquidityDeposit struct {
	AmountA   uint64 `json:"amountA"`
	AmountB   uint64 `json:"amountB"`
	Liquidity uint64 `json:"liquidity"`
}

// LiquidityWithdrawal is the outcome of RemoveLiquidity.
type LiquidityWithdrawal struct {
	AmountA uint64 `json:"amountA"`
	AmountB uint64 `json:"amountB"`
}

func (tx *Tx) shareBalance(key poolregistry.PoolKey, p *pool, owner common.Address) uint64 {
	if amount, ok := tx.shares[shareKey{pool: key, owner: owner}]; ok {
		return amount
	}
	return p.shares[owner]
}

func (tx *Tx) setShares(key poolregistry.PoolKey, owner common.Address, amount uint64) {
	tx.shares[shareKey{pool: key, owner: owner}] = amount
}

// RegisterLiquidityProvider records owner as a liquidity provider of the pool of a and b.
// Registering twice is harmless.
func (tx *Tx) RegisterLiquidityProvider(owner common.Address, a, b asset.Asset) error {
	p, _, err := tx.lockedPool(a, b)
	if err != nil {
		return err
	}
	tx.providers[shareKey{pool: p.key, owner: owner}] = struct{}{}
	return nil
}

// AddLiquidity deposits a and b from owner's balance at the pool's current ratio and
// credits owner with the shares minted.
func (tx *Tx) AddLiquidity(owner common.Address, a, b asset.Asset, desiredA, desiredB, minA, minB uint64) (LiquidityDeposit, error) {
	p, r, err := tx.lockedPool(a, b)
	if err != nil {
		return LiquidityDeposit{}, err
	}
	aIsX := a.Address == p.x.Address
	reserveA, reserveB := r.X, r.Y
	if !aIsX {
		reserveA, reserveB = r.Y, r.X
	}

	amountA, amountB, err := poolregistry.OptimalAmounts(desiredA, desiredB, minA, minB, reserveA, reserveB)
	if err != nil {
		return LiquidityDeposit{}, err
	}
	amountX, amountY := amountA, amountB
	if !aIsX {
		amountX, amountY = amountB, amountA
	}
	liquidity, next, err := r.Mint(amountX, amountY)
	if err != nil {
		return LiquidityDeposit{}, err
	}

	if err := tx.debit(owner, a, amountA); err != nil {
		return LiquidityDeposit{}, err
	}
	if err := tx.debit(owner, b, amountB); err != nil {
		return LiquidityDeposit{}, err
	}
	if r.IsEmpty() {
		locked := tx.shareBalance(p.key, p, LockedLiquidityOwner)
		tx.setShares(p.key, LockedLiquidityOwner, locked+poolregistry.MinimumLiquidity)
	}
	tx.setShares(p.key, owner, tx.shareBalance(p.key, p, owner)+liquidity)
	tx.providers[shareKey{pool: p.key, owner: owner}] = struct{}{}
	tx.reserves[p.key] = next

	return LiquidityDeposit{AmountA: amountA, AmountB: amountB, Liquidity: liquidity}, nil
}

// RemoveLiquidity burns liquidity of owner's shares and credits the redeemed a and b.
func (tx *Tx) RemoveLiquidity(owner common.Address, a, b asset.Asset, liquidity, minA, minB uint64) (LiquidityWithdrawal, error) {
	p, r, err := tx.lockedPool(a, b)
	if err != nil {
		return LiquidityWithdrawal{}, err
	}
	held := tx.shareBalance(p.key, p, owner)
	if held < liquidity {
		return LiquidityWithdrawal{}, fmt.Errorf("%s holds %d shares, burns %d: %w", owner.Hex(), held, liquidity, dexerr.ErrInsufficientBalance)
	}
	amountX, amountY, next, err := r.Burn(liquidity)
	if err != nil {
		return LiquidityWithdrawal{}, err
	}
	amountA, amountB := amountX, amountY
	if a.Address != p.x.Address {
		amountA, amountB = amountY, amountX
	}
	if amountA < minA {
		return LiquidityWithdrawal{}, fmt.Errorf("redeemed %d, want at least %d: %w", amountA, minA, dexerr.ErrInsufficientAAmount)
	}
	if amountB < minB {
		return LiquidityWithdrawal{}, fmt.Errorf("redeemed %d, want at least %d: %w", amountB, minB, dexerr.ErrInsufficientBAmount)
	}

	if err := tx.credit(owner, a, amountA); err != nil {
		return LiquidityWithdrawal{}, err
	}
	if err := tx.credit(owner, b, amountB); err != nil {
		return LiquidityWithdrawal{}, err
	}
	tx.setShares(p.key, owner, held-liquidity)
	tx.reserves[p.key] = next
	return LiquidityWithdrawal{AmountA: amountA, AmountB: amountB}, nil
}

// AddLiquidity runs Tx.AddLiquidity as its own transaction.
func (l *Ledger) AddLiquidity(owner common.Address, a, b asset.Asset, desiredA, desiredB, minA, minB uint64) (LiquidityDeposit, error) {
	var d LiquidityDeposit
	err := l.Atomic([]common.Address{owner}, [][2]asset.Asset{{a, b}}, func(tx *Tx) error {
		var err error
		d, err = tx.AddLiquidity(owner, a, b, desiredA, desiredB, minA, minB)
		return err
	})
	return d, err
}

// RemoveLiquidity runs Tx.RemoveLiquidity as its own transaction.
func (l *Ledger) RemoveLiquidity(owner common.Address, a, b asset.Asset, liquidity, minA, minB uint64) (LiquidityWithdrawal, error) {
	var w LiquidityWithdrawal
	err := l.Atomic([]common.Address{owner}, [][2]asset.Asset{{a, b}}, func(tx *Tx) error {
		var err error
		w, err = tx.RemoveLiquidity(owner, a, b, liquidity, minA, minB)
		return err
	})
	return w, err
}

// RegisterLiquidityProvider runs Tx.RegisterLiquidityProvider as its own transaction.
func (l *Ledger) RegisterLiquidityProvider(owner common.Address, a, b asset.Asset) error {
	return l.Atomic([]common.Address{owner}, [][2]asset.Asset{{a, b}}, func(tx *Tx) error {
		return tx.RegisterLiquidityProvider(owner, a, b)
	})
}
