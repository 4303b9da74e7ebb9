package asset

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
)

// Value is a quantity of one asset held outside any account.
//
// A Value moves by pointer. Merge consumes its argument and every consumed Value refuses
// further use, so a quantity cannot be counted twice. Values are created only by the
// execution environment, which also checks that none are left unsettled when a
// transaction ends.
type Value struct {
	asset  Asset
	amount uint64
	spent  bool
}

// NewValue creates a value. It is meant for the execution environment; callers obtain
// values by withdrawing from an account or receiving a swap output.
func NewValue(a Asset, amount uint64) *Value {
	return &Value{asset: a, amount: amount}
}

// Zero returns an empty value of asset a.
func Zero(a Asset) *Value {
	return &Value{asset: a}
}

// Asset returns the asset the value is denominated in.
func (v *Value) Asset() Asset {
	return v.asset
}

// Amount returns the quantity held. A consumed value holds nothing.
func (v *Value) Amount() uint64 {
	if v == nil || v.spent {
		return 0
	}
	return v.amount
}

// IsZero reports whether the value holds nothing.
func (v *Value) IsZero() bool {
	return v.Amount() == 0
}

// Spent reports whether the value has been consumed.
func (v *Value) Spent() bool {
	return v == nil || v.spent
}

// Split removes amount from v and returns it as a new value.
func (v *Value) Split(amount uint64) (*Value, error) {
	if v.Spent() {
		return nil, dexerr.ErrValueSpent
	}
	if amount > v.amount {
		return nil, fmt.Errorf("split %d from %d %s: %w", amount, v.amount, v.asset, dexerr.ErrInsufficientAmount)
	}
	v.amount -= amount
	return &Value{asset: v.asset, amount: amount}, nil
}

// Merge moves everything held by other into v and consumes other.
func (v *Value) Merge(other *Value) error {
	if v.Spent() || other.Spent() {
		return dexerr.ErrValueSpent
	}
	if v == other {
		return fmt.Errorf("merge value into itself: %w", dexerr.ErrValueSpent)
	}
	if other.asset != v.asset {
		return fmt.Errorf("merge %s into %s: %w", other.asset, v.asset, dexerr.ErrValueMismatch)
	}
	sum := v.amount + other.amount
	if sum < v.amount {
		return dexerr.ErrAmountOverflow
	}
	v.amount = sum
	other.consume()
	return nil
}

// Consume empties v, marks it spent and returns the amount it held.
func (v *Value) Consume() (uint64, error) {
	if v.Spent() {
		return 0, dexerr.ErrValueSpent
	}
	return v.consume(), nil
}

func (v *Value) consume() uint64 {
	amount := v.amount
	v.amount = 0
	v.spent = true
	return amount
}
