// Package swap executes single-hop constant-product swaps against a Pool.
package swap

import (
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
)

// Reader is the read-only part of a Pool.
type Reader interface {
	// Reserves returns the reserves of a and b, oriented to the argument order.
	Reserves(a, b asset.Asset) (reserveA, reserveB uint64, err error)
	PairExists(a, b asset.Asset) bool
}

// Pool is the execution environment a swap runs against. It owns reserves and account
// balances. All calls made through one Pool belong to a single all-or-nothing unit: if the
// unit fails, none of its effects are kept.
//
// The Execute methods receive amounts already priced by the caller. A Pool must reject any
// trade that would decrease the fee-adjusted constant product.
type Pool interface {
	Reader

	// ExecuteExactInput debits amountIn of a from account, credits amountOut of b and
	// returns amountOut.
	ExecuteExactInput(a, b asset.Asset, amountIn, amountOut uint64, account common.Address) (uint64, error)
	// ExecuteExactOutput debits amountIn of a from account, credits amountOut of b and
	// returns amountIn.
	ExecuteExactOutput(a, b asset.Asset, amountIn, amountOut uint64, account common.Address) (uint64, error)

	// ExecuteExactInputDirect consumes all of valueIn and returns amountOut of assetOut as a
	// new value. remainder is an empty value of the input asset.
	ExecuteExactInputDirect(valueIn *asset.Value, assetOut asset.Asset, amountOut uint64) (remainder, valueOut *asset.Value, err error)
	// ExecuteExactOutputDirect takes amountIn out of valueIn and returns amountOut of
	// assetOut as a new value. remainder is valueIn with whatever was not taken.
	ExecuteExactOutputDirect(valueIn *asset.Value, assetOut asset.Asset, amountIn, amountOut uint64) (remainder, valueOut *asset.Value, err error)

	// Withdraw detaches amount of a from account as a free-standing value.
	Withdraw(account common.Address, a asset.Asset, amount uint64) (*asset.Value, error)
	// Deposit consumes v and credits it to account.
	Deposit(account common.Address, v *asset.Value) error

	// EmitSwap records ev. Recorded events are published only if the unit succeeds.
	EmitSwap(ev SwapEvent)
}

// SwapEvent records one executed hop in canonical pair orientation.
type SwapEvent struct {
	// Sequence and Timestamp are assigned when the event is published.
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	Pool       poolregistry.PoolKey `json:"pool"`
	X          asset.Asset          `json:"x"`
	Y          asset.Asset          `json:"y"`
	AmountXIn  uint64               `json:"amountXIn"`
	AmountYIn  uint64               `json:"amountYIn"`
	AmountXOut uint64               `json:"amountXOut"`
	AmountYOut uint64               `json:"amountYOut"`
	Initiator  common.Address       `json:"initiator"`
}

// AssetIn returns the asset paid into the pool.
func (e SwapEvent) AssetIn() asset.Asset {
	if e.AmountXIn > 0 {
		return e.X
	}
	return e.Y
}

// AssetOut returns the asset paid out of the pool.
func (e SwapEvent) AssetOut() asset.Asset {
	if e.AmountXIn > 0 {
		return e.Y
	}
	return e.X
}

// AmountIn returns the amount paid into the pool.
func (e SwapEvent) AmountIn() uint64 {
	return e.AmountXIn + e.AmountYIn
}

// AmountOut returns the amount paid out of the pool.
func (e SwapEvent) AmountOut() uint64 {
	return e.AmountXOut + e.AmountYOut
}
