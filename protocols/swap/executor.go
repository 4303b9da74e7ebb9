package swap

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/constantproduct"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/pairorder"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
)

// hop is one resolved pair: its canonical orientation and the current reserves, oriented
// from the input side.
type hop struct {
	in, out    asset.Asset
	x, y       asset.Asset
	inIsX      bool
	reserveIn  uint64
	reserveOut uint64
}

func resolve(r Reader, in, out asset.Asset) (hop, error) {
	x, y, swapped, err := pairorder.Canonicalize(in, out)
	if err != nil {
		return hop{}, err
	}
	if !r.PairExists(in, out) {
		return hop{}, fmt.Errorf("%s/%s: %w", x, y, dexerr.ErrPairNotCreated)
	}
	reserveIn, reserveOut, err := r.Reserves(in, out)
	if err != nil {
		return hop{}, err
	}
	return hop{
		in: in, out: out,
		x: x, y: y,
		inIsX:      !swapped,
		reserveIn:  reserveIn,
		reserveOut: reserveOut,
	}, nil
}

func (h hop) event(amountIn, amountOut uint64, initiator common.Address) SwapEvent {
	ev := SwapEvent{
		Pool:      poolregistry.NewPoolKey(h.x, h.y),
		X:         h.x,
		Y:         h.y,
		Initiator: initiator,
	}
	if h.inIsX {
		ev.AmountXIn, ev.AmountYOut = amountIn, amountOut
	} else {
		ev.AmountYIn, ev.AmountXOut = amountIn, amountOut
	}
	return ev
}

// QuoteExactInput prices selling amountIn of in for out at the current reserves.
func QuoteExactInput(r Reader, in, out asset.Asset, amountIn uint64) (uint64, error) {
	h, err := resolve(r, in, out)
	if err != nil {
		return 0, err
	}
	return constantproduct.QuoteExactInput(amountIn, h.reserveIn, h.reserveOut)
}

// QuoteExactOutput prices buying amountOut of out with in at the current reserves.
func QuoteExactOutput(r Reader, in, out asset.Asset, amountOut uint64) (uint64, error) {
	h, err := resolve(r, in, out)
	if err != nil {
		return 0, err
	}
	return constantproduct.QuoteExactOutput(amountOut, h.reserveIn, h.reserveOut)
}

// Executor runs single-hop swaps against one Pool.
type Executor struct {
	pool Pool
}

// NewExecutor creates an executor bound to pool.
func NewExecutor(pool Pool) *Executor {
	return &Executor{pool: pool}
}

func (e *Executor) quoteIn(in, out asset.Asset, amountIn, minOut uint64) (hop, uint64, error) {
	h, err := resolve(e.pool, in, out)
	if err != nil {
		return hop{}, 0, err
	}
	amountOut, err := constantproduct.QuoteExactInput(amountIn, h.reserveIn, h.reserveOut)
	if err != nil {
		return hop{}, 0, err
	}
	if amountOut < minOut {
		return hop{}, 0, fmt.Errorf("%s->%s got %d, want at least %d: %w", in, out, amountOut, minOut, dexerr.ErrOutputBelowMinimum)
	}
	if amountOut == 0 {
		return hop{}, 0, fmt.Errorf("%d %s buys nothing: %w", amountIn, in, dexerr.ErrInsufficientOutput)
	}
	return h, amountOut, nil
}

func (e *Executor) quoteOut(in, out asset.Asset, amountOut, maxIn uint64) (hop, uint64, error) {
	h, err := resolve(e.pool, in, out)
	if err != nil {
		return hop{}, 0, err
	}
	amountIn, err := constantproduct.QuoteExactOutput(amountOut, h.reserveIn, h.reserveOut)
	if err != nil {
		return hop{}, 0, err
	}
	if amountIn > maxIn {
		return hop{}, 0, fmt.Errorf("%s->%s costs %d, want at most %d: %w", in, out, amountIn, maxIn, dexerr.ErrInputAboveMaximum)
	}
	return h, amountIn, nil
}

// ExactInput sells amountIn of in from account's balance and credits the output of out to
// the same account. It fails with dexerr.ErrOutputBelowMinimum if the output is below
// minOut.
func (e *Executor) ExactInput(in, out asset.Asset, amountIn, minOut uint64, account common.Address) (uint64, error) {
	h, amountOut, err := e.quoteIn(in, out, amountIn, minOut)
	if err != nil {
		return 0, err
	}
	realized, err := e.pool.ExecuteExactInput(in, out, amountIn, amountOut, account)
	if err != nil {
		return 0, err
	}
	e.pool.EmitSwap(h.event(amountIn, realized, account))
	return realized, nil
}

// ExactOutput buys amountOut of out for account, paying with in from the same account. It
// fails with dexerr.ErrInputAboveMaximum if the required input exceeds maxIn.
func (e *Executor) ExactOutput(in, out asset.Asset, amountOut, maxIn uint64, account common.Address) (uint64, error) {
	h, amountIn, err := e.quoteOut(in, out, amountOut, maxIn)
	if err != nil {
		return 0, err
	}
	realized, err := e.pool.ExecuteExactOutput(in, out, amountIn, amountOut, account)
	if err != nil {
		return 0, err
	}
	e.pool.EmitSwap(h.event(realized, amountOut, account))
	return realized, nil
}

// ExactInputDirect sells all of valueIn for out without touching any account. initiator is
// recorded on the emitted event.
func (e *Executor) ExactInputDirect(valueIn *asset.Value, out asset.Asset, minOut uint64, initiator common.Address) (remainder, valueOut *asset.Value, err error) {
	if valueIn.Spent() {
		return nil, nil, dexerr.ErrValueSpent
	}
	amountIn := valueIn.Amount()
	h, amountOut, err := e.quoteIn(valueIn.Asset(), out, amountIn, minOut)
	if err != nil {
		return nil, nil, err
	}
	remainder, valueOut, err = e.pool.ExecuteExactInputDirect(valueIn, out, amountOut)
	if err != nil {
		return nil, nil, err
	}
	e.pool.EmitSwap(h.event(amountIn, valueOut.Amount(), initiator))
	return remainder, valueOut, nil
}

// ExactOutputDirect buys amountOut of out with part of valueIn. The unused part of valueIn
// is returned as remainder. It fails with dexerr.ErrInputAboveMaximum if the required input
// exceeds maxIn, and with dexerr.ErrInsufficientAmount if valueIn cannot cover it.
func (e *Executor) ExactOutputDirect(valueIn *asset.Value, out asset.Asset, amountOut, maxIn uint64, initiator common.Address) (remainder, valueOut *asset.Value, err error) {
	if valueIn.Spent() {
		return nil, nil, dexerr.ErrValueSpent
	}
	h, amountIn, err := e.quoteOut(valueIn.Asset(), out, amountOut, maxIn)
	if err != nil {
		return nil, nil, err
	}
	if amountIn > valueIn.Amount() {
		return nil, nil, fmt.Errorf("need %d %s, hold %d: %w", amountIn, valueIn.Asset(), valueIn.Amount(), dexerr.ErrInsufficientAmount)
	}
	remainder, valueOut, err = e.pool.ExecuteExactOutputDirect(valueIn, out, amountIn, amountOut)
	if err != nil {
		return nil, nil, err
	}
	e.pool.EmitSwap(h.event(amountIn, valueOut.Amount(), initiator))
	return remainder, valueOut, nil
}
