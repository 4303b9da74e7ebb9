// Package router composes single-hop swaps into routed trades of up to MaxHops hops.
//
// A routed trade detaches the input once and threads it through every hop as a
// free-standing value, so no intermediate asset ever lands in an account. The Pool the
// router runs against must apply the whole trade atomically.
package router

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/pairorder"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/ethereum/go-ethereum/common"
)

// Router executes routed trades against one Pool.
type Router struct {
	pool     swap.Pool
	executor *swap.Executor
}

// New creates a router bound to pool.
func New(pool swap.Pool) *Router {
	return &Router{pool: pool, executor: swap.NewExecutor(pool)}
}

// settle returns a leftover value to account.
func (r *Router) settle(account common.Address, v *asset.Value) error {
	if v.Spent() {
		return nil
	}
	return r.pool.Deposit(account, v)
}

// ExactInput sells amountIn of path[0] for path[len(path)-1] and credits the output to
// account. It fails with dexerr.ErrOutputBelowMinimum if the final output is below minOut.
// One swap event is emitted per hop.
func (r *Router) ExactInput(path Path, amountIn, minOut uint64, account common.Address) (uint64, error) {
	if err := path.Validate(); err != nil {
		return 0, err
	}
	if amountIn == 0 {
		return 0, dexerr.ErrInsufficientInput
	}
	value, err := r.pool.Withdraw(account, path[0], amountIn)
	if err != nil {
		return 0, err
	}
	for i, pair := range path.Pairs() {
		remainder, out, err := r.executor.ExactInputDirect(value, pair[1], 0, account)
		if err != nil {
			return 0, fmt.Errorf("hop %d %s->%s: %w", i, pair[0], pair[1], err)
		}
		if err := r.settle(account, remainder); err != nil {
			return 0, err
		}
		value = out
	}
	amountOut := value.Amount()
	if amountOut < minOut {
		return 0, fmt.Errorf("%s got %d, want at least %d: %w", path, amountOut, minOut, dexerr.ErrOutputBelowMinimum)
	}
	if err := r.pool.Deposit(account, value); err != nil {
		return 0, err
	}
	return amountOut, nil
}

// ExactOutput buys amountOut of path[len(path)-1] for account, paying with path[0]. The
// input of every hop is solved back to front from the desired output before anything is
// moved; the trade fails with dexerr.ErrInputAboveMaximum if the first hop needs more
// than maxIn. It returns the input spent.
func (r *Router) ExactOutput(path Path, amountOut, maxIn uint64, account common.Address) (uint64, error) {
	amounts, err := AmountsIn(r.pool, path, amountOut)
	if err != nil {
		return 0, err
	}
	if amounts[0] > maxIn {
		return 0, fmt.Errorf("%s costs %d, want at most %d: %w", path, amounts[0], maxIn, dexerr.ErrInputAboveMaximum)
	}

	value, err := r.pool.Withdraw(account, path[0], amounts[0])
	if err != nil {
		return 0, err
	}
	for i, pair := range path.Pairs() {
		remainder, out, err := r.executor.ExactOutputDirect(value, pair[1], amounts[i+1], amounts[i], account)
		if err != nil {
			return 0, fmt.Errorf("hop %d %s->%s: %w", i, pair[0], pair[1], err)
		}
		if err := r.settle(account, remainder); err != nil {
			return 0, err
		}
		value = out
	}
	if err := r.pool.Deposit(account, value); err != nil {
		return 0, err
	}
	return amounts[0], nil
}

// AmountsOut quotes an exact-input trade hop by hop. amounts[0] is amountIn and
// amounts[i+1] is the output of hop i.
//
// A pool that appears on more than one hop is priced at the reserves left by the earlier
// hops, as the trade would find it.
func AmountsOut(reader swap.Reader, path Path, amountIn uint64) ([]uint64, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	pending := newPendingReserves(reader)
	amounts := make([]uint64, len(path))
	amounts[0] = amountIn
	for i, pair := range path.Pairs() {
		out, err := swap.QuoteExactInput(pending, pair[0], pair[1], amounts[i])
		if err == nil {
			err = pending.apply(pair[0], pair[1], amounts[i], out)
		}
		if err != nil {
			return nil, fmt.Errorf("hop %d %s->%s: %w", i, pair[0], pair[1], err)
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// AmountsIn quotes an exact-output trade back to front. amounts[len(path)-1] is amountOut
// and amounts[i] is the input hop i requires.
// The path must not pass through any pool twice.
func AmountsIn(reader swap.Reader, path Path, amountOut uint64) ([]uint64, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if err := path.validateDistinctPools(); err != nil {
		return nil, err
	}
	amounts := make([]uint64, len(path))
	amounts[len(path)-1] = amountOut
	pairs := path.Pairs()
	for i := len(pairs) - 1; i >= 0; i-- {
		in, err := swap.QuoteExactOutput(reader, pairs[i][0], pairs[i][1], amounts[i+1])
		if err != nil {
			return nil, fmt.Errorf("hop %d %s->%s: %w", i, pairs[i][0], pairs[i][1], err)
		}
		amounts[i] = in
	}
	return amounts, nil
}

// pendingReserves is a Reader that sees the reserve changes of hops quoted so far.
type pendingReserves struct {
	reader   swap.Reader
	reserves map[[2]common.Address][2]uint64
}

func newPendingReserves(reader swap.Reader) *pendingReserves {
	return &pendingReserves{reader: reader, reserves: make(map[[2]common.Address][2]uint64)}
}

func (p *pendingReserves) Reserves(a, b asset.Asset) (uint64, uint64, error) {
	x, y, swapped, err := pairorder.Canonicalize(a, b)
	if err != nil {
		return 0, 0, err
	}
	r, ok := p.reserves[[2]common.Address{x.Address, y.Address}]
	if !ok {
		return p.reader.Reserves(a, b)
	}
	if swapped {
		return r[1], r[0], nil
	}
	return r[0], r[1], nil
}

func (p *pendingReserves) PairExists(a, b asset.Asset) bool {
	return p.reader.PairExists(a, b)
}

// apply records a trade of amountIn of in for amountOut of out.
func (p *pendingReserves) apply(in, out asset.Asset, amountIn, amountOut uint64) error {
	reserveIn, reserveOut, err := p.Reserves(in, out)
	if err != nil {
		return err
	}
	if reserveIn+amountIn < reserveIn {
		return dexerr.ErrAmountOverflow
	}
	reserveIn += amountIn
	reserveOut -= amountOut

	x, y, swapped, err := pairorder.Canonicalize(in, out)
	if err != nil {
		return err
	}
	if swapped {
		reserveIn, reserveOut = reserveOut, reserveIn
	}
	p.reserves[[2]common.Address{x.Address, y.Address}] = [2]uint64{reserveIn, reserveOut}
	return nil
}
