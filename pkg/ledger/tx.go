package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/ethereum/go-ethereum/common"
)

type balanceKey struct {
	owner common.Address
	asset common.Address
}

type shareKey struct {
	pool  poolregistry.PoolKey
	owner common.Address
}

// Tx is one all-or-nothing unit of work against the ledger. It implements swap.Pool.
//
// Reads see the transaction's own writes. Writes are buffered and applied to the ledger
// only when the function passed to Atomic returns nil. A Tx must not be used after that
// function returns.
type Tx struct {
	ledger   *Ledger
	pools    map[poolregistry.PoolKey]*pool
	accounts map[common.Address]*account

	reserves  map[poolregistry.PoolKey]poolregistry.Reserves
	balances  map[balanceKey]uint64
	shares    map[shareKey]uint64
	providers map[shareKey]struct{}
	events    []swap.SwapEvent

	// outstanding counts, per asset, value issued as free-standing handles and not yet
	// absorbed back into an account or a pool.
	outstanding map[common.Address]uint64
}

var _ swap.Pool = (*Tx)(nil)

// Atomic runs fn as one transaction touching the given accounts and the pools of the given
// pairs. Pairs without a pool are ignored, and a pool may be listed more than once.
//
// Pools are locked in key order, then accounts in address order, so concurrent
// transactions never deadlock. If fn returns an error, or leaves free-standing value
// unsettled, nothing is applied.
func (l *Ledger) Atomic(owners []common.Address, pairs [][2]asset.Asset, fn func(tx *Tx) error) error {
	emitted, err := l.atomic(owners, pairs, fn)
	if emitted {
		l.deliver()
	}
	return err
}

func (l *Ledger) atomic(owners []common.Address, pairs [][2]asset.Asset, fn func(tx *Tx) error) (bool, error) {
	owners = dedupeAddresses(owners)
	l.ensureAccounts(owners)

	l.mu.RLock()
	defer l.mu.RUnlock()

	tx := &Tx{
		ledger:      l,
		pools:       make(map[poolregistry.PoolKey]*pool, len(pairs)),
		accounts:    make(map[common.Address]*account, len(owners)),
		reserves:    make(map[poolregistry.PoolKey]poolregistry.Reserves),
		balances:    make(map[balanceKey]uint64),
		shares:      make(map[shareKey]uint64),
		providers:   make(map[shareKey]struct{}),
		outstanding: make(map[common.Address]uint64),
	}
	for _, pair := range pairs {
		key, err := pairKey(pair[0], pair[1])
		if err != nil {
			return false, err
		}
		if p, ok := l.pools[key]; ok {
			tx.pools[key] = p
		}
	}

	locked := make([]*pool, 0, len(tx.pools))
	for _, p := range tx.pools {
		locked = append(locked, p)
	}
	sort.Slice(locked, func(i, j int) bool { return locked[i].key.Less(locked[j].key) })
	for _, p := range locked {
		p.mu.Lock()
		defer p.mu.Unlock()
	}
	for _, owner := range owners {
		acc := l.accounts[owner]
		tx.accounts[owner] = acc
		acc.mu.Lock()
		defer acc.mu.Unlock()
	}

	if err := fn(tx); err != nil {
		return false, err
	}
	if err := tx.settled(); err != nil {
		return false, err
	}
	tx.commit()
	return len(tx.events) > 0, nil
}

func dedupeAddresses(in []common.Address) []common.Address {
	out := make([]common.Address, 0, len(in))
	seen := make(map[common.Address]struct{}, len(in))
	for _, a := range in {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func (tx *Tx) settled() error {
	for addr, amount := range tx.outstanding {
		if amount != 0 {
			return fmt.Errorf("%d of asset %s: %w", amount, addr.Hex(), dexerr.ErrValueLeaked)
		}
	}
	return nil
}

func (tx *Tx) commit() {
	for key, r := range tx.reserves {
		tx.pools[key].reserves = r
	}
	for k, amount := range tx.shares {
		p := tx.pools[k.pool]
		if amount == 0 {
			delete(p.shares, k.owner)
		} else {
			p.shares[k.owner] = amount
		}
	}
	for k := range tx.providers {
		tx.pools[k.pool].providers[k.owner] = struct{}{}
	}
	for k, amount := range tx.balances {
		acc := tx.accounts[k.owner]
		if amount == 0 {
			delete(acc.balances, k.asset)
		} else {
			acc.balances[k.asset] = amount
		}
	}
	if len(tx.events) > 0 {
		tx.ledger.record(tx.events)
	}
}

// lockedPool returns the pool of a and b with its current reserves in canonical order.
func (tx *Tx) lockedPool(a, b asset.Asset) (*pool, poolregistry.Reserves, error) {
	key, err := pairKey(a, b)
	if err != nil {
		return nil, poolregistry.Reserves{}, err
	}
	p, ok := tx.pools[key]
	if !ok {
		if _, exists := tx.ledger.pools[key]; exists {
			return nil, poolregistry.Reserves{}, fmt.Errorf("pool %s/%s: %w", a, b, ErrNotLocked)
		}
		return nil, poolregistry.Reserves{}, fmt.Errorf("%s/%s: %w", a, b, dexerr.ErrPairNotCreated)
	}
	if r, ok := tx.reserves[key]; ok {
		return p, r, nil
	}
	return p, p.reserves, nil
}

func (tx *Tx) balance(owner common.Address, a asset.Asset) (uint64, error) {
	acc, ok := tx.accounts[owner]
	if !ok {
		return 0, fmt.Errorf("account %s: %w", owner.Hex(), ErrNotLocked)
	}
	k := balanceKey{owner: owner, asset: a.Address}
	if amount, ok := tx.balances[k]; ok {
		return amount, nil
	}
	return acc.balances[a.Address], nil
}

func (tx *Tx) debit(owner common.Address, a asset.Asset, amount uint64) error {
	held, err := tx.balance(owner, a)
	if err != nil {
		return err
	}
	if held < amount {
		return fmt.Errorf("%s holds %d %s, needs %d: %w", owner.Hex(), held, a, amount, dexerr.ErrInsufficientBalance)
	}
	tx.balances[balanceKey{owner: owner, asset: a.Address}] = held - amount
	return nil
}

func (tx *Tx) credit(owner common.Address, a asset.Asset, amount uint64) error {
	held, err := tx.balance(owner, a)
	if err != nil {
		return err
	}
	sum := held + amount
	if sum < held {
		return fmt.Errorf("credit %d %s to %s: %w", amount, a, owner.Hex(), dexerr.ErrAmountOverflow)
	}
	tx.balances[balanceKey{owner: owner, asset: a.Address}] = sum
	return nil
}

// issue creates a free-standing value that must be absorbed before the transaction ends.
func (tx *Tx) issue(a asset.Asset, amount uint64) *asset.Value {
	tx.outstanding[a.Address] += amount
	return asset.NewValue(a, amount)
}

// absorb consumes v. Only value issued by this transaction can be absorbed.
func (tx *Tx) absorb(v *asset.Value) (uint64, error) {
	if v.Spent() {
		return 0, dexerr.ErrValueSpent
	}
	a := v.Asset()
	if tx.outstanding[a.Address] < v.Amount() {
		return 0, fmt.Errorf("%d %s was not issued by this transaction: %w", v.Amount(), a, dexerr.ErrValueMismatch)
	}
	amount, err := v.Consume()
	if err != nil {
		return 0, err
	}
	tx.outstanding[a.Address] -= amount
	return amount, nil
}

// Reserves returns the reserves of a and b, oriented to the argument order.
func (tx *Tx) Reserves(a, b asset.Asset) (uint64, uint64, error) {
	p, r, err := tx.lockedPool(a, b)
	if err != nil {
		return 0, 0, err
	}
	if a.Address == p.x.Address {
		return r.X, r.Y, nil
	}
	return r.Y, r.X, nil
}

// PairExists reports whether a pool exists for a and b.
func (tx *Tx) PairExists(a, b asset.Asset) bool {
	key, err := pairKey(a, b)
	if err != nil {
		return false
	}
	_, ok := tx.ledger.pools[key]
	return ok
}

// swapPool validates a trade of amountIn of in for amountOut of out and returns the
// reserves it leaves behind, without applying them.
func (tx *Tx) swapPool(in, out asset.Asset, amountIn, amountOut uint64) (poolregistry.PoolKey, poolregistry.Reserves, error) {
	p, r, err := tx.lockedPool(in, out)
	if err != nil {
		return poolregistry.PoolKey{}, r, err
	}
	next, err := r.Swap(in.Address == p.x.Address, amountIn, amountOut)
	if err != nil {
		return poolregistry.PoolKey{}, r, err
	}
	return p.key, next, nil
}

func (tx *Tx) executeManaged(in, out asset.Asset, amountIn, amountOut uint64, owner common.Address) error {
	key, next, err := tx.swapPool(in, out, amountIn, amountOut)
	if err != nil {
		return err
	}
	if err := tx.debit(owner, in, amountIn); err != nil {
		return err
	}
	if err := tx.credit(owner, out, amountOut); err != nil {
		return err
	}
	tx.reserves[key] = next
	return nil
}

// ExecuteExactInput implements swap.Pool.
func (tx *Tx) ExecuteExactInput(in, out asset.Asset, amountIn, amountOut uint64, owner common.Address) (uint64, error) {
	if err := tx.executeManaged(in, out, amountIn, amountOut, owner); err != nil {
		return 0, err
	}
	return amountOut, nil
}

// ExecuteExactOutput implements swap.Pool.
func (tx *Tx) ExecuteExactOutput(in, out asset.Asset, amountIn, amountOut uint64, owner common.Address) (uint64, error) {
	if err := tx.executeManaged(in, out, amountIn, amountOut, owner); err != nil {
		return 0, err
	}
	return amountIn, nil
}

// ExecuteExactInputDirect implements swap.Pool.
func (tx *Tx) ExecuteExactInputDirect(valueIn *asset.Value, out asset.Asset, amountOut uint64) (*asset.Value, *asset.Value, error) {
	if valueIn.Spent() {
		return nil, nil, dexerr.ErrValueSpent
	}
	in := valueIn.Asset()
	key, next, err := tx.swapPool(in, out, valueIn.Amount(), amountOut)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.absorb(valueIn); err != nil {
		return nil, nil, err
	}
	tx.reserves[key] = next
	return asset.Zero(in), tx.issue(out, amountOut), nil
}

// ExecuteExactOutputDirect implements swap.Pool.
func (tx *Tx) ExecuteExactOutputDirect(valueIn *asset.Value, out asset.Asset, amountIn, amountOut uint64) (*asset.Value, *asset.Value, error) {
	if valueIn.Spent() {
		return nil, nil, dexerr.ErrValueSpent
	}
	if amountIn > valueIn.Amount() {
		return nil, nil, fmt.Errorf("need %d %s, hold %d: %w", amountIn, valueIn.Asset(), valueIn.Amount(), dexerr.ErrInsufficientAmount)
	}
	key, next, err := tx.swapPool(valueIn.Asset(), out, amountIn, amountOut)
	if err != nil {
		return nil, nil, err
	}
	payment, err := valueIn.Split(amountIn)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.absorb(payment); err != nil {
		return nil, nil, err
	}
	tx.reserves[key] = next
	return valueIn, tx.issue(out, amountOut), nil
}

// Withdraw implements swap.Pool.
func (tx *Tx) Withdraw(owner common.Address, a asset.Asset, amount uint64) (*asset.Value, error) {
	if err := tx.debit(owner, a, amount); err != nil {
		return nil, err
	}
	return tx.issue(a, amount), nil
}

// Deposit implements swap.Pool.
func (tx *Tx) Deposit(owner common.Address, v *asset.Value) error {
	if v.Spent() {
		return dexerr.ErrValueSpent
	}
	if _, err := tx.balance(owner, v.Asset()); err != nil {
		return err
	}
	amount, err := tx.absorb(v)
	if err != nil {
		return err
	}
	return tx.credit(owner, v.Asset(), amount)
}

// EmitSwap implements swap.Pool.
func (tx *Tx) EmitSwap(ev swap.SwapEvent) {
	tx.events = append(tx.events, ev)
}

// Balance returns owner's balance of a as seen by the transaction.
func (tx *Tx) Balance(owner common.Address, a asset.Asset) (uint64, error) {
	return tx.balance(owner, a)
}
