// Package ledger is an in-memory execution environment for constant-product pools.
//
// A Ledger owns pool reserves, liquidity shares and account balances. All mutations run
// inside Atomic, which locks every pool and account a call touches and applies the call's
// effects only if it returns without error. Calls on the same pool are applied one at a
// time; calls on disjoint pools and accounts run in parallel.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/pairorder"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// DefaultEventHistory is the number of swap events kept when Config.EventHistory is zero.
const DefaultEventHistory = 10_000

// ErrNotLocked is returned when a transaction touches a pool or account it did not declare.
var ErrNotLocked = dexerr.New(dexerr.KindInternal, "pool or account not locked by transaction")

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for a Ledger.
type Config struct {
	Logger Logger
	// EventHistory bounds the number of swap events retained for Events.
	EventHistory int
	// Now stamps published events. Defaults to time.Now.
	Now func() time.Time
}

func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.EventHistory < 0 {
		return errors.New("config: EventHistory must not be negative")
	}
	return nil
}

type pool struct {
	mu        sync.Mutex
	id        uint64
	key       poolregistry.PoolKey
	x, y      asset.Asset
	reserves  poolregistry.Reserves
	shares    map[common.Address]uint64
	providers map[common.Address]struct{}
}

func (p *pool) view() poolregistry.PoolView {
	return poolregistry.PoolView{
		ID:          p.id,
		Key:         p.key,
		X:           p.x,
		Y:           p.y,
		ReserveX:    p.reserves.X,
		ReserveY:    p.reserves.Y,
		TotalSupply: p.reserves.TotalSupply,
		Providers:   len(p.providers),
	}
}

type account struct {
	mu       sync.Mutex
	balances map[common.Address]uint64
}

// Ledger is the in-memory execution environment.
type Ledger struct {
	// mu guards the pools and accounts maps. Atomic holds it for reading for the whole
	// transaction; creating a pool or an account takes it for writing.
	mu         sync.RWMutex
	pools      map[poolregistry.PoolKey]*pool
	accounts   map[common.Address]*account
	nextPoolID uint64

	eventsMu sync.Mutex
	events   []swap.SwapEvent
	outbox   []swap.SwapEvent
	nextSeq  uint64
	history  int

	// sendMu serializes delivery so subscribers see events in sequence order.
	sendMu sync.Mutex
	feed   event.Feed

	now    func() time.Time
	logger Logger
}

// New creates an empty ledger.
func New(cfg Config) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	history := cfg.EventHistory
	if history == 0 {
		history = DefaultEventHistory
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		pools:      make(map[poolregistry.PoolKey]*pool),
		accounts:   make(map[common.Address]*account),
		nextPoolID: 1,
		nextSeq:    1,
		history:    history,
		now:        now,
		logger:     cfg.Logger,
	}, nil
}

func pairKey(a, b asset.Asset) (poolregistry.PoolKey, error) {
	x, y, _, err := pairorder.Canonicalize(a, b)
	if err != nil {
		return poolregistry.PoolKey{}, err
	}
	return poolregistry.NewPoolKey(x, y), nil
}

// CreatePair creates an empty pool for a and b.
func (l *Ledger) CreatePair(a, b asset.Asset) (poolregistry.PoolView, error) {
	x, y, _, err := pairorder.Canonicalize(a, b)
	if err != nil {
		return poolregistry.PoolView{}, err
	}
	key := poolregistry.NewPoolKey(x, y)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pools[key]; ok {
		return poolregistry.PoolView{}, fmt.Errorf("%s/%s: %w", x, y, dexerr.ErrPairAlreadyExists)
	}
	p := &pool{
		id:        l.nextPoolID,
		key:       key,
		x:         x,
		y:         y,
		shares:    make(map[common.Address]uint64),
		providers: make(map[common.Address]struct{}),
	}
	l.pools[key] = p
	l.nextPoolID++
	l.logger.Info("Pool created", "id", p.id, "key", key, "x", x.Name, "y", y.Name)
	return p.view(), nil
}

// PairExists reports whether a pool exists for a and b.
func (l *Ledger) PairExists(a, b asset.Asset) bool {
	key, err := pairKey(a, b)
	if err != nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.pools[key]
	return ok
}

// Pool returns a snapshot of the pool of a and b.
func (l *Ledger) Pool(a, b asset.Asset) (poolregistry.PoolView, error) {
	key, err := pairKey(a, b)
	if err != nil {
		return poolregistry.PoolView{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.pools[key]
	if !ok {
		return poolregistry.PoolView{}, fmt.Errorf("%s/%s: %w", a, b, dexerr.ErrPairNotCreated)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view(), nil
}

// Pools returns a snapshot of every pool, ordered by ID.
func (l *Ledger) Pools() []poolregistry.PoolView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	views := make([]poolregistry.PoolView, 0, len(l.pools))
	for _, p := range l.pools {
		p.mu.Lock()
		views = append(views, p.view())
		p.mu.Unlock()
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Balance returns the balance of a held by owner.
func (l *Ledger) Balance(owner common.Address, a asset.Asset) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[owner]
	if !ok {
		return 0
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balances[a.Address]
}

// LiquidityBalance returns the liquidity shares held by owner in the pool of a and b.
func (l *Ledger) LiquidityBalance(owner common.Address, a, b asset.Asset) (uint64, error) {
	key, err := pairKey(a, b)
	if err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.pools[key]
	if !ok {
		return 0, fmt.Errorf("%s/%s: %w", a, b, dexerr.ErrPairNotCreated)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares[owner], nil
}

// Credit mints amount of a into owner's balance.
func (l *Ledger) Credit(owner common.Address, a asset.Asset, amount uint64) error {
	return l.Atomic([]common.Address{owner}, nil, func(tx *Tx) error {
		return tx.credit(owner, a, amount)
	})
}

// ensureAccounts creates any missing account. It must be called without l.mu held.
func (l *Ledger) ensureAccounts(owners []common.Address) {
	l.mu.RLock()
	missing := false
	for _, owner := range owners {
		if _, ok := l.accounts[owner]; !ok {
			missing = true
			break
		}
	}
	l.mu.RUnlock()
	if !missing {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, owner := range owners {
		if _, ok := l.accounts[owner]; !ok {
			l.accounts[owner] = &account{balances: make(map[common.Address]uint64)}
		}
	}
}
