// Package exchange is the caller-facing surface of the AMM: asset registration, pool
// management, swaps, routed swaps and quotes over one in-memory ledger.
package exchange

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/pkg/ledger"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/router"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	modeExactInput  = "exact_input"
	modeExactOutput = "exact_output"
)

var (
	ErrInvalidAsset   = dexerr.New(dexerr.KindInputValidation, "invalid asset")
	ErrAssetExists    = dexerr.New(dexerr.KindInputValidation, "asset already registered")
	ErrFaucetDisabled = dexerr.New(dexerr.KindInputValidation, "faucet disabled")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for an Exchange.
type Config struct {
	Logger   Logger
	Registry prometheus.Registerer
	// EventHistory bounds the number of swap events kept for Events.
	EventHistory int
	// EnableFaucet allows Credit to mint balances for any caller.
	EnableFaucet bool
	// Now stamps swap events. Defaults to time.Now.
	Now func() time.Time
}

func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	return nil
}

// Exchange runs every operation as one ledger transaction.
type Exchange struct {
	ledger  *ledger.Ledger
	metrics *Metrics
	logger  Logger
	faucet  bool

	assetsMu sync.Mutex
	assets   atomic.Pointer[asset.IndexableAssetSystem]
	indexer  *asset.Indexer
}

// New creates an exchange with an empty ledger and no assets.
func New(cfg Config) (*Exchange, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l, err := ledger.New(ledger.Config{
		Logger:       cfg.Logger,
		EventHistory: cfg.EventHistory,
		Now:          cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	e := &Exchange{
		ledger:  l,
		metrics: NewMetrics(cfg.Registry),
		logger:  cfg.Logger,
		faucet:  cfg.EnableFaucet,
		indexer: asset.New(),
	}
	e.assets.Store(e.indexer.Index(nil))
	return e, nil
}

// --- Assets ---

// RegisterAsset adds a to the asset registry. A display name already used by another asset
// is accepted but logged, because pair ordering cannot tell such assets apart; pairing them
// with each other fails with dexerr.ErrIdenticalAssets and resolving the name by itself
// fails with dexerr.ErrAmbiguousAsset.
func (e *Exchange) RegisterAsset(a asset.Asset) (err error) {
	defer func() { e.metrics.observeError("register_asset", err) }()

	if a.Name == "" || a.Address == (common.Address{}) {
		return fmt.Errorf("%#v: %w", a, ErrInvalidAsset)
	}

	e.assetsMu.Lock()
	defer e.assetsMu.Unlock()

	current := e.assets.Load()
	if _, ok := current.GetByAddress(a.Address); ok {
		return fmt.Errorf("%s: %w", a.Address.Hex(), ErrAssetExists)
	}
	if _, err := current.GetByName(a.Name); !errors.Is(err, dexerr.ErrUnknownAsset) {
		e.metrics.nameCollisions.Inc()
		e.logger.Warn("Asset display name already registered; assets sharing it cannot be paired with each other",
			"name", a.Name, "address", a.Address)
	}
	e.assets.Store(e.indexer.Index(append(current.All(), a)))
	e.logger.Info("Asset registered", "name", a.Name, "symbol", a.Symbol, "address", a.Address)
	return nil
}

// Assets returns every registered asset, ordered by name.
func (e *Exchange) Assets() []asset.Asset {
	return e.assets.Load().All()
}

// ResolveAsset finds a registered asset by hex address or display name.
func (e *Exchange) ResolveAsset(ref string) (asset.Asset, error) {
	return e.assets.Load().Resolve(ref)
}

func (e *Exchange) requireRegistered(assets ...asset.Asset) error {
	registry := e.assets.Load()
	for _, a := range assets {
		if got, ok := registry.GetByAddress(a.Address); !ok || got != a {
			return fmt.Errorf("%#v: %w", a, dexerr.ErrUnknownAsset)
		}
	}
	return nil
}

// --- Pools and liquidity ---

// CreatePair creates an empty pool for two registered assets.
func (e *Exchange) CreatePair(a, b asset.Asset) (view poolregistry.PoolView, err error) {
	defer func() { e.metrics.observeError("create_pair", err) }()
	if err := e.requireRegistered(a, b); err != nil {
		return poolregistry.PoolView{}, err
	}
	view, err = e.ledger.CreatePair(a, b)
	if err != nil {
		return poolregistry.PoolView{}, err
	}
	e.metrics.pools.Inc()
	return view, nil
}

// AddLiquidity deposits up to desiredA of a and desiredB of b from account at the pool's
// current ratio, registering account as a provider.
func (e *Exchange) AddLiquidity(account common.Address, a, b asset.Asset, desiredA, desiredB, minA, minB uint64) (d ledger.LiquidityDeposit, err error) {
	defer func() { e.metrics.observeError("add_liquidity", err) }()
	if err = e.requireRegistered(a, b); err != nil {
		return ledger.LiquidityDeposit{}, err
	}
	d, err = e.ledger.AddLiquidity(account, a, b, desiredA, desiredB, minA, minB)
	if err == nil {
		e.logger.Debug("Liquidity added", "account", account, "a", a.Name, "b", b.Name,
			"amount_a", d.AmountA, "amount_b", d.AmountB, "liquidity", d.Liquidity)
	}
	return d, err
}

// RemoveLiquidity burns liquidity shares of account and credits the redeemed assets.
func (e *Exchange) RemoveLiquidity(account common.Address, a, b asset.Asset, liquidity, minA, minB uint64) (w ledger.LiquidityWithdrawal, err error) {
	defer func() { e.metrics.observeError("remove_liquidity", err) }()
	if err = e.requireRegistered(a, b); err != nil {
		return ledger.LiquidityWithdrawal{}, err
	}
	w, err = e.ledger.RemoveLiquidity(account, a, b, liquidity, minA, minB)
	if err == nil {
		e.logger.Debug("Liquidity removed", "account", account, "a", a.Name, "b", b.Name,
			"amount_a", w.AmountA, "amount_b", w.AmountB, "liquidity", liquidity)
	}
	return w, err
}

// RegisterLiquidityProvider records account as a provider of the pool of a and b.
func (e *Exchange) RegisterLiquidityProvider(account common.Address, a, b asset.Asset) (err error) {
	defer func() { e.metrics.observeError("register_liquidity_provider", err) }()
	if err = e.requireRegistered(a, b); err != nil {
		return err
	}
	return e.ledger.RegisterLiquidityProvider(account, a, b)
}

// Pools returns a snapshot of every pool, ordered by ID.
func (e *Exchange) Pools() []poolregistry.PoolView {
	return e.ledger.Pools()
}

// Pool returns a snapshot of the pool of a and b.
func (e *Exchange) Pool(a, b asset.Asset) (poolregistry.PoolView, error) {
	return e.ledger.Pool(a, b)
}

// PoolRegistry returns an indexed snapshot of every pool.
func (e *Exchange) PoolRegistry() *poolregistry.IndexablePoolRegistry {
	return poolregistry.New().Index(e.ledger.Pools())
}

// --- Accounts and events ---

// Balance returns account's balance of a.
func (e *Exchange) Balance(account common.Address, a asset.Asset) uint64 {
	return e.ledger.Balance(account, a)
}

// LiquidityBalance returns account's liquidity shares in the pool of a and b.
func (e *Exchange) LiquidityBalance(account common.Address, a, b asset.Asset) (uint64, error) {
	return e.ledger.LiquidityBalance(account, a, b)
}

// Credit mints amount of a into account. It fails with ErrFaucetDisabled unless the
// exchange was configured with EnableFaucet.
func (e *Exchange) Credit(account common.Address, a asset.Asset, amount uint64) (err error) {
	defer func() { e.metrics.observeError("credit", err) }()
	if !e.faucet {
		return ErrFaucetDisabled
	}
	return e.credit(account, a, amount)
}

func (e *Exchange) credit(account common.Address, a asset.Asset, amount uint64) error {
	if err := e.requireRegistered(a); err != nil {
		return err
	}
	return e.ledger.Credit(account, a, amount)
}

// Events returns up to limit retained swap events starting at sequence number from.
func (e *Exchange) Events(from uint64, limit int) []swap.SwapEvent {
	return e.ledger.Events(from, limit)
}

// SubscribeSwapEvents delivers every swap event published after the call to ch.
func (e *Exchange) SubscribeSwapEvents(ch chan<- swap.SwapEvent) event.Subscription {
	return e.ledger.SubscribeSwapEvents(ch)
}

// --- Swaps ---

func pairOf(a, b asset.Asset) [][2]asset.Asset {
	return [][2]asset.Asset{{a, b}}
}

// SwapExactInput sells amountIn of a for b. It fails with dexerr.ErrOutputBelowMinimum if
// the output is below minOut.
func (e *Exchange) SwapExactInput(account common.Address, a, b asset.Asset, amountIn, minOut uint64) (amountOut uint64, err error) {
	start := time.Now()
	defer func() {
		e.metrics.observeSwap(modeExactInput, 1, start, err)
		e.metrics.observeError("swap_exact_input", err)
	}()
	if err = e.requireRegistered(a, b); err != nil {
		return 0, err
	}
	err = e.ledger.Atomic([]common.Address{account}, pairOf(a, b), func(tx *ledger.Tx) error {
		var err error
		amountOut, err = swap.NewExecutor(tx).ExactInput(a, b, amountIn, minOut, account)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.logger.Debug("Swap executed", "mode", modeExactInput, "account", account,
		"in", a.Name, "out", b.Name, "amount_in", amountIn, "amount_out", amountOut)
	return amountOut, nil
}

// SwapExactOutput buys amountOut of b with a. It fails with dexerr.ErrInputAboveMaximum if
// the required input exceeds maxIn.
func (e *Exchange) SwapExactOutput(account common.Address, a, b asset.Asset, amountOut, maxIn uint64) (amountIn uint64, err error) {
	start := time.Now()
	defer func() {
		e.metrics.observeSwap(modeExactOutput, 1, start, err)
		e.metrics.observeError("swap_exact_output", err)
	}()
	if err = e.requireRegistered(a, b); err != nil {
		return 0, err
	}
	err = e.ledger.Atomic([]common.Address{account}, pairOf(a, b), func(tx *ledger.Tx) error {
		var err error
		amountIn, err = swap.NewExecutor(tx).ExactOutput(a, b, amountOut, maxIn, account)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.logger.Debug("Swap executed", "mode", modeExactOutput, "account", account,
		"in", a.Name, "out", b.Name, "amount_in", amountIn, "amount_out", amountOut)
	return amountIn, nil
}

// SwapExactInputPath sells amountIn of path[0] through every pool along path.
func (e *Exchange) SwapExactInputPath(account common.Address, path router.Path, amountIn, minOut uint64) (amountOut uint64, err error) {
	start := time.Now()
	defer func() {
		e.metrics.observeSwap(modeExactInput, path.Hops(), start, err)
		e.metrics.observeError("swap_exact_input_path", err)
	}()
	if err = e.requireRegistered(path...); err != nil {
		return 0, err
	}
	err = e.ledger.Atomic([]common.Address{account}, path.Pairs(), func(tx *ledger.Tx) error {
		var err error
		amountOut, err = router.New(tx).ExactInput(path, amountIn, minOut, account)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.logger.Debug("Routed swap executed", "mode", modeExactInput, "account", account,
		"path", path.String(), "amount_in", amountIn, "amount_out", amountOut)
	return amountOut, nil
}

// SwapExactOutputPath buys amountOut of the last asset of path through every pool along
// path and returns the input spent.
func (e *Exchange) SwapExactOutputPath(account common.Address, path router.Path, amountOut, maxIn uint64) (amountIn uint64, err error) {
	start := time.Now()
	defer func() {
		e.metrics.observeSwap(modeExactOutput, path.Hops(), start, err)
		e.metrics.observeError("swap_exact_output_path", err)
	}()
	if err = e.requireRegistered(path...); err != nil {
		return 0, err
	}
	err = e.ledger.Atomic([]common.Address{account}, path.Pairs(), func(tx *ledger.Tx) error {
		var err error
		amountIn, err = router.New(tx).ExactOutput(path, amountOut, maxIn, account)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.logger.Debug("Routed swap executed", "mode", modeExactOutput, "account", account,
		"path", path.String(), "amount_in", amountIn, "amount_out", amountOut)
	return amountIn, nil
}
