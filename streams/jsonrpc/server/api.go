package server

import (
	"context"
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/exchange"
	"github.com/Iwinswap/iwinswap-amm-router/pkg/ledger"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/router"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// RpcNamespace is the namespace under which DexAPI is registered.
	RpcNamespace = "dex"

	// DefaultEventsLimit is the page size of dex_events when no limit is given.
	DefaultEventsLimit = 100

	swapEventBufferSize = 128
)

// SwapResult reports both sides of an executed swap.
type SwapResult struct {
	AmountIn  uint64 `json:"amountIn"`
	AmountOut uint64 `json:"amountOut"`
}

// DexAPI exposes an Exchange as dex_* JSON-RPC methods. Assets are referenced by display
// name or hex address.
type DexAPI struct {
	exchange *exchange.Exchange
	logger   Logger
}

// NewDexAPI creates the dex namespace service for ex.
func NewDexAPI(ex *exchange.Exchange, logger Logger) *DexAPI {
	return &DexAPI{exchange: ex, logger: logger}
}

func (api *DexAPI) resolve(ref string) (asset.Asset, error) {
	a, err := api.exchange.ResolveAsset(ref)
	if err != nil {
		return asset.Asset{}, fmt.Errorf("asset %q: %w", ref, err)
	}
	return a, nil
}

func (api *DexAPI) resolvePair(a, b string) (asset.Asset, asset.Asset, error) {
	assetA, err := api.resolve(a)
	if err != nil {
		return asset.Asset{}, asset.Asset{}, err
	}
	assetB, err := api.resolve(b)
	if err != nil {
		return asset.Asset{}, asset.Asset{}, err
	}
	return assetA, assetB, nil
}

func (api *DexAPI) resolvePath(refs []string) (router.Path, error) {
	path := make(router.Path, len(refs))
	for i, ref := range refs {
		a, err := api.resolve(ref)
		if err != nil {
			return nil, err
		}
		path[i] = a
	}
	return path, nil
}

// Assets returns every registered asset.
func (api *DexAPI) Assets() []asset.Asset {
	return api.exchange.Assets()
}

// RegisterAsset adds an asset to the registry.
func (api *DexAPI) RegisterAsset(a asset.Asset) error {
	return wrapError(api.exchange.RegisterAsset(a))
}

// CreatePair creates an empty pool.
func (api *DexAPI) CreatePair(a, b string) (poolregistry.PoolView, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return poolregistry.PoolView{}, wrapError(err)
	}
	view, err := api.exchange.CreatePair(assetA, assetB)
	return view, wrapError(err)
}

func (api *DexAPI) AddLiquidity(account common.Address, a, b string, desiredA, desiredB, minA, minB uint64) (ledger.LiquidityDeposit, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return ledger.LiquidityDeposit{}, wrapError(err)
	}
	d, err := api.exchange.AddLiquidity(account, assetA, assetB, desiredA, desiredB, minA, minB)
	return d, wrapError(err)
}

func (api *DexAPI) RemoveLiquidity(account common.Address, a, b string, liquidity, minA, minB uint64) (ledger.LiquidityWithdrawal, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return ledger.LiquidityWithdrawal{}, wrapError(err)
	}
	w, err := api.exchange.RemoveLiquidity(account, assetA, assetB, liquidity, minA, minB)
	return w, wrapError(err)
}

func (api *DexAPI) RegisterLiquidityProvider(account common.Address, a, b string) error {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return wrapError(err)
	}
	return wrapError(api.exchange.RegisterLiquidityProvider(account, assetA, assetB))
}

func (api *DexAPI) SwapExactInput(account common.Address, a, b string, amountIn, minOut uint64) (SwapResult, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return SwapResult{}, wrapError(err)
	}
	out, err := api.exchange.SwapExactInput(account, assetA, assetB, amountIn, minOut)
	if err != nil {
		return SwapResult{}, wrapError(err)
	}
	return SwapResult{AmountIn: amountIn, AmountOut: out}, nil
}

func (api *DexAPI) SwapExactOutput(account common.Address, a, b string, amountOut, maxIn uint64) (SwapResult, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return SwapResult{}, wrapError(err)
	}
	in, err := api.exchange.SwapExactOutput(account, assetA, assetB, amountOut, maxIn)
	if err != nil {
		return SwapResult{}, wrapError(err)
	}
	return SwapResult{AmountIn: in, AmountOut: amountOut}, nil
}

func (api *DexAPI) SwapExactInputPath(account common.Address, path []string, amountIn, minOut uint64) (SwapResult, error) {
	p, err := api.resolvePath(path)
	if err != nil {
		return SwapResult{}, wrapError(err)
	}
	out, err := api.exchange.SwapExactInputPath(account, p, amountIn, minOut)
	if err != nil {
		return SwapResult{}, wrapError(err)
	}
	return SwapResult{AmountIn: amountIn, AmountOut: out}, nil
}

func (api *DexAPI) SwapExactOutputPath(account common.Address, path []string, amountOut, maxIn uint64) (SwapResult, error) {
	p, err := api.resolvePath(path)
	if err != nil {
		return SwapResult{}, wrapError(err)
	}
	in, err := api.exchange.SwapExactOutputPath(account, p, amountOut, maxIn)
	if err != nil {
		return SwapResult{}, wrapError(err)
	}
	return SwapResult{AmountIn: in, AmountOut: amountOut}, nil
}

// QuoteAmountIn returns the input of a required to buy amountOut of b.
func (api *DexAPI) QuoteAmountIn(a, b string, amountOut uint64) (uint64, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return 0, wrapError(err)
	}
	in, err := api.exchange.QuoteAmountIn(assetA, assetB, amountOut)
	return in, wrapError(err)
}

// QuoteAmountOut returns the output of b paid for amountIn of a.
func (api *DexAPI) QuoteAmountOut(a, b string, amountIn uint64) (uint64, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return 0, wrapError(err)
	}
	out, err := api.exchange.QuoteAmountOut(assetA, assetB, amountIn)
	return out, wrapError(err)
}

func (api *DexAPI) QuoteAmountsOut(path []string, amountIn uint64) ([]uint64, error) {
	p, err := api.resolvePath(path)
	if err != nil {
		return nil, wrapError(err)
	}
	amounts, err := api.exchange.QuoteAmountsOut(p, amountIn)
	return amounts, wrapError(err)
}

func (api *DexAPI) QuoteAmountsIn(path []string, amountOut uint64) ([]uint64, error) {
	p, err := api.resolvePath(path)
	if err != nil {
		return nil, wrapError(err)
	}
	amounts, err := api.exchange.QuoteAmountsIn(p, amountOut)
	return amounts, wrapError(err)
}

func (api *DexAPI) QuoteSwap(path []string, amountIn uint64) (exchange.Quote, error) {
	p, err := api.resolvePath(path)
	if err != nil {
		return exchange.Quote{}, wrapError(err)
	}
	q, err := api.exchange.QuoteSwap(p, amountIn)
	return q, wrapError(err)
}

// BestPath finds the best-paying path for amountIn. maxHops may be omitted.
func (api *DexAPI) BestPath(from, to string, amountIn uint64, maxHops *int) (exchange.Quote, error) {
	assetFrom, assetTo, err := api.resolvePair(from, to)
	if err != nil {
		return exchange.Quote{}, wrapError(err)
	}
	hops := 0
	if maxHops != nil {
		hops = *maxHops
	}
	q, err := api.exchange.BestPath(assetFrom, assetTo, amountIn, hops)
	return q, wrapError(err)
}

func (api *DexAPI) Pools() []poolregistry.PoolView {
	return api.exchange.Pools()
}

func (api *DexAPI) Pool(a, b string) (poolregistry.PoolView, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return poolregistry.PoolView{}, wrapError(err)
	}
	view, err := api.exchange.Pool(assetA, assetB)
	return view, wrapError(err)
}

func (api *DexAPI) Balance(account common.Address, a string) (uint64, error) {
	assetA, err := api.resolve(a)
	if err != nil {
		return 0, wrapError(err)
	}
	return api.exchange.Balance(account, assetA), nil
}

func (api *DexAPI) LiquidityBalance(account common.Address, a, b string) (uint64, error) {
	assetA, assetB, err := api.resolvePair(a, b)
	if err != nil {
		return 0, wrapError(err)
	}
	shares, err := api.exchange.LiquidityBalance(account, assetA, assetB)
	return shares, wrapError(err)
}

// Events pages through retained swap events starting at sequence number from.
func (api *DexAPI) Events(from uint64, limit *int) []swap.SwapEvent {
	n := DefaultEventsLimit
	if limit != nil && *limit > 0 {
		n = *limit
	}
	return api.exchange.Events(from, n)
}

// Credit mints amount of a into account when the faucet is enabled.
func (api *DexAPI) Credit(account common.Address, a string, amount uint64) error {
	assetA, err := api.resolve(a)
	if err != nil {
		return wrapError(err)
	}
	return wrapError(api.exchange.Credit(account, assetA, amount))
}

// SubscribeSwapEvents streams every swap event executed after the subscription is created.
func (api *DexAPI) SubscribeSwapEvents(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}

	rpcSub := notifier.CreateSubscription()
	events := make(chan swap.SwapEvent, swapEventBufferSize)
	sub := api.exchange.SubscribeSwapEvents(events)

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-events:
				if err := notifier.Notify(rpcSub.ID, ev); err != nil {
					api.logger.Warn("Failed to notify swap event subscriber", "subscription", rpcSub.ID, "error", err)
					return
				}
			case <-rpcSub.Err():
				return
			}
		}
	}()

	api.logger.Debug("Swap event subscription created", "subscription", rpcSub.ID)
	return rpcSub, nil
}
