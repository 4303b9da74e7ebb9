package client

import (
	"context"
	"errors"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/exchange"
	"github.com/Iwinswap/iwinswap-amm-router/pkg/ledger"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/Iwinswap/iwinswap-amm-router/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorKind returns the error kind name attached by the server to a failed call, or ""
// if err did not come from the server.
func ErrorKind(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	kind, _ := dataErr.ErrorData().(string)
	return kind
}

// DexClient is a typed wrapper around the dex_* methods.
type DexClient struct {
	rpc *rpc.Client
}

// Dial connects to a dex server over HTTP or WebSocket, depending on the URL scheme.
func Dial(ctx context.Context, url string) (*DexClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewDexClient(c), nil
}

// NewDexClient wraps an existing connection.
func NewDexClient(c *rpc.Client) *DexClient {
	return &DexClient{rpc: c}
}

// Close closes the underlying connection.
func (c *DexClient) Close() {
	c.rpc.Close()
}

func (c *DexClient) call(ctx context.Context, result any, method string, args ...any) error {
	return c.rpc.CallContext(ctx, result, RpcNamespace+"_"+method, args...)
}

func (c *DexClient) Assets(ctx context.Context) ([]asset.Asset, error) {
	var assets []asset.Asset
	err := c.call(ctx, &assets, "assets")
	return assets, err
}

func (c *DexClient) RegisterAsset(ctx context.Context, a asset.Asset) error {
	return c.call(ctx, nil, "registerAsset", a)
}

func (c *DexClient) CreatePair(ctx context.Context, a, b string) (poolregistry.PoolView, error) {
	var view poolregistry.PoolView
	err := c.call(ctx, &view, "createPair", a, b)
	return view, err
}

func (c *DexClient) AddLiquidity(ctx context.Context, account common.Address, a, b string, desiredA, desiredB, minA, minB uint64) (ledger.LiquidityDeposit, error) {
	var d ledger.LiquidityDeposit
	err := c.call(ctx, &d, "addLiquidity", account, a, b, desiredA, desiredB, minA, minB)
	return d, err
}

func (c *DexClient) RemoveLiquidity(ctx context.Context, account common.Address, a, b string, liquidity, minA, minB uint64) (ledger.LiquidityWithdrawal, error) {
	var w ledger.LiquidityWithdrawal
	err := c.call(ctx, &w, "removeLiquidity", account, a, b, liquidity, minA, minB)
	return w, err
}

func (c *DexClient) RegisterLiquidityProvider(ctx context.Context, account common.Address, a, b string) error {
	return c.call(ctx, nil, "registerLiquidityProvider", account, a, b)
}

func (c *DexClient) SwapExactInput(ctx context.Context, account common.Address, a, b string, amountIn, minOut uint64) (server.SwapResult, error) {
	var res server.SwapResult
	err := c.call(ctx, &res, "swapExactInput", account, a, b, amountIn, minOut)
	return res, err
}

func (c *DexClient) SwapExactOutput(ctx context.Context, account common.Address, a, b string, amountOut, maxIn uint64) (server.SwapResult, error) {
	var res server.SwapResult
	err := c.call(ctx, &res, "swapExactOutput", account, a, b, amountOut, maxIn)
	return res, err
}

func (c *DexClient) SwapExactInputPath(ctx context.Context, account common.Address, path []string, amountIn, minOut uint64) (server.SwapResult, error) {
	var res server.SwapResult
	err := c.call(ctx, &res, "swapExactInputPath", account, path, amountIn, minOut)
	return res, err
}

func (c *DexClient) SwapExactOutputPath(ctx context.Context, account common.Address, path []string, amountOut, maxIn uint64) (server.SwapResult, error) {
	var res server.SwapResult
	err := c.call(ctx, &res, "swapExactOutputPath", account, path, amountOut, maxIn)
	return res, err
}

func (c *DexClient) QuoteAmountIn(ctx context.Context, a, b string, amountOut uint64) (uint64, error) {
	var in uint64
	err := c.call(ctx, &in, "quoteAmountIn", a, b, amountOut)
	return in, err
}

func (c *DexClient) QuoteAmountOut(ctx context.Context, a, b string, amountIn uint64) (uint64, error) {
	var out uint64
	err := c.call(ctx, &out, "quoteAmountOut", a, b, amountIn)
	return out, err
}

func (c *DexClient) QuoteAmountsOut(ctx context.Context, path []string, amountIn uint64) ([]uint64, error) {
	var amounts []uint64
	err := c.call(ctx, &amounts, "quoteAmountsOut", path, amountIn)
	return amounts, err
}

func (c *DexClient) QuoteAmountsIn(ctx context.Context, path []string, amountOut uint64) ([]uint64, error) {
	var amounts []uint64
	err := c.call(ctx, &amounts, "quoteAmountsIn", path, amountOut)
	return amounts, err
}

func (c *DexClient) QuoteSwap(ctx context.Context, path []string, amountIn uint64) (exchange.Quote, error) {
	var q exchange.Quote
	err := c.call(ctx, &q, "quoteSwap", path, amountIn)
	return q, err
}

// BestPath asks the server for the best-paying path. A maxHops of zero lets the server
// pick its longest supported path.
func (c *DexClient) BestPath(ctx context.Context, from, to string, amountIn uint64, maxHops int) (exchange.Quote, error) {
	var q exchange.Quote
	err := c.call(ctx, &q, "bestPath", from, to, amountIn, maxHops)
	return q, err
}

func (c *DexClient) Pools(ctx context.Context) ([]poolregistry.PoolView, error) {
	var pools []poolregistry.PoolView
	err := c.call(ctx, &pools, "pools")
	return pools, err
}

func (c *DexClient) Pool(ctx context.Context, a, b string) (poolregistry.PoolView, error) {
	var view poolregistry.PoolView
	err := c.call(ctx, &view, "pool", a, b)
	return view, err
}

func (c *DexClient) Balance(ctx context.Context, account common.Address, a string) (uint64, error) {
	var balance uint64
	err := c.call(ctx, &balance, "balance", account, a)
	return balance, err
}

func (c *DexClient) LiquidityBalance(ctx context.Context, account common.Address, a, b string) (uint64, error) {
	var shares uint64
	err := c.call(ctx, &shares, "liquidityBalance", account, a, b)
	return shares, err
}

// Events pages through retained swap events. A limit of zero uses the server default.
func (c *DexClient) Events(ctx context.Context, from uint64, limit int) ([]swap.SwapEvent, error) {
	var events []swap.SwapEvent
	var err error
	if limit > 0 {
		err = c.call(ctx, &events, "events", from, limit)
	} else {
		err = c.call(ctx, &events, "events", from)
	}
	return events, err
}

func (c *DexClient) Credit(ctx context.Context, account common.Address, a string, amount uint64) error {
	return c.call(ctx, nil, "credit", account, a, amount)
}

// SubscribeSwapEvents subscribes ch to swap events. It needs a WebSocket or in-process
// connection.
func (c *DexClient) SubscribeSwapEvents(ctx context.Context, ch chan<- swap.SwapEvent) (*rpc.ClientSubscription, error) {
	return c.rpc.Subscribe(ctx, RpcNamespace, ch, SwapEventsSubscriptionMethod)
}
