package exchange

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/router"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	btc = asset.Asset{Address: common.HexToAddress("0x01"), Name: "BTC", Symbol: "BTC", Decimals: 8}
	eth = asset.Asset{Address: common.HexToAddress("0x02"), Name: "ETH", Symbol: "ETH", Decimals: 18}
	usd = asset.Asset{Address: common.HexToAddress("0x03"), Name: "USD", Symbol: "USD", Decimals: 6}

	alice    = common.HexToAddress("0xa11ce")
	provider = common.HexToAddress("0x1d")
)

func testGenesis() Genesis {
	return Genesis{
		Assets: []asset.Asset{btc, eth, usd},
		Accounts: []GenesisAccount{
			{Address: provider, Balances: map[string]uint64{"BTC": 1_000_000, "ETH": 25_000_000, "USD": 10_000_000}},
			{Address: alice, Balances: map[string]uint64{"BTC": 10_000, usd.Address.Hex(): 50_000}},
		},
		Pools: []GenesisPool{
			{A: "BTC", B: "ETH", ReserveA: 1_000_000, ReserveB: 20_000_000, Provider: provider},
			{A: "ETH", B: "USD", ReserveA: 5_000_000, ReserveB: 9_000_000, Provider: provider},
			{A: "BTC", B: "USD"},
		},
	}
}

func newTestExchange(t *testing.T, faucet bool) (*Exchange, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	e, err := New(Config{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry:     reg,
		EnableFaucet: faucet,
		Now:          func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	require.NoError(t, err)
	require.NoError(t, e.ApplyGenesis(testGenesis()))
	return e, reg
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Registry: prometheus.NewRegistry()})
	assert.Error(t, err)
	_, err = New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	assert.Error(t, err)
}

func TestGenesis(t *testing.T) {
	e, _ := newTestExchange(t, false)

	assert.Equal(t, []asset.Asset{btc, eth, usd}, e.Assets())
	pools := e.Pools()
	require.Len(t, pools, 3)
	assert.Equal(t, uint64(1_000_000), pools[0].ReserveX)
	assert.Equal(t, uint64(20_000_000), pools[0].ReserveY)
	assert.Zero(t, pools[2].TotalSupply, "pool without reserves is created empty")
	assert.Equal(t, 3.0, testutil.ToFloat64(e.metrics.pools))

	assert.Equal(t, uint64(10_000), e.Balance(alice, btc))
	assert.Equal(t, uint64(50_000), e.Balance(alice, usd))
	assert.Equal(t, uint64(0), e.Balance(provider, btc))

	registry := e.PoolRegistry()
	p, ok := registry.GetByPair(usd, eth)
	require.True(t, ok)
	assert.Equal(t, pools[1], p)

	err := e.ApplyGenesis(Genesis{Pools: []GenesisPool{{A: "BTC", B: "GBP"}}})
	assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
}

func TestRegisterAsset(t *testing.T) {
	e, _ := newTestExchange(t, false)

	err := e.RegisterAsset(asset.Asset{Name: "", Address: common.HexToAddress("0x09")})
	assert.ErrorIs(t, err, ErrInvalidAsset)
	err = e.RegisterAsset(asset.Asset{Name: "ZZZ"})
	assert.ErrorIs(t, err, ErrInvalidAsset)
	err = e.RegisterAsset(asset.Asset{Name: "ZZZ", Address: btc.Address})
	assert.ErrorIs(t, err, ErrAssetExists)

	t.Run("NameCollision_FlaggedNotFixed", func(t *testing.T) {
		fake := asset.Asset{Name: "BTC", Symbol: "BTC", Address: common.HexToAddress("0xbad")}
		require.NoError(t, e.RegisterAsset(fake))
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.nameCollisions))

		_, err := e.ResolveAsset("BTC")
		assert.ErrorIs(t, err, dexerr.ErrAmbiguousAsset)

		got, err := e.ResolveAsset(fake.Address.Hex())
		require.NoError(t, err)
		assert.Equal(t, fake, got)

		_, err = e.CreatePair(btc, fake)
		assert.ErrorIs(t, err, dexerr.ErrIdenticalAssets)
	})

	_, err = e.CreatePair(btc, asset.Asset{Name: "GBP", Address: common.HexToAddress("0x0f")})
	assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
}

func TestSwaps(t *testing.T) {
	t.Run("SingleHop", func(t *testing.T) {
		e, _ := newTestExchange(t, false)

		quoted, err := e.QuoteAmountOut(btc, eth, 1_000)
		require.NoError(t, err)
		out, err := e.SwapExactInput(alice, btc, eth, 1_000, quoted)
		require.NoError(t, err)
		assert.Equal(t, quoted, out)
		assert.Equal(t, out, e.Balance(alice, eth))

		in, err := e.QuoteAmountIn(eth, btc, 100)
		require.NoError(t, err)
		spent, err := e.SwapExactOutput(alice, eth, btc, 100, in)
		require.NoError(t, err)
		assert.Equal(t, in, spent)
		assert.Equal(t, out-spent, e.Balance(alice, eth))

		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.swapsTotal.WithLabelValues(modeExactInput, "success")))
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.swapsTotal.WithLabelValues(modeExactOutput, "success")))
		assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.hopsTotal))
		assert.Len(t, e.Events(0, 0), 2)
	})

	t.Run("SlippageRecordedByKind", func(t *testing.T) {
		e, _ := newTestExchange(t, false)
		_, err := e.SwapExactInput(alice, btc, eth, 1_000, 1<<40)
		assert.ErrorIs(t, err, dexerr.ErrOutputBelowMinimum)
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.swapsTotal.WithLabelValues(modeExactInput, "error")))
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.errorsTotal.WithLabelValues("swap_exact_input", "slippage")))
	})

	t.Run("Path", func(t *testing.T) {
		e, _ := newTestExchange(t, false)
		path := router.Path{btc, eth, usd}

		amounts, err := e.QuoteAmountsOut(path, 1_000)
		require.NoError(t, err)
		out, err := e.SwapExactInputPath(alice, path, 1_000, amounts[2])
		require.NoError(t, err)
		assert.Equal(t, amounts[2], out)
		assert.Equal(t, 50_000+out, e.Balance(alice, usd))
		assert.Zero(t, e.Balance(alice, eth))

		reverse := router.Path{usd, eth, btc}
		needed, err := e.QuoteAmountsIn(reverse, 500)
		require.NoError(t, err)
		in, err := e.SwapExactOutputPath(alice, reverse, 500, needed[0])
		require.NoError(t, err)
		assert.Equal(t, needed[0], in)
		assert.Equal(t, uint64(10_000-1_000+500), e.Balance(alice, btc))

		assert.Len(t, e.Events(0, 0), 4)
		assert.Equal(t, 4.0, testutil.ToFloat64(e.metrics.hopsTotal))
	})

	t.Run("PathThroughEmptyPool", func(t *testing.T) {
		e, _ := newTestExchange(t, false)
		_, err := e.SwapExactInputPath(alice, router.Path{btc, usd, eth}, 1_000, 0)
		assert.ErrorIs(t, err, dexerr.ErrInsufficientLiquidity)
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.errorsTotal.WithLabelValues("swap_exact_input_path", "liquidity")))
		assert.Equal(t, uint64(10_000), e.Balance(alice, btc))
	})

	t.Run("PathBackToStart", func(t *testing.T) {
		e, _ := newTestExchange(t, false)
		path := router.Path{btc, eth, btc}

		amounts, err := e.QuoteAmountsOut(path, 1_000)
		require.NoError(t, err)
		out, err := e.SwapExactInputPath(alice, path, 1_000, amounts[2])
		require.NoError(t, err)
		assert.Equal(t, amounts[2], out)
		assert.Less(t, out, uint64(1_000))
		assert.Equal(t, 10_000-1_000+out, e.Balance(alice, btc))
		assert.Zero(t, e.Balance(alice, eth))

		_, err = e.SwapExactOutputPath(alice, path, 100, 1_000)
		assert.ErrorIs(t, err, dexerr.ErrInvalidPath)
	})

	t.Run("UnregisteredAssetVariant", func(t *testing.T) {
		e, _ := newTestExchange(t, true)
		relabeled := btc
		relabeled.Symbol = ""
		before := e.Pools()

		_, err := e.SwapExactInput(alice, relabeled, eth, 1_000, 0)
		assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
		_, err = e.SwapExactOutput(alice, relabeled, eth, 100, 1_000)
		assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
		_, err = e.SwapExactInputPath(alice, router.Path{relabeled, eth, usd}, 1_000, 0)
		assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
		_, err = e.SwapExactOutputPath(alice, router.Path{relabeled, eth, usd}, 100, 1_000)
		assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
		_, err = e.AddLiquidity(alice, relabeled, usd, 1_000, 1_000, 0, 0)
		assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
		_, err = e.RemoveLiquidity(provider, relabeled, eth, 1, 0, 0)
		assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
		assert.ErrorIs(t, e.RegisterLiquidityProvider(alice, relabeled, eth), dexerr.ErrUnknownAsset)

		assert.Equal(t, before, e.Pools())
		assert.Equal(t, uint64(10_000), e.Balance(alice, btc))
		assert.Empty(t, e.Events(0, 0))
	})
}

func TestQuotes(t *testing.T) {
	e, _ := newTestExchange(t, false)

	q, err := e.QuoteSwap(router.Path{btc, eth}, 1_000)
	require.NoError(t, err)
	assert.Equal(t, "20", q.SpotPrice.String())
	assert.Equal(t, uint64(1_000), q.AmountIn)
	assert.Equal(t, q.Amounts[1], q.AmountOut)
	assert.True(t, q.PriceImpact.IsPositive())

	best, err := e.BestPath(btc, usd, 1_000, 0)
	require.NoError(t, err)
	assert.Equal(t, router.Path{btc, eth, usd}, best.Path, "the direct pool is empty")
	assert.Len(t, best.Amounts, 3)

	_, err = e.BestPath(btc, asset.Asset{Name: "GBP"}, 1_000, 0)
	assert.ErrorIs(t, err, dexerr.ErrInvalidPath)
}

func TestLiquidityAndFaucet(t *testing.T) {
	t.Run("FaucetDisabled", func(t *testing.T) {
		e, _ := newTestExchange(t, false)
		assert.ErrorIs(t, e.Credit(alice, btc, 1), ErrFaucetDisabled)
	})

	e, _ := newTestExchange(t, true)
	require.NoError(t, e.Credit(alice, eth, 1_000_000))

	d, err := e.AddLiquidity(alice, btc, usd, 2_000, 50_000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000), d.AmountA)

	shares, err := e.LiquidityBalance(alice, usd, btc)
	require.NoError(t, err)
	assert.Equal(t, d.Liquidity, shares)

	w, err := e.RemoveLiquidity(alice, btc, usd, shares, 1, 1)
	require.NoError(t, err)
	assert.NotZero(t, w.AmountA)

	require.NoError(t, e.RegisterLiquidityProvider(provider, btc, usd))
	view, err := e.Pool(btc, usd)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Providers)
}

func TestSubscribeSwapEvents(t *testing.T) {
	e, _ := newTestExchange(t, false)
	ch := make(chan swap.SwapEvent, 4)
	sub := e.SubscribeSwapEvents(ch)
	defer sub.Unsubscribe()

	_, err := e.SwapExactInput(alice, btc, eth, 1_000, 0)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, uint64(1), ev.Sequence)
		assert.Equal(t, time.Unix(1_700_000_000, 0), ev.Timestamp)
		assert.Equal(t, btc, ev.AssetIn())
	case <-time.After(time.Second):
		t.Fatal("swap event not delivered")
	}
}
