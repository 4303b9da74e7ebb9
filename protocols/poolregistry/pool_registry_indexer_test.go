package poolregistry

import (
	"testing"

	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexablePoolRegistry(t *testing.T) {
	btc := testAsset("BTC", "0x01")
	eth := testAsset("ETH", "0x02")
	usd := testAsset("USD", "0x03")

	btcEth := PoolView{ID: 1, Key: NewPoolKey(btc, eth), X: btc, Y: eth, ReserveX: 10, ReserveY: 300}
	ethUsd := PoolView{ID: 2, Key: NewPoolKey(eth, usd), X: eth, Y: usd, ReserveX: 100, ReserveY: 200_000}
	registry := New().Index([]PoolView{btcEth, ethUsd})

	t.Run("GetByID", func(t *testing.T) {
		p, ok := registry.GetByID(2)
		require.True(t, ok)
		assert.Equal(t, ethUsd, p)
		_, ok = registry.GetByID(3)
		assert.False(t, ok)
	})

	t.Run("GetByPair_EitherOrder", func(t *testing.T) {
		p, ok := registry.GetByPair(eth, btc)
		require.True(t, ok)
		assert.Equal(t, btcEth, p)

		p, ok = registry.GetByPoolKey(NewPoolKey(btc, eth))
		require.True(t, ok)
		assert.Equal(t, btcEth, p)

		_, ok = registry.GetByPair(btc, usd)
		assert.False(t, ok)
		_, ok = registry.GetByPair(btc, btc)
		assert.False(t, ok)
	})

	t.Run("Reserves_Oriented", func(t *testing.T) {
		ra, rb, ok := btcEth.Reserves(eth, btc)
		require.True(t, ok)
		assert.Equal(t, uint64(300), ra)
		assert.Equal(t, uint64(10), rb)
		_, _, ok = btcEth.Reserves(btc, usd)
		assert.False(t, ok)
	})

	t.Run("All_DefensiveCopy", func(t *testing.T) {
		all := registry.All()
		require.Len(t, all, 2)
		all[0] = PoolView{}
		assert.Equal(t, btcEth, registry.All()[0])
	})
}

func TestAssetPoolsRegistryView(t *testing.T) {
	btc := testAsset("BTC", "0x01")
	eth := testAsset("ETH", "0x02")
	usd := testAsset("USD", "0x03")
	eur := testAsset("EUR", "0x04")

	graph := NewAssetPoolsRegistryView([]PoolView{
		{ID: 2, X: eth, Y: usd, ReserveX: 1, ReserveY: 1},
		{ID: 1, X: btc, Y: eth, ReserveX: 1, ReserveY: 1},
		{ID: 3, X: eur, Y: usd, ReserveX: 0, ReserveY: 0},
	})

	assert.Equal(t, []uint64{1, 2}, graph.Pools, "pools are visited by ID and empty pools are skipped")
	assert.ElementsMatch(t, []asset.Asset{btc, usd}, graph.Neighbors(eth))
	assert.Equal(t, []asset.Asset{eth}, graph.Neighbors(btc))
	assert.Empty(t, graph.Neighbors(eur))

	i, ok := graph.IndexOf(usd)
	require.True(t, ok)
	assert.Equal(t, usd, graph.Assets[i])
	require.Len(t, graph.EdgeTargets, 4)
	for _, pools := range graph.EdgePools {
		assert.Len(t, pools, 1)
	}
}
