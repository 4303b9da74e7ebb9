package asset

import (
	"testing"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexableAssetSystem(t *testing.T) {
	usd := testAsset("USD", 1)
	eur := testAsset("EUR", 2)
	fakeUSD := testAsset("USD", 3)

	t.Run("Lookups", func(t *testing.T) {
		system := New().Index([]Asset{usd, eur})

		got, ok := system.GetByAddress(usd.Address)
		require.True(t, ok)
		assert.Equal(t, usd, got)

		got, err := system.GetByName("EUR")
		require.NoError(t, err)
		assert.Equal(t, eur, got)

		got, err = system.Resolve(usd.Address.Hex())
		require.NoError(t, err)
		assert.Equal(t, usd, got)

		_, err = system.GetByName("GBP")
		assert.ErrorIs(t, err, dexerr.ErrUnknownAsset)
		assert.Empty(t, system.NameCollisions())
	})

	t.Run("All_SortedDefensiveCopy", func(t *testing.T) {
		system := New().Index([]Asset{usd, eur})
		all := system.All()
		require.Len(t, all, 2)
		assert.Equal(t, eur, all[0])
		assert.Equal(t, usd, all[1])

		all[0] = Asset{}
		assert.Equal(t, eur, system.All()[0], "mutating the copy must not affect the index")
	})

	t.Run("DuplicateNames_AreAmbiguous", func(t *testing.T) {
		system := New().Index([]Asset{usd, fakeUSD, eur})

		_, err := system.GetByName("USD")
		assert.ErrorIs(t, err, dexerr.ErrAmbiguousAsset)
		assert.Equal(t, []string{"USD"}, system.NameCollisions())

		// The address still disambiguates.
		got, err := system.Resolve(fakeUSD.Address.Hex())
		require.NoError(t, err)
		assert.Equal(t, fakeUSD, got)
	})

	t.Run("SameAddress_LastWins", func(t *testing.T) {
		renamed := usd
		renamed.Name = "USDC"
		system := New().Index([]Asset{usd, renamed})
		require.Len(t, system.All(), 1)
		got, err := system.GetByName("USDC")
		require.NoError(t, err)
		assert.Equal(t, renamed, got)
	})
}
