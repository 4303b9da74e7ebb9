package pairorder

import (
	"testing"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func named(name string) asset.Asset {
	return asset.Asset{Name: name, Address: common.BytesToAddress([]byte(name))}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want Ordering
	}{
		{"Lexicographic", "BTC", "ETH", Less},
		{"Reverse", "ETH", "BTC", Greater},
		{"Equal", "USD", "USD", Equal},
		{"PrefixIsLess", "USD", "USDC", Less},
		{"UppercaseBeforeLowercase", "Zed", "abc", Less},
		{"UnsignedBytes", "\xff", "a", Greater},
		{"EmptyIsLeast", "", "a", Less},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(named(tt.a), named(tt.b)))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	btc, eth := named("BTC"), named("ETH")

	t.Run("AlreadyCanonical", func(t *testing.T) {
		x, y, swapped, err := Canonicalize(btc, eth)
		require.NoError(t, err)
		assert.Equal(t, btc, x)
		assert.Equal(t, eth, y)
		assert.False(t, swapped)
	})

	t.Run("Swapped", func(t *testing.T) {
		x, y, swapped, err := Canonicalize(eth, btc)
		require.NoError(t, err)
		assert.Equal(t, btc, x)
		assert.Equal(t, eth, y)
		assert.True(t, swapped)
	})

	t.Run("SameName_DifferentAddress", func(t *testing.T) {
		a := asset.Asset{Name: "USD", Address: common.HexToAddress("0x01")}
		b := asset.Asset{Name: "USD", Address: common.HexToAddress("0x02")}
		_, _, _, err := Canonicalize(a, b)
		assert.ErrorIs(t, err, dexerr.ErrIdenticalAssets)
		assert.Equal(t, dexerr.KindIdentity, dexerr.KindOf(err))
	})
}

func TestOrderingProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := named(rapid.String().Draw(t, "a"))
		b := named(rapid.String().Draw(t, "b"))

		if Compare(a, a) != Equal {
			t.Fatalf("Compare(a, a) = %v", Compare(a, a))
		}
		if Compare(a, b) == Equal {
			if _, _, _, err := Canonicalize(a, b); err == nil {
				t.Fatalf("Canonicalize(%q, %q) succeeded on equal names", a.Name, b.Name)
			}
			return
		}
		if IsCanonicalFirst(a, b) == IsCanonicalFirst(b, a) {
			t.Fatalf("exactly one of %q, %q must be canonical first", a.Name, b.Name)
		}
		x1, y1, _, err1 := Canonicalize(a, b)
		x2, y2, _, err2 := Canonicalize(b, a)
		if err1 != nil || err2 != nil || x1 != x2 || y1 != y2 {
			t.Fatalf("canonical order depends on argument order")
		}
	})
}
