// Package pairorder assigns the canonical x and y roles to the two assets of a pool.
//
// Assets are ordered by the unsigned byte-wise comparison of their display names. Two
// distinct assets that share a display name compare as Equal and cannot be paired; the
// asset registry reports such collisions when they are registered.
package pairorder

import (
	"bytes"
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
)

// Ordering is the result of comparing two assets.
type Ordering int8

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "LESS"
	case Equal:
		return "EQUAL"
	case Greater:
		return "GREATER"
	default:
		return fmt.Sprintf("Ordering(%d)", int8(o))
	}
}

// Compare orders a and b by their display-name bytes.
func Compare(a, b asset.Asset) Ordering {
	return Ordering(bytes.Compare([]byte(a.Name), []byte(b.Name)))
}

// IsCanonicalFirst reports whether a takes the x role in a pool with b.
func IsCanonicalFirst(a, b asset.Asset) bool {
	return Compare(a, b) == Less
}

// Canonicalize returns a and b in canonical (x, y) order. swapped is true when b is x.
func Canonicalize(a, b asset.Asset) (x, y asset.Asset, swapped bool, err error) {
	switch Compare(a, b) {
	case Less:
		return a, b, false, nil
	case Greater:
		return b, a, true, nil
	default:
		return asset.Asset{}, asset.Asset{}, false, fmt.Errorf("%#v and %#v: %w", a, b, dexerr.ErrIdenticalAssets)
	}
}
