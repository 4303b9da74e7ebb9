package router

import (
	"fmt"
	"strings"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/pairorder"
	"github.com/ethereum/go-ethereum/common"
)

const (
	MinPathLength = 2
	MaxPathLength = 5
	// MaxHops is the largest number of pools a routed trade may pass through.
	MaxHops = MaxPathLength - 1
)

// Path is an ordered list of assets. Each consecutive pair of assets is one hop through
// the pool of that pair.
type Path []asset.Asset

// Hops returns the number of hops in the path.
func (p Path) Hops() int {
	if len(p) < MinPathLength {
		return 0
	}
	return len(p) - 1
}

// Pairs returns the asset pair of every hop, in order.
func (p Path) Pairs() [][2]asset.Asset {
	pairs := make([][2]asset.Asset, 0, p.Hops())
	for i := 0; i+1 < len(p); i++ {
		pairs = append(pairs, [2]asset.Asset{p[i], p[i+1]})
	}
	return pairs
}

// Validate checks that the path has between MinPathLength and MaxPathLength assets and
// that consecutive assets differ. A pool may appear on more than one hop.
func (p Path) Validate() error {
	if len(p) < MinPathLength || len(p) > MaxPathLength {
		return fmt.Errorf("path of %d assets, want %d to %d: %w", len(p), MinPathLength, MaxPathLength, dexerr.ErrInvalidPath)
	}
	for i, pair := range p.Pairs() {
		if _, _, _, err := pairorder.Canonicalize(pair[0], pair[1]); err != nil {
			return fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return nil
}

// validateDistinctPools rejects a path that passes through any pool twice. Exact-output
// trades solve every hop against the reserves before the trade, which only holds when
// each pool is touched once.
func (p Path) validateDistinctPools() error {
	seen := make(map[[2]common.Address]struct{}, p.Hops())
	for i, pair := range p.Pairs() {
		x, y, _, err := pairorder.Canonicalize(pair[0], pair[1])
		if err != nil {
			return fmt.Errorf("hop %d: %w", i, err)
		}
		k := [2]common.Address{x.Address, y.Address}
		if _, ok := seen[k]; ok {
			return fmt.Errorf("hop %d reuses pool %s/%s: %w", i, x, y, dexerr.ErrInvalidPath)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func (p Path) String() string {
	names := make([]string, len(p))
	for i, a := range p {
		names[i] = a.Name
	}
	return strings.Join(names, " -> ")
}
