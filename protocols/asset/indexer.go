package asset

import (
	"fmt"
	"sort"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/ethereum/go-ethereum/common"
)

// Indexer builds indexed asset systems.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed asset system from a raw slice of assets.
func (i *Indexer) Index(assets []Asset) *IndexableAssetSystem {
	return NewIndexableAssetSystem(assets)
}

// IndexableAssetSystem provides fast, indexed access to asset data.
type IndexableAssetSystem struct {
	byAddress map[common.Address]Asset
	byName    map[string][]Asset
	all       []Asset
}

// NewIndexableAssetSystem creates a new indexed asset system from a raw slice.
// Later entries with an already indexed address replace earlier ones.
func NewIndexableAssetSystem(assets []Asset) *IndexableAssetSystem {
	byAddress := make(map[common.Address]Asset, len(assets))
	for _, a := range assets {
		byAddress[a.Address] = a
	}

	all := make([]Asset, 0, len(byAddress))
	for _, a := range byAddress {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].Address.Cmp(all[j].Address) < 0
	})

	byName := make(map[string][]Asset, len(all))
	for _, a := range all {
		byName[a.Name] = append(byName[a.Name], a)
	}

	return &IndexableAssetSystem{
		byAddress: byAddress,
		byName:    byName,
		all:       all,
	}
}

// GetByAddress retrieves an asset by its address.
func (its *IndexableAssetSystem) GetByAddress(address common.Address) (Asset, bool) {
	a, ok := its.byAddress[address]
	return a, ok
}

// GetByName resolves a display name to exactly one asset.
func (its *IndexableAssetSystem) GetByName(name string) (Asset, error) {
	matches := its.byName[name]
	switch len(matches) {
	case 0:
		return Asset{}, fmt.Errorf("%q: %w", name, dexerr.ErrUnknownAsset)
	case 1:
		return matches[0], nil
	default:
		return Asset{}, fmt.Errorf("%q matches %d assets: %w", name, len(matches), dexerr.ErrAmbiguousAsset)
	}
}

// Resolve accepts either a hex address or a display name.
func (its *IndexableAssetSystem) Resolve(ref string) (Asset, error) {
	if common.IsHexAddress(ref) {
		if a, ok := its.byAddress[common.HexToAddress(ref)]; ok {
			return a, nil
		}
	}
	return its.GetByName(ref)
}

// NameCollisions returns the display names shared by more than one asset, sorted.
func (its *IndexableAssetSystem) NameCollisions() []string {
	var names []string
	for name, matches := range its.byName {
		if len(matches) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns a defensive copy of the slice of all assets in the system, ordered by name.
func (its *IndexableAssetSystem) All() []Asset {
	allCopy := make([]Asset, len(its.all))
	copy(allCopy, its.all)
	return allCopy
}
