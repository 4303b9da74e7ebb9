package poolregistry

import "github.com/Iwinswap/iwinswap-amm-router/protocols/asset"

// PoolView represents the data for a single pool.
type PoolView struct {
	ID          uint64      `json:"id"`
	Key         PoolKey     `json:"key"`
	X           asset.Asset `json:"x"`
	Y           asset.Asset `json:"y"`
	ReserveX    uint64      `json:"reserveX"`
	ReserveY    uint64      `json:"reserveY"`
	TotalSupply uint64      `json:"totalSupply"`
	Providers   int         `json:"providers"`
}

// Reserves returns the reserves of a and b in that order. Assets are matched by address.
// ok is false if the pool does not hold both assets.
func (p PoolView) Reserves(a, b asset.Asset) (reserveA, reserveB uint64, ok bool) {
	x, y := p.X.Address, p.Y.Address
	switch {
	case a.Address == x && b.Address == y:
		return p.ReserveX, p.ReserveY, true
	case a.Address == y && b.Address == x:
		return p.ReserveY, p.ReserveX, true
	default:
		return 0, 0, false
	}
}

// PoolRegistryView represents the complete state of the registry.
type PoolRegistryView struct {
	Pools  []PoolView    `json:"pools"`
	Assets []asset.Asset `json:"assets"`
}
