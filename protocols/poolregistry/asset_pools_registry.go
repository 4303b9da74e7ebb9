package poolregistry

import (
	"sort"

	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/ethereum/go-ethereum/common"
)

// AssetPoolsRegistryView is a snapshot of the asset/pool graph in adjacency form.
//
// Assets[i] is vertex i. Adjacency[i] lists the edge indices leaving vertex i; edge e leads
// to vertex EdgeTargets[e] through the pools whose indices into Pools are EdgePools[e].
type AssetPoolsRegistryView struct {
	Assets      []asset.Asset `json:"assets"`
	Pools       []uint64      `json:"pools"`
	Adjacency   [][]int       `json:"adjacency"`
	EdgeTargets []int         `json:"edgeTargets"`
	EdgePools   [][]int       `json:"edgePools"`

	index map[common.Address]int
}

// NewAssetPoolsRegistryView builds the graph of the given pools. Pools with zero reserves
// on either side are left out because nothing can be routed through them.
func NewAssetPoolsRegistryView(pools []PoolView) *AssetPoolsRegistryView {
	v := &AssetPoolsRegistryView{index: make(map[common.Address]int)}

	vertex := func(a asset.Asset) int {
		if i, ok := v.index[a.Address]; ok {
			return i
		}
		i := len(v.Assets)
		v.index[a.Address] = i
		v.Assets = append(v.Assets, a)
		v.Adjacency = append(v.Adjacency, nil)
		return i
	}

	sorted := make([]PoolView, len(pools))
	copy(sorted, pools)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	edges := make(map[[2]int]int)
	link := func(from, to, pool int) {
		e, ok := edges[[2]int{from, to}]
		if !ok {
			e = len(v.EdgeTargets)
			edges[[2]int{from, to}] = e
			v.EdgeTargets = append(v.EdgeTargets, to)
			v.EdgePools = append(v.EdgePools, nil)
			v.Adjacency[from] = append(v.Adjacency[from], e)
		}
		v.EdgePools[e] = append(v.EdgePools[e], pool)
	}

	for _, p := range sorted {
		if p.ReserveX == 0 || p.ReserveY == 0 {
			continue
		}
		poolIdx := len(v.Pools)
		v.Pools = append(v.Pools, p.ID)
		x, y := vertex(p.X), vertex(p.Y)
		link(x, y, poolIdx)
		link(y, x, poolIdx)
	}
	return v
}

// IndexOf returns the vertex index of a.
func (v *AssetPoolsRegistryView) IndexOf(a asset.Asset) (int, bool) {
	i, ok := v.index[a.Address]
	if !ok || v.Assets[i] != a {
		return 0, false
	}
	return i, true
}

// Neighbors returns the assets reachable from a through a single pool.
func (v *AssetPoolsRegistryView) Neighbors(a asset.Asset) []asset.Asset {
	i, ok := v.IndexOf(a)
	if !ok {
		return nil
	}
	out := make([]asset.Asset, 0, len(v.Adjacency[i]))
	for _, e := range v.Adjacency[i] {
		out = append(out, v.Assets[v.EdgeTargets[e]])
	}
	return out
}
