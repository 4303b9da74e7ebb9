package router

import (
	"sort"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
)

// FindPaths enumerates the simple paths from one asset to another with at most maxHops
// hops. Shorter paths come first; paths of equal length are ordered by their names.
func FindPaths(graph *poolregistry.AssetPoolsRegistryView, from, to asset.Asset, maxHops int) []Path {
	if maxHops <= 0 || maxHops > MaxHops {
		maxHops = MaxHops
	}
	start, ok := graph.IndexOf(from)
	if !ok {
		return nil
	}
	target, ok := graph.IndexOf(to)
	if !ok || start == target {
		return nil
	}

	var (
		paths   []Path
		visited = make([]bool, len(graph.Assets))
		stack   = []int{start}
	)
	var walk func(v int)
	walk = func(v int) {
		if v == target {
			path := make(Path, len(stack))
			for i, idx := range stack {
				path[i] = graph.Assets[idx]
			}
			paths = append(paths, path)
			return
		}
		if len(stack) > maxHops {
			return
		}
		visited[v] = true
		for _, e := range graph.Adjacency[v] {
			next := graph.EdgeTargets[e]
			if visited[next] {
				continue
			}
			stack = append(stack, next)
			walk(next)
			stack = stack[:len(stack)-1]
		}
		visited[v] = false
	}
	walk(start)

	sort.SliceStable(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return paths[i].String() < paths[j].String()
	})
	return paths
}

// BestExactInputPath quotes amountIn along every candidate path and returns the one with
// the largest output, together with its per-hop amounts. Ties go to the earlier candidate.
// Paths that cannot be quoted are skipped; if none can, the first quoting error is returned.
func BestExactInputPath(reader swap.Reader, paths []Path, amountIn uint64) (Path, []uint64, error) {
	var (
		best        Path
		bestAmounts []uint64
		firstErr    error
	)
	for _, path := range paths {
		amounts, err := AmountsOut(reader, path, amountIn)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if best == nil || amounts[len(amounts)-1] > bestAmounts[len(bestAmounts)-1] {
			best, bestAmounts = path, amounts
		}
	}
	if best == nil {
		if firstErr == nil {
			firstErr = dexerr.ErrInvalidPath
		}
		return nil, nil, firstErr
	}
	return best, bestAmounts, nil
}
