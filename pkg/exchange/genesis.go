package exchange

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/ethereum/go-ethereum/common"
)

// Genesis is the initial state loaded into a fresh exchange.
type Genesis struct {
	Assets   []asset.Asset    `yaml:"assets" json:"assets"`
	Accounts []GenesisAccount `yaml:"accounts" json:"accounts"`
	Pools    []GenesisPool    `yaml:"pools" json:"pools"`
}

// GenesisAccount funds an account. Balances are keyed by asset display name or address.
type GenesisAccount struct {
	Address  common.Address    `yaml:"address" json:"address"`
	Balances map[string]uint64 `yaml:"balances" json:"balances"`
}

// GenesisPool creates a pool and, when both reserves are set, seeds it with liquidity
// deposited by Provider. Provider must be funded by an entry in Accounts.
type GenesisPool struct {
	A        string         `yaml:"a" json:"a"`
	B        string         `yaml:"b" json:"b"`
	ReserveA uint64         `yaml:"reserve_a" json:"reserveA"`
	ReserveB uint64         `yaml:"reserve_b" json:"reserveB"`
	Provider common.Address `yaml:"provider" json:"provider"`
}

// ApplyGenesis registers assets, funds accounts and creates pools, in that order.
func (e *Exchange) ApplyGenesis(g Genesis) error {
	for _, a := range g.Assets {
		if err := e.RegisterAsset(a); err != nil {
			return fmt.Errorf("genesis asset %s: %w", a.Name, err)
		}
	}
	for _, acc := range g.Accounts {
		for ref, amount := range acc.Balances {
			a, err := e.ResolveAsset(ref)
			if err != nil {
				return fmt.Errorf("genesis account %s: %w", acc.Address.Hex(), err)
			}
			if err := e.credit(acc.Address, a, amount); err != nil {
				return fmt.Errorf("genesis account %s: %w", acc.Address.Hex(), err)
			}
		}
	}
	for _, p := range g.Pools {
		a, err := e.ResolveAsset(p.A)
		if err != nil {
			return fmt.Errorf("genesis pool %s/%s: %w", p.A, p.B, err)
		}
		b, err := e.ResolveAsset(p.B)
		if err != nil {
			return fmt.Errorf("genesis pool %s/%s: %w", p.A, p.B, err)
		}
		if _, err := e.CreatePair(a, b); err != nil {
			return fmt.Errorf("genesis pool %s/%s: %w", p.A, p.B, err)
		}
		if p.ReserveA == 0 && p.ReserveB == 0 {
			continue
		}
		if _, err := e.AddLiquidity(p.Provider, a, b, p.ReserveA, p.ReserveB, p.ReserveA, p.ReserveB); err != nil {
			return fmt.Errorf("genesis pool %s/%s: %w", p.A, p.B, err)
		}
	}
	e.logger.Info("Genesis applied", "assets", len(g.Assets), "accounts", len(g.Accounts), "pools", len(g.Pools))
	return nil
}
