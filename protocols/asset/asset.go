// Package asset defines fungible asset identities, free-standing asset values and an
// indexed asset registry.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies a fungible asset type.
//
// Name is the display name. Pair ordering compares assets by Name alone, so two assets
// that differ only in Address cannot be told apart by the pricing core.
type Asset struct {
	Address  common.Address `json:"address" yaml:"address"`
	Name     string         `json:"name" yaml:"name"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
}

// String returns the display name.
func (a Asset) String() string {
	return a.Name
}

// GoString includes the address so that same-name assets are distinguishable in logs.
func (a Asset) GoString() string {
	return fmt.Sprintf("%s(%s)", a.Name, a.Address.Hex())
}
