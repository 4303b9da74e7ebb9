package poolregistry

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolKey is the 32-byte identifier of a constant-product pool.
//
// It is the Keccak-256 hash of the canonical x asset address followed by the canonical y
// asset address, so a pair has exactly one key regardless of the order its assets were
// named in. Sorting keys bytewise gives the order in which pools are locked.
type PoolKey [32]byte

// NewPoolKey derives the key of the pool holding canonical assets x and y.
func NewPoolKey(x, y asset.Asset) PoolKey {
	return PoolKey(crypto.Keccak256Hash(x.Address.Bytes(), y.Address.Bytes()))
}

// Bytes returns the raw underlying byte slice.
func (p PoolKey) Bytes() []byte {
	return p[:]
}

// String returns the hex string representation of the key.
func (p PoolKey) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

// Address returns the account address of the pool: the low 20 bytes of the key.
func (p PoolKey) Address() common.Address {
	return common.BytesToAddress(p[12:])
}

// Less reports whether p sorts before other.
func (p PoolKey) Less(other PoolKey) bool {
	return bytes.Compare(p[:], other[:]) < 0
}

// MarshalJSON serializes the key as a hex string.
func (p PoolKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a hex string of exactly 32 bytes, with or without the "0x" prefix.
func (p *PoolKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "0x")

	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return errors.New("pool key must be 32 bytes")
	}

	*p = PoolKey{}
	copy(p[:], b)

	return nil
}
