package vm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Storage helpers follow the Solidity layout: a mapping entry for key k
// declared at slot p lives at keccak256(pad32(k) ++ pad32(p)).

// Slot returns the hash form of a fixed storage slot index.
func Slot(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n))
}

// MappingSlot returns the slot of key in the mapping rooted at slot.
func MappingSlot(key, slot common.Hash) common.Hash {
	return crypto.Keccak256Hash(key.Bytes(), slot.Bytes())
}

// AddressKey left-pads an address to a mapping key.
func AddressKey(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// BigKey encodes an unsigned integer as a mapping key.
func BigKey(n *big.Int) common.Hash {
	return common.BigToHash(n)
}

// GetBig reads an unsigned integer slot.
func (c *CallContext) GetBig(slot common.Hash) *big.Int {
	return c.GetState(slot).Big()
}

// SetBig writes an unsigned integer slot.
func (c *CallContext) SetBig(slot common.Hash, v *big.Int) error {
	return c.SetState(slot, common.BigToHash(v))
}

// GetAddress reads an address slot.
func (c *CallContext) GetAddress(slot common.Hash) common.Address {
	return common.BytesToAddress(c.GetState(slot).Bytes())
}

// SetAddress writes an address slot.
func (c *CallContext) SetAddress(slot common.Hash, addr common.Address) error {
	return c.SetState(slot, AddressKey(addr))
}

// GetBool reads a boolean slot.
func (c *CallContext) GetBool(slot common.Hash) bool {
	return c.GetState(slot) != (common.Hash{})
}

// SetBool writes a boolean slot.
func (c *CallContext) SetBool(slot common.Hash, v bool) error {
	var val common.Hash
	if v {
		val[common.HashLength-1] = 1
	}
	return c.SetState(slot, val)
}

// GetString reads a string stored with SetString.
func (c *CallContext) GetString(slot common.Hash) string {
	n := c.GetBig(slot).Uint64()
	if n == 0 {
		return ""
	}
	var (
		out  = make([]byte, 0, n)
		base = crypto.Keccak256Hash(slot.Bytes()).Big()
	)
	for i := uint64(0); uint64(len(out)) < n; i++ {
		word := c.GetState(common.BigToHash(new(big.Int).Add(base, new(big.Int).SetUint64(i))))
		out = append(out, word.Bytes()...)
	}
	return string(out[:n])
}

// SetString writes a length-prefixed string: the length lives at slot and
// the data words from keccak256(slot) onwards.
func (c *CallContext) SetString(slot common.Hash, s string) error {
	if err := c.SetBig(slot, new(big.Int).SetUint64(uint64(len(s)))); err != nil {
		return err
	}
	base := crypto.Keccak256Hash(slot.Bytes()).Big()
	for i := 0; i*common.HashLength < len(s); i++ {
		var word common.Hash
		copy(word[:], s[i*common.HashLength:])
		if err := c.SetState(common.BigToHash(new(big.Int).Add(base, big.NewInt(int64(i)))), word); err != nil {
			return err
		}
	}
	return nil
}
