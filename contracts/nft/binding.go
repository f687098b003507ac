package nft

import (
	"errors"
	"math/big"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
)

// Binding is a typed client for a collection instance.
type Binding struct {
	Address common.Address
	caller  vm.Caller
}

// Bind returns a binding for the collection at addr.
func Bind(addr common.Address, caller vm.Caller) *Binding {
	return &Binding{Address: addr, caller: caller}
}

// OwnerOf returns the holder of id. A token that does not exist has the
// zero address as owner and no error.
func (b *Binding) OwnerOf(id *big.Int) (common.Address, error) {
	out, err := b.caller.StaticCall(b.Address, vm.Pack(ABI, "ownerOf", id))
	if errors.Is(err, ErrNonexistentToken) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, err
	}
	vals, err := ABI.Unpack("ownerOf", out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

// BalanceOf returns the number of tokens held by holder.
func (b *Binding) BalanceOf(holder common.Address) (*big.Int, error) {
	out, err := b.caller.StaticCall(b.Address, vm.Pack(ABI, "balanceOf", holder))
	if err != nil {
		return nil, err
	}
	vals, err := ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

// TransferFrom moves id from from to to.
func (b *Binding) TransferFrom(from, to common.Address, id *big.Int) error {
	_, err := b.caller.Call(b.Address, vm.Pack(ABI, "transferFrom", from, to, id), nil)
	return err
}

// Approve lets to move id on behalf of the caller.
func (b *Binding) Approve(to common.Address, id *big.Int) error {
	_, err := b.caller.Call(b.Address, vm.Pack(ABI, "approve", to, id), nil)
	return err
}

// Mint creates id for to. The caller must be the collection owner.
func (b *Binding) Mint(to common.Address, id *big.Int) error {
	_, err := b.caller.Call(b.Address, vm.Pack(ABI, "mint", to, id), nil)
	return err
}

// Burn destroys id, which must be held by the caller.
func (b *Binding) Burn(id *big.Int) error {
	_, err := b.caller.Call(b.Address, vm.Pack(ABI, "burn", id), nil)
	return err
}

// TransferFromCalldata encodes transferFrom(from, to, id).
func TransferFromCalldata(from, to common.Address, id *big.Int) []byte {
	return vm.Pack(ABI, "transferFrom", from, to, id)
}
