package token

import (
	"math/big"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
)

// Binding is a typed client for a token instance, issuing calls through any
// vm.Caller.
type Binding struct {
	Address common.Address
	caller  vm.Caller
}

// Bind returns a binding for the token at addr.
func Bind(addr common.Address, caller vm.Caller) *Binding {
	return &Binding{Address: addr, caller: caller}
}

func (b *Binding) view(method string, args ...interface{}) ([]interface{}, error) {
	out, err := b.caller.StaticCall(b.Address, vm.Pack(ABI, method, args...))
	if err != nil {
		return nil, err
	}
	return ABI.Unpack(method, out)
}

func (b *Binding) call(method string, args ...interface{}) error {
	_, err := b.caller.Call(b.Address, vm.Pack(ABI, method, args...), nil)
	return err
}

// BalanceOf returns the token balance of holder.
func (b *Binding) BalanceOf(holder common.Address) (*big.Int, error) {
	out, err := b.view("balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// TotalSupply returns the token supply.
func (b *Binding) TotalSupply() (*big.Int, error) {
	out, err := b.view("totalSupply")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Allowance returns the amount spender may move on behalf of holder.
func (b *Binding) Allowance(holder, spender common.Address) (*big.Int, error) {
	out, err := b.view("allowance", holder, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Metadata returns name, symbol and decimals.
func (b *Binding) Metadata() (string, string, uint8, error) {
	n, err := b.view("name")
	if err != nil {
		return "", "", 0, err
	}
	s, err := b.view("symbol")
	if err != nil {
		return "", "", 0, err
	}
	d, err := b.view("decimals")
	if err != nil {
		return "", "", 0, err
	}
	return n[0].(string), s[0].(string), d[0].(uint8), nil
}

// Transfer moves amount from the caller to to.
func (b *Binding) Transfer(to common.Address, amount *big.Int) error {
	return b.call("transfer", to, amount)
}

// Approve sets the allowance of spender.
func (b *Binding) Approve(spender common.Address, amount *big.Int) error {
	return b.call("approve", spender, amount)
}

// TransferFrom moves amount from from to to using the caller's allowance.
func (b *Binding) TransferFrom(from, to common.Address, amount *big.Int) error {
	return b.call("transferFrom", from, to, amount)
}

// Mint creates amount new tokens for to. The caller must be the owner.
func (b *Binding) Mint(to common.Address, amount *big.Int) error {
	return b.call("mint", to, amount)
}

// Burn destroys amount tokens held by the caller.
func (b *Binding) Burn(amount *big.Int) error {
	return b.call("burn", amount)
}

// BurnFrom destroys tokens held by from. The caller must be the owner.
func (b *Binding) BurnFrom(from common.Address, amount *big.Int) error {
	return b.call("burnFrom", from, amount)
}

// TransferCalldata encodes transfer(to, amount), for calls issued through
// another contract such as a smart account.
func TransferCalldata(to common.Address, amount *big.Int) []byte {
	return vm.Pack(ABI, "transfer", to, amount)
}

// ApproveCalldata encodes approve(spender, amount).
func ApproveCalldata(spender common.Address, amount *big.Int) []byte {
	return vm.Pack(ABI, "approve", spender, amount)
}
