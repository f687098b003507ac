// Package token implements a mintable ERC-20 token as a native contract.
// Custody deploys one instance per wrapped remote asset, the pool uses it
// for its share token.
package token

import (
	"errors"
	"math/big"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const abiJSON = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"mint","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"burn","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"burnFrom","inputs":[{"name":"from","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
	{"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

var (
	ErrInsufficientBalance   = errors.New("ERC20: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("ERC20: insufficient allowance")
	ErrNotOwner              = errors.New("ERC20: caller is not the owner")
	ErrZeroAddress           = errors.New("ERC20: zero address")
)

// ABI is the contract interface of the token.
var ABI = vm.MustParseABI(abiJSON)

// Storage layout.
var (
	slotName        = vm.Slot(0)
	slotSymbol      = vm.Slot(1)
	slotDecimals    = vm.Slot(2)
	slotTotalSupply = vm.Slot(3)
	slotBalances    = vm.Slot(4)
	slotAllowances  = vm.Slot(5)
	slotOwner       = vm.Slot(6)
)

var constructorArgs abi.Arguments

func init() {
	str, _ := abi.NewType("string", "", nil)
	u8, _ := abi.NewType("uint8", "", nil)
	addr, _ := abi.NewType("address", "", nil)
	constructorArgs = abi.Arguments{{Type: str}, {Type: str}, {Type: u8}, {Type: addr}}
}

// Blueprint deploys a token. Constructor arguments are built with
// ConstructorArgs.
var Blueprint = vm.Register(&vm.Blueprint{
	Name:     "erc20",
	Contract: Token{},
	Init:     initToken,
})

// ConstructorArgs encodes the token constructor arguments. The owner is the
// only account allowed to mint.
func ConstructorArgs(name, symbol string, decimals uint8, owner common.Address) []byte {
	enc, err := constructorArgs.Pack(name, symbol, decimals, owner)
	if err != nil {
		panic(err)
	}
	return enc
}

func initToken(ctx *vm.CallContext, args []byte) error {
	vals, err := constructorArgs.Unpack(args)
	if err != nil {
		return vm.Revertf("erc20: invalid constructor arguments: %v", err)
	}
	if err := ctx.SetString(slotName, vals[0].(string)); err != nil {
		return err
	}
	if err := ctx.SetString(slotSymbol, vals[1].(string)); err != nil {
		return err
	}
	if err := ctx.SetBig(slotDecimals, big.NewInt(int64(vals[2].(uint8)))); err != nil {
		return err
	}
	return ctx.SetAddress(slotOwner, vals[3].(common.Address))
}

// Token is the native ERC-20 implementation. It is stateless, everything is
// kept in the storage of the address it runs at.
type Token struct{}

var methods = vm.NewDispatcher(ABI, map[string]vm.Method{
	"name":         name,
	"symbol":       symbol,
	"decimals":     decimals,
	"totalSupply":  totalSupply,
	"owner":        owner,
	"balanceOf":    balanceOf,
	"allowance":    allowance,
	"transfer":     transfer,
	"approve":      approve,
	"transferFrom": transferFrom,
	"mint":         mint,
	"burn":         burn,
	"burnFrom":     burnFrom,
})

// Run implements vm.Contract.
func (Token) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return methods.Run(ctx, input)
}

func balanceSlot(addr common.Address) common.Hash {
	return vm.MappingSlot(vm.AddressKey(addr), slotBalances)
}

func allowanceSlot(owner, spender common.Address) common.Hash {
	return vm.MappingSlot(vm.AddressKey(spender), vm.MappingSlot(vm.AddressKey(owner), slotAllowances))
}

func name(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.GetString(slotName)}, nil
}

func symbol(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.GetString(slotSymbol)}, nil
}

func decimals(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
	return []interface{}{uint8(ctx.GetBig(slotDecimals).Uint64())}, nil
}

func totalSupply(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.GetBig(slotTotalSupply)}, nil
}

func owner(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.GetAddress(slotOwner)}, nil
}

func balanceOf(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.GetBig(balanceSlot(args[0].(common.Address)))}, nil
}

func allowance(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.GetBig(allowanceSlot(args[0].(common.Address), args[1].(common.Address)))}, nil
}

func transfer(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := move(ctx, ctx.Caller, args[0].(common.Address), args[1].(*big.Int)); err != nil {
		return nil, err
	}
	return []interface{}{true}, nil
}

func approve(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	spender, amount := args[0].(common.Address), args[1].(*big.Int)
	if err := ctx.SetBig(allowanceSlot(ctx.Caller, spender), amount); err != nil {
		return nil, err
	}
	if err := emit(ctx, "Approval", ctx.Caller, spender, amount); err != nil {
		return nil, err
	}
	return []interface{}{true}, nil
}

func transferFrom(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	from, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
	if err := spendAllowance(ctx, from, ctx.Caller, amount); err != nil {
		return nil, err
	}
	if err := move(ctx, from, to, amount); err != nil {
		return nil, err
	}
	return []interface{}{true}, nil
}

func mint(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if ctx.Caller != ctx.GetAddress(slotOwner) {
		return nil, vm.Revert(ErrNotOwner)
	}
	to, amount := args[0].(common.Address), args[1].(*big.Int)
	if to == (common.Address{}) {
		return nil, vm.Revert(ErrZeroAddress)
	}
	supply := new(big.Int).Add(ctx.GetBig(slotTotalSupply), amount)
	if err := ctx.SetBig(slotTotalSupply, supply); err != nil {
		return nil, err
	}
	bal := new(big.Int).Add(ctx.GetBig(balanceSlot(to)), amount)
	if err := ctx.SetBig(balanceSlot(to), bal); err != nil {
		return nil, err
	}
	return nil, emit(ctx, "Transfer", common.Address{}, to, amount)
}

func burn(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	return nil, destroy(ctx, ctx.Caller, args[0].(*big.Int))
}

func burnFrom(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if ctx.Caller != ctx.GetAddress(slotOwner) {
		return nil, vm.Revert(ErrNotOwner)
	}
	return nil, destroy(ctx, args[0].(common.Address), args[1].(*big.Int))
}

func destroy(ctx *vm.CallContext, from common.Address, amount *big.Int) error {
	bal := ctx.GetBig(balanceSlot(from))
	if bal.Cmp(amount) < 0 {
		return vm.Revert(ErrInsufficientBalance)
	}
	if err := ctx.SetBig(balanceSlot(from), bal.Sub(bal, amount)); err != nil {
		return err
	}
	supply := ctx.GetBig(slotTotalSupply)
	if err := ctx.SetBig(slotTotalSupply, supply.Sub(supply, amount)); err != nil {
		return err
	}
	return emit(ctx, "Transfer", from, common.Address{}, amount)
}

func move(ctx *vm.CallContext, from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return vm.Revert(ErrZeroAddress)
	}
	bal := ctx.GetBig(balanceSlot(from))
	if bal.Cmp(amount) < 0 {
		return vm.Revert(ErrInsufficientBalance)
	}
	if err := ctx.SetBig(balanceSlot(from), new(big.Int).Sub(bal, amount)); err != nil {
		return err
	}
	dst := ctx.GetBig(balanceSlot(to))
	if err := ctx.SetBig(balanceSlot(to), dst.Add(dst, amount)); err != nil {
		return err
	}
	return emit(ctx, "Transfer", from, to, amount)
}

func spendAllowance(ctx *vm.CallContext, owner, spender common.Address, amount *big.Int) error {
	if owner == spender {
		return nil
	}
	current := ctx.GetBig(allowanceSlot(owner, spender))
	if current.Cmp(amount) < 0 {
		return vm.Revert(ErrInsufficientAllowance)
	}
	return ctx.SetBig(allowanceSlot(owner, spender), current.Sub(current, amount))
}

func emit(ctx *vm.CallContext, event string, from, to common.Address, amount *big.Int) error {
	ev := ABI.Events[event]
	data, err := ev.Inputs.NonIndexed().Pack(amount)
	if err != nil {
		return err
	}
	return ctx.EmitLog([]common.Hash{ev.ID, vm.AddressKey(from), vm.AddressKey(to)}, data)
}
