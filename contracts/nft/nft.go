// Package nft implements a minimal ERC-721 collection as a native contract.
package nft

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
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"holder","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getApproved","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"approve","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"mint","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"burn","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

var (
	ErrNonexistentToken = errors.New("ERC721: invalid token ID")
	ErrNotAuthorized    = errors.New("ERC721: caller is not token owner or approved")
	ErrTokenExists      = errors.New("ERC721: token already minted")
	ErrNotOwner         = errors.New("ERC721: caller is not the collection owner")
	ErrZeroAddress      = errors.New("ERC721: zero address")
)

// ABI is the contract interface of the collection.
var ABI = vm.MustParseABI(abiJSON)

var (
	slotName      = vm.Slot(0)
	slotSymbol    = vm.Slot(1)
	slotOwners    = vm.Slot(2)
	slotBalances  = vm.Slot(3)
	slotApprovals = vm.Slot(4)
	slotOwner     = vm.Slot(5)
)

var constructorArgs abi.Arguments

func init() {
	str, _ := abi.NewType("string", "", nil)
	addr, _ := abi.NewType("address", "", nil)
	constructorArgs = abi.Arguments{{Type: str}, {Type: str}, {Type: addr}}
}

// Blueprint deploys a collection.
var Blueprint = vm.Register(&vm.Blueprint{
	Name:     "erc721",
	Contract: Collection{},
	Init:     initCollection,
})

// ConstructorArgs encodes the collection constructor arguments.
func ConstructorArgs(name, symbol string, owner common.Address) []byte {
	enc, err := constructorArgs.Pack(name, symbol, owner)
	if err != nil {
		panic(err)
	}
	return enc
}

func initCollection(ctx *vm.CallContext, args []byte) error {
	vals, err := constructorArgs.Unpack(args)
	if err != nil {
		return vm.Revertf("erc721: invalid constructor arguments: %v", err)
	}
	if err := ctx.SetString(slotName, vals[0].(string)); err != nil {
		return err
	}
	if err := ctx.SetString(slotSymbol, vals[1].(string)); err != nil {
		return err
	}
	return ctx.SetAddress(slotOwner, vals[2].(common.Address))
}

// Collection is the native ERC-721 implementation.
type Collection struct{}

var methods = vm.NewDispatcher(ABI, map[string]vm.Method{
	"name": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetString(slotName)}, nil
	},
	"symbol": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetString(slotSymbol)}, nil
	},
	"owner": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetAddress(slotOwner)}, nil
	},
	"ownerOf":      ownerOf,
	"balanceOf":    balanceOf,
	"getApproved":  getApproved,
	"approve":      approve,
	"transferFrom": transferFrom,
	"mint":         mint,
	"burn":         burn,
})

// Run implements vm.Contract.
func (Collection) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return methods.Run(ctx, input)
}

func ownerSlot(id *big.Int) common.Hash {
	return vm.MappingSlot(vm.BigKey(id), slotOwners)
}

func approvalSlot(id *big.Int) common.Hash {
	return vm.MappingSlot(vm.BigKey(id), slotApprovals)
}

func balanceSlot(holder common.Address) common.Hash {
	return vm.MappingSlot(vm.AddressKey(holder), slotBalances)
}

func ownerOf(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	holder := ctx.GetAddress(ownerSlot(args[0].(*big.Int)))
	if holder == (common.Address{}) {
		return nil, vm.Revert(ErrNonexistentToken)
	}
	return []interface{}{holder}, nil
}

func balanceOf(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.GetBig(balanceSlot(args[0].(common.Address)))}, nil
}

func getApproved(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.GetAddress(approvalSlot(args[0].(*big.Int)))}, nil
}

func approve(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	to, id := args[0].(common.Address), args[1].(*big.Int)
	if ctx.GetAddress(ownerSlot(id)) != ctx.Caller {
		return nil, vm.Revert(ErrNotAuthorized)
	}
	return nil, ctx.SetAddress(approvalSlot(id), to)
}

func transferFrom(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	from, to, id := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
	holder := ctx.GetAddress(ownerSlot(id))
	if holder == (common.Address{}) {
		return nil, vm.Revert(ErrNonexistentToken)
	}
	if holder != from || (ctx.Caller != from && ctx.GetAddress(approvalSlot(id)) != ctx.Caller) {
		return nil, vm.Revert(ErrNotAuthorized)
	}
	if to == (common.Address{}) {
		return nil, vm.Revert(ErrZeroAddress)
	}
	if err := ctx.SetAddress(approvalSlot(id), common.Address{}); err != nil {
		return nil, err
	}
	return nil, assign(ctx, from, to, id)
}

func mint(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if ctx.Caller != ctx.GetAddress(slotOwner) {
		return nil, vm.Revert(ErrNotOwner)
	}
	to, id := args[0].(common.Address), args[1].(*big.Int)
	if to == (common.Address{}) {
		return nil, vm.Revert(ErrZeroAddress)
	}
	if ctx.GetAddress(ownerSlot(id)) != (common.Address{}) {
		return nil, vm.Revert(ErrTokenExists)
	}
	return nil, assign(ctx, common.Address{}, to, id)
}

func burn(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	id := args[0].(*big.Int)
	holder := ctx.GetAddress(ownerSlot(id))
	if holder == (common.Address{}) {
		return nil, vm.Revert(ErrNonexistentToken)
	}
	if holder != ctx.Caller {
		return nil, vm.Revert(ErrNotAuthorized)
	}
	if err := ctx.SetAddress(approvalSlot(id), common.Address{}); err != nil {
		return nil, err
	}
	return nil, assign(ctx, holder, common.Address{}, id)
}

// assign moves id between holders, the zero address standing for mint and
// burn.
func assign(ctx *vm.CallContext, from, to common.Address, id *big.Int) error {
	if from != (common.Address{}) {
		bal := ctx.GetBig(balanceSlot(from))
		if err := ctx.SetBig(balanceSlot(from), bal.Sub(bal, big.NewInt(1))); err != nil {
			return err
		}
	}
	if to != (common.Address{}) {
		bal := ctx.GetBig(balanceSlot(to))
		if err := ctx.SetBig(balanceSlot(to), bal.Add(bal, big.NewInt(1))); err != nil {
			return err
		}
	}
	if err := ctx.SetAddress(ownerSlot(id), to); err != nil {
		return err
	}
	ev := ABI.Events["Transfer"]
	return ctx.EmitLog([]common.Hash{ev.ID, vm.AddressKey(from), vm.AddressKey(to), vm.BigKey(id)}, nil)
}
