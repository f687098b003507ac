package account

import (
	"math/big"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	slotFactory     = vm.Slot(0)
	slotApplication = vm.Slot(1)
)

// AccountBlueprint is the fixed template every smart account is created
// from.
var AccountBlueprint = vm.Register(&vm.Blueprint{
	Name:     "smart-account",
	Contract: SmartAccount{},
	Init: func(ctx *vm.CallContext, args []byte) error {
		vals, err := accountCArgs.Unpack(args)
		if err != nil {
			return vm.Revertf("smart account: invalid constructor arguments: %v", err)
		}
		if err := ctx.SetAddress(slotFactory, vals[0].(common.Address)); err != nil {
			return err
		}
		return ctx.SetAddress(slotApplication, vals[1].(common.Address))
	},
})

// SmartAccount is a minimal forwarding contract. Apart from the factory and
// application pointers it holds nothing but what protocol calls deposit.
type SmartAccount struct{}

var accountMethods = vm.NewDispatcher(AccountABI, map[string]vm.Method{
	"factory": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetAddress(slotFactory)}, nil
	},
	"application": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetAddress(slotApplication)}, nil
	},
	"executeAsSelf": executeAsSelf,
})

// Run implements vm.Contract.
func (SmartAccount) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return accountMethods.Run(ctx, input)
}

// executeAsSelf forwards a call with the account as sender. Callers are the
// factory, executors authorized by the factory, and the owning application
// while it serves the remote caller the account was derived for. The
// forwarded value must arrive with the call. Reverts of the forwarded call
// propagate unchanged.
func executeAsSelf(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := checkExecutor(ctx); err != nil {
		return nil, err
	}
	value, overflow := uint256.FromBig(args[1].(*big.Int))
	if overflow {
		return nil, vm.Revertf("smart account: value overflow")
	}
	if ctx.Value.Lt(value) {
		return nil, vm.Revert(ErrValueNotProvided)
	}
	out, err := ctx.Call(args[0].(common.Address), args[2].([]byte), value)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []byte{}
	}
	return []interface{}{out}, nil
}

func checkExecutor(ctx *vm.CallContext) error {
	factory := ctx.GetAddress(slotFactory)
	if ctx.Caller == factory {
		return nil
	}
	if app := ctx.GetAddress(slotApplication); ctx.Caller == app {
		// The application speaks for exactly one remote caller per message.
		if msg := ctx.Msg(); msg != nil && msg.Caller != "" && PredictAddress(factory, msg.Caller, app) == ctx.Address {
			return nil
		}
		return vm.Revert(ErrUnauthorized)
	}
	ok, err := Bind(factory, ctx).IsAuthorized(ctx.Caller)
	if err != nil {
		return err
	}
	if !ok {
		return vm.Revert(ErrUnauthorized)
	}
	return nil
}
