package account

import (
	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

var (
	slotFactoryOwner = vm.Slot(0)
	slotAuthorized   = vm.Slot(1)
)

// FactoryBlueprint deploys a factory.
var FactoryBlueprint = vm.Register(&vm.Blueprint{
	Name:     "smart-account-factory",
	Contract: Factory{},
	Init: func(ctx *vm.CallContext, args []byte) error {
		vals, err := addressArgs.Unpack(args)
		if err != nil {
			return vm.Revertf("factory: invalid constructor arguments: %v", err)
		}
		return ctx.SetAddress(slotFactoryOwner, vals[0].(common.Address))
	},
})

// Factory is the native smart-account factory.
type Factory struct{}

var factoryMethods = vm.NewDispatcher(FactoryABI, map[string]vm.Method{
	"owner": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetAddress(slotFactoryOwner)}, nil
	},
	"predictAddress": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return []interface{}{PredictAddress(ctx.Address, args[0].(string), args[1].(common.Address))}, nil
	},
	"getOrCreate": getOrCreate,
	"authorize": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return nil, setAuthorized(ctx, args[0].(common.Address), true)
	},
	"revoke": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return nil, setAuthorized(ctx, args[0].(common.Address), false)
	},
	"isAuthorized": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return []interface{}{isAuthorized(ctx, args[0].(common.Address))}, nil
	},
})

// Run implements vm.Contract.
func (Factory) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return factoryMethods.Run(ctx, input)
}

func authorizedSlot(executor common.Address) common.Hash {
	return vm.MappingSlot(vm.AddressKey(executor), slotAuthorized)
}

func isAuthorized(ctx *vm.CallContext, executor common.Address) bool {
	return ctx.GetBool(authorizedSlot(executor))
}

func setAuthorized(ctx *vm.CallContext, executor common.Address, ok bool) error {
	if ctx.Caller != ctx.GetAddress(slotFactoryOwner) {
		return vm.Revert(ErrNotAdmin)
	}
	return ctx.SetBool(authorizedSlot(executor), ok)
}

// getOrCreate is the single check-then-create path of account creation.
// The address is derived first; the account is instantiated only when no
// code lives there yet, which makes repeated calls idempotent.
func getOrCreate(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	key := Key{RemoteCaller: args[0].(string), Application: args[1].(common.Address)}
	if key.Application == (common.Address{}) {
		return nil, vm.Revert(ErrNoApp)
	}
	if ctx.Caller != key.Application && ctx.Caller != ctx.GetAddress(slotFactoryOwner) && !isAuthorized(ctx, ctx.Caller) {
		return nil, vm.Revert(ErrUnauthorized)
	}
	addr := key.Address(ctx.Address)
	if ctx.HasCode(addr) {
		return []interface{}{addr}, nil
	}
	cargs, err := accountCArgs.Pack(ctx.Address, key.Application)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Create2(key.Salt(), AccountBlueprint, cargs); err != nil {
		return nil, err
	}
	ev := FactoryABI.Events["AccountCreated"]
	data, err := ev.Inputs.NonIndexed().Pack(key.RemoteCaller)
	if err != nil {
		return nil, err
	}
	if err := ctx.EmitLog([]common.Hash{ev.ID, vm.AddressKey(addr), vm.AddressKey(key.Application)}, data); err != nil {
		return nil, err
	}
	accountsCreatedMeter.Mark(1)
	log.Debug("Created smart account", "account", addr, "application", key.Application, "caller", key.RemoteCaller)
	return []interface{}{addr}, nil
}
