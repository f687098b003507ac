// Package mock contains small instrumented contracts used to observe hook
// execution: who called, in which order and with which arguments.
package mock

import (
	"errors"
	"math/big"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
)

// ErrForcedRevert is returned by the Reverter on every mutating call.
var ErrForcedRevert = errors.New("mock: forced revert")

const counterABIJSON = `[
	{"type":"function","name":"increment","inputs":[],"outputs":[]},
	{"type":"function","name":"count","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"countOf","stateMutability":"view","inputs":[{"name":"sender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Incremented","anonymous":false,"inputs":[{"name":"sender","type":"address","indexed":true},{"name":"count","type":"uint256","indexed":false}]}
]`

const hookTargetABIJSON = `[
	{"type":"function","name":"mainCall","inputs":[{"name":"amount","type":"uint256"},{"name":"token","type":"address"}],"outputs":[]},
	{"type":"function","name":"tokenToBridge","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"lastAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"lastCaller","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const reverterABIJSON = `[
	{"type":"function","name":"fail","inputs":[],"outputs":[]},
	{"type":"function","name":"touch","inputs":[],"outputs":[]}
]`

var (
	CounterABI    = vm.MustParseABI(counterABIJSON)
	HookTargetABI = vm.MustParseABI(hookTargetABIJSON)
	ReverterABI   = vm.MustParseABI(reverterABIJSON)
)

var (
	slotCount   = vm.Slot(0)
	slotCountOf = vm.Slot(1)

	slotToken      = vm.Slot(0)
	slotLastAmount = vm.Slot(1)
	slotLastCaller = vm.Slot(2)

	slotTouched = vm.Slot(0)
)

// CounterBlueprint counts increments globally and per sender.
var CounterBlueprint = vm.Register(&vm.Blueprint{Name: "mock-counter", Contract: counter{}})

// HookTargetBlueprint records the arguments of the last mainCall.
var HookTargetBlueprint = vm.Register(&vm.Blueprint{Name: "mock-hook-target", Contract: hookTarget{}})

// ReverterBlueprint fails every call to fail() after writing to storage.
var ReverterBlueprint = vm.Register(&vm.Blueprint{Name: "mock-reverter", Contract: reverter{}})

type counter struct{}

var counterMethods = vm.NewDispatcher(CounterABI, map[string]vm.Method{
	"increment": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		n := ctx.GetBig(slotCount)
		n.Add(n, common.Big1)
		if err := ctx.SetBig(slotCount, n); err != nil {
			return nil, err
		}
		own := vm.MappingSlot(vm.AddressKey(ctx.Caller), slotCountOf)
		m := ctx.GetBig(own)
		if err := ctx.SetBig(own, m.Add(m, common.Big1)); err != nil {
			return nil, err
		}
		ev := CounterABI.Events["Incremented"]
		data, err := ev.Inputs.NonIndexed().Pack(n)
		if err != nil {
			return nil, err
		}
		return nil, ctx.EmitLog([]common.Hash{ev.ID, vm.AddressKey(ctx.Caller)}, data)
	},
	"count": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetBig(slotCount)}, nil
	},
	"countOf": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetBig(vm.MappingSlot(vm.AddressKey(args[0].(common.Address)), slotCountOf))}, nil
	},
})

func (counter) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return counterMethods.Run(ctx, input)
}

type hookTarget struct{}

var hookTargetMethods = vm.NewDispatcher(HookTargetABI, map[string]vm.Method{
	"mainCall": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		if err := ctx.SetBig(slotLastAmount, args[0].(*big.Int)); err != nil {
			return nil, err
		}
		if err := ctx.SetAddress(slotToken, args[1].(common.Address)); err != nil {
			return nil, err
		}
		return nil, ctx.SetAddress(slotLastCaller, ctx.Caller)
	},
	"tokenToBridge": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetAddress(slotToken)}, nil
	},
	"lastAmount": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetBig(slotLastAmount)}, nil
	},
	"lastCaller": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetAddress(slotLastCaller)}, nil
	},
})

func (hookTarget) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return hookTargetMethods.Run(ctx, input)
}

type reverter struct{}

var reverterMethods = vm.NewDispatcher(ReverterABI, map[string]vm.Method{
	"fail": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		if err := ctx.SetBool(slotTouched, true); err != nil {
			return nil, err
		}
		return nil, vm.Revert(ErrForcedRevert)
	},
	"touch": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return nil, ctx.SetBool(slotTouched, true)
	},
})

func (reverter) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return reverterMethods.Run(ctx, input)
}

// Touched reports whether the reverter at addr has a committed write.
func Touched(sdb interface {
	GetState(common.Address, common.Hash) common.Hash
}, addr common.Address) bool {
	return sdb.GetState(addr, slotTouched) != (common.Hash{})
}
