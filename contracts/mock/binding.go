package mock

import (
	"math/big"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
)

// Increment returns calldata for Counter.increment().
func Increment() []byte { return vm.Pack(CounterABI, "increment") }

// MainCall returns calldata for HookTarget.mainCall(amount, token).
func MainCall(amount *big.Int, token common.Address) []byte {
	return vm.Pack(HookTargetABI, "mainCall", amount, token)
}

// Fail returns calldata for Reverter.fail().
func Fail() []byte { return vm.Pack(ReverterABI, "fail") }

// Count reads the global counter value.
func Count(c vm.Caller, counter common.Address) (*big.Int, error) {
	return viewBig(c, counter, CounterABI.Methods["count"].Outputs, vm.Pack(CounterABI, "count"))
}

// CountOf reads how often sender incremented the counter.
func CountOf(c vm.Caller, counter, sender common.Address) (*big.Int, error) {
	return viewBig(c, counter, CounterABI.Methods["countOf"].Outputs, vm.Pack(CounterABI, "countOf", sender))
}

// TokenToBridge reads the token recorded by the last mainCall.
func TokenToBridge(c vm.Caller, target common.Address) (common.Address, error) {
	out, err := c.StaticCall(target, vm.Pack(HookTargetABI, "tokenToBridge"))
	if err != nil {
		return common.Address{}, err
	}
	vals, err := HookTargetABI.Unpack("tokenToBridge", out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

// LastCaller reads the sender of the last mainCall.
func LastCaller(c vm.Caller, target common.Address) (common.Address, error) {
	out, err := c.StaticCall(target, vm.Pack(HookTargetABI, "lastCaller"))
	if err != nil {
		return common.Address{}, err
	}
	vals, err := HookTargetABI.Unpack("lastCaller", out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

type outputs interface {
	Unpack([]byte) ([]interface{}, error)
}

func viewBig(c vm.Caller, addr common.Address, args outputs, input []byte) (*big.Int, error) {
	out, err := c.StaticCall(addr, input)
	if err != nil {
		return nil, err
	}
	vals, err := args.Unpack(out)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}
