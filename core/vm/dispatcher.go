package vm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/holiman/uint256"
)

// Executor is the abstraction the message processor drives. The native host
// is the only backend; the interface keeps the processor independent of it.
type Executor interface {
	// Engine returns a human-readable short name identifying the backend.
	Engine() string

	Call(caller, to common.Address, input []byte, value *uint256.Int) ([]byte, error)
	StaticCall(caller, to common.Address, input []byte) ([]byte, error)
	Deploy(deployer, addr common.Address, bp *Blueprint, args []byte) error

	// As returns a Caller issuing calls from the given sender.
	As(from common.Address) Caller

	// SetMsgContext installs the context of the message being executed,
	// nil between messages.
	SetMsgContext(msg *MsgContext)
}

// NewExecutor returns the executor over sdb configured by cfg.
func NewExecutor(sdb *state.StateDB, cfg Config) (Executor, error) {
	if sdb == nil {
		return nil, fmt.Errorf("vm: nil state")
	}
	return NewHost(sdb, cfg), nil
}

// Caller issues calls on behalf of a fixed sender. Both a CallContext (the
// executing contract as sender) and Host.As implement it, so contract
// bindings work from inside contracts and from the outside alike.
type Caller interface {
	Call(to common.Address, input []byte, value *uint256.Int) ([]byte, error)
	StaticCall(to common.Address, input []byte) ([]byte, error)
}

var (
	_ Caller   = (*CallContext)(nil)
	_ Caller   = (*hostCaller)(nil)
	_ Executor = (*Host)(nil)
)

// Method implements one ABI method of a native contract. Arguments arrive
// unpacked according to the method inputs; the returned values are packed
// according to its outputs.
type Method func(ctx *CallContext, args []interface{}) ([]interface{}, error)

type dispatchEntry struct {
	method abi.Method
	fn     Method
}

// Dispatcher routes calldata to native methods by 4-byte selector.
type Dispatcher struct {
	abi     abi.ABI
	methods map[[4]byte]dispatchEntry
}

// NewDispatcher builds the selector table. Every handler must name a method
// of the ABI, anything else is a programming error and panics.
func NewDispatcher(def abi.ABI, handlers map[string]Method) *Dispatcher {
	d := &Dispatcher{abi: def, methods: make(map[[4]byte]dispatchEntry, len(handlers))}
	for name, fn := range handlers {
		m, ok := def.Methods[name]
		if !ok {
			panic(fmt.Sprintf("vm: handler %q has no ABI method", name))
		}
		var sel [4]byte
		copy(sel[:], m.ID)
		d.methods[sel] = dispatchEntry{method: m, fn: fn}
	}
	return d
}

// ABI returns the contract ABI the dispatcher serves.
func (d *Dispatcher) ABI() abi.ABI { return d.abi }

// Run decodes input and invokes the matching handler.
func (d *Dispatcher) Run(ctx *CallContext, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, Revert(ErrUnknownSelector)
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	entry, ok := d.methods[sel]
	if !ok {
		return nil, RevertWith(ErrUnknownSelector, "selector %#x", sel[:])
	}
	args, err := entry.method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, Revertf("%s: invalid calldata: %v", entry.method.Name, err)
	}
	out, err := entry.fn(ctx, args)
	if err != nil {
		return nil, err
	}
	return entry.method.Outputs.Pack(out...)
}

// MustParseABI parses a JSON ABI definition, panicking on error.
func MustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("vm: invalid ABI: %v", err))
	}
	return parsed
}

// Pack encodes a call to method of def, panicking if the arguments do not
// match the ABI. It is meant for bindings whose argument types are fixed at
// compile time.
func Pack(def abi.ABI, method string, args ...interface{}) []byte {
	input, err := def.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("vm: pack %s: %v", method, err))
	}
	return input
}
