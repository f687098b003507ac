package vm

import (
	"github.com/crossledger/appproxy/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// CallContext is handed to a contract for the duration of one call frame.
// All state access of a contract goes through its context so that the host
// can enforce static calls and roll back failed frames.
type CallContext struct {
	host *Host

	Caller  common.Address // Immediate sender of the call
	Address common.Address // Address of the executing contract
	Value   *uint256.Int   // Native value transferred with the call

	readOnly bool
	depth    int
}

// Msg returns the active remote message context, nil outside a message.
func (c *CallContext) Msg() *MsgContext { return c.host.msg }

// Tracer returns the host instrumentation hooks, possibly nil.
func (c *CallContext) Tracer() *tracing.Hooks { return c.host.cfg.Tracer }

// IsStatic reports whether the frame forbids state modifications.
func (c *CallContext) IsStatic() bool { return c.readOnly }

// Depth returns the nesting level of the frame, 0 for top-level calls.
func (c *CallContext) Depth() int { return c.depth }

// GetState reads a storage slot of the executing contract.
func (c *CallContext) GetState(key common.Hash) common.Hash {
	return c.host.state.GetState(c.Address, key)
}

// SetState writes a storage slot of the executing contract.
func (c *CallContext) SetState(key, value common.Hash) error {
	if c.readOnly {
		return ErrWriteProtection
	}
	c.host.state.SetState(c.Address, key, value)
	return nil
}

// Balance returns the native balance of addr.
func (c *CallContext) Balance(addr common.Address) *uint256.Int {
	return c.host.state.GetBalance(addr)
}

// HasCode reports whether a contract is deployed at addr.
func (c *CallContext) HasCode(addr common.Address) bool {
	return c.host.state.GetCodeSize(addr) != 0
}

// CodeHash returns the code hash of addr.
func (c *CallContext) CodeHash(addr common.Address) common.Hash {
	return c.host.state.GetCodeHash(addr)
}

// Call invokes another contract with the executing contract as sender.
func (c *CallContext) Call(to common.Address, input []byte, value *uint256.Int) ([]byte, error) {
	return c.host.call(c.Address, to, input, value, c.depth+1, c.readOnly)
}

// StaticCall invokes another contract in read-only mode.
func (c *CallContext) StaticCall(to common.Address, input []byte) ([]byte, error) {
	return c.host.call(c.Address, to, input, nil, c.depth+1, true)
}

// Create2 deploys bp from the executing contract.
func (c *CallContext) Create2(salt common.Hash, bp *Blueprint, args []byte) (common.Address, error) {
	if c.readOnly {
		return common.Address{}, ErrWriteProtection
	}
	addr := Create2Address(c.Address, salt, bp)
	return addr, c.host.deploy(c.Address, addr, bp, args, c.depth+1)
}

// DeployAt places bp at a fixed address. Only system contracts may do this.
func (c *CallContext) DeployAt(addr common.Address, bp *Blueprint, args []byte) error {
	if c.readOnly {
		return ErrWriteProtection
	}
	self, ok := Lookup(c.host.state.GetCodeHash(c.Address))
	if !ok || !self.System {
		return ErrNotSystemContract
	}
	return c.host.deploy(c.Address, addr, bp, args, c.depth+1)
}

// EmitLog appends a log entry attributed to the executing contract.
func (c *CallContext) EmitLog(topics []common.Hash, data []byte) error {
	if c.readOnly {
		return ErrWriteProtection
	}
	c.host.state.AddLog(&types.Log{
		Address: c.Address,
		Topics:  topics,
		Data:    common.CopyBytes(data),
	})
	return nil
}
