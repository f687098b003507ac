package vm

import (
	"fmt"

	"github.com/crossledger/appproxy/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	gethtracing "github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Config are the configuration options for the Host.
type Config struct {
	MaxCallDepth int            // Maximum nesting of contract calls
	Tracer       *tracing.Hooks // Instrumentation callbacks, may be nil
}

// DefaultConfig mirrors the EVM call depth limit.
var DefaultConfig = Config{MaxCallDepth: 1024}

// Host executes native contracts on top of a go-ethereum StateDB. All
// contract state lives in the StateDB, so every call frame gets
// all-or-nothing semantics from StateDB snapshots.
//
// The Host is not safe for concurrent use, same as the StateDB it wraps.
type Host struct {
	state *state.StateDB
	cfg   Config
	msg   *MsgContext
}

// NewHost returns a host operating on sdb.
func NewHost(sdb *state.StateDB, cfg Config) *Host {
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultConfig.MaxCallDepth
	}
	return &Host{state: sdb, cfg: cfg}
}

// Engine returns the short identifier of the execution backend.
func (h *Host) Engine() string { return "native" }

// StateDB returns the underlying state.
func (h *Host) StateDB() *state.StateDB { return h.state }

// SetMsgContext installs the message context visible to contracts. A nil
// context clears it.
func (h *Host) SetMsgContext(msg *MsgContext) { h.msg = msg }

// Tracer returns the configured instrumentation hooks, possibly nil.
func (h *Host) Tracer() *tracing.Hooks { return h.cfg.Tracer }

// MsgContext returns the active message context, or nil outside a message.
func (h *Host) MsgContext() *MsgContext { return h.msg }

// Call executes input against the contract at to, with caller as the
// immediate sender.
func (h *Host) Call(caller, to common.Address, input []byte, value *uint256.Int) ([]byte, error) {
	return h.call(caller, to, input, value, 0, false)
}

// StaticCall executes a read-only call. Any attempt to modify state fails
// with ErrWriteProtection.
func (h *Host) StaticCall(caller, to common.Address, input []byte) ([]byte, error) {
	return h.call(caller, to, input, nil, 0, true)
}

// Create2 deploys bp at the CREATE2 address derived from caller, salt and
// the blueprint code.
func (h *Host) Create2(caller common.Address, salt common.Hash, bp *Blueprint, args []byte) (common.Address, error) {
	addr := Create2Address(caller, salt, bp)
	return addr, h.deploy(caller, addr, bp, args, 0)
}

// Deploy places bp at a fixed address, running its constructor with deployer
// as the sender. It is used for genesis allocations.
func (h *Host) Deploy(deployer, addr common.Address, bp *Blueprint, args []byte) error {
	return h.deploy(deployer, addr, bp, args, 0)
}

// As returns a Caller issuing top-level calls from the given sender.
func (h *Host) As(from common.Address) Caller {
	return &hostCaller{host: h, from: from}
}

// Create2Address derives the address a blueprint deployed by deployer with
// the given salt will live at.
func Create2Address(deployer common.Address, salt common.Hash, bp *Blueprint) common.Address {
	return crypto.CreateAddress2(deployer, salt, crypto.Keccak256(bp.code))
}

func (h *Host) call(caller, to common.Address, input []byte, value *uint256.Int, depth int, readOnly bool) ([]byte, error) {
	if depth > h.cfg.MaxCallDepth {
		return nil, ErrDepth
	}
	if value == nil {
		value = new(uint256.Int)
	}
	if readOnly && !value.IsZero() {
		return nil, ErrWriteProtection
	}
	snapshot := h.state.Snapshot()

	if !value.IsZero() {
		if h.state.GetBalance(caller).Cmp(value) < 0 {
			return nil, fmt.Errorf("%w: address %v", ErrInsufficientBalance, caller)
		}
		h.state.SubBalance(caller, value, gethtracing.BalanceChangeTransfer)
		h.state.AddBalance(to, value, gethtracing.BalanceChangeTransfer)
	}
	if h.state.GetCodeSize(to) == 0 {
		if len(input) > 0 {
			h.state.RevertToSnapshot(snapshot)
			return nil, fmt.Errorf("%w: %v", ErrNoCode, to)
		}
		return nil, nil
	}
	bp, ok := Lookup(h.state.GetCodeHash(to))
	if !ok {
		h.state.RevertToSnapshot(snapshot)
		return nil, fmt.Errorf("%w at %v", ErrUnknownBlueprint, to)
	}
	ctx := &CallContext{
		host:     h,
		Caller:   caller,
		Address:  to,
		Value:    value,
		readOnly: readOnly,
		depth:    depth,
	}
	ret, err := bp.Contract.Run(ctx, input)
	if err != nil {
		h.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	return ret, nil
}

func (h *Host) deploy(deployer, addr common.Address, bp *Blueprint, args []byte, depth int) error {
	if depth > h.cfg.MaxCallDepth {
		return ErrDepth
	}
	if _, ok := Lookup(bp.hash); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBlueprint, bp.Name)
	}
	if h.state.GetCodeSize(addr) != 0 {
		return fmt.Errorf("%w: %v", ErrContractAddressCollision, addr)
	}
	snapshot := h.state.Snapshot()
	if !h.state.Exist(addr) {
		h.state.CreateAccount(addr)
	}
	h.state.SetCode(addr, bp.Code())

	if bp.Init != nil {
		ctx := &CallContext{
			host:    h,
			Caller:  deployer,
			Address: addr,
			Value:   new(uint256.Int),
			depth:   depth,
		}
		if err := bp.Init(ctx, args); err != nil {
			h.state.RevertToSnapshot(snapshot)
			return err
		}
	}
	return nil
}

type hostCaller struct {
	host *Host
	from common.Address
}

func (c *hostCaller) Address() common.Address { return c.from }

func (c *hostCaller) Call(to common.Address, input []byte, value *uint256.Int) ([]byte, error) {
	return c.host.Call(c.from, to, input, value)
}

func (c *hostCaller) StaticCall(to common.Address, input []byte) ([]byte, error) {
	return c.host.StaticCall(c.from, to, input)
}
