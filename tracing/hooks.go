package tracing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// PhaseStartHook is called when the executor enters a hook phase.
	PhaseStartHook = func(phase HookPhase)

	// PhaseEndHook is called when a phase finishes, err is non-nil if it aborted.
	PhaseEndHook = func(phase HookPhase, err error)

	// HookStartHook is called before a single hook call is issued.
	HookStartHook = func(phase HookPhase, index int, target common.Address, fromAccount bool)

	// HookEndHook is called after a single hook call returned.
	HookEndHook = func(phase HookPhase, index int, err error)

	// AccountHook is called when the executor resolves a smart account.
	AccountHook = func(remoteCaller string, application, account common.Address)

	// CustodyHook is called for every asset movement folded into the
	// bridge-back delta or applied by the custody ledger. For NFTs amount
	// carries the token id.
	CustodyHook = func(op CustodyOp, asset common.Address, amount *big.Int)
)

// Hooks is a set of instrumentation callbacks. Nil members are skipped.
type Hooks struct {
	OnPhaseStart PhaseStartHook
	OnPhaseEnd   PhaseEndHook
	OnHookStart  HookStartHook
	OnHookEnd    HookEndHook
	OnAccount    AccountHook
	OnCustody    CustodyHook
}

// PhaseStart invokes OnPhaseStart if set. Safe on a nil receiver.
func (h *Hooks) PhaseStart(phase HookPhase) {
	if h != nil && h.OnPhaseStart != nil {
		h.OnPhaseStart(phase)
	}
}

// PhaseEnd invokes OnPhaseEnd if set.
func (h *Hooks) PhaseEnd(phase HookPhase, err error) {
	if h != nil && h.OnPhaseEnd != nil {
		h.OnPhaseEnd(phase, err)
	}
}

// HookStart invokes OnHookStart if set.
func (h *Hooks) HookStart(phase HookPhase, index int, target common.Address, fromAccount bool) {
	if h != nil && h.OnHookStart != nil {
		h.OnHookStart(phase, index, target, fromAccount)
	}
}

// HookEnd invokes OnHookEnd if set.
func (h *Hooks) HookEnd(phase HookPhase, index int, err error) {
	if h != nil && h.OnHookEnd != nil {
		h.OnHookEnd(phase, index, err)
	}
}

// Account invokes OnAccount if set.
func (h *Hooks) Account(remoteCaller string, application, account common.Address) {
	if h != nil && h.OnAccount != nil {
		h.OnAccount(remoteCaller, application, account)
	}
}

// Custody invokes OnCustody if set.
func (h *Hooks) Custody(op CustodyOp, asset common.Address, amount *big.Int) {
	if h != nil && h.OnCustody != nil {
		h.OnCustody(op, asset, amount)
	}
}
