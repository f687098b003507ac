// Package hooks runs hook bundles: the PRE, MAIN, POST and BRIDGE phases a
// hook capable proxy action executes on behalf of a remote caller, either
// as the proxy itself or through the caller's smart account.
package hooks

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/crossledger/appproxy/bridge"
	"github.com/crossledger/appproxy/contracts/account"
	"github.com/crossledger/appproxy/contracts/custody"
	"github.com/crossledger/appproxy/contracts/nft"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

// ErrNoRemoteCaller is returned when a smart account is needed outside of
// a remote message.
var ErrNoRemoteCaller = errors.New("hooks: no remote caller to resolve a smart account for")

var (
	hooksRunMeter    = metrics.NewRegisteredMeter("appproxy/hooks/run", nil)
	hooksFailedMeter = metrics.NewRegisteredMeter("appproxy/hooks/failed", nil)
)

// HookError reports the hook that aborted a bundle.
type HookError struct {
	Phase tracing.HookPhase
	Index int
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook %d: %v", e.Phase, e.Index, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Plan is the executable form of a bundle. Main is a list so that batch
// calls run through the same executor; a bundle always has exactly one
// main hook.
type Plan struct {
	Pre    []Hook
	Main   []Hook
	Post   []Hook
	Bridge BridgeHooks
}

// Executor runs hooks inside the frame of a proxy contract. The smart
// account of the remote caller is resolved the first time an entry needs
// it and reused afterwards.
type Executor struct {
	ctx     *vm.CallContext
	factory *account.FactoryBinding
	ledger  *custody.Binding
	delta   *bridge.Delta
	tracer  *tracing.Hooks

	account  common.Address
	resolved bool
}

// NewExecutor returns an executor for the proxy running in ctx. Bridged
// assets are folded into delta, classified against the ledger.
func NewExecutor(ctx *vm.CallContext, factory, ledger common.Address, delta *bridge.Delta) *Executor {
	return &Executor{
		ctx:     ctx,
		factory: account.Bind(factory, ctx),
		ledger:  custody.Bind(ledger, ctx),
		delta:   delta,
		tracer:  ctx.Tracer(),
	}
}

// Account returns the smart account of the remote caller for this proxy,
// creating it if necessary.
func (e *Executor) Account() (common.Address, error) {
	if e.resolved {
		return e.account, nil
	}
	msg := e.ctx.Msg()
	if msg == nil || msg.Caller == "" {
		return common.Address{}, ErrNoRemoteCaller
	}
	addr, err := e.factory.GetOrCreate(msg.Caller, e.ctx.Address)
	if err != nil {
		return common.Address{}, err
	}
	e.account, e.resolved = addr, true
	e.tracer.Account(msg.Caller, e.ctx.Address, addr)
	log.Debug("Resolved smart account", "remote", msg.Caller, "app", e.ctx.Address, "account", addr)
	return addr, nil
}

// Tracer returns the instrumentation hooks of the host, possibly nil.
func (e *Executor) Tracer() *tracing.Hooks { return e.tracer }

// Delta returns the delta bridged assets are folded into.
func (e *Executor) Delta() *bridge.Delta { return e.delta }

func (e *Executor) as(p Perspective) identity {
	if p == FromSA {
		return accountIdentity{e}
	}
	return selfIdentity{e.ctx}
}

// Run executes the plan phase by phase. The first failing entry aborts the
// run; the caller's frame reverts every effect of the plan.
func (e *Executor) Run(plan *Plan) error {
	if err := e.RunPhase(tracing.PhasePre, plan.Pre); err != nil {
		return err
	}
	if err := e.RunPhase(tracing.PhaseMain, plan.Main); err != nil {
		return err
	}
	if err := e.RunPhase(tracing.PhasePost, plan.Post); err != nil {
		return err
	}
	return e.RunBridge(plan.Bridge)
}

// RunPhase executes the hooks of one call phase in order.
func (e *Executor) RunPhase(phase tracing.HookPhase, list []Hook) error {
	e.tracer.PhaseStart(phase)
	for i, h := range list {
		e.tracer.HookStart(phase, i, h.ContractAddress, h.Perspective == FromSA)
		_, err := e.as(h.Perspective).call(h.ContractAddress, h.Value, h.Data)
		e.tracer.HookEnd(phase, i, err)
		hooksRunMeter.Mark(1)
		if err != nil {
			hooksFailedMeter.Mark(1)
			err = &HookError{Phase: phase, Index: i, Err: err}
			e.tracer.PhaseEnd(phase, err)
			return err
		}
	}
	e.tracer.PhaseEnd(phase, nil)
	return nil
}

// RunBridge folds every asset named by the bridge hooks into the delta.
// Entries whose identity holds nothing are skipped.
func (e *Executor) RunBridge(b BridgeHooks) error {
	e.tracer.PhaseStart(tracing.PhaseBridge)
	idx := 0
	for _, h := range b.TokenBridgeHooks {
		if _, err := e.BridgeToken(h); err != nil {
			err = &HookError{Phase: tracing.PhaseBridge, Index: idx, Err: err}
			e.tracer.PhaseEnd(tracing.PhaseBridge, err)
			return err
		}
		idx++
	}
	for _, h := range b.NFTBridgeHooks {
		if _, err := e.BridgeNFT(h); err != nil {
			err = &HookError{Phase: tracing.PhaseBridge, Index: idx, Err: err}
			e.tracer.PhaseEnd(tracing.PhaseBridge, err)
			return err
		}
		idx++
	}
	e.tracer.PhaseEnd(tracing.PhaseBridge, nil)
	return nil
}

// BridgeToken bridges the whole balance of a token held by the identity h
// names. It returns the amount bridged, zero if there was nothing to bridge.
// Proxy balance already recorded in the delta is not bridged twice.
func (e *Executor) BridgeToken(h TokenBridgeHook) (*big.Int, error) {
	id := e.as(h.Perspective)
	holder, err := id.address()
	if err != nil {
		return nil, err
	}
	bal, err := token.Bind(h.ContractAddress, e.ctx).BalanceOf(holder)
	if err != nil {
		return nil, err
	}
	if holder == e.ctx.Address {
		bal.Sub(bal, e.delta.Pending(h.ContractAddress))
	}
	if bal.Sign() <= 0 {
		return new(big.Int), nil
	}
	if err := id.collect(h.ContractAddress, bal); err != nil {
		return nil, err
	}
	if err := e.delta.Fold(e.ledger, h.ContractAddress, bal); err != nil {
		return nil, err
	}
	return bal, nil
}

// BridgeNFT bridges an NFT if the identity h names owns it, reporting
// whether it did.
func (e *Executor) BridgeNFT(h NFTBridgeHook) (bool, error) {
	id := e.as(h.Perspective)
	holder, err := id.address()
	if err != nil {
		return false, err
	}
	owner, err := nft.Bind(h.ContractAddress, e.ctx).OwnerOf(h.TokenID)
	if err != nil {
		return false, err
	}
	if owner != holder {
		return false, nil
	}
	if holder == e.ctx.Address && e.delta.HasNFT(h.ContractAddress, h.TokenID) {
		return false, nil
	}
	if err := id.collectNFT(h.ContractAddress, h.TokenID); err != nil {
		return false, err
	}
	if err := e.delta.FoldNFT(e.ledger, h.ContractAddress, h.TokenID); err != nil {
		return false, err
	}
	return true, nil
}
