package zap

import (
	"errors"
	"fmt"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/hooks"
	"github.com/crossledger/appproxy/tracing"
)

// ErrBridgeUnavailable is returned when a required bridge asset is missing.
var ErrBridgeUnavailable = errors.New("zap: required bridge asset unavailable")

// Enforcement selects when the isRequired flag of a bridge descriptor is
// checked.
type Enforcement uint8

const (
	// EnforcePerAsset fails on the first declared asset that is missing.
	EnforcePerAsset Enforcement = iota
	// EnforceAtEnd skips missing assets and fails only if nothing at all
	// was bridged.
	EnforceAtEnd
)

func (e Enforcement) String() string {
	switch e {
	case EnforcePerAsset:
		return "per-asset"
	case EnforceAtEnd:
		return "at-end"
	}
	return fmt.Sprintf("enforcement(%d)", uint8(e))
}

// MarshalText implements encoding.TextMarshaler.
func (e Enforcement) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Enforcement) UnmarshalText(text []byte) error {
	switch string(text) {
	case "per-asset":
		*e = EnforcePerAsset
	case "at-end":
		*e = EnforceAtEnd
	default:
		return fmt.Errorf("zap: unknown bridge enforcement %q", text)
	}
	return nil
}

// Execute runs the calls of b in order as the proxy and then bridges the
// declared assets back, enforcing isRequired according to mode.
func Execute(exec *hooks.Executor, b *Batch, mode Enforcement) error {
	plan := b.Plan()
	if err := exec.RunPhase(tracing.PhaseMain, plan.Main); err != nil {
		return err
	}
	tracer := exec.Tracer()
	tracer.PhaseStart(tracing.PhaseBridge)
	err := bridge(exec, plan.Bridge, b.Bridge.IsRequired, mode)
	tracer.PhaseEnd(tracing.PhaseBridge, err)
	return err
}

func bridge(exec *hooks.Executor, hs hooks.BridgeHooks, required bool, mode Enforcement) error {
	var bridged int
	miss := func(index int, what string) error {
		if required && mode == EnforcePerAsset {
			return &hooks.HookError{Phase: tracing.PhaseBridge, Index: index, Err: vm.RevertWith(ErrBridgeUnavailable, "%s", what)}
		}
		return nil
	}
	idx := 0
	for _, h := range hs.TokenBridgeHooks {
		amount, err := exec.BridgeToken(h)
		if err != nil {
			return &hooks.HookError{Phase: tracing.PhaseBridge, Index: idx, Err: err}
		}
		if amount.Sign() > 0 {
			bridged++
		} else if err := miss(idx, "token "+h.ContractAddress.Hex()); err != nil {
			return err
		}
		idx++
	}
	for _, h := range hs.NFTBridgeHooks {
		ok, err := exec.BridgeNFT(h)
		if err != nil {
			return &hooks.HookError{Phase: tracing.PhaseBridge, Index: idx, Err: err}
		}
		if ok {
			bridged++
		} else if err := miss(idx, fmt.Sprintf("nft %v #%v", h.ContractAddress, h.TokenID)); err != nil {
			return err
		}
		idx++
	}
	if required && mode == EnforceAtEnd && idx > 0 && bridged == 0 {
		return vm.RevertWith(ErrBridgeUnavailable, "none of %d declared assets", idx)
	}
	return nil
}
