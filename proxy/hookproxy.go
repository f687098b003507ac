package proxy

import (
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/hooks"
	"github.com/crossledger/appproxy/zap"
)

type executeHooksArgs struct {
	Payload []byte
}

var executeHooksABI = mustArgs("bytes payload")

// HookActions is the action table of the hook proxy. executeHooks takes the
// outbound payload in the first blob and a hook bundle in the second; zap
// takes a batch in the first blob and ignores the second.
var HookActions = NewTable(
	NewAction("executeHooks", executeHooksABI, executeHooks),
	NewRawAction("zap", zap.Decode, runZap),
)

// HookBlueprint deploys the hook proxy.
var HookBlueprint = vm.Register(&vm.Blueprint{
	Name:     "hook-proxy",
	Contract: HookActions,
	Init:     initProxy,
})

func executeHooks(inv *Invocation, a *executeHooksArgs) error {
	bundle, err := hooks.Decode(inv.Extra)
	if err != nil {
		return vm.RevertWith(err, "executeHooks")
	}
	exec := hooks.NewExecutor(inv.Ctx, inv.Factory, inv.Ledger, inv.Delta)
	if err := exec.Run(bundle.Plan()); err != nil {
		return err
	}
	inv.Payload = a.Payload
	return nil
}

func runZap(inv *Invocation, b *zap.Batch) error {
	exec := hooks.NewExecutor(inv.Ctx, inv.Factory, inv.Ledger, inv.Delta)
	return zap.Execute(exec, b, inv.Mode)
}
