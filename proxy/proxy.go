// Package proxy implements application proxies: contracts that translate
// remote messages of the form "<action>(bytes,bytes)" into calls against a
// wrapped protocol and hand the resulting assets back to custody.
package proxy

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/crossledger/appproxy/bridge"
	"github.com/crossledger/appproxy/contracts/custody"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/zap"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	ErrUnknownAction      = errors.New("proxy: unknown action")
	ErrMalformedArguments = errors.New("proxy: malformed arguments")
	ErrNotCustody         = errors.New("proxy: caller is not the custody ledger")
)

// Storage layout shared by all proxies.
var (
	slotLedger      = vm.Slot(0)
	slotFactory     = vm.Slot(1)
	slotEnforcement = vm.Slot(2)
)

// Invocation is the state of one action call.
type Invocation struct {
	Ctx     *vm.CallContext
	Ledger  common.Address
	Factory common.Address
	Mode    zap.Enforcement

	// Delta collects what the action hands back; it is settled with the
	// ledger after the action returns.
	Delta *bridge.Delta

	// Extra is the second argument blob.
	Extra []byte

	// Payload is echoed in the outbound message.
	Payload []byte
}

func (inv *Invocation) ledgerBinding() *custody.Binding {
	return custody.Bind(inv.Ledger, inv.Ctx)
}

// Action is one entry of a proxy's action table.
type Action interface {
	Name() string
	invoke(inv *Invocation, first []byte) error
}

type action[A any] struct {
	name   string
	decode func(first []byte) (*A, error)
	run    func(inv *Invocation, args *A) error
}

func (a *action[A]) Name() string { return a.name }

func (a *action[A]) invoke(inv *Invocation, first []byte) error {
	args, err := a.decode(first)
	if err != nil {
		return vm.RevertWith(ErrMalformedArguments, "%s: %v", a.name, err)
	}
	return a.run(inv, args)
}

// NewAction declares an action whose first argument blob is the ABI
// encoding of args, decoded into A by argument name.
func NewAction[A any](name string, args abi.Arguments, run func(inv *Invocation, args *A) error) Action {
	return &action[A]{
		name: name,
		decode: func(first []byte) (*A, error) {
			vals, err := args.Unpack(first)
			if err != nil {
				return nil, err
			}
			out := new(A)
			if err := args.Copy(out, vals); err != nil {
				return nil, err
			}
			return out, nil
		},
		run: run,
	}
}

// NewRawAction declares an action with a custom first blob decoder.
func NewRawAction[A any](name string, decode func(first []byte) (*A, error), run func(inv *Invocation, args *A) error) Action {
	return &action[A]{name: name, decode: decode, run: run}
}

// Table maps "<action>(bytes,bytes)" selectors to actions. It is built once
// per proxy type.
type Table struct {
	actions map[[4]byte]Action
	meters  map[[4]byte]*metrics.Meter
}

// NewTable builds the selector table, panicking on duplicate names.
func NewTable(actions ...Action) *Table {
	t := &Table{
		actions: make(map[[4]byte]Action, len(actions)),
		meters:  make(map[[4]byte]*metrics.Meter, len(actions)),
	}
	for _, a := range actions {
		sel := types.Selector(a.Name())
		if _, dup := t.actions[sel]; dup {
			panic(fmt.Sprintf("proxy: duplicate action %q", a.Name()))
		}
		t.actions[sel] = a
		t.meters[sel] = metrics.GetOrRegisterMeter("appproxy/proxy/"+strings.ToLower(a.Name()), nil)
	}
	return t
}

// Actions returns the sorted action names.
func (t *Table) Actions() []string {
	names := make([]string, 0, len(t.actions))
	for _, a := range t.actions {
		names = append(names, a.Name())
	}
	sort.Strings(names)
	return names
}

// Run implements vm.Contract: it dispatches input to its action, then
// settles the bridge-back delta with the custody ledger.
func (t *Table) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, vm.Revert(ErrUnknownAction)
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	act, ok := t.actions[sel]
	if !ok {
		return nil, vm.RevertWith(ErrUnknownAction, "selector %#x", sel[:])
	}
	ledger := ctx.GetAddress(slotLedger)
	if ctx.Caller != ledger {
		return nil, vm.Revert(ErrNotCustody)
	}
	first, second, err := types.UnpackArguments(input[4:])
	if err != nil {
		return nil, vm.RevertWith(ErrMalformedArguments, "%s", act.Name())
	}
	inv := &Invocation{
		Ctx:     ctx,
		Ledger:  ledger,
		Factory: ctx.GetAddress(slotFactory),
		Mode:    zap.Enforcement(ctx.GetBig(slotEnforcement).Uint64()),
		Delta:   bridge.NewDelta(),
		Extra:   second,
	}
	if err := act.invoke(inv, first); err != nil {
		return nil, err
	}
	if err := inv.Delta.Settle(ctx, ledger, inv.Payload); err != nil {
		return nil, err
	}
	t.meters[sel].Mark(1)
	log.Debug("Executed proxy action", "proxy", ctx.Address, "action", act.Name())
	return nil, nil
}

var constructorArgs = mustArgs("address ledger", "address factory", "uint8 enforcement")

// ConstructorArgs encodes the deployment parameters of a proxy: the custody
// ledger it serves, the smart-account factory used by hook actions and the
// bridge enforcement mode of batch actions. Proxies without hook actions
// ignore the last two.
func ConstructorArgs(ledger, factory common.Address, mode zap.Enforcement) []byte {
	enc, err := constructorArgs.Pack(ledger, factory, uint8(mode))
	if err != nil {
		panic(err)
	}
	return enc
}

func initProxy(ctx *vm.CallContext, args []byte) error {
	vals, err := constructorArgs.Unpack(args)
	if err != nil {
		return vm.Revertf("proxy: invalid constructor arguments: %v", err)
	}
	if err := ctx.SetAddress(slotLedger, vals[0].(common.Address)); err != nil {
		return err
	}
	if err := ctx.SetAddress(slotFactory, vals[1].(common.Address)); err != nil {
		return err
	}
	return ctx.SetBig(slotEnforcement, new(big.Int).SetUint64(uint64(vals[2].(uint8))))
}

// mustArgs builds named ABI arguments from "type name" pairs.
func mustArgs(defs ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(defs))
	for _, def := range defs {
		typ, name, _ := strings.Cut(def, " ")
		t, err := abi.NewType(typ, "", nil)
		if err != nil {
			panic(fmt.Sprintf("proxy: argument %q: %v", def, err))
		}
		args = append(args, abi.Argument{Name: name, Type: t})
	}
	return args
}
