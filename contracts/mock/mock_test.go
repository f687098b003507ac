package mock

import (
	"errors"
	"math/big"
	"testing"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
)

func TestMocks(t *testing.T) {
	sdb, _ := state.New(common.Hash{}, state.NewDatabaseForTesting())
	host := vm.NewHost(sdb, vm.DefaultConfig)

	var (
		alice    = common.HexToAddress("0xa1")
		ctr      = common.HexToAddress("0xc1")
		target   = common.HexToAddress("0xc2")
		rev      = common.HexToAddress("0xc3")
		tokenX   = common.HexToAddress("0x7a")
		deployer = common.HexToAddress("0xd0")
	)
	for addr, bp := range map[common.Address]*vm.Blueprint{ctr: CounterBlueprint, target: HookTargetBlueprint, rev: ReverterBlueprint} {
		if err := host.Deploy(deployer, addr, bp, nil); err != nil {
			t.Fatalf("deploy %s: %v", bp.Name, err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := host.Call(alice, ctr, Increment(), nil); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if n, _ := Count(host.As(alice), ctr); n.Int64() != 2 {
		t.Fatalf("count = %v, want 2", n)
	}
	if n, _ := CountOf(host.As(alice), ctr, alice); n.Int64() != 2 {
		t.Fatalf("countOf(alice) = %v, want 2", n)
	}
	if _, err := host.Call(alice, target, MainCall(big.NewInt(1), tokenX), nil); err != nil {
		t.Fatalf("mainCall: %v", err)
	}
	if tok, _ := TokenToBridge(host.As(alice), target); tok != tokenX {
		t.Fatalf("token = %v, want %v", tok, tokenX)
	}
	if who, _ := LastCaller(host.As(alice), target); who != alice {
		t.Fatalf("caller = %v, want %v", who, alice)
	}
	if _, err := host.Call(alice, rev, Fail(), nil); !errors.Is(err, ErrForcedRevert) {
		t.Fatalf("fail: got %v", err)
	}
	if Touched(sdb, rev) {
		t.Fatal("reverted write must not persist")
	}
}
