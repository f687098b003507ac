package nft

import (
	"errors"
	"math/big"
	"testing"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
)

var (
	minter     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob        = common.HexToAddress("0x00000000000000000000000000000000000000b3")
	collection = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

func TestCollectionLifecycle(t *testing.T) {
	sdb, err := state.New(common.Hash{}, state.NewDatabaseForTesting())
	if err != nil {
		t.Fatalf("failed to create StateDB: %v", err)
	}
	host := vm.NewHost(sdb, vm.DefaultConfig)
	if err := host.Deploy(minter, collection, Blueprint, ConstructorArgs("Punks", "PNK", minter)); err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	id := big.NewInt(42)

	owner, err := Bind(collection, host.As(alice)).OwnerOf(id)
	if err != nil || owner != (common.Address{}) {
		t.Fatalf("unminted token should have no owner: %v %v", owner, err)
	}
	if err := Bind(collection, host.As(minter)).Mint(alice, id); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := Bind(collection, host.As(minter)).Mint(bob, id); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("double mint should fail, got %v", err)
	}
	if err := Bind(collection, host.As(bob)).TransferFrom(alice, bob, id); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("unapproved transfer should fail, got %v", err)
	}
	if err := Bind(collection, host.As(alice)).Approve(bob, id); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := Bind(collection, host.As(bob)).TransferFrom(alice, bob, id); err != nil {
		t.Fatalf("approved transfer failed: %v", err)
	}
	if owner, _ := Bind(collection, host.As(alice)).OwnerOf(id); owner != bob {
		t.Fatalf("owner mismatch: have %v, want %v", owner, bob)
	}
	if err := Bind(collection, host.As(bob)).Burn(id); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	bal, _ := Bind(collection, host.As(bob)).BalanceOf(bob)
	if bal.Sign() != 0 {
		t.Fatalf("balance after burn: %v", bal)
	}
}
