package vm

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// calcSlot computes the storage slot of mapping(address => ...) at index.
func calcSlot(addr common.Address, index uint64) common.Hash {
	return crypto.Keccak256Hash(common.LeftPadBytes(addr.Bytes(), 32), common.LeftPadBytes(new(big.Int).SetUint64(index).Bytes(), 32))
}

func TestMappingSlotLayout(t *testing.T) {
	holder := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	if have, want := MappingSlot(AddressKey(holder), Slot(4)), calcSlot(holder, 4); have != want {
		t.Fatalf("mapping slot mismatch: have %x, want %x", have, want)
	}
}

func TestStringRoundTrip(t *testing.T) {
	h := newTestHost(t)
	ctx := &CallContext{host: h, Address: storeA}
	for _, s := range []string{"", "USDC", strings.Repeat("wrapped-", 9)} {
		if err := ctx.SetString(Slot(1), s); err != nil {
			t.Fatalf("set string failed: %v", err)
		}
		if got := ctx.GetString(Slot(1)); got != s {
			t.Fatalf("string mismatch: have %q, want %q", got, s)
		}
	}
	if err := ctx.SetBool(Slot(2), true); err != nil || !ctx.GetBool(Slot(2)) {
		t.Fatalf("bool slot not set: %v", err)
	}
}
