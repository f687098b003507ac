package account

import (
	"errors"
	"math/big"
	"testing"

	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	admin   = common.HexToAddress("0x0000000000000000000000000000000000000101")
	app     = common.HexToAddress("0x0000000000000000000000000000000000000102")
	other   = common.HexToAddress("0x0000000000000000000000000000000000000103")
	factory = common.HexToAddress("0x0000000000000000000000000000000000000104")
	coin    = common.HexToAddress("0x0000000000000000000000000000000000000105")
)

const remote = "EQD4FPq-PRDieyQKkizFTRtSDyucUIqrj0v_zXJmqaDp6_0t"

func newFactory(t *testing.T) *vm.Host {
	t.Helper()
	sdb, err := state.New(common.Hash{}, state.NewDatabaseForTesting())
	if err != nil {
		t.Fatalf("failed to create StateDB: %v", err)
	}
	host := vm.NewHost(sdb, vm.DefaultConfig)
	if err := host.Deploy(admin, factory, FactoryBlueprint, FactoryConstructorArgs(admin)); err != nil {
		t.Fatalf("factory deploy failed: %v", err)
	}
	return host
}

func TestSaltEncoding(t *testing.T) {
	// abi.encode(string, address): head offset, address word, length, data.
	want := crypto.Keccak256Hash(
		common.LeftPadBytes([]byte{0x40}, 32),
		common.LeftPadBytes(app.Bytes(), 32),
		common.LeftPadBytes([]byte{3}, 32),
		common.RightPadBytes([]byte("abc"), 32),
	)
	if have := (Key{RemoteCaller: "abc", Application: app}).Salt(); have != want {
		t.Fatalf("salt mismatch: have %x, want %x", have, want)
	}
}

func TestPredictBeforeAndAfterCreate(t *testing.T) {
	host := newFactory(t)
	f := Bind(factory, host.As(app))

	before, err := f.PredictAddress(remote, app)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if local := PredictAddress(factory, remote, app); local != before {
		t.Fatalf("local and on-chain derivation disagree: %v vs %v", local, before)
	}
	created, err := f.GetOrCreate(remote, app)
	if err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	after, _ := f.PredictAddress(remote, app)
	if created != before || after != before {
		t.Fatalf("address changed: before %v created %v after %v", before, created, after)
	}
	again, err := f.GetOrCreate(remote, app)
	if err != nil || again != created {
		t.Fatalf("second getOrCreate differs: %v %v", again, err)
	}
	created2 := 0
	for _, l := range host.StateDB().Logs() {
		if l.Topics[0] == FactoryABI.Events["AccountCreated"].ID {
			created2++
		}
	}
	if created2 != 1 {
		t.Fatalf("expected one AccountCreated event, got %d", created2)
	}
	if host.StateDB().GetCodeHash(created) != AccountBlueprint.CodeHash() {
		t.Fatalf("account code not installed")
	}
}

func TestDerivationInputs(t *testing.T) {
	a := PredictAddress(factory, remote, app)
	if b := PredictAddress(factory, remote, other); a == b {
		t.Fatalf("different applications must derive different accounts")
	}
	if b := PredictAddress(factory, remote+"x", app); a == b {
		t.Fatalf("different callers must derive different accounts")
	}
}

func TestGetOrCreateAuthorization(t *testing.T) {
	host := newFactory(t)
	if _, err := Bind(factory, host.As(other)).GetOrCreate(remote, app); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign application should not create accounts, got %v", err)
	}
	if err := Bind(factory, host.As(other)).Authorize(other); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("non-owner authorize should fail, got %v", err)
	}
	if err := Bind(factory, host.As(admin)).Authorize(other); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if _, err := Bind(factory, host.As(other)).GetOrCreate(remote, app); err != nil {
		t.Fatalf("authorized executor failed: %v", err)
	}
}

func TestExecuteAsSelf(t *testing.T) {
	host := newFactory(t)
	sa, err := Bind(factory, host.As(app)).GetOrCreate(remote, app)
	if err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	if err := host.Deploy(admin, coin, token.Blueprint, token.ConstructorArgs("Coin", "C", 6, admin)); err != nil {
		t.Fatalf("token deploy failed: %v", err)
	}
	if err := token.Bind(coin, host.As(admin)).Mint(sa, big.NewInt(5)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	transfer := vm.Pack(token.ABI, "transfer", other, big.NewInt(2))

	if _, err := BindAccount(sa, host.As(other)).ExecuteAsSelf(coin, nil, transfer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unauthorized executeAsSelf should fail, got %v", err)
	}
	// The application only commands the account of the remote caller it serves.
	if _, err := BindAccount(sa, host.As(app)).ExecuteAsSelf(coin, nil, transfer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("executeAsSelf outside a message should fail, got %v", err)
	}
	host.SetMsgContext(&vm.MsgContext{Caller: remote + "-other"})
	if _, err := BindAccount(sa, host.As(app)).ExecuteAsSelf(coin, nil, transfer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("executeAsSelf for another remote caller should fail, got %v", err)
	}
	host.SetMsgContext(&vm.MsgContext{Caller: remote})
	if _, err := BindAccount(sa, host.As(app)).ExecuteAsSelf(coin, nil, transfer); err != nil {
		t.Fatalf("executeAsSelf failed: %v", err)
	}
	bal, _ := token.Bind(coin, host.As(app)).BalanceOf(other)
	if bal.Int64() != 2 {
		t.Fatalf("forwarded transfer not applied: %v", bal)
	}

	// Forwarded reverts surface unchanged.
	overdraft := vm.Pack(token.ABI, "transfer", other, big.NewInt(10))
	_, err = BindAccount(sa, host.As(app)).ExecuteAsSelf(coin, nil, overdraft)
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("forwarded revert not propagated: %v", err)
	}
}

func TestExecuteAsSelfForwardsValue(t *testing.T) {
	host := newFactory(t)
	host.SetMsgContext(&vm.MsgContext{Caller: remote})
	sa, err := Bind(factory, host.As(app)).GetOrCreate(remote, app)
	if err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	host.StateDB().AddBalance(app, uint256.NewInt(10), tracing.BalanceChangeUnspecified)

	if _, err := BindAccount(sa, host.As(app)).ExecuteAsSelf(other, big.NewInt(3), nil); err != nil {
		t.Fatalf("value forward failed: %v", err)
	}
	if bal := host.StateDB().GetBalance(other); bal.Uint64() != 3 {
		t.Fatalf("recipient balance: have %v, want 3", bal)
	}
	if bal := host.StateDB().GetBalance(sa); !bal.IsZero() {
		t.Fatalf("account kept %v wei", bal)
	}
	if bal := host.StateDB().GetBalance(app); bal.Uint64() != 7 {
		t.Fatalf("application balance: have %v, want 7", bal)
	}

	// A value the call did not bring is refused even if the account could pay.
	host.StateDB().AddBalance(sa, uint256.NewInt(5), tracing.BalanceChangeUnspecified)
	input := vm.Pack(AccountABI, "executeAsSelf", other, big.NewInt(2), []byte{})
	if _, err := host.As(app).Call(sa, input, nil); !errors.Is(err, ErrValueNotProvided) {
		t.Fatalf("unfunded value forward should fail, got %v", err)
	}
}
