package zap

import (
	"math/big"
	"testing"

	appbridge "github.com/crossledger/appproxy/bridge"
	"github.com/crossledger/appproxy/contracts/account"
	"github.com/crossledger/appproxy/contracts/custody"
	"github.com/crossledger/appproxy/contracts/mock"
	"github.com/crossledger/appproxy/contracts/nft"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/hooks"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/stretchr/testify/require"
)

var (
	system     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	ledgerAddr = common.HexToAddress("0x0000000000000000000000000000000000000c02")
	factory    = common.HexToAddress("0x0000000000000000000000000000000000000c03")
	harness    = common.HexToAddress("0x0000000000000000000000000000000000000c04")
	counter    = common.HexToAddress("0x0000000000000000000000000000000000000c05")
	tokenX     = common.HexToAddress("0x0000000000000000000000000000000000000c06")
	tokenY     = common.HexToAddress("0x0000000000000000000000000000000000000c07")
	punks      = common.HexToAddress("0x0000000000000000000000000000000000000c08")
)

// zapHarness executes the batch it is called with in the configured mode.
type zapHarness struct {
	mode Enforcement
}

func (z *zapHarness) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	batch, err := Decode(input)
	if err != nil {
		return nil, err
	}
	delta := appbridge.NewDelta()
	if err := Execute(hooks.NewExecutor(ctx, factory, ledgerAddr, delta), batch, z.mode); err != nil {
		return nil, err
	}
	if delta.Empty() {
		return nil, nil
	}
	return nil, delta.Settle(ctx, ledgerAddr, nil)
}

var (
	harnessContract  = &zapHarness{}
	harnessBlueprint = vm.Register(&vm.Blueprint{Name: "zap-test-harness", Contract: harnessContract})
)

func newHost(t *testing.T, mode Enforcement) *vm.Host {
	t.Helper()
	sdb, err := state.New(common.Hash{}, state.NewDatabaseForTesting())
	require.NoError(t, err)
	host := vm.NewHost(sdb, vm.DefaultConfig)
	for addr, d := range map[common.Address]struct {
		bp   *vm.Blueprint
		args []byte
	}{
		ledgerAddr: {custody.Blueprint, custody.ConstructorArgs(system)},
		factory:    {account.FactoryBlueprint, account.FactoryConstructorArgs(system)},
		harness:    {harnessBlueprint, nil},
		counter:    {mock.CounterBlueprint, nil},
		tokenX:     {token.Blueprint, token.ConstructorArgs("X", "X", 18, system)},
		tokenY:     {token.Blueprint, token.ConstructorArgs("Y", "Y", 18, system)},
		punks:      {nft.Blueprint, nft.ConstructorArgs("Punks", "PNK", system)},
	} {
		require.NoError(t, host.Deploy(system, addr, d.bp, d.args))
	}
	require.NoError(t, token.Bind(tokenX, host.As(system)).Mint(harness, big.NewInt(5)))
	host.SetMsgContext(&vm.MsgContext{OperationID: common.HexToHash("0x2a"), Caller: "remote"})
	harnessContract.mode = mode
	return host
}

func TestBatchCodec(t *testing.T) {
	enc, err := NewBuilder().
		Call(counter, mock.Increment()).
		CallABI(tokenX, token.ABI, "approve", counter, big.NewInt(3)).
		BridgeToken(tokenX, tokenY).
		BridgeNFT(punks, big.NewInt(4)).
		Required(true).
		Encode()
	require.NoError(t, err)

	b, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, b.Calls, 2)
	require.Equal(t, counter, b.Calls[0].Target)
	require.Equal(t, token.ApproveCalldata(counter, big.NewInt(3)), b.Calls[1].CallData)
	require.Equal(t, []common.Address{tokenX, tokenY}, b.Bridge.Tokens)
	require.Len(t, b.Bridge.NFTs, 1)
	require.Equal(t, int64(4), b.Bridge.NFTs[0].TokenId.Int64())
	require.True(t, b.Bridge.IsRequired)

	plan := b.Plan()
	require.Empty(t, plan.Pre)
	require.Empty(t, plan.Post)
	require.Len(t, plan.Main, 2)
	require.Len(t, plan.Bridge.TokenBridgeHooks, 2)

	_, err = Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrMalformedBatch)

	_, err = NewBuilder().CallABI(tokenX, token.ABI, "approve", "not-an-address").Build()
	require.Error(t, err)
}

func TestCallsRunInOrderAsProxy(t *testing.T) {
	host := newHost(t, EnforcePerAsset)
	enc, err := NewBuilder().
		Call(counter, mock.Increment()).
		Call(counter, mock.Increment()).
		Encode()
	require.NoError(t, err)
	_, err = host.Call(system, harness, enc, nil)
	require.NoError(t, err)

	n, _ := mock.CountOf(host.As(system), counter, harness)
	require.Equal(t, int64(2), n.Int64())
}

func TestRequiredPerAsset(t *testing.T) {
	host := newHost(t, EnforcePerAsset)
	enc, _ := NewBuilder().BridgeToken(tokenX, tokenY).Required(true).Encode()

	_, err := host.Call(system, harness, enc, nil)
	require.ErrorIs(t, err, ErrBridgeUnavailable)

	locked, _ := custody.Bind(ledgerAddr, host.As(system)).LockedOf(tokenX)
	require.Zero(t, locked.Sign(), "a failed batch must not lock anything")
}

func TestRequiredAtEnd(t *testing.T) {
	host := newHost(t, EnforceAtEnd)
	enc, _ := NewBuilder().BridgeToken(tokenX, tokenY).Required(true).Encode()

	_, err := host.Call(system, harness, enc, nil)
	require.NoError(t, err)
	locked, _ := custody.Bind(ledgerAddr, host.As(system)).LockedOf(tokenX)
	require.Equal(t, int64(5), locked.Int64())

	host = newHost(t, EnforceAtEnd)
	enc, _ = NewBuilder().BridgeToken(tokenY).BridgeNFT(punks, big.NewInt(1)).Required(true).Encode()
	_, err = host.Call(system, harness, enc, nil)
	require.ErrorIs(t, err, ErrBridgeUnavailable)
}

func TestNotRequiredSkipsMissing(t *testing.T) {
	for _, mode := range []Enforcement{EnforcePerAsset, EnforceAtEnd} {
		host := newHost(t, mode)
		enc, _ := NewBuilder().BridgeToken(tokenY).BridgeNFT(punks, big.NewInt(1)).Encode()
		if _, err := host.Call(system, harness, enc, nil); err != nil {
			t.Fatalf("%v: unexpected error: %v", mode, err)
		}
	}
}

func TestEnforcementText(t *testing.T) {
	for _, mode := range []Enforcement{EnforcePerAsset, EnforceAtEnd} {
		text, _ := mode.MarshalText()
		var back Enforcement
		if err := back.UnmarshalText(text); err != nil || back != mode {
			t.Fatalf("round trip of %v: %v %v", mode, back, err)
		}
	}
	var e Enforcement
	if err := e.UnmarshalText([]byte("sometimes")); err == nil {
		t.Fatal("unknown mode accepted")
	}
}
