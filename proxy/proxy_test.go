package proxy

import (
	"math/big"
	"testing"

	"github.com/crossledger/appproxy/contracts/account"
	"github.com/crossledger/appproxy/contracts/custody"
	"github.com/crossledger/appproxy/contracts/mock"
	"github.com/crossledger/appproxy/contracts/pool"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/hooks"
	"github.com/crossledger/appproxy/zap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/stretchr/testify/require"
)

var (
	system     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	ledgerAddr = common.HexToAddress("0x0000000000000000000000000000000000000c02")
	factory    = common.HexToAddress("0x0000000000000000000000000000000000000c03")
	curve      = common.HexToAddress("0x0000000000000000000000000000000000000c04")
	hookProxy  = common.HexToAddress("0x0000000000000000000000000000000000000c05")
	poolAddr   = common.HexToAddress("0x0000000000000000000000000000000000000c06")
	counter    = common.HexToAddress("0x0000000000000000000000000000000000000c07")
	seeder     = common.HexToAddress("0x0000000000000000000000000000000000000c08")
	wTON       = common.HexToAddress("0x0000000000000000000000000000000000000c09")
	wUSDT      = common.HexToAddress("0x0000000000000000000000000000000000000c0a")

	remoteCaller = "EQD-remote-erin"
)

type env struct {
	host *vm.Host
	sdb  *state.StateDB
	op   uint64
}

// newEnv deploys custody with two wrapped assets, a pool over them seeded
// with 100 of each, and both proxies.
func newEnv(t *testing.T) *env {
	t.Helper()
	sdb, err := state.New(common.Hash{}, state.NewDatabaseForTesting())
	require.NoError(t, err)
	e := &env{host: vm.NewHost(sdb, vm.DefaultConfig), sdb: sdb}

	deploy := func(addr common.Address, bp *vm.Blueprint, args []byte) {
		require.NoError(t, e.host.Deploy(system, addr, bp, args), bp.Name)
	}
	deploy(ledgerAddr, custody.Blueprint, custody.ConstructorArgs(system))
	deploy(factory, account.FactoryBlueprint, account.FactoryConstructorArgs(system))
	deploy(curve, CurveBlueprint, ConstructorArgs(ledgerAddr, common.Address{}, zap.EnforcePerAsset))
	deploy(hookProxy, HookBlueprint, ConstructorArgs(ledgerAddr, factory, zap.EnforcePerAsset))
	deploy(counter, mock.CounterBlueprint, nil)

	l := e.ledger()
	for _, desc := range []types.AssetDescriptor{
		{Asset: wTON, Name: "Wrapped TON", Symbol: "wTON", Decimals: 9},
		{Asset: wUSDT, Name: "Wrapped USDT", Symbol: "wUSDT", Decimals: 6},
	} {
		require.NoError(t, l.Register(desc))
		_, err := l.Mint(desc.Asset, seeder, big.NewInt(100))
		require.NoError(t, err)
		require.NoError(t, token.Bind(desc.Asset, e.host.As(seeder)).Approve(poolAddr, big.NewInt(100)))
	}
	deploy(poolAddr, pool.Blueprint, pool.ConstructorArgs(wTON, wUSDT, "TON/USDT LP", "TU-LP"))
	_, err = pool.Bind(poolAddr, e.host.As(seeder)).AddLiquidity([pool.N]*big.Int{big.NewInt(100), big.NewInt(100)}, big.NewInt(0))
	require.NoError(t, err)
	return e
}

func (e *env) ledger() *custody.Binding {
	return custody.Bind(ledgerAddr, e.host.As(system))
}

// deliver starts a new operation and hands calldata to proxy through
// custody, the same path an inbound message takes.
func (e *env) deliver(proxy common.Address, calldata []byte) error {
	e.op++
	e.host.SetMsgContext(&vm.MsgContext{
		OperationID: common.BigToHash(new(big.Int).SetUint64(e.op)),
		ShardsKey:   7,
		Caller:      remoteCaller,
	})
	_, err := e.ledger().Execute(proxy, calldata)
	return err
}

func (e *env) messages(t *testing.T) []*types.OutboundMessage {
	t.Helper()
	var out []*types.OutboundMessage
	for _, l := range e.sdb.Logs() {
		if custody.IsMessageSent(l, ledgerAddr) {
			msg, err := custody.ParseMessageSent(l)
			require.NoError(t, err)
			out = append(out, msg)
		}
	}
	return out
}

func (e *env) balance(t *testing.T, asset, holder common.Address) int64 {
	t.Helper()
	bal, err := token.Bind(asset, e.host.As(system)).BalanceOf(holder)
	require.NoError(t, err)
	return bal.Int64()
}

func (e *env) mint(t *testing.T, asset, to common.Address, amount int64) {
	t.Helper()
	_, err := e.ledger().Mint(asset, to, big.NewInt(amount))
	require.NoError(t, err)
}

func TestActionTables(t *testing.T) {
	require.Equal(t, []string{"addLiquidity", "exchange", "removeLiquidity"}, CurveActions.Actions())
	require.Equal(t, []string{"executeHooks", "zap"}, HookActions.Actions())
	require.Panics(t, func() {
		NewTable(NewAction("zap", executeHooksABI, executeHooks), NewRawAction("zap", zap.Decode, runZap))
	})
}

func TestAddLiquidity(t *testing.T) {
	e := newEnv(t)
	e.mint(t, wTON, curve, 1)
	e.mint(t, wUSDT, curve, 1)

	one := big.NewInt(1)
	require.NoError(t, e.deliver(curve, AddLiquidity(poolAddr, [pool.N]*big.Int{one, one}, big.NewInt(0))))

	bals, err := pool.Bind(poolAddr, e.host.As(system)).Balances()
	require.NoError(t, err)
	require.Equal(t, int64(101), bals[0].Int64())
	require.Equal(t, int64(101), bals[1].Int64())
	require.Zero(t, e.balance(t, wTON, curve))

	lp := pool.LPTokenAddress(poolAddr)
	msgs := e.messages(t)
	require.Len(t, msgs, 1)
	msg := msgs[0]
	require.Equal(t, curve, msg.CallerAddress)
	require.Equal(t, remoteCaller, msg.TargetAddress)
	require.Equal(t, uint64(7), msg.ShardsKey)
	require.Empty(t, msg.Payload)
	require.Empty(t, msg.TokensBurned)
	require.Len(t, msg.TokensLocked, 1)
	require.Equal(t, lp, msg.TokensLocked[0].Asset)
	require.Equal(t, int64(2), msg.TokensLocked[0].Amount.Int64())

	locked, err := e.ledger().LockedOf(lp)
	require.NoError(t, err)
	require.Equal(t, int64(2), locked.Int64())
	require.Equal(t, int64(2), e.balance(t, lp, ledgerAddr))
}

func TestAddLiquiditySlippageReverts(t *testing.T) {
	e := newEnv(t)
	e.mint(t, wTON, curve, 1)
	e.mint(t, wUSDT, curve, 1)

	one := big.NewInt(1)
	err := e.deliver(curve, AddLiquidity(poolAddr, [pool.N]*big.Int{one, one}, big.NewInt(3)))
	require.ErrorIs(t, err, pool.ErrAddSlippage)

	require.Equal(t, int64(1), e.balance(t, wTON, curve))
	allowance, err := token.Bind(wTON, e.host.As(system)).Allowance(curve, poolAddr)
	require.NoError(t, err)
	require.Zero(t, allowance.Sign(), "the approval must be rolled back with the action")
	require.Empty(t, e.messages(t))
}

func TestRemoveLiquidityBurnsWrappedCoins(t *testing.T) {
	e := newEnv(t)
	e.mint(t, wTON, curve, 1)
	e.mint(t, wUSDT, curve, 1)
	one := big.NewInt(1)
	require.NoError(t, e.deliver(curve, AddLiquidity(poolAddr, [pool.N]*big.Int{one, one}, big.NewInt(0))))

	// The share tokens come back from the remote chain.
	lp := pool.LPTokenAddress(poolAddr)
	require.NoError(t, e.ledger().Unlock(lp, curve, big.NewInt(2)))
	zero := big.NewInt(0)
	require.NoError(t, e.deliver(curve, RemoveLiquidity(poolAddr, big.NewInt(2), [pool.N]*big.Int{zero, zero})))

	msgs := e.messages(t)
	require.Len(t, msgs, 2)
	msg := msgs[1]
	require.Empty(t, msg.TokensLocked)
	require.Len(t, msg.TokensBurned, 2)
	require.Equal(t, int64(1), msg.Total(wTON).Int64())
	require.Equal(t, int64(1), msg.Total(wUSDT).Int64())

	burned, err := e.ledger().BurnedOf(wTON)
	require.NoError(t, err)
	require.Equal(t, int64(1), burned.Int64())
	require.Zero(t, e.balance(t, wTON, ledgerAddr))
}

func TestExchange(t *testing.T) {
	e := newEnv(t)
	e.mint(t, wTON, curve, 10)

	dy, err := pool.Bind(poolAddr, e.host.As(system)).GetDy(0, 1, big.NewInt(10))
	require.NoError(t, err)
	require.Positive(t, dy.Sign())

	require.NoError(t, e.deliver(curve, Exchange(poolAddr, 0, 1, big.NewInt(10), big.NewInt(0))))
	msgs := e.messages(t)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].TokensBurned, 1)
	require.Equal(t, dy, msgs[0].Total(wUSDT))

	err = e.deliver(curve, Exchange(poolAddr, 0, 0, big.NewInt(1), big.NewInt(0)))
	require.ErrorIs(t, err, pool.ErrInvalidCoin)
	err = e.deliver(curve, Exchange(poolAddr, 0, 5, big.NewInt(1), big.NewInt(0)))
	require.ErrorIs(t, err, pool.ErrInvalidCoin)
}

func TestDispatchErrors(t *testing.T) {
	e := newEnv(t)

	require.ErrorIs(t, e.deliver(curve, Calldata("mint", nil, nil)), ErrUnknownAction)
	require.ErrorIs(t, e.deliver(curve, []byte{0x01}), ErrUnknownAction)
	require.ErrorIs(t, e.deliver(curve, Calldata("addLiquidity", []byte{1, 2, 3}, nil)), ErrMalformedArguments)

	sel := types.Selector("addLiquidity")
	require.ErrorIs(t, e.deliver(curve, append(sel[:], 0xff)), ErrMalformedArguments)

	one := big.NewInt(1)
	_, err := e.host.Call(system, curve, AddLiquidity(poolAddr, [pool.N]*big.Int{one, one}, one), nil)
	require.ErrorIs(t, err, ErrNotCustody)
	require.Empty(t, e.messages(t))
}

func TestExecuteHooks(t *testing.T) {
	e := newEnv(t)
	sa := account.PredictAddress(factory, remoteCaller, hookProxy)
	e.mint(t, wTON, hookProxy, 4)

	bundle := &hooks.Bundle{
		PreHooks: []hooks.Hook{{Perspective: hooks.FromSA, ContractAddress: counter, Data: mock.Increment()}},
		MainCallHook: hooks.Hook{
			Perspective:     hooks.FromSelf,
			ContractAddress: wTON,
			Data:            token.TransferCalldata(sa, big.NewInt(4)),
		},
		PostHooks: []hooks.Hook{{Perspective: hooks.FromSA, ContractAddress: counter, Data: mock.Increment()}},
		BridgeHooks: hooks.BridgeHooks{
			TokenBridgeHooks: []hooks.TokenBridgeHook{{Perspective: hooks.FromSA, ContractAddress: wTON}},
		},
	}
	calldata, err := ExecuteHooks([]byte("callback"), bundle)
	require.NoError(t, err)
	require.NoError(t, e.deliver(hookProxy, calldata))

	n, err := mock.CountOf(e.host.As(system), counter, sa)
	require.NoError(t, err)
	require.Equal(t, int64(2), n.Int64())

	msgs := e.messages(t)
	require.Len(t, msgs, 1)
	require.Equal(t, []byte("callback"), msgs[0].Payload)
	require.Equal(t, int64(4), msgs[0].Total(wTON).Int64())
	require.Len(t, msgs[0].TokensBurned, 1)
	require.Zero(t, e.balance(t, wTON, sa))
}

func TestExecuteHooksMalformedBundle(t *testing.T) {
	e := newEnv(t)
	err := e.deliver(hookProxy, Calldata("executeHooks", pack(executeHooksABI, []byte{}), []byte{1, 2}))
	require.ErrorIs(t, err, hooks.ErrMalformedBundle)
}

func TestZapAction(t *testing.T) {
	e := newEnv(t)
	e.mint(t, wTON, hookProxy, 3)

	b, err := zap.NewBuilder().
		Call(counter, mock.Increment()).
		BridgeToken(wTON).
		Required(true).
		Build()
	require.NoError(t, err)
	calldata, err := Zap(b)
	require.NoError(t, err)
	require.NoError(t, e.deliver(hookProxy, calldata))

	n, err := mock.CountOf(e.host.As(system), counter, hookProxy)
	require.NoError(t, err)
	require.Equal(t, int64(1), n.Int64())

	msgs := e.messages(t)
	require.Len(t, msgs, 1)
	require.Empty(t, msgs[0].Payload)
	require.Equal(t, int64(3), msgs[0].Total(wTON).Int64())

	b, err = zap.NewBuilder().BridgeToken(wUSDT).Required(true).Build()
	require.NoError(t, err)
	calldata, err = Zap(b)
	require.NoError(t, err)
	require.ErrorIs(t, e.deliver(hookProxy, calldata), zap.ErrBridgeUnavailable)
}
