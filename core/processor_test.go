package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"

	"github.com/crossledger/appproxy/bridge"
	"github.com/crossledger/appproxy/contracts/account"
	"github.com/crossledger/appproxy/contracts/custody"
	"github.com/crossledger/appproxy/contracts/mock"
	"github.com/crossledger/appproxy/contracts/pool"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/hooks"
	"github.com/crossledger/appproxy/proxy"
	"github.com/crossledger/appproxy/tracing"
	"github.com/crossledger/appproxy/zap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func init() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelWarn, true)))
}

var (
	counterAddr  = common.HexToAddress("0x000000000000000000000000000000000000c001")
	targetAddr   = common.HexToAddress("0x000000000000000000000000000000000000c002")
	reverterAddr = common.HexToAddress("0x000000000000000000000000000000000000c003")

	remote = "EQD-remote-frank"
)

type testChain struct {
	proc    *Processor
	dep     *Deployment
	sdb     *state.StateDB
	sink    *bridge.MemorySink
	seed    [pool.N]*big.Int
	trace   []string
	custody []string
}

func newTestChain(t *testing.T, mutate func(*Config, *Genesis)) *testChain {
	t.Helper()
	sdb, err := state.New(common.Hash{}, state.NewDatabaseForTesting())
	require.NoError(t, err)

	c := &testChain{sdb: sdb, sink: bridge.NewMemorySink()}
	cfg := DefaultConfig
	cfg.Tracer = &tracing.Hooks{
		OnPhaseStart: func(p tracing.HookPhase) { c.trace = append(c.trace, "enter "+p.String()) },
		OnHookStart: func(p tracing.HookPhase, i int, _ common.Address, _ bool) {
			c.trace = append(c.trace, fmt.Sprintf("%s[%d]", p, i))
		},
		OnCustody: func(op tracing.CustodyOp, asset common.Address, amount *big.Int) {
			c.custody = append(c.custody, fmt.Sprintf("%s %v %v", op, asset, amount))
		},
	}
	gspec := DefaultGenesis()
	if mutate != nil {
		mutate(&cfg, gspec)
	}
	gspec.BridgeEnforcement = cfg.BridgeEnforcement
	c.seed = gspec.Pool.Seed

	c.dep, err = gspec.Commit(sdb)
	require.NoError(t, err)
	c.proc, err = NewProcessor(cfg, sdb, c.dep, c.sink)
	require.NoError(t, err)

	host := c.proc.Host()
	require.NoError(t, host.Deploy(c.dep.Relayer, counterAddr, mock.CounterBlueprint, nil))
	require.NoError(t, host.Deploy(c.dep.Relayer, targetAddr, mock.HookTargetBlueprint, nil))
	require.NoError(t, host.Deploy(c.dep.Relayer, reverterAddr, mock.ReverterBlueprint, nil))
	return c
}

func (c *testChain) caller() vm.Caller { return c.proc.Host().As(c.dep.Relayer) }

func (c *testChain) ledger() *custody.Binding { return custody.Bind(c.dep.Custody, c.caller()) }

func (c *testChain) smartAccount() common.Address {
	return account.PredictAddress(c.dep.Factory, remote, c.dep.HookProxy)
}

// envelope wraps proxy calldata into an inbound message.
func envelope(op uint64, target common.Address, action string, calldata []byte) *types.Envelope {
	return &types.Envelope{
		ShardsKey:   1,
		GasLimit:    big.NewInt(1_000_000),
		OperationID: common.BigToHash(new(big.Int).SetUint64(op)),
		Timestamp:   1_700_000_000,
		Target:      target,
		MethodName:  types.MethodName(action),
		Arguments:   calldata[4:],
		Caller:      remote,
	}
}

func (c *testChain) hooksEnvelope(t *testing.T, op uint64, payload []byte, b *hooks.Bundle) *types.Envelope {
	t.Helper()
	calldata, err := proxy.ExecuteHooks(payload, b)
	require.NoError(t, err)
	return envelope(op, c.dep.HookProxy, "executeHooks", calldata)
}

func (c *testChain) process(t *testing.T, env *types.Envelope) *types.Receipt {
	t.Helper()
	r, err := c.proc.Process(context.Background(), env)
	require.NoError(t, err)
	return r
}

// addLiquidity mints two units of each coin to the proxy and deposits one.
func (c *testChain) addLiquidity(op uint64) *types.Envelope {
	one, two := big.NewInt(1), big.NewInt(2)
	env := envelope(op, c.dep.CurveProxy, "addLiquidity",
		proxy.AddLiquidity(c.dep.Pool, [pool.N]*big.Int{one, one}, big.NewInt(0)))
	env.Mint = []types.TokenAmount{{Asset: c.dep.Coins[0], Amount: two}, {Asset: c.dep.Coins[1], Amount: two}}
	return env
}

func saHook(to common.Address, data []byte) hooks.Hook {
	return hooks.Hook{Perspective: hooks.FromSA, ContractAddress: to, Data: data}
}

func TestAddLiquidityEndToEnd(t *testing.T) {
	c := newTestChain(t, nil)
	env := c.addLiquidity(1)

	r := c.process(t, env)
	require.False(t, r.Failed(), "message failed: %v", r.Err)
	require.Equal(t, env.OperationID, r.OperationID)
	require.Equal(t, env.Hash(), r.EnvelopeHash)

	bals, err := pool.Bind(c.dep.Pool, c.caller()).Balances()
	require.NoError(t, err)
	for i := range bals {
		require.Equal(t, new(big.Int).Add(c.seed[i], common.Big1), bals[i])
	}

	msgs := c.sink.Messages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	require.Equal(t, r.Outbound, msg)
	require.Equal(t, env.OperationID, msg.OperationID)
	require.Equal(t, c.dep.CurveProxy, msg.CallerAddress)
	require.Equal(t, remote, msg.TargetAddress)
	require.Empty(t, msg.Payload)
	require.Empty(t, msg.TokensBurned)
	require.Len(t, msg.TokensLocked, 1)
	require.Equal(t, c.dep.LPToken, msg.TokensLocked[0].Asset)
	require.Positive(t, msg.TokensLocked[0].Amount.Sign())

	// The undeposited unit of each coin stays with the proxy.
	for _, coin := range c.dep.Coins {
		left, err := token.Bind(coin, c.caller()).BalanceOf(c.dep.CurveProxy)
		require.NoError(t, err)
		require.Equal(t, int64(1), left.Int64())
	}
	require.Equal(t, []string{
		fmt.Sprintf("mint %v 2", c.dep.Coins[0]),
		fmt.Sprintf("mint %v 2", c.dep.Coins[1]),
		fmt.Sprintf("lock %v %v", c.dep.LPToken, msg.TokensLocked[0].Amount),
	}, c.custody)
}

func TestHookScenarioEndToEnd(t *testing.T) {
	c := newTestChain(t, nil)
	tokenX := c.dep.Coins[0]
	r := c.process(t, c.hooksEnvelope(t, 1, nil, &hooks.Bundle{
		PreHooks:     []hooks.Hook{saHook(counterAddr, mock.Increment())},
		MainCallHook: saHook(targetAddr, mock.MainCall(big.NewInt(1), tokenX)),
		PostHooks:    []hooks.Hook{saHook(counterAddr, mock.Increment())},
	}))
	require.False(t, r.Failed(), "message failed: %v", r.Err)

	n, err := mock.Count(c.caller(), counterAddr)
	require.NoError(t, err)
	require.Equal(t, int64(2), n.Int64())

	recorded, err := mock.TokenToBridge(c.caller(), targetAddr)
	require.NoError(t, err)
	require.Equal(t, tokenX, recorded)

	last, err := mock.LastCaller(c.caller(), targetAddr)
	require.NoError(t, err)
	require.Equal(t, c.smartAccount(), last)
	require.NotNil(t, r.Outbound)
}

func TestHookPhaseOrder(t *testing.T) {
	c := newTestChain(t, nil)
	inc := mock.Increment()
	r := c.process(t, c.hooksEnvelope(t, 1, nil, &hooks.Bundle{
		PreHooks:     []hooks.Hook{saHook(counterAddr, inc), saHook(counterAddr, inc)},
		MainCallHook: saHook(counterAddr, inc),
		PostHooks:    []hooks.Hook{saHook(counterAddr, inc)},
	}))
	require.False(t, r.Failed(), "message failed: %v", r.Err)
	require.Equal(t, []string{
		"enter pre", "pre[0]", "pre[1]",
		"enter main", "main[0]",
		"enter post", "post[0]",
		"enter bridge",
	}, c.trace)
}

func TestMessageAtomicity(t *testing.T) {
	c := newTestChain(t, nil)
	tokenX := c.dep.Coins[0]
	bundle := &hooks.Bundle{
		PreHooks:     []hooks.Hook{saHook(counterAddr, mock.Increment())},
		MainCallHook: saHook(targetAddr, mock.MainCall(big.NewInt(1), tokenX)),
		PostHooks: []hooks.Hook{
			saHook(counterAddr, mock.Increment()),
			{Perspective: hooks.FromSelf, ContractAddress: reverterAddr, Data: mock.Fail()},
		},
	}
	env := c.hooksEnvelope(t, 1, nil, bundle)
	env.Mint = []types.TokenAmount{{Asset: tokenX, Amount: big.NewInt(5)}}

	r := c.process(t, env)
	require.True(t, r.Failed())
	require.Nil(t, r.Outbound)
	require.Empty(t, r.Logs)

	var herr *hooks.HookError
	require.True(t, errors.As(r.Err, &herr), "got %v", r.Err)
	require.Equal(t, tracing.PhasePost, herr.Phase)
	require.Equal(t, 1, herr.Index)
	require.ErrorIs(t, r.Err, mock.ErrForcedRevert)

	n, _ := mock.Count(c.caller(), counterAddr)
	require.Zero(t, n.Sign())
	require.Zero(t, c.sdb.GetCodeSize(c.smartAccount()))
	require.False(t, mock.Touched(c.sdb, reverterAddr))
	bal, _ := token.Bind(tokenX, c.caller()).BalanceOf(c.dep.HookProxy)
	require.Zero(t, bal.Sign(), "inbound mint must be rolled back")
	consumed, _ := c.ledger().IsConsumed(env.OperationID)
	require.False(t, consumed)
	require.Empty(t, c.sink.Messages())

	// The operation was not consumed, a corrected delivery goes through.
	bundle.PostHooks = bundle.PostHooks[:1]
	retry := c.hooksEnvelope(t, 1, nil, bundle)
	retry.Mint = env.Mint
	r = c.process(t, retry)
	require.False(t, r.Failed(), "message failed: %v", r.Err)
	n, _ = mock.Count(c.caller(), counterAddr)
	require.Equal(t, int64(2), n.Int64())
}

func TestReplayRejected(t *testing.T) {
	c := newTestChain(t, nil)
	env := c.addLiquidity(7)

	require.False(t, c.process(t, env).Failed())
	r := c.process(t, env)
	require.True(t, r.Failed())
	require.ErrorIs(t, r.Err, custody.ErrOperationReplayed)

	require.Len(t, c.sink.Messages(), 1)
	bals, _ := pool.Bind(c.dep.Pool, c.caller()).Balances()
	require.Equal(t, new(big.Int).Add(c.seed[0], common.Big1), bals[0])
}

func TestInvalidEnvelope(t *testing.T) {
	c := newTestChain(t, nil)

	env := c.addLiquidity(1)
	env.MethodName = "addLiquidity(bytes)"
	r := c.process(t, env)
	require.True(t, r.Failed())
	require.ErrorIs(t, r.Err, types.ErrInvalidMethodName)

	env = c.addLiquidity(1)
	env.Mint[0].Amount = big.NewInt(0)
	r = c.process(t, env)
	require.ErrorIs(t, r.Err, types.ErrInvalidAmount)

	env = c.addLiquidity(1)
	env.Mint = append(env.Mint, types.TokenAmount{Asset: common.HexToAddress("0xdead"), Amount: common.Big1})
	r = c.process(t, env)
	require.ErrorIs(t, r.Err, custody.ErrMissingDescriptor)

	// Negative quantities are rejected before the envelope is hashed.
	env = c.addLiquidity(1)
	env.Mint[0].Amount = big.NewInt(-1)
	r = c.process(t, env)
	require.ErrorIs(t, r.Err, types.ErrInvalidAmount)
	require.Equal(t, common.Hash{}, r.EnvelopeHash)

	env = c.addLiquidity(1)
	env.Unlock = []types.TokenAmount{{Asset: c.dep.LPToken, Amount: big.NewInt(-3)}}
	r = c.process(t, env)
	require.ErrorIs(t, r.Err, types.ErrInvalidAmount)

	env = c.addLiquidity(1)
	env.GasLimit = big.NewInt(-1)
	r = c.process(t, env)
	require.ErrorIs(t, r.Err, types.ErrInvalidGasLimit)

	// Rejections leave the operation id unused.
	require.False(t, c.process(t, c.addLiquidity(1)).Failed())
}

func TestForeignSmartAccountUntouchable(t *testing.T) {
	c := newTestChain(t, nil)
	coin := c.dep.Coins[0]
	thief := common.HexToAddress("0x000000000000000000000000000000000000c0de")
	owned := c.smartAccount()

	// The remote caller parks five coins in their smart account.
	env := c.hooksEnvelope(t, 1, nil, &hooks.Bundle{
		MainCallHook: hooks.Hook{Perspective: hooks.FromSelf, ContractAddress: coin, Data: token.TransferCalldata(owned, big.NewInt(5))},
		PreHooks:     []hooks.Hook{saHook(counterAddr, mock.Increment())},
	})
	env.Mint = []types.TokenAmount{{Asset: coin, Amount: big.NewInt(5)}}
	require.False(t, c.process(t, env).Failed())

	// Another remote caller routes a proxy call to that account.
	drain := vm.Pack(account.AccountABI, "executeAsSelf", coin, big.NewInt(0), token.TransferCalldata(thief, big.NewInt(5)))
	env = c.hooksEnvelope(t, 2, nil, &hooks.Bundle{
		MainCallHook: hooks.Hook{Perspective: hooks.FromSelf, ContractAddress: owned, Data: drain},
	})
	env.Caller = "EQD-remote-mallory"
	r := c.process(t, env)
	require.True(t, r.Failed())
	require.ErrorIs(t, r.Err, account.ErrUnauthorized)

	bal, err := token.Bind(coin, c.caller()).BalanceOf(owned)
	require.NoError(t, err)
	require.Equal(t, int64(5), bal.Int64())
	bal, err = token.Bind(coin, c.caller()).BalanceOf(thief)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	// The owner still commands it.
	env = c.hooksEnvelope(t, 3, nil, &hooks.Bundle{
		MainCallHook: saHook(coin, token.TransferCalldata(thief, big.NewInt(2))),
	})
	require.False(t, c.process(t, env).Failed())
	bal, _ = token.Bind(coin, c.caller()).BalanceOf(thief)
	require.Equal(t, int64(2), bal.Int64())
}

func TestNewAssetDescriptor(t *testing.T) {
	c := newTestChain(t, nil)
	jetton := common.HexToAddress("0x000000000000000000000000000000000000b0aa")

	b, err := zap.NewBuilder().BridgeToken(jetton).Required(true).Build()
	require.NoError(t, err)
	calldata, err := proxy.Zap(b)
	require.NoError(t, err)
	env := envelope(1, c.dep.HookProxy, "zap", calldata)
	env.Mint = []types.TokenAmount{{Asset: jetton, Amount: big.NewInt(9)}}
	env.Meta = []types.AssetDescriptor{{Asset: jetton, Name: "Jetton", Symbol: "JET", Decimals: 9}}

	r := c.process(t, env)
	require.False(t, r.Failed(), "message failed: %v", r.Err)
	require.Len(t, r.Outbound.TokensBurned, 1)
	require.Equal(t, int64(9), r.Outbound.Total(jetton).Int64())

	supply, err := token.Bind(jetton, c.caller()).TotalSupply()
	require.NoError(t, err)
	require.Zero(t, supply.Sign())
}

// TestCustodyConservation checks after every message that wrapped supply
// equals minted minus burned, and that custody holds exactly what it has
// recorded as locked.
func TestCustodyConservation(t *testing.T) {
	c := newTestChain(t, nil)
	minted := map[common.Address]*big.Int{}
	for i, coin := range c.dep.Coins {
		minted[coin] = new(big.Int).Set(c.seed[i])
	}

	check := func() {
		t.Helper()
		for coin, total := range minted {
			supply, err := token.Bind(coin, c.caller()).TotalSupply()
			require.NoError(t, err)
			burned, err := c.ledger().BurnedOf(coin)
			require.NoError(t, err)
			require.Zero(t, new(big.Int).Sub(total, burned).Cmp(supply), "coin %v: supply %v, minted %v, burned %v", coin, supply, total, burned)
		}
		held, err := token.Bind(c.dep.LPToken, c.caller()).BalanceOf(c.dep.Custody)
		require.NoError(t, err)
		locked, err := c.ledger().LockedOf(c.dep.LPToken)
		require.NoError(t, err)
		require.Zero(t, locked.Cmp(held), "custody holds %v share tokens, recorded %v", held, locked)
	}
	apply := func(env *types.Envelope) *types.Receipt {
		t.Helper()
		r := c.process(t, env)
		require.False(t, r.Failed(), "message failed: %v", r.Err)
		for _, ta := range env.Mint {
			minted[ta.Asset].Add(minted[ta.Asset], ta.Amount)
		}
		check()
		return r
	}

	r := apply(c.addLiquidity(1))
	shares := r.Outbound.TokensLocked[0].Amount

	b, err := zap.NewBuilder().BridgeToken(c.dep.Coins[0]).Required(true).Build()
	require.NoError(t, err)
	calldata, err := proxy.Zap(b)
	require.NoError(t, err)
	env := envelope(2, c.dep.HookProxy, "zap", calldata)
	env.Mint = []types.TokenAmount{{Asset: c.dep.Coins[0], Amount: big.NewInt(3)}}
	r = apply(env)
	require.Equal(t, int64(3), r.Outbound.Total(c.dep.Coins[0]).Int64())

	zero := big.NewInt(0)
	env = envelope(3, c.dep.CurveProxy, "removeLiquidity",
		proxy.RemoveLiquidity(c.dep.Pool, shares, [pool.N]*big.Int{zero, zero}))
	env.Unlock = []types.TokenAmount{{Asset: c.dep.LPToken, Amount: shares}}
	r = apply(env)
	require.Len(t, r.Outbound.TokensBurned, 2)

	// Unlocking more than custody holds fails and moves nothing.
	env = envelope(4, c.dep.CurveProxy, "removeLiquidity",
		proxy.RemoveLiquidity(c.dep.Pool, shares, [pool.N]*big.Int{zero, zero}))
	env.Unlock = []types.TokenAmount{{Asset: c.dep.LPToken, Amount: shares}}
	r = c.process(t, env)
	require.ErrorIs(t, r.Err, custody.ErrInsufficientCustody)
	check()
}

func TestConcurrentAccountCreation(t *testing.T) {
	c := newTestChain(t, nil)
	const n = 8

	receipts := make([]*types.Receipt, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		env := c.hooksEnvelope(t, uint64(i+1), nil, &hooks.Bundle{
			MainCallHook: saHook(counterAddr, mock.Increment()),
		})
		g.Go(func() error {
			r, err := c.proc.Process(context.Background(), env)
			receipts[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())

	created := account.FactoryABI.Events["AccountCreated"].ID
	var creations int
	for _, r := range receipts {
		require.False(t, r.Failed(), "message failed: %v", r.Err)
		for _, l := range r.Logs {
			if l.Address == c.dep.Factory && l.Topics[0] == created {
				creations++
			}
		}
	}
	require.Equal(t, 1, creations)
	require.NotZero(t, c.sdb.GetCodeSize(c.smartAccount()))

	count, err := mock.CountOf(c.caller(), counterAddr, c.smartAccount())
	require.NoError(t, err)
	require.Equal(t, int64(n), count.Int64())
	require.Len(t, c.sink.Messages(), n)
}

func TestEnforcementFromConfig(t *testing.T) {
	c := newTestChain(t, func(cfg *Config, _ *Genesis) { cfg.BridgeEnforcement = zap.EnforceAtEnd })

	b, err := zap.NewBuilder().BridgeToken(c.dep.Coins[0], c.dep.Coins[1]).Required(true).Build()
	require.NoError(t, err)
	calldata, err := proxy.Zap(b)
	require.NoError(t, err)
	env := envelope(1, c.dep.HookProxy, "zap", calldata)
	env.Mint = []types.TokenAmount{{Asset: c.dep.Coins[0], Amount: big.NewInt(2)}}

	r := c.process(t, env)
	require.False(t, r.Failed(), "message failed: %v", r.Err)
	require.Len(t, r.Outbound.TokensBurned, 1)

	c = newTestChain(t, nil)
	env = envelope(1, c.dep.HookProxy, "zap", calldata)
	env.Mint = []types.TokenAmount{{Asset: c.dep.Coins[0], Amount: big.NewInt(2)}}
	r = c.process(t, env)
	require.ErrorIs(t, r.Err, zap.ErrBridgeUnavailable)
}

func TestProcessBatchAndOutbox(t *testing.T) {
	sdb, err := state.New(common.Hash{}, state.NewDatabaseForTesting())
	require.NoError(t, err)
	dep, err := DefaultGenesis().Commit(sdb)
	require.NoError(t, err)
	outbox := bridge.NewDBOutbox(memorydb.New())
	proc, err := NewProcessor(DefaultConfig, sdb, dep, outbox)
	require.NoError(t, err)
	require.Equal(t, "native", proc.Engine())

	c := &testChain{dep: dep}
	receipts, err := proc.ProcessBatch(context.Background(), []*types.Envelope{c.addLiquidity(1), c.addLiquidity(1), c.addLiquidity(2)})
	require.NoError(t, err)
	require.Len(t, receipts, 3)
	require.False(t, receipts[0].Failed())
	require.True(t, receipts[1].Failed())
	require.False(t, receipts[2].Failed())
	for i, r := range receipts {
		require.Equal(t, i, r.Index)
	}

	pending, err := outbox.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = proc.ProcessBatch(ctx, []*types.Envelope{c.addLiquidity(3)})
	require.ErrorIs(t, err, context.Canceled)

	failing := bridge.SinkFunc(func(context.Context, *types.OutboundMessage) error { return errors.New("sink down") })
	proc, err = NewProcessor(DefaultConfig, sdb, dep, failing)
	require.NoError(t, err)
	r, err := proc.Process(context.Background(), c.addLiquidity(4))
	require.Error(t, err)
	require.False(t, r.Failed(), "state is applied before publishing")

	_, err = NewProcessor(DefaultConfig, nil, dep, nil)
	require.ErrorIs(t, err, ErrNoState)
}
