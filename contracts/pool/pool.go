// Package pool implements a two-coin liquidity pool with a Curve-style
// interface. It is the protocol wrapped by the Curve application proxy.
package pool

import (
	"errors"
	"math/big"

	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const abiJSON = `[
	{"type":"function","name":"coins","stateMutability":"view","inputs":[{"name":"i","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"balances","stateMutability":"view","inputs":[{"name":"i","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"lp_token","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"get_dy","stateMutability":"view","inputs":[{"name":"i","type":"int128"},{"name":"j","type":"int128"},{"name":"dx","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"add_liquidity","inputs":[{"name":"amounts","type":"uint256[2]"},{"name":"min_mint_amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"remove_liquidity","inputs":[{"name":"amount","type":"uint256"},{"name":"min_amounts","type":"uint256[2]"}],"outputs":[{"name":"","type":"uint256[2]"}]},
	{"type":"function","name":"exchange","inputs":[{"name":"i","type":"int128"},{"name":"j","type":"int128"},{"name":"dx","type":"uint256"},{"name":"min_dy","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// Revert reasons of the pool.
var (
	ErrAddSlippage      = errors.New("Slippage screwed you")
	ErrExchangeSlippage = errors.New("Exchange resulted in fewer coins than expected")
	ErrRemoveSlippage   = errors.New("Withdrawal resulted in fewer coins than expected")
	ErrInitialDeposit   = errors.New("initial deposit requires all coins")
	ErrInvalidCoin      = errors.New("invalid coin index")
	ErrEmptyPool        = errors.New("pool has no liquidity")
)

// N is the number of coins in the pool.
const N = 2

// ABI is the contract interface of the pool.
var ABI = vm.MustParseABI(abiJSON)

// Storage layout: coins at slots 0 and 1, balances at slots 2 and 3.
var slotLPToken = vm.Slot(4)

func coinSlot(i int) common.Hash    { return vm.Slot(uint64(i)) }
func balanceSlot(i int) common.Hash { return vm.Slot(2 + uint64(i)) }

var constructorArgs abi.Arguments

func init() {
	addr, _ := abi.NewType("address", "", nil)
	str, _ := abi.NewType("string", "", nil)
	constructorArgs = abi.Arguments{{Type: addr}, {Type: addr}, {Type: str}, {Type: str}}
}

// Blueprint deploys a pool together with its share token.
var Blueprint = vm.Register(&vm.Blueprint{
	Name:     "pool2",
	Contract: Pool{},
	Init:     initPool,
})

// ConstructorArgs encodes the pool constructor arguments.
func ConstructorArgs(coin0, coin1 common.Address, lpName, lpSymbol string) []byte {
	enc, err := constructorArgs.Pack(coin0, coin1, lpName, lpSymbol)
	if err != nil {
		panic(err)
	}
	return enc
}

// LPTokenAddress returns the address of the share token of the pool at addr.
func LPTokenAddress(addr common.Address) common.Address {
	return vm.Create2Address(addr, common.Hash{}, token.Blueprint)
}

func initPool(ctx *vm.CallContext, args []byte) error {
	vals, err := constructorArgs.Unpack(args)
	if err != nil {
		return vm.Revertf("pool: invalid constructor arguments: %v", err)
	}
	for i := 0; i < N; i++ {
		if err := ctx.SetAddress(coinSlot(i), vals[i].(common.Address)); err != nil {
			return err
		}
	}
	lp, err := ctx.Create2(common.Hash{}, token.Blueprint, token.ConstructorArgs(vals[2].(string), vals[3].(string), 18, ctx.Address))
	if err != nil {
		return err
	}
	return ctx.SetAddress(slotLPToken, lp)
}

// Pool is the native pool implementation.
type Pool struct{}

var methods = vm.NewDispatcher(ABI, map[string]vm.Method{
	"coins": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		i, err := coinIndex(args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		return []interface{}{ctx.GetAddress(coinSlot(i))}, nil
	},
	"balances": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		i, err := coinIndex(args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		return []interface{}{ctx.GetBig(balanceSlot(i))}, nil
	},
	"lp_token": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetAddress(slotLPToken)}, nil
	},
	"get_dy":           getDy,
	"add_liquidity":    addLiquidity,
	"remove_liquidity": removeLiquidity,
	"exchange":         exchange,
})

// Run implements vm.Contract.
func (Pool) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return methods.Run(ctx, input)
}

func coinIndex(v *big.Int) (int, error) {
	if !v.IsInt64() || v.Int64() < 0 || v.Int64() >= N {
		return 0, vm.Revert(ErrInvalidCoin)
	}
	return int(v.Int64()), nil
}

func pair(i, j *big.Int) (int, int, error) {
	a, err := coinIndex(i)
	if err != nil {
		return 0, 0, err
	}
	b, err := coinIndex(j)
	if err != nil {
		return 0, 0, err
	}
	if a == b {
		return 0, 0, vm.Revert(ErrInvalidCoin)
	}
	return a, b, nil
}

// quote computes the constant-product output for dx of coin i.
func quote(ctx *vm.CallContext, i, j int, dx *big.Int) *big.Int {
	bi, bj := ctx.GetBig(balanceSlot(i)), ctx.GetBig(balanceSlot(j))
	den := new(big.Int).Add(bi, dx)
	if den.Sign() == 0 {
		return new(big.Int)
	}
	dy := new(big.Int).Mul(bj, dx)
	return dy.Div(dy, den)
}

func getDy(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	i, j, err := pair(args[0].(*big.Int), args[1].(*big.Int))
	if err != nil {
		return nil, err
	}
	return []interface{}{quote(ctx, i, j, args[2].(*big.Int))}, nil
}

func addLiquidity(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	amounts, minMint := args[0].([2]*big.Int), args[1].(*big.Int)

	lp := token.Bind(ctx.GetAddress(slotLPToken), ctx)
	supply, err := lp.TotalSupply()
	if err != nil {
		return nil, err
	}
	var (
		deposit = new(big.Int)
		reserve = new(big.Int)
	)
	for i := 0; i < N; i++ {
		if supply.Sign() == 0 && amounts[i].Sign() == 0 {
			return nil, vm.Revert(ErrInitialDeposit)
		}
		deposit.Add(deposit, amounts[i])
		reserve.Add(reserve, ctx.GetBig(balanceSlot(i)))
	}
	minted := new(big.Int).Set(deposit)
	if supply.Sign() > 0 && reserve.Sign() > 0 {
		minted.Mul(supply, deposit).Div(minted, reserve)
	}
	if minted.Sign() == 0 || minted.Cmp(minMint) < 0 {
		return nil, vm.Revert(ErrAddSlippage)
	}
	for i := 0; i < N; i++ {
		if amounts[i].Sign() == 0 {
			continue
		}
		coin := token.Bind(ctx.GetAddress(coinSlot(i)), ctx)
		if err := coin.TransferFrom(ctx.Caller, ctx.Address, amounts[i]); err != nil {
			return nil, err
		}
		bal := ctx.GetBig(balanceSlot(i))
		if err := ctx.SetBig(balanceSlot(i), bal.Add(bal, amounts[i])); err != nil {
			return nil, err
		}
	}
	if err := lp.Mint(ctx.Caller, minted); err != nil {
		return nil, err
	}
	return []interface{}{minted}, nil
}

func removeLiquidity(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	amount, minAmounts := args[0].(*big.Int), args[1].([2]*big.Int)

	lp := token.Bind(ctx.GetAddress(slotLPToken), ctx)
	supply, err := lp.TotalSupply()
	if err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return nil, vm.Revert(ErrEmptyPool)
	}
	var out [N]*big.Int
	for i := 0; i < N; i++ {
		bal := ctx.GetBig(balanceSlot(i))
		out[i] = new(big.Int).Mul(bal, amount)
		out[i].Div(out[i], supply)
		if out[i].Cmp(minAmounts[i]) < 0 {
			return nil, vm.Revert(ErrRemoveSlippage)
		}
	}
	if err := lp.BurnFrom(ctx.Caller, amount); err != nil {
		return nil, err
	}
	for i := 0; i < N; i++ {
		bal := ctx.GetBig(balanceSlot(i))
		if err := ctx.SetBig(balanceSlot(i), bal.Sub(bal, out[i])); err != nil {
			return nil, err
		}
		if out[i].Sign() == 0 {
			continue
		}
		if err := token.Bind(ctx.GetAddress(coinSlot(i)), ctx).Transfer(ctx.Caller, out[i]); err != nil {
			return nil, err
		}
	}
	return []interface{}{out}, nil
}

func exchange(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	i, j, err := pair(args[0].(*big.Int), args[1].(*big.Int))
	if err != nil {
		return nil, err
	}
	dx, minDy := args[2].(*big.Int), args[3].(*big.Int)

	dy := quote(ctx, i, j, dx)
	if dy.Sign() == 0 || dy.Cmp(minDy) < 0 {
		return nil, vm.Revert(ErrExchangeSlippage)
	}
	if err := token.Bind(ctx.GetAddress(coinSlot(i)), ctx).TransferFrom(ctx.Caller, ctx.Address, dx); err != nil {
		return nil, err
	}
	if err := token.Bind(ctx.GetAddress(coinSlot(j)), ctx).Transfer(ctx.Caller, dy); err != nil {
		return nil, err
	}
	bi, bj := ctx.GetBig(balanceSlot(i)), ctx.GetBig(balanceSlot(j))
	if err := ctx.SetBig(balanceSlot(i), bi.Add(bi, dx)); err != nil {
		return nil, err
	}
	if err := ctx.SetBig(balanceSlot(j), bj.Sub(bj, dy)); err != nil {
		return nil, err
	}
	return []interface{}{dy}, nil
}
