package proxy

import (
	"math/big"

	"github.com/crossledger/appproxy/contracts/pool"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
)

type addLiquidityArgs struct {
	Pool          common.Address
	Amounts       [pool.N]*big.Int
	MinMintAmount *big.Int
}

type removeLiquidityArgs struct {
	Pool       common.Address
	Amount     *big.Int
	MinAmounts [pool.N]*big.Int
}

type exchangeArgs struct {
	Pool  common.Address
	I     *big.Int
	J     *big.Int
	Dx    *big.Int
	MinDy *big.Int
}

var (
	addLiquidityABI    = mustArgs("address pool", "uint256[2] amounts", "uint256 minMintAmount")
	removeLiquidityABI = mustArgs("address pool", "uint256 amount", "uint256[2] minAmounts")
	exchangeABI        = mustArgs("address pool", "int128 i", "int128 j", "uint256 dx", "uint256 minDy")
)

// CurveActions is the action table of the stable-swap proxy.
var CurveActions = NewTable(
	NewAction("addLiquidity", addLiquidityABI, addLiquidity),
	NewAction("removeLiquidity", removeLiquidityABI, removeLiquidity),
	NewAction("exchange", exchangeABI, exchange),
)

// CurveBlueprint deploys the stable-swap proxy.
var CurveBlueprint = vm.Register(&vm.Blueprint{
	Name:     "curve-proxy",
	Contract: CurveActions,
	Init:     initProxy,
})

// addLiquidity deposits the minted coins into the pool and sends the share
// tokens back to the caller's chain. Share tokens are always native here.
func addLiquidity(inv *Invocation, a *addLiquidityArgs) error {
	p := pool.Bind(a.Pool, inv.Ctx)
	coins, err := p.Coins()
	if err != nil {
		return err
	}
	if err := approveAll(inv, a.Pool, coins, a.Amounts); err != nil {
		return err
	}
	minted, err := p.AddLiquidity(a.Amounts, a.MinMintAmount)
	if err != nil {
		return err
	}
	lp, err := p.LPToken()
	if err != nil {
		return err
	}
	inv.Delta.Lock(lp, minted)
	return nil
}

func removeLiquidity(inv *Invocation, a *removeLiquidityArgs) error {
	p := pool.Bind(a.Pool, inv.Ctx)
	coins, err := p.Coins()
	if err != nil {
		return err
	}
	out, err := p.RemoveLiquidity(a.Amount, a.MinAmounts)
	if err != nil {
		return err
	}
	ledger := inv.ledgerBinding()
	for i, coin := range coins {
		if err := inv.Delta.Fold(ledger, coin, out[i]); err != nil {
			return err
		}
	}
	return nil
}

func exchange(inv *Invocation, a *exchangeArgs) error {
	i, j := coinIndex(a.I), coinIndex(a.J)
	if i < 0 || j < 0 || i == j {
		return vm.Revert(pool.ErrInvalidCoin)
	}
	p := pool.Bind(a.Pool, inv.Ctx)
	coins, err := p.Coins()
	if err != nil {
		return err
	}
	if err := token.Bind(coins[i], inv.Ctx).Approve(a.Pool, a.Dx); err != nil {
		return err
	}
	dy, err := p.Exchange(i, j, a.Dx, a.MinDy)
	if err != nil {
		return err
	}
	return inv.Delta.Fold(inv.ledgerBinding(), coins[j], dy)
}

func approveAll(inv *Invocation, spender common.Address, coins [pool.N]common.Address, amounts [pool.N]*big.Int) error {
	for i, coin := range coins {
		if amounts[i] == nil || amounts[i].Sign() == 0 {
			continue
		}
		if err := token.Bind(coin, inv.Ctx).Approve(spender, amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

func coinIndex(v *big.Int) int {
	if v == nil || !v.IsInt64() || v.Int64() < 0 || v.Int64() >= pool.N {
		return -1
	}
	return int(v.Int64())
}
