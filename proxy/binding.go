package proxy

import (
	"math/big"

	"github.com/crossledger/appproxy/contracts/pool"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/hooks"
	"github.com/crossledger/appproxy/zap"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Calldata builds the message calldata of an action.
func Calldata(action string, first, second []byte) []byte {
	sel := types.Selector(action)
	return append(sel[:], types.PackArguments(first, second)...)
}

func pack(args abi.Arguments, vals ...interface{}) []byte {
	enc, err := args.Pack(vals...)
	if err != nil {
		panic(err)
	}
	return enc
}

// AddLiquidity encodes an addLiquidity message.
func AddLiquidity(p common.Address, amounts [pool.N]*big.Int, minMint *big.Int) []byte {
	return Calldata("addLiquidity", pack(addLiquidityABI, p, amounts, minMint), nil)
}

// RemoveLiquidity encodes a removeLiquidity message.
func RemoveLiquidity(p common.Address, amount *big.Int, minAmounts [pool.N]*big.Int) []byte {
	return Calldata("removeLiquidity", pack(removeLiquidityABI, p, amount, minAmounts), nil)
}

// Exchange encodes an exchange message swapping coin i for coin j.
func Exchange(p common.Address, i, j int, dx, minDy *big.Int) []byte {
	return Calldata("exchange", pack(exchangeABI, p, big.NewInt(int64(i)), big.NewInt(int64(j)), dx, minDy), nil)
}

// ExecuteHooks encodes an executeHooks message.
func ExecuteHooks(payload []byte, b *hooks.Bundle) ([]byte, error) {
	if payload == nil {
		payload = []byte{}
	}
	enc, err := b.Encode()
	if err != nil {
		return nil, err
	}
	return Calldata("executeHooks", pack(executeHooksABI, payload), enc), nil
}

// Zap encodes a zap message.
func Zap(b *zap.Batch) ([]byte, error) {
	enc, err := b.Encode()
	if err != nil {
		return nil, err
	}
	return Calldata("zap", enc, nil), nil
}
