package pool

import (
	"math/big"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
)

// Binding is a typed client for a pool instance.
type Binding struct {
	Address common.Address
	caller  vm.Caller
}

// Bind returns a binding for the pool at addr.
func Bind(addr common.Address, caller vm.Caller) *Binding {
	return &Binding{Address: addr, caller: caller}
}

func (b *Binding) invoke(static bool, method string, args ...interface{}) ([]interface{}, error) {
	var (
		input = vm.Pack(ABI, method, args...)
		out   []byte
		err   error
	)
	if static {
		out, err = b.caller.StaticCall(b.Address, input)
	} else {
		out, err = b.caller.Call(b.Address, input, nil)
	}
	if err != nil {
		return nil, err
	}
	return ABI.Unpack(method, out)
}

// Coins returns the two pool coins.
func (b *Binding) Coins() ([N]common.Address, error) {
	var coins [N]common.Address
	for i := 0; i < N; i++ {
		out, err := b.invoke(true, "coins", big.NewInt(int64(i)))
		if err != nil {
			return coins, err
		}
		coins[i] = out[0].(common.Address)
	}
	return coins, nil
}

// Balances returns the pool reserves.
func (b *Binding) Balances() ([N]*big.Int, error) {
	var bals [N]*big.Int
	for i := 0; i < N; i++ {
		out, err := b.invoke(true, "balances", big.NewInt(int64(i)))
		if err != nil {
			return bals, err
		}
		bals[i] = out[0].(*big.Int)
	}
	return bals, nil
}

// LPToken returns the address of the pool share token.
func (b *Binding) LPToken() (common.Address, error) {
	out, err := b.invoke(true, "lp_token")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// GetDy quotes an exchange of dx coin i into coin j.
func (b *Binding) GetDy(i, j int, dx *big.Int) (*big.Int, error) {
	out, err := b.invoke(true, "get_dy", big.NewInt(int64(i)), big.NewInt(int64(j)), dx)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// AddLiquidity deposits amounts and returns the minted share amount. The
// caller must have approved the pool for both coins.
func (b *Binding) AddLiquidity(amounts [N]*big.Int, minMint *big.Int) (*big.Int, error) {
	out, err := b.invoke(false, "add_liquidity", amounts, minMint)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// RemoveLiquidity burns amount shares and returns the withdrawn coins.
func (b *Binding) RemoveLiquidity(amount *big.Int, minAmounts [N]*big.Int) ([N]*big.Int, error) {
	out, err := b.invoke(false, "remove_liquidity", amount, minAmounts)
	if err != nil {
		return [N]*big.Int{}, err
	}
	return out[0].([N]*big.Int), nil
}

// Exchange swaps dx of coin i into coin j and returns the received amount.
func (b *Binding) Exchange(i, j int, dx, minDy *big.Int) (*big.Int, error) {
	out, err := b.invoke(false, "exchange", big.NewInt(int64(i)), big.NewInt(int64(j)), dx, minDy)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}
