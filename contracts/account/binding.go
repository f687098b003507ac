package account

import (
	"math/big"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FactoryBinding is a typed client for the factory.
type FactoryBinding struct {
	Address common.Address
	caller  vm.Caller
}

// Bind returns a factory binding for the factory at addr.
func Bind(addr common.Address, caller vm.Caller) *FactoryBinding {
	return &FactoryBinding{Address: addr, caller: caller}
}

// PredictAddress calls the on-chain derivation.
func (f *FactoryBinding) PredictAddress(remoteCaller string, application common.Address) (common.Address, error) {
	out, err := f.caller.StaticCall(f.Address, vm.Pack(FactoryABI, "predictAddress", remoteCaller, application))
	if err != nil {
		return common.Address{}, err
	}
	vals, err := FactoryABI.Unpack("predictAddress", out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

// GetOrCreate returns the account of (remoteCaller, application),
// instantiating it on first use.
func (f *FactoryBinding) GetOrCreate(remoteCaller string, application common.Address) (common.Address, error) {
	out, err := f.caller.Call(f.Address, vm.Pack(FactoryABI, "getOrCreate", remoteCaller, application), nil)
	if err != nil {
		return common.Address{}, err
	}
	vals, err := FactoryABI.Unpack("getOrCreate", out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

// Authorize adds executor to the allow-list. Owner only.
func (f *FactoryBinding) Authorize(executor common.Address) error {
	_, err := f.caller.Call(f.Address, vm.Pack(FactoryABI, "authorize", executor), nil)
	return err
}

// Revoke removes executor from the allow-list. Owner only.
func (f *FactoryBinding) Revoke(executor common.Address) error {
	_, err := f.caller.Call(f.Address, vm.Pack(FactoryABI, "revoke", executor), nil)
	return err
}

// IsAuthorized reports whether executor is allow-listed.
func (f *FactoryBinding) IsAuthorized(executor common.Address) (bool, error) {
	out, err := f.caller.StaticCall(f.Address, vm.Pack(FactoryABI, "isAuthorized", executor))
	if err != nil {
		return false, err
	}
	vals, err := FactoryABI.Unpack("isAuthorized", out)
	if err != nil {
		return false, err
	}
	return vals[0].(bool), nil
}

// AccountBinding is a typed client for a smart account.
type AccountBinding struct {
	Address common.Address
	caller  vm.Caller
}

// BindAccount returns a binding for the account at addr.
func BindAccount(addr common.Address, caller vm.Caller) *AccountBinding {
	return &AccountBinding{Address: addr, caller: caller}
}

// ExecuteAsSelf makes the account call target with data, sending value
// along to the account and on to target.
func (a *AccountBinding) ExecuteAsSelf(target common.Address, value *big.Int, data []byte) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	if data == nil {
		data = []byte{}
	}
	var sent *uint256.Int
	if value.Sign() > 0 {
		var overflow bool
		if sent, overflow = uint256.FromBig(value); overflow {
			return nil, vm.Revertf("smart account: value overflow")
		}
	}
	out, err := a.caller.Call(a.Address, vm.Pack(AccountABI, "executeAsSelf", target, value, data), sent)
	if err != nil {
		return nil, err
	}
	vals, err := AccountABI.Unpack("executeAsSelf", out)
	if err != nil {
		return nil, err
	}
	return vals[0].([]byte), nil
}
