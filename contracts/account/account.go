// Package account implements the smart-account factory and the smart
// account it instantiates. A smart account is the on-chain identity of a
// remote caller inside one application, derived deterministically from the
// pair (remote caller, application).
package account

import (
	"errors"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrUnauthorized = errors.New("smart account: caller is not authorized")
	ErrNotAdmin     = errors.New("smart account factory: caller is not the owner")
	ErrNoApp        = errors.New("smart account factory: zero application")

	ErrValueNotProvided = errors.New("smart account: forwarded value not provided")
)

const factoryABIJSON = `[
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"predictAddress","stateMutability":"view","inputs":[{"name":"remoteCaller","type":"string"},{"name":"application","type":"address"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getOrCreate","inputs":[{"name":"remoteCaller","type":"string"},{"name":"application","type":"address"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"authorize","inputs":[{"name":"executor","type":"address"}],"outputs":[]},
	{"type":"function","name":"revoke","inputs":[{"name":"executor","type":"address"}],"outputs":[]},
	{"type":"function","name":"isAuthorized","stateMutability":"view","inputs":[{"name":"executor","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"AccountCreated","anonymous":false,"inputs":[{"name":"account","type":"address","indexed":true},{"name":"application","type":"address","indexed":true},{"name":"remoteCaller","type":"string","indexed":false}]}
]`

const accountABIJSON = `[
	{"type":"function","name":"factory","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"application","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"executeAsSelf","inputs":[{"name":"contractAddress","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[{"name":"","type":"bytes"}]}
]`

var (
	// FactoryABI is the contract interface of the factory.
	FactoryABI = vm.MustParseABI(factoryABIJSON)

	// AccountABI is the contract interface of a smart account.
	AccountABI = vm.MustParseABI(accountABIJSON)
)

var (
	addressArgs  abi.Arguments
	saltArgs     abi.Arguments
	accountCArgs abi.Arguments
)

func init() {
	str, _ := abi.NewType("string", "", nil)
	addr, _ := abi.NewType("address", "", nil)
	addressArgs = abi.Arguments{{Type: addr}}
	saltArgs = abi.Arguments{{Type: str}, {Type: addr}}
	accountCArgs = abi.Arguments{{Type: addr}, {Type: addr}}
}

// Key identifies a smart account. The pair is the complete derivation
// input, nothing else influences the account address.
type Key struct {
	RemoteCaller string
	Application  common.Address
}

// Salt returns keccak256(abi.encode(remoteCaller, application)).
func (k Key) Salt() common.Hash {
	enc, err := saltArgs.Pack(k.RemoteCaller, k.Application)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// Address returns the account address under the given factory.
func (k Key) Address(factory common.Address) common.Address {
	return vm.Create2Address(factory, k.Salt(), AccountBlueprint)
}

// PredictAddress derives the account address of (remoteCaller,
// application) under factory. It is pure and valid before the account
// exists.
func PredictAddress(factory common.Address, remoteCaller string, application common.Address) common.Address {
	return Key{RemoteCaller: remoteCaller, Application: application}.Address(factory)
}

// FactoryConstructorArgs encodes the factory owner.
func FactoryConstructorArgs(owner common.Address) []byte {
	enc, err := addressArgs.Pack(owner)
	if err != nil {
		panic(err)
	}
	return enc
}
