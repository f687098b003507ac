// Package custody implements the custody ledger: it owns the wrapped
// representations of remote assets, holds locked local assets and records
// every asset the application proxies hand back for the remote side.
package custody

import (
	"errors"

	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotOwner             = errors.New("custody: caller is not the ledger owner")
	ErrInsufficientCustody  = errors.New("custody: insufficient custody")
	ErrMissingDescriptor    = errors.New("custody: asset is not registered and no descriptor was provided")
	ErrUnknownAsset         = errors.New("custody: asset is not a wrapped asset")
	ErrOperationReplayed    = errors.New("custody: operation already processed")
	ErrUndeclaredDeposit    = errors.New("custody: reported amount exceeds deposited funds")
	ErrNoActiveMessage      = errors.New("custody: no message in progress")
	ErrMessageAlreadySent   = errors.New("custody: outbound message already sent for operation")
	ErrNFTNotHeld           = errors.New("custody: nft is not held by custody")
	ErrNFTAlreadyLocked     = errors.New("custody: nft already locked")
	ErrCollectionIsNotToken = errors.New("custody: asset kind mismatch")
)

const abiJSON = `[
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"isWrapped","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isConsumed","stateMutability":"view","inputs":[{"name":"operationId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"lockedOf","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"burnedOf","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isNFTLocked","stateMutability":"view","inputs":[{"name":"collection","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"consume","inputs":[{"name":"operationId","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"registerAsset","inputs":[{"name":"asset","type":"address"},{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"decimals","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"registerCollection","inputs":[{"name":"collection","type":"address"},{"name":"name","type":"string"},{"name":"symbol","type":"string"}],"outputs":[]},
	{"type":"function","name":"mint","inputs":[{"name":"asset","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"unlock","inputs":[{"name":"asset","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"mintNFT","inputs":[{"name":"collection","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"unlockNFT","inputs":[{"name":"collection","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"recordLock","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"recordBurn","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"execute","inputs":[{"name":"target","type":"address"},{"name":"data","type":"bytes"}],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"sendMessage","inputs":[
		{"name":"payload","type":"bytes"},
		{"name":"tokensLocked","type":"tuple[]","components":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}]},
		{"name":"tokensBurned","type":"tuple[]","components":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}]},
		{"name":"nftTokensLocked","type":"tuple[]","components":[{"name":"collection","type":"address"},{"name":"tokenId","type":"uint256"}]},
		{"name":"nftTokensBurned","type":"tuple[]","components":[{"name":"collection","type":"address"},{"name":"tokenId","type":"uint256"}]}
	],"outputs":[]},
	{"type":"event","name":"AssetRegistered","anonymous":false,"inputs":[{"name":"asset","type":"address","indexed":true},{"name":"nft","type":"bool","indexed":false}]},
	{"type":"event","name":"MessageSent","anonymous":false,"inputs":[
		{"name":"operationId","type":"bytes32","indexed":true},
		{"name":"sender","type":"address","indexed":true},
		{"name":"targetAddress","type":"string","indexed":false},
		{"name":"shardsKey","type":"uint64","indexed":false},
		{"name":"payload","type":"bytes","indexed":false},
		{"name":"tokensLocked","type":"tuple[]","indexed":false,"components":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}]},
		{"name":"tokensBurned","type":"tuple[]","indexed":false,"components":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}]},
		{"name":"nftTokensLocked","type":"tuple[]","indexed":false,"components":[{"name":"collection","type":"address"},{"name":"tokenId","type":"uint256"}]},
		{"name":"nftTokensBurned","type":"tuple[]","indexed":false,"components":[{"name":"collection","type":"address"},{"name":"tokenId","type":"uint256"}]}
	]}
]`

// ABI is the contract interface of the ledger.
var ABI = vm.MustParseABI(abiJSON)

// Storage layout.
var (
	slotOwner       = vm.Slot(0)
	slotWrapped     = vm.Slot(1) // mapping(address => bool)
	slotConsumed    = vm.Slot(2) // mapping(bytes32 => bool)
	slotLocked      = vm.Slot(3) // mapping(address => uint256)
	slotNFTLocked   = vm.Slot(4) // mapping(address => mapping(uint256 => bool))
	slotBurned      = vm.Slot(5) // mapping(address => uint256)
	slotCollections = vm.Slot(6) // mapping(address => bool)
	slotSent        = vm.Slot(7) // mapping(bytes32 => bool)
)

var ownerArgs abi.Arguments

func init() {
	addr, _ := abi.NewType("address", "", nil)
	ownerArgs = abi.Arguments{{Type: addr}}
}

// Blueprint deploys the ledger. It is a system contract: it places wrapped
// assets at the local addresses chosen by the remote side.
var Blueprint = vm.Register(&vm.Blueprint{
	Name:     "custody-ledger",
	Contract: Ledger{},
	System:   true,
	Init: func(ctx *vm.CallContext, args []byte) error {
		vals, err := ownerArgs.Unpack(args)
		if err != nil {
			return vm.Revertf("custody: invalid constructor arguments: %v", err)
		}
		return ctx.SetAddress(slotOwner, vals[0].(common.Address))
	},
})

// ConstructorArgs encodes the ledger owner, the account allowed to deliver
// inbound messages.
func ConstructorArgs(owner common.Address) []byte {
	enc, err := ownerArgs.Pack(owner)
	if err != nil {
		panic(err)
	}
	return enc
}

// Ledger is the native custody ledger.
type Ledger struct{}

// Run implements vm.Contract.
func (Ledger) Run(ctx *vm.CallContext, input []byte) ([]byte, error) {
	return methods.Run(ctx, input)
}

func wrappedSlot(asset common.Address) common.Hash {
	return vm.MappingSlot(vm.AddressKey(asset), slotWrapped)
}

func collectionSlot(asset common.Address) common.Hash {
	return vm.MappingSlot(vm.AddressKey(asset), slotCollections)
}

func lockedSlot(asset common.Address) common.Hash {
	return vm.MappingSlot(vm.AddressKey(asset), slotLocked)
}

func burnedSlot(asset common.Address) common.Hash {
	return vm.MappingSlot(vm.AddressKey(asset), slotBurned)
}

func consumedSlot(op common.Hash) common.Hash {
	return vm.MappingSlot(op, slotConsumed)
}

func sentSlot(op common.Hash) common.Hash {
	return vm.MappingSlot(op, slotSent)
}

func nftLockedSlot(collection common.Address, id common.Hash) common.Hash {
	return vm.MappingSlot(id, vm.MappingSlot(vm.AddressKey(collection), slotNFTLocked))
}

func onlyOwner(ctx *vm.CallContext) error {
	if ctx.Caller != ctx.GetAddress(slotOwner) {
		return vm.Revert(ErrNotOwner)
	}
	return nil
}
