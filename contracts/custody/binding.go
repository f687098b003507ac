package custody

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Binding is a typed client for the ledger. The inbound side (owner) uses
// it to mint, unlock and deliver; proxies use it to report outbound assets.
type Binding struct {
	Address common.Address
	caller  vm.Caller
}

// Bind returns a binding for the ledger at addr.
func Bind(addr common.Address, caller vm.Caller) *Binding {
	return &Binding{Address: addr, caller: caller}
}

func (b *Binding) call(method string, args ...interface{}) ([]interface{}, error) {
	out, err := b.caller.Call(b.Address, vm.Pack(ABI, method, args...), nil)
	if err != nil {
		return nil, err
	}
	return ABI.Unpack(method, out)
}

func (b *Binding) view(method string, args ...interface{}) ([]interface{}, error) {
	out, err := b.caller.StaticCall(b.Address, vm.Pack(ABI, method, args...))
	if err != nil {
		return nil, err
	}
	return ABI.Unpack(method, out)
}

// IsWrapped reports whether asset is a wrapped representation owned by the
// ledger, token or collection.
func (b *Binding) IsWrapped(asset common.Address) (bool, error) {
	out, err := b.view("isWrapped", asset)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// IsConsumed reports whether an operation was already processed.
func (b *Binding) IsConsumed(op common.Hash) (bool, error) {
	out, err := b.view("isConsumed", op)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// LockedOf returns the amount of asset held locked for the remote side.
func (b *Binding) LockedOf(asset common.Address) (*big.Int, error) {
	out, err := b.view("lockedOf", asset)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// BurnedOf returns the amount of a wrapped asset burned so far.
func (b *Binding) BurnedOf(asset common.Address) (*big.Int, error) {
	out, err := b.view("burnedOf", asset)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// IsNFTLocked reports whether the ledger holds id locked.
func (b *Binding) IsNFTLocked(collection common.Address, id *big.Int) (bool, error) {
	out, err := b.view("isNFTLocked", collection, id)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// Consume marks op as processed, failing with ErrOperationReplayed if it
// already was.
func (b *Binding) Consume(op common.Hash) error {
	_, err := b.call("consume", op)
	return err
}

// Register creates the local wrapped representation described by desc, if
// it does not exist yet.
func (b *Binding) Register(desc types.AssetDescriptor) error {
	if desc.NFT {
		_, err := b.call("registerCollection", desc.Asset, desc.Name, desc.Symbol)
		return err
	}
	_, err := b.call("registerAsset", desc.Asset, desc.Name, desc.Symbol, desc.Decimals)
	return err
}

// Mint creates amount of the wrapped asset for to and returns its local
// address.
func (b *Binding) Mint(asset, to common.Address, amount *big.Int) (common.Address, error) {
	out, err := b.call("mint", asset, to, amount)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// Unlock releases amount of a locked local asset to to.
func (b *Binding) Unlock(asset, to common.Address, amount *big.Int) error {
	_, err := b.call("unlock", asset, to, amount)
	return err
}

// MintNFT creates a wrapped NFT for to.
func (b *Binding) MintNFT(collection, to common.Address, id *big.Int) error {
	_, err := b.call("mintNFT", collection, to, id)
	return err
}

// UnlockNFT releases a locked NFT to to.
func (b *Binding) UnlockNFT(collection, to common.Address, id *big.Int) error {
	_, err := b.call("unlockNFT", collection, to, id)
	return err
}

// RecordLock accounts a deposit of asset as locked.
func (b *Binding) RecordLock(asset common.Address, amount *big.Int) error {
	_, err := b.call("recordLock", asset, amount)
	return err
}

// RecordBurn burns a deposit of a wrapped asset.
func (b *Binding) RecordBurn(asset common.Address, amount *big.Int) error {
	_, err := b.call("recordBurn", asset, amount)
	return err
}

// Execute delivers data to target with the ledger as sender.
func (b *Binding) Execute(target common.Address, data []byte) ([]byte, error) {
	out, err := b.call("execute", target, data)
	if err != nil {
		return nil, err
	}
	return out[0].([]byte), nil
}

// SendMessage settles the reported assets and emits the outbound message of
// the running operation.
func (b *Binding) SendMessage(payload []byte, locked, burned []types.TokenAmount, nftLocked, nftBurned []types.NFTToken) error {
	if payload == nil {
		payload = []byte{}
	}
	_, err := b.call("sendMessage", payload, nonNilTokens(locked), nonNilTokens(burned), nonNilNFTs(nftLocked), nonNilNFTs(nftBurned))
	return err
}

func nonNilTokens(list []types.TokenAmount) []types.TokenAmount {
	if list == nil {
		return []types.TokenAmount{}
	}
	return list
}

func nonNilNFTs(list []types.NFTToken) []types.NFTToken {
	if list == nil {
		return []types.NFTToken{}
	}
	return list
}

var errNotMessageSent = errors.New("custody: log is not a MessageSent event")

// IsMessageSent reports whether l is an outbound message emitted by the
// ledger at addr.
func IsMessageSent(l *gethtypes.Log, addr common.Address) bool {
	return l.Address == addr && len(l.Topics) == 3 && l.Topics[0] == ABI.Events["MessageSent"].ID
}

// ParseMessageSent decodes a MessageSent log into an outbound message.
func ParseMessageSent(l *gethtypes.Log) (*types.OutboundMessage, error) {
	ev := ABI.Events["MessageSent"]
	if len(l.Topics) != 3 || l.Topics[0] != ev.ID {
		return nil, errNotMessageSent
	}
	vals, err := ev.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("custody: decode outbound message: %w", err)
	}
	msg := &types.OutboundMessage{
		OperationID:     l.Topics[1],
		CallerAddress:   common.BytesToAddress(l.Topics[2].Bytes()),
		TargetAddress:   vals[0].(string),
		ShardsKey:       vals[1].(uint64),
		Payload:         vals[2].([]byte),
		TokensLocked:    *abi.ConvertType(vals[3], new([]types.TokenAmount)).(*[]types.TokenAmount),
		TokensBurned:    *abi.ConvertType(vals[4], new([]types.TokenAmount)).(*[]types.TokenAmount),
		NFTTokensLocked: *abi.ConvertType(vals[5], new([]types.NFTToken)).(*[]types.NFTToken),
		NFTTokensBurned: *abi.ConvertType(vals[6], new([]types.NFTToken)).(*[]types.NFTToken),
	}
	return msg, nil
}
