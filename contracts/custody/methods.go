package custody

import (
	"fmt"
	"math/big"

	"github.com/crossledger/appproxy/contracts/nft"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var methods = vm.NewDispatcher(ABI, map[string]vm.Method{
	"owner": func(ctx *vm.CallContext, _ []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetAddress(slotOwner)}, nil
	},
	"isWrapped": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetBool(wrappedSlot(args[0].(common.Address)))}, nil
	},
	"isConsumed": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetBool(consumedSlot(args[0].([32]byte)))}, nil
	},
	"lockedOf": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetBig(lockedSlot(args[0].(common.Address)))}, nil
	},
	"burnedOf": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetBig(burnedSlot(args[0].(common.Address)))}, nil
	},
	"isNFTLocked": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.GetBool(nftLockedSlot(args[0].(common.Address), vm.BigKey(args[1].(*big.Int))))}, nil
	},
	"consume":            consume,
	"registerAsset":      registerAsset,
	"registerCollection": registerCollection,
	"mint":               mint,
	"unlock":             unlock,
	"mintNFT":            mintNFT,
	"unlockNFT":          unlockNFT,
	"recordLock": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return nil, recordLock(ctx, args[0].(common.Address), args[1].(*big.Int))
	},
	"recordBurn": func(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
		return nil, recordBurn(ctx, args[0].(common.Address), args[1].(*big.Int))
	},
	"execute":     execute,
	"sendMessage": sendMessage,
})

// consume marks an operation as processed. A second delivery of the same
// operation fails, which is what protects the ledger against replays.
func consume(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := onlyOwner(ctx); err != nil {
		return nil, err
	}
	slot := consumedSlot(args[0].([32]byte))
	if ctx.GetBool(slot) {
		return nil, vm.Revert(ErrOperationReplayed)
	}
	return nil, ctx.SetBool(slot, true)
}

func registerAsset(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := onlyOwner(ctx); err != nil {
		return nil, err
	}
	asset := args[0].(common.Address)
	if ctx.GetBool(wrappedSlot(asset)) {
		if ctx.GetBool(collectionSlot(asset)) {
			return nil, vm.Revert(ErrCollectionIsNotToken)
		}
		return nil, nil
	}
	cargs := token.ConstructorArgs(args[1].(string), args[2].(string), args[3].(uint8), ctx.Address)
	if err := ctx.DeployAt(asset, token.Blueprint, cargs); err != nil {
		return nil, err
	}
	return nil, markWrapped(ctx, asset, false)
}

func registerCollection(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := onlyOwner(ctx); err != nil {
		return nil, err
	}
	collection := args[0].(common.Address)
	if ctx.GetBool(wrappedSlot(collection)) {
		if !ctx.GetBool(collectionSlot(collection)) {
			return nil, vm.Revert(ErrCollectionIsNotToken)
		}
		return nil, nil
	}
	if err := ctx.DeployAt(collection, nft.Blueprint, nft.ConstructorArgs(args[1].(string), args[2].(string), ctx.Address)); err != nil {
		return nil, err
	}
	return nil, markWrapped(ctx, collection, true)
}

func markWrapped(ctx *vm.CallContext, asset common.Address, isNFT bool) error {
	if err := ctx.SetBool(wrappedSlot(asset), true); err != nil {
		return err
	}
	if err := ctx.SetBool(collectionSlot(asset), isNFT); err != nil {
		return err
	}
	ev := ABI.Events["AssetRegistered"]
	data, err := ev.Inputs.NonIndexed().Pack(isNFT)
	if err != nil {
		return err
	}
	return ctx.EmitLog([]common.Hash{ev.ID, vm.AddressKey(asset)}, data)
}

func mint(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := onlyOwner(ctx); err != nil {
		return nil, err
	}
	asset, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
	if !ctx.GetBool(wrappedSlot(asset)) {
		return nil, vm.RevertWith(ErrMissingDescriptor, "asset %v", asset)
	}
	if ctx.GetBool(collectionSlot(asset)) {
		return nil, vm.Revert(ErrCollectionIsNotToken)
	}
	if err := token.Bind(asset, ctx).Mint(to, amount); err != nil {
		return nil, err
	}
	return []interface{}{asset}, nil
}

func unlock(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := onlyOwner(ctx); err != nil {
		return nil, err
	}
	asset, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
	locked := ctx.GetBig(lockedSlot(asset))
	if locked.Cmp(amount) < 0 {
		return nil, vm.RevertWith(ErrInsufficientCustody, "unlock %v of %v, locked %v", amount, asset, locked)
	}
	if err := ctx.SetBig(lockedSlot(asset), locked.Sub(locked, amount)); err != nil {
		return nil, err
	}
	return nil, token.Bind(asset, ctx).Transfer(to, amount)
}

func mintNFT(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := onlyOwner(ctx); err != nil {
		return nil, err
	}
	collection, to, id := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
	if !ctx.GetBool(collectionSlot(collection)) {
		return nil, vm.RevertWith(ErrMissingDescriptor, "collection %v", collection)
	}
	return nil, nft.Bind(collection, ctx).Mint(to, id)
}

func unlockNFT(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := onlyOwner(ctx); err != nil {
		return nil, err
	}
	collection, to, id := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
	slot := nftLockedSlot(collection, vm.BigKey(id))
	if !ctx.GetBool(slot) {
		return nil, vm.RevertWith(ErrInsufficientCustody, "nft %v #%v is not locked", collection, id)
	}
	if err := ctx.SetBool(slot, false); err != nil {
		return nil, err
	}
	return nil, nft.Bind(collection, ctx).TransferFrom(ctx.Address, to, id)
}

// free returns the part of the ledger's balance of asset that is not yet
// accounted for as locked: what proxies deposited during this message.
func free(ctx *vm.CallContext, asset common.Address) (*big.Int, error) {
	bal, err := token.Bind(asset, ctx).BalanceOf(ctx.Address)
	if err != nil {
		return nil, err
	}
	return bal.Sub(bal, ctx.GetBig(lockedSlot(asset))), nil
}

// recordLock accounts amount of asset, already transferred to the ledger,
// as locked on behalf of the remote side.
func recordLock(ctx *vm.CallContext, asset common.Address, amount *big.Int) error {
	avail, err := free(ctx, asset)
	if err != nil {
		return err
	}
	if avail.Cmp(amount) < 0 {
		return vm.RevertWith(ErrUndeclaredDeposit, "lock %v of %v, deposited %v", amount, asset, avail)
	}
	locked := ctx.GetBig(lockedSlot(asset))
	return ctx.SetBig(lockedSlot(asset), locked.Add(locked, amount))
}

// recordBurn destroys amount of a wrapped asset previously transferred to
// the ledger.
func recordBurn(ctx *vm.CallContext, asset common.Address, amount *big.Int) error {
	if !ctx.GetBool(wrappedSlot(asset)) || ctx.GetBool(collectionSlot(asset)) {
		return vm.RevertWith(ErrUnknownAsset, "burn %v", asset)
	}
	avail, err := free(ctx, asset)
	if err != nil {
		return err
	}
	if avail.Cmp(amount) < 0 {
		return vm.RevertWith(ErrUndeclaredDeposit, "burn %v of %v, deposited %v", amount, asset, avail)
	}
	if err := token.Bind(asset, ctx).Burn(amount); err != nil {
		return err
	}
	burned := ctx.GetBig(burnedSlot(asset))
	return ctx.SetBig(burnedSlot(asset), burned.Add(burned, amount))
}

func recordNFTLock(ctx *vm.CallContext, collection common.Address, id *big.Int) error {
	holder, err := nft.Bind(collection, ctx).OwnerOf(id)
	if err != nil {
		return err
	}
	if holder != ctx.Address {
		return vm.RevertWith(ErrNFTNotHeld, "%v #%v", collection, id)
	}
	slot := nftLockedSlot(collection, vm.BigKey(id))
	if ctx.GetBool(slot) {
		return vm.RevertWith(ErrNFTAlreadyLocked, "%v #%v", collection, id)
	}
	return ctx.SetBool(slot, true)
}

func recordNFTBurn(ctx *vm.CallContext, collection common.Address, id *big.Int) error {
	if !ctx.GetBool(collectionSlot(collection)) {
		return vm.RevertWith(ErrUnknownAsset, "burn nft %v", collection)
	}
	holder, err := nft.Bind(collection, ctx).OwnerOf(id)
	if err != nil {
		return err
	}
	if holder != ctx.Address || ctx.GetBool(nftLockedSlot(collection, vm.BigKey(id))) {
		return vm.RevertWith(ErrNFTNotHeld, "%v #%v", collection, id)
	}
	return nft.Bind(collection, ctx).Burn(id)
}

// execute delivers an inbound message call to its target proxy, with the
// ledger as sender.
func execute(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	if err := onlyOwner(ctx); err != nil {
		return nil, err
	}
	out, err := ctx.Call(args[0].(common.Address), args[1].([]byte), nil)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []byte{}
	}
	return []interface{}{out}, nil
}

// sendMessage settles the bridge-back delta of the current operation and
// emits the outbound message. Every reported asset must already have been
// transferred to the ledger.
func sendMessage(ctx *vm.CallContext, args []interface{}) ([]interface{}, error) {
	msg := ctx.Msg()
	if msg == nil {
		return nil, vm.Revert(ErrNoActiveMessage)
	}
	if ctx.GetBool(sentSlot(msg.OperationID)) {
		return nil, vm.Revert(ErrMessageAlreadySent)
	}
	var (
		payload   = args[0].([]byte)
		locked    = *abi.ConvertType(args[1], new([]types.TokenAmount)).(*[]types.TokenAmount)
		burned    = *abi.ConvertType(args[2], new([]types.TokenAmount)).(*[]types.TokenAmount)
		nftLocked = *abi.ConvertType(args[3], new([]types.NFTToken)).(*[]types.NFTToken)
		nftBurned = *abi.ConvertType(args[4], new([]types.NFTToken)).(*[]types.NFTToken)
	)
	for _, ta := range locked {
		if err := recordLock(ctx, ta.Asset, ta.Amount); err != nil {
			return nil, err
		}
	}
	for _, ta := range burned {
		if err := recordBurn(ctx, ta.Asset, ta.Amount); err != nil {
			return nil, err
		}
	}
	for _, t := range nftLocked {
		if err := recordNFTLock(ctx, t.Collection, t.TokenId); err != nil {
			return nil, err
		}
	}
	for _, t := range nftBurned {
		if err := recordNFTBurn(ctx, t.Collection, t.TokenId); err != nil {
			return nil, err
		}
	}
	if err := ctx.SetBool(sentSlot(msg.OperationID), true); err != nil {
		return nil, err
	}
	ev := ABI.Events["MessageSent"]
	data, err := ev.Inputs.NonIndexed().Pack(msg.Caller, msg.ShardsKey, payload, locked, burned, nftLocked, nftBurned)
	if err != nil {
		return nil, fmt.Errorf("custody: pack outbound message: %w", err)
	}
	return nil, ctx.EmitLog([]common.Hash{ev.ID, msg.OperationID, vm.AddressKey(ctx.Caller)}, data)
}
