// Package bridge accumulates the assets an application hands back to the
// remote side during one message and delivers the resulting outbound
// messages.
package bridge

import (
	"math/big"
	"sync"

	"github.com/crossledger/appproxy/contracts/custody"
	"github.com/crossledger/appproxy/contracts/nft"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Delta is the bridge-back delta of one message: the token amounts and NFTs
// the proxy holds for the remote side, split into assets that stay locked in
// custody and wrapped assets that are burned on the way out.
//
// Entries are kept in insertion order so that the outbound message is
// deterministic. Amounts for the same asset are merged.
type Delta struct {
	locked *tokenSet
	burned *tokenSet

	nftLocked []types.NFTToken
	nftBurned []types.NFTToken

	// mu protects the sets; hooks and proxies may share a delta.
	mu sync.Mutex
}

type tokenSet struct {
	order   []common.Address
	amounts map[common.Address]*big.Int
}

func newTokenSet() *tokenSet {
	return &tokenSet{amounts: make(map[common.Address]*big.Int)}
}

func (s *tokenSet) add(asset common.Address, amount *big.Int) {
	if cur, ok := s.amounts[asset]; ok {
		cur.Add(cur, amount)
		return
	}
	s.order = append(s.order, asset)
	s.amounts[asset] = new(big.Int).Set(amount)
}

func (s *tokenSet) list() []types.TokenAmount {
	out := make([]types.TokenAmount, 0, len(s.order))
	for _, asset := range s.order {
		out = append(out, types.TokenAmount{Asset: asset, Amount: new(big.Int).Set(s.amounts[asset])})
	}
	return out
}

// NewDelta returns an empty delta.
func NewDelta() *Delta {
	d := new(Delta)
	d.ensure()
	return d
}

// ensure lazily allocates the sets, so the zero Delta is usable.
func (d *Delta) ensure() {
	if d.locked == nil {
		d.locked = newTokenSet()
	}
	if d.burned == nil {
		d.burned = newTokenSet()
	}
}

// Lock records amount of a local asset to be locked in custody. Zero or
// negative amounts are ignored.
func (d *Delta) Lock(asset common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	d.locked.add(asset, amount)
}

// Burn records amount of a wrapped asset to be burned.
func (d *Delta) Burn(asset common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	d.burned.add(asset, amount)
}

// LockNFT records a local NFT to be locked in custody.
func (d *Delta) LockNFT(collection common.Address, id *big.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nftLocked = append(d.nftLocked, types.NFTToken{Collection: collection, TokenId: new(big.Int).Set(id)})
}

// BurnNFT records a wrapped NFT to be burned.
func (d *Delta) BurnNFT(collection common.Address, id *big.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nftBurned = append(d.nftBurned, types.NFTToken{Collection: collection, TokenId: new(big.Int).Set(id)})
}

// Fold classifies asset against the custody ledger and records amount: a
// wrapped asset makes a round trip and is burned, anything else is locked.
func (d *Delta) Fold(ledger *custody.Binding, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	wrapped, err := ledger.IsWrapped(asset)
	if err != nil {
		return err
	}
	if wrapped {
		d.Burn(asset, amount)
	} else {
		d.Lock(asset, amount)
	}
	return nil
}

// FoldNFT is the NFT counterpart of Fold.
func (d *Delta) FoldNFT(ledger *custody.Binding, collection common.Address, id *big.Int) error {
	wrapped, err := ledger.IsWrapped(collection)
	if err != nil {
		return err
	}
	if wrapped {
		d.BurnNFT(collection, id)
	} else {
		d.LockNFT(collection, id)
	}
	return nil
}

// Pending returns the amount of asset already recorded, locked or burned.
func (d *Delta) Pending(asset common.Address) *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	total := new(big.Int)
	if v, ok := d.locked.amounts[asset]; ok {
		total.Add(total, v)
	}
	if v, ok := d.burned.amounts[asset]; ok {
		total.Add(total, v)
	}
	return total
}

// HasNFT reports whether the NFT is already recorded.
func (d *Delta) HasNFT(collection common.Address, id *big.Int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, list := range [][]types.NFTToken{d.nftLocked, d.nftBurned} {
		for _, t := range list {
			if t.Collection == collection && t.TokenId.Cmp(id) == 0 {
				return true
			}
		}
	}
	return false
}

// Tokens returns copies of the locked and burned token lists.
func (d *Delta) Tokens() (locked, burned []types.TokenAmount) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	return d.locked.list(), d.burned.list()
}

// NFTs returns copies of the locked and burned NFT lists.
func (d *Delta) NFTs() (locked, burned []types.NFTToken) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]types.NFTToken{}, d.nftLocked...), append([]types.NFTToken{}, d.nftBurned...)
}

// Empty reports whether nothing was recorded.
func (d *Delta) Empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	return len(d.locked.order) == 0 && len(d.burned.order) == 0 && len(d.nftLocked) == 0 && len(d.nftBurned) == 0
}

// Settle hands every recorded asset from the executing proxy to the custody
// ledger and reports the delta together with payload, which makes the
// ledger emit the outbound message. The delta is cleared afterwards.
func (d *Delta) Settle(ctx *vm.CallContext, ledger common.Address, payload []byte) error {
	locked, burned := d.Tokens()
	nftLocked, nftBurned := d.NFTs()

	tracer := ctx.Tracer()
	for _, ta := range locked {
		if err := token.Bind(ta.Asset, ctx).Transfer(ledger, ta.Amount); err != nil {
			return err
		}
		tracer.Custody(tracing.CustodyLock, ta.Asset, ta.Amount)
		lockedMeter.Mark(1)
	}
	for _, ta := range burned {
		if err := token.Bind(ta.Asset, ctx).Transfer(ledger, ta.Amount); err != nil {
			return err
		}
		tracer.Custody(tracing.CustodyBurn, ta.Asset, ta.Amount)
		burnedMeter.Mark(1)
	}
	for _, t := range nftLocked {
		if err := nft.Bind(t.Collection, ctx).TransferFrom(ctx.Address, ledger, t.TokenId); err != nil {
			return err
		}
		tracer.Custody(tracing.CustodyNFTLock, t.Collection, t.TokenId)
		lockedMeter.Mark(1)
	}
	for _, t := range nftBurned {
		if err := nft.Bind(t.Collection, ctx).TransferFrom(ctx.Address, ledger, t.TokenId); err != nil {
			return err
		}
		tracer.Custody(tracing.CustodyNFTBurn, t.Collection, t.TokenId)
		burnedMeter.Mark(1)
	}
	if err := custody.Bind(ledger, ctx).SendMessage(payload, locked, burned, nftLocked, nftBurned); err != nil {
		return err
	}
	log.Debug("Settled bridge delta", "proxy", ctx.Address, "locked", len(locked), "burned", len(burned),
		"nftLocked", len(nftLocked), "nftBurned", len(nftBurned))

	d.reset()
	return nil
}

func (d *Delta) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locked, d.burned = nil, nil
	d.nftLocked, d.nftBurned = nil, nil
}
