// Package zap defines the batch-call encoding used for "many calls, then
// bridge" compositions and executes decoded batches inside a proxy.
package zap

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/hooks"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrMalformedBatch is returned when a batch cannot be decoded.
var ErrMalformedBatch = errors.New("zap: malformed batch")

// Call is one entry of the ordered call list.
type Call struct {
	Target   common.Address
	CallData []byte
}

// BridgeDescriptor declares the assets bridged back after the calls ran.
// IsRequired makes missing assets fail the operation, see Enforcement.
type BridgeDescriptor struct {
	Tokens     []common.Address
	NFTs       []types.NFTToken
	IsRequired bool
}

// Batch is a decoded batch call.
type Batch struct {
	Calls  []Call
	Bridge BridgeDescriptor
}

// Plan expresses the batch as a hook plan: no PRE or POST hooks, the call
// list as MAIN phase and the descriptor as BRIDGE phase, everything from
// the proxy's perspective.
func (b *Batch) Plan() *hooks.Plan {
	plan := &hooks.Plan{Main: make([]hooks.Hook, 0, len(b.Calls))}
	for _, c := range b.Calls {
		plan.Main = append(plan.Main, hooks.Hook{Perspective: hooks.FromSelf, ContractAddress: c.Target, Data: c.CallData})
	}
	for _, tok := range b.Bridge.Tokens {
		plan.Bridge.TokenBridgeHooks = append(plan.Bridge.TokenBridgeHooks, hooks.TokenBridgeHook{Perspective: hooks.FromSelf, ContractAddress: tok})
	}
	for _, n := range b.Bridge.NFTs {
		plan.Bridge.NFTBridgeHooks = append(plan.Bridge.NFTBridgeHooks, hooks.NFTBridgeHook{Perspective: hooks.FromSelf, ContractAddress: n.Collection, TokenID: n.TokenId})
	}
	return plan
}

type (
	wireCall struct {
		Target   common.Address
		CallData []byte
	}
	wireNFT struct {
		Collection common.Address
		TokenId    *big.Int
	}
	wireBridge struct {
		Tokens     []common.Address
		Nfts       []wireNFT
		IsRequired bool
	}
)

var batchArgs abi.Arguments

func init() {
	calls, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "target", Type: "address"},
		{Name: "callData", Type: "bytes"},
	})
	if err != nil {
		panic(err)
	}
	bridge, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "tokens", Type: "address[]"},
		{Name: "nfts", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "collection", Type: "address"},
			{Name: "tokenId", Type: "uint256"},
		}},
		{Name: "isRequired", Type: "bool"},
	})
	if err != nil {
		panic(err)
	}
	batchArgs = abi.Arguments{{Name: "calls", Type: calls}, {Name: "bridge", Type: bridge}}
}

// Encode returns the ABI encoding of the batch.
func (b *Batch) Encode() ([]byte, error) {
	calls := make([]wireCall, 0, len(b.Calls))
	for _, c := range b.Calls {
		data := c.CallData
		if data == nil {
			data = []byte{}
		}
		calls = append(calls, wireCall{Target: c.Target, CallData: data})
	}
	br := wireBridge{
		Tokens:     append([]common.Address{}, b.Bridge.Tokens...),
		Nfts:       make([]wireNFT, 0, len(b.Bridge.NFTs)),
		IsRequired: b.Bridge.IsRequired,
	}
	for _, n := range b.Bridge.NFTs {
		id := n.TokenId
		if id == nil {
			id = new(big.Int)
		}
		br.Nfts = append(br.Nfts, wireNFT{Collection: n.Collection, TokenId: id})
	}
	return batchArgs.Pack(calls, br)
}

// Decode parses an encoded batch.
func Decode(data []byte) (b *Batch, err error) {
	vals, err := batchArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%w: %v", ErrMalformedBatch, r)
		}
	}()
	calls := *abi.ConvertType(vals[0], new([]wireCall)).(*[]wireCall)
	br := *abi.ConvertType(vals[1], new(wireBridge)).(*wireBridge)

	b = &Batch{Bridge: BridgeDescriptor{Tokens: br.Tokens, IsRequired: br.IsRequired}}
	for _, c := range calls {
		b.Calls = append(b.Calls, Call{Target: c.Target, CallData: c.CallData})
	}
	for _, n := range br.Nfts {
		b.Bridge.NFTs = append(b.Bridge.NFTs, types.NFTToken{Collection: n.Collection, TokenId: n.TokenId})
	}
	return b, nil
}
