package zap

import (
	"fmt"
	"math/big"

	"github.com/crossledger/appproxy/core/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Builder composes a batch on the client side.
//
//	batch, err := zap.NewBuilder().
//		CallABI(coin, token.ABI, "approve", pool, amount).
//		CallABI(pool, poolABI, "add_liquidity", amounts, min).
//		BridgeToken(lp).
//		Required(true).
//		Build()
type Builder struct {
	batch Batch
	err   error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return new(Builder) }

// Call appends a call with raw calldata.
func (b *Builder) Call(target common.Address, data []byte) *Builder {
	b.batch.Calls = append(b.batch.Calls, Call{Target: target, CallData: common.CopyBytes(data)})
	return b
}

// CallABI appends a call to method of def. Packing errors are reported by
// Build.
func (b *Builder) CallABI(target common.Address, def abi.ABI, method string, args ...interface{}) *Builder {
	data, err := def.Pack(method, args...)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("zap: call %d (%s): %w", len(b.batch.Calls), method, err)
		}
		return b
	}
	return b.Call(target, data)
}

// BridgeToken declares tokens to bridge back.
func (b *Builder) BridgeToken(tokens ...common.Address) *Builder {
	b.batch.Bridge.Tokens = append(b.batch.Bridge.Tokens, tokens...)
	return b
}

// BridgeNFT declares an NFT to bridge back.
func (b *Builder) BridgeNFT(collection common.Address, id *big.Int) *Builder {
	b.batch.Bridge.NFTs = append(b.batch.Bridge.NFTs, types.NFTToken{Collection: collection, TokenId: new(big.Int).Set(id)})
	return b
}

// Required sets the isRequired flag of the bridge descriptor.
func (b *Builder) Required(required bool) *Builder {
	b.batch.Bridge.IsRequired = required
	return b
}

// Build returns the composed batch.
func (b *Builder) Build() (*Batch, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := b.batch
	return &out, nil
}

// Encode builds and encodes the batch.
func (b *Builder) Encode() ([]byte, error) {
	batch, err := b.Build()
	if err != nil {
		return nil, err
	}
	return batch.Encode()
}
