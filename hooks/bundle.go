package hooks

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrMalformedBundle is returned when a hook bundle cannot be decoded.
var ErrMalformedBundle = errors.New("hooks: malformed hook bundle")

// Hook is one call of the PRE, MAIN or POST phase. Data is opaque calldata
// for ContractAddress.
type Hook struct {
	Perspective     Perspective
	ContractAddress common.Address
	Value           *big.Int
	Data            []byte
}

// TokenBridgeHook names a token whose balance at the chosen identity is
// bridged back.
type TokenBridgeHook struct {
	Perspective     Perspective
	ContractAddress common.Address
}

// NFTBridgeHook names an NFT that is bridged back if the chosen identity
// owns it.
type NFTBridgeHook struct {
	Perspective     Perspective
	ContractAddress common.Address
	TokenID         *big.Int
}

// BridgeHooks is the BRIDGE phase description.
type BridgeHooks struct {
	NFTBridgeHooks   []NFTBridgeHook
	TokenBridgeHooks []TokenBridgeHook
}

// Bundle is the hook bundle carried in the second argument blob of a hook
// capable action.
type Bundle struct {
	PreHooks     []Hook
	PostHooks    []Hook
	BridgeHooks  BridgeHooks
	MainCallHook Hook
}

// Plan converts the bundle into its executable form.
func (b *Bundle) Plan() *Plan {
	return &Plan{
		Pre:    b.PreHooks,
		Main:   []Hook{b.MainCallHook},
		Post:   b.PostHooks,
		Bridge: b.BridgeHooks,
	}
}

// Wire shapes. Field names follow the ABI component names so that the abi
// package can map tuples onto them.
type (
	wireHook struct {
		IsFromSAPerspective bool
		ContractAddress     common.Address
		Value               *big.Int
		Data                []byte
	}
	wireNFTBridgeHook struct {
		IsFromSAPerspective bool
		ContractAddress     common.Address
		TokenId             *big.Int
	}
	wireTokenBridgeHook struct {
		IsFromSAPerspective bool
		ContractAddress     common.Address
	}
	wireBridgeHooks struct {
		NftBridgeHooks   []wireNFTBridgeHook
		TokenBridgeHooks []wireTokenBridgeHook
	}
	wireBundle struct {
		PreHooks     []wireHook
		PostHooks    []wireHook
		BridgeHooks  wireBridgeHooks
		MainCallHook wireHook
	}
)

var (
	hookComponents = []abi.ArgumentMarshaling{
		{Name: "isFromSAPerspective", Type: "bool"},
		{Name: "contractAddress", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
	}
	bundleComponents = []abi.ArgumentMarshaling{
		{Name: "preHooks", Type: "tuple[]", Components: hookComponents},
		{Name: "postHooks", Type: "tuple[]", Components: hookComponents},
		{Name: "bridgeHooks", Type: "tuple", Components: []abi.ArgumentMarshaling{
			{Name: "nftBridgeHooks", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
				{Name: "isFromSAPerspective", Type: "bool"},
				{Name: "contractAddress", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
			}},
			{Name: "tokenBridgeHooks", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
				{Name: "isFromSAPerspective", Type: "bool"},
				{Name: "contractAddress", Type: "address"},
			}},
		}},
		{Name: "mainCallHook", Type: "tuple", Components: hookComponents},
	}

	// BundleType is the ABI type of an encoded hook bundle.
	BundleType abi.Type

	bundleArgs abi.Arguments
)

func init() {
	var err error
	if BundleType, err = abi.NewType("tuple", "", bundleComponents); err != nil {
		panic(fmt.Sprintf("hooks: bundle type: %v", err))
	}
	bundleArgs = abi.Arguments{{Name: "bundle", Type: BundleType}}
}

// Encode returns the ABI encoding of b.
func (b *Bundle) Encode() ([]byte, error) {
	w := wireBundle{
		PreHooks:  hooksToWire(b.PreHooks),
		PostHooks: hooksToWire(b.PostHooks),
		BridgeHooks: wireBridgeHooks{
			NftBridgeHooks:   make([]wireNFTBridgeHook, 0, len(b.BridgeHooks.NFTBridgeHooks)),
			TokenBridgeHooks: make([]wireTokenBridgeHook, 0, len(b.BridgeHooks.TokenBridgeHooks)),
		},
		MainCallHook: hookToWire(b.MainCallHook),
	}
	for _, h := range b.BridgeHooks.NFTBridgeHooks {
		id := h.TokenID
		if id == nil {
			id = new(big.Int)
		}
		w.BridgeHooks.NftBridgeHooks = append(w.BridgeHooks.NftBridgeHooks, wireNFTBridgeHook{
			IsFromSAPerspective: h.Perspective.IsFromSA(),
			ContractAddress:     h.ContractAddress,
			TokenId:             id,
		})
	}
	for _, h := range b.BridgeHooks.TokenBridgeHooks {
		w.BridgeHooks.TokenBridgeHooks = append(w.BridgeHooks.TokenBridgeHooks, wireTokenBridgeHook{
			IsFromSAPerspective: h.Perspective.IsFromSA(),
			ContractAddress:     h.ContractAddress,
		})
	}
	return bundleArgs.Pack(w)
}

// Decode parses an encoded hook bundle.
func Decode(data []byte) (*Bundle, error) {
	vals, err := bundleArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}
	var w wireBundle
	if err := convert(vals[0], &w); err != nil {
		return nil, err
	}
	b := &Bundle{
		PreHooks:     hooksFromWire(w.PreHooks),
		PostHooks:    hooksFromWire(w.PostHooks),
		MainCallHook: hookFromWire(w.MainCallHook),
	}
	for _, h := range w.BridgeHooks.NftBridgeHooks {
		b.BridgeHooks.NFTBridgeHooks = append(b.BridgeHooks.NFTBridgeHooks, NFTBridgeHook{
			Perspective:     PerspectiveOf(h.IsFromSAPerspective),
			ContractAddress: h.ContractAddress,
			TokenID:         h.TokenId,
		})
	}
	for _, h := range w.BridgeHooks.TokenBridgeHooks {
		b.BridgeHooks.TokenBridgeHooks = append(b.BridgeHooks.TokenBridgeHooks, TokenBridgeHook{
			Perspective:     PerspectiveOf(h.IsFromSAPerspective),
			ContractAddress: h.ContractAddress,
		})
	}
	return b, nil
}

// convert copies an unpacked tuple into its wire struct. The abi package
// panics on shape mismatches, which for a successfully unpacked value can
// only mean a programming error; it is still reported as a decode error.
func convert(from interface{}, to *wireBundle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedBundle, r)
		}
	}()
	*to = *abi.ConvertType(from, new(wireBundle)).(*wireBundle)
	return nil
}

func hookToWire(h Hook) wireHook {
	value := h.Value
	if value == nil {
		value = new(big.Int)
	}
	data := h.Data
	if data == nil {
		data = []byte{}
	}
	return wireHook{
		IsFromSAPerspective: h.Perspective.IsFromSA(),
		ContractAddress:     h.ContractAddress,
		Value:               value,
		Data:                data,
	}
}

func hooksToWire(list []Hook) []wireHook {
	out := make([]wireHook, 0, len(list))
	for _, h := range list {
		out = append(out, hookToWire(h))
	}
	return out
}

func hookFromWire(w wireHook) Hook {
	return Hook{
		Perspective:     PerspectiveOf(w.IsFromSAPerspective),
		ContractAddress: w.ContractAddress,
		Value:           w.Value,
		Data:            w.Data,
	}
}

func hooksFromWire(list []wireHook) []Hook {
	var out []Hook
	for _, w := range list {
		out = append(out, hookFromWire(w))
	}
	return out
}
