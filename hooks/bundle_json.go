package hooks

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

type hookJSON struct {
	IsFromSAPerspective bool                  `json:"isFromSAPerspective"`
	ContractAddress     common.Address        `json:"contractAddress"`
	Value               *math.HexOrDecimal256 `json:"value,omitempty"`
	Data                hexutil.Bytes         `json:"data"`
}

type nftBridgeHookJSON struct {
	IsFromSAPerspective bool                  `json:"isFromSAPerspective"`
	ContractAddress     common.Address        `json:"contractAddress"`
	TokenID             *math.HexOrDecimal256 `json:"tokenId"`
}

type tokenBridgeHookJSON struct {
	IsFromSAPerspective bool           `json:"isFromSAPerspective"`
	ContractAddress     common.Address `json:"contractAddress"`
}

type bundleJSON struct {
	PreHooks     []hookJSON `json:"preHooks"`
	PostHooks    []hookJSON `json:"postHooks"`
	MainCallHook hookJSON   `json:"mainCallHook"`
	BridgeHooks  struct {
		NFTBridgeHooks   []nftBridgeHookJSON   `json:"nftBridgeHooks"`
		TokenBridgeHooks []tokenBridgeHookJSON `json:"tokenBridgeHooks"`
	} `json:"bridgeHooks"`
}

func (h Hook) toJSON() hookJSON {
	return hookJSON{
		IsFromSAPerspective: h.Perspective.IsFromSA(),
		ContractAddress:     h.ContractAddress,
		Value:               (*math.HexOrDecimal256)(h.Value),
		Data:                h.Data,
	}
}

func (h hookJSON) hook() Hook {
	return Hook{
		Perspective:     PerspectiveOf(h.IsFromSAPerspective),
		ContractAddress: h.ContractAddress,
		Value:           (*big.Int)(h.Value),
		Data:            h.Data,
	}
}

// MarshalJSON encodes the bundle with the field names of its ABI form.
func (b Bundle) MarshalJSON() ([]byte, error) {
	var enc bundleJSON
	for _, h := range b.PreHooks {
		enc.PreHooks = append(enc.PreHooks, h.toJSON())
	}
	for _, h := range b.PostHooks {
		enc.PostHooks = append(enc.PostHooks, h.toJSON())
	}
	enc.MainCallHook = b.MainCallHook.toJSON()
	for _, h := range b.BridgeHooks.NFTBridgeHooks {
		enc.BridgeHooks.NFTBridgeHooks = append(enc.BridgeHooks.NFTBridgeHooks, nftBridgeHookJSON{
			IsFromSAPerspective: h.Perspective.IsFromSA(),
			ContractAddress:     h.ContractAddress,
			TokenID:             (*math.HexOrDecimal256)(h.TokenID),
		})
	}
	for _, h := range b.BridgeHooks.TokenBridgeHooks {
		enc.BridgeHooks.TokenBridgeHooks = append(enc.BridgeHooks.TokenBridgeHooks, tokenBridgeHookJSON{
			IsFromSAPerspective: h.Perspective.IsFromSA(),
			ContractAddress:     h.ContractAddress,
		})
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON decodes a bundle written by MarshalJSON.
func (b *Bundle) UnmarshalJSON(input []byte) error {
	var dec bundleJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	*b = Bundle{MainCallHook: dec.MainCallHook.hook()}
	for _, h := range dec.PreHooks {
		b.PreHooks = append(b.PreHooks, h.hook())
	}
	for _, h := range dec.PostHooks {
		b.PostHooks = append(b.PostHooks, h.hook())
	}
	for _, h := range dec.BridgeHooks.NFTBridgeHooks {
		b.BridgeHooks.NFTBridgeHooks = append(b.BridgeHooks.NFTBridgeHooks, NFTBridgeHook{
			Perspective:     PerspectiveOf(h.IsFromSAPerspective),
			ContractAddress: h.ContractAddress,
			TokenID:         (*big.Int)(h.TokenID),
		})
	}
	for _, h := range dec.BridgeHooks.TokenBridgeHooks {
		b.BridgeHooks.TokenBridgeHooks = append(b.BridgeHooks.TokenBridgeHooks, TokenBridgeHook{
			Perspective:     PerspectiveOf(h.IsFromSAPerspective),
			ContractAddress: h.ContractAddress,
		})
	}
	return nil
}
