package types

import (
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

type envelopeJSON struct {
	ShardsKey   math.HexOrDecimal64   `json:"shardsKey"`
	GasLimit    *math.HexOrDecimal256 `json:"gasLimit,omitempty"`
	OperationID common.Hash           `json:"operationId"`
	Timestamp   math.HexOrDecimal64   `json:"timestamp"`
	Target      *common.Address       `json:"target"`
	MethodName  string                `json:"methodName"`
	Arguments   hexutil.Bytes         `json:"arguments"`
	Caller      string                `json:"caller"`
	Mint        []tokenAmountJSON     `json:"mint,omitempty"`
	Unlock      []tokenAmountJSON     `json:"unlock,omitempty"`
	NFTMint     []nftTokenJSON        `json:"nftMint,omitempty"`
	NFTUnlock   []nftTokenJSON        `json:"nftUnlock,omitempty"`
	Meta        []AssetDescriptor     `json:"meta,omitempty"`
}

type tokenAmountJSON struct {
	Asset  common.Address        `json:"asset"`
	Amount *math.HexOrDecimal256 `json:"amount"`
}

type nftTokenJSON struct {
	Collection common.Address        `json:"collection"`
	TokenId    *math.HexOrDecimal256 `json:"tokenId"`
}

// MarshalJSON marshals the envelope with decimal-or-hex quantities.
func (e Envelope) MarshalJSON() ([]byte, error) {
	enc := envelopeJSON{
		ShardsKey:   math.HexOrDecimal64(e.ShardsKey),
		GasLimit:    (*math.HexOrDecimal256)(e.GasLimit),
		OperationID: e.OperationID,
		Timestamp:   math.HexOrDecimal64(e.Timestamp),
		Target:      &e.Target,
		MethodName:  e.MethodName,
		Arguments:   e.Arguments,
		Caller:      e.Caller,
		Mint:        tokenAmountsToJSON(e.Mint),
		Unlock:      tokenAmountsToJSON(e.Unlock),
		NFTMint:     nftTokensToJSON(e.NFTMint),
		NFTUnlock:   nftTokensToJSON(e.NFTUnlock),
		Meta:        e.Meta,
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON unmarshals the envelope.
func (e *Envelope) UnmarshalJSON(input []byte) error {
	var dec envelopeJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.Target == nil {
		return errors.New("missing required field 'target' for Envelope")
	}
	e.ShardsKey = uint64(dec.ShardsKey)
	e.GasLimit = (*big.Int)(dec.GasLimit)
	e.OperationID = dec.OperationID
	e.Timestamp = uint64(dec.Timestamp)
	e.Target = *dec.Target
	e.MethodName = dec.MethodName
	e.Arguments = dec.Arguments
	e.Caller = dec.Caller
	e.Mint = tokenAmountsFromJSON(dec.Mint)
	e.Unlock = tokenAmountsFromJSON(dec.Unlock)
	e.NFTMint = nftTokensFromJSON(dec.NFTMint)
	e.NFTUnlock = nftTokensFromJSON(dec.NFTUnlock)
	e.Meta = dec.Meta
	return nil
}

type outboundJSON struct {
	OperationID     common.Hash         `json:"operationId"`
	ShardsKey       math.HexOrDecimal64 `json:"shardsKey"`
	CallerAddress   common.Address      `json:"callerAddress"`
	TargetAddress   string              `json:"targetAddress"`
	Payload         hexutil.Bytes       `json:"payload"`
	TokensLocked    []tokenAmountJSON   `json:"tokensLocked"`
	TokensBurned    []tokenAmountJSON   `json:"tokensBurned"`
	NFTTokensLocked []nftTokenJSON      `json:"nftTokensLocked"`
	NFTTokensBurned []nftTokenJSON      `json:"nftTokensBurned"`
}

// MarshalJSON marshals the outbound message.
func (m OutboundMessage) MarshalJSON() ([]byte, error) {
	enc := outboundJSON{
		OperationID:     m.OperationID,
		ShardsKey:       math.HexOrDecimal64(m.ShardsKey),
		CallerAddress:   m.CallerAddress,
		TargetAddress:   m.TargetAddress,
		Payload:         m.Payload,
		TokensLocked:    tokenAmountsToJSON(m.TokensLocked),
		TokensBurned:    tokenAmountsToJSON(m.TokensBurned),
		NFTTokensLocked: nftTokensToJSON(m.NFTTokensLocked),
		NFTTokensBurned: nftTokensToJSON(m.NFTTokensBurned),
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON unmarshals the outbound message.
func (m *OutboundMessage) UnmarshalJSON(input []byte) error {
	var dec outboundJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	m.OperationID = dec.OperationID
	m.ShardsKey = uint64(dec.ShardsKey)
	m.CallerAddress = dec.CallerAddress
	m.TargetAddress = dec.TargetAddress
	m.Payload = dec.Payload
	m.TokensLocked = tokenAmountsFromJSON(dec.TokensLocked)
	m.TokensBurned = tokenAmountsFromJSON(dec.TokensBurned)
	m.NFTTokensLocked = nftTokensFromJSON(dec.NFTTokensLocked)
	m.NFTTokensBurned = nftTokensFromJSON(dec.NFTTokensBurned)
	return nil
}

func tokenAmountsToJSON(list []TokenAmount) []tokenAmountJSON {
	if list == nil {
		return nil
	}
	out := make([]tokenAmountJSON, len(list))
	for i, ta := range list {
		out[i] = tokenAmountJSON{Asset: ta.Asset, Amount: (*math.HexOrDecimal256)(ta.Amount)}
	}
	return out
}

func tokenAmountsFromJSON(list []tokenAmountJSON) []TokenAmount {
	if list == nil {
		return nil
	}
	out := make([]TokenAmount, len(list))
	for i, ta := range list {
		out[i] = TokenAmount{Asset: ta.Asset, Amount: (*big.Int)(ta.Amount)}
	}
	return out
}

func nftTokensToJSON(list []NFTToken) []nftTokenJSON {
	if list == nil {
		return nil
	}
	out := make([]nftTokenJSON, len(list))
	for i, nft := range list {
		out[i] = nftTokenJSON{Collection: nft.Collection, TokenId: (*math.HexOrDecimal256)(nft.TokenId)}
	}
	return out
}

func nftTokensFromJSON(list []nftTokenJSON) []NFTToken {
	if list == nil {
		return nil
	}
	out := make([]NFTToken, len(list))
	for i, nft := range list {
		out[i] = NFTToken{Collection: nft.Collection, TokenId: (*big.Int)(nft.TokenId)}
	}
	return out
}
