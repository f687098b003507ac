package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OutboundMessage is the message sent back to the remote ledger after a
// successful invocation. It reports what the proxy handed to custody.
type OutboundMessage struct {
	OperationID     common.Hash
	ShardsKey       uint64
	CallerAddress   common.Address // The proxy that produced the message
	TargetAddress   string         // Remote identity receiving the message
	Payload         []byte         // Optional remote-side callback payload
	TokensLocked    []TokenAmount
	TokensBurned    []TokenAmount
	NFTTokensLocked []NFTToken
	NFTTokensBurned []NFTToken
}

// Hash returns the keccak256 hash of the RLP encoding of the message.
func (m *OutboundMessage) Hash() common.Hash {
	return rlpHash(m)
}

// Empty reports whether the message carries neither assets nor payload.
func (m *OutboundMessage) Empty() bool {
	return len(m.Payload) == 0 && len(m.TokensLocked) == 0 && len(m.TokensBurned) == 0 &&
		len(m.NFTTokensLocked) == 0 && len(m.NFTTokensBurned) == 0
}

// Total sums the amounts reported for asset across locked and burned lists.
func (m *OutboundMessage) Total(asset common.Address) *big.Int {
	total := new(big.Int)
	for _, list := range [][]TokenAmount{m.TokensLocked, m.TokensBurned} {
		for _, ta := range list {
			if ta.Asset == asset {
				total.Add(total, ta.Amount)
			}
		}
	}
	return total
}
