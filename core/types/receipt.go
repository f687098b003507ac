package types

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

const (
	// ReceiptStatusFailed is the status code of a message whose execution
	// was reverted as a whole.
	ReceiptStatusFailed = uint64(0)

	// ReceiptStatusSuccessful is the status code of an applied message.
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt is the result of processing one envelope.
type Receipt struct {
	Status       uint64
	OperationID  common.Hash
	EnvelopeHash common.Hash
	Index        int // Position of the envelope within its batch

	// Err holds the reason a failed message was reverted.
	Err error

	// Outbound is the message sent back to the remote side, nil on failure.
	Outbound *OutboundMessage

	// Logs emitted by the message. Empty on failure.
	Logs []*gethtypes.Log
}

// Failed reports whether the message was reverted.
func (r *Receipt) Failed() bool { return r.Status == ReceiptStatusFailed }
