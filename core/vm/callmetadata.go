package vm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MsgContext carries the fields of the inbound remote message that are
// visible to contracts while that message executes. It is the message-level
// analogue of an EVM transaction context: the processor installs it before
// the first call of a message and clears it afterwards.
type MsgContext struct {
	OperationID common.Hash // Remote correlation id of the operation
	ShardsKey   uint64      // Remote shard routing key
	Caller      string      // Remote-side identity that issued the message
	Timestamp   uint64      // Remote timestamp, seconds
	GasLimit    *big.Int    // Advisory only, never enforced
}
