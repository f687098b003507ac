package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/crossledger/appproxy/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
)

// ErrNotFound is returned when an outbox holds no message for an operation.
var ErrNotFound = errors.New("outbox: message not found")

// outboxPrefix + operation id -> RLP(OutboundMessage)
var outboxPrefix = []byte("ob-")

func outboxKey(op common.Hash) []byte {
	return append(append([]byte{}, outboxPrefix...), op.Bytes()...)
}

// DBOutbox persists outbound messages in a key-value store until the relay
// acknowledges them. Any ethdb backend works; the CLI uses leveldb, tests
// use memorydb.
type DBOutbox struct {
	db ethdb.KeyValueStore
}

// NewDBOutbox wraps db.
func NewDBOutbox(db ethdb.KeyValueStore) *DBOutbox {
	return &DBOutbox{db: db}
}

// Publish implements Sink. A message already stored under the same
// operation id is kept as is. The existence check and the write are not
// atomic; callers must not publish the same operation concurrently. The
// processor consumes each operation id once under its lock, so it never
// does.
func (o *DBOutbox) Publish(ctx context.Context, msg *types.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := outboxKey(msg.OperationID)
	has, err := o.db.Has(key)
	if err != nil {
		return err
	}
	if has {
		duplicateMeter.Mark(1)
		return nil
	}
	enc, err := rlp.EncodeToBytes(msg)
	if err != nil {
		return fmt.Errorf("outbox: encode message: %w", err)
	}
	if err := o.db.Put(key, enc); err != nil {
		return err
	}
	publishedMeter.Mark(1)
	log.Debug("Stored outbound message", "op", msg.OperationID, "size", len(enc))
	return nil
}

// Get returns the stored message for op, ErrNotFound if there is none.
// Backend failures are returned as is.
func (o *DBOutbox) Get(op common.Hash) (*types.OutboundMessage, error) {
	key := outboxKey(op)
	has, err := o.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrNotFound
	}
	enc, err := o.db.Get(key)
	if err != nil {
		return nil, err
	}
	msg := new(types.OutboundMessage)
	if err := rlp.DecodeBytes(enc, msg); err != nil {
		return nil, fmt.Errorf("outbox: decode message %v: %w", op, err)
	}
	return msg, nil
}

// Pending returns every unacknowledged message, ordered by operation id.
func (o *DBOutbox) Pending() ([]*types.OutboundMessage, error) {
	it := o.db.NewIterator(outboxPrefix, nil)
	defer it.Release()

	var out []*types.OutboundMessage
	for it.Next() {
		msg := new(types.OutboundMessage)
		if err := rlp.DecodeBytes(it.Value(), msg); err != nil {
			return nil, fmt.Errorf("outbox: decode entry %x: %w", it.Key(), err)
		}
		out = append(out, msg)
	}
	return out, it.Error()
}

// Ack removes the message of op after the relay delivered it.
func (o *DBOutbox) Ack(op common.Hash) error {
	if err := o.db.Delete(outboxKey(op)); err != nil {
		return err
	}
	ackedMeter.Mark(1)
	return nil
}
