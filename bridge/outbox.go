package bridge

import (
	"context"
	"sync"

	"github.com/crossledger/appproxy/core/types"
	"github.com/ethereum/go-ethereum/common"
)

// Sink receives outbound messages once the state change that produced them
// is final. Implementations must tolerate the same message being published
// twice.
type Sink interface {
	Publish(ctx context.Context, msg *types.OutboundMessage) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, msg *types.OutboundMessage) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, msg *types.OutboundMessage) error { return f(ctx, msg) }

// MemorySink keeps published messages in memory, deduplicated by operation
// id. It is safe for concurrent use.
type MemorySink struct {
	mu   sync.Mutex
	seen map[common.Hash]struct{}
	msgs []*types.OutboundMessage
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[common.Hash]struct{})}
}

// Publish implements Sink.
func (s *MemorySink) Publish(_ context.Context, msg *types.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[msg.OperationID]; ok {
		duplicateMeter.Mark(1)
		return nil
	}
	s.seen[msg.OperationID] = struct{}{}
	s.msgs = append(s.msgs, msg)
	publishedMeter.Mark(1)
	return nil
}

// Messages returns the published messages in publication order.
func (s *MemorySink) Messages() []*types.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.OutboundMessage(nil), s.msgs...)
}

// MultiSink publishes to every sink in order, stopping at the first error.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(ctx context.Context, msg *types.OutboundMessage) error {
	for _, s := range m {
		if err := s.Publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
