package core

import (
	"context"

	"github.com/crossledger/appproxy/core/types"
)

// MessageExecutor is the abstraction over the message processing backend.
// Tools and the relayer loop drive it without knowing how messages reach
// the state.
type MessageExecutor interface {
	// Engine returns a short human identifier of the execution backend.
	Engine() string

	// Process applies one inbound message. A message that reverts yields a
	// failed receipt and a nil error; errors are reserved for failures of
	// the executor itself.
	Process(ctx context.Context, env *types.Envelope) (*types.Receipt, error)

	// ProcessBatch applies messages in order, stopping at the first
	// executor error.
	ProcessBatch(ctx context.Context, envs []*types.Envelope) ([]*types.Receipt, error)
}

var _ MessageExecutor = (*Processor)(nil)
