package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/crossledger/appproxy/bridge"
	"github.com/crossledger/appproxy/contracts/custody"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

var ErrNoState = errors.New("processor: nil state")

// Processor turns authenticated inbound messages into state transitions.
// Every message runs in its own StateDB snapshot: it is either applied as a
// whole, with its outbound message published, or not at all.
//
// Processor is safe for concurrent use; messages are applied one at a time.
type Processor struct {
	mu     sync.Mutex
	config Config
	host   vm.Executor
	state  *state.StateDB
	dep    *Deployment
	sink   bridge.Sink
	index  int
}

// NewProcessor returns a processor applying messages to sdb with the
// contracts of dep. A nil sink discards outbound messages.
func NewProcessor(cfg Config, sdb *state.StateDB, dep *Deployment, sink bridge.Sink) (*Processor, error) {
	if sdb == nil {
		return nil, ErrNoState
	}
	if dep == nil {
		return nil, errors.New("processor: nil deployment")
	}
	if sink == nil {
		sink = bridge.SinkFunc(func(context.Context, *types.OutboundMessage) error { return nil })
	}
	host, err := vm.NewExecutor(sdb, cfg.vmConfig())
	if err != nil {
		return nil, err
	}
	return &Processor{
		config: cfg,
		host:   host,
		state:  sdb,
		dep:    dep,
		sink:   sink,
	}, nil
}

// Engine implements MessageExecutor.
func (p *Processor) Engine() string { return p.host.Engine() }

// Host returns the executor the processor runs messages on. It must not be
// used concurrently with Process.
func (p *Processor) Host() vm.Executor { return p.host }

// Process implements MessageExecutor.
func (p *Processor) Process(ctx context.Context, env *types.Envelope) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	receipt := p.applyLocked(env)

	if receipt.Outbound != nil {
		if err := p.sink.Publish(ctx, receipt.Outbound); err != nil {
			return receipt, fmt.Errorf("publish outbound %x: %w", receipt.OperationID, err)
		}
	}
	return receipt, nil
}

// ProcessBatch implements MessageExecutor.
func (p *Processor) ProcessBatch(ctx context.Context, envs []*types.Envelope) ([]*types.Receipt, error) {
	receipts := make([]*types.Receipt, 0, len(envs))
	for _, env := range envs {
		r, err := p.Process(ctx, env)
		if err != nil {
			return receipts, err
		}
		receipts = append(receipts, r)
	}
	return receipts, nil
}

func (p *Processor) applyLocked(env *types.Envelope) *types.Receipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(env)
}

func (p *Processor) apply(env *types.Envelope) *types.Receipt {
	start := time.Now()
	receipt := &types.Receipt{
		OperationID: env.OperationID,
		Index:       p.index,
	}
	p.index++

	// Only validated envelopes are hashed: the encoding rejects negative
	// amounts.
	if err := env.Validate(); err != nil {
		messageInvalidMeter.Mark(1)
		receipt.Err = err
		log.Warn("Rejected invalid message", "op", env.OperationID, "err", err)
		return receipt
	}
	hash := env.Hash()
	receipt.EnvelopeHash = hash

	snapshot := p.state.Snapshot()
	p.state.SetTxContext(hash, receipt.Index)
	p.host.SetMsgContext(&vm.MsgContext{
		OperationID: env.OperationID,
		ShardsKey:   env.ShardsKey,
		Caller:      env.Caller,
		Timestamp:   env.Timestamp,
		GasLimit:    env.GasLimit,
	})
	defer p.host.SetMsgContext(nil)

	outbound, logs, err := p.execute(env, hash)
	if err != nil {
		p.state.RevertToSnapshot(snapshot)
		messageFailedMeter.Mark(1)
		receipt.Err = err
		if reason, ok := vm.RevertReason(err); ok {
			log.Debug("Message reverted", "op", env.OperationID, "target", env.Target, "reason", reason)
		} else {
			log.Debug("Message failed", "op", env.OperationID, "target", env.Target, "err", err)
		}
		return receipt
	}
	p.state.Finalise(true)

	receipt.Status = types.ReceiptStatusSuccessful
	receipt.Outbound = outbound
	receipt.Logs = logs
	messageProcessedMeter.Mark(1)
	messageTimer.UpdateSince(start)
	log.Info("Processed message", "op", env.OperationID, "target", env.Target, "method", env.MethodName,
		"logs", len(logs), "elapsed", common.PrettyDuration(time.Since(start)))
	return receipt
}

// execute delivers env to its target through custody. The custody ledger
// consumes the operation id, makes the inbound assets available to the
// target and then calls it.
func (p *Processor) execute(env *types.Envelope, hash common.Hash) (*types.OutboundMessage, []*gethtypes.Log, error) {
	calldata, err := env.Calldata()
	if err != nil {
		return nil, nil, err
	}
	ledger := custody.Bind(p.dep.Custody, p.host.As(p.dep.Relayer))
	tracer := p.config.Tracer

	if err := ledger.Consume(env.OperationID); err != nil {
		return nil, nil, err
	}
	for _, desc := range env.Meta {
		if err := ledger.Register(desc); err != nil {
			return nil, nil, fmt.Errorf("register %v: %w", desc.Asset, err)
		}
	}
	for _, ta := range env.Mint {
		if _, err := ledger.Mint(ta.Asset, env.Target, ta.Amount); err != nil {
			return nil, nil, fmt.Errorf("mint %v: %w", ta.Asset, err)
		}
		tracer.Custody(tracing.CustodyMint, ta.Asset, ta.Amount)
	}
	for _, ta := range env.Unlock {
		if err := ledger.Unlock(ta.Asset, env.Target, ta.Amount); err != nil {
			return nil, nil, fmt.Errorf("unlock %v: %w", ta.Asset, err)
		}
		tracer.Custody(tracing.CustodyUnlock, ta.Asset, ta.Amount)
	}
	for _, nft := range env.NFTMint {
		if err := ledger.MintNFT(nft.Collection, env.Target, nft.TokenId); err != nil {
			return nil, nil, fmt.Errorf("mint nft %v/%v: %w", nft.Collection, nft.TokenId, err)
		}
		tracer.Custody(tracing.CustodyNFTMint, nft.Collection, nft.TokenId)
	}
	for _, nft := range env.NFTUnlock {
		if err := ledger.UnlockNFT(nft.Collection, env.Target, nft.TokenId); err != nil {
			return nil, nil, fmt.Errorf("unlock nft %v/%v: %w", nft.Collection, nft.TokenId, err)
		}
		tracer.Custody(tracing.CustodyNFTUnlock, nft.Collection, nft.TokenId)
	}
	if _, err := ledger.Execute(env.Target, calldata); err != nil {
		return nil, nil, err
	}

	var (
		logs     []*gethtypes.Log
		outbound *types.OutboundMessage
	)
	for _, l := range p.state.Logs() {
		if l.TxHash != hash {
			continue
		}
		logs = append(logs, l)
		if custody.IsMessageSent(l, p.dep.Custody) {
			if outbound, err = custody.ParseMessageSent(l); err != nil {
				return nil, nil, err
			}
		}
	}
	return outbound, logs, nil
}
