package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/crossledger/appproxy/bridge"
	"github.com/crossledger/appproxy/bridge/pgoutbox"
	"github.com/crossledger/appproxy/core"
	"github.com/crossledger/appproxy/core/types"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var runCommand = &cli.Command{
	Action:    run,
	Name:      "run",
	Usage:     "Replay inbound messages on an in-memory devnet",
	ArgsUsage: "<envelopes.json>",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Print the outbound messages as JSON instead of a table"},
	}, processorFlags...),
	Description: `The run command deploys the devnet genesis into a fresh in-memory state,
processes the envelopes of the given file (one object or an array) in order
and prints the result of each. Outbound messages are stored in the configured
outbox. With --addressbook the devnet addresses are written to the book.`,
}

func readEnvelopes(file string) ([]*types.Envelope, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		env := new(types.Envelope)
		if err := json.Unmarshal(data, env); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		return []*types.Envelope{env}, nil
	}
	var envs []*types.Envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return envs, nil
}

// openOutbox opens the configured outbound message store. The returned
// function releases it.
func openOutbox(ctx context.Context, cfg core.OutboxConfig) (bridge.Sink, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		return bridge.NewMemorySink(), func() {}, nil
	case "leveldb":
		if cfg.Path == "" {
			return nil, nil, fmt.Errorf("leveldb outbox needs a path")
		}
		db, err := leveldb.New(cfg.Path, cfg.Cache, cfg.Handles, "proxyexec/outbox/", false)
		if err != nil {
			return nil, nil, err
		}
		return bridge.NewDBOutbox(db), func() { db.Close() }, nil
	case "postgres":
		sink, err := pgoutbox.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown outbox backend %q", cfg.Backend)
	}
}

func saveDeployment(book *bridge.AddressBook, dep *core.Deployment, gspec *core.Genesis) error {
	book.Set("relayer", dep.Relayer)
	book.Set("custody", dep.Custody)
	book.Set("factory", dep.Factory)
	book.Set("curve-proxy", dep.CurveProxy)
	book.Set("hook-proxy", dep.HookProxy)
	if gspec.Pool != nil {
		book.Set("pool", dep.Pool)
		book.Set("lp-token", dep.LPToken)
		for _, desc := range gspec.Pool.Coins {
			book.Set(desc.Symbol, desc.Asset)
		}
	}
	return book.Save()
}

func run(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("%w: envelope file", errMissingArgument)
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	envs, err := readEnvelopes(ctx.Args().First())
	if err != nil {
		return err
	}
	book, err := openAddressBook(ctx)
	if err != nil {
		return err
	}

	sdb, err := state.New(gethtypes.EmptyRootHash, state.NewDatabase(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil), nil))
	if err != nil {
		return err
	}
	gspec := core.DefaultGenesis()
	gspec.BridgeEnforcement = cfg.Processor.BridgeEnforcement
	dep, err := gspec.Commit(sdb)
	if err != nil {
		return err
	}
	if book != nil {
		if err := saveDeployment(book, dep, gspec); err != nil {
			return err
		}
	}

	outbox, release, err := openOutbox(ctx.Context, cfg.Processor.Outbox)
	if err != nil {
		return err
	}
	defer release()
	sink := bridge.MultiSink{outbox, bridge.SinkFunc(func(_ context.Context, msg *types.OutboundMessage) error {
		log.Info("Outbound message", "op", msg.OperationID, "target", msg.TargetAddress,
			"locked", len(msg.TokensLocked), "burned", len(msg.TokensBurned))
		return nil
	})}

	proc, err := core.NewProcessor(cfg.Processor, sdb, dep, sink)
	if err != nil {
		return err
	}
	receipts, err := proc.ProcessBatch(ctx.Context, envs)
	if err != nil {
		return err
	}
	if ctx.Bool("json") {
		var out []*types.OutboundMessage
		for _, r := range receipts {
			if r.Outbound != nil {
				out = append(out, r.Outbound)
			}
		}
		return printJSON(out)
	}
	printReceipts(receipts)
	return nil
}

func printReceipts(receipts []*types.Receipt) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Operation", "Status", "Locked", "Burned", "Error"})
	for _, r := range receipts {
		status, locked, burned, reason := "ok", "", "", ""
		if r.Failed() {
			status, reason = "reverted", r.Err.Error()
		}
		if r.Outbound != nil {
			locked = strconv.Itoa(len(r.Outbound.TokensLocked) + len(r.Outbound.NFTTokensLocked))
			burned = strconv.Itoa(len(r.Outbound.TokensBurned) + len(r.Outbound.NFTTokensBurned))
		}
		table.Append([]string{strconv.Itoa(r.Index), r.OperationID.TerminalString(), status, locked, burned, reason})
	}
	table.Render()
}
