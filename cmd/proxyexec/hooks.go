package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/crossledger/appproxy/bridge"
	"github.com/crossledger/appproxy/contracts/account"
	"github.com/crossledger/appproxy/core"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/hooks"
	"github.com/crossledger/appproxy/proxy"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

var (
	predictCommand = &cli.Command{
		Action:    predict,
		Name:      "predict",
		Usage:     "Derive the smart-account address of a remote caller",
		ArgsUsage: "<remote caller>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "factory", Usage: "Factory address or address book name", Value: core.FactoryAddress.Hex()},
			&cli.StringFlag{Name: "application", Usage: "Application address or address book name", Value: core.HookProxyAddress.Hex()},
		},
		Description: `The predict command prints the address the smart account of
(remote caller, application) has, or will have once created.`,
	}
	encodeHooksCommand = &cli.Command{
		Action:    encodeHooks,
		Name:      "encode-hooks",
		Usage:     "ABI-encode a JSON hook bundle",
		ArgsUsage: "<bundle.json>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "message", Usage: "Print the executeHooks method name and arguments instead of the bare bundle"},
			&cli.StringFlag{Name: "payload", Usage: "Hex payload echoed in the outbound message (with --message)"},
		},
	}
	decodeHooksCommand = &cli.Command{
		Action:    decodeHooks,
		Name:      "decode-hooks",
		Usage:     "Decode an ABI-encoded hook bundle into JSON",
		ArgsUsage: "<hex>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "message", Usage: "Input is the executeHooks argument encoding"},
		},
	}
)

var errMissingArgument = errors.New("missing argument")

func openAddressBook(ctx *cli.Context) (*bridge.AddressBook, error) {
	path := ctx.String(addressBookFlag.Name)
	if path == "" {
		return nil, nil
	}
	return bridge.LoadAddressBook(path)
}

// resolveAddress accepts a hex address or a name of the address book.
func resolveAddress(book *bridge.AddressBook, s string) (common.Address, error) {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	if book != nil {
		if addr, ok := book.Get(s); ok {
			return addr, nil
		}
	}
	return common.Address{}, fmt.Errorf("unknown address %q", s)
}

func predict(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("%w: remote caller", errMissingArgument)
	}
	book, err := openAddressBook(ctx)
	if err != nil {
		return err
	}
	factory, err := resolveAddress(book, ctx.String("factory"))
	if err != nil {
		return err
	}
	application, err := resolveAddress(book, ctx.String("application"))
	if err != nil {
		return err
	}
	fmt.Println(account.PredictAddress(factory, ctx.Args().First(), application).Hex())
	return nil
}

type hooksMessage struct {
	MethodName string        `json:"methodName"`
	Arguments  hexutil.Bytes `json:"arguments"`
}

func encodeHooks(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("%w: bundle file", errMissingArgument)
	}
	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	var bundle hooks.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("invalid bundle file: %w", err)
	}
	if !ctx.Bool("message") {
		enc, err := bundle.Encode()
		if err != nil {
			return err
		}
		fmt.Println(hexutil.Encode(enc))
		return nil
	}
	var payload []byte
	if p := ctx.String("payload"); p != "" {
		if payload, err = hexutil.Decode(p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}
	calldata, err := proxy.ExecuteHooks(payload, &bundle)
	if err != nil {
		return err
	}
	return printJSON(hooksMessage{MethodName: types.MethodName("executeHooks"), Arguments: calldata[4:]})
}

func decodeHooks(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("%w: encoded bundle", errMissingArgument)
	}
	data, err := hexutil.Decode(strings.TrimSpace(ctx.Args().First()))
	if err != nil {
		return err
	}
	if ctx.Bool("message") {
		if _, data, err = types.UnpackArguments(data); err != nil {
			return err
		}
	}
	bundle, err := hooks.Decode(data)
	if err != nil {
		return err
	}
	return printJSON(bundle)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
