// proxyexec is a developer tool for the application-proxy engine. It derives
// smart-account addresses, converts hook bundles between JSON and their ABI
// form and replays inbound messages on an in-memory devnet.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML configuration file",
		EnvVars: []string{"PROXYEXEC_CONFIG"},
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	addressBookFlag = &cli.StringFlag{
		Name:    "addressbook",
		Usage:   "YAML file mapping contract names to addresses",
		EnvVars: []string{"PROXYEXEC_ADDRESSBOOK"},
	}
)

func init() {
	//nolint:errcheck
	godotenv.Load()
}

func main() {
	app := &cli.App{
		Name:   "proxyexec",
		Usage:  "application-proxy developer tool",
		Flags:  []cli.Flag{configFileFlag, verbosityFlag, addressBookFlag},
		Before: setupLogging,
		Commands: []*cli.Command{
			predictCommand,
			encodeHooksCommand,
			decodeHooksCommand,
			runCommand,
			dumpConfigCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx *cli.Context) error {
	output := io.Writer(os.Stderr)
	usecolor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	if usecolor {
		output = colorable.NewColorableStderr()
	}
	level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(output, level, usecolor)))
	return nil
}
