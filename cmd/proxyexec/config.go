package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/crossledger/appproxy/core"
	"github.com/crossledger/appproxy/zap"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

var (
	dumpConfigCommand = &cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		Flags:       processorFlags,
		Description: `The dumpconfig command shows the effective configuration in TOML form.`,
	}

	enforcementFlag = &cli.StringFlag{
		Name:  "bridge.enforcement",
		Usage: `Required-bridge enforcement of zap batches ("per-asset" or "at-end")`,
	}
	outboxBackendFlag = &cli.StringFlag{
		Name:  "outbox.backend",
		Usage: `Outbound message store ("memory", "leveldb" or "postgres")`,
	}
	outboxPathFlag = &cli.StringFlag{
		Name:  "outbox.path",
		Usage: "LevelDB directory of the outbound message store",
	}
	outboxPostgresFlag = &cli.StringFlag{
		Name:    "outbox.postgres",
		Usage:   "Postgres URL of the outbound message store",
		EnvVars: []string{"PROXYEXEC_DATABASE_URL"},
	}

	processorFlags = []cli.Flag{enforcementFlag, outboxBackendFlag, outboxPathFlag, outboxPostgresFlag}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type proxyexecConfig struct {
	Processor core.Config
}

func loadConfig(file string, cfg *proxyexecConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the defaults, the config file and the command line flags,
// in that order.
func makeConfig(ctx *cli.Context) (*proxyexecConfig, error) {
	cfg := &proxyexecConfig{Processor: core.DefaultConfig}
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, cfg); err != nil {
			return nil, err
		}
	}
	if ctx.IsSet(enforcementFlag.Name) {
		var mode zap.Enforcement
		if err := mode.UnmarshalText([]byte(ctx.String(enforcementFlag.Name))); err != nil {
			return nil, err
		}
		cfg.Processor.BridgeEnforcement = mode
	}
	if ctx.IsSet(outboxBackendFlag.Name) {
		cfg.Processor.Outbox.Backend = ctx.String(outboxBackendFlag.Name)
	}
	if ctx.IsSet(outboxPathFlag.Name) {
		cfg.Processor.Outbox.Path = ctx.String(outboxPathFlag.Name)
	}
	if ctx.IsSet(outboxPostgresFlag.Name) {
		cfg.Processor.Outbox.Postgres = ctx.String(outboxPostgresFlag.Name)
	}
	return cfg, nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}
