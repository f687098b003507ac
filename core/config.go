package core

import (
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/tracing"
	"github.com/crossledger/appproxy/zap"
)

// Config are the configuration options of the message processor.
type Config struct {
	ChainID      uint64
	MaxCallDepth int // Maximum nesting of contract calls within one message

	// BridgeEnforcement selects how zap batches treat a required bridge
	// descriptor whose assets are not all available.
	BridgeEnforcement zap.Enforcement

	Outbox OutboxConfig

	// Tracer receives execution events, may be nil.
	Tracer *tracing.Hooks `toml:"-"`
}

// OutboxConfig selects where successful outbound messages are stored.
type OutboxConfig struct {
	Backend  string // "memory", "leveldb" or "postgres"
	Path     string // LevelDB directory
	Cache    int    // LevelDB cache, megabytes
	Handles  int    // LevelDB open file handles
	Postgres string `toml:",omitempty"` // Connection URL
}

// DefaultConfig contains the default processor settings.
var DefaultConfig = Config{
	ChainID:           1337,
	MaxCallDepth:      vm.DefaultConfig.MaxCallDepth,
	BridgeEnforcement: zap.EnforcePerAsset,
	Outbox: OutboxConfig{
		Backend: "memory",
		Cache:   16,
		Handles: 16,
	},
}

func (c *Config) vmConfig() vm.Config {
	return vm.Config{MaxCallDepth: c.MaxCallDepth, Tracer: c.Tracer}
}
