package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/vm/modules/cartridge"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `toml:"chain_id" env:"CHAIN_ID"`
	Alloc   map[string]uint64 `toml:"alloc"` // address hex → initial balance
}

// ProgramsConfig pins the program identities. Empty entries fall back to
// addresses derived from fixed labels, so every node of a chain agrees.
type ProgramsConfig struct {
	Cartridge         string `toml:"cartridge" env:"CARTRIDGE"`
	Asset             string `toml:"asset" env:"ASSET"`
	System            string `toml:"system" env:"SYSTEM"`
	PlatformRecipient string `toml:"platform_recipient" env:"PLATFORM_RECIPIENT"`
}

// LogConfig selects the log level and output format ("console" or "json").
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Config holds all node configuration.
type Config struct {
	NodeID        string         `toml:"node_id" env:"NODE_ID"`
	DataDir       string         `toml:"data_dir" env:"DATA_DIR"`
	RPCAddr       string         `toml:"rpc_addr" env:"RPC_ADDR"`
	RPCAuthToken  string         `toml:"rpc_auth_token" env:"RPC_AUTH_TOKEN"` // empty → no auth
	BlockInterval time.Duration  `toml:"block_interval" env:"BLOCK_INTERVAL"`
	MaxBlockTxs   int            `toml:"max_block_txs" env:"MAX_BLOCK_TXS"` // max transactions per block; 0 → 500
	Keystore      string         `toml:"keystore" env:"KEYSTORE"`           // sequencer key file
	Genesis       GenesisConfig  `toml:"genesis" envPrefix:"GENESIS_"`
	Programs      ProgramsConfig `toml:"programs" envPrefix:"PROGRAM_"`
	Log           LogConfig      `toml:"log" envPrefix:"LOG_"`
}

// EnvPrefix prefixes every environment override, e.g. ARCADE_RPC_ADDR.
const EnvPrefix = "ARCADE_"

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:        "node0",
		DataDir:       "./data",
		RPCAddr:       "127.0.0.1:8545",
		BlockInterval: 2 * time.Second,
		MaxBlockTxs:   500,
		Keystore:      "./data/sequencer.json",
		Genesis: GenesisConfig{
			ChainID: "arcade-dev",
			Alloc:   map[string]uint64{},
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads an optional TOML file from path over the defaults, then applies
// ARCADE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have no usable zero value.
func (c *Config) Validate() error {
	if c.Genesis.ChainID == "" {
		return fmt.Errorf("config: genesis chain_id required")
	}
	if c.BlockInterval <= 0 {
		return fmt.Errorf("config: block_interval must be positive")
	}
	for addr := range c.Genesis.Alloc {
		if _, err := crypto.ParseAddress(addr); err != nil {
			return fmt.Errorf("config: genesis alloc %q: %w", addr, err)
		}
	}
	_, err := c.Identities()
	return err
}

// Save writes the config to path as TOML.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Identities resolves the program identities the cartridge program checks.
func (c *Config) Identities() (cartridge.Identities, error) {
	var ids cartridge.Identities
	fields := []struct {
		value string
		label string
		dst   *crypto.Address
	}{
		{c.Programs.Cartridge, "arcade/program/cartridge", &ids.Program},
		{c.Programs.Asset, "arcade/program/asset", &ids.AssetProgram},
		{c.Programs.System, "arcade/program/system", &ids.SystemProgram},
		{c.Programs.PlatformRecipient, "arcade/platform", &ids.PlatformRecipient},
	}
	for _, f := range fields {
		if f.value == "" {
			*f.dst = crypto.AddressFromSeed(f.label)
			continue
		}
		addr, err := crypto.ParseAddress(f.value)
		if err != nil {
			return ids, fmt.Errorf("config: program %s: %w", f.label, err)
		}
		*f.dst = addr
	}
	return ids, nil
}
