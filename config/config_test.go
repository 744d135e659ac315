package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/internal/testutil"
)

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arcade.toml")
	alloc := crypto.AddressFromSeed("alice").String()
	file := `
node_id = "floor-1"
rpc_addr = "0.0.0.0:9000"
block_interval = "500ms"

[genesis]
chain_id = "arcade-test"
[genesis.alloc]
"` + alloc + `" = 1000

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(file), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARCADE_RPC_ADDR", "127.0.0.1:7000")
	t.Setenv("ARCADE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != "floor-1" || cfg.Genesis.ChainID != "arcade-test" {
		t.Errorf("file values: got %q %q", cfg.NodeID, cfg.Genesis.ChainID)
	}
	if cfg.RPCAddr != "127.0.0.1:7000" {
		t.Errorf("env override: got %q", cfg.RPCAddr)
	}
	if cfg.BlockInterval != 500*time.Millisecond {
		t.Errorf("block interval: got %v", cfg.BlockInterval)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if cfg.Genesis.Alloc[alloc] != 1000 {
		t.Errorf("alloc: got %v", cfg.Genesis.Alloc)
	}
	if cfg.MaxBlockTxs != 500 {
		t.Errorf("default kept: got %d", cfg.MaxBlockTxs)
	}
}

func TestIdentitiesDefaultsAndOverrides(t *testing.T) {
	cfg := DefaultConfig()
	ids, err := cfg.Identities()
	if err != nil {
		t.Fatalf("Identities: %v", err)
	}
	if ids.Program != crypto.AddressFromSeed("arcade/program/cartridge") {
		t.Errorf("default program id: got %s", ids.Program)
	}
	custom := crypto.AddressFromSeed("custom")
	cfg.Programs.Asset = custom.String()
	ids, _ = cfg.Identities()
	if ids.AssetProgram != custom {
		t.Errorf("override: got %s want %s", ids.AssetProgram, custom)
	}
	cfg.Programs.System = "zz"
	if _, err := cfg.Identities(); err == nil {
		t.Error("bad hex accepted")
	}
}

func TestGenesisBlock(t *testing.T) {
	priv, pub, _ := crypto.GenerateKeyPair()
	cfg := DefaultConfig()
	alice := crypto.AddressFromSeed("alice")
	cfg.Genesis.Alloc[alice.String()] = 42
	state := testutil.NewStateDB()

	block, err := CreateGenesisBlock(cfg, state, priv)
	if err != nil {
		t.Fatalf("CreateGenesisBlock: %v", err)
	}
	if err := block.Verify(); err != nil {
		t.Fatalf("genesis signature: %v", err)
	}
	if block.Header.Proposer != pub.Address() || !IsGenesisHash(block.Header.PrevHash) {
		t.Errorf("header: %+v", block.Header)
	}
	acc, _ := state.GetAccount(alice)
	if acc.Balance != 42 {
		t.Errorf("alloc balance: got %d", acc.Balance)
	}
}
