package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tolelom/arcadechain/config"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/rpc"
	"github.com/tolelom/arcadechain/wallet"
)

func testConfig(t *testing.T, alloc map[crypto.Address]uint64) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.RPCAddr = "127.0.0.1:0"
	cfg.BlockInterval = 20 * time.Millisecond
	for addr, bal := range alloc {
		cfg.Genesis.Alloc[addr.String()] = bal
	}
	return cfg
}

func TestNodeProducesBlocksOverRPC(t *testing.T) {
	alice, _ := wallet.Generate()
	bob, _ := wallet.Generate()
	seq, _ := wallet.Generate()
	cfg := testConfig(t, map[crypto.Address]uint64{alice.Address(): 1000})

	n, err := New(cfg, seq.PrivKey(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	committed := make(chan int64, 16)
	n.Emitter().Subscribe(events.EventTokenTransfer, func(ev events.Event) { committed <- ev.BlockHeight })

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	client := rpc.NewClient("http://"+n.RPCAddr(), "")
	ids, _ := cfg.Identities()
	tx := alice.Transfer(cfg.Genesis.ChainID, ids.SystemProgram, bob.Address(), 250, 0, 0)
	id, err := client.SendTx(ctx, tx)
	if err != nil {
		t.Fatalf("SendTx: %v", err)
	}

	select {
	case h := <-committed:
		if h < 1 {
			t.Errorf("transfer committed at height %d", h)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transfer never committed")
	}

	rc, err := client.Receipt(ctx, id)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if !rc.Success {
		t.Fatalf("receipt failed: %+v", rc)
	}
	acc, err := client.Account(ctx, bob.Address())
	if err != nil {
		t.Fatal(err)
	}
	if acc.Balance != 250 {
		t.Errorf("bob balance: got %d, want 250", acc.Balance)
	}
}

func TestNodeReopensChain(t *testing.T) {
	seq, _ := wallet.Generate()
	cfg := testConfig(t, nil)

	n, err := New(cfg, seq.PrivKey(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	genesis := n.Chain().Tip().Hash
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}

	n, err = New(cfg, seq.PrivKey(), zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer n.Close()
	if got := n.Chain().Tip().Hash; got != genesis {
		t.Errorf("tip after reopen: got %s, want genesis %s", got, genesis)
	}
}

func TestNewRegistryResolvesPrograms(t *testing.T) {
	ids, err := config.DefaultConfig().Identities()
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry(ids)
	for _, id := range []crypto.Address{ids.Program, ids.AssetProgram, ids.SystemProgram} {
		if _, ok := reg.Lookup(id); !ok {
			t.Errorf("program %s not registered", id)
		}
	}
}
