package consensus

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tolelom/arcadechain/config"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/internal/testutil"
	"github.com/tolelom/arcadechain/storage"
	"github.com/tolelom/arcadechain/vm"
	"github.com/tolelom/arcadechain/vm/modules/economy"
	"github.com/tolelom/arcadechain/wallet"
)

var systemID = crypto.AddressFromSeed("test/system")

type node struct {
	seq     *Sequencer
	bc      *core.Blockchain
	state   *storage.StateDB
	mempool *core.Mempool
	emitter *events.Emitter
}

func newNode(t *testing.T, alloc map[crypto.Address]uint64) *node {
	t.Helper()
	cfg := config.DefaultConfig()
	for addr, bal := range alloc {
		cfg.Genesis.Alloc[addr.String()] = bal
	}
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	state := testutil.NewStateDB()
	bc := core.NewBlockchain(testutil.NewBlockStore())
	genesis, err := config.CreateGenesisBlock(cfg, state, priv)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if err := bc.AddBlock(genesis); err != nil {
		t.Fatalf("add genesis: %v", err)
	}

	reg := vm.NewRegistry()
	reg.Register(economy.New(systemID))
	emitter := events.NewEmitter(zerolog.Nop())
	mempool := core.NewMempool(cfg.Genesis.ChainID)
	exec := vm.NewExecutor(state, reg, zerolog.Nop())
	return &node{
		seq:     New(cfg, bc, state, mempool, exec, emitter, priv, zerolog.Nop()),
		bc:      bc,
		state:   state,
		mempool: mempool,
		emitter: emitter,
	}
}

func TestProduceBlockSealsReceipts(t *testing.T) {
	alice, _ := wallet.Generate()
	bob, _ := wallet.Generate()
	n := newNode(t, map[crypto.Address]uint64{alice.Address(): 1000})

	var seen []events.EventType
	var heightAtEmit int64
	n.emitter.SubscribeAll(func(ev events.Event) {
		seen = append(seen, ev.Type)
		heightAtEmit = n.bc.Height()
	})

	ok := alice.Transfer("arcade-dev", systemID, bob.Address(), 300, 0, 1)
	failing := alice.Transfer("arcade-dev", systemID, bob.Address(), 5000, 1, 1)
	badNonce := alice.Transfer("arcade-dev", systemID, bob.Address(), 1, 7, 1)
	for _, tx := range []*core.Transaction{ok, failing, badNonce} {
		if err := n.mempool.Add(tx); err != nil {
			t.Fatalf("mempool add: %v", err)
		}
	}

	block, err := n.seq.ProduceBlock()
	if err != nil {
		t.Fatalf("ProduceBlock: %v", err)
	}
	if block.Header.Height != 1 || len(block.Transactions) != 2 || len(block.Receipts) != 2 {
		t.Fatalf("block: height %d txs %d receipts %d", block.Header.Height, len(block.Transactions), len(block.Receipts))
	}
	if !block.Receipts[0].Success || block.Receipts[1].Success {
		t.Errorf("receipts: %+v %+v", block.Receipts[0], block.Receipts[1])
	}
	if n.mempool.Size() != 0 {
		t.Errorf("mempool size: got %d want 0", n.mempool.Size())
	}

	acc, _ := n.state.GetAccount(alice.Address())
	// 300 moved, two fees charged; the failed transfer only costs its fee.
	if acc.Balance != 698 || acc.Nonce != 2 {
		t.Errorf("alice: got balance %d nonce %d", acc.Balance, acc.Nonce)
	}
	r, err := n.bc.GetReceipt(failing.ID)
	if err != nil || r.Success {
		t.Errorf("stored receipt: %+v, %v", r, err)
	}

	want := []events.EventType{events.EventTokenTransfer, events.EventTxExecuted, events.EventTxFailed, events.EventBlockCommit}
	if len(seen) != len(want) {
		t.Fatalf("events: got %v want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event %d: got %s want %s", i, seen[i], want[i])
		}
	}
	if heightAtEmit != 1 {
		t.Errorf("events emitted before commit: chain height %d", heightAtEmit)
	}
}

func TestProduceBlockEmpty(t *testing.T) {
	n := newNode(t, nil)
	if _, err := n.seq.ProduceBlock(); !errors.Is(err, ErrEmptyBlock) {
		t.Errorf("got %v want ErrEmptyBlock", err)
	}
	if n.bc.Height() != 0 {
		t.Errorf("height: got %d", n.bc.Height())
	}
}

func TestFailedTxLeavesRootUnchangedButFee(t *testing.T) {
	alice, _ := wallet.Generate()
	bob, _ := wallet.Generate()
	n := newNode(t, map[crypto.Address]uint64{alice.Address(): 10})

	before, _ := n.state.GetAccount(bob.Address())
	_ = n.mempool.Add(alice.Transfer("arcade-dev", systemID, bob.Address(), 50, 0, 0))
	block, err := n.seq.ProduceBlock()
	if err != nil {
		t.Fatalf("ProduceBlock: %v", err)
	}
	if block.Receipts[0].Success {
		t.Fatal("overdraft succeeded")
	}
	after, _ := n.state.GetAccount(bob.Address())
	if after.Balance != before.Balance {
		t.Errorf("bob balance changed: %d -> %d", before.Balance, after.Balance)
	}
	acc, _ := n.state.GetAccount(alice.Address())
	if acc.Balance != 10 || acc.Nonce != 1 {
		t.Errorf("alice: balance %d nonce %d", acc.Balance, acc.Nonce)
	}
}
