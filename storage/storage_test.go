package storage_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/internal/testutil"
	"github.com/tolelom/arcadechain/storage"
)

func openLevel(t *testing.T) *storage.LevelDB {
	t.Helper()
	db, err := storage.NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLevelDBBasics(t *testing.T) {
	db := openLevel(t)
	if _, err := db.Get([]byte("missing")); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing key: got %v, want ErrNotFound", err)
	}

	b := db.NewBatch()
	b.Set([]byte("p:a"), []byte("1"))
	b.Set([]byte("p:b"), []byte("2"))
	b.Set([]byte("q:c"), []byte("3"))
	if err := b.Write(); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete([]byte("p:b")); err != nil {
		t.Fatal(err)
	}

	it := db.NewIterator([]byte("p:"))
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	it.Release()
	if err := it.Error(); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "p:a" {
		t.Errorf("prefix scan: got %v, want [p:a]", keys)
	}
}

func TestBlockStoreOnLevelDB(t *testing.T) {
	store := storage.NewBlockStore(openLevel(t))
	if tip, err := store.GetTip(); err != nil || tip != "" {
		t.Fatalf("fresh tip: got (%q, %v)", tip, err)
	}

	priv, pub, _ := crypto.GenerateKeyPair()
	code := uint32(11)
	block := core.NewBlock(3, "prev", pub.Address(), nil)
	block.Receipts = []*core.Receipt{
		{TxID: "ok", BlockHeight: 3, Success: true},
		{TxID: "bad", BlockHeight: 3, ErrorCode: &code, Error: "cartridge already inserted"},
	}
	block.Sign(priv)
	if err := store.CommitBlock(block); err != nil {
		t.Fatal(err)
	}

	if tip, _ := store.GetTip(); tip != block.Hash {
		t.Errorf("tip: got %q, want %q", tip, block.Hash)
	}
	got, err := store.GetBlockByHeight(3)
	if err != nil || got.Hash != block.Hash {
		t.Fatalf("by height: got (%v, %v)", got, err)
	}
	rc, err := store.GetReceipt("bad")
	if err != nil {
		t.Fatal(err)
	}
	if rc.Success || rc.ErrorCode == nil || *rc.ErrorCode != 11 {
		t.Errorf("receipt: %+v", rc)
	}
	if _, err := store.GetReceipt("never"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown receipt: got %v", err)
	}
}

func TestStateDBSnapshots(t *testing.T) {
	s := testutil.NewStateDB()
	addr := crypto.AddressFromSeed("acct")
	_ = s.SetAccount(&core.Account{Address: addr, Balance: 1})

	id, _ := s.Snapshot()
	_ = s.SetAccount(&core.Account{Address: addr, Balance: 2})
	inner, _ := s.Snapshot()
	_ = s.SetAccount(&core.Account{Address: addr, Balance: 3})

	if err := s.RevertToSnapshot(inner); err != nil {
		t.Fatal(err)
	}
	if acc, _ := s.GetAccount(addr); acc.Balance != 2 {
		t.Errorf("after inner revert: got %d, want 2", acc.Balance)
	}
	if err := s.RevertToSnapshot(id); err != nil {
		t.Fatal(err)
	}
	if acc, _ := s.GetAccount(addr); acc.Balance != 1 {
		t.Errorf("after outer revert: got %d, want 1", acc.Balance)
	}
	if err := s.RevertToSnapshot(inner); err == nil {
		t.Error("reverting a discarded snapshot should fail")
	}
}

func TestStateDBRootAndCommit(t *testing.T) {
	db := testutil.NewMemDB()
	s := storage.NewStateDB(db)
	addr := crypto.AddressFromSeed("acct")
	coll := crypto.AddressFromSeed("coll")

	empty := s.ComputeRoot()
	_ = s.SetAccount(&core.Account{Address: addr, Balance: 5})
	_ = s.SetCollection(&core.Collection{Address: coll, Name: "Zork"})
	root := s.ComputeRoot()
	if root == empty {
		t.Fatal("root ignores writes")
	}
	if db.Len() != 0 {
		t.Fatal("ComputeRoot flushed the buffer")
	}

	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	if got := s.ComputeRoot(); got != root {
		t.Errorf("root changed across commit: %s != %s", got, root)
	}

	// A second view over the same DB sees committed state and the same root.
	fresh := storage.NewStateDB(db)
	if fresh.ComputeRoot() != root {
		t.Error("fresh view computes a different root")
	}
	c, err := fresh.GetCollection(coll)
	if err != nil || c.Name != "Zork" {
		t.Errorf("committed collection: got (%v, %v)", c, err)
	}
	if _, err := fresh.GetAsset(crypto.AddressFromSeed("none")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing asset: got %v", err)
	}
	if acc, err := fresh.GetAccount(crypto.AddressFromSeed("none")); err != nil || acc.Balance != 0 {
		t.Errorf("unknown account: got (%v, %v), want zero account", acc, err)
	}
}
