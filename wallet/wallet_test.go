package wallet

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/tolelom/arcadechain/crypto"
)

func TestKeystoreRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := SaveKey(path, "hunter2", w.PrivKey()); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	priv, err := LoadKey(path, "hunter2")
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if New(priv).Address() != w.Address() {
		t.Error("loaded key has a different address")
	}
	if _, err := LoadKey(path, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password: got %v", err)
	}
}

func TestNewTxCosigners(t *testing.T) {
	payer, _ := Generate()
	cart, _ := Generate()
	system := crypto.AddressFromSeed("system")

	tx := payer.NewTx("test", 3, 1, []*Wallet{cart}, payer.Transfer("test", system, cart.Address(), 5, 0, 0).Instructions...)
	if err := tx.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	signers := tx.Signers()
	if !signers[payer.Address()] || !signers[cart.Address()] {
		t.Errorf("signers: got %v", signers)
	}
	if tx.FeePayer != payer.Address() || tx.Nonce != 3 {
		t.Errorf("header: got payer %s nonce %d", tx.FeePayer, tx.Nonce)
	}
}
