package wallet

import (
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/vm/modules/economy"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	addr crypto.Address
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, addr: priv.Public().Address()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// Address returns the wallet's address, which is its ed25519 public key.
func (w *Wallet) Address() crypto.Address {
	return w.addr
}

// NewTx creates a transaction paid by w and signed by w and every cosigner.
// Cosigners are needed whenever an instruction marks one of their addresses
// as a signer, e.g. a freshly generated cartridge key.
// nonce should match the fee payer's current nonce.
func (w *Wallet) NewTx(chainID string, nonce, fee uint64, cosigners []*Wallet, ixs ...core.Instruction) *core.Transaction {
	tx := core.NewTransaction(chainID, w.addr, nonce, fee, ixs...)
	tx.Sign(w.priv)
	for _, c := range cosigners {
		tx.Sign(c.priv)
	}
	return tx
}

// Transfer creates a signed native balance transfer through the system program.
func (w *Wallet) Transfer(chainID string, systemProgram, to crypto.Address, amount, nonce, fee uint64) *core.Transaction {
	return w.NewTx(chainID, nonce, fee, nil, economy.NewTransfer(systemProgram, w.addr, to, amount))
}
