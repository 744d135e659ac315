package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/arcadechain/crypto"
)

// Signature is one signer's ed25519 signature over the transaction hash.
type Signature struct {
	Signer    crypto.Address `json:"signer"`
	Signature string         `json:"signature"`
}

// Transaction is the atomic unit of work on the chain: either every
// instruction applies or none does. FeePayer must be among the signers.
type Transaction struct {
	ID           string         `json:"id"`
	ChainID      string         `json:"chain_id"`
	FeePayer     crypto.Address `json:"fee_payer"`
	Nonce        uint64         `json:"nonce"`
	Fee          uint64         `json:"fee"`
	Timestamp    int64          `json:"timestamp"`
	Instructions []Instruction  `json:"instructions"`
	Signatures   []Signature    `json:"signatures"`
}

// signingBody holds the fields that are covered by the signatures.
type signingBody struct {
	ChainID      string         `json:"chain_id"`
	FeePayer     crypto.Address `json:"fee_payer"`
	Nonce        uint64         `json:"nonce"`
	Fee          uint64         `json:"fee"`
	Timestamp    int64          `json:"timestamp"`
	Instructions []Instruction  `json:"instructions"`
}

// Hash returns a deterministic hash of the transaction (sans Signatures).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:      tx.ChainID,
		FeePayer:     tx.FeePayer,
		Nonce:        tx.Nonce,
		Fee:          tx.Fee,
		Timestamp:    tx.Timestamp,
		Instructions: tx.Instructions,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign adds (or replaces) priv's signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	signer := priv.Public().Address()
	sig := Signature{Signer: signer, Signature: crypto.Sign(priv, []byte(hash))}
	for i := range tx.Signatures {
		if tx.Signatures[i].Signer == signer {
			tx.Signatures[i] = sig
			tx.ID = hash
			return
		}
	}
	tx.Signatures = append(tx.Signatures, sig)
	tx.ID = hash
}

// Verify checks every signature and that the fee payer signed.
func (tx *Transaction) Verify() error {
	if tx.FeePayer.IsZero() {
		return errors.New("missing fee payer")
	}
	if len(tx.Instructions) == 0 {
		return errors.New("transaction has no instructions")
	}
	hash := []byte(tx.Hash())
	seen := make(map[crypto.Address]bool, len(tx.Signatures))
	for _, s := range tx.Signatures {
		if seen[s.Signer] {
			return fmt.Errorf("duplicate signature for %s", s.Signer)
		}
		seen[s.Signer] = true
		if err := crypto.VerifyAddress(s.Signer, hash, s.Signature); err != nil {
			return fmt.Errorf("signer %s: %w", s.Signer, err)
		}
	}
	if !seen[tx.FeePayer] {
		return fmt.Errorf("fee payer %s did not sign", tx.FeePayer)
	}
	return nil
}

// Signers returns the set of addresses that signed tx. Call Verify first.
func (tx *Transaction) Signers() map[crypto.Address]bool {
	out := make(map[crypto.Address]bool, len(tx.Signatures))
	for _, s := range tx.Signatures {
		out[s.Signer] = true
	}
	return out
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, feePayer crypto.Address, nonce, fee uint64, ixs ...Instruction) *Transaction {
	return &Transaction{
		ChainID:      chainID,
		FeePayer:     feePayer,
		Nonce:        nonce,
		Fee:          fee,
		Timestamp:    time.Now().UnixNano(),
		Instructions: ixs,
	}
}
