package vm

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/events"
)

// Context is passed to every Program invocation. It exposes the ledger state,
// the triggering transaction, the accounts of the current instruction, and a
// buffer for events that are only published once the whole transaction has
// applied.
type Context struct {
	State    core.State
	Tx       *core.Transaction
	Height   int64
	Accounts []AccountInfo
	Log      zerolog.Logger

	events []events.Event
}

// Emit queues ev. TxID and BlockHeight are filled in from the context.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	ev := events.Event{Type: typ, BlockHeight: c.Height, Data: data}
	if c.Tx != nil {
		ev.TxID = c.Tx.ID
	}
	c.events = append(c.events, ev)
}

// Events returns the events queued so far.
func (c *Context) Events() []events.Event {
	return c.events
}

// Signers returns the addresses allowed to authorise a nested call: every
// account of the current instruction that signed the transaction, plus one
// program-derived address per seed set. Each seed set must already end with
// its bump byte.
func (c *Context) Signers(programID crypto.Address, seedSets ...[][]byte) (map[crypto.Address]bool, error) {
	out := make(map[crypto.Address]bool, len(c.Accounts)+len(seedSets))
	for _, acc := range c.Accounts {
		if acc.IsSigner {
			out[acc.Key] = true
		}
	}
	for _, seeds := range seedSets {
		addr, err := crypto.CreateProgramAddress(seeds, programID)
		if err != nil {
			return nil, fmt.Errorf("signer seeds: %w", err)
		}
		out[addr] = true
	}
	return out, nil
}
