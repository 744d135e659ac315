package vm

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/events"
)

var (
	// ErrUnsignedSigner is returned when an instruction claims an account
	// signed but the transaction carries no signature for it.
	ErrUnsignedSigner = errors.New("vm: account marked signer has no signature")
	// ErrBadNonce is returned when the fee payer's nonce does not match.
	ErrBadNonce = errors.New("vm: invalid nonce")
	// ErrInsufficientFee is returned when the fee payer cannot cover the fee.
	ErrInsufficientFee = errors.New("vm: insufficient balance for fee")
)

// Outcome is the result of executing one admitted transaction. Events are
// only populated for successful transactions, plus one trailing tx event.
type Outcome struct {
	Receipt *core.Receipt
	Events  []events.Event
}

// Executor applies transactions to the state one at a time. Any program
// error reverts every instruction of the transaction; the fee and nonce are
// still charged.
type Executor struct {
	mu       sync.Mutex
	state    core.State
	registry *Registry
	log      zerolog.Logger
}

// NewExecutor creates an Executor over state dispatching to registry.
func NewExecutor(state core.State, registry *Registry, logger zerolog.Logger) *Executor {
	return &Executor{
		state:    state,
		registry: registry,
		log:      logger.With().Str("component", "executor").Logger(),
	}
}

// ExecuteTx runs tx at the given block height. A returned error means the
// transaction was rejected before execution and must not be sealed. A
// failing instruction is not an error here: it yields a failed receipt.
func (e *Executor) ExecuteTx(height int64, tx *core.Transaction) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := tx.Verify(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	signers := tx.Signers()
	for i, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner && !signers[meta.Address] {
				return nil, fmt.Errorf("instruction %d account %s: %w", i, meta.Address, ErrUnsignedSigner)
			}
		}
	}
	if err := e.chargeFee(tx); err != nil {
		return nil, err
	}

	receipt := &core.Receipt{TxID: tx.ID, BlockHeight: height}
	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	evs, runErr := e.run(height, tx)
	if runErr != nil {
		if err := e.state.RevertToSnapshot(snapID); err != nil {
			return nil, fmt.Errorf("revert snapshot after tx failure: %w (cause: %v)", err, runErr)
		}
		receipt.Error = runErr.Error()
		var coded CodedError
		if errors.As(runErr, &coded) {
			code := coded.Code()
			receipt.ErrorCode = &code
		}
		e.log.Debug().Str("tx", tx.ID).Err(runErr).Msg("transaction failed")
		return &Outcome{
			Receipt: receipt,
			Events: []events.Event{{
				Type:        events.EventTxFailed,
				TxID:        tx.ID,
				BlockHeight: height,
				Data:        map[string]any{"fee_payer": tx.FeePayer.String(), "error": receipt.Error},
			}},
		}, nil
	}

	receipt.Success = true
	evs = append(evs, events.Event{
		Type:        events.EventTxExecuted,
		TxID:        tx.ID,
		BlockHeight: height,
		Data:        map[string]any{"fee_payer": tx.FeePayer.String(), "instructions": len(tx.Instructions)},
	})
	return &Outcome{Receipt: receipt, Events: evs}, nil
}

// chargeFee deducts the fee and increments the fee payer's nonce.
func (e *Executor) chargeFee(tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.FeePayer)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("%w: expected %d got %d", ErrBadNonce, acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("%w: have %d need %d", ErrInsufficientFee, acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.FeePayer)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	return e.state.SetAccount(acc)
}

// run dispatches every instruction in order and stops at the first error.
func (e *Executor) run(height int64, tx *core.Transaction) ([]events.Event, error) {
	var evs []events.Event
	for i, ix := range tx.Instructions {
		ctx := &Context{
			State:    e.state,
			Tx:       tx,
			Height:   height,
			Accounts: accountInfos(ix.Accounts),
			Log:      e.log.With().Str("tx", tx.ID).Int("ix", i).Logger(),
		}
		if err := e.registry.Execute(ix.ProgramID, ctx, ix.Data); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		evs = append(evs, ctx.Events()...)
	}
	return evs, nil
}

func accountInfos(metas []core.AccountMeta) []AccountInfo {
	out := make([]AccountInfo, len(metas))
	for i, m := range metas {
		out[i] = AccountInfo{Key: m.Address, IsSigner: m.IsSigner, IsWritable: m.IsWritable}
	}
	return out
}
