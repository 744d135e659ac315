// Package economy is the system program: it moves native balance between
// accounts. Creating instructions of other programs list it as the system
// identity.
package economy

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/vm"
)

// TransferV1 is the only instruction: [0][amount u64 LE].
const TransferV1 uint8 = 0

var (
	// ErrZeroAmount is returned for a transfer of nothing.
	ErrZeroAmount = errors.New("transfer amount must be > 0")
	// ErrInsufficientBalance is returned when the sender cannot cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrSenderMustSign is returned when the sender did not sign.
	ErrSenderMustSign = errors.New("sender must sign")
)

// Program is the system program.
type Program struct {
	id crypto.Address
}

// New returns the system program registered under id.
func New(id crypto.Address) *Program {
	return &Program{id: id}
}

// ID returns the program's address.
func (p *Program) ID() crypto.Address { return p.id }

// Process handles TransferV1. Accounts: from(w,s), to(w).
func (p *Program) Process(ctx *vm.Context, data []byte) error {
	if len(data) == 0 || data[0] != TransferV1 {
		return vm.ErrInvalidInstructionData
	}
	if len(data) != 9 {
		return fmt.Errorf("decode transfer payload: %w", vm.ErrInvalidInstructionData)
	}
	amount := binary.LittleEndian.Uint64(data[1:])
	if amount == 0 {
		return ErrZeroAmount
	}
	it := vm.NewAccountIter(ctx.Accounts)
	from, err := it.NextWritable(nil)
	if err != nil {
		return err
	}
	to, err := it.NextWritable(nil)
	if err != nil {
		return err
	}
	if err := vm.AssertSigner(from, ErrSenderMustSign); err != nil {
		return err
	}

	sender, err := ctx.State.GetAccount(from.Key)
	if err != nil {
		return err
	}
	if sender.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, sender.Balance, amount)
	}
	sender.Balance -= amount
	if err := ctx.State.SetAccount(sender); err != nil {
		return err
	}

	recipient, err := ctx.State.GetAccount(to.Key)
	if err != nil {
		return err
	}
	recipient.Balance += amount
	if err := ctx.State.SetAccount(recipient); err != nil {
		return err
	}

	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"from":   from.Key.String(),
		"to":     to.Key.String(),
		"amount": amount,
	})
	return nil
}

// NewTransfer builds a TransferV1 instruction.
func NewTransfer(programID, from, to crypto.Address, amount uint64) core.Instruction {
	data := binary.LittleEndian.AppendUint64([]byte{TransferV1}, amount)
	return core.Instruction{
		ProgramID: programID,
		Accounts:  []core.AccountMeta{core.Signer(from), core.Writable(to)},
		Data:      data,
	}
}
