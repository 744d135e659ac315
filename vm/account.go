package vm

import (
	"errors"

	"github.com/tolelom/arcadechain/crypto"
)

var (
	// ErrNotEnoughAccounts is returned when an instruction lists fewer
	// accounts than its program requires.
	ErrNotEnoughAccounts = errors.New("vm: not enough account keys")
	// ErrInvalidInstructionData is returned for an empty payload or an
	// unknown discriminator.
	ErrInvalidInstructionData = errors.New("vm: invalid instruction data")
	// ErrAccountNotWritable is the default error for AssertWritable.
	ErrAccountNotWritable = errors.New("vm: account must be writable")
)

// AccountInfo is an account reference as seen by a program. IsSigner is
// only true when the transaction carries a valid signature for Key.
type AccountInfo struct {
	Key        crypto.Address
	IsSigner   bool
	IsWritable bool
}

// AccountIter hands out an instruction's accounts in declaration order.
type AccountIter struct {
	accounts []AccountInfo
	pos      int
}

// NewAccountIter starts iterating accounts from the first one.
func NewAccountIter(accounts []AccountInfo) *AccountIter {
	return &AccountIter{accounts: accounts}
}

// Next returns the next required account.
func (it *AccountIter) Next() (*AccountInfo, error) {
	if it.pos >= len(it.accounts) {
		return nil, ErrNotEnoughAccounts
	}
	acc := &it.accounts[it.pos]
	it.pos++
	return acc, nil
}

// NextOptional returns the next optional account, or nil when the caller
// left the slot empty by passing the program's own id as a placeholder.
func (it *AccountIter) NextOptional(programID crypto.Address) (*AccountInfo, error) {
	acc, err := it.Next()
	if err != nil {
		return nil, err
	}
	if acc.Key == programID {
		return nil, nil
	}
	return acc, nil
}

// NextWritable returns the next required account and fails with err when
// the caller did not mark it writable.
func (it *AccountIter) NextWritable(err error) (*AccountInfo, error) {
	acc, iterErr := it.Next()
	if iterErr != nil {
		return nil, iterErr
	}
	if aerr := AssertWritable(acc, err); aerr != nil {
		return nil, aerr
	}
	return acc, nil
}
