package core

import "github.com/tolelom/arcadechain/crypto"

// AccountMeta references an address an instruction reads or writes, with
// the roles the caller claims for it.
type AccountMeta struct {
	Address    crypto.Address `json:"address"`
	IsSigner   bool           `json:"is_signer"`
	IsWritable bool           `json:"is_writable"`
}

// Instruction is one program invocation inside a transaction. Data starts
// with the program's discriminator byte.
type Instruction struct {
	ProgramID crypto.Address `json:"program_id"`
	Accounts  []AccountMeta  `json:"accounts"`
	Data      []byte         `json:"data"`
}

// Writable returns a writable, non-signing account reference.
func Writable(addr crypto.Address) AccountMeta {
	return AccountMeta{Address: addr, IsWritable: true}
}

// ReadOnly returns a read-only, non-signing account reference.
func ReadOnly(addr crypto.Address) AccountMeta {
	return AccountMeta{Address: addr}
}

// Signer returns a writable signing account reference.
func Signer(addr crypto.Address) AccountMeta {
	return AccountMeta{Address: addr, IsSigner: true, IsWritable: true}
}

// ReadOnlySigner returns a read-only signing account reference.
func ReadOnlySigner(addr crypto.Address) AccountMeta {
	return AccountMeta{Address: addr, IsSigner: true}
}
