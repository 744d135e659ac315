package cartridge

import (
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
)

// CommissionMachineAccounts lists the accounts of CommissionMachineV1.
type CommissionMachineAccounts struct {
	Machine           crypto.Address
	MachineCollection crypto.Address
	Owner             crypto.Address
	Payer             crypto.Address
	Authority         *crypto.Address
}

// ReleaseGameAccounts lists the accounts of ReleaseGameV1.
type ReleaseGameAccounts struct {
	Game      crypto.Address
	Payer     crypto.Address
	Authority *crypto.Address
}

// PrintGameCartridgeAccounts lists the accounts of PrintGameCartridgeV1.
type PrintGameCartridgeAccounts struct {
	Cartridge crypto.Address
	Game      crypto.Address
	Owner     crypto.Address
	Payer     crypto.Address
	Authority *crypto.Address
}

// CouplingAccounts lists the accounts of InsertCartridgeV1 and
// RemoveCartridgeV1.
type CouplingAccounts struct {
	Cartridge         crypto.Address
	Game              crypto.Address
	CartridgeOwner    crypto.Address
	Machine           crypto.Address
	MachineCollection crypto.Address
	MachineOwner      crypto.Address
}

// optionalSigner fills an optional slot with the program id when addr is nil.
func (ids Identities) optionalSigner(addr *crypto.Address) core.AccountMeta {
	if addr == nil {
		return core.ReadOnly(ids.Program)
	}
	return core.ReadOnlySigner(*addr)
}

func (ids Identities) programs() []core.AccountMeta {
	return []core.AccountMeta{core.ReadOnly(ids.AssetProgram), core.ReadOnly(ids.SystemProgram)}
}

// NewCommissionMachine builds a CommissionMachineV1 instruction.
func (ids Identities) NewCommissionMachine(a CommissionMachineAccounts, args CommissionMachineArgs) core.Instruction {
	metas := []core.AccountMeta{
		core.Writable(a.Machine),
		core.Writable(a.MachineCollection),
		core.ReadOnly(a.Owner),
		core.Signer(a.Payer),
		ids.optionalSigner(a.Authority),
	}
	return core.Instruction{ProgramID: ids.Program, Accounts: append(metas, ids.programs()...), Data: args.Encode()}
}

// NewReleaseGame builds a ReleaseGameV1 instruction.
func (ids Identities) NewReleaseGame(a ReleaseGameAccounts, args ReleaseGameArgs) core.Instruction {
	metas := []core.AccountMeta{
		core.Writable(a.Game),
		core.Signer(a.Payer),
		ids.optionalSigner(a.Authority),
	}
	return core.Instruction{ProgramID: ids.Program, Accounts: append(metas, ids.programs()...), Data: args.Encode()}
}

// NewPrintGameCartridge builds a PrintGameCartridgeV1 instruction.
func (ids Identities) NewPrintGameCartridge(a PrintGameCartridgeAccounts, args CollectionArgs) core.Instruction {
	metas := []core.AccountMeta{
		core.Signer(a.Cartridge),
		core.Writable(a.Game),
		core.ReadOnly(a.Owner),
		core.Signer(a.Payer),
		ids.optionalSigner(a.Authority),
	}
	return core.Instruction{
		ProgramID: ids.Program,
		Accounts:  append(metas, ids.programs()...),
		Data:      args.Encode(PrintGameCartridgeV1),
	}
}

func (ids Identities) coupling(ix Instruction, a CouplingAccounts, args CollectionArgs) core.Instruction {
	metas := []core.AccountMeta{
		core.Writable(a.Cartridge),
		core.Writable(a.Game),
		core.Signer(a.CartridgeOwner),
		core.Writable(a.Machine),
		core.Writable(a.MachineCollection),
		core.ReadOnly(a.MachineOwner),
	}
	return core.Instruction{ProgramID: ids.Program, Accounts: append(metas, ids.programs()...), Data: args.Encode(ix)}
}

// NewInsertCartridge builds an InsertCartridgeV1 instruction.
func (ids Identities) NewInsertCartridge(a CouplingAccounts, args CollectionArgs) core.Instruction {
	return ids.coupling(InsertCartridgeV1, a, args)
}

// NewRemoveCartridge builds a RemoveCartridgeV1 instruction.
func (ids Identities) NewRemoveCartridge(a CouplingAccounts, args CollectionArgs) core.Instruction {
	return ids.coupling(RemoveCartridgeV1, a, args)
}
