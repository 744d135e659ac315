package cartridge

import (
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/vm"
)

// couplingAccounts is the account list shared by InsertCartridgeV1 and
// RemoveCartridgeV1.
type couplingAccounts struct {
	cartridge         *vm.AccountInfo // writable
	game              *vm.AccountInfo // writable
	cartridgeOwner    *vm.AccountInfo // writable, signer
	machine           *vm.AccountInfo // writable
	machineCollection *vm.AccountInfo // writable
	machineOwner      *vm.AccountInfo
	assetProgram      *vm.AccountInfo
	systemProgram     *vm.AccountInfo
}

func bindCoupling(accounts []vm.AccountInfo) (*couplingAccounts, error) {
	it := vm.NewAccountIter(accounts)
	var a couplingAccounts
	var err error
	if a.cartridge, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.game, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.cartridgeOwner, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.machine, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.machineCollection, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.machineOwner, err = it.Next(); err != nil {
		return nil, err
	}
	if a.assetProgram, err = it.Next(); err != nil {
		return nil, err
	}
	if a.systemProgram, err = it.Next(); err != nil {
		return nil, err
	}
	return &a, nil
}

// machineSigner re-derives the machine address from the name stored in the
// machine's own record and returns the full signer seeds.
func (p *Program) machineSigner(svc AssetService, a *couplingAccounts) ([][]byte, error) {
	machine, err := readAsset(svc, a.machine.Key)
	if err != nil {
		return nil, err
	}
	seeds := machineSeeds(a.machineCollection.Key, machine.Name)
	bump, err := vm.AssertDerivation(p.ids.Program, a.machine, seeds, ErrInvalidMachinePdaDerivation)
	if err != nil {
		return nil, err
	}
	return withBump(seeds, bump), nil
}

// readSlot returns the machine's slot contents.
func readSlot(svc AssetService, machine *vm.AccountInfo) ([]byte, error) {
	slot, err := svc.AppData(machine.Key)
	if appDataMissing(err) {
		return nil, ErrDeserialization
	}
	return slot, err
}

// checkInsert runs the insert preconditions in order and returns the machine
// signer seeds.
func (p *Program) checkInsert(svc AssetService, a *couplingAccounts) ([][]byte, error) {
	if err := vm.AssertSigner(a.cartridgeOwner, ErrCartridgeOwnerMustSign); err != nil {
		return nil, err
	}
	mSeeds, err := p.machineSigner(svc, a)
	if err != nil {
		return nil, err
	}
	slot, err := readSlot(svc, a.machine)
	if err != nil {
		return nil, err
	}
	if len(slot) > 0 {
		return nil, ErrCartridgeAlreadyInserted
	}
	if err := p.checkPrograms(a.assetProgram, a.systemProgram); err != nil {
		return nil, err
	}
	return mSeeds, nil
}

// insertCartridge moves a machine's slot from empty to occupied. In order:
// the cartridge is locked with the machine as lock authority, the cartridge
// is linked to the machine, and the machine's slot records the cartridge.
func (p *Program) insertCartridge(ctx *vm.Context, svc AssetService, data []byte) error {
	args, err := DecodeCollectionArgs(data)
	if err != nil {
		return err
	}
	a, err := bindCoupling(ctx.Accounts)
	if err != nil {
		return err
	}
	mSeeds, err := p.checkInsert(svc, a)
	if err != nil {
		return err
	}
	_, gSeeds, err := p.gameSigner(svc, a.game, args)
	if err != nil {
		return err
	}

	owner, err := p.signers(ctx)
	if err != nil {
		return err
	}
	if err := svc.AddTransferLock(owner, a.cartridge.Key, core.TransferLock{
		Frozen:    true,
		Authority: a.machine.Key,
	}); err != nil {
		return err
	}

	asGame, err := p.signers(ctx, gSeeds)
	if err != nil {
		return err
	}
	if err := svc.WriteLinkedData(asGame, a.cartridge.Key, a.game.Key, a.machine.Key.Bytes()); err != nil {
		return err
	}

	asMachine, err := p.signers(ctx, mSeeds)
	if err != nil {
		return err
	}
	if err := svc.WriteAppData(asMachine, a.machine.Key, a.machine.Key, a.cartridge.Key.Bytes()); err != nil {
		return err
	}

	ctx.Emit(events.EventCartridgeInserted, map[string]any{
		"cartridge": a.cartridge.Key.String(),
		"machine":   a.machine.Key.String(),
		"game":      a.game.Key.String(),
		"owner":     a.cartridgeOwner.Key.String(),
	})
	return nil
}
