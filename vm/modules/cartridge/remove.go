package cartridge

import (
	"bytes"

	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/vm"
)

// checkRemove mirrors checkInsert but requires the slot to hold exactly the
// cartridge being removed.
func (p *Program) checkRemove(svc AssetService, a *couplingAccounts) ([][]byte, error) {
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
	if len(slot) == 0 || !bytes.Equal(slot, a.cartridge.Key.Bytes()) {
		return nil, ErrCartridgeNotInserted
	}
	if err := p.checkPrograms(a.assetProgram, a.systemProgram); err != nil {
		return nil, err
	}
	return mSeeds, nil
}

// removeCartridge moves a machine's slot from occupied to empty. The machine
// unfreezes the cartridge before the owner drops the lock, and only then are
// the link and the slot cleared.
func (p *Program) removeCartridge(ctx *vm.Context, svc AssetService, data []byte) error {
	args, err := DecodeCollectionArgs(data)
	if err != nil {
		return err
	}
	a, err := bindCoupling(ctx.Accounts)
	if err != nil {
		return err
	}
	mSeeds, err := p.checkRemove(svc, a)
	if err != nil {
		return err
	}
	_, gSeeds, err := p.gameSigner(svc, a.game, args)
	if err != nil {
		return err
	}

	asMachine, err := p.signers(ctx, mSeeds)
	if err != nil {
		return err
	}
	if err := svc.SetFrozen(asMachine, a.cartridge.Key, false); err != nil {
		return err
	}
	owner, err := p.signers(ctx)
	if err != nil {
		return err
	}
	if err := svc.RemoveTransferLock(owner, a.cartridge.Key); err != nil {
		return err
	}

	asGame, err := p.signers(ctx, gSeeds)
	if err != nil {
		return err
	}
	if err := svc.WriteLinkedData(asGame, a.cartridge.Key, a.game.Key, []byte{}); err != nil {
		return err
	}
	if err := svc.WriteAppData(asMachine, a.machine.Key, a.machine.Key, []byte{}); err != nil {
		return err
	}

	ctx.Emit(events.EventCartridgeRemoved, map[string]any{
		"cartridge": a.cartridge.Key.String(),
		"machine":   a.machine.Key.String(),
		"game":      a.game.Key.String(),
		"owner":     a.cartridgeOwner.Key.String(),
	})
	return nil
}
