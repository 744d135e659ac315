package cartridge

import (
	"fmt"

	"github.com/tolelom/arcadechain/assets"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/vm"
)

type printGameCartridgeAccounts struct {
	cartridge     *vm.AccountInfo // writable, signer
	game          *vm.AccountInfo // writable
	owner         *vm.AccountInfo
	payer         *vm.AccountInfo // writable, signer
	authority     *vm.AccountInfo // optional, signer
	assetProgram  *vm.AccountInfo
	systemProgram *vm.AccountInfo
}

func (p *Program) bindPrintGameCartridge(accounts []vm.AccountInfo) (*printGameCartridgeAccounts, error) {
	it := vm.NewAccountIter(accounts)
	var a printGameCartridgeAccounts
	var err error
	if a.cartridge, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.game, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.owner, err = it.Next(); err != nil {
		return nil, err
	}
	if a.payer, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.authority, err = it.NextOptional(p.ids.Program); err != nil {
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

// printGameCartridge mints the next edition of a game. The cartridge address
// is a fresh key that signs the transaction; the game signs by derivation.
func (p *Program) printGameCartridge(ctx *vm.Context, svc AssetService, data []byte) error {
	args, err := DecodeCollectionArgs(data)
	if err != nil {
		return err
	}
	a, err := p.bindPrintGameCartridge(ctx.Accounts)
	if err != nil {
		return err
	}
	if err := checkPayer(a.payer, a.authority); err != nil {
		return err
	}
	if err := p.checkPrograms(a.assetProgram, a.systemProgram); err != nil {
		return err
	}

	game, seeds, err := p.gameSigner(svc, a.game, args)
	if err != nil {
		return err
	}
	signers, err := p.signers(ctx, seeds)
	if err != nil {
		return err
	}
	edition := game.NumMinted + 1
	if _, err := svc.CreateAsset(signers, assets.CreateAssetArgs{
		Asset:      a.cartridge.Key,
		Collection: &a.game.Key,
		Owner:      a.owner.Key,
		Payer:      a.payer.Key,
		Authority:  a.game.Key,
		Name:       fmt.Sprintf("%s %d", game.Name, edition),
		URI:        game.URI,
		Edition:    &core.Edition{Number: edition},
	}); err != nil {
		return err
	}

	ctx.Emit(events.EventCartridgePrinted, map[string]any{
		"cartridge": a.cartridge.Key.String(),
		"game":      a.game.Key.String(),
		"owner":     a.owner.Key.String(),
		"edition":   edition,
	})
	return nil
}
