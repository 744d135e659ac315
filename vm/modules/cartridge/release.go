package cartridge

import (
	"github.com/tolelom/arcadechain/assets"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/vm"
)

type releaseGameAccounts struct {
	game          *vm.AccountInfo // writable
	payer         *vm.AccountInfo // writable, signer
	authority     *vm.AccountInfo // optional, signer
	assetProgram  *vm.AccountInfo
	systemProgram *vm.AccountInfo
}

func (p *Program) bindReleaseGame(accounts []vm.AccountInfo) (*releaseGameAccounts, error) {
	it := vm.NewAccountIter(accounts)
	var a releaseGameAccounts
	var err error
	if a.game, err = it.NextWritable(nil); err != nil {
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

func (p *Program) checkReleaseGame(a *releaseGameAccounts, args ReleaseGameArgs) (uint8, error) {
	bump, err := vm.AssertDerivation(p.ids.Program, a.game,
		gameSeeds(args.Name, args.Nonce), ErrInvalidGamePdaDerivation)
	if err != nil {
		return 0, err
	}
	if err := checkPayer(a.payer, a.authority); err != nil {
		return 0, err
	}
	if err := p.checkPrograms(a.assetProgram, a.systemProgram); err != nil {
		return 0, err
	}
	return bump, nil
}

// releaseGame creates a game collection that is its own update authority,
// then stores the game's price in the collection data blob.
func (p *Program) releaseGame(ctx *vm.Context, svc AssetService, data []byte) error {
	args, err := DecodeReleaseGameArgs(data)
	if err != nil {
		return err
	}
	if err := args.Check(); err != nil {
		return err
	}
	a, err := p.bindReleaseGame(ctx.Accounts)
	if err != nil {
		return err
	}
	bump, err := p.checkReleaseGame(a, args)
	if err != nil {
		return err
	}

	signers, err := p.signers(ctx, withBump(gameSeeds(args.Name, args.Nonce), bump))
	if err != nil {
		return err
	}
	creator := a.payer.Key
	if a.authority != nil {
		creator = a.authority.Key
	}
	if _, err := svc.CreateCollection(signers, assets.CreateCollectionArgs{
		Collection:      a.game.Key,
		UpdateAuthority: a.game.Key,
		Payer:           a.payer.Key,
		Name:            args.Name,
		URI:             args.URI,
		MasterEdition:   &core.MasterEdition{},
		Royalties: &core.Royalties{
			BasisPoints: RoyaltyBasisPoints,
			Creators: []core.Creator{
				{Address: creator, Percentage: CreatorShare},
				{Address: p.ids.PlatformRecipient, Percentage: PlatformShare},
			},
		},
		LinkedData: true,
	}); err != nil {
		return err
	}

	blob, err := GameCollectionData{Version: 0, Price: args.Price}.MarshalBinary()
	if err != nil {
		return ErrSerialization
	}
	if err := svc.WriteCollectionData(signers, a.game.Key, a.game.Key, blob); err != nil {
		return err
	}

	ctx.Emit(events.EventGameReleased, map[string]any{
		"game":  a.game.Key.String(),
		"name":  args.Name,
		"price": args.Price,
	})
	return nil
}
