package cartridge

import (
	"github.com/tolelom/arcadechain/assets"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/vm"
)

type commissionMachineAccounts struct {
	machine           *vm.AccountInfo // writable
	machineCollection *vm.AccountInfo // writable
	owner             *vm.AccountInfo
	payer             *vm.AccountInfo // writable, signer
	authority         *vm.AccountInfo // optional, signer
	assetProgram      *vm.AccountInfo
	systemProgram     *vm.AccountInfo
}

func (p *Program) bindCommissionMachine(accounts []vm.AccountInfo) (*commissionMachineAccounts, error) {
	it := vm.NewAccountIter(accounts)
	var a commissionMachineAccounts
	var err error
	if a.machine, err = it.NextWritable(nil); err != nil {
		return nil, err
	}
	if a.machineCollection, err = it.NextWritable(nil); err != nil {
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

// check validates the accounts and returns the machine's bump.
func (p *Program) checkCommissionMachine(a *commissionMachineAccounts, args CommissionMachineArgs) (uint8, error) {
	bump, err := vm.AssertDerivation(p.ids.Program, a.machine,
		machineSeeds(a.machineCollection.Key, args.Name), ErrInvalidMachinePdaDerivation)
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

// commissionMachine creates a machine asset in the machine collection. The
// machine starts unlocked with an empty slot only the machine itself can
// write.
func (p *Program) commissionMachine(ctx *vm.Context, svc AssetService, data []byte) error {
	args, err := DecodeCommissionMachineArgs(data)
	if err != nil {
		return err
	}
	if err := args.Check(); err != nil {
		return err
	}
	a, err := p.bindCommissionMachine(ctx.Accounts)
	if err != nil {
		return err
	}
	bump, err := p.checkCommissionMachine(a, args)
	if err != nil {
		return err
	}

	signers, err := p.signers(ctx, withBump(machineSeeds(a.machineCollection.Key, args.Name), bump))
	if err != nil {
		return err
	}
	create := assets.CreateAssetArgs{
		Asset:            a.machine.Key,
		Collection:       &a.machineCollection.Key,
		Owner:            a.owner.Key,
		Payer:            a.payer.Key,
		Name:             args.Name,
		URI:              args.URI,
		TransferLock:     &core.TransferLock{Frozen: false},
		AppDataAuthority: &a.machine.Key,
	}
	if a.authority != nil {
		create.Authority = a.authority.Key
	}
	if _, err := svc.CreateAsset(signers, create); err != nil {
		return err
	}

	ctx.Emit(events.EventMachineCommissioned, map[string]any{
		"machine":    a.machine.Key.String(),
		"collection": a.machineCollection.Key.String(),
		"owner":      a.owner.Key.String(),
		"name":       args.Name,
	})
	return nil
}
