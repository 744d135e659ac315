// Package cartridge implements the machine/cartridge program: game
// collections print cartridges, machines hold at most one inserted cartridge,
// and an inserted cartridge stays transfer-locked under the machine's
// authority until it is removed.
package cartridge

import (
	"errors"

	"github.com/tolelom/arcadechain/assets"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/vm"
)

// Identities are the fixed addresses the program checks accounts against.
// They are set once at startup.
type Identities struct {
	Program      crypto.Address
	AssetProgram crypto.Address
	// SystemProgram is the native balance program every creating
	// instruction lists.
	SystemProgram crypto.Address
	// PlatformRecipient receives the platform share of game royalties.
	PlatformRecipient crypto.Address
}

// RoyaltyBasisPoints is the secondary-sale royalty of every game.
const RoyaltyBasisPoints = 500

// Royalty split between the game authority and the platform, in percent.
const (
	CreatorShare  = 90
	PlatformShare = 10
)

// AssetService is the part of the asset-record service the program calls.
type AssetService interface {
	GetAsset(addr crypto.Address) (*core.Asset, error)
	CollectionSummary(addr crypto.Address) (assets.Summary, error)
	AppData(addr crypto.Address) ([]byte, error)

	CreateAsset(signers assets.Signers, args assets.CreateAssetArgs) (*core.Asset, error)
	CreateCollection(signers assets.Signers, args assets.CreateCollectionArgs) (*core.Collection, error)
	WriteCollectionData(signers assets.Signers, addr, authority crypto.Address, data []byte) error
	AddTransferLock(signers assets.Signers, addr crypto.Address, lock core.TransferLock) error
	SetFrozen(signers assets.Signers, addr crypto.Address, frozen bool) error
	RemoveTransferLock(signers assets.Signers, addr crypto.Address) error
	WriteLinkedData(signers assets.Signers, addr, authority crypto.Address, data []byte) error
	WriteAppData(signers assets.Signers, addr, authority crypto.Address, data []byte) error
}

// ServiceFactory opens an AssetService over a transaction's state.
type ServiceFactory func(core.State) AssetService

func defaultService(state core.State) AssetService { return assets.New(state) }

// Option configures a Program.
type Option func(*Program)

// WithServiceFactory replaces the asset service the program calls into.
func WithServiceFactory(f ServiceFactory) Option {
	return func(p *Program) { p.newService = f }
}

type handler func(p *Program, ctx *vm.Context, svc AssetService, data []byte) error

// handlers is the pinned discriminator table.
var handlers = map[Instruction]handler{
	CommissionMachineV1:  (*Program).commissionMachine,
	ReleaseGameV1:        (*Program).releaseGame,
	PrintGameCartridgeV1: (*Program).printGameCartridge,
	InsertCartridgeV1:    (*Program).insertCartridge,
	RemoveCartridgeV1:    (*Program).removeCartridge,
}

// Program is the cartridge program. It implements vm.Program.
type Program struct {
	ids        Identities
	newService ServiceFactory
}

// New returns the program for ids.
func New(ids Identities, opts ...Option) *Program {
	p := &Program{ids: ids, newService: defaultService}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the program's address.
func (p *Program) ID() crypto.Address { return p.ids.Program }

// Identities returns the addresses the program was configured with.
func (p *Program) Identities() Identities { return p.ids }

// Process dispatches data by its leading discriminator.
func (p *Program) Process(ctx *vm.Context, data []byte) error {
	if len(data) == 0 {
		return vm.ErrInvalidInstructionData
	}
	ix := Instruction(data[0])
	h, ok := handlers[ix]
	if !ok {
		return vm.ErrInvalidInstructionData
	}
	ctx.Log.Debug().Msg("Instruction: " + ix.String())
	return h(p, ctx, p.newService(ctx.State), data)
}

// signers builds the authorisation set for a service call: the transaction
// signers of this instruction plus the program-derived addresses of seedSets.
func (p *Program) signers(ctx *vm.Context, seedSets ...[][]byte) (assets.Signers, error) {
	s, err := ctx.Signers(p.ids.Program, seedSets...)
	if err != nil {
		return nil, err
	}
	return assets.Signers(s), nil
}

// checkPrograms verifies the asset-service and system identities.
func (p *Program) checkPrograms(assetProgram, systemProgram *vm.AccountInfo) error {
	if err := vm.AssertProgramID(assetProgram, p.ids.AssetProgram, ErrInvalidAssetProgram); err != nil {
		return err
	}
	return vm.AssertProgramID(systemProgram, p.ids.SystemProgram, ErrInvalidSystemProgram)
}

// checkPayer verifies the payer and the optional authority signed.
func checkPayer(payer, authority *vm.AccountInfo) error {
	if err := vm.AssertSigner(payer, ErrPayerMustSign); err != nil {
		return err
	}
	if authority != nil {
		return vm.AssertSigner(authority, ErrAuthorityMustSign)
	}
	return nil
}

// readAsset maps a missing record to ErrDeserialization.
func readAsset(svc AssetService, addr crypto.Address) (*core.Asset, error) {
	a, err := svc.GetAsset(addr)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrDeserialization
	}
	return a, err
}

// readSummary maps a missing collection to ErrDeserialization.
func readSummary(svc AssetService, addr crypto.Address) (assets.Summary, error) {
	s, err := svc.CollectionSummary(addr)
	if errors.Is(err, core.ErrNotFound) {
		return assets.Summary{}, ErrDeserialization
	}
	return s, err
}

// gameSigner recomputes the game collection's address from its stored name
// and the caller's nonce and bump. It returns the full signer seeds.
func (p *Program) gameSigner(svc AssetService, game *vm.AccountInfo, args CollectionArgs) (assets.Summary, [][]byte, error) {
	summary, err := readSummary(svc, game.Key)
	if err != nil {
		return assets.Summary{}, nil, err
	}
	seeds := gameSeeds(summary.Name, args.Nonce)
	if err := crypto.VerifyProgramAddress(game.Key, seeds, args.Bump, p.ids.Program); err != nil {
		return assets.Summary{}, nil, ErrInvalidGamePdaDerivation
	}
	return summary, withBump(seeds, args.Bump), nil
}

func appDataMissing(err error) bool {
	return errors.Is(err, assets.ErrNoAppData) || errors.Is(err, core.ErrNotFound)
}
