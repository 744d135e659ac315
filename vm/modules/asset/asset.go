// Package asset is the instruction program of the asset-record service. It
// exposes the service operations that wallets call directly: creating a
// plain collection and transferring an asset.
package asset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tolelom/arcadechain/assets"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/vm"
)

// Discriminators of the asset program.
const (
	CreateCollectionV1 uint8 = 0
	TransferV1         uint8 = 1
)

// ErrMalformedPayload is returned when instruction data cannot be decoded.
var ErrMalformedPayload = errors.New("asset: malformed payload")

// Program is the asset-record service program.
type Program struct {
	id crypto.Address
}

// New returns the asset program registered under id.
func New(id crypto.Address) *Program {
	return &Program{id: id}
}

// ID returns the program's address.
func (p *Program) ID() crypto.Address { return p.id }

// Process dispatches data by its leading discriminator.
func (p *Program) Process(ctx *vm.Context, data []byte) error {
	if len(data) == 0 {
		return vm.ErrInvalidInstructionData
	}
	switch data[0] {
	case CreateCollectionV1:
		return p.createCollection(ctx, data)
	case TransferV1:
		return p.transfer(ctx, data)
	default:
		return vm.ErrInvalidInstructionData
	}
}

// CreateCollectionArgs is the payload of CreateCollectionV1.
type CreateCollectionArgs struct {
	Name string
	URI  string
}

// Encode returns the full instruction data.
func (a CreateCollectionArgs) Encode() []byte {
	buf := []byte{CreateCollectionV1}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a.Name)))
	buf = append(buf, a.Name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a.URI)))
	return append(buf, a.URI...)
}

func readString(data []byte, off int) (string, int, error) {
	if len(data)-off < 4 {
		return "", 0, ErrMalformedPayload
	}
	n := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if n < 0 || len(data)-off < n || !utf8.Valid(data[off:off+n]) {
		return "", 0, ErrMalformedPayload
	}
	return string(data[off : off+n]), off + n, nil
}

// DecodeCreateCollectionArgs parses CreateCollectionV1 instruction data.
func DecodeCreateCollectionArgs(data []byte) (CreateCollectionArgs, error) {
	var a CreateCollectionArgs
	off := 1
	var err error
	if a.Name, off, err = readString(data, off); err != nil {
		return a, err
	}
	if a.URI, off, err = readString(data, off); err != nil {
		return a, err
	}
	if off != len(data) {
		return a, ErrMalformedPayload
	}
	return a, nil
}

// createCollection accounts: collection(w,s), update authority, payer(w,s).
func (p *Program) createCollection(ctx *vm.Context, data []byte) error {
	args, err := DecodeCreateCollectionArgs(data)
	if err != nil {
		return err
	}
	if args.Name == "" {
		return errors.New("collection name required")
	}
	it := vm.NewAccountIter(ctx.Accounts)
	collection, err := it.NextWritable(nil)
	if err != nil {
		return err
	}
	updateAuthority, err := it.Next()
	if err != nil {
		return err
	}
	payer, err := it.NextWritable(nil)
	if err != nil {
		return err
	}

	signers, err := ctx.Signers(p.id)
	if err != nil {
		return err
	}
	c, err := assets.New(ctx.State).CreateCollection(signers, assets.CreateCollectionArgs{
		Collection:      collection.Key,
		UpdateAuthority: updateAuthority.Key,
		Payer:           payer.Key,
		Name:            args.Name,
		URI:             args.URI,
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	ctx.Emit(events.EventCollectionCreated, map[string]any{
		"collection":       c.Address.String(),
		"name":             c.Name,
		"update_authority": c.UpdateAuthority.String(),
	})
	return nil
}

// transfer accounts: asset(w), collection (optional), owner(s), new owner.
func (p *Program) transfer(ctx *vm.Context, data []byte) error {
	if len(data) != 1 {
		return ErrMalformedPayload
	}
	it := vm.NewAccountIter(ctx.Accounts)
	asset, err := it.NextWritable(nil)
	if err != nil {
		return err
	}
	collection, err := it.NextOptional(p.id)
	if err != nil {
		return err
	}
	owner, err := it.Next()
	if err != nil {
		return err
	}
	newOwner, err := it.Next()
	if err != nil {
		return err
	}

	var coll *crypto.Address
	if collection != nil {
		coll = &collection.Key
	}
	signers, err := ctx.Signers(p.id)
	if err != nil {
		return err
	}
	if err := assets.New(ctx.State).Transfer(signers, asset.Key, coll, newOwner.Key); err != nil {
		return fmt.Errorf("transfer asset %s: %w", asset.Key, err)
	}

	ctx.Emit(events.EventAssetTransfer, map[string]any{
		"asset": asset.Key.String(),
		"from":  owner.Key.String(),
		"to":    newOwner.Key.String(),
	})
	return nil
}

// NewCreateCollection builds a CreateCollectionV1 instruction.
func NewCreateCollection(programID, collection, updateAuthority, payer crypto.Address, args CreateCollectionArgs) core.Instruction {
	return core.Instruction{
		ProgramID: programID,
		Accounts: []core.AccountMeta{
			core.Signer(collection),
			core.ReadOnly(updateAuthority),
			core.Signer(payer),
		},
		Data: args.Encode(),
	}
}

// NewTransfer builds a TransferV1 instruction. collection may be nil for
// assets outside any collection.
func NewTransfer(programID, asset crypto.Address, collection *crypto.Address, owner, newOwner crypto.Address) core.Instruction {
	coll := core.ReadOnly(programID)
	if collection != nil {
		coll = core.ReadOnly(*collection)
	}
	return core.Instruction{
		ProgramID: programID,
		Accounts: []core.AccountMeta{
			core.Writable(asset),
			coll,
			core.ReadOnlySigner(owner),
			core.ReadOnly(newOwner),
		},
		Data: []byte{TransferV1},
	}
}
