// Package assets implements the asset-record service: it creates and stores
// assets and collections, toggles transfer locks, and persists the linked
// metadata blobs other programs attach to records. Every mutating call takes
// the set of addresses that authorised it.
package assets

import (
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
)

// Signers is the set of addresses that authorised a call, whether by
// transaction signature or by program-derived seeds.
type Signers map[crypto.Address]bool

// With returns a copy of s extended by extra.
func (s Signers) With(extra ...crypto.Address) Signers {
	out := make(Signers, len(s)+len(extra))
	for k, v := range s {
		out[k] = v
	}
	for _, a := range extra {
		out[a] = true
	}
	return out
}

func (s Signers) require(addr crypto.Address, role string) error {
	if !s[addr] {
		return fmt.Errorf("%s %s: %w", role, addr, ErrMissingSignature)
	}
	return nil
}

// CreateAssetArgs describes a new asset. A zero Authority means the payer
// acts as the collection authority.
type CreateAssetArgs struct {
	Asset      crypto.Address
	Collection *crypto.Address
	Owner      crypto.Address
	Payer      crypto.Address
	Authority  crypto.Address
	Name       string
	URI        string

	TransferLock *core.TransferLock
	Edition      *core.Edition
	// AppDataAuthority, when set, attaches an empty AppData blob writable
	// only by that address.
	AppDataAuthority *crypto.Address
}

// CreateCollectionArgs describes a new collection.
type CreateCollectionArgs struct {
	Collection      crypto.Address
	UpdateAuthority crypto.Address
	Payer           crypto.Address
	Name            string
	URI             string
	MasterEdition   *core.MasterEdition
	Royalties       *core.Royalties
	LinkedData      bool
}

// Summary is the read-only view of a collection other programs rely on.
type Summary struct {
	Name      string
	URI       string
	NumMinted uint32
}

// Service is the asset-record service over a ledger state.
type Service struct {
	state core.State
	now   func() int64
}

// New returns a Service reading and writing state.
func New(state core.State) *Service {
	return &Service{state: state, now: func() int64 { return time.Now().UnixNano() }}
}

// ---- reads ----

// GetAsset returns the asset stored at addr.
func (s *Service) GetAsset(addr crypto.Address) (*core.Asset, error) {
	a, err := s.state.GetAsset(addr)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", addr, err)
	}
	return a, nil
}

// GetCollection returns the collection stored at addr.
func (s *Service) GetCollection(addr crypto.Address) (*core.Collection, error) {
	c, err := s.state.GetCollection(addr)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", addr, err)
	}
	return c, nil
}

// CollectionSummary returns name, uri and minted count of a collection.
func (s *Service) CollectionSummary(addr crypto.Address) (Summary, error) {
	c, err := s.GetCollection(addr)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Name: c.Name, URI: c.URI, NumMinted: c.NumMinted}, nil
}

// AppData returns the asset's AppData blob.
func (s *Service) AppData(addr crypto.Address) ([]byte, error) {
	a, err := s.GetAsset(addr)
	if err != nil {
		return nil, err
	}
	if a.AppData == nil {
		return nil, ErrNoAppData
	}
	return a.AppData.Data, nil
}

// LinkedData returns the asset's linked-data blob (empty if never written).
func (s *Service) LinkedData(addr crypto.Address) ([]byte, error) {
	a, err := s.GetAsset(addr)
	if err != nil {
		return nil, err
	}
	return a.LinkedData, nil
}

// CollectionData returns the collection-level linked-data blob.
func (s *Service) CollectionData(addr crypto.Address) ([]byte, error) {
	c, err := s.GetCollection(addr)
	if err != nil {
		return nil, err
	}
	return c.Data, nil
}

func (s *Service) addressInUse(addr crypto.Address) (bool, error) {
	if _, err := s.state.GetAsset(addr); err == nil {
		return true, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return false, err
	}
	if _, err := s.state.GetCollection(addr); err == nil {
		return true, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return false, err
	}
	return false, nil
}

// ---- creation ----

// CreateAsset stores a new asset. The asset address and the payer must sign;
// when the asset joins a collection the collection's update authority must
// sign too, and the collection's minted count and size grow by one.
func (s *Service) CreateAsset(signers Signers, args CreateAssetArgs) (*core.Asset, error) {
	if err := signers.require(args.Asset, "asset"); err != nil {
		return nil, err
	}
	if err := signers.require(args.Payer, "payer"); err != nil {
		return nil, err
	}
	inUse, err := s.addressInUse(args.Asset)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, fmt.Errorf("asset %s: %w", args.Asset, ErrAddressInUse)
	}

	owner := args.Owner
	if owner.IsZero() {
		owner = args.Payer
	}
	asset := &core.Asset{
		Address:   args.Asset,
		Owner:     owner,
		Name:      args.Name,
		URI:       args.URI,
		Edition:   args.Edition,
		CreatedAt: s.now(),
	}
	if args.TransferLock != nil {
		lock := *args.TransferLock
		if lock.Authority.IsZero() {
			lock.Authority = owner
		}
		asset.TransferLock = &lock
	}
	if args.AppDataAuthority != nil {
		asset.AppData = &core.AppData{DataAuthority: *args.AppDataAuthority, Data: []byte{}}
	}

	if args.Collection != nil {
		c, err := s.GetCollection(*args.Collection)
		if err != nil {
			return nil, err
		}
		authority := args.Authority
		if authority.IsZero() {
			authority = args.Payer
		}
		if authority != c.UpdateAuthority {
			return nil, fmt.Errorf("collection %s authority %s: %w", c.Address, authority, ErrInvalidAuthority)
		}
		if err := signers.require(authority, "collection authority"); err != nil {
			return nil, err
		}
		if args.Edition != nil {
			if c.MasterEdition == nil {
				return nil, ErrEditionNeedsMaster
			}
			if limit := c.MasterEdition.MaxSupply; limit != nil && c.NumMinted >= *limit {
				return nil, ErrMaxSupplyReached
			}
		}
		c.NumMinted++
		c.CurrentSize++
		if err := s.state.SetCollection(c); err != nil {
			return nil, err
		}
		coll := c.Address
		asset.Collection = &coll
	} else if args.Edition != nil {
		return nil, ErrEditionNeedsMaster
	}

	if err := s.state.SetAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// CreateCollection stores a new, empty collection. The collection address
// and the payer must sign.
func (s *Service) CreateCollection(signers Signers, args CreateCollectionArgs) (*core.Collection, error) {
	if err := signers.require(args.Collection, "collection"); err != nil {
		return nil, err
	}
	if err := signers.require(args.Payer, "payer"); err != nil {
		return nil, err
	}
	inUse, err := s.addressInUse(args.Collection)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, fmt.Errorf("collection %s: %w", args.Collection, ErrAddressInUse)
	}
	if r := args.Royalties; r != nil {
		var total int
		for _, c := range r.Creators {
			total += int(c.Percentage)
		}
		if total != 100 || r.BasisPoints > 10_000 {
			return nil, ErrInvalidRoyalties
		}
	}

	updateAuthority := args.UpdateAuthority
	if updateAuthority.IsZero() {
		updateAuthority = args.Payer
	}
	c := &core.Collection{
		Address:         args.Collection,
		Name:            args.Name,
		URI:             args.URI,
		UpdateAuthority: updateAuthority,
		MasterEdition:   args.MasterEdition,
		Royalties:       args.Royalties,
		LinkedData:      args.LinkedData,
		CreatedAt:       s.now(),
	}
	if err := s.state.SetCollection(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ---- transfer lock ----

// AddTransferLock attaches a transfer lock delegated to lock.Authority. The
// asset owner must sign.
func (s *Service) AddTransferLock(signers Signers, addr crypto.Address, lock core.TransferLock) error {
	a, err := s.GetAsset(addr)
	if err != nil {
		return err
	}
	if err := signers.require(a.Owner, "owner"); err != nil {
		return err
	}
	if a.TransferLock != nil {
		return ErrTransferLockExists
	}
	a.TransferLock = &lock
	return s.state.SetAsset(a)
}

// SetFrozen toggles an existing transfer lock. Only the lock authority may
// do so.
func (s *Service) SetFrozen(signers Signers, addr crypto.Address, frozen bool) error {
	a, err := s.GetAsset(addr)
	if err != nil {
		return err
	}
	if a.TransferLock == nil {
		return ErrNoTransferLock
	}
	if err := signers.require(a.TransferLock.Authority, "lock authority"); err != nil {
		return err
	}
	a.TransferLock.Frozen = frozen
	return s.state.SetAsset(a)
}

// RemoveTransferLock detaches the transfer lock. The owner must sign and the
// lock must not be frozen.
func (s *Service) RemoveTransferLock(signers Signers, addr crypto.Address) error {
	a, err := s.GetAsset(addr)
	if err != nil {
		return err
	}
	if err := signers.require(a.Owner, "owner"); err != nil {
		return err
	}
	if a.TransferLock == nil {
		return ErrNoTransferLock
	}
	if a.TransferLock.Frozen {
		return ErrAssetFrozen
	}
	a.TransferLock = nil
	return s.state.SetAsset(a)
}

// Transfer moves an unfrozen asset to newOwner. The current owner must sign.
func (s *Service) Transfer(signers Signers, addr crypto.Address, collection *crypto.Address, newOwner crypto.Address) error {
	a, err := s.GetAsset(addr)
	if err != nil {
		return err
	}
	if (a.Collection == nil) != (collection == nil) || (a.Collection != nil && *a.Collection != *collection) {
		return ErrCollectionMismatch
	}
	if err := signers.require(a.Owner, "owner"); err != nil {
		return err
	}
	if a.Frozen() {
		return ErrAssetFrozen
	}
	a.Owner = newOwner
	return s.state.SetAsset(a)
}

// ---- linked metadata ----

// WriteAppData replaces the asset's AppData blob. authority must be the
// blob's data authority and must sign.
func (s *Service) WriteAppData(signers Signers, addr, authority crypto.Address, data []byte) error {
	a, err := s.GetAsset(addr)
	if err != nil {
		return err
	}
	if a.AppData == nil {
		return ErrNoAppData
	}
	if a.AppData.DataAuthority != authority {
		return fmt.Errorf("app data authority %s: %w", authority, ErrInvalidAuthority)
	}
	if err := signers.require(authority, "data authority"); err != nil {
		return err
	}
	a.AppData.Data = cloneBytes(data)
	return s.state.SetAsset(a)
}

// WriteLinkedData replaces the asset's per-asset linked-data blob. authority
// must be the update authority of the asset's collection and must sign.
func (s *Service) WriteLinkedData(signers Signers, addr, authority crypto.Address, data []byte) error {
	a, err := s.GetAsset(addr)
	if err != nil {
		return err
	}
	if a.Collection == nil {
		return ErrLinkedDataDisabled
	}
	c, err := s.GetCollection(*a.Collection)
	if err != nil {
		return err
	}
	if !c.LinkedData {
		return ErrLinkedDataDisabled
	}
	if c.UpdateAuthority != authority {
		return fmt.Errorf("linked data authority %s: %w", authority, ErrInvalidAuthority)
	}
	if err := signers.require(authority, "update authority"); err != nil {
		return err
	}
	a.LinkedData = cloneBytes(data)
	return s.state.SetAsset(a)
}

// WriteCollectionData replaces the collection-level linked-data blob.
func (s *Service) WriteCollectionData(signers Signers, addr, authority crypto.Address, data []byte) error {
	c, err := s.GetCollection(addr)
	if err != nil {
		return err
	}
	if !c.LinkedData {
		return ErrLinkedDataDisabled
	}
	if c.UpdateAuthority != authority {
		return fmt.Errorf("collection authority %s: %w", authority, ErrInvalidAuthority)
	}
	if err := signers.require(authority, "update authority"); err != nil {
		return err
	}
	c.Data = cloneBytes(data)
	return s.state.SetCollection(c)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
