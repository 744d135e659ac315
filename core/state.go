package core

import "github.com/tolelom/arcadechain/crypto"

// Account holds a participant's token balance and replay-protection nonce.
type Account struct {
	Address crypto.Address `json:"address"`
	Balance uint64         `json:"balance"`
	Nonce   uint64         `json:"nonce"`
}

// TransferLock is the capability that blocks ownership transfer while
// Frozen is set. Authority is the only address allowed to toggle Frozen.
type TransferLock struct {
	Frozen    bool           `json:"frozen"`
	Authority crypto.Address `json:"authority"`
}

// Edition records the print number of an asset inside its collection.
type Edition struct {
	Number uint32 `json:"number"`
}

// AppData is a byte blob attached to an asset that only DataAuthority may
// write.
type AppData struct {
	DataAuthority crypto.Address `json:"data_authority"`
	Data          []byte         `json:"data"`
}

// Asset is a single named, owned, non-fungible ledger record.
type Asset struct {
	Address      crypto.Address  `json:"address"`
	Owner        crypto.Address  `json:"owner"`
	Collection   *crypto.Address `json:"collection,omitempty"`
	Name         string          `json:"name"`
	URI          string          `json:"uri"`
	TransferLock *TransferLock   `json:"transfer_lock,omitempty"`
	Edition      *Edition        `json:"edition,omitempty"`
	AppData      *AppData        `json:"app_data,omitempty"`
	// LinkedData is the per-asset blob of the collection's linked-data
	// schema. Writable by the collection's update authority.
	LinkedData []byte `json:"linked_data,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// Frozen reports whether the asset's transfer lock is currently held.
func (a *Asset) Frozen() bool {
	return a.TransferLock != nil && a.TransferLock.Frozen
}

// Creator is a royalty recipient and its share in percent.
type Creator struct {
	Address    crypto.Address `json:"address"`
	Percentage uint8          `json:"percentage"`
}

// Royalties describes the secondary-sale split for a collection.
type Royalties struct {
	BasisPoints uint16    `json:"basis_points"`
	Creators    []Creator `json:"creators"`
}

// MasterEdition marks a collection whose members carry edition numbers.
type MasterEdition struct {
	MaxSupply *uint32 `json:"max_supply,omitempty"`
}

// Collection groups assets and counts how many were minted under it.
type Collection struct {
	Address         crypto.Address `json:"address"`
	Name            string         `json:"name"`
	URI             string         `json:"uri"`
	UpdateAuthority crypto.Address `json:"update_authority"`
	NumMinted       uint32         `json:"num_minted"`
	CurrentSize     uint32         `json:"current_size"`
	MasterEdition   *MasterEdition `json:"master_edition,omitempty"`
	Royalties       *Royalties     `json:"royalties,omitempty"`
	// LinkedData enables a per-asset blob on every member, written by the
	// update authority.
	LinkedData bool `json:"linked_data"`
	// Data is the collection-level linked-data blob.
	Data      []byte `json:"data,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// State is the full ledger state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address crypto.Address) (*Account, error)
	SetAccount(account *Account) error

	// Assets
	GetAsset(address crypto.Address) (*Asset, error)
	SetAsset(asset *Asset) error

	// Collections
	GetCollection(address crypto.Address) (*Collection, error)
	SetCollection(c *Collection) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
}
