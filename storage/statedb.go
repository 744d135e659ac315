package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
var statePrefixes []string

var (
	prefixAccount    = registerPrefix("acct:")
	prefixAsset      = registerPrefix("asset:")
	prefixCollection = registerPrefix("coll:")
)

type stateSnapshot struct {
	dirty map[string][]byte
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation. Records are
// never deleted, so the buffer only holds writes.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{db: db, dirty: make(map[string][]byte)}
}

// ---- internal helpers ----

func stateKey(prefix string, addr crypto.Address) string {
	return prefix + addr.String()
}

func (s *StateDB) get(key string) ([]byte, error) {
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.dirty[key] = val
}

func (s *StateDB) getJSON(key string, out any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.set(key, data)
	return nil
}

// ---- Account ----

// GetAccount returns a zero-value account for unknown addresses.
func (s *StateDB) GetAccount(addr crypto.Address) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(stateKey(prefixAccount, addr), &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: addr}, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(stateKey(prefixAccount, acc.Address), acc)
}

// ---- Asset ----

func (s *StateDB) GetAsset(addr crypto.Address) (*core.Asset, error) {
	var asset core.Asset
	if err := s.getJSON(stateKey(prefixAsset, addr), &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *StateDB) SetAsset(asset *core.Asset) error {
	return s.setJSON(stateKey(prefixAsset, asset.Address), asset)
}

// ---- Collection ----

func (s *StateDB) GetCollection(addr crypto.Address) (*core.Collection, error) {
	var c core.Collection
	if err := s.getJSON(stateKey(prefixCollection, addr), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *StateDB) SetCollection(c *core.Collection) error {
	return s.setJSON(stateKey(prefixCollection, c.Address), c)
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	s.snapshots = append(s.snapshots, stateSnapshot{dirty: copyDirty(s.dirty)})
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot
// and discards it together with every later one.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]
	s.dirty = copyDirty(snap.dirty)
	s.snapshots = s.snapshots[:id]
	return nil
}

func copyDirty(src map[string][]byte) map[string][]byte {
	dst := make(map[string][]byte, len(src))
	for k, v := range src {
		cp := make([]byte, len(v))
		copy(cp, v)
		dst[k] = cp
	}
	return dst
}

// ComputeRoot returns the deterministic hash of the complete world state.
// Persisted entries under the known prefixes are merged with the write
// buffer, then the sorted key-value pairs are hashed with length-prefix
// encoding. It does not flush or modify state.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}
	for k, v := range s.dirty {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
		buf.Write(lenBuf[:])
		buf.WriteString(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// Batch and then clears it.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.snapshots = nil
	return nil
}
