// Package indexer maintains secondary indexes over committed blocks so
// arcade operators can list machines, cartridges and holdings without
// scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/storage"
)

const (
	prefixOwnerAssets        = "idx:owner:asset:"
	prefixGameCartridges     = "idx:game:cartridge:"
	prefixCollectionMachines = "idx:coll:machine:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
	log     zerolog.Logger
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter, logger zerolog.Logger) *Indexer {
	idx := &Indexer{
		db:      db,
		emitter: emitter,
		log:     logger.With().Str("component", "indexer").Logger(),
	}
	emitter.Subscribe(events.EventMachineCommissioned, idx.onMachineCommissioned)
	emitter.Subscribe(events.EventCartridgePrinted, idx.onCartridgePrinted)
	emitter.Subscribe(events.EventAssetTransfer, idx.onAssetTransferred)
	return idx
}

// GetAssetsByOwner returns the machine and cartridge addresses owned by owner.
func (idx *Indexer) GetAssetsByOwner(owner string) ([]string, error) {
	return idx.getList(prefixOwnerAssets + owner)
}

// GetCartridgesByGame returns every cartridge printed from game, in print order.
func (idx *Indexer) GetCartridgesByGame(game string) ([]string, error) {
	return idx.getList(prefixGameCartridges + game)
}

// GetMachinesByCollection returns every machine commissioned in collection.
func (idx *Indexer) GetMachinesByCollection(collection string) ([]string, error) {
	return idx.getList(prefixCollectionMachines + collection)
}

// ---- event handlers ----

func (idx *Indexer) onMachineCommissioned(ev events.Event) {
	machine, _ := ev.Data["machine"].(string)
	owner, _ := ev.Data["owner"].(string)
	collection, _ := ev.Data["collection"].(string)
	if machine == "" || owner == "" || collection == "" {
		return
	}
	idx.must(idx.addToList(prefixOwnerAssets+owner, machine), ev)
	idx.must(idx.addToList(prefixCollectionMachines+collection, machine), ev)
}

func (idx *Indexer) onCartridgePrinted(ev events.Event) {
	cartridge, _ := ev.Data["cartridge"].(string)
	owner, _ := ev.Data["owner"].(string)
	game, _ := ev.Data["game"].(string)
	if cartridge == "" || owner == "" || game == "" {
		return
	}
	idx.must(idx.addToList(prefixOwnerAssets+owner, cartridge), ev)
	idx.must(idx.addToList(prefixGameCartridges+game, cartridge), ev)
}

func (idx *Indexer) onAssetTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	asset, _ := ev.Data["asset"].(string)
	if asset == "" || from == "" || to == "" {
		return
	}
	if err := idx.removeFromList(prefixOwnerAssets+from, asset); err != nil {
		idx.must(err, ev)
		return
	}
	idx.must(idx.addToList(prefixOwnerAssets+to, asset), ev)
}

func (idx *Indexer) must(err error, ev events.Event) {
	if err != nil {
		idx.log.Error().Err(err).Str("event", string(ev.Type)).Str("tx", ev.TxID).Msg("indexer update failed")
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == value {
			return nil
		}
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
