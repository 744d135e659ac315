package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit         EventType = "block_commit"
	EventTxExecuted          EventType = "tx_executed"
	EventTxFailed            EventType = "tx_failed"
	EventCollectionCreated   EventType = "collection_created"
	EventAssetTransfer       EventType = "asset_transfer"
	EventTokenTransfer       EventType = "token_transfer"
	EventMachineCommissioned EventType = "machine_commissioned"
	EventGameReleased        EventType = "game_released"
	EventCartridgePrinted    EventType = "cartridge_printed"
	EventCartridgeInserted   EventType = "cartridge_inserted"
	EventCartridgeRemoved    EventType = "cartridge_removed"
)

// Event carries a typed payload emitted after a state change. Addresses in
// Data are hex strings.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
	log      zerolog.Logger
}

// NewEmitter creates an Emitter with no subscribers. Handler panics are
// recovered and logged to logger.
func NewEmitter(logger zerolog.Logger) *Emitter {
	return &Emitter{
		handlers: make(map[EventType][]Handler),
		log:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type])+len(e.all))
	handlers = append(handlers, e.handlers[ev.Type]...)
	handlers = append(handlers, e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error().Str("event", string(ev.Type)).Interface("panic", r).Msg("event handler panicked")
				}
			}()
			h(ev)
		}()
	}
}
