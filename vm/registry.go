package vm

import (
	"fmt"
	"sync"

	"github.com/tolelom/arcadechain/crypto"
)

// Program is an on-ledger program addressed by its ID. Process receives the
// instruction data with the discriminator byte still in front.
type Program interface {
	ID() crypto.Address
	Process(ctx *Context, data []byte) error
}

// CodedError is implemented by program errors that carry a stable numeric
// code for receipts and RPC responses.
type CodedError interface {
	error
	Code() uint32
}

// Registry maps program IDs to Programs. Thread-safe for concurrent registration.
type Registry struct {
	mu       sync.RWMutex
	programs map[crypto.Address]Program
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{programs: make(map[crypto.Address]Program)}
}

// Register adds p under p.ID(). Panics on duplicate registration.
func (r *Registry) Register(p Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID()
	if _, exists := r.programs[id]; exists {
		panic(fmt.Sprintf("vm: program already registered for %s", id))
	}
	r.programs[id] = p
}

// Lookup returns the program registered under id.
func (r *Registry) Lookup(id crypto.Address) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[id]
	return p, ok
}

// Execute dispatches data to the program registered under id.
func (r *Registry) Execute(id crypto.Address, ctx *Context, data []byte) error {
	p, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("vm: no program registered for %s", id)
	}
	return p.Process(ctx, data)
}
