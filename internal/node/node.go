// Package node assembles a single-sequencer chain node: storage, state,
// programs, sequencer, indexer and RPC.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/tolelom/arcadechain/config"
	"github.com/tolelom/arcadechain/consensus"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/indexer"
	"github.com/tolelom/arcadechain/rpc"
	"github.com/tolelom/arcadechain/storage"
	"github.com/tolelom/arcadechain/vm"
	"github.com/tolelom/arcadechain/vm/modules/asset"
	"github.com/tolelom/arcadechain/vm/modules/cartridge"
	"github.com/tolelom/arcadechain/vm/modules/economy"
)

// Node owns every long-lived component of a running chain.
type Node struct {
	cfg       *config.Config
	db        *storage.LevelDB
	state     *storage.StateDB
	chain     *core.Blockchain
	mempool   *core.Mempool
	emitter   *events.Emitter
	sequencer *consensus.Sequencer
	rpc       *rpc.Server
	log       zerolog.Logger
}

// NewRegistry registers the cartridge, asset-service and system programs
// under ids.
func NewRegistry(ids cartridge.Identities) *vm.Registry {
	reg := vm.NewRegistry()
	reg.Register(cartridge.New(ids))
	reg.Register(asset.New(ids.AssetProgram))
	reg.Register(economy.New(ids.SystemProgram))
	return reg
}

// New opens the data directory and wires a node. A fresh chain gets its
// genesis block signed by privKey.
func New(cfg *config.Config, privKey crypto.PrivateKey, logger zerolog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ids, err := cfg.Identities()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	n := &Node{
		cfg:     cfg,
		db:      db,
		state:   storage.NewStateDB(db),
		chain:   core.NewBlockchain(storage.NewBlockStore(db)),
		mempool: core.NewMempool(cfg.Genesis.ChainID),
		emitter: events.NewEmitter(logger),
		log:     logger.With().Str("node", cfg.NodeID).Logger(),
	}
	if err := n.initChain(privKey); err != nil {
		db.Close()
		return nil, err
	}

	idx := indexer.New(db, n.emitter, logger)
	exec := vm.NewExecutor(n.state, NewRegistry(ids), logger)
	n.sequencer = consensus.New(cfg, n.chain, n.state, n.mempool, exec, n.emitter, privKey, logger)

	handler := rpc.NewHandler(n.chain, n.mempool, db, idx)
	stream := rpc.NewEventStream(n.emitter, logger)
	n.rpc = rpc.NewServer(cfg.RPCAddr, handler, stream, cfg.RPCAuthToken, logger)

	n.log.Info().
		Str("cartridge_program", ids.Program.String()).
		Str("asset_program", ids.AssetProgram.String()).
		Str("system_program", ids.SystemProgram.String()).
		Msg("programs registered")
	return n, nil
}

func (n *Node) initChain(privKey crypto.PrivateKey) error {
	if err := n.chain.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}
	if n.chain.Tip() != nil {
		n.log.Info().Int64("height", n.chain.Height()).Msg("chain loaded")
		return nil
	}
	genesis, err := config.CreateGenesisBlock(n.cfg, n.state, privKey)
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if err := n.chain.AddBlock(genesis); err != nil {
		return fmt.Errorf("add genesis: %w", err)
	}
	n.log.Info().Str("hash", genesis.Hash).Msg("genesis block committed")
	return nil
}

// Chain returns the node's blockchain.
func (n *Node) Chain() *core.Blockchain { return n.chain }

// Emitter returns the node's event emitter.
func (n *Node) Emitter() *events.Emitter { return n.emitter }

// RPCAddr returns the address the RPC server is bound to.
func (n *Node) RPCAddr() string { return n.rpc.Addr() }

// Start binds the RPC server.
func (n *Node) Start() error {
	if err := n.rpc.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	return nil
}

// Run produces blocks until ctx is cancelled, then stops the RPC server.
// Start must have been called.
func (n *Node) Run(ctx context.Context) {
	n.log.Info().Str("sequencer", n.sequencer.Address().String()).Dur("interval", n.cfg.BlockInterval).Msg("sequencer running")
	n.sequencer.Run(ctx, n.cfg.BlockInterval)
	if err := n.rpc.Stop(); err != nil {
		n.log.Warn().Err(err).Msg("rpc shutdown")
	}
}

// Close releases the database.
func (n *Node) Close() error {
	return n.db.Close()
}
