// Package consensus implements single-authority block production. The
// sequencer drains the mempool in arrival order, executes every transaction,
// seals the receipts into a block signed by its key, and only then publishes
// the buffered events.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tolelom/arcadechain/config"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/vm"
)

// ErrEmptyBlock is returned by ProduceBlock when there is nothing to seal.
var ErrEmptyBlock = errors.New("no pending transactions")

const defaultMaxBlockTxs = 500

// Sequencer is the single block producer of the chain.
type Sequencer struct {
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	addr    crypto.Address
	log     zerolog.Logger
}

// New creates a Sequencer signing blocks with privKey.
func New(
	cfg *config.Config,
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
	logger zerolog.Logger,
) *Sequencer {
	return &Sequencer{
		cfg:     cfg,
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		addr:    privKey.Public().Address(),
		log:     logger.With().Str("component", "sequencer").Logger(),
	}
}

// Address returns the sequencer's block-signing address.
func (s *Sequencer) Address() crypto.Address { return s.addr }

// ProduceBlock executes pending transactions and commits the next block.
// Transactions rejected before execution (bad signature set, nonce or fee)
// are dropped from the mempool without being sealed.
func (s *Sequencer) ProduceBlock() (*core.Block, error) {
	limit := s.cfg.MaxBlockTxs
	if limit <= 0 {
		limit = defaultMaxBlockTxs
	}
	pending := s.mempool.Pending(limit)
	if len(pending) == 0 {
		return nil, ErrEmptyBlock
	}

	tip := s.bc.Tip()
	prevHash := config.GenesisHash
	var height int64 = 1
	if tip != nil {
		prevHash = tip.Hash
		height = tip.Header.Height + 1
	}

	blockSnap, err := s.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	var (
		included []*core.Transaction
		receipts []*core.Receipt
		evs      []events.Event
		dropped  []string
	)
	for _, tx := range pending {
		out, err := s.exec.ExecuteTx(height, tx)
		if err != nil {
			s.log.Warn().Str("tx", tx.ID).Err(err).Msg("dropping rejected transaction")
			dropped = append(dropped, tx.ID)
			continue
		}
		included = append(included, tx)
		receipts = append(receipts, out.Receipt)
		evs = append(evs, out.Events...)
	}
	s.mempool.Remove(dropped)
	if len(included) == 0 {
		return nil, ErrEmptyBlock
	}

	block := core.NewBlock(height, prevHash, s.addr, included)
	block.Receipts = receipts
	// Compute root from the write buffer BEFORE flushing so that if AddBlock
	// fails the state has not yet been persisted and the node stays consistent.
	block.Header.StateRoot = s.state.ComputeRoot()
	block.Sign(s.privKey)

	if err := s.bc.AddBlock(block); err != nil {
		if rerr := s.state.RevertToSnapshot(blockSnap); rerr != nil {
			s.log.Fatal().Err(rerr).Int64("height", height).Msg("revert after failed block")
		}
		return nil, fmt.Errorf("add block: %w", err)
	}
	// Flush state only after the block is safely stored.
	if err := s.state.Commit(); err != nil {
		s.log.Fatal().Err(err).Int64("height", height).Msg("block stored but state commit failed")
	}

	ids := make([]string, len(included))
	for i, tx := range included {
		ids[i] = tx.ID
	}
	s.mempool.Remove(ids)

	for _, ev := range evs {
		s.emitter.Emit(ev)
	}
	s.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"hash": block.Hash, "txs": len(block.Transactions)},
	})
	s.log.Info().Int64("height", height).Int("txs", len(included)).Str("hash", block.Hash).Msg("block committed")
	return block, nil
}

// Run produces a block every interval until ctx is cancelled.
func (s *Sequencer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ProduceBlock(); err != nil && !errors.Is(err, ErrEmptyBlock) {
				s.log.Error().Err(err).Msg("produce block")
			}
		}
	}
}
