package config

import (
	"strings"

	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// CreateGenesisBlock builds and signs block #0 from the config's Alloc map.
// It also sets initial account balances in state and commits.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	for hexAddr, balance := range cfg.Genesis.Alloc {
		addr, err := crypto.ParseAddress(hexAddr)
		if err != nil {
			return nil, err
		}
		if err := state.SetAccount(&core.Account{Address: addr, Balance: balance}); err != nil {
			return nil, err
		}
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPriv.Public().Address(), nil)
	block.Header.StateRoot = stateRoot
	// The chain ID is committed through TxRoot so block 0 identifies the chain.
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return strings.Count(h, "0") == len(h) && len(h) == 64
}
