package config

import (
	"encoding/hex"
	"fmt"

	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/storage"
)

// GenesisConfig describes the chain's trust root: the delegate set
// sequence 0's epoch block rotates into. Adapted from the teacher's
// GenesisConfig (which allocated account balances into a world-state
// trie); nothing in this core executes application state, so the only
// genesis fact this pipeline needs is "who may sign epoch 0".
type GenesisConfig struct {
	ChainID    string   `json:"chain_id"`
	Delegates  []string `json:"delegates"` // hex pubkeys, length core.NumDelegates
}

// BuildGenesisEpochBlock constructs the unsigned epoch-0 block from
// cfg.Delegates. It does not commit it: cmd/node writes the block and
// its epoch tip directly in one store transaction, outside the block
// cache and write queue.
func BuildGenesisEpochBlock(cfg GenesisConfig) (*core.EpochBlock, error) {
	if len(cfg.Delegates) != core.NumDelegates {
		return nil, fmt.Errorf("genesis: need %d delegates, got %d", core.NumDelegates, len(cfg.Delegates))
	}
	eb := &core.EpochBlock{EpochNumber: 0, Sequence: 0}
	for i, hexKey := range cfg.Delegates {
		raw, err := hex.DecodeString(hexKey)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("genesis: delegates[%d] must be 64-char hex (32-byte pubkey): %q", i, hexKey)
		}
		eb.Delegates[i].ConsensusKey = raw
	}
	eb.Hash = bcrypto.ComputeHash(eb.MarshalSigningBody())
	return eb, nil
}

// NeedsGenesis reports whether store has no epoch tip yet, meaning the
// node has never committed a genesis epoch block.
func NeedsGenesis(store *storage.Store) (bool, error) {
	tip, err := store.GetEpochTip()
	if err != nil {
		return false, err
	}
	return tip.IsZero(), nil
}
