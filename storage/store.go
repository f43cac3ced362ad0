package storage

import (
	"errors"

	"github.com/logos-network/blockcore/core"
)

// Store is the block store described structurally (not in implementation
// detail — spec.md §2 names its budget as excluded) by spec.md §6.2: a
// transactional KV with named tables per block kind, chain tips, and
// committed request hashes. Receive-block and advertisement tables are
// not modeled (see tables.go).
type Store struct {
	db DB
}

// NewStore wraps db as a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Begin opens a new write transaction. Every commit to the store is a
// single transaction (spec.md §4.1): partial writes are impossible
// because Commit flushes one batch.
func (s *Store) Begin() *Tx {
	return newTx(s)
}

// --- point lookups used by VerifyContent / the §4.2.1 scanner ---

func (s *Store) GetRequestBlock(hash core.Hash) (*core.RequestBlock, error) {
	data, err := s.db.Get([]byte(tableBlock + hash.String()))
	if err != nil {
		return nil, err
	}
	return core.UnmarshalRequestBlock(data)
}

func (s *Store) GetMicroBlock(hash core.Hash) (*core.MicroBlock, error) {
	data, err := s.db.Get([]byte(tableMicroBlock + hash.String()))
	if err != nil {
		return nil, err
	}
	return core.UnmarshalMicroBlock(data)
}

func (s *Store) GetEpochBlock(hash core.Hash) (*core.EpochBlock, error) {
	data, err := s.db.Get([]byte(tableEpoch + hash.String()))
	if err != nil {
		return nil, err
	}
	return core.UnmarshalEpochBlock(data)
}

// BlockExists reports whether hash is present in the table for kind.
func (s *Store) BlockExists(hash core.Hash, kind core.Kind) bool {
	var err error
	switch kind {
	case core.KindRB:
		_, err = s.db.Get([]byte(tableBlock + hash.String()))
	case core.KindMB:
		_, err = s.db.Get([]byte(tableMicroBlock + hash.String()))
	case core.KindEB:
		_, err = s.db.Get([]byte(tableEpoch + hash.String()))
	default:
		return false
	}
	return err == nil
}

// RequestExists reports whether a request with this hash has been
// committed inside some already-stored RB.
func (s *Store) RequestExists(hash core.Hash) bool {
	_, err := s.db.Get([]byte(tableRequest + hash.String()))
	return err == nil
}

func (s *Store) GetBatchTip(delegateID uint8) (core.Tip, error) {
	return s.getTip(batchTipKey(delegateID))
}

func (s *Store) GetMicroTip() (core.Tip, error) {
	return s.getTip(tableMicroTip)
}

func (s *Store) GetEpochTip() (core.Tip, error) {
	return s.getTip(tableEpochTip)
}

func (s *Store) getTip(key string) (core.Tip, error) {
	data, err := s.db.Get([]byte(key))
	if errors.Is(err, ErrNotFound) {
		return core.Tip{}, nil
	}
	if err != nil {
		return core.Tip{}, err
	}
	var t core.Tip
	if err := t.UnmarshalBinary(data); err != nil {
		return core.Tip{}, err
	}
	return t, nil
}
