package storage

import (
	"errors"

	"github.com/logos-network/blockcore/core"
)

// Tx is a write transaction against a Store. It buffers writes in an
// in-memory dirty map (Tx stages no deletes) and flushes them atomically
// via a single DB batch on Commit. Every
// ApplyUpdates call receives one of these; the CORE never holds a
// transaction open across an asynchronous boundary (spec.md §4.5).
type Tx struct {
	store *Store
	dirty map[string][]byte
}

func newTx(s *Store) *Tx {
	return &Tx{store: s, dirty: make(map[string][]byte)}
}

func (tx *Tx) get(key string) ([]byte, error) {
	if v, ok := tx.dirty[key]; ok {
		return v, nil
	}
	return tx.store.db.Get([]byte(key))
}

func (tx *Tx) set(key string, val []byte) {
	tx.dirty[key] = val
}

// PutRequestBlock stages an RB write (and a per-request existence marker
// for each inner Request, so RequestExists sees it after Commit).
func (tx *Tx) PutRequestBlock(rb *core.RequestBlock) {
	tx.set(tableBlock+rb.Hash.String(), rb.Marshal())
	for _, req := range rb.Requests {
		tx.set(tableRequest+req.Hash.String(), []byte{1})
	}
}

// PutMicroBlock stages an MB write.
func (tx *Tx) PutMicroBlock(mb *core.MicroBlock) {
	tx.set(tableMicroBlock+mb.Hash.String(), mb.Marshal())
}

// PutEpochBlock stages an EB write.
func (tx *Tx) PutEpochBlock(eb *core.EpochBlock) {
	tx.set(tableEpoch+eb.Hash.String(), eb.Marshal())
}

// SetBatchTip stages a tip update for delegateID's RB chain.
func (tx *Tx) SetBatchTip(delegateID uint8, t core.Tip) error {
	return tx.setTip(batchTipKey(delegateID), t)
}

// SetMicroTip stages an update to the MB chain tip.
func (tx *Tx) SetMicroTip(t core.Tip) error {
	return tx.setTip(tableMicroTip, t)
}

// SetEpochTip stages an update to the EB chain tip.
func (tx *Tx) SetEpochTip(t core.Tip) error {
	return tx.setTip(tableEpochTip, t)
}

func (tx *Tx) setTip(key string, t core.Tip) error {
	data, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	tx.set(key, data)
	return nil
}

// GetRequestBlock reads rb, consulting the in-flight write buffer first
// so a handler sees its own uncommitted writes within the same Tx.
func (tx *Tx) GetRequestBlock(hash core.Hash) (*core.RequestBlock, error) {
	data, err := tx.get(tableBlock + hash.String())
	if err != nil {
		return nil, err
	}
	return core.UnmarshalRequestBlock(data)
}

// BlockExists reports existence of hash in kind's table, honoring
// uncommitted writes staged earlier in this same transaction.
func (tx *Tx) BlockExists(hash core.Hash, kind core.Kind) bool {
	var key string
	switch kind {
	case core.KindRB:
		key = tableBlock + hash.String()
	case core.KindMB:
		key = tableMicroBlock + hash.String()
	case core.KindEB:
		key = tableEpoch + hash.String()
	default:
		return false
	}
	_, err := tx.get(key)
	return err == nil
}

// RequestExists reports whether hash was committed by an earlier RB, or
// staged by an RB earlier in this same transaction.
func (tx *Tx) RequestExists(hash core.Hash) bool {
	_, err := tx.get(tableRequest + hash.String())
	return err == nil
}

// Commit flushes every staged write as a single batch. An underlying I/O
// error here is fatal per spec.md §4.1 — callers terminate the process.
func (tx *Tx) Commit() error {
	if len(tx.dirty) == 0 {
		return nil
	}
	batch := tx.store.db.NewBatch()
	for k, v := range tx.dirty {
		batch.Set([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return errors.New("storage: commit failed: " + err.Error())
	}
	tx.dirty = make(map[string][]byte)
	return nil
}
