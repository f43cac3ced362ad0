package storage

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB implements DB using LevelDB. It stands in for the LMDB
// environment named in spec.md §6.2 — the block store's concrete
// implementation budget is explicitly excluded from the CORE, so this is
// a thin adapter. cmd/node opens its store through it; the package tests
// use internal/testutil's in-memory DB instead.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path. maxOpenFiles
// repurposes spec.md §6.3's lmdb_max_dbs option, which named a per-table
// handle cap under the original LMDB environment; goleveldb's nearest
// equivalent is its open-file-descriptor cache, so the same option
// drives OpenFilesCacheCapacity here. 0 leaves goleveldb's default.
func NewLevelDB(path string, maxOpenFiles int) (*LevelDB, error) {
	var o *opt.Options
	if maxOpenFiles > 0 {
		o = &opt.Options{OpenFilesCacheCapacity: maxOpenFiles}
	}
	db, err := leveldb.OpenFile(path, o)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, err
}

func (l *LevelDB) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, b: new(leveldb.Batch)}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) { b.b.Put(key, value) }
func (b *levelBatch) Delete(key []byte)      { b.b.Delete(key) }
func (b *levelBatch) Reset()                 { b.b.Reset() }
func (b *levelBatch) Write() error           { return b.db.Write(b.b, nil) }
