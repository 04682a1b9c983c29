// Package storageengine is the goleveldb-backed persistent store for
// block headers: a narrow key/value Database interface, its goleveldb
// implementation, and a prefix Table for namespacing several logical
// stores inside one file.
package storageengine

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Database.Get when key is absent.
var ErrNotFound = errors.ErrNotFound

// Database is the minimal key/value contract Table wraps. A single
// goleveldb-backed implementation satisfies it in this package; the
// interface exists so Table (and everything built on it) doesn't need to
// know which engine is underneath.
type Database interface {
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Prefix(prefix []byte) ([][]byte, error)
	Close() error
}

// levelDB adapts *leveldb.DB to the Database interface.
type levelDB struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a goleveldb database at path.
func Open(path string) (Database, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &levelDB{db: db}, nil
}

func (l *levelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *levelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *levelDB) Get(key []byte) ([]byte, error) {
	return l.db.Get(key, nil)
}

func (l *levelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

// Prefix returns the values (not keys) of every entry whose key starts
// with prefix, in key order.
func (l *levelDB) Prefix(prefix []byte) ([][]byte, error) {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out [][]byte
	for iter.Next() {
		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())
		out = append(out, v)
	}
	return out, iter.Error()
}

func (l *levelDB) Close() error {
	return l.db.Close()
}
