package storage

import (
	"errors"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/zeebo/errs"
)

// Error is the error class for storage failures.
var Error = errs.Class("storage")

// KV is the key-value view a contract reads and writes during one invocation.
// Get returns (nil, nil) for a missing key.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Store is the Pebble-backed persistent state of the chain
type Store struct {
	db *pebble.DB
	wo *pebble.WriteOptions
}

// Open opens a Pebble database at the given path
func Open(path string, sync bool) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize: 32 << 20,                  // 32MB memtable
		MaxOpenFiles: 1000,
		BytesPerSync: 512 << 10, // 512KB
	}
	defer opts.Cache.Unref()

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return newStore(db, sync), nil
}

// OpenInMemory opens a Pebble database on an in-memory filesystem
func OpenInMemory() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory pebble db: %w", err)
	}
	return newStore(db, false), nil
}

func newStore(db *pebble.DB, sync bool) *Store {
	wo := pebble.NoSync
	if sync {
		wo = pebble.Sync
	}
	return &Store{db: db, wo: wo}
}

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

// Begin starts an invocation. Reads through the returned batch observe its
// own uncommitted writes; nothing reaches the database until Commit.
func (s *Store) Begin() *Batch {
	return &Batch{b: s.db.NewIndexedBatch(), wo: s.wo}
}

// Get reads committed state
func (s *Store) Get(key []byte) ([]byte, error) {
	return get(s.db, key)
}

// Set writes directly to committed state (genesis and tooling only)
func (s *Store) Set(key, value []byte) error {
	if err := s.db.Set(key, value, s.wo); err != nil {
		return Error.Wrap(fmt.Errorf("failed to set key: %w", err))
	}
	return nil
}

// Delete removes a key from committed state
func (s *Store) Delete(key []byte) error {
	if err := s.db.Delete(key, s.wo); err != nil {
		return Error.Wrap(fmt.Errorf("failed to delete key: %w", err))
	}
	return nil
}

// Iterate visits every committed key with the given prefix in key order
func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return Error.Wrap(err)
	}
	return iterate(iter, fn)
}

var _ KV = (*Store)(nil)

// Batch is the write set of a single invocation
type Batch struct {
	b    *pebble.Batch
	wo   *pebble.WriteOptions
	done bool
}

// Get reads a key, observing writes already made in this batch
func (bw *Batch) Get(key []byte) ([]byte, error) {
	return get(bw.b, key)
}

// Set adds a write to the batch
func (bw *Batch) Set(key, value []byte) error {
	if err := bw.b.Set(key, value, nil); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// Delete adds a deletion to the batch
func (bw *Batch) Delete(key []byte) error {
	if err := bw.b.Delete(key, nil); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// Iterate visits keys with the given prefix, merging batch writes over committed state
func (bw *Batch) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := bw.b.NewIter(prefixOptions(prefix))
	if err != nil {
		return Error.Wrap(err)
	}
	return iterate(iter, fn)
}

// Repr returns the serialized write set in the order the writes were made
func (bw *Batch) Repr() []byte { return bw.b.Repr() }

// Empty reports whether the batch holds no writes
func (bw *Batch) Empty() bool { return bw.b.Empty() }

// Commit writes the batch to Pebble atomically
func (bw *Batch) Commit() error {
	if bw.done {
		return Error.New("batch already finished")
	}
	bw.done = true
	defer bw.b.Close()
	if err := bw.b.Commit(bw.wo); err != nil {
		return Error.Wrap(fmt.Errorf("failed to commit batch: %w", err))
	}
	return nil
}

// Discard drops every write in the batch. Safe to call after Commit.
func (bw *Batch) Discard() {
	if bw.done {
		return
	}
	bw.done = true
	_ = bw.b.Close()
}

var _ KV = (*Batch)(nil)

type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func get(r reader, key []byte) ([]byte, error) {
	val, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("failed to get key: %w", err))
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func prefixOptions(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	}
}

func iterate(iter *pebble.Iterator, fn func(key, value []byte) error) (err error) {
	defer func() { err = errs.Combine(err, Error.Wrap(iter.Close())) }()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return Error.Wrap(iter.Error())
}
