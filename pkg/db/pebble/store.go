package pebble

import (
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type KVStore struct {
	db     *pebble.DB
	closed bool
	mu     sync.RWMutex
}

func newOptions() *pebble.Options {
	return &pebble.Options{
		Cache:            pebble.NewCache(64 * 1024 * 1024), // 64MB
		MemTableSize: 32 * 1024 * 1024, // 32MB
		// Caps queued memtables at MemTableStopWritesThreshold * MemTableSize = 128MB.
		MemTableStopWritesThreshold: 4,
	}
}

// NewKVStore creates an in-memory store, mainly for tests and tooling.
func NewKVStore() (*KVStore, error) {
	opts := newOptions()
	opts.FS = vfs.NewMem()

	db, err := pebble.Open("", opts)
	if err != nil {
		return nil, err
	}

	return &KVStore{db: db}, nil
}

// NewPebbleStore opens a disk-backed store at path.
func NewPebbleStore(path string) (*KVStore, error) {
	db, err := pebble.Open(path, newOptions())
	if err != nil {
		return nil, err
	}

	return &KVStore{db: db}, nil
}

func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (p *KVStore) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Set(key, value, pebble.Sync)
}

func (p *KVStore) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Delete(key, pebble.Sync)
}

func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
