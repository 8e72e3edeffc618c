// Package badger provides a cache entry store backed by BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/fruitsalade/rested/internal/metrics"
	"github.com/fruitsalade/rested/pkg/store"
)

// Config holds BadgerDB settings.
type Config struct {
	Dir      string
	InMemory bool
}

// Store implements store.Store using BadgerDB.
type Store struct {
	db *badgerdb.DB
}

// Open opens or creates a BadgerDB at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db), nil
}

// New wraps an open BadgerDB.
func New(db *badgerdb.DB) *Store {
	return &Store{db: db}
}

// Get reads the entry for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("badger", "get", time.Since(start)) }()

	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set writes the entry for key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("badger", "set", time.Since(start)) }()

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes the entry for key.
func (s *Store) Remove(_ context.Context, key string) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("badger", "remove", time.Since(start)) }()

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys returns the keys starting with prefix in byte order.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
