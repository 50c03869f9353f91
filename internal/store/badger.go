package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const flagKeyPrefix = "flag:"

// BadgerStore keeps flags in a BadgerDB database.
type BadgerStore struct {
	db    *badger.DB
	owned bool
}

// OpenBadger opens (or creates) a database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, owned: true}, nil
}

// NewBadgerStore wraps an already open database. Close leaves it open.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// GetFlag returns the flag value and whether it was set.
func (s *BadgerStore) GetFlag(_ context.Context, key string) (bool, bool, error) {
	var value, found bool

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(flagKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get flag: %w", err)
		}
		return item.Value(func(val []byte) error {
			found = true
			value = len(val) == 1 && val[0] == 1
			return nil
		})
	})
	if err != nil {
		return false, false, err
	}
	return value, found, nil
}

// SetFlag stores a flag value.
func (s *BadgerStore) SetFlag(_ context.Context, key string, value bool) error {
	b := byte(0)
	if value {
		b = 1
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(flagKeyPrefix+key), []byte{b}); err != nil {
			return fmt.Errorf("set flag: %w", err)
		}
		return nil
	})
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
