// Package cache persists state that should survive between pipeline runs:
// institution conflict decisions and the synthetic code counters.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/soundprediction/go-lineage/pkg/builder"
	"github.com/soundprediction/go-lineage/pkg/types"
)

var (
	// ErrKeyNotFound is returned when a key is not found in the store
	ErrKeyNotFound = errors.New("key not found in cache")
)

const (
	conflictPrefix = "conflict:"
	countersKey    = "counters"
)

// BadgerStore is a BadgerDB-backed conflict memo and counter store.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens the store at path. An empty path keeps everything in
// memory.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable default logger to reduce noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &BadgerStore{
		db: db,
	}, nil
}

// Lookup returns the stored institution decision for id.
func (c *BadgerStore) Lookup(id types.EdgeIdentity) (string, bool, error) {
	val, err := c.get(conflictPrefix + id.String())
	if errors.Is(err, ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(val), true, nil
}

// Store records the institution decision for id.
func (c *BadgerStore) Store(id types.EdgeIdentity, institution string) error {
	return c.set(conflictPrefix+id.String(), []byte(institution))
}

// Forget removes the decision for id, so it is asked again on the next run.
func (c *BadgerStore) Forget(id types.EdgeIdentity) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(conflictPrefix + id.String()))
	})
}

// Decisions returns every stored decision keyed by the edge identity string.
func (c *BadgerStore) Decisions() (map[string]string, error) {
	out := make(map[string]string)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(conflictPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			key := string(item.Key())[len(conflictPrefix):]
			out[key] = string(val)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Counters returns the synthetic counter state saved by the previous run. A
// fresh store returns the zero value, which the builder treats as a start at 1.
func (c *BadgerStore) Counters() (builder.Counters, error) {
	var counters builder.Counters
	val, err := c.get(countersKey)
	if errors.Is(err, ErrKeyNotFound) {
		return counters, nil
	}
	if err != nil {
		return counters, err
	}
	if err := json.Unmarshal(val, &counters); err != nil {
		return counters, fmt.Errorf("failed to decode counters: %w", err)
	}
	return counters, nil
}

// SaveCounters stores the counter state for the next run.
func (c *BadgerStore) SaveCounters(counters builder.Counters) error {
	val, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("failed to encode counters: %w", err)
	}
	return c.set(countersKey, val)
}

// Close closes the store
func (c *BadgerStore) Close() error {
	return c.db.Close()
}

func (c *BadgerStore) set(key string, value []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value))
	})
}

func (c *BadgerStore) get(key string) ([]byte, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	return val, nil
}
