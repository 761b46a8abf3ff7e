// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore: store is closed")

// Options configures a Store.
type Options struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool
}

// Store is a hierarchical key-value store on top of BadgerDB. Keys are
// slash-separated paths and values are JSON documents.
type Store struct {
	db       *badger.DB
	inMemory bool

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) a Badger-backed store.
//
// Example:
//
//	store, err := kvstore.Open(kvstore.Options{Path: "/data/waypost"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites
	// Records are small JSON documents; keep the value log modest.
	bopts.ValueLogFileSize = 64 << 20
	bopts.Logger = newBadgerLogger()

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logging.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Msg("Key-value store opened")

	return &Store{db: db, inMemory: opts.InMemory}, nil
}

// OpenInMemory opens a throwaway in-memory store. Used by tests and by
// STORE_IN_MEMORY deployments.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

// Close closes the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping reports whether the store is open. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// begin checks ctx, path and open state before an operation.
func (s *Store) begin(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validatePath(path); err != nil {
		return err
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return nil
}

// Get reads the value at path into dst. It returns false with a nil error
// when nothing is stored there.
func (s *Store) Get(ctx context.Context, path string, dst any) (found bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("get", start, err) }()

	if err = s.begin(ctx, path); err != nil {
		return false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	return found, nil
}

// Set replaces the value at path.
func (s *Store) Set(ctx context.Context, path string, value any) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("set", start, err) }()

	if err = s.begin(ctx, path); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	if err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), data)
	}); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Update merges fields into the JSON object at path, creating it when
// absent. Fields not named are left untouched. The read and write happen
// in one Badger transaction; a concurrent writer to the same key makes the
// commit fail with badger.ErrConflict.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("update", start, err) }()

	if err = s.begin(ctx, path); err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		doc := make(map[string]json.RawMessage, len(fields))

		item, err := txn.Get([]byte(path))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return fmt.Errorf("existing value is not an object: %w", err)
			}
		}

		for name, value := range fields {
			raw, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("marshal field %s: %w", name, err)
			}
			doc[name] = raw
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return txn.Set([]byte(path), data)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

// Delete removes the value at path. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("delete", start, err) }()

	if err = s.begin(ctx, path); err != nil {
		return err
	}

	if err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	}); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Children returns the immediate children of path.
func (s *Store) Children(ctx context.Context, path string) (snap Snapshot, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("children", start, err) }()

	if err = s.begin(ctx, path); err != nil {
		return Snapshot{}, err
	}

	snap = Snapshot{Path: path, Children: make(map[string]json.RawMessage)}
	prefix := childPrefix(path)

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rest := string(item.Key()[len(prefix):])

			if name, _, nested := strings.Cut(rest, Separator); nested {
				if _, seen := snap.Children[name]; !seen {
					snap.Children[name] = nil
				}
				continue
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			snap.Children[rest] = val
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("children %s: %w", path, err)
	}
	return snap, nil
}

// RunGC runs value log garbage collection until nothing more can be
// rewritten. It reports whether any file was rewritten.
func (s *Store) RunGC(discardRatio float64) (bool, error) {
	if s.inMemory {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}

	rewritten := false
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return rewritten, nil
		}
		if err != nil {
			return rewritten, fmt.Errorf("run value log gc: %w", err)
		}
		rewritten = true
	}
}
