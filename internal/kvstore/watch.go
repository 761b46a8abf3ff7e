// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package kvstore

import (
	"context"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"

	"github.com/tomtom215/waypost/internal/logging"
)

// WatchFunc receives the current children of a watched path.
type WatchFunc func(Snapshot)

// Watch subscribes to the subtree under path. fn is called once with the
// current snapshot and again after every committed change below path.
// Calls to fn are serialized. The returned stop function cancels the
// subscription and waits for it to exit; it is safe to call more than once.
//
// Each notification re-reads the subtree rather than applying the change
// set, so fn always sees a consistent snapshot.
func (s *Store) Watch(ctx context.Context, path string, fn WatchFunc) (stop func(), err error) {
	if err := s.begin(ctx, path); err != nil {
		return nil, err
	}

	initial, err := s.Children(ctx, path)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		fn(initial)

		match := []pb.Match{{Prefix: childPrefix(path)}}
		err := s.db.Subscribe(watchCtx, func(_ *badger.KVList) error {
			snap, err := s.Children(watchCtx, path)
			if err != nil {
				// Cancellation or close while re-reading ends the subscription.
				return err
			}
			fn(snap)
			return nil
		}, match)

		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
			logging.Warn().Err(err).Str("path", path).Msg("Store watch ended")
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}
