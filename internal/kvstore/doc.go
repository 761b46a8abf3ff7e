// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Package kvstore is a hierarchical key-value store backed by BadgerDB.

Keys are slash-separated paths such as "unique-users/2026-10-19/abc123" and
values are JSON documents encoded with goccy/go-json. The store offers point
reads and writes, partial field updates, deletes, a listing of the
immediate children of a path, and live subscriptions to a subtree:

	stop, err := store.Watch(ctx, "unique-users/2026-10-19", func(s kvstore.Snapshot) {
	    logging.Info().Int("count", s.Len()).Msg("Unique users today")
	})
	defer stop()

Subscriptions use Badger's DB.Subscribe and re-read the subtree on each
notification.
*/
package kvstore
