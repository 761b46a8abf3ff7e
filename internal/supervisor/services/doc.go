// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Package services adapts Waypost components to suture's Serve pattern.

  - HTTPServerService: ListenAndServe plus graceful Shutdown
  - WebSocketHubService: the live unique-count hub
  - StoreGCService: periodic badger value log GC

The analytics recorder and the tracker registry implement
suture.Service themselves and are added to the tree directly.
*/
package services
