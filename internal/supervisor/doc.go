// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Package supervisor runs the long-lived Waypost services under suture v4.

Services are grouped into three child supervisors so a failure in one
layer restarts only that layer:

	waypost
	├── data-layer
	│   └── StoreGCService
	├── messaging-layer
	│   ├── analytics.Recorder
	│   ├── WebSocketHubService
	│   └── tracker.Registry (idle reaper)
	└── api-layer
	    └── HTTPServerService

Supervisor events are logged through sutureslog into the zerolog backed
slog.Logger from the logging package:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(supervisor.APILayer, services.NewHTTPServerService(srv, cfg.Server.Addr(), 10*time.Second))
	err = <-tree.ServeBackground(ctx)
*/
package supervisor
