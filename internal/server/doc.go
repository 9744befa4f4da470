// Package server runs the daemon's HTTP API.
//
// The server is a [workers.Worker]: Run serves until its context is
// cancelled and then shuts down gracefully, so the daemon can run it next to
// the sync job and the filesystem watcher.
package server
