package server

import "context"

// Server defines the lifecycle contract for the daemon's transport server.
//
// Run starts serving requests and blocks until ctx is cancelled or the
// listener fails. Cancellation triggers a graceful shutdown bounded by the
// server's shutdown timeout.
type Server interface {
	Run(ctx context.Context) error

	// Addr returns the address the server is listening on, or the
	// configured address before Run has bound it.
	Addr() string
}
