// Package inbound defines the inbound port interfaces of the supervisor.
package inbound

import (
	"context"
)

// AdminAPI is the inbound port for the admin surface. The serve command
// drives it; implementations serve until the context is cancelled.
type AdminAPI interface {
	// Start begins serving and blocks until the context is cancelled or
	// an error occurs. Returns nil on graceful shutdown.
	Start(ctx context.Context) error

	// Close gracefully shuts down the server.
	Close() error
}
