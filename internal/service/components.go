// File: internal/service/components.go
package service

import (
	"github.com/xkilldash9x/vulntrack/internal/observability"
	"github.com/xkilldash9x/vulntrack/internal/store"
)

// Components holds the initialized services a command needs and owns their
// lifecycle.
type Components struct {
	Store   *store.Store
	Tracker *Tracker

	// cleanup releases the connection pool behind Store.
	cleanup func()
}

// Shutdown releases every resource held by the components. It is safe to call
// on a partially initialized value and more than once.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	if c.cleanup != nil {
		c.cleanup()
		c.cleanup = nil
		logger.Debug("Database connection pool closed.")
	}
}
