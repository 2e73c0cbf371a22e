// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/internal/config"
	"github.com/xkilldash9x/vulntrack/internal/store"
)

// InitializeStore connects to PostgreSQL and returns a ready store together
// with the function that closes its pool.
func InitializeStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.Store, func(), error) {
	if err := cfg.RequireURL(); err != nil {
		return nil, nil, err
	}

	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	dbStore, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize database store: %w", err)
	}

	cleanup := func() {
		logger.Debug("Closing PostgreSQL connection pool.")
		pool.Close()
	}
	logger.Debug("Database connection pool initialized.", zap.Int32("max_conns", pool.Config().MaxConns))
	return dbStore, cleanup, nil
}
