// File: internal/service/factory.go
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/internal/config"
	"github.com/xkilldash9x/vulntrack/internal/store"
)

// StoreInitializer opens a store and returns its cleanup function.
type StoreInitializer func(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.Store, func(), error)

// ComponentFactory creates the components a command needs. Commands depend
// on this interface so their logic can be tested without a database.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct {
	initStore StoreInitializer
}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{initStore: InitializeStore}
}

// Create connects the store and wires the tracker on top of it.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	dbStore, cleanup, err := f.initStore(ctx, cfg.Database(), logger)
	if err != nil {
		logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
		components.Shutdown()
		return nil, err
	}
	components.Store = dbStore
	components.cleanup = cleanup
	logger.Debug("Store service initialized.")

	components.Tracker = NewTracker(dbStore, cfg, logger)
	logger.Debug("Tracker initialized.")
	return components, nil
}
