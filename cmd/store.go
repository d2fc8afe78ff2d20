package main

import (
	"context"

	"github.com/sells-group/ahj-registry/internal/config"
	"github.com/sells-group/ahj-registry/internal/store"
)

// initStore validates the config for mode and opens the migrated store.
func initStore(ctx context.Context, c *config.Config, mode string) (store.Store, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}
	return store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, c.Store.MaxConns)
}
