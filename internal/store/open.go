package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ahj-registry/internal/db"
)

// Open connects to the configured backend and applies the schema.
func Open(ctx context.Context, driver, dsn string, maxConns int32) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, &db.PoolConfig{MaxConns: maxConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
