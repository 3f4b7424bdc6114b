package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lazypower/muza/internal/config"
)

// ErrUnknownDriver is returned by OpenFromConfig for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown database driver")

// KV is the key-value surface shared by the SQLite and Postgres stores.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]Entry, error)
	Close() error
}

var (
	_ KV = (*DB)(nil)
	_ KV = (*Postgres)(nil)
)

// OpenFromConfig opens the store selected by cfg.Driver.
// The returned string describes where the data lives, for startup logs.
func OpenFromConfig(ctx context.Context, cfg config.DatabaseConfig) (KV, string, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			var err error
			path, err = DefaultDBPath()
			if err != nil {
				return nil, "", fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open database: %w", err)
		}
		return db, path, nil
	case "postgres":
		pg, err := NewPostgres(ctx, cfg.URL)
		if err != nil {
			return nil, "", err
		}
		if err := pg.Init(ctx); err != nil {
			pg.Close()
			return nil, "", err
		}
		return pg, "postgres", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
