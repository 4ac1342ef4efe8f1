package cli

import (
	"context"
	"fmt"

	"github.com/roach88/flowbuilder/internal/config"
	"github.com/roach88/flowbuilder/internal/persist"
	"github.com/roach88/flowbuilder/internal/redisstore"
	"github.com/roach88/flowbuilder/internal/store"
)

// openBackend opens the storage backend cfg selects. The returned close
// function is never nil.
func openBackend(ctx context.Context, cfg config.Config) (persist.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.Database, err)
		}
		return st, st.Close, nil
	case config.BackendRedis:
		st, err := redisstore.Open(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis: %w", err)
		}
		return st, st.Close, nil
	case config.BackendMemory:
		return persist.NewMemoryBackend(nil, nil), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
