// Package cache keeps the last-known-good copy of the agenda so the service
// can start degraded when the database is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/infrastructure/config"
	"github.com/taskmaster/agenda/internal/ports"
)

// envelope is the stored representation of a snapshot.
type envelope struct {
	SavedAt time.Time  `json:"saved_at"`
	Data    state.Data `json:"data"`
}

func encode(data state.Data, now time.Time) ([]byte, error) {
	b, err := json.Marshal(envelope{SavedAt: now.UTC(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func decode(b []byte) (state.Data, time.Time, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return state.Data{}, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return env.Data, env.SavedAt, nil
}

// New builds the snapshot cache selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig) (ports.SnapshotCache, error) {
	switch cfg.Backend {
	case "file":
		return NewFileCache(cfg.Path), nil
	case "redis":
		return NewRedisCache(ctx, cfg)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Save(context.Context, state.Data) error { return nil }

func (Nop) Load(context.Context) (state.Data, time.Time, error) {
	return state.Data{}, time.Time{}, ports.ErrCacheMiss
}

func (Nop) Close() error { return nil }
