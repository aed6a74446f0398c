package sqlite

import (
	"context"
	"sync"

	"kontrol/internal/storage"
)

// newRepository is swapped out by tests.
var newRepository = NewRepository

// handle is what storage.New hands out. The registry and the inspection log
// may share one database file, each in its own cell table, so every handle
// owns its own connection and Close may be called more than once.
type handle struct {
	*Repository
	once    sync.Once
	release func()
}

func (h *handle) Close() {
	h.once.Do(func() {
		if h.release != nil {
			h.release()
		}
	})
}

var _ storage.Repository = (*handle)(nil)

func open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	r, release, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
	if err != nil {
		return nil, err
	}
	return &handle{Repository: r, release: release}, nil
}

func init() {
	storage.Register("sqlite", open)
}
