package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"kontrol/internal/storage"
)

// newRepository is swapped out by tests to avoid a live server.
var newRepository = NewRepository

// handle closes the pool once, however many owners release it.
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
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	r, release, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
	if err != nil {
		return nil, err
	}
	return &handle{Repository: r, release: release}, nil
}

func init() {
	storage.Register("postgres", open)
}
