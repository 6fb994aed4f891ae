package storage

import (
	"context"
	"strings"

	"github.com/hearthside/hearth/internal/continuity"
	"github.com/hearthside/hearth/internal/identity"
	"github.com/hearthside/hearth/internal/stories"
)

// Store aggregates the persistence surfaces the services consume.
type Store interface {
	identity.Store
	continuity.Store
	stories.Store
	stories.MomentStore
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
