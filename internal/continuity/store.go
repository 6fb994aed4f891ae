package continuity

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("session not found")

// Store persists moments. ListMomentsByParticipant returns non-deleted
// conversation moments ordered oldest first.
type Store interface {
	SaveMoment(ctx context.Context, m Moment) error
	GetMoment(ctx context.Context, id string) (Moment, error)
	ListMomentsByParticipant(ctx context.Context, participantID string) ([]Moment, error)
}
