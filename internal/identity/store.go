package identity

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("participant not found")

type Store interface {
	SaveParticipant(ctx context.Context, p Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context, familyID string) ([]Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
}
