package stories

import (
	"context"
	"errors"

	"github.com/hearthside/hearth/internal/continuity"
)

var (
	ErrNotFound     = errors.New("story not found")
	ErrConflict     = errors.New("illegal story state transition")
	ErrUnauthorized = errors.New("unauthorized")
	ErrWrongAuthor  = errors.New("not the story author")
	ErrInvalidInput = errors.New("invalid input")
)

type Store interface {
	SaveStory(ctx context.Context, s Story) error
	GetStory(ctx context.Context, id string) (Story, error)
	ListStoriesByParticipant(ctx context.Context, participantID string, status Status) ([]Story, error)
	DeleteStory(ctx context.Context, id string) error
	// MarkStoryShared flips a story from final to shared and records the
	// snapshot id. It reports false when the story was not in final,
	// making repeated share calls fail cleanly.
	MarkStoryShared(ctx context.Context, storyID, sharedMomentID string) (bool, error)

	// Listen marks are idempotent per (participant, moment).
	AddListen(ctx context.Context, participantID, momentID string) error
	ListListens(ctx context.Context, participantID string) ([]string, error)
}

// MomentStore is the slice of moment persistence the lifecycle needs:
// reading source sessions and writing published snapshots.
type MomentStore interface {
	SaveMoment(ctx context.Context, m continuity.Moment) error
	GetMoment(ctx context.Context, id string) (continuity.Moment, error)
	ListSharedMoments(ctx context.Context, familyID string) ([]continuity.Moment, error)
}

// PINVerifier gates destructive author-only actions. Satisfied by the
// identity service.
type PINVerifier interface {
	VerifyPIN(ctx context.Context, participantID, code string) error
}

// TitleGenerator derives a short title from narrative text. Optional.
type TitleGenerator interface {
	Title(ctx context.Context, text string) (string, error)
}
