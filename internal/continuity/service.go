package continuity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxContextTurns caps the rolling context injected into a new session.
// Older turns are dropped, never summarized.
const MaxContextTurns = 20

// PlaceholderSummary marks a session that has not been summarized yet.
const PlaceholderSummary = "session recorded."

// Summarizer is the optional external summary generator.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (summary string, tags []string, err error)
}

// Labeler is the deterministic fallback when no summarizer is configured
// or the summarizer fails.
type Labeler interface {
	Derive(turns []Turn) (summary string, tags []string)
}

type Service struct {
	store      Store
	summarizer Summarizer
	labeler    Labeler
}

func NewService(store Store, summarizer Summarizer, labeler Labeler) *Service {
	return &Service{store: store, summarizer: summarizer, labeler: labeler}
}

// StartSession records a new conversation moment. Malformed turns are
// dropped silently.
func (s *Service) StartSession(ctx context.Context, familyID, participantID string, turns []Turn) (Moment, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return Moment{}, fmt.Errorf("participant id is required")
	}

	now := time.Now().UTC()
	m := Moment{
		ID:            uuid.NewString(),
		FamilyID:      strings.TrimSpace(familyID),
		ParticipantID: participantID,
		Source:        SourceConversation,
		Summary:       PlaceholderSummary,
		Turns:         sanitizeTurns(turns),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.SaveMoment(ctx, m); err != nil {
		return Moment{}, fmt.Errorf("save moment: %w", err)
	}
	return m, nil
}

// AppendTurns adds turns to an open session owned by the participant.
func (s *Service) AppendTurns(ctx context.Context, participantID, sessionID string, turns []Turn) (Moment, error) {
	m, err := s.ownedSession(ctx, participantID, sessionID)
	if err != nil {
		return Moment{}, err
	}
	m.Turns = append(m.Turns, sanitizeTurns(turns)...)
	m.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveMoment(ctx, m); err != nil {
		return Moment{}, fmt.Errorf("save moment: %w", err)
	}
	return m, nil
}

// Complete derives and stores the session summary and tags. The external
// summarizer is best-effort; the heuristic labeler is the floor.
func (s *Service) Complete(ctx context.Context, participantID, sessionID string) (Moment, error) {
	m, err := s.ownedSession(ctx, participantID, sessionID)
	if err != nil {
		return Moment{}, err
	}

	summary, tags := s.deriveLabel(ctx, m.Turns)
	if summary != "" {
		m.Summary = summary
	}
	m.Tags = tags
	m.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveMoment(ctx, m); err != nil {
		return Moment{}, fmt.Errorf("save moment: %w", err)
	}
	return m, nil
}

// RollingContext returns the last MaxContextTurns turns across all of the
// participant's sessions, oldest session first.
func (s *Service) RollingContext(ctx context.Context, participantID string) ([]Turn, error) {
	moments, err := s.store.ListMomentsByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list moments: %w", err)
	}
	var all []Turn
	for _, m := range moments {
		all = append(all, sanitizeTurns(m.Turns)...)
	}
	if len(all) > MaxContextTurns {
		all = all[len(all)-MaxContextTurns:]
	}
	return all, nil
}

// Sessions lists the participant's recorded sessions, oldest first, for
// recall pickers. Deleted sessions are excluded by the store.
func (s *Service) Sessions(ctx context.Context, participantID string) ([]Moment, error) {
	moments, err := s.store.ListMomentsByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list moments: %w", err)
	}
	return moments, nil
}

// Recall returns one session's ordered turns plus its stored summary. The
// rolling cap does not apply here.
func (s *Service) Recall(ctx context.Context, participantID, sessionID string) (Moment, error) {
	m, err := s.ownedSession(ctx, participantID, sessionID)
	if err != nil {
		return Moment{}, err
	}
	m.Turns = sanitizeTurns(m.Turns)
	return m, nil
}

// DeleteSession soft-deletes a session owned by the participant.
func (s *Service) DeleteSession(ctx context.Context, participantID, sessionID string) error {
	m, err := s.ownedSession(ctx, participantID, sessionID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	m.DeletedAt = &now
	m.UpdatedAt = now
	if err := s.store.SaveMoment(ctx, m); err != nil {
		return fmt.Errorf("save moment: %w", err)
	}
	return nil
}

// ownedSession loads a non-deleted session and verifies ownership. Foreign
// and deleted sessions both report ErrNotFound.
func (s *Service) ownedSession(ctx context.Context, participantID, sessionID string) (Moment, error) {
	m, err := s.store.GetMoment(ctx, sessionID)
	if err != nil {
		return Moment{}, err
	}
	if m.Deleted() || m.ParticipantID != participantID || m.Source != SourceConversation {
		return Moment{}, ErrNotFound
	}
	return m, nil
}

func (s *Service) deriveLabel(ctx context.Context, turns []Turn) (string, []string) {
	clean := sanitizeTurns(turns)
	if s.summarizer != nil {
		if summary, tags, err := s.summarizer.Summarize(ctx, transcript(clean)); err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary), tags
		}
	}
	if s.labeler != nil {
		return s.labeler.Derive(clean)
	}
	return "", nil
}

func transcript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func sanitizeTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role != RoleParticipant && t.Role != RoleAgent {
			continue
		}
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		out = append(out, Turn{Role: t.Role, Content: content})
	}
	return out
}
