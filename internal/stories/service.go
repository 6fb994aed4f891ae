package stories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthside/hearth/internal/continuity"
	"github.com/hearthside/hearth/internal/observability"
)

type Service struct {
	store   Store
	moments MomentStore
	pins    PINVerifier
	titles  TitleGenerator
	metrics *observability.Metrics
}

func NewService(store Store, moments MomentStore, pins PINVerifier, titles TitleGenerator, metrics *observability.Metrics) *Service {
	return &Service{store: store, moments: moments, pins: pins, titles: titles, metrics: metrics}
}

// CreateDraft starts a story from a recorded session, copying its title,
// summary and tags as starting material. The session must belong to the
// participant and must not be deleted.
func (s *Service) CreateDraft(ctx context.Context, participantID, momentID string) (Story, error) {
	m, err := s.moments.GetMoment(ctx, momentID)
	if err != nil {
		if errors.Is(err, continuity.ErrNotFound) {
			return Story{}, ErrNotFound
		}
		return Story{}, fmt.Errorf("load session: %w", err)
	}
	if m.Deleted() || m.ParticipantID != participantID || m.Source != continuity.SourceConversation {
		return Story{}, ErrNotFound
	}

	summary := m.Summary
	if summary == continuity.PlaceholderSummary {
		summary = ""
	}
	now := time.Now().UTC()
	story := Story{
		ID:             uuid.NewString(),
		FamilyID:       m.FamilyID,
		ParticipantID:  participantID,
		SourceMomentID: m.ID,
		Title:          m.Title,
		Summary:        summary,
		Tags:           append([]string(nil), m.Tags...),
		Status:         StatusDraft,
		AudioAssetID:   m.AudioAssetID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveStory(ctx, story); err != nil {
		return Story{}, fmt.Errorf("save story: %w", err)
	}
	s.metrics.CountStoryEvent("draft_created")
	return story, nil
}

// Confirm records a final story from raw narrative text. It never mutates
// an existing draft; every confirmation is a new final record. When a
// source session is given and owned by the participant, its summary and
// tags carry over.
func (s *Service) Confirm(ctx context.Context, familyID, participantID, text, sourceMomentID string) (Story, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Story{}, fmt.Errorf("%w: story text is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	story := Story{
		ID:            uuid.NewString(),
		FamilyID:      familyID,
		ParticipantID: participantID,
		Title:         s.deriveTitle(ctx, text),
		Text:          text,
		Status:        StatusFinal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if sourceMomentID != "" {
		if m, err := s.moments.GetMoment(ctx, sourceMomentID); err == nil &&
			!m.Deleted() && m.ParticipantID == participantID {
			story.SourceMomentID = m.ID
			story.Tags = append([]string(nil), m.Tags...)
			if m.Summary != continuity.PlaceholderSummary {
				story.Summary = m.Summary
			}
			story.AudioAssetID = m.AudioAssetID
		}
	}
	if err := s.store.SaveStory(ctx, story); err != nil {
		return Story{}, fmt.Errorf("save story: %w", err)
	}
	s.metrics.CountStoryEvent("confirmed")
	return story, nil
}

// ListPrivate returns the participant's final stories. Shared stories drop
// out of this list by the status filter, not by a flag.
func (s *Service) ListPrivate(ctx context.Context, participantID string) ([]Story, error) {
	return s.store.ListStoriesByParticipant(ctx, participantID, StatusFinal)
}

// PatchRequest carries optional field updates for a final story.
type PatchRequest struct {
	Title   *string `json:"title,omitempty"`
	Summary *string `json:"summary,omitempty"`
	Text    *string `json:"text,omitempty"`
}

func (s *Service) Patch(ctx context.Context, participantID, storyID string, req PatchRequest) (Story, error) {
	story, err := s.ownedFinal(ctx, participantID, storyID)
	if err != nil {
		return Story{}, err
	}
	if req.Title != nil {
		story.Title = strings.TrimSpace(*req.Title)
	}
	if req.Summary != nil {
		story.Summary = strings.TrimSpace(*req.Summary)
	}
	if req.Text != nil {
		story.Text = strings.TrimSpace(*req.Text)
	}
	story.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveStory(ctx, story); err != nil {
		return Story{}, fmt.Errorf("save story: %w", err)
	}
	return story, nil
}

func (s *Service) Delete(ctx context.Context, participantID, storyID string) error {
	if _, err := s.ownedFinal(ctx, participantID, storyID); err != nil {
		return err
	}
	if err := s.store.DeleteStory(ctx, storyID); err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	s.metrics.CountStoryEvent("deleted")
	return nil
}

// Share publishes a final story as an immutable family-visible snapshot.
// The status precondition in the store update makes repeated calls fail
// with Conflict instead of double-publishing.
func (s *Service) Share(ctx context.Context, participantID, storyID string) (continuity.Moment, error) {
	story, err := s.store.GetStory(ctx, storyID)
	if err != nil {
		return continuity.Moment{}, err
	}
	if story.ParticipantID != participantID {
		return continuity.Moment{}, ErrNotFound
	}
	if story.Status != StatusFinal {
		return continuity.Moment{}, ErrConflict
	}

	title := story.Title
	if strings.TrimSpace(title) == "" {
		title = s.deriveTitle(ctx, story.Text)
	}

	sharedID := uuid.NewString()
	claimed, err := s.store.MarkStoryShared(ctx, storyID, sharedID)
	if err != nil {
		return continuity.Moment{}, fmt.Errorf("mark shared: %w", err)
	}
	if !claimed {
		return continuity.Moment{}, ErrConflict
	}

	now := time.Now().UTC()
	snapshot := continuity.Moment{
		ID:            sharedID,
		FamilyID:      story.FamilyID,
		ParticipantID: story.ParticipantID,
		Source:        continuity.SourceVoiceStory,
		Title:         title,
		Summary:       story.Summary,
		Tags:          append([]string(nil), story.Tags...),
		AudioAssetID:  story.AudioAssetID,
		SharedAt:      &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.moments.SaveMoment(ctx, snapshot); err != nil {
		// Release the claim so the story is not stranded in shared
		// status pointing at a snapshot that was never written.
		story.Status = StatusFinal
		story.SharedMomentID = ""
		story.UpdatedAt = now
		if revertErr := s.store.SaveStory(ctx, story); revertErr != nil {
			return continuity.Moment{}, fmt.Errorf("save shared moment: %w (release claim: %v)", err, revertErr)
		}
		return continuity.Moment{}, fmt.Errorf("save shared moment: %w", err)
	}
	s.metrics.CountStoryEvent("shared")
	return snapshot, nil
}

// MarkListened records that the participant heard a shared story. Repeat
// calls are no-ops.
func (s *Service) MarkListened(ctx context.Context, participantID, sharedMomentID string) error {
	m, err := s.moments.GetMoment(ctx, sharedMomentID)
	if err != nil {
		if errors.Is(err, continuity.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load shared moment: %w", err)
	}
	if m.Deleted() || m.Source != continuity.SourceVoiceStory {
		return ErrNotFound
	}
	if err := s.store.AddListen(ctx, participantID, sharedMomentID); err != nil {
		return fmt.Errorf("add listen: %w", err)
	}
	return nil
}

// ListShared returns the family's published stories, newest first, with
// the viewer's listened state computed as shared-minus-listened.
func (s *Service) ListShared(ctx context.Context, familyID, viewerID string, newOnly bool) ([]SharedStory, error) {
	moments, err := s.moments.ListSharedMoments(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list shared moments: %w", err)
	}
	heard := make(map[string]bool)
	if viewerID != "" {
		ids, err := s.store.ListListens(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("list listens: %w", err)
		}
		for _, id := range ids {
			heard[id] = true
		}
	}

	out := make([]SharedStory, 0, len(moments))
	for _, m := range moments {
		listened := heard[m.ID]
		if newOnly && listened {
			continue
		}
		out = append(out, SharedStory{Moment: m, Listened: listened})
	}
	return out, nil
}

// DeleteShared soft-deletes a published story. Only the author may delete,
// and the author must confirm with their recall PIN. Author mismatch is
// reported as such, not as NotFound: the caller already holds the id.
func (s *Service) DeleteShared(ctx context.Context, participantID, sharedMomentID, pin string) error {
	m, err := s.moments.GetMoment(ctx, sharedMomentID)
	if err != nil {
		if errors.Is(err, continuity.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load shared moment: %w", err)
	}
	if m.Source != continuity.SourceVoiceStory {
		return ErrNotFound
	}
	if m.Deleted() {
		return ErrConflict
	}
	if m.ParticipantID != participantID {
		return ErrWrongAuthor
	}
	if s.pins == nil {
		return ErrUnauthorized
	}
	if err := s.pins.VerifyPIN(ctx, participantID, pin); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	now := time.Now().UTC()
	m.DeletedAt = &now
	m.UpdatedAt = now
	if err := s.moments.SaveMoment(ctx, m); err != nil {
		return fmt.Errorf("save shared moment: %w", err)
	}
	s.metrics.CountStoryEvent("shared_deleted")
	return nil
}

func (s *Service) ownedFinal(ctx context.Context, participantID, storyID string) (Story, error) {
	story, err := s.store.GetStory(ctx, storyID)
	if err != nil {
		return Story{}, err
	}
	if story.ParticipantID != participantID || story.Status != StatusFinal {
		return Story{}, ErrNotFound
	}
	return story, nil
}

func (s *Service) deriveTitle(ctx context.Context, text string) string {
	if s.titles != nil {
		if title, err := s.titles.Title(ctx, text); err == nil && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title)
		}
	}
	return DefaultTitle
}
