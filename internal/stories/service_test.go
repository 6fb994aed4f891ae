package stories

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hearthside/hearth/internal/continuity"
)

type fakeStore struct {
	mu      sync.Mutex
	stories map[string]Story
	listens map[string]map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stories: make(map[string]Story),
		listens: make(map[string]map[string]bool),
	}
}

func (s *fakeStore) SaveStory(_ context.Context, story Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[story.ID] = story.Clone()
	return nil
}

func (s *fakeStore) GetStory(_ context.Context, id string) (Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[id]
	if !ok {
		return Story{}, ErrNotFound
	}
	return story.Clone(), nil
}

func (s *fakeStore) ListStoriesByParticipant(_ context.Context, participantID string, status Status) ([]Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Story
	for _, story := range s.stories {
		if story.ParticipantID == participantID && story.Status == status {
			out = append(out, story.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) DeleteStory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[id]; !ok {
		return ErrNotFound
	}
	delete(s.stories, id)
	return nil
}

func (s *fakeStore) MarkStoryShared(_ context.Context, storyID, sharedMomentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok || story.Status != StatusFinal {
		return false, nil
	}
	story.Status = StatusShared
	story.SharedMomentID = sharedMomentID
	s.stories[storyID] = story
	return true, nil
}

func (s *fakeStore) AddListen(_ context.Context, participantID, momentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listens[participantID] == nil {
		s.listens[participantID] = make(map[string]bool)
	}
	s.listens[participantID][momentID] = true
	return nil
}

func (s *fakeStore) ListListens(_ context.Context, participantID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id := range s.listens[participantID] {
		out = append(out, id)
	}
	return out, nil
}

func (s *fakeStore) listenCount(participantID, momentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listens[participantID][momentID] {
		return 1
	}
	return 0
}

type fakeMoments struct {
	mu      sync.Mutex
	moments map[string]continuity.Moment
	saveErr error
}

func newFakeMoments() *fakeMoments {
	return &fakeMoments{moments: make(map[string]continuity.Moment)}
}

func (s *fakeMoments) SaveMoment(_ context.Context, m continuity.Moment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.moments[m.ID] = m.Clone()
	return nil
}

func (s *fakeMoments) GetMoment(_ context.Context, id string) (continuity.Moment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.moments[id]
	if !ok {
		return continuity.Moment{}, continuity.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *fakeMoments) ListSharedMoments(_ context.Context, familyID string) ([]continuity.Moment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []continuity.Moment
	for _, m := range s.moments {
		if m.FamilyID == familyID && m.Source == continuity.SourceVoiceStory && !m.Deleted() {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakePins struct {
	valid string
}

func (p fakePins) VerifyPIN(_ context.Context, _, code string) error {
	if code != p.valid {
		return errors.New("pin mismatch")
	}
	return nil
}

type fakeTitles struct {
	title string
	err   error
}

func (t fakeTitles) Title(context.Context, string) (string, error) { return t.title, t.err }

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeMoments) {
	t.Helper()
	store := newFakeStore()
	moments := newFakeMoments()
	svc := NewService(store, moments, fakePins{valid: "1234"}, fakeTitles{title: "Lake day"}, nil)
	return svc, store, moments
}

func seedSession(t *testing.T, moments *fakeMoments, participantID string) continuity.Moment {
	t.Helper()
	m := continuity.Moment{
		ID:            "sess-1",
		FamilyID:      "fam",
		ParticipantID: participantID,
		Source:        continuity.SourceConversation,
		Title:         "Morning chat",
		Summary:       "we talked about the lake",
		Tags:          []string{"lake"},
		AudioAssetID:  "audio-7",
		CreatedAt:     time.Now().UTC(),
	}
	if err := moments.SaveMoment(context.Background(), m); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return m
}

func TestCreateDraftCopiesSessionMaterial(t *testing.T) {
	svc, _, moments := newTestService(t)
	ctx := context.Background()
	seedSession(t, moments, "ada")

	story, err := svc.CreateDraft(ctx, "ada", "sess-1")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if story.Status != StatusDraft {
		t.Fatalf("status = %q", story.Status)
	}
	if story.Title != "Morning chat" || story.Summary != "we talked about the lake" {
		t.Fatalf("material not copied: %+v", story)
	}
	if len(story.Tags) != 1 || story.Tags[0] != "lake" {
		t.Fatalf("tags = %v", story.Tags)
	}
	if story.SourceMomentID != "sess-1" {
		t.Fatalf("source = %q", story.SourceMomentID)
	}
}

func TestCreateDraftDropsPlaceholderSummary(t *testing.T) {
	svc, _, moments := newTestService(t)
	ctx := context.Background()
	m := seedSession(t, moments, "ada")
	m.Summary = continuity.PlaceholderSummary
	moments.SaveMoment(ctx, m)

	story, err := svc.CreateDraft(ctx, "ada", "sess-1")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if story.Summary != "" {
		t.Fatalf("summary = %q", story.Summary)
	}
}

func TestCreateDraftForeignOrDeletedSession(t *testing.T) {
	svc, _, moments := newTestService(t)
	ctx := context.Background()
	m := seedSession(t, moments, "ada")

	if _, err := svc.CreateDraft(ctx, "ben", "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign: err = %v", err)
	}

	now := time.Now().UTC()
	m.DeletedAt = &now
	moments.SaveMoment(ctx, m)
	if _, err := svc.CreateDraft(ctx, "ada", "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted: err = %v", err)
	}
}

func TestConfirmAlwaysYieldsNewFinal(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Confirm(ctx, "fam", "ada", "Grandpa built the cabin in 1970.", "")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	second, err := svc.Confirm(ctx, "fam", "ada", "Grandpa built the cabin in 1970.", "")
	if err != nil {
		t.Fatalf("Confirm again: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("confirm reused a record")
	}
	if first.Status != StatusFinal || second.Status != StatusFinal {
		t.Fatalf("statuses = %q, %q", first.Status, second.Status)
	}
	if first.Title != "Lake day" {
		t.Fatalf("title = %q", first.Title)
	}
}

func TestConfirmTitleFallback(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, newFakeMoments(), nil, fakeTitles{err: errors.New("model offline")}, nil)

	story, err := svc.Confirm(context.Background(), "fam", "ada", "A short tale.", "")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if story.Title != DefaultTitle {
		t.Fatalf("title = %q", story.Title)
	}
}

func TestConfirmRejectsEmptyText(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Confirm(context.Background(), "fam", "ada", "   ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestShareLifecycle(t *testing.T) {
	svc, store, moments := newTestService(t)
	ctx := context.Background()
	seedSession(t, moments, "ada")

	draft, err := svc.CreateDraft(ctx, "ada", "sess-1")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if _, err := svc.Share(ctx, "ada", draft.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("share draft: err = %v", err)
	}

	final, err := svc.Confirm(ctx, "fam", "ada", "Grandpa built the cabin.", "sess-1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	private, err := svc.ListPrivate(ctx, "ada")
	if err != nil {
		t.Fatalf("ListPrivate: %v", err)
	}
	if len(private) != 1 || private[0].ID != final.ID {
		t.Fatalf("private list = %+v", private)
	}

	snapshot, err := svc.Share(ctx, "ada", final.ID)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if snapshot.Source != continuity.SourceVoiceStory {
		t.Fatalf("snapshot source = %q", snapshot.Source)
	}
	if snapshot.SharedAt == nil {
		t.Fatal("snapshot missing shared_at")
	}
	if snapshot.AudioAssetID != "audio-7" {
		t.Fatalf("audio ref = %q", snapshot.AudioAssetID)
	}

	shared, err := store.GetStory(ctx, final.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if shared.Status != StatusShared || shared.SharedMomentID != snapshot.ID {
		t.Fatalf("story after share = %+v", shared)
	}

	// Consumed story drops out of the private list.
	private, _ = svc.ListPrivate(ctx, "ada")
	if len(private) != 0 {
		t.Fatalf("private list after share = %+v", private)
	}

	if _, err := svc.Share(ctx, "ada", final.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("re-share: err = %v", err)
	}
}

func TestMarkListenedIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	snapshot := shareStory(t, svc, ctx)

	if err := svc.MarkListened(ctx, "ben", snapshot.ID); err != nil {
		t.Fatalf("first listen: %v", err)
	}
	if err := svc.MarkListened(ctx, "ben", snapshot.ID); err != nil {
		t.Fatalf("second listen: %v", err)
	}
	if n := store.listenCount("ben", snapshot.ID); n != 1 {
		t.Fatalf("listen marks = %d", n)
	}
}

func TestListSharedComputesUnheard(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	snapshot := shareStory(t, svc, ctx)

	all, err := svc.ListShared(ctx, "fam", "ben", false)
	if err != nil {
		t.Fatalf("ListShared: %v", err)
	}
	if len(all) != 1 || all[0].Listened {
		t.Fatalf("before listen: %+v", all)
	}

	if err := svc.MarkListened(ctx, "ben", snapshot.ID); err != nil {
		t.Fatalf("MarkListened: %v", err)
	}

	all, _ = svc.ListShared(ctx, "fam", "ben", false)
	if len(all) != 1 || !all[0].Listened {
		t.Fatalf("after listen: %+v", all)
	}
	unheard, _ := svc.ListShared(ctx, "fam", "ben", true)
	if len(unheard) != 0 {
		t.Fatalf("unheard = %+v", unheard)
	}
	// A different viewer still sees it as new.
	other, _ := svc.ListShared(ctx, "fam", "ada", true)
	if len(other) != 1 {
		t.Fatalf("other viewer = %+v", other)
	}
}

func TestShareReleasesClaimWhenSnapshotFails(t *testing.T) {
	svc, store, moments := newTestService(t)
	ctx := context.Background()

	final, err := svc.Confirm(ctx, "fam", "ada", "Grandpa built the cabin.", "")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	moments.saveErr = errors.New("moment store down")
	if _, err := svc.Share(ctx, "ada", final.ID); err == nil {
		t.Fatal("expected share to fail")
	}

	story, err := store.GetStory(ctx, final.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if story.Status != StatusFinal || story.SharedMomentID != "" {
		t.Fatalf("claim not released: %+v", story)
	}
	private, _ := svc.ListPrivate(ctx, "ada")
	if len(private) != 1 {
		t.Fatalf("story dropped from private list: %+v", private)
	}

	// Once the store recovers, the story can still be shared.
	moments.saveErr = nil
	snapshot, err := svc.Share(ctx, "ada", final.ID)
	if err != nil {
		t.Fatalf("Share after recovery: %v", err)
	}
	if snapshot.Source != continuity.SourceVoiceStory {
		t.Fatalf("snapshot = %+v", snapshot)
	}
}

func TestDeleteSharedAuthorGate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	snapshot := shareStory(t, svc, ctx)

	if err := svc.DeleteShared(ctx, "ben", snapshot.ID, "1234"); !errors.Is(err, ErrWrongAuthor) {
		t.Fatalf("wrong author: err = %v", err)
	}
	if err := svc.DeleteShared(ctx, "ada", snapshot.ID, "0000"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad pin: err = %v", err)
	}
	if err := svc.DeleteShared(ctx, "ada", snapshot.ID, "1234"); err != nil {
		t.Fatalf("DeleteShared: %v", err)
	}

	remaining, _ := svc.ListShared(ctx, "fam", "", false)
	if len(remaining) != 0 {
		t.Fatalf("shared list after delete = %+v", remaining)
	}
	if err := svc.DeleteShared(ctx, "ada", snapshot.ID, "1234"); !errors.Is(err, ErrConflict) {
		t.Fatalf("re-delete: err = %v", err)
	}
}

func shareStory(t *testing.T, svc *Service, ctx context.Context) continuity.Moment {
	t.Helper()
	final, err := svc.Confirm(ctx, "fam", "ada", "Grandpa built the cabin.", "")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	snapshot, err := svc.Share(ctx, "ada", final.ID)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	return snapshot
}
