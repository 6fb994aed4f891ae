package continuity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
)

type fakeMomentStore struct {
	mu      sync.Mutex
	moments map[string]Moment
}

func newFakeMomentStore() *fakeMomentStore {
	return &fakeMomentStore{moments: make(map[string]Moment)}
}

func (s *fakeMomentStore) SaveMoment(_ context.Context, m Moment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moments[m.ID] = m.Clone()
	return nil
}

func (s *fakeMomentStore) GetMoment(_ context.Context, id string) (Moment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.moments[id]
	if !ok {
		return Moment{}, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *fakeMomentStore) ListMomentsByParticipant(_ context.Context, participantID string) ([]Moment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Moment
	for _, m := range s.moments {
		if m.ParticipantID == participantID && !m.Deleted() && m.Source == SourceConversation {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fixedLabeler struct {
	summary string
	tags    []string
}

func (l fixedLabeler) Derive([]Turn) (string, []string) { return l.summary, l.tags }

type fakeSummarizer struct {
	summary string
	tags    []string
	err     error
	calls   int
}

func (s *fakeSummarizer) Summarize(context.Context, string) (string, []string, error) {
	s.calls++
	return s.summary, s.tags, s.err
}

func TestStartSessionDropsMalformedTurns(t *testing.T) {
	svc := NewService(newFakeMomentStore(), nil, nil)
	m, err := svc.StartSession(context.Background(), "fam", "ada", []Turn{
		{Role: RoleParticipant, Content: "hello there"},
		{Role: "system", Content: "hidden"},
		{Role: RoleAgent, Content: "   "},
		{Role: RoleAgent, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if len(m.Turns) != 2 {
		t.Fatalf("turns = %+v", m.Turns)
	}
	if m.Summary != PlaceholderSummary {
		t.Fatalf("summary = %q", m.Summary)
	}
	if m.Source != SourceConversation {
		t.Fatalf("source = %q", m.Source)
	}
}

func TestRollingContextKeepsLastTurns(t *testing.T) {
	store := newFakeMomentStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	// Three sessions, 12 turns each, created in order.
	for sess := 0; sess < 3; sess++ {
		var turns []Turn
		for i := 0; i < 12; i++ {
			turns = append(turns, Turn{Role: RoleParticipant, Content: fmt.Sprintf("s%d-t%d", sess, i)})
		}
		m, err := svc.StartSession(ctx, "fam", "ada", turns)
		if err != nil {
			t.Fatalf("session %d: %v", sess, err)
		}
		// Distinct creation times so ordering is well-defined.
		stored, _ := store.GetMoment(ctx, m.ID)
		stored.CreatedAt = stored.CreatedAt.AddDate(0, 0, sess)
		store.SaveMoment(ctx, stored)
	}

	got, err := svc.RollingContext(ctx, "ada")
	if err != nil {
		t.Fatalf("RollingContext: %v", err)
	}
	if len(got) != MaxContextTurns {
		t.Fatalf("len = %d, want %d", len(got), MaxContextTurns)
	}
	if got[0].Content != "s1-t4" {
		t.Fatalf("first kept turn = %q", got[0].Content)
	}
	if got[len(got)-1].Content != "s2-t11" {
		t.Fatalf("last kept turn = %q", got[len(got)-1].Content)
	}
}

func TestRecallIgnoresRollingCap(t *testing.T) {
	svc := NewService(newFakeMomentStore(), nil, nil)
	ctx := context.Background()

	var turns []Turn
	for i := 0; i < MaxContextTurns+10; i++ {
		turns = append(turns, Turn{Role: RoleParticipant, Content: fmt.Sprintf("turn %d", i)})
	}
	m, err := svc.StartSession(ctx, "fam", "ada", turns)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	recalled, err := svc.Recall(ctx, "ada", m.ID)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(recalled.Turns) != MaxContextTurns+10 {
		t.Fatalf("recall truncated to %d turns", len(recalled.Turns))
	}
}

func TestRecallForeignOrDeletedSession(t *testing.T) {
	svc := NewService(newFakeMomentStore(), nil, nil)
	ctx := context.Background()
	m, err := svc.StartSession(ctx, "fam", "ada", []Turn{{Role: RoleParticipant, Content: "hi"}})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := svc.Recall(ctx, "ben", m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign recall: err = %v", err)
	}
	if _, err := svc.Recall(ctx, "ada", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing recall: err = %v", err)
	}

	if err := svc.DeleteSession(ctx, "ada", m.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := svc.Recall(ctx, "ada", m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted recall: err = %v", err)
	}
}

func TestDeletedSessionLeavesRollingContext(t *testing.T) {
	svc := NewService(newFakeMomentStore(), nil, nil)
	ctx := context.Background()
	m, _ := svc.StartSession(ctx, "fam", "ada", []Turn{{Role: RoleParticipant, Content: "gone soon"}})
	svc.StartSession(ctx, "fam", "ada", []Turn{{Role: RoleParticipant, Content: "kept"}})

	if err := svc.DeleteSession(ctx, "ada", m.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	got, err := svc.RollingContext(ctx, "ada")
	if err != nil {
		t.Fatalf("RollingContext: %v", err)
	}
	for _, turn := range got {
		if turn.Content == "gone soon" {
			t.Fatal("deleted session still in rolling context")
		}
	}
}

func TestCompletePrefersSummarizer(t *testing.T) {
	store := newFakeMomentStore()
	sum := &fakeSummarizer{summary: "a day at the lake", tags: []string{"lake"}}
	svc := NewService(store, sum, fixedLabeler{summary: "fallback", tags: []string{"fb"}})
	ctx := context.Background()
	m, _ := svc.StartSession(ctx, "fam", "ada", []Turn{{Role: RoleParticipant, Content: "we went to the lake"}})

	done, err := svc.Complete(ctx, "ada", m.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Summary != "a day at the lake" {
		t.Fatalf("summary = %q", done.Summary)
	}
	if len(done.Tags) != 1 || done.Tags[0] != "lake" {
		t.Fatalf("tags = %v", done.Tags)
	}
}

func TestCompleteFallsBackToLabeler(t *testing.T) {
	store := newFakeMomentStore()
	sum := &fakeSummarizer{err: errors.New("model offline")}
	svc := NewService(store, sum, fixedLabeler{summary: "fallback summary", tags: []string{"knee"}})
	ctx := context.Background()
	m, _ := svc.StartSession(ctx, "fam", "ada", []Turn{{Role: RoleParticipant, Content: "my knee surgery went well"}})

	done, err := svc.Complete(ctx, "ada", m.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Summary != "fallback summary" {
		t.Fatalf("summary = %q", done.Summary)
	}
	if sum.calls != 1 {
		t.Fatalf("summarizer calls = %d", sum.calls)
	}
}
