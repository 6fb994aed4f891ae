package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/hearthside/hearth/internal/continuity"
	"github.com/hearthside/hearth/internal/identity"
	"github.com/hearthside/hearth/internal/stories"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu           sync.RWMutex
	participants map[string]identity.Participant
	moments      map[string]continuity.Moment
	stories      map[string]stories.Story
	listens      map[string]map[string]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		participants: make(map[string]identity.Participant),
		moments:      make(map[string]continuity.Moment),
		stories:      make(map[string]stories.Story),
		listens:      make(map[string]map[string]bool),
	}
}

func (s *InMemoryStore) SaveParticipant(_ context.Context, p identity.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) GetParticipant(_ context.Context, id string) (identity.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return identity.Participant{}, identity.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) ListParticipants(_ context.Context, familyID string) ([]identity.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []identity.Participant
	for _, p := range s.participants {
		if familyID == "" || p.FamilyID == familyID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteParticipant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[id]; !ok {
		return identity.ErrNotFound
	}
	delete(s.participants, id)
	return nil
}

func (s *InMemoryStore) SaveMoment(_ context.Context, m continuity.Moment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moments[m.ID] = m.Clone()
	return nil
}

func (s *InMemoryStore) GetMoment(_ context.Context, id string) (continuity.Moment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.moments[id]
	if !ok {
		return continuity.Moment{}, continuity.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *InMemoryStore) ListMomentsByParticipant(_ context.Context, participantID string) ([]continuity.Moment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []continuity.Moment
	for _, m := range s.moments {
		if m.ParticipantID == participantID && m.Source == continuity.SourceConversation && !m.Deleted() {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListSharedMoments(_ context.Context, familyID string) ([]continuity.Moment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []continuity.Moment
	for _, m := range s.moments {
		if m.FamilyID == familyID && m.Source == continuity.SourceVoiceStory && !m.Deleted() {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SharedAt != nil && b.SharedAt != nil {
			return a.SharedAt.After(*b.SharedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) SaveStory(_ context.Context, story stories.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[story.ID] = story.Clone()
	return nil
}

func (s *InMemoryStore) GetStory(_ context.Context, id string) (stories.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	story, ok := s.stories[id]
	if !ok {
		return stories.Story{}, stories.ErrNotFound
	}
	return story.Clone(), nil
}

func (s *InMemoryStore) ListStoriesByParticipant(_ context.Context, participantID string, status stories.Status) ([]stories.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []stories.Story
	for _, story := range s.stories {
		if story.ParticipantID == participantID && story.Status == status {
			out = append(out, story.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteStory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[id]; !ok {
		return stories.ErrNotFound
	}
	delete(s.stories, id)
	return nil
}

func (s *InMemoryStore) MarkStoryShared(_ context.Context, storyID, sharedMomentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok || story.Status != stories.StatusFinal {
		return false, nil
	}
	story.Status = stories.StatusShared
	story.SharedMomentID = sharedMomentID
	s.stories[storyID] = story
	return true, nil
}

func (s *InMemoryStore) AddListen(_ context.Context, participantID, momentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listens[participantID] == nil {
		s.listens[participantID] = make(map[string]bool)
	}
	s.listens[participantID][momentID] = true
	return nil
}

func (s *InMemoryStore) ListListens(_ context.Context, participantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id := range s.listens[participantID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
