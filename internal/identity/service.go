package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthside/hearth/internal/observability"
	"github.com/hearthside/hearth/internal/voiceid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// Service owns participant records, their voice enrollment state and the
// recall PIN. Voice enrollment and identification are delegated to the
// configured voiceid provider.
type Service struct {
	store    Store
	provider voiceid.Provider
	metrics  *observability.Metrics

	mu        sync.Mutex
	enrolling map[string]*sync.Mutex
}

func NewService(store Store, provider voiceid.Provider, metrics *observability.Metrics) *Service {
	return &Service{
		store:     store,
		provider:  provider,
		metrics:   metrics,
		enrolling: make(map[string]*sync.Mutex),
	}
}

func (s *Service) Create(ctx context.Context, familyID, label string) (Participant, error) {
	familyID = strings.TrimSpace(familyID)
	label = strings.TrimSpace(label)
	if familyID == "" {
		return Participant{}, fmt.Errorf("%w: family id is required", ErrInvalidInput)
	}
	if label == "" {
		return Participant{}, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	p := Participant{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Label:     label,
		Status:    EnrollmentNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return Participant{}, fmt.Errorf("save participant: %w", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Participant, error) {
	return s.store.GetParticipant(ctx, id)
}

func (s *Service) List(ctx context.Context, familyID string) ([]Participant, error) {
	return s.store.ListParticipants(ctx, strings.TrimSpace(familyID))
}

func (s *Service) Rename(ctx context.Context, id, label string) (Participant, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Participant{}, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return Participant{}, err
	}
	p.Label = label
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return Participant{}, fmt.Errorf("save participant: %w", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteParticipant(ctx, id)
}

// SetPIN stores the recall PIN for a participant. The code must be exactly
// four digits; the stored value is a participant-bound hash, never the code.
func (s *Service) SetPIN(ctx context.Context, id, code string) error {
	if !validPINCode(code) {
		return fmt.Errorf("%w: PIN must be exactly 4 digits", ErrInvalidInput)
	}
	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return err
	}
	p.PINHash = hashPIN(p.ID, code)
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}

// VerifyPIN checks a recall code. A participant without a PIN, a malformed
// code and a wrong code all fail the same way.
func (s *Service) VerifyPIN(ctx context.Context, id, code string) error {
	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return err
	}
	if !p.HasPIN() || !validPINCode(code) {
		return ErrUnauthorized
	}
	if hashPIN(p.ID, code) != p.PINHash {
		return ErrUnauthorized
	}
	return nil
}

// EnrollProgress reports enrollment state after a contribution.
type EnrollProgress struct {
	Status           EnrollmentStatus `json:"enrollment_status"`
	Percent          float64          `json:"percent"`
	RemainingSeconds float64          `json:"remaining_seconds"`
}

// Enroll feeds one clip of speech into the participant's enrollment. Calls
// for the same participant are serialized; concurrent contributions never
// interleave the pending buffer. Enrolling an already-enrolled participant
// starts over and replaces the old profile on completion.
func (s *Service) Enroll(ctx context.Context, id string, pcm []int16) (EnrollProgress, error) {
	if s.provider == nil {
		return EnrollProgress{}, voiceid.ErrNotConfigured
	}

	lock := s.enrollLock(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return EnrollProgress{}, err
	}

	prior := voiceid.Enrollment{
		PendingPCM: p.PendingPCM,
		Artifact:   p.Profile,
		Percent:    p.EnrollPercent,
	}
	if p.Status != EnrollmentPending {
		prior = voiceid.Enrollment{}
		s.metrics.CountEnrollmentEvent("started")
		s.metrics.AddActiveEnrollments(1)
	}

	next, err := s.provider.EnrollStep(ctx, prior, pcm)
	if err != nil {
		if p.Status != EnrollmentPending {
			s.metrics.AddActiveEnrollments(-1)
		}
		return EnrollProgress{}, fmt.Errorf("enroll step: %w", err)
	}

	if next.Complete {
		p.Status = EnrollmentEnrolled
		p.Profile = next.Artifact
		p.PendingPCM = nil
		p.EnrollPercent = 100
		s.metrics.CountEnrollmentEvent("completed")
		s.metrics.AddActiveEnrollments(-1)
	} else {
		p.Status = EnrollmentPending
		// On the cloud path the artifact carries the remote profile
		// reference; losing it would restart enrollment from scratch.
		p.Profile = next.Artifact
		p.PendingPCM = next.PendingPCM
		p.EnrollPercent = next.Percent
		s.metrics.CountEnrollmentEvent("chunk")
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return EnrollProgress{}, fmt.Errorf("save participant: %w", err)
	}

	return EnrollProgress{
		Status:           p.Status,
		Percent:          next.Percent,
		RemainingSeconds: next.RemainingSeconds,
	}, nil
}

// IdentifyResult is the outcome of matching a clip against a family's
// enrolled voices.
type IdentifyResult struct {
	Recognized  bool        `json:"recognized"`
	Participant Participant `json:"participant,omitempty"`
	Confidence  float64     `json:"confidence"`
}

// Identify matches a clip against every enrolled participant of the family.
// An empty candidate set is a valid no-match, not an error.
func (s *Service) Identify(ctx context.Context, familyID string, pcm []int16) (IdentifyResult, error) {
	if s.provider == nil {
		return IdentifyResult{}, voiceid.ErrNotConfigured
	}

	participants, err := s.store.ListParticipants(ctx, strings.TrimSpace(familyID))
	if err != nil {
		return IdentifyResult{}, fmt.Errorf("list participants: %w", err)
	}

	byID := make(map[string]Participant, len(participants))
	candidates := make([]voiceid.Candidate, 0, len(participants))
	for _, p := range participants {
		if p.Status != EnrollmentEnrolled || len(p.Profile) == 0 {
			continue
		}
		byID[p.ID] = p
		candidates = append(candidates, voiceid.Candidate{ID: p.ID, Profile: p.Profile})
	}

	start := time.Now()
	match, err := s.provider.Identify(ctx, candidates, pcm)
	s.metrics.ObserveIdentifyDuration(time.Since(start))
	if err != nil {
		s.metrics.CountIdentifyOutcome(s.provider.Name(), "error")
		return IdentifyResult{}, fmt.Errorf("identify: %w", err)
	}
	if !match.Recognized {
		s.metrics.CountIdentifyOutcome(s.provider.Name(), "no_match")
		return IdentifyResult{Confidence: match.Confidence}, nil
	}
	s.metrics.CountIdentifyOutcome(s.provider.Name(), "match")
	return IdentifyResult{
		Recognized:  true,
		Participant: byID[match.CandidateID],
		Confidence:  match.Confidence,
	}, nil
}

func (s *Service) enrollLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.enrolling[id]
	if !ok {
		lock = &sync.Mutex{}
		s.enrolling[id] = lock
	}
	return lock
}
