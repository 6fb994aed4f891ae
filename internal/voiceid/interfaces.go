package voiceid

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means no enrollment/identification backend is
	// available. Callers must surface this distinctly from "no match".
	ErrNotConfigured = errors.New("voice id backend not configured")
	// ErrSampleTooShort means the audio carries too little signal for a
	// reliable operation. Rejected before any state mutation.
	ErrSampleTooShort = errors.New("audio sample too short")
)

// Enrollment is the cross-call state of one identity's in-progress
// enrollment. PendingPCM and a final Artifact are never both non-empty.
type Enrollment struct {
	// PendingPCM is raw canonical PCM retained until completion.
	PendingPCM []int16
	// Artifact is the backend-specific serialized profile. For an
	// in-progress cloud enrollment it holds the remote profile reference;
	// once Complete it is the scorable profile.
	Artifact []byte
	// Percent is the monotonically non-decreasing completion percentage.
	Percent float64
	// RemainingSeconds estimates how much more speech is needed. A hint,
	// not a contract.
	RemainingSeconds float64
	// Complete is true once Percent has reached 100.
	Complete bool
}

// Candidate pairs an identity with its enrolled profile artifact.
type Candidate struct {
	ID      string
	Profile []byte
}

// Match is the outcome of one identification call: at most one candidate,
// never a ranked list.
type Match struct {
	Recognized  bool
	CandidateID string
	Confidence  float64
}

// Provider is the enrollment/identification capability. Two interchangeable
// variants exist (an on-device engine and a cloud service) selected at
// construction time; candidate sets are never mixed across providers in a
// single call.
type Provider interface {
	Name() string
	// EnrollStep feeds new canonical PCM into an in-progress enrollment
	// and returns the updated state. Prior state is passed in by the
	// caller each invocation; the provider holds nothing between calls.
	EnrollStep(ctx context.Context, prior Enrollment, pcm []int16) (Enrollment, error)
	// Identify scores one sample against the candidate profiles and
	// returns the best match if its confidence clears the provider's
	// threshold, else an unrecognized Match.
	Identify(ctx context.Context, candidates []Candidate, pcm []int16) (Match, error)
}

// Profiler is one enrollment pass for a chunk-based engine. Percentages
// are monotonically non-decreasing across Enroll calls within one pass.
type Profiler interface {
	MinEnrollSamples() int
	Enroll(chunk []int16) (float64, error)
	Export() ([]byte, error)
	Close()
}

// Recognizer scores fixed-length frames against a loaded profile set,
// one score per profile per frame.
type Recognizer interface {
	FrameLength() int
	Process(frame []int16) ([]float64, error)
	Close()
}

// Engine is a chunk-based profiler/recognizer backend (the on-device
// variant and the test mock). engineProvider adapts it to Provider.
type Engine interface {
	Name() string
	NewProfiler() (Profiler, error)
	NewRecognizer(profiles [][]byte) (Recognizer, error)
}
