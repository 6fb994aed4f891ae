package voiceid

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hearthside/hearth/internal/audio"
)

func tonePCM(freq float64, seconds float64, amp float64) []int16 {
	n := int(seconds * float64(audio.SampleRate))
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(audio.SampleRate)
		out[i] = int16(amp * math.Sin(2*math.Pi*freq*t))
	}
	return out
}

func enrollVoice(t *testing.T, p Provider, freq float64) []byte {
	t.Helper()
	enr, err := p.EnrollStep(context.Background(), Enrollment{}, tonePCM(freq, 13, 9000))
	if err != nil {
		t.Fatalf("EnrollStep: %v", err)
	}
	if !enr.Complete {
		t.Fatalf("enrollment not complete at %f%%", enr.Percent)
	}
	return enr.Artifact
}

func TestEnrollStepAccumulatesAcrossCalls(t *testing.T) {
	p := NewEngineProvider(NewLocalEngine())
	ctx := context.Background()

	first, err := p.EnrollStep(ctx, Enrollment{}, tonePCM(440, 5, 9000))
	if err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if first.Complete {
		t.Fatal("step 1: complete too early")
	}
	if first.Percent <= 0 || first.Percent >= 100 {
		t.Fatalf("step 1: percent = %f", first.Percent)
	}
	if len(first.PendingPCM) != 5*audio.SampleRate {
		t.Fatalf("step 1: pending = %d samples", len(first.PendingPCM))
	}
	if got, want := first.RemainingSeconds, 10.0; math.Abs(got-want) > 0.01 {
		t.Fatalf("step 1: remaining = %f, want %f", got, want)
	}

	second, err := p.EnrollStep(ctx, first, tonePCM(440, 5, 9000))
	if err != nil {
		t.Fatalf("step 2: %v", err)
	}
	if second.Complete {
		t.Fatal("step 2: complete too early")
	}
	if second.Percent <= first.Percent {
		t.Fatalf("step 2: percent %f did not grow past %f", second.Percent, first.Percent)
	}
	if second.RemainingSeconds >= first.RemainingSeconds {
		t.Fatalf("step 2: remaining %f did not shrink below %f", second.RemainingSeconds, first.RemainingSeconds)
	}

	third, err := p.EnrollStep(ctx, second, tonePCM(440, 6, 9000))
	if err != nil {
		t.Fatalf("step 3: %v", err)
	}
	if !third.Complete {
		t.Fatalf("step 3: not complete at %f%%", third.Percent)
	}
	if third.Percent != 100 {
		t.Fatalf("step 3: percent = %f", third.Percent)
	}
	if len(third.Artifact) == 0 {
		t.Fatal("step 3: no profile artifact")
	}
	if len(third.PendingPCM) != 0 {
		t.Fatalf("step 3: pending buffer not cleared, %d samples left", len(third.PendingPCM))
	}
}

func TestEnrollStepRejectsEmptySample(t *testing.T) {
	p := NewEngineProvider(NewLocalEngine())
	prior := Enrollment{PendingPCM: tonePCM(440, 1, 9000), Percent: 8}

	got, err := p.EnrollStep(context.Background(), prior, nil)
	if !errors.Is(err, ErrSampleTooShort) {
		t.Fatalf("err = %v, want ErrSampleTooShort", err)
	}
	if got.Percent != prior.Percent || len(got.PendingPCM) != len(prior.PendingPCM) {
		t.Fatal("prior enrollment state changed on rejected sample")
	}
}

func TestIdentifyPicksEnrolledVoice(t *testing.T) {
	p := NewEngineProvider(NewLocalEngine())
	candidates := []Candidate{
		{ID: "ada", Profile: enrollVoice(t, p, 440)},
		{ID: "ben", Profile: enrollVoice(t, p, 2500)},
	}

	match, err := p.Identify(context.Background(), candidates, tonePCM(2500, 2, 9000))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !match.Recognized {
		t.Fatalf("not recognized, confidence = %f", match.Confidence)
	}
	if match.CandidateID != "ben" {
		t.Fatalf("matched %q, want ben", match.CandidateID)
	}
	if match.Confidence < IdentifyScoreThreshold {
		t.Fatalf("confidence %f below threshold", match.Confidence)
	}
}

func TestIdentifyUnknownVoiceNotRecognized(t *testing.T) {
	p := NewEngineProvider(NewLocalEngine())
	candidates := []Candidate{
		{ID: "ada", Profile: enrollVoice(t, p, 440)},
		{ID: "ben", Profile: enrollVoice(t, p, 2500)},
	}

	match, err := p.Identify(context.Background(), candidates, tonePCM(5500, 2, 9000))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if match.Recognized {
		t.Fatalf("spurious match on %q at %f", match.CandidateID, match.Confidence)
	}
}

func TestIdentifyIsDeterministic(t *testing.T) {
	p := NewEngineProvider(NewLocalEngine())
	candidates := []Candidate{{ID: "ada", Profile: enrollVoice(t, p, 440)}}
	clip := tonePCM(440, 2, 9000)

	first, err := p.Identify(context.Background(), candidates, clip)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := p.Identify(context.Background(), candidates, clip)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first != second {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
}

func TestIdentifyEmptyCandidateSet(t *testing.T) {
	p := NewEngineProvider(NewLocalEngine())

	match, err := p.Identify(context.Background(), nil, tonePCM(440, 2, 9000))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if match.Recognized || match.CandidateID != "" {
		t.Fatalf("unexpected match: %+v", match)
	}
}

func TestIdentifyRejectsShortSample(t *testing.T) {
	p := NewEngineProvider(NewLocalEngine())
	candidates := []Candidate{{ID: "ada", Profile: enrollVoice(t, p, 440)}}

	_, err := p.Identify(context.Background(), candidates, make([]int16, MinIdentifySamples-1))
	if !errors.Is(err, ErrSampleTooShort) {
		t.Fatalf("err = %v, want ErrSampleTooShort", err)
	}
}

func TestIdentifySkipsMalformedProfile(t *testing.T) {
	p := NewEngineProvider(NewLocalEngine())
	candidates := []Candidate{
		{ID: "broken", Profile: []byte("not a profile")},
		{ID: "ada", Profile: enrollVoice(t, p, 440)},
	}

	match, err := p.Identify(context.Background(), candidates, tonePCM(440, 2, 9000))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !match.Recognized || match.CandidateID != "ada" {
		t.Fatalf("match = %+v, want ada", match)
	}
}

func TestMockEngineRoundTrip(t *testing.T) {
	p := NewEngineProvider(NewMockEngine())
	ctx := context.Background()

	enr, err := p.EnrollStep(ctx, Enrollment{}, tonePCM(440, 13, 9000))
	if err != nil {
		t.Fatalf("EnrollStep: %v", err)
	}
	if !enr.Complete {
		t.Fatalf("mock enrollment not complete at %f%%", enr.Percent)
	}

	candidates := []Candidate{{ID: "ada", Profile: enr.Artifact}}
	match, err := p.Identify(ctx, candidates, tonePCM(440, 2, 9000))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !match.Recognized || match.CandidateID != "ada" {
		t.Fatalf("match = %+v, want ada", match)
	}

	quiet, err := p.Identify(ctx, candidates, tonePCM(440, 2, 400))
	if err != nil {
		t.Fatalf("Identify quiet clip: %v", err)
	}
	if quiet.Recognized {
		t.Fatalf("quiet clip matched at %f", quiet.Confidence)
	}
}
