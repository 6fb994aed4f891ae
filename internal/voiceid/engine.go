package voiceid

import (
	"context"
	"fmt"

	"github.com/hearthside/hearth/internal/audio"
)

const (
	// IdentifyScoreThreshold is the minimum mean frame score for a match.
	IdentifyScoreThreshold = 0.5
	// MinIdentifySamples rejects clips with too little signal to score.
	MinIdentifySamples = 1000
	// enrollTargetSeconds drives the remaining-speech hint. The engine's
	// true requirement is opaque; this is a linear extrapolation only.
	enrollTargetSeconds = 15.0
)

// engineProvider drives a chunk-based Engine through the cumulative
// enrollment and frame-scored identification algorithms.
type engineProvider struct {
	engine Engine
}

// NewEngineProvider wraps a chunk-based engine as a Provider.
func NewEngineProvider(engine Engine) Provider {
	return &engineProvider{engine: engine}
}

func (p *engineProvider) Name() string { return p.engine.Name() }

// EnrollStep appends the new samples to the pending buffer and re-runs the
// profiling pass over the entire accumulated buffer from scratch. The
// engine's internal enrollment state is not serializable across calls, so
// only the raw audio is carried forward; this restart is deliberate.
func (p *engineProvider) EnrollStep(_ context.Context, prior Enrollment, pcm []int16) (Enrollment, error) {
	if len(pcm) == 0 {
		return prior, ErrSampleTooShort
	}

	pending := make([]int16, 0, len(prior.PendingPCM)+len(pcm))
	pending = append(pending, prior.PendingPCM...)
	pending = append(pending, pcm...)

	profiler, err := p.engine.NewProfiler()
	if err != nil {
		return prior, err
	}
	defer profiler.Close()

	chunk := profiler.MinEnrollSamples()
	if chunk <= 0 {
		return prior, fmt.Errorf("engine %s: invalid chunk size %d", p.engine.Name(), chunk)
	}

	var percent float64
	idx := 0
	for idx+chunk <= len(pending) && percent < 100 {
		percent, err = profiler.Enroll(pending[idx : idx+chunk])
		if err != nil {
			// No state change: the prior pending buffer stays untouched.
			return prior, fmt.Errorf("enroll chunk: %w", err)
		}
		idx += chunk
	}

	if percent >= 100 {
		artifact, err := profiler.Export()
		if err != nil {
			return prior, fmt.Errorf("export profile: %w", err)
		}
		return Enrollment{
			Artifact: artifact,
			Percent:  100,
			Complete: true,
		}, nil
	}

	return Enrollment{
		PendingPCM:       pending,
		Percent:          percent,
		RemainingSeconds: remainingSpeechSeconds(len(pending)),
	}, nil
}

// Identify splits the sample into non-overlapping engine frames, collects
// per-candidate scores across frames and accepts the maximum mean score if
// it clears the threshold. Ties resolve to the first-seen candidate.
func (p *engineProvider) Identify(_ context.Context, candidates []Candidate, pcm []int16) (Match, error) {
	if len(candidates) == 0 {
		return Match{}, nil
	}
	if len(pcm) < MinIdentifySamples {
		return Match{}, ErrSampleTooShort
	}

	profiles := make([][]byte, len(candidates))
	for i, c := range candidates {
		profiles[i] = c.Profile
	}
	recognizer, err := p.engine.NewRecognizer(profiles)
	if err != nil {
		return Match{}, err
	}
	defer recognizer.Close()

	frameLen := recognizer.FrameLength()
	if frameLen <= 0 {
		return Match{}, fmt.Errorf("engine %s: invalid frame length %d", p.engine.Name(), frameLen)
	}

	sums := make([]float64, len(candidates))
	counts := make([]int, len(candidates))
	for i := 0; i+frameLen <= len(pcm); i += frameLen {
		scores, err := recognizer.Process(pcm[i : i+frameLen])
		if err != nil {
			return Match{}, fmt.Errorf("process frame: %w", err)
		}
		for j, s := range scores {
			if j < len(sums) {
				sums[j] += s
				counts[j]++
			}
		}
	}

	bestIdx := 0
	bestMean := 0.0
	for j := range sums {
		mean := 0.0
		if counts[j] > 0 {
			mean = sums[j] / float64(counts[j])
		}
		if mean > bestMean {
			bestMean = mean
			bestIdx = j
		}
	}
	if bestMean < IdentifyScoreThreshold {
		return Match{Confidence: bestMean}, nil
	}
	return Match{
		Recognized:  true,
		CandidateID: candidates[bestIdx].ID,
		Confidence:  bestMean,
	}, nil
}

func remainingSpeechSeconds(accumulatedSamples int) float64 {
	remaining := enrollTargetSeconds - float64(accumulatedSamples)/float64(audio.SampleRate)
	if remaining < 0 {
		return 0
	}
	return remaining
}
