package voiceid

import (
	"encoding/binary"
	"math"

	"github.com/hearthside/hearth/internal/audio"
)

// MockEngine is a deterministic local fallback used when no real voice
// backend is configured. A profile is just the mean absolute amplitude of
// the enrolled audio, so re-playing an enrollment clip scores near 1.0
// while clips at a different level score low.
type MockEngine struct{}

func NewMockEngine() *MockEngine { return &MockEngine{} }

func (e *MockEngine) Name() string { return "mock" }

func (e *MockEngine) NewProfiler() (Profiler, error) {
	return &mockProfiler{}, nil
}

func (e *MockEngine) NewRecognizer(profiles [][]byte) (Recognizer, error) {
	levels := make([]float64, len(profiles))
	valid := make([]bool, len(profiles))
	for i, p := range profiles {
		if len(p) != 8 {
			continue
		}
		levels[i] = math.Float64frombits(binary.LittleEndian.Uint64(p))
		valid[i] = true
	}
	return &mockRecognizer{levels: levels, valid: valid}, nil
}

const mockChunkSamples = audio.SampleRate * localChunkSeconds

type mockProfiler struct {
	sumAbs  float64
	samples int
}

func (p *mockProfiler) MinEnrollSamples() int { return mockChunkSamples }

func (p *mockProfiler) Enroll(chunk []int16) (float64, error) {
	p.sumAbs += sumAbsAmplitude(chunk)
	p.samples += len(chunk)
	pct := 100 * float64(p.samples) / float64(localTargetSamples)
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

func (p *mockProfiler) Export() ([]byte, error) {
	level := 0.0
	if p.samples > 0 {
		level = p.sumAbs / float64(p.samples)
	}
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, math.Float64bits(level))
	return out, nil
}

func (p *mockProfiler) Close() {}

type mockRecognizer struct {
	levels []float64
	valid  []bool
}

func (r *mockRecognizer) FrameLength() int { return localFrameLength }

func (r *mockRecognizer) Process(frame []int16) ([]float64, error) {
	level := 0.0
	if len(frame) > 0 {
		level = sumAbsAmplitude(frame) / float64(len(frame))
	}
	scores := make([]float64, len(r.levels))
	for i, ref := range r.levels {
		if !r.valid[i] {
			continue
		}
		// Relative level difference maps to a score in (0, 1].
		denom := math.Max(ref, level)
		if denom == 0 {
			scores[i] = 1
			continue
		}
		scores[i] = 1 - math.Abs(ref-level)/denom
	}
	return scores, nil
}

func (r *mockRecognizer) Close() {}

func sumAbsAmplitude(pcm []int16) float64 {
	total := 0.0
	for _, s := range pcm {
		total += math.Abs(float64(s))
	}
	return total
}
