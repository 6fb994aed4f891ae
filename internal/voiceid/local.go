package voiceid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hearthside/hearth/internal/audio"
)

// Local on-device engine: a band-energy voiceprint. Each enrollment chunk
// contributes a log band-power vector; the exported profile is the
// unit-normalized mean vector, and recognition scores each frame by cosine
// similarity against the loaded profiles, mapped onto [0, 1].
//
// This is a lightweight speaker signature, not a diarization model; it is
// meant for a small family-scoped candidate set with cooperative, clean
// single-speaker clips.

const (
	localFrameLength     = 512
	localChunkSeconds    = 2
	localTargetSeconds   = 12
	localMinEnrollChunk  = localChunkSeconds * audio.SampleRate
	localTargetSamples   = localTargetSeconds * audio.SampleRate
	localBandCount       = 24
	localProfileMagic    = "HVP1"
	localProfileByteSize = 4 + 2 + localBandCount*8
)

// Band center frequencies are spaced roughly mel-like across the telephone
// speech band.
var localBandCenters = func() [localBandCount]float64 {
	var out [localBandCount]float64
	const lo, hi = 120.0, 7000.0
	melLo := 2595 * math.Log10(1+lo/700)
	melHi := 2595 * math.Log10(1+hi/700)
	for i := range out {
		mel := melLo + (melHi-melLo)*float64(i)/float64(localBandCount-1)
		out[i] = 700 * (math.Pow(10, mel/2595) - 1)
	}
	return out
}()

type LocalEngine struct{}

func NewLocalEngine() *LocalEngine { return &LocalEngine{} }

func (e *LocalEngine) Name() string { return "local" }

func (e *LocalEngine) NewProfiler() (Profiler, error) {
	return &localProfiler{}, nil
}

func (e *LocalEngine) NewRecognizer(profiles [][]byte) (Recognizer, error) {
	vectors := make([][localBandCount]float64, 0, len(profiles))
	valid := make([]bool, len(profiles))
	for i, blob := range profiles {
		vec, err := decodeLocalProfile(blob)
		if err != nil {
			// Malformed profiles are skipped, not fatal: they simply
			// never match, mirroring how a corrupted artifact behaves.
			vectors = append(vectors, [localBandCount]float64{})
			continue
		}
		vectors = append(vectors, vec)
		valid[i] = true
	}
	anyValid := false
	for _, ok := range valid {
		if ok {
			anyValid = true
			break
		}
	}
	if !anyValid {
		return nil, errors.New("no usable voice profiles")
	}
	return &localRecognizer{vectors: vectors, valid: valid}, nil
}

type localProfiler struct {
	sum     [localBandCount]float64
	chunks  int
	samples int
}

func (p *localProfiler) MinEnrollSamples() int { return localMinEnrollChunk }

func (p *localProfiler) Enroll(chunk []int16) (float64, error) {
	if len(chunk) < localMinEnrollChunk {
		return p.percent(), fmt.Errorf("enroll chunk too short: %d samples", len(chunk))
	}
	feature := bandFeature(chunk)
	for i := range p.sum {
		p.sum[i] += feature[i]
	}
	p.chunks++
	p.samples += len(chunk)
	return p.percent(), nil
}

func (p *localProfiler) percent() float64 {
	pct := float64(p.samples) / float64(localTargetSamples) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (p *localProfiler) Export() ([]byte, error) {
	if p.chunks == 0 {
		return nil, errors.New("no enrollment audio processed")
	}
	var mean [localBandCount]float64
	for i := range mean {
		mean[i] = p.sum[i] / float64(p.chunks)
	}
	normalize(&mean)
	return encodeLocalProfile(mean), nil
}

func (p *localProfiler) Close() {}

type localRecognizer struct {
	vectors [][localBandCount]float64
	valid   []bool
}

func (r *localRecognizer) FrameLength() int { return localFrameLength }

func (r *localRecognizer) Process(frame []int16) ([]float64, error) {
	if len(frame) != localFrameLength {
		return nil, fmt.Errorf("frame length %d, want %d", len(frame), localFrameLength)
	}
	feature := bandFeature(frame)
	normalize(&feature)
	scores := make([]float64, len(r.vectors))
	for i, vec := range r.vectors {
		if !r.valid[i] {
			continue
		}
		cos := 0.0
		for b := range vec {
			cos += vec[b] * feature[b]
		}
		// Cosine in [-1, 1] mapped to [0, 1].
		scores[i] = (cos + 1) / 2
	}
	return scores, nil
}

func (r *localRecognizer) Close() {}

// bandFeature computes log power at the band center frequencies over the
// samples via the Goertzel recurrence, averaged across frames.
func bandFeature(samples []int16) [localBandCount]float64 {
	var acc [localBandCount]float64
	frames := 0
	for start := 0; start+localFrameLength <= len(samples); start += localFrameLength {
		frame := samples[start : start+localFrameLength]
		for b, freq := range localBandCenters {
			acc[b] += goertzelPower(frame, freq)
		}
		frames++
	}
	if frames == 0 {
		// Shorter than a frame: single pass over whatever is there.
		for b, freq := range localBandCenters {
			acc[b] = goertzelPower(samples, freq)
		}
		frames = 1
	}
	var out [localBandCount]float64
	mean := 0.0
	for b := range out {
		out[b] = math.Log1p(acc[b] / float64(frames))
		mean += out[b]
	}
	// Mean-center so cosine compares spectral shape, not overall level;
	// uncorrelated voices then land near zero instead of near one.
	mean /= localBandCount
	for b := range out {
		out[b] -= mean
	}
	return out
}

func goertzelPower(frame []int16, freq float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	omega := 2 * math.Pi * freq / float64(audio.SampleRate)
	coeff := 2 * math.Cos(omega)
	var s0, s1, s2 float64
	for _, v := range frame {
		s0 = float64(v)/32768.0 + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return power / float64(len(frame))
}

func normalize(vec *[localBandCount]float64) {
	mag := 0.0
	for _, v := range vec {
		mag += v * v
	}
	mag = math.Sqrt(mag)
	if mag == 0 {
		return
	}
	for i := range vec {
		vec[i] /= mag
	}
}

func encodeLocalProfile(vec [localBandCount]float64) []byte {
	out := make([]byte, 0, localProfileByteSize)
	out = append(out, localProfileMagic...)
	out = binary.LittleEndian.AppendUint16(out, localBandCount)
	for _, v := range vec {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
	}
	return out
}

func decodeLocalProfile(blob []byte) ([localBandCount]float64, error) {
	var vec [localBandCount]float64
	if len(blob) != localProfileByteSize || string(blob[:4]) != localProfileMagic {
		return vec, errors.New("malformed voice profile")
	}
	if binary.LittleEndian.Uint16(blob[4:6]) != localBandCount {
		return vec, errors.New("voice profile band count mismatch")
	}
	for i := range vec {
		off := 6 + i*8
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[off : off+8]))
	}
	return vec, nil
}
