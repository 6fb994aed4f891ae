package audio

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-audio/wav"
)

// ErrUnsupportedFormat means no decoder path exists for the input bytes:
// they are not a canonical WAV container and transcoding is unavailable.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// minInputBytes guards against obviously truncated uploads before any
// decode attempt.
const minInputBytes = 100

// Adapter normalizes arbitrary input audio into canonical PCM
// (16 kHz, mono, 16-bit signed). It is the single point where format
// heterogeneity is resolved; downstream components never re-validate.
type Adapter struct {
	transcoder Transcoder
}

// Transcoder converts non-WAV audio bytes to a canonical WAV container.
// A nil transcoder disables the non-WAV path entirely.
type Transcoder interface {
	ToWAV(data []byte, declaredMIME string) ([]byte, error)
}

func NewAdapter(transcoder Transcoder) *Adapter {
	return &Adapter{transcoder: transcoder}
}

// DecodePCM16 yields canonical PCM samples from a byte buffer plus an
// optional declared MIME type. WAV input is detected by container
// signature; anything else goes through the transcoder when present.
func (a *Adapter) DecodePCM16(data []byte, declaredMIME string) ([]int16, error) {
	if len(data) < minInputBytes {
		return nil, ErrUnsupportedFormat
	}
	if !IsWAV(data) {
		if a.transcoder == nil {
			return nil, ErrUnsupportedFormat
		}
		converted, err := a.transcoder.ToWAV(data, declaredMIME)
		if err != nil || !IsWAV(converted) {
			return nil, ErrUnsupportedFormat
		}
		data = converted
	}
	return decodeWAVPCM16(data)
}

// decodeWAVPCM16 decodes a WAV blob, downmixes to mono and resamples to
// the canonical rate.
func decodeWAVPCM16(data []byte) ([]int16, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, ErrUnsupportedFormat
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, ErrUnsupportedFormat
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, ErrUnsupportedFormat
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1 << (bitDepth - 1)
	if scale <= 0 {
		scale = 32768
	}

	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		channels = buf.Format.NumChannels
	}
	sourceRate := int(dec.SampleRate)
	if sourceRate == 0 && buf.Format != nil {
		sourceRate = buf.Format.SampleRate
	}
	if sourceRate == 0 {
		sourceRate = SampleRate
	}

	// Interleaved to mono float, normalized to [-1, 1].
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		mono[i] = float64(sum) / float64(channels) / float64(scale)
	}

	if sourceRate != SampleRate {
		mono = resampleLinear(mono, sourceRate, SampleRate)
	}

	out := make([]int16, len(mono))
	for i, v := range mono {
		switch {
		case v >= 1.0:
			out[i] = 32767
		case v <= -1.0:
			out[i] = -32768
		default:
			out[i] = int16(v * 32767)
		}
	}
	return out, nil
}

func resampleLinear(samples []float64, inRate, outRate int) []float64 {
	if inRate <= 0 || outRate <= 0 || inRate == outRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(float64(len(samples)) * ratio)
	if outLen <= 1 {
		outLen = 1
	}
	out := make([]float64, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		if i0 >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := srcPos - float64(i0)
		out[i] = samples[i0] + (samples[i0+1]-samples[i0])*frac
	}
	return out
}
