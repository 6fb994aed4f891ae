package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// SampleRate is the canonical rate every downstream component assumes.
// The adapter converts all input to 16 kHz mono 16-bit signed PCM.
const SampleRate = 16000

// EncodeWAV wraps canonical PCM samples in a WAV container. The cloud
// identification backend posts enrollment and identification audio as WAV.
func EncodeWAV(pcm []int16, sampleRate int) []byte {
	var buf bytes.Buffer
	_ = WriteWAVTo(&buf, pcm, sampleRate)
	return buf.Bytes()
}

// WriteWAVTo writes mono 16-bit PCM to out as a WAV stream.
func WriteWAVTo(out io.Writer, pcm []int16, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}

	dataSize := uint32(len(pcm) * 2)
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	w := bufio.NewWriter(out)

	// RIFF header.
	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	// fmt chunk.
	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(audioFormat)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(numChannels)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byteRate); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, blockAlign); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(bitsPerSample)); err != nil {
		return err
	}

	// data chunk.
	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, pcm); err != nil {
		return err
	}
	return w.Flush()
}

// IsWAV reports whether the bytes carry a RIFF/WAVE container signature.
// Detection is by signature only; the declared content type is never trusted.
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}
