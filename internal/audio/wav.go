package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/wicaksana/sapa-server/domain/entities"
)

const (
	// DefaultSampleRate matches the kiosk microphone capture rate.
	DefaultSampleRate = 48000

	wavHeaderSize = 44
	bitsPerSample = 16
	numChannels   = 1
)

// IsWAV reports whether data already carries a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}

// IsJPEG reports whether data starts with the JPEG SOI marker.
func IsJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// WrapPCM prefixes raw 16-bit mono PCM with a WAV header so downstream
// services can consume it. Already-wrapped data passes through untouched.
func WrapPCM(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("empty audio: %w", entities.ErrDecode)
	}
	if IsWAV(pcm) {
		return pcm, nil
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("odd byte count for 16-bit samples: %w", entities.ErrDecode)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	out := make([]byte, 0, wavHeaderSize+len(pcm))
	buf := bytes.NewBuffer(out)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}
