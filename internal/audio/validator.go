// Package audio validates uploaded voice messages before they are sent
// to the transcription backend. Only RIFF/WAVE containers with PCM or
// IEEE-float frames are accepted.
package audio

import (
	"encoding/binary"
	"fmt"

	"aiinterviewer/internal/models"
)

const minHeaderSize = 44 // RIFF header + fmt chunk + data chunk header

// Limits bounds what the validator accepts.
type Limits struct {
	MaxSizeBytes  int64
	MinSampleRate int
	MaxSampleRate int
}

// DefaultLimits mirrors the production configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxSizeBytes:  25 * 1024 * 1024,
		MinSampleRate: 8000,
		MaxSampleRate: 48000,
	}
}

// Validator checks WAV byte buffers against configured limits.
type Validator struct {
	limits Limits
}

// NewValidator creates a Validator, falling back to defaults for unset
// limit fields.
func NewValidator(limits Limits) *Validator {
	defaults := DefaultLimits()
	if limits.MaxSizeBytes <= 0 {
		limits.MaxSizeBytes = defaults.MaxSizeBytes
	}
	if limits.MinSampleRate <= 0 {
		limits.MinSampleRate = defaults.MinSampleRate
	}
	if limits.MaxSampleRate <= 0 {
		limits.MaxSampleRate = defaults.MaxSampleRate
	}
	return &Validator{limits: limits}
}

// Validate walks the WAV structure and fails on the first problem. A nil
// return means the buffer is safe to hand to the transcription backend.
func (v *Validator) Validate(data []byte) error {
	if len(data) < minHeaderSize {
		return fmt.Errorf("%w: buffer shorter than a WAV header", models.ErrUnsupportedAudioFormat)
	}
	if int64(len(data)) > v.limits.MaxSizeBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", models.ErrFileTooLarge, len(data), v.limits.MaxSizeBytes)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return fmt.Errorf("%w: missing RIFF/WAVE magic", models.ErrUnsupportedAudioFormat)
	}

	var fmtFound, dataFound bool
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		payload := offset + 8
		if payload+chunkSize > len(data) {
			// Declared size reads past the buffer; stop walking.
			break
		}

		switch chunkID {
		case "fmt ":
			fmtFound = true
			if chunkSize >= 16 {
				if err := v.checkFormat(data[payload : payload+16]); err != nil {
					return err
				}
			}
		case "data":
			if chunkSize > 0 {
				dataFound = true
			}
		}

		offset = payload + chunkSize
		if chunkSize%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	if !fmtFound || !dataFound {
		return fmt.Errorf("%w: missing fmt or data chunk", models.ErrUnsupportedAudioFormat)
	}
	return nil
}

func (v *Validator) checkFormat(fmtChunk []byte) error {
	audioFormat := int(binary.LittleEndian.Uint16(fmtChunk[0:2]))
	channels := int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
	sampleRate := int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
	bitsPerSample := int(binary.LittleEndian.Uint16(fmtChunk[14:16]))

	if audioFormat != 1 && audioFormat != 3 { // PCM or IEEE float
		return fmt.Errorf("%w: audio format %d", models.ErrUnsupportedAudioFormat, audioFormat)
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %d channels", models.ErrUnsupportedAudioFormat, channels)
	}
	if sampleRate < v.limits.MinSampleRate || sampleRate > v.limits.MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d outside [%d, %d]",
			models.ErrUnsupportedAudioFormat, sampleRate, v.limits.MinSampleRate, v.limits.MaxSampleRate)
	}
	if bitsPerSample%8 != 0 {
		return fmt.Errorf("%w: %d bits per sample", models.ErrUnsupportedAudioFormat, bitsPerSample)
	}
	return nil
}
