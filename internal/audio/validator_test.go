package audio

import (
	"encoding/binary"
	"errors"
	"testing"

	"aiinterviewer/internal/models"
)

// buildWAV assembles a minimal RIFF/WAVE buffer with one fmt and one data
// chunk.
func buildWAV(audioFormat, channels, sampleRate, bitsPerSample int, frames int) []byte {
	blockAlign := channels * bitsPerSample / 8
	dataSize := frames * blockAlign

	buf := make([]byte, 0, 44+dataSize)
	buf = append(buf, []byte("RIFF")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataSize))
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(audioFormat))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate*blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(bitsPerSample))

	buf = append(buf, []byte("data")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataSize))
	buf = append(buf, make([]byte, dataSize)...)
	return buf
}

func TestValidateAcceptsPCM(t *testing.T) {
	v := NewValidator(Limits{})

	if err := v.Validate(buildWAV(1, 1, 16000, 16, 32)); err != nil {
		t.Fatalf("mono 16kHz PCM rejected: %v", err)
	}
	if err := v.Validate(buildWAV(1, 2, 48000, 16, 32)); err != nil {
		t.Fatalf("stereo 48kHz PCM rejected: %v", err)
	}
	if err := v.Validate(buildWAV(3, 1, 44100, 32, 32)); err != nil {
		t.Fatalf("IEEE float rejected: %v", err)
	}
}

func TestValidateRejectsTinyBuffer(t *testing.T) {
	v := NewValidator(Limits{})
	err := v.Validate([]byte{0x52, 0x49, 0x46, 0x46, 0x00})
	if !errors.Is(err, models.ErrUnsupportedAudioFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedAudioFormat", err)
	}
}

func TestValidateRejectsWrongMagic(t *testing.T) {
	v := NewValidator(Limits{})
	buf := buildWAV(1, 1, 16000, 16, 32)
	copy(buf[8:12], "MP3 ")
	if err := v.Validate(buf); !errors.Is(err, models.ErrUnsupportedAudioFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedAudioFormat", err)
	}
}

func TestValidateSampleRateBounds(t *testing.T) {
	v := NewValidator(Limits{})

	if err := v.Validate(buildWAV(1, 1, 4000, 16, 32)); !errors.Is(err, models.ErrUnsupportedAudioFormat) {
		t.Fatalf("4kHz: error = %v, want ErrUnsupportedAudioFormat", err)
	}
	if err := v.Validate(buildWAV(1, 1, 96000, 16, 32)); !errors.Is(err, models.ErrUnsupportedAudioFormat) {
		t.Fatalf("96kHz: error = %v, want ErrUnsupportedAudioFormat", err)
	}
	if err := v.Validate(buildWAV(1, 1, 8000, 16, 32)); err != nil {
		t.Fatalf("8kHz lower bound rejected: %v", err)
	}
}

func TestValidateSizeLimit(t *testing.T) {
	v := NewValidator(Limits{MaxSizeBytes: 128})
	err := v.Validate(buildWAV(1, 1, 16000, 16, 256))
	if !errors.Is(err, models.ErrFileTooLarge) {
		t.Fatalf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestValidateRejectsTruncatedData(t *testing.T) {
	v := NewValidator(Limits{})
	buf := buildWAV(1, 1, 16000, 16, 32)
	// Declare a data chunk bigger than the remaining bytes.
	binary.LittleEndian.PutUint32(buf[40:44], 1<<20)
	if err := v.Validate(buf); !errors.Is(err, models.ErrUnsupportedAudioFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedAudioFormat", err)
	}
}

func TestValidateRejectsBadChannelCount(t *testing.T) {
	v := NewValidator(Limits{})
	if err := v.Validate(buildWAV(1, 6, 16000, 16, 32)); !errors.Is(err, models.ErrUnsupportedAudioFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedAudioFormat", err)
	}
}
