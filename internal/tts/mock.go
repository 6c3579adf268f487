package tts

import (
	"context"
	"fmt"
	"strings"
)

// MockSynthesizer produces deterministic pseudo-audio for tests and for
// running without TTS credentials.
type MockSynthesizer struct {
	// Err, when set, makes every synthesis fail.
	Err error
	// BytesPerChar controls the payload size per input character. Zero means 8.
	BytesPerChar int
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if m.Err != nil {
		return nil, "", m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("tts: empty text")
	}

	per := m.BytesPerChar
	if per <= 0 {
		per = 8
	}
	audio := make([]byte, len(text)*per)
	for i := range audio {
		audio[i] = byte(text[i/per])
	}
	return audio, "mp3", nil
}
