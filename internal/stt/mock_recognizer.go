package stt

import (
	"context"
)

// mockRecognizer answers every non-empty capture with a fixed phrase.
type mockRecognizer struct {
	phrase string
}

func NewMockRecognizer(phrase string) Recognizer {
	return &mockRecognizer{phrase: phrase}
}

func (m *mockRecognizer) Transcribe(_ context.Context, pcm []byte, _ int, _ int) (TranscriptResult, error) {
	if len(pcm) == 0 {
		return TranscriptResult{}, nil
	}
	return TranscriptResult{Text: m.phrase, Confidence: 1}, nil
}
