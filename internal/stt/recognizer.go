package stt

import (
	"context"
)

// TranscriptResult captures recognizer output.
type TranscriptResult struct {
	Text       string
	Confidence float64
}

// Recognizer turns one finished capture into text. Recognition is
// non-continuous: it is only asked once per capture session.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int) (TranscriptResult, error)
}
