package tts

import (
	"context"
	"time"
	"unicode/utf8"
)

const (
	mockStartDelay = 50 * time.Millisecond
	mockPerRune    = 40 * time.Millisecond
)

type mockSynth struct {
	sampleRate int
	channels   int
	chunk      time.Duration
}

// NewMockSynth returns silence sized roughly like spoken text, split into
// chunks of chunkDuration.
func NewMockSynth(sampleRate, channels int, chunkDuration time.Duration) Synthesizer {
	if chunkDuration <= 0 {
		chunkDuration = 400 * time.Millisecond
	}
	return &mockSynth{sampleRate: sampleRate, channels: channels, chunk: chunkDuration}
}

func (m *mockSynth) Available() bool { return true }

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(mockStartDelay):
		}

		remaining := time.Duration(utf8.RuneCountInString(req.Text)) * mockPerRune
		sequence := 0
		for {
			length := min(remaining, m.chunk)
			remaining -= length
			chunk := SynthChunk{
				Utterance:  req.Utterance,
				Sequence:   sequence,
				SampleRate: m.sampleRate,
				Channels:   m.channels,
				PCM:        make([]byte, pcmBytes(length, m.sampleRate, m.channels)),
				Final:      remaining <= 0,
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			if chunk.Final {
				return
			}
			sequence++
		}
	}()
	return chunks, errs
}

func pcmBytes(d time.Duration, sampleRate, channels int) int {
	samples := int(d.Seconds() * float64(sampleRate))
	return samples * channels * 2
}

// pcmDuration is the playback length of 16-bit PCM.
func pcmDuration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := len(pcm) / (2 * channels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
