package tts

import "context"

// SynthRequest contains parameters to synthesize one utterance.
type SynthRequest struct {
	Utterance uint64
	Text      string
	Voice     string
}

// SynthChunk contains 16-bit little endian PCM.
type SynthChunk struct {
	Utterance  uint64
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Synthesizer produces audio for a request. Both channels are closed when
// synthesis ends; cancelling ctx must end it promptly.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}

// Availability is implemented by synthesizers that can be missing at runtime.
type Availability interface {
	Available() bool
}

// Sink plays or forwards synthesized audio. Play may block for the duration
// of the chunk and must return when ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, chunk SynthChunk) error
}
