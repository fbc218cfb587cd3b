package tts

import (
	"context"
	"time"

	"github.com/loqalabs/kadai/internal/protocol"
)

// Publisher is the subset of the bus client the sink needs.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// BusSink forwards chunks to the kiosk speaker over the bus and waits for
// each chunk's playback time, so the speaking state tracks audible speech.
type BusSink struct {
	bus    Publisher
	target string
	pace   bool
}

func NewBusSink(bus Publisher, target string) *BusSink {
	return &BusSink{bus: bus, target: target, pace: true}
}

func (s *BusSink) Play(ctx context.Context, chunk SynthChunk) error {
	packet := protocol.AudioChunk{
		Utterance:  chunk.Utterance,
		Target:     s.target,
		Sequence:   chunk.Sequence,
		SampleRate: chunk.SampleRate,
		Channels:   chunk.Channels,
		PCM:        chunk.PCM,
		Final:      chunk.Final,
	}
	if err := s.bus.PublishJSON(protocol.SubjectTTSAudio, packet); err != nil {
		return err
	}
	if s.pace {
		if err := wait(ctx, pcmDuration(chunk.PCM, chunk.SampleRate, chunk.Channels)); err != nil {
			return err
		}
	}
	if chunk.Final {
		return s.bus.PublishJSON(protocol.SubjectTTSDone, protocol.TTSStatus{
			Utterance: chunk.Utterance,
			Target:    s.target,
			Completed: true,
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
