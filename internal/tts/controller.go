// Package tts speaks status messages. The Controller plays at most one
// utterance at a time: a new request cancels whatever is playing.
package tts

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentation = "github.com/loqalabs/kadai/internal/tts"

// Signal reports the speaking state. ID is the utterance that caused it.
type Signal struct {
	ID       uint64
	Speaking bool
}

type Controller struct {
	parent context.Context
	synth  Synthesizer
	sink   Sink
	voice  string
	logger *slog.Logger

	mu       sync.Mutex
	current  uint64
	cancel   context.CancelFunc
	speaking bool
	observer func(Signal)
	wg       sync.WaitGroup

	utterances metric.Int64Counter
}

func NewController(parent context.Context, synth Synthesizer, sink Sink, voice string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "tts-controller"))
	utterances, err := otel.Meter(instrumentation).Int64Counter(
		"kadai.tts.utterances",
		metric.WithDescription("Utterances started and superseded"),
	)
	if err != nil {
		logger.Warn("failed to create utterance counter", slogError(err))
	}
	return &Controller{
		parent:     parent,
		synth:      synth,
		sink:       sink,
		voice:      voice,
		logger:     logger,
		utterances: utterances,
	}
}

// OnSignal registers the speaking observer. It is called with the
// controller's lock held, so it must not call back into the controller.
func (c *Controller) OnSignal(fn func(Signal)) {
	c.mu.Lock()
	c.observer = fn
	c.mu.Unlock()
}

// Speak cancels the current utterance, if any, and starts text. It returns
// the new utterance id, or 0 when nothing was started.
func (c *Controller) Speak(text string) uint64 {
	text = strings.TrimSpace(text)
	if text == "" || !c.Available() {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parent.Err() != nil {
		return 0
	}
	if c.cancel != nil {
		c.cancel()
		c.count("superseded")
	}
	c.current++
	id := c.current
	ctx, cancel := context.WithCancel(c.parent)
	c.cancel = cancel
	if !c.speaking {
		c.speaking = true
		c.emit(Signal{ID: id, Speaking: true})
	}
	c.count("started")

	c.wg.Add(1)
	go c.play(ctx, id, text)
	return id
}

// Available reports whether speech can be produced at all.
func (c *Controller) Available() bool {
	if c.synth == nil {
		return false
	}
	if a, ok := c.synth.(Availability); ok {
		return a.Available()
	}
	return true
}

func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Stop cancels the current utterance. Its completion still reports
// Speaking=false.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Close stops playback and waits for playback goroutines to exit.
func (c *Controller) Close() {
	c.Stop()
	c.wg.Wait()
}

func (c *Controller) play(ctx context.Context, id uint64, text string) {
	defer c.wg.Done()
	defer c.finish(id)

	chunks, errs := c.synth.Synthesize(ctx, SynthRequest{Utterance: id, Text: text, Voice: c.voice})
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if c.sink == nil {
				continue
			}
			if err := c.sink.Play(ctx, chunk); err != nil && ctx.Err() == nil {
				c.logger.Warn("failed to play tts chunk", slog.Uint64("utterance", id), slogError(err))
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && ctx.Err() == nil {
				c.logger.Warn("tts synthesis error", slog.Uint64("utterance", id), slogError(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// finish clears the speaking state, but only for the utterance that is
// still current. Superseded utterances end silently.
func (c *Controller) finish(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.current {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.speaking {
		c.speaking = false
		c.emit(Signal{ID: id, Speaking: false})
	}
}

func (c *Controller) emit(sig Signal) {
	if c.observer != nil {
		c.observer(sig)
	}
}

func (c *Controller) count(event string) {
	if c.utterances == nil {
		return
	}
	c.utterances.Add(c.parent, 1, metric.WithAttributes(attribute.String("event", event)))
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
