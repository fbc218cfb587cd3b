// Package stt captures spoken queries. A Listener is either idle or
// listening for exactly one capture session; the transcript of a session is
// delivered once when the session ends.
package stt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/kadai/internal/config"
)

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Transcript is the recognized text of one capture session.
type Transcript struct {
	Session uint64
	Text    string
}

// Change reports a listening transition for a session.
type Change struct {
	Session   uint64
	Listening bool
}

type Listener struct {
	cfg        config.STTConfig
	recognizer Recognizer
	logger     *slog.Logger

	mu           sync.Mutex
	state        State
	session      uint64
	buffer       []byte
	timer        *time.Timer
	onChange     func(Change)
	onTranscript []func(Transcript)
	parent       context.Context
}

func NewListener(parent context.Context, cfg config.STTConfig, recognizer Recognizer, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		cfg:        cfg,
		recognizer: recognizer,
		logger:     logger.With(slog.String("component", "stt-listener")),
		parent:     parent,
	}
}

// OnChange registers the listening observer. It runs with the listener's
// lock held and must not call back into the listener.
func (l *Listener) OnChange(fn func(Change)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// OnTranscript adds a transcript handler.
func (l *Listener) OnTranscript(fn func(Transcript)) {
	l.mu.Lock()
	l.onTranscript = append(l.onTranscript, fn)
	l.mu.Unlock()
}

// Start opens a new capture session. It is rejected while a session is
// already listening.
func (l *Listener) Start() (uint64, bool) {
	if l.recognizer == nil {
		return 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Listening {
		return 0, false
	}
	l.session++
	l.state = Listening
	l.buffer = nil
	session := l.session
	if l.cfg.MaxCapture > 0 {
		l.timer = time.AfterFunc(time.Duration(l.cfg.MaxCapture)*time.Millisecond, func() {
			if err := l.finish(l.parent, session); err != nil {
				l.logger.Warn("capture timeout transcription failed", slogError(err))
			}
		})
	}
	l.logger.Debug("capture started", slog.Uint64("session", session))
	l.notify(Change{Session: session, Listening: true})
	return session, true
}

// Feed appends PCM for session. Frames for any other session, or arriving
// while idle, are dropped. A final frame ends the session.
func (l *Listener) Feed(ctx context.Context, session uint64, pcm []byte, final bool) error {
	l.mu.Lock()
	if l.state != Listening || session != l.session {
		l.mu.Unlock()
		return nil
	}
	l.buffer = append(l.buffer, pcm...)
	l.mu.Unlock()

	if final {
		return l.finish(ctx, session)
	}
	return nil
}

// Stop ends the current session, if any, and transcribes what was captured.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	session := l.session
	l.mu.Unlock()
	return l.finish(ctx, session)
}

func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == Listening
}

func (l *Listener) Session() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// finish is the single listening to idle transition. Only the first caller
// for a session gets the buffered audio.
func (l *Listener) finish(ctx context.Context, session uint64) error {
	l.mu.Lock()
	if l.state != Listening || session != l.session {
		l.mu.Unlock()
		return nil
	}
	l.state = Idle
	pcm := l.buffer
	l.buffer = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	handlers := append([]func(Transcript){}, l.onTranscript...)
	l.notify(Change{Session: session, Listening: false})
	l.mu.Unlock()

	result, err := l.recognizer.Transcribe(ctx, pcm, l.cfg.SampleRate, l.cfg.Channels)
	if err != nil {
		return fmt.Errorf("transcribe session %d: %w", session, err)
	}
	text := strings.TrimSpace(result.Text)
	l.logger.Debug("capture finished",
		slog.Uint64("session", session),
		slog.Int("bytes", len(pcm)),
		slog.Bool("recognized", text != ""),
	)
	if text == "" {
		return nil
	}
	transcript := Transcript{Session: session, Text: text}
	for _, fn := range handlers {
		fn(transcript)
	}
	return nil
}

func (l *Listener) notify(change Change) {
	if l.onChange != nil {
		l.onChange(change)
	}
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
