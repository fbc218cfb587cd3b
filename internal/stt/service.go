package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/kadai/internal/bus"
	"github.com/loqalabs/kadai/internal/config"
	"github.com/loqalabs/kadai/internal/protocol"
)

const transcribeTimeout = 45 * time.Second

// Service feeds microphone frames from the bus into the Listener and
// republishes transcripts.
type Service struct {
	cfg      config.STTConfig
	bus      *bus.Client
	listener *Listener
	ctx      context.Context
	cancel   context.CancelFunc
	sub      *nats.Subscription
	logger   *slog.Logger
	ready    bool
}

func NewService(parent context.Context, cfg config.STTConfig, busClient *bus.Client, listener *Listener, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:      cfg,
		bus:      busClient,
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(slog.String("component", "stt-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	s.listener.OnTranscript(s.publishTranscript)
	subject := protocol.SubjectAudioFramePrefix + ".>"
	sub, err := s.bus.Subscribe(subject, s.handleFrame)
	if err != nil {
		return fmt.Errorf("subscribe audio frames: %w", err)
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

func (s *Service) handleFrame(msg *nats.Msg) {
	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.logger.Warn("failed to decode audio frame", slogError(err))
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, transcribeTimeout)
	defer cancel()
	if err := s.listener.Feed(ctx, frame.Session, frame.PCM, frame.Final); err != nil {
		s.logger.Warn("stt transcription failed", slog.Uint64("session", frame.Session), slogError(err))
	}
}

func (s *Service) publishTranscript(t Transcript) {
	msg := protocol.Transcript{
		Session:   t.Session,
		Text:      t.Text,
		Locale:    config.Locale,
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.PublishJSON(protocol.SubjectTranscriptFinal, msg); err != nil {
		s.logger.Warn("failed to publish transcript", slogError(err))
	}
}
