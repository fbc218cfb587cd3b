package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loqalabs/kadai/internal/assistant"
	"github.com/loqalabs/kadai/internal/bus"
	"github.com/loqalabs/kadai/internal/catalog"
	"github.com/loqalabs/kadai/internal/config"
	"github.com/loqalabs/kadai/internal/eventstore"
	"github.com/loqalabs/kadai/internal/httpc"
	"github.com/loqalabs/kadai/internal/natsserver"
	"github.com/loqalabs/kadai/internal/order"
	"github.com/loqalabs/kadai/internal/stt"
	"github.com/loqalabs/kadai/internal/tts"
	"github.com/loqalabs/kadai/internal/web"
)

// Runtime runs one kiosk session: the assistant, its speech devices on the
// bus, and the HTTP front-end.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger
	ready  atomic.Bool

	bus *bus.Client
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start blocks until ctx is cancelled, then shuts everything down in reverse
// order of construction.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metrics, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	busCfg := r.cfg.Bus
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}
	busClient, err := bus.Connect(ctx, r.cfg.RuntimeName, busCfg, r.logger.With(slog.String("component", "bus")))
	if err != nil {
		embedded.Shutdown()
		return fmt.Errorf("failed to connect bus: %w", err)
	}
	r.bus = busClient

	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger.With(slog.String("component", "eventstore")))
	if err != nil {
		busClient.Close()
		embedded.Shutdown()
		return fmt.Errorf("failed to open event store: %w", err)
	}
	sessionID := uuid.NewString()
	if err := store.AppendSession(ctx, sessionID, r.cfg.RuntimeName); err != nil {
		r.logger.Warn("failed to record session", slogError(err))
	}
	bridge := newUIBridge(busClient, sessionID, r.logger)

	speaker, err := r.newSpeaker(ctx, busClient)
	if err != nil {
		r.logger.Warn("speech output disabled", slogError(err))
	}
	listener, sttService, err := r.newListener(ctx, busClient)
	if err != nil {
		r.logger.Warn("speech input disabled", slogError(err))
	}

	shopHTTP := httpc.New(r.cfg.Catalog, r.logger)
	deps := assistant.Deps{
		Catalog:  catalog.NewClient(shopHTTP, r.logger),
		Orders:   order.NewPipeline(shopHTTP, r.logger),
		Timeline: store.Recorder(sessionID),
	}
	if speaker != nil {
		deps.Speaker = speaker
	}
	if listener != nil {
		deps.Microphone = listener
	}
	shop := assistant.New(ctx, deps, assistant.Options{
		PreviewMedia:      r.cfg.UI.PreviewMedia,
		PreviewCloseDelay: time.Duration(r.cfg.UI.PreviewCloseMS) * time.Millisecond,
		OrderPlaced:       bridge.orderPlaced,
	}, r.logger)
	shop.Subscribe(bridge.state)

	if speaker != nil {
		speaker.OnSignal(func(sig tts.Signal) {
			shop.SetSpeaking(sig.Speaking)
			bridge.speaking(sig)
		})
	}
	if listener != nil {
		listener.OnChange(func(c stt.Change) { shop.SetListening(c.Listening, c.Session) })
		listener.OnTranscript(func(t stt.Transcript) { shop.HandleTranscript(t.Text) })
		if err := sttService.Start(); err != nil {
			r.logger.Warn("failed to start stt service", slogError(err))
		}
	}

	server := web.New(r.cfg.HTTP, shop, web.Options{Metrics: metrics, Ready: r.readiness}, r.logger)
	server.Start(ctx)

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("session", sessionID),
		slog.String("catalog", r.cfg.Catalog.BaseURL),
		slog.Bool("speech_output", speaker != nil),
		slog.Bool("speech_input", listener != nil),
	)

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slogError(err))
	}
	if sttService != nil {
		sttService.Close()
	}
	if speaker != nil {
		speaker.Close()
	}
	shop.Wait()
	busClient.Close()
	embedded.Shutdown()
	if err := store.Close(); err != nil {
		r.logger.Error("event store close error", slogError(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		r.logger.Error("telemetry shutdown error", slogError(err))
	}
	return nil
}

func (r *Runtime) newSpeaker(ctx context.Context, busClient *bus.Client) (*tts.Controller, error) {
	cfg := r.cfg.TTS
	if !cfg.Enabled {
		return nil, nil
	}
	var synth tts.Synthesizer
	switch cfg.Mode {
	case "exec":
		var err error
		if synth, err = tts.NewExecSynth(cfg.Command, cfg.SampleRate, cfg.Channels); err != nil {
			return nil, err
		}
	default:
		synth = tts.NewMockSynth(cfg.SampleRate, cfg.Channels, time.Duration(cfg.ChunkDurationMS)*time.Millisecond)
	}
	sink := tts.NewBusSink(busClient, cfg.Target)
	return tts.NewController(ctx, synth, sink, cfg.Voice, r.logger), nil
}

func (r *Runtime) newListener(ctx context.Context, busClient *bus.Client) (*stt.Listener, *stt.Service, error) {
	cfg := r.cfg.STT
	if !cfg.Enabled {
		return nil, nil, nil
	}
	var recognizer stt.Recognizer
	switch cfg.Mode {
	case "exec":
		var err error
		if recognizer, err = stt.NewExecRecognizer(cfg); err != nil {
			return nil, nil, err
		}
	default:
		recognizer = stt.NewMockRecognizer(cfg.MockPhrase)
	}
	listener := stt.NewListener(ctx, cfg, recognizer, r.logger)
	return listener, stt.NewService(ctx, cfg, busClient, listener, r.logger), nil
}

func (r *Runtime) readiness() error {
	if !r.ready.Load() {
		return errors.New("starting")
	}
	if !r.bus.Healthy() {
		return errors.New("bus disconnected")
	}
	return nil
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
