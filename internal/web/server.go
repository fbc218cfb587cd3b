// Package web serves the kiosk front-end: a JSON API over the assistant's
// actions, a websocket stream of state snapshots, and the health and
// metrics endpoints.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/loqalabs/kadai/internal/assistant"
	"github.com/loqalabs/kadai/internal/config"
	"github.com/loqalabs/kadai/internal/web/hub"
)

// Options carries the optional parts of a Server.
type Options struct {
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// Ready reports whether the runtime can serve requests. nil means ready.
	Ready func() error
}

type Server struct {
	cfg    config.HTTPConfig
	app    *fiber.App
	shop   *assistant.Assistant
	hub    *hub.Hub
	opts   Options
	logger *slog.Logger

	unsubscribe func()
}

func New(cfg config.HTTPConfig, shop *assistant.Assistant, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "web"))
	s := &Server{
		cfg:    cfg,
		shop:   shop,
		hub:    hub.New("state", logger),
		opts:   opts,
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "kadai",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	app.Get("/healthz", s.handleHealth)
	app.Get("/readyz", s.handleReady)
	if opts.Metrics != nil {
		metrics := fasthttpadaptor.NewFastHTTPHandler(opts.Metrics)
		app.Get("/metrics", func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	api := app.Group("/api")
	api.Get("/state", s.state)
	api.Put("/query", s.handleQuery)
	api.Post("/search", s.handleSearch)
	api.Post("/mic", s.handleMic)
	api.Post("/cart", s.handleAddToCart)
	api.Patch("/cart/:index", s.handleUpdateQuantity)
	api.Delete("/cart/:index", s.handleRemove)
	api.Put("/customer", s.handleCustomer)
	api.Post("/order", s.handleOrder)
	api.Post("/preview", s.handleOpenPreview)
	api.Delete("/preview", s.handleClosePreview)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	if dir := strings.TrimSpace(cfg.StaticDir); dir != "" {
		app.Static("/", dir)
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the state hub and begins serving. It returns once the listener
// goroutine has been launched; serve errors are logged.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
	s.unsubscribe = s.shop.Subscribe(func(st assistant.State) {
		if err := s.hub.BroadcastJSON(st); err != nil {
			s.logger.Warn("failed to encode state", slogError(err))
		}
	})

	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
	go func() {
		if err := s.app.Listen(addr); err != nil {
			s.logger.Error("http server failed", slogError(err))
		}
	}()
	s.logger.Info("http server listening", slog.String("addr", addr))
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code == fiber.StatusInternalServerError {
		s.logger.Error("request failed", slogError(err), slog.String("path", c.Path()))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (s *Server) handleReady(c *fiber.Ctx) error {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("not ready: " + err.Error())
		}
	}
	return c.SendString("ready")
}

func (s *Server) handleStateWS(conn *websocket.Conn) {
	initial, err := json.Marshal(s.shop.Snapshot())
	if err != nil {
		s.logger.Warn("failed to encode initial state", slogError(err))
		return
	}
	s.hub.Attach(conn, initial).Serve()
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
