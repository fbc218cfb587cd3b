package httpc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/loqalabs/kadai/internal/config"
	"github.com/loqalabs/kadai/internal/shoperr"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(base string, failures int) config.CatalogConfig {
	return config.CatalogConfig{
		BaseURL:           base,
		TimeoutMS:         2000,
		BreakerFailures:   failures,
		BreakerCooldownMS: 60000,
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL, 2), newLogger())
	for i := 0; i < 4; i++ {
		err := client.GetJSON(context.Background(), "catalog.search", "/items", nil, &[]string{})
		if !shoperr.IsTransport(err) {
			t.Fatalf("attempt %d: expected transport error, got %v", i, err)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected breaker to stop traffic after 2 failures, server saw %d", got)
	}
	if client.State() != "open" {
		t.Fatalf("expected open breaker, got %s", client.State())
	}
}

func TestDecodeFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL, 0), newLogger())
	var out map[string]any
	err := client.PostJSON(context.Background(), "order.submit", "/order", map[string]int{"total": 1}, &out)
	if !shoperr.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if client.State() != "disabled" {
		t.Fatalf("expected disabled breaker, got %s", client.State())
	}
}
