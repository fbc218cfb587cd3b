package bus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/loqalabs/kadai/internal/config"
	"github.com/loqalabs/kadai/internal/natsserver"
	"github.com/loqalabs/kadai/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishJSONOverEmbeddedServer(t *testing.T) {
	embedded, err := natsserver.Start(config.BusConfig{Embedded: true, Port: server.RANDOM_PORT}, newLogger())
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	defer embedded.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Connect(ctx, "kadai-test", config.BusConfig{
		Servers:        []string{embedded.ClientURL()},
		ConnectTimeout: 2000,
	}, newLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if !client.Healthy() {
		t.Fatal("expected healthy connection")
	}

	received := make(chan protocol.Speaking, 1)
	sub, err := client.Subscribe(protocol.SubjectUISpeaking, func(msg *nats.Msg) {
		var sig protocol.Speaking
		if err := json.Unmarshal(msg.Data, &sig); err == nil {
			received <- sig
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := client.PublishJSON(protocol.SubjectUISpeaking, protocol.Speaking{Speaking: true, Utterance: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case sig := <-received:
		if !sig.Speaking || sig.Utterance != 7 {
			t.Fatalf("unexpected signal %+v", sig)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestConnectRequiresServers(t *testing.T) {
	if _, err := Connect(context.Background(), "kadai-test", config.BusConfig{}, newLogger()); err == nil {
		t.Fatal("expected error without servers")
	}
}

func TestStartDisabledIsNil(t *testing.T) {
	embedded, err := natsserver.Start(config.BusConfig{Embedded: false}, newLogger())
	if err != nil || embedded != nil {
		t.Fatalf("expected nil server, got %v %v", embedded, err)
	}
	embedded.Shutdown()
}
