package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/loqalabs/kadai/internal/assistant"
	"github.com/loqalabs/kadai/internal/cart"
	"github.com/loqalabs/kadai/internal/catalog"
	"github.com/loqalabs/kadai/internal/config"
	"github.com/loqalabs/kadai/internal/order"
	"github.com/loqalabs/kadai/internal/stt"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubCatalog map[string][]catalog.Item

func (s stubCatalog) Search(_ context.Context, term string) ([]catalog.Item, error) {
	return s[term], nil
}

type stubOrders struct{}

func (stubOrders) Submit(_ context.Context, c cart.Cart, customer order.Customer) (order.Confirmation, error) {
	if _, err := order.Validate(c, customer); err != nil {
		return order.Confirmation{}, err
	}
	return order.Confirmation{Total: c.Total()}, nil
}

func newServer(t *testing.T, opts Options) (*Server, *assistant.Assistant) {
	t.Helper()
	shop := assistant.New(context.Background(), assistant.Deps{
		Catalog: stubCatalog{"rice": {{Name: "Rice", Category: "Grains", Price: decimal.NewFromInt(50)}}},
		Orders:  stubOrders{},
	}, assistant.Options{PreviewMedia: "/videos/small-video.mp4"}, newLogger())
	t.Cleanup(shop.Wait)
	return New(config.HTTPConfig{Bind: "127.0.0.1", Port: 0}, shop, opts, newLogger()), shop
}

func do(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

type stateView struct {
	Query   string `json:"query"`
	Message string `json:"message"`
	Results []struct {
		Name string `json:"Item Name"`
	} `json:"results"`
	Cart struct {
		Entries []struct {
			Quantity int `json:"quantity"`
		} `json:"entries"`
		Total json.Number `json:"total"`
	} `json:"cart"`
	Customer     order.Customer `json:"customer"`
	MicSession   uint64         `json:"micSession"`
	PreviewOpen  bool           `json:"previewOpen"`
	PreviewMedia string         `json:"previewMedia"`
}

func decodeState(t *testing.T, data []byte) stateView {
	t.Helper()
	var st stateView
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode state %s: %v", data, err)
	}
	return st
}

func TestStateEndpoint(t *testing.T) {
	s, _ := newServer(t, Options{})
	code, body := do(t, s, http.MethodGet, "/api/state", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	st := decodeState(t, body)
	if st.PreviewMedia != "/videos/small-video.mp4" || st.Results == nil {
		t.Fatalf("unexpected initial state %s", body)
	}
}

func TestShoppingFlowOverHTTP(t *testing.T) {
	s, shop := newServer(t, Options{})

	if code, _ := do(t, s, http.MethodPut, "/api/query", `{"query":"rice"}`); code != http.StatusOK {
		t.Fatalf("set query: %d", code)
	}
	if code, _ := do(t, s, http.MethodPost, "/api/search", ""); code != http.StatusOK {
		t.Fatalf("search: %d", code)
	}
	shop.Wait()

	_, body := do(t, s, http.MethodGet, "/api/state", "")
	st := decodeState(t, body)
	if len(st.Results) != 1 || st.Results[0].Name != "Rice" {
		t.Fatalf("expected rice in results, got %s", body)
	}

	do(t, s, http.MethodPost, "/api/cart", `{"index":0}`)
	_, body = do(t, s, http.MethodPatch, "/api/cart/0", `{"delta":1}`)
	st = decodeState(t, body)
	if len(st.Cart.Entries) != 1 || st.Cart.Entries[0].Quantity != 2 || st.Cart.Total.String() != "100" {
		t.Fatalf("unexpected cart %s", body)
	}

	do(t, s, http.MethodPut, "/api/customer", `{"name":"Anbu","phone":"9876543210","address":"12 Main Rd"}`)
	do(t, s, http.MethodPost, "/api/order", "")
	shop.Wait()

	_, body = do(t, s, http.MethodGet, "/api/state", "")
	st = decodeState(t, body)
	if len(st.Cart.Entries) != 0 || st.Customer != (order.Customer{}) {
		t.Fatalf("expected cleared cart and customer, got %s", body)
	}
	if !strings.Contains(st.Message, "₹100") {
		t.Fatalf("expected confirmed total in message, got %q", st.Message)
	}
}

func TestCustomerEditsMergeFields(t *testing.T) {
	s, _ := newServer(t, Options{})
	do(t, s, http.MethodPut, "/api/customer", `{"name":"Anbu","phone":"12345","address":"12 Main Rd"}`)

	_, body := do(t, s, http.MethodPut, "/api/customer", `{"phone":"9876543210"}`)
	st := decodeState(t, body)
	want := order.Customer{Name: "Anbu", Phone: "9876543210", Address: "12 Main Rd"}
	if st.Customer != want {
		t.Fatalf("expected %+v, got %s", want, body)
	}

	_, body = do(t, s, http.MethodPut, "/api/customer", `{"address":""}`)
	if st := decodeState(t, body); st.Customer.Address != "" || st.Customer.Name != "Anbu" {
		t.Fatalf("expected only the address cleared, got %s", body)
	}
}

func TestMicTogglePublishesCaptureSession(t *testing.T) {
	ctx := context.Background()
	listener := stt.NewListener(ctx, config.STTConfig{Enabled: true, Mode: "mock", SampleRate: 16000, Channels: 1},
		stt.NewMockRecognizer("rice"), newLogger())
	shop := assistant.New(ctx, assistant.Deps{
		Catalog:    stubCatalog{"rice": {{Name: "Rice", Price: decimal.NewFromInt(50)}}},
		Orders:     stubOrders{},
		Microphone: listener,
	}, assistant.Options{}, newLogger())
	listener.OnChange(func(c stt.Change) { shop.SetListening(c.Listening, c.Session) })
	listener.OnTranscript(func(tr stt.Transcript) { shop.HandleTranscript(tr.Text) })
	t.Cleanup(shop.Wait)
	s := New(config.HTTPConfig{Bind: "127.0.0.1", Port: 0}, shop, Options{}, newLogger())

	code, body := do(t, s, http.MethodPost, "/api/mic", "")
	if code != http.StatusOK {
		t.Fatalf("mic: %d", code)
	}
	st := decodeState(t, body)
	if st.MicSession == 0 || st.MicSession != listener.Session() {
		t.Fatalf("expected capture session %d in state, got %s", listener.Session(), body)
	}

	// Audio tagged with the published session reaches the recognizer.
	if err := listener.Feed(ctx, st.MicSession, []byte{1, 0}, true); err != nil {
		t.Fatalf("feed: %v", err)
	}
	shop.Wait()
	if got := shop.Snapshot(); got.Listening || len(got.Results) != 1 {
		t.Fatalf("expected transcript to drive a search, got %+v", got)
	}
}

func TestRemoveAndPreviewOverHTTP(t *testing.T) {
	s, shop := newServer(t, Options{})
	do(t, s, http.MethodPost, "/api/search", `{"query":"rice"}`)
	shop.Wait()

	_, body := do(t, s, http.MethodPost, "/api/preview", `{"index":0}`)
	if st := decodeState(t, body); !st.PreviewOpen {
		t.Fatalf("expected preview open, got %s", body)
	}
	_, body = do(t, s, http.MethodDelete, "/api/preview", "")
	if st := decodeState(t, body); st.PreviewOpen {
		t.Fatalf("expected preview closed, got %s", body)
	}

	do(t, s, http.MethodPost, "/api/cart", `{"index":0}`)
	_, body = do(t, s, http.MethodDelete, "/api/cart/0", "")
	st := decodeState(t, body)
	if len(st.Cart.Entries) != 0 || st.Message != assistant.MsgRemoved {
		t.Fatalf("expected item removed, got %s", body)
	}

	// Stale indices are ignored.
	if code, _ := do(t, s, http.MethodDelete, "/api/cart/9", ""); code != http.StatusOK {
		t.Fatalf("expected stale index to be accepted, got %d", code)
	}
}

func TestMalformedRequests(t *testing.T) {
	s, _ := newServer(t, Options{})
	cases := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/cart", `{}`},
		{http.MethodPost, "/api/cart", `not json`},
		{http.MethodPatch, "/api/cart/abc", `{"delta":1}`},
		{http.MethodPatch, "/api/cart/0", `{"delta":0}`},
		{http.MethodDelete, "/api/cart/x", ""},
		{http.MethodPut, "/api/query", `{}`},
		{http.MethodPost, "/api/preview", `{"idx":1}`},
	}
	for _, tc := range cases {
		code, body := do(t, s, tc.method, tc.path, tc.body)
		if code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d", tc.method, tc.path, code)
		}
		var payload map[string]string
		if err := json.Unmarshal(body, &payload); err != nil || payload["error"] == "" {
			t.Fatalf("%s %s: expected json error, got %s", tc.method, tc.path, body)
		}
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("bus disconnected")
	s, _ := newServer(t, Options{Ready: func() error { return ready }})

	if code, body := do(t, s, http.MethodGet, "/healthz", ""); code != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %s", code, body)
	}
	if code, _ := do(t, s, http.MethodGet, "/readyz", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while not ready, got %d", code)
	}
	ready = nil
	if code, _ := do(t, s, http.MethodGet, "/readyz", ""); code != http.StatusOK {
		t.Fatalf("expected ready, got %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "kadai_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	s, _ := newServer(t, Options{Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})})
	code, body := do(t, s, http.MethodGet, "/metrics", "")
	if code != http.StatusOK || !strings.Contains(string(body), "kadai_test_total 1") {
		t.Fatalf("unexpected metrics response %d %s", code, body)
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newServer(t, Options{})
	if code, _ := do(t, s, http.MethodGet, "/ws/state", ""); code != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", code)
	}
}
