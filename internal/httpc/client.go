// Package httpc is the JSON client used to talk to the remote shop service.
// Every call runs through a circuit breaker and failures surface as
// shoperr.TransportError.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/loqalabs/kadai/internal/config"
	"github.com/loqalabs/kadai/internal/shoperr"
)

const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second

	maxErrorBody = 512
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func New(cfg config.CatalogConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "httpc"))
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    NewHTTPClient(time.Duration(cfg.TimeoutMS) * time.Millisecond),
		logger:  logger,
	}
	if cfg.BreakerFailures > 0 {
		c.breaker = newBreaker(cfg, logger)
	}
	return c
}

// NewHTTPClient returns a client with bounded dial and idle timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func newBreaker(cfg config.CatalogConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	threshold := uint32(cfg.BreakerFailures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "shop-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Duration(cfg.BreakerCooldownMS) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// GetJSON issues GET base+path?query and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return shoperr.Transport(op, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(op, req, out)
}

// PostJSON encodes body as JSON, posts it to base+path and decodes the reply into out.
func (c *Client) PostJSON(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return shoperr.Transport(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	call := func() (interface{}, error) {
		return nil, c.roundTrip(op, req, out)
	}
	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(call)
	} else {
		_, err = call()
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Debug("request short-circuited", slog.String("op", op))
	}
	return shoperr.Transport(op, err)
}

func (c *Client) roundTrip(op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return shoperr.Status(op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// State reports the breaker state, "disabled" when no breaker is configured.
func (c *Client) State() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}
