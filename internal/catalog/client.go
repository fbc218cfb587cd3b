// Package catalog queries the remote shop service for items matching a term.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/kadai/internal/httpc"
	"github.com/loqalabs/kadai/internal/shoperr"
)

const (
	instrumentation = "github.com/loqalabs/kadai/internal/catalog"
	searchOp        = "catalog.search"
)

type Client struct {
	http     *httpc.Client
	logger   *slog.Logger
	tracer   trace.Tracer
	requests metric.Int64Counter
}

func NewClient(http *httpc.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "catalog"))
	requests, err := otel.Meter(instrumentation).Int64Counter(
		"kadai.search.requests",
		metric.WithDescription("Catalog searches by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create search counter", slogError(err))
	}
	return &Client{
		http:     http,
		logger:   logger,
		tracer:   otel.Tracer(instrumentation),
		requests: requests,
	}
}

// Search returns every item matching term. An empty slice is a successful
// "nothing found". Each call is a single request; there is no retry or cache.
func (c *Client) Search(ctx context.Context, term string) ([]Item, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, shoperr.Validation(shoperr.EmptyQuery)
	}

	ctx, span := c.tracer.Start(ctx, searchOp, trace.WithAttributes(attribute.String("catalog.term", term)))
	defer span.End()

	var items []Item
	err := c.http.GetJSON(ctx, searchOp, "/items", url.Values{"q": {term}}, &items)
	if err == nil {
		err = checkPrices(items)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		c.count(ctx, "error")
		c.logger.Warn("catalog search failed", slog.String("term", term), slogError(err))
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	span.SetAttributes(attribute.Int("catalog.results", len(items)))
	outcome := "found"
	if len(items) == 0 {
		outcome = "not_found"
	}
	c.count(ctx, outcome)
	c.logger.Debug("catalog search", slog.String("term", term), slog.Int("results", len(items)))
	return items, nil
}

func checkPrices(items []Item) error {
	for _, item := range items {
		if item.Price.IsNegative() {
			return shoperr.Transport(searchOp, fmt.Errorf("item %q has negative price %s", item.Name, item.Price))
		}
	}
	return nil
}

func (c *Client) count(ctx context.Context, outcome string) {
	if c.requests == nil {
		return
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
