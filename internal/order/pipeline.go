// Package order validates a cart together with customer details and submits
// it to the shop service.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/kadai/internal/cart"
	"github.com/loqalabs/kadai/internal/httpc"
	"github.com/loqalabs/kadai/internal/shoperr"
)

const (
	instrumentation = "github.com/loqalabs/kadai/internal/order"
	submitOp        = "order.submit"

	// CountryCode is prefixed to the 10 digit local number.
	CountryCode = "+91"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Line struct {
	Item     string      `json:"item"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
}

// Request is the body posted to {base}/order.
type Request struct {
	Items    []Line      `json:"items"`
	Customer string      `json:"customer"`
	Phone    string      `json:"phone"`
	Address  string      `json:"address"`
	Total    json.Number `json:"total"`
}

type Confirmation struct {
	Total decimal.Decimal
	Phone string
}

type response struct {
	Total *decimal.Decimal `json:"total"`
}

// Validate runs the checks in order: empty cart, missing details, phone
// format. It returns the request that would be sent.
func Validate(c cart.Cart, customer Customer) (Request, error) {
	if c.Empty() {
		return Request{}, shoperr.Validation(shoperr.EmptyCart)
	}
	name := strings.TrimSpace(customer.Name)
	phone := strings.TrimSpace(customer.Phone)
	address := strings.TrimSpace(customer.Address)
	if name == "" || phone == "" || address == "" {
		return Request{}, shoperr.Validation(shoperr.MissingDetails)
	}
	if !phonePattern.MatchString(phone) {
		return Request{}, shoperr.Validation(shoperr.InvalidPhone)
	}

	entries := c.Entries()
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Line{
			Item:     e.Item.Name,
			Quantity: e.Quantity,
			Price:    json.Number(e.Item.Price.String()),
		})
	}
	return Request{
		Items:    lines,
		Customer: name,
		Phone:    CountryCode + phone,
		Address:  address,
		Total:    json.Number(c.Total().String()),
	}, nil
}

// Pipeline is stateless; clearing the cart after success is up to the caller.
type Pipeline struct {
	http        *httpc.Client
	logger      *slog.Logger
	tracer      trace.Tracer
	submissions metric.Int64Counter
}

func NewPipeline(http *httpc.Client, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "order"))
	submissions, err := otel.Meter(instrumentation).Int64Counter(
		"kadai.order.submissions",
		metric.WithDescription("Order submissions by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create submission counter", slogError(err))
	}
	return &Pipeline{
		http:        http,
		logger:      logger,
		tracer:      otel.Tracer(instrumentation),
		submissions: submissions,
	}
}

func (p *Pipeline) Submit(ctx context.Context, c cart.Cart, customer Customer) (Confirmation, error) {
	req, err := Validate(c, customer)
	if err != nil {
		p.count(ctx, "invalid")
		return Confirmation{}, err
	}

	ctx, span := p.tracer.Start(ctx, submitOp, trace.WithAttributes(
		attribute.Int("order.lines", len(req.Items)),
		attribute.String("order.total", string(req.Total)),
	))
	defer span.End()

	var resp response
	err = p.http.PostJSON(ctx, submitOp, "/order", req, &resp)
	if err == nil && resp.Total == nil {
		err = shoperr.Transport(submitOp, errors.New("response missing total"))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		p.count(ctx, "failed")
		p.logger.Warn("order submission failed", slogError(err))
		return Confirmation{}, err
	}

	p.count(ctx, "placed")
	p.logger.Info("order placed",
		slog.Int("lines", len(req.Items)),
		slog.String("total", resp.Total.String()),
	)
	return Confirmation{Total: *resp.Total, Phone: req.Phone}, nil
}

func (p *Pipeline) count(ctx context.Context, outcome string) {
	if p.submissions == nil {
		return
	}
	p.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
