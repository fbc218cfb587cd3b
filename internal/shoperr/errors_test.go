package shoperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("place order: %w", Validation(InvalidPhone))
	kind, ok := KindOf(err)
	if !ok || kind != InvalidPhone {
		t.Fatalf("expected invalid phone kind, got %v %v", kind, ok)
	}
	if IsTransport(err) {
		t.Fatal("validation error must not be a transport error")
	}
}

func TestTransportUnwrap(t *testing.T) {
	err := Transport("catalog.search", context.DeadlineExceeded)
	if !IsTransport(err) {
		t.Fatal("expected transport error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if again := Transport("order.submit", err); again != err {
		t.Fatal("expected existing transport error to pass through")
	}
}

func TestStatusMessage(t *testing.T) {
	err := Status("order.submit", 502, "")
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != 502 {
		t.Fatalf("expected status 502, got %v", err)
	}
	if IsValidation(err) {
		t.Fatal("status error must not be a validation error")
	}
}
