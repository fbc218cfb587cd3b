// Package shoperr defines the error kinds shared by the catalog, order and
// assistant packages. User-facing failures are either local validation
// problems or transport problems talking to the remote shop service.
package shoperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	EmptyQuery Kind = iota + 1
	EmptyCart
	MissingDetails
	InvalidPhone
)

func (k Kind) String() string {
	switch k {
	case EmptyQuery:
		return "empty_query"
	case EmptyCart:
		return "empty_cart"
	case MissingDetails:
		return "missing_details"
	case InvalidPhone:
		return "invalid_phone"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ValidationError is raised before any network call is made.
type ValidationError struct {
	Kind Kind
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Kind.String()
}

func Validation(kind Kind) error {
	return &ValidationError{Kind: kind}
}

// TransportError covers network failures, non-2xx responses, undecodable
// bodies and an open circuit breaker.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func Transport(op string, err error) error {
	var existing *TransportError
	if errors.As(err, &existing) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

func Status(op string, code int, body string) error {
	if body == "" {
		body = "unexpected response"
	}
	return &TransportError{Op: op, StatusCode: code, Err: errors.New(body)}
}

func KindOf(err error) (Kind, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool {
	_, ok := KindOf(err)
	return ok
}

func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}
