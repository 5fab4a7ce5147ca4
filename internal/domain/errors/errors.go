package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// SequencingError reports a business-rule ordering violation. The receipt is
// never transmitted and the operation is never retried.
type SequencingError struct {
	OrderID string
	Reason  string
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("order %s: %s", e.OrderID, e.Reason)
}

// ValidationError reports malformed receipt input: bad refund line selection,
// missing contacts, missing items.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// CodecError reports an unmappable VAT/taxation combination. Never coerced
// silently.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string {
	return e.Reason
}

// TransportError reports that the gateway was unreachable: the request may
// never have left the host and the receipt is re-submittable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GatewayError reports a terminal gateway rejection.
type GatewayError struct {
	Code int
	Body string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected receipt: %d %s", e.Code, e.Body)
}

// SettingsError reports that the configured fiscal context does not match the
// cashbox registration.
type SettingsError struct {
	Reason string
}

func (e *SettingsError) Error() string {
	return e.Reason
}

// IsLocal reports whether the error was raised before any transmission
// attempt, i.e. the receipt was never sent to the gateway.
func IsLocal(err error) bool {
	var seq *SequencingError
	var val *ValidationError
	var codec *CodecError
	return errors.As(err, &seq) || errors.As(err, &val) || errors.As(err, &codec)
}
