package services

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrPackageNotFound    = errors.New("package not found")
	ErrPackageUnavailable = errors.New("package is not available for booking")
	ErrPackageHasBookings = errors.New("package has bookings and cannot be deleted")
	ErrBookingNotPayable  = errors.New("booking is not awaiting payment")
	ErrAmountMismatch     = errors.New("requested amount does not match booking total")
	ErrStaleVersion       = errors.New("record was modified by someone else")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrTransient means the outcome could not be persisted. The bank retries
	// the callback, and reprocessing is idempotent.
	ErrTransient = errors.New("temporary failure, please try again")
)

// ConfigurationError means a gateway secret is missing or malformed.
// Nothing is signed or verified while it persists.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("payment gateway misconfigured (%s): %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// GatewayErrorKind classifies initiation failures
type GatewayErrorKind string

const (
	GatewayErrorTransport GatewayErrorKind = "transport"
	GatewayErrorTimeout   GatewayErrorKind = "timeout"
	GatewayErrorStatus    GatewayErrorKind = "status"
	GatewayErrorMalformed GatewayErrorKind = "malformed"
	GatewayErrorRejected  GatewayErrorKind = "rejected"
)

// GatewayError is a failed initiation call. The booking stays Pending.
type GatewayError struct {
	Kind       GatewayErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("payment gateway %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
