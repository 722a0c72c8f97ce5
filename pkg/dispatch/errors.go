// Package dispatch contains the contracts between the dispatch core and the
// channel adapters, and the error taxonomy they share.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Classifiers carried in ResponseEnvelope.ErrorCode.
const (
	CodeUnknownChannel = "UNKNOWN_CHANNEL"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
	CodeTimeout        = "GATEWAY_TIMEOUT"
	CodeValidation     = "VALIDATION_ERROR"

	// CodeInvalidResponse marks a provider reply that could not be decoded.
	CodeInvalidResponse = "INVALID_RESPONSE"
)

var (
	// ErrUnknownChannel is returned when no adapter is registered for a channel.
	ErrUnknownChannel = errors.New("no adapter registered for channel")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ProviderError is a failure reported by (or while talking to) a provider.
type ProviderError struct {
	Provider string
	// Code is the provider's status classifier, e.g. "UNREGISTERED" or
	// "TOO_MANY_REQUESTS". May be empty.
	Code string
	// StatusCode is the HTTP status of the provider response, when there was one.
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" provider failed")
	if e.Code != "" {
		b.WriteString(" (" + e.Code + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewHTTPProviderError classifies a failed provider HTTP response by status.
func NewHTTPProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       CodeFromHTTPStatus(status),
		StatusCode: status,
		Err:        err,
	}
}

// ValidationError reports a malformed payload detected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ErrorCode extracts the status classifier from err, or "" when there is none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	switch {
	case errors.Is(err, ErrUnknownChannel):
		return CodeUnknownChannel
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return ""
}

// CodeFromHTTPStatus turns an HTTP status into an upper snake case
// classifier: 429 becomes "TOO_MANY_REQUESTS".
func CodeFromHTTPStatus(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("HTTP_%d", status)
	}
	text = strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text)
	return strings.ToUpper(text)
}
