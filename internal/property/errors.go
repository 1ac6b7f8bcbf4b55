package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrNotFound means every step of a lookup legitimately found nothing.
var ErrNotFound = eris.New("property: no property data found")

// ErrDisambiguation means the model's candidate choice was missing or
// invalid. Callers always recover with the deterministic matcher.
var ErrDisambiguation = eris.New("match: disambiguation failed")

// ProviderError records an unavailable provider step: non-2xx, malformed
// JSON, timeout, or an open circuit. The cascade treats it as no match.
type ProviderError struct {
	Provider   string
	Step       string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s: %s lookup unavailable", e.Provider, e.Step)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Summary describes the failure by provider, step and status only, leaving
// out the underlying transport error.
func (e *ProviderError) Summary() string {
	msg := fmt.Sprintf("provider %s: %s lookup unavailable", e.Provider, e.Step)
	switch {
	case e.StatusCode != 0:
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	case errors.Is(e.Err, context.DeadlineExceeded):
		msg += " (timed out)"
	}
	return msg
}

// ConfigError reports a missing credential. It is fatal for the request.
type ConfigError struct {
	Credential string
}

func (e *ConfigError) Error() string {
	return "config: missing required credential " + e.Credential
}

// ValidationError rejects a request before any external call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// IsFatal reports whether err must abort the request rather than degrade
// to the next source.
func IsFatal(err error) bool {
	var cfg *ConfigError
	var val *ValidationError
	return errors.As(err, &cfg) || errors.As(err, &val)
}
