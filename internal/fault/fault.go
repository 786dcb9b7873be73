// Package fault holds the error values shared across the miner so that
// callers can classify failures with errors.Is instead of matching strings.
package fault

import (
	"errors"
	"fmt"
)

// Search and delivery errors
var (
	ErrSearchExhausted  = errors.New("search exhausted without a solution")
	ErrTransport        = errors.New("transport error")
	ErrBackendBusy      = errors.New("backend busy")
	ErrBackendRejected  = errors.New("backend rejected solution")
	ErrQueueConnection  = errors.New("queue connection error")
	ErrMalformedEntry   = errors.New("malformed queue entry")
	ErrInvalidSolution  = errors.New("solution does not meet difficulty")
	ErrUnexpectedStatus = errors.New("unexpected http status")
)

// Configuration errors
var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidDifficulty = errors.New("invalid difficulty prefix")
	ErrInvalidChallenge  = errors.New("invalid challenge")
	ErrNoAddresses       = errors.New("address list is empty")
	ErrNoValidateURL     = errors.New("validate url is required")
	ErrNoBalanceURL      = errors.New("balance url is required")
	ErrInvalidWorkers    = errors.New("workers must be positive")
)

// StatusError records a non-success HTTP response together with the body
// returned by the server.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
	kind       error
}

// NewStatusError builds a StatusError that unwraps to kind.
func NewStatusError(code int, status, body string, kind error) *StatusError {
	return &StatusError{
		StatusCode: code,
		Status:     status,
		Body:       body,
		kind:       kind,
	}
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http status %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("http status %s", e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// IsRetryable reports whether err describes a condition that may clear up on
// a later attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrBackendBusy) ||
		errors.Is(err, ErrQueueConnection)
}
