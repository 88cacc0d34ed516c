package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedResponse marks a 2xx body that could not be parsed or did
	// not carry the expected fields. It is never retried.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrEmptyContent is returned when a completion succeeds with no text.
	ErrEmptyContent = errors.New("provider returned empty content")

	// ErrRetriesExhausted matches every *RetriesExhaustedError.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// TransportError wraps connection, DNS and timeout failures.
// These are retried with the policy's transport delay.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s error (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, body)
}

// ServerSide reports whether the status is a 5xx.
func (e *StatusError) ServerSide() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// RetriesExhaustedError is returned once every attempt of a retry policy
// failed with a retryable error.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("max retries (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// IsRetryable reports whether err is worth another attempt:
// transport failures and 5xx responses.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.ServerSide()
	}
	return false
}

// newStatusError builds a StatusError from a response whose body was read.
func newStatusError(provider string, resp *http.Response, body []byte) *StatusError {
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter accepts the delta-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
