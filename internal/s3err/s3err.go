// Package s3err defines the error taxonomy shared by the signer, HTTP
// facade, and multipart orchestrator.
//
// The source this package replaces signals failure by throwing; every
// exported operation here returns a typed *Error instead, so callers can
// branch on Kind without parsing message text.
package s3err

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry.
type Kind string

const (
	// InvalidArgument marks malformed input: bad endpoint, empty
	// credentials, out-of-range expiration, unsupported method. Never
	// retried.
	InvalidArgument Kind = "invalid_argument"
	// IO marks a local filesystem failure: open, stat, seek, read. Never
	// retried.
	IO Kind = "io"
	// Transport marks a network-layer failure: DNS, connect, TLS, socket,
	// timeout. Retried per the orchestrator's backoff policy.
	Transport Kind = "transport"
	// Protocol marks a non-2xx response or a response missing a field the
	// caller required (ETag, UploadId). Retried only for 408, 429 and 5xx.
	Protocol Kind = "protocol"
	// Cancelled marks an operation abandoned because of a sibling
	// worker's failure.
	Cancelled Kind = "cancelled"
)

// Error is the single error type returned across package boundaries.
type Error struct {
	Kind Kind
	Op   string // e.g. "signer.SignHeaders", "multipart.UploadPart"
	// StatusCode is set only for Protocol errors produced from an HTTP
	// response.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, s3err.New(s3err.Transport, "", nil)) match by Kind,
// since Kind itself is not an error value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err == nil {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && errors.Is(e.Err, t.Err)
}

// New builds an *Error. err may be nil for sentinel-style comparisons.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an *Error from a format string.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithStatus attaches an HTTP status code to a Protocol error.
func WithStatus(op string, status int, err error) *Error {
	return &Error{Kind: Protocol, Op: op, StatusCode: status, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Transport for unknown
// errors. Retryable, by contrast, does not retry such errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Transport
}

// Retryable reports whether a transport-layer failure should be retried.
// 4xx other than 408/429 is never retried; 5xx, 408, and 429 are.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case Transport:
		return true
	case Protocol:
		return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
	default:
		return false
	}
}
