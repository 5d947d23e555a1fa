// Package fetch owns the request lifecycle: it turns triggers into transport
// calls and publishes loading/success/error states per channel.
package fetch

import (
	"context"
	"errors"
	"net/http"

	"threadscope/internal/reddit"
)

// Transport is the raw fetch capability. It does not retry.
type Transport interface {
	FetchJSON(ctx context.Context, url string) (reddit.Doc, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, url string) (reddit.Doc, error)

func (f TransportFunc) FetchJSON(ctx context.Context, url string) (reddit.Doc, error) {
	return f(ctx, url)
}

// Status is the tag of a State.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	NetworkUnreachable
	RateLimited
	MalformedPayload
	NotFound
)

func (k ErrorKind) String() string {
	switch k {
	case NetworkUnreachable:
		return "network_unreachable"
	case RateLimited:
		return "rate_limited"
	case MalformedPayload:
		return "malformed_payload"
	case NotFound:
		return "not_found"
	default:
		return "none"
	}
}

// Retryable reports whether trying again later may succeed.
func (k ErrorKind) Retryable() bool {
	return k == NetworkUnreachable || k == RateLimited
}

// State is the published view of one channel. Data is set only for
// StatusSuccess; Kind and Err only for StatusError.
type State[T any] struct {
	Status    Status
	RequestID uint64
	Data      T
	Kind      ErrorKind
	Err       error
}

// Classify maps a transport or normalization error to its kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrNone
	}
	if errors.Is(err, reddit.ErrMalformedPayload) {
		return MalformedPayload
	}
	var se *reddit.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusTooManyRequests:
			return RateLimited
		case se.Code == http.StatusNotFound, se.Code == http.StatusForbidden, se.Code == http.StatusGone:
			return NotFound
		case se.Code >= 300 && se.Code < 400:
			return NotFound
		}
	}
	return NetworkUnreachable
}
