package reddit

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload reports a response whose required top-level shape is wrong.
var ErrMalformedPayload = errors.New("reddit: malformed payload")

// StatusError is returned by the transport for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reddit: %s status %d", e.URL, e.Code)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedPayload}, args...)...)
}
