// Package retry re-runs one-shot operations with exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"threadscope/internal/config"
)

type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
	}
}

// FromConfig reads the retry section, keeping defaults for unparsable values.
func FromConfig(c config.RetryConfig) Config {
	d := DefaultConfig()
	if c.MaxRetries > 0 {
		d.MaxRetries = uint64(c.MaxRetries)
	}
	d.InitialInterval = config.Duration(c.InitialInterval, d.InitialInterval)
	d.MaxInterval = config.Duration(c.MaxInterval, d.MaxInterval)
	return d
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs operation until it succeeds, returns a Permanent error, runs out of
// retries, or ctx is done.
func Do(ctx context.Context, operationName string, operation func() error, cfg Config) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = cfg.Multiplier
	bo.Reset()

	retryable := backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx)

	notify := func(err error, t time.Duration) {
		slog.Warn("retry: operation failed, retrying",
			"operation", operationName,
			"error", err,
			"next_attempt_in", t.Round(time.Millisecond).String(),
		)
	}
	return backoff.RetryNotify(operation, retryable, notify)
}
