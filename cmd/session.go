package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"threadscope/internal/ai"
	"threadscope/internal/cache"
	"threadscope/internal/config"
	"threadscope/internal/fetch"
	"threadscope/internal/metrics"
	"threadscope/internal/reddit"
	"threadscope/internal/resolve"
	"threadscope/internal/retry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// session wires the transport, resolver, cache and metrics for one command run.
type session struct {
	cfg      config.Config
	client   *reddit.Client
	resolver resolve.Resolver
	registry *prometheus.Registry
	metrics  *metrics.Fetch
	store    cache.Cache
	closers  []func() error
}

func newSession(cfg config.Config) (*session, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s := &session{
		cfg: cfg,
		client: reddit.NewClient(reddit.Options{
			UserAgent:         cfg.Reddit.UserAgent,
			Timeout:           config.Duration(cfg.Reddit.Timeout, 10*time.Second),
			RequestsPerMinute: cfg.Reddit.RequestsPerMinute,
			Burst:             cfg.Reddit.Burst,
		}),
		resolver: resolve.New(cfg.Reddit.BaseHost, cfg.Reddit.ListingSuffix),
		registry: reg,
		metrics:  metrics.NewFetch(reg),
	}

	switch strings.ToLower(cfg.Cache.Backend) {
	case "", "memory":
		s.store = cache.NewMemory()
	case "redis":
		r := cache.NewRedis(cache.NewRedisClient(cfg.Redis))
		s.store = r
		s.closers = append(s.closers, r.Close)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	return s, nil
}

func (s *session) orchestrator() *fetch.Orchestrator {
	return fetch.New(s.client, s.resolver, fetch.Options{
		Debounce: config.Duration(s.cfg.Viewer.Debounce, fetch.DefaultDebounce),
		Metrics:  s.metrics,
	})
}

func (s *session) categories() *fetch.CategoryCache {
	return fetch.NewCategoryCache(s.client, s.resolver, fetch.CategoryOptions{
		Store:   s.store,
		TTL:     config.Duration(s.cfg.Cache.TTL, time.Hour),
		Metrics: s.metrics,
	})
}

// summarizer is nil unless an OpenAI key is configured.
func (s *session) summarizer() (ai.Summarizer, error) {
	if s.cfg.OpenAI.APIKey == "" {
		return nil, nil
	}
	c, err := ai.NewOpenAI(ai.Config{APIKey: s.cfg.OpenAI.APIKey, Model: s.cfg.OpenAI.Model, BaseURL: s.cfg.OpenAI.BaseURL})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *session) retryConfig() retry.Config {
	return retry.FromConfig(s.cfg.Retry)
}

func (s *session) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			slog.Warn("session: close", "error", err)
		}
	}
}

// runLoop starts o in the background and returns a stop function that
// waits for the loop to exit.
func runLoop(ctx context.Context, o *fetch.Orchestrator) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Start(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// await blocks until ch settles (success or error) on a request newer than after.
func await[T any](ctx context.Context, ch *fetch.Channel[T], after uint64) (fetch.State[T], error) {
	settled := make(chan fetch.State[T], 1)
	unsubscribe := ch.Subscribe(func(st fetch.State[T]) {
		if st.RequestID <= after || st.Status == fetch.StatusLoading || st.Status == fetch.StatusIdle {
			return
		}
		select {
		case settled <- st:
		default:
		}
	})
	defer unsubscribe()
	select {
	case <-ctx.Done():
		var zero fetch.State[T]
		return zero, ctx.Err()
	case st := <-settled:
		return st, nil
	}
}

// settle issues trigger, then Retry on retryable errors, until ch succeeds.
func settle[T any](ctx context.Context, s *session, o *fetch.Orchestrator, ch *fetch.Channel[T], name string, trigger func()) (T, error) {
	var (
		data  T
		first = true
	)
	err := retry.Do(ctx, name, func() error {
		after := ch.State().RequestID
		if first {
			trigger()
			first = false
		} else {
			o.Retry()
		}
		st, err := await(ctx, ch, after)
		if err != nil {
			return retry.Permanent(err)
		}
		if st.Status == fetch.StatusError {
			err := fmt.Errorf("%s: %w", st.Kind, st.Err)
			if st.Kind.Retryable() {
				return err
			}
			return retry.Permanent(err)
		}
		data = st.Data
		return nil
	}, s.retryConfig())
	return data, err
}
