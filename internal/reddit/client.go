package reddit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "threadscope/0.1 (read-only viewer)"

// Client is the HTTP transport for Reddit's public JSON endpoints.
// It never retries; redirects are reported as StatusError instead of followed,
// because Reddit answers unknown subreddits with a redirect to a search page.
type Client struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// Options configures a Client. Zero values pick defaults.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerMinute int
	Burst             int
}

// NewClient creates a transport client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	lim := rate.NewLimiter(rate.Inf, opts.Burst)
	if opts.RequestsPerMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.Burst)
	}
	return &Client{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: opts.UserAgent,
		limiter:   lim,
	}
}

// FetchJSON GETs url and decodes the body into a Doc.
func (c *Client) FetchJSON(ctx context.Context, url string) (Doc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Doc{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Doc{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Doc{}, err
	}
	defer resp.Body.Close()
	slog.Debug("reddit: fetched", "url", url, "status", resp.StatusCode, "elapsed", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Doc{}, &StatusError{URL: url, Code: resp.StatusCode}
	}
	doc, err := ParseDoc(resp.Body)
	if err != nil {
		return Doc{}, fmt.Errorf("%w: decode %s: %v", ErrMalformedPayload, url, err)
	}
	return doc, nil
}
