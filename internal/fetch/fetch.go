// Package fetch retrieves remote locale list files over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	userAgent = "l10nsched/1.0"

	// DefaultTimeout bounds one locale list download.
	DefaultTimeout = 300 * time.Second

	// maxBodyBytes caps a locale list download. Real lists are a few KB;
	// anything near this size is the wrong URL.
	maxBodyBytes = 4 << 20
)

// Config controls fetch behavior.
type Config struct {
	// Timeout bounds a single request. Zero means DefaultTimeout.
	Timeout time.Duration

	// RatePerHost limits requests per second against a single host, so
	// overlapping nightly fan-outs stay polite to the VCS webhost.
	// Zero disables limiting.
	RatePerHost float64
}

// Client fetches URLs with a bounded timeout and optional per-host rate
// limiting. The zero value is not usable; call NewClient.
type Client struct {
	cfg  Config
	http *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiters: map[string]*rate.Limiter{},
	}
}

// Get downloads rawURL and returns the body bytes.
// Non-2xx responses and transport errors are returned as errors; the
// caller decides how to surface them (the fan-out controller wraps them
// in its FetchError).
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if lim := c.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	if c.cfg.RatePerHost <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.cfg.RatePerHost), 1)
		c.limiters[u.Host] = lim
	}
	return lim
}
