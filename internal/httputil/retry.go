// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the rate-limited HTTP client used to query
// identifier authorities.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const (
	defaultMaxRetries = 3
	defaultRate       = 5
)

// Client wraps an *http.Client with a token-bucket limiter shared by every
// request, and a User-Agent applied when the request has none.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
}

// NewClient returns a Client allowing perSecond requests per second
// (default 5). maxRetries bounds the 429 retries per request (default 3).
func NewClient(hc *http.Client, perSecond float64, userAgent string, maxRetries int) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if perSecond <= 0 {
		perSecond = defaultRate
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Client{
		http:       hc,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		userAgent:  userAgent,
		maxRetries: maxRetries,
	}
}

// Do waits for the limiter and executes req, retrying on HTTP 429 with
// exponential backoff starting at RetryBaseDelay. After exhausting retries
// the last 429 response is returned so the caller can inspect it. A
// cancelled context ends the wait with ctx.Err().
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
