package httpx

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client is a small wrapper around http.Client with sane defaults and a
// bounded retry for transient upstream failures. Request context governs
// both the individual attempt and the backoff waits.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
	// MaxRetries bounds additional attempts after the first; 0 disables
	// retrying entirely.
	MaxRetries uint64
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{
		HTTP:       &http.Client{Timeout: timeout, Transport: transport},
		UserAgent:  "stockdesk/1.0",
		MaxRetries: 3,
	}
}

// Do performs the request, retrying transport errors and 429/5xx
// responses with exponential backoff. Requests with a body are not
// retried since the body cannot be replayed; http.NoBody counts as
// bodyless.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if c.MaxRetries == 0 || (req.Body != nil && req.Body != http.NoBody) {
		return c.HTTP.Do(req)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.MaxRetries),
		req.Context(),
	)
	return backoff.RetryWithData(func() (*http.Response, error) {
		res, err := c.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			res.Body.Close()
			return nil, &StatusError{Code: res.StatusCode}
		}
		return res, nil
	}, policy)
}

// StatusError reports a retryable non-2xx status exhausted by Do.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d %s", e.Code, http.StatusText(e.Code))
}
