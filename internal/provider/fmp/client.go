// Package fmp is a client for the Financial Modeling Prep API, the
// primary quote and history source.
package fmp

import (
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

const baseURL = "https://financialmodelingprep.com/api/v3"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=fmp_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the FMP API. Every request passes the
// transport-level limiter before it is issued.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters sent with each request.
	query url.Values
	// limiter paces requests against the provider's plan limits.
	limiter *rate.Limiter
}

// Option is a configuration option for the FMP client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithRequestsPerMinute paces requests with a transport-level limiter.
func WithRequestsPerMinute(rpm int, burst int) Option {
	return func(c *Client) {
		if rpm <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	}
}

// NewClient creates a new FMP API client.
func NewClient(key string, options ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
		limiter:    rate.NewLimiter(rate.Limit(250.0/60.0), 5),
	}
	if key != "" {
		// FMP authenticates through a query parameter.
		// https://site.financialmodelingprep.com/developer/docs
		c.query.Add("apikey", key)
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Name identifies this client in fallback-chain logs.
func (c *Client) Name() string { return "FMP" }
