// Package gpxz is a client for the GPXZ elevation API.
package gpxz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultBaseURL is the production GPXZ API endpoint.
	DefaultBaseURL = "https://api.gpxz.io"

	// DefaultMaxBatchSize is the maximum number of coordinate pairs the API
	// accepts in a single points request.
	DefaultMaxBatchSize = 512

	defaultPointCacheSize = 1024
	defaultTimeout        = 10 * time.Second
)

// A ResponseError is a non-success response from the API.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// A MalformedResponseError is a response body that does not have the expected
// shape.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Reason
}

// A BatchError is a failure of one batch of a multi-batch operation. Index is
// the zero-based index of the failed batch.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// A Client is a GPXZ API client.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	apiKeyInQuery  bool
	maxBatchSize   int
	maxRetries     int
	polylineDigits int
	pointCacheSize int
	pointCache     *pointCache
	sourcesCache   *sourcesCache
}

// A ClientOption sets an option on a Client.
type ClientOption func(*Client)

// NewClient returns a new Client authenticating with apiKey.
func NewClient(apiKey string, options ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("empty API key")
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:        DefaultBaseURL,
		apiKey:         apiKey,
		maxBatchSize:   DefaultMaxBatchSize,
		pointCacheSize: defaultPointCacheSize,
	}
	for _, option := range options {
		option(c)
	}
	if c.maxBatchSize <= 0 {
		return nil, fmt.Errorf("invalid maximum batch size %d", c.maxBatchSize)
	}
	cache, err := lru.New[Coord, Result](c.pointCacheSize)
	if err != nil {
		return nil, err
	}
	c.pointCache = &pointCache{cache: cache}
	c.sourcesCache = &sourcesCache{}
	return c, nil
}

// WithBaseURL sets the API endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets the underlying HTTP client. The default client has a 10s
// timeout.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxBatchSize sets the maximum number of coordinates per points request.
func WithMaxBatchSize(maxBatchSize int) ClientOption {
	return func(c *Client) {
		c.maxBatchSize = maxBatchSize
	}
}

// WithQueryAPIKey sends the API key as the api_key query parameter instead of
// the x-api-key header. The header is preferred as query parameters tend to
// end up in server logs.
func WithQueryAPIKey() ClientOption {
	return func(c *Client) {
		c.apiKeyInQuery = true
	}
}

// WithRetries enables up to maxRetries retries of requests that fail with a
// 429, a 5xx, or a network error, with exponential backoff. The API contract
// specifies no retry behavior so the default is zero.
func WithRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithPolylineEncoding sends batched coordinates as a polyline parameter
// encoded with the given number of decimal digits instead of a latlons
// parameter. Five digits give roughly metre precision, six decimetre.
func WithPolylineEncoding(digits int) ClientOption {
	return func(c *Client) {
		c.polylineDigits = digits
	}
}

// WithPointCacheSize sets the size of the single-point result cache.
func WithPointCacheSize(size int) ClientOption {
	return func(c *Client) {
		c.pointCacheSize = size
	}
}

// newRequest returns a request for path with the credential attached.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if c.apiKeyInQuery {
		if query == nil {
			query = url.Values{}
		}
		query.Set("api_key", c.apiKey)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if !c.apiKeyInQuery {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

// do executes req, converting any non-2xx status into a *ResponseError.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	requestsTotal.WithLabelValues(endpoint).Inc()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestErrorsTotal.WithLabelValues(endpoint).Inc()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		requestErrorsTotal.WithLabelValues(endpoint).Inc()
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

// doWithRetry executes the request built by makeRequest, retrying transient
// failures if the client was built with WithRetries.
func (c *Client) doWithRetry(ctx context.Context, endpoint string, makeRequest func() (*http.Request, error)) (*http.Response, error) {
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeRequest()
		if err != nil {
			return nil, err
		}

		resp, err := c.do(req, endpoint)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == c.maxRetries || !retryable(err) {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var responseError *ResponseError
	if errors.As(err, &responseError) {
		switch responseError.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
