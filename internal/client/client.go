// Package client talks to the DataHub API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxBodyRead = 1 << 20 // 1MB

// ErrNotJSON is returned when a response body is not a JSON object
var ErrNotJSON = errors.New("response body is not a JSON object")

// RequestObserver receives one call per completed request
type RequestObserver interface {
	ObserveRequest(ctx context.Context, method, endpoint string, status int, elapsed time.Duration)
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *zap.Logger
	Observer   RequestObserver
	HTTPClient *http.Client
}

// Client issues requests against a DataHub base URL
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
	observer RequestObserver
}

// New creates a new client
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		logger:   logger,
		observer: opts.Observer,
	}, nil
}

// Request describes one call. A nil Body sends no body at all.
// Endpoint is a low-cardinality label used for logs and metrics.
type Request struct {
	Endpoint string
	Method   string
	Path     []string
	Query    url.Values
	Body     any
	Header   map[string]string
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Raw        []byte

	body    map[string]any
	bodyErr error
}

// JSON returns the body decoded as a JSON object
func (r *Response) JSON() (map[string]any, error) {
	if r.bodyErr != nil {
		return nil, r.bodyErr
	}
	return r.body, nil
}

// String returns a string field of the body, or "" when absent or not a string
func (r *Response) String(key string) string {
	s, _ := r.body[key].(string)
	return s
}

// URL builds the absolute URL for a path and query
func (c *Client) URL(path []string, query url.Values) (string, error) {
	u, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return "", fmt.Errorf("failed to build url: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

// Do sends the request and reads the whole response.
// Non-2xx statuses are not errors; only transport failures are.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	endpoint, err := c.URL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	route := req.Endpoint
	if route == "" {
		route = "/" + strings.Join(req.Path, "/")
	}
	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(ctx, req.Method, route, 0, elapsed)
		return nil, fmt.Errorf("%s %s: %w", req.Method, route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		c.observe(ctx, req.Method, route, resp.StatusCode, elapsed)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.observe(ctx, req.Method, route, resp.StatusCode, elapsed)
	c.logger.Debug("DataHub request",
		zap.String("method", req.Method),
		zap.String("path", route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", elapsed),
		zap.Int("size", len(raw)),
	)

	out := &Response{StatusCode: resp.StatusCode, Raw: raw}
	if err := json.Unmarshal(raw, &out.body); err != nil || out.body == nil {
		out.body = nil
		out.bodyErr = fmt.Errorf("%s %s (status %d): %w", req.Method, route, resp.StatusCode, ErrNotJSON)
	}

	return out, nil
}

func (c *Client) observe(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(ctx, method, route, status, elapsed)
	}
}
