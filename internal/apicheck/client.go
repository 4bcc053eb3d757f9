// File: internal/apicheck/client.go
// Package apicheck verifies the library REST API: a paced JSON client over network.Client and
// the contract checks the API scenarios are built from.
package apicheck

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/shelfcheck/internal/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBody bounds how much of a response is kept.
const maxBody = 4 << 20

// Options configure a Client.
type Options struct {
	RequestTimeout time.Duration
	// RateLimit caps requests per second. Zero disables pacing.
	RateLimit float64
	Burst     int
	// HTTP overrides the client built from RequestTimeout.
	HTTP   *network.Client
	Logger *zap.Logger
}

// Client issues JSON requests against one base URL. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *network.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New returns a Client for baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		cfg := network.NewDefaultClientConfig()
		if opts.RequestTimeout > 0 {
			cfg.RequestTimeout = opts.RequestTimeout
		}
		cfg.Logger = logger.Named("httpclient")
		httpClient = network.NewClient(cfg)
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Client{base: base, http: httpClient, limiter: limiter, logger: logger.Named("apicheck")}, nil
}

// Response is a fully read API response.
type Response struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", r.Method, r.Path, err)
	}
	return nil
}

// Fields decodes a JSON object body.
func (r *Response) Fields() (map[string]any, error) {
	var m map[string]any
	if err := r.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Response) String() string {
	return fmt.Sprintf("%s %s -> %d", r.Method, r.Path, r.Status)
}

// Do sends body (JSON encoded when non-nil) and reads the whole response. Non-2xx statuses
// are not errors; the checks decide what a status means.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}
	out := &Response{Method: method, Path: path, Status: resp.StatusCode, Body: data}
	c.logger.Debug("API call", zap.Stringer("call", out), zap.Duration("took", time.Since(start)))
	return out, nil
}
