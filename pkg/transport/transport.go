// Package transport implements the HTTP request primitive used for every
// Solr call. It knows nothing about models or queries: one method builds a
// request, ships it, decodes the Solr error envelope on failure and hands the
// raw JSON body back. Failures are wrapped with their cause, never masked.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request round trip when the config does not
// say otherwise.
const DefaultTimeout = 30 * time.Second

// Config holds transport-level settings.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a live transport handle against one Solr instance.
type Client struct {
	base     *url.URL
	http     *http.Client
	username string
	password string
	logger   *zap.Logger
}

// New creates a transport handle. The handle owns no connection state beyond
// the HTTP client's idle pool; Close releases that pool.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("transport: invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		base:     base,
		http:     httpClient,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
	}, nil
}

// RequestError is a protocol-level failure reported by Solr.
type RequestError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return fmt.Sprintf("solr request failed (%d): %s", e.StatusCode, e.Message)
}

// solrErrorEnvelope is the error shape of Solr's JSON response writer.
type solrErrorEnvelope struct {
	Error struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"error"`
}

// Request issues one HTTP call and returns the raw response body. body, when
// non-nil, is JSON-encoded. Context cancellation and timeouts surface as the
// transport error they are.
func (c *Client) Request(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	target := *c.base
	target.Path = strings.TrimRight(target.Path, "/") + path
	if params != nil {
		target.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("solr request error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read response: %w", err)
	}

	c.logger.Debug("solr request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("params", params.Encode()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope solrErrorEnvelope
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Msg != "" {
			reqErr.Message = envelope.Error.Msg
		}
		return nil, reqErr
	}

	return raw, nil
}

// Close releases the handle's idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
