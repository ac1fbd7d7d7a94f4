// Package httpclient provides a JSON HTTP client that implements
// resource.Client.
package httpclient

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

	"github.com/google/uuid"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/pkg/resource"
)

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 64 << 10

// errorMessagePaths are tried in order to extract a message from an error body.
var errorMessagePaths = []jp.Expr{
	jp.MustParseString("$.message"),
	jp.MustParseString("$.error"),
}

// Client speaks JSON to a REST collection.
type Client[T any, ID comparable] struct {
	base      *url.URL
	http      *http.Client
	headers   http.Header
	dataPath  jp.Expr
	logger    *zap.Logger
	requestID func() string
}

var _ resource.Client[struct{ ID string }, string] = (*Client[struct{ ID string }, string])(nil)

// New creates a client.
func New[T any, ID comparable](opts ...Option) (*Client[T, ID], error) {
	o := &options{
		timeout: DefaultTimeout,
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(o)
	}

	c := &Client[T, ID]{
		http:      o.httpClient,
		headers:   o.headers,
		logger:    o.logger,
		requestID: o.requestID,
	}

	if o.baseURL != "" {
		base, err := url.Parse(o.baseURL)
		if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, o.baseURL)
		}
		c.base = base
	}

	if o.dataPath != "" {
		expr, err := jp.ParseString(o.dataPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDataPath, o.dataPath, err)
		}
		c.dataPath = expr
	}

	if c.http == nil {
		c.http = &http.Client{Timeout: o.timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.requestID == nil {
		c.requestID = func() string { return uuid.New().String() }
	}

	return c, nil
}

// Get fetches a collection.
func (c *Client[T, ID]) Get(ctx context.Context, target string) ([]T, error) {
	var items []T
	found, err := c.do(ctx, http.MethodGet, target, nil, &items)
	if err != nil || !found {
		return nil, err
	}
	return items, nil
}

// Post creates item and returns the stored item, or nil for an empty response.
func (c *Client[T, ID]) Post(ctx context.Context, target string, item T) (*T, error) {
	return c.send(ctx, http.MethodPost, target, item)
}

// Put replaces the item at target and returns the stored item, or nil for an
// empty response.
func (c *Client[T, ID]) Put(ctx context.Context, target string, item T) (*T, error) {
	return c.send(ctx, http.MethodPut, target, item)
}

// Delete removes the item at target. A JSON object in the response is
// decoded as the removed item, any other value as its ID.
func (c *Client[T, ID]) Delete(ctx context.Context, target string) (*resource.Removal[T, ID], error) {
	var raw json.RawMessage
	found, err := c.do(ctx, http.MethodDelete, target, nil, &raw)
	if err != nil || !found {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var item T
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return nil, c.decodeError(http.MethodDelete, target, err)
		}
		return &resource.Removal[T, ID]{Item: &item}, nil
	}

	var id ID
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, c.decodeError(http.MethodDelete, target, err)
	}
	return &resource.Removal[T, ID]{ID: &id}, nil
}

func (c *Client[T, ID]) send(ctx context.Context, method, target string, item T) (*T, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	var out T
	found, err := c.do(ctx, method, target, body, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// do performs one request and decodes the payload into out. found is false
// when the response carried no payload.
func (c *Client[T, ID]) do(ctx context.Context, method, target string, body []byte, out any) (bool, error) {
	u, err := c.resolve(target)
	if err != nil {
		return false, &TransportError{Method: method, URL: target, Message: "invalid URL", Cause: err}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return false, &TransportError{Method: method, URL: u, Message: "failed to build request", Cause: err}
	}

	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := c.requestID()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return false, &TransportError{Method: method, URL: u, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, c.statusError(method, u, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &TransportError{
			Method: method, URL: u, StatusCode: resp.StatusCode,
			Message: "failed to read response body", Cause: err,
		}
	}

	payload, found, err := c.payload(data)
	if err != nil {
		return false, c.decodeError(method, u, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, c.decodeError(method, u, err)
	}
	return true, nil
}

// payload extracts the JSON document to decode: the whole body, or the value
// at the configured data path. null and empty bodies have no payload.
func (c *Client[T, ID]) payload(data []byte) ([]byte, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, nil
	}

	if c.dataPath != nil {
		var doc any
		if err := oj.Unmarshal(data, &doc); err != nil {
			return nil, false, err
		}
		results := c.dataPath.Get(doc)
		if len(results) == 0 || results[0] == nil {
			return nil, false, nil
		}
		raw, err := json.Marshal(results[0])
		if err != nil {
			return nil, false, err
		}
		return raw, true, nil
	}

	if bytes.Equal(data, []byte("null")) {
		return nil, false, nil
	}
	return data, true, nil
}

func (c *Client[T, ID]) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if c.base == nil || ref.IsAbs() {
		return target, nil
	}
	return strings.TrimSuffix(c.base.String(), "/") + "/" + strings.TrimPrefix(target, "/"), nil
}

func (c *Client[T, ID]) statusError(method, u string, resp *http.Response) error {
	te := &TransportError{
		Method:     method,
		URL:        u,
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return te
	}

	var doc any
	if err := oj.Unmarshal(data, &doc); err != nil {
		return te
	}
	for _, expr := range errorMessagePaths {
		for _, v := range expr.Get(doc) {
			if msg, ok := v.(string); ok && msg != "" {
				te.Message = msg
				return te
			}
		}
	}
	return te
}

func (c *Client[T, ID]) decodeError(method, u string, err error) error {
	return &TransportError{Method: method, URL: u, Message: "failed to decode response", Cause: err}
}
