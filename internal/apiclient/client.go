// Package apiclient is the request layer for the Faith Connect REST API.
//
// Domain calls return the raw *http.Response: a non-2xx status is not an
// error here, only transport failures are. Callers inspect StatusCode and use
// DecodeError / DecodeJSON to interpret the body.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/faith-connect/faith_connect/internal/logging"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000/api/v3"

const requestIDHeader = "X-Request-ID"

// TokenSource yields the current access token, or "" when there is none.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client issues requests against the API base URL.
type Client struct {
	baseURL string
	origin  string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger

	Auth       *Auth
	Businesses *Businesses
	Products   *Offerings
	Services   *Offerings
	Reviews    *Reviews
	Favorites  *Favorites
	Media      *Media
	Categories *Categories
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds every request, including reading the response headers.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a Client. tokens may be nil for unauthenticated use.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute http(s), got %q", baseURL)
	}

	c := &Client{
		baseURL: baseURL,
		origin:  u.Scheme + "://" + u.Host,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &Auth{c: c}
	c.Businesses = &Businesses{c: c}
	c.Products = &Offerings{c: c, collection: "/products/"}
	c.Services = &Offerings{c: c, collection: "/services/"}
	c.Reviews = &Reviews{c: c}
	c.Favorites = &Favorites{c: c}
	c.Media = &Media{c: c}
	c.Categories = &Categories{c: c}
	return c, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Origin returns the base URL without its path, e.g. http://localhost:8000.
func (c *Client) Origin() string { return c.origin }

// BuildHeaders returns the JSON content type plus a bearer Authorization
// header when the token source holds a token. It has no side effects.
func (c *Client) BuildHeaders(ctx context.Context) (http.Header, error) {
	h := jsonHeaders()
	if c.tokens == nil {
		return h, nil
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h, nil
}

func jsonHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return h
}

// Entity is a payload that can be saved: PATCH when EntityID is non-empty,
// POST otherwise.
type Entity interface {
	EntityID() string
}

func (c *Client) save(ctx context.Context, collection string, e Entity) (*http.Response, error) {
	if id := e.EntityID(); id != "" {
		return c.do(ctx, http.MethodPatch, collection+url.PathEscape(id)+"/", e, true)
	}
	return c.do(ctx, http.MethodPost, collection, e, true)
}

func (c *Client) list(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, true)
}

// do sends the request. authed selects BuildHeaders over the bare JSON
// headers used by the public auth endpoints.
func (c *Client) do(ctx context.Context, method, path string, body any, authed bool) (*http.Response, error) {
	var (
		header http.Header
		err    error
	)
	if authed {
		header, err = c.BuildHeaders(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		header = jsonHeaders()
	}

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case *Multipart:
		buf, contentType, err := b.encode()
		if err != nil {
			return nil, fmt.Errorf("encode multipart body: %w", err)
		}
		reader = buf
		header.Set("Content-Type", contentType)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = header
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	attrs := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", reqID),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		c.logger.Warn("api request failed", append(attrs, slog.Any("error", err))...)
		return nil, err
	}
	c.logger.Debug("api request completed", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}

// GetJSON fetches path and decodes a 2xx body into dst. Unlike the domain
// calls it fails on non-2xx statuses.
func (c *Client) GetJSON(ctx context.Context, path string, dst any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return err
	}
	if !OK(resp) {
		return DecodeError(resp, "API Error: "+http.StatusText(resp.StatusCode))
	}
	return DecodeJSON(resp, dst)
}

// OK reports whether resp carries a 2xx status.
func OK(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
