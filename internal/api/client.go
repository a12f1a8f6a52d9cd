// Package api fetches bug bounty program documents from the published JSON
// mirror of the Immunefi listing.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/infosec-us-team/ibb/internal/ratelimit"
	"github.com/infosec-us-team/ibb/internal/value"
)

const (
	// DefaultBaseURL serves projects.json and project/<id>.json.
	DefaultBaseURL = "https://cdn.jsdelivr.net/gh/infosec-us-team/Immunefi-Bug-Bounty-Programs-Unofficial"

	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes int64 = 64 << 20

	DefaultUserAgent = "ibb"

	// RequestIDHeader carries a per-request UUID for log correlation.
	RequestIDHeader = "X-Request-Id"
)

var (
	ErrInvalidProgram = errors.New("invalid program identifier")
	ErrStatus         = errors.New("unexpected response status")
	ErrTransport      = errors.New("request failed")
	ErrBodyTooLarge   = errors.New("response body too large")
)

// StatusError reports a non-2xx response. It matches ErrStatus.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Client retrieves documents and decodes them into values.
type Client struct {
	http      *http.Client
	baseURL   string
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	userAgent string
	maxBody   int64
	maxDepth  int
}

type Option func(*Client)

// WithLimiter paces requests through l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithMaxBodyBytes caps response bodies. Zero or negative keeps the default.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithMaxDepth limits document nesting, see value.WithMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(c *Client) {
		c.maxDepth = depth
	}
}

// New returns a client for the mirror at baseURL. A nil httpClient uses
// http.DefaultClient and an empty baseURL uses DefaultBaseURL.
func New(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    slog.New(slog.DiscardHandler),
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBodyBytes,
		maxDepth:  value.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Projects fetches the listing of every program.
func (c *Client) Projects(ctx context.Context) (value.Value, error) {
	return c.get(ctx, c.baseURL+"/projects.json")
}

// Program fetches the document of a single program by its slug.
func (c *Client) Program(ctx context.Context, id string) (value.Value, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." {
		return value.Value{}, fmt.Errorf("%w: %q", ErrInvalidProgram, id)
	}

	return c.get(ctx, c.baseURL+"/project/"+url.PathEscape(id)+".json")
}

func (c *Client) get(ctx context.Context, endpoint string) (value.Value, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return value.Value{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)

	logger := c.logger.With("request_id", requestID, "url", endpoint)
	logger.DebugContext(ctx, "fetching document")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.DebugContext(ctx, "request failed", "error", err)
		return value.Value{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	logger.DebugContext(ctx, "response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return value.Value{}, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        endpoint,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	if int64(len(body)) > c.maxBody {
		return value.Value{}, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, c.maxBody, endpoint)
	}

	doc, err := value.Decode(bytes.NewReader(body), value.WithMaxDepth(c.maxDepth))
	if err != nil {
		return value.Value{}, fmt.Errorf("decoding %s: %w", endpoint, err)
	}

	logger.DebugContext(ctx, "document decoded", "bytes", len(body), "kind", doc.Kind().String())
	return doc, nil
}
