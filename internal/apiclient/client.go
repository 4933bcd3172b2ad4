// Package apiclient issues requests against the remote todo API. It
// attaches the session token, detects session expiry and normalizes every
// failure into an *Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is where the API lives when nothing is configured.
const DefaultBaseURL = "http://localhost:8080/api"

// Credentials supplies the bearer token and receives expiry signals.
// Token returns the current token together with the epoch it belongs to;
// Expire is called with the epoch a rejected request was sent under.
type Credentials interface {
	Token() (token string, epoch uint64)
	Expire(epoch uint64) bool
}

// Client talks to the todo API. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a Client. creds may be nil for a client that only logs in.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		creds:   creds,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// request describes one outbound call.
type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	authed      bool
	fallback    string
}

func (c *Client) jsonRequest(op, method, path string, in any, authed bool, fallback string) (request, error) {
	r := request{op: op, method: method, path: path, authed: authed, fallback: fallback}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return r, fmt.Errorf("%s: marshal: %w", op, err)
		}
		r.body = bytes.NewReader(b)
		r.contentType = "application/json"
	}
	return r, nil
}

// do sends r and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return &Error{Op: r.op, Message: r.fallback, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	ct := r.contentType
	if ct == "" {
		ct = "application/json"
	}
	req.Header.Set("Content-Type", ct)

	var epoch uint64
	if r.authed && c.creds != nil {
		var token string
		token, epoch = c.creds.Token()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "op", r.op, "method", r.method, "path", r.path, "request_id", reqID, "err", err)
		return &Error{Op: r.op, Message: r.fallback, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	c.log.Debug("request", "op", r.op, "method", r.method, "path", r.path,
		"status", res.StatusCode, "duration", time.Since(start), "request_id", reqID)
	if err != nil {
		return &Error{Op: r.op, Status: res.StatusCode, Message: r.fallback, Err: fmt.Errorf("read body: %w", err)}
	}

	if res.StatusCode == http.StatusUnauthorized && r.authed {
		msg, payload := serverMessage(body)
		c.log.Warn("request unauthorized", "op", r.op, "path", r.path, "server_message", msg)
		if c.creds != nil {
			c.creds.Expire(epoch)
		}
		return &Error{Op: r.op, Status: res.StatusCode, Message: ErrSessionExpired.Error(), Payload: payload, Err: ErrSessionExpired}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, payload := serverMessage(body)
		if msg == "" {
			msg = r.fallback
		}
		return &Error{Op: r.op, Status: res.StatusCode, Message: msg, Payload: payload}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: r.op, Status: res.StatusCode, Message: r.fallback, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// IsSessionExpired reports whether err came from a rejected session.
func IsSessionExpired(err error) bool { return errors.Is(err, ErrSessionExpired) }
