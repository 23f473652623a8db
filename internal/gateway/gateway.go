// Package gateway is the single choke-point for every backend call. It
// attaches the bearer token, normalizes response shapes, classifies
// failures into a small taxonomy, and is the only component allowed to
// mutate session state (on authentication expiry).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/taskdeck/internal/session"
	"github.com/basket/taskdeck/internal/shared"
)

const maxResponseBytes = 4 << 20

// Client issues requests against the configured backend.
type Client struct {
	baseURL  string
	sessions *session.Store
	http     *http.Client
	logger   *slog.Logger
	tracer   trace.Tracer
	requests metric.Int64Counter

	// onUnauthorized is the navigation signal: invoked after a forced
	// session teardown so the caller can route the user to the login
	// entry point.
	onUnauthorized func()

	// mu serializes the 401 teardown so concurrent expired calls clear
	// the session and fire the signal exactly once.
	mu sync.Mutex
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport (tests, timeouts).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer sets the otel tracer used to span each request.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithMeter registers the request outcome counter on the given meter.
func WithMeter(m metric.Meter) Option {
	return func(c *Client) {
		counter, err := m.Int64Counter("taskdeck.gateway.requests")
		if err == nil {
			c.requests = counter
		}
	}
}

// WithUnauthorizedSignal sets the navigation callback fired after a forced
// session teardown.
func WithUnauthorizedSignal(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New builds a gateway client. sessions supplies the bearer token and is
// torn down on 401.
func New(baseURL string, sessions *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		sessions: sessions,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default(),
		tracer:   nooptrace.NewTracerProvider().Tracer("taskdeck"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// JoinURL joins a base address and a path with exactly one separating
// slash, regardless of trailing/leading slashes on either side.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Do issues method path against the backend. body is JSON-encoded when
// non-nil; on 2xx the response payload is decoded into out (which may be
// nil for callers that ignore the payload). A 2xx body that fails to
// parse is treated as an empty object, not a failure, so endpoints that
// return nothing do not penalize their callers.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.DoRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := Unwrap(raw, out); err != nil {
		c.logger.Debug("response body not parseable, treating as empty", "path", path, "error", err)
	}
	return nil
}

// DoRaw is Do without payload decoding: it returns the raw 2xx body.
func (c *Client) DoRaw(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	url := JoinURL(c.baseURL, path)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	if shared.TraceID(ctx) == "-" {
		ctx = shared.WithTraceID(ctx, shared.NewTraceID())
	}
	ctx, span := c.tracer.Start(ctx, "gateway.request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.sessions.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(ctx, method, path, 0, start, KindTransport)
		return nil, TransportFailure(c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(ctx, method, path, resp.StatusCode, start, KindTransport)
		return nil, TransportFailure(c.baseURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.expireSession()
		c.observe(ctx, method, path, resp.StatusCode, start, KindUnauthorized)
		return nil, Unauthorized()
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := serverMessage(raw)
		c.observe(ctx, method, path, resp.StatusCode, start, KindServer)
		return nil, ServerFailure(resp.StatusCode, msg)
	}

	c.observe(ctx, method, path, resp.StatusCode, start, "")
	return raw, nil
}

// expireSession clears the session and fires the navigation signal. The
// check-then-clear runs under the mutex so a burst of concurrent 401s
// tears down exactly once.
func (c *Client) expireSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sessions.IsAuthenticated() {
		return
	}
	if err := c.sessions.Logout(); err != nil {
		c.logger.Warn("forced logout after 401", "error", err)
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func (c *Client) observe(ctx context.Context, method, path string, status int, start time.Time, kind ErrorKind) {
	outcome := "ok"
	if kind != "" {
		outcome = strings.ToLower(string(kind))
	}
	c.logger.Info("gateway request",
		"trace_id", shared.TraceID(ctx),
		"method", method,
		"path", path,
		"status", status,
		"outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if c.requests != nil {
		c.requests.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("outcome", outcome),
			))
	}
}

// serverMessage extracts a server-provided error message from a non-2xx
// body, checking the conventional field names the backend uses.
func serverMessage(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, msg := range []string{payload.Message, payload.Error, payload.Detail} {
		if strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return ""
}

// Unwrap decodes a response payload into out, transparently removing the
// {"success":..,"data":..} envelope when present. Callers never branch on
// response shape; bare payloads and enveloped payloads normalize here.
func Unwrap(raw json.RawMessage, out any) error {
	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && len(probe.Data) > 0 && string(probe.Data) != "null" {
		return json.Unmarshal(probe.Data, out)
	}
	return json.Unmarshal(raw, out)
}
