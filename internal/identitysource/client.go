package identitysource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dossier/pkg/platform/circuit"
)

const maxResponseBytes = 1 << 20

// Client is the HTTP adapter for the upstream profile service. Every call is
// bounded by the client timeout and guarded by a circuit breaker.
type Client struct {
	id         string
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *circuit.Breaker
	metrics    *Metrics
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

func NewClient(id, baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		id:         id,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuit.New(id),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ID() string { return c.id }

func (c *Client) LookupByHandle(ctx context.Context, handle string) (*Identity, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrNotFound
	}
	return c.lookup(ctx, "by_handle", "/v1/profiles/handle/"+url.PathEscape(handle))
}

func (c *Client) LookupByExternalID(ctx context.Context, externalID string) (*Identity, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrNotFound
	}
	return c.lookup(ctx, "by_external_id", "/v1/profiles/id/"+url.PathEscape(externalID))
}

func (c *Client) lookup(ctx context.Context, method, path string) (*Identity, error) {
	start := time.Now()

	if !c.breaker.AllowRequest() {
		c.metrics.observe(method, string(ErrorCircuitOpen), start)
		return nil, NewSourceError(ErrorCircuitOpen, c.id, "circuit open, skipping upstream", nil)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ident, err := c.do(ctx, path)
	c.record(ctx, err)
	c.metrics.observe(method, outcome(err), start)
	return ident, err
}

func (c *Client) do(ctx context.Context, path string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, NewSourceError(ErrorInternal, c.id, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, NewSourceError(ErrorTimeout, c.id, "upstream did not answer in time", err)
		}
		return nil, NewSourceError(ErrorOutage, c.id, "upstream unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, NewSourceError(ErrorTimeout, c.id, "upstream body read timed out", err)
		}
		return nil, NewSourceError(ErrorBadData, c.id, "failed to read body", err)
	}
	return parseProfileResponse(c.id, resp.StatusCode, body)
}

// record feeds the breaker. Not-found and malformed-request answers prove the
// upstream is alive, so only transport-level failures count against it.
func (c *Client) record(ctx context.Context, err error) {
	if err == nil || errors.Is(err, ErrNotFound) || GetCategory(err) == ErrorContractMismatch {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.metrics.setCircuitOpen(false)
			c.logger.InfoContext(ctx, "identity source circuit closed", "source", c.id)
		}
		return
	}
	if !IsRetryable(err) && GetCategory(err) != ErrorBadData {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.metrics.setCircuitOpen(true)
		c.logger.WarnContext(ctx, "identity source circuit opened",
			"source", c.id,
			"error", err,
		)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcome(err error) string {
	if err == nil {
		return "found"
	}
	return string(GetCategory(err))
}
