package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

const processPath = "/api/process"

type Options struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`

	HTTPClient *http.Client `yaml:"-"`
}

// Processor scores one recording.
type Processor interface {
	Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error)
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func New(log *logger.Logger, opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ml service base url required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		log:        log.With("client", "MLClient"),
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
		httpClient: hc,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// Process blocks until the scorer answers or the configured timeout expires.
func (c *Client) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	ctx, span := otel.Tracer("mockly/ml").Start(ctx, "ml.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.String("artifact.id", req.ArtifactID),
		attribute.String("artifact.type", req.ArtifactType),
	)

	start := time.Now()
	var resp ProcessResponse
	if err := c.doJSON(ctx, "process", http.MethodPost, processPath, req, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.log.Info("ML processing complete",
		"session", req.SessionID,
		"artifact", req.ArtifactID,
		"duration_ms", time.Since(start).Milliseconds(),
		"metrics", len(resp.Metrics),
	)
	return &resp, nil
}

// Health pings GET /health.
func (c *Client) Health(ctx context.Context) error {
	var out healthResponse
	if err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "" && !strings.EqualFold(out.Status, "ok") && !strings.EqualFold(out.Status, "healthy") {
		return &ProcessingError{Op: "health", Message: "status " + out.Status}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return &ProcessingError{Op: op, Message: "encode request", Err: err}
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr *ProcessingError
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx2.Err() != nil {
			return wrapTransportError(op, ctx2.Err())
		}
		req, err := http.NewRequestWithContext(ctx2, method, c.baseURL+path, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return &ProcessingError{Op: op, Err: err}
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = wrapTransportError(op, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = wrapTransportError(op, readErr)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				lastErr = parseHTTPError(op, resp.StatusCode, raw)
			default:
				if out == nil {
					return nil
				}
				if err := json.Unmarshal(raw, out); err != nil {
					return &ProcessingError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
				}
				return nil
			}
		}

		if attempt < c.maxRetries && lastErr.Retryable() {
			c.log.Warn("ML call failed; retrying", "op", op, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx2.Done():
				return wrapTransportError(op, ctx2.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		break
	}
	if lastErr == nil {
		return &ProcessingError{Op: op, Message: "request failed"}
	}
	return lastErr
}

func wrapTransportError(op string, err error) *ProcessingError {
	pe := &ProcessingError{Op: op, Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		pe.Timeout = true
	}
	if pe.Timeout {
		pe.Message = "no response within deadline"
	}
	return pe
}
