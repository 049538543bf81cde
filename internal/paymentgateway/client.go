package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/pharmacy-management/internal"
	gatewaytypes "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/paymentgateway"
)

// maxResponseBytes caps how much of a gateway response is read.
const maxResponseBytes = 1 << 20

// LatencyObserver receives the duration of every gateway call.
type LatencyObserver interface {
	ObserveGateway(operation, outcome string, d time.Duration)
}

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client talks to the hosted-checkout gateway over its REST API.
type Client struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
	http      *http.Client
	logger    *slog.Logger
	observer  LatencyObserver
}

func NewClient(config Config, logger *slog.Logger, observer LatencyObserver) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		secretKey: config.SecretKey,
		timeout:   timeout,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
		observer:  observer,
	}
}

// Initialize opens a checkout session and returns the redirect URL together
// with the reference the gateway assigned.
func (c *Client) Initialize(ctx context.Context, req gatewaytypes.InitializeRequest) (*gatewaytypes.InitializeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal initialize request: %w", err)
	}

	var env gatewaytypes.Envelope[gatewaytypes.InitializeResult]
	if err := c.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", body, &env); err != nil {
		return nil, err
	}
	if !env.Status || env.Data.Reference == "" || env.Data.AuthorizationURL == "" {
		return nil, c.unavailable("initialize", fmt.Errorf("gateway rejected initialization: %s", env.Message))
	}

	c.logger.Info("payment initialized with gateway",
		"reference", env.Data.Reference,
		"amount_minor", req.AmountMinor,
		"currency", req.Currency)
	return &env.Data, nil
}

// Verify asks the gateway for the current state of a charge.
func (c *Client) Verify(ctx context.Context, reference string) (*gatewaytypes.VerifyResult, error) {
	if reference == "" {
		return nil, internal.NewValidationError("reference is required", internal.ErrCodeValidationFailed)
	}

	var env gatewaytypes.Envelope[gatewaytypes.VerifyResult]
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, "verify", http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if !env.Status || env.Data.Status == "" {
		return nil, c.unavailable("verify", fmt.Errorf("gateway returned no transaction: %s", env.Message))
	}
	if env.Data.Reference == "" {
		env.Data.Reference = reference
	}

	c.logger.Debug("payment verified with gateway",
		"reference", reference,
		"status", env.Data.Status)
	return &env.Data, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body []byte, out interface{}) error {
	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create gateway request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(operation, "transport_error", start)
		return c.unavailable(operation, fmt.Errorf("gateway request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(operation, "transport_error", start)
		return c.unavailable(operation, fmt.Errorf("read gateway response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(operation, "http_error", start)
		return c.unavailable(operation, fmt.Errorf("gateway returned status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.observe(operation, "malformed", start)
		return c.unavailable(operation, fmt.Errorf("decode gateway response: %w", err))
	}

	c.observe(operation, "ok", start)
	return nil
}

func (c *Client) observe(operation, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveGateway(operation, outcome, time.Since(start))
	}
}

func (c *Client) unavailable(operation string, cause error) error {
	if errors.Is(cause, context.Canceled) {
		c.logger.Info("gateway call cancelled", "operation", operation)
	} else {
		c.logger.Warn("gateway call failed", "operation", operation, "error", cause)
	}
	return internal.ErrGatewayUnavailable.WithCause(cause)
}
