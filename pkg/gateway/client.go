package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmfellows/bidstreet-backend/pkg/config"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
)

const defaultTimeout = 10 * time.Second

var (
	errBaseURLRequired = errors.New("gateway base url is required")
	errKeyRequired     = errors.New("gateway api key is required")
	errLoggerRequired  = errors.New("gateway logger is required")
)

// Client wraps the payment gateway HTTP API with centralized auth,
// idempotency keys, retries, and error mapping.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	maxRetries    int
	logger        *logger.Logger
}

// CreateOrderRequest asks the gateway to open a payment order covering
// one checkout group.
type CreateOrderRequest struct {
	ReferenceID string `json:"reference_id"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// CreateOrderResponse carries the gateway-side order identity.
type CreateOrderResponse struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Status         string `json:"status"`
}

// NewClient initializes the gateway wrapper and validates credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		maxRetries:    cfg.MaxRetries,
		logger:        logg,
	}

	logg.Info(ctx, "payment gateway client initialized")
	return c, nil
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NewIdempotencyKey returns a unique key for gateway operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "bs"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreateOrder opens a gateway payment order. Transient failures are
// retried with exponential backoff; 4xx responses are not.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order amount must be positive")
	}
	if strings.TrimSpace(req.ReferenceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order reference required")
	}

	idempotencyKey := c.NewIdempotencyKey("order")

	var out CreateOrderResponse
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.post(ctx, "/v1/orders", idempotencyKey, req, &out)
	})
	if err != nil {
		return nil, err
	}
	if out.GatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned no order id")
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are worth another attempt.
		return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway unreachable"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response"))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
		}
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("gateway responded %d", resp.StatusCode)))
	default:
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("gateway rejected request with %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": string(raw)})
	}
}
