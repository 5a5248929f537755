// Package gateway talks to the external payment gateway over HTTP.
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

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

const createOrderPath = "/v1/orders"

// Config holds gateway credentials and limits.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client creates gateway orders and verifies payment signatures.
type Client struct {
	cfg        Config
	httpClient *http.Client
	signer     Signer
}

var _ ports.PaymentGateway = (*Client)(nil)

// NewClient builds a client. A nil httpClient gets one bounded by cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway base url is required")
	}
	if cfg.KeySecret == "" {
		return nil, errors.New("gateway key secret is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		signer:     NewSigner(cfg.KeySecret),
	}, nil
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent registers a gateway order for req.Amount minor units and returns its id.
func (c *Client) CreateIntent(ctx context.Context, req ports.IntentRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(createOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	})
	if err != nil {
		return "", fmt.Errorf("encode gateway order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+createOrderPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.GatewayError{Op: "create_order", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &domain.GatewayError{Op: "create_order", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr errorResponse
		_ = json.Unmarshal(body, &gwErr)
		reason := gwErr.Error.Description
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return "", &domain.GatewayError{Op: "create_order", StatusCode: resp.StatusCode, Err: errors.New(reason)}
	}

	var created createOrderResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", &domain.GatewayError{Op: "create_order", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if created.ID == "" {
		return "", &domain.GatewayError{Op: "create_order", StatusCode: resp.StatusCode, Err: errors.New("response missing order id")}
	}

	return created.ID, nil
}

// VerifySignature checks the signature the gateway issued for a payment.
func (c *Client) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return c.signer.Verify(gatewayOrderID, paymentID, signature)
}
