package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendorhub/marketplace-backend/pkg/config"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

// RefundRequest asks the payment gateway to return money to the customer.
type RefundRequest struct {
	OrderNumber int64
	ExternalID  string
	Amount      decimal.Decimal
	// Key makes the call idempotent on the gateway side.
	Key    string
	Reason string
}

// RefundResponse is the gateway acknowledgement.
type RefundResponse struct {
	StatusCode    string `json:"status_code"`
	StatusMessage string `json:"status_message"`
	RefundKey     string `json:"refund_key"`
}

// Refunder issues refunds against the payment gateway.
type Refunder interface {
	Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
}

// HTTPClient calls the gateway's refund endpoint with server-key basic auth.
type HTTPClient struct {
	baseURL   string
	serverKey string
	http      *http.Client
}

// NewRefunder returns the HTTP client when a gateway base URL is configured and
// a logging no-op otherwise.
func NewRefunder(cfg config.GatewayConfig, serverKey string, logg *logger.Logger) Refunder {
	if !cfg.Enabled() {
		return &NoopRefunder{logg: logg}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		serverKey: serverKey,
		http:      &http.Client{Timeout: timeout},
	}
}

type refundBody struct {
	RefundKey string `json:"refund_key"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason,omitempty"`
}

func (c *HTTPClient) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("refund amount must be positive")
	}
	body, err := json.Marshal(refundBody{
		RefundKey: req.Key,
		Amount:    req.Amount.StringFixed(2),
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/%s/refund", c.baseURL, strconv.FormatInt(req.OrderNumber, 10))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.serverKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway refund request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway refund failed: http %d", res.StatusCode)
	}

	var out RefundResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	// The gateway reports business failures in status_code with HTTP 200.
	if !strings.HasPrefix(out.StatusCode, "2") {
		return nil, fmt.Errorf("gateway refund rejected: %s %s", out.StatusCode, out.StatusMessage)
	}
	return &out, nil
}

// NoopRefunder records the refund intent in the log.
type NoopRefunder struct {
	logg *logger.Logger
}

func (n *NoopRefunder) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	if n.logg != nil {
		n.logg.Warn(n.logg.WithFields(ctx, map[string]any{
			"order_number": req.OrderNumber,
			"amount":       req.Amount.StringFixed(2),
		}), "gateway disabled; refund must be settled manually")
	}
	return &RefundResponse{StatusCode: "200", StatusMessage: "gateway disabled", RefundKey: req.Key}, nil
}
