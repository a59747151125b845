package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ChargeResult distinguishes a declined payment (Success=false with a reason)
// from gateway failure, which Charge reports as an error.
type ChargeResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type PaymentClient struct {
	base string
	http *http.Client
}

func NewPaymentClient(base string, timeout time.Duration) *PaymentClient {
	return &PaymentClient{base: base, http: &http.Client{Timeout: timeout}}
}

func (c *PaymentClient) Charge(ctx context.Context, orderID, method string, amount decimal.Decimal, details map[string]any) (ChargeResult, error) {
	payload, _ := json.Marshal(map[string]any{
		"order_id": orderID,
		"method":   method,
		"amount":   amount,
		"details":  details,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/payments/charge", bytes.NewReader(payload))
	if err != nil {
		return ChargeResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("charge order %s: %w", orderID, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ChargeResult{}, fmt.Errorf("charge order %s: status %d: %w", orderID, resp.StatusCode, ErrUnavailable)
	}
	var out ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChargeResult{}, fmt.Errorf("charge order %s: decode: %w", orderID, ErrUnavailable)
	}
	return out, nil
}
