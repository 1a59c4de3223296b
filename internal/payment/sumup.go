// Package payment wraps the SumUp checkout API.  The reconciler treats
// this client as the authoritative source for a checkout's status: a
// caller-supplied "it succeeded" flag is never trusted without a fresh
// query here.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Provider-side checkout statuses.
const (
	StatusPaid    = "PAID"
	StatusPending = "PENDING"
	StatusFailed  = "FAILED"
)

// ErrProviderUnavailable wraps transport failures and 5xx responses.
// Callers treat it as "status unknown, retry later" — never as an
// implicit success or failure.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Checkout is the provider's view of one payment session.
type Checkout struct {
	ID            string          `json:"id"`
	Reference     string          `json:"checkout_reference"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id"`
}

// Client calls the SumUp REST API with a bounded timeout.
type Client struct {
	baseURL      string
	apiKey       string
	merchantCode string

	// hc is the http client; its timeout bounds every provider call.
	hc *http.Client
}

// NewClient returns a SumUp client for the given API base URL and
// credentials.
func NewClient(baseURL, apiKey, merchantCode string) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		merchantCode: merchantCode,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createCheckoutReq struct {
	CheckoutReference string          `json:"checkout_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Description       string          `json:"description"`
	MerchantCode      string          `json:"merchant_code"`
}

// CreateCheckout opens a new checkout session with the provider.
func (c *Client) CreateCheckout(ctx context.Context, reference string, amount decimal.Decimal, currency, description string) (*Checkout, error) {
	body, err := json.Marshal(createCheckoutReq{
		CheckoutReference: reference,
		Amount:            amount,
		Currency:          currency,
		Description:       description,
		MerchantCode:      c.merchantCode,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v0.1/checkouts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// GetCheckout fetches the authoritative status of a checkout session.
func (c *Client) GetCheckout(ctx context.Context, checkoutID string) (*Checkout, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v0.1/checkouts/"+checkoutID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Checkout, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("sumup: unexpected status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	var out Checkout
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("sumup: decode response: %w", err)
	}
	return &out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
