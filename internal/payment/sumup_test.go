package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0.1/checkouts", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "evt-ord1-123", req["checkout_reference"])
		assert.Equal(t, "M-CODE", req["merchant_code"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 "chk_1",
			"checkout_reference": "evt-ord1-123",
			"amount":             350.00,
			"currency":           "EUR",
			"status":             "PENDING",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "M-CODE")
	chk, err := c.CreateCheckout(context.Background(), "evt-ord1-123", decimal.NewFromInt(350), "EUR", "Registration")
	require.NoError(t, err)
	assert.Equal(t, "chk_1", chk.ID)
	assert.Equal(t, StatusPending, chk.Status)
	assert.True(t, chk.Amount.Equal(decimal.NewFromInt(350)))
}

func TestGetCheckoutPaid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0.1/checkouts/chk_1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "chk_1",
			"status":         "PAID",
			"transaction_id": "txn_9",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "M-CODE")
	chk, err := c.GetCheckout(context.Background(), "chk_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, chk.Status)
	assert.Equal(t, "txn_9", chk.TransactionID)
}

func TestGetCheckoutServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "M-CODE")
	_, err := c.GetCheckout(context.Background(), "chk_1")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestGetCheckoutTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "M-CODE")
	c.hc.Timeout = 50 * time.Millisecond

	_, err := c.GetCheckout(context.Background(), "chk_1")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
