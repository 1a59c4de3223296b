package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Handler-level webhook filtering never reaches the reconciler, so a nil
// one is fine here.
func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	h := NewPaymentHandler(nil)

	for _, eventType := range []string{"PAYOUT_COMPLETED", "REFUND_CREATED", ""} {
		rec := doJSON(t, h.Webhook, `{"id":"chk_1","event_type":"`+eventType+`"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "event_type %q", eventType)
		assert.Contains(t, rec.Body.String(), "Event ignored")
	}
}

func TestWebhookRequiresCheckoutID(t *testing.T) {
	h := NewPaymentHandler(nil)

	rec := doJSON(t, h.Webhook, `{"event_type":"CHECKOUT_STATUS_CHANGED"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmRequiresCheckoutID(t *testing.T) {
	h := NewPaymentHandler(nil)

	rec := doJSON(t, h.Confirm, `{"checkout_id":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
