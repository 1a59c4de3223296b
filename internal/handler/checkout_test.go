package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/payment"
)

type capturingOrders struct{ created []*model.Order }

func (c *capturingOrders) Create(_ context.Context, o *model.Order) error {
	c.created = append(c.created, o)
	return nil
}

type capturingPayments struct{ created []*model.Payment }

func (c *capturingPayments) Create(_ context.Context, p *model.Payment) error {
	c.created = append(c.created, p)
	return nil
}

type stubCheckoutProvider struct {
	err error
}

func (s *stubCheckoutProvider) CreateCheckout(_ context.Context, reference string, amount decimal.Decimal, currency, _ string) (*payment.Checkout, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &payment.Checkout{
		ID:        "chk_new",
		Reference: reference,
		Amount:    amount,
		Currency:  currency,
		Status:    payment.StatusPending,
	}, nil
}

const checkoutBody = `{
	"first_name": "Ada",
	"last_name": "Lovelace",
	"email": "ADA@Example.org",
	"affiliation": "Analytical Engines Ltd",
	"ticket_type": "Full Conference",
	"add_ons": ["Gala Dinner"],
	"amount": "350.00",
	"currency": "eur"
}`

func TestCheckoutCreatesOrderAndPayment(t *testing.T) {
	orders := &capturingOrders{}
	payments := &capturingPayments{}
	h := NewCheckoutHandler(orders, payments, &stubCheckoutProvider{}, "EVT-2026")

	rec := doJSON(t, h.Create, checkoutBody, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp checkoutResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "chk_new", resp.CheckoutID)
	assert.True(t, decimal.RequireFromString(resp.Amount).Equal(decimal.NewFromInt(350)))
	assert.Equal(t, "EUR", resp.Currency)

	require.Len(t, orders.created, 1)
	order := orders.created[0]
	assert.Equal(t, "ada@example.org", order.Email)
	assert.Equal(t, model.PaymentStatusPending, order.Status)
	require.NotNil(t, order.Affiliation)
	assert.Nil(t, order.Country)

	require.Len(t, payments.created, 1)
	p := payments.created[0]
	assert.Equal(t, "chk_new", p.ID)
	assert.Equal(t, order.ID, p.OrderID)
	assert.Contains(t, p.CheckoutReference, "evt-2026-"+order.ID)
	assert.Equal(t, model.PaymentStatusPending, p.Status)
}

func TestCheckoutRejectsBadInput(t *testing.T) {
	h := NewCheckoutHandler(&capturingOrders{}, &capturingPayments{}, &stubCheckoutProvider{}, "EVT-2026")

	for name, body := range map[string]string{
		"missing name":    `{"email":"a@b.c","ticket_type":"Full","amount":"10"}`,
		"zero amount":     `{"first_name":"A","last_name":"B","email":"a@b.c","ticket_type":"Full","amount":"0"}`,
		"negative amount": `{"first_name":"A","last_name":"B","email":"a@b.c","ticket_type":"Full","amount":"-5"}`,
		"bad amount":      `{"first_name":"A","last_name":"B","email":"a@b.c","ticket_type":"Full","amount":"ten"}`,
	} {
		rec := doJSON(t, h.Create, body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestCheckoutProviderDown(t *testing.T) {
	orders := &capturingOrders{}
	h := NewCheckoutHandler(orders, &capturingPayments{}, &stubCheckoutProvider{err: payment.ErrProviderUnavailable}, "EVT-2026")

	rec := doJSON(t, h.Create, checkoutBody, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	// The pending order survives; no payment row references a checkout.
	assert.Len(t, orders.created, 1)
}
