package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/payment"
)

// OrderCreator and PaymentCreator are the insert-only slices of the
// repositories the checkout path needs.
type OrderCreator interface {
	Create(ctx context.Context, o *model.Order) error
}
type PaymentCreator interface {
	Create(ctx context.Context, p *model.Payment) error
}

// CheckoutProvider opens a checkout session with the payment provider.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, reference string, amount decimal.Decimal, currency, description string) (*payment.Checkout, error)
}

// CheckoutHandler creates orders and their provider checkout sessions.
// The client completes the payment against the provider directly; our
// part ends once the pending order and checkout id are stored.
type CheckoutHandler struct {
	Orders   OrderCreator
	Payments PaymentCreator
	Provider CheckoutProvider
	Prefix   string
}

func NewCheckoutHandler(orders OrderCreator, payments PaymentCreator, provider CheckoutProvider, prefix string) *CheckoutHandler {
	return &CheckoutHandler{Orders: orders, Payments: payments, Provider: provider, Prefix: prefix}
}

type checkoutReq struct {
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Affiliation string   `json:"affiliation"`
	Country     string   `json:"country"`
	TicketType  string   `json:"ticket_type"`
	AddOns      []string `json:"add_ons"`
	Tags        []string `json:"tags"`
	Amount      string   `json:"amount"`
	Currency    string   `json:"currency"`
}

type checkoutResp struct {
	OrderID           string `json:"order_id"`
	CheckoutID        string `json:"checkout_id"`
	CheckoutReference string `json:"checkout_reference"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
}

// Create validates the form, stores a pending order and opens a checkout
// with the payment provider.  No ticket exists yet; that happens only
// after reconciliation confirms the payment.
func (h *CheckoutHandler) Create(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.TicketType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name, last_name, email and ticket_type required"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid amount"})
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "EUR"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	order := &model.Order{
		ID:         uuid.NewString(),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		TicketType: req.TicketType,
		AddOns:     req.AddOns,
		Tags:       req.Tags,
		Amount:     amount,
		Currency:   currency,
		Status:     model.PaymentStatusPending,
	}
	if a := strings.TrimSpace(req.Affiliation); a != "" {
		order.Affiliation = &a
	}
	if co := strings.TrimSpace(req.Country); co != "" {
		order.Country = &co
	}
	if err := h.Orders.Create(ctx, order); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create order failed"})
	}

	reference := fmt.Sprintf("%s-%s-%d", strings.ToLower(h.Prefix), order.ID, time.Now().Unix())
	description := fmt.Sprintf("%s ticket for %s %s", req.TicketType, req.FirstName, req.LastName)
	chk, err := h.Provider.CreateCheckout(ctx, reference, amount, currency, description)
	if err != nil {
		if errors.Is(err, payment.ErrProviderUnavailable) {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create checkout failed"})
	}

	if err := h.Payments.Create(ctx, &model.Payment{
		ID:                chk.ID,
		OrderID:           order.ID,
		CheckoutReference: reference,
		Amount:            amount,
		Currency:          currency,
		Status:            model.PaymentStatusPending,
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save payment failed"})
	}

	return c.JSON(http.StatusCreated, checkoutResp{
		OrderID:           order.ID,
		CheckoutID:        chk.ID,
		CheckoutReference: reference,
		Amount:            amount.String(),
		Currency:          currency,
	})
}
