package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evhub/conference-ticketing/internal/repository"
	"github.com/evhub/conference-ticketing/internal/service"
)

// PaymentHandler exposes the two reconciliation triggers: the browser's
// confirm call after returning from the payment flow, and the provider's
// server-to-server webhook.  Both funnel into the same reconciler.
type PaymentHandler struct {
	Reconciler *service.PaymentReconciler
}

func NewPaymentHandler(r *service.PaymentReconciler) *PaymentHandler {
	return &PaymentHandler{Reconciler: r}
}

type confirmReq struct {
	CheckoutID string `json:"checkout_id"`
}

// webhookReq mirrors the provider's event envelope.  Only the checkout
// status event carries information we act on.
type webhookReq struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
}

type reconcileResp struct {
	Outcome       string `json:"outcome"`
	PaymentStatus string `json:"payment_status"`
	TicketID      string `json:"ticket_id,omitempty"`
	TicketNumber  string `json:"ticket_number,omitempty"`
}

// Confirm handles the browser's "I paid" call.  The claim is never
// trusted: reconciliation re-queries the provider.  A retry outcome maps
// to 202 so the client polls again; it is not an error.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.CheckoutID = strings.TrimSpace(req.CheckoutID)
	if req.CheckoutID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "checkout_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	res, err := h.Reconciler.Reconcile(ctx, req.CheckoutID, service.TriggerConfirm)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown checkout"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reconcile failed"})
	}

	status := http.StatusOK
	if res.Outcome == service.ReconcileRetry {
		status = http.StatusAccepted
	}
	return c.JSON(status, toReconcileResp(res))
}

// Webhook handles the provider's asynchronous notification.  Event types
// other than checkout status changes are acknowledged and dropped so the
// provider stops redelivering them.  A retry outcome returns 503 on
// purpose: the provider treats non-2xx as "deliver again later", which
// is exactly what an unknown status needs.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	var req webhookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.EventType != "CHECKOUT_STATUS_CHANGED" {
		return c.JSON(http.StatusOK, echo.Map{"message": "Event ignored"})
	}
	if strings.TrimSpace(req.ID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	res, err := h.Reconciler.Reconcile(ctx, req.ID, service.TriggerWebhook)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			// Unknown checkout, nothing to redeliver for.
			return c.JSON(http.StatusOK, echo.Map{"message": "Unknown checkout ignored"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reconcile failed"})
	}
	if res.Outcome == service.ReconcileRetry {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "status not final, retry"})
	}
	return c.JSON(http.StatusOK, toReconcileResp(res))
}

func toReconcileResp(res *service.ReconcileResult) reconcileResp {
	out := reconcileResp{
		Outcome:       string(res.Outcome),
		PaymentStatus: string(res.PaymentStatus),
	}
	if res.Ticket != nil {
		out.TicketID = res.Ticket.ID
		out.TicketNumber = res.Ticket.TicketNumber
	}
	return out
}
