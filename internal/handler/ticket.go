package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/repository"
	"github.com/evhub/conference-ticketing/internal/service"
)

// TicketHandler serves ticket lookups and the manual issuance path
// admins use for comped tickets and for orders whose automatic issuance
// needs a nudge.  Issuance is idempotent, so re-posting an order id is
// safe and returns the existing ticket.
type TicketHandler struct {
	Tickets *repository.TicketRepo
	Orders  *repository.OrderRepo
	Events  *repository.CheckInEventRepo
	Issuer  *service.TicketIssuer
}

func NewTicketHandler(tickets *repository.TicketRepo, orders *repository.OrderRepo, events *repository.CheckInEventRepo, issuer *service.TicketIssuer) *TicketHandler {
	return &TicketHandler{Tickets: tickets, Orders: orders, Events: events, Issuer: issuer}
}

type issueReq struct {
	OrderID string `json:"order_id"`
}

type ticketResp struct {
	ID           string     `json:"id"`
	TicketNumber string     `json:"ticket_number"`
	OrderID      string     `json:"order_id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	TicketType   string     `json:"ticket_type"`
	AddOns       []string   `json:"add_ons"`
	Status       string     `json:"status"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	EmailSentAt  *time.Time `json:"email_sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toTicketResp(t *model.Ticket) ticketResp {
	return ticketResp{
		ID:           t.ID,
		TicketNumber: t.TicketNumber,
		OrderID:      t.OrderID,
		FirstName:    t.FirstName,
		LastName:     t.LastName,
		Email:        t.Email,
		TicketType:   t.TicketType,
		AddOns:       t.AddOns,
		Status:       string(t.Status),
		CheckedInAt:  t.CheckedInAt,
		EmailSentAt:  t.EmailSentAt,
		CreatedAt:    t.CreatedAt,
	}
}

// Issue mints a ticket for a paid order.
func (h *TicketHandler) Issue(c echo.Context) error {
	var req issueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if order.Status != model.PaymentStatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is not paid"})
	}

	ticket, created, err := h.Issuer.Issue(ctx, order)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue failed"})
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, toTicketResp(ticket))
}

// Get returns one ticket by id, falling back to the human-readable
// ticket number so support staff can look up what is printed on a badge.
func (h *TicketHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	key := c.Param("id")
	t, err := h.Tickets.GetByID(ctx, key)
	if errors.Is(err, repository.ErrTicketNotFound) {
		t, err = h.Tickets.GetByNumber(ctx, key)
	}
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toTicketResp(t))
}

// Credential returns the signed QR payload for a ticket, for re-sending
// or re-rendering a lost QR code.  Admin-only; the credential admits its
// holder, so it never appears in ordinary ticket responses.
func (h *TicketHandler) Credential(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Tickets.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket_id":     t.ID,
		"ticket_number": t.TicketNumber,
		"credential":    t.Credential,
	})
}

type checkInEventResp struct {
	Action      string    `json:"action"`
	PerformedBy *string   `json:"performed_by,omitempty"`
	DeviceInfo  *string   `json:"device_info,omitempty"`
	Location    *string   `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// History returns a ticket's check-in audit trail, oldest first.
func (h *TicketHandler) History(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Tickets.GetByID(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	events, err := h.Events.ListByTicket(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]checkInEventResp, 0, len(events))
	for _, ev := range events {
		out = append(out, checkInEventResp{
			Action:      string(ev.Action),
			PerformedBy: ev.PerformedBy,
			DeviceInfo:  ev.DeviceInfo,
			Location:    ev.Location,
			CreatedAt:   ev.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket_id": c.Param("id"), "events": out})
}
