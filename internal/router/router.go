// Package router wires handlers, middleware and routes onto the Echo
// instance.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/evhub/conference-ticketing/internal/handler"
	"github.com/evhub/conference-ticketing/internal/middleware"
)

// Handlers collects everything the router registers.
type Handlers struct {
	Auth     *handler.AuthHandler
	Checkout *handler.CheckoutHandler
	Payment  *handler.PaymentHandler
	CheckIn  *handler.CheckInHandler
	Ticket   *handler.TicketHandler
	Stats    *handler.StatsHandler
}

// Register sets up all routes.
//
// Public surface: health, metrics, checkout creation and the two payment
// reconciliation triggers (the webhook cannot authenticate, and confirm
// is safe because it never trusts the caller).  Everything that reads or
// mutates tickets requires an operator token; undo, manual issuance,
// credential retrieval and operator registration are admin-only.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/v1/auth/login", h.Auth.Login)

	e.POST("/v1/checkout", h.Checkout.Create)
	e.POST("/v1/payments/confirm", h.Payment.Confirm)
	e.POST("/v1/payments/webhook", h.Payment.Webhook)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	staff := auth.Group("", middleware.RequireRole("ADMIN", "STAFF"))
	scan := staff.Group("/checkin", middleware.ScanLimit(rdb, 30, 10*time.Second))
	scan.POST("/validate", h.CheckIn.Validate)
	scan.POST("/check_in", h.CheckIn.CheckIn)
	staff.GET("/tickets/stats", h.Stats.Get)
	staff.GET("/tickets/:id", h.Ticket.Get)
	staff.GET("/tickets/:id/checkins", h.Ticket.History)

	admin := auth.Group("", middleware.RequireRole("ADMIN"))
	admin.POST("/checkin/undo_check_in", h.CheckIn.Undo)
	admin.POST("/tickets", h.Ticket.Issue)
	admin.GET("/tickets/:id/credential", h.Ticket.Credential)
	admin.POST("/auth/register", h.Auth.Register)
}
