package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus enumerates the settlement states of an order's payment.
// An order starts pending and transitions to completed or failed exactly
// once; duplicate transition attempts are tolerated as no-ops.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether this status ends the payment lifecycle.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// Order records one purchase: the attendee details captured on the
// checkout form plus what was bought and for how much.  One order yields
// at most one ticket.
type Order struct {
	ID          string          // orders.id (UUID)
	FirstName   string          // orders.first_name
	LastName    string          // orders.last_name
	Email       string          // orders.email
	Affiliation *string         // orders.affiliation (nullable)
	Country     *string         // orders.country (nullable)
	TicketType  string          // orders.ticket_type
	AddOns      []string        // orders.add_ons (JSON)
	Tags        []string        // orders.tags (JSON), CRM categorization
	Amount      decimal.Decimal // orders.amount
	Currency    string          // orders.currency
	Status      PaymentStatus   // orders.status
	ConfirmedAt *time.Time      // orders.confirmed_at (nullable)
	CreatedAt   time.Time       // orders.created_at
	UpdatedAt   time.Time       // orders.updated_at
}

// Payment mirrors one provider checkout session for an order.  The row is
// the serialization point for reconciliation: confirm and webhook both
// lock it before applying the pending → completed/failed transition.
type Payment struct {
	ID                string          // payments.id (provider checkout id)
	OrderID           string          // payments.order_id
	CheckoutReference string          // payments.checkout_reference
	Amount            decimal.Decimal // payments.amount
	Currency          string          // payments.currency
	Status            PaymentStatus   // payments.status
	TransactionID     *string         // payments.transaction_id (nullable)
	ConfirmedAt       *time.Time      // payments.confirmed_at (nullable)
	CreatedAt         time.Time       // payments.created_at
	UpdatedAt         time.Time       // payments.updated_at
}
