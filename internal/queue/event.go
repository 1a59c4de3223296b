// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketIssuedEvent is published when a ticket has been minted for a paid
// order.  Downstream consumers render and deliver the credential (email,
// wallet passes) without querying the primary database.  Delivery is
// retried by broker redelivery; a failed delivery never invalidates the
// ticket itself.
type TicketIssuedEvent struct {
	TicketID     string   `json:"ticket_id"`
	TicketNumber string   `json:"ticket_number"`
	OrderID      string   `json:"order_id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email"`
	TicketType   string   `json:"ticket_type"`
	AddOns       []string `json:"add_ons"`
	Credential   string   `json:"credential"`
	IssuedAt     string   `json:"issued_at"`
}
