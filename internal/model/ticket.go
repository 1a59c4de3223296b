package model

import "time"

// TicketStatus enumerates the lifecycle states of a ticket.  A ticket is
// created as valid, becomes used on check-in and may return to valid on
// an operator undo.  Cancelled and refunded are terminal states reached
// only through external refund handling, never through the check-in flow.
type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRefunded  TicketStatus = "refunded"
)

// Admissible reports whether a ticket in this status may still be
// checked in.
func (s TicketStatus) Admissible() bool { return s == TicketStatusValid }

// Ticket represents one admission credential as stored in the `tickets`
// table.  Holder details are a denormalized copy taken at issuance time
// and are never re-synced from the order.  ID, TicketNumber and
// Credential are immutable after creation.
//
// Fields:
//  ID              – UUID primary key, generated at issuance.
//  TicketNumber    – short human-readable code, unique, for support lookups.
//  OrderID         – originating order; unique (one ticket per order).
//  FirstName..Country – holder snapshot.
//  TicketType      – what was purchased (e.g. "Full Conference").
//  AddOns          – add-on descriptions, stored as JSON.
//  Credential      – the signed QR token, stored verbatim so re-rendering
//                    never requires re-signing.
//  Status          – see TicketStatus.
//  CheckedInAt/By, CheckInDevice, CheckInLocation – set on check-in,
//                    cleared on undo.  Status == used ⇔ CheckedInAt set.
//  EmailSentAt     – when ticket delivery was recorded; informational only.
type Ticket struct {
	ID              string       // tickets.id
	TicketNumber    string       // tickets.ticket_number
	OrderID         string       // tickets.order_id
	FirstName       string       // tickets.first_name
	LastName        string       // tickets.last_name
	Email           string       // tickets.email
	Affiliation     *string      // tickets.affiliation (nullable)
	Country         *string      // tickets.country (nullable)
	TicketType      string       // tickets.ticket_type
	AddOns          []string     // tickets.add_ons (JSON)
	Credential      string       // tickets.credential
	Status          TicketStatus // tickets.status
	CheckedInAt     *time.Time   // tickets.checked_in_at (nullable)
	CheckedInBy     *string      // tickets.checked_in_by (nullable)
	CheckInDevice   *string      // tickets.check_in_device (nullable)
	CheckInLocation *string      // tickets.check_in_location (nullable)
	EmailSentAt     *time.Time   // tickets.email_sent_at (nullable)
	CreatedAt       time.Time    // tickets.created_at
	UpdatedAt       time.Time    // tickets.updated_at
}

// CheckInAction enumerates the actions recorded in the audit trail.
type CheckInAction string

const (
	ActionCheckIn     CheckInAction = "check_in"
	ActionUndoCheckIn CheckInAction = "undo_check_in"
)

// CheckInEvent is an append-only audit row in `ticket_check_ins`.  Events
// are never updated or deleted; the history is used to reconstruct what
// happened at the door and to spot abuse such as rapid undo/redo cycles.
type CheckInEvent struct {
	ID          uint64        // ticket_check_ins.id
	TicketID    string        // ticket_check_ins.ticket_id
	Action      CheckInAction // ticket_check_ins.action
	PerformedBy *string       // ticket_check_ins.performed_by (nullable)
	DeviceInfo  *string       // ticket_check_ins.device_info (nullable)
	Location    *string       // ticket_check_ins.location (nullable)
	CreatedAt   time.Time     // ticket_check_ins.created_at
}
