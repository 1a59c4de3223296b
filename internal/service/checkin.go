// Package service implements the ticket lifecycle logic: issuance,
// check-in and payment reconciliation.  Services accept small store
// interfaces so the state machines can be exercised without a database.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evhub/conference-ticketing/internal/credential"
	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/monitoring"
	"github.com/evhub/conference-ticketing/internal/repository"
)

// CheckInOutcome is the closed set of results a scan can produce.  State
// conflicts (already checked in, not admissible) are outcomes, not
// errors: they are expected at a busy door and the scanner UI renders
// them as information, not failures.
type CheckInOutcome string

const (
	OutcomeSuccess           CheckInOutcome = "success"
	OutcomeAlreadyCheckedIn  CheckInOutcome = "already_checked_in"
	OutcomeInvalidCredential CheckInOutcome = "invalid_credential"
	OutcomeTicketNotFound    CheckInOutcome = "ticket_not_found"
	OutcomeNotAdmissible     CheckInOutcome = "not_admissible"
)

// TicketSnapshot is the read-only view of a ticket returned to scanning
// devices.  The credential itself is deliberately absent.
type TicketSnapshot struct {
	TicketID     string     `json:"ticket_id"`
	TicketNumber string     `json:"ticket_number"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	TicketType   string     `json:"ticket_type"`
	Affiliation  *string    `json:"affiliation,omitempty"`
	Country      *string    `json:"country,omitempty"`
	AddOns       []string   `json:"add_ons"`
	Status       string     `json:"status"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	IssuedAt     time.Time  `json:"issued_at"`
}

// CheckInResult is what every scan operation returns.
type CheckInResult struct {
	Outcome          CheckInOutcome  `json:"outcome"`
	Message          string          `json:"message"`
	Ticket           *TicketSnapshot `json:"ticket,omitempty"`
	AlreadyCheckedIn bool            `json:"already_checked_in"`
	CheckedInAt      *time.Time      `json:"checked_in_at,omitempty"`
}

// ScanContext carries who and what performed a scan.
type ScanContext struct {
	Actor      string
	DeviceInfo string
	Location   string
}

// CheckInStore is the slice of the ticket store the engine needs.
// MarkCheckedIn and UndoCheckIn are atomic conditional transitions that
// append their audit row in the same transaction; applied=false means
// the precondition no longer held.
type CheckInStore interface {
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	MarkCheckedIn(ctx context.Context, id string, by, device, location *string, at time.Time) (bool, error)
	UndoCheckIn(ctx context.Context, id string, by *string, at time.Time) (bool, error)
}

// Verifier is the credential codec seen from the engine.
type Verifier interface {
	Verify(token string) (credential.Claims, error)
}

// CheckInEngine validates scanned credentials against the ticket store
// and performs the valid ⇄ used transitions.
type CheckInEngine struct {
	store CheckInStore
	codec Verifier
	now   func() time.Time
}

// NewCheckInEngine constructs the engine.
func NewCheckInEngine(store CheckInStore, codec Verifier) *CheckInEngine {
	return &CheckInEngine{store: store, codec: codec, now: func() time.Time { return time.Now().UTC() }}
}

// CheckIn verifies the credential, then attempts the atomic valid → used
// transition.  Retried or concurrent scans of the same ticket settle as
// already_checked_in carrying the winning scan's timestamp.  Forged or
// garbled input produces invalid_credential with no store access and no
// audit entry, since no ticket can even be identified.
func (e *CheckInEngine) CheckIn(ctx context.Context, token string, scan ScanContext) (*CheckInResult, error) {
	claims, err := e.codec.Verify(token)
	if err != nil {
		monitoring.RecordCheckIn(string(OutcomeInvalidCredential))
		return &CheckInResult{
			Outcome: OutcomeInvalidCredential,
			Message: "Invalid or expired QR code",
		}, nil
	}

	t, err := e.store.GetByID(ctx, claims.TicketID)
	if errors.Is(err, repository.ErrTicketNotFound) {
		monitoring.RecordCheckIn(string(OutcomeTicketNotFound))
		return &CheckInResult{
			Outcome: OutcomeTicketNotFound,
			Message: "Ticket not found",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if t.Status == model.TicketStatusUsed {
		return e.alreadyCheckedIn(t), nil
	}
	if !t.Status.Admissible() {
		monitoring.RecordCheckIn(string(OutcomeNotAdmissible))
		return &CheckInResult{
			Outcome: OutcomeNotAdmissible,
			Message: fmt.Sprintf("Ticket is %s", t.Status),
			Ticket:  snapshot(t),
		}, nil
	}

	at := e.now()
	by, device, location := optional(scan.Actor), optional(scan.DeviceInfo), optional(scan.Location)
	applied, err := e.store.MarkCheckedIn(ctx, t.ID, by, device, location, at)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race; report the winner's state.
		fresh, err := e.store.GetByID(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if fresh.Status == model.TicketStatusUsed {
			return e.alreadyCheckedIn(fresh), nil
		}
		monitoring.RecordCheckIn(string(OutcomeNotAdmissible))
		return &CheckInResult{
			Outcome: OutcomeNotAdmissible,
			Message: fmt.Sprintf("Ticket is %s", fresh.Status),
			Ticket:  snapshot(fresh),
		}, nil
	}

	t.Status = model.TicketStatusUsed
	t.CheckedInAt = &at
	t.CheckedInBy = by
	t.CheckInDevice = device
	t.CheckInLocation = location
	monitoring.RecordCheckIn(string(OutcomeSuccess))
	return &CheckInResult{
		Outcome:     OutcomeSuccess,
		Message:     "Check-in successful",
		Ticket:      snapshot(t),
		CheckedInAt: &at,
	}, nil
}

// UndoCheckIn resets a ticket to valid.  Undo is an explicit operator
// action; undoing a ticket that is already valid is a no-op success so
// retried undo requests never error.
func (e *CheckInEngine) UndoCheckIn(ctx context.Context, ticketID string, actor string) (*CheckInResult, error) {
	t, err := e.store.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return &CheckInResult{
			Outcome: OutcomeTicketNotFound,
			Message: "Ticket not found",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	applied, err := e.store.UndoCheckIn(ctx, t.ID, optional(actor), e.now())
	if err != nil {
		return nil, err
	}
	monitoring.RecordUndo(applied)

	msg := "Check-in undone"
	if !applied {
		msg = "Ticket was not checked in"
	}
	t.Status = model.TicketStatusValid
	t.CheckedInAt = nil
	t.CheckedInBy = nil
	t.CheckInDevice = nil
	t.CheckInLocation = nil
	return &CheckInResult{
		Outcome: OutcomeSuccess,
		Message: msg,
		Ticket:  snapshot(t),
	}, nil
}

// ValidateOnly verifies the credential and looks the ticket up without
// mutating anything.  Used for pre-admission lookups where the ticket
// must not be consumed.
func (e *CheckInEngine) ValidateOnly(ctx context.Context, token string) (*CheckInResult, error) {
	claims, err := e.codec.Verify(token)
	if err != nil {
		return &CheckInResult{
			Outcome: OutcomeInvalidCredential,
			Message: "Invalid or expired QR code",
		}, nil
	}

	t, err := e.store.GetByID(ctx, claims.TicketID)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return &CheckInResult{
			Outcome: OutcomeTicketNotFound,
			Message: "Ticket not found",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &CheckInResult{
		Outcome:          OutcomeSuccess,
		Message:          "Ticket is valid",
		Ticket:           snapshot(t),
		AlreadyCheckedIn: t.Status == model.TicketStatusUsed,
		CheckedInAt:      t.CheckedInAt,
	}, nil
}

func (e *CheckInEngine) alreadyCheckedIn(t *model.Ticket) *CheckInResult {
	monitoring.RecordCheckIn(string(OutcomeAlreadyCheckedIn))
	msg := "This ticket has already been checked in"
	if t.CheckedInAt != nil {
		msg = fmt.Sprintf("Ticket already used at %s", t.CheckedInAt.Format(time.RFC3339))
	}
	return &CheckInResult{
		Outcome:          OutcomeAlreadyCheckedIn,
		Message:          msg,
		Ticket:           snapshot(t),
		AlreadyCheckedIn: true,
		CheckedInAt:      t.CheckedInAt,
	}
}

func snapshot(t *model.Ticket) *TicketSnapshot {
	return &TicketSnapshot{
		TicketID:     t.ID,
		TicketNumber: t.TicketNumber,
		FirstName:    t.FirstName,
		LastName:     t.LastName,
		Email:        t.Email,
		TicketType:   t.TicketType,
		Affiliation:  t.Affiliation,
		Country:      t.Country,
		AddOns:       t.AddOns,
		Status:       string(t.Status),
		CheckedInAt:  t.CheckedInAt,
		IssuedAt:     t.CreatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
