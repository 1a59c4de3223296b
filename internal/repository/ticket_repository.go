package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/evhub/conference-ticketing/internal/model"
)

// TicketRepo provides persistence for tickets and their check-in state.
// The tickets row is the unit of mutual exclusion for check-in: the
// valid → used transition is a single conditional UPDATE keyed on the
// current status, so concurrent scans for the same ticket cannot both
// win.  Audit rows are appended in the same transaction as the state
// change.  All timestamps are stored in UTC.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, ticket_number, order_id, first_name, last_name, email,
	affiliation, country, ticket_type, add_ons, credential, status,
	checked_in_at, checked_in_by, check_in_device, check_in_location,
	email_sent_at, created_at, updated_at`

// Create inserts a full ticket row.  The caller provides the generated
// id, ticket number and signed credential.  A duplicate order_id maps to
// ErrDuplicateOrder so the issuer can return the existing ticket instead
// of minting a second one.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	addOns, err := json.Marshal(emptyIfNil(t.AddOns))
	if err != nil {
		return err
	}
	const q = `INSERT INTO tickets
		(id, ticket_number, order_id, first_name, last_name, email, affiliation, country, ticket_type, add_ons, credential, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, q,
		t.ID, t.TicketNumber, t.OrderID, t.FirstName, t.LastName, t.Email,
		t.Affiliation, t.Country, t.TicketType, addOns, t.Credential, string(t.Status))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// GetByID fetches one ticket by its UUID.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	return r.getOne(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
}

// GetByNumber fetches one ticket by its human-readable number.  Used for
// support lookups.
func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*model.Ticket, error) {
	return r.getOne(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE ticket_number = ?", number)
}

// GetByOrderID fetches the ticket issued for an order, if any.
func (r *TicketRepo) GetByOrderID(ctx context.Context, orderID string) (*model.Ticket, error) {
	return r.getOne(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE order_id = ?", orderID)
}

func (r *TicketRepo) getOne(ctx context.Context, q string, arg any) (*model.Ticket, error) {
	row := r.db.QueryRowContext(ctx, q, arg)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MarkCheckedIn performs the atomic valid → used transition and appends
// the check_in audit row in one transaction.  It returns applied=false
// without error when the ticket was not in the valid state, which is how
// the loser of a concurrent scan race finds out.
func (r *TicketRepo) MarkCheckedIn(ctx context.Context, id string, by, device, location *string, at time.Time) (applied bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upd = `UPDATE tickets
		SET status = 'used', checked_in_at = ?, checked_in_by = ?, check_in_device = ?, check_in_location = ?
		WHERE id = ? AND status = 'valid'`
	res, err := tx.ExecContext(ctx, upd, at, by, device, location, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Nothing to do; leave no audit trace for a scan that changed nothing.
		if err := tx.Commit(); err != nil {
			return false, err
		}
		committed = true
		return false, nil
	}
	if err := appendCheckInEventTx(ctx, tx, id, model.ActionCheckIn, by, device, location, at); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// UndoCheckIn resets a used ticket back to valid, clears the check-in
// fields and appends the undo_check_in audit row.  Undoing a ticket that
// is already valid is a no-op (applied=false, no audit row).
func (r *TicketRepo) UndoCheckIn(ctx context.Context, id string, by *string, at time.Time) (applied bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upd = `UPDATE tickets
		SET status = 'valid', checked_in_at = NULL, checked_in_by = NULL, check_in_device = NULL, check_in_location = NULL
		WHERE id = ? AND status = 'used'`
	res, err := tx.ExecContext(ctx, upd, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if err := tx.Commit(); err != nil {
			return false, err
		}
		committed = true
		return false, nil
	}
	if err := appendCheckInEventTx(ctx, tx, id, model.ActionUndoCheckIn, by, nil, nil, at); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// MarkEmailSent records a successful delivery attempt.  Delivery outcome
// is informational and never affects the ticket's validity.
func (r *TicketRepo) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE tickets SET email_sent_at = ? WHERE id = ?", at, id)
	return err
}

// Stats aggregates check-in progress for the stats surface.  Counts and
// lists are derived from status/checked_in_at on demand; nothing is kept
// in process memory, so multiple instances and restarts always agree.
type Stats struct {
	Total     int
	CheckedIn int
	Pending   int
	Checked   []model.Ticket
	Unchecked []model.Ticket
}

// CollectStats loads all tickets newest-first and splits them by check-in
// state.
func (r *TicketRepo) CollectStats(ctx context.Context) (*Stats, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &Stats{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		st.Total++
		if t.Status == model.TicketStatusUsed {
			st.CheckedIn++
			st.Checked = append(st.Checked, *t)
		} else {
			st.Pending++
			st.Unchecked = append(st.Unchecked, *t)
		}
	}
	return st, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(s scanner) (*model.Ticket, error) {
	var (
		t           model.Ticket
		affiliation sql.NullString
		country     sql.NullString
		addOnsRaw   []byte
		status      string
		checkedInAt sql.NullTime
		checkedInBy sql.NullString
		device      sql.NullString
		location    sql.NullString
		emailSentAt sql.NullTime
	)
	err := s.Scan(
		&t.ID, &t.TicketNumber, &t.OrderID, &t.FirstName, &t.LastName, &t.Email,
		&affiliation, &country, &t.TicketType, &addOnsRaw, &t.Credential, &status,
		&checkedInAt, &checkedInBy, &device, &location,
		&emailSentAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.TicketStatus(status)
	t.Affiliation = nullStr(affiliation)
	t.Country = nullStr(country)
	t.CheckedInBy = nullStr(checkedInBy)
	t.CheckInDevice = nullStr(device)
	t.CheckInLocation = nullStr(location)
	t.CheckedInAt = nullTime(checkedInAt)
	t.EmailSentAt = nullTime(emailSentAt)
	if len(addOnsRaw) > 0 {
		if err := json.Unmarshal(addOnsRaw, &t.AddOns); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	ts := v.Time.UTC()
	return &ts
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
