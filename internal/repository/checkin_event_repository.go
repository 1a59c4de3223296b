package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/evhub/conference-ticketing/internal/model"
)

// CheckInEventRepo reads the append-only ticket_check_ins audit trail.
// Writes go through the ticket state transitions (see TicketRepo) so an
// audit row can never exist without its state change; this repo only
// exposes history lookups.
type CheckInEventRepo struct {
	db *sql.DB
}

// NewCheckInEventRepo returns a CheckInEventRepo bound to the given database.
func NewCheckInEventRepo(db *sql.DB) *CheckInEventRepo { return &CheckInEventRepo{db: db} }

// ListByTicket returns all audit events for a ticket, oldest first.
func (r *CheckInEventRepo) ListByTicket(ctx context.Context, ticketID string) ([]model.CheckInEvent, error) {
	const q = `SELECT id, ticket_id, action, performed_by, device_info, location, created_at
		FROM ticket_check_ins WHERE ticket_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CheckInEvent
	for rows.Next() {
		var (
			ev       model.CheckInEvent
			action   string
			by       sql.NullString
			device   sql.NullString
			location sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.TicketID, &action, &by, &device, &location, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Action = model.CheckInAction(action)
		ev.PerformedBy = nullStr(by)
		ev.DeviceInfo = nullStr(device)
		ev.Location = nullStr(location)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// appendCheckInEventTx inserts one audit row inside the transaction that
// performs the matching ticket state change.
func appendCheckInEventTx(ctx context.Context, tx *sql.Tx, ticketID string, action model.CheckInAction, by, device, location *string, at time.Time) error {
	const q = `INSERT INTO ticket_check_ins (ticket_id, action, performed_by, device_info, location, created_at)
		VALUES (?,?,?,?,?,?)`
	_, err := tx.ExecContext(ctx, q, ticketID, string(action), by, device, location, at)
	return err
}
