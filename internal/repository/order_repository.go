package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/evhub/conference-ticketing/internal/model"
)

// OrderRepo persists purchase orders.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, first_name, last_name, email, affiliation, country,
	ticket_type, add_ons, tags, amount, currency, status, confirmed_at, created_at, updated_at`

// Create inserts a new order in the pending state.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	addOns, err := json.Marshal(emptyIfNil(o.AddOns))
	if err != nil {
		return err
	}
	tags, err := json.Marshal(emptyIfNil(o.Tags))
	if err != nil {
		return err
	}
	const q = `INSERT INTO orders
		(id, first_name, last_name, email, affiliation, country, ticket_type, add_ons, tags, amount, currency, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, q,
		o.ID, o.FirstName, o.LastName, o.Email, o.Affiliation, o.Country,
		o.TicketType, addOns, tags, o.Amount, o.Currency, string(o.Status))
	return err
}

// GetByID fetches one order.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(s scanner) (*model.Order, error) {
	var (
		o           model.Order
		affiliation sql.NullString
		country     sql.NullString
		addOnsRaw   []byte
		tagsRaw     []byte
		status      string
		confirmedAt sql.NullTime
	)
	err := s.Scan(
		&o.ID, &o.FirstName, &o.LastName, &o.Email, &affiliation, &country,
		&o.TicketType, &addOnsRaw, &tagsRaw, &o.Amount, &o.Currency, &status,
		&confirmedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = model.PaymentStatus(status)
	o.Affiliation = nullStr(affiliation)
	o.Country = nullStr(country)
	o.ConfirmedAt = nullTime(confirmedAt)
	if len(addOnsRaw) > 0 {
		if err := json.Unmarshal(addOnsRaw, &o.AddOns); err != nil {
			return nil, err
		}
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &o.Tags); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

// PaymentRepo persists provider checkout sessions.  The payments row is
// the single serialization point for reconciliation: both the browser
// confirm call and the provider webhook go through Transition, which
// takes a row lock before deciding whether the pending → terminal move
// still applies.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, order_id, checkout_reference, amount, currency, status,
	transaction_id, confirmed_at, created_at, updated_at`

// Create inserts a new pending payment session.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments
		(id, order_id, checkout_reference, amount, currency, status)
		VALUES (?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.OrderID, p.CheckoutReference, p.Amount, p.Currency, string(p.Status))
	return err
}

// GetByCheckoutID fetches the payment for a provider checkout id.
func (r *PaymentRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", checkoutID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Transition applies the pending → status move for a checkout under a
// row lock.  It locks the payments row with SELECT ... FOR UPDATE,
// re-checks the pending precondition, and updates payment and order
// together.  When a concurrent caller already moved the row to a
// terminal state, applied is false and the stored payment is returned
// unchanged so the loser can observe the winner's outcome.  A
// completed → failed (or vice versa) flip can never happen here.
func (r *PaymentRepo) Transition(ctx context.Context, checkoutID string, status model.PaymentStatus, transactionID string, at time.Time) (applied bool, p *model.Payment, err error) {
	if !status.Terminal() {
		return false, nil, errors.New("transition requires a terminal status")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ? FOR UPDATE", checkoutID)
	p, err = scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, ErrPaymentNotFound
	}
	if err != nil {
		return false, nil, err
	}
	if p.Status != model.PaymentStatusPending {
		// Someone else already finished; expose their state and do nothing.
		if err := tx.Commit(); err != nil {
			return false, nil, err
		}
		committed = true
		return false, p, nil
	}

	var confirmedAt *time.Time
	if status == model.PaymentStatusCompleted {
		confirmedAt = &at
	}
	var txnID *string
	if transactionID != "" {
		txnID = &transactionID
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = ?, transaction_id = ?, confirmed_at = ? WHERE id = ?",
		string(status), txnID, confirmedAt, checkoutID); err != nil {
		return false, nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = ?, confirmed_at = ? WHERE id = ?",
		string(status), confirmedAt, p.OrderID); err != nil {
		return false, nil, err
	}
	if err := tx.Commit(); err != nil {
		return false, nil, err
	}
	committed = true

	p.Status = status
	p.TransactionID = txnID
	p.ConfirmedAt = confirmedAt
	return true, p, nil
}

func scanPayment(s scanner) (*model.Payment, error) {
	var (
		p           model.Payment
		status      string
		txnID       sql.NullString
		confirmedAt sql.NullTime
	)
	err := s.Scan(
		&p.ID, &p.OrderID, &p.CheckoutReference, &p.Amount, &p.Currency, &status,
		&txnID, &confirmedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.TransactionID = nullStr(txnID)
	p.ConfirmedAt = nullTime(confirmedAt)
	return &p, nil
}
