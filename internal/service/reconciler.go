package service

import (
	"context"
	"log"
	"time"

	"github.com/evhub/conference-ticketing/internal/crm"
	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/monitoring"
	"github.com/evhub/conference-ticketing/internal/payment"
)

// ReconcileTrigger names who asked for reconciliation.  The two triggers
// carry different evidence but are handled identically: neither is
// trusted, both cause a fresh authoritative provider query.
type ReconcileTrigger string

const (
	TriggerConfirm ReconcileTrigger = "confirm"
	TriggerWebhook ReconcileTrigger = "webhook"
)

// ReconcileOutcome is the closed set of reconciliation results.
type ReconcileOutcome string

const (
	// ReconcileCompleted: this call performed the pending → completed
	// transition, issued the ticket and notified the CRM.
	ReconcileCompleted ReconcileOutcome = "completed"
	// ReconcileFailed: this call performed the pending → failed transition.
	ReconcileFailed ReconcileOutcome = "failed"
	// ReconcileAlreadyProcessed: the payment was already terminal; no side
	// effects were repeated.
	ReconcileAlreadyProcessed ReconcileOutcome = "already_processed"
	// ReconcileRetry: the authoritative status is unknown (provider down or
	// payment still pending there); nothing changed, call again later.
	ReconcileRetry ReconcileOutcome = "retry"
)

// ReconcileResult reports what a reconciliation call did.
type ReconcileResult struct {
	Outcome       ReconcileOutcome
	PaymentStatus model.PaymentStatus
	Ticket        *model.Ticket
}

// PaymentStore is the payments slice of the store.  Transition is the
// single serialization point for an order's payment status: it locks the
// row, re-checks the pending precondition and applies payment and order
// updates atomically.
type PaymentStore interface {
	GetByCheckoutID(ctx context.Context, checkoutID string) (*model.Payment, error)
	Transition(ctx context.Context, checkoutID string, status model.PaymentStatus, transactionID string, at time.Time) (bool, *model.Payment, error)
}

// OrderStore loads orders for side-effect fan-out.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*model.Order, error)
}

// ProviderClient queries the payment provider's authoritative state.
type ProviderClient interface {
	GetCheckout(ctx context.Context, checkoutID string) (*payment.Checkout, error)
}

// ContactUpserter pushes registration state to the CRM.  Upserts are
// keyed by holder email on the CRM side, so repeating one is safe.
type ContactUpserter interface {
	UpsertContact(ctx context.Context, contact crm.Contact) (int64, error)
}

// Issuer mints the ticket once an order is paid.
type Issuer interface {
	Issue(ctx context.Context, order *model.Order) (*model.Ticket, bool, error)
}

// PaymentReconciler merges the browser confirm call and the provider
// webhook into one consistent payment state.  Both triggers may fire
// concurrently and each may repeat; the store's row lock picks a single
// writer and everyone else observes that writer's result.
type PaymentReconciler struct {
	payments PaymentStore
	orders   OrderStore
	provider ProviderClient
	issuer   Issuer
	crm      ContactUpserter
	now      func() time.Time
}

// NewPaymentReconciler constructs the reconciler.  crm may be nil when
// no CRM is configured.
func NewPaymentReconciler(payments PaymentStore, orders OrderStore, provider ProviderClient, issuer Issuer, crmClient ContactUpserter) *PaymentReconciler {
	return &PaymentReconciler{
		payments: payments,
		orders:   orders,
		provider: provider,
		issuer:   issuer,
		crm:      crmClient,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile drives a checkout to its terminal payment state.  The
// caller-claimed status never matters: the provider is re-queried every
// time a transition might happen, so a forged "success" POST cannot mark
// an order paid.  Repeat calls with the payment already terminal are
// no-ops apart from healing a missing ticket, which keeps issuance
// exactly-once even if an earlier call crashed between the status commit
// and the ticket insert.
func (r *PaymentReconciler) Reconcile(ctx context.Context, checkoutID string, trigger ReconcileTrigger) (*ReconcileResult, error) {
	p, err := r.payments.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		monitoring.RecordReconcile(string(trigger), string(ReconcileAlreadyProcessed))
		return r.alreadyProcessed(ctx, p)
	}

	chk, err := r.provider.GetCheckout(ctx, checkoutID)
	if err != nil {
		// Status unknown is not failure; leave the row pending and let the
		// provider redeliver or the browser retry.
		log.Printf("[Reconcile] provider query for %s failed: %v", checkoutID, err)
		monitoring.RecordReconcile(string(trigger), string(ReconcileRetry))
		return &ReconcileResult{Outcome: ReconcileRetry, PaymentStatus: p.Status}, nil
	}

	var target model.PaymentStatus
	switch chk.Status {
	case payment.StatusPaid:
		target = model.PaymentStatusCompleted
	case payment.StatusPending:
		monitoring.RecordReconcile(string(trigger), string(ReconcileRetry))
		return &ReconcileResult{Outcome: ReconcileRetry, PaymentStatus: p.Status}, nil
	default:
		target = model.PaymentStatusFailed
	}

	applied, p, err := r.payments.Transition(ctx, checkoutID, target, chk.TransactionID, r.now())
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent confirm/webhook won the row lock.
		monitoring.RecordReconcile(string(trigger), string(ReconcileAlreadyProcessed))
		return r.alreadyProcessed(ctx, p)
	}

	order, err := r.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}

	if target == model.PaymentStatusCompleted {
		ticket, _, err := r.issuer.Issue(ctx, order)
		if err != nil {
			// The payment is committed; issuance will be healed by the next
			// reconcile call or the manual re-issue path.
			log.Printf("[Reconcile] ticket issuance for order %s failed: %v", order.ID, err)
		}
		r.notifyCRM(ctx, order, model.PaymentStatusCompleted)
		monitoring.RecordReconcile(string(trigger), string(ReconcileCompleted))
		return &ReconcileResult{Outcome: ReconcileCompleted, PaymentStatus: p.Status, Ticket: ticket}, nil
	}

	r.notifyCRM(ctx, order, model.PaymentStatusFailed)
	monitoring.RecordReconcile(string(trigger), string(ReconcileFailed))
	return &ReconcileResult{Outcome: ReconcileFailed, PaymentStatus: p.Status}, nil
}

// alreadyProcessed reports a terminal payment without repeating side
// effects.  For completed payments it still calls the idempotent issuer
// so a ticket lost to an earlier crash gets minted.
func (r *PaymentReconciler) alreadyProcessed(ctx context.Context, p *model.Payment) (*ReconcileResult, error) {
	res := &ReconcileResult{Outcome: ReconcileAlreadyProcessed, PaymentStatus: p.Status}
	if p.Status != model.PaymentStatusCompleted {
		return res, nil
	}
	order, err := r.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	ticket, created, err := r.issuer.Issue(ctx, order)
	if err != nil {
		log.Printf("[Reconcile] ticket lookup for order %s failed: %v", order.ID, err)
		return res, nil
	}
	if created {
		log.Printf("[Reconcile] healed missing ticket %s for completed order %s", ticket.ID, order.ID)
	}
	res.Ticket = ticket
	return res, nil
}

// notifyCRM pushes the final registration state.  The upsert is
// idempotent on the CRM side, so it is retried a few times with backoff;
// permanent failure is logged and never propagates, per the checkout
// contract.
func (r *PaymentReconciler) notifyCRM(ctx context.Context, order *model.Order, status model.PaymentStatus) {
	if r.crm == nil {
		return
	}
	contact := crm.Contact{
		FirstName:     order.FirstName,
		LastName:      order.LastName,
		Email:         order.Email,
		Affiliation:   order.Affiliation,
		Country:       order.Country,
		TicketType:    order.TicketType,
		TicketPrice:   order.Amount,
		Currency:      order.Currency,
		OrderID:       order.ID,
		PaymentStatus: string(status),
		Tags:          order.Tags,
		AddOns:        order.AddOns,
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				log.Printf("[Reconcile] CRM upsert for order %s abandoned: %v", order.ID, ctx.Err())
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if _, err := r.crm.UpsertContact(ctx, contact); err != nil {
			lastErr = err
			continue
		}
		return
	}
	log.Printf("[Reconcile] CRM upsert for order %s failed after retries: %v", order.ID, lastErr)
}
