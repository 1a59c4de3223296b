package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/monitoring"
	"github.com/evhub/conference-ticketing/internal/queue"
	"github.com/evhub/conference-ticketing/internal/repository"
	"github.com/evhub/conference-ticketing/internal/utils"
)

// IssuerStore is the slice of the ticket store issuance needs.
type IssuerStore interface {
	GetByOrderID(ctx context.Context, orderID string) (*model.Ticket, error)
	Create(ctx context.Context, t *model.Ticket) error
}

// Signer is the credential codec seen from the issuer.
type Signer interface {
	Sign(ticketID, ticketNumber string) (string, error)
}

// Publisher hands a freshly issued ticket to the delivery pipeline.
type Publisher func(ctx context.Context, event queue.TicketIssuedEvent) error

// TicketIssuer mints tickets for paid orders.  Issuance is idempotent
// per order: the unique key on tickets.order_id is the guard, and a
// conflict resolves to the existing ticket rather than an error, so the
// reconciler and the manual re-issue path can both call Issue freely.
type TicketIssuer struct {
	store   IssuerStore
	codec   Signer
	publish Publisher
	prefix  string
}

// NewTicketIssuer constructs the issuer.  publish may be nil when no
// delivery pipeline is wired (tests, one-off tooling).
func NewTicketIssuer(store IssuerStore, codec Signer, publish Publisher, prefix string) *TicketIssuer {
	return &TicketIssuer{store: store, codec: codec, publish: publish, prefix: prefix}
}

// Issue returns the ticket for an order, creating it if needed.  created
// reports whether this call minted the ticket.  The ticket row and its
// signed credential are persisted first; the delivery event is published
// afterwards and its failure is logged, not returned — delivery is
// retried out of band and never rolls back issuance.
func (i *TicketIssuer) Issue(ctx context.Context, order *model.Order) (t *model.Ticket, created bool, err error) {
	existing, err := i.store.GetByOrderID(ctx, order.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrTicketNotFound) {
		return nil, false, err
	}

	number, err := utils.NewTicketNumber(i.prefix)
	if err != nil {
		return nil, false, fmt.Errorf("generate ticket number: %w", err)
	}
	id := uuid.NewString()
	cred, err := i.codec.Sign(id, number)
	if err != nil {
		return nil, false, err
	}

	ticket := &model.Ticket{
		ID:           id,
		TicketNumber: number,
		OrderID:      order.ID,
		FirstName:    order.FirstName,
		LastName:     order.LastName,
		Email:        order.Email,
		Affiliation:  order.Affiliation,
		Country:      order.Country,
		TicketType:   order.TicketType,
		AddOns:       order.AddOns,
		Credential:   cred,
		Status:       model.TicketStatusValid,
		CreatedAt:    time.Now().UTC(),
	}
	if err := i.store.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			// Another issuer call won; theirs is the ticket.
			existing, err := i.store.GetByOrderID(ctx, order.ID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	monitoring.RecordTicketIssued()
	log.Printf("[Issuer] created ticket %s (%s) for order %s", ticket.TicketNumber, ticket.ID, order.ID)

	if i.publish != nil {
		ev := queue.TicketIssuedEvent{
			TicketID:     ticket.ID,
			TicketNumber: ticket.TicketNumber,
			OrderID:      ticket.OrderID,
			FirstName:    ticket.FirstName,
			LastName:     ticket.LastName,
			Email:        ticket.Email,
			TicketType:   ticket.TicketType,
			AddOns:       ticket.AddOns,
			Credential:   ticket.Credential,
			IssuedAt:     ticket.CreatedAt.Format(time.RFC3339),
		}
		if err := i.publish(ctx, ev); err != nil {
			log.Printf("[Issuer] publish ticket.issued for %s failed: %v", ticket.ID, err)
		}
	}
	return ticket, true, nil
}
