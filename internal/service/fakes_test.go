package service

import (
	"context"
	"sync"
	"time"

	"github.com/evhub/conference-ticketing/internal/crm"
	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/payment"
	"github.com/evhub/conference-ticketing/internal/repository"
)

// fakeTicketStore is an in-memory Ticket Store with the same atomicity
// guarantees as the MySQL implementation: conditional transitions under
// one lock, audit rows appended with the state change.
type fakeTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket
	events  []model.CheckInEvent
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{tickets: make(map[string]*model.Ticket)}
}

func (s *fakeTicketStore) put(t *model.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tickets[t.ID] = &cp
}

func (s *fakeTicketStore) GetByID(_ context.Context, id string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTicketStore) GetByOrderID(_ context.Context, orderID string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.OrderID == orderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrTicketNotFound
}

func (s *fakeTicketStore) Create(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.OrderID == t.OrderID {
			return repository.ErrDuplicateOrder
		}
	}
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *fakeTicketStore) MarkCheckedIn(_ context.Context, id string, by, device, location *string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Status != model.TicketStatusValid {
		return false, nil
	}
	t.Status = model.TicketStatusUsed
	t.CheckedInAt = &at
	t.CheckedInBy = by
	t.CheckInDevice = device
	t.CheckInLocation = location
	s.events = append(s.events, model.CheckInEvent{
		TicketID: id, Action: model.ActionCheckIn,
		PerformedBy: by, DeviceInfo: device, Location: location, CreatedAt: at,
	})
	return true, nil
}

func (s *fakeTicketStore) UndoCheckIn(_ context.Context, id string, by *string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Status != model.TicketStatusUsed {
		return false, nil
	}
	t.Status = model.TicketStatusValid
	t.CheckedInAt = nil
	t.CheckedInBy = nil
	t.CheckInDevice = nil
	t.CheckInLocation = nil
	s.events = append(s.events, model.CheckInEvent{
		TicketID: id, Action: model.ActionUndoCheckIn, PerformedBy: by, CreatedAt: at,
	})
	return true, nil
}

func (s *fakeTicketStore) eventsFor(id string, action model.CheckInAction) []model.CheckInEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CheckInEvent
	for _, ev := range s.events {
		if ev.TicketID == id && ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

// fakePaymentStore mirrors PaymentRepo.Transition: single writer wins
// under the lock, everyone else observes the winner's state.
type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: make(map[string]*model.Payment)}
}

func (s *fakePaymentStore) put(p *model.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.payments[p.ID] = &cp
}

func (s *fakePaymentStore) GetByCheckoutID(_ context.Context, id string) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePaymentStore) Transition(_ context.Context, id string, status model.PaymentStatus, txnID string, at time.Time) (bool, *model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return false, nil, repository.ErrPaymentNotFound
	}
	if p.Status != model.PaymentStatusPending {
		cp := *p
		return false, &cp, nil
	}
	p.Status = status
	if txnID != "" {
		p.TransactionID = &txnID
	}
	if status == model.PaymentStatusCompleted {
		p.ConfirmedAt = &at
	}
	cp := *p
	return true, &cp, nil
}

// fakeOrderStore holds orders by id.
type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*model.Order)}
}

func (s *fakeOrderStore) put(o *model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
}

func (s *fakeOrderStore) GetByID(_ context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// stubProvider returns a canned checkout or error.
type stubProvider struct {
	mu       sync.Mutex
	checkout *payment.Checkout
	err      error
	calls    int
}

func (s *stubProvider) GetCheckout(_ context.Context, _ string) (*payment.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.checkout
	return &cp, nil
}

// countingCRM records every upsert it receives.
type countingCRM struct {
	mu      sync.Mutex
	upserts []crm.Contact
	err     error
}

func (c *countingCRM) UpsertContact(_ context.Context, contact crm.Contact) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.upserts = append(c.upserts, contact)
	return int64(len(c.upserts)), nil
}

func (c *countingCRM) byStatus(status string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, u := range c.upserts {
		if u.PaymentStatus == status {
			n++
		}
	}
	return n
}
