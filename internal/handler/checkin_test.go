package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhub/conference-ticketing/internal/credential"
	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/repository"
	"github.com/evhub/conference-ticketing/internal/service"
)

// memStore is just enough of the ticket store for handler tests.
type memStore struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket
}

func (s *memStore) GetByID(_ context.Context, id string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) MarkCheckedIn(_ context.Context, id string, by, device, location *string, at time.Time) (bool, error) {
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
	return true, nil
}

func (s *memStore) UndoCheckIn(_ context.Context, id string, by *string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Status != model.TicketStatusUsed {
		return false, nil
	}
	t.Status = model.TicketStatusValid
	t.CheckedInAt = nil
	return true, nil
}

func newCheckInFixture(t *testing.T) (*CheckInHandler, *memStore, string) {
	t.Helper()
	codec := credential.NewCodec("handler-secret", "conference-tickets")
	cred, err := codec.Sign("tic-1", "EVT-2026-ABCD1234")
	require.NoError(t, err)

	store := &memStore{tickets: map[string]*model.Ticket{
		"tic-1": {
			ID:           "tic-1",
			TicketNumber: "EVT-2026-ABCD1234",
			OrderID:      "ord-1",
			FirstName:    "Grace",
			LastName:     "Hopper",
			Email:        "grace@example.org",
			TicketType:   "Full Conference",
			Status:       model.TicketStatusValid,
			CreatedAt:    time.Now().UTC(),
		},
	}}
	return NewCheckInHandler(service.NewCheckInEngine(store, codec)), store, cred
}

func doJSON(t *testing.T, h echo.HandlerFunc, body string, set func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if set != nil {
		set(c)
	}
	require.NoError(t, h(c))
	return rec
}

func TestCheckInHandlerSuccess(t *testing.T) {
	h, store, cred := newCheckInFixture(t)

	rec := doJSON(t, h.CheckIn, `{"qr_data":"`+cred+`","device_info":"gate-1"}`, func(c echo.Context) {
		c.Set("email", "staff@example.org")
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var res service.CheckInResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, service.OutcomeSuccess, res.Outcome)
	require.NotNil(t, res.Ticket)
	assert.Equal(t, "EVT-2026-ABCD1234", res.Ticket.TicketNumber)

	stored := store.tickets["tic-1"]
	assert.Equal(t, model.TicketStatusUsed, stored.Status)
	require.NotNil(t, stored.CheckedInBy)
	assert.Equal(t, "staff@example.org", *stored.CheckedInBy)
}

func TestCheckInHandlerDuplicateScan(t *testing.T) {
	h, _, cred := newCheckInFixture(t)

	doJSON(t, h.CheckIn, `{"qr_data":"`+cred+`"}`, nil)
	rec := doJSON(t, h.CheckIn, `{"qr_data":"`+cred+`"}`, nil)

	// A conflict is still a 200; the outcome carries the state.
	require.Equal(t, http.StatusOK, rec.Code)
	var res service.CheckInResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, service.OutcomeAlreadyCheckedIn, res.Outcome)
	assert.True(t, res.AlreadyCheckedIn)
}

func TestCheckInHandlerInvalidCredential(t *testing.T) {
	h, store, _ := newCheckInFixture(t)

	rec := doJSON(t, h.CheckIn, `{"qr_data":"not-a-jwt"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var res service.CheckInResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, service.OutcomeInvalidCredential, res.Outcome)
	assert.Equal(t, model.TicketStatusValid, store.tickets["tic-1"].Status)
}

func TestCheckInHandlerMissingBody(t *testing.T) {
	h, _, _ := newCheckInFixture(t)

	rec := doJSON(t, h.CheckIn, `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateHandlerDoesNotConsume(t *testing.T) {
	h, store, cred := newCheckInFixture(t)

	rec := doJSON(t, h.Validate, `{"qr_data":"`+cred+`"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var res service.CheckInResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, service.OutcomeSuccess, res.Outcome)
	assert.Equal(t, model.TicketStatusValid, store.tickets["tic-1"].Status)
}

func TestUndoHandler(t *testing.T) {
	h, store, cred := newCheckInFixture(t)
	doJSON(t, h.CheckIn, `{"qr_data":"`+cred+`"}`, nil)
	require.Equal(t, model.TicketStatusUsed, store.tickets["tic-1"].Status)

	rec := doJSON(t, h.Undo, `{"ticket_id":"tic-1"}`, func(c echo.Context) {
		c.Set("email", "admin@example.org")
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TicketStatusValid, store.tickets["tic-1"].Status)
}
