package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertContactCreatesWhenMissing(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.Equal(t, "testdb", r.Header.Get("X-Odoo-Database"))

		switch r.URL.Path {
		case "/json/2/res.partner.category/search":
			_ = json.NewEncoder(w).Encode([]int64{7})
		case "/json/2/res.partner/search":
			_ = json.NewEncoder(w).Encode([]int64{})
		case "/json/2/res.partner/create":
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			vals := req["vals_list"].([]any)[0].(map[string]any)
			assert.Equal(t, "Ada Lovelace", vals["name"])
			assert.Equal(t, "ada@example.org", vals["email"])
			_ = json.NewEncoder(w).Encode([]int64{42})
		default:
			t.Fatalf("unexpected call %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "testdb", "key")
	id, err := c.UpsertContact(context.Background(), Contact{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.org",
		TicketType:    "Full Conference",
		TicketPrice:   decimal.NewFromInt(350),
		Currency:      "EUR",
		OrderID:       "ord-1",
		PaymentStatus: "completed",
		Tags:          []string{"Gala Dinner"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Contains(t, calls, "/json/2/res.partner/create")
}

func TestUpsertContactUpdatesExisting(t *testing.T) {
	var wroteIDs []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json/2/res.partner/search":
			_ = json.NewEncoder(w).Encode([]int64{13})
		case "/json/2/res.partner/write":
			var req struct {
				IDs []int64 `json:"ids"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			wroteIDs = req.IDs
			_ = json.NewEncoder(w).Encode(true)
		default:
			t.Fatalf("unexpected call %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "testdb", "key")
	id, err := c.UpsertContact(context.Background(), Contact{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org",
		TicketPrice: decimal.Zero, PaymentStatus: "failed",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13), id)
	assert.Equal(t, []int64{13}, wroteIDs)
}

func TestUpsertContactDisabledClientIsNoop(t *testing.T) {
	c := NewClient("http://odoo.invalid", "db", "")
	id, err := c.UpsertContact(context.Background(), Contact{Email: "x@example.org", TicketPrice: decimal.Zero})
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.False(t, c.Enabled())
}
