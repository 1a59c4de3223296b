// Package crm talks to the Odoo JSON-2 API.  The core treats the CRM as
// a best-effort collaborator: upserts are keyed by holder email so they
// are safe to repeat, and failures are logged by callers instead of
// failing the checkout.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Contact carries everything the CRM needs about one registration.
type Contact struct {
	FirstName     string
	LastName      string
	Email         string
	Affiliation   *string
	Country       *string
	TicketType    string
	TicketPrice   decimal.Decimal
	Currency      string
	OrderID       string
	PaymentStatus string
	Tags          []string
	AddOns        []string
}

// Client calls Odoo's JSON-2 endpoints: parameters go directly in the
// request body and the response is the raw result, with no jsonrpc
// envelope.
type Client struct {
	baseURL  string
	database string
	apiKey   string
	hc       *http.Client
}

// NewClient returns an Odoo client.  An empty apiKey yields a disabled
// client whose UpsertContact is a logged no-op.
func NewClient(baseURL, database, apiKey string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		database: database,
		apiKey:   apiKey,
		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Enabled reports whether CRM credentials are configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// call performs one JSON-2 API call: POST {base}/json/2/{model}/{method}.
func (c *Client) call(ctx context.Context, model, method string, params map[string]any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/json/2/%s/%s", c.baseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Odoo-Database", c.database)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("odoo %s/%s: %w", model, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("odoo %s/%s: read body: %w", model, method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("odoo %s/%s: status %d", model, method, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("odoo %s/%s: decode: %w", model, method, err)
		}
	}
	return nil
}

// categoryIDs resolves tag names to res.partner.category ids, creating
// missing categories.  Failures on individual tags are logged and the
// tag skipped; categorization never blocks the upsert itself.
func (c *Client) categoryIDs(ctx context.Context, tags []string) []int64 {
	var ids []int64
	for _, tag := range tags {
		var existing []int64
		err := c.call(ctx, "res.partner.category", "search", map[string]any{
			"domain": []any{[]any{"name", "=", tag}},
			"limit":  1,
		}, &existing)
		if err != nil {
			log.Printf("[Odoo] category search %q: %v", tag, err)
			continue
		}
		if len(existing) > 0 {
			ids = append(ids, existing[0])
			continue
		}
		var created []int64
		err = c.call(ctx, "res.partner.category", "create", map[string]any{
			"vals_list": []map[string]any{{"name": tag}},
		}, &created)
		if err != nil || len(created) == 0 {
			log.Printf("[Odoo] category create %q: %v", tag, err)
			continue
		}
		ids = append(ids, created[0])
	}
	return ids
}

// UpsertContact creates or updates the res.partner for a holder, keyed
// by email, and returns the partner id.  Calling it again with the same
// email updates the existing contact, so repeated notifications for one
// order converge on the same CRM state.
func (c *Client) UpsertContact(ctx context.Context, contact Contact) (int64, error) {
	if !c.Enabled() {
		log.Printf("[Odoo] not configured, skipping contact upsert for %s", contact.Email)
		return 0, nil
	}

	vals := map[string]any{
		"name":  strings.TrimSpace(contact.FirstName + " " + contact.LastName),
		"email": contact.Email,
		"comment": fmt.Sprintf("Order %s | %s | %s %s | payment %s | add-ons: %s",
			contact.OrderID, contact.TicketType,
			contact.TicketPrice.StringFixed(2), contact.Currency,
			contact.PaymentStatus, strings.Join(contact.AddOns, ", ")),
	}
	if contact.Affiliation != nil {
		vals["company_name"] = *contact.Affiliation
	}
	if ids := c.categoryIDs(ctx, contact.Tags); len(ids) > 0 {
		// Odoo many2many write command: replace the category set.
		vals["category_id"] = []any{[]any{6, 0, ids}}
	}

	var existing []int64
	err := c.call(ctx, "res.partner", "search", map[string]any{
		"domain": []any{[]any{"email", "=", contact.Email}},
		"limit":  1,
	}, &existing)
	if err != nil {
		return 0, err
	}

	if len(existing) > 0 {
		partnerID := existing[0]
		err := c.call(ctx, "res.partner", "write", map[string]any{
			"ids":  []int64{partnerID},
			"vals": vals,
		}, nil)
		if err != nil {
			return 0, err
		}
		log.Printf("[Odoo] updated contact %d for %s (payment %s)", partnerID, contact.Email, contact.PaymentStatus)
		return partnerID, nil
	}

	var created []int64
	err = c.call(ctx, "res.partner", "create", map[string]any{
		"vals_list": []map[string]any{vals},
	}, &created)
	if err != nil {
		return 0, err
	}
	if len(created) == 0 {
		return 0, fmt.Errorf("odoo: create returned no partner id")
	}
	log.Printf("[Odoo] created contact %d for %s (payment %s)", created[0], contact.Email, contact.PaymentStatus)
	return created[0], nil
}
