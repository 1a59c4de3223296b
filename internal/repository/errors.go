// Package repository implements the persistence contracts over MySQL.
// This file defines sentinel errors shared across repositories so that
// services and handlers can distinguish failure scenarios with
// errors.Is instead of string matching.  State conflicts that are
// expected operational outcomes (already checked in, not admissible)
// are NOT errors here; they are reported as result values by the
// service layer.
package repository

import "errors"

// ErrTicketNotFound is returned when no ticket row matches the lookup.
// Handlers translate this into the ticket_not_found result so operators
// can tell a valid-looking credential for an unknown ticket apart from
// a forged one.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrOrderNotFound is returned when an order id does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ErrPaymentNotFound is returned when no payment row matches a provider
// checkout id.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrDuplicateOrder is returned when inserting a ticket for an order
// that already has one.  The unique key on tickets.order_id is the
// issuance idempotency guard; callers resolve the conflict by loading
// the existing ticket rather than failing.
var ErrDuplicateOrder = errors.New("order already has a ticket")

// ErrEmailExists is returned when creating an operator with an email
// that is already registered.
var ErrEmailExists = errors.New("email already exists")
