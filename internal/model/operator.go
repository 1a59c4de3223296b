package model

import "time"

// Operator is a check-in staff account as stored in the `operators`
// table.  Operators authenticate with email and password and receive a
// short-lived access token; the role controls access to destructive
// actions such as undoing a check-in.
type Operator struct {
	ID           uint64    // operators.id
	Email        string    // operators.email
	PasswordHash string    // operators.password_hash (bcrypt)
	Role         string    // operators.role (ADMIN or STAFF)
	IsActive     bool      // operators.is_active
	CreatedAt    time.Time // operators.created_at
	UpdatedAt    time.Time // operators.updated_at
}
