// Package credential signs and verifies the compact token embedded in a
// ticket's QR code.  The codec is a pure function over its inputs: it
// never touches storage and is safe for concurrent use.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned by Verify for any token that cannot be
// trusted: bad signature, wrong algorithm, wrong issuer, or a malformed
// claim set.  Callers must not distinguish these cases to the scanner —
// a forged token and a garbled one look the same at the door.
var ErrInvalidCredential = errors.New("invalid credential")

// Claims is the verified content of a credential.
type Claims struct {
	TicketID     string
	TicketNumber string
	IssuedAt     time.Time
}

// Codec signs and verifies credentials with a symmetric secret held only
// by this service.
type Codec struct {
	secret []byte
	issuer string
}

// NewCodec returns a Codec signing with the given secret and issuer tag.
func NewCodec(secret, issuer string) *Codec {
	return &Codec{secret: []byte(secret), issuer: issuer}
}

// Sign produces an HS256 token carrying the ticket id (tid), ticket
// number (tn), issued-at and issuer claims.  The resulting string is the
// QR payload stored verbatim on the ticket row.
func (c *Codec) Sign(ticketID, ticketNumber string) (string, error) {
	claims := jwt.MapClaims{
		"tid": ticketID,
		"tn":  ticketNumber,
		"iat": time.Now().UTC().Unix(),
		"iss": c.issuer,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and shape and returns its claims.
// Only HMAC-signed tokens are accepted; a token signed with any other
// algorithm is rejected even if its signature would otherwise validate,
// which closes the usual algorithm-confusion hole.  Verify performs no
// database lookup — whether the ticket still exists or is admissible is
// the check-in engine's concern.
func (c *Codec) Verify(token string) (Claims, error) {
	tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidCredential
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidCredential
	}
	if iss, _ := mc["iss"].(string); iss != c.issuer {
		return Claims{}, ErrInvalidCredential
	}
	tid, _ := mc["tid"].(string)
	tn, _ := mc["tn"].(string)
	if tid == "" || tn == "" {
		return Claims{}, ErrInvalidCredential
	}
	out := Claims{TicketID: tid, TicketNumber: tn}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time.UTC()
	}
	return out, nil
}
