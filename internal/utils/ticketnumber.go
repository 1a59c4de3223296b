package utils

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// base36 digits used for the random suffix of a ticket number.
const ticketCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewTicketNumber generates a short human-typeable ticket code of the
// form PREFIX-TTTTRRRR, where TTTT is the tail of the current unix
// millisecond timestamp in base36 and RRRR is random.  The timestamp
// part keeps codes roughly sortable for support staff; uniqueness is
// still enforced by the database, not by this generator.
func NewTicketNumber(prefix string) (string, error) {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	if len(ts) > 4 {
		ts = ts[len(ts)-4:]
	}
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = ticketCharset[int(buf[i])%len(ticketCharset)]
	}
	return fmt.Sprintf("%s-%s%s", prefix, ts, buf), nil
}
