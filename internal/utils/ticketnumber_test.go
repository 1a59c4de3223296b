package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicketNumberFormat(t *testing.T) {
	n, err := NewTicketNumber("EVT-2026")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(n, "EVT-2026-"), "got %q", n)
	suffix := strings.TrimPrefix(n, "EVT-2026-")
	assert.Len(t, suffix, 8)
	for _, r := range suffix {
		assert.Contains(t, ticketCharset, string(r))
	}
}

func TestNewTicketNumberVariesAcrossCalls(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		n, err := NewTicketNumber("EVT-2026")
		require.NoError(t, err)
		seen[n] = struct{}{}
	}
	// The timestamp part is shared within a run, so the random suffix
	// must carry the entropy.
	assert.Greater(t, len(seen), 190)
}
