package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/repository"
)

const (
	statsCacheKey = "stats:tickets"
	statsCacheTTL = 10 * time.Second
)

// StatsCollector is the aggregate query behind the dashboard.
type StatsCollector interface {
	CollectStats(ctx context.Context) (*repository.Stats, error)
}

// StatsHandler serves the check-in progress dashboard.  The aggregate is
// computed from the database on demand and cached briefly in Redis; the
// dashboard polls every few seconds from several screens at once and the
// numbers may lag by the cache TTL.
type StatsHandler struct {
	Tickets StatsCollector
	RDB     *redis.Client // nil disables caching
}

func NewStatsHandler(tickets StatsCollector, rdb *redis.Client) *StatsHandler {
	return &StatsHandler{Tickets: tickets, RDB: rdb}
}

type statsResp struct {
	Total     int          `json:"total"`
	CheckedIn int          `json:"checked_in"`
	Pending   int          `json:"pending"`
	Checked   []ticketResp `json:"checked"`
	Unchecked []ticketResp `json:"unchecked"`
}

// Get returns ticket totals plus the checked and unchecked lists.
func (h *StatsHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if h.RDB != nil {
		if raw, err := h.RDB.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var cached statsResp
			if json.Unmarshal(raw, &cached) == nil {
				return c.JSON(http.StatusOK, cached)
			}
		}
	}

	st, err := h.Tickets.CollectStats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stats failed"})
	}
	resp := statsResp{
		Total:     st.Total,
		CheckedIn: st.CheckedIn,
		Pending:   st.Pending,
		Checked:   toTicketList(st.Checked),
		Unchecked: toTicketList(st.Unchecked),
	}

	if h.RDB != nil {
		if raw, err := json.Marshal(resp); err == nil {
			h.RDB.Set(ctx, statsCacheKey, raw, statsCacheTTL)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func toTicketList(ts []model.Ticket) []ticketResp {
	out := make([]ticketResp, 0, len(ts))
	for i := range ts {
		out = append(out, toTicketResp(&ts[i]))
	}
	return out
}
