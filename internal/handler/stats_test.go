package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhub/conference-ticketing/internal/model"
	"github.com/evhub/conference-ticketing/internal/repository"
)

type stubStats struct {
	stats *repository.Stats
	calls int
}

func (s *stubStats) CollectStats(context.Context) (*repository.Stats, error) {
	s.calls++
	return s.stats, nil
}

func sampleStats() *repository.Stats {
	used := time.Date(2026, 9, 14, 9, 30, 0, 0, time.UTC)
	return &repository.Stats{
		Total:     2,
		CheckedIn: 1,
		Pending:   1,
		Checked: []model.Ticket{{
			ID: "tic-1", TicketNumber: "EVT-2026-AAAA1111",
			Status: model.TicketStatusUsed, CheckedInAt: &used,
		}},
		Unchecked: []model.Ticket{{
			ID: "tic-2", TicketNumber: "EVT-2026-BBBB2222",
			Status: model.TicketStatusValid,
		}},
	}
}

func getStats(t *testing.T, h *StatsHandler) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/tickets/stats", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Get(e.NewContext(req, rec)))
	return rec
}

func TestStatsWithoutRedis(t *testing.T) {
	src := &stubStats{stats: sampleStats()}
	h := NewStatsHandler(src, nil)

	rec := getStats(t, h)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.CheckedIn)
	assert.Len(t, resp.Checked, 1)
	assert.Len(t, resp.Unchecked, 1)
	assert.Equal(t, 1, src.calls)
}

func TestStatsCacheMissStoresResult(t *testing.T) {
	src := &stubStats{stats: sampleStats()}
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(statsCacheKey).RedisNil()
	mock.Regexp().ExpectSet(statsCacheKey, `.*`, statsCacheTTL).SetVal("OK")

	rec := getStats(t, NewStatsHandler(src, rdb))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, src.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsCacheHitSkipsQuery(t *testing.T) {
	src := &stubStats{stats: sampleStats()}
	cached, err := json.Marshal(statsResp{Total: 5, CheckedIn: 3, Pending: 2})
	require.NoError(t, err)

	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(statsCacheKey).SetVal(string(cached))

	rec := getStats(t, NewStatsHandler(src, rdb))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 0, src.calls)
}
