package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/updown/internal/archive"
	"github.com/betbot/updown/internal/domain"
	"github.com/betbot/updown/internal/events"
	"github.com/betbot/updown/internal/lifecycle"
	"github.com/betbot/updown/internal/risk"
)

type fakeSource struct {
	status      lifecycle.Status
	ok          bool
	settlements []events.SettlementEvent
}

func (f *fakeSource) Status() (lifecycle.Status, bool)            { return f.status, f.ok }
func (f *fakeSource) RecentSettlements() []events.SettlementEvent { return f.settlements }

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := New(Config{}, &fakeSource{}, nil, nil)
	w := doGet(t, srv.Router(), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	src := &fakeSource{
		status: lifecycle.Status{
			Slug:         "bitcoin-up-or-down-1765980000",
			StartPrice:   decimal.NewFromInt(99500),
			UpAskCents:   56,
			DownAskCents: 44,
			Strategies:   []string{"gridhedge"},
		},
		ok: true,
	}
	srv := New(Config{}, src, nil, nil)

	w := doGet(t, srv.Router(), "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "bitcoin-up-or-down-1765980000", got["slug"])
	assert.Equal(t, float64(56), got["up_ask_cents"])
	assert.Equal(t, []interface{}{"gridhedge"}, got["strategies"])

	// 无活跃合约时返回 503
	src.ok = false
	w = doGet(t, srv.Router(), "/api/status")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSettlementsEndpoint(t *testing.T) {
	src := &fakeSource{
		settlements: []events.SettlementEvent{
			{
				Strategy: "gridhedge",
				Settlement: domain.Settlement{
					MarketSlug:  "bitcoin-up-or-down-1765980000",
					Winner:      domain.TokenTypeUp,
					Entries:     3,
					ProfitCents: 12.5,
				},
				Timestamp: time.Now(),
			},
		},
	}
	srv := New(Config{}, src, nil, nil)

	w := doGet(t, srv.Router(), "/api/settlements")
	require.Equal(t, http.StatusOK, w.Code)

	var got []events.SettlementEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "gridhedge", got[0].Strategy)
	assert.Equal(t, 3, got[0].Settlement.Entries)
}

func TestTicksEndpoint(t *testing.T) {
	store, err := archive.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := domain.TickRecord{
		Slug:      "bitcoin-up-or-down-1765980000",
		Symbol:    "btc",
		Timeframe: "15m",
		At:        time.Date(2025, 12, 17, 14, 1, 0, 0, time.UTC),
		UpCents:   55,
		DownCents: 45,
	}
	require.NoError(t, store.WriteTick(context.Background(), rec))

	srv := New(Config{}, &fakeSource{}, store, nil)
	w := doGet(t, srv.Router(), "/api/ticks/bitcoin-up-or-down-1765980000")
	require.Equal(t, http.StatusOK, w.Code)

	var got []domain.TickRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 55, got[0].UpCents)

	// 未配置归档时返回 404
	srv = New(Config{}, &fakeSource{}, nil, nil)
	w = doGet(t, srv.Router(), "/api/ticks/whatever")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBreakerEndpoints(t *testing.T) {
	breaker := risk.New(risk.Config{})
	srv := New(Config{}, &fakeSource{}, nil, breaker)
	router := srv.Router()

	w := doGet(t, router, "/api/breaker")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"open":false}`, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/breaker/halt", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, breaker.Open())

	req = httptest.NewRequest(http.MethodPost, "/api/breaker/resume", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, breaker.Open())

	// 未配置熔断器时返回 404
	srv = New(Config{}, &fakeSource{}, nil, nil)
	w = doGet(t, srv.Router(), "/api/breaker")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
