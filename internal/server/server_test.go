package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tournament-bot/internal/loop"
	"tournament-bot/internal/metrics"
	"tournament-bot/internal/models"
	"tournament-bot/internal/tournament"
)

const adminID = 999

type FakeSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (f *FakeSender) SendText(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[int64][]string{}
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func (f *FakeSender) To(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[chatID]...)
}

func (f *FakeSender) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, msgs := range f.sent {
		n += len(msgs)
	}
	return n
}

type FakeRegistrants struct {
	mu      sync.Mutex
	rows    []models.Registrant
	clears  int
	listErr error
}

func (f *FakeRegistrants) List(context.Context) ([]models.Registrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Registrant{}, f.rows...), nil
}

func (f *FakeRegistrants) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.rows = nil
	return nil
}

func (f *FakeRegistrants) DataSource() string { return "CSV + Local Cache" }

func (f *FakeRegistrants) Set(rows []models.Registrant, listErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
	f.listErr = listErr
}

func (f *FakeRegistrants) Clears() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

type fixture struct {
	srv     *httptest.Server
	loop    *loop.Loop
	stop    context.CancelFunc
	sender  *FakeSender
	store   *FakeRegistrants
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := loop.New(2*time.Second, logger)
	sender := &FakeSender{}
	store := &FakeRegistrants{}
	m := metrics.New()
	mgr := tournament.New(tournament.Config{AdminID: adminID}, store, sender, l, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	require.Eventually(t, l.Running, time.Second, 5*time.Millisecond)

	s := NewServer(Options{
		AllowedOrigins: []string{"https://dashboard.example.com"},
		ExportSecret:   "secret",
		Location:       time.UTC,
	}, l, mgr, store, m, logger)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &fixture{srv: srv, loop: l, stop: cancel, sender: sender, store: store, metrics: m}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return out
}

func TestGetPlayers(t *testing.T) {
	f := newFixture(t)
	registered := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.store.Set([]models.Registrant{
		{Nickname: "ShadowKiller", PlayerID: "5123456789", AccountID: 111, RegisteredAt: registered},
		{Nickname: "NoTime", PlayerID: "5000000001", AccountID: 112},
	}, nil)

	resp, body := f.get(t, "/api/get_players")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	players := body["players"].([]any)
	require.Len(t, players, 2)
	first := players[0].(map[string]any)
	assert.Equal(t, "ShadowKiller", first["nickname"])
	assert.Equal(t, "5123456789", first["pubg_id"])
	assert.EqualValues(t, 111, first["telegram_id"])
	assert.Equal(t, "2026-05-01T12:00:00Z", first["registration_time"])
	assert.Nil(t, players[1].(map[string]any)["registration_time"])

	assert.Equal(t, false, body["tournament_active"])
	assert.Nil(t, body["tournament_start"])
	assert.EqualValues(t, 0, body["waiting_list_count"])
	assert.Equal(t, "CSV + Local Cache", body["data_source"])
}

func TestGetPlayers_StoreError(t *testing.T) {
	f := newFixture(t)
	f.store.Set(nil, errors.New("sheet unavailable"))

	resp, body := f.get(t, "/api/get_players")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "sheet unavailable")
}

func TestSendLobby_ValidationRejectsBeforeSending(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"one player", `{"lobby_id":"1234567","password":"abcd","players":[{"telegram_id":111,"nickname":"A"}]}`, "at least 2 players"},
		{"short lobby id", `{"lobby_id":"123","password":"abcd","players":[{"telegram_id":1,"nickname":"A"},{"telegram_id":2,"nickname":"B"}]}`, "7 digits"},
		{"short password", `{"lobby_id":"1234567","password":" ab ","players":[{"telegram_id":1,"nickname":"A"},{"telegram_id":2,"nickname":"B"}]}`, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.post(t, "/api/send_lobby", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], tt.want)
		})
	}
	assert.Zero(t, f.sender.Count())

	_, status := f.get(t, "/api/tournament_status")
	assert.Equal(t, false, status["tournament_active"])
}

func TestSendLobby_InvalidJSON(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/send_lobby", `{"lobby_id":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid JSON body", body["error"])
}

func TestSendLobby_DispatchesAndRecordsMatch(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/send_lobby",
		`{"lobby_id":" 1234567 ","password":"abcd","players":[{"telegram_id":111,"nickname":"ShadowKiller"},{"telegram_id":222,"nickname":"Ghost"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["sent_count"])
	assert.EqualValues(t, 2, body["total"])
	assert.Empty(t, body["failed"])
	matchID, _ := body["match_id"].(string)
	require.NotEmpty(t, matchID)

	msgs := f.sender.To(111)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Ghost")
	assert.Contains(t, msgs[0], "1234567")

	_, status := f.get(t, "/api/tournament_status")
	assert.Equal(t, true, status["tournament_active"], "a dispatch starts the tournament")
	assert.EqualValues(t, 1, status["active_matches"])
	assert.EqualValues(t, 2, status["roster_count"])
	assert.NotNil(t, status["remaining_time"])

	_, matches := f.get(t, "/api/matches")
	assert.EqualValues(t, 1, matches["count"])
	list := matches["matches"].([]any)
	m := list[0].(map[string]any)
	assert.Equal(t, matchID, m["match_id"])
	assert.Equal(t, "1234567", m["lobby_id"])
	assert.Equal(t, "abcd", m["password"])
	assert.Len(t, m["players"], 2)
}

func TestScheduleTournament(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"missing", `{}`, http.StatusBadRequest, "scheduled time is required"},
		{"malformed", `{"scheduled_time":"tomorrow"}`, http.StatusBadRequest, "YYYY-MM-DD HH:MM"},
		{"past", `{"scheduled_time":"2001-01-01 10:00"}`, http.StatusBadRequest, "past"},
		{"not json", `scheduled`, http.StatusBadRequest, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.post(t, "/api/schedule_tournament", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, body["error"], tt.errMsg)
		})
	}

	resp, body := f.post(t, "/api/schedule_tournament", `{"scheduled_time":"2099-01-01 10:00"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2099-01-01T10:00:00Z", body["scheduled_time"])
	assert.Equal(t, "2099-01-02T10:00:00Z", body["end_time"])

	_, players := f.get(t, "/api/get_players")
	assert.Equal(t, true, players["tournament_active"])
	assert.Equal(t, "2099-01-01T10:00:00Z", players["tournament_scheduled"])
}

func TestEndTournament(t *testing.T) {
	f := newFixture(t)
	f.store.Set([]models.Registrant{{Nickname: "a", AccountID: 1}}, nil)
	_, _ = f.post(t, "/api/schedule_tournament", `{"scheduled_time":"2099-01-01 10:00"}`)

	resp, body := f.post(t, "/api/end_tournament", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, f.store.Clears())
	assert.NotEmpty(t, f.sender.To(adminID))

	_, status := f.get(t, "/api/tournament_status")
	assert.Equal(t, false, status["tournament_active"])
	assert.Nil(t, status["remaining_time"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["bot_running"])
	assert.NotEmpty(t, body["timestamp"])

	f.stop()
	require.Eventually(t, func() bool { return !f.loop.Running() }, time.Second, 5*time.Millisecond)

	resp, body = f.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["bot_running"])

	resp, body = f.get(t, "/api/tournament_status")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.store.Set([]models.Registrant{{Nickname: "ShadowKiller", PlayerID: "5123456789", AccountID: 111}}, nil)

	resp, body := f.get(t, "/api/export.xlsx?token=nope")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "invalid token", body["error"])

	resp, err := http.Get(f.srv.URL + "/api/export.xlsx?token=" + ExportToken("secret"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	// xlsx is a zip archive
	assert.Equal(t, "PK", string(data[:2]))
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/nope", "/"} {
		resp, body := f.get(t, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "endpoint not found", body["error"])
	}

	// wrong method on a known path
	resp, body := f.post(t, "/api/get_players", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "endpoint not found", body["error"])
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/send_lobby", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://dashboard.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")

	req, err = http.NewRequest(http.MethodGet, f.srv.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	_, _ = f.get(t, "/api/health")

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tournament_bot_bridge_calls_total{result="ok",route="health"} 1`)
}

func TestRateLimiter_BlocksBurst(t *testing.T) {
	l := newIPRateLimiter(0, 1)
	h := rateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/export.xlsx", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
