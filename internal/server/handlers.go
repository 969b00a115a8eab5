package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tournament-bot/internal/export"
	"tournament-bot/internal/models"
	"tournament-bot/internal/tournament"
	"tournament-bot/internal/util"
)

// ExportMessage is what export tokens sign.
const ExportMessage = "export:registrants"

// ExportToken is the token expected by /api/export.xlsx.
func ExportToken(secret string) string {
	return util.HMACSHA256Hex(secret, ExportMessage)
}

type playerJSON struct {
	Nickname         string  `json:"nickname"`
	PlayerID         string  `json:"pubg_id"`
	AccountID        int64   `json:"telegram_id"`
	RegistrationTime *string `json:"registration_time"`
}

type matchJSON struct {
	MatchID   string               `json:"match_id"`
	LobbyID   string               `json:"lobby_id"`
	Password  string               `json:"password"`
	Players   []models.LobbyPlayer `json:"players"`
	CreatedAt *string              `json:"created_at"`
}

type sendLobbyRequest struct {
	LobbyID  string               `json:"lobby_id"`
	Password string               `json:"password"`
	Players  []models.LobbyPlayer `json:"players"`
}

type scheduleRequest struct {
	ScheduledTime string `json:"scheduled_time"`
}

func (s *Server) getPlayers(w http.ResponseWriter, r *http.Request) {
	const route = "get_players"
	list, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, route, err)
		return
	}
	snap, err := s.snapshot(r.Context(), route)
	if err != nil {
		s.fail(w, route, err)
		return
	}

	players := make([]playerJSON, 0, len(list))
	for _, p := range list {
		players = append(players, playerJSON{
			Nickname:         p.Nickname,
			PlayerID:         p.PlayerID,
			AccountID:        p.AccountID,
			RegistrationTime: iso(p.RegisteredAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"players":              players,
		"tournament_active":    snap.Active,
		"tournament_start":     iso(snap.StartTime),
		"tournament_scheduled": iso(snap.ScheduledTime),
		"tournament_end":       iso(snap.EndTime),
		"total_registrations":  snap.TotalRegistrations,
		"waiting_list_count":   len(snap.WaitingList),
		"data_source":          s.store.DataSource(),
	})
}

func (s *Server) sendLobby(w http.ResponseWriter, r *http.Request) {
	const route = "send_lobby"
	var req sendLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.LobbyID = strings.TrimSpace(req.LobbyID)
	req.Password = strings.TrimSpace(req.Password)
	if err := tournament.ValidateLobby(req.LobbyID, req.Password, req.Players); err != nil {
		s.fail(w, route, err)
		return
	}

	res, err := call(r.Context(), s, route, func(ctx context.Context) (tournament.DispatchResult, error) {
		return s.tournament.AssignLobby(ctx, req.LobbyID, req.Password, req.Players)
	})
	if err != nil {
		s.fail(w, route, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"sent_count": res.SentCount,
		"total":      res.Total,
		"failed":     res.Failed,
		"match_id":   res.MatchID,
	})
}

func (s *Server) scheduleTournament(w http.ResponseWriter, r *http.Request) {
	const route = "schedule_tournament"
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	scheduled, err := tournament.ParseScheduledTime(req.ScheduledTime, s.tournament.Now(), s.opts.Location)
	if err != nil {
		s.fail(w, route, err)
		return
	}

	snap, err := call(r.Context(), s, route, func(context.Context) (tournament.Snapshot, error) {
		return s.tournament.Start(scheduled), nil
	})
	if err != nil {
		s.fail(w, route, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"scheduled_time": iso(snap.ScheduledTime),
		"end_time":       iso(snap.EndTime),
		"message":        "Tournament scheduled",
	})
}

func (s *Server) endTournament(w http.ResponseWriter, r *http.Request) {
	const route = "end_tournament"
	err := s.execute(r.Context(), route, func(ctx context.Context) error {
		s.tournament.End(ctx, false)
		return nil
	})
	if err != nil {
		s.fail(w, route, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Tournament finished and data cleared",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context(), "health")
	running := err == nil
	if err != nil {
		s.logger.Warn("health check could not reach the bot loop", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"timestamp":         time.Now().In(s.opts.Location).Format(time.RFC3339),
		"bot_running":       running,
		"tournament_active": snap.Active,
		"data_source":       s.store.DataSource(),
	})
}

func (s *Server) tournamentStatus(w http.ResponseWriter, r *http.Request) {
	const route = "tournament_status"
	snap, err := s.snapshot(r.Context(), route)
	if err != nil {
		s.fail(w, route, err)
		return
	}
	var remaining *string
	if text := snap.RemainingText(s.tournament.Now()); text != "" {
		remaining = &text
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"tournament_active":  snap.Active,
		"start_time":         iso(snap.StartTime),
		"scheduled_time":     iso(snap.ScheduledTime),
		"end_time":           iso(snap.EndTime),
		"remaining_time":     remaining,
		"active_matches":     snap.Matches,
		"roster_count":       len(snap.Roster),
		"waiting_list_count": len(snap.WaitingList),
	})
}

func (s *Server) matches(w http.ResponseWriter, r *http.Request) {
	const route = "matches"
	list, err := s.matchList(r.Context(), route)
	if err != nil {
		s.fail(w, route, err)
		return
	}
	out := make([]matchJSON, 0, len(list))
	for _, m := range list {
		out = append(out, matchJSON{
			MatchID:   m.MatchID,
			LobbyID:   m.LobbyID,
			Password:  m.Password,
			Players:   m.Players,
			CreatedAt: iso(m.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"matches": out,
		"count":   len(out),
	})
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	const route = "export"
	token := r.URL.Query().Get("token")
	if token == "" || !util.ValidHMAC(s.opts.ExportSecret, ExportMessage, token) {
		writeError(w, http.StatusForbidden, "invalid token")
		return
	}

	list, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, route, err)
		return
	}
	matches, err := s.matchList(r.Context(), route)
	if err != nil {
		s.fail(w, route, err)
		return
	}
	data, err := export.Workbook(list, matches)
	if err != nil {
		s.fail(w, route, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(time.Now().In(s.opts.Location))))
	_, _ = w.Write(data)
}

func iso(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
