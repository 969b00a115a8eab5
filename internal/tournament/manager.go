// Package tournament owns the single tournament lifecycle: start, lobby
// dispatch, roster intake and end, including the timed auto-expiry.
//
// Manager is not safe for concurrent use. Every method must run on the bot
// loop (see package loop).
package tournament

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tournament-bot/internal/metrics"
	"tournament-bot/internal/models"
	"tournament-bot/internal/util"
)

const (
	DefaultCapacity     = 100
	DefaultLead         = time.Hour
	DefaultDuration     = 24 * time.Hour
	DefaultSendInterval = 100 * time.Millisecond

	minPassword = 4
	minPlayers  = 2
)

var lobbyIDPattern = regexp.MustCompile(`^\d{7}$`)

type Clearer interface {
	Clear(ctx context.Context) error
}

type Sender interface {
	SendText(chatID int64, text string) error
}

type Scheduler interface {
	After(d time.Duration, fn func(context.Context) error) (cancel func() bool)
}

type Config struct {
	AdminID      int64
	Capacity     int
	Lead         time.Duration
	Duration     time.Duration
	SendInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Lead <= 0 {
		c.Lead = DefaultLead
	}
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	if c.SendInterval < 0 {
		c.SendInterval = 0
	}
	return c
}

type state struct {
	active        bool
	startTime     time.Time
	scheduledTime time.Time
	endTime       time.Time
	roster        []models.Registrant
	waitingList   []models.Registrant
	lobbyID       string
	password      string
	total         int
}

type Manager struct {
	cfg     Config
	store   Clearer
	sender  Sender
	sched   Scheduler
	metrics *metrics.Metrics
	logger  *slog.Logger
	limiter *rate.Limiter
	now     func() time.Time

	t state

	cancelExpiry func() bool
	expiryGen    uint64

	matches    map[string]models.Match
	matchOrder []string
}

func New(cfg Config, store Clearer, sender Sender, sched Scheduler, m *metrics.Metrics, logger *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.SendInterval > 0 {
		limit = rate.Every(cfg.SendInterval)
	}
	return &Manager{
		cfg:     cfg,
		store:   store,
		sender:  sender,
		sched:   sched,
		metrics: m,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		matches: map[string]models.Match{},
	}
}

func (m *Manager) Capacity() int { return m.cfg.Capacity }

// Start activates the tournament, or reschedules it when already active.
// A zero scheduled time means one lead period from now.
func (m *Manager) Start(scheduled time.Time) Snapshot {
	now := m.now()
	if scheduled.IsZero() {
		scheduled = now.Add(m.cfg.Lead)
	}
	m.t.active = true
	m.t.startTime = now
	m.t.scheduledTime = scheduled
	m.t.endTime = scheduled.Add(m.cfg.Duration)

	m.armExpiry(m.t.endTime.Sub(now))

	m.logger.Info("tournament started",
		"scheduled_time", m.t.scheduledTime.Format(time.RFC3339),
		"end_time", m.t.endTime.Format(time.RFC3339),
	)
	return m.Snapshot()
}

func (m *Manager) armExpiry(d time.Duration) {
	m.stopExpiry()
	gen := m.expiryGen
	m.cancelExpiry = m.sched.After(d, func(ctx context.Context) error {
		// a timer stopped too late can still deliver; only the latest one counts
		if gen != m.expiryGen || !m.t.active {
			return nil
		}
		m.logger.Info("tournament time is up, ending automatically")
		m.End(ctx, true)
		return nil
	})
}

func (m *Manager) stopExpiry() {
	if m.cancelExpiry != nil {
		m.cancelExpiry()
		m.cancelExpiry = nil
	}
	m.expiryGen++
}

// ValidateLobby checks a dispatch request without touching state.
func ValidateLobby(lobbyID, password string, players []models.LobbyPlayer) error {
	if !lobbyIDPattern.MatchString(lobbyID) {
		return invalid("lobby_id", "lobby ID must be exactly 7 digits")
	}
	if utf8.RuneCountInString(password) < minPassword {
		return invalid("password", fmt.Sprintf("password must be at least %d characters", minPassword))
	}
	if len(players) < minPlayers {
		return invalid("players", fmt.Sprintf("at least %d players are required", minPlayers))
	}
	return nil
}

type DispatchResult struct {
	MatchID   string
	SentCount int
	Total     int
	Failed    []string
}

// AssignLobby stores the lobby, starts the tournament if needed and sends
// every player their opponents and the credentials. Sends are best effort:
// a failed player is recorded and the rest still get their message.
func (m *Manager) AssignLobby(ctx context.Context, lobbyID, password string, players []models.LobbyPlayer) (DispatchResult, error) {
	lobbyID = strings.TrimSpace(lobbyID)
	password = strings.TrimSpace(password)
	if err := ValidateLobby(lobbyID, password, players); err != nil {
		return DispatchResult{}, err
	}

	if !m.t.active {
		m.Start(time.Time{})
	}
	m.t.lobbyID = lobbyID
	m.t.password = password
	// Everyone posted gets the lobby, but only the first Capacity players
	// hold roster places. Overflow queues ahead of the players already waiting.
	posted := make(map[int64]bool, len(players))
	var roster, waiting []models.Registrant
	for _, p := range players {
		posted[p.AccountID] = true
		r := models.Registrant{Nickname: p.Nickname, AccountID: p.AccountID}
		if len(roster) < m.cfg.Capacity {
			roster = append(roster, r)
		} else {
			waiting = append(waiting, r)
		}
	}
	for _, r := range m.t.waitingList {
		if !posted[r.AccountID] {
			waiting = append(waiting, r)
		}
	}
	m.t.roster = roster
	m.t.waitingList = waiting

	res := DispatchResult{Total: len(players), Failed: []string{}}
	for _, p := range players {
		if err := m.limiter.Wait(ctx); err != nil {
			res.Failed = append(res.Failed, p.Nickname)
			m.metrics.LobbyMessage(false)
			continue
		}
		if err := m.sender.SendText(p.AccountID, lobbyMessage(p, players, lobbyID, password)); err != nil {
			m.logger.Warn("lobby message failed", "account_id", p.AccountID, "error", err)
			res.Failed = append(res.Failed, p.Nickname)
			m.metrics.LobbyMessage(false)
			continue
		}
		res.SentCount++
		m.metrics.LobbyMessage(true)
	}

	match := models.Match{
		MatchID:   uuid.NewString(),
		LobbyID:   lobbyID,
		Password:  password,
		Players:   append([]models.LobbyPlayer(nil), players...),
		CreatedAt: m.now(),
	}
	m.matches[match.MatchID] = match
	m.matchOrder = append(m.matchOrder, match.MatchID)
	res.MatchID = match.MatchID

	m.logger.Info("lobby dispatched",
		"lobby_id", lobbyID,
		"match_id", match.MatchID,
		"sent", res.SentCount,
		"failed", len(res.Failed),
	)
	return res, nil
}

func lobbyMessage(to models.LobbyPlayer, players []models.LobbyPlayer, lobbyID, password string) string {
	opponents := make([]string, 0, len(players)-1)
	for _, p := range players {
		if p.AccountID == to.AccountID {
			continue
		}
		opponents = append(opponents, html.EscapeString(p.Nickname))
	}
	return fmt.Sprintf(
		"🎮 <b>NEW MATCH IS READY!</b>\n\n"+
			"👥 <b>Your opponents:</b>\n%s\n\n"+
			"🆔 <b>Lobby ID:</b> <code>%s</code>\n"+
			"🔐 <b>Password:</b> <code>%s</code>\n\n"+
			"⏰ Join the lobby now!\n"+
			"🏆 Good luck!",
		strings.Join(opponents, ", "), lobbyID, html.EscapeString(password),
	)
}

// End clears the registrant store and resets the tournament. When nothing
// is running only the store is cleared.
func (m *Manager) End(ctx context.Context, auto bool) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("clearing registrants failed", "error", err)
	}

	wasActive := m.t.active
	m.stopExpiry()
	m.t = state{}
	if !wasActive {
		m.logger.Info("end requested with no active tournament, store cleared")
		return
	}
	m.metrics.TournamentEnded(auto)

	msg := "✅ Tournament finished"
	if auto {
		msg = "⏰ Tournament finished automatically (time is up)"
	}
	if err := m.sender.SendText(m.cfg.AdminID, msg); err != nil {
		m.logger.Debug("admin end notice failed", "error", err)
	}
	m.logger.Info("tournament ended", "auto", auto)
}

// Placement tells a newly accepted player where they landed.
type Placement struct {
	Active        bool
	InRoster      bool
	Position      int
	Total         int
	ScheduledTime time.Time
	EndTime       time.Time
}

// Accept counts a completed registration and, while a tournament is active,
// adds it to the roster or, once the roster is full, to the waiting list.
func (m *Manager) Accept(r models.Registrant) Placement {
	m.t.total++
	p := Placement{Active: m.t.active, Total: m.t.total}
	if !m.t.active {
		return p
	}

	if len(m.t.roster) < m.cfg.Capacity {
		m.t.roster = append(m.t.roster, r)
		p.InRoster = true
		p.Position = len(m.t.roster)
		m.logger.Info("player added to roster", "account_id", r.AccountID, "nickname", r.Nickname)
	} else {
		m.t.waitingList = append(m.t.waitingList, r)
		p.Position = len(m.t.waitingList)
		m.logger.Info("player added to waiting list", "account_id", r.AccountID, "nickname", r.Nickname)
	}
	p.ScheduledTime = m.t.scheduledTime
	p.EndTime = m.t.endTime
	return p
}

// Rostered reports whether the account is in the active roster.
func (m *Manager) Rostered(accountID int64) bool {
	if !m.t.active {
		return false
	}
	for _, r := range m.t.roster {
		if r.AccountID == accountID {
			return true
		}
	}
	return false
}

type Snapshot struct {
	Active             bool
	StartTime          time.Time
	ScheduledTime      time.Time
	EndTime            time.Time
	Roster             []models.Registrant
	WaitingList        []models.Registrant
	LobbyID            string
	Password           string
	TotalRegistrations int
	Matches            int
}

// Remaining is the time left until the end, zero when inactive or over.
func (s Snapshot) Remaining(now time.Time) time.Duration {
	if !s.Active || s.EndTime.IsZero() {
		return 0
	}
	if d := s.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RemainingText renders Remaining as "Hh Mm", or "" when nothing is left.
func (s Snapshot) RemainingText(now time.Time) string {
	d := s.Remaining(now)
	if d == 0 {
		return ""
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func (s Snapshot) ScheduledText() string { return util.FormatTime(s.ScheduledTime, "soon") }
func (s Snapshot) EndText() string       { return util.FormatTime(s.EndTime, "within 24 hours") }

func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		Active:             m.t.active,
		StartTime:          m.t.startTime,
		ScheduledTime:      m.t.scheduledTime,
		EndTime:            m.t.endTime,
		Roster:             append([]models.Registrant(nil), m.t.roster...),
		WaitingList:        append([]models.Registrant(nil), m.t.waitingList...),
		LobbyID:            m.t.lobbyID,
		Password:           m.t.password,
		TotalRegistrations: m.t.total,
		Matches:            len(m.matchOrder),
	}
}

// Matches lists every dispatched lobby in creation order.
func (m *Manager) Matches() []models.Match {
	out := make([]models.Match, 0, len(m.matchOrder))
	for _, id := range m.matchOrder {
		out = append(out, m.matches[id])
	}
	return out
}

func (m *Manager) Now() time.Time { return m.now() }
