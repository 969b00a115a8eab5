// Package registration drives the per-account approval pipeline:
// payment receipt, admin decision, player identity.
//
// Machine is not safe for concurrent use; it runs on the bot loop.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tournament-bot/internal/metrics"
	"tournament-bot/internal/models"
	"tournament-bot/internal/parser"
	"tournament-bot/internal/tournament"
	"tournament-bot/internal/ui"
)

var ErrNotAdmin = errors.New("registration: caller is not the admin")

type State int

const (
	StateNone State = iota
	StateAwaitingReceipt
	StateAwaitingDecision
	StateAwaitingPlayerID
)

func (s State) String() string {
	switch s {
	case StateAwaitingReceipt:
		return "awaiting_receipt"
	case StateAwaitingDecision:
		return "awaiting_admin_decision"
	case StateAwaitingPlayerID:
		return "awaiting_player_id"
	default:
		return "none"
	}
}

// Policy decides what happens when an account registers twice.
type Policy string

const (
	PolicyAllow  Policy = "allow"
	PolicyReject Policy = "reject"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyAllow:
		return PolicyAllow, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

type Notifier interface {
	SendText(chatID int64, text string) error
	SendMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error
	SendAttachment(chatID int64, a models.Attachment, caption string, markup tgbotapi.InlineKeyboardMarkup) error
}

type Store interface {
	Append(ctx context.Context, r models.Registrant) error
	Has(ctx context.Context, accountID int64) (bool, error)
}

type Roster interface {
	Accept(r models.Registrant) tournament.Placement
}

type Scheduler interface {
	After(d time.Duration, fn func(context.Context) error) (cancel func() bool)
}

type Config struct {
	AdminID      int64
	ReceiptDelay time.Duration
	Policy       Policy
	Details      ui.Details
}

type Machine struct {
	cfg      Config
	notifier Notifier
	store    Store
	roster   Roster
	sched    Scheduler
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	sessions  map[int64]State
	prompts   map[int64]receiptPrompt
	promptGen uint64
}

// receiptPrompt is a delayed prompt still waiting to be sent.
type receiptPrompt struct {
	gen    uint64
	cancel func() bool
}

func New(cfg Config, notifier Notifier, store Store, roster Roster, sched Scheduler, m *metrics.Metrics, logger *slog.Logger) *Machine {
	if cfg.Policy == "" {
		cfg.Policy = PolicyAllow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:      cfg,
		notifier: notifier,
		store:    store,
		roster:   roster,
		sched:    sched,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		sessions: map[int64]State{},
		prompts:  map[int64]receiptPrompt{},
	}
}

func (m *Machine) State(accountID int64) State {
	return m.sessions[accountID]
}

// Reset drops the session and any receipt prompt still waiting to be sent.
// It reports whether there was anything to drop.
func (m *Machine) Reset(accountID int64) bool {
	_, had := m.sessions[accountID]
	if p, ok := m.prompts[accountID]; ok {
		p.cancel()
		delete(m.prompts, accountID)
		had = true
	}
	delete(m.sessions, accountID)
	return had
}

// Begin sends the payment details and, after the receipt delay, the receipt
// prompt. The session enters awaiting_receipt together with the prompt.
func (m *Machine) Begin(ctx context.Context, accountID int64) error {
	m.Reset(accountID)
	delay := m.cfg.ReceiptDelay
	if err := m.notifier.SendText(accountID, ui.PaymentDetails(m.cfg.Details, int(delay.Seconds()))); err != nil {
		return fmt.Errorf("send payment details: %w", err)
	}

	prompt := func(context.Context) error {
		m.sessions[accountID] = StateAwaitingReceipt
		if err := m.notifier.SendText(accountID, ui.ReceiptPrompt); err != nil {
			return fmt.Errorf("send receipt prompt: %w", err)
		}
		return nil
	}
	if delay <= 0 {
		return prompt(ctx)
	}

	m.promptGen++
	gen := m.promptGen
	cancel := m.sched.After(delay, func(ctx context.Context) error {
		// a prompt cancelled too late can still fire; only the current one counts
		if p, ok := m.prompts[accountID]; !ok || p.gen != gen {
			return nil
		}
		delete(m.prompts, accountID)
		return prompt(ctx)
	})
	m.prompts[accountID] = receiptPrompt{gen: gen, cancel: cancel}
	return nil
}

// HandleMessage routes a plain message according to the sender's session.
// It reports false when the sender has no step waiting for input.
func (m *Machine) HandleMessage(ctx context.Context, sub models.Submitter, text string, att *models.Attachment) (bool, error) {
	switch m.sessions[sub.AccountID] {
	case StateAwaitingReceipt:
		if att == nil {
			return true, m.notifier.SendText(sub.AccountID, ui.SendReceiptAsFile)
		}
		return true, m.SubmitReceipt(ctx, sub, *att)
	case StateAwaitingPlayerID:
		return true, m.SubmitPlayerInfo(ctx, sub, text)
	default:
		return false, nil
	}
}

// SubmitReceipt relays the receipt to the admin with approve/reject
// buttons. A failed relay ends the session.
func (m *Machine) SubmitReceipt(ctx context.Context, sub models.Submitter, att models.Attachment) error {
	id := sub.AccountID
	if m.sessions[id] != StateAwaitingReceipt {
		return nil
	}
	if err := m.notifier.SendText(id, ui.ReceiptChecking); err != nil {
		m.logger.Debug("receipt ack failed", "account_id", id, "error", err)
	}

	err := m.notifier.SendAttachment(m.cfg.AdminID, att, ui.ReceiptCaption(sub), ui.Approval(id))
	m.metrics.ReceiptRelayed(err == nil)
	if err != nil {
		m.logger.Error("relaying receipt to admin failed", "account_id", id, "error", err)
		delete(m.sessions, id)
		if sendErr := m.notifier.SendText(id, ui.ReceiptRelayFailed); sendErr != nil {
			m.logger.Debug("relay failure notice failed", "account_id", id, "error", sendErr)
		}
		return nil
	}

	m.sessions[id] = StateAwaitingDecision
	m.logger.Info("receipt relayed", "account_id", id)
	return nil
}

// Decide applies the admin's verdict to target. Approval forces the target
// into awaiting_player_id whatever its current state.
func (m *Machine) Decide(ctx context.Context, caller, target int64, approve bool) error {
	if caller != m.cfg.AdminID {
		return ErrNotAdmin
	}
	if approve {
		m.sessions[target] = StateAwaitingPlayerID
		m.logger.Info("payment approved", "account_id", target)
		if err := m.notifier.SendText(target, ui.PaymentApproved); err != nil {
			return fmt.Errorf("send approval: %w", err)
		}
		return nil
	}

	m.Reset(target)
	m.logger.Info("payment rejected", "account_id", target)
	if err := m.notifier.SendText(target, ui.PaymentRejected); err != nil {
		return fmt.Errorf("send rejection: %w", err)
	}
	return nil
}

// SubmitPlayerInfo completes the registration. An invalid id or a failed
// store write keeps the session so the player can send again.
func (m *Machine) SubmitPlayerInfo(ctx context.Context, sub models.Submitter, text string) error {
	id := sub.AccountID
	if m.sessions[id] != StateAwaitingPlayerID {
		return nil
	}

	info := parser.Parse(text)
	if bare := strings.TrimSpace(text); info.PlayerID == models.NotProvided && parser.ValidPlayerID(bare) {
		// a bare id parses as a nickname without one
		info = parser.Info{PlayerID: bare}
	}
	if !parser.ValidPlayerID(info.PlayerID) {
		return m.notifier.SendText(id, ui.InvalidPlayerID)
	}
	nickname := info.Nickname
	if nickname == "" {
		nickname = sub.FullName()
	}

	if m.cfg.Policy == PolicyReject {
		exists, err := m.store.Has(ctx, id)
		if err != nil {
			m.logger.Error("duplicate check failed", "account_id", id, "error", err)
			return m.notifier.SendText(id, ui.RegistrationFailed)
		}
		if exists {
			delete(m.sessions, id)
			return m.notifier.SendMarkup(id, ui.AlreadyRegistered, ui.MainMenu())
		}
	}

	r := models.Registrant{
		Nickname:     nickname,
		PlayerID:     info.PlayerID,
		AccountID:    id,
		RegisteredAt: m.now(),
	}
	if err := m.store.Append(ctx, r); err != nil {
		m.logger.Error("storing registrant failed", "account_id", id, "error", err)
		return m.notifier.SendText(id, ui.RegistrationFailed)
	}
	m.metrics.Registration()

	placement := m.roster.Accept(r)
	delete(m.sessions, id)
	m.logger.Info("registration completed", "account_id", id, "nickname", nickname, "total", placement.Total)

	summaryErr := m.notifier.SendMarkup(id, ui.Registered(r, placement), ui.MainMenu())
	if err := m.notifier.SendText(m.cfg.AdminID, ui.NewRegistrant(sub, r, placement.Total)); err != nil {
		m.logger.Debug("admin registration notice failed", "error", err)
	}
	if summaryErr != nil {
		return fmt.Errorf("send registration summary: %w", summaryErr)
	}
	return nil
}
