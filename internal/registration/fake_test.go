package registration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tournament-bot/internal/models"
	"tournament-bot/internal/tournament"
	"tournament-bot/internal/ui"
)

const testAdmin int64 = 999

type outbound struct {
	ChatID     int64
	Text       string
	Markup     *tgbotapi.InlineKeyboardMarkup
	Attachment *models.Attachment
}

type FakeNotifier struct {
	Sent          []outbound
	FailFor       map[int64]bool
	FailAttaching bool
}

func (f *FakeNotifier) SendText(chatID int64, text string) error {
	if f.FailFor[chatID] {
		return errors.New("bot was blocked by the user")
	}
	f.Sent = append(f.Sent, outbound{ChatID: chatID, Text: text})
	return nil
}

func (f *FakeNotifier) SendMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	if f.FailFor[chatID] {
		return errors.New("bot was blocked by the user")
	}
	f.Sent = append(f.Sent, outbound{ChatID: chatID, Text: text, Markup: &markup})
	return nil
}

func (f *FakeNotifier) SendAttachment(chatID int64, a models.Attachment, caption string, markup tgbotapi.InlineKeyboardMarkup) error {
	if f.FailAttaching || f.FailFor[chatID] {
		return errors.New("file reference expired")
	}
	f.Sent = append(f.Sent, outbound{ChatID: chatID, Text: caption, Markup: &markup, Attachment: &a})
	return nil
}

func (f *FakeNotifier) To(chatID int64) []outbound {
	var out []outbound
	for _, s := range f.Sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (f *FakeNotifier) Last(chatID int64) outbound {
	msgs := f.To(chatID)
	if len(msgs) == 0 {
		return outbound{}
	}
	return msgs[len(msgs)-1]
}

type FakeStore struct {
	Rows      []models.Registrant
	AppendErr error
	HasErr    error
}

func (f *FakeStore) Append(_ context.Context, r models.Registrant) error {
	if f.AppendErr != nil {
		return f.AppendErr
	}
	f.Rows = append(f.Rows, r)
	return nil
}

func (f *FakeStore) Has(_ context.Context, accountID int64) (bool, error) {
	if f.HasErr != nil {
		return false, f.HasErr
	}
	for _, r := range f.Rows {
		if r.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

type FakeRoster struct {
	Accepted []models.Registrant
	Active   bool
}

func (f *FakeRoster) Accept(r models.Registrant) tournament.Placement {
	f.Accepted = append(f.Accepted, r)
	return tournament.Placement{Active: f.Active, InRoster: f.Active, Position: len(f.Accepted), Total: len(f.Accepted)}
}

type pendingTask struct {
	Delay     time.Duration
	Fn        func(context.Context) error
	Cancelled bool
}

type FakeScheduler struct {
	Tasks []*pendingTask
}

func (f *FakeScheduler) After(d time.Duration, fn func(context.Context) error) func() bool {
	t := &pendingTask{Delay: d, Fn: fn}
	f.Tasks = append(f.Tasks, t)
	return func() bool {
		was := !t.Cancelled
		t.Cancelled = true
		return was
	}
}

type harness struct {
	m        *Machine
	notifier *FakeNotifier
	store    *FakeStore
	roster   *FakeRoster
	sched    *FakeScheduler
}

func newHarness(cfg Config) *harness {
	h := &harness{
		notifier: &FakeNotifier{FailFor: map[int64]bool{}},
		store:    &FakeStore{},
		roster:   &FakeRoster{},
		sched:    &FakeScheduler{},
	}
	cfg.AdminID = testAdmin
	cfg.Details = ui.Details{EntryFee: "10 000", PaymentCard: "9860 0000 0000 0000"}
	h.m = New(cfg, h.notifier, h.store, h.roster, h.sched, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.m.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

// toPlayerID walks an account through receipt and approval.
func (h *harness) toPlayerID(sub models.Submitter) error {
	ctx := context.Background()
	if err := h.m.Begin(ctx, sub.AccountID); err != nil {
		return err
	}
	if err := h.m.SubmitReceipt(ctx, sub, models.Attachment{Kind: models.AttachmentPhoto, FileID: "receipt"}); err != nil {
		return err
	}
	return h.m.Decide(ctx, testAdmin, sub.AccountID, true)
}
