package tgbot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tournament-bot/internal/gate"
	"tournament-bot/internal/loop"
	"tournament-bot/internal/models"
	"tournament-bot/internal/registration"
	"tournament-bot/internal/tournament"
	"tournament-bot/internal/ui"
)

const (
	admin  int64 = 999
	player int64 = 111
	other  int64 = 222
)

type sent struct {
	Kind       string
	ChatID     int64
	MessageID  int
	Text       string
	Markup     *tgbotapi.InlineKeyboardMarkup
	Attachment *models.Attachment
	File       string
	Alert      bool
}

type FakeMessenger struct {
	mu      sync.Mutex
	Sent    []sent
	EditErr error
}

func (f *FakeMessenger) record(s sent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, s)
	return nil
}

func (f *FakeMessenger) SendText(chatID int64, text string) error {
	return f.record(sent{Kind: "text", ChatID: chatID, Text: text})
}

func (f *FakeMessenger) SendMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	return f.record(sent{Kind: "text", ChatID: chatID, Text: text, Markup: &markup})
}

func (f *FakeMessenger) SendAttachment(chatID int64, a models.Attachment, caption string, markup tgbotapi.InlineKeyboardMarkup) error {
	return f.record(sent{Kind: "attachment", ChatID: chatID, Text: caption, Markup: &markup, Attachment: &a})
}

func (f *FakeMessenger) SendFile(chatID int64, name string, data []byte, caption string) error {
	return f.record(sent{Kind: "file", ChatID: chatID, Text: caption, File: name})
}

func (f *FakeMessenger) EditText(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	if f.EditErr != nil {
		return f.EditErr
	}
	return f.record(sent{Kind: "edit", ChatID: chatID, MessageID: messageID, Text: text, Markup: &markup})
}

func (f *FakeMessenger) ClearMarkup(chatID int64, messageID int) error {
	return f.record(sent{Kind: "clear", ChatID: chatID, MessageID: messageID})
}

func (f *FakeMessenger) AnswerCallback(callbackID, text string, alert bool) error {
	return f.record(sent{Kind: "answer", Text: text, Alert: alert})
}

func (f *FakeMessenger) To(chatID int64) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, s := range f.Sent {
		if s.ChatID == chatID && s.Kind != "answer" {
			out = append(out, s)
		}
	}
	return out
}

func (f *FakeMessenger) Last(chatID int64) sent {
	msgs := f.To(chatID)
	if len(msgs) == 0 {
		return sent{}
	}
	return msgs[len(msgs)-1]
}

func (f *FakeMessenger) Answers() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, s := range f.Sent {
		if s.Kind == "answer" {
			out = append(out, s)
		}
	}
	return out
}

// FakeChecker reports a status per account; unknown accounts are not members.
type FakeChecker struct {
	Status map[int64]string
}

func (f *FakeChecker) MemberStatus(_ context.Context, _ string, accountID int64) (string, error) {
	status, ok := f.Status[accountID]
	if !ok {
		return "", errors.New("user not found")
	}
	return status, nil
}

type FakeRegistrants struct {
	mu   sync.Mutex
	Rows []models.Registrant
}

func (f *FakeRegistrants) Append(_ context.Context, r models.Registrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rows = append(f.Rows, r)
	return nil
}

func (f *FakeRegistrants) Has(_ context.Context, accountID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.Rows {
		if r.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeRegistrants) List(context.Context) ([]models.Registrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Registrant{}, f.Rows...), nil
}

func (f *FakeRegistrants) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rows = nil
	return nil
}

type FakeScheduler struct{}

func (FakeScheduler) After(time.Duration, func(context.Context) error) func() bool {
	return func() bool { return true }
}

type harness struct {
	app     *App
	out     *FakeMessenger
	checker *FakeChecker
	store   *FakeRegistrants
	manager *tournament.Manager
	machine *registration.Machine
	loop    *loop.Loop
}

func newHarness() *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		out:     &FakeMessenger{},
		checker: &FakeChecker{Status: map[int64]string{player: "member"}},
		store:   &FakeRegistrants{},
		loop:    loop.New(time.Second, logger),
	}
	details := ui.Details{EntryFee: "10 000 UZS", PaymentCard: "9860 0000 0000 0000", AdminContact: "@admin"}
	h.manager = tournament.New(tournament.Config{AdminID: admin}, h.store, h.out, FakeScheduler{}, nil, logger)
	h.machine = registration.New(registration.Config{AdminID: admin, Details: details}, h.out, h.store, h.manager, FakeScheduler{}, nil, logger)
	g := gate.New([]string{"@tdm_channel"}, h.checker, admin, logger)
	h.app = New(Options{AdminID: admin, Details: details, Location: time.UTC}, h.out, g, h.machine, h.manager, h.store, h.loop, logger)
	return h
}

func user(id int64) *tgbotapi.User {
	return &tgbotapi.User{ID: id, FirstName: "Shadow", LastName: "Player", UserName: "shadow"}
}

func command(from int64, line string) tgbotapi.Update {
	name := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		name = line[:i]
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     user(from),
		Chat:     &tgbotapi.Chat{ID: from},
		Text:     line,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func text(from int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: user(from),
		Chat: &tgbotapi.Chat{ID: from},
		Text: body,
	}}
}

func photo(from int64, fileIDs ...string) tgbotapi.Update {
	sizes := make([]tgbotapi.PhotoSize, 0, len(fileIDs))
	for _, id := range fileIDs {
		sizes = append(sizes, tgbotapi.PhotoSize{FileID: id})
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:  user(from),
		Chat:  &tgbotapi.Chat{ID: from},
		Photo: sizes,
	}}
}

func callback(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: user(from),
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: from},
		},
	}}
}
