package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tournament-bot/internal/export"
	"tournament-bot/internal/gate"
	"tournament-bot/internal/loop"
	"tournament-bot/internal/models"
	"tournament-bot/internal/registration"
	"tournament-bot/internal/tournament"
	"tournament-bot/internal/ui"
)

// Messenger is the outbound side of the chat.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error
	SendFile(chatID int64, name string, data []byte, caption string) error
	EditText(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error
	ClearMarkup(chatID int64, messageID int) error
	AnswerCallback(callbackID, text string, alert bool) error
}

type Registrants interface {
	List(ctx context.Context) ([]models.Registrant, error)
}

type Options struct {
	AdminID  int64
	Details  ui.Details
	Location *time.Location
}

type App struct {
	opts        Options
	out         Messenger
	gate        *gate.Gate
	machine     *registration.Machine
	tournament  *tournament.Manager
	registrants Registrants
	loop        *loop.Loop
	logger      *slog.Logger
}

func New(opts Options, out Messenger, g *gate.Gate, machine *registration.Machine, t *tournament.Manager, registrants Registrants, l *loop.Loop, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &App{
		opts:        opts,
		out:         out,
		gate:        g,
		machine:     machine,
		tournament:  t,
		registrants: registrants,
		loop:        l,
		logger:      logger,
	}
}

// Run hands every update to the bot loop until ctx is done or the updates
// channel closes.
func (a *App) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := a.loop.Post(func(ctx context.Context) error {
				return a.HandleUpdate(ctx, upd)
			}); err != nil {
				return err
			}
		}
	}
}

// HandleUpdate must run on the bot loop.
func (a *App) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	switch {
	case upd.Message != nil:
		if err := a.handleMessage(ctx, upd.Message); err != nil {
			return fmt.Errorf("handle message: %w", err)
		}
	case upd.CallbackQuery != nil:
		if err := a.handleCallback(ctx, upd.CallbackQuery); err != nil {
			return fmt.Errorf("handle callback: %w", err)
		}
	}
	return nil
}

func (a *App) isAdmin(id int64) bool {
	return id == a.opts.AdminID
}

func submitter(u *tgbotapi.User) models.Submitter {
	return models.Submitter{
		AccountID: u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}

// attachment picks the largest photo size or the document.
func attachment(m *tgbotapi.Message) *models.Attachment {
	if n := len(m.Photo); n > 0 {
		return &models.Attachment{Kind: models.AttachmentPhoto, FileID: m.Photo[n-1].FileID}
	}
	if m.Document != nil {
		return &models.Attachment{Kind: models.AttachmentDocument, FileID: m.Document.FileID}
	}
	return nil
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	sub := submitter(m.From)
	id := sub.AccountID

	action := ""
	if m.IsCommand() {
		action = "/" + m.Command()
	}
	if !a.gate.Allows(ctx, id, action) {
		return a.out.SendMarkup(id, ui.SubscriptionRequired, ui.Subscription(a.gate.Channels()))
	}

	switch m.Command() {
	case "start":
		return a.showStart(ctx, id)
	case "help":
		return a.out.SendText(id, ui.Help)
	case "register":
		return a.machine.Begin(ctx, id)
	case "cancel":
		if a.machine.Reset(id) {
			return a.out.SendText(id, ui.Cancelled)
		}
		return a.out.SendText(id, ui.NothingToStop)
	case "rules":
		return a.out.SendText(id, ui.Rules(a.opts.Details))
	case "faq":
		return a.out.SendText(id, ui.FAQ(a.opts.Details))
	case "profile":
		return a.showProfile(ctx, id)
	case "admin_status", "end_tournament", "schedule", "export":
		if !a.isAdmin(id) {
			return nil
		}
		return a.handleAdminCommand(ctx, id, m.Command(), m.CommandArguments())
	}

	handled, err := a.machine.HandleMessage(ctx, sub, m.Text, attachment(m))
	if err != nil || handled {
		return err
	}
	return a.out.SendMarkup(id, ui.Welcome(a.opts.Details), ui.MainMenu())
}

func (a *App) showStart(ctx context.Context, id int64) error {
	if a.gate.Allows(ctx, id, "") {
		return a.out.SendMarkup(id, ui.Welcome(a.opts.Details), ui.MainMenu())
	}
	return a.out.SendMarkup(id, ui.SubscribePrompt, ui.Subscription(a.gate.Channels()))
}

func (a *App) showProfile(ctx context.Context, id int64) error {
	list, err := a.registrants.List(ctx)
	if err != nil {
		a.logger.Error("listing registrants failed", "error", err)
		return a.out.SendText(id, ui.GenericError)
	}
	for _, r := range list {
		if r.AccountID == id {
			return a.out.SendText(id, ui.Profile(r, a.tournament.Snapshot().Active))
		}
	}
	return a.out.SendText(id, ui.NotRegistered)
}

func (a *App) handleAdminCommand(ctx context.Context, id int64, cmd, args string) error {
	switch cmd {
	case "admin_status":
		list, err := a.registrants.List(ctx)
		if err != nil {
			a.logger.Error("listing registrants failed", "error", err)
		}
		snap := a.tournament.Snapshot()
		return a.out.SendText(id, ui.AdminStatus(len(list), a.tournament.Capacity(), snap, snap.RemainingText(a.tournament.Now())))

	case "end_tournament":
		a.tournament.End(ctx, false)
		return a.out.SendText(id, ui.TournamentEnd)

	case "schedule":
		if strings.TrimSpace(args) == "" {
			return a.out.SendText(id, ui.ScheduleUsage)
		}
		at, err := tournament.ParseScheduleInput(args, a.tournament.Now(), a.opts.Location)
		var ve *tournament.ValidationError
		if errors.As(err, &ve) {
			return a.out.SendText(id, "⚠️ "+ve.Message+"\n"+ui.ScheduleUsage)
		}
		if err != nil {
			return err
		}
		return a.out.SendText(id, ui.Scheduled(a.tournament.Start(at)))

	case "export":
		list, err := a.registrants.List(ctx)
		if err != nil {
			a.logger.Error("listing registrants failed", "error", err)
			return a.out.SendText(id, ui.GenericError)
		}
		data, err := export.Workbook(list, a.tournament.Matches())
		if err != nil {
			return fmt.Errorf("build workbook: %w", err)
		}
		name := export.FileName(a.tournament.Now().In(a.opts.Location))
		return a.out.SendFile(id, name, data, fmt.Sprintf("👥 Registrants: %d", len(list)))
	}
	return nil
}

// ---------- Callback handling ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q.From == nil {
		return nil
	}
	id := q.From.ID
	chatID, msgID := id, 0
	if q.Message != nil {
		chatID, msgID = q.Message.Chat.ID, q.Message.MessageID
	}

	if !a.gate.Allows(ctx, id, q.Data) {
		a.replace(chatID, msgID, ui.SubscriptionRequired, ui.Subscription(a.gate.Channels()))
		return a.out.AnswerCallback(q.ID, "", false)
	}

	if approve, target, ok := ui.ParseDecision(q.Data); ok {
		return a.decide(ctx, q, chatID, msgID, target, approve)
	}

	var err error
	switch q.Data {
	case ui.CbCheckSubscription:
		if a.gate.IsSubscribed(ctx, id) {
			a.replace(chatID, msgID, ui.SubscriptionConfirmed, ui.MainMenu())
		} else {
			a.replace(chatID, msgID, ui.NotSubscribedYet, ui.Subscription(a.gate.Channels()))
		}
	case ui.CbRegister:
		err = a.machine.Begin(ctx, id)
	case ui.CbResults:
		err = a.showResults(ctx, chatID)
	case ui.CbMyGames:
		text := ui.NoActiveGame
		if a.tournament.Rostered(id) {
			text = ui.ActiveGame(a.tournament.Snapshot())
		}
		err = a.out.SendText(chatID, text)
	case ui.CbContactAdmin:
		err = a.out.SendText(chatID, ui.ContactAdmin(a.opts.Details))
	}

	if ackErr := a.out.AnswerCallback(q.ID, "", false); ackErr != nil {
		a.logger.Debug("callback ack failed", "error", ackErr)
	}
	return err
}

func (a *App) decide(ctx context.Context, q *tgbotapi.CallbackQuery, chatID int64, msgID int, target int64, approve bool) error {
	err := a.machine.Decide(ctx, q.From.ID, target, approve)
	if errors.Is(err, registration.ErrNotAdmin) {
		return a.out.AnswerCallback(q.ID, ui.NotAdmin, true)
	}
	if err != nil {
		a.logger.Warn("decision notice failed", "account_id", target, "error", err)
	}

	if msgID != 0 {
		if clearErr := a.out.ClearMarkup(chatID, msgID); clearErr != nil {
			a.logger.Debug("clearing decision buttons failed", "error", clearErr)
		}
	}
	answer := ui.Rejected
	if approve {
		answer = ui.Approved
	}
	return a.out.AnswerCallback(q.ID, answer, false)
}

func (a *App) showResults(ctx context.Context, chatID int64) error {
	list, err := a.registrants.List(ctx)
	if err != nil {
		a.logger.Error("listing registrants failed", "error", err)
		return a.out.SendText(chatID, ui.GenericError)
	}
	return a.out.SendText(chatID, ui.Results(list, a.opts.Details))
}

// replace edits the callback's message, or sends a new one when there is
// nothing to edit or the edit is refused.
func (a *App) replace(chatID int64, msgID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	if msgID != 0 {
		err := a.out.EditText(chatID, msgID, text, markup)
		if err == nil {
			return
		}
		a.logger.Debug("edit failed, sending instead", "error", err)
	}
	if err := a.out.SendMarkup(chatID, text, markup); err != nil {
		a.logger.Warn("sending message failed", "chat_id", chatID, "error", err)
	}
}
