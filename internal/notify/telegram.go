// Package notify sends outbound Telegram messages. Every text is sent in
// HTML parse mode, so callers escape user-supplied values.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tournament-bot/internal/models"
)

// BotAPI is the part of *tgbotapi.BotAPI the notifier uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

type Telegram struct {
	bot BotAPI
}

func NewTelegram(bot BotAPI) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func (t *Telegram) SendMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = markup
	_, err := t.bot.Send(msg)
	return err
}

// SendAttachment re-sends a received photo or document by file id.
func (t *Telegram) SendAttachment(chatID int64, a models.Attachment, caption string, markup tgbotapi.InlineKeyboardMarkup) error {
	var c tgbotapi.Chattable
	switch a.Kind {
	case models.AttachmentPhoto:
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(a.FileID))
		p.Caption = caption
		p.ParseMode = tgbotapi.ModeHTML
		p.ReplyMarkup = markup
		c = p
	case models.AttachmentDocument:
		d := tgbotapi.NewDocument(chatID, tgbotapi.FileID(a.FileID))
		d.Caption = caption
		d.ParseMode = tgbotapi.ModeHTML
		d.ReplyMarkup = markup
		c = d
	default:
		return fmt.Errorf("unsupported attachment kind %d", a.Kind)
	}
	_, err := t.bot.Send(c)
	return err
}

// SendFile uploads generated bytes as a document.
func (t *Telegram) SendFile(chatID int64, name string, data []byte, caption string) error {
	d := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	d.Caption = caption
	d.ParseMode = tgbotapi.ModeHTML
	_, err := t.bot.Send(d)
	return err
}

func (t *Telegram) AnswerCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	_, err := t.bot.Request(cb)
	return err
}

// ClearMarkup removes the inline keyboard from a sent message.
func (t *Telegram) ClearMarkup(chatID int64, messageID int) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	_, err := t.bot.Request(edit)
	return err
}

// EditText replaces the text and keyboard of a sent message.
func (t *Telegram) EditText(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := t.bot.Request(edit)
	return err
}

// MemberStatus returns the account's status in a channel given as
// @username or numeric chat id.
func (t *Telegram) MemberStatus(ctx context.Context, channel string, accountID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cfg := tgbotapi.ChatConfigWithUser{UserID: accountID}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.SuperGroupUsername = "@" + strings.TrimPrefix(channel, "@")
	}
	member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: cfg})
	if err != nil {
		return "", fmt.Errorf("get chat member %s: %w", channel, err)
	}
	return member.Status, nil
}
