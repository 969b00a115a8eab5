package ui

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data.
const (
	CbRegister          = "register"
	CbResults           = "results"
	CbMyGames           = "my_games"
	CbContactAdmin      = "contact_admin"
	CbCheckSubscription = "check_subscription"

	prefixApprove = "approve:"
	prefixReject  = "reject:"
)

func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Register", CbRegister),
			tgbotapi.NewInlineKeyboardButtonData("🏆 Results", CbResults),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎮 My games", CbMyGames),
			tgbotapi.NewInlineKeyboardButtonData("📮 Admin", CbContactAdmin),
		),
	)
}

// Subscription links every required channel and adds the re-check button.
func Subscription(channels []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels)+1)
	for i, ch := range channels {
		text := "📢 Channel"
		if len(channels) > 1 {
			text = fmt.Sprintf("📢 Channel %d", i+1)
		}
		url := "https://t.me/" + strings.TrimPrefix(ch, "@")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(text, url)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Check", CbCheckSubscription),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Approval is attached to a relayed receipt.
func Approval(accountID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(accountID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Valid", prefixApprove+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Invalid", prefixReject+id),
		),
	)
}

// ParseDecision reads approve:<id> and reject:<id> callback data.
func ParseDecision(data string) (approve bool, target int64, ok bool) {
	var raw string
	switch {
	case strings.HasPrefix(data, prefixApprove):
		approve, raw = true, strings.TrimPrefix(data, prefixApprove)
	case strings.HasPrefix(data, prefixReject):
		raw = strings.TrimPrefix(data, prefixReject)
	default:
		return false, 0, false
	}
	target, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, 0, false
	}
	return approve, target, true
}
