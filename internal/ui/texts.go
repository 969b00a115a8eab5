// Package ui holds the chat texts and inline keyboards.
package ui

import (
	"fmt"
	"html"
	"strings"
	"time"

	"tournament-bot/internal/models"
	"tournament-bot/internal/tournament"
	"tournament-bot/internal/util"
)

// Details are the event specifics shown to players.
type Details struct {
	EntryFee     string
	PaymentCard  string
	AdminContact string
	RatingURL    string
	CSVURL       string
}

func Welcome(d Details) string {
	return "👋 <b>WELCOME</b>\n" +
		"🎮 This is the TDM TOURNAMENT BOT!\n\n" +
		"⚠️ The tournament is <b>paid</b>\n" +
		fmt.Sprintf("<b>💸 ENTRY FEE: %s 💸</b>", html.EscapeString(d.EntryFee))
}

const (
	SubscribePrompt       = "👋 Hello!\n\nSubscribe to the channels below to use the bot 👇"
	SubscriptionRequired  = "❌ Subscribe to the channels to use the bot."
	SubscriptionConfirmed = "✅ Subscription confirmed!"
	NotSubscribedYet      = "❌ You are not subscribed yet.\nSubscribe and check again 👇"

	ReceiptPrompt      = "🕐 Now send the payment receipt (as a photo or a document)."
	ReceiptChecking    = "🕐 Your receipt is being checked..."
	ReceiptRelayFailed = "⚠️ Something went wrong, please try again."
	SendReceiptAsFile  = "📎 Please send the receipt as a photo or a document."

	PaymentApproved = "✅ Payment confirmed!\n\n" +
		"📝 Now send your PUBG nickname and ID.\n\n" +
		"<b>Format:</b>\n" +
		"ShadowKiller 5123456789\n\n" +
		"⚠️ The ID is 10 digits and starts with 5"
	PaymentRejected = "❌ Payment was rejected. Please try again."

	InvalidPlayerID = "⚠️ <b>Invalid PUBG ID!</b>\n\n" +
		"The ID is 10 digits and must start with 5.\n" +
		"Example: 5123456789\n\n" +
		"Send it again:"
	RegistrationFailed = "⚠️ Something went wrong. Please contact the admin."
	AlreadyRegistered  = "ℹ️ You are already registered for this tournament."

	NotAdmin      = "❌ You are not the admin"
	Approved      = "✅ Approved"
	Rejected      = "❌ Rejected"
	NoActiveGame  = "🎮 You have no active game."
	Cancelled     = "↩️ Registration cancelled. Press /start to begin again."
	NothingToStop = "Nothing to cancel."
	GenericError  = "⚠️ Error"
	NotRegistered = "⚠️ You are not registered yet. Start with /start."

	Help = "📚 <b>Bot commands:</b>\n\n" +
		"/start - start the bot\n" +
		"/help - help\n" +
		"/register - register for the tournament\n" +
		"/cancel - cancel registration\n" +
		"/admin_status - bot status (admin only)\n" +
		"/end_tournament - end the tournament (admin only)\n" +
		"/schedule - schedule the tournament (admin only)\n" +
		"/export - registrants workbook (admin only)\n" +
		"/rules - tournament rules\n" +
		"/faq - frequently asked questions\n" +
		"/profile - your profile\n\n" +
		"Use the inline buttons to register and see the results!"

	ScheduleUsage = "Usage: /schedule YYYY-MM-DD HH:MM (or e.g. \"tomorrow at 18:00\")"
	TournamentEnd = "✅ Tournament finished and cleared"
)

func PaymentDetails(d Details, delaySeconds int) string {
	return "💳 <b>Payment details:</b>\n\n" +
		fmt.Sprintf("💳 Card: <code>%s</code>\n", html.EscapeString(d.PaymentCard)) +
		fmt.Sprintf("💸 Amount: %s\n\n", html.EscapeString(d.EntryFee)) +
		fmt.Sprintf("📌 Make the payment and send the receipt in %d seconds.", delaySeconds)
}

func Rules(d Details) string {
	return "📜 <b>Tournament rules:</b>\n\n" +
		fmt.Sprintf("1. The tournament is paid: %s.\n", html.EscapeString(d.EntryFee)) +
		"2. The PUBG ID must be 10 digits starting with 5.\n" +
		"3. Cheating is forbidden.\n" +
		"4. The tournament ends within 24 hours.\n" +
		"5. The admin's decision is final.\n\n" +
		"More questions: /faq"
}

func FAQ(d Details) string {
	return "❓ <b>FAQ:</b>\n\n" +
		"Q: How do I pay?\n" +
		fmt.Sprintf("A: By card: %s\n\n", html.EscapeString(d.PaymentCard)) +
		"Q: How long do I wait?\n" +
		"A: The admin sets the tournament start time.\n\n" +
		"Q: Can I change my nickname?\n" +
		"A: After registering, through the admin."
}

func ContactAdmin(d Details) string {
	return "📩 Admin: " + html.EscapeString(d.AdminContact)
}

// ReceiptCaption goes with the receipt relayed to the admin.
func ReceiptCaption(s models.Submitter) string {
	username := "no username"
	if s.Username != "" {
		username = "@" + s.Username
	}
	return "💳 New payment:\n" +
		fmt.Sprintf("👤 %s\n", html.EscapeString(s.FullName())) +
		fmt.Sprintf("🆔 <code>%d</code>\n", s.AccountID) +
		fmt.Sprintf("📌 %s", html.EscapeString(username))
}

// Results lists the first twenty registrants and the full rating links.
func Results(list []models.Registrant, d Details) string {
	var b strings.Builder
	if len(list) == 0 {
		b.WriteString("📊 No ratings yet.\n\n")
	} else {
		b.WriteString("🏆 <b>Top 20:</b>\n\n")
		for i, r := range list {
			if i == 20 {
				break
			}
			fmt.Fprintf(&b, "%d. <b>%s</b> (%s)\n", i+1, html.EscapeString(r.Nickname), html.EscapeString(r.PlayerID))
		}
		b.WriteString("\n")
	}
	if d.RatingURL != "" {
		fmt.Fprintf(&b, "📋 Full rating:\n%s\n\n", d.RatingURL)
	}
	if d.CSVURL != "" {
		fmt.Fprintf(&b, "📊 CSV link:\n%s", d.CSVURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func Profile(r models.Registrant, active bool) string {
	registered := "unknown"
	if !r.RegisteredAt.IsZero() {
		registered = r.RegisteredAt.Format(util.TimeLayout)
	}
	activeText := "No"
	if active {
		activeText = "Yes"
	}
	return "👤 <b>Your profile:</b>\n\n" +
		fmt.Sprintf("Nickname: %s\n", html.EscapeString(r.Nickname)) +
		fmt.Sprintf("PUBG ID: %s\n", html.EscapeString(r.PlayerID)) +
		fmt.Sprintf("Telegram ID: %d\n", r.AccountID) +
		fmt.Sprintf("📅 Registered: %s\n\n", registered) +
		fmt.Sprintf("🎮 Active tournament: %s", activeText)
}

// Registered confirms a completed registration with the tournament timing
// when one is running.
func Registered(r models.Registrant, p tournament.Placement) string {
	var info string
	if p.Active {
		position := fmt.Sprintf("%d", p.Position)
		if !p.InRoster {
			position = fmt.Sprintf("waiting list: %d", p.Position)
		}
		info = "\n\n🎮 <b>Tournament:</b>\n" +
			fmt.Sprintf("⏰ Start: %s\n", util.FormatTime(p.ScheduledTime, "soon")) +
			fmt.Sprintf("🏁 End: %s\n", util.FormatTime(p.EndTime, "within 24 hours")) +
			fmt.Sprintf("👥 Total players: %d\n", p.Total) +
			fmt.Sprintf("📍 Your position: %s\n\n", position) +
			"⚠️ Be ready before the start!\n" +
			"🏆 Good luck!"
	} else {
		info = "\n\n🎮 The tournament has not started yet. The admin will let you know!"
	}
	return "✅ <b>You are registered!</b>\n\n" +
		fmt.Sprintf("👤 Nickname: <b>%s</b>\n", html.EscapeString(r.Nickname)) +
		fmt.Sprintf("🆔 PUBG ID: <code>%s</code>\n", r.PlayerID) +
		fmt.Sprintf("🆔 Telegram ID: <code>%d</code>\n", r.AccountID) +
		fmt.Sprintf("📅 Registered: %s", r.RegisteredAt.Format(util.TimeLayout)) +
		info
}

// NewRegistrant is the compact notice sent to the admin.
func NewRegistrant(s models.Submitter, r models.Registrant, total int) string {
	return "✅ New player:\n" +
		fmt.Sprintf("👤 %s\n", html.EscapeString(s.FullName())) +
		fmt.Sprintf("🎮 %s\n", html.EscapeString(r.Nickname)) +
		fmt.Sprintf("🆔 PUBG ID: %s\n", r.PlayerID) +
		fmt.Sprintf("🆔 TG ID: %d\n", r.AccountID) +
		fmt.Sprintf("📅 Time: %s\n", r.RegisteredAt.Format(time.RFC3339)) +
		fmt.Sprintf("👥 Total: %d", total)
}

// ActiveGame shows the lobby credentials to a rostered player.
func ActiveGame(s tournament.Snapshot) string {
	return "🎮 <b>Active game:</b>\n\n" +
		fmt.Sprintf("🆔 Lobby: <code>%s</code>\n", s.LobbyID) +
		fmt.Sprintf("🔐 Password: <code>%s</code>\n\n", html.EscapeString(s.Password)) +
		fmt.Sprintf("⏰ Start: %s\n", s.ScheduledText()) +
		fmt.Sprintf("🏁 End: %s", s.EndText())
}

func AdminStatus(players, capacity int, s tournament.Snapshot, remaining string) string {
	active := "❌ Inactive"
	if s.Active {
		active = "✅ Active"
	}
	text := "📊 <b>Bot status:</b>\n\n" +
		fmt.Sprintf("👥 Players: %d\n", players) +
		fmt.Sprintf("🎮 Tournament: %s\n", active)
	if s.Active {
		text += fmt.Sprintf("📅 Start: %s\n", s.ScheduledText()) +
			fmt.Sprintf("🏁 End: %s\n", s.EndText()) +
			fmt.Sprintf("🧑‍🤝‍🧑 Roster: %d/%d, waiting: %d\n", len(s.Roster), capacity, len(s.WaitingList))
		if remaining != "" {
			text += fmt.Sprintf("⏰ Remaining: %s\n", remaining)
		}
	}
	return text
}

func Scheduled(s tournament.Snapshot) string {
	return "📅 Tournament scheduled\n" +
		fmt.Sprintf("⏰ Start: %s\n", s.ScheduledText()) +
		fmt.Sprintf("🏁 End: %s", s.EndText())
}
