// Package gate restricts the bot to members of the required channels.
package gate

import (
	"context"
	"log/slog"
)

// Actions that are reachable without a subscription.
const (
	ActionStart             = "/start"
	ActionHelp              = "/help"
	ActionCheckSubscription = "check_subscription"
)

type MembershipChecker interface {
	MemberStatus(ctx context.Context, channel string, accountID int64) (string, error)
}

type Gate struct {
	channels []string
	checker  MembershipChecker
	adminID  int64
	logger   *slog.Logger
}

func New(channels []string, checker MembershipChecker, adminID int64, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{channels: channels, checker: checker, adminID: adminID, logger: logger}
}

func (g *Gate) Channels() []string { return g.channels }

// IsSubscribed fails closed: a lookup error counts as not subscribed, and
// the first failing channel ends the check.
func (g *Gate) IsSubscribed(ctx context.Context, accountID int64) bool {
	for _, ch := range g.channels {
		status, err := g.checker.MemberStatus(ctx, ch, accountID)
		if err != nil {
			g.logger.Warn("subscription check failed", "channel", ch, "account_id", accountID, "error", err)
			return false
		}
		switch status {
		case "member", "creator", "administrator":
		default:
			return false
		}
	}
	return true
}

// Allows lets the admin and the allow-listed entry actions through and asks
// Telegram about everyone else.
func (g *Gate) Allows(ctx context.Context, accountID int64, action string) bool {
	if accountID == g.adminID {
		return true
	}
	switch action {
	case ActionStart, ActionHelp, ActionCheckSubscription:
		return true
	}
	return g.IsSubscribed(ctx, accountID)
}
