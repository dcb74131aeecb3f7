// Package telegram pushes dispatcher run summaries to an ops chat.
package telegram

import (
	"context"
	"fmt"

	"support_plan_notifier/internal/app"

	"gopkg.in/telebot.v3"
)

// SummaryNotifier implements app.RunSummaryNotifier over a Telegram bot.
type SummaryNotifier struct {
	bot    *telebot.Bot
	chatID int64
}

func NewSummaryNotifier(token string, chatID int64) (*SummaryNotifier, error) {
	bot, err := telebot.NewBot(telebot.Settings{Token: token, Offline: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &SummaryNotifier{bot: bot, chatID: chatID}, nil
}

func (n *SummaryNotifier) NotifyRunSummary(ctx context.Context, report app.DispatchReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := n.bot.Send(&telebot.Chat{ID: n.chatID}, report.String())
	if err != nil {
		return fmt.Errorf("failed to send run summary: %w", err)
	}
	return nil
}
