// Package telegram adapts the Telegram bot API to notify.Notifier and
// notify.Listener.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/apeks827/JiraTasksUpdate/internal/notify"
)

// Menu button labels. These double as the command vocabulary understood by
// the command surface, so they must match internal/bot exactly.
const (
	ButtonIssuesOnMe = "Issues on me"
	ButtonStop       = "-"
	ButtonUpdates    = "Updates"
	ButtonReport     = "Daily Report"
)

// Bot wraps a Telegram bot client.
type Bot struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
}

// New authenticates against the Telegram API. An invalid token fails here,
// before any worker starts.
func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Bot{api: api, pollTimeout: 60}, nil
}

// SendMessage implements notify.Notifier.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string, html bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if html {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.DisableWebPagePreview = true
	return b.send(ctx, msg)
}

// SendLinkList sends a header message with one inline URL button per link.
func (b *Bot) SendLinkList(ctx context.Context, chatID int64, header string, links []notify.Link) error {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(links))
	for _, l := range links {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(truncate(l.Label, 60), l.URL),
		))
	}
	msg := tgbotapi.NewMessage(chatID, header)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.send(ctx, msg)
}

// SendMenu sends text with the persistent reply keyboard.
func (b *Bot) SendMenu(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonIssuesOnMe),
			tgbotapi.NewKeyboardButton(ButtonStop),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonUpdates),
			tgbotapi.NewKeyboardButton(ButtonReport),
		),
	)
	return b.send(ctx, msg)
}

// SendRemoveMenu sends text and removes the reply keyboard.
func (b *Bot) SendRemoveMenu(ctx context.Context, chatID int64, text string, html bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if html {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	return b.send(ctx, msg)
}

// Updates implements notify.Listener via long polling. Non-text updates are
// dropped here so the command surface only ever sees text.
func (b *Bot) Updates(ctx context.Context) <-chan notify.Inbound {
	out := make(chan notify.Inbound)
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(cfg)

	go func() {
		defer close(out)
		defer b.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if u.Message == nil || u.Message.Text == "" {
					continue
				}
				in := notify.Inbound{ChatID: u.Message.Chat.ID, Text: u.Message.Text}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (b *Bot) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", msg.ChatID, err)
	}
	slog.Debug("telegram message sent", "chat_id", msg.ChatID)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
