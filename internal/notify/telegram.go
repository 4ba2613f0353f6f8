// Package notify sends administrator notifications through a Telegram bot.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mmynk/tontine/internal/models"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts messages to the administrator chat. A nil *Telegram is a
// valid notifier that drops every message.
type Telegram struct {
	api       Sender
	adminChat int64
}

// NewTelegram connects to the Bot API. An empty token disables notifications
// and returns a nil notifier.
func NewTelegram(token string, adminChatID int64) (*Telegram, error) {
	if token == "" {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	slog.Info("Telegram notifier ready", "bot", api.Self.UserName, "admin_chat_id", adminChatID)
	return NewTelegramWithSender(api, adminChatID), nil
}

// NewTelegramWithSender creates a notifier around an existing sender.
func NewTelegramWithSender(api Sender, adminChatID int64) *Telegram {
	return &Telegram{api: api, adminChat: adminChatID}
}

func (t *Telegram) send(text string) {
	if t == nil || t.adminChat == 0 {
		return
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(t.adminChat, text)); err != nil {
		slog.Error("Telegram send failed", "error", err)
	}
}

// AccountRegistered announces a new account.
func (t *Telegram) AccountRegistered(_ context.Context, account *models.Account) {
	t.send(fmt.Sprintf("Nouveau compte: %s", account.Phone))
}

// PaymentSubmitted announces a payment awaiting validation.
func (t *Telegram) PaymentSubmitted(_ context.Context, payment *models.Payment) {
	t.send(fmt.Sprintf("Nouveau paiement de %d FCFA, référence %s (compte %s)",
		payment.Amount, payment.Reference, payment.AccountID))
}

// PendingDigest reports how many payments wait for validation.
func (t *Telegram) PendingDigest(_ context.Context, pending int) {
	if pending == 0 {
		return
	}
	t.send(fmt.Sprintf("%d paiement(s) en attente de validation", pending))
}
