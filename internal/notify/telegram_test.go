package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mmynk/tontine/internal/models"
)

type fakeSender struct {
	texts []string
	chats []int64
	err   error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if ok {
		f.texts = append(f.texts, msg.Text)
		f.chats = append(f.chats, msg.ChatID)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegram(t *testing.T) {
	ctx := context.Background()

	t.Run("sends to admin chat", func(t *testing.T) {
		sender := &fakeSender{}
		n := NewTelegramWithSender(sender, 42)

		n.AccountRegistered(ctx, &models.Account{Phone: "0102030405"})
		n.PaymentSubmitted(ctx, &models.Payment{Amount: 700, Reference: "OM-1", AccountID: "a1"})
		n.PendingDigest(ctx, 0)
		n.PendingDigest(ctx, 3)

		if len(sender.texts) != 3 {
			t.Fatalf("Expected 3 messages, got %d: %v", len(sender.texts), sender.texts)
		}
		if sender.chats[0] != 42 {
			t.Errorf("Expected chat 42, got %d", sender.chats[0])
		}
		if !strings.Contains(sender.texts[1], "OM-1") {
			t.Errorf("Expected reference in message, got %q", sender.texts[1])
		}
	})

	t.Run("send failure is swallowed", func(t *testing.T) {
		n := NewTelegramWithSender(&fakeSender{err: errors.New("boom")}, 42)
		n.PendingDigest(ctx, 1)
	})

	t.Run("disabled", func(t *testing.T) {
		n, err := NewTelegram("", 42)
		if err != nil {
			t.Fatalf("NewTelegram failed: %v", err)
		}
		if n != nil {
			t.Fatal("Expected nil notifier for empty token")
		}
		n.AccountRegistered(ctx, &models.Account{Phone: "1"})
	})
}
