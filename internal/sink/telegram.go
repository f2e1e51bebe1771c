package sink

import (
	"context"
	"fmt"
	"time"

	"hedgeye-alert-monitor/internal/api"
	"hedgeye-alert-monitor/internal/interfaces"
)

// Telegram delivers preformatted text messages to a Telegram chat through the
// bot API. Delivery is fire-and-forget: no retries, no acknowledgment beyond
// the HTTP status.
type Telegram struct {
	client *api.Client
	chatID string
}

var _ interfaces.MessageSink = (*Telegram)(nil)

// NewTelegram creates a Telegram sink for the given bot token and chat ID.
func NewTelegram(botToken, chatID string) *Telegram {
	return newTelegram(api.NewClient(
		api.WithBaseURL(fmt.Sprintf("https://api.telegram.org/bot%s", botToken)),
		api.WithTimeout(15*time.Second),
		api.WithLogging(true),
	), chatID)
}

func newTelegram(client *api.Client, chatID string) *Telegram {
	return &Telegram{client: client, chatID: chatID}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// SendMessage posts the message to the chat.
func (t *Telegram) SendMessage(ctx context.Context, message string) error {
	_, err := t.client.POST(ctx, "/sendMessage", sendMessageRequest{
		ChatID: t.chatID,
		Text:   message,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	return nil
}
