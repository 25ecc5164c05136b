package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/aatumaykin/autoclaim/internal/logger"
)

// BotSender is the slice of the Telegram bot API the sink uses.
type BotSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Telegram sends notifications to one chat. Sends run on their own
// goroutine so a slow Bot API never delays a claim.
type Telegram struct {
	bot     BotSender
	chatID  int64
	timeout time.Duration
	logger  *logger.Logger
	wg      sync.WaitGroup
}

// NewTelegram creates a sink backed by a telego bot.
func NewTelegram(token string, chatID int64, timeout time.Duration, log *logger.Logger) (*Telegram, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramWithBot(bot, chatID, timeout, log), nil
}

// NewTelegramWithBot creates a sink around an existing sender.
func NewTelegramWithBot(bot BotSender, chatID int64, timeout time.Duration, log *logger.Logger) *Telegram {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telegram{bot: bot, chatID: chatID, timeout: timeout, logger: log}
}

func (t *Telegram) Notify(ctx context.Context, title, body string) {
	t.send(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: t.chatID},
		Text:   title + "\n" + body,
	})
}

func (t *Telegram) NotifyWithLink(ctx context.Context, title, body, url string) {
	t.send(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: t.chatID},
		Text:   title + "\n" + body,
		ReplyMarkup: &telego.InlineKeyboardMarkup{
			InlineKeyboard: [][]telego.InlineKeyboardButton{{
				{Text: "View transaction", URL: url},
			}},
		},
	})
}

func (t *Telegram) send(ctx context.Context, params *telego.SendMessageParams) {
	// detach from the caller's cancellation, keep its values
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		if _, err := t.bot.SendMessage(sendCtx, params); err != nil {
			t.logger.Warn("telegram notification failed",
				logger.Field{Key: "chat_id", Value: t.chatID},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}()
}

// Wait blocks until in-flight sends finish.
func (t *Telegram) Wait() {
	t.wg.Wait()
}
