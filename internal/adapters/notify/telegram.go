package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/prognohq/alphabot/internal/domain"
)

// Telegram implements ports.Notifier over the Bot API. Delivery is
// fire-and-forget: a failed send is logged and dropped, never retried into
// the trading cycle's latency budget.
type Telegram struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	maxRetries int
	retryDelay time.Duration
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(botToken, chatID string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: create bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: invalid chat id %q: %w", chatID, err)
	}

	return &Telegram{
		bot:        bot,
		chatID:     chatIDInt,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// NotifyHighConfidence pushes a high-confidence pick. The send happens on
// its own goroutine so a slow Bot API never stalls the trading cycle.
func (t *Telegram) NotifyHighConfidence(_ context.Context, d domain.Decision) {
	go func() {
		if err := t.sendMarkdownV2(formatPick(d)); err != nil {
			slog.Warn("telegram notification dropped",
				"market", d.MarketID, "error", err)
		}
	}()
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (t *Telegram) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if _, err := t.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(t.retryDelay * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", t.maxRetries, lastErr)
}

// formatPick renders a decision as a MarkdownV2 alert.
func formatPick(d domain.Decision) string {
	var sb strings.Builder
	sb.WriteString("🎯 *High\\-confidence pick*\n\n")
	fmt.Fprintf(&sb, "Market: `%s`\n", escapeMarkdownV2(d.MarketID))
	fmt.Fprintf(&sb, "Side: *%s*\n", escapeMarkdownV2(string(d.Side)))
	fmt.Fprintf(&sb, "Confidence: %s\n", escapeMarkdownV2(fmt.Sprintf("%.0f", d.Confidence)))
	fmt.Fprintf(&sb, "Edge: %s\n", escapeMarkdownV2(fmt.Sprintf("%+.3f", d.Edge)))
	fmt.Fprintf(&sb, "Stake: %s\n", escapeMarkdownV2("$"+d.Stake.StringFixed(2)))
	for _, r := range d.Rationale {
		fmt.Fprintf(&sb, "• %s\n", escapeMarkdownV2(r))
	}
	return sb.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
