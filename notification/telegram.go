// Package notification delivers alert messages to subscribers over Telegram.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/pricepulse/core"
	tb "gopkg.in/tucnak/telebot.v2"
)

const pollingTimeout = 10 * time.Second

// Telegram implements core.Messenger over a telebot client. The same client
// also serves the small command surface subscribers use to manage their
// settings; alert delivery and command handling share one bot token.
type Telegram struct {
	client *tb.Bot
	log    core.Logger
}

// Option configures a Telegram instance.
type Option func(t *Telegram)

// WithClient substitutes a pre-built bot client, used in tests.
func WithClient(client *tb.Bot) Option {
	return func(t *Telegram) { t.client = client }
}

// NewTelegram creates a Telegram messenger with long polling.
func NewTelegram(token string, log core.Logger, options ...Option) (*Telegram, error) {
	t := &Telegram{log: log}
	for _, option := range options {
		option(t)
	}

	if t.client == nil {
		client, err := tb.NewBot(tb.Settings{
			ParseMode: tb.ModeMarkdown,
			Token:     token,
			Poller:    &tb.LongPoller{Timeout: pollingTimeout},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram bot: %w", err)
		}
		t.client = client
	}

	return t, nil
}

// Start runs the telebot update loop until Stop is called. Alert delivery
// does not require it, only inbound command handling does.
func (t *Telegram) Start() {
	t.log.Info("telegram: polling started")
	t.client.Start()
}

// Stop terminates the update loop.
func (t *Telegram) Stop() {
	t.client.Stop()
}

// SendAlert delivers one alert message with an inline keyboard of exchange
// links. Blocked and deactivated chats are reported as errors for the caller
// to log; no retries happen here.
func (t *Telegram) SendAlert(ctx context.Context, userID int64, text string, links []core.AlertLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recipient := &tb.User{ID: userID}

	_, err := t.client.Send(recipient, text, &tb.SendOptions{
		ParseMode:   tb.ModeMarkdown,
		ReplyMarkup: inlineKeyboard(links),
	})
	if err != nil {
		if blocked(err) {
			return fmt.Errorf("chat %d unreachable: %w", userID, err)
		}
		return fmt.Errorf("failed to send alert to %d: %w", userID, err)
	}

	return nil
}

// inlineKeyboard lays the alert links out one button per row, matching the
// chat layout users expect on mobile.
func inlineKeyboard(links []core.AlertLink) *tb.ReplyMarkup {
	if len(links) == 0 {
		return nil
	}

	rows := make([][]tb.InlineButton, 0, len(links))
	for _, link := range links {
		rows = append(rows, []tb.InlineButton{{Text: link.Label, URL: link.URL}})
	}
	return &tb.ReplyMarkup{InlineKeyboard: rows}
}

// blocked reports whether the delivery error means the user cannot be
// reached at all, as opposed to a transient API failure.
func blocked(err error) bool {
	if errors.Is(err, tb.ErrBlockedByUser) || errors.Is(err, tb.ErrUserIsDeactivated) || errors.Is(err, tb.ErrChatNotFound) {
		return true
	}
	// telebot wraps some API errors as plain strings.
	msg := err.Error()
	return strings.Contains(msg, "blocked") || strings.Contains(msg, "deactivated")
}
