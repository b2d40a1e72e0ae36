package notification

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/pricepulse/core"
	"github.com/raykavin/pricepulse/i18n"
	"github.com/raykavin/pricepulse/links"
	tb "gopkg.in/tucnak/telebot.v2"
)

const handlerTimeout = 10 * time.Second

// SettingsStore is the write side of subscriber state used by the chat
// command handlers.
type SettingsStore interface {
	UpsertUser(ctx context.Context, userID int64) error
	UpdateSettings(ctx context.Context, userID int64, period time.Duration, percent float64) error
	SetLanguage(ctx context.Context, userID int64, language string) error
	SetExchange(ctx context.Context, userID int64, exchange string) error
	RedeemActivationCode(ctx context.Context, userID int64, code string) error
	RedeemPromoCode(ctx context.Context, userID int64, code string) (int, error)
	SubscriptionUntil(ctx context.Context, userID int64) (*time.Time, error)
	Preferences(ctx context.Context, userID int64) (language, exchange string, err error)
}

// Commands wires the subscriber-facing chat commands onto a Telegram
// messenger. Handlers resolve the user's language per message so replies
// follow a language switch immediately.
type Commands struct {
	bot   *Telegram
	store SettingsStore
	loc   core.Localizer
	log   core.Logger
}

// RegisterCommands attaches the command handlers to the bot client.
func RegisterCommands(bot *Telegram, store SettingsStore, loc core.Localizer, log core.Logger) *Commands {
	c := &Commands{bot: bot, store: store, loc: loc, log: log}

	bot.client.Handle("/start", c.StartHandle)
	bot.client.Handle("/status", c.StatusHandle)
	bot.client.Handle("/settings", c.SettingsHandle)
	bot.client.Handle("/language", c.LanguageHandle)
	bot.client.Handle("/exchange", c.ExchangeHandle)
	bot.client.Handle("/activate", c.ActivateHandle)
	bot.client.Handle("/promo", c.PromoHandle)

	return c
}

// StartHandle greets a new user and creates their settings row.
func (c *Commands) StartHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := int64(m.Sender.ID)
	if err := c.store.UpsertUser(ctx, userID); err != nil {
		c.log.Errorf("telegram: create user %d: %v", userID, err)
		return
	}

	c.reply(m, c.loc.Text("welcome", c.language(ctx, userID)))
}

// StatusHandle reports the user's subscription state.
func (c *Commands) StatusHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := int64(m.Sender.ID)
	language := c.language(ctx, userID)

	until, err := c.store.SubscriptionUntil(ctx, userID)
	if err != nil || until == nil {
		c.reply(m, c.loc.Text("subscription_inactive", language))
		return
	}

	now := time.Now().UTC()
	date := until.Format("02.01.2006 15:04")
	if until.After(now) {
		daysLeft := int(until.Sub(now).Hours()/24) + 1
		c.reply(m, c.loc.Text("subscription_active", language, date, daysLeft))
		return
	}
	c.reply(m, c.loc.Text("subscription_expired", language, date))
}

// SettingsHandle updates the alert period and threshold:
// /settings <period_min> <percent>.
func (c *Commands) SettingsHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := int64(m.Sender.ID)
	language := c.language(ctx, userID)

	fields := strings.Fields(m.Payload)
	if len(fields) != 2 {
		c.reply(m, c.loc.Text("settings_usage", language))
		return
	}

	minutes, err := strconv.Atoi(fields[0])
	percent, perr := strconv.ParseFloat(fields[1], 64)
	if err != nil || perr != nil || minutes <= 0 || percent <= 0 {
		c.reply(m, c.loc.Text("settings_invalid", language))
		return
	}

	period := time.Duration(minutes) * time.Minute
	if err := c.store.UpdateSettings(ctx, userID, period, percent); err != nil {
		c.log.Errorf("telegram: update settings for %d: %v", userID, err)
		c.reply(m, c.loc.Text("settings_invalid", language))
		return
	}

	c.reply(m, c.loc.Text("settings_saved", language, minutes, percent))
}

// LanguageHandle switches the interface language: /language ru|en.
func (c *Commands) LanguageHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := int64(m.Sender.ID)
	language := strings.ToLower(strings.TrimSpace(m.Payload))
	if !i18n.IsValidLanguage(language) {
		c.reply(m, c.loc.Text("settings_usage", c.language(ctx, userID)))
		return
	}

	if err := c.store.SetLanguage(ctx, userID, language); err != nil {
		c.log.Errorf("telegram: set language for %d: %v", userID, err)
		return
	}

	c.reply(m, c.loc.Text("language_saved", language))
}

// ExchangeHandle switches the preferred exchange for alert links:
// /exchange binance|bybit|bingx|okx|bitget|tradingview.
func (c *Commands) ExchangeHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := int64(m.Sender.ID)
	language := c.language(ctx, userID)

	exchange := strings.ToLower(strings.TrimSpace(m.Payload))
	if !links.IsKnownExchange(exchange) {
		available := append([]string{links.ExchangeTradingView}, links.Exchanges()...)
		c.reply(m, c.loc.Text("exchange_unknown", language, strings.Join(available, ", ")))
		return
	}

	if err := c.store.SetExchange(ctx, userID, exchange); err != nil {
		c.log.Errorf("telegram: set exchange for %d: %v", userID, err)
		return
	}

	c.reply(m, c.loc.Text("exchange_saved", language, links.DisplayName(exchange)))
}

// ActivateHandle redeems an access code: /activate <code>.
func (c *Commands) ActivateHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := int64(m.Sender.ID)
	language := c.language(ctx, userID)

	code := strings.TrimSpace(m.Payload)
	if err := c.store.RedeemActivationCode(ctx, userID, code); err != nil {
		if !errors.Is(err, core.ErrCodeNotFound) {
			c.log.Errorf("telegram: activation code for %d: %v", userID, err)
		}
		c.reply(m, c.loc.Text("activation_invalid", language))
		return
	}

	c.reply(m, c.loc.Text("activation_success", language))
}

// PromoHandle redeems a promo code: /promo <code>.
func (c *Commands) PromoHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := int64(m.Sender.ID)
	language := c.language(ctx, userID)

	code := strings.TrimSpace(m.Payload)
	days, err := c.store.RedeemPromoCode(ctx, userID, code)
	switch {
	case errors.Is(err, core.ErrCodeAlreadyUsed):
		c.reply(m, c.loc.Text("promo_already_used", language))
	case err != nil:
		if !errors.Is(err, core.ErrCodeNotFound) {
			c.log.Errorf("telegram: promo code for %d: %v", userID, err)
		}
		c.reply(m, c.loc.Text("promo_invalid", language))
	default:
		c.reply(m, c.loc.Text("promo_success", language, code, days))
	}
}

func (c *Commands) language(ctx context.Context, userID int64) string {
	language, _, err := c.store.Preferences(ctx, userID)
	if err != nil {
		return i18n.DefaultLanguage
	}
	return language
}

func (c *Commands) reply(m *tb.Message, text string) {
	if _, err := c.bot.client.Send(m.Sender, text, &tb.SendOptions{ParseMode: tb.ModeMarkdown}); err != nil {
		c.log.Errorf("telegram: reply to %d: %v", m.Sender.ID, err)
	}
}
