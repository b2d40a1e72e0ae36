// Package core defines the domain model and the interfaces that connect the
// price monitor to its collaborators: market data, chat delivery, subscriber
// storage, link resolution and localization.
package core

import (
	"context"
	"time"
)

// MarketData provides the tradable symbol universe and a push stream of
// ticker updates. A subscription session lives until the given context is
// cancelled; both channels are closed when the session ends.
type MarketData interface {
	// TradableSymbols returns all instruments currently open for trading.
	TradableSymbols(ctx context.Context) ([]string, error)

	// TickerSubscription opens a push subscription for the given symbols and
	// returns a tick channel and an error channel. A value on the error
	// channel means the underlying connection is no longer healthy.
	TickerSubscription(ctx context.Context, symbols []string) (chan PriceTick, chan error)
}

// Messenger delivers a formatted alert to a single chat recipient.
// Implementations must treat delivery as fire-and-forget: failures are
// returned for logging, never retried here.
type Messenger interface {
	SendAlert(ctx context.Context, userID int64, text string, links []AlertLink) error
}

// SubscriberStore is the read side of the persisted subscription state.
// The monitor never writes subscription data, it only lists valid
// subscribers and triggers expiry cleanup.
type SubscriberStore interface {
	// SubscribedUsers lists users whose subscription has not expired.
	SubscribedUsers(ctx context.Context) ([]UserConfig, error)

	// CleanupExpired clears lapsed subscriptions and reports how many were
	// affected.
	CleanupExpired(ctx context.Context) (int64, error)

	// Preferences resolves the delivery language and preferred exchange for
	// a user at send time.
	Preferences(ctx context.Context, userID int64) (language, exchange string, err error)
}

// LinkResolver answers whether a symbol is listed on an exchange and builds
// clickable deep links for it. Implementations degrade to a generic charting
// link when the exchange is unavailable.
type LinkResolver interface {
	SymbolListed(ctx context.Context, symbol, exchange string) (bool, error)
	Links(symbol, exchange, language string) []AlertLink
}

// Localizer resolves a message key to a formatted string in the given
// language.
type Localizer interface {
	Text(key, language string, args ...any) string
}

// TickConsumer receives one decoded price tick. The feed calls it
// synchronously, in arrival order, from the connection goroutine.
type TickConsumer func(tick PriceTick)

// Clock abstracts time for the tracker and synchronizer so state transitions
// can be tested deterministically.
type Clock func() time.Time
