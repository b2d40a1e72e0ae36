package core

import "time"

// PriceTick is one price update for one symbol from the market-data feed.
// Ticks are ephemeral: produced by the feed, consumed once by the tracker.
type PriceTick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Baseline is the price and timestamp a user's deviation is measured
// against for a single symbol. The price is only ever replaced by a tick's
// price, never interpolated.
type Baseline struct {
	Price float64
	Time  time.Time
}

// NotificationJob is the value passed from the tracker to the dispatch
// workers. The field set is closed; jobs are never persisted and at-least-once
// delivery is acceptable.
type NotificationJob struct {
	UserID        int64
	Symbol        string
	OldPrice      float64
	NewPrice      float64
	PercentChange float64
	Time          time.Time
}

// UserConfig mirrors a subscriber's alert settings from persisted storage.
// The monitor treats it as read-only.
type UserConfig struct {
	UserID   int64
	Period   time.Duration
	Percent  float64
	Language string
	Exchange string
}

// Validate re-checks the invariants enforced at configuration-write time.
// The tracker calls it defensively before evaluating a tick for a user.
func (c UserConfig) Validate() error {
	if c.Percent <= 0 {
		return ErrInvalidPercent
	}
	if c.Period <= 0 {
		return ErrInvalidPeriod
	}
	return nil
}

// Equal reports whether two configs match on every field the synchronizer
// diffs: period, percent, language and exchange.
func (c UserConfig) Equal(other UserConfig) bool {
	return c.Period == other.Period &&
		c.Percent == other.Percent &&
		c.Language == other.Language &&
		c.Exchange == other.Exchange
}

// AlertLink is one clickable button attached to an alert message.
type AlertLink struct {
	Label string
	URL   string
}
