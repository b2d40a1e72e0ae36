// Package exchange provides the live price feed: a reconnecting adapter over
// a market-data push stream, delivering ticks to the tracking core.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/StudioSol/set"
	"github.com/jpillora/backoff"
	"github.com/raykavin/pricepulse/core"
)

// PriceFeed keeps a subscription to the symbol universe alive. It watches
// for silent connections, reconnects with exponential backoff and hands each
// tick synchronously to the consumer, preserving arrival order.
type PriceFeed struct {
	market core.MarketData
	log    core.Logger

	deadTime    time.Duration
	backoffMin  time.Duration
	backoffMax  time.Duration
	maxAttempts int

	lastTick atomic.Int64
	running  atomic.Bool
}

// FeedOption configures a PriceFeed.
type FeedOption func(*PriceFeed)

// WithDeadTime sets how long the feed may stay silent before the connection
// is treated as dead.
func WithDeadTime(deadTime time.Duration) FeedOption {
	return func(f *PriceFeed) {
		f.deadTime = deadTime
	}
}

// WithReconnectPolicy sets the backoff bounds and the attempt budget.
func WithReconnectPolicy(min, max time.Duration, attempts int) FeedOption {
	return func(f *PriceFeed) {
		f.backoffMin = min
		f.backoffMax = max
		f.maxAttempts = attempts
	}
}

// NewPriceFeed creates a feed over the given market-data source.
func NewPriceFeed(market core.MarketData, log core.Logger, options ...FeedOption) *PriceFeed {
	feed := &PriceFeed{
		market:      market,
		log:         log,
		deadTime:    120 * time.Second,
		backoffMin:  5 * time.Second,
		backoffMax:  30 * time.Second,
		maxAttempts: 100,
	}

	for _, option := range options {
		option(feed)
	}

	return feed
}

// Run blocks, feeding ticks for the given universe to consumer until the
// context is cancelled or the reconnect budget is exhausted. Exhaustion is
// fatal and reported to the caller.
func (f *PriceFeed) Run(ctx context.Context, symbols []string, consumer core.TickConsumer) error {
	universe := set.NewLinkedHashSetString()
	for _, symbol := range symbols {
		universe.Add(symbol)
	}
	if universe.Length() == 0 {
		return core.ErrEmptyUniverse
	}

	ordered := make([]string, 0, universe.Length())
	for symbol := range universe.Iter() {
		ordered = append(ordered, symbol)
	}

	f.running.Store(true)
	defer f.running.Store(false)

	retry := &backoff.Backoff{
		Min:    f.backoffMin,
		Max:    f.backoffMax,
		Factor: 2,
	}

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil
		}

		f.log.Infof("starting price stream for %d symbols (attempt %d/%d)",
			len(ordered), attempt, f.maxAttempts)

		err := f.session(ctx, ordered, consumer)
		if err == nil {
			return nil // clean shutdown
		}

		f.log.WithError(err).Errorf("price stream failed (attempt %d)", attempt)

		if attempt == f.maxAttempts {
			break
		}

		delay := retry.Duration()
		f.log.Infof("reconnecting in %s", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}

	f.log.Error("failed to keep price stream alive after all retries")
	return core.ErrFeedExhausted
}

// session runs one subscription until the context ends, the stream errors or
// the watchdog declares the connection dead. A nil return means a clean,
// cancelled shutdown.
func (f *PriceFeed) session(ctx context.Context, symbols []string, consumer core.TickConsumer) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticks, errs := f.market.TickerSubscription(sessionCtx, symbols)

	f.lastTick.Store(time.Now().UnixNano())
	watchdog := time.NewTicker(time.Second)
	defer watchdog.Stop()

	first := true
	for {
		select {
		case <-ctx.Done():
			return nil

		case tick, ok := <-ticks:
			if !ok {
				return errors.New("tick stream closed")
			}
			f.lastTick.Store(time.Now().UnixNano())
			if first {
				first = false
				f.log.Infof("first tick received: %s = %f", tick.Symbol, tick.Price)
			}
			consumer(tick)

		case err, ok := <-errs:
			if !ok {
				return errors.New("stream error channel closed")
			}
			return fmt.Errorf("stream error: %w", err)

		case <-watchdog.C:
			silent := time.Since(time.Unix(0, f.lastTick.Load()))
			if silent > f.deadTime {
				return fmt.Errorf("no ticks for %s, connection presumed dead", silent.Round(time.Second))
			}
		}
	}
}

// Alive reports whether the feed loop is running and has seen a tick within
// the dead-time window.
func (f *PriceFeed) Alive() bool {
	if !f.running.Load() {
		return false
	}
	return time.Since(time.Unix(0, f.lastTick.Load())) <= f.deadTime
}
