// Package monitor implements the price-tracking core: the per-user baseline
// state machine, the notification dispatch queue, the settings synchronizer
// and the supervisor that ties them to the market-data feed.
package monitor

import (
	"sync"
	"time"

	"github.com/raykavin/pricepulse/core"
)

// JobSink accepts notification jobs produced by the tracker. Enqueue must
// never block; it reports whether the job was accepted.
type JobSink interface {
	Enqueue(job core.NotificationJob) bool
}

// Tracker owns the per-(user, symbol) baseline state and decides, for every
// tick, whether to alert, roll the baseline forward, or wait.
//
// All state is guarded by a single mutex shared between the tick path and
// the settings synchronizer. Tick rates are bounded by exchange update
// frequency, so one coarse lock is enough.
type Tracker struct {
	mu        sync.Mutex
	configs   map[int64]core.UserConfig
	baselines map[int64]map[string]core.Baseline

	sink  JobSink
	clock core.Clock
	log   core.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source, used by tests.
func WithClock(clock core.Clock) TrackerOption {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// NewTracker creates a tracker that emits jobs into sink.
func NewTracker(sink JobSink, log core.Logger, options ...TrackerOption) *Tracker {
	tracker := &Tracker{
		configs:   make(map[int64]core.UserConfig),
		baselines: make(map[int64]map[string]core.Baseline),
		sink:      sink,
		clock:     time.Now,
		log:       log,
	}

	for _, option := range options {
		option(tracker)
	}

	return tracker
}

// OnTick evaluates one tick against every active user. A failure for one
// user is logged and never stops evaluation for the rest.
func (t *Tracker) OnTick(tick core.PriceTick) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.configs) == 0 {
		return
	}

	for userID, cfg := range t.configs {
		if err := t.evaluate(userID, cfg, tick); err != nil {
			t.log.WithError(err).
				WithField("user", userID).
				WithField("symbol", tick.Symbol).
				Error("tick evaluation failed")
		}
	}
}

// evaluate runs the baseline state machine for a single user. Caller holds
// the lock.
func (t *Tracker) evaluate(userID int64, cfg core.UserConfig, tick core.PriceTick) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	bucket, ok := t.baselines[userID]
	if !ok {
		bucket = make(map[string]core.Baseline)
		t.baselines[userID] = bucket
	}

	baseline, ok := bucket[tick.Symbol]
	if !ok {
		// First tick for this pair only arms the baseline.
		bucket[tick.Symbol] = core.Baseline{Price: tick.Price, Time: tick.Time}
		t.log.Debugf("[user %d] baseline armed for %s at %s", userID, tick.Symbol, FormatPrice(tick.Price))
		return nil
	}

	var pct float64
	if baseline.Price > 0 {
		pct = (tick.Price - baseline.Price) / baseline.Price * 100
	}

	switch {
	case abs(pct) >= cfg.Percent:
		// Threshold breach re-bases immediately, regardless of elapsed time.
		accepted := t.sink.Enqueue(core.NotificationJob{
			UserID:        userID,
			Symbol:        tick.Symbol,
			OldPrice:      baseline.Price,
			NewPrice:      tick.Price,
			PercentChange: pct,
			Time:          tick.Time,
		})
		if !accepted {
			t.log.Debugf("[user %d] alert for %s dropped, notification queue full", userID, tick.Symbol)
		}
		bucket[tick.Symbol] = core.Baseline{Price: tick.Price, Time: tick.Time}
		t.log.Infof("[user %d] %s moved %+.2f%% (threshold %.2f%%), baseline reset to %s",
			userID, tick.Symbol, pct, cfg.Percent, FormatPrice(tick.Price))

	case tick.Time.Sub(baseline.Time) >= cfg.Period:
		// Period elapsed without a breach: refresh silently so slow drifts
		// never alert against an ancient baseline.
		bucket[tick.Symbol] = core.Baseline{Price: tick.Price, Time: tick.Time}
		t.log.Debugf("[user %d] period elapsed for %s, baseline reset to %s without alert",
			userID, tick.Symbol, FormatPrice(tick.Price))
	}

	return nil
}

// SetConfig installs or updates the configuration for a user. On a changed
// config the user's baselines keep their prices but their timestamps move to
// now, so the next tick is evaluated under the new settings without an
// immediate false re-trigger.
func (t *Tracker) SetConfig(cfg core.UserConfig) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.configs[cfg.UserID]
	if ok && existing.Equal(cfg) {
		return false
	}

	t.configs[cfg.UserID] = cfg
	if _, ok := t.baselines[cfg.UserID]; !ok {
		t.baselines[cfg.UserID] = make(map[string]core.Baseline)
	}

	if ok {
		now := t.clock()
		bucket := t.baselines[cfg.UserID]
		for symbol, baseline := range bucket {
			bucket[symbol] = core.Baseline{Price: baseline.Price, Time: now}
		}
	}

	return true
}

// Evict removes all state for a user whose subscription lapsed.
func (t *Tracker) Evict(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.configs, userID)
	delete(t.baselines, userID)
}

// ActiveUsers returns the ids currently tracked.
func (t *Tracker) ActiveUsers() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]int64, 0, len(t.configs))
	for userID := range t.configs {
		users = append(users, userID)
	}
	return users
}

// ActiveCount returns how many users are currently tracked.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.configs)
}

// Baseline returns the current baseline for a (user, symbol) pair, if set.
func (t *Tracker) Baseline(userID int64, symbol string) (core.Baseline, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.baselines[userID]
	if !ok {
		return core.Baseline{}, false
	}
	baseline, ok := bucket[symbol]
	return baseline, ok
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
