package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raykavin/pricepulse/core"
	"github.com/samber/lo"
)

// Synchronizer mirrors persisted subscription state into the tracker on a
// fixed interval. One failed pass is logged and the schedule continues; the
// in-memory state stays at the last known good snapshot.
type Synchronizer struct {
	store      core.SubscriberStore
	tracker    *Tracker
	dispatcher *Dispatcher

	interval      time.Duration
	statsInterval time.Duration
	log           core.Logger

	lastPass  atomic.Int64
	lastStats time.Time
	wg        sync.WaitGroup
}

// SynchronizerOption configures a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithSyncInterval sets the reload cadence.
func WithSyncInterval(interval time.Duration) SynchronizerOption {
	return func(s *Synchronizer) {
		s.interval = interval
	}
}

// WithStatsInterval sets how often a stats line is logged.
func WithStatsInterval(interval time.Duration) SynchronizerOption {
	return func(s *Synchronizer) {
		s.statsInterval = interval
	}
}

// NewSynchronizer creates a synchronizer feeding tracker from store. The
// dispatcher is only consulted for queue-depth stats.
func NewSynchronizer(
	store core.SubscriberStore,
	tracker *Tracker,
	dispatcher *Dispatcher,
	log core.Logger,
	options ...SynchronizerOption,
) *Synchronizer {
	s := &Synchronizer{
		store:         store,
		tracker:       tracker,
		dispatcher:    dispatcher,
		interval:      30 * time.Second,
		statsInterval: 5 * time.Minute,
		log:           log,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Start runs the sync loop until the context is cancelled. The first pass
// happens immediately so the tracker is populated before the feed connects.
func (s *Synchronizer) Start(ctx context.Context) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.Info("settings synchronizer started")
		s.SyncOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SyncOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the sync loop has exited.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// Alive reports whether a pass completed within the last three intervals.
func (s *Synchronizer) Alive() bool {
	last := s.lastPass.Load()
	if last == 0 {
		return true // not started yet
	}
	return time.Since(time.Unix(0, last)) < 3*s.interval
}

// SyncOnce performs a single reload pass: install new/changed configs, evict
// lapsed users, trigger expiry cleanup in storage and log periodic stats.
func (s *Synchronizer) SyncOnce(ctx context.Context) {
	defer s.lastPass.Store(time.Now().UnixNano())

	users, err := s.store.SubscribedUsers(ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to load subscribed users")
		return
	}

	s.log.Debugf("found %d subscribed users", len(users))

	active := lo.SliceToMap(users, func(cfg core.UserConfig) (int64, struct{}) {
		return cfg.UserID, struct{}{}
	})

	for _, cfg := range users {
		if err := cfg.Validate(); err != nil {
			s.log.WithError(err).Warnf("skipping user %d with invalid settings", cfg.UserID)
			continue
		}
		if s.tracker.SetConfig(cfg) {
			s.log.Infof("updated settings for user %d: period=%s percent=%.2f language=%s exchange=%s",
				cfg.UserID, cfg.Period, cfg.Percent, cfg.Language, cfg.Exchange)
		}
	}

	lapsed := lo.Reject(s.tracker.ActiveUsers(), func(userID int64, _ int) bool {
		_, ok := active[userID]
		return ok
	})
	for _, userID := range lapsed {
		s.tracker.Evict(userID)
		s.log.Infof("removed tracking state for inactive user %d", userID)
	}

	if removed, err := s.store.CleanupExpired(ctx); err != nil {
		s.log.WithError(err).Error("expired subscription cleanup failed")
	} else if removed > 0 {
		s.log.Infof("cleaned up %d expired subscriptions", removed)
	}

	if time.Since(s.lastStats) >= s.statsInterval {
		s.lastStats = time.Now()
		s.log.Infof("active users: %d, queue depth: %d",
			s.tracker.ActiveCount(), s.dispatcher.QueueDepth())
	}
}
