// Package monitor contains the price monitoring pipeline: baseline tracking,
// notification dispatch, settings synchronization and the supervisor that
// ties them to the market data feed.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/pricepulse/core"
	"github.com/robfig/cron/v3"
)

// Feed is the price stream driver. Run blocks until the context is
// cancelled or reconnection attempts are exhausted.
type Feed interface {
	Run(ctx context.Context, symbols []string, consumer core.TickConsumer) error
	Alive() bool
}

// ListingRefresher refreshes the cached exchange listing sets used for
// alert links.
type ListingRefresher interface {
	Refresh(ctx context.Context)
}

const (
	listingRefreshSpec = "0 3 * * *"
	expirySweepSpec    = "30 3 * * *"
)

// Supervisor owns the lifecycle of the monitoring pipeline. Components are
// started in dependency order and stopped in reverse, with the dispatcher
// draining last so alerts already produced still go out.
type Supervisor struct {
	market       core.MarketData
	feed         Feed
	tracker      *Tracker
	dispatcher   *Dispatcher
	synchronizer *Synchronizer
	store        core.SubscriberStore
	listings     ListingRefresher
	log          core.Logger

	healthInterval time.Duration
	cron           *cron.Cron
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(s *Supervisor)

// WithHealthInterval sets how often component liveness is checked.
func WithHealthInterval(interval time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.healthInterval = interval }
}

// NewSupervisor assembles the pipeline from already-constructed components.
func NewSupervisor(
	market core.MarketData,
	feed Feed,
	tracker *Tracker,
	dispatcher *Dispatcher,
	synchronizer *Synchronizer,
	store core.SubscriberStore,
	listings ListingRefresher,
	log core.Logger,
	options ...SupervisorOption,
) *Supervisor {
	s := &Supervisor{
		market:         market,
		feed:           feed,
		tracker:        tracker,
		dispatcher:     dispatcher,
		synchronizer:   synchronizer,
		store:          store,
		listings:       listings,
		log:            log,
		healthInterval: 10 * time.Second,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Run starts every component and blocks on the price feed until the context
// is cancelled or the feed gives up reconnecting. Shutdown is graceful
// either way: the synchronizer stops first, then the dispatcher drains.
func (s *Supervisor) Run(ctx context.Context) error {
	symbols, err := s.market.TradableSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load symbol universe: %w", err)
	}
	if len(symbols) == 0 {
		return core.ErrEmptyUniverse
	}
	s.log.Infof("monitoring %d symbols", len(symbols))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The dispatcher outlives runCtx on purpose: its workers must stay up
	// through the drain in Stop after everything else is cancelled.
	s.dispatcher.Start(context.Background())
	s.synchronizer.Start(runCtx)
	s.startCron(runCtx)

	healthDone := make(chan struct{})
	go s.healthLoop(runCtx, healthDone)

	err = s.feed.Run(runCtx, symbols, s.tracker.OnTick)

	// Feed is down, wind the rest of the pipeline down in reverse order.
	cancel()
	<-healthDone
	s.cron.Stop()
	s.synchronizer.Wait()
	s.dispatcher.Stop()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("price feed terminated: %w", err)
	}
	return ctx.Err()
}

func (s *Supervisor) startCron(ctx context.Context) {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc(listingRefreshSpec, func() {
		s.log.Info("refreshing exchange listing caches")
		s.listings.Refresh(ctx)
	}); err != nil {
		s.log.WithError(err).Error("failed to schedule listing refresh")
	}

	if _, err := s.cron.AddFunc(expirySweepSpec, func() {
		if removed, err := s.store.CleanupExpired(ctx); err != nil {
			s.log.WithError(err).Error("nightly subscription sweep failed")
		} else {
			s.log.Infof("nightly subscription sweep removed %d entries", removed)
		}
	}); err != nil {
		s.log.WithError(err).Error("failed to schedule subscription sweep")
	}

	s.cron.Start()
}

// healthLoop periodically reports components that stopped doing work.
// Nothing is restarted automatically: a dead feed already unwinds Run, and
// a dead worker indicates a bug that a blind restart would only mask.
func (s *Supervisor) healthLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.feed.Alive() {
				s.log.Warn("price feed is not receiving data")
			}
			if !s.dispatcher.Alive() {
				s.log.Warn("notification workers are not all running")
			}
			if !s.synchronizer.Alive() {
				s.log.Warn("settings synchronizer missed its schedule")
			}
		}
	}
}
