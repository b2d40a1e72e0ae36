package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raykavin/pricepulse/core"
	"github.com/raykavin/pricepulse/i18n"
	"github.com/raykavin/pricepulse/links"
)

// Dispatcher decouples tick processing from outbound message latency with a
// bounded FIFO queue between the tracker and N delivery workers.
//
// Enqueue never blocks: when the queue is full the job is dropped and the
// overflow is logged. A dropped alert is recovered implicitly by the next
// threshold breach.
type Dispatcher struct {
	jobs chan core.NotificationJob

	messenger core.Messenger
	store     core.SubscriberStore
	links     core.LinkResolver
	loc       core.Localizer
	log       core.Logger

	workers    int
	sendDelay  time.Duration
	drainGrace time.Duration

	accepting   atomic.Bool
	liveWorkers atomic.Int32
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the queue capacity.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		d.jobs = make(chan core.NotificationJob, size)
	}
}

// WithWorkers sets the number of delivery workers.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.workers = n
	}
}

// WithSendDelay sets the pause between consecutive sends on one worker,
// smoothing the outbound rate against chat API limits.
func WithSendDelay(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.sendDelay = delay
	}
}

// WithDrainGrace sets how long Stop waits for queued jobs to flush.
func WithDrainGrace(grace time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.drainGrace = grace
	}
}

// NewDispatcher creates a dispatcher delivering through messenger, enriching
// messages with the user's language and exchange links.
func NewDispatcher(
	messenger core.Messenger,
	store core.SubscriberStore,
	resolver core.LinkResolver,
	loc core.Localizer,
	log core.Logger,
	options ...DispatcherOption,
) *Dispatcher {
	dispatcher := &Dispatcher{
		jobs:       make(chan core.NotificationJob, 1024),
		messenger:  messenger,
		store:      store,
		links:      resolver,
		loc:        loc,
		log:        log,
		workers:    2,
		sendDelay:  100 * time.Millisecond,
		drainGrace: 5 * time.Second,
	}

	for _, option := range options {
		option(dispatcher)
	}

	return dispatcher
}

// Start spawns the delivery workers. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.accepting.Store(true)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		d.liveWorkers.Add(1)
		go d.worker(ctx, i)
	}

	d.log.Infof("notification dispatcher started with %d workers", d.workers)
}

// Enqueue implements JobSink. It reports false when the job was dropped
// because the dispatcher is stopping or the queue is full.
func (d *Dispatcher) Enqueue(job core.NotificationJob) bool {
	if !d.accepting.Load() {
		return false
	}

	select {
	case d.jobs <- job:
		return true
	default:
		d.log.Warnf("notification queue full, dropping alert for user %d symbol %s", job.UserID, job.Symbol)
		return false
	}
}

// Stop refuses new jobs, lets queued ones drain within the grace period and
// then terminates the workers.
func (d *Dispatcher) Stop() {
	d.accepting.Store(false)

	deadline := time.Now().Add(d.drainGrace)
	for len(d.jobs) > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	if dropped := len(d.jobs); dropped > 0 {
		d.log.Warnf("dispatcher stopping with %d undelivered jobs", dropped)
	}

	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// QueueDepth returns the number of jobs waiting for delivery.
func (d *Dispatcher) QueueDepth() int {
	return len(d.jobs)
}

// Alive reports whether all workers are still running.
func (d *Dispatcher) Alive() bool {
	return int(d.liveWorkers.Load()) == d.workers
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	defer d.liveWorkers.Add(-1)

	d.log.Debugf("dispatch worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			d.deliver(ctx, job)

			select {
			case <-ctx.Done():
				return
			case <-time.After(d.sendDelay):
			}
		}
	}
}

// deliver formats and sends a single alert. Failures are logged and the job
// is dropped; the worker loop must survive any single job.
func (d *Dispatcher) deliver(ctx context.Context, job core.NotificationJob) {
	language, exchange, err := d.store.Preferences(ctx, job.UserID)
	if err != nil {
		d.log.WithError(err).Debugf("preferences lookup failed for user %d, using defaults", job.UserID)
		language, exchange = i18n.DefaultLanguage, links.ExchangeTradingView
	}

	text, buttons := d.compose(ctx, job, language, exchange)

	if err := d.messenger.SendAlert(ctx, job.UserID, text, buttons); err != nil {
		d.log.WithError(err).Errorf("failed to send alert to user %d", job.UserID)
		return
	}

	d.log.Infof("alert sent to user %d (%s, %s): %s %+.2f%%",
		job.UserID, language, exchange, job.Symbol, job.PercentChange)
}

// compose builds the localized message body and the link keyboard. When the
// symbol is not listed on the user's exchange the message is annotated and
// the links fall back to a generic chart.
func (d *Dispatcher) compose(ctx context.Context, job core.NotificationJob, language, exchange string) (string, []core.AlertLink) {
	arrow := "📈"
	if job.PercentChange < 0 {
		arrow = "📉"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 *%s* %s\n\n", job.Symbol, arrow)
	fmt.Fprintf(&sb, "%s: `%s`\n", d.loc.Text("notification_fixed_price", language), FormatPrice(job.OldPrice))
	fmt.Fprintf(&sb, "%s: `%s`\n", d.loc.Text("notification_current_price", language), FormatPrice(job.NewPrice))
	fmt.Fprintf(&sb, "%s: *%+.2f%%*\n", d.loc.Text("notification_change", language), job.PercentChange)
	fmt.Fprintf(&sb, "%s: %s", d.loc.Text("notification_time", language), job.Time.Format("15:04:05"))

	linkExchange := exchange
	if !strings.EqualFold(exchange, links.ExchangeTradingView) {
		listed, err := d.links.SymbolListed(ctx, job.Symbol, exchange)
		if err != nil {
			d.log.WithError(err).Debugf("availability check failed for %s on %s", job.Symbol, exchange)
			listed = false
		}
		if !listed {
			fmt.Fprintf(&sb, "\n\n%s", d.loc.Text("notification_unavailable", language, links.DisplayName(exchange)))
			linkExchange = links.ExchangeTradingView
		}
	}

	return sb.String(), d.links.Links(job.Symbol, linkExchange, language)
}
