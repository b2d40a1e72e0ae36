package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raykavin/pricepulse/core"
	"github.com/raykavin/pricepulse/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, messenger *messengerStub, store *storeStub, resolver *resolverStub, options ...DispatcherOption) *Dispatcher {
	t.Helper()
	base := []DispatcherOption{WithSendDelay(time.Millisecond), WithDrainGrace(200 * time.Millisecond)}
	return NewDispatcher(messenger, store, resolver, i18n.New(), testLogger(t), append(base, options...)...)
}

func testJob() core.NotificationJob {
	return core.NotificationJob{
		UserID:        7,
		Symbol:        "BTCUSDT",
		OldPrice:      100,
		NewPrice:      103.5,
		PercentChange: 3.5,
		Time:          time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC),
	}
}

func TestDispatcher_DeliversFormattedAlert(t *testing.T) {
	messenger := &messengerStub{}
	store := &storeStub{language: "en", exchange: "binance"}
	dispatcher := newTestDispatcher(t, messenger, store, &resolverStub{listed: true})

	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	require.True(t, dispatcher.Enqueue(testJob()))

	require.Eventually(t, func() bool {
		return len(messenger.all()) == 1
	}, time.Second, 10*time.Millisecond)

	alert := messenger.all()[0]
	assert.Equal(t, int64(7), alert.userID)
	assert.Contains(t, alert.text, "*BTCUSDT* 📈")
	assert.Contains(t, alert.text, "`100`")
	assert.Contains(t, alert.text, "`103.5`")
	assert.Contains(t, alert.text, "*+3.50%*")
	assert.Contains(t, alert.text, "12:30:45")
	assert.NotContains(t, alert.text, "Not available")

	require.Len(t, alert.links, 1)
	assert.Equal(t, "open binance", alert.links[0].Label)
}

func TestDispatcher_UnlistedSymbolFallsBackToChart(t *testing.T) {
	messenger := &messengerStub{}
	store := &storeStub{language: "en", exchange: "bybit"}
	dispatcher := newTestDispatcher(t, messenger, store, &resolverStub{listed: false})

	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	require.True(t, dispatcher.Enqueue(testJob()))

	require.Eventually(t, func() bool {
		return len(messenger.all()) == 1
	}, time.Second, 10*time.Millisecond)

	alert := messenger.all()[0]
	assert.Contains(t, alert.text, "Not available on Bybit")
	require.Len(t, alert.links, 1)
	assert.Equal(t, "open tradingview", alert.links[0].Label)
}

func TestDispatcher_PreferenceErrorUsesDefaults(t *testing.T) {
	messenger := &messengerStub{}
	store := &storeStub{prefErr: errors.New("db down")}
	dispatcher := newTestDispatcher(t, messenger, store, &resolverStub{listed: true})

	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	require.True(t, dispatcher.Enqueue(testJob()))

	require.Eventually(t, func() bool {
		return len(messenger.all()) == 1
	}, time.Second, 10*time.Millisecond)

	// Default language is Russian, default link target the generic chart.
	alert := messenger.all()[0]
	assert.Contains(t, alert.text, "Фикс. цена")
	assert.Equal(t, "open tradingview", alert.links[0].Label)
}

func TestDispatcher_OverflowDropsJobs(t *testing.T) {
	messenger := &messengerStub{}
	store := &storeStub{language: "en", exchange: "binance"}
	dispatcher := newTestDispatcher(t, messenger, store, &resolverStub{listed: true}, WithQueueSize(1))

	// Not started: the queue holds exactly one job.
	dispatcher.accepting.Store(true)
	assert.True(t, dispatcher.Enqueue(testJob()))
	assert.False(t, dispatcher.Enqueue(testJob()))
	assert.Equal(t, 1, dispatcher.QueueDepth())
}

func TestDispatcher_RejectsAfterStop(t *testing.T) {
	messenger := &messengerStub{}
	store := &storeStub{language: "en", exchange: "binance"}
	dispatcher := newTestDispatcher(t, messenger, store, &resolverStub{listed: true})

	dispatcher.Start(context.Background())
	dispatcher.Stop()

	assert.False(t, dispatcher.Enqueue(testJob()))
	assert.False(t, dispatcher.Alive())
}

func TestDispatcher_DeliveryFailureDoesNotKillWorker(t *testing.T) {
	messenger := &messengerStub{err: errors.New("blocked by user")}
	store := &storeStub{language: "en", exchange: "binance"}
	dispatcher := newTestDispatcher(t, messenger, store, &resolverStub{listed: true})

	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	require.True(t, dispatcher.Enqueue(testJob()))

	require.Eventually(t, func() bool {
		return dispatcher.QueueDepth() == 0
	}, time.Second, 10*time.Millisecond)

	assert.True(t, dispatcher.Alive())
	assert.Empty(t, messenger.all())
}
