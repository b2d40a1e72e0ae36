package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/raykavin/pricepulse/core"
	"github.com/raykavin/pricepulse/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSynchronizer(t *testing.T, store *storeStub) (*Synchronizer, *Tracker) {
	t.Helper()
	dispatcher := NewDispatcher(&messengerStub{}, store, &resolverStub{listed: true}, i18n.New(), testLogger(t))
	tracker := NewTracker(dispatcher, testLogger(t))
	return NewSynchronizer(store, tracker, dispatcher, testLogger(t)), tracker
}

func TestSynchronizer_InstallsNewUsers(t *testing.T) {
	store := &storeStub{users: []core.UserConfig{
		userCfg(1, 3.0, 10*time.Minute),
		userCfg(2, 5.0, 5*time.Minute),
	}}
	sync, tracker := newTestSynchronizer(t, store)

	sync.SyncOnce(context.Background())

	assert.Equal(t, 2, tracker.ActiveCount())
	assert.ElementsMatch(t, []int64{1, 2}, tracker.ActiveUsers())
}

func TestSynchronizer_EvictsLapsedUsers(t *testing.T) {
	store := &storeStub{users: []core.UserConfig{
		userCfg(1, 3.0, 10*time.Minute),
		userCfg(2, 5.0, 5*time.Minute),
	}}
	sync, tracker := newTestSynchronizer(t, store)

	sync.SyncOnce(context.Background())
	require.Equal(t, 2, tracker.ActiveCount())

	store.setUsers([]core.UserConfig{userCfg(1, 3.0, 10*time.Minute)})
	sync.SyncOnce(context.Background())

	assert.Equal(t, []int64{1}, tracker.ActiveUsers())
}

func TestSynchronizer_SkipsInvalidSettings(t *testing.T) {
	store := &storeStub{users: []core.UserConfig{
		{UserID: 1, Percent: 0, Period: 10 * time.Minute},
		userCfg(2, 5.0, 5*time.Minute),
	}}
	sync, tracker := newTestSynchronizer(t, store)

	sync.SyncOnce(context.Background())

	assert.Equal(t, []int64{2}, tracker.ActiveUsers())
}

func TestSynchronizer_TriggersExpiryCleanup(t *testing.T) {
	store := &storeStub{}
	sync, _ := newTestSynchronizer(t, store)

	sync.SyncOnce(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, int64(1), store.cleaned)
}

func TestSynchronizer_AliveTracksSchedule(t *testing.T) {
	store := &storeStub{}
	sync, _ := newTestSynchronizer(t, store)

	assert.True(t, sync.Alive()) // not started yet

	sync.SyncOnce(context.Background())
	assert.True(t, sync.Alive())
}
