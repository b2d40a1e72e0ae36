package monitor

import (
	"testing"
	"time"

	"github.com/raykavin/pricepulse/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userCfg(userID int64, percent float64, period time.Duration) core.UserConfig {
	return core.UserConfig{
		UserID:   userID,
		Percent:  percent,
		Period:   period,
		Language: "en",
		Exchange: "binance",
	}
}

func TestTracker_FirstTickArmsBaselineOnly(t *testing.T) {
	sink := &sinkStub{}
	tracker := NewTracker(sink, testLogger(t))
	tracker.SetConfig(userCfg(1, 3.0, 10*time.Minute))

	now := time.Now()
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 100, Time: now})

	assert.Empty(t, sink.all())

	baseline, ok := tracker.Baseline(1, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 100.0, baseline.Price)
	assert.Equal(t, now, baseline.Time)
}

func TestTracker_ThresholdBreachAlertsAndRebases(t *testing.T) {
	sink := &sinkStub{}
	tracker := NewTracker(sink, testLogger(t))
	tracker.SetConfig(userCfg(1, 3.0, 10*time.Minute))

	start := time.Now()
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 100, Time: start})
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 103.5, Time: start.Add(time.Minute)})

	jobs := sink.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].UserID)
	assert.Equal(t, "BTCUSDT", jobs[0].Symbol)
	assert.Equal(t, 100.0, jobs[0].OldPrice)
	assert.Equal(t, 103.5, jobs[0].NewPrice)
	assert.InDelta(t, 3.5, jobs[0].PercentChange, 1e-9)

	baseline, ok := tracker.Baseline(1, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 103.5, baseline.Price)
}

func TestTracker_FullSinkStillRebases(t *testing.T) {
	sink := &sinkStub{full: true}
	tracker := NewTracker(sink, testLogger(t))
	tracker.SetConfig(userCfg(1, 3.0, 10*time.Minute))

	start := time.Now()
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 100, Time: start})
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 104, Time: start.Add(time.Minute)})

	// The alert was dropped but the baseline must move anyway, so the next
	// breach is measured from the current price.
	assert.Empty(t, sink.all())
	baseline, ok := tracker.Baseline(1, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 104.0, baseline.Price)
}

func TestTracker_DownMoveAlerts(t *testing.T) {
	sink := &sinkStub{}
	tracker := NewTracker(sink, testLogger(t))
	tracker.SetConfig(userCfg(1, 3.0, 10*time.Minute))

	start := time.Now()
	tracker.OnTick(core.PriceTick{Symbol: "ETHUSDT", Price: 200, Time: start})
	tracker.OnTick(core.PriceTick{Symbol: "ETHUSDT", Price: 193, Time: start.Add(time.Second)})

	jobs := sink.all()
	require.Len(t, jobs, 1)
	assert.InDelta(t, -3.5, jobs[0].PercentChange, 1e-9)
}

func TestTracker_PeriodElapsedRebasesSilently(t *testing.T) {
	sink := &sinkStub{}
	tracker := NewTracker(sink, testLogger(t))
	tracker.SetConfig(userCfg(1, 3.0, 10*time.Minute))

	start := time.Now()
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 100, Time: start})
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 101, Time: start.Add(11 * time.Minute)})

	assert.Empty(t, sink.all())

	baseline, ok := tracker.Baseline(1, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 101.0, baseline.Price)
	assert.Equal(t, start.Add(11*time.Minute), baseline.Time)
}

func TestTracker_ZeroBaselineNeverAlerts(t *testing.T) {
	sink := &sinkStub{}
	tracker := NewTracker(sink, testLogger(t))
	tracker.SetConfig(userCfg(1, 3.0, 10*time.Minute))

	start := time.Now()
	tracker.OnTick(core.PriceTick{Symbol: "NEWUSDT", Price: 0, Time: start})
	tracker.OnTick(core.PriceTick{Symbol: "NEWUSDT", Price: 50, Time: start.Add(time.Second)})

	assert.Empty(t, sink.all())

	// The zero baseline heals on the next period rollover.
	tracker.OnTick(core.PriceTick{Symbol: "NEWUSDT", Price: 50, Time: start.Add(11 * time.Minute)})
	baseline, ok := tracker.Baseline(1, "NEWUSDT")
	require.True(t, ok)
	assert.Equal(t, 50.0, baseline.Price)
}

func TestTracker_SetConfigRebasesTimestampsKeepingPrices(t *testing.T) {
	sink := &sinkStub{}
	rebaseTime := time.Now().Add(time.Hour)
	tracker := NewTracker(sink, testLogger(t), WithClock(fixedClock(rebaseTime)))
	tracker.SetConfig(userCfg(1, 3.0, 10*time.Minute))

	start := time.Now()
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 100, Time: start})

	changed := tracker.SetConfig(userCfg(1, 5.0, 10*time.Minute))
	require.True(t, changed)

	baseline, ok := tracker.Baseline(1, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 100.0, baseline.Price)
	assert.Equal(t, rebaseTime, baseline.Time)

	// Under the new 5% threshold a 3.5% move stays quiet.
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 103.5, Time: rebaseTime.Add(time.Second)})
	assert.Empty(t, sink.all())
}

func TestTracker_SetConfigUnchangedIsNoop(t *testing.T) {
	tracker := NewTracker(&sinkStub{}, testLogger(t))

	cfg := userCfg(1, 3.0, 10*time.Minute)
	assert.True(t, tracker.SetConfig(cfg))
	assert.False(t, tracker.SetConfig(cfg))
}

func TestTracker_EvictDropsAllState(t *testing.T) {
	sink := &sinkStub{}
	tracker := NewTracker(sink, testLogger(t))
	tracker.SetConfig(userCfg(1, 3.0, 10*time.Minute))
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 100, Time: time.Now()})

	tracker.Evict(1)

	assert.Zero(t, tracker.ActiveCount())
	_, ok := tracker.Baseline(1, "BTCUSDT")
	assert.False(t, ok)
}

func TestTracker_InvalidConfigDoesNotBlockOthers(t *testing.T) {
	sink := &sinkStub{}
	tracker := NewTracker(sink, testLogger(t))
	tracker.SetConfig(core.UserConfig{UserID: 1, Percent: 0, Period: 10 * time.Minute})
	tracker.SetConfig(userCfg(2, 3.0, 10*time.Minute))

	start := time.Now()
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 100, Time: start})
	tracker.OnTick(core.PriceTick{Symbol: "BTCUSDT", Price: 104, Time: start.Add(time.Second)})

	jobs := sink.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(2), jobs[0].UserID)
}
