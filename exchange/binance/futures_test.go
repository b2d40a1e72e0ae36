package binance

import (
	"testing"

	"github.com/adshao/go-binance/v2/futures"
	zerologger "github.com/raykavin/pricepulse/logger/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFutures(t *testing.T) *Futures {
	t.Helper()
	log, err := zerologger.New("disabled", "15:04:05", false, false)
	require.NoError(t, err)
	return NewFutures(log)
}

func TestFutures_DecodeValidEvent(t *testing.T) {
	f := newTestFutures(t)

	tick, ok := f.decode(&futures.WsKlineEvent{
		Symbol: "BTCUSDT",
		Kline:  futures.WsKline{Close: "65432.10"},
	})

	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.Equal(t, 65432.10, tick.Price)
	assert.False(t, tick.Time.IsZero())
}

func TestFutures_DecodeMalformedEvents(t *testing.T) {
	f := newTestFutures(t)

	_, ok := f.decode(nil)
	assert.False(t, ok)

	_, ok = f.decode(&futures.WsKlineEvent{Kline: futures.WsKline{Close: "100"}})
	assert.False(t, ok, "missing symbol")

	_, ok = f.decode(&futures.WsKlineEvent{Symbol: "BTCUSDT", Kline: futures.WsKline{Close: "not-a-price"}})
	assert.False(t, ok, "unparseable price")

	_, ok = f.decode(&futures.WsKlineEvent{Symbol: "BTCUSDT"})
	assert.False(t, ok, "empty price")
}
