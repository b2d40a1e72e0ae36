// Package binance implements core.MarketData over the Binance USDT-margined
// futures API: REST for the symbol universe, websocket streams for ticks.
package binance

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/raykavin/pricepulse/core"
	"github.com/samber/lo"
)

const tickInterval = "1m"

// Futures is the Binance futures market-data client.
type Futures struct {
	client     *futures.Client
	log        core.Logger
	batchSize  int
	batchDelay time.Duration
}

// Option configures a Futures client.
type Option func(*Futures)

// WithCredentials sets API credentials. Public market data works without
// them.
func WithCredentials(key, secret string) Option {
	return func(f *Futures) {
		f.client = futures.NewClient(key, secret)
	}
}

// WithTestnet routes all traffic to the Binance futures testnet.
func WithTestnet() Option {
	return func(f *Futures) {
		futures.UseTestnet = true
	}
}

// WithBatching bounds the per-connection stream count and sets the pause
// between opening consecutive connections, respecting upstream limits.
func WithBatching(size int, delay time.Duration) Option {
	return func(f *Futures) {
		f.batchSize = size
		f.batchDelay = delay
	}
}

// NewFutures creates a futures market-data client.
func NewFutures(log core.Logger, options ...Option) *Futures {
	binance.WebsocketKeepalive = true

	client := &Futures{
		client:     futures.NewClient("", ""),
		log:        log,
		batchSize:  50,
		batchDelay: 500 * time.Millisecond,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// TradableSymbols returns every USDT-margined perpetual currently open for
// trading.
func (f *Futures) TradableSymbols(ctx context.Context) ([]string, error) {
	info, err := f.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.ContractType != "PERPETUAL" {
			continue
		}
		if !strings.HasSuffix(s.Symbol, "USDT") {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}

	return symbols, nil
}

// TickerSubscription opens combined kline streams in batches and fans every
// update into a single tick channel. The session ends when ctx is cancelled
// or any stream terminates; both channels are closed on exit.
func (f *Futures) TickerSubscription(ctx context.Context, symbols []string) (chan core.PriceTick, chan error) {
	tickChan := make(chan core.PriceTick)
	errChan := make(chan error)

	go func() {
		defer close(tickChan)
		defer close(errChan)

		handler := func(event *futures.WsKlineEvent) {
			tick, ok := f.decode(event)
			if !ok {
				return
			}
			select {
			case tickChan <- tick:
			case <-ctx.Done():
			}
		}

		errHandler := func(err error) {
			select {
			case errChan <- err:
			case <-ctx.Done():
			}
		}

		terminated := make(chan struct{}, 1)
		var stops []chan struct{}

		closeAll := func() {
			for _, stop := range stops {
				close(stop)
			}
		}

		chunks := lo.Chunk(symbols, f.batchSize)
		for i, chunk := range chunks {
			pairs := make(map[string]string, len(chunk))
			for _, symbol := range chunk {
				pairs[symbol] = tickInterval
			}

			f.log.Infof("subscribing to symbols %d-%d of %d",
				i*f.batchSize+1, i*f.batchSize+len(chunk), len(symbols))

			done, stop, err := futures.WsCombinedKlineServe(pairs, handler, errHandler)
			if err != nil {
				closeAll()
				select {
				case errChan <- err:
				case <-ctx.Done():
				}
				return
			}
			stops = append(stops, stop)

			go func(done chan struct{}) {
				select {
				case <-done:
					select {
					case terminated <- struct{}{}:
					default:
					}
				case <-ctx.Done():
				}
			}(done)

			// Pause between connections so the upstream rate limiter is
			// never tripped during a full resubscribe.
			select {
			case <-ctx.Done():
				closeAll()
				return
			case <-time.After(f.batchDelay):
			}
		}

		select {
		case <-ctx.Done():
		case <-terminated:
			select {
			case errChan <- errors.New("websocket stream terminated"):
			case <-ctx.Done():
			}
		}
		closeAll()
	}()

	return tickChan, errChan
}

// decode validates one stream event and extracts (symbol, price). Malformed
// events are logged at debug level and skipped, never fatal.
func (f *Futures) decode(event *futures.WsKlineEvent) (core.PriceTick, bool) {
	if event == nil || event.Symbol == "" {
		f.log.Debug("received kline event without symbol")
		return core.PriceTick{}, false
	}

	price, err := strconv.ParseFloat(event.Kline.Close, 64)
	if err != nil {
		f.log.Debugf("invalid price data for %s: %q", event.Symbol, event.Kline.Close)
		return core.PriceTick{}, false
	}

	return core.PriceTick{
		Symbol: event.Symbol,
		Price:  price,
		Time:   time.Now(),
	}, true
}
