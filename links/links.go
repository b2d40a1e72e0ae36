// Package links resolves whether a futures symbol is listed on a given
// exchange and builds the deep links attached to alert messages. Listing
// sets are fetched from the public exchange APIs and cached with a TTL, so
// a symbol check normally costs a single in-memory lookup.
package links

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/raykavin/pricepulse/core"
)

// Supported exchange identifiers, stored lowercase in user preferences.
const (
	ExchangeTradingView = "tradingview"
	ExchangeBinance     = "binance"
	ExchangeBybit       = "bybit"
	ExchangeBingX       = "bingx"
	ExchangeOKX         = "okx"
	ExchangeBitget      = "bitget"
)

const (
	defaultCacheTTL    = time.Hour
	defaultHTTPTimeout = 10 * time.Second
)

var displayNames = map[string]string{
	ExchangeTradingView: "TradingView",
	ExchangeBinance:     "Binance",
	ExchangeBybit:       "Bybit",
	ExchangeBingX:       "BingX",
	ExchangeOKX:         "OKX",
	ExchangeBitget:      "Bitget",
}

// DisplayName returns the user-facing name of an exchange identifier.
// Unknown exchanges are shown uppercased rather than hidden.
func DisplayName(exchange string) string {
	if name, ok := displayNames[strings.ToLower(exchange)]; ok {
		return name
	}
	return strings.ToUpper(exchange)
}

// Exchanges lists the identifiers with a listing fetcher, in refresh order.
func Exchanges() []string {
	return []string{ExchangeBinance, ExchangeBybit, ExchangeBingX, ExchangeOKX, ExchangeBitget}
}

// IsKnownExchange reports whether exchange is a supported identifier.
func IsKnownExchange(exchange string) bool {
	_, ok := displayNames[strings.ToLower(exchange)]
	return ok
}

var futuresSymbolPattern = regexp.MustCompile(`^[A-Z0-9]+USDT$`)

// IsValidFuturesSymbol reports whether symbol names a USDT perpetual.
func IsValidFuturesSymbol(symbol string) bool {
	return futuresSymbolPattern.MatchString(symbol)
}

// baseAsset strips the USDT quote suffix: "BTCUSDT" -> "BTC".
func baseAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSuffix(strings.ToUpper(symbol), "USDT"))
}

// Resolver implements core.LinkResolver over the public listing endpoints of
// the supported exchanges.
type Resolver struct {
	cache *listingCache
	http  *http.Client
	loc   core.Localizer
	log   core.Logger

	// refreshMu serializes listing refetches so a burst of alerts for an
	// expired exchange does not fan out into parallel API calls.
	refreshMu sync.Mutex
}

// Option modifies the Resolver created by NewResolver.
type Option func(*Resolver)

// WithHTTPClient replaces the HTTP client used for listing fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) { r.http = client }
}

// NewResolver creates a Resolver with an in-memory TTL cache for listings.
func NewResolver(loc core.Localizer, log core.Logger, options ...Option) (*Resolver, error) {
	cache, err := newListingCache(defaultCacheTTL)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		cache: cache,
		http:  &http.Client{Timeout: defaultHTTPTimeout},
		loc:   loc,
		log:   log,
	}
	for _, option := range options {
		option(r)
	}
	return r, nil
}

// Close releases the listing cache.
func (r *Resolver) Close() error { return r.cache.Close() }

// SymbolListed reports whether symbol is tradable on exchange. TradingView
// charts every symbol, so it always answers true. A stale cache triggers a
// synchronous refetch of the exchange listing.
func (r *Resolver) SymbolListed(ctx context.Context, symbol, exchange string) (bool, error) {
	if !IsValidFuturesSymbol(symbol) {
		return false, nil
	}

	exchange = strings.ToLower(exchange)
	if exchange == ExchangeTradingView {
		return true, nil
	}
	if _, ok := fetchers[exchange]; !ok {
		return false, fmt.Errorf("%w: %s", core.ErrUnknownExchange, exchange)
	}

	listed, fresh, err := r.cache.Lookup(exchange, symbol)
	if err != nil {
		return false, fmt.Errorf("listing lookup: %w", err)
	}
	if fresh {
		return listed, nil
	}

	if err := r.refreshExchange(ctx, exchange); err != nil {
		return false, err
	}

	listed, _, err = r.cache.Lookup(exchange, symbol)
	if err != nil {
		return false, fmt.Errorf("listing lookup: %w", err)
	}
	return listed, nil
}

// Refresh refetches the listing sets of every supported exchange. Failures
// are logged per exchange, the remaining exchanges are still refreshed.
func (r *Resolver) Refresh(ctx context.Context) {
	for _, exchange := range Exchanges() {
		if err := r.refreshExchange(ctx, exchange); err != nil {
			r.log.Warnf("links: refresh %s listings: %v", exchange, err)
		}
	}
}

func (r *Resolver) refreshExchange(ctx context.Context, exchange string) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	if _, fresh, err := r.cache.Lookup(exchange, ""); err == nil && fresh {
		return nil
	}

	fetch, ok := fetchers[exchange]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownExchange, exchange)
	}

	symbols, err := fetch(ctx, r.http)
	if err != nil {
		return fmt.Errorf("fetch %s listings: %w", exchange, err)
	}
	if err := r.cache.Store(exchange, symbols); err != nil {
		return fmt.Errorf("cache %s listings: %w", exchange, err)
	}

	r.log.Infof("links: refreshed %s listings, %d symbols", exchange, len(symbols))
	return nil
}

// Links builds the inline buttons for an alert. Bybit gets a second button
// that deep-links into its mobile app; every other exchange gets a single
// web link. Callers are expected to have checked SymbolListed and fall back
// to TradingView themselves, but an unknown exchange still degrades here.
func (r *Resolver) Links(symbol, exchange, language string) []core.AlertLink {
	exchange = strings.ToLower(exchange)
	if !IsValidFuturesSymbol(symbol) || !IsKnownExchange(exchange) {
		exchange = ExchangeTradingView
	}

	name := DisplayName(exchange)
	webLabel := r.loc.Text("open_on", language, name)

	switch exchange {
	case ExchangeBybit:
		return []core.AlertLink{
			{Label: webLabel, URL: bybitWebLink(symbol)},
			{Label: r.loc.Text("open_in_app", language, name), URL: bybitMobileLink(symbol)},
		}
	case ExchangeBinance:
		return []core.AlertLink{{Label: webLabel, URL: binanceLink(symbol, language)}}
	case ExchangeBingX:
		return []core.AlertLink{{Label: webLabel, URL: bingxLink(symbol, language)}}
	case ExchangeOKX:
		return []core.AlertLink{{Label: webLabel, URL: okxLink(symbol)}}
	case ExchangeBitget:
		return []core.AlertLink{{Label: webLabel, URL: bitgetLink(symbol)}}
	default:
		return []core.AlertLink{{Label: webLabel, URL: tradingViewLink(symbol)}}
	}
}

func tradingViewLink(symbol string) string {
	return fmt.Sprintf("https://www.tradingview.com/chart/?symbol=BYBIT%%3A%sUSDT.P", baseAsset(symbol))
}

func binanceLink(symbol, language string) string {
	lang := "en"
	if language == "ru" {
		lang = "ru"
	}
	return fmt.Sprintf("https://www.binance.com/%s/futures/%sUSDT", lang, baseAsset(symbol))
}

func bybitWebLink(symbol string) string {
	return fmt.Sprintf("https://www.bybit.com/trade/usdt/%sUSDT", baseAsset(symbol))
}

func bybitMobileLink(symbol string) string {
	deepLink := fmt.Sprintf("bybitapp://open/home?tab=2&symbol=%sUSDT", baseAsset(symbol))
	query := url.Values{
		"af_xp":             {"custom"},
		"pid":               {"uj"},
		"af_dp":             {deepLink},
		"is_retargeting":    {"true"},
		"c":                 {"h5_trading_popup"},
		"af_force_deeplink": {"true"},
	}
	return "https://bybit.onelink.me/EhY6?" + query.Encode()
}

func bingxLink(symbol, language string) string {
	lang := "en-us"
	if language == "ru" {
		lang = "ru-ru"
	}
	return fmt.Sprintf("https://bingx.com/%s/perpetual/%s-USDT", lang, baseAsset(symbol))
}

func okxLink(symbol string) string {
	return fmt.Sprintf("https://www.okx.com/trade-swap/%s-usdt-swap", strings.ToLower(baseAsset(symbol)))
}

func bitgetLink(symbol string) string {
	return fmt.Sprintf("https://www.bitget.com/futures/usdt/%sUSDT", baseAsset(symbol))
}

// fetchers maps an exchange identifier to its public listing endpoint.
var fetchers = map[string]func(ctx context.Context, client *http.Client) ([]string, error){
	ExchangeBinance: fetchBinanceListings,
	ExchangeBybit:   fetchBybitListings,
	ExchangeBingX:   fetchBingXListings,
	ExchangeOKX:     fetchOKXListings,
	ExchangeBitget:  fetchBitgetListings,
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchBinanceListings(ctx context.Context, client *http.Client) ([]string, error) {
	var payload struct {
		Symbols []struct {
			Symbol       string `json:"symbol"`
			Status       string `json:"status"`
			ContractType string `json:"contractType"`
		} `json:"symbols"`
	}
	if err := getJSON(ctx, client, "https://fapi.binance.com/fapi/v1/exchangeInfo", &payload); err != nil {
		return nil, err
	}

	var symbols []string
	for _, item := range payload.Symbols {
		if item.Status == "TRADING" && item.ContractType == "PERPETUAL" && strings.HasSuffix(item.Symbol, "USDT") {
			symbols = append(symbols, item.Symbol)
		}
	}
	return symbols, nil
}

func fetchBybitListings(ctx context.Context, client *http.Client) ([]string, error) {
	var payload struct {
		Result struct {
			List []struct {
				Symbol string `json:"symbol"`
				Status string `json:"status"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := getJSON(ctx, client, "https://api.bybit.com/v5/market/instruments-info?category=linear&limit=1000", &payload); err != nil {
		return nil, err
	}

	var symbols []string
	for _, item := range payload.Result.List {
		if item.Status == "Trading" && strings.HasSuffix(item.Symbol, "USDT") {
			symbols = append(symbols, item.Symbol)
		}
	}
	return symbols, nil
}

func fetchBingXListings(ctx context.Context, client *http.Client) ([]string, error) {
	var payload struct {
		Data []struct {
			Symbol string `json:"symbol"`
			Status int    `json:"status"`
		} `json:"data"`
	}
	if err := getJSON(ctx, client, "https://open-api.bingx.com/openApi/swap/v2/quote/contracts", &payload); err != nil {
		return nil, err
	}

	var symbols []string
	for _, item := range payload.Data {
		if item.Status == 1 && strings.HasSuffix(item.Symbol, "-USDT") {
			symbols = append(symbols, strings.ReplaceAll(item.Symbol, "-", ""))
		}
	}
	return symbols, nil
}

func fetchOKXListings(ctx context.Context, client *http.Client) ([]string, error) {
	var payload struct {
		Data []struct {
			InstID string `json:"instId"`
		} `json:"data"`
	}
	if err := getJSON(ctx, client, "https://www.okx.com/api/v5/market/tickers?instType=SWAP", &payload); err != nil {
		return nil, err
	}

	var symbols []string
	for _, item := range payload.Data {
		if strings.HasSuffix(item.InstID, "-USDT-SWAP") {
			symbols = append(symbols, strings.TrimSuffix(item.InstID, "-USDT-SWAP")+"USDT")
		}
	}
	return symbols, nil
}

func fetchBitgetListings(ctx context.Context, client *http.Client) ([]string, error) {
	var payload struct {
		Data []struct {
			Symbol string `json:"symbol"`
		} `json:"data"`
	}
	if err := getJSON(ctx, client, "https://api.bitget.com/api/v2/mix/market/tickers?productType=USDT-FUTURES", &payload); err != nil {
		return nil, err
	}

	var symbols []string
	for _, item := range payload.Data {
		if strings.HasSuffix(item.Symbol, "USDT") {
			symbols = append(symbols, item.Symbol)
		}
	}
	return symbols, nil
}
