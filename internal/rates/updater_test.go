package rates

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"adnews/internal/cache"
	"adnews/internal/logger"
	"adnews/internal/model"
	"adnews/internal/storage"

	"github.com/shopspring/decimal"
)

const (
	cbrBody   = `{"Valute":{"USD":{"Nominal":1,"Value":91},"EUR":{"Nominal":1,"Value":99},"CNY":{"Nominal":1,"Value":12.5}}}`
	geckoBody = `{"bitcoin":{"usd":61000},"ethereum":{"usd":3100}}`
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testStorage(t *testing.T) *storage.RateStorage {
	t.Helper()

	ctx := context.Background()
	db, err := storage.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "rates.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return storage.NewRateStorage(db)
}

func newTestUpdater(store RateStorage, c Cache, fiat, crypto *Chain) *Updater {
	u := NewUpdater(store, c, fiat, crypto, 30*24*time.Hour, logger.Discard())
	u.now = func() time.Time { return testNow }
	return u
}

func currentBySymbol(t *testing.T, store *storage.RateStorage) map[string]model.CurrentRate {
	t.Helper()

	rates, err := store.CurrentRates(context.Background())
	if err != nil {
		t.Fatalf("current rates: %v", err)
	}

	out := make(map[string]model.CurrentRate, len(rates))
	for _, r := range rates {
		out[r.Symbol] = r
	}
	return out
}

func TestRunFallsBackToSecondTier(t *testing.T) {
	store := testStorage(t)

	oxr := jsonServer(t, http.StatusBadGateway, ``)
	cbr := jsonServer(t, http.StatusOK, cbrBody)
	gecko := jsonServer(t, http.StatusOK, geckoBody)

	u := newTestUpdater(store, cache.NewSeriesCache(),
		NewChain(FiatSymbols, NewOpenExchangeRates(client(), oxr.URL, "x"), NewCBRDaily(client(), cbr.URL), NewFixed(DefaultFiat)),
		NewChain(CryptoSymbols, NewCoinGecko(client(), gecko.URL), NewFixed(DefaultCrypto)),
	)

	if err := u.Run(context.Background(), Scheduled); err != nil {
		t.Fatalf("Run: %v", err)
	}

	current := currentBySymbol(t, store)
	if len(current) != 5 {
		t.Fatalf("expected 5 rates, got %d", len(current))
	}
	if current["USD"].Provider != "ЦБ РФ" {
		t.Errorf("expected ЦБ РФ, got %s", current["USD"].Provider)
	}
	if !current["USD"].Rate.Equal(decimal.NewFromInt(91)) {
		t.Errorf("unexpected USD rate %s", current["USD"].Rate)
	}
	if current["BTC"].Provider != "CoinGecko" || current["BTC"].Glyph != "₿" {
		t.Errorf("unexpected BTC row %+v", current["BTC"])
	}

	history, err := store.History(context.Background(), "EUR", testNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected one history entry, got %d", len(history))
	}
}

func TestRunWritesFixedValuesWhenProvidersFail(t *testing.T) {
	store := testStorage(t)

	oxr := jsonServer(t, http.StatusInternalServerError, ``)
	cbr := jsonServer(t, http.StatusOK, `{"Valute":{}}`)
	gecko := jsonServer(t, http.StatusTooManyRequests, ``)
	cc := jsonServer(t, http.StatusOK, `not json`)

	u := newTestUpdater(store, cache.NewSeriesCache(),
		NewChain(FiatSymbols, NewOpenExchangeRates(client(), oxr.URL, "x"), NewCBRDaily(client(), cbr.URL), NewFixed(DefaultFiat)),
		NewChain(CryptoSymbols, NewCoinGecko(client(), gecko.URL), NewCryptoCompare(client(), cc.URL), NewFixed(DefaultCrypto)),
	)

	if err := u.Run(context.Background(), Scheduled); err != nil {
		t.Fatalf("Run should not fail on provider errors: %v", err)
	}

	for symbol, row := range currentBySymbol(t, store) {
		if row.Provider != FixedLabel {
			t.Errorf("%s: expected %q, got %q", symbol, FixedLabel, row.Provider)
		}
	}
}

func TestRunKeepsLastKnownFiatWhenChainExhausted(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	previous := time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC)
	if err := store.UpsertCurrent(ctx, model.CurrentRate{
		Symbol: "USD", Rate: decimal.RequireFromString("89.5"), Glyph: "$", UpdatedAt: previous, Provider: "ЦБ РФ",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	oxr := jsonServer(t, http.StatusInternalServerError, ``)
	gecko := jsonServer(t, http.StatusOK, geckoBody)

	u := newTestUpdater(store, cache.NewSeriesCache(),
		NewChain(FiatSymbols, NewOpenExchangeRates(client(), oxr.URL, "x")),
		NewChain(CryptoSymbols, NewCoinGecko(client(), gecko.URL)),
	)

	if err := u.Run(ctx, Scheduled); err != nil {
		t.Fatalf("Run: %v", err)
	}

	current := currentBySymbol(t, store)
	if !current["USD"].Rate.Equal(decimal.RequireFromString("89.5")) {
		t.Errorf("USD should keep its last value, got %s", current["USD"].Rate)
	}
	if !current["USD"].UpdatedAt.Equal(previous) {
		t.Errorf("USD should not be touched, updated at %v", current["USD"].UpdatedAt)
	}
	if _, ok := current["EUR"]; ok {
		t.Error("EUR should not be written")
	}
	if !current["BTC"].Rate.Equal(decimal.NewFromInt(61000)) {
		t.Errorf("BTC should be written, got %+v", current["BTC"])
	}
}

func TestRunClearsCache(t *testing.T) {
	store := testStorage(t)
	c := cache.NewSeriesCache()
	c.Put("USD", "week", []model.SeriesPoint{{Label: "01.01.2024", Value: decimal.NewFromInt(90)}})
	c.Put("BTC", "day", []model.SeriesPoint{{Label: "12:00", Value: decimal.NewFromInt(60000)}})

	u := newTestUpdater(store, c,
		NewChain(FiatSymbols, NewFixed(DefaultFiat)),
		NewChain(CryptoSymbols, NewFixed(DefaultCrypto)),
	)

	if err := u.Run(context.Background(), Scheduled); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := c.Get("USD", "week"); ok {
		t.Error("expected miss for USD/week")
	}
	if _, ok := c.Get("BTC", "day"); ok {
		t.Error("expected miss for BTC/day")
	}
}

// cachingStorage fills the cache while rates are being written, the way a
// concurrent history read would.
type cachingStorage struct {
	*storage.RateStorage
	cache *cache.SeriesCache
}

func (s cachingStorage) UpsertCurrent(ctx context.Context, rate model.CurrentRate) error {
	s.cache.Put(rate.Symbol, "week", []model.SeriesPoint{{Label: "01.01.2024", Value: decimal.NewFromInt(1)}})
	return s.RateStorage.UpsertCurrent(ctx, rate)
}

func TestRunClearsCacheFilledDuringRun(t *testing.T) {
	c := cache.NewSeriesCache()
	store := cachingStorage{RateStorage: testStorage(t), cache: c}

	u := newTestUpdater(store, c,
		NewChain(FiatSymbols, NewFixed(DefaultFiat)),
		NewChain(CryptoSymbols, NewFixed(DefaultCrypto)),
	)

	if err := u.Run(context.Background(), Scheduled); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := c.Get("USD", "week"); ok {
		t.Error("expected miss for USD/week written during the run")
	}
	if n := c.Len(); n != 0 {
		t.Errorf("expected empty cache after run, got %d entries", n)
	}
}

func TestForcedRunSuffixesProvider(t *testing.T) {
	store := testStorage(t)

	u := newTestUpdater(store, cache.NewSeriesCache(),
		NewChain(FiatSymbols, NewFixed(DefaultFiat)),
		NewChain(CryptoSymbols, NewFixed(DefaultCrypto)),
	)

	if err := u.Run(context.Background(), Forced); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for symbol, row := range currentBySymbol(t, store) {
		if !strings.HasSuffix(row.Provider, " (принудительно)") {
			t.Errorf("%s: expected forced suffix, got %q", symbol, row.Provider)
		}
	}
}

func TestRunPrunesHistory(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	for _, age := range []time.Duration{31 * 24 * time.Hour, 29 * 24 * time.Hour} {
		if err := store.AppendHistory(ctx, model.RateHistoryEntry{
			Symbol: "USD", Rate: decimal.NewFromInt(90), RecordedAt: testNow.Add(-age), Provider: "test",
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	u := newTestUpdater(store, cache.NewSeriesCache(),
		NewChain(FiatSymbols, NewFixed(DefaultFiat)),
		NewChain(CryptoSymbols, NewFixed(DefaultCrypto)),
	)

	if err := u.Run(ctx, Scheduled); err != nil {
		t.Fatalf("Run: %v", err)
	}

	history, err := store.History(ctx, "USD", testNow.Add(-365*24*time.Hour))
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	// запись 29-дневной давности и запись текущего запуска
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if !history[1].RecordedAt.Equal(testNow.Add(-29 * 24 * time.Hour)) {
		t.Errorf("unexpected surviving entry %v", history[1].RecordedAt)
	}
}
