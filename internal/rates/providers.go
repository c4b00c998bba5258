package rates

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"adnews/internal/fetch"

	"github.com/shopspring/decimal"
)

const (
	// AnchorCurrency is the currency every rate is expressed in.
	AnchorCurrency = "RUB"

	FixedLabel = "Фиксированное значение"
)

var (
	FiatSymbols   = []string{"USD", "EUR", "CNY"}
	CryptoSymbols = []string{"BTC", "ETH"}

	Glyphs = map[string]string{
		"USD": "$",
		"EUR": "€",
		"CNY": "¥",
		"BTC": "₿",
		"ETH": "Ξ",
	}

	// DefaultFiat и DefaultCrypto пишутся, когда все внешние источники недоступны
	DefaultFiat = map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("90.0000"),
		"EUR": decimal.RequireFromString("98.0000"),
		"CNY": decimal.RequireFromString("12.5000"),
	}
	DefaultCrypto = map[string]decimal.Decimal{
		"BTC": decimal.RequireFromString("60000.0000"),
		"ETH": decimal.RequireFromString("3000.0000"),
	}

	coinGeckoIDs = map[string]string{
		"BTC": "bitcoin",
		"ETH": "ethereum",
	}
)

// ErrMalformed marks a payload that decoded but lacks the expected fields.
var ErrMalformed = errors.New("malformed payload")

var errNotConfigured = errors.New("provider is not configured")

type Provider interface {
	Name() string
	Rates(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// OpenExchangeRates returns a table relative to a base currency (USD on the free plan).
type OpenExchangeRates struct {
	client *fetch.Client
	url    string
	appID  string
}

func NewOpenExchangeRates(client *fetch.Client, endpoint, appID string) *OpenExchangeRates {
	return &OpenExchangeRates{client: client, url: endpoint, appID: appID}
}

func (p *OpenExchangeRates) Name() string {
	return "OpenExchangeRates"
}

type oxrResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (p *OpenExchangeRates) Rates(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if p.appID == "" {
		return nil, errNotConfigured
	}

	endpoint, err := withQuery(p.url, url.Values{"app_id": {p.appID}})
	if err != nil {
		return nil, err
	}

	var resp oxrResponse
	if err := p.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	anchor, ok := resp.Rates[AnchorCurrency]
	if !ok {
		return nil, fmt.Errorf("%w: no %s in rate table", ErrMalformed, AnchorCurrency)
	}

	result := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		// для базовой валюты таблица уже содержит курс к рублю
		if symbol == resp.Base {
			result[symbol] = anchor.Round(4)
			continue
		}

		target, ok := resp.Rates[symbol]
		if !ok || target.IsZero() {
			return nil, fmt.Errorf("%w: no %s in rate table", ErrMalformed, symbol)
		}

		result[symbol] = anchor.Div(target).Round(4)
	}

	return result, nil
}

// CBRDaily reads the central bank daily rates mirror.
type CBRDaily struct {
	client *fetch.Client
	url    string
}

func NewCBRDaily(client *fetch.Client, endpoint string) *CBRDaily {
	return &CBRDaily{client: client, url: endpoint}
}

func (p *CBRDaily) Name() string {
	return "ЦБ РФ"
}

type cbrDailyResponse struct {
	Valute map[string]struct {
		Nominal decimal.Decimal `json:"Nominal"`
		Value   decimal.Decimal `json:"Value"`
	} `json:"Valute"`
}

func (p *CBRDaily) Rates(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	var resp cbrDailyResponse
	if err := p.client.GetJSON(ctx, p.url, &resp); err != nil {
		return nil, err
	}

	result := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		v, ok := resp.Valute[symbol]
		if !ok || v.Nominal.IsZero() {
			return nil, fmt.Errorf("%w: no %s in daily rates", ErrMalformed, symbol)
		}

		result[symbol] = v.Value.Div(v.Nominal).Round(4)
	}

	return result, nil
}

type CoinGecko struct {
	client *fetch.Client
	url    string
}

func NewCoinGecko(client *fetch.Client, endpoint string) *CoinGecko {
	return &CoinGecko{client: client, url: endpoint}
}

func (p *CoinGecko) Name() string {
	return "CoinGecko"
}

func (p *CoinGecko) Rates(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		id, ok := coinGeckoIDs[symbol]
		if !ok {
			return nil, fmt.Errorf("unknown coin %s", symbol)
		}
		ids = append(ids, id)
	}

	endpoint, err := withQuery(p.url, url.Values{
		"ids":           {strings.Join(ids, ",")},
		"vs_currencies": {"usd"},
	})
	if err != nil {
		return nil, err
	}

	var resp map[string]map[string]decimal.Decimal
	if err := p.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	result := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		price, ok := resp[coinGeckoIDs[symbol]]["usd"]
		if !ok {
			return nil, fmt.Errorf("%w: no usd price for %s", ErrMalformed, symbol)
		}

		result[symbol] = price.Round(4)
	}

	return result, nil
}

type CryptoCompare struct {
	client *fetch.Client
	url    string
}

func NewCryptoCompare(client *fetch.Client, endpoint string) *CryptoCompare {
	return &CryptoCompare{client: client, url: endpoint}
}

func (p *CryptoCompare) Name() string {
	return "CryptoCompare"
}

func (p *CryptoCompare) Rates(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	endpoint, err := withQuery(p.url, url.Values{
		"fsyms": {strings.Join(symbols, ",")},
		"tsyms": {"USD"},
	})
	if err != nil {
		return nil, err
	}

	var resp map[string]map[string]decimal.Decimal
	if err := p.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	result := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		price, ok := resp[symbol]["USD"]
		if !ok {
			return nil, fmt.Errorf("%w: no USD price for %s", ErrMalformed, symbol)
		}

		result[symbol] = price.Round(4)
	}

	return result, nil
}

// Fixed is the last tier of every chain.
type Fixed struct {
	values map[string]decimal.Decimal
}

func NewFixed(values map[string]decimal.Decimal) *Fixed {
	return &Fixed{values: values}
}

func (p *Fixed) Name() string {
	return FixedLabel
}

func (p *Fixed) Rates(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		v, ok := p.values[symbol]
		if !ok {
			return nil, fmt.Errorf("%w: no default for %s", ErrMalformed, symbol)
		}

		result[symbol] = v.Round(4)
	}

	return result, nil
}

func withQuery(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
