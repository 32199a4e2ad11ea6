// Package kucoin implements the unified trading facade for KuCoin Futures
// USDT-margined contracts. KuCoin is reached directly over its official
// REST and websocket APIs; requests are signed with the venue's v2
// HMAC-SHA256 scheme.
package kucoin

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"tradekit/exchange"
	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/proxy"
)

const (
	Name = "kucoin"

	restTimeout = 10 * time.Second

	mainURL    = "https://api-futures.kucoin.com"
	sandboxURL = "https://api-sandbox-futures.kucoin.com"
)

// KuCoin is the venue facade. It satisfies exchange.Exchange.
type KuCoin struct {
	exchange.Base

	restURL    string
	transports proxy.Transports
	limiter    *rate.Limiter
	recorder   exchange.FillRecorder
	log        *logger.Entry
}

// New builds a KuCoin facade from the options.
func New(opts exchange.Options) *KuCoin {
	restURL := opts.RestURL
	if restURL == "" {
		if opts.Sandbox {
			restURL = sandboxURL
		} else {
			restURL = mainURL
		}
	}
	return &KuCoin{
		Base:     exchange.NewBase(opts),
		restURL:  restURL,
		limiter:  rate.NewLimiter(rate.Limit(10), 20),
		recorder: opts.Recorder,
		log:      logger.GetLogger().WithComponent(Name),
	}
}

func (k *KuCoin) Name() string { return Name }

// GetTicker fetches the 24h market state for one symbol from the contract
// detail endpoint.
func (k *KuCoin) GetTicker(ctx context.Context, symbol string) (models.Ticker, *models.TradeError) {
	var data contractEntry
	path := "/api/v1/contracts/" + symbols.ToWire(Name, symbol)
	if terr := k.do(ctx, "GET", path, nil, nil, false, &data); terr != nil {
		return models.Ticker{}, terr
	}
	return adaptTicker(data, symbol)
}

// GetTickers fetches 24h market state for several symbols from the active
// contract list. The first adapter failure aborts the whole call.
func (k *KuCoin) GetTickers(ctx context.Context, syms []string) ([]models.Ticker, *models.TradeError) {
	var data []contractEntry
	if terr := k.do(ctx, "GET", "/api/v1/contracts/active", nil, nil, false, &data); terr != nil {
		return nil, terr
	}

	byWire := make(map[string]int, len(data))
	for i, entry := range data {
		byWire[entry.Symbol] = i
	}

	tickers := make([]models.Ticker, 0, len(syms))
	for _, symbol := range syms {
		i, ok := byWire[symbols.ToWire(Name, symbol)]
		if !ok {
			return nil, models.TradekitError(models.CodeBadSymbol, "no contract returned for "+symbol)
		}
		ticker, terr := adaptTicker(data[i], symbol)
		if terr != nil {
			return nil, terr
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

// GetBalance fetches the futures account overview. KuCoin reports one
// currency per call, so each requested currency costs one request; the
// default is USDT.
func (k *KuCoin) GetBalance(ctx context.Context, currencies ...string) (models.Balance, *models.TradeError) {
	if len(currencies) == 0 {
		currencies = []string{"USDT"}
	}

	now := time.Now().UTC()
	balance := models.Balance{
		Currencies: make(map[string]models.CurrencyBalance),
		Timestamp:  now.UnixMilli(),
		Datetime:   now,
	}
	for _, currency := range currencies {
		var data accountOverview
		query := url.Values{"currency": {currency}}
		if terr := k.do(ctx, "GET", "/api/v1/account-overview", query, nil, true, &data); terr != nil {
			// The venue answers 404000 for currencies it does not know.
			// Those are omitted from the result, matching venues that
			// report every currency in a single response.
			if terr.IsCode(models.CodeBadSymbol) {
				continue
			}
			return models.Balance{}, terr
		}
		entry, terr := adaptCurrencyBalance(data)
		if terr != nil {
			return models.Balance{}, terr
		}
		balance.Currencies[currency] = entry
	}
	return balance, nil
}

// SetLeverage applies the cross margin leverage for the symbol.
func (k *KuCoin) SetLeverage(ctx context.Context, leverage int, symbol string) (int, *models.TradeError) {
	if symbol == "" {
		return 0, models.TradekitError(models.CodeBadSymbol, "a symbol is required to set leverage")
	}
	body := map[string]string{
		"symbol":   symbols.ToWire(Name, symbol),
		"leverage": strconv.Itoa(leverage),
	}
	if terr := k.do(ctx, "POST", "/api/v2/changeCrossUserLeverage", nil, body, true, nil); terr != nil {
		return 0, terr
	}
	return leverage, nil
}

func (k *KuCoin) OpenLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return k.execute(ctx, symbol, amount, models.SideBuy, false, timeout)
}

func (k *KuCoin) OpenShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return k.execute(ctx, symbol, amount, models.SideSell, false, timeout)
}

func (k *KuCoin) CloseLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return k.execute(ctx, symbol, amount, models.SideSell, true, timeout)
}

func (k *KuCoin) CloseShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return k.execute(ctx, symbol, amount, models.SideBuy, true, timeout)
}
