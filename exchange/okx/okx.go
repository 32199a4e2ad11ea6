// Package okx implements the unified trading facade for OKX USDT-margined
// perpetual swaps. OKX is reached directly over its official REST and
// websocket APIs without a third-party SDK; requests are signed with the
// venue's HMAC-SHA256 scheme.
package okx

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
	Name = "okx"

	restTimeout = 10 * time.Second

	mainURL   = "https://www.okx.com"
	mainWsURL = "wss://ws.okx.com:8443/ws/v5/public"
)

// OKX is the venue facade. It satisfies exchange.Exchange.
type OKX struct {
	exchange.Base

	restURL    string
	wsURL      string
	transports proxy.Transports
	limiter    *rate.Limiter
	recorder   exchange.FillRecorder
	log        *logger.Entry
}

// New builds an OKX facade from the options. OKX has no separate sandbox
// host; demo trading is selected per request via a header.
func New(opts exchange.Options) *OKX {
	restURL := opts.RestURL
	if restURL == "" {
		restURL = mainURL
	}
	wsURL := opts.WsURL
	if wsURL == "" {
		wsURL = mainWsURL
	}
	return &OKX{
		Base:     exchange.NewBase(opts),
		restURL:  restURL,
		wsURL:    wsURL,
		limiter:  rate.NewLimiter(rate.Limit(10), 20),
		recorder: opts.Recorder,
		log:      logger.GetLogger().WithComponent(Name),
	}
}

func (o *OKX) Name() string { return Name }

// GetTicker fetches the market ticker for one symbol.
func (o *OKX) GetTicker(ctx context.Context, symbol string) (models.Ticker, *models.TradeError) {
	query := url.Values{"instId": {symbols.ToWire(Name, symbol)}}
	var data []tickerEntry
	if terr := o.do(ctx, "GET", "/api/v5/market/ticker", query, nil, false, &data); terr != nil {
		return models.Ticker{}, terr
	}
	if len(data) == 0 {
		return models.Ticker{}, models.TradekitError(models.CodeBadSymbol, "no ticker returned for "+symbol)
	}
	return adaptTicker(data[0], symbol)
}

// GetTickers fetches market tickers for several symbols. The first adapter
// failure aborts the whole call.
func (o *OKX) GetTickers(ctx context.Context, syms []string) ([]models.Ticker, *models.TradeError) {
	query := url.Values{"instType": {"SWAP"}}
	var data []tickerEntry
	if terr := o.do(ctx, "GET", "/api/v5/market/tickers", query, nil, false, &data); terr != nil {
		return nil, terr
	}

	byWire := make(map[string]int, len(data))
	for i, entry := range data {
		byWire[entry.InstID] = i
	}

	tickers := make([]models.Ticker, 0, len(syms))
	for _, symbol := range syms {
		i, ok := byWire[symbols.ToWire(Name, symbol)]
		if !ok {
			return nil, models.TradekitError(models.CodeBadSymbol, "no ticker returned for "+symbol)
		}
		ticker, terr := adaptTicker(data[i], symbol)
		if terr != nil {
			return nil, terr
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

// GetBalance fetches the trading account balance, filtered when currencies
// are passed.
func (o *OKX) GetBalance(ctx context.Context, currencies ...string) (models.Balance, *models.TradeError) {
	var data []balanceEntry
	if terr := o.do(ctx, "GET", "/api/v5/account/balance", nil, nil, true, &data); terr != nil {
		return models.Balance{}, terr
	}
	balance, terr := adaptBalance(data)
	if terr != nil {
		return models.Balance{}, terr
	}
	if len(currencies) > 0 {
		balance = balance.Filter(currencies)
	}
	return balance, nil
}

// SetLeverage applies the leverage to the symbol's position. OKX keeps
// leverage per position side in long/short mode, so the facade issues one
// call per side; the first failure wins.
func (o *OKX) SetLeverage(ctx context.Context, leverage int, symbol string) (int, *models.TradeError) {
	if symbol == "" {
		return 0, models.TradekitError(models.CodeBadSymbol, "a symbol is required to set leverage")
	}

	wire := symbols.ToWire(Name, symbol)
	for _, posSide := range []string{"long", "short"} {
		body := map[string]string{
			"instId":  wire,
			"lever":   strconv.Itoa(leverage),
			"mgnMode": "isolated",
			"posSide": posSide,
		}
		if terr := o.do(ctx, "POST", "/api/v5/account/set-leverage", nil, body, true, nil); terr != nil {
			return 0, terr
		}
	}
	return leverage, nil
}

func (o *OKX) OpenLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return o.execute(ctx, symbol, amount, models.SideBuy, false, timeout)
}

func (o *OKX) OpenShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return o.execute(ctx, symbol, amount, models.SideSell, false, timeout)
}

func (o *OKX) CloseLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return o.execute(ctx, symbol, amount, models.SideSell, true, timeout)
}

func (o *OKX) CloseShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return o.execute(ctx, symbol, amount, models.SideBuy, true, timeout)
}
