// Package bybit implements the unified trading facade for Bybit linear
// perpetuals on top of the official bybit.go.api client.
package bybit

import (
	"context"
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
	Name = "bybit"

	category    = "linear"
	restTimeout = 10 * time.Second

	mainURL    = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"
	mainWsURL  = "wss://stream.bybit.com/v5/public/linear"
	testWsURL  = "wss://stream-testnet.bybit.com/v5/public/linear"
)

// Bybit is the venue facade. It satisfies exchange.Exchange.
type Bybit struct {
	exchange.Base

	restURL    string
	wsURL      string
	transports proxy.Transports
	limiter    *rate.Limiter
	recorder   exchange.FillRecorder
	log        *logger.Entry
}

// New builds a Bybit facade from the options.
func New(opts exchange.Options) *Bybit {
	restURL := opts.RestURL
	wsURL := opts.WsURL
	if restURL == "" {
		restURL = mainURL
		if opts.Sandbox {
			restURL = testnetURL
		}
	}
	if wsURL == "" {
		wsURL = mainWsURL
		if opts.Sandbox {
			wsURL = testWsURL
		}
	}
	return &Bybit{
		Base:     exchange.NewBase(opts),
		restURL:  restURL,
		wsURL:    wsURL,
		limiter:  rate.NewLimiter(rate.Limit(10), 20),
		recorder: opts.Recorder,
		log:      logger.GetLogger().WithComponent(Name),
	}
}

func (b *Bybit) Name() string { return Name }

// GetTicker fetches the market ticker for one symbol.
func (b *Bybit) GetTicker(ctx context.Context, symbol string) (models.Ticker, *models.TradeError) {
	tickers, terr := b.GetTickers(ctx, []string{symbol})
	if terr != nil {
		return models.Ticker{}, terr
	}
	return tickers[0], nil
}

// GetTickers fetches market tickers for several symbols. The first adapter
// failure aborts the whole call.
func (b *Bybit) GetTickers(ctx context.Context, syms []string) ([]models.Ticker, *models.TradeError) {
	defer b.RotateProxy()
	if terr := b.wait(ctx); terr != nil {
		return nil, terr
	}

	resp, err := b.client("", "").NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": category,
	}).GetMarketTickers(ctx)
	logger.IncrementRestCall(Name)

	var result tickersResult
	if terr := decodeResponse(resp, err, &result); terr != nil {
		return nil, terr
	}

	byWire := make(map[string]int, len(result.List))
	for i, entry := range result.List {
		byWire[entry.Symbol] = i
	}

	ts := time.Now().UnixMilli()
	if resp != nil && resp.Time > 0 {
		ts = resp.Time
	}

	tickers := make([]models.Ticker, 0, len(syms))
	for _, symbol := range syms {
		i, ok := byWire[symbols.ToWire(Name, symbol)]
		if !ok {
			return nil, models.TradekitError(models.CodeBadSymbol, "no ticker returned for "+symbol)
		}
		ticker, terr := adaptTicker(result.List[i], symbol, ts)
		if terr != nil {
			return nil, terr
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

// GetBalance fetches the unified account wallet, filtered when currencies
// are passed.
func (b *Bybit) GetBalance(ctx context.Context, currencies ...string) (models.Balance, *models.TradeError) {
	defer b.RotateProxy()
	auth, terr := b.GetAuth()
	if terr != nil {
		return models.Balance{}, terr
	}
	if terr := b.wait(ctx); terr != nil {
		return models.Balance{}, terr
	}

	resp, err := b.client(auth.Key, auth.Secret).NewUtaBybitServiceWithParams(map[string]interface{}{
		"accountType": "UNIFIED",
	}).GetAccountWallet(ctx)
	logger.IncrementRestCall(Name)

	var result walletResult
	if terr := decodeResponse(resp, err, &result); terr != nil {
		return models.Balance{}, terr
	}
	balance, terr := adaptBalance(result)
	if terr != nil {
		return models.Balance{}, terr
	}
	if len(currencies) > 0 {
		balance = balance.Filter(currencies)
	}
	return balance, nil
}

// SetLeverage applies the leverage to both sides of the symbol's position.
// Bybit reports "leverage not modified" via a dedicated error code; that is
// success, not failure.
func (b *Bybit) SetLeverage(ctx context.Context, leverage int, symbol string) (int, *models.TradeError) {
	if symbol == "" {
		return 0, models.TradekitError(models.CodeBadSymbol, "a symbol is required to set leverage")
	}
	defer b.RotateProxy()
	auth, terr := b.GetAuth()
	if terr != nil {
		return 0, terr
	}
	if terr := b.wait(ctx); terr != nil {
		return 0, terr
	}

	lv := strconv.Itoa(leverage)
	resp, err := b.client(auth.Key, auth.Secret).NewUtaBybitServiceWithParams(map[string]interface{}{
		"category":     category,
		"symbol":       symbols.ToWire(Name, symbol),
		"buyLeverage":  lv,
		"sellLeverage": lv,
	}).SetPositionLeverage(ctx)
	logger.IncrementRestCall(Name)

	if terr := decodeResponse(resp, err, nil); terr != nil {
		if terr.Reason == models.ReasonExchangeError && terr.Code == codeLeverageNotModified {
			return leverage, nil
		}
		return 0, terr
	}
	return leverage, nil
}

func (b *Bybit) OpenLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return b.execute(ctx, symbol, amount, models.SideBuy, false, timeout)
}

func (b *Bybit) OpenShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return b.execute(ctx, symbol, amount, models.SideSell, false, timeout)
}

func (b *Bybit) CloseLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return b.execute(ctx, symbol, amount, models.SideSell, true, timeout)
}

func (b *Bybit) CloseShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return b.execute(ctx, symbol, amount, models.SideBuy, true, timeout)
}
