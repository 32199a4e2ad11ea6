// Package binance implements the unified trading facade for Binance
// USDT-margined futures on top of the adshao/go-binance client.
package binance

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"tradekit/exchange"
	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/proxy"
)

const (
	Name = "binance"

	restTimeout = 10 * time.Second

	mainURL    = "https://fapi.binance.com"
	testnetURL = "https://testnet.binancefuture.com"
)

// Binance is the venue facade. It satisfies exchange.Exchange.
type Binance struct {
	exchange.Base

	restURL    string
	transports proxy.Transports
	limiter    *rate.Limiter
	recorder   exchange.FillRecorder
	log        *logger.Entry
}

// New builds a Binance facade from the options.
func New(opts exchange.Options) *Binance {
	restURL := opts.RestURL
	if restURL == "" {
		restURL = mainURL
		if opts.Sandbox {
			restURL = testnetURL
		}
	}
	return &Binance{
		Base:     exchange.NewBase(opts),
		restURL:  restURL,
		limiter:  rate.NewLimiter(rate.Limit(10), 20),
		recorder: opts.Recorder,
		log:      logger.GetLogger().WithComponent(Name),
	}
}

func (b *Binance) Name() string { return Name }

// GetTicker fetches the 24h price statistics for one symbol.
func (b *Binance) GetTicker(ctx context.Context, symbol string) (models.Ticker, *models.TradeError) {
	defer b.RotateProxy()
	if terr := b.wait(ctx); terr != nil {
		return models.Ticker{}, terr
	}

	stats, err := b.client("", "").NewListPriceChangeStatsService().
		Symbol(symbols.ToWire(Name, symbol)).Do(ctx)
	logger.IncrementRestCall(Name)
	if err != nil {
		return models.Ticker{}, normalize(err)
	}
	if len(stats) == 0 {
		return models.Ticker{}, models.TradekitError(models.CodeBadSymbol, "no ticker returned for "+symbol)
	}
	return adaptTicker(stats[0], symbol)
}

// GetTickers fetches price statistics for several symbols. The first
// adapter failure aborts the whole call.
func (b *Binance) GetTickers(ctx context.Context, syms []string) ([]models.Ticker, *models.TradeError) {
	defer b.RotateProxy()
	if terr := b.wait(ctx); terr != nil {
		return nil, terr
	}

	stats, err := b.client("", "").NewListPriceChangeStatsService().Do(ctx)
	logger.IncrementRestCall(Name)
	if err != nil {
		return nil, normalize(err)
	}

	byWire := make(map[string]int, len(stats))
	for i, s := range stats {
		byWire[s.Symbol] = i
	}

	tickers := make([]models.Ticker, 0, len(syms))
	for _, symbol := range syms {
		i, ok := byWire[symbols.ToWire(Name, symbol)]
		if !ok {
			return nil, models.TradekitError(models.CodeBadSymbol, "no ticker returned for "+symbol)
		}
		ticker, terr := adaptTicker(stats[i], symbol)
		if terr != nil {
			return nil, terr
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

// GetBalance fetches the futures account balances, filtered when currencies
// are passed.
func (b *Binance) GetBalance(ctx context.Context, currencies ...string) (models.Balance, *models.TradeError) {
	defer b.RotateProxy()
	auth, terr := b.GetAuth()
	if terr != nil {
		return models.Balance{}, terr
	}
	if terr := b.wait(ctx); terr != nil {
		return models.Balance{}, terr
	}

	raw, err := b.client(auth.Key, auth.Secret).NewGetBalanceService().Do(ctx)
	logger.IncrementRestCall(Name)
	if err != nil {
		return models.Balance{}, normalize(err)
	}
	balance, terr := adaptBalance(raw)
	if terr != nil {
		return models.Balance{}, terr
	}
	if len(currencies) > 0 {
		balance = balance.Filter(currencies)
	}
	return balance, nil
}

// SetLeverage applies the leverage to the symbol's position.
func (b *Binance) SetLeverage(ctx context.Context, leverage int, symbol string) (int, *models.TradeError) {
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

	res, err := b.client(auth.Key, auth.Secret).NewChangeLeverageService().
		Symbol(symbols.ToWire(Name, symbol)).
		Leverage(leverage).
		Do(ctx)
	logger.IncrementRestCall(Name)
	if err != nil {
		return 0, normalize(err)
	}
	return res.Leverage, nil
}

func (b *Binance) OpenLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return b.execute(ctx, symbol, amount, models.SideBuy, false, timeout)
}

func (b *Binance) OpenShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return b.execute(ctx, symbol, amount, models.SideSell, false, timeout)
}

func (b *Binance) CloseLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return b.execute(ctx, symbol, amount, models.SideSell, true, timeout)
}

func (b *Binance) CloseShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError) {
	return b.execute(ctx, symbol, amount, models.SideBuy, true, timeout)
}
