// Package exchange defines the unified venue facade: one typed interface
// over the per-venue connectivity clients, every operation returning a
// tagged (value, *TradeError) pair instead of leaking venue errors.
package exchange

import (
	"context"
	"time"

	"tradekit/models"
	"tradekit/proxy"
	"tradekit/stream"
)

// Auth is a venue credential triple. Passphrase is only used by venues
// that sign with one (okx, kucoin).
type Auth struct {
	Key        string
	Secret     string
	Passphrase string
}

// Options configures a venue facade at construction time. Everything can
// also be changed later through the facade's setters.
type Options struct {
	Auth    *Auth
	Sandbox bool
	Proxies []proxy.Endpoint

	// RestURL and WsURL override the venue's default endpoints.
	RestURL string
	WsURL   string

	// Recorder, when set, receives every terminal order outcome.
	Recorder FillRecorder
}

// FillRecorder mirrors exec.FillRecorder so callers can wire a journal
// without importing the controller package.
type FillRecorder interface {
	RecordFill(exchange string, order models.Order)
}

// Exchange is the unified trading facade. Implementations never panic on
// expected failures and never return a raw venue error: every failure is a
// *models.TradeError.
type Exchange interface {
	// Name returns the venue identifier, e.g. "binance".
	Name() string

	GetTicker(ctx context.Context, symbol string) (models.Ticker, *models.TradeError)
	GetTickers(ctx context.Context, symbols []string) ([]models.Ticker, *models.TradeError)

	SubscribeTicker(symbol string, handlers stream.Handlers) (stream.Client, *models.TradeError)
	SubscribeTickers(symbols []string, handlers stream.Handlers) (stream.Client, *models.TradeError)

	// GetBalance returns the account balance, filtered to the given
	// currencies when any are passed.
	GetBalance(ctx context.Context, currencies ...string) (models.Balance, *models.TradeError)

	// SetLeverage applies the leverage to the symbol's position and returns
	// the applied value. A missing symbol is a BAD_SYMBOL error; global
	// leverage is not supported.
	SetLeverage(ctx context.Context, leverage int, symbol string) (int, *models.TradeError)

	// Position operations submit a market order and block until it fills
	// or the timeout budget elapses. A non-positive timeout means the
	// 30 second default. Close operations are reduce-only.
	OpenLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError)
	OpenShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError)
	CloseLong(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError)
	CloseShort(ctx context.Context, symbol string, amount float64, timeout time.Duration) (models.Order, *models.TradeError)

	SetAuth(auth Auth)
	GetAuth() (Auth, *models.TradeError)
	SetSandbox(sandbox bool)

	AddProxy(endpoint proxy.Endpoint)
	SetProxies(endpoints []proxy.Endpoint)
	GetProxies() ([]proxy.Endpoint, *models.TradeError)
	GetCurrentProxy() (proxy.Endpoint, *models.TradeError)
	RotateProxy()
}
