package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeErrorConstructors(t *testing.T) {
	terr := RateLimit()
	assert.True(t, terr.Is(ReasonRateLimit))
	assert.NotEmpty(t, terr.Error())

	cause := errors.New("dial tcp: i/o timeout")
	terr = NetworkError("connection failed", cause)
	assert.True(t, terr.Is(ReasonNetworkError))
	assert.ErrorIs(t, terr, cause)

	terr = ExchangeError("binance", "-4164", "order notional must be no smaller than 5")
	assert.True(t, terr.Is(ReasonExchangeError))
	assert.Equal(t, "binance", terr.Exchange)
	assert.Equal(t, "-4164", terr.Code)

	terr = TradekitError(CodeBadSymbol, "unknown symbol")
	assert.True(t, terr.IsCode(CodeBadSymbol))
	assert.False(t, terr.IsCode(CodeInvalidOrder))

	terr = WebSocketError("subscription rejected", CodeWSHandled, "conn-7")
	assert.True(t, terr.Is(ReasonWebSocketError))
	assert.Equal(t, "conn-7", terr.ConnID)

	terr = ConversionError("field last is missing")
	assert.True(t, terr.Is(ReasonTradekitError))
	assert.True(t, terr.IsCode(CodeConversionError))
}

func TestTradeErrorNilSafety(t *testing.T) {
	var terr *TradeError
	assert.False(t, terr.Is(ReasonRateLimit))
	assert.False(t, terr.IsCode(CodeBadSymbol))
}

func TestOrderTerminal(t *testing.T) {
	assert.False(t, Order{Status: OrderStatusNew}.Terminal())
	assert.True(t, Order{Status: OrderStatusFilled}.Terminal())
	assert.True(t, Order{Status: OrderStatusCanceled}.Terminal())
}

func TestBalanceFilter(t *testing.T) {
	balance := Balance{Currencies: map[string]CurrencyBalance{
		"USDT": {Free: 900, Used: 100, Total: 1000},
		"BTC":  {Free: 0.4, Used: 0.1, Total: 0.5},
		"ETH":  {Free: 2, Total: 2},
	}}

	filtered := balance.Filter([]string{"USDT", "DOGE"})
	require.Len(t, filtered.Currencies, 1, "absent currencies are omitted, not errored")
	assert.Equal(t, 1000.0, filtered.Currencies["USDT"].Total)
}
