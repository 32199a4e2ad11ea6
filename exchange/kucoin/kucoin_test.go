package kucoin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekit/exchange"
	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/stream"
)

func TestSign(t *testing.T) {
	got := sign("secret", "1700000000000GET/api/v1/account-overview?currency=USDT")
	assert.Equal(t, "6rb7GwIEIDae2mqTInNeDSAPUZ3vm2qb2BxAgR9pg2c=", got)

	got = sign("secret", "passphrase")
	assert.Equal(t, "sWd5rQWAxDzYJTY6K2sov6seA0l3uNP70anWxITg8IA=", got)
}

func TestNormalizeCode(t *testing.T) {
	terr := normalizeCode(codeRateLimit, "too many requests")
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonRateLimit, terr.Reason)

	terr = normalizeCode(codeNotFound, "symbol not exists")
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeBadSymbol))

	terr = normalizeCode(codeOrderNotAllow, "order placement not allowed")
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeInvalidOrder))

	terr = normalizeCode("200002", "too many requests in a short period")
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonExchangeError, terr.Reason)
	assert.Equal(t, "200002", terr.Code)
}

func TestAdaptTicker(t *testing.T) {
	ticker, terr := adaptTicker(contractEntry{
		Symbol:         "XBTUSDTM",
		LastTradePrice: 65000,
		PriceChgPct:    0.04,
		HighPrice:      65500,
		LowPrice:       62000,
		VolumeOf24h:    120000,
	}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, 65000.0, ticker.Last)
	assert.InDelta(t, 62500.0, ticker.Open, 1e-6, "open derived from last and change percentage")
	assert.InDelta(t, 2500.0, ticker.AbsChange, 1e-6)
	assert.InDelta(t, 4.0, ticker.PercChange, 1e-9)

	_, terr = adaptTicker(contractEntry{Symbol: "XBTUSDTM"}, "BTC/USDT:USDT")
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeConversionError))
}

func TestAdaptCurrencyBalance(t *testing.T) {
	entry, terr := adaptCurrencyBalance(accountOverview{
		Currency:         "USDT",
		AccountEquity:    1000,
		AvailableBalance: 850,
		FrozenFunds:      50,
		PositionMargin:   80,
		OrderMargin:      20,
	})
	require.Nil(t, terr)
	assert.Equal(t, 850.0, entry.Free)
	assert.Equal(t, 150.0, entry.Used)
	assert.Equal(t, 1000.0, entry.Total)
}

func TestGetBalanceOmitsUnknownCurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("currency") {
		case "USDT":
			fmt.Fprint(w, `{"code":"200000","data":{"currency":"USDT","accountEquity":1000,"availableBalance":900,"frozenFunds":100}}`)
		default:
			fmt.Fprint(w, `{"code":"404000","msg":"currency not exists"}`)
		}
	}))
	defer srv.Close()

	k := New(exchange.Options{
		RestURL: srv.URL,
		Auth:    &exchange.Auth{Key: "k", Secret: "s", Passphrase: "p"},
	})

	balance, terr := k.GetBalance(context.Background(), "USDT", "DOGE")
	require.Nil(t, terr)
	require.Len(t, balance.Currencies, 1, "unknown currencies are omitted, not errored")
	assert.Equal(t, 1000.0, balance.Currencies["USDT"].Total)
	assert.Equal(t, 900.0, balance.Currencies["USDT"].Free)
}

func TestAdaptOrder(t *testing.T) {
	order, terr := adaptOrder(orderEntry{
		ID:        "5f1",
		Side:      "sell",
		Size:      2,
		DealSize:  2,
		DealValue: "129980",
		Status:    "done",
		UpdatedAt: 1700000000000,
	}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, models.OrderStatusFilled, order.Status)
	assert.Equal(t, models.SideSell, order.Side)
	assert.Equal(t, 64990.0, order.Price, "fill price derived from deal value over deal size")

	canceled, terr := adaptOrder(orderEntry{ID: "5f2", Size: 1, Status: "done", CancelExist: true}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)

	open, terr := adaptOrder(orderEntry{ID: "5f3", Size: 1, Status: "open", IsActive: true}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, models.OrderStatusNew, open.Status)
}

func TestRemainingSize(t *testing.T) {
	assert.Equal(t, 1.5, remainingSize(orderEntry{Size: 2, DealSize: 0.5, Status: "open", IsActive: true}))
	assert.Zero(t, remainingSize(orderEntry{Size: 2, DealSize: 0.5, Status: "done"}), "done orders report nothing outstanding")
	assert.Zero(t, remainingSize(orderEntry{Size: 1, DealSize: 2, Status: "open", IsActive: true}))
}

func newTestStreamClient(handlers stream.Handlers) *streamClient {
	c := &streamClient{
		handlers: handlers,
		table:    symbols.NewTable(),
		log:      logger.GetLogger().WithComponent(Name),
	}
	c.table.Put("XBTUSDTM", "BTC/USDT:USDT")
	return c
}

func TestStreamEmitsEveryUpdate(t *testing.T) {
	var mu sync.Mutex
	var updates []models.Ticker
	c := newTestStreamClient(stream.Handlers{OnUpdate: func(ticker models.Ticker) {
		mu.Lock()
		updates = append(updates, ticker)
		mu.Unlock()
	}})

	msg := `{"type":"message","topic":"/contractMarket/snapshot:XBTUSDTM","data":{"symbol":"XBTUSDTM","lastPrice":65000,"priceChgPct":0.04,"ts":1700000000000000000}}`
	c.handleMessage([]byte(msg))
	c.handleMessage([]byte(msg))
	require.Len(t, updates, 2, "complete snapshots are emitted without local state")
	assert.Equal(t, "BTC/USDT:USDT", updates[0].Symbol)
	assert.Equal(t, 65000.0, updates[0].Last)
	assert.Equal(t, int64(1700000000000), updates[0].Timestamp, "nanosecond wire timestamps become milliseconds")
}

func TestStreamErrorEvent(t *testing.T) {
	var errs []*models.TradeError
	c := newTestStreamClient(stream.Handlers{OnError: func(terr *models.TradeError) { errs = append(errs, terr) }})

	c.handleMessage([]byte(`{"id":"msg-1","type":"error","code":404,"data":"topic /contractMarket/bogus not found"}`))
	require.Len(t, errs, 1)
	assert.Equal(t, models.ReasonWebSocketError, errs[0].Reason)
	assert.Equal(t, models.CodeWSHandled, errs[0].Code)
	assert.Equal(t, "msg-1", errs[0].ConnID)
}

func TestStreamIgnoresControlMessages(t *testing.T) {
	var updates int
	c := newTestStreamClient(stream.Handlers{OnUpdate: func(models.Ticker) { updates++ }})

	c.handleMessage([]byte(`{"id":"w-1","type":"welcome"}`))
	c.handleMessage([]byte(`{"id":"a-1","type":"ack"}`))
	c.handleMessage([]byte(`{"id":"p-1","type":"pong"}`))
	assert.Zero(t, updates)
}

func TestParseStreamErrorFallback(t *testing.T) {
	terr := parseStreamError([]byte("garbage"))
	require.NotNil(t, terr)
	assert.Equal(t, models.CodeWSUnhandled, terr.Code)
	assert.Equal(t, "N/A", terr.ConnID)
}
