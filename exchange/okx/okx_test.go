package okx

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/stream"
)

func TestSign(t *testing.T) {
	got := sign("secret", "2023-01-01T00:00:00.000Z", "GET", "/api/v5/account/balance", "")
	assert.Equal(t, "ya6Cwl8vrqd3w9EG6T8LEF91bxEVyTq8xvenWKSSZvU=", got)
}

func TestNormalizeEnvelope(t *testing.T) {
	terr := normalizeEnvelope(envelope{Code: codeRateLimit, Msg: "too many requests"})
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonRateLimit, terr.Reason)

	terr = normalizeEnvelope(envelope{Code: codeBadInstrument, Msg: "instrument does not exist"})
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeBadSymbol))

	terr = normalizeEnvelope(envelope{Code: codeBadOrder, Msg: "parameter error"})
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeInvalidOrder))

	terr = normalizeEnvelope(envelope{Code: "50001", Msg: "service unavailable"})
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonExchangeError, terr.Reason)
	assert.Equal(t, "50001", terr.Code)
	assert.Equal(t, "service unavailable", terr.Msg)
}

func TestNormalizeEnvelopePrefersAckCode(t *testing.T) {
	data, err := json.Marshal([]orderAck{{SCode: "51000", SMsg: "size precision error"}})
	require.NoError(t, err)

	terr := normalizeEnvelope(envelope{Code: "1", Msg: "operation failed", Data: data})
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeInvalidOrder))
	assert.Contains(t, terr.Msg, "size precision")
}

func TestParseStreamError(t *testing.T) {
	terr := parseStreamError([]byte(`{"event":"error","code":"60012","msg":"invalid request","connId":"a4d3ae55"}`))
	require.NotNil(t, terr)
	assert.Equal(t, models.CodeWSHandled, terr.Code)
	assert.Equal(t, "a4d3ae55", terr.ConnID)
	assert.Equal(t, "invalid request", terr.Msg)

	terr = parseStreamError([]byte("garbage"))
	require.NotNil(t, terr)
	assert.Equal(t, models.CodeWSUnhandled, terr.Code)
	assert.Equal(t, "N/A", terr.ConnID)
}

func TestAdaptTicker(t *testing.T) {
	ticker, terr := adaptTicker(tickerEntry{
		InstID:    "BTC-USDT-SWAP",
		Last:      "65000",
		Open24h:   "62500",
		High24h:   "65500",
		Low24h:    "62000",
		Vol24h:    "120000",
		VolCcy24h: "1800",
		Ts:        "1700000000000",
	}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, 65000.0, ticker.Last)
	assert.Equal(t, 2500.0, ticker.AbsChange)
	assert.InDelta(t, 4.0, ticker.PercChange, 1e-9)
	assert.Equal(t, int64(1700000000000), ticker.Timestamp)
	assert.Equal(t, 120000.0, ticker.Volume, "contract count")
	assert.Equal(t, 1800.0, ticker.BaseVolume)
	assert.InDelta(t, 1800.0*65000.0, ticker.QuoteVolume, 1e-6, "quote volume derived from last")

	_, terr = adaptTicker(tickerEntry{InstID: "BTC-USDT-SWAP"}, "BTC/USDT:USDT")
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeConversionError))
}

func TestAdaptBalance(t *testing.T) {
	balance, terr := adaptBalance([]balanceEntry{{
		UTime: "1700000000000",
		Details: []balanceDetail{
			{Ccy: "USDT", Eq: "1000", AvailEq: "900", FrozenBal: "100"},
			{Ccy: "BTC", Eq: "0.5", FrozenBal: "0.1"},
		},
	}})
	require.Nil(t, terr)
	assert.Equal(t, 900.0, balance.Currencies["USDT"].Free)
	assert.Equal(t, 100.0, balance.Currencies["USDT"].Used)
	assert.Equal(t, 0.4, balance.Currencies["BTC"].Free, "free falls back to eq minus frozen")
	assert.Equal(t, int64(1700000000000), balance.Timestamp)
}

func TestAdaptOrder(t *testing.T) {
	order, terr := adaptOrder(orderEntry{
		OrdID: "712",
		Sz:    "2",
		AvgPx: "64990",
		Side:  "sell",
		State: "filled",
		UTime: "1700000000000",
	}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, models.OrderStatusFilled, order.Status)
	assert.Equal(t, models.SideSell, order.Side)
	assert.Equal(t, 64990.0, order.Price)

	canceled, terr := adaptOrder(orderEntry{OrdID: "713", Sz: "1", State: "canceled"}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
}

func newTestStreamClient(handlers stream.Handlers) *streamClient {
	c := &streamClient{
		handlers: handlers,
		table:    symbols.NewTable(),
		log:      logger.GetLogger().WithComponent(Name),
	}
	c.table.Put("BTC-USDT-SWAP", "BTC/USDT:USDT")
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

	msg := `{"arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","last":"65000","open24h":"64000","ts":"1700000000000"}]}`
	c.handleMessage([]byte(msg))
	c.handleMessage([]byte(msg))
	require.Len(t, updates, 2, "complete updates are emitted without local state")
	assert.Equal(t, "BTC/USDT:USDT", updates[0].Symbol)
	assert.Equal(t, 65000.0, updates[0].Last)
}

func TestStreamErrorEvent(t *testing.T) {
	var errs []*models.TradeError
	c := newTestStreamClient(stream.Handlers{OnError: func(terr *models.TradeError) { errs = append(errs, terr) }})

	c.handleMessage([]byte(`{"event":"error","code":"60018","msg":"channel does not exist","connId":"c-9"}`))
	require.Len(t, errs, 1)
	assert.Equal(t, models.ReasonWebSocketError, errs[0].Reason)
	assert.Equal(t, "c-9", errs[0].ConnID)
}

func TestStreamIgnoresPongAndAcks(t *testing.T) {
	var updates int
	c := newTestStreamClient(stream.Handlers{OnUpdate: func(models.Ticker) { updates++ }})

	c.handleMessage([]byte("pong"))
	c.handleMessage([]byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"}}`))
	assert.Zero(t, updates)
}

func TestClientOrderID(t *testing.T) {
	id := clientOrderID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
}
