package bybit

import (
	"errors"
	"sync"
	"testing"

	bybit_connector "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/stream"
)

func TestDecodeResponse(t *testing.T) {
	terr := decodeResponse(&bybit_connector.ServerResponse{RetCode: 10006, RetMsg: "too many visits"}, nil, nil)
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonRateLimit, terr.Reason)

	terr = decodeResponse(&bybit_connector.ServerResponse{RetCode: 110007, RetMsg: "insufficient balance"}, nil, nil)
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonExchangeError, terr.Reason)
	assert.Equal(t, "110007", terr.Code)

	// The leverage-not-modified code surfaces as a plain exchange error here;
	// SetLeverage remaps it to success.
	terr = decodeResponse(&bybit_connector.ServerResponse{RetCode: 110043, RetMsg: "leverage not modified"}, nil, nil)
	require.NotNil(t, terr)
	assert.Equal(t, codeLeverageNotModified, terr.Code)

	terr = decodeResponse(nil, errors.New("dial tcp: connection refused"), nil)
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonUnknownError, terr.Reason)

	var result tickersResult
	terr = decodeResponse(&bybit_connector.ServerResponse{
		RetCode: 0,
		Result:  map[string]interface{}{"category": "linear", "list": []map[string]interface{}{{"symbol": "BTCUSDT", "lastPrice": "65000"}}},
	}, nil, &result)
	require.Nil(t, terr)
	require.Len(t, result.List, 1)
	assert.Equal(t, "65000", result.List[0].LastPrice)
}

func TestAdaptTicker(t *testing.T) {
	entry := tickerEntry{
		Symbol:       "BTCUSDT",
		LastPrice:    "65000",
		PrevPrice24h: "64000",
		Price24hPcnt: "0.0156",
		HighPrice24h: "65500",
		LowPrice24h:  "63900",
		Volume24h:    "1200",
		Turnover24h:  "77000000",
	}
	ticker, terr := adaptTicker(entry, "BTC/USDT:USDT", 1700000000000)
	require.Nil(t, terr)
	assert.Equal(t, 65000.0, ticker.Last)
	assert.Equal(t, 64000.0, ticker.Open)
	assert.Equal(t, 1000.0, ticker.AbsChange)
	assert.InDelta(t, 1.56, ticker.PercChange, 1e-9)

	_, terr = adaptTicker(tickerEntry{Symbol: "BTCUSDT"}, "BTC/USDT:USDT", 0)
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeConversionError))
}

func TestAdaptOrder(t *testing.T) {
	order, terr := adaptOrder(orderEntry{
		OrderID:     "abc",
		Qty:         "0.5",
		AvgPrice:    "64990",
		Side:        "Sell",
		OrderStatus: "Filled",
		UpdatedTime: "1700000000000",
	}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, models.OrderStatusFilled, order.Status)
	assert.Equal(t, models.SideSell, order.Side)
	assert.Equal(t, 64990.0, order.Price)
	assert.Equal(t, int64(1700000000000), order.Timestamp)

	canceled, terr := adaptOrder(orderEntry{OrderID: "d", Qty: "1", OrderStatus: "Cancelled"}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
}

func newTestStreamClient(handlers stream.Handlers) *streamClient {
	c := &streamClient{
		handlers: handlers,
		book:     stream.NewBook[tickerEntry](),
		table:    symbols.NewTable(),
		log:      logger.GetLogger().WithComponent(Name),
	}
	c.table.Put("BTCUSDT", "BTC/USDT:USDT")
	return c
}

func TestStreamSnapshotThenDelta(t *testing.T) {
	var mu sync.Mutex
	var updates []models.Ticker
	c := newTestStreamClient(stream.Handlers{OnUpdate: func(ticker models.Ticker) {
		mu.Lock()
		updates = append(updates, ticker)
		mu.Unlock()
	}})

	snapshot := `{"topic":"tickers.BTCUSDT","type":"snapshot","ts":1700000000000,"data":{"symbol":"BTCUSDT","lastPrice":"65000","prevPrice24h":"64000","highPrice24h":"65500","lowPrice24h":"63900","volume24h":"1200"}}`
	require.NoError(t, c.handleMessage(snapshot))
	assert.Empty(t, updates, "snapshot stores state without emitting")

	delta := `{"topic":"tickers.BTCUSDT","type":"delta","ts":1700000001000,"data":{"symbol":"BTCUSDT","lastPrice":"65100"}}`
	require.NoError(t, c.handleMessage(delta))
	require.Len(t, updates, 1)
	assert.Equal(t, "BTC/USDT:USDT", updates[0].Symbol)
	assert.Equal(t, 65100.0, updates[0].Last, "delta overwrites last price")
	assert.Equal(t, 65500.0, updates[0].High, "untouched fields survive the merge")
	assert.Equal(t, int64(1700000001000), updates[0].Timestamp)
}

func TestStreamDeltaBeforeSnapshotDropped(t *testing.T) {
	var updates int
	c := newTestStreamClient(stream.Handlers{OnUpdate: func(models.Ticker) { updates++ }})

	delta := `{"topic":"tickers.BTCUSDT","type":"delta","ts":1,"data":{"symbol":"BTCUSDT","lastPrice":"65100"}}`
	require.NoError(t, c.handleMessage(delta))
	assert.Zero(t, updates, "deltas before the first snapshot are dropped")
}

func TestStreamSubscriptionFailureAck(t *testing.T) {
	var errs []*models.TradeError
	c := newTestStreamClient(stream.Handlers{OnError: func(terr *models.TradeError) { errs = append(errs, terr) }})

	ack := `{"op":"subscribe","success":false,"ret_msg":"invalid topic","conn_id":"c-1"}`
	require.NoError(t, c.handleMessage(ack))
	require.Len(t, errs, 1)
	assert.Equal(t, models.ReasonWebSocketError, errs[0].Reason)
	assert.Equal(t, models.CodeWSHandled, errs[0].Code)
	assert.Equal(t, "c-1", errs[0].ConnID)
}

func TestParseStreamErrorFallback(t *testing.T) {
	terr := parseStreamError([]byte("garbage"))
	require.NotNil(t, terr)
	assert.Equal(t, models.CodeWSUnhandled, terr.Code)
	assert.Equal(t, "N/A", terr.ConnID)
}
