package binance

import (
	"testing"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekit/models"
)

func TestAdaptTicker(t *testing.T) {
	stats := &futures.PriceChangeStats{
		Symbol:             "BTCUSDT",
		LastPrice:          "65000.10",
		PriceChange:        "-120.5",
		PriceChangePercent: "-0.18",
		HighPrice:          "66000",
		LowPrice:           "64000",
		OpenPrice:          "65120.60",
		Volume:             "1234.5",
		QuoteVolume:        "80412345.6",
		OpenTime:           1700000000000,
		CloseTime:          1700086400000,
	}

	ticker, terr := adaptTicker(stats, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, "BTC/USDT:USDT", ticker.Symbol)
	assert.Equal(t, 65000.10, ticker.Last)
	assert.Equal(t, 65000.10, ticker.Close)
	assert.Equal(t, -120.5, ticker.AbsChange)
	assert.Equal(t, 65120.60, ticker.Open)
	assert.Equal(t, int64(1700086400000), ticker.Timestamp)
	assert.Equal(t, int64(1700000000000), ticker.OpenTime.UnixMilli())
	assert.NotEmpty(t, ticker.Info)
}

func TestAdaptTickerMissingField(t *testing.T) {
	stats := &futures.PriceChangeStats{Symbol: "BTCUSDT", HighPrice: "1", LowPrice: "1", OpenPrice: "1"}
	_, terr := adaptTicker(stats, "BTC/USDT:USDT")
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeConversionError))
}

func TestAdaptBalance(t *testing.T) {
	balance, terr := adaptBalance([]*futures.Balance{
		{Asset: "USDT", Balance: "1000", AvailableBalance: "750"},
		{Asset: "BNB", Balance: "2", AvailableBalance: "2"},
	})
	require.Nil(t, terr)
	usdt := balance.Currencies["USDT"]
	assert.Equal(t, 750.0, usdt.Free)
	assert.Equal(t, 250.0, usdt.Used)
	assert.Equal(t, 1000.0, usdt.Total)

	filtered := balance.Filter([]string{"USDT", "ETH"})
	assert.Len(t, filtered.Currencies, 1)
	_, ok := filtered.Currencies["ETH"]
	assert.False(t, ok, "absent currencies are omitted, not errored")
}

func TestAdaptOrderStatus(t *testing.T) {
	order, terr := adaptOrder(&futures.Order{
		OrderID:      42,
		OrigQuantity: "0.5",
		AvgPrice:     "64990",
		Status:       futures.OrderStatusTypeFilled,
		Side:         futures.SideTypeSell,
		UpdateTime:   1700000000000,
	}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, "42", order.OrderID)
	assert.Equal(t, models.OrderStatusFilled, order.Status)
	assert.Equal(t, models.SideSell, order.Side)
	assert.Equal(t, 64990.0, order.Price)
	assert.True(t, order.Terminal())

	canceled, terr := adaptOrder(&futures.Order{
		OrderID: 43, OrigQuantity: "1", Status: futures.OrderStatusTypeExpired, Time: 1700000000000,
	}, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, int64(1700000000000), canceled.Timestamp)
}

func TestAdaptStreamTicker(t *testing.T) {
	event := &futures.WsMarketTickerEvent{
		Symbol:     "BTCUSDT",
		ClosePrice: "65000",
		OpenPrice:  "64000",
		HighPrice:  "65500",
		LowPrice:   "63900",
		BaseVolume: "100",
		Time:       1700000000000,
	}
	ticker, terr := adaptStreamTicker(event, "BTC/USDT:USDT")
	require.Nil(t, terr)
	assert.Equal(t, "BTC/USDT:USDT", ticker.Symbol)
	assert.Equal(t, 65000.0, ticker.Last)
	assert.Equal(t, 100.0, ticker.Volume)

	_, terr = adaptStreamTicker(&futures.WsMarketTickerEvent{Symbol: "BTCUSDT"}, "BTC/USDT:USDT")
	require.NotNil(t, terr)
	assert.True(t, terr.IsCode(models.CodeConversionError))
}
