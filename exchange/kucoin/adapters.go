package kucoin

import (
	"encoding/json"
	"strconv"
	"time"

	"tradekit/models"
)

// contractEntry is the subset of the contract detail that feeds tickers.
// KuCoin encodes these as JSON numbers, unlike its order payloads.
type contractEntry struct {
	Symbol         string  `json:"symbol"`
	LastTradePrice float64 `json:"lastTradePrice"`
	PriceChgPct    float64 `json:"priceChgPct"`
	HighPrice      float64 `json:"highPrice"`
	LowPrice       float64 `json:"lowPrice"`
	VolumeOf24h    float64 `json:"volumeOf24h"`
	TurnoverOf24h  float64 `json:"turnoverOf24h"`
}

type accountOverview struct {
	Currency         string  `json:"currency"`
	AccountEquity    float64 `json:"accountEquity"`
	AvailableBalance float64 `json:"availableBalance"`
	FrozenFunds      float64 `json:"frozenFunds"`
	PositionMargin   float64 `json:"positionMargin"`
	OrderMargin      float64 `json:"orderMargin"`
}

type orderEntry struct {
	ID          string  `json:"id"`
	ClientOid   string  `json:"clientOid"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Price       string  `json:"price"`
	Size        float64 `json:"size"`
	DealSize    float64 `json:"dealSize"`
	DealValue   string  `json:"dealValue"`
	Status      string  `json:"status"`
	IsActive    bool    `json:"isActive"`
	CancelExist bool    `json:"cancelExist"`
	UpdatedAt   int64   `json:"updatedAt"`
	OrderTime   int64   `json:"orderTime"`
}

func optionalFloat(value string) float64 {
	v, _ := strconv.ParseFloat(value, 64)
	return v
}

// adaptTicker derives the 24h open from the last price and the reported
// change percentage, since KuCoin does not expose the open directly.
func adaptTicker(entry contractEntry, symbol string) (models.Ticker, *models.TradeError) {
	if entry.LastTradePrice == 0 {
		return models.Ticker{}, models.ConversionError("kucoin contract " + entry.Symbol + " carries no last trade price")
	}
	last := entry.LastTradePrice
	open := last / (1 + entry.PriceChgPct)

	now := time.Now()
	info, _ := json.Marshal(entry)
	return models.Ticker{
		Symbol:      symbol,
		Timestamp:   now.UnixMilli(),
		Datetime:    now.UTC(),
		Last:        last,
		Close:       last,
		AbsChange:   last - open,
		PercChange:  entry.PriceChgPct * 100,
		High:        entry.HighPrice,
		Low:         entry.LowPrice,
		Volume:      entry.VolumeOf24h,
		BaseVolume:  entry.VolumeOf24h,
		QuoteVolume: entry.TurnoverOf24h,
		Open:        open,
		Info:        info,
	}, nil
}

// adaptStreamTicker converts a pushed 24h snapshot. The wire timestamp is
// nanoseconds.
func adaptStreamTicker(data streamTicker, symbol string) (models.Ticker, *models.TradeError) {
	if data.LastPrice == 0 {
		return models.Ticker{}, models.ConversionError("kucoin snapshot " + data.Symbol + " carries no last price")
	}
	last := data.LastPrice
	open := last / (1 + data.PriceChgPct)

	ts := data.Ts / int64(time.Millisecond)
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	info, _ := json.Marshal(data)
	return models.Ticker{
		Symbol:      symbol,
		Timestamp:   ts,
		Datetime:    time.UnixMilli(ts).UTC(),
		Last:        last,
		Close:       last,
		AbsChange:   last - open,
		PercChange:  data.PriceChgPct * 100,
		High:        data.HighPrice,
		Low:         data.LowPrice,
		Volume:      data.Volume,
		BaseVolume:  data.Volume,
		QuoteVolume: data.Turnover,
		Open:        open,
		Info:        info,
	}, nil
}

func adaptCurrencyBalance(data accountOverview) (models.CurrencyBalance, *models.TradeError) {
	used := data.FrozenFunds + data.PositionMargin + data.OrderMargin
	return models.CurrencyBalance{
		Free:  data.AvailableBalance,
		Used:  used,
		Total: data.AccountEquity,
	}, nil
}

func adaptStatus(entry orderEntry) models.OrderStatus {
	if entry.IsActive || entry.Status == "open" {
		return models.OrderStatusNew
	}
	if entry.CancelExist {
		return models.OrderStatusCanceled
	}
	return models.OrderStatusFilled
}

// remainingSize reports the unfilled size of an order; done orders are
// fully settled regardless of the size delta.
func remainingSize(entry orderEntry) float64 {
	if !entry.IsActive && entry.Status != "open" {
		return 0
	}
	remaining := entry.Size - entry.DealSize
	if remaining < 0 {
		return 0
	}
	return remaining
}

func adaptOrder(entry orderEntry, symbol string) (models.Order, *models.TradeError) {
	if entry.ID == "" {
		return models.Order{}, models.ConversionError("kucoin order carries no id")
	}
	price := optionalFloat(entry.Price)
	if entry.DealSize > 0 {
		if dealValue := optionalFloat(entry.DealValue); dealValue > 0 {
			price = dealValue / entry.DealSize
		}
	}
	side := models.SideBuy
	if entry.Side == "sell" {
		side = models.SideSell
	}
	ts := entry.UpdatedAt
	if ts == 0 && entry.OrderTime != 0 {
		// orderTime is nanoseconds.
		ts = entry.OrderTime / int64(time.Millisecond)
	}
	return models.Order{
		OrderID:       entry.ID,
		ClientOrderID: entry.ClientOid,
		Symbol:        symbol,
		Price:         price,
		Quantity:      entry.Size,
		OrderType:     models.OrderTypeMarket,
		Side:          side,
		Status:        adaptStatus(entry),
		Timestamp:     ts,
		Datetime:      time.UnixMilli(ts).UTC(),
	}, nil
}
