package models

import (
	"encoding/json"
	"time"
)

// OrderType identifies how an order executes.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop-limit"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderStatus is the unified order lifecycle state. An order is terminal
// once its status is filled or canceled.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
)

// Order is the unified order shape. It is created by a submit call and
// mutated only by polling or cancellation, never by the caller.
type Order struct {
	OrderID       string      `json:"order_id"`
	ClientOrderID string      `json:"client_order_id,omitempty"`
	Symbol        string      `json:"symbol"`
	Price         float64     `json:"price"`
	Quantity      float64     `json:"quantity"`
	OrderType     OrderType   `json:"order_type"`
	Side          OrderSide   `json:"side"`
	Status        OrderStatus `json:"status"`
	Timestamp     int64       `json:"timestamp"`
	Datetime      time.Time   `json:"datetime"`
}

// Terminal reports whether the order reached a final state.
func (o Order) Terminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCanceled
}

// Ticker is the unified quote shape emitted by both the REST operations
// and the streaming normalizers.
type Ticker struct {
	Symbol      string          `json:"symbol"`
	Timestamp   int64           `json:"timestamp"`
	Datetime    time.Time       `json:"datetime"`
	Last        float64         `json:"last"`
	Close       float64         `json:"close"`
	AbsChange   float64         `json:"abs_change"`
	PercChange  float64         `json:"perc_change"`
	High        float64         `json:"high"`
	Low         float64         `json:"low"`
	Volume      float64         `json:"volume"`
	BaseVolume  float64         `json:"base_volume"`
	QuoteVolume float64         `json:"quote_volume"`
	Open        float64         `json:"open"`
	OpenTime    time.Time       `json:"open_time"`
	Info        json.RawMessage `json:"info,omitempty"`
}

// CurrencyBalance holds the three standard balance figures for one currency.
type CurrencyBalance struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// Balance is a point-in-time account balance across currencies.
type Balance struct {
	Currencies map[string]CurrencyBalance `json:"currencies"`
	Timestamp  int64                      `json:"timestamp"`
	Datetime   time.Time                  `json:"datetime"`
}

// Filter returns a copy retaining only the requested currencies. Currencies
// absent from the balance are silently omitted, not errored.
func (b Balance) Filter(currencies []string) Balance {
	filtered := Balance{
		Currencies: make(map[string]CurrencyBalance, len(currencies)),
		Timestamp:  b.Timestamp,
		Datetime:   b.Datetime,
	}
	for _, c := range currencies {
		if cb, ok := b.Currencies[c]; ok {
			filtered.Currencies[c] = cb
		}
	}
	return filtered
}
