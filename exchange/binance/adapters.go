package binance

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"tradekit/models"
)

func requiredFloat(field, value string) (float64, *models.TradeError) {
	if value == "" {
		return 0, models.ConversionError("binance ticker field " + field + " is missing")
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, models.ConversionError("binance field " + field + " is not numeric: " + value)
	}
	return v, nil
}

func optionalFloat(value string) float64 {
	v, _ := strconv.ParseFloat(value, 64)
	return v
}

func adaptTicker(stats *futures.PriceChangeStats, symbol string) (models.Ticker, *models.TradeError) {
	last, terr := requiredFloat("lastPrice", stats.LastPrice)
	if terr != nil {
		return models.Ticker{}, terr
	}
	high, terr := requiredFloat("highPrice", stats.HighPrice)
	if terr != nil {
		return models.Ticker{}, terr
	}
	low, terr := requiredFloat("lowPrice", stats.LowPrice)
	if terr != nil {
		return models.Ticker{}, terr
	}
	open, terr := requiredFloat("openPrice", stats.OpenPrice)
	if terr != nil {
		return models.Ticker{}, terr
	}

	info, _ := json.Marshal(stats)
	return models.Ticker{
		Symbol:      symbol,
		Timestamp:   stats.CloseTime,
		Datetime:    time.UnixMilli(stats.CloseTime).UTC(),
		Last:        last,
		Close:       last,
		AbsChange:   optionalFloat(stats.PriceChange),
		PercChange:  optionalFloat(stats.PriceChangePercent),
		High:        high,
		Low:         low,
		Volume:      optionalFloat(stats.Volume),
		BaseVolume:  optionalFloat(stats.Volume),
		QuoteVolume: optionalFloat(stats.QuoteVolume),
		Open:        open,
		OpenTime:    time.UnixMilli(stats.OpenTime).UTC(),
		Info:        info,
	}, nil
}

func adaptBalance(raw []*futures.Balance) (models.Balance, *models.TradeError) {
	now := time.Now().UTC()
	balance := models.Balance{
		Currencies: make(map[string]models.CurrencyBalance, len(raw)),
		Timestamp:  now.UnixMilli(),
		Datetime:   now,
	}
	for _, b := range raw {
		total, terr := requiredFloat("balance", b.Balance)
		if terr != nil {
			return models.Balance{}, terr
		}
		free, terr := requiredFloat("availableBalance", b.AvailableBalance)
		if terr != nil {
			return models.Balance{}, terr
		}
		balance.Currencies[b.Asset] = models.CurrencyBalance{
			Free:  free,
			Used:  total - free,
			Total: total,
		}
	}
	return balance, nil
}

func adaptStatus(status futures.OrderStatusType) models.OrderStatus {
	switch status {
	case futures.OrderStatusTypeFilled:
		return models.OrderStatusFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired, futures.OrderStatusTypeRejected:
		return models.OrderStatusCanceled
	default:
		return models.OrderStatusNew
	}
}

func adaptSide(side futures.SideType) models.OrderSide {
	if side == futures.SideTypeSell {
		return models.SideSell
	}
	return models.SideBuy
}

func adaptOrder(o *futures.Order, symbol string) (models.Order, *models.TradeError) {
	qty, terr := requiredFloat("origQty", o.OrigQuantity)
	if terr != nil {
		return models.Order{}, terr
	}
	price := optionalFloat(o.AvgPrice)
	if price == 0 {
		price = optionalFloat(o.Price)
	}
	ts := o.UpdateTime
	if ts == 0 {
		ts = o.Time
	}
	return models.Order{
		OrderID:       strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        symbol,
		Price:         price,
		Quantity:      qty,
		OrderType:     models.OrderTypeMarket,
		Side:          adaptSide(o.Side),
		Status:        adaptStatus(o.Status),
		Timestamp:     ts,
		Datetime:      time.UnixMilli(ts).UTC(),
	}, nil
}

func adaptCreateResponse(res *futures.CreateOrderResponse, symbol string) (models.Order, *models.TradeError) {
	qty, terr := requiredFloat("origQty", res.OrigQuantity)
	if terr != nil {
		return models.Order{}, terr
	}
	return models.Order{
		OrderID:       strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		Symbol:        symbol,
		Price:         optionalFloat(res.Price),
		Quantity:      qty,
		OrderType:     models.OrderTypeMarket,
		Side:          adaptSide(res.Side),
		Status:        adaptStatus(res.Status),
		Timestamp:     res.UpdateTime,
		Datetime:      time.UnixMilli(res.UpdateTime).UTC(),
	}, nil
}
