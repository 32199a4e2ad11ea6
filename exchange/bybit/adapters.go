package bybit

import (
	"encoding/json"
	"strconv"
	"time"

	"tradekit/models"
)

type tickerEntry struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	PrevPrice24h string `json:"prevPrice24h"`
	Price24hPcnt string `json:"price24hPcnt"`
	HighPrice24h string `json:"highPrice24h"`
	LowPrice24h  string `json:"lowPrice24h"`
	Volume24h    string `json:"volume24h"`
	Turnover24h  string `json:"turnover24h"`
}

type tickersResult struct {
	Category string        `json:"category"`
	List     []tickerEntry `json:"list"`
}

type walletCoin struct {
	Coin          string `json:"coin"`
	WalletBalance string `json:"walletBalance"`
	Locked        string `json:"locked"`
}

type walletAccount struct {
	AccountType string       `json:"accountType"`
	Coin        []walletCoin `json:"coin"`
}

type walletResult struct {
	List []walletAccount `json:"list"`
}

type placeOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type orderEntry struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	AvgPrice    string `json:"avgPrice"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	OrderStatus string `json:"orderStatus"`
	CreatedTime string `json:"createdTime"`
	UpdatedTime string `json:"updatedTime"`
	LeavesQty   string `json:"leavesQty"`
}

type ordersResult struct {
	List []orderEntry `json:"list"`
}

func requiredFloat(field, value string) (float64, *models.TradeError) {
	if value == "" {
		return 0, models.ConversionError("bybit field " + field + " is missing")
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, models.ConversionError("bybit field " + field + " is not numeric: " + value)
	}
	return v, nil
}

func optionalFloat(value string) float64 {
	v, _ := strconv.ParseFloat(value, 64)
	return v
}

func optionalMillis(value string) int64 {
	v, _ := strconv.ParseInt(value, 10, 64)
	return v
}

func adaptTicker(entry tickerEntry, symbol string, ts int64) (models.Ticker, *models.TradeError) {
	last, terr := requiredFloat("lastPrice", entry.LastPrice)
	if terr != nil {
		return models.Ticker{}, terr
	}
	open := optionalFloat(entry.PrevPrice24h)

	info, _ := json.Marshal(entry)
	return models.Ticker{
		Symbol:      symbol,
		Timestamp:   ts,
		Datetime:    time.UnixMilli(ts).UTC(),
		Last:        last,
		Close:       last,
		AbsChange:   last - open,
		PercChange:  optionalFloat(entry.Price24hPcnt) * 100,
		High:        optionalFloat(entry.HighPrice24h),
		Low:         optionalFloat(entry.LowPrice24h),
		Volume:      optionalFloat(entry.Volume24h),
		BaseVolume:  optionalFloat(entry.Volume24h),
		QuoteVolume: optionalFloat(entry.Turnover24h),
		Open:        open,
		Info:        info,
	}, nil
}

func adaptBalance(result walletResult) (models.Balance, *models.TradeError) {
	now := time.Now().UTC()
	balance := models.Balance{
		Currencies: make(map[string]models.CurrencyBalance),
		Timestamp:  now.UnixMilli(),
		Datetime:   now,
	}
	for _, account := range result.List {
		for _, coin := range account.Coin {
			total, terr := requiredFloat("walletBalance", coin.WalletBalance)
			if terr != nil {
				return models.Balance{}, terr
			}
			used := optionalFloat(coin.Locked)
			balance.Currencies[coin.Coin] = models.CurrencyBalance{
				Free:  total - used,
				Used:  used,
				Total: total,
			}
		}
	}
	return balance, nil
}

func adaptStatus(status string) models.OrderStatus {
	switch status {
	case "Filled":
		return models.OrderStatusFilled
	case "Cancelled", "Rejected", "Deactivated":
		return models.OrderStatusCanceled
	default:
		return models.OrderStatusNew
	}
}

func adaptOrder(entry orderEntry, symbol string) (models.Order, *models.TradeError) {
	qty, terr := requiredFloat("qty", entry.Qty)
	if terr != nil {
		return models.Order{}, terr
	}
	price := optionalFloat(entry.AvgPrice)
	if price == 0 {
		price = optionalFloat(entry.Price)
	}
	side := models.SideBuy
	if entry.Side == "Sell" {
		side = models.SideSell
	}
	ts := optionalMillis(entry.UpdatedTime)
	if ts == 0 {
		ts = optionalMillis(entry.CreatedTime)
	}
	return models.Order{
		OrderID:       entry.OrderID,
		ClientOrderID: entry.OrderLinkID,
		Symbol:        symbol,
		Price:         price,
		Quantity:      qty,
		OrderType:     models.OrderTypeMarket,
		Side:          side,
		Status:        adaptStatus(entry.OrderStatus),
		Timestamp:     ts,
		Datetime:      time.UnixMilli(ts).UTC(),
	}, nil
}
