package okx

import (
	"encoding/json"
	"strconv"
	"time"

	"tradekit/models"
)

type tickerEntry struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	Open24h   string `json:"open24h"`
	High24h   string `json:"high24h"`
	Low24h    string `json:"low24h"`
	Vol24h    string `json:"vol24h"`
	VolCcy24h string `json:"volCcy24h"`
	Ts        string `json:"ts"`
}

type balanceDetail struct {
	Ccy       string `json:"ccy"`
	Eq        string `json:"eq"`
	AvailEq   string `json:"availEq"`
	FrozenBal string `json:"frozenBal"`
}

type balanceEntry struct {
	UTime   string          `json:"uTime"`
	Details []balanceDetail `json:"details"`
}

type orderEntry struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	InstID  string `json:"instId"`
	Px      string `json:"px"`
	AvgPx   string `json:"avgPx"`
	Sz      string `json:"sz"`
	FillSz  string `json:"fillSz"`
	Side    string `json:"side"`
	State   string `json:"state"`
	CTime   string `json:"cTime"`
	UTime   string `json:"uTime"`
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func requiredFloat(field, value string) (float64, *models.TradeError) {
	if value == "" {
		return 0, models.ConversionError("okx field " + field + " is missing")
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, models.ConversionError("okx field " + field + " is not numeric: " + value)
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

func adaptTicker(entry tickerEntry, symbol string) (models.Ticker, *models.TradeError) {
	last, terr := requiredFloat("last", entry.Last)
	if terr != nil {
		return models.Ticker{}, terr
	}
	open := optionalFloat(entry.Open24h)

	perc := 0.0
	if open != 0 {
		perc = (last - open) / open * 100
	}

	ts := optionalMillis(entry.Ts)
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	// For swaps vol24h counts contracts and volCcy24h is base currency
	// volume; quote volume is derived from the last price.
	info, _ := json.Marshal(entry)
	return models.Ticker{
		Symbol:      symbol,
		Timestamp:   ts,
		Datetime:    time.UnixMilli(ts).UTC(),
		Last:        last,
		Close:       last,
		AbsChange:   last - open,
		PercChange:  perc,
		High:        optionalFloat(entry.High24h),
		Low:         optionalFloat(entry.Low24h),
		Volume:      optionalFloat(entry.Vol24h),
		BaseVolume:  optionalFloat(entry.VolCcy24h),
		QuoteVolume: optionalFloat(entry.VolCcy24h) * last,
		Open:        open,
		Info:        info,
	}, nil
}

func adaptBalance(data []balanceEntry) (models.Balance, *models.TradeError) {
	now := time.Now().UTC()
	balance := models.Balance{
		Currencies: make(map[string]models.CurrencyBalance),
		Timestamp:  now.UnixMilli(),
		Datetime:   now,
	}
	for _, entry := range data {
		if ts := optionalMillis(entry.UTime); ts != 0 {
			balance.Timestamp = ts
			balance.Datetime = time.UnixMilli(ts).UTC()
		}
		for _, detail := range entry.Details {
			total, terr := requiredFloat("eq", detail.Eq)
			if terr != nil {
				return models.Balance{}, terr
			}
			used := optionalFloat(detail.FrozenBal)
			free := optionalFloat(detail.AvailEq)
			if free == 0 && used < total {
				free = total - used
			}
			balance.Currencies[detail.Ccy] = models.CurrencyBalance{
				Free:  free,
				Used:  used,
				Total: total,
			}
		}
	}
	return balance, nil
}

func adaptStatus(state string) models.OrderStatus {
	switch state {
	case "filled":
		return models.OrderStatusFilled
	case "canceled", "mmp_canceled":
		return models.OrderStatusCanceled
	default:
		return models.OrderStatusNew
	}
}

func adaptOrder(entry orderEntry, symbol string) (models.Order, *models.TradeError) {
	qty, terr := requiredFloat("sz", entry.Sz)
	if terr != nil {
		return models.Order{}, terr
	}
	price := optionalFloat(entry.AvgPx)
	if price == 0 {
		price = optionalFloat(entry.Px)
	}
	side := models.SideBuy
	if entry.Side == "sell" {
		side = models.SideSell
	}
	ts := optionalMillis(entry.UTime)
	if ts == 0 {
		ts = optionalMillis(entry.CTime)
	}
	return models.Order{
		OrderID:       entry.OrdID,
		ClientOrderID: entry.ClOrdID,
		Symbol:        symbol,
		Price:         price,
		Quantity:      qty,
		OrderType:     models.OrderTypeMarket,
		Side:          side,
		Status:        adaptStatus(entry.State),
		Timestamp:     ts,
		Datetime:      time.UnixMilli(ts).UTC(),
	}, nil
}
