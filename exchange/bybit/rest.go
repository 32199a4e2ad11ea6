package bybit

import (
	"context"
	"strconv"
	"time"

	bybit_connector "github.com/bybit-exchange/bybit.go.api"
	"github.com/google/uuid"

	"tradekit/exec"
	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
)

// client builds a per-call SDK client routed through the current proxy.
func (b *Bybit) client(key, secret string) *bybit_connector.Client {
	c := bybit_connector.NewBybitHttpClient(key, secret, bybit_connector.WithBaseURL(b.restURL))
	c.HTTPClient = b.transports.Client(b.CurrentEndpoint(), restTimeout)
	return c
}

func (b *Bybit) wait(ctx context.Context) *models.TradeError {
	if err := b.limiter.Wait(ctx); err != nil {
		return models.NetworkError("rate limiter wait aborted: "+err.Error(), err)
	}
	return nil
}

func (b *Bybit) execute(ctx context.Context, symbol string, amount float64, side models.OrderSide, reduceOnly bool, timeout time.Duration) (models.Order, *models.TradeError) {
	controller := exec.NewController(Name, &orderAPI{b: b}, b.recorder)
	return controller.Execute(ctx, exec.Request{
		Symbol:     symbol,
		Amount:     amount,
		Side:       side,
		ReduceOnly: reduceOnly,
	}, timeout)
}

// orderAPI adapts the facade to the execution controller's capability
// surface. Every call threads the current proxy and rotates afterwards.
type orderAPI struct {
	b *Bybit
}

func sideParam(side models.OrderSide) string {
	if side == models.SideSell {
		return "Sell"
	}
	return "Buy"
}

func (a *orderAPI) Submit(ctx context.Context, req exec.Request) (models.Order, *models.TradeError) {
	defer a.b.RotateProxy()
	auth, terr := a.b.GetAuth()
	if terr != nil {
		return models.Order{}, terr
	}
	if terr := a.b.wait(ctx); terr != nil {
		return models.Order{}, terr
	}

	clientID := uuid.NewString()
	params := map[string]interface{}{
		"category":    category,
		"symbol":      symbols.ToWire(Name, req.Symbol),
		"side":        sideParam(req.Side),
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(req.Amount, 'f', -1, 64),
		"orderLinkId": clientID,
	}
	if req.ReduceOnly {
		params["reduceOnly"] = true
	}
	resp, err := a.b.client(auth.Key, auth.Secret).NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	logger.IncrementRestCall(Name)

	var result placeOrderResult
	if terr := decodeResponse(resp, err, &result); terr != nil {
		return models.Order{}, terr
	}
	if result.OrderID == "" {
		return models.Order{}, models.ConversionError("bybit order response carries no orderId")
	}
	now := time.Now().UTC()
	return models.Order{
		OrderID:       result.OrderID,
		ClientOrderID: clientID,
		Symbol:        req.Symbol,
		Quantity:      req.Amount,
		OrderType:     models.OrderTypeMarket,
		Side:          req.Side,
		Status:        models.OrderStatusNew,
		Timestamp:     now.UnixMilli(),
		Datetime:      now,
	}, nil
}

func (a *orderAPI) ListOpen(ctx context.Context, symbol string) ([]models.Order, *models.TradeError) {
	defer a.b.RotateProxy()
	auth, terr := a.b.GetAuth()
	if terr != nil {
		return nil, terr
	}
	if terr := a.b.wait(ctx); terr != nil {
		return nil, terr
	}

	resp, err := a.b.client(auth.Key, auth.Secret).NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": category,
		"symbol":   symbols.ToWire(Name, symbol),
	}).GetOpenOrders(ctx)
	logger.IncrementRestCall(Name)

	var result ordersResult
	if terr := decodeResponse(resp, err, &result); terr != nil {
		return nil, terr
	}
	orders := make([]models.Order, 0, len(result.List))
	for _, entry := range result.List {
		order, terr := adaptOrder(entry, symbol)
		if terr != nil {
			return nil, terr
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (a *orderAPI) Fetch(ctx context.Context, orderID, symbol string) (models.Order, *models.TradeError) {
	defer a.b.RotateProxy()
	auth, terr := a.b.GetAuth()
	if terr != nil {
		return models.Order{}, terr
	}
	if terr := a.b.wait(ctx); terr != nil {
		return models.Order{}, terr
	}

	resp, err := a.b.client(auth.Key, auth.Secret).NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": category,
		"symbol":   symbols.ToWire(Name, symbol),
		"orderId":  orderID,
	}).GetOrderHistory(ctx)
	logger.IncrementRestCall(Name)

	var result ordersResult
	if terr := decodeResponse(resp, err, &result); terr != nil {
		return models.Order{}, terr
	}
	for _, entry := range result.List {
		if entry.OrderID == orderID {
			return adaptOrder(entry, symbol)
		}
	}
	return models.Order{}, models.UnknownError("order "+orderID+" not found in bybit order history", "", nil)
}

func (a *orderAPI) Cancel(ctx context.Context, orderID, symbol string) *models.TradeError {
	defer a.b.RotateProxy()
	auth, terr := a.b.GetAuth()
	if terr != nil {
		return terr
	}
	if terr := a.b.wait(ctx); terr != nil {
		return terr
	}

	resp, err := a.b.client(auth.Key, auth.Secret).NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": category,
		"symbol":   symbols.ToWire(Name, symbol),
		"orderId":  orderID,
	}).CancelOrder(ctx)
	logger.IncrementRestCall(Name)

	return decodeResponse(resp, err, nil)
}
