package binance

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"

	"tradekit/exec"
	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
)

// client builds a per-call SDK client routed through the current proxy.
// Transports are cached per endpoint so this is cheap.
func (b *Binance) client(key, secret string) *futures.Client {
	c := futures.NewClient(key, secret)
	c.HTTPClient = b.transports.Client(b.CurrentEndpoint(), restTimeout)
	c.SetApiEndpoint(b.restURL)
	return c
}

func (b *Binance) wait(ctx context.Context) *models.TradeError {
	if err := b.limiter.Wait(ctx); err != nil {
		return models.NetworkError("rate limiter wait aborted: "+err.Error(), err)
	}
	return nil
}

func (b *Binance) execute(ctx context.Context, symbol string, amount float64, side models.OrderSide, reduceOnly bool, timeout time.Duration) (models.Order, *models.TradeError) {
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
	b *Binance
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

	side := futures.SideTypeBuy
	if req.Side == models.SideSell {
		side = futures.SideTypeSell
	}
	svc := a.b.client(auth.Key, auth.Secret).NewCreateOrderService().
		Symbol(symbols.ToWire(Name, req.Symbol)).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(strconv.FormatFloat(req.Amount, 'f', -1, 64)).
		NewClientOrderID(uuid.NewString())
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	res, err := svc.Do(ctx)
	logger.IncrementRestCall(Name)
	if err != nil {
		return models.Order{}, normalize(err)
	}
	return adaptCreateResponse(res, req.Symbol)
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

	raw, err := a.b.client(auth.Key, auth.Secret).NewListOpenOrdersService().
		Symbol(symbols.ToWire(Name, symbol)).Do(ctx)
	logger.IncrementRestCall(Name)
	if err != nil {
		return nil, normalize(err)
	}
	orders := make([]models.Order, 0, len(raw))
	for _, o := range raw {
		order, terr := adaptOrder(o, symbol)
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

	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return models.Order{}, models.ConversionError("order id " + orderID + " is not numeric")
	}
	raw, err := a.b.client(auth.Key, auth.Secret).NewGetOrderService().
		Symbol(symbols.ToWire(Name, symbol)).
		OrderID(id).
		Do(ctx)
	logger.IncrementRestCall(Name)
	if err != nil {
		return models.Order{}, normalize(err)
	}
	return adaptOrder(raw, symbol)
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

	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return models.ConversionError("order id " + orderID + " is not numeric")
	}
	_, err = a.b.client(auth.Key, auth.Secret).NewCancelOrderService().
		Symbol(symbols.ToWire(Name, symbol)).
		OrderID(id).
		Do(ctx)
	logger.IncrementRestCall(Name)
	if err != nil {
		return normalize(err)
	}
	return nil
}
