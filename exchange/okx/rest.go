package okx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradekit/exec"
	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
)

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// sign produces the OK-ACCESS-SIGN value: base64 HMAC-SHA256 over
// timestamp + method + request path + body.
func sign(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// do issues one REST call against OKX and decodes the response envelope
// into out. Each call reads the current proxy, waits on the limiter and
// rotates the proxy afterwards. Private calls are signed; they require
// key, secret and passphrase.
func (o *OKX) do(ctx context.Context, method, path string, query url.Values, body interface{}, private bool, out interface{}) *models.TradeError {
	defer o.RotateProxy()

	if terr := o.wait(ctx); terr != nil {
		return terr
	}

	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return models.ConversionError("okx request cannot be encoded: " + err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, o.restURL+requestPath, bytes.NewReader(payload))
	if err != nil {
		return models.UnknownError("okx request cannot be built: "+err.Error(), "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.Sandbox() {
		req.Header.Set("x-simulated-trading", "1")
	}

	if private {
		auth, terr := o.GetAuth()
		if terr != nil {
			return terr
		}
		if auth.Passphrase == "" {
			return models.TradekitError(models.CodeAuthUnset, "okx requires an API passphrase")
		}
		timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
		req.Header.Set("OK-ACCESS-KEY", auth.Key)
		req.Header.Set("OK-ACCESS-SIGN", sign(auth.Secret, timestamp, method, requestPath, string(payload)))
		req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("OK-ACCESS-PASSPHRASE", auth.Passphrase)
	}

	resp, err := o.transports.Client(o.CurrentEndpoint(), restTimeout).Do(req)
	logger.IncrementRestCall(Name)
	if err != nil {
		return normalize(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NetworkError("okx response read failed: "+err.Error(), err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.ConversionError("okx response cannot be decoded: " + err.Error())
	}
	if env.Code != "0" {
		return normalizeEnvelope(env)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return models.ConversionError("okx data cannot be decoded: " + err.Error())
	}
	return nil
}

func (o *OKX) wait(ctx context.Context) *models.TradeError {
	if err := o.limiter.Wait(ctx); err != nil {
		return models.NetworkError("rate limiter wait aborted: "+err.Error(), err)
	}
	return nil
}

func (o *OKX) execute(ctx context.Context, symbol string, amount float64, side models.OrderSide, reduceOnly bool, timeout time.Duration) (models.Order, *models.TradeError) {
	controller := exec.NewController(Name, &orderAPI{o: o}, o.recorder)
	return controller.Execute(ctx, exec.Request{
		Symbol:     symbol,
		Amount:     amount,
		Side:       side,
		ReduceOnly: reduceOnly,
	}, timeout)
}

// clientOrderID returns a fresh id acceptable to OKX, which restricts
// clOrdId to 32 alphanumeric characters.
func clientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// orderAPI adapts the facade to the execution controller's capability
// surface. Rotation and signing live in do.
type orderAPI struct {
	o *OKX
}

func (a *orderAPI) Submit(ctx context.Context, req exec.Request) (models.Order, *models.TradeError) {
	side := "buy"
	if req.Side == models.SideSell {
		side = "sell"
	}
	body := map[string]interface{}{
		"instId":  symbols.ToWire(Name, req.Symbol),
		"tdMode":  "cross",
		"side":    side,
		"ordType": "market",
		"sz":      formatAmount(req.Amount),
		"clOrdId": clientOrderID(),
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}

	var data []orderAck
	if terr := a.o.do(ctx, "POST", "/api/v5/trade/order", nil, body, true, &data); terr != nil {
		return models.Order{}, terr
	}
	if len(data) == 0 || data[0].OrdID == "" {
		return models.Order{}, models.ConversionError("okx order response carries no order id")
	}
	return models.Order{
		OrderID:       data[0].OrdID,
		ClientOrderID: data[0].ClOrdID,
		Symbol:        req.Symbol,
		Quantity:      req.Amount,
		OrderType:     models.OrderTypeMarket,
		Side:          req.Side,
		Status:        models.OrderStatusNew,
		Timestamp:     time.Now().UnixMilli(),
		Datetime:      time.Now().UTC(),
	}, nil
}

func (a *orderAPI) ListOpen(ctx context.Context, symbol string) ([]models.Order, *models.TradeError) {
	query := url.Values{
		"instType": {"SWAP"},
		"instId":   {symbols.ToWire(Name, symbol)},
	}
	var data []orderEntry
	if terr := a.o.do(ctx, "GET", "/api/v5/trade/orders-pending", query, nil, true, &data); terr != nil {
		return nil, terr
	}
	orders := make([]models.Order, 0, len(data))
	for _, entry := range data {
		order, terr := adaptOrder(entry, symbol)
		if terr != nil {
			return nil, terr
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (a *orderAPI) Fetch(ctx context.Context, orderID, symbol string) (models.Order, *models.TradeError) {
	query := url.Values{
		"instId": {symbols.ToWire(Name, symbol)},
		"ordId":  {orderID},
	}
	var data []orderEntry
	if terr := a.o.do(ctx, "GET", "/api/v5/trade/order", query, nil, true, &data); terr != nil {
		return models.Order{}, terr
	}
	if len(data) == 0 {
		return models.Order{}, models.UnknownError("okx returned no order for id "+orderID, "", nil)
	}
	return adaptOrder(data[0], symbol)
}

func (a *orderAPI) Cancel(ctx context.Context, orderID, symbol string) *models.TradeError {
	body := map[string]string{
		"instId": symbols.ToWire(Name, symbol),
		"ordId":  orderID,
	}
	return a.o.do(ctx, "POST", "/api/v5/trade/cancel-order", nil, body, true, nil)
}
