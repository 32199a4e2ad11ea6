package kucoin

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
	"strconv"
	"time"

	"github.com/google/uuid"

	"tradekit/exec"
	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
)

const codeOK = "200000"

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// sign produces the KC-API-SIGN value: base64 HMAC-SHA256 over
// timestamp + method + endpoint (including query) + body. The same
// primitive signs the passphrase under key version 2.
func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// do issues one REST call against KuCoin Futures and decodes the response
// envelope into out. Each call reads the current proxy, waits on the
// limiter and rotates the proxy afterwards. Private calls are signed with
// the v2 scheme; they require key, secret and passphrase.
func (k *KuCoin) do(ctx context.Context, method, path string, query url.Values, body interface{}, private bool, out interface{}) *models.TradeError {
	defer k.RotateProxy()

	if terr := k.wait(ctx); terr != nil {
		return terr
	}

	endpoint := path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return models.ConversionError("kucoin request cannot be encoded: " + err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, k.restURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.UnknownError("kucoin request cannot be built: "+err.Error(), "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if private {
		auth, terr := k.GetAuth()
		if terr != nil {
			return terr
		}
		if auth.Passphrase == "" {
			return models.TradekitError(models.CodeAuthUnset, "kucoin requires an API passphrase")
		}
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		req.Header.Set("KC-API-KEY", auth.Key)
		req.Header.Set("KC-API-SIGN", sign(auth.Secret, timestamp+method+endpoint+string(payload)))
		req.Header.Set("KC-API-TIMESTAMP", timestamp)
		req.Header.Set("KC-API-PASSPHRASE", sign(auth.Secret, auth.Passphrase))
		req.Header.Set("KC-API-KEY-VERSION", "2")
	}

	resp, err := k.transports.Client(k.CurrentEndpoint(), restTimeout).Do(req)
	logger.IncrementRestCall(Name)
	if err != nil {
		return normalize(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NetworkError("kucoin response read failed: "+err.Error(), err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.ConversionError("kucoin response cannot be decoded: " + err.Error())
	}
	if env.Code != codeOK {
		return normalizeCode(env.Code, env.Msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return models.ConversionError("kucoin data cannot be decoded: " + err.Error())
	}
	return nil
}

func (k *KuCoin) wait(ctx context.Context) *models.TradeError {
	if err := k.limiter.Wait(ctx); err != nil {
		return models.NetworkError("rate limiter wait aborted: "+err.Error(), err)
	}
	return nil
}

func (k *KuCoin) execute(ctx context.Context, symbol string, amount float64, side models.OrderSide, reduceOnly bool, timeout time.Duration) (models.Order, *models.TradeError) {
	controller := exec.NewController(Name, &orderAPI{k: k}, k.recorder)
	return controller.Execute(ctx, exec.Request{
		Symbol:     symbol,
		Amount:     amount,
		Side:       side,
		ReduceOnly: reduceOnly,
	}, timeout)
}

// orderAPI adapts the facade to the execution controller's capability
// surface. Rotation and signing live in do. KuCoin reports per-order
// filled size, so polling goes through Remaining instead of the open
// order list.
type orderAPI struct {
	k *KuCoin
}

func (a *orderAPI) Submit(ctx context.Context, req exec.Request) (models.Order, *models.TradeError) {
	side := "buy"
	if req.Side == models.SideSell {
		side = "sell"
	}
	body := map[string]interface{}{
		"clientOid": uuid.NewString(),
		"symbol":    symbols.ToWire(Name, req.Symbol),
		"side":      side,
		"type":      "market",
		"size":      strconv.FormatFloat(req.Amount, 'f', -1, 64),
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}

	var data struct {
		OrderID   string `json:"orderId"`
		ClientOid string `json:"clientOid"`
	}
	if terr := a.k.do(ctx, "POST", "/api/v1/orders", nil, body, true, &data); terr != nil {
		return models.Order{}, terr
	}
	if data.OrderID == "" {
		return models.Order{}, models.ConversionError("kucoin order response carries no order id")
	}
	return models.Order{
		OrderID:       data.OrderID,
		ClientOrderID: data.ClientOid,
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
		"status": {"active"},
		"symbol": {symbols.ToWire(Name, symbol)},
	}
	var data struct {
		Items []orderEntry `json:"items"`
	}
	if terr := a.k.do(ctx, "GET", "/api/v1/orders", query, nil, true, &data); terr != nil {
		return nil, terr
	}
	orders := make([]models.Order, 0, len(data.Items))
	for _, entry := range data.Items {
		order, terr := adaptOrder(entry, symbol)
		if terr != nil {
			return nil, terr
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (a *orderAPI) Fetch(ctx context.Context, orderID, symbol string) (models.Order, *models.TradeError) {
	var entry orderEntry
	if terr := a.k.do(ctx, "GET", "/api/v1/orders/"+orderID, nil, nil, true, &entry); terr != nil {
		return models.Order{}, terr
	}
	return adaptOrder(entry, symbol)
}

// Remaining reports the unfilled size of one order.
func (a *orderAPI) Remaining(ctx context.Context, orderID, symbol string) (float64, *models.TradeError) {
	var entry orderEntry
	if terr := a.k.do(ctx, "GET", "/api/v1/orders/"+orderID, nil, nil, true, &entry); terr != nil {
		return 0, terr
	}
	return remainingSize(entry), nil
}

func (a *orderAPI) Cancel(ctx context.Context, orderID, symbol string) *models.TradeError {
	return a.k.do(ctx, "DELETE", "/api/v1/orders/"+orderID, nil, nil, true, nil)
}
