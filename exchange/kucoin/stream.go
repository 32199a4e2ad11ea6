package kucoin

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/stream"
)

const defaultPingInterval = 18 * time.Second

// bulletServer describes one websocket ingress returned by the bullet
// endpoint, together with the ping cadence the server expects.
type bulletServer struct {
	Endpoint     string `json:"endpoint"`
	PingInterval int64  `json:"pingInterval"`
}

type bulletResult struct {
	Token           string         `json:"token"`
	InstanceServers []bulletServer `json:"instanceServers"`
}

// KuCoin pushes a complete 24h snapshot object on every update, so each
// message is emitted directly without local state. The connection itself
// is short-lived by design: the venue hands out a fresh ingress token per
// connection via the bullet endpoint.
type streamClient struct {
	mu       sync.Mutex
	closed   bool
	stop     chan struct{}
	done     chan struct{}
	k        *KuCoin
	handlers stream.Handlers
	table    *symbols.Table
	wires    []string
	log      *logger.Entry
}

type streamTicker struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"lastPrice"`
	PriceChgPct float64 `json:"priceChgPct"`
	HighPrice   float64 `json:"highPrice"`
	LowPrice    float64 `json:"lowPrice"`
	Volume      float64 `json:"volume"`
	Turnover    float64 `json:"turnover"`
	Ts          int64   `json:"ts"`
}

type streamEnvelope struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// SubscribeTicker streams unified tickers for one symbol.
func (k *KuCoin) SubscribeTicker(symbol string, handlers stream.Handlers) (stream.Client, *models.TradeError) {
	return k.SubscribeTickers([]string{symbol}, handlers)
}

// SubscribeTickers streams unified tickers for several symbols over one
// public websocket connection. The connection reconnects with exponential
// backoff, fetching a fresh bullet token each time, until Close is called.
func (k *KuCoin) SubscribeTickers(syms []string, handlers stream.Handlers) (stream.Client, *models.TradeError) {
	client := &streamClient{
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		k:        k,
		handlers: handlers,
		table:    symbols.NewTable(),
		log:      k.log.WithFields(logger.Fields{"worker": "ticker_stream"}),
	}
	for _, symbol := range syms {
		wire := symbols.ToWire(Name, symbol)
		client.table.Put(wire, symbol)
		client.wires = append(client.wires, wire)
	}

	conn, ping, terr := client.connect()
	if terr != nil {
		return nil, terr
	}
	handlers.Subscribed()

	go client.run(conn, ping)
	return client, nil
}

// connect requests a bullet token, dials the returned ingress and
// subscribes to the 24h snapshot topic for every symbol.
func (c *streamClient) connect() (*websocket.Conn, time.Duration, *models.TradeError) {
	ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
	defer cancel()

	var bullet bulletResult
	if terr := c.k.do(ctx, "POST", "/api/v1/bullet-public", nil, nil, false, &bullet); terr != nil {
		return nil, 0, terr
	}
	if bullet.Token == "" || len(bullet.InstanceServers) == 0 {
		return nil, 0, models.WebSocketError("kucoin bullet response carries no ingress", models.CodeWSHandled, "N/A")
	}
	server := bullet.InstanceServers[0]
	ping := defaultPingInterval
	if server.PingInterval > 0 {
		ping = time.Duration(server.PingInterval) * time.Millisecond
	}

	wsURL := server.Endpoint + "?token=" + bullet.Token + "&connectId=" + uuid.NewString()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, 0, models.WebSocketError("failed to connect to kucoin websocket: "+err.Error(), models.CodeWSHandled, "N/A")
	}

	for _, wire := range c.wires {
		sub := map[string]interface{}{
			"id":       uuid.NewString(),
			"type":     "subscribe",
			"topic":    "/contractMarket/snapshot:" + wire,
			"response": true,
		}
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			return nil, 0, models.WebSocketError("failed to subscribe to kucoin snapshots: "+err.Error(), models.CodeWSHandled, "N/A")
		}
	}
	return conn, ping, nil
}

// run owns the connection: it pings at the server's cadence, dispatches
// every message and reconnects with a fresh token on read failure.
func (c *streamClient) run(conn *websocket.Conn, ping time.Duration) {
	defer close(c.done)
	policy := stream.Reconnect()

	for {
		if conn == nil {
			select {
			case <-c.stop:
				return
			case <-time.After(policy.NextBackOff()):
			}
			var terr *models.TradeError
			conn, ping, terr = c.connect()
			if terr != nil {
				c.log.WithError(terr).Warn("kucoin reconnect failed")
				c.handlers.Error(terr)
				continue
			}
			logger.IncrementReconnect(Name)
			policy.Reset()
		}

		readErr := make(chan error, 1)
		go c.readLoop(conn, readErr)

		ticker := time.NewTicker(ping)
	CONNECTED:
		for {
			select {
			case <-c.stop:
				ticker.Stop()
				conn.Close()
				<-readErr
				return
			case <-ticker.C:
				msg := map[string]string{"id": uuid.NewString(), "type": "ping"}
				if err := conn.WriteJSON(msg); err != nil {
					c.log.WithError(err).Warn("kucoin ping failed, reconnecting")
					conn.Close()
					<-readErr
					break CONNECTED
				}
			case err := <-readErr:
				c.log.WithError(err).Warn("kucoin read failed, reconnecting")
				conn.Close()
				break CONNECTED
			}
		}
		ticker.Stop()
		conn = nil
	}
}

func (c *streamClient) readLoop(conn *websocket.Conn, readErr chan<- error) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		c.handleMessage(raw)
	}
}

func (c *streamClient) handleMessage(raw []byte) {
	logger.IncrementStreamMessage(Name)

	var envelope streamEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.Type {
	case "error":
		c.log.WithFields(logger.Fields{"message": string(raw)}).Warn("kucoin stream error event")
		c.handlers.Error(parseStreamError(raw))
		return
	case "welcome", "ack", "pong":
		return
	case "message":
	default:
		return
	}

	const topicPrefix = "/contractMarket/snapshot:"
	if !strings.HasPrefix(envelope.Topic, topicPrefix) {
		return
	}
	wire := strings.TrimPrefix(envelope.Topic, topicPrefix)

	var data streamTicker
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		c.log.WithError(err).Warn("failed to decode snapshot update")
		return
	}
	ticker, terr := adaptStreamTicker(data, c.table.Lookup(wire))
	if terr != nil {
		c.log.WithError(terr).Warn("dropping unadaptable ticker update")
		return
	}
	c.handlers.Update(ticker)
}

// Close tears the connection down. Safe to call more than once.
func (c *streamClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	c.handlers.Closed()
}
