package okx

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/stream"
)

const pingInterval = 20 * time.Second

// OKX pushes complete ticker objects on every update, so each message is
// emitted directly without local state.
type streamClient struct {
	mu       sync.Mutex
	closed   bool
	stop     chan struct{}
	done     chan struct{}
	handlers stream.Handlers
	table    *symbols.Table
	wsURL    string
	wires    []string
	log      *logger.Entry
}

type streamEnvelope struct {
	Event string `json:"event"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []tickerEntry `json:"data"`
}

// SubscribeTicker streams unified tickers for one symbol.
func (o *OKX) SubscribeTicker(symbol string, handlers stream.Handlers) (stream.Client, *models.TradeError) {
	return o.SubscribeTickers([]string{symbol}, handlers)
}

// SubscribeTickers streams unified tickers for several symbols over one
// public websocket connection. The connection reconnects with exponential
// backoff until Close is called.
func (o *OKX) SubscribeTickers(syms []string, handlers stream.Handlers) (stream.Client, *models.TradeError) {
	client := &streamClient{
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		handlers: handlers,
		table:    symbols.NewTable(),
		wsURL:    o.wsURL,
		log:      o.log.WithFields(logger.Fields{"worker": "ticker_stream"}),
	}
	for _, symbol := range syms {
		wire := symbols.ToWire(Name, symbol)
		client.table.Put(wire, symbol)
		client.wires = append(client.wires, wire)
	}

	conn, terr := client.connect()
	if terr != nil {
		return nil, terr
	}
	handlers.Subscribed()

	go client.run(conn)
	return client, nil
}

// connect dials the public endpoint and sends the subscription request.
func (c *streamClient) connect() (*websocket.Conn, *models.TradeError) {
	conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return nil, models.WebSocketError("failed to connect to okx websocket: "+err.Error(), models.CodeWSHandled, "N/A")
	}

	args := make([]map[string]string, 0, len(c.wires))
	for _, wire := range c.wires {
		args = append(args, map[string]string{"channel": "tickers", "instId": wire})
	}
	if err := conn.WriteJSON(map[string]interface{}{"op": "subscribe", "args": args}); err != nil {
		conn.Close()
		return nil, models.WebSocketError("failed to subscribe to okx tickers: "+err.Error(), models.CodeWSHandled, "N/A")
	}
	return conn, nil
}

// run owns the connection: it pings on a fixed interval, dispatches every
// message and reconnects on read failure.
func (c *streamClient) run(conn *websocket.Conn) {
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
			conn, terr = c.connect()
			if terr != nil {
				c.log.WithError(terr).Warn("okx reconnect failed")
				c.handlers.Error(terr)
				continue
			}
			logger.IncrementReconnect(Name)
			policy.Reset()
		}

		readErr := make(chan error, 1)
		go c.readLoop(conn, readErr)

		ticker := time.NewTicker(pingInterval)
	CONNECTED:
		for {
			select {
			case <-c.stop:
				ticker.Stop()
				conn.Close()
				<-readErr
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					c.log.WithError(err).Warn("okx ping failed, reconnecting")
					conn.Close()
					<-readErr
					break CONNECTED
				}
			case err := <-readErr:
				c.log.WithError(err).Warn("okx read failed, reconnecting")
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

	if string(raw) == "pong" {
		return
	}

	var envelope streamEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}
	if envelope.Event == "error" {
		c.log.WithFields(logger.Fields{"message": string(raw)}).Warn("okx stream error event")
		c.handlers.Error(parseStreamError(raw))
		return
	}
	if envelope.Event != "" || envelope.Arg.Channel != "tickers" {
		return
	}

	for _, entry := range envelope.Data {
		ticker, terr := adaptTicker(entry, c.table.Lookup(entry.InstID))
		if terr != nil {
			c.log.WithError(terr).Warn("dropping unadaptable ticker update")
			continue
		}
		c.handlers.Update(ticker)
	}
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
