package bybit

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	bybit_connector "github.com/bybit-exchange/bybit.go.api"

	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/stream"
)

// Bybit pushes one full ticker snapshot per symbol and partial deltas
// afterwards. Deltas are merged over the stored snapshot before emission;
// a delta arriving before its snapshot is dropped.
type streamClient struct {
	mu       sync.Mutex
	closed   bool
	ws       *bybit_connector.WebSocket
	handlers stream.Handlers
	book     *stream.Book[tickerEntry]
	table    *symbols.Table
	log      *logger.Entry
}

type streamEnvelope struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Ts    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

// SubscribeTicker streams unified tickers for one symbol.
func (b *Bybit) SubscribeTicker(symbol string, handlers stream.Handlers) (stream.Client, *models.TradeError) {
	return b.SubscribeTickers([]string{symbol}, handlers)
}

// SubscribeTickers streams unified tickers for several symbols over one
// public websocket connection.
func (b *Bybit) SubscribeTickers(syms []string, handlers stream.Handlers) (stream.Client, *models.TradeError) {
	client := &streamClient{
		handlers: handlers,
		book:     stream.NewBook[tickerEntry](),
		table:    symbols.NewTable(),
		log:      b.log.WithFields(logger.Fields{"worker": "ticker_stream"}),
	}

	args := make([]string, 0, len(syms))
	for _, symbol := range syms {
		wire := symbols.ToWire(Name, symbol)
		client.table.Put(wire, symbol)
		args = append(args, "tickers."+wire)
	}

	ws := bybit_connector.NewBybitPublicWebSocket(b.wsURL, client.handleMessage)
	if ws == nil {
		return nil, models.WebSocketError("failed to create bybit websocket client", models.CodeWSHandled, "N/A")
	}
	if ws.Connect() == nil {
		return nil, models.WebSocketError("failed to connect to bybit websocket", models.CodeWSHandled, "N/A")
	}
	if _, err := ws.SendSubscription(args); err != nil {
		ws.Disconnect()
		return nil, models.WebSocketError("failed to subscribe to bybit tickers: "+err.Error(), models.CodeWSHandled, "N/A")
	}

	client.ws = ws
	handlers.Subscribed()
	return client, nil
}

func (c *streamClient) handleMessage(raw string) error {
	logger.IncrementStreamMessage(Name)

	var ack struct {
		Op      string `json:"op"`
		Success *bool  `json:"success"`
		RetMsg  string `json:"ret_msg"`
	}
	if err := json.Unmarshal([]byte(raw), &ack); err == nil && ack.Op != "" {
		if ack.Success != nil && !*ack.Success {
			c.log.WithFields(logger.Fields{"op": ack.Op, "message": ack.RetMsg}).Warn("subscription acknowledgement failure")
			c.handlers.Error(parseStreamError([]byte(raw)))
		}
		return nil
	}

	var envelope streamEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil
	}
	if !strings.HasPrefix(envelope.Topic, "tickers.") {
		return nil
	}
	wire := strings.TrimPrefix(envelope.Topic, "tickers.")

	if envelope.Type == "snapshot" {
		if _, err := c.book.ApplySnapshot(wire, envelope.Data); err != nil {
			c.log.WithError(err).Warn("failed to decode ticker snapshot")
		}
		return nil
	}

	merged, ok, err := c.book.ApplyDelta(wire, envelope.Data)
	if err != nil {
		c.log.WithError(err).Warn("failed to merge ticker delta")
		return nil
	}
	if !ok {
		// No snapshot yet for this symbol; nothing to emit.
		return nil
	}

	ts := envelope.Ts
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	ticker, terr := adaptTicker(merged, c.table.Lookup(wire), ts)
	if terr != nil {
		c.log.WithError(terr).Warn("dropping unadaptable ticker update")
		return nil
	}
	c.handlers.Update(ticker)
	return nil
}

// Close disconnects the websocket. Safe to call more than once.
func (c *streamClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	if ws != nil {
		ws.Disconnect()
	}
	c.handlers.Closed()
}
