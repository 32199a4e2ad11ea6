package binance

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/cenkalti/backoff/v4"

	"tradekit/internal/symbols"
	"tradekit/logger"
	"tradekit/models"
	"tradekit/stream"
)

// streamClient fans one goroutine per subscribed symbol over the Binance
// market ticker stream. Binance pushes full statistics on every update, so
// events are adapted and emitted directly with no retained state.
type streamClient struct {
	mu       sync.Mutex
	closed   bool
	stops    []chan struct{}
	wg       sync.WaitGroup
	handlers stream.Handlers
	table    *symbols.Table
	log      *logger.Entry
}

// SubscribeTicker streams unified tickers for one symbol.
func (b *Binance) SubscribeTicker(symbol string, handlers stream.Handlers) (stream.Client, *models.TradeError) {
	return b.SubscribeTickers([]string{symbol}, handlers)
}

// SubscribeTickers streams unified tickers for several symbols, one venue
// connection per symbol.
func (b *Binance) SubscribeTickers(syms []string, handlers stream.Handlers) (stream.Client, *models.TradeError) {
	client := &streamClient{
		handlers: handlers,
		table:    symbols.NewTable(),
		log:      b.log.WithFields(logger.Fields{"worker": "ticker_stream"}),
	}
	for _, symbol := range syms {
		client.table.Put(symbols.ToWire(Name, symbol), symbol)
	}

	for _, symbol := range syms {
		stop := make(chan struct{})
		client.stops = append(client.stops, stop)
		client.wg.Add(1)
		go client.streamSymbol(symbols.ToWire(Name, symbol), stop)
	}

	go func() {
		client.wg.Wait()
		handlers.Closed()
	}()

	handlers.Subscribed()
	return client, nil
}

func (c *streamClient) streamSymbol(wire string, stop chan struct{}) {
	defer c.wg.Done()

	log := c.log.WithFields(logger.Fields{"symbol": wire})
	policy := stream.Reconnect()

	handler := func(event *futures.WsMarketTickerEvent) {
		logger.IncrementStreamMessage(Name)
		ticker, terr := adaptStreamTicker(event, c.table.Lookup(event.Symbol))
		if terr != nil {
			log.WithError(terr).Warn("dropping unadaptable ticker event")
			return
		}
		c.handlers.Update(ticker)
	}
	errHandler := func(err error) {
		if err == nil {
			return
		}
		log.WithError(err).Warn("websocket error")
		c.handlers.Error(models.WebSocketError(err.Error(), models.CodeWSHandled, wire))
	}

	for {
		doneC, stopC, err := futures.WsMarketTickerServe(wire, handler, errHandler)
		if err != nil {
			log.WithError(err).Error("failed to subscribe to ticker stream")
			c.handlers.Error(models.WebSocketError(err.Error(), models.CodeWSHandled, wire))
		} else {
			policy.Reset()
			select {
			case <-stop:
				close(stopC)
				<-doneC
				return
			case <-doneC:
				// connection dropped, fall through to reconnect
			}
		}

		if c.isClosed() {
			return
		}
		logger.IncrementReconnect(Name)
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		select {
		case <-stop:
			return
		case <-time.After(wait):
		}
	}
}

func (c *streamClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears down every symbol stream. Safe to call more than once.
func (c *streamClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stops := c.stops
	c.mu.Unlock()

	for _, stop := range stops {
		close(stop)
	}
	c.wg.Wait()
}

func adaptStreamTicker(event *futures.WsMarketTickerEvent, symbol string) (models.Ticker, *models.TradeError) {
	last, terr := requiredFloat("closePrice", event.ClosePrice)
	if terr != nil {
		return models.Ticker{}, terr
	}

	info, _ := json.Marshal(event)
	return models.Ticker{
		Symbol:      symbol,
		Timestamp:   event.Time,
		Datetime:    time.UnixMilli(event.Time).UTC(),
		Last:        last,
		Close:       last,
		AbsChange:   optionalFloat(event.PriceChange),
		PercChange:  optionalFloat(event.PriceChangePercent),
		High:        optionalFloat(event.HighPrice),
		Low:         optionalFloat(event.LowPrice),
		Volume:      optionalFloat(event.BaseVolume),
		BaseVolume:  optionalFloat(event.BaseVolume),
		QuoteVolume: optionalFloat(event.QuoteVolume),
		Open:        optionalFloat(event.OpenPrice),
		OpenTime:    time.UnixMilli(event.OpenTime).UTC(),
		Info:        info,
	}, nil
}
