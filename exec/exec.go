// Package exec drives a submitted market order to a terminal state: it
// polls the venue until the order leaves the open set, then fetches the
// fill, or cancels once the timeout budget is spent.
package exec

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"tradekit/logger"
	"tradekit/models"
)

const (
	// DefaultTimeout bounds the polling phase when the caller passes no
	// explicit budget.
	DefaultTimeout = 30 * time.Second

	// PollInterval is the fixed gap between open-order queries.
	PollInterval = time.Second
)

// Request describes one market order to place.
type Request struct {
	Symbol     string
	Amount     float64
	Side       models.OrderSide
	ReduceOnly bool
}

// OrderAPI is the venue capability surface the controller needs. Each
// venue's REST client implements it; quirks such as reduce-only flag
// naming stay inside the implementation.
type OrderAPI interface {
	Submit(ctx context.Context, req Request) (models.Order, *models.TradeError)
	ListOpen(ctx context.Context, symbol string) ([]models.Order, *models.TradeError)
	Fetch(ctx context.Context, orderID, symbol string) (models.Order, *models.TradeError)
	Cancel(ctx context.Context, orderID, symbol string) *models.TradeError
}

// RemainingQuantifier is implemented by venues that can report the
// unfilled quantity of a single order. When present, polling asks for the
// remaining quantity instead of re-listing all open orders.
type RemainingQuantifier interface {
	Remaining(ctx context.Context, orderID, symbol string) (float64, *models.TradeError)
}

// FillRecorder receives terminal orders, filled or canceled after the
// timeout budget, e.g. for journaling.
type FillRecorder interface {
	RecordFill(exchange string, order models.Order)
}

// Controller runs the submit/poll/cancel protocol for one venue.
type Controller struct {
	exchange string
	api      OrderAPI
	clock    clock.Clock
	recorder FillRecorder
	log      *logger.Entry
}

// NewController builds a controller over the given venue client. recorder
// may be nil.
func NewController(exchange string, api OrderAPI, recorder FillRecorder) *Controller {
	return &Controller{
		exchange: exchange,
		api:      api,
		clock:    clock.New(),
		recorder: recorder,
		log:      logger.GetLogger().WithComponent("exec").WithFields(logger.Fields{"exchange": exchange}),
	}
}

// WithClock swaps the wall clock, for tests.
func (c *Controller) WithClock(clk clock.Clock) *Controller {
	c.clock = clk
	return c
}

// Execute places a market order and blocks until it fills or the timeout
// budget elapses. A non-positive timeout means DefaultTimeout.
//
// Exactly one order is submitted and at most one cancel is issued. The
// budget is re-checked after every wait and before every poll; a tick that
// lands past the budget goes straight to the cancel, never to another
// venue query.
func (c *Controller) Execute(ctx context.Context, req Request, timeout time.Duration) (models.Order, *models.TradeError) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	order, terr := c.api.Submit(ctx, req)
	if terr != nil {
		c.log.WithError(terr).WithFields(logger.Fields{"symbol": req.Symbol, "side": req.Side}).Warn("order submit failed")
		return models.Order{}, terr
	}
	c.log.WithFields(logger.Fields{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"amount":   req.Amount,
		"order_id": order.OrderID,
	}).Debug("order submitted, polling for fill")

	start := c.clock.Now()
	for {
		select {
		case <-ctx.Done():
			c.abort(ctx, order)
			return models.Order{}, models.TradekitError(models.CodeTimeOut, "order "+order.OrderID+" canceled: context done")
		case <-c.clock.After(PollInterval):
		}
		if c.clock.Since(start) >= timeout {
			break
		}

		open, terr := c.stillOpen(ctx, order.OrderID, req.Symbol)
		if terr != nil {
			return models.Order{}, terr
		}
		if !open {
			filled, terr := c.api.Fetch(ctx, order.OrderID, req.Symbol)
			if terr != nil {
				return models.Order{}, terr
			}
			c.log.WithFields(logger.Fields{"order_id": order.OrderID, "symbol": req.Symbol}).Info("order filled")
			if c.recorder != nil {
				c.recorder.RecordFill(c.exchange, filled)
			}
			return filled, nil
		}
	}

	c.abort(ctx, order)
	return models.Order{}, models.TradekitError(models.CodeTimeOut,
		"order "+order.OrderID+" on "+req.Symbol+" not filled within budget, canceled")
}

// abort cancels the working order and records the canceled outcome.
func (c *Controller) abort(ctx context.Context, order models.Order) {
	c.cancel(ctx, order.OrderID, order.Symbol)
	if c.recorder != nil {
		order.Status = models.OrderStatusCanceled
		c.recorder.RecordFill(c.exchange, order)
	}
}

// stillOpen reports whether the order is still working. Venues that expose
// per-order remaining quantity are queried directly; otherwise the open
// order list is scanned for the id.
func (c *Controller) stillOpen(ctx context.Context, orderID, symbol string) (bool, *models.TradeError) {
	if rq, ok := c.api.(RemainingQuantifier); ok {
		remaining, terr := rq.Remaining(ctx, orderID, symbol)
		if terr != nil {
			return false, terr
		}
		return remaining > 0, nil
	}

	orders, terr := c.api.ListOpen(ctx, symbol)
	if terr != nil {
		return false, terr
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

// cancel is best effort: the outcome is logged, never surfaced.
func (c *Controller) cancel(ctx context.Context, orderID, symbol string) {
	if terr := c.api.Cancel(ctx, orderID, symbol); terr != nil {
		c.log.WithError(terr).WithFields(logger.Fields{"order_id": orderID, "symbol": symbol}).Warn("cancel after timeout failed")
		return
	}
	c.log.WithFields(logger.Fields{"order_id": orderID, "symbol": symbol}).Info("order canceled after timeout")
}
