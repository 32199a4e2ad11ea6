// Package stream holds the venue-independent pieces of the streaming
// ticker normalizers: lifecycle handlers, the snapshot/delta coalescer and
// the reconnect policy shared by the websocket clients.
package stream

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"tradekit/models"
)

// Client is the handle returned by the subscribe operations. Close tears
// down the underlying socket; no further events are delivered afterwards.
type Client interface {
	Close()
}

// Handlers carries the caller's callbacks. Any of them may be nil.
type Handlers struct {
	// OnUpdate receives one unified ticker per update that changes the
	// coalesced state of a subscribed symbol.
	OnUpdate func(models.Ticker)

	// OnSubscription fires once the socket is open and subscribed.
	OnSubscription func()

	// OnClose fires when the socket closes.
	OnClose func()

	// OnError receives socket-level failures as WEB_SOCKET_ERROR values.
	OnError func(*models.TradeError)
}

func (h Handlers) Update(t models.Ticker) {
	if h.OnUpdate != nil {
		h.OnUpdate(t)
	}
}

func (h Handlers) Subscribed() {
	if h.OnSubscription != nil {
		h.OnSubscription()
	}
}

func (h Handlers) Closed() {
	if h.OnClose != nil {
		h.OnClose()
	}
}

func (h Handlers) Error(err *models.TradeError) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Reconnect returns the backoff policy the websocket clients use between
// connection attempts: exponential with jitter, capped, never giving up on
// its own (the stream stops when the caller closes it).
func Reconnect() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second
	policy.RandomizationFactor = 0.25
	policy.MaxElapsedTime = 0
	return policy
}
