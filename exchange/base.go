package exchange

import (
	"sync"

	"tradekit/models"
	"tradekit/proxy"
)

// Base carries the state every venue facade shares: credentials, sandbox
// flag and the proxy rotator. Venue facades embed it and add the venue
// specific operations.
type Base struct {
	mu      sync.RWMutex
	auth    *Auth
	sandbox bool
	rotator *proxy.Rotator
}

// NewBase builds the shared facade state from the options.
func NewBase(opts Options) Base {
	b := Base{rotator: proxy.NewRotator(opts.Proxies...)}
	if opts.Auth != nil {
		auth := *opts.Auth
		b.auth = &auth
	}
	b.sandbox = opts.Sandbox
	return b
}

func (b *Base) SetAuth(auth Auth) {
	b.mu.Lock()
	b.auth = &auth
	b.mu.Unlock()
}

// GetAuth returns the configured credentials or AUTH_UNSET.
func (b *Base) GetAuth() (Auth, *models.TradeError) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.auth == nil {
		return Auth{}, models.TradekitError(models.CodeAuthUnset, "auth not set")
	}
	return *b.auth, nil
}

func (b *Base) SetSandbox(sandbox bool) {
	b.mu.Lock()
	b.sandbox = sandbox
	b.mu.Unlock()
}

// Sandbox reports whether the facade targets the venue's test environment.
func (b *Base) Sandbox() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sandbox
}

func (b *Base) AddProxy(endpoint proxy.Endpoint) {
	b.rotator.Add(endpoint)
}

func (b *Base) SetProxies(endpoints []proxy.Endpoint) {
	b.rotator.SetProxies(endpoints)
}

// GetProxies returns the configured pool or PROXY_UNSET when empty.
func (b *Base) GetProxies() ([]proxy.Endpoint, *models.TradeError) {
	endpoints := b.rotator.Proxies()
	if len(endpoints) == 0 {
		return nil, models.TradekitError(models.CodeProxyUnset, "proxies not set")
	}
	return endpoints, nil
}

// GetCurrentProxy returns the endpoint the next call would use, or
// PROXY_UNSET on an empty pool.
func (b *Base) GetCurrentProxy() (proxy.Endpoint, *models.TradeError) {
	endpoint, ok := b.rotator.Current()
	if !ok {
		return proxy.Endpoint{}, models.TradekitError(models.CodeProxyUnset, "proxies not set")
	}
	return endpoint, nil
}

func (b *Base) RotateProxy() {
	b.rotator.Rotate()
}

// CurrentEndpoint returns the current proxy as a nilable pointer for
// threading into per-call REST clients. nil means direct egress.
func (b *Base) CurrentEndpoint() *proxy.Endpoint {
	endpoint, ok := b.rotator.Current()
	if !ok {
		return nil
	}
	return &endpoint
}
