package proxy

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Conservative keep-alive reuse per egress host.
const (
	maxIdleConns    = 16
	maxConnsPerHost = 8
	idleConnTimeout = 90 * time.Second
)

// Transports caches one http.Transport per proxy endpoint so per-call
// clients share connection pools instead of re-dialing. The zero value is
// ready to use.
type Transports struct {
	mu     sync.Mutex
	byURL  map[string]*http.Transport
	direct *http.Transport
}

func newTransport(proxyURL *url.URL, header http.Header) *http.Transport {
	t := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
	}
	if proxyURL != nil {
		t.Proxy = http.ProxyURL(proxyURL)
		t.ProxyConnectHeader = header
	}
	return t
}

// Client returns an http.Client routed through the given endpoint, or a
// direct client when ep is nil. The returned client is safe to use for a
// single call and cheap to request repeatedly.
func (ts *Transports) Client(ep *Endpoint, timeout time.Duration) *http.Client {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ep == nil {
		if ts.direct == nil {
			ts.direct = newTransport(nil, nil)
		}
		return &http.Client{Transport: ts.direct, Timeout: timeout}
	}

	key := ep.URL()
	if auth, ok := ep.BasicAuth(); ok {
		key += "|" + auth
	}
	if ts.byURL == nil {
		ts.byURL = make(map[string]*http.Transport)
	}
	if t, ok := ts.byURL[key]; ok {
		return &http.Client{Transport: t, Timeout: timeout}
	}

	proxyURL, err := url.Parse(ep.URL())
	if err != nil {
		// An unparseable endpoint degrades to a direct connection rather
		// than failing the trading call.
		if ts.direct == nil {
			ts.direct = newTransport(nil, nil)
		}
		return &http.Client{Transport: ts.direct, Timeout: timeout}
	}

	var header http.Header
	if auth, ok := ep.BasicAuth(); ok {
		header = http.Header{"Proxy-Authorization": []string{auth}}
	}
	t := newTransport(proxyURL, header)
	ts.byURL[key] = t
	return &http.Client{Transport: t, Timeout: timeout}
}
