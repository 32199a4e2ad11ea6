package proxy

import (
	"encoding/base64"
	"fmt"
	"sync"
)

// Auth carries optional basic-auth credentials for a proxy endpoint.
type Auth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Endpoint describes a single egress proxy.
type Endpoint struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"`
	Auth     *Auth  `yaml:"auth"`
}

// URL renders the endpoint as a proxy URL. The protocol defaults to http.
func (e Endpoint) URL() string {
	protocol := e.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, e.Host, e.Port)
}

// BasicAuth returns the Proxy-Authorization header value for the endpoint
// and whether credentials are configured.
func (e Endpoint) BasicAuth() (string, bool) {
	if e.Auth == nil {
		return "", false
	}
	raw := fmt.Sprintf("%s:%s", e.Auth.Username, e.Auth.Password)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)), true
}

// Rotator is a round-robin pool of egress proxies. Every facade call reads
// the current endpoint and rotates afterwards, success or failure alike, so
// a failing egress IP is not reused on the very next call. An empty pool is
// a valid steady state: calls then go direct.
//
// All methods are safe for concurrent use.
type Rotator struct {
	mu        sync.Mutex
	endpoints []Endpoint
	index     int
}

// NewRotator builds a rotator over the given endpoints, current index 0.
func NewRotator(endpoints ...Endpoint) *Rotator {
	r := &Rotator{}
	if len(endpoints) > 0 {
		r.endpoints = append(r.endpoints, endpoints...)
	}
	return r
}

// Current returns the endpoint requests should use right now. The second
// return is false when the pool is empty.
func (r *Rotator) Current() (Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endpoints) == 0 {
		return Endpoint{}, false
	}
	return r.endpoints[r.index], true
}

// Rotate advances the index by one, wrapping at the pool length. It is a
// no-op on an empty pool and can never fail.
func (r *Rotator) Rotate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endpoints) == 0 {
		return
	}
	r.index = (r.index + 1) % len(r.endpoints)
}

// SetProxies replaces the pool and resets the index to 0.
func (r *Rotator) SetProxies(endpoints []Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = append(r.endpoints[:0:0], endpoints...)
	r.index = 0
}

// Add appends an endpoint to the pool without disturbing the index.
func (r *Rotator) Add(endpoint Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = append(r.endpoints, endpoint)
}

// Proxies returns a copy of the pool in order.
func (r *Rotator) Proxies() []Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Endpoint(nil), r.endpoints...)
}

// Len returns the pool size.
func (r *Rotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}
