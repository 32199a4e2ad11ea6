package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tradekit/proxy"
)

// ProxyPool assigns a set of egress proxies to one venue. Venues without a
// pool fall back to the shared top-level proxies list, or to direct egress.
type ProxyPool struct {
	Exchange  string           `yaml:"exchange"`
	Endpoints []proxy.Endpoint `yaml:"endpoints"`
}

// ProxyPools represents the full per-venue proxy assignment.
type ProxyPools struct {
	Pools []ProxyPool `yaml:"pools"`
}

// ForExchange returns the endpoints assigned to the venue, or nil.
func (p *ProxyPools) ForExchange(exchange string) []proxy.Endpoint {
	for _, pool := range p.Pools {
		if pool.Exchange == exchange {
			return pool.Endpoints
		}
	}
	return nil
}

// LoadProxyPools loads per-venue proxy assignments from the given path.
func LoadProxyPools(path string) (*ProxyPools, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy pools file: %w", err)
	}
	var cfg ProxyPools
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse proxy pools file: %w", err)
	}
	return &cfg, nil
}
