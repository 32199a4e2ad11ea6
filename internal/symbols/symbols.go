package symbols

import (
	"strings"
	"sync"
)

// Unified symbols use the BASE/QUOTE:SETTLE spelling, e.g. BTC/USDT:USDT.
// Each venue speaks its own wire form; ToWire converts in the outbound
// direction and a Table remembers the reverse mapping so streamed tickers
// carry the symbol the caller originally requested.

// Base extracts the base currency from a unified symbol.
func Base(unified string) string {
	if i := strings.Index(unified, "/"); i > 0 {
		return unified[:i]
	}
	return unified
}

// compact strips the separator and settle suffix: BTC/USDT:USDT -> BTCUSDT.
func compact(unified string) string {
	s := strings.ReplaceAll(unified, "/", "")
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return strings.ToUpper(s)
}

// ToWire converts a unified symbol to the given venue's wire format.
// Currently supported venues: binance, bybit, okx, kucoin.
func ToWire(exchange, unified string) string {
	switch strings.ToLower(exchange) {
	case "binance", "bybit":
		return compact(unified)
	case "okx":
		s := strings.ToUpper(unified)
		if i := strings.Index(s, ":"); i >= 0 {
			s = s[:i]
		}
		return strings.ReplaceAll(s, "/", "-") + "-SWAP"
	case "kucoin":
		s := compact(unified)
		// KuCoin futures spell BTC as XBT and suffix contracts with M.
		if strings.HasPrefix(s, "BTC") {
			s = "XBT" + s[3:]
		}
		return s + "M"
	default:
		return compact(unified)
	}
}

// Table is a concurrency-safe reverse lookup from wire symbols to the
// unified spelling the caller subscribed with.
type Table struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewTable() *Table {
	return &Table{m: make(map[string]string)}
}

// Put records that the venue's wire symbol corresponds to unified.
func (t *Table) Put(wire, unified string) {
	t.mu.Lock()
	t.m[wire] = unified
	t.mu.Unlock()
}

// Lookup resolves a wire symbol back to the unified form. Unknown wire
// symbols are returned unchanged so emissions never drop data.
func (t *Table) Lookup(wire string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if unified, ok := t.m[wire]; ok {
		return unified
	}
	return wire
}
