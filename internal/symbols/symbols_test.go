package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToWire(t *testing.T) {
	tests := []struct {
		exchange string
		unified  string
		want     string
	}{
		{"binance", "BTC/USDT:USDT", "BTCUSDT"},
		{"bybit", "ETH/USDT:USDT", "ETHUSDT"},
		{"okx", "BTC/USDT:USDT", "BTC-USDT-SWAP"},
		{"kucoin", "BTC/USDT:USDT", "XBTUSDTM"},
		{"kucoin", "ETH/USDT:USDT", "ETHUSDTM"},
		{"binance", "sol/usdt:usdt", "SOLUSDT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToWire(tt.exchange, tt.unified), "%s %s", tt.exchange, tt.unified)
	}
}

func TestBase(t *testing.T) {
	assert.Equal(t, "BTC", Base("BTC/USDT:USDT"))
	assert.Equal(t, "BTCUSDT", Base("BTCUSDT"))
}

func TestTableRoundTrip(t *testing.T) {
	table := NewTable()
	unified := "BTC/USDT:USDT"
	for _, exchange := range []string{"binance", "bybit", "okx", "kucoin"} {
		table.Put(ToWire(exchange, unified), unified)
	}

	assert.Equal(t, unified, table.Lookup("BTCUSDT"))
	assert.Equal(t, unified, table.Lookup("BTC-USDT-SWAP"))
	assert.Equal(t, unified, table.Lookup("XBTUSDTM"))
	assert.Equal(t, "DOGEUSDT", table.Lookup("DOGEUSDT"), "unknown wire symbols pass through")
}
