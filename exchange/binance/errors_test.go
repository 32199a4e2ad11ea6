package binance

import (
	"errors"
	"net"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekit/models"
)

func TestNormalizeSentinels(t *testing.T) {
	cases := []struct {
		name   string
		code   int64
		reason models.ErrorReason
		kit    string
	}{
		{"rate limit", -1003, models.ReasonRateLimit, ""},
		{"bad symbol", -1121, models.ReasonTradekitError, models.CodeBadSymbol},
		{"bad quantity", -1013, models.ReasonTradekitError, models.CodeInvalidOrder},
		{"order rejected", -2010, models.ReasonTradekitError, models.CodeInvalidOrder},
		{"reduce only rejected", -2022, models.ReasonTradekitError, models.CodeInvalidOrder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			terr := normalize(&common.APIError{Code: tc.code, Message: "boom"})
			require.NotNil(t, terr)
			assert.Equal(t, tc.reason, terr.Reason)
			if tc.kit != "" {
				assert.Equal(t, tc.kit, terr.Code)
			}
		})
	}
}

func TestNormalizeExchangeErrorVerbatim(t *testing.T) {
	terr := normalize(&common.APIError{Code: -4164, Message: "order notional too small"})
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonExchangeError, terr.Reason)
	assert.Equal(t, Name, terr.Exchange)
	assert.Equal(t, "-4164", terr.Code)
	assert.Equal(t, "order notional too small", terr.Msg)
}

func TestNormalizeTransportAndFallback(t *testing.T) {
	assert.Nil(t, normalize(nil))

	var netErr net.Error = &net.DNSError{Err: "no such host", IsTimeout: false}
	terr := normalize(netErr)
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonNetworkError, terr.Reason)

	terr = normalize(errors.New("something odd"))
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonUnknownError, terr.Reason)
	assert.Equal(t, "something odd", terr.Msg)
}

func TestParseStreamError(t *testing.T) {
	terr := parseStreamError([]byte(`{"error":{"code":2,"msg":"invalid stream"},"id":"7"}`), "conn-1")
	require.NotNil(t, terr)
	assert.Equal(t, models.ReasonWebSocketError, terr.Reason)
	assert.Equal(t, models.CodeWSHandled, terr.Code)
	assert.Equal(t, "invalid stream", terr.Msg)
	assert.Equal(t, "conn-1", terr.ConnID)

	terr = parseStreamError([]byte("not json"), "conn-1")
	require.NotNil(t, terr)
	assert.Equal(t, models.CodeWSUnhandled, terr.Code)
	assert.Equal(t, "N/A", terr.ConnID)
	assert.Equal(t, "it was not possible to parse the error message", terr.Msg)
}
