package kucoin

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"tradekit/models"
)

// Venue-documented sentinel codes. KuCoin codes are strings on the wire.
const (
	codeRateLimit      = "429000"
	codeNotFound       = "404000"
	codeOrderNotAllow  = "300018"
	codeParameterError = "100001"
)

// normalize maps transport-level errors to the closed taxonomy.
func normalize(err error) *models.TradeError {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.NetworkError(netErr.Error(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NetworkError(err.Error(), err)
	}
	return models.UnknownError(err.Error(), "", err)
}

// normalizeCode maps a non-success KuCoin envelope code to the closed
// taxonomy. The venue reuses 404000 for unknown contracts.
func normalizeCode(code, msg string) *models.TradeError {
	switch code {
	case codeRateLimit:
		return models.RateLimit()
	case codeNotFound:
		return models.TradekitError(models.CodeBadSymbol, msg)
	case codeOrderNotAllow, codeParameterError:
		return models.TradekitError(models.CodeInvalidOrder, msg)
	}
	return models.ExchangeError(Name, code, msg)
}

type wsErrorEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Code int    `json:"code"`
	Data string `json:"data"`
}

// parseStreamError decodes a KuCoin websocket error message. Undecodable
// input yields the fixed UNHANDLED_ERROR placeholder.
func parseStreamError(raw []byte) *models.TradeError {
	var envelope wsErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data != "" {
		connID := envelope.ID
		if connID == "" {
			connID = "N/A"
		}
		return models.WebSocketError(envelope.Data, models.CodeWSHandled, connID)
	}
	return models.WebSocketError("it was not possible to parse the error message", models.CodeWSUnhandled, "N/A")
}
