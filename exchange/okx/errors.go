package okx

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"tradekit/models"
)

// Venue-documented sentinel codes. OKX codes are strings on the wire.
const (
	codeRateLimit     = "50011"
	codeBadInstrument = "51001"
	codeBadOrder      = "51000"
)

// orderAck is the per-item acknowledgement trade endpoints return. The
// envelope code is a generic "1" on failure; the real cause travels in
// sCode.
type orderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

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

// normalizeEnvelope maps a non-zero OKX response envelope to the closed
// taxonomy. Trade endpoints bury the effective code inside the first data
// item, so that is preferred over the generic envelope code.
func normalizeEnvelope(env envelope) *models.TradeError {
	code, msg := env.Code, env.Msg

	var acks []orderAck
	if err := json.Unmarshal(env.Data, &acks); err == nil && len(acks) > 0 && acks[0].SCode != "" && acks[0].SCode != "0" {
		code, msg = acks[0].SCode, acks[0].SMsg
	}

	switch code {
	case codeRateLimit:
		return models.RateLimit()
	case codeBadInstrument:
		return models.TradekitError(models.CodeBadSymbol, msg)
	case codeBadOrder:
		return models.TradekitError(models.CodeInvalidOrder, msg)
	}
	return models.ExchangeError(Name, code, msg)
}

type wsErrorEnvelope struct {
	Event  string `json:"event"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	ConnID string `json:"connId"`
}

// parseStreamError decodes an OKX websocket error event. Undecodable
// input yields the fixed UNHANDLED_ERROR placeholder.
func parseStreamError(raw []byte) *models.TradeError {
	var envelope wsErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Msg != "" {
		connID := envelope.ConnID
		if connID == "" {
			connID = "N/A"
		}
		return models.WebSocketError(envelope.Msg, models.CodeWSHandled, connID)
	}
	return models.WebSocketError("it was not possible to parse the error message", models.CodeWSUnhandled, "N/A")
}
