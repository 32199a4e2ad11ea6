package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"

	bybit_connector "github.com/bybit-exchange/bybit.go.api"

	"tradekit/models"
)

// Venue-documented sentinel codes.
const (
	codeRateLimit           = 10006
	codeIPRateLimit         = 10018
	codeLeverageNotModified = "110043"
)

// normalize maps transport-level errors from the Bybit client to the
// closed taxonomy. Venue-reported errors travel in the response envelope
// and are handled by decodeResponse. Nil maps to nil.
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

// decodeResponse folds the transport error, the venue retCode envelope and
// the result decoding into one tagged outcome. out may be nil when the
// caller only cares about success.
func decodeResponse(resp *bybit_connector.ServerResponse, err error, out interface{}) *models.TradeError {
	if err != nil {
		return normalize(err)
	}
	if resp == nil {
		return models.UnknownError("bybit returned an empty response", "", nil)
	}
	if resp.RetCode != 0 {
		switch resp.RetCode {
		case codeRateLimit, codeIPRateLimit:
			return models.RateLimit()
		}
		return models.ExchangeError(Name, strconv.Itoa(resp.RetCode), resp.RetMsg)
	}
	if out == nil {
		return nil
	}
	payload, merr := json.Marshal(resp.Result)
	if merr != nil {
		return models.ConversionError("bybit result cannot be re-encoded: " + merr.Error())
	}
	if uerr := json.Unmarshal(payload, out); uerr != nil {
		return models.ConversionError("bybit result cannot be decoded: " + uerr.Error())
	}
	return nil
}

type wsErrorEnvelope struct {
	Op      string `json:"op"`
	Success *bool  `json:"success"`
	RetMsg  string `json:"ret_msg"`
	ConnID  string `json:"conn_id"`
}

// parseStreamError decodes a Bybit websocket failure acknowledgement.
// Undecodable input yields the fixed UNHANDLED_ERROR placeholder.
func parseStreamError(raw []byte) *models.TradeError {
	var envelope wsErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.RetMsg != "" {
		connID := envelope.ConnID
		if connID == "" {
			connID = "N/A"
		}
		return models.WebSocketError(envelope.RetMsg, models.CodeWSHandled, connID)
	}
	return models.WebSocketError("it was not possible to parse the error message", models.CodeWSUnhandled, "N/A")
}
