package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"

	"github.com/adshao/go-binance/v2/common"

	"tradekit/models"
)

// Venue-documented sentinel codes. Kept local on purpose: these mappings
// come from Binance documentation, not from a shared convention.
const (
	codeTooManyRequests = -1003
	codeBadSymbol       = -1121
	codeBadQuantity     = -1013
	codeOrderRejected   = -2010
	codeReduceOnly      = -2022
)

// normalize maps any error from the Binance client to the closed taxonomy.
// Total and deterministic; nil maps to nil.
func normalize(err error) *models.TradeError {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeTooManyRequests:
			return models.RateLimit()
		case codeBadSymbol:
			return models.TradekitError(models.CodeBadSymbol, apiErr.Message)
		case codeBadQuantity, codeOrderRejected, codeReduceOnly:
			return models.TradekitError(models.CodeInvalidOrder, apiErr.Message)
		}
		return models.ExchangeError(Name, strconv.FormatInt(apiErr.Code, 10), apiErr.Message)
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

type wsErrorEnvelope struct {
	Error struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
	ID string `json:"id"`
}

// parseStreamError decodes a Binance websocket error frame. Undecodable
// input yields the fixed UNHANDLED_ERROR placeholder.
func parseStreamError(raw []byte, connID string) *models.TradeError {
	var envelope wsErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Msg != "" {
		return models.WebSocketError(envelope.Error.Msg, models.CodeWSHandled, connID)
	}
	return models.WebSocketError("it was not possible to parse the error message", models.CodeWSUnhandled, "N/A")
}
