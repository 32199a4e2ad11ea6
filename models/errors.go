package models

import "fmt"

// ErrorReason tags a TradeError with one of the closed set of failure
// classes. Callers branch on the reason instead of venue specifics.
type ErrorReason string

const (
	ReasonRateLimit      ErrorReason = "RATE_LIMIT"
	ReasonNetworkError   ErrorReason = "NETWORK_ERROR"
	ReasonExchangeError  ErrorReason = "EXCHANGE_ERROR"
	ReasonTradekitError  ErrorReason = "TRADEKIT_ERROR"
	ReasonWebSocketError ErrorReason = "WEB_SOCKET_ERROR"
	ReasonUnknownError   ErrorReason = "UNKNOWN_ERROR"
)

// Codes carried by TRADEKIT_ERROR values. These are failures the facade
// itself detects or re-classifies from venue-specific codes.
const (
	CodeBadSymbol       = "BAD_SYMBOL"
	CodeInvalidOrder    = "INVALID_ORDER"
	CodeTimeOut         = "TIME_OUT"
	CodeConversionError = "CONVERSION_ERROR"
	CodeAuthUnset       = "AUTH_UNSET"
	CodeProxyUnset      = "PROXY_UNSET"
)

// Codes carried by WEB_SOCKET_ERROR values.
const (
	CodeWSHandled   = "HANDLED_ERROR"
	CodeWSUnhandled = "UNHANDLED_ERROR"
)

// TradeError is the single error shape every operation in this module
// returns. Exactly one variant is produced per failure; raw venue errors
// never cross the facade boundary.
type TradeError struct {
	Reason ErrorReason

	// Exchange is set for EXCHANGE_ERROR values.
	Exchange string

	// Code is venue-specific for EXCHANGE_ERROR (string-typed to preserve
	// leading zeros and signs), one of the Code* constants for
	// TRADEKIT_ERROR and WEB_SOCKET_ERROR, and best-effort otherwise.
	Code string

	Msg string

	// ConnID identifies the websocket connection for WEB_SOCKET_ERROR.
	ConnID string

	// Cause retains the original error for diagnostics. It is never
	// required to interpret the TradeError.
	Cause error
}

func (e *TradeError) Error() string {
	switch e.Reason {
	case ReasonRateLimit:
		return "rate limit exceeded"
	case ReasonExchangeError:
		return fmt.Sprintf("%s exchange error %s: %s", e.Exchange, e.Code, e.Msg)
	case ReasonWebSocketError:
		return fmt.Sprintf("websocket error %s (conn %s): %s", e.Code, e.ConnID, e.Msg)
	default:
		if e.Code != "" {
			return fmt.Sprintf("%s %s: %s", string(e.Reason), e.Code, e.Msg)
		}
		return fmt.Sprintf("%s: %s", string(e.Reason), e.Msg)
	}
}

func (e *TradeError) Unwrap() error { return e.Cause }

// Is reports whether the error carries the given reason. Safe on nil.
func (e *TradeError) Is(reason ErrorReason) bool {
	return e != nil && e.Reason == reason
}

// IsCode reports whether the error is a TRADEKIT_ERROR with the given code.
func (e *TradeError) IsCode(code string) bool {
	return e != nil && e.Reason == ReasonTradekitError && e.Code == code
}

func RateLimit() *TradeError {
	return &TradeError{Reason: ReasonRateLimit}
}

func NetworkError(msg string, cause error) *TradeError {
	return &TradeError{Reason: ReasonNetworkError, Msg: msg, Cause: cause}
}

func ExchangeError(exchange, code, msg string) *TradeError {
	return &TradeError{Reason: ReasonExchangeError, Exchange: exchange, Code: code, Msg: msg}
}

func TradekitError(code, msg string) *TradeError {
	return &TradeError{Reason: ReasonTradekitError, Code: code, Msg: msg}
}

func WebSocketError(msg, code, connID string) *TradeError {
	return &TradeError{Reason: ReasonWebSocketError, Msg: msg, Code: code, ConnID: connID}
}

func UnknownError(msg, code string, cause error) *TradeError {
	return &TradeError{Reason: ReasonUnknownError, Msg: msg, Code: code, Cause: cause}
}

// ConversionError marks an adapter failure: a venue payload that cannot be
// mapped to the unified shape.
func ConversionError(msg string) *TradeError {
	return TradekitError(CodeConversionError, msg)
}
