// Package exchange is the leaf Exchange Client: rate limiting, retry
// classification, JWT signing, endpoint fallback, and request audit for a
// single centralized spot exchange. It mirrors the shape of the teacher's
// pkg/exchanges/common + pkg/exchanges/binance/spot packages, generalized to
// the wire contract in spec.md §6 (quote-first market strings, ord_type,
// identifier as client-order-key).
package exchange

import (
	"time"

	"trading-core/internal/domain"
)

// OrderRequest is what the order manager asks the exchange client to place.
type OrderRequest struct {
	Symbol         string // canonical BASE_QUOTE
	Side           domain.Side
	Type           domain.OrderType
	Price          float64 // required for limit
	Qty            float64 // required for limit and market-sell
	AmountKrw      float64 // required for market-buy
	ClientOrderKey string
}

// OrderResult is the exchange's ack for a placed order.
type OrderResult struct {
	ExchangeOrderID string
	Status          string
}

// OrderStatusResult is returned by GetOrderStatus for reconciliation lookups.
type OrderStatusResult struct {
	ExchangeOrderID string
	State           string
	FilledQty       float64
	AvgFillPrice    float64
}

// RequestEvent is the audit record emitted for every HTTP request
// (spec.md §4.6 "Audit", §6 "HTTP audit log").
type RequestEvent struct {
	Ts            time.Time `json:"ts"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	RequiresAuth  bool      `json:"requiresAuth"`
	Attempt       int       `json:"attempt"`
	Status        int       `json:"status"`
	OK            bool      `json:"ok"`
	DurationMs    int64     `json:"durationMs"`
	Retryable     bool      `json:"retryable"`
	Error         string    `json:"error,omitempty"`
	InstallationID string   `json:"installationId,omitempty"`
}

// RequestEventSink receives audit events. Rotation/storage is an external
// concern (spec.md §1 Non-goals: "HTTP audit log rotation").
type RequestEventSink func(RequestEvent)

// ErrorCode classifies a failed exchange call the way the order manager
// expects (spec.md §4.5, §7).
type ErrorCode string

const (
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeExchangeRetryable ErrorCode = "EXCHANGE_RETRYABLE"
	CodeExchangeFatal     ErrorCode = "EXCHANGE_FATAL"
)

// CallError is returned by client methods on failure; it carries the
// retryability classification the order manager translates into exit codes.
type CallError struct {
	Code    ErrorCode
	Status  int
	Message string
	Attempt int
}

func (e *CallError) Error() string {
	return string(e.Code) + ": " + e.Message
}
