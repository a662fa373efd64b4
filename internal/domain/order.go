// Package domain holds the core data model shared by the state store, risk
// engine, order manager and scheduler: orders, fills, events, balances,
// settings. It mirrors the teacher's internal/order and internal/risk value
// types but is reshaped around the spec's single owning State document
// instead of per-table SQL rows.
package domain

import "time"

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes limit vs market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderState is the lifecycle state of an order (spec.md §4.5).
type OrderState string

const (
	StateNew           OrderState = "NEW"
	StateAccepted      OrderState = "ACCEPTED"
	StatePartial       OrderState = "PARTIAL"
	StateFilled        OrderState = "FILLED"
	StateCanceled      OrderState = "CANCELED"
	StateRejected      OrderState = "REJECTED"
	StateExpired       OrderState = "EXPIRED"
	StateUnknownSubmit OrderState = "UNKNOWN_SUBMIT"
	StateCancelReq     OrderState = "CANCEL_REQUESTED"
)

// EndStates are terminal: once reached, price/qty never mutate again.
var EndStates = map[OrderState]bool{
	StateFilled:   true,
	StateCanceled: true,
	StateRejected: true,
	StateExpired:  true,
}

// OpenOrderStates counts toward MAX_CONCURRENT_ORDERS (spec.md §4.4).
var OpenOrderStates = map[OrderState]bool{
	StateNew:           true,
	StateAccepted:       true,
	StatePartial:        true,
	StateCancelReq:       true,
	StateUnknownSubmit:   true,
}

// Order is the persisted representation of a single order intent and its
// lifecycle. See spec.md §3 for the field-level invariants.
type Order struct {
	ID              string     `json:"id"`
	ClientOrderKey  string     `json:"clientOrderKey"`
	ExchangeOrderID string     `json:"exchangeOrderId,omitempty"`
	Symbol          string     `json:"symbol"`
	Side            Side       `json:"side"`
	Type            OrderType  `json:"type"`
	Price           float64    `json:"price"`
	Qty             float64    `json:"qty"`
	RemainingQty    float64    `json:"remainingQty"`
	FilledQty       float64    `json:"filledQty"`
	AvgFillPrice    *float64   `json:"avgFillPrice,omitempty"`
	AmountKrw       float64    `json:"amountKrw"`
	Paper           bool       `json:"paper"`
	State           OrderState `json:"state"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CorrelationID   string     `json:"correlationId,omitempty"`
	StrategyRunID   string     `json:"strategyRunId"`
}

// IsOpen reports whether the order is still counted toward concurrency caps.
func (o *Order) IsOpen() bool {
	return OpenOrderStates[o.State]
}

// IsEnd reports whether the order has reached a terminal state.
func (o *Order) IsEnd() bool {
	return EndStates[o.State]
}

// Fill is a single trade execution against an order. ExchangeFillID is
// unique across all fills in the store, which is what makes applyFill
// idempotent.
type Fill struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	ExchangeFillID string    `json:"exchangeFillId"`
	Price          float64   `json:"price"`
	Qty            float64   `json:"qty"`
	Fee            float64   `json:"fee"`
	FillTs         time.Time `json:"fillTs"`
}

// OrderEventType enumerates the append-only audit event kinds.
type OrderEventType string

const (
	EventNew               OrderEventType = "NEW"
	EventAccepted          OrderEventType = "ACCEPTED"
	EventPartial           OrderEventType = "PARTIAL"
	EventFilled            OrderEventType = "FILLED"
	EventCanceled          OrderEventType = "CANCELED"
	EventRejected          OrderEventType = "REJECTED"
	EventExpired           OrderEventType = "EXPIRED"
	EventUnknownSubmit     OrderEventType = "UNKNOWN_SUBMIT"
	EventExchangeIDResolved OrderEventType = "EXCHANGE_ID_RESOLVED"
	EventFill              OrderEventType = "FILL"
)

// OrderEvent is an append-only audit record for one order.
type OrderEvent struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"orderId"`
	EventType OrderEventType `json:"eventType"`
	Payload   any            `json:"payload,omitempty"`
	EventTs   time.Time      `json:"eventTs"`
}
