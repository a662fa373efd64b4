// Package ordermanager is the idempotent order lifecycle owner: placement by
// client-order-key, UNKNOWN_SUBMIT parking and reconciliation, and fill
// accounting (spec.md §4.5). It composes the state store and the exchange
// client; it does not itself consult the risk engine -- callers are expected
// to have already gated the order (spec.md §2, §7).
//
// Grounded on the teacher's internal/order.Executor: same
// resolve-gateway-then-call shape, generalized from its in-memory Queue to
// the durable state-store update(applyFn) contract (spec.md §4.7).
package ordermanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"trading-core/internal/domain"
	"trading-core/internal/exchange"
	"trading-core/internal/statestore"
)

// ExchangeClient is the small capability set the order manager needs from
// the exchange leaf (spec.md §9 "duck-typed injection of collaborators").
// *exchange.Client satisfies it; tests substitute a fake.
type ExchangeClient interface {
	PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error)
	CancelOrder(ctx context.Context, exchangeOrderID string) error
	GetOrderStatus(ctx context.Context, clientOrderKey, exchangeOrderIDHint string) (exchange.OrderStatusResult, error)
}

// Manager ties the durable store to the exchange client.
type Manager struct {
	store  *statestore.Store
	client ExchangeClient
	clock  func() time.Time
	idGen  func() string
}

// New constructs a Manager. idGen should be a collision-resistant generator
// (e.g. uuid.NewString); clock defaults to time.Now.
func New(store *statestore.Store, client ExchangeClient, idGen func() string, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{store: store, client: client, clock: clock, idGen: idGen}
}

// PlaceInput is what a caller asks the manager to place.
type PlaceInput struct {
	Symbol         string
	Side           domain.Side
	Type           domain.OrderType
	Price          float64
	Qty            float64
	AmountKrw      float64
	ClientOrderKey string
	StrategyRunID  string
	CorrelationID  string
	Paper          bool
}

// PlaceOrderResult is the order-manager-level result data.
type PlaceOrderResult struct {
	Order         domain.Order
	IdempotentHit bool
}

// deterministicClientOrderKey derives a stable key from
// (strategyRunId, symbol, side) when the caller supplies none, so repeated
// calls for the same logical intent collide on purpose (spec.md §4.5 step 1).
// Hashing is the only way to get a fixed-width deterministic key here; no
// id-generation library in the pack offers deterministic derivation (uuid
// generates random values), so this is a deliberate stdlib use.
func deterministicClientOrderKey(strategyRunID, symbol string, side domain.Side) string {
	sum := sha256.Sum256([]byte(strategyRunID + "|" + symbol + "|" + string(side)))
	return "dk_" + hex.EncodeToString(sum[:])[:24]
}

// PlaceOrder implements spec.md §4.5's placeOrder protocol.
func (m *Manager) PlaceOrder(ctx context.Context, in PlaceInput) domain.Result[PlaceOrderResult] {
	key := in.ClientOrderKey
	if key == "" {
		key = deterministicClientOrderKey(in.StrategyRunID, in.Symbol, in.Side)
	}

	var result PlaceOrderResult
	err := m.store.Update(func(s *domain.State) error {
		for _, o := range s.Orders {
			if o.ClientOrderKey == key {
				result = PlaceOrderResult{Order: o, IdempotentHit: true}
				return nil
			}
		}
		now := m.clock()
		order := domain.Order{
			ID:             m.idGen(),
			ClientOrderKey: key,
			Symbol:         in.Symbol,
			Side:           in.Side,
			Type:           in.Type,
			Price:          in.Price,
			Qty:            in.Qty,
			RemainingQty:   in.Qty,
			AmountKrw:      in.AmountKrw,
			Paper:          in.Paper,
			State:          domain.StateNew,
			CreatedAt:      now,
			UpdatedAt:      now,
			CorrelationID:  in.CorrelationID,
			StrategyRunID:  in.StrategyRunID,
		}
		s.Orders = append(s.Orders, order)
		s.OrderEvents = append(s.OrderEvents, domain.OrderEvent{ID: m.idGen(), OrderID: order.ID, EventType: domain.EventNew, EventTs: now})
		result = PlaceOrderResult{Order: order, IdempotentHit: false}
		return nil
	})
	if err != nil {
		return domain.Fail[PlaceOrderResult](domain.InternalError, err.Error())
	}
	if result.IdempotentHit {
		return domain.Ok(result)
	}

	if in.Paper {
		return m.transition(result.Order.ID, domain.StateAccepted, domain.EventAccepted, nil, &result)
	}

	req := exchange.OrderRequest{
		Symbol:         in.Symbol,
		Side:           in.Side,
		Type:           in.Type,
		Price:          in.Price,
		Qty:            in.Qty,
		AmountKrw:      in.AmountKrw,
		ClientOrderKey: key,
	}
	exRes, placeErr := m.client.PlaceOrder(ctx, req)
	if placeErr != nil {
		code, msg := classifyPlacementError(placeErr)
		_ = m.store.Update(func(s *domain.State) error {
			idx := indexOfOrder(s, result.Order.ID)
			if idx < 0 {
				return nil
			}
			s.Orders[idx].State = domain.StateUnknownSubmit
			s.Orders[idx].UpdatedAt = m.clock()
			s.OrderEvents = append(s.OrderEvents, domain.OrderEvent{
				ID: m.idGen(), OrderID: result.Order.ID, EventType: domain.EventUnknownSubmit,
				Payload: msg, EventTs: m.clock(),
			})
			result.Order = s.Orders[idx]
			return nil
		})
		res := domain.Fail[PlaceOrderResult](code, msg)
		res.Data = result
		return res
	}

	err = m.store.Update(func(s *domain.State) error {
		idx := indexOfOrder(s, result.Order.ID)
		if idx < 0 {
			return fmt.Errorf("ordermanager: order %s vanished before accept", result.Order.ID)
		}
		s.Orders[idx].ExchangeOrderID = exRes.ExchangeOrderID
		s.Orders[idx].State = domain.StateAccepted
		s.Orders[idx].UpdatedAt = m.clock()
		s.OrderEvents = append(s.OrderEvents, domain.OrderEvent{
			ID: m.idGen(), OrderID: result.Order.ID, EventType: domain.EventAccepted,
			Payload: exRes, EventTs: m.clock(),
		})
		result.Order = s.Orders[idx]
		return nil
	})
	if err != nil {
		return domain.Fail[PlaceOrderResult](domain.InternalError, err.Error())
	}
	return domain.Ok(result)
}

// classifyPlacementError translates an exchange.CallError into the exit
// code the order manager surfaces (spec.md §4.5 step 4).
func classifyPlacementError(err error) (domain.ExitCode, string) {
	var callErr *exchange.CallError
	if errors.As(err, &callErr) {
		switch callErr.Code {
		case exchange.CodeRateLimited:
			return domain.RateLimited, err.Error()
		case exchange.CodeExchangeRetryable:
			return domain.ExchangeRetryable, err.Error()
		default:
			return domain.ExchangeFatal, err.Error()
		}
	}
	return domain.ExchangeFatal, err.Error()
}

// transition applies a single state change to an existing order and appends
// an event; used by the paper-mode accept path and by CancelOrder.
func (m *Manager) transition(orderID string, state domain.OrderState, eventType domain.OrderEventType, payload any, into *PlaceOrderResult) domain.Result[PlaceOrderResult] {
	err := m.store.Update(func(s *domain.State) error {
		idx := indexOfOrder(s, orderID)
		if idx < 0 {
			return fmt.Errorf("ordermanager: order %s not found", orderID)
		}
		s.Orders[idx].State = state
		s.Orders[idx].UpdatedAt = m.clock()
		s.OrderEvents = append(s.OrderEvents, domain.OrderEvent{ID: m.idGen(), OrderID: orderID, EventType: eventType, Payload: payload, EventTs: m.clock()})
		into.Order = s.Orders[idx]
		return nil
	})
	if err != nil {
		return domain.Fail[PlaceOrderResult](domain.InternalError, err.Error())
	}
	return domain.Ok(*into)
}

// CancelOrder implements spec.md §4.5's cancelOrder protocol.
func (m *Manager) CancelOrder(ctx context.Context, orderID string) domain.Result[domain.Order] {
	state, err := m.store.Read()
	if err != nil {
		return domain.Fail[domain.Order](domain.InternalError, err.Error())
	}
	idx := indexOfOrder(&state, orderID)
	if idx < 0 {
		return domain.Fail[domain.Order](domain.InvalidArgs, "ordermanager: order not found")
	}
	order := state.Orders[idx]
	if order.IsEnd() {
		return domain.Ok(order)
	}

	if order.Paper {
		return m.cancelAndReturn(orderID)
	}

	exchangeOrderID := order.ExchangeOrderID
	if exchangeOrderID == "" {
		statusRes, statusErr := m.client.GetOrderStatus(ctx, order.ClientOrderKey, "")
		if statusErr != nil {
			code, msg := classifyPlacementError(statusErr)
			return domain.Fail[domain.Order](code, msg)
		}
		exchangeOrderID = statusRes.ExchangeOrderID
		err = m.store.Update(func(s *domain.State) error {
			i := indexOfOrder(s, orderID)
			if i < 0 {
				return nil
			}
			s.Orders[i].ExchangeOrderID = exchangeOrderID
			s.Orders[i].UpdatedAt = m.clock()
			s.OrderEvents = append(s.OrderEvents, domain.OrderEvent{
				ID: m.idGen(), OrderID: orderID, EventType: domain.EventExchangeIDResolved,
				Payload: exchangeOrderID, EventTs: m.clock(),
			})
			return nil
		})
		if err != nil {
			return domain.Fail[domain.Order](domain.InternalError, err.Error())
		}
	}

	if cancelErr := m.client.CancelOrder(ctx, exchangeOrderID); cancelErr != nil {
		code, msg := classifyPlacementError(cancelErr)
		return domain.Fail[domain.Order](code, msg)
	}
	return m.cancelAndReturn(orderID)
}

func (m *Manager) cancelAndReturn(orderID string) domain.Result[domain.Order] {
	var order domain.Order
	err := m.store.Update(func(s *domain.State) error {
		i := indexOfOrder(s, orderID)
		if i < 0 {
			return fmt.Errorf("ordermanager: order %s not found", orderID)
		}
		s.Orders[i].State = domain.StateCanceled
		s.Orders[i].UpdatedAt = m.clock()
		s.OrderEvents = append(s.OrderEvents, domain.OrderEvent{ID: m.idGen(), OrderID: orderID, EventType: domain.EventCanceled, EventTs: m.clock()})
		order = s.Orders[i]
		return nil
	})
	if err != nil {
		return domain.Fail[domain.Order](domain.InternalError, err.Error())
	}
	return domain.Ok(order)
}

// FillInput describes one exchange fill to apply.
type FillInput struct {
	OrderID        string
	ExchangeFillID string
	Price          float64
	Qty            float64
	Fee            float64
}

// ApplyFill implements spec.md §4.5's applyFill protocol: idempotent by
// exchangeFillId, recomputes weighted-average fill price.
func (m *Manager) ApplyFill(in FillInput) domain.Result[domain.Order] {
	var order domain.Order
	err := m.store.Update(func(s *domain.State) error {
		for _, f := range s.Fills {
			if f.ExchangeFillID == in.ExchangeFillID {
				if i := indexOfOrder(s, in.OrderID); i >= 0 {
					order = s.Orders[i]
				}
				return nil
			}
		}

		idx := indexOfOrder(s, in.OrderID)
		if idx < 0 {
			return fmt.Errorf("ordermanager: order %s not found", in.OrderID)
		}
		o := &s.Orders[idx]

		prevNotional := 0.0
		if o.AvgFillPrice != nil {
			prevNotional = *o.AvgFillPrice * o.FilledQty
		}
		newFilled := o.FilledQty + in.Qty
		avg := (prevNotional + in.Price*in.Qty) / newFilled

		o.FilledQty = newFilled
		o.RemainingQty = o.Qty - newFilled
		o.AvgFillPrice = &avg
		if o.RemainingQty > 0 {
			o.State = domain.StatePartial
		} else {
			o.State = domain.StateFilled
		}
		o.UpdatedAt = m.clock()

		now := m.clock()
		s.Fills = append(s.Fills, domain.Fill{
			ID: m.idGen(), OrderID: in.OrderID, ExchangeFillID: in.ExchangeFillID,
			Price: in.Price, Qty: in.Qty, Fee: in.Fee, FillTs: now,
		})
		eventType := domain.EventPartial
		if o.State == domain.StateFilled {
			eventType = domain.EventFilled
		}
		s.OrderEvents = append(s.OrderEvents,
			domain.OrderEvent{ID: m.idGen(), OrderID: in.OrderID, EventType: domain.EventFill, EventTs: now},
			domain.OrderEvent{ID: m.idGen(), OrderID: in.OrderID, EventType: eventType, EventTs: now},
		)
		order = *o
		return nil
	})
	if err != nil {
		return domain.Fail[domain.Order](domain.InternalError, err.Error())
	}
	return domain.Ok(order)
}

func indexOfOrder(s *domain.State, orderID string) int {
	for i := range s.Orders {
		if s.Orders[i].ID == orderID {
			return i
		}
	}
	return -1
}
