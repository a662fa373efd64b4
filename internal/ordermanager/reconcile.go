package ordermanager

import (
	"context"
	"log"
	"time"

	"trading-core/internal/domain"
	"trading-core/internal/exchange"
)

// ReconcileReport summarizes one reconciliation pass over UNKNOWN_SUBMIT
// orders (spec.md §2 lifecycle: UNKNOWN_SUBMIT -> ACCEPTED | CANCELED |
// REJECTED once the placement call's true outcome is resolved).
//
// Grounded on the teacher's internal/reconciliation.Service.Reconcile
// report shape -- generalized from periodic futures-position diffing
// against the exchange to per-order exchange-id lookup for orders this
// process lost track of mid-placement.
type ReconcileReport struct {
	Timestamp time.Time
	Checked   int
	Resolved  []ReconcileOutcome
	Mismatch  bool
}

// ReconcileOutcome is one order's resolved fate.
type ReconcileOutcome struct {
	OrderID  string
	FromState domain.OrderState
	ToState   domain.OrderState
}

// Reconcile looks up every UNKNOWN_SUBMIT order's true state on the
// exchange and resolves it back to ACCEPTED (exchange id found, order
// live), CANCELED (exchange has no record, safe to close) or REJECTED
// (exchange reports a terminal rejection) per spec.md's lifecycle.
func (m *Manager) Reconcile(ctx context.Context) (ReconcileReport, error) {
	state, err := m.store.Read()
	if err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{Timestamp: m.clock()}
	for _, o := range state.Orders {
		if o.State != domain.StateUnknownSubmit {
			continue
		}
		report.Checked++

		statusRes, statusErr := m.client.GetOrderStatus(ctx, o.ClientOrderKey, o.ExchangeOrderID)
		if statusErr != nil {
			report.Mismatch = true
			log.Printf("ordermanager: reconcile lookup failed for order %s: %v", o.ID, statusErr)
			continue
		}

		to := resolveUnknownSubmit(statusRes)
		outcome := ReconcileOutcome{OrderID: o.ID, FromState: o.State, ToState: to}
		if applyErr := m.applyReconcileOutcome(o.ID, statusRes, to); applyErr != nil {
			report.Mismatch = true
			log.Printf("ordermanager: reconcile apply failed for order %s: %v", o.ID, applyErr)
			continue
		}
		report.Resolved = append(report.Resolved, outcome)
	}

	if len(report.Resolved) > 0 {
		log.Printf("ordermanager: reconcile resolved %d/%d UNKNOWN_SUBMIT orders", len(report.Resolved), report.Checked)
	}
	return report, nil
}

// resolveUnknownSubmit maps an exchange order-status lookup to the
// lifecycle state an UNKNOWN_SUBMIT order should settle into.
func resolveUnknownSubmit(status exchange.OrderStatusResult) domain.OrderState {
	switch status.State {
	case "REJECTED", "rejected":
		return domain.StateRejected
	case "CANCELED", "canceled", "CANCELLED":
		return domain.StateCanceled
	case "":
		// Exchange has no record of this client-order-key at all: the
		// placement call never reached the exchange, safe to close.
		return domain.StateCanceled
	default:
		return domain.StateAccepted
	}
}

func (m *Manager) applyReconcileOutcome(orderID string, status exchange.OrderStatusResult, to domain.OrderState) error {
	return m.store.Update(func(s *domain.State) error {
		idx := indexOfOrder(s, orderID)
		if idx < 0 {
			return nil
		}
		s.Orders[idx].State = to
		if status.ExchangeOrderID != "" {
			s.Orders[idx].ExchangeOrderID = status.ExchangeOrderID
		}
		s.Orders[idx].UpdatedAt = m.clock()
		s.OrderEvents = append(s.OrderEvents, domain.OrderEvent{
			ID: m.idGen(), OrderID: orderID, EventType: domain.EventExchangeIDResolved,
			Payload: status, EventTs: m.clock(),
		})
		return nil
	})
}
