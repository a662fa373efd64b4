package statestore

import (
	"sort"

	"trading-core/internal/domain"
)

// prune trims each append-only collection down to its configured retention
// count, keeping the most recent entries. Closed orders are pruned
// separately from open ones: open orders are never dropped regardless of
// count (spec.md §4.7).
func prune(s *domain.State, r domain.Retention) {
	if !r.Enabled {
		return
	}

	var open, closed []domain.Order
	for _, o := range s.Orders {
		if o.IsEnd() {
			closed = append(closed, o)
		} else {
			open = append(open, o)
		}
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].UpdatedAt.Before(closed[j].UpdatedAt) })
	closed = tail(closed, r.ClosedOrders)
	s.Orders = append(open, closed...)

	s.OrderEvents = tail(s.OrderEvents, r.OrderEvents)
	s.Fills = tail(s.Fills, r.Fills)
	s.StrategyRuns = tail(s.StrategyRuns, r.StrategyRuns)
	s.BalancesSnapshot = tail(s.BalancesSnapshot, r.Balances)
	s.RiskEvents = tail(s.RiskEvents, r.RiskEvents)
	s.SystemHealth = tail(s.SystemHealth, r.SystemHealth)
	s.AgentAudit = tail(s.AgentAudit, r.AgentAudit)
}

// tail keeps only the last n elements of a slice (no-op if n<=0 or already
// within bound).
func tail[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	out := make([]T, n)
	copy(out, items[len(items)-n:])
	return out
}
