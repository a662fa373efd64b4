package ordermanager

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"trading-core/internal/domain"
	"trading-core/internal/exchange"
	"trading-core/internal/statestore"
)

type fakeExchangeClient struct {
	placeCalls  int
	placeResult exchange.OrderResult
	placeErr    error
	cancelErr   error
	statusResult exchange.OrderStatusResult
	statusErr   error
}

func (f *fakeExchangeClient) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	f.placeCalls++
	return f.placeResult, f.placeErr
}

func (f *fakeExchangeClient) CancelOrder(ctx context.Context, exchangeOrderID string) error {
	return f.cancelErr
}

func (f *fakeExchangeClient) GetOrderStatus(ctx context.Context, clientOrderKey, hint string) (exchange.OrderStatusResult, error) {
	return f.statusResult, f.statusErr
}

func newTestManager(t *testing.T, client ExchangeClient) *Manager {
	t.Helper()
	store, err := statestore.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	seq := 0
	idGen := func() string {
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	return New(store, client, idGen, time.Now)
}

// spec.md §8 scenario 2: idempotent placement.
func TestPlaceOrderIsIdempotentByClientOrderKey(t *testing.T) {
	m := newTestManager(t, &fakeExchangeClient{})

	in := PlaceInput{
		Symbol: "BTC_KRW", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Price: 6000, Qty: 1, ClientOrderKey: "k1", Paper: true,
	}

	first := m.PlaceOrder(context.Background(), in)
	if !first.OK {
		t.Fatalf("first PlaceOrder failed: %+v", first)
	}
	if first.Data.IdempotentHit {
		t.Fatalf("expected first call to be a fresh placement")
	}

	second := m.PlaceOrder(context.Background(), in)
	if !second.OK {
		t.Fatalf("second PlaceOrder failed: %+v", second)
	}
	if !second.Data.IdempotentHit {
		t.Fatalf("expected second call to report idempotentHit")
	}
	if second.Data.Order.ID != first.Data.Order.ID {
		t.Fatalf("expected same order id, got %s vs %s", first.Data.Order.ID, second.Data.Order.ID)
	}
}

func TestPlaceOrderPaperModeTransitionsToAccepted(t *testing.T) {
	m := newTestManager(t, &fakeExchangeClient{})
	res := m.PlaceOrder(context.Background(), PlaceInput{
		Symbol: "BTC_KRW", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Price: 6000, Qty: 1, Paper: true, StrategyRunID: "run1",
	})
	if !res.OK {
		t.Fatalf("PlaceOrder failed: %+v", res)
	}
	if res.Data.Order.State != domain.StateAccepted {
		t.Fatalf("expected ACCEPTED, got %s", res.Data.Order.State)
	}
}

func TestPlaceOrderLiveModeUnknownSubmitOnError(t *testing.T) {
	client := &fakeExchangeClient{placeErr: &exchange.CallError{Code: exchange.CodeExchangeRetryable, Message: "timeout"}}
	m := newTestManager(t, client)

	res := m.PlaceOrder(context.Background(), PlaceInput{
		Symbol: "BTC_KRW", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Price: 6000, Qty: 1, StrategyRunID: "run1",
	})
	if res.OK {
		t.Fatalf("expected failure result")
	}
	if res.Code != domain.ExchangeRetryable {
		t.Fatalf("expected ExchangeRetryable, got %v", res.Code)
	}
	if res.Data.Order.State != domain.StateUnknownSubmit {
		t.Fatalf("expected UNKNOWN_SUBMIT, got %s", res.Data.Order.State)
	}
}

func TestApplyFillIsIdempotentByExchangeFillID(t *testing.T) {
	m := newTestManager(t, &fakeExchangeClient{})
	placed := m.PlaceOrder(context.Background(), PlaceInput{
		Symbol: "BTC_KRW", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Price: 100, Qty: 10, Paper: true,
	})
	orderID := placed.Data.Order.ID

	first := m.ApplyFill(FillInput{OrderID: orderID, ExchangeFillID: "f1", Price: 100, Qty: 4})
	if !first.OK || first.Data.State != domain.StatePartial {
		t.Fatalf("expected PARTIAL after first fill, got %+v", first)
	}

	second := m.ApplyFill(FillInput{OrderID: orderID, ExchangeFillID: "f1", Price: 999, Qty: 999})
	if second.Data.FilledQty != first.Data.FilledQty {
		t.Fatalf("expected duplicate fill to be a no-op, got filledQty=%v", second.Data.FilledQty)
	}

	third := m.ApplyFill(FillInput{OrderID: orderID, ExchangeFillID: "f2", Price: 120, Qty: 6})
	if !third.OK || third.Data.State != domain.StateFilled {
		t.Fatalf("expected FILLED after final fill, got %+v", third)
	}
	wantAvg := (100.0*4 + 120.0*6) / 10.0
	if third.Data.AvgFillPrice == nil || *third.Data.AvgFillPrice != wantAvg {
		t.Fatalf("expected avgFillPrice=%v, got %v", wantAvg, third.Data.AvgFillPrice)
	}
}

func TestCancelOrderNoOpOnTerminalState(t *testing.T) {
	m := newTestManager(t, &fakeExchangeClient{})
	placed := m.PlaceOrder(context.Background(), PlaceInput{
		Symbol: "BTC_KRW", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Price: 100, Qty: 1, Paper: true,
	})
	orderID := placed.Data.Order.ID
	full := m.ApplyFill(FillInput{OrderID: orderID, ExchangeFillID: "f1", Price: 100, Qty: 1})
	if full.Data.State != domain.StateFilled {
		t.Fatalf("expected FILLED, got %s", full.Data.State)
	}

	res := m.CancelOrder(context.Background(), orderID)
	if !res.OK || res.Data.State != domain.StateFilled {
		t.Fatalf("expected no-op cancel on terminal order, got %+v", res)
	}
}
