package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trading-core/internal/candleinterval"
	"trading-core/internal/domain"
	"trading-core/internal/symbol"
)

// Config holds exchange credentials and tuning knobs.
type Config struct {
	BaseURL         string
	AccessKey       string
	SecretKey       string
	PublicRateCap   int // default 150/sec
	PrivateRateCap  int // default 140/sec
	RequestTimeout  time.Duration
	Retry           RetryConfig
	InstallationID  string // opaque correlation id attached to audit events
	OnRequestEvent  RequestEventSink
}

// Client is the leaf Exchange Client (spec.md §4.6). It owns two per-second
// sliding-window rate limiters (public/private), signs private requests,
// classifies and retries transient failures, falls back to documented
// alternate endpoints on 404/405/410, and emits one audit event per request.
//
// Grounded on the teacher's pkg/exchanges/binance/spot.Client: same
// new()/doSigned() shape, generalized from Binance's HMAC query-signing to
// this exchange's JWT scheme and from a single global rate limiter to
// separate public/private buckets (spec.md §4.6, §5).
type Client struct {
	cfg        Config
	httpClient *http.Client
	signer     *signer
	publicRL   *RateLimiter
	privateRL  *RateLimiter
	nowFn      func() time.Time
}

// New constructs a Client with sane rate-limit defaults.
func New(cfg Config) *Client {
	if cfg.PublicRateCap <= 0 {
		cfg.PublicRateCap = 150
	}
	if cfg.PrivateRateCap <= 0 {
		cfg.PrivateRateCap = 140
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		signer:     newSigner(cfg.AccessKey, cfg.SecretKey),
		publicRL:   NewRateLimiter(cfg.PublicRateCap, time.Second),
		privateRL:  NewRateLimiter(cfg.PrivateRateCap, time.Second),
		nowFn:      time.Now,
	}
}

// doRequest performs one HTTP round trip (with retry, rate limiting, signing
// and audit) against path, falling back to fallbackPath once on
// 404/405/410 if provided (spec.md §4.6 "Endpoint fallback").
func (c *Client) doRequest(ctx context.Context, method, path, fallbackPath string, requiresAuth bool, params url.Values, body []byte) ([]byte, error) {
	rl := c.publicRL
	if requiresAuth {
		rl = c.privateRL
	}

	currentPath := path
	usedFallback := false
	var lastErr error

	for attempt := 1; attempt <= c.cfg.Retry.MaxAttempts; attempt++ {
		rl.Take()

		start := c.nowFn()
		status, respBody, transportErr := c.send(ctx, method, currentPath, requiresAuth, params, body)
		durationMs := c.nowFn().Sub(start).Milliseconds()

		retryable, code := classify(status, transportErr)
		ok := transportErr == nil && status >= 200 && status < 300

		c.audit(RequestEvent{
			Ts:             start,
			Method:         method,
			Path:           currentPath,
			RequiresAuth:   requiresAuth,
			Attempt:        attempt,
			Status:         status,
			OK:             ok,
			DurationMs:     durationMs,
			Retryable:      retryable,
			Error:          errString(transportErr),
			InstallationID: c.cfg.InstallationID,
		})

		if ok {
			return respBody, nil
		}

		// Endpoint fallback: try once on the documented alternate path.
		if !usedFallback && fallbackPath != "" && (status == 404 || status == 405 || status == 410) {
			usedFallback = true
			currentPath = fallbackPath
			continue
		}

		if !retryable {
			return nil, &CallError{Code: code, Status: status, Message: string(respBody), Attempt: attempt}
		}

		lastErr = &CallError{Code: code, Status: status, Message: string(respBody), Attempt: attempt}
		if attempt == c.cfg.Retry.MaxAttempts {
			break
		}

		time.Sleep(backoff(c.cfg.Retry, attempt-1, 0))
	}

	return nil, lastErr
}

func (c *Client) send(ctx context.Context, method, path string, requiresAuth bool, params url.Values, body []byte) (int, []byte, error) {
	u := c.cfg.BaseURL + path
	var reader io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
	} else if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if requiresAuth {
		qs := ""
		if method == http.MethodGet || method == http.MethodDelete {
			qs = canonicalQuery(params)
		} else if len(params) > 0 {
			qs = canonicalQuery(params)
		}
		token, err := c.signer.Sign(qs)
		if err != nil {
			return 0, nil, fmt.Errorf("exchange: sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, nil
}

func (c *Client) audit(ev RequestEvent) {
	if c.cfg.OnRequestEvent != nil {
		c.cfg.OnRequestEvent(ev)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// --- Order placement (spec.md §6 "Order body") ---

// orderBody builds the wire-form request per the type+side matrix in
// spec.md §6. market field is QUOTE-BASE; identifier carries the
// client-order-key.
func orderBody(req OrderRequest) (url.Values, error) {
	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("exchange: INVALID_ARGUMENT: %w", err)
	}
	v := url.Values{}
	v.Set("market", sym.Wire())
	if req.ClientOrderKey != "" {
		v.Set("identifier", req.ClientOrderKey)
	}

	switch {
	case req.Type == domain.OrderTypeLimit && req.Side == domain.SideBuy:
		v.Set("side", "bid")
		v.Set("ord_type", "limit")
		v.Set("price", formatFloat(req.Price))
		v.Set("volume", formatFloat(req.Qty))
	case req.Type == domain.OrderTypeLimit && req.Side == domain.SideSell:
		v.Set("side", "ask")
		v.Set("ord_type", "limit")
		v.Set("price", formatFloat(req.Price))
		v.Set("volume", formatFloat(req.Qty))
	case req.Type == domain.OrderTypeMarket && req.Side == domain.SideBuy:
		v.Set("side", "bid")
		v.Set("ord_type", "price")
		v.Set("price", formatFloat(req.AmountKrw))
	case req.Type == domain.OrderTypeMarket && req.Side == domain.SideSell:
		v.Set("side", "ask")
		v.Set("ord_type", "market")
		v.Set("volume", formatFloat(req.Qty))
	default:
		return nil, fmt.Errorf("exchange: INVALID_ARGUMENT: unsupported type/side combination %s/%s", req.Type, req.Side)
	}
	return v, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type orderResponse struct {
	UUID       string `json:"uuid"`
	Identifier string `json:"identifier"`
	State      string `json:"state"`
	// Accept both snake_case and camelCase exchange id keys, as real
	// exchange responses are inconsistent about this (spec.md §4.5).
	OrderIDSnake   string `json:"order_id"`
	OrderIDCamel   string `json:"orderId"`
	ExecutedVolume string `json:"executed_volume"`
}

// PlaceOrder submits an order; it never itself handles idempotency — that is
// the order manager's job (spec.md §4.5 step 2).
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	params, err := orderBody(req)
	if err != nil {
		return OrderResult{}, err
	}
	fields := make(map[string]string, len(params))
	for k := range params {
		fields[k] = params.Get(k)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return OrderResult{}, fmt.Errorf("exchange: encode order body: %w", err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/orders", "/v1/order", true, params, payload)
	if err != nil {
		return OrderResult{}, err
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderResult{}, fmt.Errorf("exchange: decode order response: %w", err)
	}
	id := resp.UUID
	if id == "" {
		id = resp.OrderIDSnake
	}
	if id == "" {
		id = resp.OrderIDCamel
	}
	return OrderResult{ExchangeOrderID: id, Status: resp.State}, nil
}

// CancelOrder cancels by exchange order id via DELETE, with the documented
// fallback path on 404/405/410.
func (c *Client) CancelOrder(ctx context.Context, exchangeOrderID string) error {
	params := url.Values{}
	params.Set("uuid", exchangeOrderID)
	_, err := c.doRequest(ctx, http.MethodDelete, "/v1/order", "/v1/orders/cancel", true, params, nil)
	return err
}

// GetOrderStatus looks up an order by client-order-key (identifier), with an
// optional exchange-id hint to speed up resolution after an UNKNOWN_SUBMIT.
func (c *Client) GetOrderStatus(ctx context.Context, clientOrderKey, exchangeOrderIDHint string) (OrderStatusResult, error) {
	params := url.Values{}
	if exchangeOrderIDHint != "" {
		params.Set("uuid", exchangeOrderIDHint)
	} else {
		params.Set("identifier", clientOrderKey)
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/order", "", true, params, nil)
	if err != nil {
		return OrderStatusResult{}, err
	}
	var resp struct {
		UUID           string `json:"uuid"`
		State          string `json:"state"`
		ExecutedVolume string `json:"executed_volume"`
		AvgPrice       string `json:"avg_price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderStatusResult{}, fmt.Errorf("exchange: decode order status: %w", err)
	}
	filled, _ := strconv.ParseFloat(resp.ExecutedVolume, 64)
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	return OrderStatusResult{ExchangeOrderID: resp.UUID, State: resp.State, FilledQty: filled, AvgFillPrice: avg}, nil
}

// GetCandles fetches count candles for symbol at the given interval
// (spec.md §6 "Candle intervals").
func (c *Client) GetCandles(ctx context.Context, sym string, interval candleinterval.Interval, count int) ([]domain.Candle, error) {
	s, err := symbol.Normalize(sym)
	if err != nil {
		return nil, fmt.Errorf("exchange: INVALID_ARGUMENT: %w", err)
	}
	endpoint, err := interval.Endpoint()
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("market", s.Wire())
	params.Set("count", strconv.Itoa(count))

	body, err := c.doRequest(ctx, http.MethodGet, endpoint, "", false, params, nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		TimestampMs int64   `json:"timestamp"`
		Open        float64 `json:"opening_price"`
		High        float64 `json:"high_price"`
		Low         float64 `json:"low_price"`
		Close       float64 `json:"trade_price"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("exchange: decode candles: %w", err)
	}
	candles := make([]domain.Candle, len(raw))
	// Exchange returns newest-first; the spec requires strictly ascending order.
	for i, r := range raw {
		candles[len(raw)-1-i] = domain.Candle{TimestampMs: r.TimestampMs, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close}
	}
	return candles, nil
}

// Ticker is a simplified current-price quote.
type Ticker struct {
	Symbol    string
	Price     float64
	ChangeRate float64
	AccTradeValue24h float64
	MarketWarning string
}

// GetTickers fetches current tickers for the given symbols in one call.
func (c *Client) GetTickers(ctx context.Context, symbols []string) ([]Ticker, error) {
	wires := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym, err := symbol.Normalize(s)
		if err != nil {
			return nil, fmt.Errorf("exchange: INVALID_ARGUMENT: %w", err)
		}
		wires = append(wires, sym.Wire())
	}
	params := url.Values{}
	params.Set("markets", joinCSV(wires))
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/ticker", "", false, params, nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Market           string  `json:"market"`
		TradePrice       float64 `json:"trade_price"`
		ChangeRate       float64 `json:"signed_change_rate"`
		AccTradePrice24h float64 `json:"acc_trade_price_24h"`
		MarketWarning    string  `json:"market_warning"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("exchange: decode tickers: %w", err)
	}
	out := make([]Ticker, 0, len(raw))
	for _, r := range raw {
		sym, err := symbol.FromWire(r.Market)
		if err != nil {
			continue
		}
		out = append(out, Ticker{
			Symbol: string(sym), Price: r.TradePrice, ChangeRate: r.ChangeRate,
			AccTradeValue24h: r.AccTradePrice24h, MarketWarning: r.MarketWarning,
		})
	}
	return out, nil
}

// GetAccounts fetches the account's current balances.
func (c *Client) GetAccounts(ctx context.Context) (domain.BalancesSnapshot, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/accounts", "", true, nil, nil)
	if err != nil {
		return domain.BalancesSnapshot{}, err
	}
	var raw []struct {
		Currency     string `json:"currency"`
		UnitCurrency string `json:"unit_currency"`
		Balance      string `json:"balance"`
		Locked       string `json:"locked"`
		AvgBuyPrice  string `json:"avg_buy_price"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.BalancesSnapshot{}, fmt.Errorf("exchange: decode accounts: %w", err)
	}
	items := make([]domain.BalanceItem, 0, len(raw))
	for _, r := range raw {
		bal, _ := strconv.ParseFloat(r.Balance, 64)
		locked, _ := strconv.ParseFloat(r.Locked, 64)
		avg, _ := strconv.ParseFloat(r.AvgBuyPrice, 64)
		items = append(items, domain.BalanceItem{Currency: r.Currency, UnitCurrency: r.UnitCurrency, Balance: bal, Locked: locked, AvgBuyPrice: avg})
	}
	return domain.BalancesSnapshot{CapturedAt: c.nowFn(), Source: "exchange", Items: items}, nil
}

func joinCSV(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}
