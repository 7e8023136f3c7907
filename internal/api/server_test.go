package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-trader/internal/auth"
	"ai-trader/internal/quotes"
	"ai-trader/internal/signals"
	"ai-trader/internal/store"
	"ai-trader/internal/trading"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "trader.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	qp := quotes.NewSimProvider(0, map[string]float64{"AAPL": 150.25})
	engine := trading.NewEngine(st, qp, nil, zerolog.Nop(), trading.EngineConfig{
		InitialCash: 100000,
	})
	server := NewServer(engine, qp, signals.NewGenerator(qp), auth.NewManager(time.Hour), zerolog.Nop())

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func login(t *testing.T, ts *httptest.Server, owner string) string {
	t.Helper()
	resp, body := doJSON(t, "POST", ts.URL+"/api/sessions", "", map[string]string{"owner_id": owner})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected session token")
	}
	return token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, "GET", ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, "GET", ts.URL+"/api/portfolios", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, "GET", ts.URL+"/api/portfolios", "bogus", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", resp.StatusCode)
	}
}

func TestOrderLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, "alice")

	// Create a portfolio.
	resp, portfolio := doJSON(t, "POST", ts.URL+"/api/portfolios", token, map[string]any{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create portfolio status = %d", resp.StatusCode)
	}
	pid, _ := portfolio["id"].(string)
	if portfolio["cash_balance"].(float64) != 100000 {
		t.Errorf("cash = %v, want 100000", portfolio["cash_balance"])
	}

	// Market buy fills synchronously.
	resp, order := doJSON(t, "POST", ts.URL+"/api/orders", token, map[string]any{
		"portfolio_id": pid,
		"symbol":       "AAPL",
		"side":         "BUY",
		"type":         "MARKET",
		"quantity":     50,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("buy status = %d: %v", resp.StatusCode, order)
	}
	if order["status"] != "FILLED" {
		t.Errorf("status = %v, want FILLED", order["status"])
	}
	if order["executed_price"].(float64) != 150.25 {
		t.Errorf("executed price = %v, want 150.25", order["executed_price"])
	}

	// Portfolio reflects the settlement.
	resp, portfolio = doJSON(t, "GET", ts.URL+"/api/portfolios/"+pid, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get portfolio status = %d", resp.StatusCode)
	}
	if portfolio["cash_balance"].(float64) != 92487.50 {
		t.Errorf("cash = %v, want 92487.50", portfolio["cash_balance"])
	}

	// Overselling is rejected with 422 and the rejected order body.
	resp, order = doJSON(t, "POST", ts.URL+"/api/orders", token, map[string]any{
		"portfolio_id": pid,
		"symbol":       "AAPL",
		"side":         "SELL",
		"type":         "MARKET",
		"quantity":     500,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("oversell status = %d, want 422", resp.StatusCode)
	}
	if order["status"] != "REJECTED" {
		t.Errorf("status = %v, want REJECTED", order["status"])
	}

	// Limit order rests open, then cancels.
	resp, order = doJSON(t, "POST", ts.URL+"/api/orders", token, map[string]any{
		"portfolio_id": pid,
		"symbol":       "AAPL",
		"side":         "BUY",
		"type":         "LIMIT",
		"quantity":     5,
		"limit_price":  140.0,
	})
	if resp.StatusCode != http.StatusCreated || order["status"] != "OPEN" {
		t.Fatalf("limit order: status = %d, %v", resp.StatusCode, order["status"])
	}
	oid, _ := order["id"].(string)

	resp, order = doJSON(t, "DELETE", ts.URL+"/api/orders/"+oid, token, nil)
	if resp.StatusCode != http.StatusOK || order["status"] != "CANCELED" {
		t.Errorf("cancel: status = %d, %v", resp.StatusCode, order["status"])
	}

	// A second cancel conflicts.
	resp, _ = doJSON(t, "DELETE", ts.URL+"/api/orders/"+oid, token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double cancel status = %d, want 409", resp.StatusCode)
	}
}

func TestOrderValidation(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, "alice")

	_, portfolio := doJSON(t, "POST", ts.URL+"/api/portfolios", token, map[string]any{})
	pid, _ := portfolio["id"].(string)

	resp, _ := doJSON(t, "POST", ts.URL+"/api/orders", token, map[string]any{
		"portfolio_id": pid,
		"symbol":       "AAPL",
		"side":         "BUY",
		"type":         "MARKET",
		"quantity":     0,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("zero quantity status = %d, want 400", resp.StatusCode)
	}
}

func TestPortfolioIsolation(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := login(t, ts, "alice")
	bobToken := login(t, ts, "bob")

	_, portfolio := doJSON(t, "POST", ts.URL+"/api/portfolios", aliceToken, map[string]any{})
	pid, _ := portfolio["id"].(string)

	resp, _ := doJSON(t, "GET", ts.URL+"/api/portfolios/"+pid, bobToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign portfolio status = %d, want 404", resp.StatusCode)
	}
}

func TestQuoteAndSignal(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, "alice")

	resp, quote := doJSON(t, "GET", ts.URL+"/api/quotes/AAPL", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quote status = %d", resp.StatusCode)
	}
	if quote["symbol"] != "AAPL" || quote["price"].(float64) != 150.25 {
		t.Errorf("quote = %v", quote)
	}

	resp, signal := doJSON(t, "GET", ts.URL+"/api/signals/AAPL", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signal status = %d", resp.StatusCode)
	}
	dir, _ := signal["direction"].(string)
	if dir != "BUY" && dir != "SELL" {
		t.Errorf("direction = %q", dir)
	}
	conf := signal["confidence"].(float64)
	if conf < 0 || conf > 100 {
		t.Errorf("confidence = %v", conf)
	}
}

func TestListOrdersFilters(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, "alice")

	_, portfolio := doJSON(t, "POST", ts.URL+"/api/portfolios", token, map[string]any{})
	pid, _ := portfolio["id"].(string)

	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, "POST", ts.URL+"/api/orders", token, map[string]any{
			"portfolio_id": pid,
			"symbol":       "AAPL",
			"side":         "BUY",
			"type":         "MARKET",
			"quantity":     1,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("buy %d status = %d", i, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest("GET", fmt.Sprintf("%s/api/orders?portfolio_id=%s&status=filled", ts.URL, pid), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	defer resp.Body.Close()

	var orders []map[string]any
	json.NewDecoder(resp.Body).Decode(&orders)
	if len(orders) != 3 {
		t.Errorf("orders = %d, want 3", len(orders))
	}

	// limit caps the result set.
	req, _ = http.NewRequest("GET", fmt.Sprintf("%s/api/orders?portfolio_id=%s&limit=2", ts.URL, pid), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("listing with limit: %v", err)
	}
	defer resp.Body.Close()

	orders = nil
	json.NewDecoder(resp.Body).Decode(&orders)
	if len(orders) != 2 {
		t.Errorf("limited orders = %d, want 2", len(orders))
	}

	// A malformed limit is a validation error.
	req, _ = http.NewRequest("GET", ts.URL+"/api/orders?limit=abc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	badResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("listing with bad limit: %v", err)
	}
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", badResp.StatusCode)
	}
}
