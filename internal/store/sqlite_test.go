package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "trader.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testPortfolio(id string) *models.Portfolio {
	now := time.Now().Truncate(time.Second)
	return &models.Portfolio{
		ID:            id,
		OwnerID:       "owner-1",
		CashBalance:   100000,
		InitialEquity: 100000,
		Equity:        100000,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func testOrder(id, portfolioID string) *models.Order {
	return &models.Order{
		ID:             id,
		PortfolioID:    portfolioID,
		OwnerID:        "owner-1",
		Symbol:         "AAPL",
		Side:           models.OrderSideBuy,
		Type:           models.OrderTypeMarket,
		Quantity:       10,
		RequestedPrice: 150,
		Status:         models.OrderStatusOpen,
		CreatedAt:      time.Now().Truncate(time.Second),
	}
}

func TestPortfolioRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := testPortfolio("p-1")
	p.Positions = []models.Position{
		{Symbol: "MSFT", Quantity: 5, AverageEntryPrice: 400, CurrentPrice: 400, MarketValue: 2000},
		{Symbol: "AAPL", Quantity: 10, AverageEntryPrice: 150, CurrentPrice: 150, MarketValue: 1500},
	}

	if err := st.CreatePortfolio(ctx, p); err != nil {
		t.Fatalf("creating: %v", err)
	}
	// Positions are written by SavePortfolio, not CreatePortfolio.
	if err := st.SavePortfolio(ctx, p, 1); err != nil {
		t.Fatalf("saving: %v", err)
	}

	loaded, err := st.GetPortfolio(ctx, "p-1")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if loaded.OwnerID != "owner-1" || loaded.CashBalance != 100000 {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(loaded.Positions))
	}
	// Insertion order is preserved.
	if loaded.Positions[0].Symbol != "MSFT" || loaded.Positions[1].Symbol != "AAPL" {
		t.Errorf("position order = %s, %s; want MSFT, AAPL",
			loaded.Positions[0].Symbol, loaded.Positions[1].Symbol)
	}
	if loaded.Version != 2 {
		t.Errorf("version = %d, want 2", loaded.Version)
	}
}

func TestGetPortfolio_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetPortfolio(context.Background(), "missing")
	if !apperrors.Is(err, apperrors.ErrPortfolioNotFound) {
		t.Errorf("err = %v, want ErrPortfolioNotFound", err)
	}
}

func TestSavePortfolio_VersionConflict(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := testPortfolio("p-1")
	if err := st.CreatePortfolio(ctx, p); err != nil {
		t.Fatalf("creating: %v", err)
	}

	if err := st.SavePortfolio(ctx, p, 1); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if p.Version != 2 {
		t.Errorf("version = %d, want 2", p.Version)
	}

	// Stale version loses.
	err := st.SavePortfolio(ctx, p, 1)
	if !apperrors.Is(err, apperrors.ErrConcurrencyConflict) {
		t.Errorf("err = %v, want ErrConcurrencyConflict", err)
	}

	// Missing portfolio is distinguished from a conflict.
	ghost := testPortfolio("ghost")
	err = st.SavePortfolio(ctx, ghost, 1)
	if !apperrors.Is(err, apperrors.ErrPortfolioNotFound) {
		t.Errorf("err = %v, want ErrPortfolioNotFound", err)
	}
}

func TestOrderRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	o := testOrder("o-1", "p-1")
	if err := st.SaveOrder(ctx, o); err != nil {
		t.Fatalf("saving: %v", err)
	}

	loaded, err := st.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if loaded.Symbol != "AAPL" || loaded.Status != models.OrderStatusOpen {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.RealizedPL != nil || loaded.ExecutedAt != nil {
		t.Error("expected nil RealizedPL and ExecutedAt on open order")
	}

	// Fill it and save again.
	now := time.Now().Truncate(time.Second)
	realized := 626.25
	o.Status = models.OrderStatusFilled
	o.ExecutedPrice = 170
	o.ExecutedQty = 10
	o.RealizedPL = &realized
	o.ExecutedAt = &now
	if err := st.SaveOrder(ctx, o); err != nil {
		t.Fatalf("resaving: %v", err)
	}

	loaded, _ = st.GetOrder(ctx, "o-1")
	if loaded.Status != models.OrderStatusFilled {
		t.Errorf("status = %s, want FILLED", loaded.Status)
	}
	if loaded.RealizedPL == nil || *loaded.RealizedPL != 626.25 {
		t.Errorf("realized = %v, want 626.25", loaded.RealizedPL)
	}
	if loaded.ExecutedAt == nil {
		t.Error("expected executed timestamp")
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetOrder(context.Background(), "missing")
	if !apperrors.Is(err, apperrors.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestListOrders_Filters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := testOrder("o-1", "p-1")
	b := testOrder("o-2", "p-1")
	b.Symbol = "MSFT"
	b.Status = models.OrderStatusFilled
	c := testOrder("o-3", "p-2")
	c.OwnerID = "owner-2"
	for _, o := range []*models.Order{a, b, c} {
		if err := st.SaveOrder(ctx, o); err != nil {
			t.Fatalf("saving %s: %v", o.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter OrderFilter
		want   int
	}{
		{"all", OrderFilter{}, 3},
		{"by portfolio", OrderFilter{PortfolioID: "p-1"}, 2},
		{"by owner", OrderFilter{OwnerID: "owner-2"}, 1},
		{"by symbol", OrderFilter{Symbol: "MSFT"}, 1},
		{"by status", OrderFilter{Status: models.OrderStatusOpen}, 2},
		{"combined", OrderFilter{PortfolioID: "p-1", Status: models.OrderStatusFilled}, 1},
		{"with limit", OrderFilter{Limit: 2}, 2},
		{"no match", OrderFilter{Symbol: "TSLA"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := st.ListOrders(ctx, tt.filter)
			if err != nil {
				t.Fatalf("listing: %v", err)
			}
			if len(orders) != tt.want {
				t.Errorf("orders = %d, want %d", len(orders), tt.want)
			}
		})
	}
}

func TestSaveSettlement_Atomic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := testPortfolio("p-1")
	if err := st.CreatePortfolio(ctx, p); err != nil {
		t.Fatalf("creating: %v", err)
	}

	p.CashBalance = 92487.50
	p.Positions = []models.Position{
		{Symbol: "AAPL", Quantity: 50, AverageEntryPrice: 150.25, CurrentPrice: 150.25, MarketValue: 7512.50},
	}
	o := testOrder("o-1", "p-1")
	o.Status = models.OrderStatusFilled

	if err := st.SaveSettlement(ctx, p, o, 1); err != nil {
		t.Fatalf("settling: %v", err)
	}

	loadedP, _ := st.GetPortfolio(ctx, "p-1")
	loadedO, err := st.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("loading order: %v", err)
	}
	if loadedP.CashBalance != 92487.50 || len(loadedP.Positions) != 1 {
		t.Errorf("portfolio = %+v", loadedP)
	}
	if loadedO.Status != models.OrderStatusFilled {
		t.Errorf("order status = %s", loadedO.Status)
	}

	// A conflicting settlement writes neither row.
	p.CashBalance = 0
	o2 := testOrder("o-2", "p-1")
	err = st.SaveSettlement(ctx, p, o2, 1)
	if !apperrors.Is(err, apperrors.ErrConcurrencyConflict) {
		t.Fatalf("err = %v, want ErrConcurrencyConflict", err)
	}
	if _, err := st.GetOrder(ctx, "o-2"); !apperrors.Is(err, apperrors.ErrOrderNotFound) {
		t.Error("conflicting settlement leaked its order row")
	}
	loadedP, _ = st.GetPortfolio(ctx, "p-1")
	if loadedP.CashBalance != 92487.50 {
		t.Errorf("cash = %v, conflicting settlement mutated portfolio", loadedP.CashBalance)
	}
}

func TestSnapshots(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	for i, equity := range []float64{100000, 101000, 99500} {
		snap := &models.EquitySnapshot{
			PortfolioID: "p-1",
			Equity:      equity,
			CashBalance: equity,
			TakenAt:     base.Add(time.Duration(i) * time.Hour),
		}
		if err := st.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("saving snapshot: %v", err)
		}
	}

	snap, err := st.LatestSnapshotBefore(ctx, "p-1", base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("querying: %v", err)
	}
	if snap == nil || snap.Equity != 101000 {
		t.Errorf("snapshot = %+v, want equity 101000", snap)
	}

	snap, err = st.LatestSnapshotBefore(ctx, "p-1", base)
	if err != nil {
		t.Fatalf("querying: %v", err)
	}
	if snap != nil {
		t.Errorf("snapshot = %+v, want nil before first point", snap)
	}

	snap, err = st.LatestSnapshotBefore(ctx, "other", base.Add(time.Hour))
	if err != nil || snap != nil {
		t.Errorf("snapshot = %+v err = %v, want nil for unknown portfolio", snap, err)
	}
}
