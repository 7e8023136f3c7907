package trading

import (
	"testing"

	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/models"
)

func validRequest() OrderRequest {
	return OrderRequest{
		PortfolioID: "p-1",
		Symbol:      "AAPL",
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		Quantity:    10,
		Price:       150,
	}
}

func TestNewOrder_Valid(t *testing.T) {
	o, err := NewOrder("owner-1", validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID == "" {
		t.Error("expected generated order ID")
	}
	if o.Status != models.OrderStatusOpen {
		t.Errorf("status = %s, want OPEN", o.Status)
	}
	if o.OwnerID != "owner-1" {
		t.Errorf("owner = %s, want owner-1", o.OwnerID)
	}
}

func TestNewOrder_NormalizesSymbol(t *testing.T) {
	req := validRequest()
	req.Symbol = "  aapl "
	o, err := NewOrder("owner-1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", o.Symbol)
	}
}

func TestNewOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OrderRequest)
	}{
		{"empty symbol", func(r *OrderRequest) { r.Symbol = "" }},
		{"empty portfolio", func(r *OrderRequest) { r.PortfolioID = "" }},
		{"zero quantity", func(r *OrderRequest) { r.Quantity = 0 }},
		{"negative quantity", func(r *OrderRequest) { r.Quantity = -5 }},
		{"negative price", func(r *OrderRequest) { r.Price = -1 }},
		{"bad side", func(r *OrderRequest) { r.Side = "SHORT" }},
		{"bad type", func(r *OrderRequest) { r.Type = "TRAILING" }},
		{"limit without limit price", func(r *OrderRequest) { r.Type = models.OrderTypeLimit }},
		{"stop without stop price", func(r *OrderRequest) { r.Type = models.OrderTypeStop }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			o, err := NewOrder("owner-1", req)
			if o != nil {
				t.Error("expected no order on validation failure")
			}
			var vErr *apperrors.ValidationError
			if !apperrors.As(err, &vErr) {
				t.Errorf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestNewOrder_LimitAndStopRequirePrices(t *testing.T) {
	req := validRequest()
	req.Type = models.OrderTypeLimit
	req.LimitPrice = 145
	if _, err := NewOrder("owner-1", req); err != nil {
		t.Errorf("limit order with limit price: %v", err)
	}

	req = validRequest()
	req.Type = models.OrderTypeStop
	req.StopPrice = 140
	if _, err := NewOrder("owner-1", req); err != nil {
		t.Errorf("stop order with stop price: %v", err)
	}
}

func TestCancel_TerminalStates(t *testing.T) {
	for _, status := range []models.OrderStatus{
		models.OrderStatusFilled,
		models.OrderStatusCanceled,
		models.OrderStatusRejected,
	} {
		t.Run(string(status), func(t *testing.T) {
			o, _ := NewOrder("owner-1", validRequest())
			o.Status = status

			err := cancel(o)
			if !apperrors.Is(err, apperrors.ErrInvalidStateTransition) {
				t.Errorf("err = %v, want ErrInvalidStateTransition", err)
			}
			if o.Status != status {
				t.Errorf("status mutated to %s", o.Status)
			}
		})
	}
}

func TestCancel_OpenOrder(t *testing.T) {
	o, _ := NewOrder("owner-1", validRequest())
	if err := cancel(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != models.OrderStatusCanceled {
		t.Errorf("status = %s, want CANCELED", o.Status)
	}
}
