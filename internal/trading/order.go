package trading

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/models"
)

// OrderRequest is a caller's request to place an order against a
// portfolio.
type OrderRequest struct {
	PortfolioID string
	Symbol      string
	Side        models.OrderSide
	Type        models.OrderType
	Quantity    int64
	Price       float64 // reference price; fallback when no quote is available
	LimitPrice  float64 // required for LIMIT orders
	StopPrice   float64 // required for STOP orders
}

// NewOrder validates the request and builds an OPEN order from it.
// Validation failures return a *errors.ValidationError and no order.
func NewOrder(ownerID string, req OrderRequest) (*models.Order, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, apperrors.NewValidationError("symbol", req.Symbol, "must not be empty")
	}
	if req.PortfolioID == "" {
		return nil, apperrors.NewValidationError("portfolio_id", req.PortfolioID, "must not be empty")
	}
	if req.Quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity", req.Quantity, "must be positive")
	}
	if req.Price < 0 {
		return nil, apperrors.NewValidationError("price", req.Price, "must be non-negative")
	}

	switch req.Side {
	case models.OrderSideBuy, models.OrderSideSell:
	default:
		return nil, apperrors.NewValidationError("side", req.Side, "must be BUY or SELL")
	}

	switch req.Type {
	case models.OrderTypeMarket:
	case models.OrderTypeLimit:
		if req.LimitPrice <= 0 {
			return nil, apperrors.NewValidationError("limit_price", req.LimitPrice, "must be positive for LIMIT orders")
		}
	case models.OrderTypeStop:
		if req.StopPrice <= 0 {
			return nil, apperrors.NewValidationError("stop_price", req.StopPrice, "must be positive for STOP orders")
		}
	default:
		return nil, apperrors.NewValidationError("type", req.Type, "must be MARKET, LIMIT, or STOP")
	}

	return &models.Order{
		ID:             uuid.New().String(),
		PortfolioID:    req.PortfolioID,
		OwnerID:        ownerID,
		Symbol:         symbol,
		Side:           req.Side,
		Type:           req.Type,
		Quantity:       req.Quantity,
		RequestedPrice: req.Price,
		LimitPrice:     req.LimitPrice,
		StopPrice:      req.StopPrice,
		Status:         models.OrderStatusOpen,
		CreatedAt:      time.Now(),
	}, nil
}

// fill transitions an open order to FILLED at the given execution price.
func fill(o *models.Order, price float64, qty int64, commission float64, at time.Time) {
	o.Status = models.OrderStatusFilled
	o.ExecutedPrice = price
	o.ExecutedQty = qty
	o.Commission = commission
	o.ExecutedAt = &at
}

// reject transitions an open order to REJECTED with the given reason.
// Rejected orders are persisted so the rejection is auditable.
func reject(o *models.Order, reason string) {
	o.Status = models.OrderStatusRejected
	o.RejectReason = reason
}

// cancel transitions an open order to CANCELED. Terminal orders cannot
// transition again.
func cancel(o *models.Order) error {
	if o.Status.Terminal() {
		return apperrors.NewOrderError(o.ID, o.Symbol, "cancel",
			"order is "+string(o.Status), apperrors.ErrInvalidStateTransition)
	}
	o.Status = models.OrderStatusCanceled
	return nil
}
