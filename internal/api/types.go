package api

import (
	"time"

	"ai-trader/internal/models"
)

// Request bodies.

type loginRequest struct {
	OwnerID string `json:"owner_id"`
}

type createPortfolioRequest struct {
	InitialCash float64 `json:"initial_cash"`
}

type submitOrderRequest struct {
	PortfolioID string  `json:"portfolio_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Type        string  `json:"type"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
	LimitPrice  float64 `json:"limit_price"`
	StopPrice   float64 `json:"stop_price"`
}

// Response bodies.

type sessionJSON struct {
	Token     string    `json:"token"`
	OwnerID   string    `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type positionJSON struct {
	Symbol              string  `json:"symbol"`
	Quantity            int64   `json:"quantity"`
	AverageEntryPrice   float64 `json:"average_entry_price"`
	CurrentPrice        float64 `json:"current_price"`
	MarketValue         float64 `json:"market_value"`
	UnrealizedPL        float64 `json:"unrealized_pl"`
	UnrealizedPLPercent float64 `json:"unrealized_pl_percent"`
}

type performanceJSON struct {
	TotalReturn        float64 `json:"total_return"`
	TotalReturnPercent float64 `json:"total_return_percent"`
	DailyReturn        float64 `json:"daily_return"`
	DailyReturnPercent float64 `json:"daily_return_percent"`
}

type portfolioJSON struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	CashBalance float64         `json:"cash_balance"`
	Equity      float64         `json:"equity"`
	Positions   []positionJSON  `json:"positions"`
	Performance performanceJSON `json:"performance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type orderJSON struct {
	ID             string     `json:"id"`
	PortfolioID    string     `json:"portfolio_id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"`
	Type           string     `json:"type"`
	Quantity       int64      `json:"quantity"`
	RequestedPrice float64    `json:"requested_price,omitempty"`
	LimitPrice     float64    `json:"limit_price,omitempty"`
	StopPrice      float64    `json:"stop_price,omitempty"`
	Status         string     `json:"status"`
	RejectReason   string     `json:"reject_reason,omitempty"`
	ExecutedPrice  float64    `json:"executed_price,omitempty"`
	ExecutedQty    int64      `json:"executed_qty,omitempty"`
	Commission     float64    `json:"commission,omitempty"`
	RealizedPL     *float64   `json:"realized_pl,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
}

type quoteJSON struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

type predictionJSON struct {
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"`
	CurrentPrice float64   `json:"current_price"`
	TargetPrice  float64   `json:"target_price"`
	Confidence   float64   `json:"confidence"`
	Horizon      string    `json:"horizon"`
	GeneratedAt  time.Time `json:"generated_at"`
}

func convertPortfolio(p *models.Portfolio) portfolioJSON {
	positions := make([]positionJSON, 0, len(p.Positions))
	for _, pos := range p.Positions {
		positions = append(positions, positionJSON{
			Symbol:              pos.Symbol,
			Quantity:            pos.Quantity,
			AverageEntryPrice:   pos.AverageEntryPrice,
			CurrentPrice:        pos.CurrentPrice,
			MarketValue:         pos.MarketValue,
			UnrealizedPL:        pos.UnrealizedPL,
			UnrealizedPLPercent: pos.UnrealizedPLPercent,
		})
	}
	return portfolioJSON{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		CashBalance: p.CashBalance,
		Equity:      p.Equity,
		Positions:   positions,
		Performance: performanceJSON{
			TotalReturn:        p.Performance.TotalReturn,
			TotalReturnPercent: p.Performance.TotalReturnPercent,
			DailyReturn:        p.Performance.DailyReturn,
			DailyReturnPercent: p.Performance.DailyReturnPercent,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func convertOrder(o *models.Order) orderJSON {
	return orderJSON{
		ID:             o.ID,
		PortfolioID:    o.PortfolioID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Type:           string(o.Type),
		Quantity:       o.Quantity,
		RequestedPrice: o.RequestedPrice,
		LimitPrice:     o.LimitPrice,
		StopPrice:      o.StopPrice,
		Status:         string(o.Status),
		RejectReason:   o.RejectReason,
		ExecutedPrice:  o.ExecutedPrice,
		ExecutedQty:    o.ExecutedQty,
		Commission:     o.Commission,
		RealizedPL:     o.RealizedPL,
		CreatedAt:      o.CreatedAt,
		ExecutedAt:     o.ExecutedAt,
	}
}
