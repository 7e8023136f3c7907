package models

import "time"

// Order represents a trading order against a single portfolio.
//
// RequestedPrice is the caller-supplied reference price. Market orders
// execute immediately at the quoted price (falling back to the requested
// price when no quote is available); limit and stop orders stay OPEN and
// never auto-fill in this platform.
type Order struct {
	ID             string
	PortfolioID    string
	OwnerID        string
	Symbol         string
	Side           OrderSide
	Type           OrderType
	Quantity       int64
	RequestedPrice float64
	StopPrice      float64
	LimitPrice     float64

	Status         OrderStatus
	RejectReason   string
	ExecutedPrice  float64
	ExecutedQty    int64
	Commission     float64
	RealizedPL     *float64 // set only on a sell fill
	CreatedAt      time.Time
	ExecutedAt     *time.Time
}
