// Package models provides domain models for the trading platform.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// OrderStatus represents the lifecycle state of an order.
// An order starts OPEN and transitions exactly once to FILLED, CANCELED,
// or REJECTED. All three are terminal.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "OPEN"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// Terminal reports whether the status is a terminal lifecycle state.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCanceled || s == OrderStatusRejected
}

// Position represents an open long position in a single symbol.
// A position with Quantity == 0 is never stored; it is removed from the
// portfolio instead.
type Position struct {
	Symbol              string
	Quantity            int64
	AverageEntryPrice   float64
	CurrentPrice        float64
	MarketValue         float64
	UnrealizedPL        float64
	UnrealizedPLPercent float64
}

// PerformanceSnapshot holds derived return metrics for a portfolio.
// Total return fields are recomputed on every settlement; daily return
// fields are produced by the periodic snapshot job.
type PerformanceSnapshot struct {
	TotalReturn        float64
	TotalReturnPercent float64
	DailyReturn        float64
	DailyReturnPercent float64
}

// Portfolio represents a single owner's account: free cash plus open
// positions. Equity is derived and kept consistent with CashBalance and
// Positions after every committed settlement.
type Portfolio struct {
	ID            string
	OwnerID       string
	CashBalance   float64
	InitialEquity float64
	Equity        float64
	Positions     []Position
	Performance   PerformanceSnapshot
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Position returns the position for the given symbol, if any.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return pos, true
		}
	}
	return Position{}, false
}

// SetPosition replaces the position for pos.Symbol, appending it if the
// symbol is new. Symbols are unique within a portfolio.
func (p *Portfolio) SetPosition(pos Position) {
	for i := range p.Positions {
		if p.Positions[i].Symbol == pos.Symbol {
			p.Positions[i] = pos
			return
		}
	}
	p.Positions = append(p.Positions, pos)
}

// RemovePosition deletes the position for the given symbol, preserving the
// order of the remaining positions.
func (p *Portfolio) RemovePosition(symbol string) {
	for i := range p.Positions {
		if p.Positions[i].Symbol == symbol {
			p.Positions = append(p.Positions[:i], p.Positions[i+1:]...)
			return
		}
	}
}

// Quote represents a market quote for a symbol.
type Quote struct {
	Symbol        string
	Price         float64
	Change        float64
	ChangePercent float64
	Timestamp     time.Time
}

// EquitySnapshot is one point on a portfolio's equity curve, recorded by
// the periodic snapshot job.
type EquitySnapshot struct {
	PortfolioID string
	Equity      float64
	CashBalance float64
	TakenAt     time.Time
}
