// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"ai-trader/internal/models"
)

// Store defines the interface for portfolio and order persistence.
//
// SaveSettlement is the only write that mutates a portfolio together with an
// order; it must commit both or neither, and must fail with
// errors.ErrConcurrencyConflict when the portfolio row no longer carries the
// expected version.
type Store interface {
	// Portfolios
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]models.Portfolio, error)
	SavePortfolio(ctx context.Context, p *models.Portfolio, expectedVersion int64) error

	// Orders
	SaveOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)

	// Settlement: portfolio + order in one transaction.
	SaveSettlement(ctx context.Context, p *models.Portfolio, o *models.Order, expectedVersion int64) error

	// Equity curve
	SaveSnapshot(ctx context.Context, s *models.EquitySnapshot) error
	LatestSnapshotBefore(ctx context.Context, portfolioID string, t time.Time) (*models.EquitySnapshot, error)

	// Lifecycle
	Close() error
}

// OrderFilter represents filters for querying orders.
type OrderFilter struct {
	PortfolioID string
	OwnerID     string
	Symbol      string
	Status      models.OrderStatus
	Limit       int
}
