// Package quotes provides market quote lookup for the trading platform.
package quotes

import (
	"context"

	"ai-trader/internal/models"
)

// Provider supplies the current quote for a symbol.
//
// Implementations return errors.ErrSymbolNotFound when the symbol is
// unknown and cannot be priced.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}
