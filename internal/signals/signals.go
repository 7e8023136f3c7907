// Package signals generates trade predictions for symbols.
package signals

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/models"
	"ai-trader/internal/quotes"
)

// Horizons a prediction may target.
var horizons = []string{"1d", "1w", "1m"}

// Generator produces randomized directional predictions anchored to the
// current quote. Predictions are advisory only; nothing in the platform
// acts on them automatically.
type Generator struct {
	quotes quotes.Provider

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a prediction generator backed by the given quote
// provider.
func NewGenerator(qp quotes.Provider) *Generator {
	return &Generator{
		quotes: qp,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Predict returns a prediction for the symbol. The direction is random,
// the target price is a bounded move from the current quote, and the
// confidence is scaled to the size of the predicted move.
func (g *Generator) Predict(ctx context.Context, symbol string) (*models.Prediction, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, apperrors.NewValidationError("symbol", symbol, "must not be empty")
	}

	q, err := g.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	direction := models.OrderSideBuy
	if g.rng.Float64() < 0.5 {
		direction = models.OrderSideSell
	}
	move := 0.01 + g.rng.Float64()*0.09 // 1% to 10%
	horizon := horizons[g.rng.Intn(len(horizons))]
	g.mu.Unlock()

	target := q.Price * (1 + move)
	if direction == models.OrderSideSell {
		target = q.Price * (1 - move)
	}

	// Larger predicted moves get less confidence.
	confidence := 90 - move*500
	if confidence < 50 {
		confidence = 50
	}

	return &models.Prediction{
		Symbol:       symbol,
		Direction:    direction,
		CurrentPrice: q.Price,
		TargetPrice:  target,
		Confidence:   confidence,
		Horizon:      horizon,
		GeneratedAt:  time.Now(),
	}, nil
}
