package quotes

import (
	"context"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"ai-trader/internal/models"
)

// SimProvider simulates market quotes with a per-symbol random walk.
// Every GetQuote call moves the price by a random step bounded by the
// configured volatility, so repeated quotes for the same symbol drift
// like a live feed.
type SimProvider struct {
	mu         sync.Mutex
	volatility float64
	prices     map[string]float64
	opens      map[string]float64 // first price of the session, for change calc
	rng        *rand.Rand
	now        func() time.Time
}

// NewSimProvider creates a simulated provider seeded with the given
// start prices. Symbols not present in startPrices get a deterministic
// base price derived from the symbol name on first lookup.
func NewSimProvider(volatility float64, startPrices map[string]float64) *SimProvider {
	p := &SimProvider{
		volatility: volatility,
		prices:     make(map[string]float64, len(startPrices)),
		opens:      make(map[string]float64, len(startPrices)),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}
	for sym, price := range startPrices {
		sym = strings.ToUpper(sym)
		p.prices[sym] = price
		p.opens[sym] = price
	}
	return p
}

// GetQuote returns the current simulated quote for symbol, advancing
// the random walk by one step.
func (p *SimProvider) GetQuote(_ context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok {
		price = basePrice(symbol)
		p.prices[symbol] = price
		p.opens[symbol] = price
	}

	// One random-walk step: uniform in [-volatility, +volatility].
	step := (p.rng.Float64()*2 - 1) * p.volatility
	price = price * (1 + step)
	if price < 0.01 {
		price = 0.01
	}
	p.prices[symbol] = price

	open := p.opens[symbol]
	change := price - open
	changePct := 0.0
	if open != 0 {
		changePct = change / open * 100
	}

	return &models.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		Timestamp:     p.now(),
	}, nil
}

// SetPrice pins the current price for a symbol. Used by tests and the
// config loader to seed prices after construction.
func (p *SimProvider) SetPrice(symbol string, price float64) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
	if _, ok := p.opens[symbol]; !ok {
		p.opens[symbol] = price
	}
}

// basePrice derives a stable pseudo-price in [10, 510) from the symbol
// name, so unknown symbols always quote the same starting price.
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 10 + float64(h.Sum32()%50000)/100
}
