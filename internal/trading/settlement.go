package trading

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/logging"
	"ai-trader/internal/models"
	"ai-trader/internal/notify"
	"ai-trader/internal/quotes"
	"ai-trader/internal/store"
)

// Engine settles orders against portfolios. It is the only writer of
// portfolio state: every mutation runs under the portfolio's settlement
// lock and commits through a single versioned store write, so a
// portfolio never reflects a half-applied order.
type Engine struct {
	store    store.Store
	quotes   quotes.Provider
	notifier notify.Notifier
	logger   zerolog.Logger

	commission  float64
	initialCash float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineConfig holds settlement engine parameters.
type EngineConfig struct {
	Commission  float64 // flat commission per fill
	InitialCash float64 // default cash for new portfolios
}

// NewEngine creates a settlement engine.
func NewEngine(st store.Store, qp quotes.Provider, n notify.Notifier, logger zerolog.Logger, cfg EngineConfig) *Engine {
	if n == nil {
		n = notify.NewNoOpNotifier()
	}
	return &Engine{
		store:       st,
		quotes:      qp,
		notifier:    n,
		logger:      logger,
		commission:  cfg.Commission,
		initialCash: cfg.InitialCash,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockPortfolio returns the settlement lock for a portfolio, creating
// it on first use. Locks are never removed; the per-portfolio footprint
// is one mutex.
func (e *Engine) lockPortfolio(portfolioID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[portfolioID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[portfolioID] = l
	}
	return l
}

// CreatePortfolio creates a new portfolio for ownerID. A non-positive
// initialCash falls back to the engine's configured default.
func (e *Engine) CreatePortfolio(ctx context.Context, ownerID string, initialCash float64) (*models.Portfolio, error) {
	if ownerID == "" {
		return nil, apperrors.NewValidationError("owner_id", ownerID, "must not be empty")
	}
	if initialCash < 0 {
		return nil, apperrors.NewValidationError("initial_cash", initialCash, "must be non-negative")
	}
	if initialCash == 0 {
		initialCash = e.initialCash
	}

	now := time.Now()
	p := &models.Portfolio{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		CashBalance:   initialCash,
		InitialEquity: initialCash,
		Equity:        initialCash,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.store.CreatePortfolio(ctx, p); err != nil {
		return nil, err
	}

	plog := logging.WithPortfolio(e.logger, p.ID)
	plog.Info().
		Str("owner_id", ownerID).
		Float64("initial_cash", initialCash).
		Msg("Portfolio created")

	return p, nil
}

// GetPortfolio loads a portfolio, marks its positions to market with
// fresh quotes, and returns it. A portfolio owned by someone else is
// reported as not found.
func (e *Engine) GetPortfolio(ctx context.Context, ownerID, portfolioID string) (*models.Portfolio, error) {
	p, err := e.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, apperrors.ErrPortfolioNotFound
	}

	prices := make(map[string]float64, len(p.Positions))
	for _, pos := range p.Positions {
		q, err := e.quotes.GetQuote(ctx, pos.Symbol)
		if err != nil {
			continue // keep last known price
		}
		prices[pos.Symbol] = q.Price
	}
	MarkToMarket(p, prices)

	return p, nil
}

// ListPortfolios returns all portfolios owned by ownerID.
func (e *Engine) ListPortfolios(ctx context.Context, ownerID string) ([]models.Portfolio, error) {
	all, err := e.store.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Portfolio
	for _, p := range all {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// SubmitOrder validates, settles, and persists an order.
//
// Market orders fill synchronously: the fill is applied to the position
// ledger, cash is adjusted, equity is recomputed, and the portfolio and
// order commit in one transaction. Limit and stop orders are recorded
// OPEN and never auto-fill.
//
// A rejected order is still persisted, and is returned together with
// the error that caused the rejection.
func (e *Engine) SubmitOrder(ctx context.Context, ownerID string, req OrderRequest) (*models.Order, error) {
	order, err := NewOrder(ownerID, req)
	if err != nil {
		return nil, err
	}

	lock := e.lockPortfolio(order.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	p, err := e.store.GetPortfolio(ctx, order.PortfolioID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, apperrors.ErrPortfolioNotFound
	}

	if order.Type != models.OrderTypeMarket {
		// Resting order: no fill, no ledger mutation.
		if err := e.store.SaveOrder(ctx, order); err != nil {
			return nil, err
		}
		olog := logging.WithOrderID(e.logger, order.ID)
		olog.Info().
			Str("symbol", order.Symbol).
			Str("type", string(order.Type)).
			Msg("Order accepted")
		return order, nil
	}

	return e.settleMarketOrder(ctx, p, order)
}

// settleMarketOrder fills a market order against the portfolio and
// commits the settlement. The caller holds the portfolio lock.
func (e *Engine) settleMarketOrder(ctx context.Context, p *models.Portfolio, order *models.Order) (*models.Order, error) {
	expectedVersion := p.Version

	price := e.executionPrice(ctx, order)
	if price <= 0 {
		reject(order, "no execution price available")
		return e.commitRejection(ctx, order,
			apperrors.NewOrderError(order.ID, order.Symbol, "settle", order.RejectReason, apperrors.ErrSymbolNotFound))
	}

	if order.Side == models.OrderSideSell {
		if err := checkSellable(p, order.Symbol, order.Quantity); err != nil {
			reject(order, err.Error())
			return e.commitRejection(ctx, order,
				apperrors.NewOrderError(order.ID, order.Symbol, "settle", "insufficient position", err))
		}
	}

	fill(order, price, order.Quantity, e.commission, time.Now())

	switch order.Side {
	case models.OrderSideBuy:
		ApplyBuyFill(p, order.Symbol, order.ExecutedQty, price, order.Commission)
	case models.OrderSideSell:
		realized := ApplySellFill(p, order.Symbol, order.ExecutedQty, price, order.Commission)
		order.RealizedPL = &realized
	}
	RecomputeEquity(p)

	if err := e.store.SaveSettlement(ctx, p, order, expectedVersion); err != nil {
		return nil, err
	}

	logging.LogFill(e.logger, order)
	logging.LogSettlement(e.logger, p.ID, p.CashBalance, p.Equity)
	e.notifyAsync(func(ctx context.Context) error { return e.notifier.SendFill(ctx, order) })

	return order, nil
}

// commitRejection persists a rejected order and returns it with the
// rejection error. The portfolio is untouched.
func (e *Engine) commitRejection(ctx context.Context, order *models.Order, rejErr error) (*models.Order, error) {
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	logging.LogRejection(e.logger, order)
	e.notifyAsync(func(ctx context.Context) error { return e.notifier.SendRejection(ctx, order) })
	return order, rejErr
}

// executionPrice resolves the fill price for a market order: the live
// quote when available, otherwise the caller's requested price.
func (e *Engine) executionPrice(ctx context.Context, order *models.Order) float64 {
	if e.quotes != nil {
		if q, err := e.quotes.GetQuote(ctx, order.Symbol); err == nil && q.Price > 0 {
			return q.Price
		}
	}
	return order.RequestedPrice
}

// notifyAsync dispatches a notification without blocking settlement.
func (e *Engine) notifyAsync(send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("Notification failed")
		}
	}()
}

// CancelOrder cancels an open order. Orders in a terminal state cannot
// be canceled.
func (e *Engine) CancelOrder(ctx context.Context, ownerID, orderID string) (*models.Order, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerID != ownerID {
		return nil, apperrors.ErrOrderNotFound
	}

	lock := e.lockPortfolio(order.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock so a concurrent settlement is observed.
	order, err = e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := cancel(order); err != nil {
		return nil, err
	}
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return nil, err
	}

	olog := logging.WithOrderID(e.logger, order.ID)
	olog.Info().
		Str("symbol", order.Symbol).
		Msg("Order canceled")

	return order, nil
}

// GetOrder loads a single order owned by ownerID.
func (e *Engine) GetOrder(ctx context.Context, ownerID, orderID string) (*models.Order, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerID != ownerID {
		return nil, apperrors.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns ownerID's orders matching the filter.
func (e *Engine) ListOrders(ctx context.Context, ownerID string, filter store.OrderFilter) ([]models.Order, error) {
	filter.OwnerID = ownerID
	return e.store.ListOrders(ctx, filter)
}
