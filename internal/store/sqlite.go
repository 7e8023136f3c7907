// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/models"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Portfolios table. The version column backs the optimistic
	-- concurrency check in SaveSettlement/SavePortfolio.
	CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		cash_balance REAL NOT NULL,
		initial_equity REAL NOT NULL,
		equity REAL NOT NULL,
		total_return REAL NOT NULL DEFAULT 0,
		total_return_percent REAL NOT NULL DEFAULT 0,
		daily_return REAL NOT NULL DEFAULT 0,
		daily_return_percent REAL NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Positions table: one row per (portfolio, symbol). Rows are rewritten
	-- in slice order on every settlement so rowid preserves position order.
	CREATE TABLE IF NOT EXISTS positions (
		portfolio_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		average_entry_price REAL NOT NULL,
		current_price REAL NOT NULL,
		market_value REAL NOT NULL,
		unrealized_pl REAL NOT NULL,
		unrealized_pl_percent REAL NOT NULL,
		PRIMARY KEY (portfolio_id, symbol),
		FOREIGN KEY (portfolio_id) REFERENCES portfolios(id)
	);

	-- Orders table
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		order_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		requested_price REAL NOT NULL,
		stop_price REAL NOT NULL DEFAULT 0,
		limit_price REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		reject_reason TEXT NOT NULL DEFAULT '',
		executed_price REAL NOT NULL DEFAULT 0,
		executed_qty INTEGER NOT NULL DEFAULT 0,
		commission REAL NOT NULL DEFAULT 0,
		realized_pl REAL,
		created_at DATETIME NOT NULL,
		executed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_orders_portfolio ON orders(portfolio_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_orders_owner ON orders(owner_id, created_at);

	-- Equity snapshots for the daily-return batch job
	CREATE TABLE IF NOT EXISTS equity_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id TEXT NOT NULL,
		equity REAL NOT NULL,
		cash_balance REAL NOT NULL,
		taken_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_portfolio ON equity_snapshots(portfolio_id, taken_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreatePortfolio inserts a new portfolio with version 1.
func (s *SQLiteStore) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	p.Version = 1
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolios (
			id, owner_id, cash_balance, initial_equity, equity,
			total_return, total_return_percent, daily_return, daily_return_percent,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.CashBalance, p.InitialEquity, p.Equity,
		p.Performance.TotalReturn, p.Performance.TotalReturnPercent,
		p.Performance.DailyReturn, p.Performance.DailyReturnPercent,
		p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewStoreError("create portfolio", err)
	}
	return nil
}

// GetPortfolio loads a portfolio and its positions by id.
func (s *SQLiteStore) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	p := &models.Portfolio{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, cash_balance, initial_equity, equity,
			total_return, total_return_percent, daily_return, daily_return_percent,
			version, created_at, updated_at
		FROM portfolios WHERE id = ?`, id).Scan(
		&p.ID, &p.OwnerID, &p.CashBalance, &p.InitialEquity, &p.Equity,
		&p.Performance.TotalReturn, &p.Performance.TotalReturnPercent,
		&p.Performance.DailyReturn, &p.Performance.DailyReturnPercent,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get portfolio", err)
	}

	if err := s.loadPositions(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) loadPositions(ctx context.Context, p *models.Portfolio) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, quantity, average_entry_price, current_price,
			market_value, unrealized_pl, unrealized_pl_percent
		FROM positions WHERE portfolio_id = ? ORDER BY rowid`, p.ID)
	if err != nil {
		return apperrors.NewStoreError("load positions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pos models.Position
		if err := rows.Scan(
			&pos.Symbol, &pos.Quantity, &pos.AverageEntryPrice, &pos.CurrentPrice,
			&pos.MarketValue, &pos.UnrealizedPL, &pos.UnrealizedPLPercent,
		); err != nil {
			return apperrors.NewStoreError("scan position", err)
		}
		p.Positions = append(p.Positions, pos)
	}
	return rows.Err()
}

// ListPortfolios returns all portfolios without their positions.
func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, cash_balance, initial_equity, equity,
			total_return, total_return_percent, daily_return, daily_return_percent,
			version, created_at, updated_at
		FROM portfolios ORDER BY created_at`)
	if err != nil {
		return nil, apperrors.NewStoreError("list portfolios", err)
	}
	defer rows.Close()

	var out []models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(
			&p.ID, &p.OwnerID, &p.CashBalance, &p.InitialEquity, &p.Equity,
			&p.Performance.TotalReturn, &p.Performance.TotalReturnPercent,
			&p.Performance.DailyReturn, &p.Performance.DailyReturnPercent,
			&p.Version, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, apperrors.NewStoreError("scan portfolio", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePortfolio writes the portfolio and its positions, guarded by the
// expected version. The stored version is bumped on success.
func (s *SQLiteStore) SavePortfolio(ctx context.Context, p *models.Portfolio, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("begin save portfolio", err)
	}
	defer tx.Rollback()

	if err := s.writePortfolioTx(ctx, tx, p, expectedVersion); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("commit save portfolio", err)
	}
	p.Version = expectedVersion + 1
	return nil
}

// writePortfolioTx updates the portfolio row and rewrites its positions
// inside an open transaction.
func (s *SQLiteStore) writePortfolioTx(ctx context.Context, tx *sql.Tx, p *models.Portfolio, expectedVersion int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE portfolios SET
			cash_balance = ?, equity = ?,
			total_return = ?, total_return_percent = ?,
			daily_return = ?, daily_return_percent = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.CashBalance, p.Equity,
		p.Performance.TotalReturn, p.Performance.TotalReturnPercent,
		p.Performance.DailyReturn, p.Performance.DailyReturnPercent,
		p.UpdatedAt, p.ID, expectedVersion,
	)
	if err != nil {
		return apperrors.NewStoreError("update portfolio", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("update portfolio", err)
	}
	if n == 0 {
		// Either the row is gone or another settlement committed first.
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM portfolios WHERE id = ?`, p.ID).Scan(&exists); err == nil && exists == 0 {
			return apperrors.ErrPortfolioNotFound
		}
		return apperrors.ErrConcurrencyConflict
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE portfolio_id = ?`, p.ID); err != nil {
		return apperrors.NewStoreError("clear positions", err)
	}
	for _, pos := range p.Positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (
				portfolio_id, symbol, quantity, average_entry_price,
				current_price, market_value, unrealized_pl, unrealized_pl_percent
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, pos.Symbol, pos.Quantity, pos.AverageEntryPrice,
			pos.CurrentPrice, pos.MarketValue, pos.UnrealizedPL, pos.UnrealizedPLPercent,
		); err != nil {
			return apperrors.NewStoreError("insert position", err)
		}
	}
	return nil
}

// SaveOrder inserts or replaces an order row.
func (s *SQLiteStore) SaveOrder(ctx context.Context, o *models.Order) error {
	if err := s.writeOrder(ctx, s.db.ExecContext, o); err != nil {
		return err
	}
	return nil
}

type execFunc func(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

func (s *SQLiteStore) writeOrder(ctx context.Context, exec execFunc, o *models.Order) error {
	_, err := exec(ctx, `
		INSERT OR REPLACE INTO orders (
			id, portfolio_id, owner_id, symbol, side, order_type,
			quantity, requested_price, stop_price, limit_price,
			status, reject_reason, executed_price, executed_qty,
			commission, realized_pl, created_at, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.PortfolioID, o.OwnerID, o.Symbol, string(o.Side), string(o.Type),
		o.Quantity, o.RequestedPrice, o.StopPrice, o.LimitPrice,
		string(o.Status), o.RejectReason, o.ExecutedPrice, o.ExecutedQty,
		o.Commission, o.RealizedPL, o.CreatedAt, o.ExecutedAt,
	)
	if err != nil {
		return apperrors.NewStoreError("save order", err)
	}
	return nil
}

// GetOrder loads an order by id.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o := &models.Order{}
	var side, orderType, status string
	var realizedPL sql.NullFloat64
	var executedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, owner_id, symbol, side, order_type,
			quantity, requested_price, stop_price, limit_price,
			status, reject_reason, executed_price, executed_qty,
			commission, realized_pl, created_at, executed_at
		FROM orders WHERE id = ?`, id).Scan(
		&o.ID, &o.PortfolioID, &o.OwnerID, &o.Symbol, &side, &orderType,
		&o.Quantity, &o.RequestedPrice, &o.StopPrice, &o.LimitPrice,
		&status, &o.RejectReason, &o.ExecutedPrice, &o.ExecutedQty,
		&o.Commission, &realizedPL, &o.CreatedAt, &executedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get order", err)
	}
	o.Side = models.OrderSide(side)
	o.Type = models.OrderType(orderType)
	o.Status = models.OrderStatus(status)
	if realizedPL.Valid {
		v := realizedPL.Float64
		o.RealizedPL = &v
	}
	if executedAt.Valid {
		t := executedAt.Time
		o.ExecutedAt = &t
	}
	return o, nil
}

// ListOrders returns orders matching the filter, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := `
		SELECT id, portfolio_id, owner_id, symbol, side, order_type,
			quantity, requested_price, stop_price, limit_price,
			status, reject_reason, executed_price, executed_qty,
			commission, realized_pl, created_at, executed_at
		FROM orders WHERE 1=1`
	var args []interface{}
	var conds []string

	if filter.PortfolioID != "" {
		conds = append(conds, "portfolio_id = ?")
		args = append(args, filter.PortfolioID)
	}
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("list orders", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		var o models.Order
		var side, orderType, status string
		var realizedPL sql.NullFloat64
		var executedAt sql.NullTime
		if err := rows.Scan(
			&o.ID, &o.PortfolioID, &o.OwnerID, &o.Symbol, &side, &orderType,
			&o.Quantity, &o.RequestedPrice, &o.StopPrice, &o.LimitPrice,
			&status, &o.RejectReason, &o.ExecutedPrice, &o.ExecutedQty,
			&o.Commission, &realizedPL, &o.CreatedAt, &executedAt,
		); err != nil {
			return nil, apperrors.NewStoreError("scan order", err)
		}
		o.Side = models.OrderSide(side)
		o.Type = models.OrderType(orderType)
		o.Status = models.OrderStatus(status)
		if realizedPL.Valid {
			v := realizedPL.Float64
			o.RealizedPL = &v
		}
		if executedAt.Valid {
			t := executedAt.Time
			o.ExecutedAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SaveSettlement persists the settled portfolio and its order in one
// transaction. Both writes commit or neither is observable.
func (s *SQLiteStore) SaveSettlement(ctx context.Context, p *models.Portfolio, o *models.Order, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("begin settlement", err)
	}
	defer tx.Rollback()

	if err := s.writePortfolioTx(ctx, tx, p, expectedVersion); err != nil {
		return err
	}
	if err := s.writeOrder(ctx, tx.ExecContext, o); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("commit settlement", err)
	}
	p.Version = expectedVersion + 1
	return nil
}

// SaveSnapshot appends one equity-curve point.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.EquitySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO equity_snapshots (portfolio_id, equity, cash_balance, taken_at)
		VALUES (?, ?, ?, ?)`,
		snap.PortfolioID, snap.Equity, snap.CashBalance, snap.TakenAt,
	)
	if err != nil {
		return apperrors.NewStoreError("save snapshot", err)
	}
	return nil
}

// LatestSnapshotBefore returns the most recent snapshot strictly before t,
// or nil when none exists.
func (s *SQLiteStore) LatestSnapshotBefore(ctx context.Context, portfolioID string, t time.Time) (*models.EquitySnapshot, error) {
	snap := &models.EquitySnapshot{}
	err := s.db.QueryRowContext(ctx, `
		SELECT portfolio_id, equity, cash_balance, taken_at
		FROM equity_snapshots
		WHERE portfolio_id = ? AND taken_at < ?
		ORDER BY taken_at DESC LIMIT 1`, portfolioID, t).Scan(
		&snap.PortfolioID, &snap.Equity, &snap.CashBalance, &snap.TakenAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("latest snapshot", err)
	}
	return snap, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
