// Package portfolio provides holdings, trade-history and tax context
// from the local SQLite portfolio database.
package portfolio

import (
	"context"
	"database/sql"
	"time"

	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
)

// Holding is one position in the portfolio.
type Holding struct {
	Symbol       string
	Quantity     float64
	CostBasisUSD float64
	LastPriceUSD float64
	UpdatedAt    time.Time
}

// Trade is one executed buy or sell.
type Trade struct {
	ID         string
	Symbol     string
	Side       string
	Quantity   float64
	PriceUSD   float64
	FeeUSD     float64
	ExecutedAt time.Time
}

// Store manages the portfolio database.
type Store struct {
	db *sql.DB
}

// Open opens the portfolio database at the given path.
// Creates the tables if they don't exist.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreUnavailable, "opening portfolio database", apperrors.CategorySystem)
	}

	// Set performance pragmas
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, apperrors.Wrap(err, apperrors.CodeStoreUnavailable, "configuring portfolio database", apperrors.CategorySystem)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		description TEXT
	);

	-- ============================================================
	-- HOLDINGS
	-- ============================================================

	CREATE TABLE IF NOT EXISTS holdings (
		symbol          TEXT PRIMARY KEY,
		quantity        REAL NOT NULL DEFAULT 0,
		cost_basis_usd  REAL NOT NULL DEFAULT 0,
		last_price_usd  REAL NOT NULL DEFAULT 0,
		updated_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- ============================================================
	-- TRADES
	-- ============================================================

	CREATE TABLE IF NOT EXISTS trades (
		id              TEXT PRIMARY KEY,
		symbol          TEXT NOT NULL,
		side            TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
		quantity        REAL NOT NULL,
		price_usd       REAL NOT NULL,
		fee_usd         REAL NOT NULL DEFAULT 0,
		executed_at     INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol, executed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_trades_executed ON trades(executed_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreUnavailable, "initializing portfolio schema", apperrors.CategorySystem)
	}

	return ensureSchemaVersion(s.db, 1, "Initial portfolio schema")
}

func ensureSchemaVersion(db *sql.DB, version int, description string) error {
	var current sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "reading schema version", apperrors.CategorySystem)
	}

	if !current.Valid || int(current.Int64) < version {
		_, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version,
			description,
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "recording schema version", apperrors.CategorySystem)
		}
	}

	return nil
}

// UpsertHolding inserts or replaces one position.
func (s *Store) UpsertHolding(ctx context.Context, h Holding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (symbol, quantity, cost_basis_usd, last_price_usd, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			cost_basis_usd = excluded.cost_basis_usd,
			last_price_usd = excluded.last_price_usd,
			updated_at = excluded.updated_at`,
		h.Symbol, h.Quantity, h.CostBasisUSD, h.LastPriceUSD, h.UpdatedAt.Unix())
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "upserting holding", apperrors.CategorySystem)
	}
	return nil
}

// InsertTrade records one executed trade.
func (s *Store) InsertTrade(ctx context.Context, t Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, side, quantity, price_usd, fee_usd, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, t.Side, t.Quantity, t.PriceUSD, t.FeeUSD, t.ExecutedAt.Unix())
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "inserting trade", apperrors.CategorySystem)
	}
	return nil
}

// Holdings returns all positions ordered by market value, largest first.
func (s *Store) Holdings(ctx context.Context) ([]Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, quantity, cost_basis_usd, last_price_usd, updated_at
		FROM holdings
		ORDER BY quantity * last_price_usd DESC`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "querying holdings", apperrors.CategorySystem)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		var updated int64
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.CostBasisUSD, &h.LastPriceUSD, &updated); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "scanning holding", apperrors.CategorySystem)
		}
		h.UpdatedAt = time.Unix(updated, 0).UTC()
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// RecentTrades returns the newest trades, up to limit.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, quantity, price_usd, fee_usd, executed_at
		FROM trades
		ORDER BY executed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "querying trades", apperrors.CategorySystem)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		var executed int64
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Quantity, &t.PriceUSD, &t.FeeUSD, &executed); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "scanning trade", apperrors.CategorySystem)
		}
		t.ExecutedAt = time.Unix(executed, 0).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// TradesInYear returns trades executed in the given calendar year,
// oldest first, for realized gain/loss reporting.
func (s *Store) TradesInYear(ctx context.Context, year int) ([]Trade, error) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	end := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, quantity, price_usd, fee_usd, executed_at
		FROM trades
		WHERE executed_at >= ? AND executed_at < ?
		ORDER BY executed_at ASC`, start, end)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "querying trades by year", apperrors.CategorySystem)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		var executed int64
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Quantity, &t.PriceUSD, &t.FeeUSD, &executed); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStoreQueryFailed, "scanning trade", apperrors.CategorySystem)
		}
		t.ExecutedAt = time.Unix(executed, 0).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
