package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-engine/internal/models"
)

// Journal is a local SQLite mirror of recorded orders and completed trades,
// used by the status and journal commands. The key-value store stays the
// authoritative position record; the journal is for local querying only.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (or creates) the journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	-- Orders table mirrors the append-only order log
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		mode TEXT NOT NULL,
		timestamp_millis INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);

	-- Completed trades
	CREATE TABLE IF NOT EXISTS trades (
		trade_id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		strategy TEXT,
		signal_type TEXT,
		entry_price REAL NOT NULL,
		exit_price REAL,
		quantity INTEGER NOT NULL,
		pnl REAL,
		opened_at DATETIME,
		closed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	`
	_, err := j.db.Exec(schema)
	return err
}

// AppendOrder writes an order record to the journal.
func (j *Journal) AppendOrder(ctx context.Context, rec models.OrderRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, symbol, side, quantity, price, mode, timestamp_millis)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.Symbol, string(rec.Side), rec.Quantity, rec.Price, string(rec.Mode), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting order %s: %w", rec.OrderID, err)
	}
	return nil
}

// Orders returns the most recent orders for a symbol, newest first. An empty
// symbol returns orders across all instruments.
func (j *Journal) Orders(ctx context.Context, symbol string, limit int) ([]models.OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT order_id, symbol, side, quantity, price, mode, timestamp_millis
		FROM orders`
	args := []interface{}{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY timestamp_millis DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var records []models.OrderRecord
	for rows.Next() {
		var rec models.OrderRecord
		var side, mode string
		if err := rows.Scan(&rec.OrderID, &rec.Symbol, &side, &rec.Quantity, &rec.Price, &mode, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		rec.Side = models.OrderSide(side)
		rec.Mode = models.OrderMode(mode)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordTradeOpen journals a newly admitted trade.
func (j *Journal) RecordTradeOpen(ctx context.Context, trade models.ActiveTradeRecord, quantity int) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades (trade_id, symbol, strategy, signal_type, entry_price, quantity, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trade.TradeID, trade.Symbol, trade.Strategy, string(trade.Type), trade.EntryPrice, quantity, trade.SignalTime)
	if err != nil {
		return fmt.Errorf("inserting trade %s: %w", trade.TradeID, err)
	}
	return nil
}

// RecordTradeClose marks a journaled trade as closed.
func (j *Journal) RecordTradeClose(ctx context.Context, tradeID string, exitPrice, pnl float64) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE trades SET exit_price = ?, pnl = ?, closed_at = ? WHERE trade_id = ?`,
		exitPrice, pnl, time.Now(), tradeID)
	if err != nil {
		return fmt.Errorf("closing trade %s: %w", tradeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("closing trade %s: no such trade", tradeID)
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
