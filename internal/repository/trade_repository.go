package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tradebot/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
	ErrTradeExists   = errors.New("trade already exists")
)

// uniqueViolation - код ошибки PostgreSQL для нарушения уникальности
const uniqueViolation = pq.ErrorCode("23505")

// DefaultListLimit - размер выборки, если лимит не задан
const DefaultListLimit = 50

// MaxListLimit - верхняя граница выборки
const MaxListLimit = 500

// Schema - таблицы журнала сделок
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id UUID PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		action VARCHAR(20) NOT NULL,
		exchange VARCHAR(20) NOT NULL,
		ticker VARCHAR(30) NOT NULL,
		side VARCHAR(10) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		is_test_platform BOOLEAN NOT NULL DEFAULT false,
		is_dry_run BOOLEAN NOT NULL DEFAULT false,
		summary JSONB,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_user_created ON trades (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS trade_orders (
		id SERIAL PRIMARY KEY,
		trade_id UUID NOT NULL REFERENCES trades(id) ON DELETE CASCADE,
		seq INT NOT NULL,
		order_id VARCHAR(36) NOT NULL,
		kind VARCHAR(30) NOT NULL,
		side VARCHAR(10) NOT NULL,
		type VARCHAR(30) NOT NULL,
		quantity DECIMAL(30, 12) NOT NULL DEFAULT 0,
		trigger_price DECIMAL(30, 12) NOT NULL DEFAULT 0,
		limit_price DECIMAL(30, 12) NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
}

// TradeRepository - журнал сделок (таблицы trades и trade_orders)
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Migrate создает таблицы, если их нет
func (r *TradeRepository) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Create записывает сделку и её ордера в одной транзакции.
// Пустой ID заполняется UUID, CreatedAt - текущим временем.
func (r *TradeRepository) Create(ctx context.Context, trade *models.TradeRecord) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	trade.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (id, user_id, action, exchange, ticker, side, status, error_message,
			is_test_platform, is_dry_run, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		trade.ID,
		trade.UserID,
		trade.Action,
		trade.Exchange,
		trade.Ticker,
		trade.Side,
		trade.Status,
		trade.ErrorMessage,
		trade.IsTestPlatform,
		trade.IsDryRun,
		nullableJSON(trade.Summary),
		trade.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrTradeExists
		}
		return err
	}

	for i := range trade.Orders {
		o := &trade.Orders[i]
		o.TradeID = trade.ID
		o.CreatedAt = trade.CreatedAt

		err := tx.QueryRowContext(ctx, `
			INSERT INTO trade_orders (trade_id, seq, order_id, kind, side, type, quantity, trigger_price, limit_price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			o.TradeID,
			o.Seq,
			o.OrderID,
			o.Kind,
			o.Side,
			o.Type,
			o.Quantity,
			o.TriggerPrice,
			o.LimitPrice,
			o.CreatedAt,
		).Scan(&o.ID)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert order %s: %w", o.OrderID, err)
		}
	}

	return tx.Commit()
}

const tradeColumns = `id, user_id, action, exchange, ticker, side, status, error_message,
	is_test_platform, is_dry_run, summary, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*models.TradeRecord, error) {
	t := &models.TradeRecord{}
	var summary []byte
	err := s.Scan(
		&t.ID,
		&t.UserID,
		&t.Action,
		&t.Exchange,
		&t.Ticker,
		&t.Side,
		&t.Status,
		&t.ErrorMessage,
		&t.IsTestPlatform,
		&t.IsDryRun,
		&summary,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(summary) > 0 {
		t.Summary = summary
	}
	return t, nil
}

// GetByID возвращает сделку вместе с ордерами
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*models.TradeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trade_id, seq, order_id, kind, side, type, quantity, trigger_price, limit_price, created_at
		FROM trade_orders
		WHERE trade_id = $1
		ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o models.TradeOrderRecord
		err := rows.Scan(
			&o.ID,
			&o.TradeID,
			&o.Seq,
			&o.OrderID,
			&o.Kind,
			&o.Side,
			&o.Type,
			&o.Quantity,
			&o.TriggerPrice,
			&o.LimitPrice,
			&o.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trade.Orders = append(trade.Orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trade, nil
}

// List возвращает последние сделки по фильтру, без ордеров
func (r *TradeRepository) List(ctx context.Context, filter models.TradeFilter) ([]*models.TradeRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Ticker != "" {
		args = append(args, filter.Ticker)
		where = append(where, fmt.Sprintf("ticker = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	args = append(args, limit)

	query := `SELECT ` + tradeColumns + ` FROM trades`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// nullableJSON пишет NULL вместо пустого JSON
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
