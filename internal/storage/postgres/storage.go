package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/domain/repository"
)

// pgxPool is the pool surface the storage consumes. *pgxpool.Pool satisfies
// it, as does the pgx mock in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type receiptRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Receipts returns the receipt repository.
func (s *Storage) Receipts() repository.ReceiptRepository {
	return &receiptRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
            id BIGSERIAL PRIMARY KEY,
            uuid TEXT UNIQUE NOT NULL,
            order_id TEXT NOT NULL,
            site_id TEXT NOT NULL,
            type TEXT NOT NULL,
            subtype TEXT NOT NULL,
            status TEXT NOT NULL,
            taxation INT NOT NULL,
            location TEXT NOT NULL,
            cashbox TEXT NOT NULL,
            content JSONB NOT NULL,
            response_code INT NOT NULL DEFAULT 0,
            response_body TEXT NOT NULL DEFAULT '',
            attempts INT NOT NULL DEFAULT 0,
            start_time TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_order ON receipts(order_id, site_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_status ON receipts(status, start_time)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// receiptContent is the JSONB document holding the parts of a receipt that
// never participate in filtering.
type receiptContent struct {
	Items    []model.ReceiptItem `json:"items"`
	Amount   model.Amount        `json:"amount"`
	Notify   model.Notify        `json:"notify"`
	Customer *model.Customer     `json:"customer,omitempty"`
}

const receiptColumns = `id, uuid, order_id, site_id, type, subtype, status, taxation, location, cashbox,
                   content, response_code, response_body, attempts, start_time, created_at, updated_at`

func (r *receiptRepository) Save(ctx context.Context, receipt *model.Receipt) error {
	content, err := json.Marshal(receiptContent{
		Items:    receipt.Items,
		Amount:   receipt.Amount,
		Notify:   receipt.Notify,
		Customer: receipt.Customer,
	})
	if err != nil {
		return fmt.Errorf("marshal receipt content: %w", err)
	}

	var startTime *time.Time
	if !receipt.StartTime.IsZero() {
		startTime = &receipt.StartTime
	}

	if receipt.ID == 0 {
		const query = `INSERT INTO receipts
                       (uuid, order_id, site_id, type, subtype, status, taxation, location, cashbox,
                        content, response_code, response_body, attempts, start_time)
                       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
                       RETURNING id, created_at, updated_at`
		err := r.storage.pool.QueryRow(ctx, query,
			receipt.UUID, receipt.OrderID, receipt.SiteID, receipt.Type, receipt.SubType, receipt.Status,
			int(receipt.Taxation), receipt.Location, receipt.Cashbox,
			content, receipt.ResponseCode, receipt.ResponseBody, receipt.Attempts, startTime,
		).Scan(&receipt.ID, &receipt.CreatedAt, &receipt.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domainErrors.ErrAlreadyExists
			}
			return err
		}
		return nil
	}

	const query = `UPDATE receipts
                   SET status=$1, content=$2, response_code=$3, response_body=$4,
                       attempts=$5, start_time=$6, updated_at=NOW()
                   WHERE id=$7
                   RETURNING updated_at`
	err = r.storage.pool.QueryRow(ctx, query,
		receipt.Status, content, receipt.ResponseCode, receipt.ResponseBody,
		receipt.Attempts, startTime, receipt.ID,
	).Scan(&receipt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainErrors.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *receiptRepository) GetByID(ctx context.Context, id int64) (*model.Receipt, error) {
	const query = `SELECT ` + receiptColumns + ` FROM receipts WHERE id=$1`
	return r.scanOne(r.storage.pool.QueryRow(ctx, query, id))
}

func (r *receiptRepository) GetByUUID(ctx context.Context, uuid string) (*model.Receipt, error) {
	const query = `SELECT ` + receiptColumns + ` FROM receipts WHERE uuid=$1`
	return r.scanOne(r.storage.pool.QueryRow(ctx, query, uuid))
}

func (r *receiptRepository) GetCollection(ctx context.Context, filter repository.ReceiptFilter) ([]model.Receipt, error) {
	query, args := buildCollectionQuery(filter)
	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func buildCollectionQuery(filter repository.ReceiptFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OrderID != "" {
		conditions = append(conditions, "order_id="+arg(filter.OrderID))
	}
	if filter.SiteID != "" {
		conditions = append(conditions, "site_id="+arg(filter.SiteID))
	}
	if filter.Type != "" {
		conditions = append(conditions, "type="+arg(string(filter.Type)))
	}
	if filter.SubType != "" {
		conditions = append(conditions, "subtype="+arg(string(filter.SubType)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = arg(string(status))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + receiptColumns + ` FROM receipts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *receiptRepository) scanOne(row rowScanner) (*model.Receipt, error) {
	receipt, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return receipt, nil
}

func scanReceipt(row rowScanner) (*model.Receipt, error) {
	var (
		receipt   model.Receipt
		taxation  int
		content   []byte
		startTime *time.Time
	)
	err := row.Scan(
		&receipt.ID, &receipt.UUID, &receipt.OrderID, &receipt.SiteID,
		&receipt.Type, &receipt.SubType, &receipt.Status,
		&taxation, &receipt.Location, &receipt.Cashbox,
		&content, &receipt.ResponseCode, &receipt.ResponseBody, &receipt.Attempts,
		&startTime, &receipt.CreatedAt, &receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	receipt.Taxation = model.Taxation(taxation)
	if startTime != nil {
		receipt.StartTime = *startTime
	}

	var doc receiptContent
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal receipt content: %w", err)
	}
	receipt.Items = doc.Items
	receipt.Amount = doc.Amount
	receipt.Notify = doc.Notify
	receipt.Customer = doc.Customer

	return &receipt, nil
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Logger returns storage logger.
func (s *Storage) Logger() *slog.Logger {
	return s.logger
}
