package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// NotificationStatus enumerates invoice SMS delivery states.
type NotificationStatus string

const (
	NotificationQueued NotificationStatus = "QUEUED"
	NotificationSent   NotificationStatus = "SENT"
	NotificationFailed NotificationStatus = "FAILED"
)

// NotificationRecord is one invoice SMS attempt.
type NotificationRecord struct {
	ID               uuid.UUID          `json:"id"`
	TenantID         string             `json:"tenant_id"`
	BuyerID          string             `json:"buyer_id"`
	Phone            string             `json:"phone"`
	RangeLabel       string             `json:"range_label"`
	TotalAmount      decimal.Decimal    `json:"total_amount"`
	AmountDue        decimal.Decimal    `json:"amount_due"`
	TransactionCount int                `json:"transaction_count"`
	Status           NotificationStatus `json:"status"`
	Error            string             `json:"error,omitempty"`
	IdempotencyKey   string             `json:"idempotency_key,omitempty"`
	SentBy           string             `json:"sent_by,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Repository provides PostgreSQL backed persistence for the invoice SMS log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordNotification appends an SMS attempt to the log.
func (r *Repository) RecordNotification(ctx context.Context, rec NotificationRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO invoice_notifications (
			id, tenant_id, buyer_id, phone, range_label, total_amount, amount_due,
			transaction_count, status, error, idempotency_key, sent_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.TenantID,
		rec.BuyerID,
		rec.Phone,
		rec.RangeLabel,
		rec.TotalAmount.String(),
		rec.AmountDue.String(),
		rec.TransactionCount,
		string(rec.Status),
		rec.Error,
		rec.IdempotencyKey,
		rec.SentBy,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: record notification: %w", err)
	}
	return nil
}

// ListNotifications returns the latest SMS attempts for a buyer.
func (r *Repository) ListNotifications(ctx context.Context, tenantID, buyerID string, limit int) ([]NotificationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, tenant_id, buyer_id, phone, range_label, total_amount::text, amount_due::text,
			transaction_count, status, error, idempotency_key, sent_by, created_at
		FROM invoice_notifications
		WHERE tenant_id = $1 AND buyer_id = $2
		ORDER BY created_at DESC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query, tenantID, buyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list notifications: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("ledger: scan notifications: %w", err)
	}
	return records, nil
}

func scanNotification(row pgx.CollectableRow) (NotificationRecord, error) {
	var (
		rec        NotificationRecord
		total, due string
		status     string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.BuyerID,
		&rec.Phone,
		&rec.RangeLabel,
		&total,
		&due,
		&rec.TransactionCount,
		&status,
		&rec.Error,
		&rec.IdempotencyKey,
		&rec.SentBy,
		&rec.CreatedAt,
	); err != nil {
		return NotificationRecord{}, err
	}
	var err error
	if rec.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return NotificationRecord{}, err
	}
	if rec.AmountDue, err = decimal.NewFromString(due); err != nil {
		return NotificationRecord{}, err
	}
	rec.Status = NotificationStatus(status)
	return rec, nil
}
