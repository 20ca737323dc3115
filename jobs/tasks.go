package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/buyer-ledger/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications carries outbound SMS.
	QueueNotifications = "notifications"
	// TaskInvoiceSMS delivers a prepared invoice summary by SMS.
	TaskInvoiceSMS = "ledger:invoice_sms"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

const invoiceSMSMaxRetry = 3

// IdempotencyCleanupPayload configures the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewInvoiceSMSTask constructs an Asynq task for a queued invoice SMS.
func NewInvoiceSMSTask(job ledger.InvoiceJob) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceSMS, data,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(invoiceSMSMaxRetry),
		asynq.Timeout(time.Minute),
	), nil
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		hours = 24
	}
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}

// EnqueueInvoiceSMS satisfies ledger.InvoiceQueue.
func (c *Client) EnqueueInvoiceSMS(ctx context.Context, job ledger.InvoiceJob) error {
	task, err := NewInvoiceSMSTask(job)
	if err != nil {
		return err
	}
	opts := []asynq.Option{}
	if job.IdempotencyKey != "" {
		opts = append(opts, asynq.TaskID(job.IdempotencyKey))
	}
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	return err
}
