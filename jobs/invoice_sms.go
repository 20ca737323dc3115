package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/buyer-ledger/internal/ledger"
	"github.com/odyssey-erp/buyer-ledger/internal/shared"
)

// InvoiceDeliverer sends prepared invoice SMS.
type InvoiceDeliverer interface {
	Deliver(ctx context.Context, sess *shared.Session, job ledger.InvoiceJob, totals ledger.Totals) error
}

// JobObserver records job outcomes.
type JobObserver interface {
	ObserveJob(taskType string, err error)
}

// InvoiceSMSJob processes TaskInvoiceSMS tasks.
type InvoiceSMSJob struct {
	deliverer InvoiceDeliverer
	session   *shared.Session
	logger    *slog.Logger
	observer  JobObserver
}

// NewInvoiceSMSJob wires the job. session authenticates the worker against the
// backoffice API.
func NewInvoiceSMSJob(deliverer InvoiceDeliverer, session *shared.Session, logger *slog.Logger, observer JobObserver) *InvoiceSMSJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceSMSJob{deliverer: deliverer, session: session, logger: logger, observer: observer}
}

// Handle delivers one queued invoice SMS.
func (j *InvoiceSMSJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	defer func() {
		if j.observer != nil {
			j.observer.ObserveJob(TaskInvoiceSMS, err)
		}
	}()
	var job ledger.InvoiceJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		j.logger.Error("decode invoice sms task", slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	sess := j.sessionFor(job)
	if err := j.deliverer.Deliver(ctx, sess, job, ledger.TotalsFromPayload(job.Payload)); err != nil {
		j.logger.Warn("deliver invoice sms",
			slog.String("buyer_id", job.Payload.BuyerID),
			slog.Any("error", err))
		if errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	j.logger.Info("invoice sms delivered", slog.String("buyer_id", job.Payload.BuyerID))
	return nil
}

func (j *InvoiceSMSJob) sessionFor(job ledger.InvoiceJob) *shared.Session {
	sess := &shared.Session{TenantID: job.TenantID, User: shared.User{ID: job.SentBy}}
	if j.session != nil {
		sess.Token = j.session.Token
		sess.Settings = j.session.Settings
	}
	return sess
}
