package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/buyer-ledger/internal/ledger"
	"github.com/odyssey-erp/buyer-ledger/internal/shared"
)

type fakeDeliverer struct {
	err      error
	sessions []*shared.Session
	jobs     []ledger.InvoiceJob
	totals   []ledger.Totals
}

func (f *fakeDeliverer) Deliver(ctx context.Context, sess *shared.Session, job ledger.InvoiceJob, totals ledger.Totals) error {
	f.sessions = append(f.sessions, sess)
	f.jobs = append(f.jobs, job)
	f.totals = append(f.totals, totals)
	return f.err
}

type observedJob struct {
	taskType string
	err      error
}

type fakeObserver struct {
	seen []observedJob
}

func (f *fakeObserver) ObserveJob(taskType string, err error) {
	f.seen = append(f.seen, observedJob{taskType: taskType, err: err})
}

func invoiceJob() ledger.InvoiceJob {
	return ledger.InvoiceJob{
		TenantID:       "t1",
		SentBy:         "u1",
		IdempotencyKey: "idem-1",
		Payload: ledger.InvoicePayload{
			BuyerID:          "b1",
			Phone:            "+12015550123",
			Message:          "Amount due: 60.00",
			TotalAmount:      100,
			AmountDue:        60,
			TransactionCount: 2,
			DateRange:        "All time",
		},
	}
}

func TestNewInvoiceSMSTask(t *testing.T) {
	task, err := NewInvoiceSMSTask(invoiceJob())
	require.NoError(t, err)
	assert.Equal(t, TaskInvoiceSMS, task.Type())

	var decoded ledger.InvoiceJob
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, invoiceJob(), decoded)
}

func TestInvoiceSMSJobHandle(t *testing.T) {
	deliverer := &fakeDeliverer{}
	observer := &fakeObserver{}
	service := &shared.Session{Token: "svc-token", Settings: shared.Settings{BusinessName: "Shop"}}
	job := NewInvoiceSMSJob(deliverer, service, nil, observer)

	task, err := NewInvoiceSMSTask(invoiceJob())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, deliverer.sessions, 1)
	sess := deliverer.sessions[0]
	assert.Equal(t, "svc-token", sess.Token)
	assert.Equal(t, "t1", sess.TenantID)
	assert.Equal(t, "u1", sess.User.ID)
	assert.Equal(t, "60", deliverer.totals[0].FinalAmountDue.String())
	assert.Equal(t, "40", deliverer.totals[0].TotalPaymentReceived.String())

	require.Len(t, observer.seen, 1)
	assert.Equal(t, TaskInvoiceSMS, observer.seen[0].taskType)
	assert.NoError(t, observer.seen[0].err)
}

func TestInvoiceSMSJobRetryPolicy(t *testing.T) {
	task, err := NewInvoiceSMSTask(invoiceJob())
	require.NoError(t, err)

	transient := &fakeDeliverer{err: fmt.Errorf("%w: timeout", shared.ErrUpstream)}
	err = NewInvoiceSMSJob(transient, nil, nil, nil).Handle(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	rejected := &fakeDeliverer{err: shared.ErrUnauthorized}
	err = NewInvoiceSMSJob(rejected, nil, nil, nil).Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	bad := asynq.NewTask(TaskInvoiceSMS, []byte("{"))
	observer := &fakeObserver{}
	err = NewInvoiceSMSJob(&fakeDeliverer{}, nil, nil, observer).Handle(context.Background(), bad)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, observer.seen, 1)
	assert.Error(t, observer.seen[0].err)
}

type fakeCleaner struct {
	olderThan time.Duration
	removed   int64
	err       error
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.removed, f.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{removed: 4}
	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, NewIdempotencyCleanupJob(cleaner, nil, nil).Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, cleaner.olderThan)

	task, err = NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, NewIdempotencyCleanupJob(cleaner, nil, nil).Handle(context.Background(), task))
	assert.Equal(t, 24*time.Hour, cleaner.olderThan)

	cleaner.err = errors.New("db down")
	assert.Error(t, NewIdempotencyCleanupJob(cleaner, nil, nil).Handle(context.Background(), task))
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queues":[]}`, rec.Body.String())
}
