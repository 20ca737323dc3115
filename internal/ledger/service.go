package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/buyer-ledger/internal/shared"
)

const (
	// idempotencyModule namespaces invoice SMS keys in the idempotency store.
	idempotencyModule = "ledger.invoice_sms"
	// sharedFetchTimeout bounds a coalesced upstream fetch once detached from its callers.
	sharedFetchTimeout = 30 * time.Second
)

// ErrNoPhone is returned when neither the request nor the buyer has a phone.
var ErrNoPhone = errors.New("ledger: buyer has no phone number")

// Backoffice is the remote API the ledger reads from and notifies through.
type Backoffice interface {
	ListTransactions(ctx context.Context, sess *shared.Session, buyerID string, rng DateRange) ([]Transaction, error)
	GetBuyer(ctx context.Context, sess *shared.Session, buyerID string) (Buyer, error)
	SendInvoiceSMS(ctx context.Context, sess *shared.Session, payload InvoicePayload) error
}

// NotificationLog persists invoice SMS attempts.
type NotificationLog interface {
	RecordNotification(ctx context.Context, rec NotificationRecord) error
	ListNotifications(ctx context.Context, tenantID, buyerID string, limit int) ([]NotificationRecord, error)
}

// IdempotencyPort guards against duplicate sends.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// InvoiceJob is the queued form of an invoice SMS.
type InvoiceJob struct {
	TenantID       string         `json:"tenant_id"`
	SentBy         string         `json:"sent_by"`
	IdempotencyKey string         `json:"idempotency_key"`
	Payload        InvoicePayload `json:"payload"`
}

// InvoiceQueue hands invoice SMS to the background worker.
type InvoiceQueue interface {
	EnqueueInvoiceSMS(ctx context.Context, job InvoiceJob) error
}

// MetricsRecorder receives ledger counters.
type MetricsRecorder interface {
	ObserveInvoiceSMS(status string)
	ObserveUpstreamError(operation string)
}

// ServiceConfig toggles optional behaviour.
type ServiceConfig struct {
	Strict        bool
	DefaultRegion string
}

// Service orchestrates fetching, aggregation and invoice delivery.
type Service struct {
	api     Backoffice
	cache   *Cache
	log     NotificationLog
	idem    IdempotencyPort
	queue   InvoiceQueue
	metrics MetricsRecorder
	cfg     ServiceConfig
	logger  *slog.Logger
	fetches singleflight.Group
}

// ServiceDeps groups optional collaborators.
type ServiceDeps struct {
	Cache       *Cache
	Log         NotificationLog
	Idempotency IdempotencyPort
	Queue       InvoiceQueue
	Metrics     MetricsRecorder
	Logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(api Backoffice, deps ServiceDeps, cfg ServiceConfig) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:     api,
		cache:   deps.Cache,
		log:     deps.Log,
		idem:    deps.Idempotency,
		queue:   deps.Queue,
		metrics: deps.Metrics,
		cfg:     cfg,
		logger:  logger,
	}
}

// Transactions returns a buyer's transactions for rng, served from cache when possible.
// Concurrent identical requests share a single upstream fetch.
func (s *Service) Transactions(ctx context.Context, sess *shared.Session, buyerID string, rng DateRange) ([]Transaction, error) {
	return s.transactions(ctx, sess, buyerID, rng, false)
}

// transactions with fresh set skips the cached copy and replaces the buyer's
// cached ranges with what the backoffice returns.
func (s *Service) transactions(ctx context.Context, sess *shared.Session, buyerID string, rng DateRange, fresh bool) ([]Transaction, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	scope := cacheScope(sess)
	key, err := s.cache.TransactionsKey(ctx, scope, buyerID, rng)
	if err != nil {
		s.logger.Warn("ledger cache key", slog.Any("error", err))
		key = strings.Join([]string{"ledger", "txns", scope, buyerID, rng.Label()}, ":")
	}
	flightKey := key
	if fresh {
		flightKey += ":fresh"
	}
	if sess != nil {
		flightKey += ":" + sess.Token
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := s.fetches.DoChan(flightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		if fresh {
			return s.loadFresh(fctx, sess, scope, buyerID, rng)
		}
		return s.loadCached(fctx, sess, key, buyerID, rng)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.observeUpstream("list_transactions")
			return nil, res.Err
		}
		txns, _ := res.Val.([]Transaction)
		return txns, nil
	}
}

func (s *Service) loadCached(ctx context.Context, sess *shared.Session, key, buyerID string, rng DateRange) ([]Transaction, error) {
	loader := func(ctx context.Context) ([]Transaction, error) {
		txns, err := s.api.ListTransactions(ctx, sess, buyerID, rng)
		if err != nil {
			return nil, upstreamError{err: err}
		}
		return txns, nil
	}
	txns, err := s.cache.FetchTransactions(ctx, key, loader)
	if err == nil {
		return txns, nil
	}
	var upstream upstreamError
	if errors.As(err, &upstream) {
		return nil, upstream.err
	}
	s.logger.Warn("ledger cache bypassed", slog.Any("error", err))
	txns, err = loader(ctx)
	if errors.As(err, &upstream) {
		return nil, upstream.err
	}
	return txns, err
}

func (s *Service) loadFresh(ctx context.Context, sess *shared.Session, scope, buyerID string, rng DateRange) ([]Transaction, error) {
	txns, err := s.api.ListTransactions(ctx, sess, buyerID, rng)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Bump(ctx, scope, buyerID); err != nil {
		s.logger.Warn("ledger cache bump", slog.Any("error", err))
		return txns, nil
	}
	key, err := s.cache.TransactionsKey(ctx, scope, buyerID, rng)
	if err == nil {
		err = s.cache.StoreTransactions(ctx, key, txns)
	}
	if err != nil {
		s.logger.Warn("ledger cache refresh", slog.Any("error", err))
	}
	return txns, nil
}

// Statement builds the account history of a buyer for rng.
func (s *Service) Statement(ctx context.Context, sess *shared.Session, buyerID string, rng DateRange) (Statement, error) {
	return s.statement(ctx, sess, buyerID, rng, false)
}

func (s *Service) statement(ctx context.Context, sess *shared.Session, buyerID string, rng DateRange, fresh bool) (Statement, error) {
	if err := rng.Validate(); err != nil {
		return Statement{}, err
	}
	var (
		buyer Buyer
		txns  []Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.api.GetBuyer(gctx, sess, buyerID)
		if err != nil {
			s.observeUpstream("get_buyer")
			return err
		}
		buyer = b
		return nil
	})
	g.Go(func() error {
		list, err := s.transactions(gctx, sess, buyerID, rng, fresh)
		if err != nil {
			return err
		}
		txns = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return Statement{}, err
	}
	if s.cfg.Strict {
		if err := ValidateAll(txns); err != nil {
			return Statement{}, err
		}
	}
	return BuildStatement(buyer, rng, txns)
}

// Summarize aggregates already fetched transactions without any I/O.
func (s *Service) Summarize(txns []Transaction, rangeLabel string, header SummaryHeader) (Totals, string, error) {
	if s.cfg.Strict {
		if err := ValidateAll(txns); err != nil {
			return Totals{}, "", err
		}
	}
	totals, err := AggregateBuyerTotals(txns)
	if err != nil {
		return Totals{}, "", err
	}
	return totals, BuildInvoiceSummaryWithHeader(header, rangeLabel, txns, totals), nil
}

// SendInvoiceRequest asks for an invoice SMS covering a range.
type SendInvoiceRequest struct {
	BuyerID        string
	Range          DateRange
	Phone          string
	IdempotencyKey string
	Async          bool
}

// InvoiceResult reports what was sent.
type InvoiceResult struct {
	Status         NotificationStatus `json:"status"`
	Phone          string             `json:"phone"`
	Message        string             `json:"message"`
	Totals         Totals             `json:"totals"`
	IdempotencyKey string             `json:"idempotency_key"`
}

// SendInvoice builds the period summary for a buyer and relays it to the SMS
// endpoint, or queues it when Async is set and a queue is configured.
func (s *Service) SendInvoice(ctx context.Context, sess *shared.Session, req SendInvoiceRequest) (InvoiceResult, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, req.IdempotencyKey, idempotencyModule); err != nil {
			return InvoiceResult{}, err
		}
	}
	release := func() {
		if s.idem == nil {
			return
		}
		if err := s.idem.Delete(context.WithoutCancel(ctx), req.IdempotencyKey, idempotencyModule); err != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", err))
		}
	}

	// The amount due must reflect everything the backoffice holds right now.
	stmt, err := s.statement(ctx, sess, req.BuyerID, req.Range, true)
	if err != nil {
		release()
		return InvoiceResult{}, err
	}

	rawPhone := req.Phone
	if rawPhone == "" {
		rawPhone = stmt.Buyer.Phone
	}
	if rawPhone == "" {
		release()
		return InvoiceResult{}, ErrNoPhone
	}
	phone, err := NormalizePhone(rawPhone, s.region(sess))
	if err != nil {
		release()
		return InvoiceResult{}, err
	}

	txns := make([]Transaction, 0, len(stmt.Rows))
	for _, row := range stmt.Rows {
		txns = append(txns, row.Transaction)
	}
	header := SummaryHeader{BuyerName: stmt.Buyer.Name}
	if sess != nil {
		header.BusinessName = sess.Settings.BusinessName
	}
	body := BuildInvoiceSummaryWithHeader(header, stmt.RangeLabel, txns, stmt.Totals)
	payload := NewInvoicePayload(stmt.Buyer, phone, stmt.RangeLabel, body, stmt.Totals)
	job := InvoiceJob{
		TenantID:       tenantOf(sess),
		SentBy:         userOf(sess),
		IdempotencyKey: req.IdempotencyKey,
		Payload:        payload,
	}
	result := InvoiceResult{
		Phone:          phone,
		Message:        body,
		Totals:         stmt.Totals,
		IdempotencyKey: req.IdempotencyKey,
	}

	if req.Async && s.queue != nil {
		if err := s.queue.EnqueueInvoiceSMS(ctx, job); err != nil {
			release()
			return InvoiceResult{}, fmt.Errorf("ledger: enqueue invoice sms: %w", err)
		}
		s.record(ctx, job, stmt.Totals, NotificationQueued, nil)
		s.observeSMS(NotificationQueued)
		result.Status = NotificationQueued
		return result, nil
	}

	if err := s.Deliver(ctx, sess, job, stmt.Totals); err != nil {
		release()
		return InvoiceResult{}, err
	}
	result.Status = NotificationSent
	return result, nil
}

// Deliver posts a prepared invoice SMS and logs the outcome. The worker calls
// it for queued jobs.
func (s *Service) Deliver(ctx context.Context, sess *shared.Session, job InvoiceJob, totals Totals) error {
	if err := s.api.SendInvoiceSMS(ctx, sess, job.Payload); err != nil {
		s.observeUpstream("send_invoice_sms")
		s.observeSMS(NotificationFailed)
		s.record(ctx, job, totals, NotificationFailed, err)
		return err
	}
	s.observeSMS(NotificationSent)
	s.record(ctx, job, totals, NotificationSent, nil)
	return nil
}

// Notifications lists recent invoice SMS attempts for a buyer.
func (s *Service) Notifications(ctx context.Context, sess *shared.Session, buyerID string, limit int) ([]NotificationRecord, error) {
	if s.log == nil {
		return nil, nil
	}
	return s.log.ListNotifications(ctx, tenantOf(sess), buyerID, limit)
}

// TotalsFromPayload rebuilds the totals carried by a queued payload.
func TotalsFromPayload(p InvoicePayload) Totals {
	sale := decimal.NewFromFloat(p.TotalAmount)
	due := decimal.NewFromFloat(p.AmountDue)
	return Totals{
		TotalSaleAmount:      sale,
		TotalPaymentReceived: sale.Sub(due),
		FinalAmountDue:       due,
		TransactionCount:     p.TransactionCount,
	}
}

func (s *Service) record(ctx context.Context, job InvoiceJob, totals Totals, status NotificationStatus, cause error) {
	if s.log == nil {
		return
	}
	rec := NotificationRecord{
		TenantID:         job.TenantID,
		BuyerID:          job.Payload.BuyerID,
		Phone:            job.Payload.Phone,
		RangeLabel:       job.Payload.DateRange,
		TotalAmount:      totals.TotalSaleAmount,
		AmountDue:        totals.FinalAmountDue,
		TransactionCount: totals.TransactionCount,
		Status:           status,
		IdempotencyKey:   job.IdempotencyKey,
		SentBy:           job.SentBy,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := s.log.RecordNotification(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("record invoice notification", slog.Any("error", err))
	}
}

func (s *Service) region(sess *shared.Session) string {
	if sess != nil && sess.Settings.Region != "" {
		return sess.Settings.Region
	}
	return s.cfg.DefaultRegion
}

func (s *Service) observeSMS(status NotificationStatus) {
	if s.metrics != nil {
		s.metrics.ObserveInvoiceSMS(strings.ToLower(string(status)))
	}
}

func (s *Service) observeUpstream(op string) {
	if s.metrics != nil {
		s.metrics.ObserveUpstreamError(op)
	}
}

func tenantOf(sess *shared.Session) string {
	if sess == nil {
		return ""
	}
	return sess.TenantID
}

func cacheScope(sess *shared.Session) string {
	if sess == nil {
		return ""
	}
	return CacheScope(sess.TenantID, sess.Token)
}

func userOf(sess *shared.Session) string {
	if sess == nil {
		return ""
	}
	return sess.User.ID
}

// upstreamError marks loader failures so they are not mistaken for cache faults.
type upstreamError struct {
	err error
}

func (e upstreamError) Error() string { return e.err.Error() }

func (e upstreamError) Unwrap() error { return e.err }
