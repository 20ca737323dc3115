package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/buyer-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/buyer-ledger/internal/shared"
)

// LedgerService is the behaviour the HTTP handler depends on.
type LedgerService interface {
	Statement(ctx context.Context, sess *shared.Session, buyerID string, rng DateRange) (Statement, error)
	Summarize(txns []Transaction, rangeLabel string, header SummaryHeader) (Totals, string, error)
	SendInvoice(ctx context.Context, sess *shared.Session, req SendInvoiceRequest) (InvoiceResult, error)
	Notifications(ctx context.Context, sess *shared.Session, buyerID string, limit int) ([]NotificationRecord, error)
}

// Handler wires HTTP endpoints for buyer ledgers.
type Handler struct {
	logger    *slog.Logger
	service   LedgerService
	validator *validator.Validate
	location  *time.Location
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service LedgerService, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		location:  loc,
	}
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerID")
	rng, err := ParseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"), h.location)
	if err != nil {
		h.respondError(w, err)
		return
	}
	stmt, err := h.service.Statement(r.Context(), shared.SessionFromContext(r.Context()), buyerID, rng)
	if err != nil {
		h.logger.Error("build statement", slog.String("buyer_id", buyerID), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) statementXLSX(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerID")
	rng, err := ParseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"), h.location)
	if err != nil {
		h.respondError(w, err)
		return
	}
	stmt, err := h.service.Statement(r.Context(), shared.SessionFromContext(r.Context()), buyerID, rng)
	if err != nil {
		h.logger.Error("build statement export", slog.String("buyer_id", buyerID), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteStatementXLSX(&buf, stmt); err != nil {
		h.logger.Error("render statement xlsx", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	filename := fmt.Sprintf("statement-%s-%s.xlsx", buyerID, rng.From.Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerID")
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	records, err := h.service.Notifications(r.Context(), shared.SessionFromContext(r.Context()), buyerID, limit)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if records == nil {
		records = []NotificationRecord{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": records})
}

func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerID")
	var req sendInvoiceRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	rng, err := ParseRange(req.From, req.To, h.location)
	if err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.service.SendInvoice(r.Context(), shared.SessionFromContext(r.Context()), SendInvoiceRequest{
		BuyerID:        buyerID,
		Range:          rng,
		Phone:          req.Phone,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Async:          req.Async,
	})
	if err != nil {
		h.logger.Warn("send invoice sms", slog.String("buyer_id", buyerID), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	status := http.StatusOK
	if result.Status == NotificationQueued {
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	header := SummaryHeader{BuyerName: req.BuyerName}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		header.BusinessName = sess.Settings.BusinessName
	}
	totals, summary, err := h.service.Summarize(req.Transactions, req.RangeLabel, header)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summarizeResponse{
		Totals:  totals,
		Summary: summary,
		Length:  len([]rune(summary)),
	})
}

func (h *Handler) planReturn(w http.ResponseWriter, r *http.Request) {
	var req planReturnRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	plan, err := PlanReturn(req.Sale, req.Prior, req.Items)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) settleSample(w http.ResponseWriter, r *http.Request) {
	var req settleSampleRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	settlement, err := SettleSample(req.Session, req.BuyerID, req.Decisions, req.TotalShipping)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settlement)
}

func (h *Handler) decode(r *http.Request, dest any) error {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if err := h.validator.Struct(dest); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrMissingDirection), errors.Is(err, ErrInvalidTransaction):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Ledger Data", err.Error())
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrReturnExceedsSold), errors.Is(err, ErrNotASale),
		errors.Is(err, ErrUnknownProduct), errors.Is(err, ErrNonPositiveQty), errors.Is(err, ErrSampleOverAllocated),
		errors.Is(err, ErrNoUnits), errors.Is(err, ErrInvalidPhone), errors.Is(err, ErrNoPhone):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
