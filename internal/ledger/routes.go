package ledger

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/buyer-ledger/internal/platform/httpx"
)

const (
	smsRateLimit  = 5
	smsRateWindow = time.Minute
)

// MountRoutes registers ledger routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/summarize", h.summarize)
	r.Post("/returns/plan", h.planReturn)
	r.Post("/samples/settle", h.settleSample)
	r.Route("/buyers/{buyerID}", func(r chi.Router) {
		r.Get("/statement", h.statement)
		r.Get("/statement.xlsx", h.statementXLSX)
		r.Get("/notifications", h.notifications)
		r.With(smsLimiter()).Post("/invoice-sms", h.sendInvoice)
	})
}

func smsLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(smsRateLimit, smsRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP, func(r *http.Request) (string, error) {
			return chi.URLParam(r, "buyerID"), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "invoice sms rate limit reached")
		}),
	)
}
