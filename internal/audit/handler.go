package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/identity-ledger/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the transaction audit module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new audit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers audit routes. All of them require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/audit/{transactionId}", h.AuditTrail)
		r.Get("/by-date-range", h.ByDateRange)
		r.Get("/statistics", h.Statistics)
		r.Get("/validate/{transactionId}", h.Validate)
		r.Get("/recent", h.Recent)
		r.Get("/current", h.Current)
	})
}

// DateRangeQuery holds the by-date-range query parameters.
type DateRangeQuery struct {
	StartDate string `validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndDate   string `validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// AuditTrail handles GET /transactions/audit/{transactionId}.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionId")
	if err := h.validator.Var(id, "required,txnid"); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	trail, err := h.service.AuditTrail(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, trail)
}

// ByDateRange handles GET /transactions/by-date-range?start_date=&end_date=.
func (h *Handler) ByDateRange(w http.ResponseWriter, r *http.Request) {
	q := DateRangeQuery{
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
	}
	if err := h.validator.Struct(q); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	// Both values passed the datetime tag.
	start, _ := time.Parse(time.RFC3339, q.StartDate)
	end, _ := time.Parse(time.RFC3339, q.EndDate)

	grouped, err := h.service.ByDateRange(r.Context(), start, end)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, grouped)
}

// Statistics handles GET /transactions/statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, stats)
}

// Validate handles GET /transactions/validate/{transactionId}.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.service.Validate(r.Context(), chi.URLParam(r, "transactionId")))
}

// Recent handles GET /transactions/recent?limit=10.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	users, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, users)
}

// Current handles GET /transactions/current.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.service.Current(r.Context()))
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrInvalidTransactionID, Status: http.StatusBadRequest},
		{Error: ErrInvalidDateRange, Status: http.StatusBadRequest},
	})
}
