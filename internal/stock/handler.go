package stock

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
)

// Handler wires HTTP endpoints for stock availability and the stock card.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/availability/{sku}", h.handleAvailability)
	r.Get("/ledger/{sku}", h.handleLedger)
}

type availabilityResponse struct {
	SKU       string  `json:"sku"`
	Available float64 `json:"available"`
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	available, err := h.service.Available(r.Context(), sku)
	if err != nil {
		h.logger.Error("get availability", slog.String("sku", sku), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, availabilityResponse{SKU: sku, Available: available})
}

type ledgerEntryResponse struct {
	Type      string    `json:"type"`
	Qty       float64   `json:"qty"`
	Balance   float64   `json:"balance"`
	RefModule string    `json:"ref_module"`
	RefID     string    `json:"ref_id"`
	Note      string    `json:"note,omitempty"`
	PostedAt  time.Time `json:"posted_at"`
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	filter := LedgerFilter{SKU: chi.URLParam(r, "sku")}
	q := r.URL.Query()
	if from := q.Get("start_date"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"start_date": "invalid date"})
			return
		}
		filter.From = t
	}
	if to := q.Get("end_date"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"end_date": "invalid date"})
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	entries, err := h.service.Ledger(r.Context(), filter)
	if err != nil {
		h.logger.Error("list ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ledgerEntryResponse{
			Type:      string(entry.Type),
			Qty:       entry.Qty,
			Balance:   entry.Balance,
			RefModule: entry.RefModule,
			RefID:     entry.RefID,
			Note:      entry.Note,
			PostedAt:  entry.PostedAt,
		})
	}
	httpx.OK(w, http.StatusOK, out)
}
