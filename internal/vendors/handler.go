package vendors

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the vendor registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the vendor handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers vendor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{vendorID}", h.handleGet)
	r.Put("/{vendorID}", h.handleUpdate)
	r.Patch("/{vendorID}/active", h.handleSetActive)
}

type vendorRequest struct {
	Name          string `json:"name" validate:"required"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" validate:"omitempty,email"`
	Address       string `json:"address"`
	GSTIN         string `json:"gstin"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	vendor, err := h.service.Create(r.Context(), toInput(req))
	if err != nil {
		h.logger.Error("create vendor", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, toVendorResponse(vendor))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vendorID(w, r)
	if !ok {
		return
	}
	var req vendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	vendor, err := h.service.Update(r.Context(), id, toInput(req))
	if err != nil {
		h.logger.Error("update vendor", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toVendorResponse(vendor))
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vendorID(w, r)
	if !ok {
		return
	}
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Active == nil {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"active": "required"})
		return
	}
	vendor, err := h.service.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vendorID(w, r)
	if !ok {
		return
	}
	vendor, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Search: q.Get("search")}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"active": "invalid boolean"})
			return
		}
		filter.Active = &active
	}
	vendors, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list vendors", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]vendorResponse, 0, len(vendors))
	for _, vendor := range vendors {
		items = append(items, toVendorResponse(vendor))
	}
	httpx.OK(w, http.StatusOK, struct {
		Items []vendorResponse `json:"items"`
		Total int              `json:"total"`
	}{Items: items, Total: total})
}

func (h *Handler) vendorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "vendorID"), 10, 64)
	if err != nil {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"vendor_id": "invalid number"})
		return 0, false
	}
	return id, true
}

func (h *Handler) validationFields(req any) map[string]string {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	for _, fieldErr := range err.(validator.ValidationErrors) {
		fields[strings.ToLower(fieldErr.Field())] = "failed " + fieldErr.Tag() + " validation"
	}
	return fields
}

func toInput(req vendorRequest) Input {
	return Input{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		GSTIN:         req.GSTIN,
	}
}

type vendorResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	GSTIN         string    `json:"gstin,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toVendorResponse(vendor Vendor) vendorResponse {
	return vendorResponse{
		ID:            vendor.ID,
		Name:          vendor.Name,
		ContactPerson: vendor.ContactPerson,
		Phone:         vendor.Phone,
		Email:         vendor.Email,
		Address:       vendor.Address,
		GSTIN:         vendor.GSTIN,
		Active:        vendor.Active,
		CreatedAt:     vendor.CreatedAt,
		UpdatedAt:     vendor.UpdatedAt,
	}
}
