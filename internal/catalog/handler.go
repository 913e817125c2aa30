package catalog

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

// Handler wires HTTP endpoints for the product catalogue.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the catalogue handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers catalogue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/products", h.handleCreate)
	r.Get("/products", h.handleList)
	r.Get("/products/{sku}", h.handleGet)
	r.Put("/products/{sku}", h.handleUpdate)
	r.Patch("/products/{sku}/active", h.handleSetActive)
}

type productRequest struct {
	SKU      string `json:"sku" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
	UOM      string `json:"uom" validate:"required"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	product, err := h.service.Create(r.Context(), Input{SKU: req.SKU, Name: req.Name, Category: req.Category, UOM: req.UOM})
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, toProductResponse(product))
}

type updateProductRequest struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
	UOM      string `json:"uom" validate:"required"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	product, err := h.service.Update(r.Context(), chi.URLParam(r, "sku"), Input{Name: req.Name, Category: req.Category, UOM: req.UOM})
	if err != nil {
		h.logger.Error("update product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toProductResponse(product))
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Active == nil {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"active": "required"})
		return
	}
	product, err := h.service.SetActive(r.Context(), chi.URLParam(r, "sku"), *req.Active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Category: q.Get("category"), Search: q.Get("search")}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"active": "invalid boolean"})
			return
		}
		filter.Active = &active
	}
	products, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]productResponse, 0, len(products))
	for _, product := range products {
		items = append(items, toProductResponse(product))
	}
	httpx.OK(w, http.StatusOK, struct {
		Items []productResponse `json:"items"`
		Total int               `json:"total"`
	}{Items: items, Total: total})
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

type productResponse struct {
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	UOM       string    `json:"uom"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(product Product) productResponse {
	return productResponse{
		SKU:       product.SKU,
		Name:      product.Name,
		Category:  product.Category,
		UOM:       product.UOM,
		Active:    product.Active,
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
	}
}
