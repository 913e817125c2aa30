package dispatch

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

// Handler wires HTTP endpoints for dispatches.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the dispatch handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers dispatch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{dispatchID}", h.handleGet)
	r.Patch("/{dispatchID}/status", h.handleUpdateStatus)
}

type productRequest struct {
	SKU      string  `json:"sku" validate:"required"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

type createRequest struct {
	DispatchID  string           `json:"dispatch_id"`
	Destination string           `json:"destination" validate:"required"`
	AgentID     int64            `json:"agent_id" validate:"required,gt=0"`
	Notes       string           `json:"notes"`
	Products    []productRequest `json:"products" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	input := CreateInput{
		DispatchID:  req.DispatchID,
		Destination: req.Destination,
		AgentID:     req.AgentID,
		Notes:       req.Notes,
	}
	for _, product := range req.Products {
		input.Items = append(input.Items, ItemInput{SKU: product.SKU, Quantity: product.Quantity})
	}
	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create dispatch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, toOrderResponse(order))
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=in-transit delivered cancelled"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	order, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "dispatchID"), Status(req.Status))
	if err != nil {
		h.logger.Error("update dispatch status", slog.String("dispatch", chi.URLParam(r, "dispatchID")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "dispatchID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Status: Status(q.Get("status"))}
	if v := q.Get("agent_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"agent_id": "invalid number"})
			return
		}
		filter.AgentID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"limit": "invalid number"})
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"offset": "invalid number"})
			return
		}
		filter.Offset = n
	}
	orders, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list dispatches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		items = append(items, toOrderResponse(order))
	}
	httpx.OK(w, http.StatusOK, struct {
		Items []orderResponse `json:"items"`
		Total int             `json:"total"`
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

type lineResponse struct {
	SKU         string  `json:"sku"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    float64 `json:"quantity"`
}

type orderResponse struct {
	DispatchID  string         `json:"dispatch_id"`
	Destination string         `json:"destination"`
	AgentID     int64          `json:"agent_id"`
	AgentName   string         `json:"agent_name,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Status      string         `json:"status"`
	Products    []lineResponse `json:"products"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toOrderResponse(order Order) orderResponse {
	resp := orderResponse{
		DispatchID:  order.DispatchID,
		Destination: order.Destination,
		AgentID:     order.AgentID,
		AgentName:   order.AgentName,
		Notes:       order.Notes,
		Status:      string(order.Status),
		Products:    make([]lineResponse, 0, len(order.Lines)),
		CreatedBy:   order.CreatedBy,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	for _, line := range order.Lines {
		resp.Products = append(resp.Products, lineResponse{SKU: line.SKU, ProductName: line.ProductName, Quantity: line.Quantity})
	}
	return resp
}
