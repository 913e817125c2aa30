package agents

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

// Handler wires HTTP endpoints for the agent registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the agent handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers agent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{agentID}", h.handleGet)
	r.Put("/{agentID}", h.handleUpdate)
	r.Post("/{agentID}/routes", h.handleAssignRoute)
	r.Delete("/{agentID}/routes/{route}", h.handleUnassignRoute)
	r.Patch("/{agentID}/active", h.handleSetActive)
}

type agentRequest struct {
	Name   string   `json:"name" validate:"required"`
	Phone  string   `json:"phone"`
	Email  string   `json:"email" validate:"omitempty,email"`
	Routes []string `json:"routes"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	agent, err := h.service.Create(r.Context(), CreateInput{Name: req.Name, Phone: req.Phone, Email: req.Email, Routes: req.Routes})
	if err != nil {
		h.logger.Error("create agent", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, toAgentResponse(agent))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(w, r)
	if !ok {
		return
	}
	var req agentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	agent, err := h.service.Update(r.Context(), id, UpdateInput{Name: req.Name, Phone: req.Phone, Email: req.Email, Routes: req.Routes})
	if err != nil {
		h.logger.Error("update agent", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toAgentResponse(agent))
}

type assignRouteRequest struct {
	Route string `json:"route" validate:"required"`
}

func (h *Handler) handleAssignRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(w, r)
	if !ok {
		return
	}
	var req assignRouteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	agent, err := h.service.AssignRoute(r.Context(), id, req.Route)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toAgentResponse(agent))
}

func (h *Handler) handleUnassignRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(w, r)
	if !ok {
		return
	}
	agent, err := h.service.UnassignRoute(r.Context(), id, chi.URLParam(r, "route"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toAgentResponse(agent))
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(w, r)
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
	agent, err := h.service.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toAgentResponse(agent))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(w, r)
	if !ok {
		return
	}
	agent, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toAgentResponse(agent))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Route: q.Get("route")}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"active": "invalid boolean"})
			return
		}
		filter.Active = &active
	}
	agents, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list agents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]agentResponse, 0, len(agents))
	for _, agent := range agents {
		items = append(items, toAgentResponse(agent))
	}
	httpx.OK(w, http.StatusOK, struct {
		Items []agentResponse `json:"items"`
		Total int             `json:"total"`
	}{Items: items, Total: total})
}

func (h *Handler) agentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "agentID"), 10, 64)
	if err != nil {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"agent_id": "invalid number"})
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

type agentResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Routes    []string  `json:"routes"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAgentResponse(agent FieldAgent) agentResponse {
	routes := agent.AssignedRoutes
	if routes == nil {
		routes = []string{}
	}
	return agentResponse{
		ID:        agent.ID,
		Name:      agent.Name,
		Phone:     agent.Phone,
		Email:     agent.Email,
		Routes:    routes,
		Active:    agent.Active,
		CreatedAt: agent.CreatedAt,
		UpdatedAt: agent.UpdatedAt,
	}
}
