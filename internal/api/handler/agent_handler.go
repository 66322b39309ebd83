package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/deskhub/helpdesk/internal/api/middleware"
	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/pkg/validate"
	"github.com/deskhub/helpdesk/internal/service"
)

// AgentHandler handles the agent roster endpoints.
type AgentHandler struct {
	svc    *service.AgentService
	logger *zap.Logger
}

func NewAgentHandler(svc *service.AgentService, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/agents
//
// @Summary     Register an agent
// @Tags        agents
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateAgentRequest  true  "Agent payload"
// @Success     201   {object}  domain.Agent
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/agents [post]
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	a, err := h.svc.CreateAgent(r.Context(), req)
	if err != nil {
		h.logger.Warn("create agent failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

// GetByID handles GET /api/v1/agents/{id}
//
// @Summary  Get an agent by ID
// @Tags     agents
// @Produce  json
// @Param    id   path      string  true  "Agent ID"
// @Success  200  {object}  domain.Agent
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/agents/{id} [get]
func (h *AgentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// List handles GET /api/v1/agents
//
// @Summary  List all agents
// @Tags     agents
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/agents [get]
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.svc.ListAgents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list agents")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": agents, "total": len(agents)})
}

// Update handles PATCH /api/v1/agents/{id}
//
// @Summary  Update an agent's profile or eligibility
// @Tags     agents
// @Accept   json
// @Produce  json
// @Param    id    path      string                     true  "Agent ID"
// @Param    body  body      domain.UpdateAgentRequest  true  "Fields to change"
// @Success  200   {object}  domain.Agent
// @Failure  404   {object}  map[string]string
// @Router   /api/v1/agents/{id} [patch]
func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	a, err := h.svc.UpdateAgent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /api/v1/agents/{id}
//
// Open tickets are reassigned to the least-loaded remaining eligible agent
// before the row is removed.
//
// @Summary  Delete an agent, reassigning their open tickets first
// @Tags     agents
// @Param    id   path  string  true  "Agent ID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/agents/{id} [delete]
func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAgent(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
