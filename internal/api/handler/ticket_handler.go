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

// TicketHandler handles the ticket lifecycle endpoints.
type TicketHandler struct {
	svc    *service.TicketService
	logger *zap.Logger
}

func NewTicketHandler(svc *service.TicketService, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/tickets
//
// @Summary     Open a ticket
// @Tags        tickets
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateTicketRequest  true  "Ticket payload"
// @Success     201   {object}  domain.Ticket
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/tickets [post]
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	t, err := h.svc.CreateTicket(r.Context(), req)
	if err != nil {
		h.logger.Warn("create ticket failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

// GetByID handles GET /api/v1/tickets/{id}
//
// @Summary  Get a ticket by ID
// @Tags     tickets
// @Produce  json
// @Param    id   path      string  true  "Ticket ID"
// @Success  200  {object}  domain.Ticket
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/tickets/{id} [get]
func (h *TicketHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// List handles GET /api/v1/tickets
//
// @Summary  List tickets; closed tickets are omitted unless requested
// @Tags     tickets
// @Produce  json
// @Param    status          query  string  false  "Filter by status"
// @Param    assigned_agent  query  string  false  "Filter by assignee"
// @Param    requester       query  string  false  "Filter by requester"
// @Param    include_closed  query  bool    false  "Include closed tickets"
// @Success  200  {object}  map[string]any
// @Router   /api/v1/tickets [get]
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseTicketFilter(r)
	tickets, err := h.svc.ListTickets(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": tickets, "total": len(tickets)})
}

// Update handles PATCH /api/v1/tickets/{id}
//
// @Summary  Update ticket status and/or completion estimate
// @Tags     tickets
// @Accept   json
// @Produce  json
// @Param    id    path      string                      true  "Ticket ID"
// @Param    body  body      domain.UpdateTicketRequest  true  "Fields to change"
// @Success  200   {object}  domain.Ticket
// @Failure  404   {object}  map[string]string
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/tickets/{id} [patch]
func (h *TicketHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := h.svc.UpdateTicket(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// Assign handles PUT /api/v1/tickets/{id}/assignee
//
// The manual assignment path: any existing agent, or null to unassign.
// Eligibility filtering does not apply here.
//
// @Summary  Manually set or clear the ticket assignee
// @Tags     tickets
// @Accept   json
// @Produce  json
// @Param    id    path      string          true  "Ticket ID"
// @Param    body  body      map[string]any  true  "{\"agent_id\": \"...\"|null}"
// @Success  200   {object}  domain.Ticket
// @Failure  404   {object}  map[string]string
// @Router   /api/v1/tickets/{id}/assignee [put]
func (h *TicketHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID *string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := h.svc.AssignTicket(r.Context(), chi.URLParam(r, "id"), req.AgentID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// Restore handles POST /api/v1/tickets/{id}/restore
//
// @Summary  Reopen a closed ticket as in_progress
// @Tags     tickets
// @Produce  json
// @Param    id   path      string  true  "Ticket ID"
// @Success  200  {object}  domain.Ticket
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/tickets/{id}/restore [post]
func (h *TicketHandler) Restore(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.RestoreTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// AddMessage handles POST /api/v1/tickets/{id}/messages
//
// @Summary  Append a message to the ticket thread
// @Tags     tickets
// @Accept   json
// @Produce  json
// @Param    id    path      string                    true  "Ticket ID"
// @Param    body  body      domain.AddMessageRequest  true  "Message payload"
// @Success  201   {object}  domain.Message
// @Failure  404   {object}  map[string]string
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/tickets/{id}/messages [post]
func (h *TicketHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	var req domain.AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	m, err := h.svc.AddMessage(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// ListMessages handles GET /api/v1/tickets/{id}/messages
//
// @Summary  List the ticket's messages, oldest first
// @Tags     tickets
// @Produce  json
// @Param    id   path      string  true  "Ticket ID"
// @Success  200  {object}  map[string]any
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/tickets/{id}/messages [get]
func (h *TicketHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.svc.ListMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": messages})
}

// RequestRecovery handles POST /api/v1/recovery-requests
//
// @Summary  Ask supervisors for account recovery help
// @Tags     recovery
// @Accept   json
// @Success  202
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/recovery-requests [post]
func (h *TicketHandler) RequestRecovery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequesterID string `json:"requester_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.svc.RequestRecovery(r.Context(), req.RequesterID); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func parseTicketFilter(r *http.Request) domain.TicketFilter {
	q := r.URL.Query()
	var filter domain.TicketFilter

	if s := q.Get("status"); s != "" {
		st := domain.TicketStatus(s)
		filter.Status = &st
	}
	if a := q.Get("assigned_agent"); a != "" {
		filter.AssignedAgentID = &a
	}
	if req := q.Get("requester"); req != "" {
		filter.RequesterID = &req
	}
	filter.IncludeClosed = q.Get("include_closed") == "true"
	return filter
}
