package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/events"
)

// EventHandler serves the notification polling and read-state endpoints.
// Every route is scoped by subject: the subject_id and role query
// parameters identify whose events are being read or mutated. Role
// normalization happens here, at the system edge.
type EventHandler struct {
	bus    *events.Bus
	logger *zap.Logger
}

func NewEventHandler(bus *events.Bus, logger *zap.Logger) *EventHandler {
	return &EventHandler{bus: bus, logger: logger}
}

// Unread handles GET /api/v1/events/unread
//
// @Summary  Unread events for a subject, newest first
// @Tags     events
// @Produce  json
// @Param    subject_id  query  string  true   "Subject ID"
// @Param    role        query  string  true   "requester or agent"
// @Param    since       query  int     false  "Only events after this Unix timestamp (ms tolerated)"
// @Success  200  {object}  map[string]any
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/events/unread [get]
func (h *EventHandler) Unread(w http.ResponseWriter, r *http.Request) {
	subjectID, role, ok := h.subject(w, r)
	if !ok {
		return
	}

	var since *int64
	if s := r.URL.Query().Get("since"); s != "" {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
			since = &ts
		}
	}

	evts, err := h.bus.Unread(r.Context(), subjectID, role, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": evts, "total": len(evts)})
}

// Recent handles GET /api/v1/events/recent
//
// @Summary  Events from the last 24 hours, read or unread, capped at 50
// @Tags     events
// @Produce  json
// @Param    subject_id  query  string  true  "Subject ID"
// @Param    role        query  string  true  "requester or agent"
// @Success  200  {object}  map[string]any
// @Router   /api/v1/events/recent [get]
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	subjectID, role, ok := h.subject(w, r)
	if !ok {
		return
	}

	evts, err := h.bus.Recent(r.Context(), subjectID, role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": evts, "total": len(evts)})
}

// Counts handles GET /api/v1/events/counts
//
// @Summary  Unread counts per UI tab bucket
// @Tags     events
// @Produce  json
// @Param    subject_id  query  string  true  "Subject ID"
// @Param    role        query  string  true  "requester or agent"
// @Success  200  {object}  domain.UnreadCounts
// @Router   /api/v1/events/counts [get]
func (h *EventHandler) Counts(w http.ResponseWriter, r *http.Request) {
	subjectID, role, ok := h.subject(w, r)
	if !ok {
		return
	}

	counts, err := h.bus.UnreadCounts(r.Context(), subjectID, role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count events")
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// MarkRead handles POST /api/v1/events/read
//
// @Summary  Mark specific events as read
// @Tags     events
// @Accept   json
// @Produce  json
// @Param    subject_id  query  string          true  "Subject ID"
// @Param    role        query  string          true  "requester or agent"
// @Param    body        body   map[string]any  true  "{\"ids\": [...]}"
// @Success  200  {object}  map[string]bool
// @Router   /api/v1/events/read [post]
func (h *EventHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	subjectID, role, ok := h.subject(w, r)
	if !ok {
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	changed, err := h.bus.MarkRead(r.Context(), subjectID, role, req.IDs)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// MarkAllRead handles POST /api/v1/events/read-all
//
// @Summary  Mark every unread event of the subject as read
// @Tags     events
// @Produce  json
// @Param    subject_id  query  string  true  "Subject ID"
// @Param    role        query  string  true  "requester or agent"
// @Success  200  {object}  map[string]bool
// @Router   /api/v1/events/read-all [post]
func (h *EventHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	subjectID, role, ok := h.subject(w, r)
	if !ok {
		return
	}

	changed, err := h.bus.MarkAllRead(r.Context(), subjectID, role)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// Clear handles DELETE /api/v1/events
//
// @Summary  Hard-delete every event for the subject (irreversible)
// @Tags     events
// @Param    subject_id  query  string  true  "Subject ID"
// @Param    role        query  string  true  "requester or agent"
// @Success  204
// @Router   /api/v1/events [delete]
func (h *EventHandler) Clear(w http.ResponseWriter, r *http.Request) {
	subjectID, role, ok := h.subject(w, r)
	if !ok {
		return
	}

	if err := h.bus.ClearAll(r.Context(), subjectID, role); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences handles GET /api/v1/preferences
//
// @Summary  Notification preferences; defaults when never saved
// @Tags     preferences
// @Produce  json
// @Param    subject_id  query  string  true  "Subject ID"
// @Param    role        query  string  true  "requester or agent"
// @Success  200  {object}  domain.Preferences
// @Router   /api/v1/preferences [get]
func (h *EventHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	subjectID, role, ok := h.subject(w, r)
	if !ok {
		return
	}

	p, err := h.bus.GetPreferences(r.Context(), subjectID, role)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdatePreferences handles PUT /api/v1/preferences
//
// @Summary  Merge the provided preference fields and save
// @Tags     preferences
// @Accept   json
// @Produce  json
// @Param    subject_id  query  string                           true  "Subject ID"
// @Param    role        query  string                           true  "requester or agent"
// @Param    body        body   domain.UpdatePreferencesRequest  true  "Fields to change"
// @Success  200  {object}  domain.Preferences
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/preferences [put]
func (h *EventHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	subjectID, role, ok := h.subject(w, r)
	if !ok {
		return
	}

	var req domain.UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := h.bus.UpdatePreferences(r.Context(), subjectID, role, req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// subject extracts and normalizes the (subject_id, role) pair every event
// route requires. Writes the error response itself and reports ok=false
// when the parameters are missing or malformed.
func (h *EventHandler) subject(w http.ResponseWriter, r *http.Request) (string, domain.Role, bool) {
	q := r.URL.Query()
	subjectID := q.Get("subject_id")
	if subjectID == "" {
		respondError(w, http.StatusUnprocessableEntity, "subject_id is required")
		return "", "", false
	}
	role, err := domain.NormalizeRole(q.Get("role"))
	if err != nil {
		mapError(w, err)
		return "", "", false
	}
	return subjectID, role, true
}
