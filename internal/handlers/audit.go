package handlers

import (
	"encoding/json"
	"net/http"

	"treasury/internal/websocket"
)

func (h *Handler) ListAuditRecords(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50)
	records, err := h.requisitions.AuditTrail(r.Context(), actor, r.URL.Query().Get("entity_id"), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	normalized := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		normalized = append(normalized, map[string]any{
			"id":              rec.ID,
			"action":          rec.Action,
			"entity_type":     rec.EntityType,
			"entity_id":       rec.EntityID,
			"actor_user_id":   rec.ActorUserID,
			"previous_status": rec.PreviousStatus,
			"new_status":      rec.NewStatus,
			"data":            auditData(rec.Data),
			"created_at":      rec.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

// WSFunds streams balance changes of the caller's organization.
func (h *Handler) WSFunds(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	websocket.ServeWS(w, r, h.upgrader, h.hub, actor.OrganizationID)
}

func auditData(raw string) json.RawMessage {
	if raw == "" || !json.Valid([]byte(raw)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}
