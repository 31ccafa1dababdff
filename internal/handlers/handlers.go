package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"treasury/internal/authority"
	"treasury/internal/middleware"
	"treasury/internal/money"
	"treasury/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxPageSize = 200

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service failure onto its HTTP status. Only a
// concurrency conflict is flagged as safe to retry.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, services.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, services.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, services.ErrConcurrencyConflict):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":     "concurrency_conflict",
			"detail":    err.Error(),
			"retryable": true,
		})
		return
	case errors.Is(err, services.ErrInsufficientBalance):
		status, code = http.StatusUnprocessableEntity, "insufficient_balance"
	default:
		h.log.Error("unhandled service error", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	respondJSON(w, status, map[string]any{
		"error":  code,
		"detail": err.Error(),
	})
}

func actorOrReject(w http.ResponseWriter, r *http.Request) (authority.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return actor, ok
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// pagination reads limit and page (1-based) from the query string. The
// limit is capped before the offset is derived from it.
func pagination(r *http.Request, defaultLimit int) (int, int) {
	query := r.URL.Query()
	limit := min(parseInt(query.Get("limit"), defaultLimit), maxPageSize)
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}

// pathID returns the {id} route parameter, answering 404 when it is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		respondJSON(w, http.StatusNotFound, map[string]any{
			"error":  "not_found",
			"detail": "unknown id " + id,
		})
		return "", false
	}
	return id, true
}

func formatMoney(value int64) string {
	return money.FormatMinor(value)
}

func formatOptionalMoney(value *int64) *string {
	if value == nil {
		return nil
	}
	formatted := money.FormatMinor(*value)
	return &formatted
}
