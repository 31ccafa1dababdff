package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"treasury/internal/money"
	"treasury/internal/validator"
)

var (
	errInvalidAmount = errors.New("invalid amount")
	errInvalidDate   = errors.New("invalid date")
)

const maxBodyBytes = 1 << 20

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParsePositiveMinor(raw)
	if err != nil {
		return 0, errInvalidAmount
	}
	return amount, nil
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, errInvalidDate
}

// decodeAndValidate reads a JSON body into dest and checks its validate
// tags. An empty body is accepted when optional is set.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any, optional bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil && !(optional && errors.Is(err, io.EOF)) {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	if err := validator.Struct(dest); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation_failed",
			"detail": err.Error(),
		})
		return false
	}
	return true
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
