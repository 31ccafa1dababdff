package handlers

import (
	"net/http"

	"treasury/internal/models"
	"treasury/internal/services"
)

type recordIncomeRequest struct {
	FundID      string `json:"fund_id" validate:"required,uuid"`
	Amount      string `json:"amount" validate:"required,money"`
	Source      string `json:"source" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	ReceivedOn  string `json:"received_on"`
}

func fundView(fund models.Fund) map[string]any {
	return map[string]any{
		"id":              fund.ID,
		"organization_id": fund.OrganizationID,
		"category":        fund.Category,
		"balance":         formatMoney(fund.Balance),
		"is_active":       fund.IsActive,
		"created_at":      fund.CreatedAt,
		"updated_at":      fund.UpdatedAt,
	}
}

func fundsView(funds []models.Fund) []map[string]any {
	normalized := make([]map[string]any, 0, len(funds))
	for _, fund := range funds {
		normalized = append(normalized, fundView(fund))
	}
	return normalized
}

func (h *Handler) ProvisionFunds(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	funds, err := h.funds.ProvisionFunds(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, fundsView(funds))
}

func (h *Handler) ListFunds(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	funds, err := h.funds.ListFunds(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fundsView(funds))
}

func (h *Handler) GetFund(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	fund, err := h.funds.GetFund(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fundView(fund))
}

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50)
	movements, err := h.funds.ListMovements(r.Context(), actor, id, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	normalized := make([]map[string]any, 0, len(movements))
	for _, mv := range movements {
		normalized = append(normalized, map[string]any{
			"id":             mv.ID,
			"fund_id":        mv.FundID,
			"amount":         formatMoney(mv.Amount),
			"type":           mv.Type,
			"reference_id":   mv.ReferenceID,
			"reference_type": mv.ReferenceType,
			"movement_date":  mv.MovementDate,
			"created_by":     mv.CreatedBy,
			"created_at":     mv.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	rows, err := h.funds.Reconcile(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"fund_id":            row.FundID,
			"category":           row.Category,
			"stored_balance":     formatMoney(row.StoredBalance),
			"calculated_balance": formatMoney(row.CalculatedBalance),
			"difference":         formatMoney(row.Difference),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) RecordIncome(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	var body recordIncomeRequest
	if !decodeAndValidate(w, r, &body, false) {
		return
	}
	amount, err := parseAmountMinor(body.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	req := services.RecordIncomeRequest{
		FundID:      body.FundID,
		Amount:      amount,
		Source:      body.Source,
		Description: optionalString(body.Description),
	}
	if body.ReceivedOn != "" {
		req.ReceivedOn, err = parseDate(body.ReceivedOn)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_received_on")
			return
		}
	}
	income, err := h.funds.RecordIncome(r.Context(), actor, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":              income.ID,
		"organization_id": income.OrganizationID,
		"fund_id":         income.FundID,
		"amount":          formatMoney(income.Amount),
		"source":          income.Source,
		"description":     income.Description,
		"received_on":     income.ReceivedOn,
		"created_by":      income.CreatedBy,
		"created_at":      income.CreatedAt,
	})
}
