package handlers

import (
	"net/http"

	"treasury/internal/models"
	"treasury/internal/services"
)

type createRequisitionRequest struct {
	FundID          string `json:"fund_id" validate:"required,uuid"`
	Category        string `json:"category" validate:"required,expense_category"`
	RequestedAmount string `json:"requested_amount" validate:"required,money"`
	Justification   string `json:"justification" validate:"required,max=2000"`
}

type approveRequisitionRequest struct {
	Hop            int    `json:"hop" validate:"gte=0,lte=2"`
	ApprovedAmount string `json:"approved_amount" validate:"omitempty,money"`
	Comment        string `json:"comment" validate:"max=1000"`
}

type rejectRequisitionRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type cancelRequisitionRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type executeRequisitionRequest struct {
	PaymentDate string `json:"payment_date" validate:"required"`
	ReceiptRef  string `json:"receipt_ref" validate:"max=255"`
	Notes       string `json:"notes" validate:"max=2000"`
}

func requisitionView(req models.Requisition) map[string]any {
	return map[string]any{
		"id":                 req.ID,
		"code":               req.Code,
		"organization_id":    req.OrganizationID,
		"fund_id":            req.FundID,
		"category":           req.Category,
		"requested_amount":   formatMoney(req.RequestedAmount),
		"approved_amount":    formatOptionalMoney(req.ApprovedAmount),
		"justification":      req.Justification,
		"created_by":         req.CreatedBy,
		"creator_type":       req.CreatorType,
		"status":             req.Status,
		"required_level":     req.RequiredLevel,
		"required_hops":      req.RequiredHops,
		"current_hop":        req.CurrentHop,
		"first_approver_id":  req.FirstApproverID,
		"first_approved_at":  req.FirstApprovedAt,
		"second_approver_id": req.SecondApproverID,
		"second_approved_at": req.SecondApprovedAt,
		"rejected_by":        req.RejectedBy,
		"rejection_reason":   req.RejectionReason,
		"cancelled_by":       req.CancelledBy,
		"payment_date":       req.PaymentDate,
		"receipt_ref":        req.ReceiptRef,
		"execution_notes":    req.ExecutionNotes,
		"executed_by":        req.ExecutedBy,
		"created_at":         req.CreatedAt,
		"submitted_at":       req.SubmittedAt,
		"approved_at":        req.ApprovedAt,
		"executed_at":        req.ExecutedAt,
		"updated_at":         req.UpdatedAt,
		"version":            req.Version,
	}
}

func (h *Handler) CreateRequisition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	var req createRequisitionRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}
	amount, err := parseAmountMinor(req.RequestedAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	created, err := h.requisitions.Create(r.Context(), actor, services.CreateRequisitionRequest{
		FundID:          req.FundID,
		Category:        models.ExpenseCategory(req.Category),
		RequestedAmount: amount,
		Justification:   req.Justification,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, requisitionView(created))
}

func (h *Handler) ListRequisitions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 20)
	rows, err := h.requisitions.List(r.Context(), actor, models.Status(r.URL.Query().Get("status")), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, requisitionView(row))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) GetRequisition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := h.requisitions.Get(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requisitionView(req))
}

func (h *Handler) SubmitRequisition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := h.requisitions.Submit(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requisitionView(req))
}

func (h *Handler) ApproveRequisition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body approveRequisitionRequest
	if !decodeAndValidate(w, r, &body, true) {
		return
	}
	cmd := services.ApproveRequest{Hop: body.Hop, Comment: body.Comment}
	if body.ApprovedAmount != "" {
		amount, err := parseAmountMinor(body.ApprovedAmount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		cmd.ApprovedAmount = &amount
	}
	req, err := h.requisitions.Approve(r.Context(), actor, id, cmd)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requisitionView(req))
}

func (h *Handler) RejectRequisition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body rejectRequisitionRequest
	if !decodeAndValidate(w, r, &body, false) {
		return
	}
	req, err := h.requisitions.Reject(r.Context(), actor, id, body.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requisitionView(req))
}

func (h *Handler) CancelRequisition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body cancelRequisitionRequest
	if !decodeAndValidate(w, r, &body, true) {
		return
	}
	req, err := h.requisitions.Cancel(r.Context(), actor, id, body.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requisitionView(req))
}

func (h *Handler) ExecuteRequisition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body executeRequisitionRequest
	if !decodeAndValidate(w, r, &body, false) {
		return
	}
	paymentDate, err := parseDate(body.PaymentDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payment_date")
		return
	}
	req, err := h.requisitions.Execute(r.Context(), actor, id, services.ExecuteRequest{
		PaymentDate: paymentDate,
		ReceiptRef:  optionalString(body.ReceiptRef),
		Notes:       optionalString(body.Notes),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requisitionView(req))
}
