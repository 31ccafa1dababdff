package store

import (
	"context"
	"fmt"
	"time"

	"treasury/internal/db"
	"treasury/internal/models"
)

type RequisitionStore struct {
	db DB
}

const requisitionColumns = `id, code, organization_id, fund_id, category, requested_amount, approved_amount,
	justification, created_by, creator_type, status, required_level, required_hops, current_hop,
	first_approver_id, first_approved_at, second_approver_id, second_approved_at,
	rejected_by, rejection_reason, cancelled_by, payment_date, receipt_ref, execution_notes, executed_by,
	created_at, submitted_at, approved_at, executed_at, updated_at, version`

func NewRequisitionStore(db DB) *RequisitionStore {
	return &RequisitionStore{db: db}
}

// NextCode draws the next human-readable code, e.g. REQ-2026-000042.
func (s *RequisitionStore) NextCode(ctx context.Context, tx Getter, at time.Time) (string, error) {
	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT nextval('requisition_code_seq')`); err != nil {
		return "", err
	}
	return fmt.Sprintf("REQ-%d-%06d", at.Year(), seq), nil
}

func (s *RequisitionStore) Create(ctx context.Context, tx Execer, req models.Requisition) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO requisitions (id, code, organization_id, fund_id, category, requested_amount, justification,
		                          created_by, creator_type, status, required_level, required_hops, current_hop,
		                          created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14, 1)
	`, req.ID, req.Code, req.OrganizationID, req.FundID, req.Category, req.RequestedAmount, req.Justification,
		req.CreatedBy, req.CreatorType, req.Status, req.RequiredLevel, req.RequiredHops, req.CurrentHop, req.CreatedAt)
	return err
}

func (s *RequisitionStore) GetByID(ctx context.Context, requisitionID string) (models.Requisition, error) {
	var row models.Requisition
	err := s.db.GetContext(ctx, &row, `SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1`, requisitionID)
	if err != nil {
		return models.Requisition{}, err
	}
	return row, nil
}

// GetForUpdate reads the requisition and holds its row lock until tx ends.
func (s *RequisitionStore) GetForUpdate(ctx context.Context, tx Getter, requisitionID string) (models.Requisition, error) {
	var row models.Requisition
	err := tx.GetContext(ctx, &row, `SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1 FOR UPDATE`, requisitionID)
	if err != nil {
		return models.Requisition{}, err
	}
	return row, nil
}

// Update writes every mutable column of req guarded by its version. A stale
// version yields db.ErrConcurrencyConflict so the caller's tx is retried.
func (s *RequisitionStore) Update(ctx context.Context, tx Execer, req models.Requisition) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE requisitions
		SET status = $1,
		    approved_amount = $2,
		    current_hop = $3,
		    first_approver_id = $4,
		    first_approved_at = $5,
		    second_approver_id = $6,
		    second_approved_at = $7,
		    rejected_by = $8,
		    rejection_reason = $9,
		    cancelled_by = $10,
		    payment_date = $11,
		    receipt_ref = $12,
		    execution_notes = $13,
		    executed_by = $14,
		    submitted_at = $15,
		    approved_at = $16,
		    executed_at = $17,
		    updated_at = $18,
		    required_level = $19,
		    required_hops = $20,
		    version = version + 1
		WHERE id = $21 AND version = $22
	`, req.Status, req.ApprovedAmount, req.CurrentHop, req.FirstApproverID, req.FirstApprovedAt,
		req.SecondApproverID, req.SecondApprovedAt, req.RejectedBy, req.RejectionReason, req.CancelledBy,
		req.PaymentDate, req.ReceiptRef, req.ExecutionNotes, req.ExecutedBy, req.SubmittedAt, req.ApprovedAt,
		req.ExecutedAt, req.UpdatedAt, req.RequiredLevel, req.RequiredHops, req.ID, req.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("requisition %s: %w", req.ID, db.ErrConcurrencyConflict)
	}
	return nil
}

func (s *RequisitionStore) ListByOrganization(ctx context.Context, organizationID string, status models.Status, limit, offset int) ([]models.Requisition, error) {
	var rows []models.Requisition
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE organization_id = $1`
	args := []any{organizationID}
	param := 2
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
		param = 3
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", param, param+1)
	args = append(args, limit, offset)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
