package store

import (
	"context"

	"treasury/internal/models"
)

// MovementStore is the append-only fund ledger. Rows are never updated or
// deleted.
type MovementStore struct {
	db DB
}

func NewMovementStore(db DB) *MovementStore {
	return &MovementStore{db: db}
}

func (s *MovementStore) Insert(ctx context.Context, tx Execer, movement models.Movement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO movements (id, fund_id, amount, type, reference_id, reference_type, movement_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, movement.ID, movement.FundID, movement.Amount, movement.Type, movement.ReferenceID,
		movement.ReferenceType, movement.MovementDate, movement.CreatedBy)
	return err
}

func (s *MovementStore) SumByFund(ctx context.Context, fundID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM movements
		WHERE fund_id = $1
	`, fundID)
	return sum, err
}

func (s *MovementStore) ListByFund(ctx context.Context, fundID string, limit, offset int) ([]models.Movement, error) {
	var rows []models.Movement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, fund_id, amount, type, reference_id, reference_type, movement_date, created_by, created_at
		FROM movements
		WHERE fund_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, fundID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExpenseRequisitionConstraint is the unique constraint allowing one expense
// per requisition.
const ExpenseRequisitionConstraint = "expenses_requisition_key"

type ExpenseStore struct {
	db DB
}

func NewExpenseStore(db DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

// Create inserts the single expense row of an executed requisition. The
// requisition_id column is unique, so a second insert fails.
func (s *ExpenseStore) Create(ctx context.Context, tx Execer, expense models.Expense) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (id, requisition_id, fund_id, amount, payment_date, paid_by, receipt_ref, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, expense.ID, expense.RequisitionID, expense.FundID, expense.Amount, expense.PaymentDate,
		expense.PaidBy, expense.ReceiptRef, expense.Notes)
	return err
}

func (s *ExpenseStore) GetByRequisition(ctx context.Context, requisitionID string) (models.Expense, error) {
	var row models.Expense
	err := s.db.GetContext(ctx, &row, `
		SELECT id, requisition_id, fund_id, amount, payment_date, paid_by, receipt_ref, notes, created_at
		FROM expenses
		WHERE requisition_id = $1
	`, requisitionID)
	if err != nil {
		return models.Expense{}, err
	}
	return row, nil
}

type IncomeStore struct {
	db DB
}

func NewIncomeStore(db DB) *IncomeStore {
	return &IncomeStore{db: db}
}

func (s *IncomeStore) Create(ctx context.Context, tx Execer, income models.Income) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO incomes (id, organization_id, fund_id, amount, source, description, received_on, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, income.ID, income.OrganizationID, income.FundID, income.Amount, income.Source,
		income.Description, income.ReceivedOn, income.CreatedBy)
	return err
}
