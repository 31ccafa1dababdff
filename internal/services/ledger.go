package services

import (
	"context"
	"fmt"
	"time"

	"treasury/internal/db"
	"treasury/internal/models"
	"treasury/internal/store"

	"github.com/google/uuid"
)

type FundStore interface {
	Create(ctx context.Context, tx store.Execer, id, organizationID string, category models.FundCategory) (int64, error)
	GetByID(ctx context.Context, fundID string) (models.Fund, error)
	GetForUpdate(ctx context.Context, tx store.Getter, fundID string) (models.Fund, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]models.Fund, error)
	AdjustBalance(ctx context.Context, tx store.Execer, fundID string, delta int64) (int64, error)
	Reconcile(ctx context.Context, organizationID string) ([]store.FundReconciliation, error)
}

type MovementStore interface {
	Insert(ctx context.Context, tx store.Execer, movement models.Movement) error
	ListByFund(ctx context.Context, fundID string, limit, offset int) ([]models.Movement, error)
}

type ExpenseStore interface {
	Create(ctx context.Context, tx store.Execer, expense models.Expense) error
}

// Ledger moves money in and out of funds. Both entry points run inside the
// caller's transaction and hold the fund row lock until it ends.
type Ledger struct {
	funds     FundStore
	movements MovementStore
	expenses  ExpenseStore
	now       func() time.Time
}

func NewLedger(funds FundStore, movements MovementStore, expenses ExpenseStore) *Ledger {
	return &Ledger{funds: funds, movements: movements, expenses: expenses, now: time.Now}
}

type Credit struct {
	Movement     models.Movement
	Category     models.FundCategory
	BalanceAfter int64
}

type Debit struct {
	Movement     models.Movement
	Expense      models.Expense
	Category     models.FundCategory
	BalanceAfter int64
}

type ExecutionDetails struct {
	PaymentDate time.Time
	ReceiptRef  *string
	Notes       *string
}

func (l *Ledger) CreditFund(ctx context.Context, tx store.Tx, organizationID, fundID string, amount int64, referenceID string, referenceType models.ReferenceType, actorID string) (Credit, error) {
	if amount <= 0 {
		return Credit{}, validationError("credit amount must be positive")
	}
	fund, err := l.lockFund(ctx, tx, organizationID, fundID)
	if err != nil {
		return Credit{}, err
	}
	if _, err := l.funds.AdjustBalance(ctx, tx, fundID, amount); err != nil {
		return Credit{}, err
	}
	movement := models.Movement{
		ID:            uuid.NewString(),
		FundID:        fundID,
		Amount:        amount,
		Type:          models.MovementCredit,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		MovementDate:  l.now().UTC(),
		CreatedBy:     actorID,
	}
	if err := l.movements.Insert(ctx, tx, movement); err != nil {
		return Credit{}, err
	}
	return Credit{Movement: movement, Category: fund.Category, BalanceAfter: fund.Balance + amount}, nil
}

// DebitFundForExecution disburses amount for an executed requisition: it
// checks and decrements the balance, then appends the debit movement and
// the expense row.
func (l *Ledger) DebitFundForExecution(ctx context.Context, tx store.Tx, organizationID, fundID string, amount int64, requisitionID, actorID string, details ExecutionDetails) (Debit, error) {
	if amount <= 0 {
		return Debit{}, validationError("debit amount must be positive")
	}
	fund, err := l.lockFund(ctx, tx, organizationID, fundID)
	if err != nil {
		return Debit{}, err
	}
	if fund.Balance < amount {
		return Debit{}, fmt.Errorf("fund %s holds %d, needs %d: %w", fundID, fund.Balance, amount, ErrInsufficientBalance)
	}
	affected, err := l.funds.AdjustBalance(ctx, tx, fundID, -amount)
	if err != nil {
		return Debit{}, err
	}
	if affected == 0 {
		return Debit{}, ErrInsufficientBalance
	}
	movement := models.Movement{
		ID:            uuid.NewString(),
		FundID:        fundID,
		Amount:        -amount,
		Type:          models.MovementDebit,
		ReferenceID:   requisitionID,
		ReferenceType: models.ReferenceRequisition,
		MovementDate:  details.PaymentDate.UTC(),
		CreatedBy:     actorID,
	}
	if err := l.movements.Insert(ctx, tx, movement); err != nil {
		return Debit{}, err
	}
	expense := models.Expense{
		ID:            uuid.NewString(),
		RequisitionID: requisitionID,
		FundID:        fundID,
		Amount:        amount,
		PaymentDate:   details.PaymentDate.UTC(),
		PaidBy:        actorID,
		ReceiptRef:    details.ReceiptRef,
		Notes:         details.Notes,
		CreatedAt:     l.now().UTC(),
	}
	if err := l.expenses.Create(ctx, tx, expense); err != nil {
		if db.IsUniqueViolation(err, store.ExpenseRequisitionConstraint) {
			return Debit{}, fmt.Errorf("requisition %s already has an expense: %w", requisitionID, ErrInvalidTransition)
		}
		return Debit{}, err
	}
	return Debit{Movement: movement, Expense: expense, Category: fund.Category, BalanceAfter: fund.Balance - amount}, nil
}

func (l *Ledger) lockFund(ctx context.Context, tx store.Getter, organizationID, fundID string) (models.Fund, error) {
	fund, err := l.funds.GetForUpdate(ctx, tx, fundID)
	if err != nil {
		return models.Fund{}, notFound(err, "fund")
	}
	if fund.OrganizationID != organizationID {
		return models.Fund{}, fmt.Errorf("fund: %w", ErrNotFound)
	}
	if !fund.IsActive {
		return models.Fund{}, validationError("fund %s is inactive", fundID)
	}
	return fund, nil
}
