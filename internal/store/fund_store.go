package store

import (
	"context"

	"treasury/internal/models"
)

type FundStore struct {
	db DB
}

type FundReconciliation struct {
	FundID            string              `db:"fund_id"`
	Category          models.FundCategory `db:"category"`
	StoredBalance     int64               `db:"stored_balance"`
	CalculatedBalance int64               `db:"calculated_balance"`
	Difference        int64               `db:"difference"`
}

const fundColumns = `id, organization_id, category, balance, is_active, created_at, updated_at`

func NewFundStore(db DB) *FundStore {
	return &FundStore{db: db}
}

// Create inserts a fund with a zero balance. It returns 0 rows when the
// organization already has a fund of that category.
func (s *FundStore) Create(ctx context.Context, tx Execer, id, organizationID string, category models.FundCategory) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO funds (id, organization_id, category, balance, is_active)
		VALUES ($1, $2, $3, 0, TRUE)
		ON CONFLICT (organization_id, category) DO NOTHING
	`, id, organizationID, category)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *FundStore) GetByID(ctx context.Context, fundID string) (models.Fund, error) {
	var row models.Fund
	err := s.db.GetContext(ctx, &row, `SELECT `+fundColumns+` FROM funds WHERE id = $1`, fundID)
	if err != nil {
		return models.Fund{}, err
	}
	return row, nil
}

// GetForUpdate reads the fund and holds its row lock until tx ends.
func (s *FundStore) GetForUpdate(ctx context.Context, tx Getter, fundID string) (models.Fund, error) {
	var row models.Fund
	err := tx.GetContext(ctx, &row, `SELECT `+fundColumns+` FROM funds WHERE id = $1 FOR UPDATE`, fundID)
	if err != nil {
		return models.Fund{}, err
	}
	return row, nil
}

func (s *FundStore) ListByOrganization(ctx context.Context, organizationID string) ([]models.Fund, error) {
	var rows []models.Fund
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+fundColumns+`
		FROM funds
		WHERE organization_id = $1
		ORDER BY category
	`, organizationID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AdjustBalance applies delta and refuses to take the balance below zero;
// a refused update affects 0 rows.
func (s *FundStore) AdjustBalance(ctx context.Context, tx Execer, fundID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE funds
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0
	`, delta, fundID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *FundStore) Reconcile(ctx context.Context, organizationID string) ([]FundReconciliation, error) {
	var rows []FundReconciliation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT f.id AS fund_id,
		       f.category,
		       f.balance AS stored_balance,
		       COALESCE(SUM(m.amount), 0) AS calculated_balance,
		       (f.balance - COALESCE(SUM(m.amount), 0)) AS difference
		FROM funds f
		LEFT JOIN movements m ON m.fund_id = f.id
		WHERE f.organization_id = $1
		GROUP BY f.id, f.category, f.balance
		ORDER BY f.category
	`, organizationID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
