package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"treasury/internal/db"
	"treasury/internal/models"
)

func TestRequisitionStoreNextCode(t *testing.T) {
	ctx := context.Background()
	tx := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "nextval('requisition_code_seq')") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*int64) = 42
			return nil
		},
	}
	store := NewRequisitionStore(stubDB{})
	code, err := store.NextCode(ctx, tx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "REQ-2026-000042" {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestRequisitionStoreUpdateStaleVersion(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "WHERE id = $21 AND version = $22") {
				t.Fatalf("missing version guard: %s", query)
			}
			if args[18] != 2 || args[19] != 1 || args[20] != "req-1" || args[21] != int64(3) {
				t.Fatalf("unexpected args: %#v", args[18:])
			}
			return stubResult{rows: 0}, nil
		},
	}
	store := NewRequisitionStore(stubDB{})
	err := store.Update(ctx, execer, models.Requisition{ID: "req-1", Version: 3, Status: models.StatusApproved, RequiredLevel: 2, RequiredHops: 1})
	if !errors.Is(err, db.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestRequisitionStoreUpdate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if args[0] != models.StatusUnderReview {
				t.Fatalf("unexpected status arg: %#v", args[0])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewRequisitionStore(stubDB{})
	if err := store.Update(ctx, execer, models.Requisition{ID: "req-1", Version: 1, Status: models.StatusUnderReview}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequisitionStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO requisitions") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 14 || args[1] != "REQ-2026-000001" || args[9] != models.StatusPending {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewRequisitionStore(stubDB{})
	err := store.Create(ctx, execer, models.Requisition{
		ID: "req-1", Code: "REQ-2026-000001", OrganizationID: "org-1", FundID: "fund-1",
		Category: models.ExpenseSupplies, RequestedAmount: 1000, Justification: "paper",
		CreatedBy: "user-1", CreatorType: models.CreatorStandard, Status: models.StatusPending,
		RequiredLevel: 1, RequiredHops: 1, CurrentHop: 1, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequisitionStoreListByStatus(t *testing.T) {
	ctx := context.Background()
	store := NewRequisitionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "status = $2") || !strings.Contains(query, "LIMIT $3 OFFSET $4") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[1] != models.StatusApproved {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.Requisition) = []models.Requisition{{ID: "req-1"}}
			return nil
		},
	})
	rows, err := store.ListByOrganization(ctx, "org-1", models.StatusApproved, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestRequisitionStoreListWithoutStatus(t *testing.T) {
	ctx := context.Background()
	store := NewRequisitionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if strings.Contains(query, "status =") || !strings.Contains(query, "LIMIT $2 OFFSET $3") {
				t.Fatalf("unexpected query: %s", query)
			}
			return nil
		},
	})
	if _, err := store.ListByOrganization(ctx, "org-1", "", 10, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
