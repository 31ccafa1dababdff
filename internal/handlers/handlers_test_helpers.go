package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"treasury/internal/auth"
	"treasury/internal/authority"
	"treasury/internal/config"
	"treasury/internal/models"
	"treasury/internal/services"
	"treasury/internal/store"
	"treasury/internal/websocket"
)

type stubRequisitionService struct {
	createFn     func(ctx context.Context, actor authority.Actor, req services.CreateRequisitionRequest) (models.Requisition, error)
	submitFn     func(ctx context.Context, actor authority.Actor, id string) (models.Requisition, error)
	approveFn    func(ctx context.Context, actor authority.Actor, id string, cmd services.ApproveRequest) (models.Requisition, error)
	rejectFn     func(ctx context.Context, actor authority.Actor, id, reason string) (models.Requisition, error)
	cancelFn     func(ctx context.Context, actor authority.Actor, id, reason string) (models.Requisition, error)
	executeFn    func(ctx context.Context, actor authority.Actor, id string, cmd services.ExecuteRequest) (models.Requisition, error)
	getFn        func(ctx context.Context, actor authority.Actor, id string) (models.Requisition, error)
	listFn       func(ctx context.Context, actor authority.Actor, status models.Status, limit, offset int) ([]models.Requisition, error)
	auditTrailFn func(ctx context.Context, actor authority.Actor, entityID string, limit, offset int) ([]models.AuditRecord, error)
}

func (s stubRequisitionService) Create(ctx context.Context, actor authority.Actor, req services.CreateRequisitionRequest) (models.Requisition, error) {
	if s.createFn == nil {
		return models.Requisition{}, nil
	}
	return s.createFn(ctx, actor, req)
}

func (s stubRequisitionService) Submit(ctx context.Context, actor authority.Actor, id string) (models.Requisition, error) {
	if s.submitFn == nil {
		return models.Requisition{}, nil
	}
	return s.submitFn(ctx, actor, id)
}

func (s stubRequisitionService) Approve(ctx context.Context, actor authority.Actor, id string, cmd services.ApproveRequest) (models.Requisition, error) {
	if s.approveFn == nil {
		return models.Requisition{}, nil
	}
	return s.approveFn(ctx, actor, id, cmd)
}

func (s stubRequisitionService) Reject(ctx context.Context, actor authority.Actor, id, reason string) (models.Requisition, error) {
	if s.rejectFn == nil {
		return models.Requisition{}, nil
	}
	return s.rejectFn(ctx, actor, id, reason)
}

func (s stubRequisitionService) Cancel(ctx context.Context, actor authority.Actor, id, reason string) (models.Requisition, error) {
	if s.cancelFn == nil {
		return models.Requisition{}, nil
	}
	return s.cancelFn(ctx, actor, id, reason)
}

func (s stubRequisitionService) Execute(ctx context.Context, actor authority.Actor, id string, cmd services.ExecuteRequest) (models.Requisition, error) {
	if s.executeFn == nil {
		return models.Requisition{}, nil
	}
	return s.executeFn(ctx, actor, id, cmd)
}

func (s stubRequisitionService) Get(ctx context.Context, actor authority.Actor, id string) (models.Requisition, error) {
	if s.getFn == nil {
		return models.Requisition{}, nil
	}
	return s.getFn(ctx, actor, id)
}

func (s stubRequisitionService) List(ctx context.Context, actor authority.Actor, status models.Status, limit, offset int) ([]models.Requisition, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, actor, status, limit, offset)
}

func (s stubRequisitionService) AuditTrail(ctx context.Context, actor authority.Actor, entityID string, limit, offset int) ([]models.AuditRecord, error) {
	if s.auditTrailFn == nil {
		return nil, nil
	}
	return s.auditTrailFn(ctx, actor, entityID, limit, offset)
}

type stubFundService struct {
	provisionFn     func(ctx context.Context, actor authority.Actor) ([]models.Fund, error)
	recordIncomeFn  func(ctx context.Context, actor authority.Actor, req services.RecordIncomeRequest) (models.Income, error)
	listFundsFn     func(ctx context.Context, actor authority.Actor) ([]models.Fund, error)
	getFundFn       func(ctx context.Context, actor authority.Actor, fundID string) (models.Fund, error)
	listMovementsFn func(ctx context.Context, actor authority.Actor, fundID string, limit, offset int) ([]models.Movement, error)
	reconcileFn     func(ctx context.Context, actor authority.Actor) ([]store.FundReconciliation, error)
}

func (s stubFundService) ProvisionFunds(ctx context.Context, actor authority.Actor) ([]models.Fund, error) {
	if s.provisionFn == nil {
		return nil, nil
	}
	return s.provisionFn(ctx, actor)
}

func (s stubFundService) RecordIncome(ctx context.Context, actor authority.Actor, req services.RecordIncomeRequest) (models.Income, error) {
	if s.recordIncomeFn == nil {
		return models.Income{}, nil
	}
	return s.recordIncomeFn(ctx, actor, req)
}

func (s stubFundService) ListFunds(ctx context.Context, actor authority.Actor) ([]models.Fund, error) {
	if s.listFundsFn == nil {
		return nil, nil
	}
	return s.listFundsFn(ctx, actor)
}

func (s stubFundService) GetFund(ctx context.Context, actor authority.Actor, fundID string) (models.Fund, error) {
	if s.getFundFn == nil {
		return models.Fund{}, nil
	}
	return s.getFundFn(ctx, actor, fundID)
}

func (s stubFundService) ListMovements(ctx context.Context, actor authority.Actor, fundID string, limit, offset int) ([]models.Movement, error) {
	if s.listMovementsFn == nil {
		return nil, nil
	}
	return s.listMovementsFn(ctx, actor, fundID, limit, offset)
}

func (s stubFundService) Reconcile(ctx context.Context, actor authority.Actor) ([]store.FundReconciliation, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx, actor)
}

func newTestHandler(requisitions RequisitionService, funds FundService) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(cfg, nil, requisitions, funds, websocket.NewHub())
}

// serveRoute sends an authenticated request through the full router.
func serveRoute(t *testing.T, handler *Handler, method, path, body string, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken("secret", auth.Identity{
		UserID:         "user-1",
		OrganizationID: "org-1",
		Roles:          roles,
	}, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

const (
	testRequisitionID = "0b8e6a52-4f1d-4e37-a9c2-6d3f1e2a7b40"
	testFundID        = "7d9f3c1e-2b4a-4c8e-9f10-3a5b6c7d8e9f"
)

func stringPtr(value string) *string {
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}
