package handlers

import (
	"context"

	"treasury/internal/authority"
	"treasury/internal/models"
	"treasury/internal/services"
	"treasury/internal/store"
)

type RequisitionService interface {
	Create(ctx context.Context, actor authority.Actor, req services.CreateRequisitionRequest) (models.Requisition, error)
	Submit(ctx context.Context, actor authority.Actor, requisitionID string) (models.Requisition, error)
	Approve(ctx context.Context, actor authority.Actor, requisitionID string, cmd services.ApproveRequest) (models.Requisition, error)
	Reject(ctx context.Context, actor authority.Actor, requisitionID, reason string) (models.Requisition, error)
	Cancel(ctx context.Context, actor authority.Actor, requisitionID, reason string) (models.Requisition, error)
	Execute(ctx context.Context, actor authority.Actor, requisitionID string, cmd services.ExecuteRequest) (models.Requisition, error)
	Get(ctx context.Context, actor authority.Actor, requisitionID string) (models.Requisition, error)
	List(ctx context.Context, actor authority.Actor, status models.Status, limit, offset int) ([]models.Requisition, error)
	AuditTrail(ctx context.Context, actor authority.Actor, entityID string, limit, offset int) ([]models.AuditRecord, error)
}

type FundService interface {
	ProvisionFunds(ctx context.Context, actor authority.Actor) ([]models.Fund, error)
	RecordIncome(ctx context.Context, actor authority.Actor, req services.RecordIncomeRequest) (models.Income, error)
	ListFunds(ctx context.Context, actor authority.Actor) ([]models.Fund, error)
	GetFund(ctx context.Context, actor authority.Actor, fundID string) (models.Fund, error)
	ListMovements(ctx context.Context, actor authority.Actor, fundID string, limit, offset int) ([]models.Movement, error)
	Reconcile(ctx context.Context, actor authority.Actor) ([]store.FundReconciliation, error)
}
