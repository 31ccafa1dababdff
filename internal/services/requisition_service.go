package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"treasury/internal/authority"
	"treasury/internal/db"
	"treasury/internal/models"
	"treasury/internal/money"
	"treasury/internal/store"
	"treasury/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const entityRequisition = "requisition"

type RequisitionStore interface {
	NextCode(ctx context.Context, tx store.Getter, at time.Time) (string, error)
	Create(ctx context.Context, tx store.Execer, req models.Requisition) error
	GetByID(ctx context.Context, requisitionID string) (models.Requisition, error)
	GetForUpdate(ctx context.Context, tx store.Getter, requisitionID string) (models.Requisition, error)
	Update(ctx context.Context, tx store.Execer, req models.Requisition) error
	ListByOrganization(ctx context.Context, organizationID string, status models.Status, limit, offset int) ([]models.Requisition, error)
}

type AuditStore interface {
	Record(ctx context.Context, tx store.Getter, input store.AuditInput) (models.AuditRecord, error)
	List(ctx context.Context, organizationID, entityID string, limit, offset int) ([]models.AuditRecord, error)
}

type FundHub interface {
	BroadcastFund(organizationID string, update websocket.FundUpdate)
}

type RequisitionService struct {
	txRunner     db.TxRunner
	resolver     authority.Resolver
	requisitions RequisitionStore
	funds        FundStore
	ledger       *Ledger
	audit        AuditStore
	hub          FundHub
	log          *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

func NewRequisitionService(txRunner db.TxRunner, resolver authority.Resolver, requisitions RequisitionStore, funds FundStore, ledger *Ledger, audit AuditStore, hub FundHub, log *zap.Logger) *RequisitionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RequisitionService{
		txRunner:     txRunner,
		resolver:     resolver,
		requisitions: requisitions,
		funds:        funds,
		ledger:       ledger,
		audit:        audit,
		hub:          hub,
		log:          log.Named("requisitions"),
		tracer:       otel.Tracer("treasury/services"),
		now:          time.Now,
	}
}

type CreateRequisitionRequest struct {
	FundID          string
	Category        models.ExpenseCategory
	RequestedAmount int64
	Justification   string
}

type ApproveRequest struct {
	// Hop, when non-zero, must match the hop currently awaiting approval.
	Hop            int
	ApprovedAmount *int64
	Comment        string
}

type ExecuteRequest struct {
	PaymentDate time.Time
	ReceiptRef  *string
	Notes       *string
}

func (s *RequisitionService) Create(ctx context.Context, actor authority.Actor, req CreateRequisitionRequest) (models.Requisition, error) {
	ctx, span := s.startSpan(ctx, "requisition.create", actor, "")
	defer span.End()

	if err := requireActor(actor); err != nil {
		return models.Requisition{}, s.fail(span, err, "create", actor, "")
	}
	justification := strings.TrimSpace(req.Justification)
	switch {
	case req.FundID == "":
		return models.Requisition{}, s.fail(span, validationError("fund_id is required"), "create", actor, "")
	case uuid.Validate(req.FundID) != nil:
		return models.Requisition{}, s.fail(span, validationError("fund_id %q is not a valid id", req.FundID), "create", actor, "")
	case req.RequestedAmount <= 0:
		return models.Requisition{}, s.fail(span, validationError("requested amount must be positive"), "create", actor, "")
	case !req.Category.Valid():
		return models.Requisition{}, s.fail(span, validationError("unknown expense category %q", req.Category), "create", actor, "")
	case justification == "":
		return models.Requisition{}, s.fail(span, validationError("justification is required"), "create", actor, "")
	}

	fund, err := s.funds.GetByID(ctx, req.FundID)
	if err != nil {
		return models.Requisition{}, s.fail(span, notFound(err, "fund"), "create", actor, "")
	}
	if fund.OrganizationID != actor.OrganizationID {
		return models.Requisition{}, s.fail(span, fmt.Errorf("fund: %w", ErrNotFound), "create", actor, "")
	}
	if !fund.IsActive {
		return models.Requisition{}, s.fail(span, validationError("fund %s is inactive", fund.ID), "create", actor, "")
	}

	creatorType := actor.CreatorType
	if !creatorType.Valid() {
		creatorType = models.CreatorStandard
	}
	var created models.Requisition
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now().UTC()
		code, err := s.requisitions.NextCode(ctx, tx, now)
		if err != nil {
			return err
		}
		created = models.Requisition{
			ID:              uuid.NewString(),
			Code:            code,
			OrganizationID:  actor.OrganizationID,
			FundID:          fund.ID,
			Category:        req.Category,
			RequestedAmount: req.RequestedAmount,
			Justification:   justification,
			CreatedBy:       actor.UserID,
			CreatorType:     creatorType,
			Status:          models.StatusPending,
			RequiredLevel:   int(s.resolver.RequiredLevel(req.RequestedAmount)),
			RequiredHops:    s.resolver.RequiredHops(req.RequestedAmount, creatorType),
			CurrentHop:      1,
			CreatedAt:       now,
			UpdatedAt:       now,
			Version:         1,
		}
		if err := s.requisitions.Create(ctx, tx, created); err != nil {
			return err
		}
		return s.record(ctx, tx, actor, created, "", models.EventCreate, map[string]any{
			"code":             created.Code,
			"fund_id":          created.FundID,
			"requested_amount": money.FormatMinor(created.RequestedAmount),
			"magnitude":        s.resolver.Magnitude(created.RequestedAmount),
			"required_hops":    created.RequiredHops,
		})
	})
	if err != nil {
		return models.Requisition{}, s.fail(span, err, "create", actor, "")
	}
	s.committed(created, "", actor)
	return created, nil
}

func (s *RequisitionService) Submit(ctx context.Context, actor authority.Actor, requisitionID string) (models.Requisition, error) {
	return s.transition(ctx, actor, requisitionID, models.EventSubmit, func(_ *sqlx.Tx, req *models.Requisition, now time.Time) (map[string]any, error) {
		if req.CreatedBy != actor.UserID {
			return nil, fmt.Errorf("only the creator may submit: %w", ErrUnauthorized)
		}
		req.SubmittedAt = &now
		return nil, nil
	})
}

func (s *RequisitionService) Approve(ctx context.Context, actor authority.Actor, requisitionID string, cmd ApproveRequest) (models.Requisition, error) {
	if cmd.ApprovedAmount != nil && *cmd.ApprovedAmount <= 0 {
		return models.Requisition{}, validationError("approved amount must be positive")
	}
	return s.transition(ctx, actor, requisitionID, models.EventApprove, func(_ *sqlx.Tx, req *models.Requisition, now time.Time) (map[string]any, error) {
		hop := req.CurrentHop
		if cmd.Hop != 0 && cmd.Hop != hop {
			return nil, fmt.Errorf("hop %d is not pending (pending hop %d): %w", cmd.Hop, hop, ErrInvalidTransition)
		}
		if req.CreatedBy == actor.UserID {
			return nil, fmt.Errorf("creator cannot approve own requisition: %w", ErrUnauthorized)
		}
		if req.FirstApproverID != nil && *req.FirstApproverID == actor.UserID {
			return nil, fmt.Errorf("approver already satisfied an earlier hop: %w", ErrUnauthorized)
		}
		level := authority.Level(req.RequiredLevel)
		if !s.resolver.IsAuthorized(actor.Roles, level) {
			return nil, fmt.Errorf("level %d authority required: %w", level, ErrUnauthorized)
		}
		data := map[string]any{"hop": hop, "required_hops": req.RequiredHops, "level": int(level)}
		if cmd.Comment != "" {
			data["comment"] = cmd.Comment
		}
		if hop == 1 {
			approved := req.RequestedAmount
			if cmd.ApprovedAmount != nil {
				approved = *cmd.ApprovedAmount
			}
			if approved > req.RequestedAmount {
				raised := s.resolver.RequiredLevel(approved)
				if !s.resolver.IsAuthorized(actor.Roles, raised) {
					return nil, fmt.Errorf("approved amount exceeds approver authority: %w", ErrUnauthorized)
				}
				// A raised amount is reviewed as if it had been requested.
				req.RequiredLevel = max(req.RequiredLevel, int(raised))
				req.RequiredHops = max(req.RequiredHops, s.resolver.RequiredHops(approved, req.CreatorType))
				data["level"] = req.RequiredLevel
				data["required_hops"] = req.RequiredHops
			}
			req.ApprovedAmount = &approved
			req.FirstApproverID = &actor.UserID
			req.FirstApprovedAt = &now
			data["approved_amount"] = money.FormatMinor(approved)
		} else {
			if cmd.ApprovedAmount != nil {
				return nil, validationError("approved amount can only be set on the first hop")
			}
			req.SecondApproverID = &actor.UserID
			req.SecondApprovedAt = &now
		}
		if hop < req.RequiredHops {
			req.CurrentHop = hop + 1
		} else {
			req.ApprovedAt = &now
		}
		return data, nil
	})
}

func (s *RequisitionService) Reject(ctx context.Context, actor authority.Actor, requisitionID, reason string) (models.Requisition, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Requisition{}, validationError("rejection reason is required")
	}
	return s.transition(ctx, actor, requisitionID, models.EventReject, func(_ *sqlx.Tx, req *models.Requisition, _ time.Time) (map[string]any, error) {
		level := authority.Level(req.RequiredLevel)
		if !s.resolver.IsAuthorized(actor.Roles, level) {
			return nil, fmt.Errorf("level %d authority required: %w", level, ErrUnauthorized)
		}
		req.RejectedBy = &actor.UserID
		req.RejectionReason = &reason
		return map[string]any{"hop": req.CurrentHop, "reason": reason}, nil
	})
}

func (s *RequisitionService) Cancel(ctx context.Context, actor authority.Actor, requisitionID, reason string) (models.Requisition, error) {
	return s.transition(ctx, actor, requisitionID, models.EventCancel, func(_ *sqlx.Tx, req *models.Requisition, _ time.Time) (map[string]any, error) {
		isCreator := req.CreatedBy == actor.UserID
		switch req.Status {
		case models.StatusPending:
			if !isCreator && !actor.IsAdmin() {
				return nil, fmt.Errorf("only the creator or an admin may cancel: %w", ErrUnauthorized)
			}
		case models.StatusUnderReview:
			if !isCreator {
				return nil, fmt.Errorf("only the creator may withdraw a requisition under review: %w", ErrUnauthorized)
			}
			if req.HasApproval() {
				return nil, fmt.Errorf("requisition already has an approval: %w", ErrInvalidTransition)
			}
		case models.StatusApproved:
			if !actor.IsAdmin() {
				return nil, fmt.Errorf("only an admin may cancel an approved requisition: %w", ErrUnauthorized)
			}
		}
		req.CancelledBy = &actor.UserID
		data := map[string]any{}
		if reason = strings.TrimSpace(reason); reason != "" {
			data["reason"] = reason
		}
		return data, nil
	})
}

// Execute disburses an approved requisition. The requisition row and then
// the fund row are locked; a short balance rolls everything back and leaves
// the requisition APPROVED.
func (s *RequisitionService) Execute(ctx context.Context, actor authority.Actor, requisitionID string, cmd ExecuteRequest) (models.Requisition, error) {
	if cmd.PaymentDate.IsZero() {
		return models.Requisition{}, validationError("payment date is required")
	}
	var debit Debit
	executed, err := s.transition(ctx, actor, requisitionID, models.EventExecute, func(tx *sqlx.Tx, req *models.Requisition, now time.Time) (map[string]any, error) {
		if !actor.CanDisburse() {
			return nil, fmt.Errorf("disbursement authority required: %w", ErrUnauthorized)
		}
		amount := req.EffectiveAmount()
		var err error
		debit, err = s.ledger.DebitFundForExecution(ctx, tx, req.OrganizationID, req.FundID, amount, req.ID, actor.UserID, ExecutionDetails{
			PaymentDate: cmd.PaymentDate,
			ReceiptRef:  cmd.ReceiptRef,
			Notes:       cmd.Notes,
		})
		if err != nil {
			return nil, err
		}
		paymentDate := cmd.PaymentDate.UTC()
		req.PaymentDate = &paymentDate
		req.ReceiptRef = cmd.ReceiptRef
		req.ExecutionNotes = cmd.Notes
		req.ExecutedBy = &actor.UserID
		req.ExecutedAt = &now
		return map[string]any{
			"amount":        money.FormatMinor(amount),
			"fund_id":       req.FundID,
			"expense_id":    debit.Expense.ID,
			"movement_id":   debit.Movement.ID,
			"balance_after": money.FormatMinor(debit.BalanceAfter),
		}, nil
	})
	if err != nil {
		return models.Requisition{}, err
	}
	if s.hub != nil {
		s.hub.BroadcastFund(executed.OrganizationID, websocket.FundUpdate{
			FundID:   executed.FundID,
			Category: string(debit.Category),
			Balance:  money.FormatMinor(debit.BalanceAfter),
			Reason:   "requisition.executed",
		})
	}
	return executed, nil
}

func (s *RequisitionService) Get(ctx context.Context, actor authority.Actor, requisitionID string) (models.Requisition, error) {
	if err := requireActor(actor); err != nil {
		return models.Requisition{}, err
	}
	if err := checkID(requisitionID, entityRequisition); err != nil {
		return models.Requisition{}, err
	}
	req, err := s.requisitions.GetByID(ctx, requisitionID)
	if err != nil {
		return models.Requisition{}, notFound(err, entityRequisition)
	}
	if req.OrganizationID != actor.OrganizationID {
		return models.Requisition{}, fmt.Errorf("%s: %w", entityRequisition, ErrNotFound)
	}
	return req, nil
}

func (s *RequisitionService) List(ctx context.Context, actor authority.Actor, status models.Status, limit, offset int) ([]models.Requisition, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, validationError("unknown status %q", status)
	}
	return s.requisitions.ListByOrganization(ctx, actor.OrganizationID, status, clampLimit(limit), max(offset, 0))
}

// AuditTrail returns the audit records of one entity, oldest first.
func (s *RequisitionService) AuditTrail(ctx context.Context, actor authority.Actor, entityID string, limit, offset int) ([]models.AuditRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.audit.List(ctx, actor.OrganizationID, entityID, clampLimit(limit), max(offset, 0))
}

type mutateFunc func(tx *sqlx.Tx, req *models.Requisition, now time.Time) (map[string]any, error)

// transition runs one lifecycle event: lock, check the edge, apply mutate,
// persist with a version check and append the audit record, all in one tx.
func (s *RequisitionService) transition(ctx context.Context, actor authority.Actor, requisitionID string, event models.Event, mutate mutateFunc) (models.Requisition, error) {
	op := string(event)
	ctx, span := s.startSpan(ctx, "requisition."+op, actor, requisitionID)
	defer span.End()

	if err := requireActor(actor); err != nil {
		return models.Requisition{}, s.fail(span, err, op, actor, requisitionID)
	}
	if err := checkID(requisitionID, entityRequisition); err != nil {
		return models.Requisition{}, s.fail(span, err, op, actor, requisitionID)
	}
	var result models.Requisition
	var previous models.Status
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		req, err := s.requisitions.GetForUpdate(ctx, tx, requisitionID)
		if err != nil {
			return notFound(err, entityRequisition)
		}
		if req.OrganizationID != actor.OrganizationID {
			return fmt.Errorf("%s: %w", entityRequisition, ErrNotFound)
		}
		previous = req.Status
		hop := req.CurrentHop
		if _, ok := models.Next(req.Status, event, req.RequiredHops-hop); !ok {
			return fmt.Errorf("%s from %s: %w", event, req.Status, ErrInvalidTransition)
		}
		now := s.now().UTC()
		data, err := mutate(tx, &req, now)
		if err != nil {
			return err
		}
		// mutate may raise RequiredHops, so the target is resolved afterwards.
		next, _ := models.Next(previous, event, req.RequiredHops-hop)
		req.Status = next
		req.UpdatedAt = now
		if err := s.requisitions.Update(ctx, tx, req); err != nil {
			return err
		}
		req.Version++
		if err := s.record(ctx, tx, actor, req, previous, event, data); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return models.Requisition{}, s.fail(span, err, op, actor, requisitionID)
	}
	s.committed(result, previous, actor)
	return result, nil
}

func (s *RequisitionService) record(ctx context.Context, tx store.Getter, actor authority.Actor, req models.Requisition, previous models.Status, event models.Event, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	newStatus := string(req.Status)
	input := store.AuditInput{
		ID:             uuid.NewString(),
		Action:         entityRequisition + "." + string(event),
		EntityType:     entityRequisition,
		EntityID:       req.ID,
		ActorUserID:    actor.UserID,
		OrganizationID: req.OrganizationID,
		NewStatus:      &newStatus,
		Data:           string(payload),
	}
	if previous != "" {
		prev := string(previous)
		input.PreviousStatus = &prev
	}
	_, err = s.audit.Record(ctx, tx, input)
	return err
}

func (s *RequisitionService) startSpan(ctx context.Context, name string, actor authority.Actor, requisitionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("actor.id", actor.UserID),
		attribute.String("organization.id", actor.OrganizationID),
		attribute.String("requisition.id", requisitionID),
	))
}

func (s *RequisitionService) fail(span trace.Span, err error, op string, actor authority.Actor, requisitionID string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("actor_id", actor.UserID),
		zap.String("requisition_id", requisitionID),
		zap.Error(err),
	}
	if isExpected(err) {
		s.log.Warn("requisition command refused", fields...)
	} else {
		s.log.Error("requisition command failed", fields...)
	}
	return err
}

func (s *RequisitionService) committed(req models.Requisition, previous models.Status, actor authority.Actor) {
	s.log.Info("requisition transition committed",
		zap.String("requisition_id", req.ID),
		zap.String("code", req.Code),
		zap.String("from", string(previous)),
		zap.String("to", string(req.Status)),
		zap.String("actor_id", actor.UserID),
	)
}

func requireActor(actor authority.Actor) error {
	if actor.UserID == "" || actor.OrganizationID == "" {
		return fmt.Errorf("missing caller identity: %w", ErrUnauthorized)
	}
	return nil
}

func isExpected(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConcurrencyConflict)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
