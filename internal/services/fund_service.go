package services

import (
	"context"
	"encoding/json"
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
	"go.uber.org/zap"
)

type IncomeStore interface {
	Create(ctx context.Context, tx store.Execer, income models.Income) error
}

type FundService struct {
	txRunner db.TxRunner
	funds    FundStore
	incomes  IncomeStore
	moves    MovementStore
	ledger   *Ledger
	audit    AuditStore
	hub      FundHub
	log      *zap.Logger
	now      func() time.Time
}

func NewFundService(txRunner db.TxRunner, funds FundStore, incomes IncomeStore, moves MovementStore, ledger *Ledger, audit AuditStore, hub FundHub, log *zap.Logger) *FundService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FundService{
		txRunner: txRunner,
		funds:    funds,
		incomes:  incomes,
		moves:    moves,
		ledger:   ledger,
		audit:    audit,
		hub:      hub,
		log:      log.Named("funds"),
		now:      time.Now,
	}
}

type RecordIncomeRequest struct {
	FundID      string
	Amount      int64
	Source      string
	Description *string
	ReceivedOn  time.Time
}

// ProvisionFunds creates the missing category funds of the caller's
// organization and returns all of them. Running it twice creates nothing.
func (s *FundService) ProvisionFunds(ctx context.Context, actor authority.Actor) ([]models.Fund, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("only an admin may provision funds: %w", ErrUnauthorized)
	}
	var created []models.FundCategory
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		created = created[:0]
		for _, category := range models.FundCategories {
			rows, err := s.funds.Create(ctx, tx, uuid.NewString(), actor.OrganizationID, category)
			if err != nil {
				return err
			}
			if rows > 0 {
				created = append(created, category)
			}
		}
		if len(created) == 0 {
			return nil
		}
		payload, err := json.Marshal(map[string]any{"categories": created})
		if err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, store.AuditInput{
			ID:             uuid.NewString(),
			Action:         "funds.provisioned",
			EntityType:     "organization",
			EntityID:       actor.OrganizationID,
			ActorUserID:    actor.UserID,
			OrganizationID: actor.OrganizationID,
			Data:           string(payload),
		})
		return err
	})
	if err != nil {
		s.log.Warn("fund provisioning failed", zap.String("organization_id", actor.OrganizationID), zap.Error(err))
		return nil, err
	}
	if len(created) > 0 {
		s.log.Info("funds provisioned", zap.String("organization_id", actor.OrganizationID), zap.Int("created", len(created)))
	}
	return s.funds.ListByOrganization(ctx, actor.OrganizationID)
}

// RecordIncome credits a fund and stores the income row and its audit
// record in one transaction.
func (s *FundService) RecordIncome(ctx context.Context, actor authority.Actor, req RecordIncomeRequest) (models.Income, error) {
	if err := requireActor(actor); err != nil {
		return models.Income{}, err
	}
	if !actor.CanDisburse() {
		return models.Income{}, fmt.Errorf("treasurer authority required: %w", ErrUnauthorized)
	}
	source := strings.TrimSpace(req.Source)
	switch {
	case req.FundID == "":
		return models.Income{}, validationError("fund_id is required")
	case uuid.Validate(req.FundID) != nil:
		return models.Income{}, validationError("fund_id %q is not a valid id", req.FundID)
	case req.Amount <= 0:
		return models.Income{}, validationError("income amount must be positive")
	case source == "":
		return models.Income{}, validationError("income source is required")
	}
	receivedOn := req.ReceivedOn
	if receivedOn.IsZero() {
		receivedOn = s.now()
	}

	var income models.Income
	var credit Credit
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		income = models.Income{
			ID:             uuid.NewString(),
			OrganizationID: actor.OrganizationID,
			FundID:         req.FundID,
			Amount:         req.Amount,
			Source:         source,
			Description:    req.Description,
			ReceivedOn:     receivedOn.UTC(),
			CreatedBy:      actor.UserID,
			CreatedAt:      s.now().UTC(),
		}
		var err error
		credit, err = s.ledger.CreditFund(ctx, tx, actor.OrganizationID, req.FundID, req.Amount, income.ID, models.ReferenceIncome, actor.UserID)
		if err != nil {
			return err
		}
		if err := s.incomes.Create(ctx, tx, income); err != nil {
			return err
		}
		payload, err := json.Marshal(map[string]any{
			"fund_id":       req.FundID,
			"amount":        money.FormatMinor(req.Amount),
			"source":        source,
			"movement_id":   credit.Movement.ID,
			"balance_after": money.FormatMinor(credit.BalanceAfter),
		})
		if err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, store.AuditInput{
			ID:             uuid.NewString(),
			Action:         "income.recorded",
			EntityType:     "income",
			EntityID:       income.ID,
			ActorUserID:    actor.UserID,
			OrganizationID: actor.OrganizationID,
			Data:           string(payload),
		})
		return err
	})
	if err != nil {
		s.log.Warn("income not recorded",
			zap.String("fund_id", req.FundID),
			zap.String("actor_id", actor.UserID),
			zap.Error(err),
		)
		return models.Income{}, err
	}
	s.log.Info("income recorded",
		zap.String("income_id", income.ID),
		zap.String("fund_id", income.FundID),
		zap.String("amount", money.FormatMinor(income.Amount)),
	)
	if s.hub != nil {
		s.hub.BroadcastFund(actor.OrganizationID, websocket.FundUpdate{
			FundID:   income.FundID,
			Category: string(credit.Category),
			Balance:  money.FormatMinor(credit.BalanceAfter),
			Reason:   "income.recorded",
		})
	}
	return income, nil
}

func (s *FundService) ListFunds(ctx context.Context, actor authority.Actor) ([]models.Fund, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.funds.ListByOrganization(ctx, actor.OrganizationID)
}

func (s *FundService) GetFund(ctx context.Context, actor authority.Actor, fundID string) (models.Fund, error) {
	if err := requireActor(actor); err != nil {
		return models.Fund{}, err
	}
	if err := checkID(fundID, "fund"); err != nil {
		return models.Fund{}, err
	}
	fund, err := s.funds.GetByID(ctx, fundID)
	if err != nil {
		return models.Fund{}, notFound(err, "fund")
	}
	if fund.OrganizationID != actor.OrganizationID {
		return models.Fund{}, fmt.Errorf("fund: %w", ErrNotFound)
	}
	return fund, nil
}

func (s *FundService) ListMovements(ctx context.Context, actor authority.Actor, fundID string, limit, offset int) ([]models.Movement, error) {
	if _, err := s.GetFund(ctx, actor, fundID); err != nil {
		return nil, err
	}
	return s.moves.ListByFund(ctx, fundID, clampLimit(limit), max(offset, 0))
}

// Reconcile compares every stored fund balance with the sum of its
// movements. A non-zero Difference means the ledger invariant is broken.
func (s *FundService) Reconcile(ctx context.Context, actor authority.Actor) ([]store.FundReconciliation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.CanDisburse() {
		return nil, fmt.Errorf("treasurer authority required: %w", ErrUnauthorized)
	}
	rows, err := s.funds.Reconcile(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Difference != 0 {
			s.log.Error("fund balance drifted from ledger",
				zap.String("fund_id", row.FundID),
				zap.Int64("stored", row.StoredBalance),
				zap.Int64("calculated", row.CalculatedBalance),
			)
		}
	}
	return rows, nil
}
