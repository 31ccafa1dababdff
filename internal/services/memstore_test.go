package services

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"treasury/internal/authority"
	"treasury/internal/db"
	"treasury/internal/models"
	"treasury/internal/store"
	"treasury/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// memLedger is an in-memory stand-in for the Postgres schema. Transactions
// are serialized by txMu and rolled back by restoring a snapshot, which
// gives the same observable outcome as SERIALIZABLE isolation.
type memLedger struct {
	txMu sync.Mutex
	mu   sync.Mutex

	funds        map[string]models.Fund
	requisitions map[string]models.Requisition
	movements    []models.Movement
	expenses     []models.Expense
	incomes      []models.Income
	audits       []models.AuditRecord
	seq          int64

	auditErr error
}

type memSnapshot struct {
	funds        map[string]models.Fund
	requisitions map[string]models.Requisition
	movements    []models.Movement
	expenses     []models.Expense
	incomes      []models.Income
	audits       []models.AuditRecord
	seq          int64
}

func newMemLedger() *memLedger {
	return &memLedger{
		funds:        map[string]models.Fund{},
		requisitions: map[string]models.Requisition{},
	}
}

func (m *memLedger) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		funds:        maps.Clone(m.funds),
		requisitions: maps.Clone(m.requisitions),
		movements:    slices.Clone(m.movements),
		expenses:     slices.Clone(m.expenses),
		incomes:      slices.Clone(m.incomes),
		audits:       slices.Clone(m.audits),
		seq:          m.seq,
	}
}

func (m *memLedger) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funds = s.funds
	m.requisitions = s.requisitions
	m.movements = s.movements
	m.expenses = s.expenses
	m.incomes = s.incomes
	m.audits = s.audits
	m.seq = s.seq
}

func (m *memLedger) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := m.snapshot()
	if err := fn(nil); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memLedger) addFund(orgID string, category models.FundCategory, balance int64) models.Fund {
	m.mu.Lock()
	defer m.mu.Unlock()
	fund := models.Fund{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Category:       category,
		IsActive:       true,
	}
	m.funds[fund.ID] = fund
	if balance > 0 {
		m.seq++
		m.movements = append(m.movements, models.Movement{
			ID:            fmt.Sprintf("seed-%d", m.seq),
			FundID:        fund.ID,
			Amount:        balance,
			Type:          models.MovementCredit,
			ReferenceID:   "seed",
			ReferenceType: models.ReferenceIncome,
		})
		fund.Balance = balance
		m.funds[fund.ID] = fund
	}
	return fund
}

func (m *memLedger) fund(id string) models.Fund {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.funds[id]
}

func (m *memLedger) requisition(id string) models.Requisition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requisitions[id]
}

func (m *memLedger) movementsFor(fundID string) []models.Movement {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Movement
	for _, mv := range m.movements {
		if mv.FundID == fundID {
			out = append(out, mv)
		}
	}
	return out
}

func (m *memLedger) auditsFor(entityID string) []models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditRecord
	for _, rec := range m.audits {
		if rec.EntityID == entityID {
			out = append(out, rec)
		}
	}
	return out
}

func (m *memLedger) expenseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expenses)
}

type memFunds struct{ m *memLedger }

func (s memFunds) Create(_ context.Context, _ store.Execer, id, organizationID string, category models.FundCategory) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, f := range s.m.funds {
		if f.OrganizationID == organizationID && f.Category == category {
			return 0, nil
		}
	}
	s.m.funds[id] = models.Fund{ID: id, OrganizationID: organizationID, Category: category, IsActive: true}
	return 1, nil
}

func (s memFunds) GetByID(_ context.Context, fundID string) (models.Fund, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	f, ok := s.m.funds[fundID]
	if !ok {
		return models.Fund{}, sql.ErrNoRows
	}
	return f, nil
}

func (s memFunds) GetForUpdate(ctx context.Context, _ store.Getter, fundID string) (models.Fund, error) {
	return s.GetByID(ctx, fundID)
}

func (s memFunds) ListByOrganization(_ context.Context, organizationID string) ([]models.Fund, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Fund
	for _, f := range s.m.funds {
		if f.OrganizationID == organizationID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s memFunds) AdjustBalance(_ context.Context, _ store.Execer, fundID string, delta int64) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	f, ok := s.m.funds[fundID]
	if !ok || f.Balance+delta < 0 {
		return 0, nil
	}
	f.Balance += delta
	s.m.funds[fundID] = f
	return 1, nil
}

func (s memFunds) Reconcile(_ context.Context, organizationID string) ([]store.FundReconciliation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []store.FundReconciliation
	for _, f := range s.m.funds {
		if f.OrganizationID != organizationID {
			continue
		}
		var sum int64
		for _, mv := range s.m.movements {
			if mv.FundID == f.ID {
				sum += mv.Amount
			}
		}
		out = append(out, store.FundReconciliation{
			FundID:            f.ID,
			Category:          f.Category,
			StoredBalance:     f.Balance,
			CalculatedBalance: sum,
			Difference:        f.Balance - sum,
		})
	}
	return out, nil
}

type memMovements struct{ m *memLedger }

func (s memMovements) Insert(_ context.Context, _ store.Execer, movement models.Movement) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.movements = append(s.m.movements, movement)
	return nil
}

func (s memMovements) ListByFund(_ context.Context, fundID string, limit, offset int) ([]models.Movement, error) {
	all := s.m.movementsFor(fundID)
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(len(all), offset+limit)], nil
}

type memExpenses struct{ m *memLedger }

func (s memExpenses) Create(_ context.Context, _ store.Execer, expense models.Expense) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, e := range s.m.expenses {
		if e.RequisitionID == expense.RequisitionID {
			return &pq.Error{Code: "23505", Constraint: store.ExpenseRequisitionConstraint}
		}
	}
	s.m.expenses = append(s.m.expenses, expense)
	return nil
}

type memIncomes struct{ m *memLedger }

func (s memIncomes) Create(_ context.Context, _ store.Execer, income models.Income) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.incomes = append(s.m.incomes, income)
	return nil
}

type memRequisitions struct{ m *memLedger }

func (s memRequisitions) NextCode(_ context.Context, _ store.Getter, at time.Time) (string, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.seq++
	return fmt.Sprintf("REQ-%d-%06d", at.Year(), s.m.seq), nil
}

func (s memRequisitions) Create(_ context.Context, _ store.Execer, req models.Requisition) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.requisitions[req.ID] = req
	return nil
}

func (s memRequisitions) GetByID(_ context.Context, requisitionID string) (models.Requisition, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	req, ok := s.m.requisitions[requisitionID]
	if !ok {
		return models.Requisition{}, sql.ErrNoRows
	}
	return req, nil
}

func (s memRequisitions) GetForUpdate(ctx context.Context, _ store.Getter, requisitionID string) (models.Requisition, error) {
	return s.GetByID(ctx, requisitionID)
}

func (s memRequisitions) Update(_ context.Context, _ store.Execer, req models.Requisition) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	current, ok := s.m.requisitions[req.ID]
	if !ok || current.Version != req.Version {
		return fmt.Errorf("requisition %s: %w", req.ID, db.ErrConcurrencyConflict)
	}
	req.Version++
	s.m.requisitions[req.ID] = req
	return nil
}

func (s memRequisitions) ListByOrganization(_ context.Context, organizationID string, status models.Status, limit, offset int) ([]models.Requisition, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Requisition
	for _, req := range s.m.requisitions {
		if req.OrganizationID == organizationID && (status == "" || req.Status == status) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code > out[j].Code })
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(len(out), offset+limit)], nil
}

type memAudit struct{ m *memLedger }

func (s memAudit) Record(_ context.Context, _ store.Getter, input store.AuditInput) (models.AuditRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.auditErr != nil {
		return models.AuditRecord{}, s.m.auditErr
	}
	rec := models.AuditRecord{
		ID:             input.ID,
		Action:         input.Action,
		EntityType:     input.EntityType,
		EntityID:       input.EntityID,
		ActorUserID:    input.ActorUserID,
		OrganizationID: input.OrganizationID,
		PreviousStatus: input.PreviousStatus,
		NewStatus:      input.NewStatus,
		Data:           input.Data,
		CreatedAt:      time.Now().UTC(),
	}
	s.m.audits = append(s.m.audits, rec)
	return rec, nil
}

func (s memAudit) List(_ context.Context, organizationID, entityID string, limit, offset int) ([]models.AuditRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.AuditRecord
	for _, rec := range s.m.audits {
		if rec.OrganizationID == organizationID && (entityID == "" || rec.EntityID == entityID) {
			out = append(out, rec)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(len(out), offset+limit)], nil
}

type recordingHub struct {
	mu      sync.Mutex
	updates []websocket.FundUpdate
}

func (h *recordingHub) BroadcastFund(_ string, update websocket.FundUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *recordingHub) last() websocket.FundUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.updates[len(h.updates)-1]
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates)
}

const testOrg = "org-1"

type harness struct {
	mem          *memLedger
	hub          *recordingHub
	requisitions *RequisitionService
	funds        *FundService
}

func newHarness(t *testing.T) harness {
	t.Helper()
	resolver, err := authority.NewResolver(authority.Thresholds{
		Small:  5_000_00,
		Medium: 20_000_00,
		Large:  50_000_00,
	}, authority.MagnitudeLarge)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	mem := newMemLedger()
	hub := &recordingHub{}
	funds := memFunds{mem}
	ledger := NewLedger(funds, memMovements{mem}, memExpenses{mem})
	audit := memAudit{mem}
	return harness{
		mem:          mem,
		hub:          hub,
		requisitions: NewRequisitionService(mem, resolver, memRequisitions{mem}, funds, ledger, audit, hub, zap.NewNop()),
		funds:        NewFundService(mem, funds, memIncomes{mem}, memMovements{mem}, ledger, audit, hub, zap.NewNop()),
	}
}

func actor(id string, roles ...string) authority.Actor {
	return authority.Actor{
		UserID:         id,
		OrganizationID: testOrg,
		Roles:          roles,
		CreatorType:    models.CreatorStandard,
	}
}

var (
	creator   = actor("user-creator")
	treasurer = actor("user-treasurer", authority.RoleTreasurer)
	director  = actor("user-director", authority.RoleDirector)
	board     = actor("user-board", authority.RoleBoard)
	head      = actor("user-head", authority.RoleOrganizationHead)
	admin     = actor("user-admin", authority.RoleAdmin)
)
