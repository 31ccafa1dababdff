package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"treasury/internal/authority"
	"treasury/internal/models"
	"treasury/internal/services"
)

func TestCreateRequisition(t *testing.T) {
	var got services.CreateRequisitionRequest
	var gotActor authority.Actor
	handler := newTestHandler(stubRequisitionService{
		createFn: func(_ context.Context, actor authority.Actor, req services.CreateRequisitionRequest) (models.Requisition, error) {
			got, gotActor = req, actor
			return models.Requisition{
				ID:              "req-1",
				Code:            "REQ-2026-000001",
				RequestedAmount: req.RequestedAmount,
				Status:          models.StatusPending,
			}, nil
		},
	}, stubFundService{})

	rr := serveRoute(t, handler, http.MethodPost, "/api/v1/requisitions",
		`{"fund_id":"7d9f3c1e-2b4a-4c8e-9f10-3a5b6c7d8e9f","category":"UTILITIES","requested_amount":"4500.50","justification":"Electricity"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.RequestedAmount != 450050 || got.Category != models.ExpenseUtilities || got.FundID != testFundID {
		t.Fatalf("unexpected request: %#v", got)
	}
	if gotActor.UserID != "user-1" || gotActor.OrganizationID != "org-1" {
		t.Fatalf("unexpected actor: %#v", gotActor)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["requested_amount"] != "4500.50" || payload["status"] != "PENDING" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestCreateRequisitionValidation(t *testing.T) {
	handler := newTestHandler(stubRequisitionService{
		createFn: func(context.Context, authority.Actor, services.CreateRequisitionRequest) (models.Requisition, error) {
			t.Fatalf("service should not be called")
			return models.Requisition{}, nil
		},
	}, stubFundService{})

	bodies := []string{
		`{"fund_id":"7d9f3c1e-2b4a-4c8e-9f10-3a5b6c7d8e9f","category":"UTILITIES","requested_amount":"1.005","justification":"x"}`,
		`{"fund_id":"7d9f3c1e-2b4a-4c8e-9f10-3a5b6c7d8e9f","category":"FOOD","requested_amount":"10","justification":"x"}`,
		`{"fund_id":"7d9f3c1e-2b4a-4c8e-9f10-3a5b6c7d8e9f","category":"UTILITIES","requested_amount":"10"}`,
		`{"fund_id":"7d9f3c1e-2b4a-4c8e-9f10-3a5b6c7d8e9f","category":"UTILITIES","requested_amount":"-10","justification":"x"}`,
		`{"fund_id":"fund-1","category":"UTILITIES","requested_amount":"10","justification":"x"}`,
		`{"unknown":true}`,
		`not json`,
	}
	for _, body := range bodies {
		rr := serveRoute(t, handler, http.MethodPost, "/api/v1/requisitions", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestRequisitionErrorMapping(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		code      string
		retryable bool
	}{
		{fmt.Errorf("submit from EXECUTED: %w", services.ErrInvalidTransition), http.StatusConflict, "invalid_transition", false},
		{fmt.Errorf("level 3 authority required: %w", services.ErrUnauthorized), http.StatusForbidden, "unauthorized", false},
		{fmt.Errorf("fund: %w", services.ErrInsufficientBalance), http.StatusUnprocessableEntity, "insufficient_balance", false},
		{fmt.Errorf("%w: reason is required", services.ErrValidation), http.StatusBadRequest, "validation_failed", false},
		{fmt.Errorf("requisition: %w", services.ErrNotFound), http.StatusNotFound, "not_found", false},
		{fmt.Errorf("%w: retry limit exceeded", services.ErrConcurrencyConflict), http.StatusConflict, "concurrency_conflict", true},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError, "internal_error", false},
	}
	for _, tc := range cases {
		handler := newTestHandler(stubRequisitionService{
			submitFn: func(context.Context, authority.Actor, string) (models.Requisition, error) {
				return models.Requisition{}, tc.err
			},
		}, stubFundService{})
		rr := serveRoute(t, handler, http.MethodPost, "/api/v1/requisitions/"+testRequisitionID+"/submit", "")
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		var payload map[string]any
		if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if payload["error"] != tc.code {
			t.Fatalf("%v: expected code %s, got %v", tc.err, tc.code, payload["error"])
		}
		if retryable, _ := payload["retryable"].(bool); retryable != tc.retryable {
			t.Fatalf("%v: expected retryable=%v", tc.err, tc.retryable)
		}
	}
}

func TestApproveRequisitionPassesHopAndAmount(t *testing.T) {
	var gotID string
	var got services.ApproveRequest
	handler := newTestHandler(stubRequisitionService{
		approveFn: func(_ context.Context, _ authority.Actor, id string, cmd services.ApproveRequest) (models.Requisition, error) {
			gotID, got = id, cmd
			return models.Requisition{ID: id, Status: models.StatusApproved, ApprovedAmount: cmd.ApprovedAmount}, nil
		},
	}, stubFundService{})

	rr := serveRoute(t, handler, http.MethodPost, "/api/v1/requisitions/"+testRequisitionID+"/approve",
		`{"hop":1,"approved_amount":"3000","comment":"ok"}`, "treasurer")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotID != testRequisitionID || got.Hop != 1 || got.ApprovedAmount == nil || *got.ApprovedAmount != 300000 {
		t.Fatalf("unexpected command for %s: %#v", gotID, got)
	}
}

func TestApproveRequisitionWithoutBody(t *testing.T) {
	called := false
	handler := newTestHandler(stubRequisitionService{
		approveFn: func(_ context.Context, _ authority.Actor, _ string, cmd services.ApproveRequest) (models.Requisition, error) {
			called = cmd.ApprovedAmount == nil && cmd.Hop == 0
			return models.Requisition{}, nil
		},
	}, stubFundService{})

	rr := serveRoute(t, handler, http.MethodPost, "/api/v1/requisitions/"+testRequisitionID+"/approve", "")
	if rr.Code != http.StatusOK || !called {
		t.Fatalf("expected 200 with empty command, got %d", rr.Code)
	}
}

func TestRejectRequisitionRequiresReason(t *testing.T) {
	handler := newTestHandler(stubRequisitionService{}, stubFundService{})
	rr := serveRoute(t, handler, http.MethodPost, "/api/v1/requisitions/"+testRequisitionID+"/reject", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestExecuteRequisition(t *testing.T) {
	var got services.ExecuteRequest
	handler := newTestHandler(stubRequisitionService{
		executeFn: func(_ context.Context, _ authority.Actor, id string, cmd services.ExecuteRequest) (models.Requisition, error) {
			got = cmd
			return models.Requisition{ID: id, Status: models.StatusExecuted, ApprovedAmount: int64Ptr(450000)}, nil
		},
	}, stubFundService{})

	rr := serveRoute(t, handler, http.MethodPost, "/api/v1/requisitions/"+testRequisitionID+"/execute",
		`{"payment_date":"2026-03-14","receipt_ref":"RC-77"}`, "treasurer")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !got.PaymentDate.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected payment date %v", got.PaymentDate)
	}
	if got.ReceiptRef == nil || *got.ReceiptRef != "RC-77" || got.Notes != nil {
		t.Fatalf("unexpected execution details: %#v", got)
	}

	rr = serveRoute(t, handler, http.MethodPost, "/api/v1/requisitions/"+testRequisitionID+"/execute", `{"payment_date":"14/03/2026"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rr.Code)
	}
}

func TestListRequisitionsPagination(t *testing.T) {
	var gotStatus models.Status
	var gotLimit, gotOffset int
	handler := newTestHandler(stubRequisitionService{
		listFn: func(_ context.Context, _ authority.Actor, status models.Status, limit, offset int) ([]models.Requisition, error) {
			gotStatus, gotLimit, gotOffset = status, limit, offset
			return []models.Requisition{{ID: "req-1", RejectionReason: stringPtr("no")}}, nil
		},
	}, stubFundService{})

	rr := serveRoute(t, handler, http.MethodGet, "/api/v1/requisitions?status=APPROVED&limit=10&page=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotStatus != models.StatusApproved || gotLimit != 10 || gotOffset != 20 {
		t.Fatalf("unexpected query: %s %d %d", gotStatus, gotLimit, gotOffset)
	}
}

func TestRoutesRequireToken(t *testing.T) {
	handler := newTestHandler(stubRequisitionService{}, stubFundService{})
	for _, path := range []string{"/api/v1/requisitions", "/api/v1/funds", "/api/v1/audit", "/api/v1/ws/funds"} {
		rr := httptestGet(handler, path)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rr.Code)
		}
	}
	if rr := httptestGet(handler, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}
}

func TestMalformedPathIDIsNotFound(t *testing.T) {
	called := false
	handler := newTestHandler(stubRequisitionService{
		getFn: func(context.Context, authority.Actor, string) (models.Requisition, error) {
			called = true
			return models.Requisition{}, nil
		},
		submitFn: func(context.Context, authority.Actor, string) (models.Requisition, error) {
			called = true
			return models.Requisition{}, nil
		},
		executeFn: func(context.Context, authority.Actor, string, services.ExecuteRequest) (models.Requisition, error) {
			called = true
			return models.Requisition{}, nil
		},
	}, stubFundService{
		getFundFn: func(context.Context, authority.Actor, string) (models.Fund, error) {
			called = true
			return models.Fund{}, nil
		},
		listMovementsFn: func(context.Context, authority.Actor, string, int, int) ([]models.Movement, error) {
			called = true
			return nil, nil
		},
	})

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/v1/requisitions/abc", ""},
		{http.MethodPost, "/api/v1/requisitions/abc/submit", ""},
		{http.MethodPost, "/api/v1/requisitions/abc/execute", `{"payment_date":"2026-03-14"}`},
		{http.MethodGet, "/api/v1/funds/abc", ""},
		{http.MethodGet, "/api/v1/funds/abc/movements", ""},
	}
	for _, tc := range cases {
		rr := serveRoute(t, handler, tc.method, tc.path, tc.body, "treasurer")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rr.Code)
		}
	}
	if called {
		t.Fatalf("service should not be called for a malformed id")
	}
}

func TestPaginationCapsLimitBeforeOffset(t *testing.T) {
	var gotLimit, gotOffset int
	handler := newTestHandler(stubRequisitionService{
		listFn: func(_ context.Context, _ authority.Actor, _ models.Status, limit, offset int) ([]models.Requisition, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	}, stubFundService{})

	rr := serveRoute(t, handler, http.MethodGet, "/api/v1/requisitions?limit=500&page=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLimit != 200 || gotOffset != 200 {
		t.Fatalf("expected limit 200 offset 200, got %d %d", gotLimit, gotOffset)
	}
}
