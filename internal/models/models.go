package models

import "time"

type Fund struct {
	ID             string       `db:"id" json:"id"`
	OrganizationID string       `db:"organization_id" json:"organization_id"`
	Category       FundCategory `db:"category" json:"category"`
	Balance        int64        `db:"balance" json:"balance"`
	IsActive       bool         `db:"is_active" json:"is_active"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// Requisition is a request to spend from a fund. Status, approved amount and
// approver fields are only written by the requisition service.
type Requisition struct {
	ID               string          `db:"id" json:"id"`
	Code             string          `db:"code" json:"code"`
	OrganizationID   string          `db:"organization_id" json:"organization_id"`
	FundID           string          `db:"fund_id" json:"fund_id"`
	Category         ExpenseCategory `db:"category" json:"category"`
	RequestedAmount  int64           `db:"requested_amount" json:"requested_amount"`
	ApprovedAmount   *int64          `db:"approved_amount" json:"approved_amount,omitempty"`
	Justification    string          `db:"justification" json:"justification"`
	CreatedBy        string          `db:"created_by" json:"created_by"`
	CreatorType      CreatorType     `db:"creator_type" json:"creator_type"`
	Status           Status          `db:"status" json:"status"`
	RequiredLevel    int             `db:"required_level" json:"required_level"`
	RequiredHops     int             `db:"required_hops" json:"required_hops"`
	CurrentHop       int             `db:"current_hop" json:"current_hop"`
	FirstApproverID  *string         `db:"first_approver_id" json:"first_approver_id,omitempty"`
	FirstApprovedAt  *time.Time      `db:"first_approved_at" json:"first_approved_at,omitempty"`
	SecondApproverID *string         `db:"second_approver_id" json:"second_approver_id,omitempty"`
	SecondApprovedAt *time.Time      `db:"second_approved_at" json:"second_approved_at,omitempty"`
	RejectedBy       *string         `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectionReason  *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CancelledBy      *string         `db:"cancelled_by" json:"cancelled_by,omitempty"`
	PaymentDate      *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	ReceiptRef       *string         `db:"receipt_ref" json:"receipt_ref,omitempty"`
	ExecutionNotes   *string         `db:"execution_notes" json:"execution_notes,omitempty"`
	ExecutedBy       *string         `db:"executed_by" json:"executed_by,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	SubmittedAt      *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt       *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	ExecutedAt       *time.Time      `db:"executed_at" json:"executed_at,omitempty"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
	Version          int64           `db:"version" json:"version"`
}

// HasApproval reports whether any approval hop has been recorded.
func (r Requisition) HasApproval() bool {
	return r.FirstApproverID != nil
}

// EffectiveAmount is the amount that will be debited on execution.
func (r Requisition) EffectiveAmount() int64 {
	if r.ApprovedAmount != nil {
		return *r.ApprovedAmount
	}
	return r.RequestedAmount
}

type Movement struct {
	ID            string        `db:"id" json:"id"`
	FundID        string        `db:"fund_id" json:"fund_id"`
	Amount        int64         `db:"amount" json:"amount"`
	Type          MovementType  `db:"type" json:"type"`
	ReferenceID   string        `db:"reference_id" json:"reference_id"`
	ReferenceType ReferenceType `db:"reference_type" json:"reference_type"`
	MovementDate  time.Time     `db:"movement_date" json:"movement_date"`
	CreatedBy     string        `db:"created_by" json:"created_by"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

type Expense struct {
	ID            string    `db:"id" json:"id"`
	RequisitionID string    `db:"requisition_id" json:"requisition_id"`
	FundID        string    `db:"fund_id" json:"fund_id"`
	Amount        int64     `db:"amount" json:"amount"`
	PaymentDate   time.Time `db:"payment_date" json:"payment_date"`
	PaidBy        string    `db:"paid_by" json:"paid_by"`
	ReceiptRef    *string   `db:"receipt_ref" json:"receipt_ref,omitempty"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Income struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	FundID         string    `db:"fund_id" json:"fund_id"`
	Amount         int64     `db:"amount" json:"amount"`
	Source         string    `db:"source" json:"source"`
	Description    *string   `db:"description" json:"description,omitempty"`
	ReceivedOn     time.Time `db:"received_on" json:"received_on"`
	CreatedBy      string    `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type AuditRecord struct {
	ID             string    `db:"id" json:"id"`
	Action         string    `db:"action" json:"action"`
	EntityType     string    `db:"entity_type" json:"entity_type"`
	EntityID       string    `db:"entity_id" json:"entity_id"`
	ActorUserID    string    `db:"actor_user_id" json:"actor_user_id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	PreviousStatus *string   `db:"previous_status" json:"previous_status,omitempty"`
	NewStatus      *string   `db:"new_status" json:"new_status,omitempty"`
	Data           string    `db:"data" json:"data"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
