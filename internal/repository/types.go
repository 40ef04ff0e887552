package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityTypePurchaseRequest is the only entity type approval rules gate today.
const EntityTypePurchaseRequest = "purchase_request"

// Purchase request statuses.
const (
	RequestStatusDraft     = "draft"
	RequestStatusSubmitted = "submitted"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusConverted = "converted"
)

// Approval task statuses.
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// PurchaseOrderStatusDraft is the status of an order created by conversion.
const PurchaseOrderStatusDraft = "draft"

// Notification types.
const (
	NotificationApprovalRequired = "purchase_request_approval_required"
	NotificationRequestApproved  = "purchase_request_approved"
	NotificationRequestRejected  = "purchase_request_rejected"
	NotificationRequestConverted = "purchase_request_converted"
)

// Audit actions.
const (
	AuditActionCreated       = "created"
	AuditActionItemsReplaced = "items_replaced"
	AuditActionSubmitted     = "submitted"
	AuditActionApproved      = "approved"
	AuditActionRejected      = "rejected"
	AuditActionConverted     = "converted"
	AuditActionDeleted       = "deleted"
)

// ── Approval rules ───────────────────────────────────────────────────────────

// ApprovalRule gates requests whose amount falls in [MinAmount, MaxAmount]
// for a currency. Exactly one of ApproverRole and ApproverID is set.
type ApprovalRule struct {
	ID           string              `json:"id"`
	EntityType   string              `json:"entity_type"`
	Name         string              `json:"name"`
	MinAmount    decimal.Decimal     `json:"min_amount"`
	MaxAmount    decimal.NullDecimal `json:"max_amount"` // invalid = unbounded
	Currency     string              `json:"currency"`
	Level        int                 `json:"level"`
	ApproverRole *string             `json:"approver_role,omitempty"`
	ApproverID   *string             `json:"approver_id,omitempty"`
	IsActive     bool                `json:"is_active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Covers reports whether amount lies inside the rule's inclusive range.
func (r *ApprovalRule) Covers(amount decimal.Decimal) bool {
	if amount.LessThan(r.MinAmount) {
		return false
	}
	if r.MaxAmount.Valid && amount.GreaterThan(r.MaxAmount.Decimal) {
		return false
	}
	return true
}

// ── Users ────────────────────────────────────────────────────────────────────

// User is a directory entry used for approver resolution.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// ── Purchase requests ────────────────────────────────────────────────────────

// PurchaseRequest is the header of a request to buy; it owns Items and its
// approvals.
type PurchaseRequest struct {
	ID              string                 `json:"id"`
	RequestNumber   string                 `json:"request_number"`
	RequesterID     string                 `json:"requester_id"`
	SupplierID      *string                `json:"supplier_id,omitempty"`
	TotalAmount     decimal.Decimal        `json:"total_amount"`
	Currency        string                 `json:"currency"`
	Status          string                 `json:"status"`
	Notes           *string                `json:"notes,omitempty"`
	SubmittedAt     *time.Time             `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time             `json:"approved_at,omitempty"`
	RejectedAt      *time.Time             `json:"rejected_at,omitempty"`
	PurchaseOrderID *string                `json:"purchase_order_id,omitempty"`
	Version         int64                  `json:"version"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Items           []*PurchaseRequestItem `json:"items"`
}

// PurchaseRequestItem is one requested product line.
type PurchaseRequestItem struct {
	ID         string          `json:"id"`
	RequestID  string          `json:"request_id"`
	LineNumber int             `json:"line_number"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// PurchaseRequestApproval is the approval task created for one rule at
// submission time.
type PurchaseRequestApproval struct {
	ID         string     `json:"id"`
	RequestID  string     `json:"request_id"`
	RuleID     string     `json:"rule_id"`
	Level      int        `json:"level"`
	ApproverID string     `json:"approver_id"`
	Status     string     `json:"status"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	Comment    *string    `json:"comment,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ── Purchase orders ──────────────────────────────────────────────────────────

// PurchaseOrder is produced by converting an approved request.
type PurchaseOrder struct {
	ID                   string               `json:"id"`
	OrderNumber          string               `json:"order_number"`
	SourceRequestID      string               `json:"source_request_id"`
	SupplierID           string               `json:"supplier_id"`
	Currency             string               `json:"currency"`
	Status               string               `json:"status"`
	TotalAmount          decimal.Decimal      `json:"total_amount"`
	ExpectedDeliveryDate *time.Time           `json:"expected_delivery_date,omitempty"`
	PaymentTerms         *string              `json:"payment_terms,omitempty"`
	Notes                *string              `json:"notes,omitempty"`
	CreatedBy            string               `json:"created_by"`
	CreatedAt            time.Time            `json:"created_at"`
	Items                []*PurchaseOrderItem `json:"items"`
}

// PurchaseOrderItem is one ordered product line.
type PurchaseOrderItem struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	LineNumber int             `json:"line_number"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// ── Notifications & audit ────────────────────────────────────────────────────

// Notification is addressed to one user and references the entity that
// produced it.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`

	// Payload is event data for external sinks. It is not persisted.
	Payload map[string]any `json:"-"`
}

// AuditEntry is one immutable record in a request's history.
type AuditEntry struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"request_id"`
	ApprovalID   *string        `json:"approval_id,omitempty"`
	Action       string         `json:"action"`
	PerformedBy  string         `json:"performed_by"`
	PerformedAt  time.Time      `json:"performed_at"`
	StatusBefore *string        `json:"status_before,omitempty"`
	StatusAfter  *string        `json:"status_after,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// PendingApproval joins an approval task with its parent request and items.
type PendingApproval struct {
	Approval *PurchaseRequestApproval `json:"approval"`
	Request  *PurchaseRequest         `json:"request"`
}
