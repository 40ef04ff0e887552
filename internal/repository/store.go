package repository

import "context"

// Store is the persistence boundary of the purchasing workflow. The workflow
// depends only on these interfaces; PostgresStore and memory.Store implement
// them.
type Store interface {
	Rules() RuleRepository
	Users() UserDirectory
	Requests() RequestRepository
	Approvals() ApprovalRepository
	Orders() OrderRepository
	Notifications() NotificationRepository
	Audit() AuditRepository

	// InTx runs fn against a transactional view of the store. Everything fn
	// writes through tx is committed when fn returns nil and discarded
	// otherwise. Calling InTx on a transactional view joins the outer unit of
	// work.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// RuleFilter narrows List results. Empty fields match everything.
type RuleFilter struct {
	EntityType string
	Currency   string
	ActiveOnly bool
}

// RuleRepository stores approval rules, ordered by level then id.
type RuleRepository interface {
	Create(ctx context.Context, rule *ApprovalRule) error
	GetByID(ctx context.Context, id string) (*ApprovalRule, error)
	List(ctx context.Context, filter RuleFilter) ([]*ApprovalRule, error)
	Update(ctx context.Context, rule *ApprovalRule) error
	Delete(ctx context.Context, id string) error
}

// UserDirectory resolves approvers. Both lookups return (nil, nil) when no
// user matches.
type UserDirectory interface {
	// FindActiveUserByRole returns the first active user (by id) holding role.
	FindActiveUserByRole(ctx context.Context, role string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}

// RequestFilter narrows List results. Empty fields match everything.
type RequestFilter struct {
	Status      string
	RequesterID string
	Limit       int
	Offset      int
}

// RequestRepository stores purchase requests together with their items.
type RequestRepository interface {
	// Create inserts the request and its items, assigning ids and version 1.
	Create(ctx context.Context, req *PurchaseRequest) error
	GetByID(ctx context.Context, id string) (*PurchaseRequest, error)
	// GetForUpdate is GetByID that also locks the request for the rest of the
	// enclosing transaction.
	GetForUpdate(ctx context.Context, id string) (*PurchaseRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]*PurchaseRequest, int64, error)
	// Update persists header fields when req.Version matches the stored
	// version, then increments it. A mismatch is a CONFLICT error.
	Update(ctx context.Context, req *PurchaseRequest) error
	ReplaceItems(ctx context.Context, requestID string, items []*PurchaseRequestItem) error
	// Delete removes the request; items and approvals go with it.
	Delete(ctx context.Context, id string) error
}

// ApprovalRepository stores approval tasks. (RequestID, RuleID) is unique.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *PurchaseRequestApproval) error
	// GetByRequestAndRule returns (nil, nil) when no task exists yet.
	GetByRequestAndRule(ctx context.Context, requestID, ruleID string) (*PurchaseRequestApproval, error)
	// ListByRequest orders by level, then creation.
	ListByRequest(ctx context.Context, requestID string) ([]*PurchaseRequestApproval, error)
	// ListPendingForUser returns pending tasks of submitted requests
	// assigned to userID, oldest first.
	ListPendingForUser(ctx context.Context, userID string) ([]*PurchaseRequestApproval, error)
	Update(ctx context.Context, approval *PurchaseRequestApproval) error
}

// OrderRepository stores purchase orders with their items.
type OrderRepository interface {
	Create(ctx context.Context, order *PurchaseOrder) error
	GetByID(ctx context.Context, id string) (*PurchaseOrder, error)
}

// NotificationRepository stores delivered in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByRequest(ctx context.Context, requestID string) ([]*AuditEntry, error)
}
