package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/metrics"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

// Notifier accepts notifications for asynchronous delivery. Notify must not
// block.
type Notifier interface {
	Notify(n *repository.Notification)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// PurchaseRequestService drives the purchase request lifecycle.
type PurchaseRequestService struct {
	store    repository.Store
	engine   *ApprovalEngine
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewPurchaseRequestService creates a new PurchaseRequestService.
func NewPurchaseRequestService(
	store repository.Store,
	engine *ApprovalEngine,
	notifier Notifier,
	log *logger.Logger,
) *PurchaseRequestService {
	return &PurchaseRequestService{
		store:    store,
		engine:   engine,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateRequestInput represents a create purchase request call.
type CreateRequestInput struct {
	RequesterID string      `json:"requester_id"`
	SupplierID  *string     `json:"supplier_id,omitempty"`
	Currency    string      `json:"currency"`
	Notes       *string     `json:"notes,omitempty"`
	Items       []ItemInput `json:"items"`
}

// ListRequestsInput filters List. Page is 1-based.
type ListRequestsInput struct {
	Status      string
	RequesterID string
	Page        int
	PageSize    int
}

// RequestPage is one page of List results.
type RequestPage struct {
	Requests []*repository.PurchaseRequest `json:"requests"`
	Total    int64                         `json:"total"`
	Page     int                           `json:"page"`
	PageSize int                           `json:"page_size"`
}

// DecideInput records one approver's outcome.
type DecideInput struct {
	Level      int     `json:"level"`
	ApproverID string  `json:"approver_id"`
	Outcome    string  `json:"outcome"`
	Comment    *string `json:"comment,omitempty"`
}

// ConvertInput holds the purchase order fields supplied at conversion.
type ConvertInput struct {
	SupplierID           *string    `json:"supplier_id,omitempty"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
	PaymentTerms         *string    `json:"payment_terms,omitempty"`
	Notes                *string    `json:"notes,omitempty"`
	CreatedBy            string     `json:"created_by"`
}

// SubmitResult is the outcome of Submit.
type SubmitResult struct {
	Request   *repository.PurchaseRequest           `json:"request"`
	Approvals []*repository.PurchaseRequestApproval `json:"approvals"`
}

// DecideResult is the outcome of Decide.
type DecideResult struct {
	Request         *repository.PurchaseRequest         `json:"request"`
	Approval        *repository.PurchaseRequestApproval `json:"approval"`
	IsFullyApproved bool                                `json:"is_fully_approved"`
}

// ConvertResult is the outcome of ConvertToOrder.
type ConvertResult struct {
	Request       *repository.PurchaseRequest `json:"request"`
	PurchaseOrder *repository.PurchaseOrder   `json:"purchase_order"`
}

// effects collects what a unit of work wants to emit once it has committed.
type effects struct {
	audit         []*repository.AuditEntry
	notifications []*repository.Notification
	transitions   []string
}

func (e *effects) record(entry *repository.AuditEntry) { e.audit = append(e.audit, entry) }

func (e *effects) notify(n *repository.Notification) { e.notifications = append(e.notifications, n) }

func (e *effects) transition(to string) { e.transitions = append(e.transitions, to) }

// run executes fn in one unit of work and flushes its effects after commit.
func (s *PurchaseRequestService) run(ctx context.Context, fn func(tx repository.Store, fx *effects) error) error {
	fx := &effects{}
	if err := s.store.InTx(ctx, func(tx repository.Store) error {
		return fn(tx, fx)
	}); err != nil {
		return err
	}
	s.flush(ctx, fx)
	return nil
}

// flush writes audit entries and hands notifications to the notifier.
// Failures are logged, never returned.
func (s *PurchaseRequestService) flush(ctx context.Context, fx *effects) {
	for _, entry := range fx.audit {
		if err := s.store.Audit().Append(ctx, entry); err != nil {
			s.log.Warn().Err(err).
				Str("request_id", entry.RequestID).
				Str("action", entry.Action).
				Msg("Failed to write audit log entry")
		}
	}
	for _, to := range fx.transitions {
		metrics.WorkflowTransitions.WithLabelValues(to).Inc()
	}
	if s.notifier == nil {
		return
	}
	for _, n := range fx.notifications {
		s.notifier.Notify(n)
	}
}

// ── Create / edit ─────────────────────────────────────────────────────────────

// CreateRequest stores a new draft request.
func (s *PurchaseRequestService) CreateRequest(ctx context.Context, in *CreateRequestInput) (*repository.PurchaseRequest, error) {
	if strings.TrimSpace(in.RequesterID) == "" {
		return nil, errors.InvalidInput("requester_id", "requester is required")
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	items, total, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := &repository.PurchaseRequest{
		RequestNumber: documentNumber("PR", now),
		RequesterID:   in.RequesterID,
		SupplierID:    nonEmpty(in.SupplierID),
		TotalAmount:   total,
		Currency:      currency,
		Status:        repository.RequestStatusDraft,
		Notes:         in.Notes,
		Items:         items,
	}

	err = s.run(ctx, func(tx repository.Store, fx *effects) error {
		if err := tx.Requests().Create(ctx, req); err != nil {
			return err
		}
		fx.record(&repository.AuditEntry{
			RequestID:   req.ID,
			Action:      repository.AuditActionCreated,
			PerformedBy: in.RequesterID,
			StatusAfter: strPtr(repository.RequestStatusDraft),
			Metadata: map[string]any{
				"request_number": req.RequestNumber,
				"total_amount":   req.TotalAmount.StringFixed(2),
				"item_count":     len(req.Items),
			},
		})
		fx.transition(repository.RequestStatusDraft)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("request_number", req.RequestNumber).
		Str("total_amount", req.TotalAmount.StringFixed(2)).
		Msg("Purchase request created")

	return req, nil
}

// ReplaceItems swaps the lines of a draft request and recomputes its total.
func (s *PurchaseRequestService) ReplaceItems(ctx context.Context, requestID, actor string, in []ItemInput) (*repository.PurchaseRequest, error) {
	items, total, err := buildItems(in)
	if err != nil {
		return nil, err
	}

	var out *repository.PurchaseRequest
	err = s.run(ctx, func(tx repository.Store, fx *effects) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != repository.RequestStatusDraft {
			return InvalidState(req.Status, "edit items of")
		}

		previous := req.TotalAmount
		if err := tx.Requests().ReplaceItems(ctx, req.ID, items); err != nil {
			return err
		}
		req.TotalAmount = total
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		req.Items = items

		fx.record(&repository.AuditEntry{
			RequestID:   req.ID,
			Action:      repository.AuditActionItemsReplaced,
			PerformedBy: actorOr(actor, req.RequesterID),
			Metadata: map[string]any{
				"previous_total": previous.StringFixed(2),
				"total_amount":   total.StringFixed(2),
				"item_count":     len(items),
			},
		})
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRequest removes a draft request with its items.
func (s *PurchaseRequestService) DeleteRequest(ctx context.Context, requestID, actor string) error {
	return s.run(ctx, func(tx repository.Store, fx *effects) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != repository.RequestStatusDraft {
			return InvalidState(req.Status, "delete")
		}
		if err := tx.Requests().Delete(ctx, req.ID); err != nil {
			return err
		}
		fx.record(&repository.AuditEntry{
			RequestID:    req.ID,
			Action:       repository.AuditActionDeleted,
			PerformedBy:  actorOr(actor, req.RequesterID),
			StatusBefore: strPtr(req.Status),
			Metadata:     map[string]any{"request_number": req.RequestNumber},
		})
		return nil
	})
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Get returns a request with its items.
func (s *PurchaseRequestService) Get(ctx context.Context, requestID string) (*repository.PurchaseRequest, error) {
	return s.store.Requests().GetByID(ctx, requestID)
}

// List returns request headers, newest first.
func (s *PurchaseRequestService) List(ctx context.Context, in ListRequestsInput) (*RequestPage, error) {
	page, size := in.Page, in.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	if in.Status != "" && !validRequestStatus(in.Status) {
		return nil, errors.InvalidInput("status", fmt.Sprintf("unknown status %q", in.Status))
	}

	requests, total, err := s.store.Requests().List(ctx, repository.RequestFilter{
		Status:      in.Status,
		RequesterID: in.RequesterID,
		Limit:       size,
		Offset:      (page - 1) * size,
	})
	if err != nil {
		return nil, err
	}
	return &RequestPage{Requests: requests, Total: total, Page: page, PageSize: size}, nil
}

// GetApprovals returns a request's approval tasks ordered by level.
func (s *PurchaseRequestService) GetApprovals(ctx context.Context, requestID string) ([]*repository.PurchaseRequestApproval, error) {
	if _, err := s.store.Requests().GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.store.Approvals().ListByRequest(ctx, requestID)
}

// GetHistory returns the audit trail of a request in write order.
func (s *PurchaseRequestService) GetHistory(ctx context.Context, requestID string) ([]*repository.AuditEntry, error) {
	return s.store.Audit().ListByRequest(ctx, requestID)
}

// ListPendingApprovalsForUser returns the tasks a user can act on now, each
// joined with its request, oldest first.
func (s *PurchaseRequestService) ListPendingApprovalsForUser(ctx context.Context, userID string) ([]*repository.PendingApproval, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.InvalidInput("user_id", "user is required")
	}

	approvals, err := s.store.Approvals().ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	requests := make(map[string]*repository.PurchaseRequest)
	out := make([]*repository.PendingApproval, 0, len(approvals))
	for _, a := range approvals {
		req, ok := requests[a.RequestID]
		if !ok {
			req, err = s.store.Requests().GetByID(ctx, a.RequestID)
			if errors.IsCode(err, errors.ErrCodeNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			requests[a.RequestID] = req
		}
		out = append(out, &repository.PendingApproval{Approval: a, Request: req})
	}
	return out, nil
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit moves a draft into approval. Rule selection, approver resolution and
// task creation share one unit of work: on any failure the request stays a
// draft with no approvals.
func (s *PurchaseRequestService) Submit(ctx context.Context, requestID, actor string) (*SubmitResult, error) {
	var result *SubmitResult
	err := s.run(ctx, func(tx repository.Store, fx *effects) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != repository.RequestStatusDraft {
			return InvalidState(req.Status, "submit")
		}

		rules, err := s.engine.SelectApplicableRules(ctx, tx.Rules(),
			repository.EntityTypePurchaseRequest, req.TotalAmount, req.Currency)
		if err != nil {
			return err
		}

		now := s.now()
		req.Status = repository.RequestStatusSubmitted
		req.SubmittedAt = &now
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}

		approvals, notes, err := s.engine.CreateApprovalTasks(ctx, tx, req, rules)
		if err != nil {
			return err
		}

		for _, n := range notes {
			fx.notify(n)
		}
		fx.record(&repository.AuditEntry{
			RequestID:    req.ID,
			Action:       repository.AuditActionSubmitted,
			PerformedBy:  actorOr(actor, req.RequesterID),
			StatusBefore: strPtr(repository.RequestStatusDraft),
			StatusAfter:  strPtr(repository.RequestStatusSubmitted),
			Metadata: map[string]any{
				"rule_count":   len(rules),
				"total_amount": req.TotalAmount.StringFixed(2),
				"currency":     req.Currency,
			},
		})
		fx.transition(repository.RequestStatusSubmitted)

		result = &SubmitResult{Request: req, Approvals: approvals}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("request_id", requestID).Msg("Purchase request submission failed")
		return nil, err
	}

	s.log.Info().
		Str("request_id", requestID).
		Int("approvals", len(result.Approvals)).
		Msg("Purchase request submitted")

	return result, nil
}

// ── Decide ────────────────────────────────────────────────────────────────────

// Decide records an approver's outcome on the pending task matching (level,
// approver). Approving the last pending task approves the request; any
// rejection rejects the request and cancels the remaining tasks.
func (s *PurchaseRequestService) Decide(ctx context.Context, requestID string, in *DecideInput) (*DecideResult, error) {
	outcome := strings.ToLower(strings.TrimSpace(in.Outcome))
	if outcome != repository.ApprovalStatusApproved && outcome != repository.ApprovalStatusRejected {
		return nil, errors.InvalidInput("outcome", "outcome must be approved or rejected")
	}
	if strings.TrimSpace(in.ApproverID) == "" {
		return nil, errors.InvalidInput("approver_id", "approver is required")
	}

	var result *DecideResult
	err := s.run(ctx, func(tx repository.Store, fx *effects) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status == repository.RequestStatusDraft {
			return InvalidState(req.Status, "decide")
		}

		approvals, err := tx.Approvals().ListByRequest(ctx, req.ID)
		if err != nil {
			return err
		}

		if req.Status != repository.RequestStatusSubmitted {
			// A task already decided for this pair is a repeat decision.
			for _, a := range approvals {
				if a.Status != repository.ApprovalStatusPending && a.Level == in.Level && a.ApproverID == in.ApproverID {
					return ApprovalNotFound(in.Level, in.ApproverID)
				}
			}
			return InvalidState(req.Status, "decide")
		}

		var target *repository.PurchaseRequestApproval
		for _, a := range approvals {
			if a.Status == repository.ApprovalStatusPending && a.Level == in.Level && a.ApproverID == in.ApproverID {
				target = a
				break
			}
		}
		if target == nil {
			return ApprovalNotFound(in.Level, in.ApproverID)
		}

		now := s.now()
		target.Status = outcome
		target.DecidedAt = &now
		target.Comment = in.Comment
		if err := tx.Approvals().Update(ctx, target); err != nil {
			return err
		}

		statusBefore := req.Status
		fullyApproved := false

		switch outcome {
		case repository.ApprovalStatusApproved:
			remaining := 0
			for _, a := range approvals {
				if a.Status == repository.ApprovalStatusPending {
					remaining++
				}
			}
			if remaining == 0 {
				fullyApproved = true
				req.Status = repository.RequestStatusApproved
				req.ApprovedAt = &now
				fx.transition(repository.RequestStatusApproved)
				fx.notify(&repository.Notification{
					UserID:     req.RequesterID,
					Type:       repository.NotificationRequestApproved,
					Title:      "Purchase request approved",
					Message:    fmt.Sprintf("%s has been fully approved", req.RequestNumber),
					EntityType: repository.EntityTypePurchaseRequest,
					EntityID:   req.ID,
					Payload:    requestPayload(req, "level", target.Level, "approver_id", target.ApproverID),
				})
			}

		case repository.ApprovalStatusRejected:
			cancel := fmt.Sprintf("cancelled: rejected at level %d by %s", target.Level, target.ApproverID)
			for _, a := range approvals {
				if a.Status != repository.ApprovalStatusPending {
					continue
				}
				a.Status = repository.ApprovalStatusRejected
				a.DecidedAt = &now
				a.Comment = &cancel
				if err := tx.Approvals().Update(ctx, a); err != nil {
					return err
				}
			}
			req.Status = repository.RequestStatusRejected
			req.RejectedAt = &now
			fx.transition(repository.RequestStatusRejected)

			message := fmt.Sprintf("%s was rejected at level %d", req.RequestNumber, target.Level)
			if in.Comment != nil && *in.Comment != "" {
				message += ": " + *in.Comment
			}
			fx.notify(&repository.Notification{
				UserID:     req.RequesterID,
				Type:       repository.NotificationRequestRejected,
				Title:      "Purchase request rejected",
				Message:    message,
				EntityType: repository.EntityTypePurchaseRequest,
				EntityID:   req.ID,
				Payload:    requestPayload(req, "level", target.Level, "approver_id", target.ApproverID),
			})
		}

		// Every decision bumps the version so concurrent deciders serialize
		// on the request row.
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}

		metadata := map[string]any{"level": target.Level}
		if in.Comment != nil {
			metadata["comment"] = *in.Comment
		}
		fx.record(&repository.AuditEntry{
			RequestID:    req.ID,
			ApprovalID:   &target.ID,
			Action:       outcome,
			PerformedBy:  in.ApproverID,
			StatusBefore: strPtr(statusBefore),
			StatusAfter:  strPtr(req.Status),
			Metadata:     metadata,
		})

		result = &DecideResult{Request: req, Approval: target, IsFullyApproved: fullyApproved}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalDecisions.WithLabelValues(outcome).Inc()
	s.log.Info().
		Str("request_id", requestID).
		Int("level", in.Level).
		Str("approver_id", in.ApproverID).
		Str("outcome", outcome).
		Str("status", result.Request.Status).
		Msg("Approval decision recorded")

	return result, nil
}

// ── Convert ───────────────────────────────────────────────────────────────────

// ConvertToOrder turns an approved request into a draft purchase order.
func (s *PurchaseRequestService) ConvertToOrder(ctx context.Context, requestID string, in *ConvertInput) (*ConvertResult, error) {
	var result *ConvertResult
	err := s.run(ctx, func(tx repository.Store, fx *effects) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != repository.RequestStatusApproved {
			return InvalidState(req.Status, "convert")
		}
		if len(req.Items) == 0 {
			return EmptyRequest(req.ID)
		}

		supplierID := nonEmpty(in.SupplierID)
		if supplierID == nil {
			supplierID = nonEmpty(req.SupplierID)
		}
		if supplierID == nil {
			return errors.InvalidInput("supplier_id", "a supplier is required to create a purchase order")
		}

		order := &repository.PurchaseOrder{
			OrderNumber:          documentNumber("PO", s.now()),
			SourceRequestID:      req.ID,
			SupplierID:           *supplierID,
			Currency:             req.Currency,
			Status:               repository.PurchaseOrderStatusDraft,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate,
			PaymentTerms:         in.PaymentTerms,
			Notes:                in.Notes,
			CreatedBy:            actorOr(in.CreatedBy, req.RequesterID),
			Items:                make([]*repository.PurchaseOrderItem, 0, len(req.Items)),
		}
		total := decimal.Zero
		for _, it := range req.Items {
			order.Items = append(order.Items, &repository.PurchaseOrderItem{
				LineNumber: it.LineNumber,
				ProductID:  it.ProductID,
				Quantity:   it.Quantity,
				UnitPrice:  it.UnitPrice,
				LineTotal:  it.LineTotal,
			})
			total = total.Add(it.LineTotal)
		}
		order.TotalAmount = total

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		req.Status = repository.RequestStatusConverted
		req.PurchaseOrderID = &order.ID
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}

		fx.transition(repository.RequestStatusConverted)
		fx.notify(&repository.Notification{
			UserID:     req.RequesterID,
			Type:       repository.NotificationRequestConverted,
			Title:      "Purchase order created",
			Message:    fmt.Sprintf("%s was converted into purchase order %s", req.RequestNumber, order.OrderNumber),
			EntityType: repository.EntityTypePurchaseRequest,
			EntityID:   req.ID,
			Payload:    requestPayload(req, "purchase_order_id", order.ID, "order_number", order.OrderNumber),
		})
		fx.record(&repository.AuditEntry{
			RequestID:    req.ID,
			Action:       repository.AuditActionConverted,
			PerformedBy:  order.CreatedBy,
			StatusBefore: strPtr(repository.RequestStatusApproved),
			StatusAfter:  strPtr(repository.RequestStatusConverted),
			Metadata: map[string]any{
				"purchase_order_id": order.ID,
				"order_number":      order.OrderNumber,
			},
		})

		result = &ConvertResult{Request: req, PurchaseOrder: order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", requestID).
		Str("purchase_order_id", result.PurchaseOrder.ID).
		Msg("Purchase request converted")

	return result, nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// buildItems validates lines, numbers them from 1 and computes totals.
func buildItems(in []ItemInput) ([]*repository.PurchaseRequestItem, decimal.Decimal, error) {
	items := make([]*repository.PurchaseRequestItem, 0, len(in))
	total := decimal.Zero
	for i, line := range in {
		if strings.TrimSpace(line.ProductID) == "" {
			return nil, decimal.Zero, errors.InvalidInput(fmt.Sprintf("items[%d].product_id", i), "product is required")
		}
		if line.Quantity <= 0 {
			return nil, decimal.Zero, errors.InvalidInput(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return nil, decimal.Zero, errors.InvalidInput(fmt.Sprintf("items[%d].unit_price", i), "unit price cannot be negative")
		}
		if err := checkMoneyScale(fmt.Sprintf("items[%d].unit_price", i), line.UnitPrice); err != nil {
			return nil, decimal.Zero, err
		}
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, &repository.PurchaseRequestItem{
			LineNumber: i + 1,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			LineTotal:  lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return items, total, nil
}

// requestPayload describes req for notification events, plus extra key/value
// pairs.
func requestPayload(req *repository.PurchaseRequest, kv ...any) map[string]any {
	payload := map[string]any{
		"request_number": req.RequestNumber,
		"total_amount":   req.TotalAmount.StringFixed(2),
		"currency":       req.Currency,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			payload[key] = kv[i+1]
		}
	}
	return payload
}

// moneyScale is the number of decimal places amounts are stored with.
const moneyScale = 2

// checkMoneyScale rejects amounts that cannot be stored exactly.
func checkMoneyScale(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(moneyScale)) {
		return errors.InvalidInput(field, fmt.Sprintf("amount must have at most %d decimal places", moneyScale))
	}
	return nil
}

func normalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if len(c) != 3 {
		return "", errors.InvalidInput("currency", "currency must be 3-letter ISO code")
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", errors.InvalidInput("currency", "currency must be 3-letter ISO code")
		}
	}
	return c, nil
}

func validRequestStatus(status string) bool {
	switch status {
	case repository.RequestStatusDraft, repository.RequestStatusSubmitted,
		repository.RequestStatusApproved, repository.RequestStatusRejected,
		repository.RequestStatusConverted:
		return true
	}
	return false
}

// documentNumber formats PREFIX-YYYYMMDD-XXXXXX.
func documentNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func actorOr(actor, fallback string) string {
	if actor != "" {
		return actor
	}
	return fallback
}

func strPtr(s string) *string { return &s }
