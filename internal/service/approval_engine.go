package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

// ApprovalEngine matches rules against a request and turns them into
// approval tasks.
type ApprovalEngine struct {
	log *logger.Logger
}

// NewApprovalEngine creates a new ApprovalEngine.
func NewApprovalEngine(log *logger.Logger) *ApprovalEngine {
	return &ApprovalEngine{log: log}
}

// ── Rule selection ────────────────────────────────────────────────────────────

// SelectApplicableRules returns every active rule for entityType and currency
// whose range contains amount, ordered by level then id.
func (e *ApprovalEngine) SelectApplicableRules(
	ctx context.Context,
	rules repository.RuleRepository,
	entityType string,
	amount decimal.Decimal,
	currency string,
) ([]*repository.ApprovalRule, error) {
	currency = strings.ToUpper(currency)

	candidates, err := rules.List(ctx, repository.RuleFilter{
		EntityType: entityType,
		Currency:   currency,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	matched := make([]*repository.ApprovalRule, 0, len(candidates))
	for _, rule := range candidates {
		if rule.Covers(amount) {
			matched = append(matched, rule)
		}
	}
	if len(matched) == 0 {
		return nil, NoApplicableRule(amount, currency)
	}
	return matched, nil
}

// ── Approver resolution ───────────────────────────────────────────────────────

// ResolveApprover returns the rule's named approver, or the first active user
// holding its role.
func (e *ApprovalEngine) ResolveApprover(
	ctx context.Context,
	users repository.UserDirectory,
	rule *repository.ApprovalRule,
) (string, error) {
	if rule.ApproverID != nil && *rule.ApproverID != "" {
		return *rule.ApproverID, nil
	}
	if rule.ApproverRole == nil || *rule.ApproverRole == "" {
		return "", errors.New(errors.ErrCodeNoAvailableApprover,
			fmt.Sprintf("approval rule %s names neither an approver nor a role", rule.ID))
	}

	user, err := users.FindActiveUserByRole(ctx, *rule.ApproverRole)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", NoAvailableApprover(*rule.ApproverRole)
	}
	return user.ID, nil
}

// ── Task creation ─────────────────────────────────────────────────────────────

// CreateApprovalTasks creates one pending approval per rule, reusing rows that
// already exist for (request, rule). It must run inside the caller's unit of
// work; the returned notifications are for the caller to emit after commit.
func (e *ApprovalEngine) CreateApprovalTasks(
	ctx context.Context,
	tx repository.Store,
	req *repository.PurchaseRequest,
	rules []*repository.ApprovalRule,
) ([]*repository.PurchaseRequestApproval, []*repository.Notification, error) {
	approvals := make([]*repository.PurchaseRequestApproval, 0, len(rules))
	notes := make([]*repository.Notification, 0, len(rules))

	for _, rule := range rules {
		existing, err := tx.Approvals().GetByRequestAndRule(ctx, req.ID, rule.ID)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			approvals = append(approvals, existing)
			continue
		}

		approverID, err := e.ResolveApprover(ctx, tx.Users(), rule)
		if err != nil {
			return nil, nil, err
		}

		approval := &repository.PurchaseRequestApproval{
			RequestID:  req.ID,
			RuleID:     rule.ID,
			Level:      rule.Level,
			ApproverID: approverID,
			Status:     repository.ApprovalStatusPending,
		}
		if err := tx.Approvals().Create(ctx, approval); err != nil {
			return nil, nil, err
		}
		approvals = append(approvals, approval)

		notes = append(notes, &repository.Notification{
			UserID:     approverID,
			Type:       repository.NotificationApprovalRequired,
			Title:      "Purchase request awaiting approval",
			Message:    fmt.Sprintf("%s (%s %s) needs your level %d approval", req.RequestNumber, req.TotalAmount.StringFixed(2), req.Currency, rule.Level),
			EntityType: repository.EntityTypePurchaseRequest,
			EntityID:   req.ID,
			Payload: map[string]any{
				"request_number": req.RequestNumber,
				"total_amount":   req.TotalAmount.StringFixed(2),
				"currency":       req.Currency,
				"level":          rule.Level,
				"rule_id":        rule.ID,
			},
		})

		e.log.Debug().
			Str("request_id", req.ID).
			Str("rule_id", rule.ID).
			Int("level", rule.Level).
			Str("approver_id", approverID).
			Msg("Approval task created")
	}

	return approvals, notes, nil
}
