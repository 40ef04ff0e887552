package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

// RuleService administers approval rules.
type RuleService struct {
	store repository.Store
	log   *logger.Logger
}

// NewRuleService creates a new RuleService.
func NewRuleService(store repository.Store, log *logger.Logger) *RuleService {
	return &RuleService{store: store, log: log}
}

// RuleInput represents a create or update rule call. A nil MaxAmount means
// the range is unbounded.
type RuleInput struct {
	EntityType   string           `json:"entity_type"`
	Name         string           `json:"name"`
	MinAmount    decimal.Decimal  `json:"min_amount"`
	MaxAmount    *decimal.Decimal `json:"max_amount,omitempty"`
	Currency     string           `json:"currency"`
	Level        int              `json:"level"`
	ApproverRole *string          `json:"approver_role,omitempty"`
	ApproverID   *string          `json:"approver_id,omitempty"`
	IsActive     *bool            `json:"is_active,omitempty"`
}

// CreateRule validates in and stores a new rule.
func (s *RuleService) CreateRule(ctx context.Context, in *RuleInput) (*repository.ApprovalRule, error) {
	rule, err := buildRule(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Rules().Create(ctx, rule); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", rule.ID).
		Int("level", rule.Level).
		Str("currency", rule.Currency).
		Msg("Approval rule created")

	return rule, nil
}

// UpdateRule replaces every field of rule id with in.
func (s *RuleService) UpdateRule(ctx context.Context, id string, in *RuleInput) (*repository.ApprovalRule, error) {
	rule, err := buildRule(in)
	if err != nil {
		return nil, err
	}
	rule.ID = id
	if err := s.store.Rules().Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule fails with CONFLICT while approvals still reference the rule.
func (s *RuleService) DeleteRule(ctx context.Context, id string) error {
	return s.store.Rules().Delete(ctx, id)
}

func (s *RuleService) GetRule(ctx context.Context, id string) (*repository.ApprovalRule, error) {
	return s.store.Rules().GetByID(ctx, id)
}

func (s *RuleService) ListRules(ctx context.Context, activeOnly bool) ([]*repository.ApprovalRule, error) {
	return s.store.Rules().List(ctx, repository.RuleFilter{ActiveOnly: activeOnly})
}

func buildRule(in *RuleInput) (*repository.ApprovalRule, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.InvalidInput("name", "name is required")
	}
	entityType := in.EntityType
	if entityType == "" {
		entityType = repository.EntityTypePurchaseRequest
	}
	if in.Level < 1 {
		return nil, errors.InvalidInput("level", "level must be at least 1")
	}
	if in.MinAmount.IsNegative() {
		return nil, errors.InvalidInput("min_amount", "min amount cannot be negative")
	}
	if err := checkMoneyScale("min_amount", in.MinAmount); err != nil {
		return nil, err
	}
	if in.MaxAmount != nil {
		if err := checkMoneyScale("max_amount", *in.MaxAmount); err != nil {
			return nil, err
		}
		if in.MaxAmount.LessThan(in.MinAmount) {
			return nil, errors.InvalidInput("max_amount", "max amount cannot be below min amount")
		}
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}

	role := nonEmpty(in.ApproverRole)
	approver := nonEmpty(in.ApproverID)
	if (role == nil) == (approver == nil) {
		return nil, errors.InvalidInput("approver_role", "exactly one of approver_role and approver_id is required")
	}

	rule := &repository.ApprovalRule{
		EntityType:   entityType,
		Name:         name,
		MinAmount:    in.MinAmount,
		Currency:     currency,
		Level:        in.Level,
		ApproverRole: role,
		ApproverID:   approver,
		IsActive:     true,
	}
	if in.MaxAmount != nil {
		rule.MaxAmount = decimal.NewNullDecimal(*in.MaxAmount)
	}
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
	return rule, nil
}
