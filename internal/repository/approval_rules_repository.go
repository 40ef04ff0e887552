package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
)

// ApprovalRulesRepository handles CRUD for approval_rules.
type ApprovalRulesRepository struct {
	q Querier
}

// NewApprovalRulesRepository creates a new ApprovalRulesRepository.
func NewApprovalRulesRepository(q Querier) *ApprovalRulesRepository {
	return &ApprovalRulesRepository{q: q}
}

const ruleColumns = `
	id, entity_type, name, min_amount, max_amount, currency, level,
	approver_role, approver_id, is_active, created_at, updated_at`

// Create inserts a new approval rule.
func (r *ApprovalRulesRepository) Create(ctx context.Context, rule *ApprovalRule) error {
	query := `
		INSERT INTO approval_rules
		    (entity_type, name, min_amount, max_amount, currency, level,
		     approver_role, approver_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6,
		        $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		rule.EntityType,
		rule.Name,
		rule.MinAmount,
		rule.MaxAmount,
		rule.Currency,
		rule.Level,
		rule.ApproverRole,
		rule.ApproverID,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return writeError(err, "failed to create approval rule")
	}
	return nil
}

// GetByID retrieves a rule by primary key.
func (r *ApprovalRulesRepository) GetByID(ctx context.Context, id string) (*ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules WHERE id = $1`

	rule, err := scanRule(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("approval_rule", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval rule")
	}
	return rule, nil
}

// List returns rules matching filter ordered by level. Amount matching is
// done by the caller in Go to keep SQL simple.
func (r *ApprovalRulesRepository) List(ctx context.Context, filter RuleFilter) ([]*ApprovalRule, error) {
	var (
		conds []string
		args  []any
	)
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		conds = append(conds, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.Currency != "" {
		args = append(args, filter.Currency)
		conds = append(conds, fmt.Sprintf("currency = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}

	query := `SELECT ` + ruleColumns + ` FROM approval_rules`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY level ASC, id ASC"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval rules")
	}
	defer rows.Close()

	var rules []*ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval rule")
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval rules")
	}
	return rules, nil
}

// Update persists changes to an existing rule.
func (r *ApprovalRulesRepository) Update(ctx context.Context, rule *ApprovalRule) error {
	query := `
		UPDATE approval_rules
		SET entity_type   = $2,
		    name          = $3,
		    min_amount    = $4,
		    max_amount    = $5,
		    currency      = $6,
		    level         = $7,
		    approver_role = $8,
		    approver_id   = $9,
		    is_active     = $10,
		    updated_at    = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		rule.ID,
		rule.EntityType,
		rule.Name,
		rule.MinAmount,
		rule.MaxAmount,
		rule.Currency,
		rule.Level,
		rule.ApproverRole,
		rule.ApproverID,
		rule.IsActive,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.NotFound("approval_rule", rule.ID)
	}
	if err != nil {
		return writeError(err, "failed to update approval rule")
	}
	return nil
}

// Delete removes an approval rule. Rules referenced by approval tasks are
// protected by a foreign key and yield CONFLICT.
func (r *ApprovalRulesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM approval_rules WHERE id = $1`, id)
	if err != nil {
		return writeError(err, "failed to delete approval rule")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("approval_rule", id)
	}
	return nil
}

func scanRule(row scanner) (*ApprovalRule, error) {
	rule := &ApprovalRule{}
	err := row.Scan(
		&rule.ID,
		&rule.EntityType,
		&rule.Name,
		&rule.MinAmount,
		&rule.MaxAmount,
		&rule.Currency,
		&rule.Level,
		&rule.ApproverRole,
		&rule.ApproverID,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}
