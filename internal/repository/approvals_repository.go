package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
)

// ApprovalsRepository handles reads and updates on purchase_request_approvals.
// Rows are unique per (request_id, rule_id).
type ApprovalsRepository struct {
	q Querier
}

// NewApprovalsRepository creates a new ApprovalsRepository.
func NewApprovalsRepository(q Querier) *ApprovalsRepository {
	return &ApprovalsRepository{q: q}
}

const approvalColumns = `
	a.id, a.request_id, a.rule_id, a.level, a.approver_id,
	a.status, a.decided_at, a.comment, a.created_at`

// Create inserts a pending approval task.
func (r *ApprovalsRepository) Create(ctx context.Context, a *PurchaseRequestApproval) error {
	query := `
		INSERT INTO purchase_request_approvals
		    (request_id, rule_id, level, approver_id, status, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		a.RequestID,
		a.RuleID,
		a.Level,
		a.ApproverID,
		a.Status,
		a.Comment,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return writeError(err, "failed to create approval")
	}
	return nil
}

// GetByRequestAndRule returns the task created for a rule, or nil.
func (r *ApprovalsRepository) GetByRequestAndRule(ctx context.Context, requestID, ruleID string) (*PurchaseRequestApproval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM purchase_request_approvals a
		WHERE a.request_id = $1 AND a.rule_id = $2
	`

	a, err := scanApproval(r.q.QueryRow(ctx, query, requestID, ruleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval")
	}
	return a, nil
}

// ListByRequest returns all tasks of a request ordered by level.
func (r *ApprovalsRepository) ListByRequest(ctx context.Context, requestID string) ([]*PurchaseRequestApproval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM purchase_request_approvals a
		WHERE a.request_id = $1
		ORDER BY a.level ASC, a.created_at ASC, a.id ASC
	`

	rows, err := r.q.Query(ctx, query, requestID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approvals")
	}
	defer rows.Close()

	return scanApprovals(rows)
}

// ListPendingForUser returns pending tasks assigned to userID on submitted
// requests.
func (r *ApprovalsRepository) ListPendingForUser(ctx context.Context, userID string) ([]*PurchaseRequestApproval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM purchase_request_approvals a
		JOIN purchase_requests pr ON pr.id = a.request_id
		WHERE a.approver_id = $1
		  AND a.status = 'pending'
		  AND pr.status = 'submitted'
		ORDER BY a.created_at ASC, a.id ASC
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get pending approvals")
	}
	defer rows.Close()

	return scanApprovals(rows)
}

// Update records the outcome of a decision.
func (r *ApprovalsRepository) Update(ctx context.Context, a *PurchaseRequestApproval) error {
	query := `
		UPDATE purchase_request_approvals
		SET status     = $2,
		    decided_at = $3,
		    comment    = $4
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, a.ID, a.Status, a.DecidedAt, a.Comment)
	if err != nil {
		return writeError(err, "failed to update approval")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("approval", a.ID)
	}
	return nil
}

func scanApproval(row scanner) (*PurchaseRequestApproval, error) {
	a := &PurchaseRequestApproval{}
	err := row.Scan(
		&a.ID,
		&a.RequestID,
		&a.RuleID,
		&a.Level,
		&a.ApproverID,
		&a.Status,
		&a.DecidedAt,
		&a.Comment,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanApprovals(rows pgx.Rows) ([]*PurchaseRequestApproval, error) {
	approvals := make([]*PurchaseRequestApproval, 0)
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval")
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read approvals")
	}
	return approvals, nil
}
