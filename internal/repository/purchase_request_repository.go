package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
)

// PurchaseRequestRepository handles purchase_requests and their items.
type PurchaseRequestRepository struct {
	q Querier
}

// NewPurchaseRequestRepository creates a new purchase request repository.
func NewPurchaseRequestRepository(q Querier) *PurchaseRequestRepository {
	return &PurchaseRequestRepository{q: q}
}

const requestColumns = `
	id, request_number, requester_id, supplier_id, total_amount, currency,
	status, notes, submitted_at, approved_at, rejected_at, purchase_order_id,
	version, created_at, updated_at`

// Create inserts the request header and its items. Callers wanting atomicity
// run it inside Store.InTx.
func (r *PurchaseRequestRepository) Create(ctx context.Context, req *PurchaseRequest) error {
	query := `
		INSERT INTO purchase_requests (request_number, requester_id, supplier_id,
		                               total_amount, currency, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		req.RequestNumber,
		req.RequesterID,
		req.SupplierID,
		req.TotalAmount,
		req.Currency,
		req.Status,
		req.Notes,
	).Scan(&req.ID, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return writeError(err, "failed to create purchase request")
	}

	return r.insertItems(ctx, req.ID, req.Items)
}

func (r *PurchaseRequestRepository) insertItems(ctx context.Context, requestID string, items []*PurchaseRequestItem) error {
	query := `
		INSERT INTO purchase_request_items (request_id, line_number, product_id,
		                                    quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	for _, item := range items {
		item.RequestID = requestID
		err := r.q.QueryRow(ctx, query,
			requestID,
			item.LineNumber,
			item.ProductID,
			item.Quantity,
			item.UnitPrice,
			item.LineTotal,
		).Scan(&item.ID)
		if err != nil {
			return writeError(err, "failed to create purchase request item")
		}
	}
	return nil
}

// GetByID retrieves a request with its items.
func (r *PurchaseRequestRepository) GetByID(ctx context.Context, id string) (*PurchaseRequest, error) {
	return r.get(ctx, `SELECT `+requestColumns+` FROM purchase_requests WHERE id = $1`, id)
}

// GetForUpdate retrieves a request and holds a row lock until the enclosing
// transaction ends.
func (r *PurchaseRequestRepository) GetForUpdate(ctx context.Context, id string) (*PurchaseRequest, error) {
	return r.get(ctx, `SELECT `+requestColumns+` FROM purchase_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *PurchaseRequestRepository) get(ctx context.Context, query, id string) (*PurchaseRequest, error) {
	req, err := scanRequest(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("purchase_request", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get purchase request")
	}

	items, err := r.GetItems(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	req.Items = items
	return req, nil
}

// GetItems retrieves all items of a request ordered by line number.
func (r *PurchaseRequestRepository) GetItems(ctx context.Context, requestID string) ([]*PurchaseRequestItem, error) {
	query := `
		SELECT id, request_id, line_number, product_id, quantity, unit_price, line_total
		FROM purchase_request_items
		WHERE request_id = $1
		ORDER BY line_number
	`

	rows, err := r.q.Query(ctx, query, requestID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get purchase request items")
	}
	defer rows.Close()

	items := make([]*PurchaseRequestItem, 0)
	for rows.Next() {
		item := &PurchaseRequestItem{}
		err := rows.Scan(
			&item.ID,
			&item.RequestID,
			&item.LineNumber,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan purchase request item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get purchase request items")
	}
	return items, nil
}

// List retrieves request headers with filtering and pagination. Items are
// not loaded.
func (r *PurchaseRequestRepository) List(ctx context.Context, filter RequestFilter) ([]*PurchaseRequest, int64, error) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		where += fmt.Sprintf(" AND requester_id = $%d", len(args))
	}

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count purchase requests")
	}

	query := `SELECT ` + requestColumns + ` FROM purchase_requests` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	queryArgs := append(args, filter.Limit, filter.Offset)

	rows, err := r.q.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list purchase requests")
	}
	defer rows.Close()

	requests := make([]*PurchaseRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan purchase request")
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list purchase requests")
	}
	return requests, total, nil
}

// Update writes the mutable header fields guarded by the version column.
func (r *PurchaseRequestRepository) Update(ctx context.Context, req *PurchaseRequest) error {
	query := `
		UPDATE purchase_requests
		SET supplier_id       = $3,
		    total_amount      = $4,
		    currency          = $5,
		    status            = $6,
		    notes             = $7,
		    submitted_at      = $8,
		    approved_at       = $9,
		    rejected_at       = $10,
		    purchase_order_id = $11,
		    version           = version + 1,
		    updated_at        = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		req.ID,
		req.Version,
		req.SupplierID,
		req.TotalAmount,
		req.Currency,
		req.Status,
		req.Notes,
		req.SubmittedAt,
		req.ApprovedAt,
		req.RejectedAt,
		req.PurchaseOrderID,
	).Scan(&req.Version, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_requests WHERE id = $1)`, req.ID).Scan(&exists); qerr == nil && !exists {
			return errors.NotFound("purchase_request", req.ID)
		}
		return errors.New(errors.ErrCodeConflict,
			fmt.Sprintf("purchase request %s was modified concurrently", req.ID))
	}
	if err != nil {
		return writeError(err, "failed to update purchase request")
	}
	return nil
}

// ReplaceItems deletes all items of a request and inserts the given ones.
func (r *PurchaseRequestRepository) ReplaceItems(ctx context.Context, requestID string, items []*PurchaseRequestItem) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM purchase_request_items WHERE request_id = $1`, requestID); err != nil {
		return writeError(err, "failed to delete purchase request items")
	}
	return r.insertItems(ctx, requestID, items)
}

// Delete removes a request; items and approvals cascade.
func (r *PurchaseRequestRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM purchase_requests WHERE id = $1`, id)
	if err != nil {
		return writeError(err, "failed to delete purchase request")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("purchase_request", id)
	}
	return nil
}

func scanRequest(row scanner) (*PurchaseRequest, error) {
	req := &PurchaseRequest{}
	err := row.Scan(
		&req.ID,
		&req.RequestNumber,
		&req.RequesterID,
		&req.SupplierID,
		&req.TotalAmount,
		&req.Currency,
		&req.Status,
		&req.Notes,
		&req.SubmittedAt,
		&req.ApprovedAt,
		&req.RejectedAt,
		&req.PurchaseOrderID,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}
