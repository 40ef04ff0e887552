package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
)

// PurchaseOrderRepository handles purchase_orders and their items.
type PurchaseOrderRepository struct {
	q Querier
}

// NewPurchaseOrderRepository creates a new purchase order repository.
func NewPurchaseOrderRepository(q Querier) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{q: q}
}

// Create inserts the order header and its items.
func (r *PurchaseOrderRepository) Create(ctx context.Context, order *PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (order_number, source_request_id, supplier_id,
		                             currency, status, total_amount,
		                             expected_delivery_date, payment_terms, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		order.OrderNumber,
		order.SourceRequestID,
		order.SupplierID,
		order.Currency,
		order.Status,
		order.TotalAmount,
		order.ExpectedDeliveryDate,
		order.PaymentTerms,
		order.Notes,
		order.CreatedBy,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return writeError(err, "failed to create purchase order")
	}

	itemQuery := `
		INSERT INTO purchase_order_items (order_id, line_number, product_id,
		                                  quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for _, item := range order.Items {
		item.OrderID = order.ID
		err := r.q.QueryRow(ctx, itemQuery,
			order.ID,
			item.LineNumber,
			item.ProductID,
			item.Quantity,
			item.UnitPrice,
			item.LineTotal,
		).Scan(&item.ID)
		if err != nil {
			return writeError(err, "failed to create purchase order item")
		}
	}
	return nil
}

// GetByID retrieves an order with its items.
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id string) (*PurchaseOrder, error) {
	query := `
		SELECT id, order_number, source_request_id, supplier_id, currency, status,
		       total_amount, expected_delivery_date, payment_terms, notes,
		       created_by, created_at
		FROM purchase_orders
		WHERE id = $1
	`

	order := &PurchaseOrder{}
	err := r.q.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.SourceRequestID,
		&order.SupplierID,
		&order.Currency,
		&order.Status,
		&order.TotalAmount,
		&order.ExpectedDeliveryDate,
		&order.PaymentTerms,
		&order.Notes,
		&order.CreatedBy,
		&order.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("purchase_order", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get purchase order")
	}

	itemQuery := `
		SELECT id, order_id, line_number, product_id, quantity, unit_price, line_total
		FROM purchase_order_items
		WHERE order_id = $1
		ORDER BY line_number
	`
	rows, err := r.q.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get purchase order items")
	}
	defer rows.Close()

	order.Items = make([]*PurchaseOrderItem, 0)
	for rows.Next() {
		item := &PurchaseOrderItem{}
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.LineNumber,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan purchase order item")
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read purchase order items")
	}
	return order, nil
}
