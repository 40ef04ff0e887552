package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pesio-ai/be-purchase-requests/internal/database"
	"github.com/pesio-ai/be-purchase-requests/internal/errors"
)

// Querier is satisfied by both the pool and a pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	db *database.DB
	q  Querier
	tx pgx.Tx
}

// NewPostgresStore creates a Store backed by db.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db.Pool}
}

func (s *PostgresStore) Rules() RuleRepository       { return NewApprovalRulesRepository(s.q) }
func (s *PostgresStore) Users() UserDirectory        { return NewUserRepository(s.q) }
func (s *PostgresStore) Requests() RequestRepository { return NewPurchaseRequestRepository(s.q) }
func (s *PostgresStore) Approvals() ApprovalRepository {
	return NewApprovalsRepository(s.q)
}
func (s *PostgresStore) Orders() OrderRepository { return NewPurchaseOrderRepository(s.q) }
func (s *PostgresStore) Notifications() NotificationRepository {
	return NewNotificationRepository(s.q)
}
func (s *PostgresStore) Audit() AuditRepository { return NewApprovalAuditRepository(s.q) }

// InTx runs fn in one database transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: s.db, q: tx, tx: tx})
	})
}

// Postgres SQLSTATE codes mapped to CONFLICT.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// writeError classifies a failed INSERT/UPDATE/DELETE.
func writeError(err error, message string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Wrap(err, errors.ErrCodeConflict, message+": already exists")
		case pgForeignKeyViolation:
			return errors.Wrap(err, errors.ErrCodeConflict, message+": still referenced")
		}
	}
	return errors.Wrap(err, errors.ErrCodeInternal, message)
}

// scanner is the subset of pgx.Row and pgx.Rows used by scan helpers.
type scanner interface {
	Scan(dest ...any) error
}
