package repository_test

import (
	"context"
	stderrors "errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-purchase-requests/internal/database"
	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

var errRollback = stderrors.New("rollback")

// openPostgres connects to PURCHASING_TEST_DATABASE_URL and applies the
// schema. Tests are skipped when the variable is unset.
func openPostgres(t *testing.T) *repository.PostgresStore {
	t.Helper()
	dsn := os.Getenv("PURCHASING_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PURCHASING_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	schema, err := os.ReadFile("../../migrations/001_purchase_requests.up.sql")
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return repository.NewPostgresStore(db)
}

// inRolledBackTx runs fn in a transaction that is always discarded.
func inRolledBackTx(t *testing.T, s repository.Store, fn func(ctx context.Context, tx repository.Store)) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx repository.Store) error {
		fn(context.Background(), tx)
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)
}

func newDraft(currency string) *repository.PurchaseRequest {
	return &repository.PurchaseRequest{
		RequestNumber: "PR-TEST-" + uuid.NewString()[:8],
		RequesterID:   "u-requester",
		TotalAmount:   decimal.RequireFromString("20"),
		Currency:      currency,
		Status:        repository.RequestStatusDraft,
		Items: []*repository.PurchaseRequestItem{{
			LineNumber: 1,
			ProductID:  "X",
			Quantity:   2,
			UnitPrice:  decimal.RequireFromString("10"),
			LineTotal:  decimal.RequireFromString("20"),
		}},
	}
}

func TestPostgresRequestRoundTrip(t *testing.T) {
	store := openPostgres(t)

	inRolledBackTx(t, store, func(ctx context.Context, tx repository.Store) {
		req := newDraft("USD")
		require.NoError(t, tx.Requests().Create(ctx, req))
		assert.NotEmpty(t, req.ID)
		assert.Equal(t, int64(1), req.Version)

		got, err := tx.Requests().GetForUpdate(ctx, req.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.True(t, decimal.RequireFromString("20").Equal(got.TotalAmount))

		stale := *got
		got.Status = repository.RequestStatusSubmitted
		require.NoError(t, tx.Requests().Update(ctx, got))
		assert.Equal(t, int64(2), got.Version)

		stale.Status = repository.RequestStatusRejected
		err = tx.Requests().Update(ctx, &stale)
		assert.True(t, errors.IsCode(err, errors.ErrCodeConflict), "stale version: %v", err)
	})
}

func TestPostgresRollbackDiscardsWrites(t *testing.T) {
	store := openPostgres(t)
	ctx := context.Background()

	var id string
	inRolledBackTx(t, store, func(ctx context.Context, tx repository.Store) {
		req := newDraft("EUR")
		require.NoError(t, tx.Requests().Create(ctx, req))
		id = req.ID
	})

	_, err := store.Requests().GetByID(ctx, id)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestPostgresRulesAndApprovals(t *testing.T) {
	store := openPostgres(t)

	inRolledBackTx(t, store, func(ctx context.Context, tx repository.Store) {
		role := "pg-test-role"
		for _, level := range []int{2, 1} {
			require.NoError(t, tx.Rules().Create(ctx, &repository.ApprovalRule{
				EntityType:   repository.EntityTypePurchaseRequest,
				Name:         "level",
				MinAmount:    decimal.Zero,
				Currency:     "JPY",
				Level:        level,
				ApproverRole: &role,
				IsActive:     true,
			}))
		}

		rules, err := tx.Rules().List(ctx, repository.RuleFilter{Currency: "JPY", ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, 1, rules[0].Level)

		req := newDraft("JPY")
		require.NoError(t, tx.Requests().Create(ctx, req))

		task := &repository.PurchaseRequestApproval{
			RequestID:  req.ID,
			RuleID:     rules[0].ID,
			Level:      1,
			ApproverID: "u-approver",
			Status:     repository.ApprovalStatusPending,
		}
		require.NoError(t, tx.Approvals().Create(ctx, task))

		found, err := tx.Approvals().GetByRequestAndRule(ctx, req.ID, rules[0].ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, task.ID, found.ID)

		missing, err := tx.Approvals().GetByRequestAndRule(ctx, req.ID, rules[1].ID)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestPostgresRuleUpdateKeepsCreatedAt(t *testing.T) {
	store := openPostgres(t)

	inRolledBackTx(t, store, func(ctx context.Context, tx repository.Store) {
		role := "pg-test-role"
		rule := &repository.ApprovalRule{
			EntityType:   repository.EntityTypePurchaseRequest,
			Name:         "before",
			MinAmount:    decimal.Zero,
			Currency:     "USD",
			Level:        1,
			ApproverRole: &role,
			IsActive:     true,
		}
		require.NoError(t, tx.Rules().Create(ctx, rule))
		created := rule.CreatedAt

		update := *rule
		update.CreatedAt = time.Time{}
		update.Name = "after"
		require.NoError(t, tx.Rules().Update(ctx, &update))
		assert.True(t, created.Equal(update.CreatedAt), "created_at %v, want %v", update.CreatedAt, created)
		assert.Equal(t, "after", update.Name)
	})
}

func TestPostgresUserDirectory(t *testing.T) {
	store := openPostgres(t)

	inRolledBackTx(t, store, func(ctx context.Context, tx repository.Store) {
		u, err := tx.Users().FindActiveUserByRole(ctx, "no-such-role-"+uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, u)
	})
}
